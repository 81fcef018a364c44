package booking

import (
	"context"
	"time"

	"github.com/google/uuid"

	"barberbook/internal/model"
	"barberbook/libs/auth"
)

// ReminderLead is how long before the appointment the reminder fires.
const ReminderLead = time.Hour

// Store persists appointments. Create and Move perform their conflict
// re-check inside the write transaction and return a conflict Error when
// the slot was taken concurrently.
type Store interface {
	Create(ctx context.Context, a model.Appointment) error
	Get(ctx context.Context, id string) (model.Appointment, error)
	UpdateStatus(ctx context.Context, id string, to model.Status) (model.Appointment, error)
	Move(ctx context.Context, a model.Appointment) (model.Appointment, error)
	ListByCustomer(ctx context.Context, customerID string, q ListQuery) ([]model.Appointment, int, error)
	ListByShop(ctx context.Context, shopID string, q ListQuery) ([]model.Appointment, int, error)
	CustomerStats(ctx context.Context, customerID string) (Stats, error)
}

// ShopStore resolves shops and their service catalogs.
type ShopStore interface {
	GetShop(ctx context.Context, id string) (model.Shop, error)
	GetShopByOwner(ctx context.Context, ownerID string) (model.Shop, error)
}

// SlotChecker validates a start instant against opening hours and the
// booked calendar. excludeID lets a reschedule ignore its own slot.
type SlotChecker interface {
	CheckSlot(ctx context.Context, shopID string, start time.Time, duration int, excludeID string) (bool, string, error)
}

// Actor is the authenticated principal performing an operation.
type Actor struct {
	ID   string
	Role string
}

// Config tunes lifecycle policy.
type Config struct {
	// CancelCutoff is the minimum lead time a customer needs to cancel a
	// future appointment. Zero means the 2-hour default.
	CancelCutoff time.Duration
	// CancelCompletedAllowed lets completed appointments be cancelled,
	// e.g. to void a no-show marked completed by mistake.
	CancelCompletedAllowed bool
}

// Sort fields and directions accepted by the list endpoints.
const (
	SortByCreated = "createdAt"
	SortByDate    = "appointmentDate"

	SortAsc  = "asc"
	SortDesc = "desc"
)

type ListQuery struct {
	Status  model.Status
	SortBy  string
	SortDir string
	Page    int
	Limit   int
}

// Normalize clamps paging to sane bounds. Default order is newest
// created first.
func (q ListQuery) Normalize() ListQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = 10
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	if q.SortBy != SortByDate {
		q.SortBy = SortByCreated
	}
	if q.SortDir != SortAsc {
		q.SortDir = SortDesc
	}
	return q
}

func (q ListQuery) Offset() int { return (q.Page - 1) * q.Limit }

// Stats summarizes a customer's booking history.
type Stats struct {
	Total      int   `json:"total"`
	Upcoming   int   `json:"upcoming"`
	Completed  int   `json:"completed"`
	Cancelled  int   `json:"cancelled"`
	TotalSpent int64 `json:"totalSpent"`
}

// Service implements the appointment lifecycle: create, confirm,
// complete, cancel and reschedule, with ownership and timing rules.
type Service struct {
	store Store
	shops ShopStore
	slots SlotChecker
	cfg   Config
	now   func() time.Time
	newID func() string
}

func NewService(store Store, shops ShopStore, slots SlotChecker, cfg Config) *Service {
	if cfg.CancelCutoff <= 0 {
		cfg.CancelCutoff = 2 * time.Hour
	}
	return &Service{
		store: store,
		shops: shops,
		slots: slots,
		cfg:   cfg,
		now:   time.Now,
		newID: func() string { return uuid.NewString() },
	}
}

// WithClock overrides the time source. Test hook.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

type CreateInput struct {
	CustomerID string
	ShopID     string
	Date       time.Time
	ServiceIDs []string
	Notes      string
}

func (s *Service) Create(ctx context.Context, in CreateInput) (model.Appointment, error) {
	if in.ShopID == "" {
		return model.Appointment{}, E(KindValidation, "shopId is required")
	}
	if in.CustomerID == "" {
		return model.Appointment{}, E(KindUnauthorized, "missing customer identity")
	}
	if len(in.ServiceIDs) == 0 {
		return model.Appointment{}, E(KindValidation, "at least one service is required")
	}

	shop, err := s.shops.GetShop(ctx, in.ShopID)
	if err != nil {
		return model.Appointment{}, err
	}

	services, duration, price, err := resolveServices(shop, in.ServiceIDs)
	if err != nil {
		return model.Appointment{}, err
	}

	start := in.Date.UTC()
	ok, reason, err := s.slots.CheckSlot(ctx, shop.ID, start, duration, "")
	if err != nil {
		return model.Appointment{}, err
	}
	if !ok {
		return model.Appointment{}, slotError(reason)
	}

	now := s.now().UTC()
	appt := model.Appointment{
		ID:              s.newID(),
		ShopID:          shop.ID,
		CustomerID:      in.CustomerID,
		AppointmentDate: start,
		Services:        services,
		TotalDuration:   duration,
		TotalPrice:      price,
		Status:          model.StatusPending,
		Notes:           in.Notes,
		ReminderTime:    start.Add(-ReminderLead),
		ReminderSent:    false,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.store.Create(ctx, appt); err != nil {
		return model.Appointment{}, err
	}
	return appt, nil
}

func (s *Service) Get(ctx context.Context, id string, actor Actor) (model.Appointment, error) {
	appt, err := s.store.Get(ctx, id)
	if err != nil {
		return model.Appointment{}, err
	}
	if err := s.authorize(ctx, appt, actor); err != nil {
		return model.Appointment{}, err
	}
	return appt, nil
}

func (s *Service) ListForCustomer(ctx context.Context, customerID string, q ListQuery) ([]model.Appointment, int, error) {
	if customerID == "" {
		return nil, 0, E(KindUnauthorized, "missing customer identity")
	}
	return s.store.ListByCustomer(ctx, customerID, q.Normalize())
}

// ListForShop lists a barber's shop calendar. The shop is resolved from
// the barber's identity, never from client input.
func (s *Service) ListForShop(ctx context.Context, actor Actor, q ListQuery) ([]model.Appointment, int, error) {
	if actor.Role != auth.RoleBarber {
		return nil, 0, E(KindForbidden, "barber role required")
	}
	shop, err := s.shops.GetShopByOwner(ctx, actor.ID)
	if err != nil {
		return nil, 0, err
	}
	return s.store.ListByShop(ctx, shop.ID, q.Normalize())
}

// UpdateStatus moves an appointment along the lifecycle. Only the owning
// barber can confirm or complete; cancellation has its own rules in Cancel.
func (s *Service) UpdateStatus(ctx context.Context, id string, to model.Status, actor Actor) (model.Appointment, error) {
	if !to.Valid() {
		return model.Appointment{}, Ef(KindValidation, "unknown status %q", to)
	}
	if to == model.StatusCancelled {
		return s.Cancel(ctx, id, actor)
	}

	appt, err := s.store.Get(ctx, id)
	if err != nil {
		return model.Appointment{}, err
	}

	if actor.Role != auth.RoleBarber {
		return model.Appointment{}, E(KindForbidden, "barber role required")
	}
	shop, err := s.shops.GetShopByOwner(ctx, actor.ID)
	if err != nil {
		return model.Appointment{}, err
	}
	if shop.ID != appt.ShopID {
		return model.Appointment{}, E(KindForbidden, "appointment belongs to another shop")
	}

	if !model.CanTransition(appt.Status, to) {
		return model.Appointment{}, Ef(KindConflict, "cannot change status from %s to %s", appt.Status, to)
	}
	return s.store.UpdateStatus(ctx, id, to)
}

// Cancel frees the appointment's slot. Customers must cancel at least the
// cutoff ahead of a future appointment; the owning barber can cancel at
// any time.
func (s *Service) Cancel(ctx context.Context, id string, actor Actor) (model.Appointment, error) {
	appt, err := s.store.Get(ctx, id)
	if err != nil {
		return model.Appointment{}, err
	}
	if err := s.authorize(ctx, appt, actor); err != nil {
		return model.Appointment{}, err
	}

	switch appt.Status {
	case model.StatusCancelled:
		return model.Appointment{}, E(KindConflict, "appointment is already cancelled")
	case model.StatusCompleted:
		if !s.cfg.CancelCompletedAllowed {
			return model.Appointment{}, E(KindConflict, "cannot cancel a completed appointment")
		}
	}

	if actor.ID == appt.CustomerID && actor.Role != auth.RoleBarber {
		now := s.now().UTC()
		if appt.AppointmentDate.After(now) && appt.AppointmentDate.Sub(now) < s.cfg.CancelCutoff {
			return model.Appointment{}, Ef(KindConflict,
				"too close to appointment time: cancel at least %d hours in advance",
				int(s.cfg.CancelCutoff/time.Hour))
		}
	}

	return s.store.UpdateStatus(ctx, id, model.StatusCancelled)
}

type RescheduleInput struct {
	Date       time.Time
	ServiceIDs []string
}

// Reschedule moves an appointment to a new start, optionally swapping its
// services. The conflict check ignores the appointment's own current slot,
// and the reminder is rearmed for the new time.
func (s *Service) Reschedule(ctx context.Context, id string, in RescheduleInput, actor Actor) (model.Appointment, error) {
	appt, err := s.store.Get(ctx, id)
	if err != nil {
		return model.Appointment{}, err
	}
	if err := s.authorize(ctx, appt, actor); err != nil {
		return model.Appointment{}, err
	}
	if !model.CanTransition(appt.Status, model.StatusRescheduled) {
		return model.Appointment{}, Ef(KindConflict, "cannot reschedule a %s appointment", appt.Status)
	}

	services := appt.Services
	duration := appt.TotalDuration
	price := appt.TotalPrice
	if len(in.ServiceIDs) > 0 {
		shop, err := s.shops.GetShop(ctx, appt.ShopID)
		if err != nil {
			return model.Appointment{}, err
		}
		services, duration, price, err = resolveServices(shop, in.ServiceIDs)
		if err != nil {
			return model.Appointment{}, err
		}
	}

	start := in.Date.UTC()
	ok, reason, err := s.slots.CheckSlot(ctx, appt.ShopID, start, duration, appt.ID)
	if err != nil {
		return model.Appointment{}, err
	}
	if !ok {
		return model.Appointment{}, slotError(reason)
	}

	appt.AppointmentDate = start
	appt.Services = services
	appt.TotalDuration = duration
	appt.TotalPrice = price
	appt.Status = model.StatusRescheduled
	appt.ReminderTime = start.Add(-ReminderLead)
	appt.ReminderSent = false

	return s.store.Move(ctx, appt)
}

func (s *Service) StatsForCustomer(ctx context.Context, customerID string) (Stats, error) {
	if customerID == "" {
		return Stats{}, E(KindUnauthorized, "missing customer identity")
	}
	return s.store.CustomerStats(ctx, customerID)
}

// authorize allows the booking customer and the owning barber.
func (s *Service) authorize(ctx context.Context, appt model.Appointment, actor Actor) error {
	if actor.ID == "" {
		return E(KindUnauthorized, "missing identity")
	}
	if actor.ID == appt.CustomerID {
		return nil
	}
	if actor.Role == auth.RoleBarber {
		shop, err := s.shops.GetShopByOwner(ctx, actor.ID)
		if err == nil && shop.ID == appt.ShopID {
			return nil
		}
	}
	return E(KindForbidden, "not allowed to access this appointment")
}

// resolveServices snapshots catalog entries so later price or duration
// edits never change an existing booking.
func resolveServices(shop model.Shop, serviceIDs []string) ([]model.ServiceSnapshot, int, int64, error) {
	services := make([]model.ServiceSnapshot, 0, len(serviceIDs))
	duration := 0
	var price int64

	for _, id := range serviceIDs {
		svc, ok := shop.ServiceByID(id)
		if !ok {
			return nil, 0, 0, Ef(KindNotFound, "service %s not found in this shop's catalog", id)
		}
		if !svc.Active {
			return nil, 0, 0, Ef(KindValidation, "service %s is no longer offered", id)
		}
		services = append(services, model.ServiceSnapshot{
			ServiceID:       svc.ID,
			ServiceName:     svc.Name,
			ServicePrice:    svc.Price,
			ServiceDuration: svc.Duration,
		})
		duration += svc.Duration
		price += svc.Price
	}
	return services, duration, price, nil
}

func slotError(reason string) error {
	switch reason {
	case "Already booked":
		return E(KindConflict, "time slot is already booked")
	case "Past time":
		return E(KindValidation, "appointment time must be in the future")
	case "Outside opening hours":
		return E(KindValidation, "appointment time is outside opening hours")
	default:
		return E(KindValidation, "time slot is not available")
	}
}
