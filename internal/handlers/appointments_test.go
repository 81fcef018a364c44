package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"barberbook/internal/availability"
	"barberbook/internal/booking"
	"barberbook/internal/model"
	"barberbook/libs/auth"
	"barberbook/libs/httpx"
)

var testNow = time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)

var testShop = model.Shop{
	ID:        "shop-1",
	OwnerID:   "barber-1",
	Name:      "Fade Factory",
	OpenTime:  "09:00",
	CloseTime: "17:00",
	Services: []model.ShopService{
		{ID: "svc-cut", ShopID: "shop-1", Name: "Haircut", Price: 25, Duration: 30, Active: true},
		{ID: "svc-shave", ShopID: "shop-1", Name: "Shave", Price: 10, Duration: 15, Active: true},
	},
}

type memShops struct{}

func (memShops) GetShop(_ context.Context, id string) (model.Shop, error) {
	if id != testShop.ID {
		return model.Shop{}, booking.E(booking.KindNotFound, "shop not found")
	}
	return testShop, nil
}

func (memShops) GetShopByOwner(_ context.Context, ownerID string) (model.Shop, error) {
	if ownerID != testShop.OwnerID {
		return model.Shop{}, booking.E(booking.KindNotFound, "shop not found")
	}
	return testShop, nil
}

type memStore struct {
	appts map[string]model.Appointment
}

func (m *memStore) Create(_ context.Context, a model.Appointment) error {
	m.appts[a.ID] = a
	return nil
}

func (m *memStore) Get(_ context.Context, id string) (model.Appointment, error) {
	a, ok := m.appts[id]
	if !ok {
		return model.Appointment{}, booking.E(booking.KindNotFound, "appointment not found")
	}
	return a, nil
}

func (m *memStore) UpdateStatus(_ context.Context, id string, to model.Status) (model.Appointment, error) {
	a, ok := m.appts[id]
	if !ok {
		return model.Appointment{}, booking.E(booking.KindNotFound, "appointment not found")
	}
	a.Status = to
	m.appts[id] = a
	return a, nil
}

func (m *memStore) Move(_ context.Context, a model.Appointment) (model.Appointment, error) {
	m.appts[a.ID] = a
	return a, nil
}

func (m *memStore) ListByCustomer(_ context.Context, customerID string, q booking.ListQuery) ([]model.Appointment, int, error) {
	var all []model.Appointment
	for _, a := range m.appts {
		if a.CustomerID == customerID && (q.Status == "" || a.Status == q.Status) {
			all = append(all, a)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return all, len(all), nil
}

func (m *memStore) ListByShop(_ context.Context, shopID string, q booking.ListQuery) ([]model.Appointment, int, error) {
	var all []model.Appointment
	for _, a := range m.appts {
		if a.ShopID == shopID && (q.Status == "" || a.Status == q.Status) {
			all = append(all, a)
		}
	}
	return all, len(all), nil
}

func (m *memStore) CustomerStats(_ context.Context, customerID string) (booking.Stats, error) {
	var st booking.Stats
	for _, a := range m.appts {
		if a.CustomerID == customerID {
			st.Total++
		}
	}
	return st, nil
}

func (m *memStore) ListIntervals(_ context.Context, shopID string, from, to time.Time) ([]model.Interval, error) {
	var out []model.Interval
	for _, a := range m.appts {
		if a.ShopID != shopID || !a.Status.Blocking() {
			continue
		}
		if a.AppointmentDate.Before(to) && from.Before(a.End()) {
			out = append(out, model.Interval{AppointmentID: a.ID, Start: a.AppointmentDate, End: a.End()})
		}
	}
	return out, nil
}

func newTestMux(t *testing.T) (*http.ServeMux, *memStore) {
	t.Helper()
	store := &memStore{appts: make(map[string]model.Appointment)}
	clock := func() time.Time { return testNow }
	slots := availability.NewService(memShops{}, store).WithClock(clock)
	bookings := booking.NewService(store, memShops{}, slots, booking.Config{}).WithClock(clock)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mux := http.NewServeMux()
	NewAppointmentHandler(bookings, logger).Register(mux)
	NewSlotHandler(slots).Register(mux)
	return mux, store
}

func doAs(mux *http.ServeMux, method, target, body, userID, role string) *httptest.ResponseRecorder {
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	r = r.WithContext(httpx.ContextWithIdentity(r.Context(), httpx.Identity{ID: userID, Role: role}))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)
	return w
}

func TestCreateAppointment(t *testing.T) {
	mux, _ := newTestMux(t)

	body := `{"shopId":"shop-1","date":"2026-03-10T10:00:00Z","serviceIds":["svc-cut","svc-shave"],"notes":"first visit"}`
	w := doAs(mux, http.MethodPost, "/api/v1/appointments", body, "cust-1", auth.RoleCustomer)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var appt model.Appointment
	if err := json.Unmarshal(w.Body.Bytes(), &appt); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if appt.Status != model.StatusPending {
		t.Fatalf("status = %s, want PENDING", appt.Status)
	}
	if appt.TotalDuration != 45 || appt.TotalPrice != 35 {
		t.Fatalf("totals = %d min / %d", appt.TotalDuration, appt.TotalPrice)
	}
}

func TestCreateConflictReturns409(t *testing.T) {
	mux, _ := newTestMux(t)
	body := `{"shopId":"shop-1","date":"2026-03-10T10:00:00Z","serviceIds":["svc-cut"]}`

	if w := doAs(mux, http.MethodPost, "/api/v1/appointments", body, "cust-1", auth.RoleCustomer); w.Code != http.StatusCreated {
		t.Fatalf("first booking: status = %d", w.Code)
	}
	w := doAs(mux, http.MethodPost, "/api/v1/appointments", body, "cust-2", auth.RoleCustomer)
	if w.Code != http.StatusConflict {
		t.Fatalf("second booking: status = %d, want 409", w.Code)
	}
	var resp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp.Error == "" {
		t.Fatalf("expected error body, got %s", w.Body.String())
	}
}

func TestCreateBadDateReturns400(t *testing.T) {
	mux, _ := newTestMux(t)
	body := `{"shopId":"shop-1","date":"tomorrow","serviceIds":["svc-cut"]}`
	if w := doAs(mux, http.MethodPost, "/api/v1/appointments", body, "cust-1", auth.RoleCustomer); w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestGetForeignAppointmentForbidden(t *testing.T) {
	mux, store := newTestMux(t)
	store.appts["a1"] = model.Appointment{
		ID: "a1", ShopID: "shop-1", CustomerID: "cust-1",
		AppointmentDate: testNow.Add(24 * time.Hour), TotalDuration: 30,
		Status: model.StatusPending,
	}

	if w := doAs(mux, http.MethodGet, "/api/v1/appointments/a1", "", "cust-2", auth.RoleCustomer); w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
	if w := doAs(mux, http.MethodGet, "/api/v1/appointments/a1", "", "cust-1", auth.RoleCustomer); w.Code != http.StatusOK {
		t.Fatalf("owner status = %d, want 200", w.Code)
	}
	if w := doAs(mux, http.MethodGet, "/api/v1/appointments/a1", "", "barber-1", auth.RoleBarber); w.Code != http.StatusOK {
		t.Fatalf("barber status = %d, want 200", w.Code)
	}
}

func TestCancelInsideCutoffConflicts(t *testing.T) {
	mux, store := newTestMux(t)
	store.appts["soon"] = model.Appointment{
		ID: "soon", ShopID: "shop-1", CustomerID: "cust-1",
		AppointmentDate: testNow.Add(90 * time.Minute), TotalDuration: 30,
		Status: model.StatusConfirmed,
	}

	w := doAs(mux, http.MethodPost, "/api/v1/appointments/soon/cancel", "", "cust-1", auth.RoleCustomer)
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409, body %s", w.Code, w.Body.String())
	}
}

func TestStatusUpdateByCustomerForbidden(t *testing.T) {
	mux, store := newTestMux(t)
	store.appts["a1"] = model.Appointment{
		ID: "a1", ShopID: "shop-1", CustomerID: "cust-1",
		AppointmentDate: testNow.Add(24 * time.Hour), TotalDuration: 30,
		Status: model.StatusPending,
	}

	body := `{"status":"CONFIRMED"}`
	if w := doAs(mux, http.MethodPatch, "/api/v1/appointments/a1/status", body, "cust-1", auth.RoleCustomer); w.Code != http.StatusForbidden {
		t.Fatalf("customer status = %d, want 403", w.Code)
	}
	if w := doAs(mux, http.MethodPatch, "/api/v1/appointments/a1/status", body, "barber-1", auth.RoleBarber); w.Code != http.StatusOK {
		t.Fatalf("barber status = %d, want 200", w.Code)
	}
}

func TestListMineEnvelope(t *testing.T) {
	mux, store := newTestMux(t)
	store.appts["a1"] = model.Appointment{
		ID: "a1", ShopID: "shop-1", CustomerID: "cust-1",
		AppointmentDate: testNow.Add(24 * time.Hour), TotalDuration: 30,
		Status: model.StatusPending, CreatedAt: testNow,
	}

	w := doAs(mux, http.MethodGet, "/api/v1/appointments?page=1&limit=10", "", "cust-1", auth.RoleCustomer)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp listResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Total != 1 || len(resp.Appointments) != 1 || resp.Page != 1 || resp.Limit != 10 {
		t.Fatalf("envelope = %+v", resp)
	}
}

func TestDaySlotsEndpoint(t *testing.T) {
	mux, store := newTestMux(t)
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	store.appts["a1"] = model.Appointment{
		ID: "a1", ShopID: "shop-1", CustomerID: "cust-1",
		AppointmentDate: day.Add(10 * time.Hour), TotalDuration: 30,
		Status: model.StatusConfirmed,
	}

	w := doAs(mux, http.MethodGet, "/api/v1/shops/shop-1/slots?date=2026-03-10", "", "cust-1", auth.RoleCustomer)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var day2 availability.DaySlots
	if err := json.Unmarshal(w.Body.Bytes(), &day2); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(day2.TimeSlots) != 16 || day2.TotalAvailable != 15 {
		t.Fatalf("slots = %d, available = %d", len(day2.TimeSlots), day2.TotalAvailable)
	}

	if w := doAs(mux, http.MethodGet, "/api/v1/shops/shop-1/slots?date=2026-03-01", "", "cust-1", auth.RoleCustomer); w.Code != http.StatusBadRequest {
		t.Fatalf("past date status = %d, want 400", w.Code)
	}
}

func TestCheckSlotEndpoint(t *testing.T) {
	mux, store := newTestMux(t)
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	store.appts["a1"] = model.Appointment{
		ID: "a1", ShopID: "shop-1", CustomerID: "cust-1",
		AppointmentDate: day.Add(10 * time.Hour), TotalDuration: 45,
		Status: model.StatusConfirmed,
	}

	var resp checkSlotResponse

	w := doAs(mux, http.MethodGet, "/api/v1/shops/shop-1/slots/check?date=2026-03-10&time=10:30&duration_minutes=30", "", "cust-1", auth.RoleCustomer)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Available || resp.ConflictReason != "Already booked" {
		t.Fatalf("overlapping check = %+v", resp)
	}

	w = doAs(mux, http.MethodGet, "/api/v1/shops/shop-1/slots/check?date=2026-03-10&time=11:00", "", "cust-1", auth.RoleCustomer)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Available {
		t.Fatalf("free check = %+v", resp)
	}
	if resp.Time != "11:00 AM" {
		t.Fatalf("time label = %q", resp.Time)
	}

	if w := doAs(mux, http.MethodGet, "/api/v1/shops/shop-1/slots/check?date=2026-03-10&time=25:00", "", "cust-1", auth.RoleCustomer); w.Code != http.StatusBadRequest {
		t.Fatalf("bad time status = %d, want 400", w.Code)
	}
}
