// Package reminders surfaces appointments whose reminder window has
// opened. Delivery itself happens downstream; marking a reminder sent
// queues the event and is idempotent, so a crashed worker can safely
// retry.
package reminders

import (
	"context"
	"time"

	"barberbook/internal/model"
)

const defaultBatchSize = 50

// Store is the persistence surface the reminder flow needs.
type Store interface {
	DueReminders(ctx context.Context, now time.Time, limit int) ([]model.Appointment, error)
	MarkReminderSent(ctx context.Context, id string) (bool, error)
}

type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// WithClock overrides the time source. Test hook.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// ListDue returns appointments whose reminder is due but not yet sent.
func (s *Service) ListDue(ctx context.Context, limit int) ([]model.Appointment, error) {
	if limit <= 0 {
		limit = defaultBatchSize
	}
	return s.store.DueReminders(ctx, s.now().UTC(), limit)
}

// MarkSent records that the reminder for an appointment went out. Returns
// false if it was already marked, so duplicate deliveries are suppressed.
func (s *Service) MarkSent(ctx context.Context, id string) (bool, error) {
	return s.store.MarkReminderSent(ctx, id)
}
