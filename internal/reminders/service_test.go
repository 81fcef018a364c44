package reminders

import (
	"context"
	"testing"
	"time"

	"barberbook/internal/booking"
	"barberbook/internal/model"
)

type fakeStore struct {
	appts map[string]*model.Appointment
}

func newFakeStore() *fakeStore {
	return &fakeStore{appts: make(map[string]*model.Appointment)}
}

func (f *fakeStore) DueReminders(_ context.Context, now time.Time, limit int) ([]model.Appointment, error) {
	var out []model.Appointment
	for _, a := range f.appts {
		if len(out) >= limit {
			break
		}
		if !a.ReminderSent && !a.ReminderTime.After(now) && a.AppointmentDate.After(now) && a.Status.Blocking() {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeStore) MarkReminderSent(_ context.Context, id string) (bool, error) {
	a, ok := f.appts[id]
	if !ok {
		return false, booking.E(booking.KindNotFound, "appointment not found")
	}
	if a.ReminderSent {
		return false, nil
	}
	a.ReminderSent = true
	return true, nil
}

func (f *fakeStore) add(id string, start time.Time, status model.Status, sent bool) {
	f.appts[id] = &model.Appointment{
		ID:              id,
		ShopID:          "shop-1",
		CustomerID:      "cust-1",
		AppointmentDate: start,
		Status:          status,
		ReminderTime:    start.Add(-time.Hour),
		ReminderSent:    sent,
	}
}

func TestListDue(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	store := newFakeStore()
	store.add("due", now.Add(30*time.Minute), model.StatusConfirmed, false)       // reminder at 9:00, due
	store.add("not-yet", now.Add(2*time.Hour), model.StatusConfirmed, false)      // reminder at 10:30
	store.add("already-sent", now.Add(30*time.Minute), model.StatusPending, true) // suppressed
	store.add("cancelled", now.Add(30*time.Minute), model.StatusCancelled, false) // no slot held

	svc := NewService(store).WithClock(func() time.Time { return now })
	due, err := svc.ListDue(context.Background(), 0)
	if err != nil {
		t.Fatalf("ListDue: %v", err)
	}
	if len(due) != 1 || due[0].ID != "due" {
		t.Fatalf("due = %+v, want just %q", due, "due")
	}
}

func TestMarkSentIdempotent(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	store := newFakeStore()
	store.add("a1", now.Add(30*time.Minute), model.StatusConfirmed, false)

	svc := NewService(store).WithClock(func() time.Time { return now })
	ctx := context.Background()

	ok, err := svc.MarkSent(ctx, "a1")
	if err != nil {
		t.Fatalf("MarkSent: %v", err)
	}
	if !ok {
		t.Fatal("first MarkSent should report sent")
	}

	ok, err = svc.MarkSent(ctx, "a1")
	if err != nil {
		t.Fatalf("MarkSent: %v", err)
	}
	if ok {
		t.Fatal("second MarkSent should be a no-op")
	}

	due, err := svc.ListDue(ctx, 0)
	if err != nil {
		t.Fatalf("ListDue: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("expected no due reminders after send, got %d", len(due))
	}
}

func TestMarkSentUnknownAppointment(t *testing.T) {
	svc := NewService(newFakeStore())

	_, err := svc.MarkSent(context.Background(), "nope")
	if booking.KindOf(err) != booking.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}
