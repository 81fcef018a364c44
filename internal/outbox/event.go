package outbox

import (
	"time"

	"barberbook/internal/model"
)

// Event types emitted on the booking topic. Versioned so consumers can
// evolve independently.
const (
	EventAppointmentBooked      = "booking.appointment.booked.v1"
	EventAppointmentConfirmed   = "booking.appointment.confirmed.v1"
	EventAppointmentCompleted   = "booking.appointment.completed.v1"
	EventAppointmentCancelled   = "booking.appointment.cancelled.v1"
	EventAppointmentRescheduled = "booking.appointment.rescheduled.v1"
	EventReminderDue            = "booking.reminder.due.v1"
)

// AggregateAppointment keys events to the appointment they describe, so
// Kafka partitioning preserves per-appointment ordering.
const AggregateAppointment = "appointment"

// Event is a pending outbox row. Trace context is persisted with the row
// so the consumer side can join the original request trace.
type Event struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	Traceparent   string
	Tracestate    string
	CreatedAt     time.Time
}

// AppointmentPayload is the wire shape shared by all appointment events.
type AppointmentPayload struct {
	AppointmentID   string    `json:"appointmentId"`
	ShopID          string    `json:"shopId"`
	CustomerID      string    `json:"customerId"`
	AppointmentDate time.Time `json:"appointmentDate"`
	TotalDuration   int       `json:"totalDuration"`
	TotalPrice      int64     `json:"totalPrice"`
	Status          string    `json:"status"`
}

// ReminderPayload is the wire shape of a reminder-due event.
type ReminderPayload struct {
	AppointmentID   string    `json:"appointmentId"`
	ShopID          string    `json:"shopId"`
	CustomerID      string    `json:"customerId"`
	AppointmentDate time.Time `json:"appointmentDate"`
	ReminderTime    time.Time `json:"reminderTime"`
}

// StatusEventType maps a lifecycle status to its event type. Ok is false
// for statuses that do not emit an event.
func StatusEventType(s model.Status) (string, bool) {
	switch s {
	case model.StatusConfirmed:
		return EventAppointmentConfirmed, true
	case model.StatusCompleted:
		return EventAppointmentCompleted, true
	case model.StatusCancelled:
		return EventAppointmentCancelled, true
	case model.StatusRescheduled:
		return EventAppointmentRescheduled, true
	}
	return "", false
}

// AppointmentEvent builds the payload for an appointment lifecycle event.
func AppointmentEvent(a model.Appointment) AppointmentPayload {
	return AppointmentPayload{
		AppointmentID:   a.ID,
		ShopID:          a.ShopID,
		CustomerID:      a.CustomerID,
		AppointmentDate: a.AppointmentDate,
		TotalDuration:   a.TotalDuration,
		TotalPrice:      a.TotalPrice,
		Status:          string(a.Status),
	}
}

// ReminderEvent builds the payload for a reminder-due event.
func ReminderEvent(a model.Appointment) ReminderPayload {
	return ReminderPayload{
		AppointmentID:   a.ID,
		ShopID:          a.ShopID,
		CustomerID:      a.CustomerID,
		AppointmentDate: a.AppointmentDate,
		ReminderTime:    a.ReminderTime,
	}
}
