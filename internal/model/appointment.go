package model

import "time"

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusPending     Status = "PENDING"
	StatusConfirmed   Status = "CONFIRMED"
	StatusCompleted   Status = "COMPLETED"
	StatusCancelled   Status = "CANCELLED"
	StatusRescheduled Status = "RESCHEDULED"
)

// ActiveStatuses are the statuses that occupy a time slot. A cancelled
// appointment frees its slot immediately.
var ActiveStatuses = []Status{StatusPending, StatusConfirmed, StatusRescheduled}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled, StatusRescheduled:
		return true
	}
	return false
}

// Blocking reports whether an appointment in this status still holds its slot.
func (s Status) Blocking() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusRescheduled:
		return true
	}
	return false
}

var transitions = map[Status][]Status{
	StatusPending:     {StatusConfirmed, StatusCompleted, StatusCancelled, StatusRescheduled},
	StatusConfirmed:   {StatusCompleted, StatusCancelled, StatusRescheduled},
	StatusRescheduled: {StatusConfirmed, StatusCompleted, StatusCancelled, StatusRescheduled},
	StatusCompleted:   {},
	StatusCancelled:   {},
}

// CanTransition reports whether moving from one status to another is allowed.
func CanTransition(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// ServiceSnapshot captures the service as priced at booking time. Later
// catalog edits do not affect already-booked appointments.
type ServiceSnapshot struct {
	ServiceID       string `json:"serviceId"`
	ServiceName     string `json:"serviceName"`
	ServicePrice    int64  `json:"servicePrice"`
	ServiceDuration int    `json:"serviceDuration"`
}

type Appointment struct {
	ID              string            `json:"id"`
	ShopID          string            `json:"shopId"`
	CustomerID      string            `json:"customerId"`
	AppointmentDate time.Time         `json:"appointmentDate"`
	Services        []ServiceSnapshot `json:"services"`
	TotalDuration   int               `json:"totalDuration"`
	TotalPrice      int64             `json:"totalPrice"`
	Status          Status            `json:"status"`
	Notes           string            `json:"notes,omitempty"`
	ReminderTime    time.Time         `json:"reminderTime"`
	ReminderSent    bool              `json:"reminderSent"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

// End returns the exclusive end instant of the appointment.
func (a Appointment) End() time.Time {
	return a.AppointmentDate.Add(time.Duration(a.TotalDuration) * time.Minute)
}

// Interval is a booked time range used for conflict checks, carrying just
// enough of an appointment to decide overlap.
type Interval struct {
	AppointmentID string
	Start         time.Time
	End           time.Time
}
