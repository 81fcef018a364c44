// Package notifier is the delivery leg of the booking pipeline. It
// consumes the booking topic and records a notification per event, so a
// downstream channel (mail, SMS, push) only has to drain the
// notifications table.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/segmentio/kafka-go"

	"barberbook/internal/outbox"
)

// Notifier turns booking events into notification rows.
type Notifier struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewNotifier(pool *pgxpool.Pool, logger *slog.Logger) *Notifier {
	return &Notifier{pool: pool, logger: logger}
}

// Handle processes one consumed message. The event type arrives in the
// message headers; the payload shape depends on it.
func (n *Notifier) Handle(ctx context.Context, eventType string, msg kafka.Message) error {
	var (
		appointmentID string
		customerID    string
		message       string
	)

	switch eventType {
	case outbox.EventReminderDue:
		var p outbox.ReminderPayload
		if err := json.Unmarshal(msg.Value, &p); err != nil {
			return fmt.Errorf("decode reminder payload: %w", err)
		}
		appointmentID = p.AppointmentID
		customerID = p.CustomerID
		message = fmt.Sprintf("Reminder: your appointment starts at %s", p.AppointmentDate.Format("15:04 on Jan 2"))
	case outbox.EventAppointmentBooked, outbox.EventAppointmentConfirmed,
		outbox.EventAppointmentCompleted, outbox.EventAppointmentCancelled,
		outbox.EventAppointmentRescheduled:
		var p outbox.AppointmentPayload
		if err := json.Unmarshal(msg.Value, &p); err != nil {
			return fmt.Errorf("decode appointment payload: %w", err)
		}
		appointmentID = p.AppointmentID
		customerID = p.CustomerID
		message = fmt.Sprintf("Your appointment is now %s", p.Status)
	default:
		n.logger.Debug("ignoring unknown event type", "event_type", eventType)
		return nil
	}

	_, err := n.pool.Exec(ctx, `
		INSERT INTO notifications (id, appointment_id, customer_id, event_type, message)
		VALUES ($1, $2, $3, $4, $5)`,
		uuid.NewString(), appointmentID, customerID, eventType, message)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}

	n.logger.Info("notification queued",
		"event_type", eventType, "appointment_id", appointmentID)
	return nil
}
