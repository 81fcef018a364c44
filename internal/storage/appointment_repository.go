package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"barberbook/internal/booking"
	"barberbook/internal/model"
	"barberbook/internal/outbox"
)

// pgExclusionViolation is raised by the calendar exclusion constraint when
// two transactions try to book overlapping ranges for the same shop.
const pgExclusionViolation = "23P01"

const appointmentColumns = `
	id::text, shop_id::text, customer_id::text, appointment_date, services,
	total_duration, total_price, status, notes, reminder_time, reminder_sent,
	created_at, updated_at`

// AppointmentRepository persists appointments. Writes that can collide on
// the shop calendar take a per-shop advisory lock and re-check overlaps
// inside the transaction; the exclusion constraint is the last line of
// defence. Lifecycle changes queue their outbox event in the same
// transaction.
type AppointmentRepository struct {
	pool   *pgxpool.Pool
	outbox *outbox.Repository
}

func NewAppointmentRepository(pool *pgxpool.Pool, ob *outbox.Repository) *AppointmentRepository {
	return &AppointmentRepository{pool: pool, outbox: ob}
}

func (r *AppointmentRepository) Create(ctx context.Context, a model.Appointment) error {
	services, err := json.Marshal(a.Services)
	if err != nil {
		return fmt.Errorf("marshal services: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := lockShopCalendar(ctx, tx, a.ShopID); err != nil {
		return err
	}
	taken, err := hasOverlap(ctx, tx, a.ShopID, a.AppointmentDate, a.End(), "")
	if err != nil {
		return err
	}
	if taken {
		return errSlotTaken()
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO appointments (
			id, shop_id, customer_id, appointment_date, services,
			total_duration, total_price, status, notes, reminder_time, reminder_sent,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		a.ID, a.ShopID, a.CustomerID, a.AppointmentDate, services,
		a.TotalDuration, a.TotalPrice, string(a.Status), a.Notes, a.ReminderTime, a.ReminderSent,
		a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return mapWriteError(err)
	}

	if err := r.outbox.InsertTx(ctx, tx, outbox.EventAppointmentBooked, outbox.AggregateAppointment, a.ID, outbox.AppointmentEvent(a)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return mapWriteError(err)
	}
	return nil
}

func (r *AppointmentRepository) Get(ctx context.Context, id string) (model.Appointment, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id)
	a, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Appointment{}, booking.E(booking.KindNotFound, "appointment not found")
		}
		return model.Appointment{}, fmt.Errorf("get appointment: %w", err)
	}
	return a, nil
}

func (r *AppointmentRepository) UpdateStatus(ctx context.Context, id string, to model.Status) (model.Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Appointment{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+appointmentColumns, id, string(to))
	a, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Appointment{}, booking.E(booking.KindNotFound, "appointment not found")
		}
		return model.Appointment{}, fmt.Errorf("update appointment status: %w", err)
	}

	if eventType, ok := outbox.StatusEventType(to); ok {
		if err := r.outbox.InsertTx(ctx, tx, eventType, outbox.AggregateAppointment, a.ID, outbox.AppointmentEvent(a)); err != nil {
			return model.Appointment{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, fmt.Errorf("commit status update: %w", err)
	}
	return a, nil
}

// Move rewrites the appointment's slot, services and reminder in one
// transaction, re-checking the calendar under the shop lock with the
// appointment's own row excluded.
func (r *AppointmentRepository) Move(ctx context.Context, a model.Appointment) (model.Appointment, error) {
	services, err := json.Marshal(a.Services)
	if err != nil {
		return model.Appointment{}, fmt.Errorf("marshal services: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Appointment{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := lockShopCalendar(ctx, tx, a.ShopID); err != nil {
		return model.Appointment{}, err
	}
	taken, err := hasOverlap(ctx, tx, a.ShopID, a.AppointmentDate, a.End(), a.ID)
	if err != nil {
		return model.Appointment{}, err
	}
	if taken {
		return model.Appointment{}, errSlotTaken()
	}

	row := tx.QueryRow(ctx, `
		UPDATE appointments
		SET appointment_date = $2, services = $3, total_duration = $4, total_price = $5,
		    status = $6, reminder_time = $7, reminder_sent = $8, updated_at = now()
		WHERE id = $1
		RETURNING `+appointmentColumns,
		a.ID, a.AppointmentDate, services, a.TotalDuration, a.TotalPrice,
		string(a.Status), a.ReminderTime, a.ReminderSent)
	updated, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Appointment{}, booking.E(booking.KindNotFound, "appointment not found")
		}
		return model.Appointment{}, mapWriteError(err)
	}

	if err := r.outbox.InsertTx(ctx, tx, outbox.EventAppointmentRescheduled, outbox.AggregateAppointment, updated.ID, outbox.AppointmentEvent(updated)); err != nil {
		return model.Appointment{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, mapWriteError(err)
	}
	return updated, nil
}

func (r *AppointmentRepository) ListByCustomer(ctx context.Context, customerID string, q booking.ListQuery) ([]model.Appointment, int, error) {
	return r.listBy(ctx, "customer_id", customerID, q)
}

func (r *AppointmentRepository) ListByShop(ctx context.Context, shopID string, q booking.ListQuery) ([]model.Appointment, int, error) {
	return r.listBy(ctx, "shop_id", shopID, q)
}

func (r *AppointmentRepository) listBy(ctx context.Context, column, value string, q booking.ListQuery) ([]model.Appointment, int, error) {
	filter := fmt.Sprintf("WHERE %s = $1", column)
	args := []any{value}
	if q.Status != "" {
		filter += " AND status = $2"
		args = append(args, string(q.Status))
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT count(*) FROM appointments "+filter, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count appointments: %w", err)
	}

	orderCol := "created_at"
	if q.SortBy == booking.SortByDate {
		orderCol = "appointment_date"
	}
	orderDir := "DESC"
	if q.SortDir == booking.SortAsc {
		orderDir = "ASC"
	}
	query := fmt.Sprintf(
		"SELECT %s FROM appointments %s ORDER BY %s %s LIMIT %d OFFSET %d",
		appointmentColumns, filter, orderCol, orderDir, q.Limit, q.Offset())
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	var out []model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan appointment: %w", err)
		}
		out = append(out, a)
	}
	return out, total, rows.Err()
}

// ListIntervals returns the booked ranges of slot-holding appointments
// overlapping [from, to).
func (r *AppointmentRepository) ListIntervals(ctx context.Context, shopID string, from, to time.Time) ([]model.Interval, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, appointment_date, appointment_date + make_interval(mins => total_duration)
		FROM appointments
		WHERE shop_id = $1
		  AND status IN ('PENDING', 'CONFIRMED', 'RESCHEDULED')
		  AND appointment_date < $3
		  AND appointment_date + make_interval(mins => total_duration) > $2`,
		shopID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list intervals: %w", err)
	}
	defer rows.Close()

	var out []model.Interval
	for rows.Next() {
		var iv model.Interval
		if err := rows.Scan(&iv.AppointmentID, &iv.Start, &iv.End); err != nil {
			return nil, fmt.Errorf("scan interval: %w", err)
		}
		out = append(out, iv)
	}
	return out, rows.Err()
}

// DueReminders returns appointments whose reminder is due and unsent.
// Only future, slot-holding appointments qualify.
func (r *AppointmentRepository) DueReminders(ctx context.Context, now time.Time, limit int) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE reminder_sent = false
		  AND reminder_time <= $1
		  AND appointment_date > $1
		  AND status IN ('PENDING', 'CONFIRMED', 'RESCHEDULED')
		ORDER BY reminder_time
		LIMIT $2`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list due reminders: %w", err)
	}
	defer rows.Close()

	var out []model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// MarkReminderSent flips the reminder flag and queues the reminder event.
// Returns false when the reminder was already sent, making retries after a
// crash no-ops.
func (r *AppointmentRepository) MarkReminderSent(ctx context.Context, id string) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		UPDATE appointments
		SET reminder_sent = true, updated_at = now()
		WHERE id = $1 AND reminder_sent = false
		RETURNING `+appointmentColumns, id)
	a, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Either the row is gone or the flag was already set.
			var sent bool
			if err := tx.QueryRow(ctx, `SELECT reminder_sent FROM appointments WHERE id = $1`, id).Scan(&sent); err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return false, booking.E(booking.KindNotFound, "appointment not found")
				}
				return false, fmt.Errorf("mark reminder sent: %w", err)
			}
			return false, nil
		}
		return false, fmt.Errorf("mark reminder sent: %w", err)
	}

	if err := r.outbox.InsertTx(ctx, tx, outbox.EventReminderDue, outbox.AggregateAppointment, a.ID, outbox.ReminderEvent(a)); err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit reminder: %w", err)
	}
	return true, nil
}

func (r *AppointmentRepository) CustomerStats(ctx context.Context, customerID string) (booking.Stats, error) {
	var st booking.Stats
	err := r.pool.QueryRow(ctx, `
		SELECT count(*),
		       count(*) FILTER (WHERE status IN ('PENDING', 'CONFIRMED', 'RESCHEDULED') AND appointment_date > now()),
		       count(*) FILTER (WHERE status = 'COMPLETED'),
		       count(*) FILTER (WHERE status = 'CANCELLED'),
		       COALESCE(sum(total_price) FILTER (WHERE status = 'COMPLETED'), 0)
		FROM appointments
		WHERE customer_id = $1`, customerID).
		Scan(&st.Total, &st.Upcoming, &st.Completed, &st.Cancelled, &st.TotalSpent)
	if err != nil {
		return booking.Stats{}, fmt.Errorf("customer stats: %w", err)
	}
	return st, nil
}

// lockShopCalendar serializes bookings per shop for the rest of the
// transaction. hashtext folds the uuid into the bigint key space the
// advisory lock wants.
func lockShopCalendar(ctx context.Context, tx pgx.Tx, shopID string) error {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, shopID); err != nil {
		return fmt.Errorf("lock shop calendar: %w", err)
	}
	return nil
}

func hasOverlap(ctx context.Context, tx pgx.Tx, shopID string, start, end time.Time, excludeID string) (bool, error) {
	var exclude any
	if excludeID != "" {
		exclude = excludeID
	}
	var taken bool
	err := tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE shop_id = $1
			  AND status IN ('PENDING', 'CONFIRMED', 'RESCHEDULED')
			  AND appointment_date < $3
			  AND appointment_date + make_interval(mins => total_duration) > $2
			  AND ($4::uuid IS NULL OR id <> $4::uuid)
		)`, shopID, start, end, exclude).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("check overlap: %w", err)
	}
	return taken, nil
}

func errSlotTaken() error {
	return booking.E(booking.KindConflict, "time slot is already booked")
}

// mapWriteError turns an exclusion-constraint violation into the same
// conflict the explicit check reports. Any other error is a storage
// failure.
func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgExclusionViolation {
		return errSlotTaken()
	}
	return fmt.Errorf("write appointment: %w", err)
}

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var (
		a        model.Appointment
		services []byte
		status   string
	)
	err := row.Scan(
		&a.ID, &a.ShopID, &a.CustomerID, &a.AppointmentDate, &services,
		&a.TotalDuration, &a.TotalPrice, &status, &a.Notes, &a.ReminderTime, &a.ReminderSent,
		&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return model.Appointment{}, err
	}
	a.Status = model.Status(status)
	if len(services) > 0 {
		if err := json.Unmarshal(services, &a.Services); err != nil {
			return model.Appointment{}, fmt.Errorf("decode services: %w", err)
		}
	}
	return a, nil
}
