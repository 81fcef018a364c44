package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	otelx "barberbook/libs/otel"
)

// Repository stores events in the outbox_events table. Writes happen in
// the caller's transaction so an event is committed if and only if the
// state change it describes is.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InsertTx queues an event inside an open transaction. The current trace
// context is captured on the row.
func (r *Repository) InsertTx(ctx context.Context, tx pgx.Tx, eventType, aggregateType, aggregateID string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}
	traceparent, tracestate := otelx.TraceContextStrings(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO outbox_events (id, aggregate_type, aggregate_id, event_type, payload, traceparent, tracestate)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.NewString(), aggregateType, aggregateID, eventType, body, traceparent, tracestate)
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

// PublishPending claims up to limit unpublished events and hands each to
// publish. Claimed rows are locked with SKIP LOCKED so concurrent
// publishers never double-send; rows are marked published only after the
// publish callback succeeds. Returns the number published.
func (r *Repository) PublishPending(ctx context.Context, limit int, publish func(context.Context, Event) error) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin outbox tx: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT id::text, aggregate_type, aggregate_id::text, event_type, payload, traceparent, tracestate, created_at
		FROM outbox_events
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED`, limit)
	if err != nil {
		return 0, fmt.Errorf("claim outbox events: %w", err)
	}

	var events []Event
	for rows.Next() {
		var ev Event
		if err := rows.Scan(&ev.ID, &ev.AggregateType, &ev.AggregateID, &ev.EventType, &ev.Payload, &ev.Traceparent, &ev.Tracestate, &ev.CreatedAt); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan outbox event: %w", err)
		}
		events = append(events, ev)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	published := 0
	for _, ev := range events {
		if err := publish(ctx, ev); err != nil {
			// Leave the row unpublished; the next tick retries it.
			break
		}
		if _, err := tx.Exec(ctx, `UPDATE outbox_events SET published_at = now() WHERE id = $1`, ev.ID); err != nil {
			return published, fmt.Errorf("mark outbox event published: %w", err)
		}
		published++
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit outbox tx: %w", err)
	}
	return published, nil
}
