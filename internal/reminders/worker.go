package reminders

import (
	"context"
	"log/slog"
	"time"
)

const defaultPollInterval = 30 * time.Second

// Worker drains due reminders on a fixed tick. Each reminder is marked
// sent individually so one failure does not block the batch.
type Worker struct {
	svc      *Service
	logger   *slog.Logger
	interval time.Duration
}

func NewWorker(svc *Service, logger *slog.Logger, interval time.Duration) *Worker {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Worker{svc: svc, logger: logger, interval: interval}
}

func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *Worker) tick(ctx context.Context) {
	due, err := w.svc.ListDue(ctx, 0)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Error("list due reminders failed", "error", err)
		}
		return
	}

	sent := 0
	for _, appt := range due {
		ok, err := w.svc.MarkSent(ctx, appt.ID)
		if err != nil {
			w.logger.Error("mark reminder sent failed", "appointment_id", appt.ID, "error", err)
			continue
		}
		if ok {
			sent++
		}
	}
	if sent > 0 {
		w.logger.Info("reminders dispatched", "count", sent)
	}
}
