package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"barberbook/libs/kafkax"
	otelx "barberbook/libs/otel"
)

const (
	defaultBatchSize    = 100
	defaultPollInterval = 2 * time.Second
)

// Publisher drains the outbox to Kafka on a fixed tick.
type Publisher struct {
	repo     *Repository
	writer   *kafka.Writer
	logger   *slog.Logger
	interval time.Duration
	batch    int
}

func NewPublisher(repo *Repository, brokers, topic string, logger *slog.Logger) *Publisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(kafkax.SplitBrokers(brokers)...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}
	return &Publisher{
		repo:     repo,
		writer:   writer,
		logger:   logger,
		interval: defaultPollInterval,
		batch:    defaultBatchSize,
	}
}

// Run drains the outbox until ctx is cancelled, then closes the writer.
func (p *Publisher) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	defer p.writer.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.repo.PublishPending(ctx, p.batch, p.send)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				p.logger.Error("outbox publish failed", "error", err)
				continue
			}
			if n > 0 {
				p.logger.Info("outbox events published", "count", n)
			}
		}
	}
}

func (p *Publisher) send(ctx context.Context, ev Event) error {
	msgCtx := otelx.ContextWithTraceContext(ctx, ev.Traceparent, ev.Tracestate)

	headers := []kafka.Header{
		{Key: "event_id", Value: []byte(ev.ID)},
		{Key: "event_type", Value: []byte(ev.EventType)},
	}
	headers = kafkax.InjectTraceHeaders(msgCtx, headers)

	// Key by aggregate so all events of one appointment land in order on
	// the same partition.
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(ev.AggregateID),
		Value:   ev.Payload,
		Headers: headers,
	})
}
