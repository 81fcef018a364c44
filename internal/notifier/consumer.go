package notifier

import (
	"context"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"barberbook/libs/kafkax"
)

// Handler processes one deduplicated event.
type Handler func(ctx context.Context, eventType string, msg kafka.Message) error

type ConsumerConfig struct {
	Brokers string
	GroupID string
	Topic   string
}

// Consumer reads the booking topic, dedupes through the inbox and hands
// each fresh event to the handler.
type Consumer struct {
	reader  *kafka.Reader
	logger  *slog.Logger
	inbox   *Inbox
	handler Handler
}

func NewConsumer(logger *slog.Logger, inbox *Inbox, cfg ConsumerConfig, handler Handler) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  kafkax.SplitBrokers(cfg.Brokers),
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &Consumer{
		reader:  reader,
		logger:  logger,
		inbox:   inbox,
		handler: handler,
	}
}

func (c *Consumer) Run(ctx context.Context) {
	defer c.reader.Close()

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka read error", "error", err)
			time.Sleep(time.Second)
			continue
		}

		msgCtx := kafkax.ExtractTraceContext(ctx, msg)
		spanCtx, span := otel.Tracer("kafka").Start(msgCtx, "kafka.consume",
			trace.WithAttributes(
				attribute.String("messaging.system", "kafka"),
				attribute.String("messaging.destination", msg.Topic),
			),
		)

		meta := kafkax.ExtractEventMeta(msg)

		fresh, err := c.inbox.Record(spanCtx, meta.EventID, meta.EventType)
		if err != nil {
			c.logger.Error("inbox record failed", "error", err, "event_id", meta.EventID)
			span.RecordError(err)
			span.End()
			continue
		}
		if !fresh {
			c.logger.Info("duplicate event ignored", "event_id", meta.EventID, "event_type", meta.EventType)
			span.End()
			continue
		}

		if err := c.handler(spanCtx, meta.EventType, msg); err != nil {
			c.logger.Error("event handler failed", "error", err, "event_id", meta.EventID)
			span.RecordError(err)
		}
		span.End()
	}
}
