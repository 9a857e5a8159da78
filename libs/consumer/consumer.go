// Package consumer runs the pull loop that feeds broker deliveries to
// event handlers.
//
// Delivery is at-least-once from the broker's point of view but each
// message is acknowledged before its handlers run: a crash between the
// ack and the end of handling loses that delivery. Handlers must be
// idempotent because a redelivery before the ack is still possible.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/tasktracker/libs/broker"
	"github.com/md-rashed-zaman/tasktracker/libs/events"
	"github.com/md-rashed-zaman/tasktracker/libs/metrics"
	otelx "github.com/md-rashed-zaman/tasktracker/libs/otel"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Config struct {
	// Durable names the subscription shared by every instance.
	Durable string
	// Subjects filters the subscription. Empty means every topic that
	// has a handler.
	Subjects     []string
	BatchSize    int
	MaxWait      time.Duration
	RetryBackoff time.Duration
}

// Factory creates a fresh unit of work for one handler invocation.
type Factory[U Unit] func(ctx context.Context) (U, error)

type Consumer[U Unit] struct {
	subscriber broker.Subscriber
	registry   *events.Registry
	table      *Table[U]
	newUnit    Factory[U]
	logger     *slog.Logger
	metrics    *metrics.Events
	cfg        Config
}

func New[U Unit](
	subscriber broker.Subscriber,
	registry *events.Registry,
	table *Table[U],
	newUnit Factory[U],
	logger *slog.Logger,
	m *metrics.Events,
	cfg Config,
) *Consumer[U] {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = 5 * time.Second
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = time.Second
	}
	return &Consumer[U]{
		subscriber: subscriber,
		registry:   registry,
		table:      table,
		newUnit:    newUnit,
		logger:     logger,
		metrics:    m,
		cfg:        cfg,
	}
}

// Run subscribes and processes batches until ctx is cancelled. It only
// returns an error when the subscription cannot be established.
func (c *Consumer[U]) Run(ctx context.Context) error {
	subjects := c.cfg.Subjects
	if len(subjects) == 0 {
		var err error
		if subjects, err = c.table.Subjects(c.registry); err != nil {
			return err
		}
	}
	sub, err := c.subscriber.PullSubscribe(ctx, c.cfg.Durable, subjects)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", c.cfg.Durable, err)
	}
	defer func() { _ = sub.Close() }()

	c.logger.Info("consumer started", "durable", c.cfg.Durable, "subjects", subjects, "batch_size", c.cfg.BatchSize)
	for {
		if ctx.Err() != nil {
			c.logger.Info("consumer stopped")
			return nil
		}
		batch, err := sub.Fetch(ctx, c.cfg.BatchSize, c.cfg.MaxWait)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			c.logger.Error("fetch failed", "err", err)
			select {
			case <-ctx.Done():
			case <-time.After(c.cfg.RetryBackoff):
			}
			continue
		}
		for _, d := range batch {
			if ctx.Err() != nil {
				// Left unacknowledged; the broker redelivers it.
				break
			}
			c.Process(ctx, d)
		}
	}
}

// Process acknowledges d, decodes it and runs its handlers. It never
// fails; the returned outcome is one of the metrics.Outcome* values.
func (c *Consumer[U]) Process(ctx context.Context, d broker.Delivery) string {
	msg := d.Message()
	ctx = otelx.ExtractHeader(ctx, msg.Header)
	ctx, span := otel.Tracer("events").Start(ctx, "event.consume",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.destination", msg.Subject),
			attribute.String("messaging.message_id", msg.Header[broker.HeaderEventID]),
		),
	)
	defer span.End()

	outcome := c.process(ctx, d, span)
	c.metrics.ObserveConsumed(msg.Subject, outcome)
	return outcome
}

func (c *Consumer[U]) process(ctx context.Context, d broker.Delivery, span trace.Span) string {
	msg := d.Message()
	if err := d.Ack(ctx); err != nil {
		c.logger.Warn("ack failed; leaving message for redelivery", "err", err, "subject", msg.Subject)
		span.RecordError(err)
		return metrics.OutcomeAckFailed
	}

	env, evt, err := c.registry.Decode(msg.Data)
	if err != nil {
		c.logger.Warn("cannot decode message into event; skipping",
			"err", err,
			"subject", msg.Subject,
			"name", env.Name,
			"version", env.Version,
		)
		span.RecordError(err)
		return metrics.OutcomeUndecodable
	}

	handlers := c.table.For(evt)
	if len(handlers) == 0 {
		c.logger.Info("event has no handlers; skipping", "event", env.Name, "version", env.Version, "event_id", env.ID)
		return metrics.OutcomeNoHandler
	}

	for _, h := range handlers {
		c.logger.Debug("calling handler", "handler", h.Name(), "event", env.Name, "event_id", env.ID)
		if err := c.invoke(ctx, h, evt, msg.Subject); err != nil {
			c.logger.Error("event handler failed; skipping remaining handlers",
				"err", err,
				"handler", h.Name(),
				"event", env.Name,
				"event_id", env.ID,
			)
			span.RecordError(err)
			span.SetStatus(codes.Error, "handler failed")
			return metrics.OutcomeHandlerError
		}
	}
	return metrics.OutcomeHandled
}

func (c *Consumer[U]) invoke(ctx context.Context, h Registration[U], evt events.Event, topic string) (err error) {
	u, err := c.newUnit(ctx)
	if err != nil {
		return fmt.Errorf("new unit of work: %w", err)
	}
	defer u.Close()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errHandlerPanic, r)
		}
	}()

	start := time.Now()
	err = h.fn(ctx, u, evt)
	c.metrics.ObserveHandler(topic, time.Since(start))
	return err
}

var errHandlerPanic = errors.New("handler panicked")
