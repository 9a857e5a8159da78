package events

import (
	"context"
	"fmt"
	"strconv"

	"github.com/md-rashed-zaman/tasktracker/libs/broker"
	"github.com/md-rashed-zaman/tasktracker/libs/metrics"
	otelx "github.com/md-rashed-zaman/tasktracker/libs/otel"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Bus serializes events through the registry and publishes them on their
// topic.
type Bus struct {
	publisher broker.Publisher
	registry  *Registry
	metrics   *metrics.Events
}

func NewBus(publisher broker.Publisher, registry *Registry, m *metrics.Events) *Bus {
	return &Bus{publisher: publisher, registry: registry, metrics: m}
}

func (b *Bus) Registry() *Registry { return b.registry }

// Send publishes e and waits for the broker to accept it.
func (b *Bus) Send(ctx context.Context, e Event) error {
	env, payload, err := b.registry.Encode(e)
	if err != nil {
		return err
	}
	topic := Identity{Name: env.Name, Version: env.Version}.Topic()

	ctx, span := otel.Tracer("events").Start(ctx, "event.publish",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.destination", topic),
			attribute.String("messaging.message_id", env.ID),
		),
	)
	defer span.End()

	header := broker.Header{
		broker.HeaderEventID:      env.ID,
		broker.HeaderEventName:    env.Name,
		broker.HeaderEventVersion: strconv.Itoa(env.Version),
	}
	otelx.InjectHeader(ctx, header)

	err = b.publisher.Publish(ctx, broker.Message{
		Subject: topic,
		Key:     e.AggregateID(),
		Data:    payload,
		Header:  header,
	})
	b.metrics.ObservePublish(topic, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "publish failed")
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}
