package otelx

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// InjectHeader writes the W3C trace context of ctx into header.
func InjectHeader(ctx context.Context, header map[string]string) {
	if header == nil {
		return
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(header))
}

// ExtractHeader returns ctx extended with the trace context found in header.
func ExtractHeader(ctx context.Context, header map[string]string) context.Context {
	if len(header) == 0 {
		return ctx
	}
	return otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(header))
}
