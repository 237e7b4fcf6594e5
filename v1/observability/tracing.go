package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracingObserver records each operation as a zero-duration annotated span
// on the ambient trace. The engine defines the event shape only; exporter
// and sampler configuration belong to the embedding application.
type TracingObserver struct {
	tracer trace.Tracer
}

// NewTracingObserver wraps a tracer obtained from the application's
// TracerProvider.
func NewTracingObserver(tp trace.TracerProvider) *TracingObserver {
	return &TracingObserver{tracer: tp.Tracer("vecengine")}
}

// ObserveOperation implements Observer.
func (t *TracingObserver) ObserveOperation(ctx context.Context, op OperationContext) {
	_, span := t.tracer.Start(ctx, op.Component+"."+op.Operation)
	span.SetAttributes(
		attribute.String("vecengine.component", op.Component),
		attribute.String("vecengine.operation", op.Operation),
		attribute.String("vecengine.collection", op.Collection),
		attribute.Int64("vecengine.duration_us", op.Duration.Microseconds()),
		attribute.Int("vecengine.result_count", op.ResultCount),
	)
	if op.Error != nil {
		span.RecordError(op.Error)
		span.SetStatus(codes.Error, op.Error.Error())
	}
	span.End()
}
