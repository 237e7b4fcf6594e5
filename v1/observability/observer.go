package observability

import (
	"context"
	"time"
)

// OperationContext describes one completed engine operation. Events are
// fire-and-forget: observers must not block the calling operation and must
// never return errors into it.
type OperationContext struct {
	// Component is the emitting package, e.g. "qdrant" or "search".
	Component string

	// Operation is the logical operation name, e.g. "search", "upsert",
	// "hybrid_search".
	Operation string

	// Collection is the target collection, when applicable.
	Collection string

	// Duration is the wall-clock time the operation took.
	Duration time.Duration

	// ResultCount is the cardinality of the operation's result
	// (points returned, points ingested).
	ResultCount int

	// Error is the operation's failure, nil on success.
	Error error

	// Metadata carries operation-specific extras (batch sizes, pool slot).
	Metadata map[string]any
}

// Observer receives operation events. Implementations include the
// Prometheus collector and the OpenTelemetry span recorder in this package;
// applications may provide their own exporters.
type Observer interface {
	ObserveOperation(ctx context.Context, op OperationContext)
}

// NoopObserver discards all events. Useful default when observability is
// not wired.
type NoopObserver struct{}

func (NoopObserver) ObserveOperation(context.Context, OperationContext) {}

// MultiObserver fans an event out to several observers.
type MultiObserver []Observer

func (m MultiObserver) ObserveOperation(ctx context.Context, op OperationContext) {
	for _, o := range m {
		if o != nil {
			o.ObserveOperation(ctx, op)
		}
	}
}
