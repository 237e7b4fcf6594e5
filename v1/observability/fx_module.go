package observability

import "go.uber.org/fx"

// FXModule provides the Prometheus observer to an Fx application.
// The application supplies a prometheus.Registerer; add the tracing
// observer with fx.Provide(NewTracingObserver) when a TracerProvider is
// available, and combine both with MultiObserver.
var FXModule = fx.Module("observability",
	fx.Provide(
		NewPrometheusObserver,
		func(p *PrometheusObserver) Observer { return p },
	),
)
