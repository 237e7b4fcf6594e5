package observability

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusObserver exports operation events as Prometheus metrics:
// a counter labelled by component/operation/status and a duration histogram.
// Every service should register it on its own registry to avoid metric name
// collisions between embedded engines.
type PrometheusObserver struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	resultCardinality *prometheus.HistogramVec
}

// NewPrometheusObserver creates the collectors and registers them on reg.
func NewPrometheusObserver(reg prometheus.Registerer) *PrometheusObserver {
	o := &PrometheusObserver{
		operationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vecengine_operations_total",
			Help: "Total engine operations by component, operation and status",
		}, []string{"component", "operation", "status"}),
		operationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vecengine_operation_duration_seconds",
			Help:    "Engine operation latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"component", "operation"}),
		resultCardinality: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vecengine_operation_results",
			Help:    "Result cardinality per engine operation",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}, []string{"component", "operation"}),
	}
	reg.MustRegister(o.operationsTotal, o.operationDuration, o.resultCardinality)
	return o
}

// ObserveOperation implements Observer.
func (o *PrometheusObserver) ObserveOperation(_ context.Context, op OperationContext) {
	status := "ok"
	if op.Error != nil {
		status = "error"
	}
	o.operationsTotal.WithLabelValues(op.Component, op.Operation, status).Inc()
	o.operationDuration.WithLabelValues(op.Component, op.Operation).Observe(op.Duration.Seconds())
	if op.Error == nil {
		o.resultCardinality.WithLabelValues(op.Component, op.Operation).Observe(float64(op.ResultCount))
	}
}
