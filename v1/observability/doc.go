// Package observability defines the fire-and-forget operation event emitted
// by every engine component (operation name, duration, result cardinality,
// error) and two stock exporters: Prometheus metrics and OpenTelemetry
// spans. The engine reports events; it never owns exporter lifecycle.
package observability
