// Package tracing installs the OpenTelemetry tracer provider used by the
// review coordinator. Spans are reported through the structured logger; with
// tracing disabled the global no-op provider stays in place.
package tracing
