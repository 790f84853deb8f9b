package tracing

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Setup installs a global tracer provider that reports every finished span
// to log at debug level. When disabled it leaves the no-op provider in place.
// The returned shutdown flushes pending spans.
func Setup(enabled bool, log *slog.Logger) func(context.Context) error {
	if !enabled {
		return func(context.Context) error { return nil }
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(NewLogExporter(log)))
	otel.SetTracerProvider(tp)
	return tp.Shutdown
}

// LogExporter is a span exporter that writes one structured log record per
// span.
type LogExporter struct {
	log *slog.Logger
}

var _ sdktrace.SpanExporter = (*LogExporter)(nil)

// NewLogExporter creates an exporter writing to log.
func NewLogExporter(log *slog.Logger) *LogExporter {
	return &LogExporter{log: log}
}

// ExportSpans implements sdktrace.SpanExporter.
func (e *LogExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, s := range spans {
		attrs := []any{
			"trace_id", s.SpanContext().TraceID().String(),
			"span_id", s.SpanContext().SpanID().String(),
			"duration", s.EndTime().Sub(s.StartTime()),
		}
		if s.Parent().IsValid() {
			attrs = append(attrs, "parent_id", s.Parent().SpanID().String())
		}
		for _, kv := range s.Attributes() {
			attrs = append(attrs, string(kv.Key), attrValue(kv.Value))
		}
		level := slog.LevelDebug
		if s.Status().Code == codes.Error {
			level = slog.LevelWarn
			attrs = append(attrs, "status", s.Status().Description)
		}
		e.log.Log(ctx, level, "span "+s.Name(), attrs...)
	}
	return nil
}

// Shutdown implements sdktrace.SpanExporter.
func (e *LogExporter) Shutdown(context.Context) error { return nil }

func attrValue(v attribute.Value) any {
	switch v.Type() {
	case attribute.BOOL:
		return v.AsBool()
	case attribute.INT64:
		return v.AsInt64()
	case attribute.FLOAT64:
		return v.AsFloat64()
	default:
		return v.Emit()
	}
}
