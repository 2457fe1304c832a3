package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the instrumentation scope for all spans emitted by the
// analysis server.
const tracerName = "github.com/robpineda/voiceonstudio"

// Tracer returns the tracer backed by the globally registered
// [trace.TracerProvider].
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSpan opens a span under the analysis server's tracer. Callers own the
// returned span and must End it. Pipeline stages use dotted names like
// "analysis.Analyze" so a trace reads as the path one take took through the
// pipeline.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

// CorrelationID returns the active trace ID, the identifier handed back to
// API clients for cross-referencing server logs. Empty when ctx carries no
// recording span.
func CorrelationID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}

// Logger returns the default slog logger annotated with the trace and span
// IDs from ctx, so every log line written during an analysis can be joined
// back to its trace. Without an active span it is just [slog.Default].
func Logger(ctx context.Context) *slog.Logger {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return slog.Default()
	}
	return slog.Default().With(
		slog.String("trace_id", sc.TraceID().String()),
		slog.String("span_id", sc.SpanID().String()),
	)
}
