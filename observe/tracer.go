package observe

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Operation describes a traced dependency call.
type Operation struct {
	Name      string // span suffix, e.g. "process_pdf" or "validate_token"
	Method    string
	Path      string
	Partition string // cache partition; never the raw token
}

// SpanName returns "trustgate.<name>".
func (o Operation) SpanName() string {
	return "trustgate." + o.Name
}

// Tracer wraps OpenTelemetry tracing for gateway operations.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a client span for op.
	StartSpan(ctx context.Context, op Operation) (context.Context, trace.Span)

	// EndSpan ends the span, recording any error.
	EndSpan(span trace.Span, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer wraps an OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

// NopTracer returns a Tracer whose spans are never recorded.
func NopTracer() Tracer {
	return &tracerImpl{tracer: tracenoop.NewTracerProvider().Tracer("noop")}
}

func (t *tracerImpl) StartSpan(ctx context.Context, op Operation) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("trustgate.operation", op.Name),
	}
	if op.Method != "" {
		attrs = append(attrs, attribute.String("http.request.method", op.Method))
	}
	if op.Path != "" {
		attrs = append(attrs, attribute.String("url.path", op.Path))
	}
	if op.Partition != "" {
		attrs = append(attrs, attribute.String("trustgate.partition", op.Partition))
	}

	return t.tracer.Start(ctx, op.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// InjectTraceContext writes the W3C traceparent of the span in ctx into
// header, so backend logs can be joined with gateway traces. It is a no-op
// until tracing is enabled.
func InjectTraceContext(ctx context.Context, header http.Header) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(header))
}
