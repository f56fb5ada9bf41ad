// Package tracing provides a thin wrapper over a real OpenTelemetry tracer
// provider, used to bracket the alarm worker's per-reading evaluation cycle
// with spans that the logging package correlates against. Webhook delivery
// and message decoding are not traced.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Span is the minimal span surface callers interact with.
type Span interface {
	End()
	AddEvent(name string, attrs ...attribute.KeyValue)
	RecordError(err error)
}

// Tracer starts spans. Implementations must be safe for concurrent use.
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, Span)
}

type otelTracer struct {
	tracer oteltrace.Tracer
}

// New builds a Tracer backed by a fresh, in-process OpenTelemetry
// TracerProvider tagged with serviceName/environment resource attributes.
// The provider is installed as the global OpenTelemetry provider and is not
// returned to the caller. No exporter is configured, so spans are not
// shipped anywhere.
func New(serviceName, environment string) Tracer {
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(resource.NewSchemaless(
			semconv.ServiceName(serviceName),
			semconv.DeploymentEnvironment(environment),
		)),
	)
	otel.SetTracerProvider(tp)
	return &otelTracer{tracer: otel.Tracer(serviceName)}
}

func (t *otelTracer) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, name, oteltrace.WithAttributes(attrs...))
	return ctx, &otelSpan{span: span}
}

type otelSpan struct {
	span oteltrace.Span
}

func (s *otelSpan) End() { s.span.End() }

func (s *otelSpan) AddEvent(name string, attrs ...attribute.KeyValue) {
	s.span.AddEvent(name, oteltrace.WithAttributes(attrs...))
}

func (s *otelSpan) RecordError(err error) {
	if err == nil {
		return
	}
	s.span.RecordError(err)
	s.span.SetAttributes(attribute.String("error.message", fmt.Sprintf("%v", err)))
}

// NewNop returns a Tracer whose spans record nothing; used as a safe
// default for components constructed without an explicit tracer.
func NewNop() Tracer { return nopTracer{} }

type nopTracer struct{}

func (nopTracer) Start(ctx context.Context, _ string, _ ...attribute.KeyValue) (context.Context, Span) {
	return ctx, nopSpan{}
}

type nopSpan struct{}

func (nopSpan) End()                                      {}
func (nopSpan) AddEvent(string, ...attribute.KeyValue)    {}
func (nopSpan) RecordError(error)                         {}
