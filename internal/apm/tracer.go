// Package apm wires OpenTelemetry tracing for services and adapters.
package apm

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer starts spans for one instrumentation scope.
type Tracer interface {
	StartSpanFromContext(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, Span)
	GetTracer() trace.Tracer
}

// Span is the subset of trace.Span the services use, plus status helpers.
type Span interface {
	SetAttributes(values ...attribute.KeyValue)
	AddEvent(name string, options ...trace.EventOption)
	SetStatus(code codes.Code, description string)
	NoticeError(err error)
	Ok(description string)
	End(options ...trace.SpanEndOption)
}

type openTracer struct {
	tracer trace.Tracer
}

// NewTracer returns a Tracer backed by the global provider, so spans are
// no-ops until a provider is installed.
func NewTracer(name string) Tracer {
	return &openTracer{otel.Tracer(name)}
}

func (t *openTracer) StartSpanFromContext(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, name, opts...)
	return ctx, &traceSpan{span}
}

func (t *openTracer) GetTracer() trace.Tracer {
	return t.tracer
}

type traceSpan struct {
	span trace.Span
}

func (t *traceSpan) SetAttributes(values ...attribute.KeyValue) {
	t.span.SetAttributes(values...)
}

func (t *traceSpan) AddEvent(name string, options ...trace.EventOption) {
	t.span.AddEvent(name, options...)
}

func (t *traceSpan) SetStatus(code codes.Code, description string) {
	t.span.SetStatus(code, description)
}

// NoticeError records err and marks the span failed.
func (t *traceSpan) NoticeError(err error) {
	t.span.RecordError(err)
	t.span.SetStatus(codes.Error, err.Error())
}

func (t *traceSpan) Ok(description string) {
	t.span.SetStatus(codes.Ok, description)
}

func (t *traceSpan) End(options ...trace.SpanEndOption) {
	t.span.End(options...)
}
