package tracing

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// SpanStatus is the final state recorded on a span.
type SpanStatus string

const (
	StatusUnset SpanStatus = "unset"
	StatusOK    SpanStatus = "ok"
	StatusError SpanStatus = "error"
)

var disabled = noop.NewTracerProvider().Tracer("")

// Span wraps an OpenTelemetry span. The zero value and spans started while
// tracing is disabled accept every call and record nothing.
type Span struct {
	span trace.Span
}

type spanConfig struct {
	kind  trace.SpanKind
	attrs []attribute.KeyValue
}

// SpanStartOption configures StartSpan.
type SpanStartOption func(*spanConfig)

// AsServer marks the span as handling an inbound request.
func AsServer() SpanStartOption {
	return func(cfg *spanConfig) { cfg.kind = trace.SpanKindServer }
}

// WithAttributes attaches attributes when the span starts.
func WithAttributes(attrs map[string]any) SpanStartOption {
	return func(cfg *spanConfig) {
		cfg.attrs = append(cfg.attrs, toAttributes(attrs)...)
	}
}

// StartSpan begins a span under whatever span ctx already carries.
func StartSpan(ctx context.Context, name string, opts ...SpanStartOption) (context.Context, *Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := spanConfig{kind: trace.SpanKindInternal}
	for _, opt := range opts {
		opt(&cfg)
	}
	ctx, span := currentTracer().Start(ctx, name, trace.WithSpanKind(cfg.kind), trace.WithAttributes(cfg.attrs...))
	return ctx, &Span{span: span}
}

// TraceIDFromContext returns the hex trace id carried by ctx, or "".
func TraceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}

// TraceID returns the span's trace id, or "" when it is not recording.
func (s *Span) TraceID() string {
	if s == nil || s.span == nil {
		return ""
	}
	sc := s.span.SpanContext()
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}

func (s *Span) SetAttribute(key string, value any) {
	key = strings.TrimSpace(key)
	if s == nil || s.span == nil || key == "" {
		return
	}
	s.span.SetAttributes(toAttribute(key, value))
}

// RecordError attaches err to the span and marks it failed.
func (s *Span) RecordError(err error) {
	if s == nil || s.span == nil || err == nil {
		return
	}
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

func (s *Span) End() {
	if s == nil || s.span == nil {
		return
	}
	s.span.End()
}

// EndWithStatus sets the final status and ends the span.
func (s *Span) EndWithStatus(status SpanStatus, description string) {
	if s == nil || s.span == nil {
		return
	}
	switch status {
	case StatusOK:
		s.span.SetStatus(codes.Ok, description)
	case StatusError:
		s.span.SetStatus(codes.Error, description)
	}
	s.span.End()
}

func toAttributes(attrs map[string]any) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, toAttribute(k, v))
		}
	}
	return out
}

func toAttribute(key string, value any) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case bool:
		return attribute.Bool(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	case []string:
		return attribute.StringSlice(key, v)
	case fmt.Stringer:
		return attribute.String(key, v.String())
	default:
		return attribute.String(key, fmt.Sprint(v))
	}
}
