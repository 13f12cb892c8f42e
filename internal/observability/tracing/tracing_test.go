package tracing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func setupBuffer(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	shutdown, err := Setup(context.Background(), Config{
		ServiceName: "cipherlab-test",
		SampleRatio: 1,
		Writer:      &buf,
		Synchronous: true,
	})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	t.Cleanup(func() { _ = shutdown(context.Background()) })
	return &buf
}

func decodeSpans(t *testing.T, buf *bytes.Buffer) []SpanSnapshot {
	t.Helper()
	var spans []SpanSnapshot
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var snap SpanSnapshot
		if err := json.Unmarshal([]byte(line), &snap); err != nil {
			t.Fatalf("decode span %q: %v", line, err)
		}
		spans = append(spans, snap)
	}
	return spans
}

func TestStartSpanExportsJSONL(t *testing.T) {
	buf := setupBuffer(t)

	ctx, parent := StartSpan(context.Background(), "pipeline", WithAttributes(map[string]any{"steps": 2}))
	_, child := StartSpan(ctx, "cipher.caesar_encrypt")
	child.SetAttribute("cipher.operation", "caesar_encrypt")
	child.RecordError(errors.New("shift: missing"))
	child.End()
	parent.EndWithStatus(StatusOK, "")

	spans := decodeSpans(t, buf)
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d: %s", len(spans), buf.String())
	}
	childSnap, parentSnap := spans[0], spans[1]
	if childSnap.Name != "cipher.caesar_encrypt" || childSnap.Status != StatusError {
		t.Fatalf("unexpected child span %+v", childSnap)
	}
	if childSnap.ParentSpanID != parentSnap.SpanID || childSnap.TraceID != parentSnap.TraceID {
		t.Fatalf("child not linked to parent: %+v / %+v", childSnap, parentSnap)
	}
	if parentSnap.Status != StatusOK || parentSnap.Service != "cipherlab-test" {
		t.Fatalf("unexpected parent span %+v", parentSnap)
	}
	if childSnap.Operation != "caesar_encrypt" || childSnap.Error != "shift: missing" {
		t.Fatalf("operation and error should be lifted out of attributes: %+v", childSnap)
	}
	if parentSnap.Attributes["steps"] != float64(2) {
		t.Fatalf("missing attribute: %+v", parentSnap.Attributes)
	}
}

func TestDisabledTracerIsNoop(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{SampleRatio: 0})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	defer shutdown(context.Background())
	if Enabled() {
		t.Fatal("expected no tracer when sampling is disabled")
	}
	ctx, span := StartSpan(context.Background(), "noop")
	span.SetAttribute("k", "v")
	span.End()
	if TraceIDFromContext(ctx) != "" {
		t.Fatal("noop span must not invent a trace id")
	}
}

func TestMetadataPropagation(t *testing.T) {
	buf := setupBuffer(t)
	const traceID = "4bf92f3577b34da6a3ce929d0e0e4736"

	in := metadata.Pairs("traceparent", "00-"+traceID+"-00f067aa0ba902b7-01")
	ctx := ContextFromMetadata(metadata.NewIncomingContext(context.Background(), in))
	if got := TraceIDFromContext(ctx); got != traceID {
		t.Fatalf("expected remote trace %s, got %q", traceID, got)
	}

	ctx, span := StartSpan(ctx, "cipher.detect")
	out := InjectMetadata(ctx)
	md, _ := metadata.FromOutgoingContext(out)
	if got := md.Get("traceparent"); len(got) != 1 || !strings.Contains(got[0], traceID) {
		t.Fatalf("expected outgoing traceparent for %s, got %v", traceID, got)
	}
	span.End()

	spans := decodeSpans(t, buf)
	if len(spans) != 1 || spans[0].ParentSpanID != "00f067aa0ba902b7" {
		t.Fatalf("unexpected spans %+v", spans)
	}

	if got := ContextFromMetadata(context.Background()); TraceIDFromContext(got) != "" {
		t.Fatal("missing metadata must not yield a trace")
	}
}

func TestUnaryServerInterceptorRecordsStatus(t *testing.T) {
	buf := setupBuffer(t)
	interceptor := UnaryServerInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: "/cipherlab.v1.Cipher/Execute"}

	_, err := interceptor(context.Background(), nil, info, func(context.Context, any) (any, error) {
		return nil, status.Error(codes.InvalidArgument, "shift: missing")
	})
	if err == nil {
		t.Fatal("expected handler error to pass through")
	}

	spans := decodeSpans(t, buf)
	if len(spans) != 1 {
		t.Fatalf("expected one span, got %d", len(spans))
	}
	got := spans[0]
	if got.Kind != "server" || got.Status != StatusError {
		t.Fatalf("unexpected span %+v", got)
	}
	if got.Attributes["rpc.service"] != "cipherlab.v1.Cipher" || got.Attributes["rpc.method"] != "Execute" {
		t.Fatalf("unexpected rpc attributes %+v", got.Attributes)
	}
	if got.Attributes["rpc.grpc.status_code"] != "InvalidArgument" {
		t.Fatalf("expected status code attribute, got %+v", got.Attributes)
	}
}

func TestMiddlewareContinuesTrace(t *testing.T) {
	buf := setupBuffer(t)
	const traceID = "4bf92f3577b34da6a3ce929d0e0e4736"

	var seen string
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = TraceIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("traceparent", "00-"+traceID+"-00f067aa0ba902b7-01")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if seen != traceID {
		t.Fatalf("expected handler to see trace %s, got %q", traceID, seen)
	}
	if !strings.Contains(rr.Header().Get("traceparent"), traceID) {
		t.Fatalf("expected traceparent echo, got %q", rr.Header().Get("traceparent"))
	}
	spans := decodeSpans(t, buf)
	if len(spans) != 1 || spans[0].Kind != "server" || spans[0].ParentSpanID != "00f067aa0ba902b7" {
		t.Fatalf("unexpected spans %+v", spans)
	}
}
