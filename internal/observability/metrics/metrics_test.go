package metrics

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func scrape(t *testing.T) string {
	t.Helper()
	req := httptest.NewRequest("GET", "/metrics", nil)
	rr := httptest.NewRecorder()
	Handler().ServeHTTP(rr, req)
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("unexpected content type %q", ct)
	}
	return rr.Body.String()
}

func TestHandlerExportsMetrics(t *testing.T) {
	Reset()
	body := scrape(t)
	required := []string{
		"# HELP cipherlab_operations_total",
		"# TYPE cipherlab_operation_duration_seconds histogram",
		"# HELP cipherlab_http_requests_total",
		"# HELP cipherlab_rpc_requests_total",
		"# TYPE cipherlab_registered_operations gauge",
	}
	for _, metric := range required {
		if !strings.Contains(body, metric) {
			t.Fatalf("expected metric %q to be exported, got %q", metric, body)
		}
	}
}

func TestRecordOperation(t *testing.T) {
	Reset()
	RecordOperation(context.Background(), "caesar_encrypt", OutcomeOK, 2*time.Millisecond)
	RecordOperation(context.Background(), "caesar_encrypt", OutcomeOK, 20*time.Second)
	RecordOperation(context.Background(), "rsa_decrypt", OutcomeRange, time.Millisecond)

	if got := OperationCount("caesar_encrypt", OutcomeOK); got != 2 {
		t.Fatalf("expected 2 ok caesar runs, got %v", got)
	}
	if TotalOperations() != 3 {
		t.Fatalf("expected 3 total operations, got %d", TotalOperations())
	}

	body := scrape(t)
	lines := []string{
		`cipherlab_operations_total{operation="caesar_encrypt",outcome="ok"} 2`,
		`cipherlab_operations_total{operation="rsa_decrypt",outcome="range"} 1`,
		`cipherlab_operation_duration_seconds_bucket{operation="caesar_encrypt",le="0.005"} 1`,
		`cipherlab_operation_duration_seconds_bucket{operation="caesar_encrypt",le="5"} 1`,
		`cipherlab_operation_duration_seconds_bucket{operation="caesar_encrypt",le="+Inf"} 2`,
		`cipherlab_operation_duration_seconds_count{operation="caesar_encrypt"} 2`,
	}
	for _, line := range lines {
		if !strings.Contains(body, line) {
			t.Fatalf("expected line %q in:\n%s", line, body)
		}
	}
}

func TestHTTPAndRPCSeries(t *testing.T) {
	Reset()
	done := TrackInFlight()
	if !strings.Contains(scrape(t), "cipherlab_http_requests_in_flight 1") {
		t.Fatal("expected one request in flight")
	}
	done()
	closeStream := TrackStream()
	if OpenStreams() != 1 || !strings.Contains(scrape(t), "cipherlab_stream_connections 1") {
		t.Fatal("expected one open stream")
	}
	closeStream()
	RecordHTTPRequest(context.Background(), "/api/v1/cipher/execute", 422, time.Millisecond)
	RecordRPCRequest("/cipherlab.v1.Cipher/Execute", "InvalidArgument")
	SetRegisteredOperations("encrypt", 7)

	body := scrape(t)
	for _, line := range []string{
		"cipherlab_http_requests_in_flight 0",
		"cipherlab_stream_connections 0",
		`cipherlab_http_requests_total{route="/api/v1/cipher/execute",code="422"} 1`,
		`cipherlab_rpc_requests_total{method="/cipherlab.v1.Cipher/Execute",code="InvalidArgument"} 1`,
		`cipherlab_registered_operations{type="encrypt"} 7`,
	} {
		if !strings.Contains(body, line) {
			t.Fatalf("expected line %q in:\n%s", line, body)
		}
	}
}

func TestEscapeLabel(t *testing.T) {
	RecordRPCRequest("a\"b", "")
	body := scrape(t)
	if !strings.Contains(body, `method="a\"b",code="unknown"`) {
		t.Fatalf("expected escaped label, got:\n%s", body)
	}
}
