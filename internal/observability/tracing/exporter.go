package tracing

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// SpanSnapshot is the JSON line written for every finished span. Cipher
// spans also surface their operation and outcome at the top level so the
// file can be filtered without digging into attributes.
type SpanSnapshot struct {
	TraceID      string         `json:"trace_id"`
	SpanID       string         `json:"span_id"`
	ParentSpanID string         `json:"parent_span_id,omitempty"`
	Service      string         `json:"service,omitempty"`
	Name         string         `json:"name"`
	Kind         string         `json:"kind"`
	Operation    string         `json:"operation,omitempty"`
	Outcome      string         `json:"outcome,omitempty"`
	Status       SpanStatus     `json:"status"`
	Error        string         `json:"error,omitempty"`
	Start        time.Time      `json:"start"`
	DurationMS   float64        `json:"duration_ms"`
	Attributes   map[string]any `json:"attributes,omitempty"`
}

func snapshot(span sdktrace.ReadOnlySpan) (SpanSnapshot, bool) {
	sc := span.SpanContext()
	if !sc.IsValid() {
		return SpanSnapshot{}, false
	}
	snap := SpanSnapshot{
		TraceID:    sc.TraceID().String(),
		SpanID:     sc.SpanID().String(),
		Name:       span.Name(),
		Kind:       span.SpanKind().String(),
		Status:     StatusUnset,
		Start:      span.StartTime().UTC(),
		DurationMS: float64(span.EndTime().Sub(span.StartTime())) / float64(time.Millisecond),
	}
	if parent := span.Parent(); parent.IsValid() {
		snap.ParentSpanID = parent.SpanID().String()
	}
	if res := span.Resource(); res != nil {
		if v, ok := res.Set().Value(semconv.ServiceNameKey); ok {
			snap.Service = v.AsString()
		}
	}
	switch st := span.Status(); st.Code {
	case codes.Ok:
		snap.Status = StatusOK
	case codes.Error:
		snap.Status = StatusError
		snap.Error = st.Description
	}
	if attrs := span.Attributes(); len(attrs) > 0 {
		snap.Attributes = make(map[string]any, len(attrs))
		for _, kv := range attrs {
			switch kv.Key {
			case "cipher.operation":
				snap.Operation = kv.Value.AsString()
			case "cipher.outcome":
				snap.Outcome = kv.Value.AsString()
			default:
				snap.Attributes[string(kv.Key)] = kv.Value.AsInterface()
			}
		}
	}
	return snap, true
}

// jsonlExporter writes one SpanSnapshot per line to a file and/or writer.
type jsonlExporter struct {
	mu   sync.Mutex
	enc  *json.Encoder
	file *os.File
}

var _ sdktrace.SpanExporter = (*jsonlExporter)(nil)

func newJSONLExporter(cfg Config) (*jsonlExporter, error) {
	exp := &jsonlExporter{}
	var out []io.Writer
	if path := strings.TrimSpace(cfg.FilePath); path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, err
		}
		exp.file = f
		out = append(out, f)
	}
	if cfg.Writer != nil {
		out = append(out, cfg.Writer)
	}
	if len(out) == 0 {
		return nil, nil
	}
	exp.enc = json.NewEncoder(io.MultiWriter(out...))
	exp.enc.SetEscapeHTML(false)
	return exp, nil
}

func (e *jsonlExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, span := range spans {
		if err := ctx.Err(); err != nil {
			return err
		}
		snap, ok := snapshot(span)
		if !ok {
			continue
		}
		if err := e.enc.Encode(snap); err != nil {
			return err
		}
	}
	return nil
}

func (e *jsonlExporter) Shutdown(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.file == nil {
		return nil
	}
	err := e.file.Close()
	e.file = nil
	return err
}
