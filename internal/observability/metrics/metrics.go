// Package metrics keeps process-wide counters and histograms and renders them
// in the Prometheus text exposition format.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RowanDark/cipherlab/internal/observability/tracing"
)

type collector interface {
	write(sb *strings.Builder)
	reset()
}

// scalarVec backs both counters and gauges; kind is the exposition TYPE.
type scalarVec struct {
	name   string
	help   string
	kind   string
	labels []string

	mu     sync.RWMutex
	values map[string]float64
}

type histogramVec struct {
	name    string
	help    string
	labels  []string
	buckets []float64

	mu     sync.RWMutex
	values map[string]*histogramValue
}

type histogramValue struct {
	counts   []uint64
	sum      float64
	total    uint64
	exemplar *metricExemplar
}

type metricExemplar struct {
	traceID string
	value   float64
}

// Outcomes recorded against cipherlab_operations_total.
const (
	OutcomeOK         = "ok"
	OutcomeValidation = "validation"
	OutcomeRange      = "range"
	OutcomeFormat     = "format"
	OutcomeUnknown    = "unknown_operation"
	OutcomeCanceled   = "canceled"
	OutcomeError      = "error"
)

var (
	collectors []collector

	operations       = newScalarVec("counter", "cipherlab_operations_total", "Cipher operations executed, by operation and outcome.", []string{"operation", "outcome"})
	operationLatency = newHistogramVec("cipherlab_operation_duration_seconds", "Time spent executing a cipher operation.", []string{"operation"})
	httpRequests     = newScalarVec("counter", "cipherlab_http_requests_total", "HTTP requests served, by route template and status code.", []string{"route", "code"})
	httpLatency      = newHistogramVec("cipherlab_http_request_duration_seconds", "Latency of HTTP requests by route template.", []string{"route"})
	httpInFlight     = newScalarVec("gauge", "cipherlab_http_requests_in_flight", "HTTP requests currently being served.", nil)
	streamConns      = newScalarVec("gauge", "cipherlab_stream_connections", "Open websocket cipher streams.", nil)
	rpcRequests      = newScalarVec("counter", "cipherlab_rpc_requests_total", "gRPC requests served, by method and status code.", []string{"method", "code"})
	registeredOps    = newScalarVec("gauge", "cipherlab_registered_operations", "Operations available in the registry, by type.", []string{"type"})

	totalOperations uint64
	inFlight        int64
	openStreams     int64
)

func init() {
	collectors = []collector{operations, operationLatency, httpRequests, httpLatency, httpInFlight, streamConns, rpcRequests, registeredOps}
}

func newScalarVec(kind, name, help string, labels []string) *scalarVec {
	return &scalarVec{name: name, help: help, kind: kind, labels: labels, values: make(map[string]float64)}
}

func newHistogramVec(name, help string, labels []string) *histogramVec {
	return &histogramVec{
		name:    name,
		help:    help,
		labels:  labels,
		buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		values:  make(map[string]*histogramValue),
	}
}

// labelKey joins label values with a separator that cannot appear in them
// after sanitising.
func labelKey(labels []string, values []string) string {
	if len(values) != len(labels) {
		panic(fmt.Sprintf("expected %d labels, got %d", len(labels), len(values)))
	}
	return strings.Join(values, "\x1f")
}

// writeLabels renders {a="x",b="y"} plus any trailing extra pair, or nothing
// when there are no pairs at all.
func writeLabels(sb *strings.Builder, names []string, key string, extra ...string) {
	if len(names) == 0 && len(extra) == 0 {
		return
	}
	var parts []string
	if len(names) > 0 {
		parts = strings.Split(key, "\x1f")
	}
	sb.WriteString("{")
	for i, label := range names {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(label)
		sb.WriteString("=\"")
		sb.WriteString(escapeLabel(parts[i]))
		sb.WriteString("\"")
	}
	for i := 0; i+1 < len(extra); i += 2 {
		if len(names) > 0 || i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(extra[i])
		sb.WriteString("=\"")
		sb.WriteString(extra[i+1])
		sb.WriteString("\"")
	}
	sb.WriteString("}")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (v *scalarVec) add(delta float64, values ...string) {
	key := labelKey(v.labels, values)
	v.mu.Lock()
	v.values[key] += delta
	v.mu.Unlock()
}

func (v *scalarVec) set(val float64, values ...string) {
	key := labelKey(v.labels, values)
	v.mu.Lock()
	v.values[key] = val
	v.mu.Unlock()
}

func (v *scalarVec) value(values ...string) float64 {
	key := labelKey(v.labels, values)
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.values[key]
}

func (v *scalarVec) write(sb *strings.Builder) {
	writeHeader(sb, v.name, v.help, v.kind)
	v.mu.RLock()
	defer v.mu.RUnlock()
	for _, key := range sortedKeys(v.values) {
		sb.WriteString(v.name)
		writeLabels(sb, v.labels, key)
		fmt.Fprintf(sb, " %s\n", formatFloat(v.values[key]))
	}
}

func (v *scalarVec) reset() {
	v.mu.Lock()
	v.values = make(map[string]float64)
	v.mu.Unlock()
}

func (hv *histogramVec) observe(ctx context.Context, sample float64, values ...string) {
	key := labelKey(hv.labels, values)
	ex := exemplarFromContext(ctx, sample)
	hv.mu.Lock()
	defer hv.mu.Unlock()
	entry, ok := hv.values[key]
	if !ok {
		entry = &histogramValue{counts: make([]uint64, len(hv.buckets)+1)}
		hv.values[key] = entry
	}
	entry.sum += sample
	entry.total++
	idx := sort.SearchFloat64s(hv.buckets, sample)
	entry.counts[idx]++
	if ex != nil {
		entry.exemplar = ex
	}
}

func (hv *histogramVec) write(sb *strings.Builder) {
	writeHeader(sb, hv.name, hv.help, "histogram")
	hv.mu.RLock()
	defer hv.mu.RUnlock()
	for _, key := range sortedKeys(hv.values) {
		entry := hv.values[key]
		cumulative := uint64(0)
		for i, upper := range hv.buckets {
			cumulative += entry.counts[i]
			sb.WriteString(hv.name + "_bucket")
			writeLabels(sb, hv.labels, key, "le", formatFloat(upper))
			sb.WriteString(" " + strconv.FormatUint(cumulative, 10) + "\n")
		}
		cumulative += entry.counts[len(hv.buckets)]
		sb.WriteString(hv.name + "_bucket")
		writeLabels(sb, hv.labels, key, "le", "+Inf")
		sb.WriteString(" " + strconv.FormatUint(cumulative, 10) + "\n")

		sb.WriteString(hv.name + "_sum")
		writeLabels(sb, hv.labels, key)
		sb.WriteString(" " + formatFloat(entry.sum))
		if entry.exemplar != nil {
			sb.WriteString(" # {trace_id=\"" + escapeLabel(entry.exemplar.traceID) + "\"} " + formatFloat(entry.exemplar.value))
		}
		sb.WriteString("\n")

		sb.WriteString(hv.name + "_count")
		writeLabels(sb, hv.labels, key)
		sb.WriteString(" " + strconv.FormatUint(entry.total, 10) + "\n")
	}
}

func (hv *histogramVec) reset() {
	hv.mu.Lock()
	hv.values = make(map[string]*histogramValue)
	hv.mu.Unlock()
}

func writeHeader(sb *strings.Builder, name, help, metricType string) {
	sb.WriteString("# HELP " + name + " " + help + "\n")
	sb.WriteString("# TYPE " + name + " " + metricType + "\n")
}

func exemplarFromContext(ctx context.Context, sample float64) *metricExemplar {
	if ctx == nil {
		return nil
	}
	traceID := tracing.TraceIDFromContext(ctx)
	if traceID == "" {
		return nil
	}
	return &metricExemplar{traceID: traceID, value: sample}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func escapeLabel(value string) string {
	value = strings.ReplaceAll(value, "\\", "\\\\")
	value = strings.ReplaceAll(value, "\n", "\\n")
	value = strings.ReplaceAll(value, "\"", "\\\"")
	return value
}

func orUnknown(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "unknown"
	}
	return strings.ReplaceAll(v, "\x1f", "")
}

// Handler exposes the metrics registry as an http.Handler compatible with Prometheus.
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		var sb strings.Builder
		for _, c := range collectors {
			c.write(&sb)
		}
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		_, _ = w.Write([]byte(sb.String()))
	})
}

// RecordOperation counts one execution of operation with the given outcome
// and records its duration.
func RecordOperation(ctx context.Context, operation, outcome string, dur time.Duration) {
	operation = orUnknown(operation)
	operations.add(1, operation, orUnknown(outcome))
	operationLatency.observe(ctx, dur.Seconds(), operation)
	atomic.AddUint64(&totalOperations, 1)
}

// RecordHTTPRequest counts a served request by route template and status.
func RecordHTTPRequest(ctx context.Context, route string, code int, dur time.Duration) {
	route = orUnknown(route)
	httpRequests.add(1, route, strconv.Itoa(code))
	httpLatency.observe(ctx, dur.Seconds(), route)
}

// TrackInFlight adjusts the in-flight HTTP gauge and returns a func that
// undoes the adjustment.
func TrackInFlight() (done func()) {
	httpInFlight.set(float64(atomic.AddInt64(&inFlight, 1)))
	return func() {
		httpInFlight.set(float64(atomic.AddInt64(&inFlight, -1)))
	}
}

// TrackStream counts an open websocket stream until done is called.
func TrackStream() (done func()) {
	streamConns.set(float64(atomic.AddInt64(&openStreams, 1)))
	return func() {
		streamConns.set(float64(atomic.AddInt64(&openStreams, -1)))
	}
}

// OpenStreams returns the number of websocket streams currently open.
func OpenStreams() int64 {
	return atomic.LoadInt64(&openStreams)
}

// RecordRPCRequest counts a served gRPC call by method and status code name.
func RecordRPCRequest(method, code string) {
	rpcRequests.add(1, orUnknown(method), orUnknown(code))
}

// SetRegisteredOperations publishes the registry size for one operation type.
func SetRegisteredOperations(opType string, count int) {
	registeredOps.set(float64(count), orUnknown(opType))
}

// OperationCount returns how often operation finished with outcome.
func OperationCount(operation, outcome string) float64 {
	return operations.value(orUnknown(operation), orUnknown(outcome))
}

// TotalOperations returns the number of operations executed since process start.
func TotalOperations() uint64 {
	return atomic.LoadUint64(&totalOperations)
}

// Reset clears every series. Intended for tests.
func Reset() {
	for _, c := range collectors {
		c.reset()
	}
	atomic.StoreUint64(&totalOperations, 0)
	atomic.StoreInt64(&inFlight, 0)
	atomic.StoreInt64(&openStreams, 0)
}
