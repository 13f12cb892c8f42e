// Package tracing wraps OpenTelemetry for cipherlab. Spans are sampled per
// trace and written as JSON lines; there is no network exporter.
package tracing

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/RowanDark/cipherlab"

// Config controls how tracing is initialised for the process.
type Config struct {
	// ServiceName is recorded on exported spans to identify the emitting service.
	ServiceName string
	// SampleRatio controls probabilistic sampling for root spans. Values outside
	// [0,1] are clamped and 0 disables tracing.
	SampleRatio float64
	// FilePath receives a JSONL copy of every finished span. Empty disables the
	// file exporter.
	FilePath string
	// Writer receives spans in the same format as FilePath. Mostly for tests.
	Writer io.Writer
	// Synchronous exports each span as it ends instead of batching.
	Synchronous bool
}

var active atomic.Pointer[sdktrace.TracerProvider]

// Setup installs a process-wide tracer provider, replacing any earlier one.
// The returned function flushes and uninstalls it and must run before exit.
func Setup(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	ratio := math.Max(0, math.Min(1, cfg.SampleRatio))
	if ratio == 0 {
		return func(context.Context) error { return nil }, nil
	}

	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "cipherlab"
	}
	res, err := sdkresource.New(ctx,
		sdkresource.WithTelemetrySDK(),
		sdkresource.WithAttributes(semconv.ServiceName(name)),
	)
	if err != nil {
		return nil, fmt.Errorf("build trace resource: %w", err)
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
	}
	exp, err := newJSONLExporter(cfg)
	if err != nil {
		return nil, fmt.Errorf("open span file: %w", err)
	}
	switch {
	case exp == nil:
	case cfg.Synchronous:
		opts = append(opts, sdktrace.WithSyncer(exp))
	default:
		opts = append(opts, sdktrace.WithBatcher(exp))
	}

	provider := sdktrace.NewTracerProvider(opts...)
	if prev := active.Swap(provider); prev != nil {
		_ = prev.Shutdown(ctx)
	}
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) error {
		active.CompareAndSwap(provider, nil)
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return provider.Shutdown(ctx)
	}, nil
}

// Enabled reports whether a tracer provider is installed.
func Enabled() bool {
	return active.Load() != nil
}

func currentTracer() trace.Tracer {
	if p := active.Load(); p != nil {
		return p.Tracer(instrumentationName)
	}
	return disabled
}
