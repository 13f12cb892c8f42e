package tracing

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel/propagation"
	"google.golang.org/grpc/metadata"
)

// W3C trace context is the only format accepted on HTTP and gRPC.
var propagator = propagation.TraceContext{}

// metadataCarrier adapts gRPC metadata to the propagation.TextMapCarrier
// interface. Keys are lower case by gRPC convention.
type metadataCarrier metadata.MD

func (c metadataCarrier) Get(key string) string {
	if vals := metadata.MD(c).Get(key); len(vals) > 0 {
		return vals[0]
	}
	return ""
}

func (c metadataCarrier) Set(key, value string) {
	metadata.MD(c).Set(key, value)
}

func (c metadataCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}

// ContextFromMetadata continues the trace carried in incoming gRPC metadata.
func ContextFromMetadata(ctx context.Context) context.Context {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ctx
	}
	return propagator.Extract(ctx, metadataCarrier(md))
}

// InjectMetadata appends the current trace context to outgoing gRPC metadata.
func InjectMetadata(ctx context.Context) context.Context {
	md := metadata.MD{}
	propagator.Inject(ctx, metadataCarrier(md))
	for k, vals := range md {
		for _, v := range vals {
			ctx = metadata.AppendToOutgoingContext(ctx, k, v)
		}
	}
	return ctx
}

// Middleware wraps next in a server span named after the request method and
// path, continuing any incoming traceparent. The new span's traceparent is
// echoed on the response.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := StartSpan(ctx, r.Method+" "+r.URL.Path,
			AsServer(),
			WithAttributes(map[string]any{"http.method": r.Method, "http.target": r.URL.Path}),
		)
		defer span.End()
		propagator.Inject(ctx, propagation.HeaderCarrier(w.Header()))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
