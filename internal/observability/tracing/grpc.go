package tracing

import (
	"context"
	"path"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// UnaryServerInterceptor opens a server span per call named after the full
// method and records the resulting gRPC status code.
func UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx = ContextFromMetadata(ctx)
		ctx, span := StartSpan(ctx, info.FullMethod, AsServer(), WithAttributes(map[string]any{
			"rpc.system":  "grpc",
			"rpc.service": path.Dir(info.FullMethod)[1:],
			"rpc.method":  path.Base(info.FullMethod),
		}))
		resp, err := handler(ctx, req)
		span.SetAttribute("rpc.grpc.status_code", status.Code(err).String())
		if err != nil {
			span.RecordError(err)
			span.End()
			return resp, err
		}
		span.EndWithStatus(StatusOK, "")
		return resp, nil
	}
}

// UnaryClientInterceptor forwards the caller's trace context to the server.
func UnaryClientInterceptor() grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		return invoker(InjectMetadata(ctx), method, req, reply, cc, opts...)
	}
}
