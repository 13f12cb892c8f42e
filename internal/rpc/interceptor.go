package rpc

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/RowanDark/cipherlab/internal/logging"
	"github.com/RowanDark/cipherlab/internal/observability/metrics"
	"github.com/RowanDark/cipherlab/internal/service"
)

// callState is filled in by the inner interceptors and read back by
// accounting once the handler returns.
type callState struct {
	requestID string
	subject   string
}

type stateKey struct{}

func stateFrom(ctx context.Context) *callState {
	st, _ := ctx.Value(stateKey{}).(*callState)
	if st == nil {
		return &callState{}
	}
	return st
}

// accounting counts every call by status code and writes an rpc_call audit
// event.
func (s *Server) accounting(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	st := &callState{requestID: requestIDFromMetadata(ctx)}
	ctx = context.WithValue(ctx, stateKey{}, st)

	resp, err := handler(ctx, req)
	code := status.Code(err)
	method := info.FullMethod[strings.LastIndex(info.FullMethod, "/")+1:]
	metrics.RecordRPCRequest(method, code.String())

	event := logging.AuditEvent{
		EventType: logging.EventRPCCall,
		Decision:  logging.DecisionAllow,
		RequestID: st.requestID,
		Subject:   st.subject,
		Operation: method,
		Metadata: map[string]any{
			"code":        code.String(),
			"duration_ms": float64(time.Since(start)) / float64(time.Millisecond),
		},
	}
	if err != nil {
		event.Decision = logging.DecisionDeny
		event.Reason = status.Convert(err).Message()
	}
	if emitErr := s.audit.Emit(event); emitErr != nil {
		s.logger.Warn().Err(emitErr).Str("method", method).Msg("audit emit failed")
	}
	return resp, err
}

// authenticate checks the bearer token in the authorization metadata when an
// authenticator is configured, and tags the context with the caller.
func (s *Server) authenticate(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	st := stateFrom(ctx)
	if st.requestID == "" {
		st.requestID = requestIDFromMetadata(ctx)
	}
	if s.auth != nil {
		md, _ := metadata.FromIncomingContext(ctx)
		var header string
		if vals := md.Get("authorization"); len(vals) > 0 {
			header = vals[0]
		}
		token, ok := bearer(header)
		if !ok {
			s.denied(st.requestID, info.FullMethod, "missing bearer token")
			return nil, status.Error(codes.Unauthenticated, "missing bearer token")
		}
		claims, err := s.auth.Validate(token)
		if err != nil {
			s.denied(st.requestID, info.FullMethod, err.Error())
			return nil, status.Error(codes.Unauthenticated, "invalid token")
		}
		st.subject = claims.Subject
	}
	ctx = service.WithCaller(ctx, service.Caller{RequestID: st.requestID, Subject: st.subject, Surface: "grpc"})
	return handler(ctx, req)
}

func (s *Server) denied(requestID, method, reason string) {
	_ = s.audit.Emit(logging.AuditEvent{
		RequestID: requestID,
		EventType: logging.EventAuthDenied,
		Decision:  logging.DecisionDeny,
		Reason:    reason,
		Metadata:  map[string]any{"method": method},
	})
}

// requestIDFromMetadata honours a caller supplied x-request-id and otherwise
// assigns one.
func requestIDFromMetadata(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get("x-request-id"); len(vals) > 0 {
			if id := strings.TrimSpace(vals[0]); id != "" && len(id) <= 128 {
				return id
			}
		}
	}
	return uuid.NewString()
}

func bearer(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return "", false
	}
	token := strings.TrimSpace(header[7:])
	return token, token != ""
}
