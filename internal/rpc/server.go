// Package rpc exposes the cipher service over gRPC. Messages are
// google.protobuf.Struct values so the service needs no generated code.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/RowanDark/cipherlab/internal/api"
	"github.com/RowanDark/cipherlab/internal/cipher"
	"github.com/RowanDark/cipherlab/internal/logging"
	"github.com/RowanDark/cipherlab/internal/observability/tracing"
	"github.com/RowanDark/cipherlab/internal/service"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "cipherlab.v1.Cipher"

// Config configures the gRPC server.
type Config struct {
	Addr    string
	Service *service.Service
	// Auth enables bearer token checks on every call.
	Auth   *api.Authenticator
	Audit  *logging.AuditLogger
	Logger *zerolog.Logger
}

// Server implements cipherlab.v1.Cipher.
type Server struct {
	cfg    Config
	svc    *service.Service
	auth   *api.Authenticator
	audit  *logging.AuditLogger
	logger zerolog.Logger
	grpc   *grpc.Server
}

// NewServer builds a gRPC server with tracing, auth and accounting
// interceptors installed.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Service == nil {
		return nil, errors.New("cipher service is required")
	}
	s := &Server{cfg: cfg, svc: cfg.Service, auth: cfg.Auth, audit: cfg.Audit}
	if s.audit == nil {
		s.audit = logging.NewDiscardAuditLogger()
	}
	if cfg.Logger != nil {
		s.logger = *cfg.Logger
	} else {
		s.logger = logging.WithComponent("rpc")
	}
	s.grpc = grpc.NewServer(grpc.ChainUnaryInterceptor(
		tracing.UnaryServerInterceptor(),
		s.accounting,
		s.authenticate,
	))
	s.grpc.RegisterService(&serviceDesc, s)
	return s, nil
}

// GRPC returns the underlying server, for tests and reflection.
func (s *Server) GRPC() *grpc.Server {
	return s.grpc
}

// Run listens on the configured address until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	addr := strings.TrimSpace(s.cfg.Addr)
	if addr == "" {
		return errors.New("grpc address must be provided")
	}
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, lis)
}

// Serve accepts connections on lis and stops gracefully once ctx is done.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	go func() {
		<-ctx.Done()
		done := make(chan struct{})
		go func() {
			s.grpc.GracefulStop()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			s.grpc.Stop()
		}
	}()

	s.logger.Info().Str("addr", lis.Addr().String()).Msg("grpc api listening")
	if err := s.grpc.Serve(lis); err != nil {
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return err
	}
	return nil
}

func (s *Server) execute(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	name := strings.TrimSpace(fields["operation"].GetStringValue())
	if name == "" {
		return nil, status.Error(codes.InvalidArgument, "operation is required")
	}
	var params map[string]any
	if p := fields["params"].GetStructValue(); p != nil {
		params = p.AsMap()
	}
	out, err := s.svc.Execute(ctx, name, []byte(fields["input"].GetStringValue()), params)
	if err != nil {
		return nil, toStatus(err)
	}
	return structpb.NewStruct(map[string]any{"operation": name, "output": string(out)})
}

func (s *Server) runPipeline(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	raw := fields["pipeline"].GetStructValue()
	if raw == nil {
		return nil, status.Error(codes.InvalidArgument, "pipeline is required")
	}
	var p cipher.Pipeline
	if err := convert(raw, &p); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "decode pipeline: %v", err)
	}
	out, err := s.svc.RunPipeline(ctx, p, []byte(fields["input"].GetStringValue()), fields["reverse"].GetBoolValue())
	if err != nil {
		return nil, toStatus(err)
	}
	return structpb.NewStruct(map[string]any{"output": string(out), "steps": len(p.Operations)})
}

func (s *Server) runRecipe(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	name := strings.TrimSpace(fields["recipe"].GetStringValue())
	if name == "" {
		return nil, status.Error(codes.InvalidArgument, "recipe is required")
	}
	out, err := s.svc.RunRecipe(ctx, name, []byte(fields["input"].GetStringValue()), fields["reverse"].GetBoolValue())
	if err != nil {
		return nil, toStatus(err)
	}
	return structpb.NewStruct(map[string]any{"recipe": name, "output": string(out)})
}

func (s *Server) detect(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	results, err := s.svc.Detect(ctx, []byte(req.GetFields()["input"].GetStringValue()))
	if err != nil {
		return nil, toStatus(err)
	}
	if limit := int(req.GetFields()["limit"].GetNumberValue()); limit > 0 && limit < len(results) {
		results = results[:limit]
	}
	return fromValue(map[string]any{"candidates": results})
}

func (s *Server) listOperations(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	filter := strings.TrimSpace(req.GetFields()["type"].GetStringValue())
	ops := make([]any, 0)
	for _, op := range s.svc.Operations() {
		if filter != "" && string(op.Type()) != filter {
			continue
		}
		entry := map[string]any{
			"name":        op.Name(),
			"type":        string(op.Type()),
			"description": op.Description(),
		}
		if rev, ok := op.Reverse(); ok {
			entry["reverse"] = rev.Name()
		}
		ops = append(ops, entry)
	}
	return structpb.NewStruct(map[string]any{"operations": ops})
}

func (s *Server) generateKeyPair(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	var nums [3]int64
	for i, name := range []string{"p", "q", "e"} {
		v, ok := fields[name]
		if !ok {
			return nil, status.Errorf(codes.InvalidArgument, "%s is required", name)
		}
		f := v.GetNumberValue()
		if f != float64(int64(f)) {
			return nil, status.Errorf(codes.InvalidArgument, "%s must be an integer", name)
		}
		nums[i] = int64(f)
	}
	kp, err := s.svc.GenerateKeyPair(ctx, nums[0], nums[1], nums[2])
	if err != nil {
		return nil, toStatus(err)
	}
	return fromValue(kp)
}

// convert round-trips a Struct through JSON into dst.
func convert(in *structpb.Struct, dst any) error {
	data, err := in.MarshalJSON()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}

// fromValue converts any JSON-encodable value into a Struct.
func fromValue(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	out := &structpb.Struct{}
	if err := out.UnmarshalJSON(data); err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}
