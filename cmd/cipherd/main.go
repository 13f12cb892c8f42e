package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/RowanDark/cipherlab/internal/api"
	"github.com/RowanDark/cipherlab/internal/cipher"
	"github.com/RowanDark/cipherlab/internal/config"
	"github.com/RowanDark/cipherlab/internal/env"
	"github.com/RowanDark/cipherlab/internal/history"
	"github.com/RowanDark/cipherlab/internal/logging"
	"github.com/RowanDark/cipherlab/internal/observability/tracing"
	"github.com/RowanDark/cipherlab/internal/rpc"
	"github.com/RowanDark/cipherlab/internal/service"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "explicit config file (default: ~/.cipherlab/config.yml then ./cipherlab.yml)")
	httpAddr := flag.String("http-addr", "", "override the REST API listen address")
	grpcAddr := flag.String("grpc-addr", "", "override the gRPC listen address (\"off\" disables gRPC)")
	logLevel := flag.String("log-level", "", "log level override (debug, info, warn, error)")
	prettyLogs := flag.Bool("pretty", false, "human readable logs instead of JSON")
	showVersion := flag.Bool("version", false, "print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("cipherd %s\n", version)
		return
	}

	var (
		cfg config.Config
		err error
	)
	if strings.TrimSpace(*configPath) != "" {
		cfg, err = config.LoadFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(2)
	}
	applyFlagOverrides(&cfg, *httpAddr, *grpcAddr, *logLevel)
	logging.Init(cfg.LogLevel, *prettyLogs)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Error().Err(err).Msg("cipherd exited")
		os.Exit(1)
	}
}

func applyFlagOverrides(cfg *config.Config, httpAddr, grpcAddr, logLevel string) {
	if v := strings.TrimSpace(httpAddr); v != "" {
		cfg.HTTPAddr = v
	}
	switch v := strings.TrimSpace(grpcAddr); {
	case strings.EqualFold(v, "off"):
		cfg.GRPCAddr = ""
	case v != "":
		cfg.GRPCAddr = v
	}
	if v := strings.TrimSpace(logLevel); v != "" {
		cfg.LogLevel = v
	}
}

func run(ctx context.Context, cfg config.Config) error {
	audit, err := newAuditLogger(cfg)
	if err != nil {
		return fmt.Errorf("configure audit logger: %w", err)
	}
	defer audit.Close()

	httpLis, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.HTTPAddr, err)
	}
	defer httpLis.Close()
	var grpcLis net.Listener
	if strings.TrimSpace(cfg.GRPCAddr) != "" {
		grpcLis, err = net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", cfg.GRPCAddr, err)
		}
		defer grpcLis.Close()
	}
	return serve(ctx, cfg, audit, httpLis, grpcLis)
}

// serve wires the service onto already bound listeners and blocks until ctx is
// cancelled or a server fails. A nil grpcLis leaves gRPC disabled.
func serve(ctx context.Context, cfg config.Config, audit *logging.AuditLogger, httpLis, grpcLis net.Listener) error {
	logger := logging.WithComponent("cipherd")

	if cfg.Tracing.Enabled {
		shutdownTracing, err := tracing.Setup(ctx, tracing.Config{
			ServiceName: "cipherd",
			SampleRatio: cfg.Tracing.SampleRatio,
			FilePath:    cfg.Tracing.File,
		})
		if err != nil {
			return fmt.Errorf("configure tracing: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracing(shutdownCtx); err != nil {
				lifecycle(audit, logging.DecisionInfo, "tracing_shutdown", err.Error(), nil)
			}
		}()
		lifecycle(audit, logging.DecisionInfo, "tracing_ready", "", map[string]any{"file": cfg.Tracing.File})
	}

	var store *history.Store
	if path := strings.TrimSpace(cfg.HistoryPath); path != "" {
		var err error
		store, err = history.Open(path)
		if err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		defer func() {
			if err := store.Close(); err != nil {
				logger.Warn().Err(err).Msg("close history")
			}
		}()
	}

	recipes := cipher.NewRecipeManager(cfg.RecipesDir)
	recipes.LoadBuiltins()
	if err := recipes.LoadRecipes(); err != nil {
		return fmt.Errorf("load recipes: %w", err)
	}

	svc := service.New(service.Options{
		Recipes: recipes,
		History: store,
		Audit:   audit.WithComponent("service"),
	})

	var auth *api.Authenticator
	if secret := strings.TrimSpace(cfg.JWTSecret); secret != "" {
		var err error
		auth, err = api.NewAuthenticator([]byte(secret), cfg.JWTIssuer, time.Hour)
		if err != nil {
			return fmt.Errorf("configure authenticator: %w", err)
		}
	} else {
		logger.Warn().Msg("jwt_secret not set; API and gRPC accept unauthenticated calls")
	}

	apiServer, err := api.NewServer(api.Config{
		Addr:            cfg.HTTPAddr,
		Service:         svc,
		Auth:            auth,
		StaticToken:     cfg.StaticToken,
		DefaultTokenTTL: time.Hour,
		RequestTimeout:  cfg.RequestTimeout,
		MaxConnections:  cfg.MaxConnections,
		Audit:           audit.WithComponent("api"),
	})
	if err != nil {
		return fmt.Errorf("configure api: %w", err)
	}

	serveCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	apiErrCh := make(chan error, 1)
	go func() {
		apiErrCh <- apiServer.Serve(serveCtx, httpLis)
	}()
	lifecycle(audit, logging.DecisionAllow, "http_ready", "", map[string]any{"address": httpLis.Addr().String()})

	var rpcErrCh chan error
	if grpcLis != nil {
		rpcServer, err := rpc.NewServer(rpc.Config{
			Addr:    cfg.GRPCAddr,
			Service: svc,
			Auth:    auth,
			Audit:   audit.WithComponent("rpc"),
		})
		if err != nil {
			cancel()
			<-apiErrCh
			return fmt.Errorf("configure grpc: %w", err)
		}
		rpcErrCh = make(chan error, 1)
		go func() {
			rpcErrCh <- rpcServer.Serve(serveCtx, grpcLis)
		}()
		lifecycle(audit, logging.DecisionAllow, "grpc_ready", "", map[string]any{"address": grpcLis.Addr().String()})
	}

	logger.Info().Str("version", version).Bool("auth", auth != nil).Bool("history", store != nil).Msg("cipherd started")

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-apiErrCh:
		apiErrCh = nil
		runErr = fmt.Errorf("http api: %w", errOrStopped(err))
	case err := <-rpcErrCh:
		rpcErrCh = nil
		runErr = fmt.Errorf("grpc api: %w", errOrStopped(err))
	}

	cancel()
	if apiErrCh != nil {
		if err := <-apiErrCh; err != nil && runErr == nil {
			runErr = fmt.Errorf("http api: %w", err)
		}
	}
	if rpcErrCh != nil {
		if err := <-rpcErrCh; err != nil && runErr == nil {
			runErr = fmt.Errorf("grpc api: %w", err)
		}
	}

	decision, reason := logging.DecisionInfo, ""
	if runErr != nil {
		decision, reason = logging.DecisionDeny, runErr.Error()
	}
	lifecycle(audit, decision, "stopped", reason, nil)
	return runErr
}

// errOrStopped turns a clean early exit into an error; servers only return
// before cancellation when something went wrong.
func errOrStopped(err error) error {
	if err == nil {
		return errors.New("server stopped unexpectedly")
	}
	return err
}

func lifecycle(audit *logging.AuditLogger, decision logging.Decision, phase, reason string, meta map[string]any) {
	if meta == nil {
		meta = map[string]any{}
	}
	meta["phase"] = phase
	if err := audit.Emit(logging.AuditEvent{
		EventType: logging.EventServerLifecycle,
		Decision:  decision,
		Reason:    reason,
		Metadata:  meta,
	}); err != nil {
		log.Warn().Err(err).Str("phase", phase).Msg("emit lifecycle event")
	}
}

func newAuditLogger(cfg config.Config) (*logging.AuditLogger, error) {
	var opts []logging.Option
	path := strings.TrimSpace(cfg.AuditLog)
	if path != "" {
		opts = append(opts, logging.WithFile(path))
	}
	if val, ok := env.Setting("AUDIT_LOG_STDOUT"); ok {
		if v := strings.TrimSpace(strings.ToLower(val)); v == "0" || v == "false" {
			opts = append(opts, logging.WithoutStdout())
			if path == "" {
				opts = append(opts, logging.WithWriter(io.Discard))
			}
		}
	}
	return logging.NewAuditLogger("cipherd", opts...)
}
