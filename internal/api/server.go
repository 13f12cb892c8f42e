package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/net/netutil"

	"github.com/RowanDark/cipherlab/internal/logging"
	"github.com/RowanDark/cipherlab/internal/observability/metrics"
	"github.com/RowanDark/cipherlab/internal/observability/tracing"
	"github.com/RowanDark/cipherlab/internal/service"
)

const maxBodyBytes = 1 << 20

// Config configures the REST API server.
type Config struct {
	Addr    string
	Service *service.Service
	// Auth enables bearer token checks. Without it the API is open.
	Auth            *Authenticator
	StaticToken     string
	DefaultTokenTTL time.Duration
	RequestTimeout  time.Duration
	MaxConnections  int
	Audit           *logging.AuditLogger
	Logger          *zerolog.Logger
}

// Server exposes the cipher service over HTTP.
type Server struct {
	cfg        Config
	svc        *service.Service
	auth       *Authenticator
	static     *staticToken
	audit      *logging.AuditLogger
	logger     zerolog.Logger
	router     *mux.Router
	httpServer *http.Server

	streamsMu sync.Mutex
	streams   map[*websocket.Conn]struct{}
}

// NewServer constructs a REST API server using the provided configuration.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Service == nil {
		return nil, errors.New("cipher service is required")
	}
	if strings.TrimSpace(cfg.StaticToken) != "" && cfg.Auth == nil {
		return nil, errors.New("static token requires an authenticator")
	}
	static, err := newStaticToken(cfg.StaticToken)
	if err != nil {
		return nil, err
	}
	s := &Server{
		cfg:     cfg,
		svc:     cfg.Service,
		auth:    cfg.Auth,
		static:  static,
		audit:   cfg.Audit,
		streams: make(map[*websocket.Conn]struct{}),
	}
	if s.audit == nil {
		s.audit = logging.NewDiscardAuditLogger()
	}
	if cfg.Logger != nil {
		s.logger = *cfg.Logger
	} else {
		s.logger = logging.WithComponent("api")
	}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.requestID, s.accessLog, s.instrument)

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/tokens", s.handleTokenIssue).Methods(http.MethodPost)
	// Streams outlive RequestTimeout, so they bypass withTimeout and apply it
	// per message instead.
	r.Handle("/api/v1/cipher/stream", s.requireJWT(http.HandlerFunc(s.handleStream))).Methods(http.MethodGet)

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.Use(s.requireJWT, s.withTimeout)
	v1.HandleFunc("/cipher/operations", s.handleListOperations).Methods(http.MethodGet)
	v1.HandleFunc("/cipher/execute", s.handleExecute).Methods(http.MethodPost)
	v1.HandleFunc("/cipher/pipeline", s.handlePipeline).Methods(http.MethodPost)
	v1.HandleFunc("/cipher/detect", s.handleDetect).Methods(http.MethodPost)
	v1.HandleFunc("/rsa/keygen", s.handleKeygen).Methods(http.MethodPost)
	v1.HandleFunc("/recipes", s.handleListRecipes).Methods(http.MethodGet)
	v1.HandleFunc("/recipes", s.handleSaveRecipe).Methods(http.MethodPost)
	v1.HandleFunc("/recipes/{name}", s.handleGetRecipe).Methods(http.MethodGet)
	v1.HandleFunc("/recipes/{name}", s.handleDeleteRecipe).Methods(http.MethodDelete)
	v1.HandleFunc("/recipes/{name}/run", s.handleRunRecipe).Methods(http.MethodPost)
	v1.HandleFunc("/history", s.handleListHistory).Methods(http.MethodGet)
	v1.HandleFunc("/history/{id}", s.handleGetHistory).Methods(http.MethodGet)

	// Subrouters do not inherit the fallback handlers.
	for _, router := range []*mux.Router{r, v1} {
		router.NotFoundHandler = http.HandlerFunc(notFound)
		router.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)
	}
	return r
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusNotFound, errorBody{Error: "not found", Kind: "not_found"})
}

func methodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method not allowed", Kind: "method_not_allowed"})
}

// Handler returns the routed handler wrapped in tracing.
func (s *Server) Handler() http.Handler {
	return tracing.Middleware(s.router)
}

// Run listens on the configured address and blocks until ctx is cancelled or
// the server fails.
func (s *Server) Run(ctx context.Context) error {
	addr := strings.TrimSpace(s.cfg.Addr)
	if addr == "" {
		return errors.New("api address must be provided")
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln, capped at MaxConnections when positive.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.cfg.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, s.cfg.MaxConnections)
	}
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info().Str("addr", ln.Addr().String()).Int("max_connections", s.cfg.MaxConnections).Msg("http api listening")

	errCh := make(chan error, 1)
	go func() {
		err := s.httpServer.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		s.closeStreams()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpServer.Shutdown(shutdownCtx)
		return <-errCh
	case err := <-errCh:
		return err
	}
}
