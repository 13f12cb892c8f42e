package api

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/RowanDark/cipherlab/internal/logging"
	"github.com/RowanDark/cipherlab/internal/observability/metrics"
	"github.com/RowanDark/cipherlab/internal/service"
)

const requestIDHeader = "X-Request-ID"

type ctxKey int

const (
	requestIDKey ctxKey = iota
	subjectKey
)

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func subjectFrom(ctx context.Context) string {
	sub, _ := ctx.Value(subjectKey).(string)
	return sub
}

// withCaller tags ctx for the service layer.
func withCaller(ctx context.Context) context.Context {
	return service.WithCaller(ctx, service.Caller{
		RequestID: requestIDFrom(ctx),
		Subject:   subjectFrom(ctx),
		Surface:   "http",
	})
}

// statusRecorder remembers the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

// Hijack lets websocket upgrades pass through the recorder.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	if r.status == 0 {
		r.status = http.StatusSwitchingProtocols
	}
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (r *statusRecorder) code() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

// requestID accepts a caller supplied X-Request-ID or assigns a new one and
// echoes it on the response.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		s.logger.Info().
			Str("request_id", requestIDFrom(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.code()).
			Int("bytes", rec.bytes).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		done := metrics.TrackInFlight()
		defer done()
		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tpl, err := current.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		metrics.RecordHTTPRequest(r.Context(), route, rec.code(), time.Since(start))
	})
}

// requireJWT rejects requests without a valid bearer token. With no
// authenticator configured every request passes.
func (s *Server) requireJWT(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.auth == nil {
			next.ServeHTTP(w, r)
			return
		}
		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok && websocket.IsWebSocketUpgrade(r) {
			// Browsers cannot set headers on a websocket handshake.
			token = strings.TrimSpace(r.URL.Query().Get("access_token"))
			ok = token != ""
		}
		if !ok {
			s.denied(r, "missing bearer token")
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "missing bearer token", Kind: "unauthorized"})
			return
		}
		claims, err := s.auth.Validate(token)
		if err != nil {
			s.denied(r, err.Error())
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "invalid token", Kind: "unauthorized"})
			return
		}
		ctx := context.WithValue(r.Context(), subjectKey, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) denied(r *http.Request, reason string) {
	_ = s.audit.Emit(logging.AuditEvent{
		RequestID: requestIDFrom(r.Context()),
		EventType: logging.EventAuthDenied,
		Decision:  logging.DecisionDeny,
		Reason:    reason,
		Metadata:  map[string]any{"path": r.URL.Path, "remote": r.RemoteAddr},
	})
}

func (s *Server) withTimeout(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.RequestTimeout <= 0 {
			next.ServeHTTP(w, r)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
