package logging

import (
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/RowanDark/cipherlab/internal/redact"
)

// EventType names what an audit line records.
type EventType string

const (
	EventCipherExecute   EventType = "cipher_execute"
	EventCipherRejected  EventType = "cipher_rejected"
	EventRecipeSaved     EventType = "recipe_saved"
	EventRecipeDeleted   EventType = "recipe_deleted"
	EventTokenIssued     EventType = "token_issued"
	EventAuthDenied      EventType = "auth_denied"
	EventRPCCall         EventType = "rpc_call"
	EventServerLifecycle EventType = "server_lifecycle"
)

// Decision is the access outcome attached to an event.
type Decision string

const (
	DecisionInfo  Decision = "info"
	DecisionAllow Decision = "allow"
	DecisionDeny  Decision = "deny"
)

// AuditEvent is one line of the audit trail. Key material in Metadata and
// Reason is masked before the event is written.
type AuditEvent struct {
	Timestamp time.Time      `json:"timestamp"`
	Component string         `json:"component"`
	RequestID string         `json:"request_id,omitempty"`
	Subject   string         `json:"subject,omitempty"`
	EventType EventType      `json:"event_type"`
	Operation string         `json:"operation,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Decision  Decision       `json:"decision,omitempty"`
	Reason    string         `json:"reason,omitempty"`
}

// Option configures where NewAuditLogger writes.
type Option func(*sinkConfig) error

type sinkConfig struct {
	stdout bool
	extra  []io.Writer
	files  []*os.File
}

// WithWriter adds w as a destination.
func WithWriter(w io.Writer) Option {
	return func(cfg *sinkConfig) error {
		if w == nil {
			return errors.New("writer cannot be nil")
		}
		cfg.extra = append(cfg.extra, w)
		return nil
	}
}

// WithFile appends events to path, creating it with owner-only permissions.
func WithFile(path string) Option {
	return func(cfg *sinkConfig) error {
		path = strings.TrimSpace(path)
		if path == "" {
			return errors.New("file path cannot be empty")
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return err
		}
		cfg.files = append(cfg.files, f)
		return nil
	}
}

// WithoutStdout drops the default stdout destination.
func WithoutStdout() Option {
	return func(cfg *sinkConfig) error {
		cfg.stdout = false
		return nil
	}
}

// sink is shared by a logger and every child made with WithComponent.
type sink struct {
	log zerolog.Logger

	mu    sync.Mutex
	files []*os.File
}

// AuditLogger writes AuditEvents as JSON lines.
type AuditLogger struct {
	component string
	sink      *sink
	root      bool
}

// NewAuditLogger builds a logger writing to stdout plus any configured
// destinations.
func NewAuditLogger(component string, opts ...Option) (*AuditLogger, error) {
	cfg := &sinkConfig{stdout: true}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			for _, f := range cfg.files {
				_ = f.Close()
			}
			return nil, err
		}
	}
	var out []io.Writer
	if cfg.stdout {
		out = append(out, os.Stdout)
	}
	for _, f := range cfg.files {
		out = append(out, f)
	}
	out = append(out, cfg.extra...)
	if len(out) == 0 {
		return nil, errors.New("no writers configured for audit logger")
	}
	return &AuditLogger{
		component: component,
		sink: &sink{
			log:   zerolog.New(zerolog.SyncWriter(io.MultiWriter(out...))),
			files: cfg.files,
		},
		root: true,
	}, nil
}

// NewDiscardAuditLogger returns a logger that drops every event.
func NewDiscardAuditLogger() *AuditLogger {
	return &AuditLogger{component: "discard", sink: &sink{log: zerolog.Nop()}}
}

// Close releases files opened by WithFile. Children never close the shared
// sink.
func (l *AuditLogger) Close() error {
	if l == nil || !l.root || l.sink == nil {
		return nil
	}
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	var firstErr error
	for _, f := range l.sink.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	l.sink.files = nil
	return firstErr
}

// Emit writes event after filling the timestamp and component and masking
// secrets.
func (l *AuditLogger) Emit(event AuditEvent) error {
	if l == nil || l.sink == nil {
		return errors.New("nil audit logger")
	}
	ts := event.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	component := event.Component
	if component == "" {
		component = l.component
	}

	e := l.sink.log.Log().
		Str("timestamp", ts.UTC().Format(time.RFC3339Nano)).
		Str("component", component)
	optional(e, "request_id", event.RequestID)
	optional(e, "subject", event.Subject)
	e.Str("event_type", string(event.EventType))
	optional(e, "operation", event.Operation)
	if meta := redact.Map(event.Metadata); len(meta) > 0 {
		e.Interface("metadata", meta)
	}
	optional(e, "decision", string(event.Decision))
	optional(e, "reason", redact.String(event.Reason))
	e.Send()
	return nil
}

// WithComponent returns a logger sharing l's destinations under another
// component name.
func (l *AuditLogger) WithComponent(component string) *AuditLogger {
	if l == nil || l.sink == nil {
		return nil
	}
	return &AuditLogger{component: component, sink: l.sink}
}

func optional(e *zerolog.Event, key, val string) {
	if val != "" {
		e.Str(key, val)
	}
}
