// Package service executes cipher operations on behalf of the HTTP, gRPC and
// command line front ends. Every execution is traced, counted, recorded in
// history and written to the audit trail in one place.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/RowanDark/cipherlab/internal/cipher"
	"github.com/RowanDark/cipherlab/internal/cipherr"
	"github.com/RowanDark/cipherlab/internal/history"
	"github.com/RowanDark/cipherlab/internal/logging"
	"github.com/RowanDark/cipherlab/internal/numtheory"
	"github.com/RowanDark/cipherlab/internal/observability/metrics"
	"github.com/RowanDark/cipherlab/internal/observability/tracing"
)

// ErrHistoryDisabled is returned by history queries when no store is attached.
var ErrHistoryDisabled = errors.New("history is disabled")

// Options wires a Service. Nil fields fall back to the process defaults; a
// nil History disables recording.
type Options struct {
	Registry *cipher.Registry
	Recipes  *cipher.RecipeManager
	History  *history.Store
	Audit    *logging.AuditLogger
	Detector cipher.Detector
	Logger   *zerolog.Logger
}

// Service is safe for concurrent use.
type Service struct {
	registry *cipher.Registry
	recipes  *cipher.RecipeManager
	history  *history.Store
	audit    *logging.AuditLogger
	detector cipher.Detector
	logger   zerolog.Logger
}

func New(opts Options) *Service {
	s := &Service{
		registry: opts.Registry,
		recipes:  opts.Recipes,
		history:  opts.History,
		audit:    opts.Audit,
		detector: opts.Detector,
	}
	if s.registry == nil {
		s.registry = cipher.Default()
	}
	if s.recipes == nil {
		s.recipes = cipher.NewRecipeManager("")
		s.recipes.LoadBuiltins()
	}
	if s.audit == nil {
		s.audit = logging.NewDiscardAuditLogger()
	}
	if s.detector == nil {
		s.detector = cipher.NewCaesarDetector()
	}
	if opts.Logger != nil {
		s.logger = *opts.Logger
	} else {
		s.logger = logging.WithComponent("service")
	}
	for _, t := range []cipher.OperationType{cipher.OperationTypeEncrypt, cipher.OperationTypeDecrypt, cipher.OperationTypeInvolution, cipher.OperationTypeKeygen} {
		metrics.SetRegisteredOperations(string(t), len(s.registry.ListByType(t)))
	}
	return s
}

// Caller identifies who asked for an execution.
type Caller struct {
	RequestID string
	Subject   string
	Surface   string
}

type callerKey struct{}

// WithCaller attaches c to ctx.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// CallerFrom returns the caller stored on ctx, if any.
func CallerFrom(ctx context.Context) Caller {
	c, _ := ctx.Value(callerKey{}).(Caller)
	return c
}

// Operations lists the registry, sorted by name.
func (s *Service) Operations() []cipher.Operation {
	return s.registry.List()
}

// Operation looks up a single operation.
func (s *Service) Operation(name string) (cipher.Operation, bool) {
	return s.registry.Get(name)
}

// Execute runs one named operation.
func (s *Service) Execute(ctx context.Context, name string, input []byte, params map[string]any) ([]byte, error) {
	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, "cipher."+name, tracing.WithAttributes(map[string]any{
		"cipher.operation":   name,
		"cipher.input_bytes": len(input),
	}))

	opType := ""
	out, err := func() ([]byte, error) {
		op, ok := s.registry.Get(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", cipher.ErrUnknownOperation, name)
		}
		opType = string(op.Type())
		return op.Execute(ctx, input, params)
	}()
	dur := time.Since(start)
	outcome := Outcome(err)

	metrics.RecordOperation(ctx, name, outcome, dur)
	span.SetAttribute("cipher.outcome", outcome)
	if err != nil {
		span.RecordError(err)
		span.End()
	} else {
		span.EndWithStatus(tracing.StatusOK, "")
	}

	s.record(ctx, name, opType, input, out, params, err, dur)
	return out, err
}

// RunPipeline executes each step through Execute. With reverse set the
// pipeline is inverted first.
func (s *Service) RunPipeline(ctx context.Context, p cipher.Pipeline, input []byte, reverse bool) ([]byte, error) {
	if len(p.Operations) == 0 {
		return nil, cipherr.Validationf("pipeline", "no operations")
	}
	pipeline := &p
	if reverse {
		reversed, err := p.ReverseWith(s.registry)
		if err != nil {
			return nil, err
		}
		pipeline = reversed
	}
	ctx, span := tracing.StartSpan(ctx, "cipher.pipeline", tracing.WithAttributes(map[string]any{
		"cipher.steps":   len(pipeline.Operations),
		"cipher.reverse": reverse,
	}))
	defer span.End()

	result := input
	for i, step := range pipeline.Operations {
		if err := ctx.Err(); err != nil {
			span.RecordError(err)
			return nil, err
		}
		out, err := s.Execute(ctx, step.Name, result, step.Parameters)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("operation %s failed at step %d: %w", step.Name, i, err)
		}
		result = out
	}
	return result, nil
}

// Detect ranks candidate decryptions of input.
func (s *Service) Detect(ctx context.Context, input []byte) ([]cipher.DetectionResult, error) {
	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, "cipher.detect")
	defer span.End()
	results, err := s.detector.Detect(ctx, input)
	metrics.RecordOperation(ctx, "detect", Outcome(err), time.Since(start))
	if err != nil {
		span.RecordError(err)
	}
	return results, err
}

// GenerateKeyPair runs rsa_keygen through Execute so it is recorded like any
// other operation, and decodes the result.
func (s *Service) GenerateKeyPair(ctx context.Context, p, q, e int64) (numtheory.KeyPair, error) {
	out, err := s.Execute(ctx, "rsa_keygen", nil, map[string]any{"p": p, "q": q, "e": e})
	if err != nil {
		return numtheory.KeyPair{}, err
	}
	var kp numtheory.KeyPair
	if err := json.Unmarshal(out, &kp); err != nil {
		return numtheory.KeyPair{}, fmt.Errorf("decode key pair: %w", err)
	}
	return kp, nil
}

func (s *Service) record(ctx context.Context, name, opType string, input, output []byte, params map[string]any, execErr error, dur time.Duration) {
	caller := CallerFrom(ctx)
	durMS := float64(dur) / float64(time.Millisecond)

	event := logging.AuditEvent{
		RequestID: caller.RequestID,
		Subject:   caller.Subject,
		Operation: name,
		Metadata: map[string]any{
			"params":      params,
			"duration_ms": durMS,
			"input_len":   len(input),
			"surface":     caller.Surface,
		},
	}
	if execErr != nil {
		event.EventType = logging.EventCipherRejected
		event.Decision = logging.DecisionDeny
		event.Reason = execErr.Error()
		event.Metadata["error_kind"] = Outcome(execErr)
	} else {
		event.EventType = logging.EventCipherExecute
		event.Decision = logging.DecisionAllow
		event.Metadata["output_len"] = len(output)
	}
	if err := s.audit.Emit(event); err != nil {
		s.logger.Warn().Err(err).Str("operation", name).Msg("audit emit failed")
	}

	if s.history == nil {
		return
	}
	entry := history.Entry{
		Operation:  name,
		Type:       opType,
		Params:     params,
		Input:      string(input),
		Output:     string(output),
		DurationMS: durMS,
		RequestID:  caller.RequestID,
		Subject:    caller.Subject,
	}
	if execErr != nil {
		entry.Error = execErr.Error()
		entry.ErrorKind = Outcome(execErr)
	}
	// History writes outlive a cancelled request.
	if _, err := s.history.Record(context.WithoutCancel(ctx), entry); err != nil {
		s.logger.Warn().Err(err).Str("operation", name).Msg("history record failed")
	}
}

// Outcome classifies err for metrics, history and API responses.
func Outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return metrics.OutcomeCanceled
	case errors.Is(err, cipher.ErrUnknownOperation):
		return metrics.OutcomeUnknown
	}
	if kind, ok := cipherr.KindOf(err); ok {
		switch kind {
		case cipherr.KindValidation:
			return metrics.OutcomeValidation
		case cipherr.KindRange:
			return metrics.OutcomeRange
		case cipherr.KindFormat:
			return metrics.OutcomeFormat
		}
	}
	return metrics.OutcomeError
}
