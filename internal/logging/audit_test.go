package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestAuditLoggerEmit(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, err := NewAuditLogger("test", WithoutStdout(), WithWriter(buf))
	if err != nil {
		t.Fatalf("NewAuditLogger: %v", err)
	}

	event := AuditEvent{EventType: EventCipherExecute, Operation: "caesar_encrypt", Decision: DecisionAllow}
	if err := logger.Emit(event); err != nil {
		t.Fatalf("Emit: %v", err)
	}

	var decoded AuditEvent
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("json.Unmarshal: %v", err)
	}

	if decoded.Component != "test" {
		t.Fatalf("expected component 'test', got %q", decoded.Component)
	}
	if decoded.EventType != EventCipherExecute {
		t.Fatalf("expected event type %q, got %q", EventCipherExecute, decoded.EventType)
	}
	if decoded.Operation != "caesar_encrypt" {
		t.Fatalf("expected operation caesar_encrypt, got %q", decoded.Operation)
	}
	if decoded.Timestamp.IsZero() {
		t.Fatalf("expected timestamp to be set")
	}
}

func TestAuditLoggerMasksKeys(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, err := NewAuditLogger("api", WithoutStdout(), WithWriter(buf))
	if err != nil {
		t.Fatalf("NewAuditLogger: %v", err)
	}

	err = logger.Emit(AuditEvent{
		EventType: EventCipherExecute,
		Metadata: map[string]any{
			"params": map[string]any{"key": "LİMON", "shift": 3},
		},
	})
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if strings.Contains(buf.String(), "LİMON") {
		t.Fatalf("key material leaked into audit log: %s", buf.String())
	}
	if !strings.Contains(buf.String(), `"shift":3`) {
		t.Fatalf("non-secret params should be kept: %s", buf.String())
	}
}

func TestWithComponentSharesWriters(t *testing.T) {
	buf := &bytes.Buffer{}
	parent, _ := NewAuditLogger("parent", WithoutStdout(), WithWriter(buf))
	child := parent.WithComponent("child")
	if err := child.Emit(AuditEvent{EventType: EventRPCCall}); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if !strings.Contains(buf.String(), `"component":"child"`) {
		t.Fatalf("expected child component, got %s", buf.String())
	}
	if err := child.Close(); err != nil {
		t.Fatalf("child Close: %v", err)
	}
}

func TestNewAuditLoggerRequiresWriter(t *testing.T) {
	if _, err := NewAuditLogger("x", WithoutStdout()); err == nil {
		t.Fatal("expected error without writers")
	}
	if _, err := NewAuditLogger("x", WithFile("  ")); err == nil {
		t.Fatal("expected error for blank file path")
	}
}

func TestWithFileAppendsAndCloses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	logger, err := NewAuditLogger("cipherd", WithFile(path), WithoutStdout())
	if err != nil {
		t.Fatalf("NewAuditLogger: %v", err)
	}
	child := logger.WithComponent("rpc")
	for _, ev := range []AuditEvent{
		{EventType: EventServerLifecycle, Decision: DecisionInfo},
		{EventType: EventAuthDenied, Decision: DecisionDeny, Reason: "bad header Bearer eyJhbGciOi.eyJzdWIi.c2ln"},
	} {
		if err := child.Emit(ev); err != nil {
			t.Fatalf("Emit: %v", err)
		}
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read audit file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %s", len(lines), data)
	}
	var denied AuditEvent
	if err := json.Unmarshal([]byte(lines[1]), &denied); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if denied.Component != "rpc" || denied.Decision != DecisionDeny {
		t.Fatalf("unexpected event %+v", denied)
	}
	if strings.Contains(denied.Reason, "eyJ") {
		t.Fatalf("token leaked into reason: %q", denied.Reason)
	}
}

func TestDiscardLoggerAcceptsEvents(t *testing.T) {
	logger := NewDiscardAuditLogger()
	if err := logger.WithComponent("api").Emit(AuditEvent{EventType: EventRPCCall}); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	var nilLogger *AuditLogger
	if err := nilLogger.Emit(AuditEvent{}); err == nil {
		t.Fatal("expected error from nil logger")
	}
}

func TestInitLevels(t *testing.T) {
	buf := &bytes.Buffer{}
	if lvl := InitWriter(buf, "debug", false); lvl != zerolog.DebugLevel {
		t.Fatalf("expected debug, got %s", lvl)
	}
	if lvl := InitWriter(buf, "shouting", false); lvl != zerolog.InfoLevel {
		t.Fatalf("unknown level should fall back to info, got %s", lvl)
	}

	logger := WithComponent("engine")
	logger.Info().Str("operation", "atbash").Msg("executed")
	if !strings.Contains(buf.String(), `"component":"engine"`) {
		t.Fatalf("expected component field, got %s", buf.String())
	}
}
