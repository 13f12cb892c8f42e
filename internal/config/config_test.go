package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(cwd) })
}

func TestLoadPrecedence(t *testing.T) {
	tempDir := t.TempDir()

	// HOME contains only the legacy ~/.classicrypt/config.yml.
	homeDir := filepath.Join(tempDir, "home")
	legacyDir := filepath.Join(homeDir, ".classicrypt")
	if err := os.MkdirAll(legacyDir, 0o755); err != nil {
		t.Fatalf("mkdir legacy: %v", err)
	}
	t.Setenv("HOME", homeDir)
	homeConfig := []byte(`http_addr: 0.0.0.0:1111
recipes_dir: /srv/recipes
tracing:
  file: /var/log/spans.jsonl
`)
	if err := os.WriteFile(filepath.Join(legacyDir, "config.yml"), homeConfig, 0o644); err != nil {
		t.Fatalf("write home config: %v", err)
	}

	// A local cipherlab.yml overrides the home file.
	workDir := filepath.Join(tempDir, "work")
	if err := os.Mkdir(workDir, 0o755); err != nil {
		t.Fatalf("mkdir work: %v", err)
	}
	localConfig := []byte(`http_addr: 127.0.0.1:6500
request_timeout: 3s
tracing:
  enabled: true
  sample_ratio: 0.5
`)
	if err := os.WriteFile(filepath.Join(workDir, "cipherlab.yml"), localConfig, 0o644); err != nil {
		t.Fatalf("write local config: %v", err)
	}

	// Environment beats both files; the legacy prefix still applies.
	t.Setenv("CIPHERLAB_GRPC_ADDR", "127.0.0.1:7777")
	t.Setenv("CLASSICRYPT_LOG_LEVEL", "debug")
	t.Setenv("CIPHERLAB_MAX_CONNECTIONS", "12")

	chdir(t, workDir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.HTTPAddr != "127.0.0.1:6500" {
		t.Fatalf("unexpected http addr: %s", cfg.HTTPAddr)
	}
	if cfg.RecipesDir != "/srv/recipes" {
		t.Fatalf("expected recipes dir from home config, got %s", cfg.RecipesDir)
	}
	if !cfg.Tracing.Enabled || cfg.Tracing.SampleRatio != 0.5 {
		t.Fatalf("expected tracing from local config, got %+v", cfg.Tracing)
	}
	if cfg.Tracing.File != "/var/log/spans.jsonl" {
		t.Fatalf("expected tracing file from home config, got %s", cfg.Tracing.File)
	}
	if cfg.RequestTimeout != 3*time.Second {
		t.Fatalf("expected 3s timeout, got %s", cfg.RequestTimeout)
	}
	if cfg.GRPCAddr != "127.0.0.1:7777" {
		t.Fatalf("expected env grpc addr, got %s", cfg.GRPCAddr)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("expected legacy env log level, got %s", cfg.LogLevel)
	}
	if cfg.MaxConnections != 12 {
		t.Fatalf("expected 12 connections, got %d", cfg.MaxConnections)
	}
}

func TestLoadDefaults(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("HOME", tempDir)
	chdir(t, tempDir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	want := Default()
	if cfg != want {
		t.Fatalf("expected defaults %+v, got %+v", want, cfg)
	}
	if !strings.HasPrefix(cfg.HistoryPath, filepath.Join(tempDir, ".cipherlab")) {
		t.Fatalf("history should live under home, got %s", cfg.HistoryPath)
	}
}

func TestInvalidEnvOverrideIgnored(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("HOME", tempDir)
	chdir(t, tempDir)
	t.Setenv("CIPHERLAB_MAX_CONNECTIONS", "many")
	t.Setenv("CIPHERLAB_REQUEST_TIMEOUT", "30")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.MaxConnections != Default().MaxConnections {
		t.Fatalf("invalid override should be ignored, got %d", cfg.MaxConnections)
	}
	if cfg.RequestTimeout != 30*time.Second {
		t.Fatalf("bare integers are seconds, got %s", cfg.RequestTimeout)
	}
}

func TestLoadFileErrors(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)

	if _, err := LoadFile(filepath.Join(dir, "missing.yml")); err == nil {
		t.Fatal("expected error for missing file")
	}

	tests := []struct {
		name string
		body string
	}{
		{"malformed", "http_addr: [unterminated\n"},
		{"bad timeout", "request_timeout: soon\n"},
		{"ratio", "tracing:\n  sample_ratio: 2\n"},
		{"token without secret", "static_token: s3cret\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, strings.ReplaceAll(tt.name, " ", "_")+".yml")
			if err := os.WriteFile(path, []byte(tt.body), 0o644); err != nil {
				t.Fatalf("write: %v", err)
			}
			if _, err := LoadFile(path); err == nil {
				t.Fatalf("expected error for %q", tt.body)
			}
		})
	}
}

func TestRedacted(t *testing.T) {
	cfg := Default()
	cfg.JWTSecret = "hunter2"
	cfg.StaticToken = "bootstrap"
	cfg.HistoryPath = "postgres://cipher:hunter3@db:5432/history"
	red := cfg.Redacted()
	if strings.Contains(red.HistoryPath, "hunter3") || !strings.HasPrefix(red.HistoryPath, "postgres://cipher:") {
		t.Fatalf("expected DSN password masked, got %s", red.HistoryPath)
	}
	if red.JWTSecret != "[REDACTED]" || red.StaticToken != "[REDACTED]" {
		t.Fatalf("expected secrets masked, got %+v", red)
	}
	if cfg.JWTSecret != "hunter2" {
		t.Fatal("Redacted must not modify the receiver")
	}
}
