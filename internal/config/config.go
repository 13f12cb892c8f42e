package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/RowanDark/cipherlab/internal/env"
)

// Config captures the cipherlab configuration resolved from defaults, optional
// files, and environment overrides.
type Config struct {
	HTTPAddr       string        `yaml:"http_addr" json:"http_addr"`
	GRPCAddr       string        `yaml:"grpc_addr" json:"grpc_addr"`
	MaxConnections int           `yaml:"max_connections" json:"max_connections"`
	RecipesDir     string        `yaml:"recipes_dir" json:"recipes_dir"`
	HistoryPath    string        `yaml:"history_path" json:"history_path"`
	JWTSecret      string        `yaml:"jwt_secret" json:"jwt_secret"`
	JWTIssuer      string        `yaml:"jwt_issuer" json:"jwt_issuer"`
	StaticToken    string        `yaml:"static_token" json:"static_token"`
	LogLevel       string        `yaml:"log_level" json:"log_level"`
	AuditLog       string        `yaml:"audit_log" json:"audit_log"`
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`
	Tracing        TracingConfig `yaml:"tracing" json:"tracing"`
}

// TracingConfig controls span export.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled" json:"enabled"`
	SampleRatio float64 `yaml:"sample_ratio" json:"sample_ratio"`
	File        string  `yaml:"file" json:"file"`
}

// Default returns the built-in configuration. History and recipes live under
// ~/.cipherlab when the home directory is known.
func Default() Config {
	base := ".cipherlab"
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		base = filepath.Join(home, ".cipherlab")
	}
	return Config{
		HTTPAddr:       "127.0.0.1:8729",
		GRPCAddr:       "127.0.0.1:8730",
		MaxConnections: 256,
		RecipesDir:     filepath.Join(base, "recipes"),
		HistoryPath:    filepath.Join(base, "history.db"),
		JWTIssuer:      "cipherlab",
		LogLevel:       "info",
		RequestTimeout: 10 * time.Second,
		Tracing: TracingConfig{
			Enabled:     false,
			SampleRatio: 1,
		},
	}
}

// Load resolves the configuration using defaults, configuration files, and
// environment overrides. The lookup order for configuration files is:
//  1. ~/.cipherlab/config.yml (or the legacy ~/.classicrypt/config.yml)
//  2. ./cipherlab.yml
//
// Environment variables prefixed with CIPHERLAB_ have the highest precedence.
func Load() (Config, error) {
	cfg := Default()

	if err := loadHomeConfig(&cfg); err != nil {
		return Config{}, err
	}
	if err := loadLocalConfig(&cfg); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFile applies a single explicit file on top of the defaults and then the
// environment. A missing file is an error.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := applyFileConfig(&cfg, data); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values the daemon cannot start with.
func (c Config) Validate() error {
	if c.MaxConnections < 0 {
		return fmt.Errorf("max_connections must not be negative, got %d", c.MaxConnections)
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("request_timeout must not be negative, got %s", c.RequestTimeout)
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing.sample_ratio must be within [0,1], got %v", c.Tracing.SampleRatio)
	}
	if c.StaticToken != "" && c.JWTSecret == "" {
		return errors.New("static_token requires jwt_secret")
	}
	return nil
}

// Redacted returns a copy with secrets masked, for display.
func (c Config) Redacted() Config {
	if c.JWTSecret != "" {
		c.JWTSecret = "[REDACTED]"
	}
	if c.StaticToken != "" {
		c.StaticToken = "[REDACTED]"
	}
	if u, err := url.Parse(c.HistoryPath); err == nil && u.User != nil {
		c.HistoryPath = u.Redacted()
	}
	return c
}

func loadHomeConfig(cfg *Config) error {
	home, err := os.UserHomeDir()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("determine home directory: %w", err)
	}

	newPath := filepath.Join(home, ".cipherlab", "config.yml")
	data, err := os.ReadFile(newPath)
	if err == nil {
		if err := applyFileConfig(cfg, data); err != nil {
			return fmt.Errorf("parse config %s: %w", newPath, err)
		}
		return nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("read config %s: %w", newPath, err)
	}

	legacyPath := filepath.Join(home, ".classicrypt", "config.yml")
	data, err = os.ReadFile(legacyPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config %s: %w", legacyPath, err)
	}
	log.Warn().Str("path", legacyPath).Msg("using legacy classicrypt config")
	if err := applyFileConfig(cfg, data); err != nil {
		return fmt.Errorf("parse config %s: %w", legacyPath, err)
	}
	return nil
}

func loadLocalConfig(cfg *Config) error {
	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("determine working directory: %w", err)
	}
	path := filepath.Join(wd, "cipherlab.yml")
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := applyFileConfig(cfg, data); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// fileConfig uses pointers so that keys absent from a file leave earlier
// layers untouched.
type fileConfig struct {
	HTTPAddr       *string            `yaml:"http_addr"`
	GRPCAddr       *string            `yaml:"grpc_addr"`
	MaxConnections *int               `yaml:"max_connections"`
	RecipesDir     *string            `yaml:"recipes_dir"`
	HistoryPath    *string            `yaml:"history_path"`
	JWTSecret      *string            `yaml:"jwt_secret"`
	JWTIssuer      *string            `yaml:"jwt_issuer"`
	StaticToken    *string            `yaml:"static_token"`
	LogLevel       *string            `yaml:"log_level"`
	AuditLog       *string            `yaml:"audit_log"`
	RequestTimeout *string            `yaml:"request_timeout"`
	Tracing        *fileTracingConfig `yaml:"tracing"`
}

type fileTracingConfig struct {
	Enabled     *bool    `yaml:"enabled"`
	SampleRatio *float64 `yaml:"sample_ratio"`
	File        *string  `yaml:"file"`
}

func applyFileConfig(cfg *Config, data []byte) error {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return err
	}

	setString(&cfg.HTTPAddr, fc.HTTPAddr)
	setString(&cfg.GRPCAddr, fc.GRPCAddr)
	setString(&cfg.RecipesDir, fc.RecipesDir)
	setString(&cfg.HistoryPath, fc.HistoryPath)
	setString(&cfg.JWTSecret, fc.JWTSecret)
	setString(&cfg.JWTIssuer, fc.JWTIssuer)
	setString(&cfg.StaticToken, fc.StaticToken)
	setString(&cfg.LogLevel, fc.LogLevel)
	setString(&cfg.AuditLog, fc.AuditLog)
	if fc.MaxConnections != nil {
		cfg.MaxConnections = *fc.MaxConnections
	}
	if fc.RequestTimeout != nil {
		d, err := parseDuration(*fc.RequestTimeout)
		if err != nil {
			return fmt.Errorf("request_timeout: %w", err)
		}
		cfg.RequestTimeout = d
	}
	if fc.Tracing != nil {
		if fc.Tracing.Enabled != nil {
			cfg.Tracing.Enabled = *fc.Tracing.Enabled
		}
		if fc.Tracing.SampleRatio != nil {
			cfg.Tracing.SampleRatio = *fc.Tracing.SampleRatio
		}
		setString(&cfg.Tracing.File, fc.Tracing.File)
	}
	return nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func applyEnvOverrides(cfg *Config) {
	fields := map[string]*string{
		"HTTP_ADDR":    &cfg.HTTPAddr,
		"GRPC_ADDR":    &cfg.GRPCAddr,
		"RECIPES_DIR":  &cfg.RecipesDir,
		"HISTORY_PATH": &cfg.HistoryPath,
		"JWT_SECRET":   &cfg.JWTSecret,
		"JWT_ISSUER":   &cfg.JWTIssuer,
		"STATIC_TOKEN": &cfg.StaticToken,
		"LOG_LEVEL":    &cfg.LogLevel,
		"AUDIT_LOG":    &cfg.AuditLog,
		"TRACING_FILE": &cfg.Tracing.File,
	}
	for name, dst := range fields {
		if val, ok := setting(name); ok {
			*dst = val
		}
	}
	if val, ok := setting("MAX_CONNECTIONS"); ok {
		if parsed, err := strconv.Atoi(val); err == nil {
			cfg.MaxConnections = parsed
		} else {
			ignored("MAX_CONNECTIONS", val, err)
		}
	}
	if val, ok := setting("REQUEST_TIMEOUT"); ok {
		if parsed, err := parseDuration(val); err == nil {
			cfg.RequestTimeout = parsed
		} else {
			ignored("REQUEST_TIMEOUT", val, err)
		}
	}
	if val, ok := setting("TRACING_ENABLED"); ok {
		if parsed, err := parseBool(val); err == nil {
			cfg.Tracing.Enabled = parsed
		} else {
			ignored("TRACING_ENABLED", val, err)
		}
	}
	if val, ok := setting("TRACING_SAMPLE_RATIO"); ok {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Tracing.SampleRatio = parsed
		} else {
			ignored("TRACING_SAMPLE_RATIO", val, err)
		}
	}
}

// setting returns a trimmed, non-empty environment value.
func setting(name string) (string, bool) {
	val, ok := env.Setting(name)
	if !ok {
		return "", false
	}
	val = strings.TrimSpace(val)
	return val, val != ""
}

func ignored(name, val string, err error) {
	log.Warn().Str("key", env.Prefix+name).Str("value", val).Err(err).Msg("ignoring invalid environment override")
}

// parseDuration accepts Go duration strings and bare integers as seconds.
func parseDuration(val string) (time.Duration, error) {
	val = strings.TrimSpace(val)
	if secs, err := strconv.Atoi(val); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(val)
}

func parseBool(val string) (bool, error) {
	v := strings.TrimSpace(strings.ToLower(val))
	switch v {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean: %s", val)
	}
}
