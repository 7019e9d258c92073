// Package config provides application-wide configuration loaded from env vars,
// optionally overlaid on a YAML file named by SOLIDSTATE_CONFIG.
// All fields have safe defaults so the binary runs locally without any env setup.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds runtime configuration for the solidstate service.
type Config struct {
	// HTTP
	Host           string        `yaml:"host"`            // SOLIDSTATE_HOST — default: "0.0.0.0"
	Port           int           `yaml:"port"`            // SOLIDSTATE_PORT — default: 8080
	ReadTimeout    time.Duration `yaml:"read_timeout"`    // SOLIDSTATE_READ_TIMEOUT — default: 15s
	WriteTimeout   time.Duration `yaml:"write_timeout"`   // SOLIDSTATE_WRITE_TIMEOUT — default: 30s
	IdleTimeout    time.Duration `yaml:"idle_timeout"`    // SOLIDSTATE_IDLE_TIMEOUT — default: 60s
	RequestTimeout time.Duration `yaml:"request_timeout"` // SOLIDSTATE_REQUEST_TIMEOUT — default: 20s

	// Logging
	LogLevel  string `yaml:"log_level"`  // SOLIDSTATE_LOG_LEVEL — default: "info"
	LogFormat string `yaml:"log_format"` // SOLIDSTATE_LOG_FORMAT — default: "json"

	// Response cache; empty disables it.
	CachePath string `yaml:"cache_path"` // SOLIDSTATE_CACHE_PATH

	// Bearer auth on /api/*; empty disables it.
	JWTSecret string `yaml:"jwt_secret"` // SOLIDSTATE_JWT_SECRET

	// Observability
	MetricsEnabled bool   `yaml:"metrics_enabled"` // SOLIDSTATE_METRICS_ENABLED — default: true
	TraceExporter  string `yaml:"trace_exporter"`  // SOLIDSTATE_TRACE_EXPORTER — "none" | "stdout"

	// Work caps
	MaxAtoms       int `yaml:"max_atoms"`        // SOLIDSTATE_MAX_ATOMS — default: 200000
	MaxGCandidates int `yaml:"max_g_candidates"` // SOLIDSTATE_MAX_G_CANDIDATES — default: 4000000
	MaxKSamples    int `yaml:"max_k_samples"`    // SOLIDSTATE_MAX_K_SAMPLES — default: 100000
}

const (
	envKeyConfigFile     = "SOLIDSTATE_CONFIG"
	envKeyHost           = "SOLIDSTATE_HOST"
	envKeyPort           = "SOLIDSTATE_PORT"
	envKeyReadTimeout    = "SOLIDSTATE_READ_TIMEOUT"
	envKeyWriteTimeout   = "SOLIDSTATE_WRITE_TIMEOUT"
	envKeyIdleTimeout    = "SOLIDSTATE_IDLE_TIMEOUT"
	envKeyRequestTimeout = "SOLIDSTATE_REQUEST_TIMEOUT"
	envKeyLogLevel       = "SOLIDSTATE_LOG_LEVEL"
	envKeyLogFormat      = "SOLIDSTATE_LOG_FORMAT"
	envKeyCachePath      = "SOLIDSTATE_CACHE_PATH"
	envKeyJWTSecret      = "SOLIDSTATE_JWT_SECRET"
	envKeyMetrics        = "SOLIDSTATE_METRICS_ENABLED"
	envKeyTraceExporter  = "SOLIDSTATE_TRACE_EXPORTER"
	envKeyMaxAtoms       = "SOLIDSTATE_MAX_ATOMS"
	envKeyMaxGCandidates = "SOLIDSTATE_MAX_G_CANDIDATES"
	envKeyMaxKSamples    = "SOLIDSTATE_MAX_K_SAMPLES"
)

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           8080,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    60 * time.Second,
		RequestTimeout: 20 * time.Second,
		LogLevel:       "info",
		LogFormat:      "json",
		MetricsEnabled: true,
		TraceExporter:  "none",
		MaxAtoms:       200_000,
		MaxGCandidates: 4_000_000,
		MaxKSamples:    100_000,
	}
}

// Load builds the configuration: defaults, then the YAML file (if
// SOLIDSTATE_CONFIG is set), then env vars. Malformed values are errors.
func Load() (Config, error) {
	cfg := Defaults()

	if path := os.Getenv(envKeyConfigFile); path != "" {
		if err := overlayFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	cfg.Host = envOr(envKeyHost, cfg.Host)
	cfg.LogLevel = envOr(envKeyLogLevel, cfg.LogLevel)
	cfg.LogFormat = envOr(envKeyLogFormat, cfg.LogFormat)
	cfg.CachePath = envOr(envKeyCachePath, cfg.CachePath)
	cfg.JWTSecret = envOr(envKeyJWTSecret, cfg.JWTSecret)
	cfg.TraceExporter = envOr(envKeyTraceExporter, cfg.TraceExporter)

	var err error
	if cfg.Port, err = envInt(envKeyPort, cfg.Port); err != nil {
		return Config{}, err
	}
	if cfg.MaxAtoms, err = envInt(envKeyMaxAtoms, cfg.MaxAtoms); err != nil {
		return Config{}, err
	}
	if cfg.MaxGCandidates, err = envInt(envKeyMaxGCandidates, cfg.MaxGCandidates); err != nil {
		return Config{}, err
	}
	if cfg.MaxKSamples, err = envInt(envKeyMaxKSamples, cfg.MaxKSamples); err != nil {
		return Config{}, err
	}
	if cfg.MetricsEnabled, err = envBool(envKeyMetrics, cfg.MetricsEnabled); err != nil {
		return Config{}, err
	}
	durations := []struct {
		key string
		dst *time.Duration
	}{
		{envKeyReadTimeout, &cfg.ReadTimeout},
		{envKeyWriteTimeout, &cfg.WriteTimeout},
		{envKeyIdleTimeout, &cfg.IdleTimeout},
		{envKeyRequestTimeout, &cfg.RequestTimeout},
	}
	for _, d := range durations {
		if *d.dst, err = envDuration(d.key, *d.dst); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot start with.
func (c Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("config: port %d out of range", c.Port)
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("config: log_format must be json or text, got %q", c.LogFormat)
	}
	switch c.TraceExporter {
	case "none", "stdout":
	default:
		return fmt.Errorf("config: trace_exporter must be none or stdout, got %q", c.TraceExporter)
	}
	return nil
}

func overlayFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

// envOr returns the value of the environment variable key, or fallback if not set.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

func envBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("config: %s: %w", key, err)
	}
	return b, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}
