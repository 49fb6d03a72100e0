// Package config handles configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/ricesearch/rice-eval/internal/evaluation"
)

// Config holds all application configuration.
type Config struct {
	// Server configuration
	Host string `envconfig:"RICE_HOST" yaml:"host"`
	Port int    `envconfig:"RICE_PORT" yaml:"port"`

	// Evaluation configuration
	Eval EvalConfig `yaml:"eval"`

	// Storage configuration
	Storage StorageConfig `yaml:"storage"`

	// Logging configuration
	Log LogConfig `yaml:"log"`

	// Security configuration
	Security SecurityConfig `yaml:"security"`

	// Observability configuration
	Observability ObservabilityConfig `yaml:"observability"`
}

// EvalConfig holds evaluation settings.
type EvalConfig struct {
	Workers int      `envconfig:"RICE_EVAL_WORKERS" yaml:"workers"` // 0 = GOMAXPROCS
	K       int      `envconfig:"RICE_EVAL_K" yaml:"k"`             // cutoff for specs given without @k
	Metrics []string `envconfig:"RICE_EVAL_METRICS" yaml:"metrics"`
}

// StorageConfig holds run and qrels persistence settings.
type StorageConfig struct {
	Type     string `envconfig:"RICE_STORAGE_TYPE" yaml:"type"`
	Path     string `envconfig:"RICE_STORAGE_PATH" yaml:"path"`
	RedisURL string `envconfig:"RICE_REDIS_URL" yaml:"redis_url"`
	Prefix   string `envconfig:"RICE_REDIS_PREFIX" yaml:"prefix"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `envconfig:"RICE_LOG_LEVEL" yaml:"level"`
	Format string `envconfig:"RICE_LOG_FORMAT" yaml:"format"`
}

// SecurityConfig holds security settings.
type SecurityConfig struct {
	RateLimit      int   `envconfig:"RICE_RATE_LIMIT" yaml:"rate_limit"` // requests per second, 0 = disabled
	MaxRequestSize int64 `envconfig:"RICE_MAX_REQUEST_SIZE" yaml:"max_request_size"`
}

// ObservabilityConfig holds observability settings.
type ObservabilityConfig struct {
	MetricsEnabled bool   `envconfig:"RICE_METRICS_ENABLED" yaml:"metrics_enabled"`
	MetricsPath    string `envconfig:"RICE_METRICS_PATH" yaml:"metrics_path"`
}

// Load loads configuration from environment variables and optional config file.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}

	// Set defaults first
	setDefaults(cfg)

	// Load from YAML file if provided (overrides defaults)
	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	// Override with environment variables (highest priority)
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("processing env config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables only.
func LoadFromEnv() (*Config, error) {
	return Load("")
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}

func setDefaults(cfg *Config) {
	cfg.Host = "0.0.0.0"
	cfg.Port = 8080

	cfg.Eval = EvalConfig{
		Workers: 0,
		K:       0,
		Metrics: []string{"mrr", "ndcg@10", "map", "recall@100"},
	}

	cfg.Storage = StorageConfig{
		Type:     "memory",
		Path:     "./data",
		RedisURL: "redis://localhost:6379",
		Prefix:   "rice:eval:",
	}

	cfg.Log = LogConfig{
		Level:  "info",
		Format: "text",
	}

	cfg.Security = SecurityConfig{
		RateLimit:      0,
		MaxRequestSize: 64 << 20,
	}

	cfg.Observability = ObservabilityConfig{
		MetricsEnabled: true,
		MetricsPath:    "/metrics",
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []string

	// Server validation
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, "port must be between 1 and 65535")
	}

	// Eval validation
	if c.Eval.Workers < 0 {
		errs = append(errs, "eval workers cannot be negative")
	}

	if c.Eval.K < 0 {
		errs = append(errs, "eval k cannot be negative")
	}

	for _, m := range c.Eval.Metrics {
		if _, err := evaluation.ParseMetric(m); err != nil {
			errs = append(errs, fmt.Sprintf("invalid default metric: %s", m))
		}
	}

	// Storage validation
	switch c.Storage.Type {
	case "memory":
	case "file":
		if c.Storage.Path == "" {
			errs = append(errs, "storage path is required for file storage")
		}
	case "redis":
		if c.Storage.RedisURL == "" {
			errs = append(errs, "redis_url is required for redis storage")
		}
	default:
		errs = append(errs, fmt.Sprintf("invalid storage type: %s (must be memory, file, or redis)", c.Storage.Type))
	}

	// Log validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Log.Level] {
		errs = append(errs, fmt.Sprintf("invalid log level: %s (must be debug, info, warn, or error)", c.Log.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		errs = append(errs, fmt.Sprintf("invalid log format: %s (must be text or json)", c.Log.Format))
	}

	// Security validation
	if c.Security.RateLimit < 0 {
		errs = append(errs, "rate_limit cannot be negative")
	}

	if c.Security.MaxRequestSize < 1 {
		errs = append(errs, "max_request_size must be positive")
	}

	// Observability validation
	if c.Observability.MetricsEnabled && !strings.HasPrefix(c.Observability.MetricsPath, "/") {
		errs = append(errs, "metrics_path must start with /")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// DefaultMetrics returns the configured metric specs with the default
// cutoff applied to specs that carry none.
func (c *Config) DefaultMetrics() []string {
	out := make([]string, len(c.Eval.Metrics))
	for i, m := range c.Eval.Metrics {
		out[i] = WithDefaultCutoff(m, c.Eval.K)
	}
	return out
}

// WithDefaultCutoff appends @k to a metric name that has no cutoff. k <= 0
// leaves it unchanged.
func WithDefaultCutoff(spec string, k int) string {
	if k <= 0 || strings.Contains(spec, "@") {
		return spec
	}
	return fmt.Sprintf("%s@%d", strings.TrimSpace(spec), k)
}
