package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/flowgate-ai/flowgate/gateway/ratelimit"
)

// Config is the complete gateway configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" env:"SERVER"`
	Log       LogConfig       `yaml:"log" env:"LOG"`
	Auth      AuthConfig      `yaml:"auth" env:"AUTH"`
	Redis     RedisConfig     `yaml:"redis" env:"REDIS"`
	RateLimit RateLimitConfig `yaml:"rate_limit" env:"RATE_LIMIT"`
	Retry     RetryConfig     `yaml:"retry" env:"RETRY"`
	Context   ContextConfig   `yaml:"context" env:"CONTEXT"`
	Stream    StreamConfig    `yaml:"stream" env:"STREAM"`
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
	Providers []ProviderConfig `yaml:"providers" env:"-"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	HTTPPort        int           `yaml:"http_port" env:"HTTP_PORT"`
	MetricsPort     int           `yaml:"metrics_port" env:"METRICS_PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`   // debug, info, warn, error
	Format string `yaml:"format" env:"FORMAT"` // json, console
}

// AuthConfig controls request identity extraction.
type AuthConfig struct {
	Enabled   bool   `yaml:"enabled" env:"ENABLED"`
	JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET"`
}

// RedisConfig points the rate limiter ledger at a shared Redis. When Addr
// is empty the limiter uses its in-process store.
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"ADDR"`
	Password string `yaml:"password" env:"PASSWORD"`
	DB       int    `yaml:"db" env:"DB"`
	PoolSize int    `yaml:"pool_size" env:"POOL_SIZE"`
}

// RateLimitConfig holds the conjunctive sliding-window rules.
type RateLimitConfig struct {
	Enabled bool             `yaml:"enabled" env:"ENABLED"`
	Rules   []ratelimit.Rule `yaml:"rules" env:"-"`
}

// RetryConfig controls the provider retry handler.
type RetryConfig struct {
	MaxRetries int           `yaml:"max_retries" env:"MAX_RETRIES"`
	Strategy   string        `yaml:"strategy" env:"STRATEGY"` // exponential, linear, fixed
	BaseDelay  time.Duration `yaml:"base_delay" env:"BASE_DELAY"`
	MaxDelay   time.Duration `yaml:"max_delay" env:"MAX_DELAY"`
}

// ContextConfig controls conversation window assembly.
type ContextConfig struct {
	TokenBudget  int    `yaml:"token_budget" env:"TOKEN_BUDGET"`
	SystemPrompt string `yaml:"system_prompt" env:"SYSTEM_PROMPT"`
	Tokenizer    string `yaml:"tokenizer" env:"TOKENIZER"` // estimator, tiktoken
}

// StreamConfig controls synthesized streaming pacing.
type StreamConfig struct {
	ChunkSize int           `yaml:"chunk_size" env:"CHUNK_SIZE"`
	Delay     time.Duration `yaml:"delay" env:"DELAY"`
}

// TelemetryConfig controls OTLP trace and metric export.
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled" env:"ENABLED"`
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	Endpoint    string `yaml:"endpoint" env:"ENDPOINT"`
	Insecure    bool   `yaml:"insecure" env:"INSECURE"`
}

// ProviderConfig declares one upstream vendor. APIKey supports ${VAR}
// expansion so keys stay out of config files.
type ProviderConfig struct {
	Name         string        `yaml:"name"`
	Type         string        `yaml:"type"` // openai, openai-compatible, gemini
	APIKey       string        `yaml:"api_key"`
	BaseURL      string        `yaml:"base_url"`
	DefaultModel string        `yaml:"default_model"`
	Timeout      time.Duration `yaml:"timeout"`
	Capabilities []string      `yaml:"capabilities"` // chat, image, video
}

// Validate reports every problem at once rather than the first one found.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, "server.http_port must be between 1 and 65535")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	if c.Auth.Enabled && c.Auth.JWTSecret == "" {
		errs = append(errs, "auth.jwt_secret is required when auth is enabled")
	}
	switch c.Retry.Strategy {
	case "exponential", "linear", "fixed":
	default:
		errs = append(errs, fmt.Sprintf("retry.strategy %q is not one of exponential, linear, fixed", c.Retry.Strategy))
	}
	if c.Retry.MaxRetries < 0 {
		errs = append(errs, "retry.max_retries must not be negative")
	}
	for i, r := range c.RateLimit.Rules {
		if r.Requests <= 0 || r.Period <= 0 {
			errs = append(errs, fmt.Sprintf("rate_limit.rules[%d] needs positive requests and period", i))
		}
	}
	seen := map[string]bool{}
	for i, p := range c.Providers {
		if p.Name == "" {
			errs = append(errs, fmt.Sprintf("providers[%d].name is required", i))
			continue
		}
		if seen[p.Name] {
			errs = append(errs, fmt.Sprintf("providers[%d].name %q is declared twice", i, p.Name))
		}
		seen[p.Name] = true
		switch p.Type {
		case "openai", "openai-compatible", "gemini":
		default:
			errs = append(errs, fmt.Sprintf("providers[%d].type %q is not one of openai, openai-compatible, gemini", i, p.Type))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}
	return nil
}
