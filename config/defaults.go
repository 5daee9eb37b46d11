package config

import (
	"time"

	"github.com/flowgate-ai/flowgate/gateway/ratelimit"
)

// DefaultConfig returns a runnable configuration. Every section can be
// overridden by YAML or environment.
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Log:       DefaultLogConfig(),
		Auth:      AuthConfig{},
		Redis:     RedisConfig{PoolSize: 10},
		RateLimit: DefaultRateLimitConfig(),
		Retry:     DefaultRetryConfig(),
		Context:   DefaultContextConfig(),
		Stream:    DefaultStreamConfig(),
		Telemetry: TelemetryConfig{ServiceName: "flowgate", Endpoint: "localhost:4317"},
	}
}

// DefaultServerConfig returns the default listener settings.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    5 * time.Minute, // streams hold the connection open
		ShutdownTimeout: 15 * time.Second,
	}
}

// DefaultLogConfig returns JSON logging at info.
func DefaultLogConfig() LogConfig {
	return LogConfig{Level: "info", Format: "json"}
}

// DefaultRateLimitConfig returns the stock per-identity rules.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Enabled: true,
		Rules: []ratelimit.Rule{
			{Requests: 60, Period: time.Minute},
			{Requests: 1000, Period: time.Hour},
		},
	}
}

// DefaultRetryConfig returns exponential backoff with three attempts.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		Strategy:   "exponential",
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   30 * time.Second,
	}
}

// DefaultContextConfig returns the default window assembly settings.
func DefaultContextConfig() ContextConfig {
	return ContextConfig{
		TokenBudget: 8000,
		Tokenizer:   "estimator",
	}
}

// DefaultStreamConfig returns the synthesized streaming pacing.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		ChunkSize: 24,
		Delay:     30 * time.Millisecond,
	}
}
