// Package retry wraps fallible provider calls with classified,
// backoff-scheduled retries. Only errors classified as transient are
// retried; everything else propagates on the first attempt, and on
// exhaustion the last error is returned unchanged so the root cause stays
// diagnosable.
package retry

import (
	"context"
	"math"
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/flowgate-ai/flowgate/types"
)

// Strategy selects how the base delay grows between attempts.
type Strategy string

const (
	StrategyExponential Strategy = "exponential"
	StrategyLinear      Strategy = "linear"
	StrategyFixed       Strategy = "fixed"
)

// Config defines the retry policy for one client. It is stateless across
// calls.
type Config struct {
	MaxRetries     int
	Strategy       Strategy
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	RetryableCodes []types.ErrorCode

	// OnRetry is invoked before each backoff sleep.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultConfig returns the policy used when a provider does not override
// retry behavior.
func DefaultConfig() *Config {
	return &Config{
		MaxRetries: 3,
		Strategy:   StrategyExponential,
		BaseDelay:  time.Second,
		MaxDelay:   30 * time.Second,
		RetryableCodes: []types.ErrorCode{
			types.ErrRateLimitExceeded,
			types.ErrServerError,
			types.ErrConnectionError,
			types.ErrTimeout,
		},
	}
}

// Handler executes operations under a retry policy.
type Handler struct {
	cfg    *Config
	codes  map[types.ErrorCode]struct{}
	logger *zap.Logger
}

// New creates a Handler. A nil cfg uses DefaultConfig; invalid fields are
// normalized rather than rejected.
func New(cfg *Config, logger *zap.Logger) *Handler {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 30 * time.Second
	}
	if cfg.Strategy == "" {
		cfg.Strategy = StrategyExponential
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	codes := make(map[types.ErrorCode]struct{}, len(cfg.RetryableCodes))
	for _, c := range cfg.RetryableCodes {
		codes[c] = struct{}{}
	}
	return &Handler{cfg: cfg, codes: codes, logger: logger}
}

// Execute runs op, retrying transient failures up to MaxRetries additional
// times. The backoff sleep yields to ctx cancellation.
func (h *Handler) Execute(ctx context.Context, op func() error) error {
	var lastErr error

	for attempt := 0; attempt <= h.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := h.jittered(h.delay(attempt - 1))

			h.logger.Debug("retrying operation",
				zap.Int("attempt", attempt),
				zap.Int("max_retries", h.cfg.MaxRetries),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
			if h.cfg.OnRetry != nil {
				h.cfg.OnRetry(attempt, lastErr, delay)
			}

			select {
			case <-ctx.Done():
				// Bare so callers can match context.Canceled directly.
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		lastErr = op()
		if lastErr == nil {
			if attempt > 0 {
				h.logger.Info("retry succeeded", zap.Int("attempt", attempt))
			}
			return nil
		}

		if !h.Retryable(lastErr) {
			return lastErr
		}
	}

	h.logger.Warn("retries exhausted",
		zap.Int("attempts", h.cfg.MaxRetries+1),
		zap.Error(lastErr),
	)
	return lastErr
}

// Do is a type-safe wrapper around Execute for operations that return a
// value.
func Do[T any](h *Handler, ctx context.Context, fn func() (T, error)) (T, error) {
	var result T
	err := h.Execute(ctx, func() error {
		var opErr error
		result, opErr = fn()
		return opErr
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

// Retryable classifies an error as transient. An error is retryable iff it
// is a *types.Error whose code is in the configured set, an upstream
// rate-limit error type, or a transport-level failure recognizable from its
// message.
func (h *Handler) Retryable(err error) bool {
	if err == nil {
		return false
	}
	if e, ok := types.AsError(err); ok {
		_, ok := h.codes[e.Code]
		return ok
	}
	if types.IsRateLimitError(err) {
		return true
	}
	return transportFailure(err)
}

// transportFailure recognizes connection-level errors that arrive without a
// typed code.
func transportFailure(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"connection refused",
		"connection reset",
		"no such host",
		"timeout",
		"timed out",
		"broken pipe",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// delay computes the pre-jitter backoff for the given zero-based attempt.
func (h *Handler) delay(attempt int) time.Duration {
	base := float64(h.cfg.BaseDelay)
	var d float64
	switch h.cfg.Strategy {
	case StrategyLinear:
		d = base * float64(attempt+1)
	case StrategyFixed:
		d = base
	default:
		d = base * math.Pow(2, float64(attempt))
	}
	return time.Duration(d)
}

// jittered applies a symmetric ±25% jitter and clamps to MaxDelay. Jitter
// avoids thundering-herd retries when many callers fail against the same
// degraded provider.
func (h *Handler) jittered(d time.Duration) time.Duration {
	f := float64(d)
	f += (rand.Float64()*2 - 1) * 0.25 * f
	if f > float64(h.cfg.MaxDelay) {
		f = float64(h.cfg.MaxDelay)
	}
	if f < 0 {
		f = 0
	}
	return time.Duration(f)
}
