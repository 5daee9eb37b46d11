package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/flowgate-ai/flowgate/types"
)

func fastConfig(maxRetries int) *Config {
	return &Config{
		MaxRetries: maxRetries,
		Strategy:   StrategyExponential,
		BaseDelay:  time.Millisecond,
		MaxDelay:   10 * time.Millisecond,
		RetryableCodes: []types.ErrorCode{
			types.ErrRateLimitExceeded,
			types.ErrServerError,
			types.ErrConnectionError,
			types.ErrTimeout,
		},
	}
}

func TestExecute_FirstAttemptSuccess(t *testing.T) {
	h := New(fastConfig(3), zap.NewNop())

	calls := 0
	err := h.Execute(context.Background(), func() error {
		calls++
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestExecute_RetryBound(t *testing.T) {
	h := New(fastConfig(3), zap.NewNop())

	calls := 0
	failure := types.NewError(types.ErrServerError, "always down").WithRetryable(true)
	err := h.Execute(context.Background(), func() error {
		calls++
		return failure
	})

	assert.Error(t, err)
	assert.Equal(t, 4, calls, "1 initial + 3 retries")
}

func TestExecute_LastErrorUnchanged(t *testing.T) {
	h := New(fastConfig(2), zap.NewNop())

	failure := types.NewError(types.ErrServerError, "boom").WithProvider("openai")
	err := h.Execute(context.Background(), func() error { return failure })

	// The handler must never synthesize a different error on exhaustion.
	assert.Same(t, error(failure), err)
}

func TestExecute_NonRetryablePropagatesImmediately(t *testing.T) {
	h := New(fastConfig(5), zap.NewNop())

	tests := []struct {
		name string
		err  error
	}{
		{"bad request", types.NewError(types.ErrBadRequest, "temperature out of range")},
		{"missing key", types.NewError(types.ErrMissingAPIKey, "no key configured")},
		{"content blocked", types.NewError(types.ErrContentBlocked, "safety filter")},
		{"plain error", errors.New("some application bug")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := h.Execute(context.Background(), func() error {
				calls++
				return tt.err
			})
			assert.Equal(t, tt.err, err)
			assert.Equal(t, 1, calls, "must not retry")
		})
	}
}

func TestExecute_TransientThenSuccess(t *testing.T) {
	h := New(fastConfig(3), zap.NewNop())

	calls := 0
	err := h.Execute(context.Background(), func() error {
		calls++
		if calls <= 2 {
			return types.NewError(types.ErrServerError, "upstream 503")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestExecute_ContextCancelDuringBackoff(t *testing.T) {
	cfg := fastConfig(5)
	cfg.BaseDelay = 200 * time.Millisecond
	cfg.MaxDelay = time.Second
	h := New(cfg, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	calls := 0
	err := h.Execute(ctx, func() error {
		calls++
		return types.NewError(types.ErrTimeout, "deadline")
	})

	// The context error comes back bare, not wrapped in handler prose.
	assert.Equal(t, context.DeadlineExceeded, err)
	assert.Equal(t, 1, calls)
}

func TestExecute_CancelReturnsBareContextError(t *testing.T) {
	cfg := fastConfig(5)
	cfg.BaseDelay = 500 * time.Millisecond
	h := New(cfg, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	err := h.Execute(ctx, func() error {
		cancel()
		return types.NewError(types.ErrServerError, "boom")
	})

	assert.Equal(t, context.Canceled, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryable_Classification(t *testing.T) {
	h := New(fastConfig(1), zap.NewNop())

	assert.True(t, h.Retryable(types.NewError(types.ErrRateLimitExceeded, "429")))
	assert.True(t, h.Retryable(types.NewError(types.ErrConnectionError, "refused")))
	assert.True(t, h.Retryable(&types.RateLimitError{RetryAfter: time.Second}))
	assert.True(t, h.Retryable(errors.New("dial tcp: connection refused")))
	assert.True(t, h.Retryable(errors.New("lookup api.example.com: no such host")))
	assert.True(t, h.Retryable(errors.New("request timed out")))

	assert.False(t, h.Retryable(nil))
	assert.False(t, h.Retryable(types.NewError(types.ErrUnauthorized, "bad key")))
	assert.False(t, h.Retryable(types.NewError(types.ErrContentBlocked, "filtered")))
	assert.False(t, h.Retryable(errors.New("invalid state")))
}

func TestDelay_PreJitterExactness(t *testing.T) {
	base := 1000 * time.Millisecond
	tests := []struct {
		strategy Strategy
		attempt  int
		want     time.Duration
	}{
		{StrategyExponential, 0, 1000 * time.Millisecond},
		{StrategyExponential, 1, 2000 * time.Millisecond},
		{StrategyExponential, 2, 4000 * time.Millisecond},
		{StrategyExponential, 3, 8000 * time.Millisecond},
		{StrategyLinear, 0, 1000 * time.Millisecond},
		{StrategyLinear, 1, 2000 * time.Millisecond},
		{StrategyLinear, 2, 3000 * time.Millisecond},
		{StrategyFixed, 0, 1000 * time.Millisecond},
		{StrategyFixed, 5, 1000 * time.Millisecond},
	}
	for _, tt := range tests {
		h := New(&Config{MaxRetries: 1, Strategy: tt.strategy, BaseDelay: base, MaxDelay: time.Minute}, zap.NewNop())
		assert.Equal(t, tt.want, h.delay(tt.attempt), "%s attempt %d", tt.strategy, tt.attempt)
	}
}

func TestJitter_BoundAndClamp(t *testing.T) {
	h := New(&Config{MaxRetries: 1, Strategy: StrategyExponential, BaseDelay: time.Second, MaxDelay: 5 * time.Second}, zap.NewNop())

	for i := 0; i < 200; i++ {
		pre := h.delay(2) // 4s
		post := h.jittered(pre)
		assert.GreaterOrEqual(t, post, time.Duration(float64(pre)*0.75))
		assert.LessOrEqual(t, post, 5*time.Second)
	}

	// A pre-jitter delay above MaxDelay always clamps.
	for i := 0; i < 200; i++ {
		post := h.jittered(h.delay(6)) // 64s pre-jitter
		assert.LessOrEqual(t, post, 5*time.Second)
	}
}

func TestDo_TypedResult(t *testing.T) {
	h := New(fastConfig(3), zap.NewNop())

	calls := 0
	resp, err := Do(h, context.Background(), func() (*types.ChatResponse, error) {
		calls++
		if calls < 3 {
			return nil, types.NewError(types.ErrServerError, "not yet")
		}
		return &types.ChatResponse{Content: "done"}, nil
	})

	assert.NoError(t, err)
	assert.Equal(t, "done", resp.Content)
	assert.Equal(t, 3, calls)
}

func TestDo_ErrorReturnsZeroValue(t *testing.T) {
	h := New(&Config{MaxRetries: 0, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}, zap.NewNop())

	resp, err := Do(h, context.Background(), func() (*types.ChatResponse, error) {
		return &types.ChatResponse{Content: "partial"}, types.NewError(types.ErrUnknown, "fail")
	})

	assert.Error(t, err)
	assert.Nil(t, resp)
}

func TestOnRetryCallback(t *testing.T) {
	cfg := fastConfig(2)
	var attempts []int
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		attempts = append(attempts, attempt)
		assert.Greater(t, delay, time.Duration(0))
	}
	h := New(cfg, zap.NewNop())

	_ = h.Execute(context.Background(), func() error {
		return types.NewError(types.ErrServerError, "down")
	})

	assert.Equal(t, []int{1, 2}, attempts)
}
