package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgate-ai/flowgate/gateway/convo"
	"github.com/flowgate-ai/flowgate/gateway/params"
	"github.com/flowgate-ai/flowgate/gateway/ratelimit"
	"github.com/flowgate-ai/flowgate/gateway/retry"
	"github.com/flowgate-ai/flowgate/types"
)

type mockChatAdapter struct {
	name     string
	calls    int
	failWith []error
	lastReq  *ChatRequest
}

func (m *mockChatAdapter) Name() string { return m.name }

func (m *mockChatAdapter) Complete(_ context.Context, req *ChatRequest) (*types.ChatResponse, error) {
	m.calls++
	m.lastReq = req
	if len(m.failWith) > 0 {
		err := m.failWith[0]
		m.failWith = m.failWith[1:]
		return nil, err
	}
	return &types.ChatResponse{
		ID:       "resp-1",
		Provider: m.name,
		Role:     types.RoleAssistant,
		Content:  "ok",
	}, nil
}

func (m *mockChatAdapter) ParameterDefinitions() []params.Definition {
	return []params.Definition{
		params.NumberDef("temperature", 1, 0, 2, "sampling temperature"),
		params.NumberDef("max_tokens", 1024, 1, 8192, "completion token cap"),
	}
}

func (m *mockChatAdapter) HealthCheck(context.Context) error { return nil }

type mockStreamingAdapter struct {
	mockChatAdapter
	chunks []string
}

func (m *mockStreamingAdapter) Stream(ctx context.Context, req *ChatRequest) (<-chan StreamChunk, error) {
	m.calls++
	m.lastReq = req
	out := make(chan StreamChunk, len(m.chunks))
	for _, c := range m.chunks {
		out <- StreamChunk{Content: c}
	}
	close(out)
	return out, nil
}

func fastRetryConfig(maxRetries int) *retry.Config {
	return &retry.Config{
		MaxRetries: maxRetries,
		Strategy:   retry.StrategyFixed,
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
	}
}

func TestSendMessage_Success(t *testing.T) {
	adapter := &mockChatAdapter{name: "mock"}
	client := NewChatClient(adapter)

	resp, err := client.SendMessage(context.Background(), "m1", "hello", map[string]any{"temperature": 0.7})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)

	require.Len(t, adapter.lastReq.Messages, 1)
	assert.Equal(t, types.RoleUser, adapter.lastReq.Messages[0].Role)
	assert.Equal(t, "hello", adapter.lastReq.Messages[0].Content)
	assert.Equal(t, 0.7, adapter.lastReq.Params["temperature"])
	// Defaults merged for parameters the caller left unset.
	assert.Equal(t, float64(1024), adapter.lastReq.Params["max_tokens"])
}

func TestSendMessage_ValidationRejectsBeforeAdapter(t *testing.T) {
	adapter := &mockChatAdapter{name: "mock"}
	limiter := ratelimit.New([]ratelimit.Rule{{Requests: 100, Period: time.Minute}})
	client := NewChatClient(adapter, WithRateLimiter(limiter))

	_, err := client.SendMessage(context.Background(), "m1", "hello", map[string]any{"temperature": 3.0})
	require.Error(t, err)

	var verr *params.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Result.Errors, 1)
	assert.Equal(t, params.CodeOutOfRange, verr.Result.Errors[0].Code)

	// The adapter was never invoked and no rate-limit slot was charged.
	assert.Equal(t, 0, adapter.calls)
	assert.NoError(t, limiter.Check("anonymous"))
}

func TestSendMessage_TransientErrorsThenSuccess(t *testing.T) {
	serverErr := types.NewError(types.ErrServerError, "upstream 500").WithRetryable(true)
	adapter := &mockChatAdapter{
		name:     "mock",
		failWith: []error{serverErr, serverErr},
	}
	client := NewChatClient(adapter, WithRetryConfig(fastRetryConfig(3)))

	resp, err := client.SendMessage(context.Background(), "m1", "hello", nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, 3, adapter.calls)
}

func TestSendMessage_NonRetryableErrorPropagates(t *testing.T) {
	blocked := types.NewError(types.ErrContentBlocked, "safety filter")
	adapter := &mockChatAdapter{
		name:     "mock",
		failWith: []error{blocked},
	}
	client := NewChatClient(adapter, WithRetryConfig(fastRetryConfig(3)))

	_, err := client.SendMessage(context.Background(), "m1", "hello", nil)
	require.Error(t, err)
	assert.Equal(t, types.ErrContentBlocked, types.GetErrorCode(err))
	assert.Equal(t, 1, adapter.calls)
}

func TestSendMessage_RateLimitNotRetried(t *testing.T) {
	adapter := &mockChatAdapter{name: "mock"}
	limiter := ratelimit.New([]ratelimit.Rule{{Requests: 1, Period: time.Minute}})
	client := NewChatClient(adapter, WithRateLimiter(limiter), WithRetryConfig(fastRetryConfig(3)))

	ctx := WithIdentity(context.Background(), "user-1")
	_, err := client.SendMessage(ctx, "m1", "first", nil)
	require.NoError(t, err)

	_, err = client.SendMessage(ctx, "m1", "second", nil)
	require.Error(t, err)

	rle, ok := types.AsRateLimitError(err)
	require.True(t, ok)
	assert.Equal(t, "user-1", rle.Identity)
	// Rejected locally: exactly one adapter call, no retries of the check.
	assert.Equal(t, 1, adapter.calls)
}

func TestSendMessageWithContext_PassesWindow(t *testing.T) {
	adapter := &mockChatAdapter{name: "mock"}
	client := NewChatClient(adapter)

	window := convo.NewBuilder(nil, nil).BuildContext([]types.Message{
		types.UserMessage("q1"),
		types.AssistantMessage("a1"),
		types.UserMessage("q2"),
	}, "be brief", 0)

	_, err := client.SendMessageWithContext(context.Background(), "m1", window, nil)
	require.NoError(t, err)
	require.Len(t, adapter.lastReq.Messages, 4)
	assert.Equal(t, types.RoleSystem, adapter.lastReq.Messages[0].Role)
}

func TestNewChatClient_StreamingDiscoveredByAssertion(t *testing.T) {
	plain := NewChatClient(&mockChatAdapter{name: "plain"})
	_, ok := plain.(StreamingChatClient)
	assert.False(t, ok)

	streaming := NewChatClient(&mockStreamingAdapter{
		mockChatAdapter: mockChatAdapter{name: "streamy"},
		chunks:          []string{"he", "llo"},
	})
	sc, ok := streaming.(StreamingChatClient)
	require.True(t, ok)

	ch, err := sc.SendMessageStream(context.Background(), "m1", convo.Context{}, nil)
	require.NoError(t, err)
	var got string
	for chunk := range ch {
		require.NoError(t, chunk.Err)
		got += chunk.Content
	}
	assert.Equal(t, "hello", got)
}

func TestIdentityFromContext(t *testing.T) {
	assert.Equal(t, AnonymousIdentity, IdentityFromContext(context.Background()))
	ctx := WithIdentity(context.Background(), "user-9")
	assert.Equal(t, "user-9", IdentityFromContext(ctx))
}
