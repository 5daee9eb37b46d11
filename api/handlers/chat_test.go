package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/flowgate-ai/flowgate/api"
	"github.com/flowgate-ai/flowgate/gateway"
	"github.com/flowgate-ai/flowgate/gateway/params"
	"github.com/flowgate-ai/flowgate/gateway/ratelimit"
	"github.com/flowgate-ai/flowgate/gateway/stream"
	"github.com/flowgate-ai/flowgate/types"
)

type stubChatAdapter struct {
	name    string
	lastReq *gateway.ChatRequest
	fail    error
	content string
}

func (s *stubChatAdapter) Name() string { return s.name }

func (s *stubChatAdapter) Complete(_ context.Context, req *gateway.ChatRequest) (*types.ChatResponse, error) {
	s.lastReq = req
	if s.fail != nil {
		return nil, s.fail
	}
	content := s.content
	if content == "" {
		content = "stub reply"
	}
	return &types.ChatResponse{
		ID:       "resp-1",
		Provider: s.name,
		Model:    req.Model,
		Role:     types.RoleAssistant,
		Content:  content,
		Usage:    &types.Usage{PromptTokens: 9, CompletionTokens: 4, TotalTokens: 13},
	}, nil
}

func (s *stubChatAdapter) ParameterDefinitions() []params.Definition {
	return []params.Definition{
		params.NumberDef("temperature", 1, 0, 2, "sampling temperature"),
	}
}

func (s *stubChatAdapter) HealthCheck(context.Context) error { return nil }

type stubStreamingAdapter struct {
	stubChatAdapter
	chunks []string
}

func (s *stubStreamingAdapter) Stream(_ context.Context, req *gateway.ChatRequest) (<-chan gateway.StreamChunk, error) {
	s.lastReq = req
	out := make(chan gateway.StreamChunk, len(s.chunks))
	for _, c := range s.chunks {
		out <- gateway.StreamChunk{Content: c}
	}
	close(out)
	return out, nil
}

func newChatRig(t *testing.T, adapter gateway.ChatAdapter, opts ...gateway.PipelineOption) *ChatHandler {
	t.Helper()
	registry := gateway.NewRegistry(zap.NewNop())
	registry.Register(gateway.CapabilityChat, adapter.Name(), func() (gateway.Client, error) {
		return gateway.NewChatClient(adapter, opts...), nil
	})
	return NewChatHandler(registry, nil, stream.New(stream.WithDelay(0)), 0, zap.NewNop())
}

func postJSON(t *testing.T, handler http.HandlerFunc, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHandleCompletion(t *testing.T) {
	adapter := &stubChatAdapter{name: "stub"}
	h := newChatRig(t, adapter)

	rec := postJSON(t, h.HandleCompletion, api.ChatCompletionRequest{
		Provider: "stub",
		Model:    "stub-1",
		Messages: []api.ChatMessage{
			{Role: "user", Content: "hello"},
			{Role: "assistant", Content: "hi"},
			{Role: "user", Content: "again"},
		},
		SystemPrompt: "be brief",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)

	require.NotNil(t, adapter.lastReq)
	require.Len(t, adapter.lastReq.Messages, 4)
	assert.Equal(t, types.RoleSystem, adapter.lastReq.Messages[0].Role)
	assert.Equal(t, "again", adapter.lastReq.Messages[3].Content)

	data, err := json.Marshal(env.Data)
	require.NoError(t, err)
	var out api.ChatCompletionResponse
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "stub reply", out.Content)
	assert.Equal(t, "stub", out.Provider)
	require.NotNil(t, out.Usage)
	assert.Equal(t, 13, out.Usage.TotalTokens)
}

func TestHandleCompletionPromptOnly(t *testing.T) {
	adapter := &stubChatAdapter{name: "stub"}
	h := newChatRig(t, adapter)

	rec := postJSON(t, h.HandleCompletion, api.ChatCompletionRequest{
		Provider: "stub",
		Prompt:   "just this",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, adapter.lastReq.Messages, 1)
	assert.Equal(t, "just this", adapter.lastReq.Messages[0].Content)
}

func TestHandleCompletionBadRequests(t *testing.T) {
	h := newChatRig(t, &stubChatAdapter{name: "stub"})

	t.Run("missing provider", func(t *testing.T) {
		rec := postJSON(t, h.HandleCompletion, api.ChatCompletionRequest{Prompt: "x"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing prompt and messages", func(t *testing.T) {
		rec := postJSON(t, h.HandleCompletion, api.ChatCompletionRequest{Provider: "stub"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("wrong content type", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{}"))
		req.Header.Set("Content-Type", "text/plain")
		rec := httptest.NewRecorder()
		h.HandleCompletion(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown field", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"provider":"stub","bogus":1}`))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		h.HandleCompletion(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleCompletionUnknownProvider(t *testing.T) {
	h := newChatRig(t, &stubChatAdapter{name: "stub"})

	rec := postJSON(t, h.HandleCompletion, api.ChatCompletionRequest{
		Provider: "nope",
		Prompt:   "x",
	})

	require.Equal(t, http.StatusNotFound, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "PROVIDER_NOT_FOUND", env.Error.Code)
}

func TestHandleCompletionValidationFailure(t *testing.T) {
	h := newChatRig(t, &stubChatAdapter{name: "stub"})

	rec := postJSON(t, h.HandleCompletion, api.ChatCompletionRequest{
		Provider: "stub",
		Prompt:   "x",
		Params:   map[string]any{"temperature": 9.5},
	})

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)
	assert.NotEmpty(t, env.Error.Fields)
}

func TestHandleCompletionRateLimited(t *testing.T) {
	limiter := ratelimit.New([]ratelimit.Rule{{Requests: 1, Period: time.Minute}})
	h := newChatRig(t, &stubChatAdapter{name: "stub"}, gateway.WithRateLimiter(limiter))

	body := api.ChatCompletionRequest{Provider: "stub", Prompt: "x"}
	rec := postJSON(t, h.HandleCompletion, body)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(t, h.HandleCompletion, body)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestHandleCompletionProviderError(t *testing.T) {
	adapter := &stubChatAdapter{
		name: "stub",
		fail: types.NewError(types.ErrContentBlocked, "blocked").WithHTTPStatus(http.StatusBadRequest),
	}
	h := newChatRig(t, adapter)

	rec := postJSON(t, h.HandleCompletion, api.ChatCompletionRequest{Provider: "stub", Prompt: "x"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, string(types.ErrContentBlocked), env.Error.Code)
}

func sseFrames(t *testing.T, body string) []stream.Frame {
	t.Helper()
	var frames []stream.Frame
	for _, block := range strings.Split(body, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		require.True(t, strings.HasPrefix(block, "data: "))
		payload := strings.TrimPrefix(block, "data: ")
		if payload == stream.Sentinel {
			continue
		}
		var f stream.Frame
		require.NoError(t, json.Unmarshal([]byte(payload), &f))
		frames = append(frames, f)
	}
	return frames
}

func TestHandleStreamNative(t *testing.T) {
	adapter := &stubStreamingAdapter{
		stubChatAdapter: stubChatAdapter{name: "stub"},
		chunks:          []string{"hel", "lo"},
	}
	h := newChatRig(t, adapter)

	rec := postJSON(t, h.HandleStream, api.ChatCompletionRequest{Provider: "stub", Prompt: "x"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	frames := sseFrames(t, rec.Body.String())
	require.NotEmpty(t, frames)
	assert.Equal(t, "start", frames[0].Type)
	assert.Equal(t, stream.ModeNative, frames[0].Mode)

	var content strings.Builder
	for _, f := range frames {
		if f.Type == "chunk" {
			content.WriteString(f.Content)
		}
	}
	assert.Equal(t, "hello", content.String())
	assert.Equal(t, "end", frames[len(frames)-1].Type)
	assert.Contains(t, rec.Body.String(), "data: "+stream.Sentinel)
}

func TestHandleStreamSynthesized(t *testing.T) {
	adapter := &stubChatAdapter{name: "stub", content: "a plain completion replayed as chunks"}
	h := newChatRig(t, adapter)

	rec := postJSON(t, h.HandleStream, api.ChatCompletionRequest{Provider: "stub", Prompt: "x"})

	require.Equal(t, http.StatusOK, rec.Code)
	frames := sseFrames(t, rec.Body.String())
	require.NotEmpty(t, frames)
	assert.Equal(t, stream.ModeSynthesized, frames[0].Mode)

	var content strings.Builder
	for _, f := range frames {
		if f.Type == "chunk" {
			content.WriteString(f.Content)
		}
	}
	assert.Equal(t, "a plain completion replayed as chunks", content.String())
}

func TestHandleStreamErrorBeforeHeaders(t *testing.T) {
	adapter := &stubChatAdapter{
		name: "stub",
		fail: types.NewError(types.ErrServerError, "boom").WithHTTPStatus(http.StatusBadGateway),
	}
	h := newChatRig(t, adapter)

	rec := postJSON(t, h.HandleStream, api.ChatCompletionRequest{Provider: "stub", Prompt: "x"})

	// The upstream call failed before any frame was written, so the
	// client gets a JSON error, not a broken stream.
	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
}
