package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/flowgate-ai/flowgate/api"
	"github.com/flowgate-ai/flowgate/gateway"
	"github.com/flowgate-ai/flowgate/gateway/convo"
	"github.com/flowgate-ai/flowgate/gateway/stream"
	"github.com/flowgate-ai/flowgate/types"
)

// ChatHandler serves chat completions, plain and streamed.
type ChatHandler struct {
	registry    *gateway.Registry
	builder     *convo.Builder
	dispatcher  *stream.Dispatcher
	tokenBudget int
	logger      *zap.Logger
}

// NewChatHandler creates the chat endpoints. tokenBudget bounds the
// assembled conversation window; zero means unbounded.
func NewChatHandler(registry *gateway.Registry, builder *convo.Builder, dispatcher *stream.Dispatcher, tokenBudget int, logger *zap.Logger) *ChatHandler {
	if builder == nil {
		builder = convo.NewBuilder(nil, logger)
	}
	if dispatcher == nil {
		dispatcher = stream.New(stream.WithLogger(logger))
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatHandler{
		registry:    registry,
		builder:     builder,
		dispatcher:  dispatcher,
		tokenBudget: tokenBudget,
		logger:      logger.With(zap.String("handler", "chat")),
	}
}

func (h *ChatHandler) decode(w http.ResponseWriter, r *http.Request) (*api.ChatCompletionRequest, bool) {
	if !ValidateContentType(w, r, h.logger) {
		return nil, false
	}
	var req api.ChatCompletionRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return nil, false
	}
	if req.Provider == "" {
		WriteError(w, types.NewError(types.ErrBadRequest, "provider is required").
			WithHTTPStatus(http.StatusBadRequest), h.logger)
		return nil, false
	}
	if req.Prompt == "" && len(req.Messages) == 0 {
		WriteError(w, types.NewError(types.ErrBadRequest, "prompt or messages is required").
			WithHTTPStatus(http.StatusBadRequest), h.logger)
		return nil, false
	}
	return &req, true
}

// window assembles the bounded conversation context from the request.
func (h *ChatHandler) window(req *api.ChatCompletionRequest) convo.Context {
	history := make([]types.Message, 0, len(req.Messages))
	system := req.SystemPrompt
	for _, m := range req.Messages {
		switch types.Role(m.Role) {
		case types.RoleSystem:
			system = m.Content
		case types.RoleAssistant:
			history = append(history, types.AssistantMessage(m.Content))
		default:
			history = append(history, types.UserMessage(m.Content))
		}
	}
	if len(history) == 0 && req.Prompt != "" {
		history = append(history, types.UserMessage(req.Prompt))
	}
	return h.builder.BuildContext(history, system, h.tokenBudget)
}

// HandleCompletion serves POST /v1/chat/completions.
func (h *ChatHandler) HandleCompletion(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	client, err := h.registry.Chat(req.Provider)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	start := time.Now()
	resp, err := client.SendMessageWithContext(r.Context(), req.Model, h.window(req), req.Params)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	fields := []zap.Field{
		zap.String("provider", resp.Provider),
		zap.String("model", resp.Model),
		zap.Duration("duration", time.Since(start)),
	}
	if resp.Usage != nil {
		fields = append(fields,
			zap.Int("prompt_tokens", resp.Usage.PromptTokens),
			zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		)
	}
	h.logger.Info("chat completion", fields...)

	WriteSuccess(w, api.ChatCompletionResponse{
		ID:       resp.ID,
		Provider: resp.Provider,
		Model:    resp.Model,
		Content:  resp.Content,
		Usage:    resp.Usage,
	})
}

// HandleStream serves POST /v1/chat/completions/stream. Providers with
// native streaming are relayed chunk by chunk; the rest are completed
// upstream and replayed as a synthesized stream.
func (h *ChatHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	client, err := h.registry.Chat(req.Provider)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	ctx := r.Context()
	window := h.window(req)

	if sc, isStreaming := client.(gateway.StreamingChatClient); isStreaming {
		ch, err := sc.SendMessageStream(ctx, req.Model, window, req.Params)
		if err != nil {
			WriteError(w, err, h.logger)
			return
		}
		setStreamHeaders(w)
		if err := h.dispatcher.DispatchNative(ctx, w, client.Provider(), ch); err != nil {
			h.logger.Error("native stream dispatch failed", zap.Error(err))
		}
		return
	}

	resp, err := client.SendMessageWithContext(ctx, req.Model, window, req.Params)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	setStreamHeaders(w)
	if err := h.dispatcher.DispatchSynthesized(ctx, w, client.Provider(), resp.Content); err != nil {
		h.logger.Error("synthesized stream dispatch failed", zap.Error(err))
	}
}

func setStreamHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // disable nginx buffering
}
