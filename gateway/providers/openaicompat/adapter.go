// Package openaicompat implements the chat adapter for every provider that
// speaks the OpenAI /v1/chat/completions dialect. Vendor packages embed
// this and override only what differs (name, base URL, default model,
// headers).
package openaicompat

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/flowgate-ai/flowgate/gateway"
	"github.com/flowgate-ai/flowgate/gateway/params"
	"github.com/flowgate-ai/flowgate/gateway/providers"
	"github.com/flowgate-ai/flowgate/internal/tlsutil"
	"github.com/flowgate-ai/flowgate/types"
)

// Config extends the common adapter config with dialect knobs.
type Config struct {
	providers.Config

	// EndpointPath defaults to "/v1/chat/completions".
	EndpointPath string

	// ModelsEndpoint is probed by HealthCheck. Defaults to "/v1/models".
	ModelsEndpoint string

	// BuildHeaders overrides the default Bearer auth headers.
	BuildHeaders func(req *http.Request, apiKey string)
}

// Adapter is the OpenAI-compatible chat adapter. It supports native SSE
// streaming.
type Adapter struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// New builds an Adapter. Construction fails without an API key so registry
// factories surface credential problems lazily per request.
func New(cfg Config, logger *zap.Logger) (*Adapter, error) {
	if err := providers.RequireAPIKey(cfg.Config); err != nil {
		return nil, err
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/v1/chat/completions"
	}
	if cfg.ModelsEndpoint == "" {
		cfg.ModelsEndpoint = "/v1/models"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{
		cfg:    cfg,
		client: tlsutil.SecureHTTPClient(cfg.Timeout),
		logger: logger.With(zap.String("provider", cfg.Name)),
	}, nil
}

func (a *Adapter) Name() string { return a.cfg.Name }

// ParameterDefinitions describes the tunables this dialect accepts.
func (a *Adapter) ParameterDefinitions() []params.Definition {
	return []params.Definition{
		params.NumberDef("temperature", 1, 0, 2, "sampling temperature"),
		params.NumberDef("max_tokens", 2048, 1, 128000, "completion token cap"),
		params.NumberDef("top_p", 1, 0, 1, "nucleus sampling probability mass"),
		params.BoolDef("stream", false, "request incremental output"),
	}
}

func (a *Adapter) endpoint(path string) string {
	return strings.TrimRight(a.cfg.BaseURL, "/") + path
}

func (a *Adapter) headers(req *http.Request) {
	if a.cfg.BuildHeaders != nil {
		a.cfg.BuildHeaders(req, a.cfg.APIKey)
		return
	}
	providers.BearerTokenHeaders(req, a.cfg.APIKey)
}

func (a *Adapter) buildBody(req *gateway.ChatRequest, stream bool) providers.OpenAIChatRequest {
	model := req.Model
	if model == "" {
		model = a.cfg.DefaultModel
	}
	body := providers.OpenAIChatRequest{
		Model:    model,
		Messages: providers.ConvertMessages(req.Messages),
		Stream:   stream,
	}
	if v, ok := providers.Float(req.Params, "temperature"); ok {
		body.Temperature = v
	}
	if v, ok := providers.Int(req.Params, "max_tokens"); ok {
		body.MaxTokens = v
	}
	if v, ok := providers.Float(req.Params, "top_p"); ok {
		body.TopP = v
	}
	return body
}

func (a *Adapter) post(ctx context.Context, body providers.OpenAIChatRequest) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint(a.cfg.EndpointPath), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create chat request: %w", err)
	}
	a.headers(httpReq)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, providers.TransportError(err, a.Name())
	}
	return resp, nil
}

// Complete performs a non-streaming chat completion.
func (a *Adapter) Complete(ctx context.Context, req *gateway.ChatRequest) (*types.ChatResponse, error) {
	resp, err := a.post(ctx, a.buildBody(req, false))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, providers.MapHTTPError(resp.StatusCode, providers.ReadErrorMessage(resp.Body), a.Name())
	}

	var oa providers.OpenAIChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&oa); err != nil {
		return nil, types.NewError(types.ErrServerError, "malformed completion response: "+err.Error()).
			WithHTTPStatus(http.StatusBadGateway).WithRetryable(true).WithProvider(a.Name())
	}

	out := &types.ChatResponse{
		ID:       oa.ID,
		Provider: a.Name(),
		Model:    oa.Model,
		Role:     types.RoleAssistant,
		Usage:    providers.ConvertUsage(oa.Usage),
	}
	if len(oa.Choices) > 0 {
		out.Content = oa.Choices[0].Message.Content
	}
	if oa.Created != 0 {
		out.CreatedAt = time.Unix(oa.Created, 0)
	}
	return out, nil
}

// Stream performs a streaming chat completion over SSE.
func (a *Adapter) Stream(ctx context.Context, req *gateway.ChatRequest) (<-chan gateway.StreamChunk, error) {
	resp, err := a.post(ctx, a.buildBody(req, true))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, providers.MapHTTPError(resp.StatusCode, providers.ReadErrorMessage(resp.Body), a.Name())
	}
	return parseSSE(ctx, resp.Body, a.Name()), nil
}

// HealthCheck probes the models endpoint.
func (a *Adapter) HealthCheck(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, a.endpoint(a.cfg.ModelsEndpoint), nil)
	if err != nil {
		return fmt.Errorf("create health request: %w", err)
	}
	a.headers(httpReq)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return providers.TransportError(err, a.Name())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return providers.MapHTTPError(resp.StatusCode, providers.ReadErrorMessage(resp.Body), a.Name())
	}
	return nil
}

// parseSSE reads an OpenAI-compatible SSE body and forwards content deltas.
// The goroutine owns body and exits on [DONE], read error, or ctx cancel.
func parseSSE(ctx context.Context, body io.ReadCloser, provider string) <-chan gateway.StreamChunk {
	ch := make(chan gateway.StreamChunk)
	go func() {
		defer body.Close()
		defer close(ch)
		reader := bufio.NewReader(body)
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				if err != io.EOF {
					streamErr := types.NewError(types.ErrConnectionError, err.Error()).
						WithRetryable(true).WithProvider(provider)
					select {
					case <-ctx.Done():
					case ch <- gateway.StreamChunk{Err: streamErr}:
					}
				}
				return
			}
			line = strings.TrimSpace(line)
			if line == "" || !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				return
			}

			var oa providers.OpenAIChatResponse
			if err := json.Unmarshal([]byte(data), &oa); err != nil {
				streamErr := types.NewError(types.ErrServerError, "malformed stream event: "+err.Error()).
					WithRetryable(true).WithProvider(provider)
				select {
				case <-ctx.Done():
				case ch <- gateway.StreamChunk{Err: streamErr}:
				}
				return
			}

			for _, choice := range oa.Choices {
				if choice.Delta == nil || choice.Delta.Content == "" {
					continue
				}
				select {
				case <-ctx.Done():
					return
				case ch <- gateway.StreamChunk{Content: choice.Delta.Content}:
				}
			}
		}
	}()
	return ch
}
