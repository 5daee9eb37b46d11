// Package gemini implements the Google Gemini chat, image and video
// adapters. Gemini authenticates with the x-goog-api-key header and routes
// requests per model, models/<model>:<method>.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
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

const defaultBaseURL = "https://generativelanguage.googleapis.com"

// ChatAdapter drives generateContent. It intentionally has no Stream
// method: callers that want incremental output get the synthesized
// streaming path.
type ChatAdapter struct {
	cfg    providers.Config
	client *http.Client
	logger *zap.Logger
}

// NewChatAdapter builds the Gemini chat adapter.
func NewChatAdapter(cfg providers.Config, logger *zap.Logger) (*ChatAdapter, error) {
	applyDefaults(&cfg, "gemini-2.0-flash")
	if err := providers.RequireAPIKey(cfg); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatAdapter{
		cfg:    cfg,
		client: tlsutil.SecureHTTPClient(cfg.Timeout),
		logger: logger.With(zap.String("provider", cfg.Name)),
	}, nil
}

func applyDefaults(cfg *providers.Config, model string) {
	if cfg.Name == "" {
		cfg.Name = "gemini"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = model
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
}

func (a *ChatAdapter) Name() string { return a.cfg.Name }

func (a *ChatAdapter) ParameterDefinitions() []params.Definition {
	return []params.Definition{
		params.NumberDef("temperature", 1, 0, 2, "sampling temperature"),
		params.NumberDef("max_tokens", 2048, 1, 65536, "output token cap"),
		params.NumberDef("top_p", 0.95, 0, 1, "nucleus sampling probability mass"),
	}
}

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     float64  `json:"temperature,omitempty"`
	TopP            float64  `json:"topP,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
	StopSequences   []string `json:"stopSequences,omitempty"`
}

func (gc *geminiGenerationConfig) isZero() bool {
	return gc.Temperature == 0 && gc.TopP == 0 && gc.MaxOutputTokens == 0 && len(gc.StopSequences) == 0
}

type geminiRequest struct {
	Contents          []geminiContent         `json:"contents"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
	Index        int           `json:"index"`
}

type geminiUsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type geminiResponse struct {
	Candidates    []geminiCandidate    `json:"candidates"`
	UsageMetadata *geminiUsageMetadata `json:"usageMetadata,omitempty"`
	ModelVersion  string               `json:"modelVersion,omitempty"`
	ResponseID    string               `json:"responseId,omitempty"`
}

// convertContents splits the system message off into systemInstruction and
// maps roles: assistant becomes "model" on the Gemini wire.
func convertContents(msgs []types.Message) (*geminiContent, []geminiContent) {
	var system *geminiContent
	contents := make([]geminiContent, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case types.RoleSystem:
			system = &geminiContent{Parts: []geminiPart{{Text: m.Content}}}
		case types.RoleAssistant:
			contents = append(contents, geminiContent{Role: "model", Parts: []geminiPart{{Text: m.Content}}})
		default:
			contents = append(contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: m.Content}}})
		}
	}
	return system, contents
}

// Complete performs a non-streaming generation.
func (a *ChatAdapter) Complete(ctx context.Context, req *gateway.ChatRequest) (*types.ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = a.cfg.DefaultModel
	}

	system, contents := convertContents(req.Messages)
	body := geminiRequest{Contents: contents, SystemInstruction: system}

	gc := &geminiGenerationConfig{}
	if v, ok := providers.Float(req.Params, "temperature"); ok {
		gc.Temperature = v
	}
	if v, ok := providers.Float(req.Params, "top_p"); ok {
		gc.TopP = v
	}
	if v, ok := providers.Int(req.Params, "max_tokens"); ok {
		gc.MaxOutputTokens = v
	}
	if !gc.isZero() {
		body.GenerationConfig = gc
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal generate request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", strings.TrimRight(a.cfg.BaseURL, "/"), model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create generate request: %w", err)
	}
	httpReq.Header.Set("x-goog-api-key", a.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, providers.TransportError(err, a.Name())
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, providers.MapHTTPError(resp.StatusCode, providers.ReadErrorMessage(resp.Body), a.Name())
	}

	var gr geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return nil, types.NewError(types.ErrServerError, "malformed generate response: "+err.Error()).
			WithHTTPStatus(http.StatusBadGateway).WithRetryable(true).WithProvider(a.Name())
	}

	out := &types.ChatResponse{
		ID:       gr.ResponseID,
		Provider: a.Name(),
		Model:    model,
		Role:     types.RoleAssistant,
	}
	if len(gr.Candidates) > 0 {
		cand := gr.Candidates[0]
		if cand.FinishReason == "SAFETY" {
			return nil, types.NewError(types.ErrContentBlocked, "response blocked by safety filters").
				WithHTTPStatus(http.StatusBadRequest).WithProvider(a.Name())
		}
		var sb strings.Builder
		for _, part := range cand.Content.Parts {
			sb.WriteString(part.Text)
		}
		out.Content = sb.String()
	}
	if gr.UsageMetadata != nil {
		out.Usage = &types.Usage{
			PromptTokens:     gr.UsageMetadata.PromptTokenCount,
			CompletionTokens: gr.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      gr.UsageMetadata.TotalTokenCount,
		}
	}
	return out, nil
}

// HealthCheck probes the models listing.
func (a *ChatAdapter) HealthCheck(ctx context.Context) error {
	return healthCheck(ctx, a.client, a.cfg, a.Name())
}
