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

// VideoAdapter drives Veo. Video generation is long running: the predict
// call returns an operation name, and the caller polls it out of band.
type VideoAdapter struct {
	cfg    providers.Config
	client *http.Client
	logger *zap.Logger
}

// NewVideoAdapter builds the Veo adapter.
func NewVideoAdapter(cfg providers.Config, logger *zap.Logger) (*VideoAdapter, error) {
	applyDefaults(&cfg, "veo-2.0-generate-001")
	if err := providers.RequireAPIKey(cfg); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VideoAdapter{
		cfg:    cfg,
		client: tlsutil.SecureHTTPClient(cfg.Timeout),
		logger: logger.With(zap.String("provider", cfg.Name)),
	}, nil
}

func (a *VideoAdapter) Name() string { return a.cfg.Name }

func (a *VideoAdapter) ParameterDefinitions() []params.Definition {
	return []params.Definition{
		params.SelectDef("aspect_ratio", "16:9", []string{"16:9", "9:16"}, "output aspect ratio"),
		params.NumberDef("duration_seconds", 5, 5, 8, "clip length in seconds"),
	}
}

type veoParameters struct {
	AspectRatio     string `json:"aspectRatio,omitempty"`
	DurationSeconds int    `json:"durationSeconds,omitempty"`
}

type veoRequest struct {
	Instances  []veoInstance `json:"instances"`
	Parameters veoParameters `json:"parameters"`
}

type veoInstance struct {
	Prompt string `json:"prompt"`
}

type veoOperation struct {
	Name string `json:"name"`
	Done bool   `json:"done"`
}

// Generate starts a video generation and returns the pending operation.
func (a *VideoAdapter) Generate(ctx context.Context, req *gateway.VideoRequest) (*types.VideoResponse, error) {
	model := req.Model
	if model == "" {
		model = a.cfg.DefaultModel
	}

	body := veoRequest{Instances: []veoInstance{{Prompt: req.Prompt}}}
	if v, ok := providers.String(req.Params, "aspect_ratio"); ok {
		body.Parameters.AspectRatio = v
	}
	if v, ok := providers.Int(req.Params, "duration_seconds"); ok {
		body.Parameters.DurationSeconds = v
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal video request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:predictLongRunning", strings.TrimRight(a.cfg.BaseURL, "/"), model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create video request: %w", err)
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

	var op veoOperation
	if err := json.NewDecoder(resp.Body).Decode(&op); err != nil {
		return nil, types.NewError(types.ErrServerError, "malformed video response: "+err.Error()).
			WithHTTPStatus(http.StatusBadGateway).WithRetryable(true).WithProvider(a.Name())
	}

	status := "pending"
	if op.Done {
		status = "succeeded"
	}
	return &types.VideoResponse{
		ID:          op.Name,
		Provider:    a.Name(),
		Model:       model,
		Status:      status,
		OperationID: op.Name,
		CreatedAt:   time.Now(),
	}, nil
}

// HealthCheck probes the models listing.
func (a *VideoAdapter) HealthCheck(ctx context.Context) error {
	return healthCheck(ctx, a.client, a.cfg, a.Name())
}
