package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/flowgate-ai/flowgate/gateway"
	"github.com/flowgate-ai/flowgate/gateway/params"
	"github.com/flowgate-ai/flowgate/gateway/providers"
	"github.com/flowgate-ai/flowgate/internal/tlsutil"
	"github.com/flowgate-ai/flowgate/types"
)

// ImageAdapter drives Imagen through the predict endpoint. Imagen returns
// inline base64 images rather than hosted URLs.
type ImageAdapter struct {
	cfg    providers.Config
	client *http.Client
	logger *zap.Logger
}

// NewImageAdapter builds the Imagen adapter.
func NewImageAdapter(cfg providers.Config, logger *zap.Logger) (*ImageAdapter, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Minute
	}
	applyDefaults(&cfg, "imagen-3.0-generate-002")
	if err := providers.RequireAPIKey(cfg); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImageAdapter{
		cfg:    cfg,
		client: tlsutil.SecureHTTPClient(cfg.Timeout),
		logger: logger.With(zap.String("provider", cfg.Name)),
	}, nil
}

func (a *ImageAdapter) Name() string { return a.cfg.Name }

func (a *ImageAdapter) ParameterDefinitions() []params.Definition {
	return []params.Definition{
		params.NumberDef("n", 1, 1, 4, "number of images to generate"),
		params.SelectDef("aspect_ratio", "1:1", []string{"1:1", "3:4", "4:3", "9:16", "16:9"}, "output aspect ratio"),
	}
}

type imagenParameters struct {
	SampleCount int    `json:"sampleCount,omitempty"`
	AspectRatio string `json:"aspectRatio,omitempty"`
}

type imagenRequest struct {
	Instances  []imagenInstance `json:"instances"`
	Parameters imagenParameters `json:"parameters"`
}

type imagenInstance struct {
	Prompt string `json:"prompt"`
}

type imagenPrediction struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded"`
	MimeType           string `json:"mimeType,omitempty"`
}

type imagenResponse struct {
	Predictions []imagenPrediction `json:"predictions"`
}

// Generate produces images from a text prompt.
func (a *ImageAdapter) Generate(ctx context.Context, req *gateway.ImageRequest) (*types.ImageResponse, error) {
	model := req.Model
	if model == "" {
		model = a.cfg.DefaultModel
	}

	body := imagenRequest{Instances: []imagenInstance{{Prompt: req.Prompt}}}
	if v, ok := providers.Int(req.Params, "n"); ok {
		body.Parameters.SampleCount = v
	}
	if v, ok := providers.String(req.Params, "aspect_ratio"); ok {
		body.Parameters.AspectRatio = v
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal predict request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:predict", strings.TrimRight(a.cfg.BaseURL, "/"), model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create predict request: %w", err)
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

	var ir imagenResponse
	if err := json.NewDecoder(resp.Body).Decode(&ir); err != nil {
		return nil, types.NewError(types.ErrServerError, "malformed predict response: "+err.Error()).
			WithHTTPStatus(http.StatusBadGateway).WithRetryable(true).WithProvider(a.Name())
	}

	images := make([]types.ImageData, 0, len(ir.Predictions))
	for _, p := range ir.Predictions {
		images = append(images, types.ImageData{B64JSON: p.BytesBase64Encoded})
	}
	return &types.ImageResponse{
		ID:        uuid.NewString(),
		Provider:  a.Name(),
		Model:     model,
		Status:    "succeeded",
		Images:    images,
		CreatedAt: time.Now(),
	}, nil
}

// CreateVariation is not offered by the Imagen predict surface.
func (a *ImageAdapter) CreateVariation(ctx context.Context, req *gateway.VariationRequest) (*types.ImageResponse, error) {
	return nil, types.NewError(types.ErrBadRequest, "image variations are not supported by this provider").
		WithHTTPStatus(http.StatusBadRequest).WithProvider(a.Name())
}

// Edit is not offered by the Imagen predict surface.
func (a *ImageAdapter) Edit(ctx context.Context, req *gateway.EditRequest) (*types.ImageResponse, error) {
	return nil, types.NewError(types.ErrBadRequest, "image edits are not supported by this provider").
		WithHTTPStatus(http.StatusBadRequest).WithProvider(a.Name())
}

// HealthCheck probes the models listing.
func (a *ImageAdapter) HealthCheck(ctx context.Context) error {
	return healthCheck(ctx, a.client, a.cfg, a.Name())
}

func healthCheck(ctx context.Context, client *http.Client, cfg providers.Config, name string) error {
	endpoint := strings.TrimRight(cfg.BaseURL, "/") + "/v1beta/models"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create health request: %w", err)
	}
	httpReq.Header.Set("x-goog-api-key", cfg.APIKey)

	resp, err := client.Do(httpReq)
	if err != nil {
		return providers.TransportError(err, name)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return providers.MapHTTPError(resp.StatusCode, providers.ReadErrorMessage(resp.Body), name)
	}
	return nil
}
