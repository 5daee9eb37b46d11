package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
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

// ImageAdapter drives the DALL-E images API: generations as JSON,
// variations and edits as multipart uploads.
type ImageAdapter struct {
	cfg    providers.Config
	client *http.Client
	logger *zap.Logger
}

// NewImageAdapter builds the DALL-E adapter.
func NewImageAdapter(cfg providers.Config, logger *zap.Logger) (*ImageAdapter, error) {
	if cfg.Name == "" {
		cfg.Name = "openai"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "dall-e-3"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Minute
	}
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
		params.NumberDef("n", 1, 1, 10, "number of images to generate"),
		params.SelectDef("size", "1024x1024",
			[]string{"256x256", "512x512", "1024x1024", "1792x1024", "1024x1792"},
			"output resolution"),
		params.SelectDef("quality", "standard", []string{"standard", "hd"}, "rendering quality"),
		params.SelectDef("response_format", "url", []string{"url", "b64_json"}, "how images are returned"),
	}
}

type imageWireResponse struct {
	Created int64             `json:"created"`
	Data    []types.ImageData `json:"data"`
}

func (a *ImageAdapter) endpoint(path string) string {
	return strings.TrimRight(a.cfg.BaseURL, "/") + path
}

// Generate creates images from a text prompt.
func (a *ImageAdapter) Generate(ctx context.Context, req *gateway.ImageRequest) (*types.ImageResponse, error) {
	model := req.Model
	if model == "" {
		model = a.cfg.DefaultModel
	}
	body := map[string]any{
		"model":  model,
		"prompt": req.Prompt,
	}
	for _, key := range []string{"n", "size", "quality", "response_format"} {
		if v, ok := req.Params[key]; ok {
			body[key] = v
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal image request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint("/v1/images/generations"), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create image request: %w", err)
	}
	providers.BearerTokenHeaders(httpReq, a.cfg.APIKey)

	return a.send(httpReq, model)
}

// CreateVariation uploads an image and asks for variations of it.
func (a *ImageAdapter) CreateVariation(ctx context.Context, req *gateway.VariationRequest) (*types.ImageResponse, error) {
	model := req.Model
	if model == "" {
		model = "dall-e-2" // variations are a dall-e-2 feature
	}
	fields := map[string]string{"model": model}
	if n, ok := providers.Int(req.Params, "n"); ok {
		fields["n"] = fmt.Sprintf("%d", n)
	}
	if size, ok := providers.String(req.Params, "size"); ok {
		fields["size"] = size
	}

	httpReq, err := a.multipartRequest(ctx, "/v1/images/variations", fields, map[string][]byte{"image": req.Image})
	if err != nil {
		return nil, err
	}
	return a.send(httpReq, model)
}

// Edit uploads an image plus optional mask and applies a prompt-guided edit.
func (a *ImageAdapter) Edit(ctx context.Context, req *gateway.EditRequest) (*types.ImageResponse, error) {
	model := req.Model
	if model == "" {
		model = "dall-e-2" // edits are a dall-e-2 feature
	}
	fields := map[string]string{"model": model, "prompt": req.Prompt}
	if n, ok := providers.Int(req.Params, "n"); ok {
		fields["n"] = fmt.Sprintf("%d", n)
	}
	files := map[string][]byte{"image": req.Image}
	if len(req.Mask) > 0 {
		files["mask"] = req.Mask
	}

	httpReq, err := a.multipartRequest(ctx, "/v1/images/edits", fields, files)
	if err != nil {
		return nil, err
	}
	return a.send(httpReq, model)
}

func (a *ImageAdapter) multipartRequest(ctx context.Context, path string, fields map[string]string, files map[string][]byte) (*http.Request, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for key, value := range fields {
		if err := mw.WriteField(key, value); err != nil {
			return nil, fmt.Errorf("write multipart field %s: %w", key, err)
		}
	}
	for key, data := range files {
		part, err := mw.CreateFormFile(key, key+".png")
		if err != nil {
			return nil, fmt.Errorf("create multipart file %s: %w", key, err)
		}
		if _, err := io.Copy(part, bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("copy multipart file %s: %w", key, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("finalize multipart body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint(path), &buf)
	if err != nil {
		return nil, fmt.Errorf("create image request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())
	return httpReq, nil
}

func (a *ImageAdapter) send(httpReq *http.Request, model string) (*types.ImageResponse, error) {
	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, providers.TransportError(err, a.Name())
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, providers.MapHTTPError(resp.StatusCode, providers.ReadErrorMessage(resp.Body), a.Name())
	}

	var wire imageWireResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, types.NewError(types.ErrServerError, "malformed image response: "+err.Error()).
			WithHTTPStatus(http.StatusBadGateway).WithRetryable(true).WithProvider(a.Name())
	}

	out := &types.ImageResponse{
		ID:       uuid.NewString(),
		Provider: a.Name(),
		Model:    model,
		Status:   "succeeded",
		Images:   wire.Data,
	}
	if wire.Created != 0 {
		out.CreatedAt = time.Unix(wire.Created, 0)
	}
	return out, nil
}
