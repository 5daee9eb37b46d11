package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/flowgate-ai/flowgate/api"
	"github.com/flowgate-ai/flowgate/gateway"
	"github.com/flowgate-ai/flowgate/types"
)

// ImageHandler serves image generation.
type ImageHandler struct {
	registry *gateway.Registry
	logger   *zap.Logger
}

// NewImageHandler creates the image endpoints.
func NewImageHandler(registry *gateway.Registry, logger *zap.Logger) *ImageHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImageHandler{
		registry: registry,
		logger:   logger.With(zap.String("handler", "image")),
	}
}

// HandleGenerate serves POST /v1/images/generations.
func (h *ImageHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}
	var req api.ImageGenerationRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if req.Provider == "" || req.Prompt == "" {
		WriteError(w, types.NewError(types.ErrBadRequest, "provider and prompt are required").
			WithHTTPStatus(http.StatusBadRequest), h.logger)
		return
	}

	client, err := h.registry.Image(req.Provider)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	resp, err := client.Generate(r.Context(), &gateway.ImageRequest{
		Model:  req.Model,
		Prompt: req.Prompt,
		Params: req.Params,
	})
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	h.logger.Info("image generation",
		zap.String("provider", resp.Provider),
		zap.String("model", resp.Model),
		zap.Int("images", len(resp.Images)),
	)
	WriteSuccess(w, resp)
}
