package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/flowgate-ai/flowgate/api"
	"github.com/flowgate-ai/flowgate/gateway"
	"github.com/flowgate-ai/flowgate/types"
)

// VideoHandler serves video generation.
type VideoHandler struct {
	registry *gateway.Registry
	logger   *zap.Logger
}

// NewVideoHandler creates the video endpoints.
func NewVideoHandler(registry *gateway.Registry, logger *zap.Logger) *VideoHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VideoHandler{
		registry: registry,
		logger:   logger.With(zap.String("handler", "video")),
	}
}

// HandleGenerate serves POST /v1/videos/generations. Video generation is
// long running, so the response usually carries a pending operation.
func (h *VideoHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}
	var req api.VideoGenerationRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if req.Provider == "" || req.Prompt == "" {
		WriteError(w, types.NewError(types.ErrBadRequest, "provider and prompt are required").
			WithHTTPStatus(http.StatusBadRequest), h.logger)
		return
	}

	client, err := h.registry.Video(req.Provider)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	resp, err := client.Generate(r.Context(), &gateway.VideoRequest{
		Model:  req.Model,
		Prompt: req.Prompt,
		Params: req.Params,
	})
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	h.logger.Info("video generation",
		zap.String("provider", resp.Provider),
		zap.String("status", resp.Status),
		zap.String("operation_id", resp.OperationID),
	)
	WriteSuccess(w, resp)
}
