package handlers

import (
	"net/http"
	"sort"

	"go.uber.org/zap"

	"github.com/flowgate-ai/flowgate/api"
	"github.com/flowgate-ai/flowgate/gateway"
)

// ProvidersHandler lists registered providers and reports liveness.
type ProvidersHandler struct {
	registry *gateway.Registry
	logger   *zap.Logger
}

// NewProvidersHandler creates the discovery endpoints.
func NewProvidersHandler(registry *gateway.Registry, logger *zap.Logger) *ProvidersHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProvidersHandler{
		registry: registry,
		logger:   logger.With(zap.String("handler", "providers")),
	}
}

// HandleList serves GET /v1/providers.
func (h *ProvidersHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	byName := map[string][]string{}
	for _, cap := range []gateway.Capability{gateway.CapabilityChat, gateway.CapabilityImage, gateway.CapabilityVideo} {
		for _, name := range h.registry.ListProviders(cap) {
			byName[name] = append(byName[name], string(cap))
		}
	}

	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	infos := make([]api.ProviderInfo, 0, len(names))
	for _, name := range names {
		infos = append(infos, api.ProviderInfo{Name: name, Capabilities: byName[name]})
	}
	WriteSuccess(w, infos)
}

// HandleHealth serves GET /healthz.
func (h *ProvidersHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	count := map[string]bool{}
	for _, cap := range []gateway.Capability{gateway.CapabilityChat, gateway.CapabilityImage, gateway.CapabilityVideo} {
		for _, name := range h.registry.ListProviders(cap) {
			count[name] = true
		}
	}
	WriteJSON(w, http.StatusOK, api.HealthResponse{
		Status:    "ok",
		Providers: len(count),
	})
}
