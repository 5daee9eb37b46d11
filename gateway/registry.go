package gateway

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/flowgate-ai/flowgate/types"
)

// Factory builds one client instance. Factories run lazily on Create, not
// at registration, so missing provider credentials fail the request that
// needs them instead of process start.
type Factory func() (Client, error)

// Registry maps (capability, provider name) pairs to client factories. It
// is safe for concurrent use and carries no package-level state; wire one
// instance through explicitly.
type Registry struct {
	mu        sync.RWMutex
	factories map[Capability]map[string]Factory
	logger    *zap.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		factories: make(map[Capability]map[string]Factory),
		logger:    logger.With(zap.String("component", "registry")),
	}
}

// Register adds factory under (capability, name). Re-registering the same
// pair replaces the factory, which lets tests and custom providers swap in
// doubles without a separate API.
func (r *Registry) Register(capability Capability, name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byName := r.factories[capability]
	if byName == nil {
		byName = make(map[string]Factory)
		r.factories[capability] = byName
	}
	if _, exists := byName[name]; exists {
		r.logger.Debug("replacing provider factory",
			zap.String("capability", string(capability)),
			zap.String("provider", name))
	}
	byName[name] = factory
}

// Create invokes the factory for (capability, name). A missing registration
// yields *ProviderNotFoundError.
func (r *Registry) Create(capability Capability, name string) (Client, error) {
	r.mu.RLock()
	factory := r.factories[capability][name]
	r.mu.RUnlock()

	if factory == nil {
		return nil, &ProviderNotFoundError{Capability: capability, Name: name}
	}
	return factory()
}

// ListProviders returns the sorted provider names registered for capability.
func (r *Registry) ListProviders(capability Capability) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories[capability]))
	for name := range r.factories[capability] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsAvailable reports whether a factory is registered for (name, capability).
func (r *Registry) IsAvailable(name string, capability Capability) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[capability][name]
	return ok
}

// Chat resolves name to a chat client.
func (r *Registry) Chat(name string) (ChatClient, error) {
	c, err := r.Create(CapabilityChat, name)
	if err != nil {
		return nil, err
	}
	chat, ok := c.(ChatClient)
	if !ok {
		return nil, types.NewError(types.ErrBadRequest, "provider does not implement chat").WithProvider(name)
	}
	return chat, nil
}

// Image resolves name to an image client.
func (r *Registry) Image(name string) (ImageClient, error) {
	c, err := r.Create(CapabilityImage, name)
	if err != nil {
		return nil, err
	}
	img, ok := c.(ImageClient)
	if !ok {
		return nil, types.NewError(types.ErrBadRequest, "provider does not implement image generation").WithProvider(name)
	}
	return img, nil
}

// Video resolves name to a video client.
func (r *Registry) Video(name string) (VideoClient, error) {
	c, err := r.Create(CapabilityVideo, name)
	if err != nil {
		return nil, err
	}
	vid, ok := c.(VideoClient)
	if !ok {
		return nil, types.NewError(types.ErrBadRequest, "provider does not implement video generation").WithProvider(name)
	}
	return vid, nil
}
