// Package flowgate provides a top-level convenience entry point for creating
// provider clients with minimal boilerplate.
//
// Usage:
//
//	import "github.com/flowgate-ai/flowgate"
//
//	c, err := flowgate.New(flowgate.WithOpenAI("gpt-4o-mini"))
//	c, err := flowgate.New(flowgate.WithGemini("gemini-2.0-flash"))
//	c, err := flowgate.New(flowgate.WithCompatible("http://localhost:11434/v1", "llama3"))
//
// The returned client carries the full request pipeline: parameter validation,
// retry with backoff, and optional rate limiting. Use the config and gateway
// packages directly when you need per-deployment wiring.
package flowgate

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/flowgate-ai/flowgate/gateway"
	"github.com/flowgate-ai/flowgate/gateway/providers"
	"github.com/flowgate-ai/flowgate/gateway/providers/gemini"
	"github.com/flowgate-ai/flowgate/gateway/providers/openai"
	"github.com/flowgate-ai/flowgate/gateway/providers/openaicompat"
	"github.com/flowgate-ai/flowgate/gateway/ratelimit"
	"github.com/flowgate-ai/flowgate/gateway/retry"
)

// Option configures the client created by [New].
type Option func(*options)

type options struct {
	adapter gateway.ChatAdapter
	logger  *zap.Logger
	retry   *retry.Config
	limiter *ratelimit.Limiter

	// Shortcut fields, used when adapter is nil.
	kind    string
	model   string
	baseURL string
	apiKey  string
}

// WithAdapter sets a pre-built chat adapter.
func WithAdapter(a gateway.ChatAdapter) Option {
	return func(o *options) { o.adapter = a }
}

// WithOpenAI selects the OpenAI adapter. API key from OPENAI_API_KEY env.
func WithOpenAI(model string) Option {
	return func(o *options) {
		o.kind = "openai"
		o.model = model
	}
}

// WithGemini selects the Gemini adapter. API key from GEMINI_API_KEY env.
func WithGemini(model string) Option {
	return func(o *options) {
		o.kind = "gemini"
		o.model = model
	}
}

// WithCompatible selects an OpenAI-compatible adapter for local runtimes such
// as Ollama or vLLM. API key from COMPAT_API_KEY env when not overridden.
func WithCompatible(baseURL, model string) Option {
	return func(o *options) {
		o.kind = "openai-compatible"
		o.baseURL = baseURL
		o.model = model
	}
}

// WithAPIKey overrides the API key for provider shortcuts.
func WithAPIKey(key string) Option {
	return func(o *options) { o.apiKey = key }
}

// WithLogger sets a custom zap logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRetry overrides the default retry policy.
func WithRetry(cfg *retry.Config) Option {
	return func(o *options) { o.retry = cfg }
}

// WithRateLimiter attaches a limiter so every request is checked before
// reaching the vendor.
func WithRateLimiter(l *ratelimit.Limiter) Option {
	return func(o *options) { o.limiter = l }
}

// New creates a chat client with minimal configuration. At minimum a provider
// must be selected via [WithOpenAI], [WithGemini], [WithCompatible], or
// [WithAdapter].
func New(opts ...Option) (gateway.ChatClient, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}

	adapter := o.adapter
	if adapter == nil {
		built, err := buildAdapter(o)
		if err != nil {
			return nil, err
		}
		adapter = built
	}

	pipelineOpts := []gateway.PipelineOption{gateway.WithPipelineLogger(o.logger)}
	if o.retry != nil {
		pipelineOpts = append(pipelineOpts, gateway.WithRetryConfig(o.retry))
	}
	if o.limiter != nil {
		pipelineOpts = append(pipelineOpts, gateway.WithRateLimiter(o.limiter))
	}
	return gateway.NewChatClient(adapter, pipelineOpts...), nil
}

func buildAdapter(o *options) (gateway.ChatAdapter, error) {
	if o.kind == "" {
		return nil, fmt.Errorf("flowgate: no provider selected, use WithOpenAI, WithGemini, WithCompatible, or WithAdapter")
	}

	key := o.apiKey
	if key == "" {
		key = os.Getenv(envKeyFor(o.kind))
	}
	cfg := providers.Config{
		Name:         o.kind,
		APIKey:       key,
		BaseURL:      o.baseURL,
		DefaultModel: o.model,
	}

	switch o.kind {
	case "openai":
		return openai.NewChatAdapter(cfg, o.logger)
	case "gemini":
		return gemini.NewChatAdapter(cfg, o.logger)
	case "openai-compatible":
		return openaicompat.New(openaicompat.Config{Config: cfg}, o.logger)
	default:
		return nil, fmt.Errorf("flowgate: unknown provider kind %q", o.kind)
	}
}

func envKeyFor(kind string) string {
	switch kind {
	case "openai":
		return "OPENAI_API_KEY"
	case "gemini":
		return "GEMINI_API_KEY"
	default:
		return "COMPAT_API_KEY"
	}
}
