package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/flowgate-ai/flowgate/config"
	"github.com/flowgate-ai/flowgate/gateway"
	"github.com/flowgate-ai/flowgate/gateway/convo"
	"github.com/flowgate-ai/flowgate/gateway/providers"
	"github.com/flowgate-ai/flowgate/gateway/providers/gemini"
	"github.com/flowgate-ai/flowgate/gateway/providers/openai"
	"github.com/flowgate-ai/flowgate/gateway/providers/openaicompat"
	"github.com/flowgate-ai/flowgate/gateway/ratelimit"
	"github.com/flowgate-ai/flowgate/gateway/retry"
	"github.com/flowgate-ai/flowgate/gateway/stream"
	"github.com/flowgate-ai/flowgate/internal/metrics"
)

// dependencies holds the wired gateway components handed to the router.
type dependencies struct {
	registry   *gateway.Registry
	builder    *convo.Builder
	dispatcher *stream.Dispatcher
	metrics    *metrics.Collector
}

// bootstrap wires the limiter, retry policy, tokenizer, dispatcher and the
// provider registry from configuration.
func bootstrap(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*dependencies, error) {
	collector := metrics.NewCollector("flowgate", prometheus.DefaultRegisterer, logger)

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		limiterOpts := []ratelimit.Option{ratelimit.WithLogger(logger)}
		if cfg.Redis.Addr != "" {
			client := redis.NewClient(&redis.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
				PoolSize: cfg.Redis.PoolSize,
			})
			limiterOpts = append(limiterOpts, ratelimit.WithStore(ratelimit.NewRedisStore(client, logger)))
			logger.Info("rate limiter using redis ledger", zap.String("addr", cfg.Redis.Addr))
		}
		limiter = ratelimit.New(cfg.RateLimit.Rules, limiterOpts...)
		limiter.StartCleanup(ctx, time.Minute)
	}

	retryCfg := &retry.Config{
		MaxRetries: cfg.Retry.MaxRetries,
		Strategy:   retry.Strategy(cfg.Retry.Strategy),
		BaseDelay:  cfg.Retry.BaseDelay,
		MaxDelay:   cfg.Retry.MaxDelay,
	}

	var tokenizer convo.Tokenizer
	if cfg.Context.Tokenizer == "tiktoken" {
		tk, err := convo.NewTikTokenizer("")
		if err != nil {
			logger.Warn("tiktoken unavailable, falling back to estimator", zap.Error(err))
		} else {
			tokenizer = tk
		}
	}

	deps := &dependencies{
		builder: convo.NewBuilder(tokenizer, logger),
		dispatcher: stream.New(
			stream.WithChunkSize(cfg.Stream.ChunkSize),
			stream.WithDelay(cfg.Stream.Delay),
			stream.WithLogger(logger),
			stream.WithMetrics(collector),
		),
		metrics: collector,
	}

	pipelineOpts := []gateway.PipelineOption{
		gateway.WithRetryConfig(retryCfg),
		gateway.WithPipelineLogger(logger),
		gateway.WithMetrics(collector),
	}
	if limiter != nil {
		pipelineOpts = append(pipelineOpts, gateway.WithRateLimiter(limiter))
	}

	registry := gateway.NewRegistry(logger)
	for _, p := range cfg.Providers {
		if err := registerProvider(registry, p, pipelineOpts, logger); err != nil {
			return nil, fmt.Errorf("register provider %s: %w", p.Name, err)
		}
	}
	deps.registry = registry
	return deps, nil
}

// registerProvider wires one configured vendor into the registry for each
// capability it declares. Adapters are built lazily inside the factories so
// a misconfigured provider fails its own requests instead of process start,
// and memoized so every client shares one adapter per capability.
func registerProvider(registry *gateway.Registry, p config.ProviderConfig, opts []gateway.PipelineOption, logger *zap.Logger) error {
	common := providers.Config{
		Name:         p.Name,
		APIKey:       p.APIKey,
		BaseURL:      p.BaseURL,
		DefaultModel: p.DefaultModel,
		Timeout:      p.Timeout,
	}

	capabilities := p.Capabilities
	if len(capabilities) == 0 {
		capabilities = []string{"chat"}
	}

	for _, capability := range capabilities {
		switch gateway.Capability(capability) {
		case gateway.CapabilityChat:
			adapter := sync.OnceValues(func() (gateway.ChatAdapter, error) {
				return newChatAdapter(p.Type, common, logger)
			})
			registry.Register(gateway.CapabilityChat, p.Name, func() (gateway.Client, error) {
				a, err := adapter()
				if err != nil {
					return nil, err
				}
				return gateway.NewChatClient(a, opts...), nil
			})

		case gateway.CapabilityImage:
			adapter := sync.OnceValues(func() (gateway.ImageAdapter, error) {
				return newImageAdapter(p.Type, common, logger)
			})
			registry.Register(gateway.CapabilityImage, p.Name, func() (gateway.Client, error) {
				a, err := adapter()
				if err != nil {
					return nil, err
				}
				return gateway.NewImageClient(a, opts...), nil
			})

		case gateway.CapabilityVideo:
			adapter := sync.OnceValues(func() (gateway.VideoAdapter, error) {
				return newVideoAdapter(p.Type, common, logger)
			})
			registry.Register(gateway.CapabilityVideo, p.Name, func() (gateway.Client, error) {
				a, err := adapter()
				if err != nil {
					return nil, err
				}
				return gateway.NewVideoClient(a, opts...), nil
			})

		default:
			return fmt.Errorf("unknown capability %q", capability)
		}
	}
	return nil
}

func newChatAdapter(kind string, cfg providers.Config, logger *zap.Logger) (gateway.ChatAdapter, error) {
	switch kind {
	case "openai":
		return openai.NewChatAdapter(cfg, logger)
	case "openai-compatible":
		return openaicompat.New(openaicompat.Config{Config: cfg}, logger)
	case "gemini":
		return gemini.NewChatAdapter(cfg, logger)
	default:
		return nil, fmt.Errorf("provider type %q has no chat adapter", kind)
	}
}

func newImageAdapter(kind string, cfg providers.Config, logger *zap.Logger) (gateway.ImageAdapter, error) {
	switch kind {
	case "openai", "openai-compatible":
		return openai.NewImageAdapter(cfg, logger)
	case "gemini":
		return gemini.NewImageAdapter(cfg, logger)
	default:
		return nil, fmt.Errorf("provider type %q has no image adapter", kind)
	}
}

func newVideoAdapter(kind string, cfg providers.Config, logger *zap.Logger) (gateway.VideoAdapter, error) {
	switch kind {
	case "gemini":
		return gemini.NewVideoAdapter(cfg, logger)
	default:
		return nil, fmt.Errorf("provider type %q has no video adapter", kind)
	}
}
