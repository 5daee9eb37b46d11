package gateway

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/flowgate-ai/flowgate/gateway/convo"
	"github.com/flowgate-ai/flowgate/gateway/params"
	"github.com/flowgate-ai/flowgate/gateway/ratelimit"
	"github.com/flowgate-ai/flowgate/gateway/retry"
	"github.com/flowgate-ai/flowgate/internal/metrics"
	"github.com/flowgate-ai/flowgate/types"
)

const tracerName = "flowgate/gateway"

// PipelineOption configures a chat, image or video pipeline.
type PipelineOption func(*pipelineConfig)

type pipelineConfig struct {
	limiter     *ratelimit.Limiter
	retryer     *retry.Handler
	paramOpts   *params.Options
	logger      *zap.Logger
	metrics     *metrics.Collector
	retryConfig *retry.Config
}

func errorStatus(err error) string {
	if code := types.GetErrorCode(err); code != "" {
		return string(code)
	}
	return "error"
}

// WithRateLimiter admits requests through l before any provider call.
func WithRateLimiter(l *ratelimit.Limiter) PipelineOption {
	return func(c *pipelineConfig) { c.limiter = l }
}

// WithRetry wraps provider calls with h.
func WithRetry(h *retry.Handler) PipelineOption {
	return func(c *pipelineConfig) { c.retryer = h }
}

// WithRetryConfig builds the retry handler from cfg. Ignored when WithRetry
// supplies a handler directly.
func WithRetryConfig(cfg *retry.Config) PipelineOption {
	return func(c *pipelineConfig) { c.retryConfig = cfg }
}

// WithParamOptions adds advanced validation rules to parameter processing.
func WithParamOptions(opts *params.Options) PipelineOption {
	return func(c *pipelineConfig) { c.paramOpts = opts }
}

// WithPipelineLogger attaches a logger.
func WithPipelineLogger(logger *zap.Logger) PipelineOption {
	return func(c *pipelineConfig) { c.logger = logger }
}

// WithMetrics records pipeline outcomes on m.
func WithMetrics(m *metrics.Collector) PipelineOption {
	return func(c *pipelineConfig) { c.metrics = m }
}

func buildPipelineConfig(provider string, opts []PipelineOption) pipelineConfig {
	cfg := pipelineConfig{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.logger = cfg.logger.With(
		zap.String("component", "gateway"),
		zap.String("provider", provider))
	if cfg.retryer == nil {
		rc := cfg.retryConfig
		if rc == nil {
			rc = retry.DefaultConfig()
		}
		if cfg.metrics != nil {
			prev := rc.OnRetry
			rc.OnRetry = func(attempt int, err error, delay time.Duration) {
				cfg.metrics.RecordRetryAttempt(provider)
				if prev != nil {
					prev(attempt, err, delay)
				}
			}
		}
		cfg.retryer = retry.New(rc, cfg.logger)
	}
	return cfg
}

// ChatPipeline implements ChatClient over a ChatAdapter. Every request runs
// parameter processing first, then rate limiting, then the adapter call
// under the retry policy. A validation failure charges no rate-limit slot
// and never reaches the adapter; a local rate-limit rejection is returned
// as-is, not retried.
type ChatPipeline struct {
	adapter ChatAdapter
	defs    []params.Definition
	cfg     pipelineConfig
}

// NewChatClient wraps adapter in the request pipeline. The result asserts
// as StreamingChatClient exactly when the adapter supports native
// streaming.
func NewChatClient(adapter ChatAdapter, opts ...PipelineOption) ChatClient {
	p := &ChatPipeline{
		adapter: adapter,
		defs:    adapter.ParameterDefinitions(),
		cfg:     buildPipelineConfig(adapter.Name(), opts),
	}
	if sa, ok := adapter.(StreamingChatAdapter); ok {
		return &StreamingChatPipeline{ChatPipeline: p, streamer: sa}
	}
	return p
}

func (p *ChatPipeline) Provider() string       { return p.adapter.Name() }
func (p *ChatPipeline) Capability() Capability { return CapabilityChat }

// SendMessage sends a single-turn prompt.
func (p *ChatPipeline) SendMessage(ctx context.Context, model, prompt string, values map[string]any) (*types.ChatResponse, error) {
	window := convo.Context{Messages: []types.Message{types.UserMessage(prompt)}}
	return p.SendMessageWithContext(ctx, model, window, values)
}

// SendMessageWithContext sends a pre-assembled conversation window.
func (p *ChatPipeline) SendMessageWithContext(ctx context.Context, model string, window convo.Context, values map[string]any) (*types.ChatResponse, error) {
	req, err := p.prepare(ctx, model, window, values)
	if err != nil {
		return nil, err
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "gateway.chat")
	span.SetAttributes(
		attribute.String("provider", p.adapter.Name()),
		attribute.String("model", model))
	defer span.End()

	start := time.Now()
	resp, err := retry.Do(p.cfg.retryer, ctx, func() (*types.ChatResponse, error) {
		return p.adapter.Complete(ctx, req)
	})
	p.record(model, start, resp, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, errorStatus(err))
		return nil, err
	}
	return resp, nil
}

// prepare runs the parameter pipeline and the rate limiter, in that order.
func (p *ChatPipeline) prepare(ctx context.Context, model string, window convo.Context, values map[string]any) (*ChatRequest, error) {
	processed, result := params.Process(values, p.defs, p.cfg.paramOpts)
	if !result.Valid {
		if p.cfg.metrics != nil {
			p.cfg.metrics.RecordValidationFailure(p.adapter.Name())
		}
		p.cfg.logger.Debug("parameter validation failed",
			zap.String("model", model),
			zap.Int("errors", len(result.AllErrors())))
		return nil, &params.ValidationError{Result: result}
	}

	if p.cfg.limiter != nil {
		identity := IdentityFromContext(ctx)
		if err := p.cfg.limiter.Check(identity); err != nil {
			if p.cfg.metrics != nil {
				p.cfg.metrics.RecordRateLimitRejection(p.adapter.Name())
			}
			p.cfg.logger.Debug("request rate limited",
				zap.String("identity", identity),
				zap.String("model", model))
			return nil, err
		}
	}

	return &ChatRequest{Model: model, Messages: window.Messages, Params: processed}, nil
}

func (p *ChatPipeline) record(model string, start time.Time, resp *types.ChatResponse, err error) {
	if p.cfg.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = errorStatus(err)
	}
	var prompt, completion int
	if resp != nil && resp.Usage != nil {
		prompt = resp.Usage.PromptTokens
		completion = resp.Usage.CompletionTokens
	}
	p.cfg.metrics.RecordProviderRequest(p.adapter.Name(), model, status, time.Since(start), prompt, completion)
}

// StreamingChatPipeline adds native streaming to ChatPipeline.
type StreamingChatPipeline struct {
	*ChatPipeline
	streamer StreamingChatAdapter
}

// SendMessageStream opens a native provider stream. The stream itself is
// not retried: once chunks may have been delivered, a replay would
// duplicate output.
func (p *StreamingChatPipeline) SendMessageStream(ctx context.Context, model string, window convo.Context, values map[string]any) (<-chan StreamChunk, error) {
	req, err := p.prepare(ctx, model, window, values)
	if err != nil {
		return nil, err
	}
	return p.streamer.Stream(ctx, req)
}

// ImagePipeline implements ImageClient over an ImageAdapter with the same
// prepare steps as chat.
type ImagePipeline struct {
	adapter ImageAdapter
	defs    []params.Definition
	cfg     pipelineConfig
}

// NewImageClient wraps adapter in the request pipeline.
func NewImageClient(adapter ImageAdapter, opts ...PipelineOption) *ImagePipeline {
	return &ImagePipeline{
		adapter: adapter,
		defs:    adapter.ParameterDefinitions(),
		cfg:     buildPipelineConfig(adapter.Name(), opts),
	}
}

func (p *ImagePipeline) Provider() string       { return p.adapter.Name() }
func (p *ImagePipeline) Capability() Capability { return CapabilityImage }

func (p *ImagePipeline) Generate(ctx context.Context, req *ImageRequest) (*types.ImageResponse, error) {
	return p.call(ctx, "gateway.image.generate", req.Model, &req.Params, func(ctx context.Context) (*types.ImageResponse, error) {
		return p.adapter.Generate(ctx, req)
	})
}

func (p *ImagePipeline) CreateVariation(ctx context.Context, req *VariationRequest) (*types.ImageResponse, error) {
	return p.call(ctx, "gateway.image.variation", req.Model, &req.Params, func(ctx context.Context) (*types.ImageResponse, error) {
		return p.adapter.CreateVariation(ctx, req)
	})
}

func (p *ImagePipeline) Edit(ctx context.Context, req *EditRequest) (*types.ImageResponse, error) {
	return p.call(ctx, "gateway.image.edit", req.Model, &req.Params, func(ctx context.Context) (*types.ImageResponse, error) {
		return p.adapter.Edit(ctx, req)
	})
}

func (p *ImagePipeline) call(ctx context.Context, op, model string, values *map[string]any, fn func(context.Context) (*types.ImageResponse, error)) (*types.ImageResponse, error) {
	processed, result := params.Process(*values, p.defs, p.cfg.paramOpts)
	if !result.Valid {
		if p.cfg.metrics != nil {
			p.cfg.metrics.RecordValidationFailure(p.adapter.Name())
		}
		return nil, &params.ValidationError{Result: result}
	}
	*values = processed

	if p.cfg.limiter != nil {
		if err := p.cfg.limiter.Check(IdentityFromContext(ctx)); err != nil {
			if p.cfg.metrics != nil {
				p.cfg.metrics.RecordRateLimitRejection(p.adapter.Name())
			}
			return nil, err
		}
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, op)
	span.SetAttributes(
		attribute.String("provider", p.adapter.Name()),
		attribute.String("model", model))
	defer span.End()

	resp, err := retry.Do(p.cfg.retryer, ctx, func() (*types.ImageResponse, error) {
		return fn(ctx)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, errorStatus(err))
		return nil, err
	}
	return resp, nil
}

// VideoPipeline implements VideoClient over a VideoAdapter.
type VideoPipeline struct {
	adapter VideoAdapter
	defs    []params.Definition
	cfg     pipelineConfig
}

// NewVideoClient wraps adapter in the request pipeline.
func NewVideoClient(adapter VideoAdapter, opts ...PipelineOption) *VideoPipeline {
	return &VideoPipeline{
		adapter: adapter,
		defs:    adapter.ParameterDefinitions(),
		cfg:     buildPipelineConfig(adapter.Name(), opts),
	}
}

func (p *VideoPipeline) Provider() string       { return p.adapter.Name() }
func (p *VideoPipeline) Capability() Capability { return CapabilityVideo }

func (p *VideoPipeline) Generate(ctx context.Context, req *VideoRequest) (*types.VideoResponse, error) {
	processed, result := params.Process(req.Params, p.defs, p.cfg.paramOpts)
	if !result.Valid {
		if p.cfg.metrics != nil {
			p.cfg.metrics.RecordValidationFailure(p.adapter.Name())
		}
		return nil, &params.ValidationError{Result: result}
	}
	req.Params = processed

	if p.cfg.limiter != nil {
		if err := p.cfg.limiter.Check(IdentityFromContext(ctx)); err != nil {
			if p.cfg.metrics != nil {
				p.cfg.metrics.RecordRateLimitRejection(p.adapter.Name())
			}
			return nil, err
		}
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "gateway.video.generate")
	span.SetAttributes(
		attribute.String("provider", p.adapter.Name()),
		attribute.String("model", req.Model))
	defer span.End()

	resp, err := retry.Do(p.cfg.retryer, ctx, func() (*types.VideoResponse, error) {
		return p.adapter.Generate(ctx, req)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, errorStatus(err))
		return nil, err
	}
	return resp, nil
}
