// Package gateway resolves provider names to capability-typed clients and
// wraps each provider adapter with parameter processing, rate limiting and
// retries.
package gateway

import (
	"context"

	"github.com/flowgate-ai/flowgate/gateway/convo"
	"github.com/flowgate-ai/flowgate/gateway/params"
	"github.com/flowgate-ai/flowgate/types"
)

// Capability names one class of provider functionality.
type Capability string

const (
	CapabilityChat  Capability = "chat"
	CapabilityImage Capability = "image"
	CapabilityVideo Capability = "video"
)

// Client is the common surface of every capability client.
type Client interface {
	Provider() string
	Capability() Capability
}

// ChatClient sends chat requests to one provider.
type ChatClient interface {
	Client
	SendMessage(ctx context.Context, model, prompt string, values map[string]any) (*types.ChatResponse, error)
	SendMessageWithContext(ctx context.Context, model string, window convo.Context, values map[string]any) (*types.ChatResponse, error)
}

// StreamingChatClient is a ChatClient whose provider supports native
// incremental output. Callers discover streaming support by asserting a
// ChatClient to this interface.
type StreamingChatClient interface {
	ChatClient
	SendMessageStream(ctx context.Context, model string, window convo.Context, values map[string]any) (<-chan StreamChunk, error)
}

// ImageClient generates and edits images on one provider.
type ImageClient interface {
	Client
	Generate(ctx context.Context, req *ImageRequest) (*types.ImageResponse, error)
	CreateVariation(ctx context.Context, req *VariationRequest) (*types.ImageResponse, error)
	Edit(ctx context.Context, req *EditRequest) (*types.ImageResponse, error)
}

// VideoClient generates video on one provider.
type VideoClient interface {
	Client
	Generate(ctx context.Context, req *VideoRequest) (*types.VideoResponse, error)
}

// StreamChunk is one increment of streamed chat output. The producer closes
// the channel after the final chunk; a chunk with Err set terminates the
// stream.
type StreamChunk struct {
	Content string
	Err     error
}

// ChatRequest is what chat adapters receive after the pipeline has
// validated and merged parameters.
type ChatRequest struct {
	Model    string
	Messages []types.Message
	Params   map[string]any
}

// ImageRequest asks an image adapter for a fresh generation.
type ImageRequest struct {
	Model  string
	Prompt string
	Params map[string]any
}

// VariationRequest asks for variations of an existing image.
type VariationRequest struct {
	Model  string
	Image  []byte
	Params map[string]any
}

// EditRequest asks for a prompt-guided edit of an existing image.
type EditRequest struct {
	Model  string
	Image  []byte
	Mask   []byte
	Prompt string
	Params map[string]any
}

// VideoRequest asks a video adapter for a generation.
type VideoRequest struct {
	Model  string
	Prompt string
	Params map[string]any
}

// ChatAdapter is the fixed per-vendor contract the gateway drives. Adapters
// raise failures as *types.Error so the retry handler can classify them.
type ChatAdapter interface {
	Name() string
	Complete(ctx context.Context, req *ChatRequest) (*types.ChatResponse, error)
	ParameterDefinitions() []params.Definition
	HealthCheck(ctx context.Context) error
}

// StreamingChatAdapter is a ChatAdapter with native incremental output.
type StreamingChatAdapter interface {
	ChatAdapter
	Stream(ctx context.Context, req *ChatRequest) (<-chan StreamChunk, error)
}

// ImageAdapter is the fixed per-vendor contract for image generation.
type ImageAdapter interface {
	Name() string
	Generate(ctx context.Context, req *ImageRequest) (*types.ImageResponse, error)
	CreateVariation(ctx context.Context, req *VariationRequest) (*types.ImageResponse, error)
	Edit(ctx context.Context, req *EditRequest) (*types.ImageResponse, error)
	ParameterDefinitions() []params.Definition
}

// VideoAdapter is the fixed per-vendor contract for video generation.
type VideoAdapter interface {
	Name() string
	Generate(ctx context.Context, req *VideoRequest) (*types.VideoResponse, error)
	ParameterDefinitions() []params.Definition
}
