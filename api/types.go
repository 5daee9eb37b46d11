// Package api defines the HTTP request and response shapes of the gateway.
package api

import "github.com/flowgate-ai/flowgate/types"

// ChatMessage is one turn of conversation history as sent by clients.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionRequest asks a chat provider for a completion. Either
// Prompt or Messages must be set; when both are present Messages wins.
type ChatCompletionRequest struct {
	Provider     string         `json:"provider"`
	Model        string         `json:"model,omitempty"`
	Prompt       string         `json:"prompt,omitempty"`
	Messages     []ChatMessage  `json:"messages,omitempty"`
	SystemPrompt string         `json:"system_prompt,omitempty"`
	Params       map[string]any `json:"params,omitempty"`
}

// ChatCompletionResponse is the non-streaming completion payload.
type ChatCompletionResponse struct {
	ID       string       `json:"id,omitempty"`
	Provider string       `json:"provider"`
	Model    string       `json:"model"`
	Content  string       `json:"content"`
	Usage    *types.Usage `json:"usage,omitempty"`
}

// ImageGenerationRequest asks an image provider for a generation.
type ImageGenerationRequest struct {
	Provider string         `json:"provider"`
	Model    string         `json:"model,omitempty"`
	Prompt   string         `json:"prompt"`
	Params   map[string]any `json:"params,omitempty"`
}

// VideoGenerationRequest asks a video provider for a generation.
type VideoGenerationRequest struct {
	Provider string         `json:"provider"`
	Model    string         `json:"model,omitempty"`
	Prompt   string         `json:"prompt"`
	Params   map[string]any `json:"params,omitempty"`
}

// ProviderInfo describes one registered provider.
type ProviderInfo struct {
	Name         string   `json:"name"`
	Capabilities []string `json:"capabilities"`
}

// HealthResponse reports gateway liveness.
type HealthResponse struct {
	Status    string `json:"status"`
	Providers int    `json:"providers"`
}
