// Package openai implements the OpenAI chat and image adapters.
package openai

import (
	"go.uber.org/zap"

	"github.com/flowgate-ai/flowgate/gateway/providers"
	"github.com/flowgate-ai/flowgate/gateway/providers/openaicompat"
)

const defaultBaseURL = "https://api.openai.com"

// NewChatAdapter builds the OpenAI chat adapter. OpenAI speaks its own
// dialect natively, so this is the compat adapter with OpenAI defaults.
func NewChatAdapter(cfg providers.Config, logger *zap.Logger) (*openaicompat.Adapter, error) {
	if cfg.Name == "" {
		cfg.Name = "openai"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "gpt-4o-mini"
	}
	return openaicompat.New(openaicompat.Config{Config: cfg}, logger)
}
