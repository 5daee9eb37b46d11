package convo

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"

	"github.com/flowgate-ai/flowgate/types"
)

// TikTokenizer counts tokens with the model's actual BPE vocabulary. Use it
// when the budget must track provider billing closely; the first call per
// encoding downloads and caches the vocabulary.
type TikTokenizer struct {
	encoding *tiktoken.Tiktoken
}

// NewTikTokenizer resolves the encoding for model, falling back to the
// cl100k_base encoding for models tiktoken does not know.
func NewTikTokenizer(model string) (*TikTokenizer, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("load tiktoken encoding: %w", err)
		}
	}
	return &TikTokenizer{encoding: enc}, nil
}

func (t *TikTokenizer) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	return len(t.encoding.Encode(text, nil, nil))
}

func (t *TikTokenizer) CountMessageTokens(msg types.Message) int {
	tokens := messageOverhead + t.CountTokens(msg.Content)
	if msg.Name != "" {
		tokens += t.CountTokens(msg.Name)
	}
	return tokens
}
