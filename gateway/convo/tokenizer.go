// Package convo assembles bounded conversation contexts for follow-up chat
// requests. It selects the trailing subset of history that fits under a
// token budget so the newest turns are never dropped before older ones.
package convo

import (
	"github.com/flowgate-ai/flowgate/types"
)

// Tokenizer counts tokens for budget accounting. Exactness is not required,
// only a monotonic bound.
type Tokenizer interface {
	CountTokens(text string) int
	CountMessageTokens(msg types.Message) int
}

const (
	// Rough per-language character-to-token ratios.
	asciiCharsPerToken = 4.0
	cjkCharsPerToken   = 1.5

	// Fixed per-message overhead for role and framing.
	messageOverhead = 4
)

// Estimator is a character-ratio token counter. It needs no model data and
// slightly overestimates CJK-heavy text, which errs on the safe side for a
// budget bound.
type Estimator struct{}

// NewEstimator returns the default heuristic tokenizer.
func NewEstimator() *Estimator { return &Estimator{} }

func (e *Estimator) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	var cjk, other int
	for _, r := range text {
		if r >= 0x4E00 && r <= 0x9FFF {
			cjk++
		} else {
			other++
		}
	}
	tokens := float64(cjk)/cjkCharsPerToken + float64(other)/asciiCharsPerToken
	return int(tokens) + 1
}

func (e *Estimator) CountMessageTokens(msg types.Message) int {
	tokens := messageOverhead + e.CountTokens(msg.Content)
	if msg.Name != "" {
		tokens += e.CountTokens(msg.Name)
	}
	return tokens
}
