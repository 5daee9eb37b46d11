package convo

import (
	"go.uber.org/zap"

	"github.com/flowgate-ai/flowgate/types"
)

// Context is the assembled message window for one request. It is built
// fresh per call and never persisted.
type Context struct {
	Messages []types.Message
}

// TotalTokens reports the estimated token cost of the assembled window.
func (c Context) TotalTokens(tok Tokenizer) int {
	total := 0
	for _, m := range c.Messages {
		total += tok.CountMessageTokens(m)
	}
	return total
}

// Builder assembles contexts under a token budget.
type Builder struct {
	tokenizer Tokenizer
	logger    *zap.Logger
}

// NewBuilder returns a Builder using tok for budget accounting. A nil tok
// falls back to the character estimator.
func NewBuilder(tok Tokenizer, logger *zap.Logger) *Builder {
	if tok == nil {
		tok = NewEstimator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{tokenizer: tok, logger: logger}
}

// BuildContext assembles the window: an optional system message first, then
// the trailing subset of recent that fits under tokenBudget, in
// chronological order.
//
// Selection walks recent from newest to oldest and includes each message
// while the running estimate stays under budget, so the newest turns are
// never dropped before older ones. The system message always ships and its
// cost counts against the budget. A tokenBudget of zero or less disables
// truncation.
func (b *Builder) BuildContext(recent []types.Message, systemPrompt string, tokenBudget int) Context {
	var out []types.Message
	used := 0

	if systemPrompt != "" {
		sys := types.SystemMessage(systemPrompt)
		out = append(out, sys)
		used += b.tokenizer.CountMessageTokens(sys)
	}

	if tokenBudget <= 0 {
		out = append(out, recent...)
		return Context{Messages: out}
	}

	// Newest to oldest; collected reversed, restored below.
	var kept []types.Message
	for i := len(recent) - 1; i >= 0; i-- {
		cost := b.tokenizer.CountMessageTokens(recent[i])
		if used+cost > tokenBudget {
			break
		}
		kept = append(kept, recent[i])
		used += cost
	}
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	out = append(out, kept...)

	if len(kept) < len(recent) {
		b.logger.Debug("conversation history truncated",
			zap.Int("available", len(recent)),
			zap.Int("included", len(kept)),
			zap.Int("budget", tokenBudget),
			zap.Int("used", used))
	}

	return Context{Messages: out}
}
