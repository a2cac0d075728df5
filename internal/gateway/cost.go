package gateway

import "movie-recommender/internal/domain"

const (
	// DefaultMaxTokens caps every completion.
	DefaultMaxTokens = 300
	// systemPromptTokens approximates the fixed instructions plus catalog
	// context before any history is counted.
	systemPromptTokens = 3875
	charsPerToken      = 4
)

// Pricing is the per-token price of a model.
type Pricing struct {
	Input  domain.Money
	Output domain.Money
}

// DefaultPricing is $3 per million input tokens and $15 per million output
// tokens.
var DefaultPricing = Pricing{Input: 3, Output: 15}

// Cost prices actual usage.
func (p Pricing) Cost(inputTokens, outputTokens int64) domain.Money {
	return domain.Money(inputTokens)*p.Input + domain.Money(outputTokens)*p.Output
}

// Estimate is a pre-flight upper-ish bound: the fixed system prompt, the
// history at roughly four characters per token, and a full-length reply.
func (p Pricing) Estimate(history []domain.ChatMessage, maxTokens int) domain.Money {
	chars := 0
	for _, m := range history {
		chars += len(m.Content)
	}
	input := int64(systemPromptTokens + chars/charsPerToken)
	return p.Cost(input, int64(maxTokens))
}
