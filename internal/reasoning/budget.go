package reasoning

import "github.com/flemzord/scout/internal/provider"

// TokenEstimator estimates the token count of a string.
type TokenEstimator interface {
	Estimate(text string) int
}

// CharEstimator estimates tokens using a characters-per-token ratio.
// A ratio of ~4 works well for English.
type CharEstimator struct {
	CharsPerToken float64
}

// NewCharEstimator creates a CharEstimator. A ratio <= 0 defaults to 4.
func NewCharEstimator(charsPerToken float64) *CharEstimator {
	if charsPerToken <= 0 {
		charsPerToken = 4.0
	}
	return &CharEstimator{CharsPerToken: charsPerToken}
}

// Estimate returns the estimated token count for text, rounded up.
func (e *CharEstimator) Estimate(text string) int {
	if len(text) == 0 {
		return 0
	}
	return int(float64(len(text))/e.CharsPerToken) + 1
}

// EstimateMessages returns the estimated tokens for messages, counting a
// small per-message overhead for role and formatting.
func EstimateMessages(est TokenEstimator, messages []provider.LLMMessage) int {
	total := 0
	for i := range messages {
		total += 4
		total += est.Estimate(messages[i].Content)
		if messages[i].Name != "" {
			total += est.Estimate(messages[i].Name)
		}
		for _, tc := range messages[i].ToolCalls {
			total += est.Estimate(tc.Name)
			total += est.Estimate(string(tc.Arguments))
		}
	}
	return total
}

// trimHistory drops the oldest messages until history fits budget. A
// leading system message is kept. budget <= 0 disables trimming.
func trimHistory(est TokenEstimator, history []provider.LLMMessage, budget int) []provider.LLMMessage {
	if budget <= 0 || len(history) == 0 {
		return history
	}
	if EstimateMessages(est, history) <= budget {
		return history
	}

	var head []provider.LLMMessage
	rest := history
	if history[0].Role == provider.MessageRoleSystem {
		head, rest = history[:1], history[1:]
	}

	headTokens := EstimateMessages(est, head)
	for len(rest) > 1 && headTokens+EstimateMessages(est, rest) > budget {
		rest = rest[1:]
	}

	out := make([]provider.LLMMessage, 0, len(head)+len(rest))
	out = append(out, head...)
	return append(out, rest...)
}
