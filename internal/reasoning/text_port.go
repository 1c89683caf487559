package reasoning

import (
	"context"
	"strings"

	"github.com/flemzord/scout/internal/agent"
	"github.com/flemzord/scout/internal/provider"
)

// TextPort implements agent.Port with the ReAct text protocol. It works
// with any chat model and is safe for concurrent use.
type TextPort struct {
	provider  provider.Provider
	tools     Catalog
	config    Config
	estimator TokenEstimator
}

// NewTextPort creates a TextPort.
func NewTextPort(p provider.Provider, tools Catalog, cfg Config) *TextPort {
	cfg = cfg.withDefaults()
	return &TextPort{
		provider:  p,
		tools:     tools,
		config:    cfg,
		estimator: NewCharEstimator(cfg.CharsPerToken),
	}
}

// NextStep implements agent.Port.
func (p *TextPort) NextStep(ctx context.Context, req agent.StepRequest) (agent.Action, error) {
	resp, err := p.provider.Complete(ctx, provider.CompletionRequest{
		Messages:    p.Messages(req),
		MaxTokens:   p.config.MaxTokens,
		Temperature: p.config.Temperature,
		Stop:        []string{"\nObservation:"},
	})
	if err != nil {
		return nil, err
	}
	return ParseAction(resp.Content)
}

// Messages builds the request messages for one step.
func (p *TextPort) Messages(req agent.StepRequest) []provider.LLMMessage {
	msgs := []provider.LLMMessage{{
		Role:    provider.MessageRoleSystem,
		Content: reactSystemPrompt(p.config.SystemPrompt, p.tools.Definitions()),
	}}
	msgs = append(msgs, conversation(p.estimator, req.History, p.config.MaxHistoryTokens)...)

	var user strings.Builder
	user.WriteString("Question: ")
	user.WriteString(req.Question)
	if pad := renderScratchpad(req.Scratchpad); pad != "" {
		user.WriteString("\n\n")
		user.WriteString(pad)
	}
	msgs = append(msgs, provider.LLMMessage{Role: provider.MessageRoleUser, Content: user.String()})
	msgs = append(msgs, correctionMessages(req)...)
	return guardMessages(msgs)
}

var _ agent.Port = (*TextPort)(nil)
