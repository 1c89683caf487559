package reasoning

import (
	"context"
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/flemzord/scout/internal/agent"
	"github.com/flemzord/scout/internal/provider"
	"github.com/flemzord/scout/internal/tool"
)

// ToolCallingPort implements agent.Port with native function calling.
// Every tool is offered with its own schema; the first call in a reply is
// taken and the rest are ignored, since a run executes one tool at a time.
type ToolCallingPort struct {
	provider  provider.Provider
	tools     Catalog
	config    Config
	estimator TokenEstimator
}

// NewToolCallingPort creates a ToolCallingPort.
func NewToolCallingPort(p provider.Provider, tools Catalog, cfg Config) *ToolCallingPort {
	cfg = cfg.withDefaults()
	return &ToolCallingPort{
		provider:  p,
		tools:     tools,
		config:    cfg,
		estimator: NewCharEstimator(cfg.CharsPerToken),
	}
}

// NextStep implements agent.Port.
func (p *ToolCallingPort) NextStep(ctx context.Context, req agent.StepRequest) (agent.Action, error) {
	resp, err := p.provider.Complete(ctx, provider.CompletionRequest{
		Messages:    p.Messages(req),
		Tools:       p.definitions(),
		MaxTokens:   p.config.MaxTokens,
		Temperature: p.config.Temperature,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.ToolCalls) > 0 {
		tc := resp.ToolCalls[0]
		return agent.ToolCall{
			Name:    tc.Name,
			Input:   tool.ArgumentText(tc.Arguments),
			Thought: strings.TrimSpace(resp.Content),
		}, nil
	}

	answer := strings.TrimSpace(resp.Content)
	if answer == "" {
		return nil, &agent.MalformedActionError{Output: resp.Content, Reason: "empty reply without tool calls"}
	}
	return agent.Finish{Answer: answer}, nil
}

// Messages builds the request messages for one step. Scratchpad actions
// become assistant tool calls answered by tool messages.
func (p *ToolCallingPort) Messages(req agent.StepRequest) []provider.LLMMessage {
	msgs := []provider.LLMMessage{{Role: provider.MessageRoleSystem, Content: p.config.SystemPrompt}}
	msgs = append(msgs, conversation(p.estimator, req.History, p.config.MaxHistoryTokens)...)
	msgs = append(msgs, provider.LLMMessage{Role: provider.MessageRoleUser, Content: req.Question})

	var thought string
	calls := 0
	for _, e := range req.Scratchpad {
		switch e.Kind {
		case agent.EntryThought:
			thought = e.Payload
		case agent.EntryAction:
			calls++
			msgs = append(msgs, provider.LLMMessage{
				Role:    provider.MessageRoleAssistant,
				Content: thought,
				ToolCalls: []provider.ToolCall{{
					ID:        callID(calls),
					Name:      e.Tool,
					Arguments: queryArguments(e.Payload),
				}},
			})
			thought = ""
		case agent.EntryObservation:
			msgs = append(msgs, provider.LLMMessage{
				Role:    provider.MessageRoleTool,
				Content: e.Payload,
				Name:    e.Tool,
				ToolID:  callID(calls),
			})
		}
	}

	msgs = append(msgs, correctionMessages(req)...)
	return guardMessages(msgs)
}

func (p *ToolCallingPort) definitions() []provider.ToolDefinition {
	defs := p.tools.Definitions()
	out := make([]provider.ToolDefinition, 0, len(defs))
	for _, d := range defs {
		params := d.Schema
		if len(params) == 0 {
			params = tool.QuerySchema
		}
		out = append(out, provider.ToolDefinition{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  params,
		})
	}
	return out
}

func callID(n int) string {
	return fmt.Sprintf("call_%d", n)
}

func queryArguments(input string) []byte {
	data, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(map[string]string{"query": input})
	if err != nil {
		return []byte(`{}`)
	}
	return data
}

var _ agent.Port = (*ToolCallingPort)(nil)
