package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"

	jsoniter "github.com/json-iterator/go"
	"github.com/ollama/ollama/api"

	"github.com/flemzord/scout/internal/provider"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

func toMessages(msgs []provider.LLMMessage) []api.Message {
	out := make([]api.Message, 0, len(msgs))
	for _, m := range msgs {
		msg := api.Message{Role: string(m.Role), Content: m.Content}
		for _, tc := range m.ToolCalls {
			var args api.ToolCallFunctionArguments
			if len(tc.Arguments) > 0 {
				_ = jsonAPI.Unmarshal(tc.Arguments, &args)
			}
			msg.ToolCalls = append(msg.ToolCalls, api.ToolCall{
				ID:       tc.ID,
				Function: api.ToolCallFunction{Name: tc.Name, Arguments: args},
			})
		}
		if m.Role == provider.MessageRoleTool {
			msg.ToolCallID = m.ToolID
		}
		out = append(out, msg)
	}
	return out
}

type functionTool struct {
	Type     string             `json:"type"`
	Function functionDefinition `json:"function"`
}

type functionDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// toTools converts definitions through their JSON form, which api.Tool
// decodes.
func toTools(defs []provider.ToolDefinition) (api.Tools, error) {
	if len(defs) == 0 {
		return nil, nil
	}
	wire := make([]functionTool, len(defs))
	for i, d := range defs {
		wire[i] = functionTool{
			Type:     "function",
			Function: functionDefinition{Name: d.Name, Description: d.Description, Parameters: d.Parameters},
		}
	}
	raw, err := jsonAPI.Marshal(wire)
	if err != nil {
		return nil, err
	}
	var tools api.Tools
	if err := jsonAPI.Unmarshal(raw, &tools); err != nil {
		return nil, err
	}
	return tools, nil
}

func fromResponse(resp api.ChatResponse) provider.CompletionResponse {
	out := provider.CompletionResponse{
		Content:      resp.Message.Content,
		FinishReason: provider.FinishReasonStop,
		Usage: provider.TokenUsage{
			PromptTokens:     resp.PromptEvalCount,
			CompletionTokens: resp.EvalCount,
			TotalTokens:      resp.PromptEvalCount + resp.EvalCount,
		},
	}
	if resp.DoneReason == "length" {
		out.FinishReason = provider.FinishReasonLength
	}
	for i, tc := range resp.Message.ToolCalls {
		args, err := jsonAPI.Marshal(tc.Function.Arguments)
		if err != nil {
			args = []byte("{}")
		}
		id := tc.ID
		if id == "" {
			id = fmt.Sprintf("call_%d", i+1)
		}
		out.ToolCalls = append(out.ToolCalls, provider.ToolCall{ID: id, Name: tc.Function.Name, Arguments: args})
	}
	if len(out.ToolCalls) > 0 {
		out.FinishReason = provider.FinishReasonToolUse
	}
	return out
}

// mapError maps client errors to provider sentinels. Context errors pass
// through unchanged.
func mapError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var se api.StatusError
	if errors.As(err, &se) {
		switch {
		case se.StatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("%w: %s", provider.ErrRateLimit, se.ErrorMessage)
		case se.StatusCode == http.StatusUnauthorized || se.StatusCode == http.StatusForbidden:
			return fmt.Errorf("%w: %s", provider.ErrAuthentication, se.ErrorMessage)
		case se.StatusCode >= 500:
			return fmt.Errorf("%w: HTTP %d: %s", provider.ErrProviderDown, se.StatusCode, se.ErrorMessage)
		default:
			return fmt.Errorf("provider.ollama: %w", err)
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %w", provider.ErrProviderDown, err)
	}
	return fmt.Errorf("provider.ollama: %w", err)
}
