package openai

import (
	"encoding/json"
	"log/slog"

	jsoniter "github.com/json-iterator/go"
	sdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/responses"

	"github.com/flemzord/scout/internal/provider"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// toInput converts conversation messages into Responses API input items.
// Assistant tool calls become function_call items and tool messages their
// function_call_output counterparts.
func toInput(msgs []provider.LLMMessage) []responses.ResponseInputItemUnionParam {
	items := make([]responses.ResponseInputItemUnionParam, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case provider.MessageRoleSystem:
			items = append(items, responses.ResponseInputItemParamOfMessage(m.Content, responses.EasyInputMessageRoleSystem))
		case provider.MessageRoleUser:
			items = append(items, responses.ResponseInputItemParamOfMessage(m.Content, responses.EasyInputMessageRoleUser))
		case provider.MessageRoleAssistant:
			if m.Content != "" {
				items = append(items, responses.ResponseInputItemParamOfMessage(m.Content, responses.EasyInputMessageRoleAssistant))
			}
			for _, tc := range m.ToolCalls {
				items = append(items, responses.ResponseInputItemParamOfFunctionCall(string(tc.Arguments), tc.ID, tc.Name))
			}
		case provider.MessageRoleTool:
			items = append(items, responses.ResponseInputItemParamOfFunctionCallOutput(m.ToolID, m.Content))
		}
	}
	return items
}

// toTools converts tool definitions into function tools. Definitions whose
// parameters are not a JSON object are logged and sent without parameters.
func toTools(defs []provider.ToolDefinition, logger *slog.Logger) []responses.ToolUnionParam {
	if len(defs) == 0 {
		return nil
	}
	tools := make([]responses.ToolUnionParam, 0, len(defs))
	for _, d := range defs {
		var params map[string]any
		if len(d.Parameters) > 0 {
			if err := jsonAPI.Unmarshal(d.Parameters, &params); err != nil {
				logger.Warn("tool parameters are not a JSON object, sending none", "tool", d.Name, "error", err)
				params = nil
			}
		}
		tools = append(tools, responses.ToolUnionParam{
			OfFunction: &responses.FunctionToolParam{
				Name:        d.Name,
				Description: sdk.String(d.Description),
				Parameters:  params,
				Strict:      sdk.Bool(false),
			},
		})
	}
	return tools
}

// fromResponse converts a Responses API result.
func fromResponse(resp *responses.Response) provider.CompletionResponse {
	out := provider.CompletionResponse{
		Content:      resp.OutputText(),
		FinishReason: provider.FinishReasonStop,
		Usage: provider.TokenUsage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}

	for _, item := range resp.Output {
		if item.Type != "function_call" {
			continue
		}
		fc := item.AsFunctionCall()
		id := fc.CallID
		if id == "" {
			id = fc.ID
		}
		out.ToolCalls = append(out.ToolCalls, provider.ToolCall{
			ID:        id,
			Name:      fc.Name,
			Arguments: json.RawMessage(fc.Arguments),
		})
	}

	switch {
	case len(out.ToolCalls) > 0:
		out.FinishReason = provider.FinishReasonToolUse
	case resp.Status == responses.ResponseStatusIncomplete:
		out.FinishReason = provider.FinishReasonLength
	}
	return out
}
