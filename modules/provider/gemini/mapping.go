package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"google.golang.org/genai"

	"github.com/flemzord/scout/internal/provider"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// toContents splits system messages into the system instruction and maps
// the rest onto user and model turns. Tool results become function
// responses on the user side. Tool call arguments that are not a JSON
// object are passed as {"input": <raw arguments>}.
func toContents(msgs []provider.LLMMessage) ([]*genai.Content, *genai.Content) {
	var (
		contents []*genai.Content
		system   []*genai.Part
		names    = make(map[string]string)
	)

	for _, m := range msgs {
		switch m.Role {
		case provider.MessageRoleSystem:
			if m.Content != "" {
				system = append(system, &genai.Part{Text: m.Content})
			}
		case provider.MessageRoleTool:
			name := m.Name
			if name == "" {
				name = names[m.ToolID]
			}
			contents = append(contents, &genai.Content{
				Role: "user",
				Parts: []*genai.Part{{
					FunctionResponse: &genai.FunctionResponse{
						ID:       m.ToolID,
						Name:     name,
						Response: map[string]any{"result": m.Content},
					},
				}},
			})
		case provider.MessageRoleAssistant:
			var parts []*genai.Part
			if m.Content != "" {
				parts = append(parts, &genai.Part{Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				names[tc.ID] = tc.Name
				parts = append(parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{ID: tc.ID, Name: tc.Name, Args: callArgs(tc.Arguments)},
				})
			}
			if len(parts) > 0 {
				contents = append(contents, &genai.Content{Role: "model", Parts: parts})
			}
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}

	if len(system) == 0 {
		return contents, nil
	}
	return contents, &genai.Content{Parts: system}
}

func callArgs(raw []byte) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var args map[string]any
	if err := jsonAPI.Unmarshal(raw, &args); err != nil {
		return map[string]any{"input": string(raw)}
	}
	return args
}

// toTools converts tool definitions into function declarations. A
// definition whose parameters do not decode as a schema is logged and sent
// without parameters.
func toTools(defs []provider.ToolDefinition, logger *slog.Logger) []*genai.Tool {
	if len(defs) == 0 {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(defs))
	for _, d := range defs {
		fd := &genai.FunctionDeclaration{Name: d.Name, Description: d.Description}
		if len(d.Parameters) > 0 {
			var schema genai.Schema
			if err := jsonAPI.Unmarshal(d.Parameters, &schema); err != nil {
				logger.Warn("tool parameters are not a valid schema, sending none", "tool", d.Name, "error", err)
			} else {
				fd.Parameters = &schema
			}
		}
		decls = append(decls, fd)
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

func fromResponse(resp *genai.GenerateContentResponse) provider.CompletionResponse {
	out := provider.CompletionResponse{
		Content:      resp.Text(),
		FinishReason: provider.FinishReasonStop,
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = provider.TokenUsage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason == genai.FinishReasonMaxTokens {
		out.FinishReason = provider.FinishReasonLength
	}

	for i, fc := range resp.FunctionCalls() {
		args, err := jsonAPI.Marshal(fc.Args)
		if err != nil {
			args = []byte("{}")
		}
		id := fc.ID
		if id == "" {
			id = fmt.Sprintf("call_%d", i+1)
		}
		out.ToolCalls = append(out.ToolCalls, provider.ToolCall{ID: id, Name: fc.Name, Arguments: args})
	}
	if len(out.ToolCalls) > 0 {
		out.FinishReason = provider.FinishReasonToolUse
	}
	return out
}

// mapError maps API errors to provider sentinels. Context errors pass
// through unchanged.
func mapError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("%w: %w", provider.ErrProviderDown, err)
	}
	switch code := apiErr.Code; {
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", provider.ErrRateLimit, apiErr.Message)
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%w: %s", provider.ErrAuthentication, apiErr.Message)
	case code == http.StatusBadRequest && strings.Contains(strings.ToLower(apiErr.Message), "token"):
		return fmt.Errorf("%w: %s", provider.ErrContextLength, apiErr.Message)
	case code >= 500:
		return fmt.Errorf("%w: HTTP %d: %s", provider.ErrProviderDown, code, apiErr.Message)
	default:
		return fmt.Errorf("provider.gemini: %w", err)
	}
}
