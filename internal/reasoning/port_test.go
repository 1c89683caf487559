package reasoning_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/flemzord/scout/internal/agent"
	"github.com/flemzord/scout/internal/provider"
	"github.com/flemzord/scout/internal/provider/providertest"
	"github.com/flemzord/scout/internal/reasoning"
	"github.com/flemzord/scout/internal/tool"
	"github.com/flemzord/scout/internal/tool/tooltest"
)

func registry(t *testing.T) *tool.Registry {
	t.Helper()
	reg := tool.NewRegistry()
	for _, tl := range []tool.Tool{
		tooltest.SimpleTool("Search", "results"),
		tooltest.SimpleTool("wikipedia", "article"),
	} {
		if err := reg.Register(tl); err != nil {
			t.Fatal(err)
		}
	}
	return reg
}

func TestTextPortNextStep(t *testing.T) {
	t.Parallel()

	mock := &providertest.MockProvider{CompleteFunc: providertest.Sequence(
		"Thought: search it\nAction: Search\nAction Input: go",
	)}
	port := reasoning.NewTextPort(mock, registry(t), reasoning.Config{})

	action, err := port.NextStep(context.Background(), agent.StepRequest{Question: "What is Go?"})
	if err != nil {
		t.Fatalf("NextStep: %v", err)
	}
	call, ok := action.(agent.ToolCall)
	if !ok || call.Name != "Search" || call.Input != "go" {
		t.Fatalf("action = %#v", action)
	}

	req, _ := mock.LastRequest()
	if req.Temperature == nil || *req.Temperature != reasoning.DefaultTemperature {
		t.Errorf("temperature = %v", req.Temperature)
	}
	if req.MaxTokens != reasoning.DefaultMaxTokens {
		t.Errorf("max tokens = %d", req.MaxTokens)
	}
	if len(req.Stop) == 0 {
		t.Error("expected an Observation stop sequence")
	}
	sys := req.Messages[0]
	if sys.Role != provider.MessageRoleSystem {
		t.Fatalf("first role = %s", sys.Role)
	}
	for _, want := range []string{"Search", "wikipedia", "Final Answer:", "Action Input:"} {
		if !strings.Contains(sys.Content, want) {
			t.Errorf("system prompt missing %q", want)
		}
	}
}

func TestTextPortRendersScratchpadAndHistory(t *testing.T) {
	t.Parallel()

	port := reasoning.NewTextPort(&providertest.MockProvider{}, registry(t), reasoning.Config{})
	msgs := port.Messages(agent.StepRequest{
		Question: "Who wrote Dune?",
		History: []provider.LLMMessage{
			{Role: provider.MessageRoleSystem, Content: "old system"},
			{Role: provider.MessageRoleAssistant, Content: "Hi! Ask me anything…"},
		},
		Scratchpad: []agent.Entry{
			{Kind: agent.EntryThought, Payload: "look it up"},
			{Kind: agent.EntryAction, Tool: "wikipedia", Payload: "Dune novel"},
			{Kind: agent.EntryObservation, Tool: "wikipedia", Payload: "Frank Herbert"},
		},
	})

	if len(msgs) != 3 {
		t.Fatalf("messages = %d, want system + history + user", len(msgs))
	}
	if msgs[1].Content != "Hi! Ask me anything…" {
		t.Errorf("history message = %q", msgs[1].Content)
	}
	user := msgs[2].Content
	for _, want := range []string{
		"Question: Who wrote Dune?",
		"Thought: look it up",
		"Action: wikipedia\nAction Input: Dune novel",
		"Observation: Frank Herbert",
	} {
		if !strings.Contains(user, want) {
			t.Errorf("user message missing %q:\n%s", want, user)
		}
	}
}

func TestTextPortCorrection(t *testing.T) {
	t.Parallel()

	port := reasoning.NewTextPort(&providertest.MockProvider{}, registry(t), reasoning.Config{})
	msgs := port.Messages(agent.StepRequest{
		Question:   "q",
		Correction: agent.DefaultCorrection,
		Rejected:   "gibberish",
	})

	n := len(msgs)
	if msgs[n-2].Role != provider.MessageRoleAssistant || msgs[n-2].Content != "gibberish" {
		t.Errorf("rejected message = %+v", msgs[n-2])
	}
	if msgs[n-1].Role != provider.MessageRoleUser || msgs[n-1].Content != agent.DefaultCorrection {
		t.Errorf("correction message = %+v", msgs[n-1])
	}
}

func TestTextPortMalformedReply(t *testing.T) {
	t.Parallel()

	mock := &providertest.MockProvider{CompleteFunc: providertest.Sequence("no idea")}
	port := reasoning.NewTextPort(mock, registry(t), reasoning.Config{})

	_, err := port.NextStep(context.Background(), agent.StepRequest{Question: "q"})
	if !errors.Is(err, agent.ErrMalformedAction) {
		t.Fatalf("err = %v, want ErrMalformedAction", err)
	}
}

func TestTextPortProviderError(t *testing.T) {
	t.Parallel()

	mock := &providertest.MockProvider{
		CompleteFunc: func(context.Context, provider.CompletionRequest) (provider.CompletionResponse, error) {
			return provider.CompletionResponse{}, provider.ErrProviderDown
		},
	}
	port := reasoning.NewTextPort(mock, registry(t), reasoning.Config{})

	_, err := port.NextStep(context.Background(), agent.StepRequest{Question: "q"})
	if !errors.Is(err, provider.ErrProviderDown) {
		t.Fatalf("err = %v", err)
	}
}

func TestTextPortTrimsHistory(t *testing.T) {
	t.Parallel()

	var history []provider.LLMMessage
	for range 50 {
		history = append(history, provider.LLMMessage{Role: provider.MessageRoleUser, Content: strings.Repeat("x", 400)})
	}
	port := reasoning.NewTextPort(&providertest.MockProvider{}, registry(t), reasoning.Config{MaxHistoryTokens: 500})
	msgs := port.Messages(agent.StepRequest{Question: "q", History: history})

	kept := len(msgs) - 2
	if kept <= 0 || kept >= len(history) {
		t.Errorf("kept %d history messages, want a trimmed non-empty tail", kept)
	}
}

func TestToolCallingPortNextStep(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		resp provider.CompletionResponse
		want agent.Action
	}{
		{
			name: "tool call",
			resp: provider.CompletionResponse{ToolCalls: []provider.ToolCall{{
				ID: "1", Name: "Search", Arguments: json.RawMessage(`{"query":"go"}`),
			}}},
			want: agent.ToolCall{Name: "Search", Input: "go"},
		},
		{
			name: "first call wins",
			resp: provider.CompletionResponse{Content: "checking", ToolCalls: []provider.ToolCall{
				{Name: "wikipedia", Arguments: json.RawMessage(`{"input":"a"}`)},
				{Name: "Search", Arguments: json.RawMessage(`{"query":"b"}`)},
			}},
			want: agent.ToolCall{Name: "wikipedia", Input: "a", Thought: "checking"},
		},
		{
			name: "finish",
			resp: provider.CompletionResponse{Content: " 42 "},
			want: agent.Finish{Answer: "42"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			mock := &providertest.MockProvider{
				CompleteFunc: func(context.Context, provider.CompletionRequest) (provider.CompletionResponse, error) {
					return tt.resp, nil
				},
			}
			port := reasoning.NewToolCallingPort(mock, registry(t), reasoning.Config{})
			got, err := port.NextStep(context.Background(), agent.StepRequest{Question: "q"})
			if err != nil {
				t.Fatalf("NextStep: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %#v, want %#v", got, tt.want)
			}
			req, _ := mock.LastRequest()
			if len(req.Tools) != 2 {
				t.Errorf("tools offered = %d, want 2", len(req.Tools))
			}
		})
	}
}

func TestToolCallingPortEmptyReply(t *testing.T) {
	t.Parallel()

	mock := &providertest.MockProvider{CompleteFunc: providertest.Sequence("   ")}
	port := reasoning.NewToolCallingPort(mock, registry(t), reasoning.Config{})

	_, err := port.NextStep(context.Background(), agent.StepRequest{Question: "q"})
	if !errors.Is(err, agent.ErrMalformedAction) {
		t.Fatalf("err = %v, want ErrMalformedAction", err)
	}
}

func TestToolCallingPortMessages(t *testing.T) {
	t.Parallel()

	port := reasoning.NewToolCallingPort(&providertest.MockProvider{}, registry(t), reasoning.Config{})
	msgs := port.Messages(agent.StepRequest{
		Question: "q",
		Scratchpad: []agent.Entry{
			{Kind: agent.EntryThought, Payload: "search"},
			{Kind: agent.EntryAction, Tool: "Search", Payload: "go"},
			{Kind: agent.EntryObservation, Tool: "Search", Payload: "results"},
		},
	})

	// system, user, assistant tool call, tool result
	if len(msgs) != 4 {
		t.Fatalf("messages = %d, want 4", len(msgs))
	}
	call := msgs[2]
	if call.Role != provider.MessageRoleAssistant || len(call.ToolCalls) != 1 || call.Content != "search" {
		t.Fatalf("assistant message = %+v", call)
	}
	if got := tool.ArgumentText(call.ToolCalls[0].Arguments); got != "go" {
		t.Errorf("arguments = %q", got)
	}
	result := msgs[3]
	if result.Role != provider.MessageRoleTool || result.ToolID != call.ToolCalls[0].ID || result.Content != "results" {
		t.Errorf("tool message = %+v", result)
	}
}
