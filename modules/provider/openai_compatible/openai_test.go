package openaicompat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/scout/internal/provider"
)

func newTestProvider(baseURL string) *Provider {
	cfg := Config{BaseURL: baseURL, Model: "test-model", Timeout: 5 * time.Second}
	cfg.defaults()
	return &Provider{
		config: cfg,
		apiKey: "test-key",
		client: &http.Client{
			Transport: &http.Transport{ResponseHeaderTimeout: 5 * time.Second},
		},
		logger: slog.New(slog.DiscardHandler),
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func userMessage(text string) []provider.LLMMessage {
	return []provider.LLMMessage{{Role: provider.MessageRoleUser, Content: text}}
}

func TestConfigure(t *testing.T) {
	t.Parallel()

	yamlData := `
base_url: "https://api.example.com/v1/"
api_key: "sk-test-123"
model: "gpt-4"
max_tokens: 1024
temperature: 0.7
headers:
  X-Custom: "value"
timeout: 60s
`
	var node yaml.Node
	if err := yaml.Unmarshal([]byte(yamlData), &node); err != nil {
		t.Fatalf("unmarshal yaml: %v", err)
	}

	p := &Provider{}
	if err := p.Configure(node.Content[0]); err != nil {
		t.Fatalf("Configure: %v", err)
	}

	if p.config.BaseURL != "https://api.example.com/v1" {
		t.Errorf("BaseURL = %q, want trailing slash trimmed", p.config.BaseURL)
	}
	if p.config.Model != "gpt-4" || p.config.MaxTokens != 1024 {
		t.Errorf("config = %+v", p.config)
	}
	if *p.config.Temperature != 0.7 {
		t.Errorf("Temperature = %v, want 0.7", *p.config.Temperature)
	}
	if p.config.Timeout != 60*time.Second {
		t.Errorf("Timeout = %v, want %v", p.config.Timeout, 60*time.Second)
	}
	if v := p.config.Headers["X-Custom"]; v != "value" {
		t.Errorf("Headers[X-Custom] = %q, want %q", v, "value")
	}
}

func TestConfigDefaults(t *testing.T) {
	t.Parallel()

	var c Config
	c.defaults()

	if c.BaseURL != DefaultBaseURL || c.Model != DefaultModel {
		t.Errorf("endpoint defaults = %q %q", c.BaseURL, c.Model)
	}
	if c.MaxTokens != 2048 || *c.Temperature != 0.2 {
		t.Errorf("sampling defaults = %d %v", c.MaxTokens, *c.Temperature)
	}
	if c.APIKeyEnv != "GROQ_API_KEY" {
		t.Errorf("APIKeyEnv = %q", c.APIKeyEnv)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	hot := 3.0
	tests := []struct {
		name    string
		config  Config
		apiKey  string
		wantErr string
	}{
		{name: "valid", config: Config{}, apiKey: "k"},
		{name: "bad scheme", config: Config{BaseURL: "ftp://x"}, apiKey: "k", wantErr: "scheme"},
		{name: "temperature range", config: Config{Temperature: &hot}, apiKey: "k", wantErr: "temperature"},
		{name: "missing key", config: Config{}, wantErr: "API key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := &Provider{config: tt.config, apiKey: tt.apiKey}
			p.config.defaults()
			err := p.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error %v does not contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_MissingKeySentinel(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "")
	t.Setenv(provider.APIKeyEnv, "")

	p := &Provider{}
	p.config.defaults()
	p.apiKey = provider.ResolveAPIKey(p.config.APIKey, p.config.APIKeyEnv)
	if err := p.Validate(); !errors.Is(err, provider.ErrMissingAPIKey) {
		t.Fatalf("Validate() = %v, want ErrMissingAPIKey", err)
	}
}

func TestComplete(t *testing.T) {
	t.Parallel()

	var got oaiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("path = %s, want /chat/completions", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("Authorization = %q, want %q", auth, "Bearer test-key")
		}
		_ = json.NewDecoder(r.Body).Decode(&got)

		writeJSON(w, oaiResponse{
			Choices: []oaiChoice{{
				Message:      oaiMessage{Role: "assistant", Content: "Hello!"},
				FinishReason: "stop",
			}},
			Usage: oaiUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
		})
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL)
	resp, err := p.Complete(context.Background(), provider.CompletionRequest{
		Messages: userMessage("Hi"),
		Stop:     []string{"\nObservation:"},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if resp.Content != "Hello!" || resp.FinishReason != provider.FinishReasonStop {
		t.Errorf("resp = %+v", resp)
	}
	if resp.Usage.TotalTokens != 15 {
		t.Errorf("TotalTokens = %d, want 15", resp.Usage.TotalTokens)
	}
	if got.Model != "test-model" || got.MaxTokens != 2048 || got.Temperature == nil || *got.Temperature != 0.2 {
		t.Errorf("request = %+v, want configured defaults", got)
	}
	if len(got.Stop) != 1 || got.Stop[0] != "\nObservation:" {
		t.Errorf("Stop = %v", got.Stop)
	}
}

func TestComplete_RequestOverridesConfig(t *testing.T) {
	t.Parallel()

	var got oaiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		writeJSON(w, oaiResponse{Choices: []oaiChoice{{Message: oaiMessage{Content: "ok"}}}})
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL)
	_, err := p.Complete(context.Background(), provider.CompletionRequest{
		Messages:    userMessage("Hi"),
		MaxTokens:   64,
		Temperature: provider.Float64(0),
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got.MaxTokens != 64 || got.Temperature == nil || *got.Temperature != 0 {
		t.Errorf("request = %+v", got)
	}
}

func TestComplete_ToolCalls(t *testing.T) {
	t.Parallel()

	var got oaiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		writeJSON(w, oaiResponse{
			Choices: []oaiChoice{{
				Message: oaiMessage{
					Role: "assistant",
					ToolCalls: []oaiToolCall{{
						ID:       "call_123",
						Type:     "function",
						Function: oaiToolFunction{Name: "Search", Arguments: `{"query":"Paris"}`},
					}},
				},
				FinishReason: "tool_calls",
			}},
		})
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL)
	resp, err := p.Complete(context.Background(), provider.CompletionRequest{
		Messages: []provider.LLMMessage{
			{Role: provider.MessageRoleUser, Content: "Weather in Paris?"},
			{Role: provider.MessageRoleAssistant, ToolCalls: []provider.ToolCall{{ID: "call_0", Name: "Search", Arguments: json.RawMessage(`{"query":"x"}`)}}},
			{Role: provider.MessageRoleTool, ToolID: "call_0", Content: "sunny"},
		},
		Tools: []provider.ToolDefinition{{
			Name:        "Search",
			Description: "Web search",
			Parameters:  json.RawMessage(`{"type":"object","properties":{"query":{"type":"string"}}}`),
		}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if resp.FinishReason != provider.FinishReasonToolUse {
		t.Errorf("FinishReason = %q, want %q", resp.FinishReason, provider.FinishReasonToolUse)
	}
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].Name != "Search" || resp.ToolCalls[0].ID != "call_123" {
		t.Fatalf("ToolCalls = %+v", resp.ToolCalls)
	}
	if len(got.Tools) != 1 || got.Tools[0].Type != "function" {
		t.Errorf("Tools = %+v", got.Tools)
	}
	if got.Messages[1].ToolCalls[0].Function.Arguments != `{"query":"x"}` {
		t.Errorf("assistant tool call = %+v", got.Messages[1])
	}
	if got.Messages[2].ToolCallID != "call_0" {
		t.Errorf("tool message = %+v", got.Messages[2])
	}
}

func TestComplete_ErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"rate limit", http.StatusTooManyRequests, "slow down", provider.ErrRateLimit},
		{"server error", http.StatusInternalServerError, "boom", provider.ErrProviderDown},
		{"auth", http.StatusUnauthorized, "bad key", provider.ErrAuthentication},
		{"context length", http.StatusBadRequest, `{"error":{"code":"context_length_exceeded"}}`, provider.ErrContextLength},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			_, err := newTestProvider(srv.URL).Complete(context.Background(), provider.CompletionRequest{Messages: userMessage("Hi")})
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestComplete_ContextCanceled(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestProvider(srv.URL).Complete(ctx, provider.CompletionRequest{Messages: userMessage("Hi")})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if provider.IsRetryable(err) {
		t.Error("caller cancellation must not be retryable")
	}
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/models") {
			t.Errorf("path = %s, want /models", r.URL.Path)
		}
		_, _ = fmt.Fprint(w, `{"data":[]}`)
	}))
	defer srv.Close()

	if err := newTestProvider(srv.URL).HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()

	if err := newTestProvider(down.URL).HealthCheck(context.Background()); !errors.Is(err, provider.ErrProviderDown) {
		t.Fatalf("HealthCheck = %v, want ErrProviderDown", err)
	}
}

func TestCustomHeaders(t *testing.T) {
	t.Parallel()

	var gotHeaders http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header
		writeJSON(w, oaiResponse{Choices: []oaiChoice{{Message: oaiMessage{Content: "ok"}, FinishReason: "stop"}}})
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL)
	p.config.Headers = map[string]string{"X-Custom-Header": "custom-value"}

	if _, err := p.Complete(context.Background(), provider.CompletionRequest{Messages: userMessage("Hi")}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if v := gotHeaders.Get("X-Custom-Header"); v != "custom-value" {
		t.Errorf("X-Custom-Header = %q, want %q", v, "custom-value")
	}
}
