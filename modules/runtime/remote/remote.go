// Package remote provides a chat engine that delegates each question to
// an agent runtime reachable over HTTP. The decoded response body is
// returned untouched; the result normalizer absorbs its shape.
package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	jsoniter "github.com/json-iterator/go"
	"gopkg.in/yaml.v3"

	"github.com/flemzord/scout/internal/agent"
	"github.com/flemzord/scout/internal/chat"
	"github.com/flemzord/scout/internal/core"
	"github.com/flemzord/scout/internal/provider"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

func init() {
	core.RegisterModule(&Module{})
}

var (
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Validator    = (*Module)(nil)
	_ chat.Engine       = (*Module)(nil)
)

// maxResponseBody bounds the decoded reply.
const maxResponseBody = 8 << 20

// Message is one prior turn as sent to the runtime.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is the body posted for each question.
type Request struct {
	Messages []Message `json:"messages"`
	Input    string    `json:"input"`
}

// Module is the remote runtime engine.
type Module struct {
	config Config
	client *http.Client
	logger *slog.Logger
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "runtime.remote",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("remote: decode config: %w", err)
	}
	return nil
}

// Provision implements core.Provisioner. The module publishes itself as
// the chat engine.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.logger = ctx.Logger
	m.client = &http.Client{Timeout: m.config.timeout()}
	ctx.RegisterService(chat.EngineService, chat.Engine(m))
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	return m.config.validate()
}

// Invoke implements chat.Engine. The runtime reports no intermediate
// steps, so in.Sink receives nothing. Failures are returned as
// *agent.RunError wrapping agent.ErrPortUnavailable.
func (m *Module) Invoke(ctx context.Context, in chat.Input) (any, error) {
	body, err := jsonAPI.Marshal(Request{Messages: toMessages(in.History), Input: in.Question})
	if err != nil {
		return nil, &agent.RunError{Stage: "remote", Err: fmt.Errorf("marshal request: %w", err)}
	}

	start := time.Now()
	data, err := m.post(ctx, body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &agent.RunError{Stage: "remote", Err: ctx.Err()}
		}
		return nil, &agent.RunError{Stage: "remote", Err: fmt.Errorf("%w: %w", agent.ErrPortUnavailable, err)}
	}

	var out any
	if err := jsonAPI.Unmarshal(data, &out); err != nil {
		return nil, &agent.RunError{Stage: "remote", Err: fmt.Errorf("%w: decode response: %w", agent.ErrPortUnavailable, err)}
	}
	m.logger.Debug("remote runtime replied", "session", in.SessionID, "duration", time.Since(start))
	return out, nil
}

func (m *Module) post(ctx context.Context, body []byte) ([]byte, error) {
	op := func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.config.URL, bytes.NewReader(body))
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		for k, v := range m.config.Headers {
			req.Header.Set(k, v)
		}
		if m.config.Token != "" {
			req.Header.Set("Authorization", "Bearer "+m.config.Token)
		}

		resp, err := m.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(ctx.Err())
			}
			return nil, err
		}
		defer resp.Body.Close() //nolint:errcheck // best-effort close

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			if secs, convErr := strconv.Atoi(resp.Header.Get("Retry-After")); convErr == nil && secs > 0 {
				return nil, backoff.RetryAfter(secs)
			}
			return nil, fmt.Errorf("status %d: %s", resp.StatusCode, snippet(data))
		case resp.StatusCode < 200 || resp.StatusCode > 299:
			return nil, backoff.Permanent(fmt.Errorf("status %d: %s", resp.StatusCode, snippet(data)))
		}
		return data, nil
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = 250 * time.Millisecond
	return backoff.Retry(ctx, op,
		backoff.WithBackOff(expo),
		backoff.WithMaxTries(uint(m.config.MaxRetries)+1),
	)
}

func toMessages(history []provider.LLMMessage) []Message {
	out := make([]Message, 0, len(history))
	for _, msg := range history {
		// Tool traffic is internal to a run and never part of a transcript.
		if msg.Role == provider.MessageRoleTool || len(msg.ToolCalls) > 0 {
			continue
		}
		out = append(out, Message{Role: string(msg.Role), Content: msg.Content})
	}
	return out
}

func snippet(b []byte) string {
	const limit = 200
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
