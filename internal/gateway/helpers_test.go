package gateway

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/scout/internal/agent"
	"github.com/flemzord/scout/internal/chat"
	"github.com/flemzord/scout/internal/provider"
)

// fakeAssistant is an in-memory Assistant. AskFunc, when set, replaces the
// default echo behaviour.
type fakeAssistant struct {
	AskFunc func(ctx context.Context, sessionID, question string, sink agent.Sink) (chat.Reply, error)

	mu       sync.Mutex
	sessions map[string][]provider.LLMMessage
	asks     int
}

func newFakeAssistant() *fakeAssistant {
	return &fakeAssistant{sessions: make(map[string][]provider.LLMMessage)}
}

func (f *fakeAssistant) Ask(ctx context.Context, sessionID, question string, sink agent.Sink) (chat.Reply, error) {
	f.mu.Lock()
	f.asks++
	f.mu.Unlock()
	if f.AskFunc != nil {
		return f.AskFunc(ctx, sessionID, question, sink)
	}

	answer := "echo: " + question
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sessions[sessionID]) == 0 {
		f.sessions[sessionID] = []provider.LLMMessage{{Role: provider.MessageRoleAssistant, Content: chat.Greeting}}
	}
	f.sessions[sessionID] = append(f.sessions[sessionID],
		provider.LLMMessage{Role: provider.MessageRoleUser, Content: question},
		provider.LLMMessage{Role: provider.MessageRoleAssistant, Content: answer},
	)
	return chat.Reply{SessionID: sessionID, Answer: answer, StopReason: agent.StopReasonComplete}, nil
}

func (f *fakeAssistant) Transcript(sessionID string) ([]provider.LLMMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msgs := f.sessions[sessionID]; len(msgs) > 0 {
		return append([]provider.LLMMessage(nil), msgs...), nil
	}
	return []provider.LLMMessage{{Role: provider.MessageRoleAssistant, Content: chat.Greeting}}, nil
}

func (f *fakeAssistant) Reset(sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, sessionID)
	return nil
}

func (f *fakeAssistant) Sessions() ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.sessions))
	for id := range f.sessions {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeAssistant) askCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.asks
}

// newTestGateway returns a gateway with defaults applied and the given
// assistant bound, without listening.
func newTestGateway(t *testing.T, a Assistant) *Gateway {
	t.Helper()
	g := &Gateway{
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		assistant: a,
	}
	g.config.defaults()
	return g
}

// serve starts an httptest server over the gateway router.
func serve(t *testing.T, g *Gateway) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(g.buildRouter())
	t.Cleanup(srv.Close)
	return srv
}

func doRequest(t *testing.T, method, url, body string, header http.Header) *http.Response {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(t.Context(), method, url, r)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if err := jsonAPI.Unmarshal(data, v); err != nil {
		t.Fatalf("decode %q: %v", bytes.TrimSpace(data), err)
	}
}

func mustYAMLNode(t *testing.T, src string) *yaml.Node {
	t.Helper()
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(src), &doc); err != nil {
		t.Fatalf("yaml: %v", err)
	}
	if len(doc.Content) == 0 {
		t.Fatal("empty yaml document")
	}
	return doc.Content[0]
}
