package gateway

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/flemzord/scout/internal/agent"
	"github.com/flemzord/scout/internal/chat"
	"github.com/flemzord/scout/internal/normalize"
	"github.com/flemzord/scout/internal/security"
	"github.com/flemzord/scout/internal/security/securitytest"
	"github.com/flemzord/scout/internal/tool"
	"github.com/flemzord/scout/internal/tool/tooltest"
)

func TestAsk_Success(t *testing.T) {
	t.Parallel()

	fake := newFakeAssistant()
	g := newTestGateway(t, fake)
	audit, events := securitytest.NewTestAuditLogger()
	g.audit = audit
	srv := serve(t, g)

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/sessions/s1/ask", `{"question":"capital of France?"}`, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var reply chat.Reply
	decodeBody(t, resp, &reply)
	if reply.Answer != "echo: capital of France?" {
		t.Errorf("answer = %q", reply.Answer)
	}
	if reply.SessionID != "s1" || reply.StopReason != agent.StopReasonComplete {
		t.Errorf("reply = %+v", reply)
	}

	got := events()
	if len(got) != 1 || got[0].Type != security.EventAsk || got[0].SessionID != "s1" {
		t.Errorf("audit events = %+v", got)
	}
}

func TestAsk_BadRequests(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{name: "invalid json", path: "/api/sessions/s1/ask", body: `{"question":`, want: http.StatusBadRequest},
		{name: "too deep", path: "/api/sessions/s1/ask", body: strings.Repeat("[", 40) + strings.Repeat("]", 40), want: http.StatusBadRequest},
		{name: "question too long", path: "/api/sessions/s1/ask", body: `{"question":"` + strings.Repeat("a", 20) + `"}`, want: http.StatusBadRequest},
		{name: "body too large", path: "/api/sessions/s1/ask", body: `{"question":"` + strings.Repeat("a", 300) + `"}`, want: http.StatusRequestEntityTooLarge},
		{name: "bad session id", path: "/api/sessions/..bad/ask", body: `{"question":"hi"}`, want: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fake := newFakeAssistant()
			g := newTestGateway(t, fake)
			g.config.MaxQuestionLength = 10
			g.config.MaxBodyBytes = 200
			srv := serve(t, g)

			resp := doRequest(t, http.MethodPost, srv.URL+tt.path, tt.body, nil)
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
			var body errorResponse
			decodeBody(t, resp, &body)
			if body.Error == "" {
				t.Error("expected an error message")
			}
			if fake.askCount() != 0 {
				t.Error("assistant should not be called")
			}
		})
	}
}

func TestAsk_ErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{
			name: "port unavailable",
			err:  &agent.RunError{Stage: "port", Err: fmt.Errorf("%w: boom", agent.ErrPortUnavailable)},
			want: http.StatusBadGateway,
		},
		{name: "unrecognized", err: &normalize.UnrecognizedShapeError{Type: "int"}, want: http.StatusBadGateway},
		{name: "deadline", err: fmt.Errorf("run: %w", context.DeadlineExceeded), want: http.StatusGatewayTimeout},
		{name: "canceled", err: context.Canceled, want: http.StatusServiceUnavailable},
		{name: "other", err: fmt.Errorf("disk full"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fake := newFakeAssistant()
			fake.AskFunc = func(context.Context, string, string, agent.Sink) (chat.Reply, error) {
				return chat.Reply{}, tt.err
			}
			srv := serve(t, newTestGateway(t, fake))

			resp := doRequest(t, http.MethodPost, srv.URL+"/api/sessions/s1/ask", `{"question":"q"}`, nil)
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
			var body errorResponse
			decodeBody(t, resp, &body)
			if strings.Contains(body.Error, "disk full") {
				t.Error("internal error detail leaked to client")
			}
		})
	}
}

func TestAsk_RateLimited(t *testing.T) {
	t.Parallel()

	fake := newFakeAssistant()
	g := newTestGateway(t, fake)
	g.limiter = security.NewRateLimiter(security.RateLimitConfig{AsksPerMin: 1})
	audit, events := securitytest.NewTestAuditLogger()
	g.audit = audit
	srv := serve(t, g)

	first := doRequest(t, http.MethodPost, srv.URL+"/api/sessions/s1/ask", `{"question":"a"}`, nil)
	second := doRequest(t, http.MethodPost, srv.URL+"/api/sessions/s1/ask", `{"question":"b"}`, nil)

	if first.StatusCode != http.StatusOK {
		t.Errorf("first status = %d", first.StatusCode)
	}
	if second.StatusCode != http.StatusTooManyRequests {
		t.Errorf("second status = %d, want 429", second.StatusCode)
	}
	if fake.askCount() != 1 {
		t.Errorf("asks = %d, want 1", fake.askCount())
	}

	var limited bool
	for _, ev := range events() {
		if ev.Type == security.EventRateLimit {
			limited = true
		}
	}
	if !limited {
		t.Error("expected a rate_limit audit event")
	}
}

func TestSessions_Lifecycle(t *testing.T) {
	t.Parallel()

	fake := newFakeAssistant()
	srv := serve(t, newTestGateway(t, fake))

	created := doRequest(t, http.MethodPost, srv.URL+"/api/sessions", "", nil)
	if created.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", created.StatusCode)
	}
	var session sessionResponse
	decodeBody(t, created, &session)
	if !sessionIDPattern.MatchString(session.SessionID) {
		t.Fatalf("session id %q does not match pattern", session.SessionID)
	}
	if len(session.Messages) != 1 || session.Messages[0].Content != chat.Greeting {
		t.Errorf("new session messages = %+v", session.Messages)
	}

	base := srv.URL + "/api/sessions/" + session.SessionID
	_ = doRequest(t, http.MethodPost, base+"/ask", `{"question":"hi"}`, nil)

	msgs := doRequest(t, http.MethodGet, base+"/messages", "", nil)
	decodeBody(t, msgs, &session)
	if len(session.Messages) != 3 {
		t.Fatalf("messages = %d, want 3", len(session.Messages))
	}

	var list sessionsResponse
	decodeBody(t, doRequest(t, http.MethodGet, srv.URL+"/api/sessions", "", nil), &list)
	if len(list.Sessions) != 1 || list.Sessions[0] != session.SessionID {
		t.Errorf("sessions = %v", list.Sessions)
	}

	del := doRequest(t, http.MethodDelete, base, "", nil)
	if del.StatusCode != http.StatusNoContent {
		t.Errorf("delete status = %d", del.StatusCode)
	}
	decodeBody(t, doRequest(t, http.MethodGet, srv.URL+"/api/sessions", "", nil), &list)
	if len(list.Sessions) != 0 {
		t.Errorf("sessions after delete = %v", list.Sessions)
	}
}

func TestListTools(t *testing.T) {
	t.Parallel()

	reg := tool.NewRegistry()
	if err := reg.Register(&tooltest.MockTool{
		NameFunc:        func() string { return "wikipedia" },
		DescriptionFunc: func() string { return "Look up a topic." },
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	g := newTestGateway(t, newFakeAssistant())
	g.tools = reg
	srv := serve(t, g)

	var tools []toolInfo
	decodeBody(t, doRequest(t, http.MethodGet, srv.URL+"/api/tools", "", nil), &tools)
	if len(tools) != 1 || tools[0].Name != "wikipedia" || tools[0].Description != "Look up a topic." {
		t.Errorf("tools = %+v", tools)
	}
}

func TestRoutes_RequireAuth(t *testing.T) {
	t.Parallel()

	g := newTestGateway(t, newFakeAssistant())
	g.config.Auth = AuthConfig{BearerToken: "tok"}
	srv := serve(t, g)

	if resp := doRequest(t, http.MethodGet, srv.URL+"/api/sessions", "", nil); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("unauthenticated status = %d, want 401", resp.StatusCode)
	}
	if resp := doRequest(t, http.MethodGet, srv.URL+"/health", "", nil); resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d, want 200", resp.StatusCode)
	}
	header := http.Header{"Authorization": []string{"Bearer tok"}}
	if resp := doRequest(t, http.MethodGet, srv.URL+"/api/sessions", "", header); resp.StatusCode != http.StatusOK {
		t.Errorf("authenticated status = %d, want 200", resp.StatusCode)
	}
}
