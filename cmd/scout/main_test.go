package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/flemzord/scout/internal/agent"
	"github.com/flemzord/scout/internal/chat"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := rootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersionListsModules(t *testing.T) {
	out, err := execute(t, "", "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	for _, want := range []string{"scout dev", "gateway.http", "provider.openai_compatible", "tool.wikipedia"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestHashPassword(t *testing.T) {
	t.Parallel()

	hash, err := hashPassword(strings.NewReader("hunter2\n"))
	if err != nil {
		t.Fatalf("hashPassword: %v", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte("hunter2")); err != nil {
		t.Errorf("hash does not match: %v", err)
	}

	if _, err := hashPassword(strings.NewReader("\n")); err == nil {
		t.Error("expected error for empty password")
	}
}

func TestConfigToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scout.yaml")
	cfg := `version: "1"
modules:
  provider.ollama: {}
  gateway.http:
    auth:
      jwt_secret: test-secret
      jwt_issuer: scout-test
`
	if err := os.WriteFile(path, []byte(cfg), 0o600); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "", "config", "token", "alice", "--config", path)
	if err != nil {
		t.Fatalf("config token: %v", err)
	}

	var claims jwt.RegisteredClaims
	_, err = jwt.ParseWithClaims(strings.TrimSpace(out), &claims, func(*jwt.Token) (any, error) {
		return []byte("test-secret"), nil
	})
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.Subject != "alice" || claims.Issuer != "scout-test" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestConfigToken_NoSecret(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scout.yaml")
	if err := os.WriteFile(path, []byte("version: \"1\"\nmodules:\n  provider.ollama: {}\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := execute(t, "", "config", "token", "alice", "--config", path); err == nil {
		t.Error("expected error without gateway.http")
	}
}

type fakeAsker struct {
	questions []string
	sessions  []string
	resets    int
	err       error
}

func (f *fakeAsker) Ask(ctx context.Context, sessionID, question string, sink agent.Sink) (chat.Reply, error) {
	f.questions = append(f.questions, question)
	f.sessions = append(f.sessions, sessionID)
	if f.err != nil {
		return chat.Reply{}, f.err
	}
	sink.Report(ctx, agent.Event{Kind: agent.EntryAction, Tool: "wikipedia", Text: question})
	return chat.Reply{SessionID: sessionID, Answer: "answer to " + question}, nil
}

func (f *fakeAsker) Reset(string) error {
	f.resets++
	return nil
}

func TestRepl(t *testing.T) {
	t.Parallel()

	a := &fakeAsker{}
	var out, errOut bytes.Buffer
	in := strings.NewReader("first\n\n/reset\nsecond\n/quit\nnever\n")

	if err := repl(context.Background(), a, in, &out, &errOut); err != nil {
		t.Fatalf("repl: %v", err)
	}

	if strings.Join(a.questions, ",") != "first,second" {
		t.Errorf("questions = %v", a.questions)
	}
	if a.resets != 1 {
		t.Errorf("resets = %d, want 1", a.resets)
	}
	if a.sessions[0] == a.sessions[1] {
		t.Error("/reset should start a new session")
	}
	if !strings.Contains(out.String(), "answer to second") {
		t.Errorf("stdout = %q", out.String())
	}
	if !strings.Contains(errOut.String(), "→ wikipedia: first") {
		t.Errorf("stderr = %q", errOut.String())
	}
}

func TestRepl_ErrorKeepsGoing(t *testing.T) {
	t.Parallel()

	a := &fakeAsker{err: errors.New("model down")}
	var out, errOut bytes.Buffer
	if err := repl(context.Background(), a, strings.NewReader("one\ntwo\n"), &out, &errOut); err != nil {
		t.Fatalf("repl: %v", err)
	}
	if len(a.questions) != 2 {
		t.Errorf("questions = %v", a.questions)
	}
	if strings.Count(errOut.String(), "model down") != 2 {
		t.Errorf("stderr = %q", errOut.String())
	}
}

func TestFirstLine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in    string
		limit int
		want  string
	}{
		{"one\ntwo", 10, "one"},
		{"  padded  ", 10, "padded"},
		{"abcdef", 3, "abc…"},
		{"héllo", 2, "hé…"},
	}
	for _, tt := range tests {
		if got := firstLine(tt.in, tt.limit); got != tt.want {
			t.Errorf("firstLine(%q, %d) = %q, want %q", tt.in, tt.limit, got, tt.want)
		}
	}
}

func TestStatusText(t *testing.T) {
	t.Parallel()
	if statusText(0) != "unknown" {
		t.Error("zero status should be unknown")
	}
}
