package tool

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/flemzord/scout/internal/security"
)

func echoTool(name string) *Func {
	return NewFunc(name, "echoes "+name, func(_ context.Context, in string) (string, error) {
		return name + ":" + in, nil
	})
}

func TestRegistryRegister_EmptyName(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	for _, name := range []string{"", "   "} {
		if err := r.Register(echoTool(name)); !errors.Is(err, ErrEmptyToolName) {
			t.Fatalf("Register(%q): expected ErrEmptyToolName, got %v", name, err)
		}
	}
}

func TestRegistryRegister_Duplicate(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	if err := r.Register(echoTool("search")); err != nil {
		t.Fatalf("unexpected first register error: %v", err)
	}
	err := r.Register(echoTool("search"))
	if !errors.Is(err, ErrDuplicateTool) {
		t.Fatalf("expected ErrDuplicateTool, got %v", err)
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
}

func TestRegistryDefinitions_SortedAndTrimmed(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	for _, name := range []string{"wikipedia", " arxiv ", "Search"} {
		if err := r.Register(echoTool(name)); err != nil {
			t.Fatalf("register %q: %v", name, err)
		}
	}

	defs := r.Definitions()
	got := make([]string, len(defs))
	for i, d := range defs {
		got[i] = d.Name
	}
	want := []string{"Search", "arxiv", "wikipedia"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("Definitions names = %v, want %v", got, want)
	}
	if strings.Join(r.Names(), ",") != strings.Join(want, ",") {
		t.Fatalf("Names() = %v, want %v", r.Names(), want)
	}
}

func TestRegistryDispatch_Success(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	if err := r.Register(echoTool("search")); err != nil {
		t.Fatal(err)
	}

	obs, err := r.Dispatch(context.Background(), "search", "golang")
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if obs.Failed {
		t.Fatalf("observation should not fail: %+v", obs)
	}
	if obs.Text != "search:golang" {
		t.Errorf("Text = %q, want search:golang", obs.Text)
	}
	if obs.Tool != "search" || obs.Input != "golang" {
		t.Errorf("unexpected metadata: %+v", obs)
	}
}

func TestRegistryDispatch_UnknownTool(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	_, err := r.Dispatch(context.Background(), "calculator", "1+1")

	var de *DispatchError
	if !errors.As(err, &de) {
		t.Fatalf("expected *DispatchError, got %v", err)
	}
	if !errors.Is(err, ErrToolNotFound) {
		t.Errorf("expected ErrToolNotFound in chain, got %v", err)
	}
}

func TestRegistryDispatch_FailureBecomesObservation(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	boom := errors.New("network unreachable")
	if err := r.Register(NewFunc("search", "", func(context.Context, string) (string, error) {
		return "", boom
	})); err != nil {
		t.Fatal(err)
	}

	obs, err := r.Dispatch(context.Background(), "search", "q")
	if err != nil {
		t.Fatalf("execution failures must not be returned, got %v", err)
	}
	if !obs.Failed {
		t.Fatal("expected failed observation")
	}
	if obs.Text != "Error: network unreachable" {
		t.Errorf("Text = %q", obs.Text)
	}
	var ee *ExecutionError
	if !errors.As(obs.Err, &ee) || !errors.Is(obs.Err, boom) {
		t.Errorf("Err = %v, want ExecutionError wrapping boom", obs.Err)
	}
}

func TestRegistryDispatch_PanicRecovered(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	if err := r.Register(NewFunc("bad", "", func(context.Context, string) (string, error) {
		panic("nil map")
	})); err != nil {
		t.Fatal(err)
	}

	obs, err := r.Dispatch(context.Background(), "bad", "")
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !obs.Failed || !errors.Is(obs.Err, ErrToolPanic) {
		t.Fatalf("expected panic observation, got %+v", obs)
	}
	if !strings.HasPrefix(obs.Text, ErrorPrefix) {
		t.Errorf("Text = %q, want %q prefix", obs.Text, ErrorPrefix)
	}
}

func TestRegistryDispatch_Timeout(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.SetTimeout(10 * time.Millisecond)
	if err := r.Register(NewFunc("slow", "", func(ctx context.Context, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})); err != nil {
		t.Fatal(err)
	}

	obs, err := r.Dispatch(context.Background(), "slow", "")
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !obs.Failed || !errors.Is(obs.Err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline observation, got %+v", obs)
	}
}

func TestRegistryDispatch_RateLimited(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.SetRateLimiter(security.NewRateLimiter(security.RateLimitConfig{ToolCallsPerMin: 1}))
	calls := 0
	if err := r.Register(NewFunc("search", "", func(context.Context, string) (string, error) {
		calls++
		return "ok", nil
	})); err != nil {
		t.Fatal(err)
	}

	if _, err := r.Dispatch(context.Background(), "search", "a"); err != nil {
		t.Fatal(err)
	}
	obs, err := r.Dispatch(context.Background(), "search", "b")
	if err != nil {
		t.Fatalf("rate limit must not be returned, got %v", err)
	}
	if !obs.Failed || !errors.Is(obs.Err, security.ErrRateLimited) {
		t.Fatalf("expected rate-limited observation, got %+v", obs)
	}
	if calls != 1 {
		t.Errorf("tool invoked %d times, want 1", calls)
	}
}

func TestRegistryDispatch_AuditAndObserver(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var events []security.EventType
	r := NewRegistry()
	r.SetAuditLogger(security.NewAuditLogger(security.AuditLoggerConfig{
		OnEvent: func(e security.AuditEvent) {
			mu.Lock()
			defer mu.Unlock()
			events = append(events, e.Type)
		},
	}))
	var observed []Observation
	r.SetObserver(func(o Observation) { observed = append(observed, o) })
	if err := r.Register(echoTool("search")); err != nil {
		t.Fatal(err)
	}

	if _, err := r.Dispatch(context.Background(), "search", "x"); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 2 || events[0] != security.EventToolCall || events[1] != security.EventToolResult {
		t.Errorf("audit events = %v, want [tool_call tool_result]", events)
	}
	if len(observed) != 1 || observed[0].Text != "search:x" {
		t.Errorf("observer saw %+v", observed)
	}
}

func TestRegistryDispatch_Concurrent(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	if err := r.Register(echoTool("search")); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for i := range 50 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			in := fmt.Sprintf("q%d", i)
			obs, err := r.Dispatch(context.Background(), "search", in)
			if err != nil {
				errs <- err
				return
			}
			if obs.Text != "search:"+in {
				errs <- fmt.Errorf("got %q for %q", obs.Text, in)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestTruncateForAudit(t *testing.T) {
	t.Parallel()

	short := "hello"
	if got := truncateForAudit(short); got != short {
		t.Errorf("short string changed: %q", got)
	}

	long := strings.Repeat("é", maxAuditDetailLen)
	got := truncateForAudit(long)
	if !strings.HasSuffix(got, "...(truncated)") {
		t.Fatalf("missing truncation suffix")
	}
	body := strings.TrimSuffix(got, "...(truncated)")
	if len(body) > maxAuditDetailLen || !strings.HasPrefix(long, body) {
		t.Errorf("truncated body is not a rune-aligned prefix (len %d)", len(body))
	}
}
