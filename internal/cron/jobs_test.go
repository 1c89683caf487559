package cron

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

type testPruner struct {
	calls   atomic.Int32
	maxIdle time.Duration
	n       int
	err     error
}

func (p *testPruner) Prune(maxIdle time.Duration) (int, error) {
	p.calls.Add(1)
	p.maxIdle = maxIdle
	return p.n, p.err
}

type testSweeper struct{ calls atomic.Int32 }

func (s *testSweeper) Sweep() int {
	s.calls.Add(1)
	return 2
}

func TestSessionCleanupJob_Defaults(t *testing.T) {
	t.Parallel()

	j := &SessionCleanupJob{Logger: slog.Default()}
	if j.Name() != "session_cleanup" {
		t.Errorf("name = %q", j.Name())
	}
	if j.Schedule() != "*/5 * * * *" {
		t.Errorf("schedule = %q, want %q", j.Schedule(), "*/5 * * * *")
	}

	j.ScheduleExpr = "0 * * * *"
	if j.Schedule() != "0 * * * *" {
		t.Errorf("schedule override = %q", j.Schedule())
	}
}

func TestSessionCleanupJob_Run(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		maxIdle     time.Duration
		wantMaxIdle time.Duration
		err         error
	}{
		{"default idle", 0, time.Hour, nil},
		{"custom idle", 30 * time.Minute, 30 * time.Minute, nil},
		{"store error", time.Minute, time.Minute, errors.New("disk full")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := &testPruner{n: 3, err: tt.err}
			j := &SessionCleanupJob{Sessions: p, MaxIdle: tt.maxIdle, Logger: slog.New(slog.DiscardHandler)}

			err := j.Run(context.Background())
			if (err != nil) != (tt.err != nil) {
				t.Fatalf("Run() = %v, want error %v", err, tt.err)
			}
			if tt.err != nil && !errors.Is(err, tt.err) {
				t.Errorf("Run() = %v, want wrapping %v", err, tt.err)
			}
			if p.calls.Load() != 1 || p.maxIdle != tt.wantMaxIdle {
				t.Errorf("calls = %d maxIdle = %v", p.calls.Load(), p.maxIdle)
			}
		})
	}
}

func TestSessionCleanupJob_CancelledContext(t *testing.T) {
	t.Parallel()

	p := &testPruner{}
	j := &SessionCleanupJob{Sessions: p, Logger: slog.Default()}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := j.Run(ctx); err == nil {
		t.Fatal("expected error for cancelled context")
	}
	if p.calls.Load() != 0 {
		t.Error("prune should not run on a cancelled context")
	}
}

func TestRateLimitSweepJob(t *testing.T) {
	t.Parallel()

	s := &testSweeper{}
	j := &RateLimitSweepJob{Limiter: s, Logger: slog.New(slog.DiscardHandler)}
	if j.Name() != "ratelimit_sweep" || j.Schedule() != DefaultSweepSchedule {
		t.Errorf("job = %s %s", j.Name(), j.Schedule())
	}
	if err := j.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if s.calls.Load() != 1 {
		t.Errorf("sweep calls = %d", s.calls.Load())
	}
}

type testChecker struct {
	calls  atomic.Int32
	failed int
}

func (p *testChecker) CheckHealth(context.Context) int {
	p.calls.Add(1)
	return p.failed
}

func TestProviderHealthJob(t *testing.T) {
	t.Parallel()

	p := &testChecker{failed: 1}
	j := &ProviderHealthJob{Providers: p, Logger: slog.New(slog.DiscardHandler)}
	if j.Name() != "provider_health" || j.Schedule() != DefaultHealthSchedule {
		t.Errorf("name = %q schedule = %q", j.Name(), j.Schedule())
	}
	if err := ParseSchedule(j.Schedule()); err != nil {
		t.Errorf("default schedule: %v", err)
	}
	if err := j.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if p.calls.Load() != 1 {
		t.Errorf("calls = %d", p.calls.Load())
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := j.Run(ctx); err == nil {
		t.Error("expected error for cancelled context")
	}
	if p.calls.Load() != 1 {
		t.Error("cancelled run should not check providers")
	}
}
