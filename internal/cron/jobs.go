package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Default schedules and idle limit.
const (
	DefaultCleanupSchedule = "*/5 * * * *"
	DefaultMaxIdle         = time.Hour
	DefaultSweepSchedule   = "*/10 * * * *"
)

// SessionPruner is the subset of chat.Assistant needed by the cleanup job.
// Defined here to keep cron free of a dependency on the chat package.
type SessionPruner interface {
	Prune(maxIdle time.Duration) (int, error)
}

// SessionCleanupJob resets chat sessions idle longer than MaxIdle.
type SessionCleanupJob struct {
	Sessions     SessionPruner
	MaxIdle      time.Duration // zero = DefaultMaxIdle
	Logger       *slog.Logger
	ScheduleExpr string // empty = DefaultCleanupSchedule
}

var _ Job = (*SessionCleanupJob)(nil)

// Name implements Job.
func (j *SessionCleanupJob) Name() string { return "session_cleanup" }

// Schedule implements Job.
func (j *SessionCleanupJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return DefaultCleanupSchedule
}

// Run prunes sessions idle longer than MaxIdle.
func (j *SessionCleanupJob) Run(ctx context.Context) error {
	if ctx.Err() != nil {
		return fmt.Errorf("cron: session cleanup cancelled: %w", ctx.Err())
	}
	maxIdle := j.MaxIdle
	if maxIdle <= 0 {
		maxIdle = DefaultMaxIdle
	}
	pruned, err := j.Sessions.Prune(maxIdle)
	if pruned > 0 {
		j.Logger.Info("cron: pruned idle sessions", "count", pruned, "max_idle", maxIdle)
	}
	if err != nil {
		return fmt.Errorf("cron: session cleanup: %w", err)
	}
	return nil
}

// Sweeper is the subset of security.RateLimiter needed by the sweep job.
type Sweeper interface {
	Sweep() int
}

// RateLimitSweepJob drops idle per-client rate limit buckets.
type RateLimitSweepJob struct {
	Limiter      Sweeper
	Logger       *slog.Logger
	ScheduleExpr string // empty = DefaultSweepSchedule
}

var _ Job = (*RateLimitSweepJob)(nil)

// Name implements Job.
func (j *RateLimitSweepJob) Name() string { return "ratelimit_sweep" }

// Schedule implements Job.
func (j *RateLimitSweepJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return DefaultSweepSchedule
}

// Run sweeps the limiter.
func (j *RateLimitSweepJob) Run(ctx context.Context) error {
	if ctx.Err() != nil {
		return fmt.Errorf("cron: rate limit sweep cancelled: %w", ctx.Err())
	}
	if n := j.Limiter.Sweep(); n > 0 {
		j.Logger.Debug("cron: swept rate limit buckets", "count", n)
	}
	return nil
}

// DefaultHealthSchedule runs provider health checks every minute.
const DefaultHealthSchedule = "* * * * *"

// HealthSweeper is the subset of provider.Fallback needed by the health job.
type HealthSweeper interface {
	CheckHealth(ctx context.Context) int
}

// ProviderHealthJob health-checks the configured providers so a dead
// backend is in cooldown before a question reaches it.
type ProviderHealthJob struct {
	Providers    HealthSweeper
	Logger       *slog.Logger
	ScheduleExpr string // empty = DefaultHealthSchedule
}

var _ Job = (*ProviderHealthJob)(nil)

// Name implements Job.
func (j *ProviderHealthJob) Name() string { return "provider_health" }

// Schedule implements Job.
func (j *ProviderHealthJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return DefaultHealthSchedule
}

// Run health-checks every provider that supports health checks.
func (j *ProviderHealthJob) Run(ctx context.Context) error {
	if ctx.Err() != nil {
		return fmt.Errorf("cron: provider health check cancelled: %w", ctx.Err())
	}
	if failed := j.Providers.CheckHealth(ctx); failed > 0 {
		j.Logger.Warn("cron: providers failing health checks", "count", failed)
	}
	return nil
}
