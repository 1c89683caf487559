package provider

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// nopHandler is a slog.Handler that discards all log records.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// Default cooldown bounds for a provider that returned a retryable error.
const (
	DefaultInitialBackoff = time.Second
	DefaultMaxBackoff     = time.Minute
)

// FallbackService is the service name of the application's *Fallback.
const FallbackService = "provider.fallback"

// Entry configures a single provider in a Fallback.
type Entry struct {
	Name     string
	Provider Provider
}

type fallbackEntry struct {
	Entry

	mu       sync.Mutex
	failures int
	until    time.Time
}

func (e *fallbackEntry) available(now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !now.Before(e.until)
}

func (e *fallbackEntry) recordSuccess() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failures = 0
	e.until = time.Time{}
}

// recordFailure doubles the cooldown for every consecutive failure.
func (e *fallbackEntry) recordFailure(now time.Time, initial, maxBackoff time.Duration) time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	backoff := initial
	for i := 0; i < e.failures && backoff < maxBackoff; i++ {
		backoff *= 2
	}
	backoff = min(backoff, maxBackoff)
	e.failures++
	e.until = now.Add(backoff)
	return backoff
}

// FallbackOption configures optional Fallback behavior.
type FallbackOption func(*Fallback)

// WithLogger injects a structured logger into the Fallback.
// When nil or omitted, all log output is discarded.
func WithLogger(l *slog.Logger) FallbackOption {
	return func(f *Fallback) { f.logger = l }
}

// WithBackoff overrides the cooldown bounds.
func WithBackoff(initial, maxBackoff time.Duration) FallbackOption {
	return func(f *Fallback) {
		f.initialBackoff = initial
		f.maxBackoff = maxBackoff
	}
}

// Fallback tries providers in order. A provider that fails with a
// retryable error is put in cooldown and the next one is tried; any
// other error is returned immediately. Fallback is itself a Provider.
type Fallback struct {
	entries        []*fallbackEntry
	logger         *slog.Logger
	initialBackoff time.Duration
	maxBackoff     time.Duration
	now            func() time.Time
}

var _ Provider = (*Fallback)(nil)

// NewFallback creates a Fallback from the given entries.
func NewFallback(entries []Entry, opts ...FallbackOption) (*Fallback, error) {
	if len(entries) == 0 {
		return nil, ErrNoProvider
	}

	f := &Fallback{
		initialBackoff: DefaultInitialBackoff,
		maxBackoff:     DefaultMaxBackoff,
		now:            time.Now,
	}
	for _, e := range entries {
		if e.Provider == nil {
			return nil, fmt.Errorf("%w: entry %q has nil provider", ErrNoProvider, e.Name)
		}
		f.entries = append(f.entries, &fallbackEntry{Entry: e})
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = slog.New(nopHandler{})
	}
	return f, nil
}

// Complete sends req to the first available provider, failing over on
// retryable errors.
func (f *Fallback) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	var lastErr error
	for _, e := range f.entries {
		if err := ctx.Err(); err != nil {
			return CompletionResponse{}, err
		}
		if !e.available(f.now()) {
			continue
		}

		resp, err := e.Provider.Complete(ctx, req)
		if err == nil {
			e.recordSuccess()
			return resp, nil
		}
		if !IsRetryable(err) {
			return CompletionResponse{}, err
		}

		lastErr = err
		backoff := e.recordFailure(f.now(), f.initialBackoff, f.maxBackoff)
		f.logger.Warn("provider failed, failing over",
			"provider", e.Name,
			"cooldown", backoff,
			"error", err,
		)
	}

	if lastErr != nil {
		return CompletionResponse{}, fmt.Errorf("%w: last error: %w", ErrAllProviders, lastErr)
	}
	return CompletionResponse{}, fmt.Errorf("%w: all candidates in cooldown", ErrAllProviders)
}

// CheckHealth health-checks every entry whose provider implements
// HealthChecker. A failed check puts the entry in cooldown the same way a
// failed completion does; a passing check clears it. It returns the number
// of entries that failed.
func (f *Fallback) CheckHealth(ctx context.Context) int {
	failed := 0
	for _, e := range f.entries {
		hc, ok := e.Provider.(HealthChecker)
		if !ok {
			continue
		}
		if err := hc.HealthCheck(ctx); err != nil {
			if ctx.Err() != nil {
				return failed
			}
			failed++
			backoff := e.recordFailure(f.now(), f.initialBackoff, f.maxBackoff)
			f.logger.Warn("provider health check failed",
				"provider", e.Name,
				"cooldown", backoff,
				"error", err,
			)
			continue
		}
		e.recordSuccess()
	}
	return failed
}

// ModelName joins the model names of all entries.
func (f *Fallback) ModelName() string {
	names := make([]string, len(f.entries))
	for i, e := range f.entries {
		names[i] = e.Provider.ModelName()
	}
	return strings.Join(names, ",")
}

// Status is the health snapshot of one Fallback entry.
type Status struct {
	Name      string    `json:"name"`
	Model     string    `json:"model"`
	Available bool      `json:"available"`
	Failures  int       `json:"failures"`
	Until     time.Time `json:"cooldown_until,omitzero"`
}

// HealthReport returns the cooldown state of every entry, in order.
func (f *Fallback) HealthReport() []Status {
	now := f.now()
	out := make([]Status, len(f.entries))
	for i, e := range f.entries {
		e.mu.Lock()
		out[i] = Status{
			Name:      e.Name,
			Model:     e.Provider.ModelName(),
			Available: !now.Before(e.until),
			Failures:  e.failures,
			Until:     e.until,
		}
		e.mu.Unlock()
	}
	return out
}
