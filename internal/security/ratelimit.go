package security

import (
	"errors"
	"sync"
	"time"
)

// ErrRateLimited is returned when a request exceeds the rate limit.
var ErrRateLimited = errors.New("rate limit exceeded")

// Rate limit kinds.
const (
	KindAsk      = "ask"
	KindToolCall = "tool_call"
)

// RateLimitConfig holds configurable rate limits.
type RateLimitConfig struct {
	// AsksPerMin bounds questions per client key.
	AsksPerMin int `yaml:"asks_per_min"`

	// ToolCallsPerMin bounds dispatches per tool.
	ToolCallsPerMin int `yaml:"tool_calls_per_min"`
}

func rateLimitConfigDefaults() RateLimitConfig {
	return RateLimitConfig{
		AsksPerMin:      30,
		ToolCallsPerMin: 500,
	}
}

// maxKeyedBuckets triggers a sweep of idle per-key buckets.
const maxKeyedBuckets = 4096

// RateLimiter implements sliding window rate limiting. Each kind has a
// window and a limit; AllowKey keeps a separate bucket per key so that
// one client cannot starve another.
type RateLimiter struct {
	mu      sync.Mutex
	limits  map[string]limit
	buckets map[string]*bucket
	now     func() time.Time
}

type limit struct {
	window time.Duration
	max    int
}

type bucket struct {
	limit
	events []time.Time
}

// NewRateLimiter creates a rate limiter with the given config.
// Zero-value fields in cfg are replaced with defaults.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	defaults := rateLimitConfigDefaults()
	if cfg.AsksPerMin <= 0 {
		cfg.AsksPerMin = defaults.AsksPerMin
	}
	if cfg.ToolCallsPerMin <= 0 {
		cfg.ToolCallsPerMin = defaults.ToolCallsPerMin
	}

	return &RateLimiter{
		now:     time.Now,
		buckets: make(map[string]*bucket),
		limits: map[string]limit{
			KindAsk:      {window: time.Minute, max: cfg.AsksPerMin},
			KindToolCall: {window: time.Minute, max: cfg.ToolCallsPerMin},
		},
	}
}

// Allow checks whether an event of the given kind is allowed process-wide.
// Returns nil if allowed, ErrRateLimited if the limit is exceeded.
// Unknown kinds are never limited.
func (rl *RateLimiter) Allow(kind string) error {
	return rl.AllowKey(kind, "")
}

// AllowKey checks whether an event of the given kind is allowed for key.
func (rl *RateLimiter) AllowKey(kind, key string) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	lim, ok := rl.limits[kind]
	if !ok {
		return nil
	}

	now := rl.now()
	id := kind + "|" + key
	b, ok := rl.buckets[id]
	if !ok {
		if len(rl.buckets) >= maxKeyedBuckets {
			rl.sweepLocked(now)
		}
		b = &bucket{limit: lim}
		rl.buckets[id] = b
	}
	b.evict(now)

	if len(b.events) >= b.max {
		return ErrRateLimited
	}
	b.events = append(b.events, now)
	return nil
}

// Sweep drops buckets with no events inside their window and returns how
// many were removed.
func (rl *RateLimiter) Sweep() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.sweepLocked(rl.now())
}

func (rl *RateLimiter) sweepLocked(now time.Time) int {
	removed := 0
	for id, b := range rl.buckets {
		b.evict(now)
		if len(b.events) == 0 {
			delete(rl.buckets, id)
			removed++
		}
	}
	return removed
}

// evict removes events outside the sliding window.
// Events are chronologically ordered.
func (b *bucket) evict(now time.Time) {
	cutoff := now.Add(-b.window)
	i := 0
	for i < len(b.events) && b.events[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		b.events = b.events[i:]
	}
}
