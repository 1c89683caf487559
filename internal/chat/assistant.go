// Package chat keeps per-session transcripts around the reasoning engine:
// it seeds a greeting, feeds prior turns to the engine, normalizes the
// engine's result and records the answer.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/flemzord/scout/internal/agent"
	"github.com/flemzord/scout/internal/history"
	"github.com/flemzord/scout/internal/normalize"
	"github.com/flemzord/scout/internal/provider"
)

// Greeting is the first assistant message of every session.
const Greeting = "Hi! Ask me anything…"

// DefaultHistoryWindow is how many prior messages are passed to the engine.
const DefaultHistoryWindow = 20

// Reply is the answer to one question.
type Reply struct {
	SessionID  string           `json:"session_id"`
	RunID      string           `json:"run_id,omitempty"`
	Answer     string           `json:"answer"`
	Steps      []agent.Entry    `json:"steps,omitempty"`
	StopReason agent.StopReason `json:"stop_reason,omitempty"`
}

// Option configures an Assistant.
type Option func(*Assistant)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Assistant) { a.logger = l }
}

// WithHistoryWindow caps the number of prior messages sent to the engine.
// Zero or negative means DefaultHistoryWindow.
func WithHistoryWindow(n int) Option {
	return func(a *Assistant) {
		if n > 0 {
			a.window = n
		}
	}
}

// WithClock overrides time.Now for idle tracking.
func WithClock(now func() time.Time) Option {
	return func(a *Assistant) { a.now = now }
}

// Assistant answers questions within chat sessions. It is safe for
// concurrent use; questions in the same session are answered one at a time.
type Assistant struct {
	engine Engine
	store  history.Store
	logger *slog.Logger
	window int
	lanes  *laneLock

	mu      sync.Mutex
	touched map[string]time.Time
	now     func() time.Time
}

// NewAssistant creates an Assistant. A nil store means a fresh
// history.MemoryStore.
func NewAssistant(engine Engine, store history.Store, opts ...Option) *Assistant {
	if store == nil {
		store = history.NewMemoryStore()
	}
	a := &Assistant{
		engine:  engine,
		store:   store,
		logger:  slog.Default(),
		window:  DefaultHistoryWindow,
		lanes:   newLaneLock(),
		touched: make(map[string]time.Time),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With("component", "chat")
	return a
}

// Ask answers question in the given session. Progress events go to sink,
// which may be nil. Errors from the engine and the normalizer are returned
// unchanged so callers can match them with errors.Is and errors.As.
//
// Questions in one session run one at a time. A caller waiting for the
// session gives up with ctx.Err() when ctx is done.
//
// The user message stays in the transcript when the engine fails; no
// assistant message is recorded for a failed turn.
func (a *Assistant) Ask(ctx context.Context, sessionID, question string, sink agent.Sink) (Reply, error) {
	if sink == nil {
		sink = agent.NopSink{}
	}

	if err := a.lanes.acquire(ctx, sessionID); err != nil {
		return Reply{}, err
	}
	defer a.lanes.release(sessionID)
	a.touch(sessionID)

	if err := a.ensureGreeting(sessionID); err != nil {
		return Reply{}, err
	}

	prior, err := a.store.Recent(sessionID, a.window)
	if err != nil {
		return Reply{}, fmt.Errorf("chat: load history: %w", err)
	}

	if err := a.store.Append(sessionID, provider.LLMMessage{
		Role:    provider.MessageRoleUser,
		Content: question,
	}); err != nil {
		return Reply{}, fmt.Errorf("chat: record question: %w", err)
	}

	raw, err := a.engine.Invoke(ctx, Input{
		SessionID: sessionID,
		Question:  question,
		History:   prior,
		Sink:      sink,
	})
	if err != nil {
		a.logger.Warn("engine failed", "session", sessionID, "error", err)
		return Reply{}, err
	}

	answer, err := normalize.Normalize(raw)
	if err != nil {
		a.logger.Warn("unrecognized engine result", "session", sessionID, "error", err)
		return Reply{}, err
	}

	if err := a.store.Append(sessionID, provider.LLMMessage{
		Role:    provider.MessageRoleAssistant,
		Content: answer.Text,
	}); err != nil {
		return Reply{}, fmt.Errorf("chat: record answer: %w", err)
	}
	a.touch(sessionID)

	reply := Reply{SessionID: sessionID, Answer: answer.Text}
	if res, ok := raw.(agent.Result); ok {
		reply.RunID = res.RunID
		reply.Steps = res.Steps
		reply.StopReason = res.StopReason
	}
	return reply, nil
}

// Transcript returns the session's messages, starting with the greeting.
// An unknown session yields just the greeting, without creating it.
func (a *Assistant) Transcript(sessionID string) ([]provider.LLMMessage, error) {
	msgs, err := a.store.All(sessionID)
	if err != nil {
		return nil, fmt.Errorf("chat: transcript: %w", err)
	}
	if len(msgs) == 0 {
		return []provider.LLMMessage{greetingMessage()}, nil
	}
	return msgs, nil
}

// Reset discards the session's transcript.
func (a *Assistant) Reset(sessionID string) error {
	if err := a.lanes.acquire(context.Background(), sessionID); err != nil {
		return err
	}
	defer a.lanes.release(sessionID)

	if err := a.store.Purge(sessionID); err != nil {
		return fmt.Errorf("chat: reset: %w", err)
	}
	a.mu.Lock()
	delete(a.touched, sessionID)
	a.mu.Unlock()
	return nil
}

// Sessions returns the IDs of sessions with a transcript.
func (a *Assistant) Sessions() ([]string, error) {
	return a.store.Sessions()
}

// Prune resets sessions idle for longer than maxIdle and returns how many
// were removed. Sessions found in the store but never touched by this
// Assistant start their idle clock now.
func (a *Assistant) Prune(maxIdle time.Duration) (int, error) {
	ids, err := a.store.Sessions()
	if err != nil {
		return 0, fmt.Errorf("chat: prune: %w", err)
	}

	now := a.now()
	var stale []string
	a.mu.Lock()
	for _, id := range ids {
		last, ok := a.touched[id]
		if !ok {
			a.touched[id] = now
			continue
		}
		if now.Sub(last) > maxIdle {
			stale = append(stale, id)
		}
	}
	a.mu.Unlock()

	pruned := 0
	for _, id := range stale {
		ok, err := a.resetIfIdle(id, maxIdle)
		if err != nil {
			return pruned, err
		}
		if ok {
			pruned++
		}
	}
	if pruned > 0 {
		a.logger.Info("pruned idle sessions", "count", pruned, "max_idle", maxIdle)
	}
	return pruned, nil
}

// resetIfIdle purges the session unless it was used after Prune looked at it.
func (a *Assistant) resetIfIdle(sessionID string, maxIdle time.Duration) (bool, error) {
	if err := a.lanes.acquire(context.Background(), sessionID); err != nil {
		return false, err
	}
	defer a.lanes.release(sessionID)

	a.mu.Lock()
	last, ok := a.touched[sessionID]
	idle := ok && a.now().Sub(last) > maxIdle
	if idle {
		delete(a.touched, sessionID)
	}
	a.mu.Unlock()
	if !idle {
		return false, nil
	}

	if err := a.store.Purge(sessionID); err != nil {
		return false, fmt.Errorf("chat: prune %s: %w", sessionID, err)
	}
	return true, nil
}

func (a *Assistant) touch(sessionID string) {
	a.mu.Lock()
	a.touched[sessionID] = a.now()
	a.mu.Unlock()
}

func (a *Assistant) ensureGreeting(sessionID string) error {
	n, err := a.store.Len(sessionID)
	if err != nil {
		return fmt.Errorf("chat: load history: %w", err)
	}
	if n > 0 {
		return nil
	}
	if err := a.store.Append(sessionID, greetingMessage()); err != nil {
		return fmt.Errorf("chat: seed greeting: %w", err)
	}
	return nil
}

func greetingMessage() provider.LLMMessage {
	return provider.LLMMessage{Role: provider.MessageRoleAssistant, Content: Greeting}
}
