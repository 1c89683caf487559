// Package progress provides agent.Sink implementations for reporting the
// intermediate steps of a run: logging, recording, fan-out and streaming
// over a channel.
package progress

import (
	"context"
	"log/slog"
	"sync"

	"github.com/flemzord/scout/internal/agent"
)

// LogSink writes each event to a logger.
type LogSink struct {
	Logger *slog.Logger
	Level  slog.Level
}

// NewLogSink returns a LogSink logging at debug level.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{Logger: logger, Level: slog.LevelDebug}
}

// Report implements agent.Sink.
func (s *LogSink) Report(ctx context.Context, ev agent.Event) {
	attrs := []slog.Attr{
		slog.String("run_id", ev.RunID),
		slog.Int("step", ev.Step),
		slog.String("kind", string(ev.Kind)),
	}
	if ev.Tool != "" {
		attrs = append(attrs, slog.String("tool", ev.Tool))
	}
	if ev.Failed {
		attrs = append(attrs, slog.Bool("failed", true))
	}
	attrs = append(attrs, slog.String("text", ev.Text))
	s.Logger.LogAttrs(ctx, s.Level, "agent step", attrs...)
}

// Recorder keeps every event in memory.
type Recorder struct {
	mu     sync.RWMutex
	events []agent.Event
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Report implements agent.Sink.
func (r *Recorder) Report(_ context.Context, ev agent.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

// Events returns a snapshot of the recorded events.
func (r *Recorder) Events() []agent.Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]agent.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Reset discards recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

// Multi fans each event out to every sink, in order. Nil sinks are skipped.
type Multi []agent.Sink

// Report implements agent.Sink.
func (m Multi) Report(ctx context.Context, ev agent.Event) {
	for _, s := range m {
		if s != nil {
			s.Report(ctx, ev)
		}
	}
}

// ChannelSink forwards events to a channel for streaming transports.
// Report blocks while the channel is full so that no event is dropped or
// reordered; it gives up only when ctx is done.
type ChannelSink struct {
	ch chan agent.Event
}

// NewChannelSink creates a ChannelSink with the given buffer size.
func NewChannelSink(buffer int) *ChannelSink {
	if buffer < 0 {
		buffer = 0
	}
	return &ChannelSink{ch: make(chan agent.Event, buffer)}
}

// Events returns the receive side of the channel.
func (s *ChannelSink) Events() <-chan agent.Event {
	return s.ch
}

// Report implements agent.Sink.
func (s *ChannelSink) Report(ctx context.Context, ev agent.Event) {
	select {
	case s.ch <- ev:
	case <-ctx.Done():
	}
}

// Close closes the channel. It must be called after the run returns.
func (s *ChannelSink) Close() {
	close(s.ch)
}

// Interface guards.
var (
	_ agent.Sink = (*LogSink)(nil)
	_ agent.Sink = (*Recorder)(nil)
	_ agent.Sink = Multi(nil)
	_ agent.Sink = (*ChannelSink)(nil)
)
