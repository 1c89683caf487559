package agent

import "context"

// Event is one intermediate step delivered to a Sink. Events arrive in
// scratchpad order, synchronously, on the goroutine running the loop.
type Event struct {
	RunID  string    `json:"run_id"`
	Step   int       `json:"step"`
	Kind   EntryKind `json:"kind"`
	Tool   string    `json:"tool,omitempty"`
	Text   string    `json:"text"`
	Failed bool      `json:"failed,omitempty"`
}

// Sink receives intermediate steps of a run. Report must not retain ctx
// beyond the call.
type Sink interface {
	Report(ctx context.Context, ev Event)
}

// SinkFunc adapts a function into a Sink.
type SinkFunc func(ctx context.Context, ev Event)

// Report implements Sink.
func (f SinkFunc) Report(ctx context.Context, ev Event) { f(ctx, ev) }

// NopSink discards every event.
type NopSink struct{}

// Report implements Sink.
func (NopSink) Report(context.Context, Event) {}
