// Package agent implements the tool-augmented reasoning controller: it asks
// a reasoning port for the next step, dispatches tool calls through a
// registry, records every step on a per-run scratchpad and returns a final
// answer.
package agent

import (
	"context"
	"time"

	"github.com/flemzord/scout/internal/provider"
	"github.com/flemzord/scout/internal/tool"
)

// StopReason describes why a run terminated.
type StopReason string

// StopReason constants for run termination.
const (
	StopReasonComplete       StopReason = "complete"
	StopReasonIterationLimit StopReason = "iteration_limit"
	StopReasonLoopDetected   StopReason = "loop_detected"
	StopReasonMalformed      StopReason = "malformed_action"
	StopReasonUnknownTool    StopReason = "unknown_tool"
	StopReasonPortError      StopReason = "port_error"
	StopReasonTimeout        StopReason = "timeout"
	StopReasonCanceled       StopReason = "canceled"
)

// Degraded reports whether the run ended with a synthesized answer rather
// than one proposed by the model.
func (r StopReason) Degraded() bool {
	return r == StopReasonIterationLimit || r == StopReasonLoopDetected
}

// EntryKind identifies a scratchpad entry.
type EntryKind string

// EntryKind constants.
const (
	EntryThought     EntryKind = "thought"
	EntryAction      EntryKind = "action"
	EntryObservation EntryKind = "observation"
)

// Entry is one scratchpad record. Tool is set on action and observation
// entries; Failed marks an observation produced by a failed execution.
type Entry struct {
	Kind    EntryKind `json:"kind"`
	Payload string    `json:"payload"`
	Tool    string    `json:"tool,omitempty"`
	Failed  bool      `json:"failed,omitempty"`
}

// Action is what a reasoning port proposes next: a ToolCall or a Finish.
type Action interface {
	isAction()
}

// ToolCall asks the controller to invoke a tool with argument text.
type ToolCall struct {
	Name    string
	Input   string
	Thought string
}

// Finish ends the run with an answer.
type Finish struct {
	Answer  string
	Thought string
}

func (ToolCall) isAction() {}
func (Finish) isAction()   {}

// FinalAnswer is the text returned to the caller.
type FinalAnswer struct {
	Text string `json:"text"`
}

// AnswerText returns the answer text.
func (a FinalAnswer) AnswerText() string { return a.Text }

// StepRequest is the input to Port.NextStep.
type StepRequest struct {
	Question   string
	History    []provider.LLMMessage
	Scratchpad []Entry

	// Correction is set when the previous output could not be parsed.
	// Rejected holds that output.
	Correction string
	Rejected   string
}

// Port proposes the next action given the question, the prior
// conversation and the scratchpad so far. Implementations return a
// *MalformedActionError when the model output cannot be interpreted.
type Port interface {
	NextStep(ctx context.Context, req StepRequest) (Action, error)
}

// Dispatcher invokes tools by name. *tool.Registry implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, name, input string) (tool.Observation, error)
}

// Result is the outcome of a run.
type Result struct {
	RunID      string
	Answer     FinalAnswer
	Steps      []Entry
	Iterations int
	StopReason StopReason
	Duration   time.Duration

	// Degraded is set when the answer was synthesized, for example
	// an *IterationLimitError.
	Degraded error
}

// AnswerText returns the final answer text.
func (r Result) AnswerText() string { return r.Answer.Text }

// RunReport summarizes a finished run for observers such as metrics.
type RunReport struct {
	RunID      string
	StopReason StopReason
	Iterations int
	ToolCalls  int
	Duration   time.Duration
	Err        error
}
