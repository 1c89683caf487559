package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/flemzord/scout/internal/provider"
	"github.com/flemzord/scout/internal/tool"
)

const tracerName = "github.com/flemzord/scout/internal/agent"

// IterationLimitAnswer starts the answer synthesized when a run is cut
// short by the iteration cap or the loop detector.
const IterationLimitAnswer = "unable to reach a conclusive answer"

// Option configures optional Controller behavior.
type Option func(*Controller)

// WithLogger sets the controller's logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(c *Controller) { c.tracer = t }
}

// WithObserver registers a callback invoked once per finished run.
func WithObserver(fn func(RunReport)) Option {
	return func(c *Controller) { c.observer = fn }
}

// WithRunIDs overrides run ID generation.
func WithRunIDs(fn func() string) Option {
	return func(c *Controller) { c.newID = fn }
}

// Controller drives think/act/observe cycles. It holds no per-run state,
// so one Controller serves any number of concurrent runs.
type Controller struct {
	port     Port
	tools    Dispatcher
	config   LoopConfig
	logger   *slog.Logger
	tracer   trace.Tracer
	observer func(RunReport)
	newID    func() string
}

// NewController creates a Controller with the given port, tools and config.
func NewController(port Port, tools Dispatcher, cfg LoopConfig, opts ...Option) *Controller {
	c := &Controller{
		port:   port,
		tools:  tools,
		config: cfg.withDefaults(),
		logger: slog.Default(),
		tracer: otel.Tracer(tracerName),
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Config returns the effective configuration.
func (c *Controller) Config() LoopConfig {
	return c.config
}

// RunState is everything one run owns: the question, a private copy of
// the prior conversation and the scratchpad.
type RunState struct {
	ID         string
	Question   string
	History    []provider.LLMMessage
	Scratchpad Scratchpad
}

type run struct {
	RunState

	c        *Controller
	sink     Sink
	detector *loopDetector
}

// Run answers question given the prior conversation. Intermediate steps
// are reported to sink (nil discards them).
//
// Run returns an error only when the port is unreachable, its output is
// malformed after the allowed corrections, the model names an unknown
// tool, or ctx ends. Hitting the iteration cap is not an error: the
// result carries a best-effort answer and Result.Degraded is set.
//
// A context.WithTimeout is applied using the configured Timeout. If the
// caller's context already carries a shorter deadline, it takes effect.
func (c *Controller) Run(ctx context.Context, question string, history []provider.LLMMessage, sink Sink) (Result, error) {
	if sink == nil {
		sink = NopSink{}
	}
	r := &run{
		RunState: RunState{
			ID:       c.newID(),
			Question: normalizeQuestion(question, c.config.Placeholder),
			History:  slices.Clone(history),
		},
		c:        c,
		sink:     sink,
		detector: newLoopDetector(c.config.LoopThreshold),
	}
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	ctx, span := c.tracer.Start(ctx, "agent.run", trace.WithAttributes(
		attribute.String("scout.run_id", r.ID),
		attribute.Int("scout.history_len", len(history)),
	))
	defer span.End()

	res, err := r.loop(ctx)
	res.RunID = r.ID
	res.Steps = r.Scratchpad.Entries()
	res.Duration = time.Since(start)

	span.SetAttributes(
		attribute.String("scout.stop_reason", string(res.StopReason)),
		attribute.Int("scout.iterations", res.Iterations),
		attribute.Int("scout.tool_calls", r.Scratchpad.ToolCalls()),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Warn("run failed",
			"run_id", r.ID,
			"stop_reason", res.StopReason,
			"iterations", res.Iterations,
			"error", err,
		)
	} else {
		c.logger.Info("run finished",
			"run_id", r.ID,
			"stop_reason", res.StopReason,
			"iterations", res.Iterations,
			"tool_calls", r.Scratchpad.ToolCalls(),
			"duration", res.Duration,
		)
	}

	if c.observer != nil {
		c.observer(RunReport{
			RunID:      r.ID,
			StopReason: res.StopReason,
			Iterations: res.Iterations,
			ToolCalls:  r.Scratchpad.ToolCalls(),
			Duration:   res.Duration,
			Err:        err,
		})
	}
	return res, err
}

func (r *run) loop(ctx context.Context) (Result, error) {
	for i := 0; i < r.c.config.MaxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return r.fail(i, "think", err)
		}

		action, err := r.think(ctx, i+1)
		if err != nil {
			return r.fail(i+1, "think", err)
		}

		switch a := action.(type) {
		case Finish:
			r.thought(ctx, i+1, a.Thought)
			return Result{
				Answer:     FinalAnswer{Text: a.Answer},
				Iterations: i + 1,
				StopReason: StopReasonComplete,
			}, nil

		case ToolCall:
			if r.detector.stuck(a.Name, a.Input) {
				return r.degrade(i+1, StopReasonLoopDetected,
					fmt.Errorf("%w: %s called %d times with the same input", ErrLoopDetected, a.Name, r.c.config.LoopThreshold)), nil
			}
			r.thought(ctx, i+1, a.Thought)
			failed, err := r.act(ctx, i+1, a)
			if err != nil {
				return r.fail(i+1, "act", err)
			}
			r.detector.done(a.Name, a.Input, failed)
		}
	}

	last, _ := r.Scratchpad.LastObservation()
	return r.degrade(r.c.config.MaxIterations, StopReasonIterationLimit,
		&IterationLimitError{Max: r.c.config.MaxIterations, LastObservation: last}), nil
}

// think asks the port for the next action, re-prompting with a correction
// as long as the retry policy allows.
func (r *run) think(ctx context.Context, step int) (Action, error) {
	ctx, span := r.c.tracer.Start(ctx, "agent.think", trace.WithAttributes(
		attribute.Int("scout.step", step),
	))
	defer span.End()

	policy := r.c.config.Retry
	req := StepRequest{
		Question:   r.Question,
		History:    r.History,
		Scratchpad: r.Scratchpad.Entries(),
	}

	for used := 0; ; used++ {
		action, err := r.c.port.NextStep(ctx, req)
		if err == nil {
			err = validate(action)
		}
		if err == nil {
			return action, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		span.RecordError(err)
		var malformed *MalformedActionError
		if !errors.As(err, &malformed) {
			return nil, fmt.Errorf("%w: %w", ErrPortUnavailable, err)
		}
		if !policy.allows(used) {
			return nil, err
		}

		r.c.logger.Debug("malformed action, sending correction",
			"run_id", r.ID,
			"step", step,
			"reason", malformed.Reason,
		)
		req.Correction = policy.Correction
		req.Rejected = malformed.Output
	}
}

// act records the action, dispatches it and records its observation.
// The observation is recorded even when dispatch fails. It reports
// whether the observation is a failure.
func (r *run) act(ctx context.Context, step int, call ToolCall) (bool, error) {
	ctx, span := r.c.tracer.Start(ctx, "agent.tool", trace.WithAttributes(
		attribute.String("scout.tool", call.Name),
		attribute.Int("scout.step", step),
	))
	defer span.End()

	r.record(ctx, step, Entry{Kind: EntryAction, Tool: call.Name, Payload: call.Input})

	obs, err := r.c.tools.Dispatch(ctx, call.Name, call.Input)
	if err != nil {
		r.record(ctx, step, Entry{
			Kind:    EntryObservation,
			Tool:    call.Name,
			Payload: tool.ErrorPrefix + err.Error(),
			Failed:  true,
		})
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return true, err
	}

	if obs.Failed {
		span.SetAttributes(attribute.Bool("scout.tool_failed", true))
		r.c.logger.Debug("tool failed", "run_id", r.ID, "tool", call.Name, "error", obs.Err)
	}
	r.record(ctx, step, Entry{
		Kind:    EntryObservation,
		Tool:    call.Name,
		Payload: obs.Text,
		Failed:  obs.Failed,
	})
	return obs.Failed, nil
}

func (r *run) thought(ctx context.Context, step int, text string) {
	if text = strings.TrimSpace(text); text != "" {
		r.record(ctx, step, Entry{Kind: EntryThought, Payload: text})
	}
}

// record appends e to the scratchpad and reports it before returning.
func (r *run) record(ctx context.Context, step int, e Entry) {
	r.Scratchpad.append(e)
	r.sink.Report(ctx, Event{
		RunID:  r.ID,
		Step:   step,
		Kind:   e.Kind,
		Tool:   e.Tool,
		Text:   e.Payload,
		Failed: e.Failed,
	})
}

func (r *run) degrade(iterations int, reason StopReason, cause error) Result {
	last, _ := r.Scratchpad.LastObservation()
	return Result{
		Answer:     FinalAnswer{Text: bestEffortAnswer(last)},
		Iterations: iterations,
		StopReason: reason,
		Degraded:   cause,
	}
}

func (r *run) fail(iterations int, stage string, err error) (Result, error) {
	return Result{
			Iterations: iterations,
			StopReason: stopReasonFor(err),
		}, &RunError{
			RunID:     r.ID,
			Stage:     stage,
			Iteration: iterations,
			Err:       err,
		}
}

func bestEffortAnswer(lastObservation string) string {
	if lastObservation == "" {
		lastObservation = "none"
	}
	return IterationLimitAnswer + "; last observation: " + lastObservation
}

func stopReasonFor(err error) StopReason {
	var dispatch *tool.DispatchError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return StopReasonTimeout
	case errors.Is(err, context.Canceled):
		return StopReasonCanceled
	case errors.Is(err, ErrMalformedAction):
		return StopReasonMalformed
	case errors.As(err, &dispatch):
		return StopReasonUnknownTool
	default:
		return StopReasonPortError
	}
}

func validate(a Action) error {
	switch a := a.(type) {
	case nil:
		return &MalformedActionError{Reason: "no action"}
	case ToolCall:
		if strings.TrimSpace(a.Name) == "" {
			return &MalformedActionError{Reason: "tool call without a tool name"}
		}
	case Finish:
		if strings.TrimSpace(a.Answer) == "" {
			return &MalformedActionError{Reason: "empty final answer"}
		}
	}
	return nil
}

func normalizeQuestion(q, placeholder string) string {
	if strings.TrimSpace(q) == "" {
		return placeholder
	}
	return q
}
