package chat

import (
	"context"

	"github.com/flemzord/scout/internal/agent"
	"github.com/flemzord/scout/internal/provider"
)

// Service names under which the application publishes chat components.
const (
	// EngineService overrides the in-process controller when a module
	// registers an Engine under it.
	EngineService    = "chat.engine"
	AssistantService = "chat.assistant"
)

// Input is what an Engine receives for one question.
type Input struct {
	SessionID string
	Question  string
	History   []provider.LLMMessage
	Sink      agent.Sink
}

// Engine answers a question. The returned value is handed to the result
// normalizer, so engines may return any shape it recognizes: an
// agent.Result, a map decoded from JSON, or raw JSON bytes.
type Engine interface {
	Invoke(ctx context.Context, in Input) (any, error)
}

// EngineFunc adapts a function into an Engine.
type EngineFunc func(ctx context.Context, in Input) (any, error)

// Invoke implements Engine.
func (f EngineFunc) Invoke(ctx context.Context, in Input) (any, error) { return f(ctx, in) }

// ControllerEngine runs questions through an in-process agent.Controller.
type ControllerEngine struct {
	Controller *agent.Controller
}

var _ Engine = ControllerEngine{}

// Invoke implements Engine. It returns an agent.Result.
func (e ControllerEngine) Invoke(ctx context.Context, in Input) (any, error) {
	res, err := e.Controller.Run(ctx, in.Question, in.History, in.Sink)
	if err != nil {
		return nil, err
	}
	return res, nil
}
