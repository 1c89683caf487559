// Package agenttest provides test doubles for the agent package.
package agenttest

import (
	"context"
	"sync"

	"github.com/flemzord/scout/internal/agent"
)

// MockPort is a configurable agent.Port. Requests are recorded; when
// NextStepFunc is nil it finishes with "ok".
type MockPort struct {
	NextStepFunc func(ctx context.Context, req agent.StepRequest) (agent.Action, error)

	mu       sync.Mutex
	Calls    int
	Requests []agent.StepRequest
}

// NextStep implements agent.Port.
func (m *MockPort) NextStep(ctx context.Context, req agent.StepRequest) (agent.Action, error) {
	m.mu.Lock()
	m.Calls++
	m.Requests = append(m.Requests, req)
	m.mu.Unlock()

	if m.NextStepFunc == nil {
		return agent.Finish{Answer: "ok"}, nil
	}
	return m.NextStepFunc(ctx, req)
}

// CallCount returns the number of NextStep calls.
func (m *MockPort) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls
}

// Step is one scripted port reply.
type Step struct {
	Action agent.Action
	Err    error
}

// Script returns a NextStepFunc that replies with steps in order and
// repeats the last one once exhausted.
func Script(steps ...Step) func(context.Context, agent.StepRequest) (agent.Action, error) {
	var mu sync.Mutex
	idx := 0
	return func(_ context.Context, _ agent.StepRequest) (agent.Action, error) {
		mu.Lock()
		defer mu.Unlock()
		s := steps[min(idx, len(steps)-1)]
		idx++
		return s.Action, s.Err
	}
}

// Interface guards.
var _ agent.Port = (*MockPort)(nil)
