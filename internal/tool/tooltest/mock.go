// Package tooltest provides test helpers and mocks for the tool package.
package tooltest

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/flemzord/scout/internal/tool"
)

// MockTool is a configurable mock implementation of tool.Tool.
type MockTool struct {
	NameFunc        func() string
	DescriptionFunc func() string
	SchemaFunc      func() json.RawMessage
	InvokeFunc      func(ctx context.Context, input string) (string, error)

	mu          sync.Mutex
	InvokeCalls int
	Inputs      []string
}

// Name implements tool.Tool.
func (m *MockTool) Name() string {
	if m.NameFunc != nil {
		return m.NameFunc()
	}
	return "mock-tool"
}

// Description implements tool.Tool.
func (m *MockTool) Description() string {
	if m.DescriptionFunc != nil {
		return m.DescriptionFunc()
	}
	return "a mock tool"
}

// Schema implements tool.Tool.
func (m *MockTool) Schema() json.RawMessage {
	if m.SchemaFunc != nil {
		return m.SchemaFunc()
	}
	return tool.QuerySchema
}

// Invoke implements tool.Tool.
func (m *MockTool) Invoke(ctx context.Context, input string) (string, error) {
	m.mu.Lock()
	m.InvokeCalls++
	m.Inputs = append(m.Inputs, input)
	m.mu.Unlock()

	if m.InvokeFunc != nil {
		return m.InvokeFunc(ctx, input)
	}
	return "ok", nil
}

// Calls returns the number of invocations so far.
func (m *MockTool) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.InvokeCalls
}

// SimpleTool creates a tool that answers every input with a fixed reply.
func SimpleTool(name, reply string) *MockTool {
	return &MockTool{
		NameFunc:        func() string { return name },
		DescriptionFunc: func() string { return "simple test tool: " + name },
		InvokeFunc: func(_ context.Context, _ string) (string, error) {
			return reply, nil
		},
	}
}

// FailingTool creates a tool whose every invocation fails with err.
func FailingTool(name string, err error) *MockTool {
	return &MockTool{
		NameFunc: func() string { return name },
		InvokeFunc: func(_ context.Context, _ string) (string, error) {
			return "", err
		},
	}
}

// Interface guards.
var _ tool.Tool = (*MockTool)(nil)
