// Package providertest provides test helpers for the provider package.
package providertest

import (
	"context"
	"sync"

	"github.com/flemzord/scout/internal/provider"
)

// MockProvider is a configurable test double for provider.Provider.
// Set the Func fields to control behavior. All methods are safe for
// concurrent use.
type MockProvider struct {
	CompleteFunc  func(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error)
	ModelNameFunc func() string

	mu            sync.Mutex
	CompleteCalls int
	Requests      []provider.CompletionRequest
}

// Complete delegates to CompleteFunc and records the request.
func (m *MockProvider) Complete(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error) {
	m.mu.Lock()
	m.CompleteCalls++
	m.Requests = append(m.Requests, req)
	m.mu.Unlock()
	if m.CompleteFunc == nil {
		return provider.CompletionResponse{Content: "ok"}, nil
	}
	return m.CompleteFunc(ctx, req)
}

// ModelName delegates to ModelNameFunc.
func (m *MockProvider) ModelName() string {
	if m.ModelNameFunc == nil {
		return "mock-model"
	}
	return m.ModelNameFunc()
}

// LastRequest returns the most recent request, or false if none was made.
func (m *MockProvider) LastRequest() (provider.CompletionRequest, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Requests) == 0 {
		return provider.CompletionRequest{}, false
	}
	return m.Requests[len(m.Requests)-1], true
}

// Sequence returns a CompleteFunc that replies with contents in order and
// repeats the last one once exhausted.
func Sequence(contents ...string) func(context.Context, provider.CompletionRequest) (provider.CompletionResponse, error) {
	var mu sync.Mutex
	idx := 0
	return func(_ context.Context, _ provider.CompletionRequest) (provider.CompletionResponse, error) {
		mu.Lock()
		defer mu.Unlock()
		c := contents[min(idx, len(contents)-1)]
		idx++
		return provider.CompletionResponse{Content: c, FinishReason: provider.FinishReasonStop}, nil
	}
}

// Interface guards.
var _ provider.Provider = (*MockProvider)(nil)
