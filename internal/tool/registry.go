package tool

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/flemzord/scout/internal/security"
)

// ErrorPrefix starts the text of every failed observation.
const ErrorPrefix = "Error: "

// RegistryService is the service name under which the application
// publishes its *Registry for tool modules.
const RegistryService = "tool.registry"

// Observation is the outcome of one dispatched call. A failed execution
// still yields an observation whose text starts with ErrorPrefix.
type Observation struct {
	Tool     string
	Input    string
	Text     string
	Failed   bool
	Err      error
	Duration time.Duration
}

// Registry holds registered tools and dispatches calls to them.
// It is instance-based (not global) and safe for concurrent dispatch.
type Registry struct {
	mu          sync.RWMutex
	tools       map[string]Tool
	auditLogger *security.AuditLogger
	rateLimiter *security.RateLimiter
	timeout     time.Duration
	observer    func(Observation)
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// SetAuditLogger configures audit logging for tool calls.
func (r *Registry) SetAuditLogger(logger *security.AuditLogger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.auditLogger = logger
}

// SetRateLimiter configures rate limiting for tool calls.
func (r *Registry) SetRateLimiter(limiter *security.RateLimiter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rateLimiter = limiter
}

// SetTimeout bounds every call. Zero disables the bound.
func (r *Registry) SetTimeout(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timeout = d
}

// SetObserver registers a callback invoked after every call.
func (r *Registry) SetObserver(fn func(Observation)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observer = fn
}

// Register adds a tool to the registry.
// It returns ErrEmptyToolName for a blank name and ErrDuplicateTool if a
// tool with the same name is already registered.
func (r *Registry) Register(t Tool) error {
	name := strings.TrimSpace(t.Name())
	if name == "" {
		return ErrEmptyToolName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, name)
	}

	r.tools[name] = t
	return nil
}

// Get returns the tool with the given name, or ErrToolNotFound.
func (r *Registry) Get(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tools[strings.TrimSpace(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return t, nil
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Definitions returns the metadata of all registered tools sorted by name.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]Definition, 0, len(r.tools))
	for name, t := range r.tools {
		defs = append(defs, Definition{
			Name:        name,
			Description: t.Description(),
			Schema:      t.Schema(),
		})
	}
	slices.SortFunc(defs, func(a, b Definition) int {
		return cmp.Compare(a.Name, b.Name)
	})
	return defs
}

// Names returns all registered tool names sorted alphabetically.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Dispatch invokes the named tool with the given argument text.
//
// An unknown name is the only returned error (*DispatchError). Every other
// failure, including a rate limit, a timeout or a panic, is absorbed into
// an observation whose text starts with ErrorPrefix.
func (r *Registry) Dispatch(ctx context.Context, name, input string) (Observation, error) {
	t, err := r.Get(name)
	if err != nil {
		return Observation{}, &DispatchError{Name: name, Err: err}
	}

	r.mu.RLock()
	rl := r.rateLimiter
	al := r.auditLogger
	timeout := r.timeout
	observer := r.observer
	r.mu.RUnlock()

	obs := Observation{Tool: t.Name(), Input: input}
	start := time.Now()

	if rl != nil {
		if err := rl.AllowKey(security.KindToolCall, "tool:"+obs.Tool); err != nil {
			if al != nil {
				al.Log(security.AuditEvent{
					Type:     security.EventRateLimit,
					ToolName: obs.Tool,
					Detail:   "tool_call rate limit exceeded",
				})
			}
			obs = fail(obs, err)
			obs.Duration = time.Since(start)
			notify(observer, obs)
			return obs, nil
		}
	}

	// Truncate input to prevent audit log bloat from large payloads.
	if al != nil {
		al.Log(security.AuditEvent{
			Type:     security.EventToolCall,
			ToolName: obs.Tool,
			Detail:   truncateForAudit(input),
		})
	}

	callCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	text, err := invoke(callCtx, t, input)
	if err != nil {
		obs = fail(obs, err)
	} else {
		obs.Text = text
	}
	obs.Duration = time.Since(start)

	if al != nil {
		detail := truncateForAudit(obs.Text)
		al.Log(security.AuditEvent{
			Type:     security.EventToolResult,
			ToolName: obs.Tool,
			Detail:   detail,
			Metadata: map[string]string{
				"is_error": fmt.Sprintf("%v", obs.Failed),
			},
		})
	}

	notify(observer, obs)
	return obs, nil
}

// invoke runs the tool, converting a panic into an error.
func invoke(ctx context.Context, t Tool, input string) (out string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", ErrToolPanic, rec)
		}
	}()
	return t.Invoke(ctx, input)
}

func fail(obs Observation, err error) Observation {
	obs.Failed = true
	obs.Err = &ExecutionError{Name: obs.Tool, Err: err}
	obs.Text = ErrorPrefix + err.Error()
	return obs
}

func notify(observer func(Observation), obs Observation) {
	if observer != nil {
		observer(obs)
	}
}

// maxAuditDetailLen is the maximum length of audit detail strings.
const maxAuditDetailLen = 4096

// truncateForAudit truncates a string to maxAuditDetailLen, appending
// a truncation indicator if the string was shortened.
// It walks back to a valid UTF-8 rune boundary to avoid splitting multi-byte
// characters when the cut falls mid-rune.
func truncateForAudit(s string) string {
	if len(s) <= maxAuditDetailLen {
		return s
	}
	i := maxAuditDetailLen
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return s[:i] + "...(truncated)"
}
