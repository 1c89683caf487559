// Package tool defines the capabilities a reasoning run can call and the
// registry that dispatches calls to them. A tool takes text in and returns
// text out; failures are contained and turned into observations.
package tool

import (
	"context"
	"encoding/json"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// QuerySchema is the parameter schema used by tools that take a single
// free-text argument.
var QuerySchema = json.RawMessage(`{"type":"object","properties":{"query":{"type":"string","description":"Text passed to the tool"}},"required":["query"]}`)

// Tool is the interface that all scout tools must implement.
type Tool interface {
	// Name returns the unique identifier for this tool.
	Name() string

	// Description returns a human-readable description of what the tool does.
	// It is shown to the model when deciding which tool to call.
	Description() string

	// Schema returns a JSON Schema describing the tool's parameters.
	Schema() json.RawMessage

	// Invoke runs the tool on the given argument text.
	Invoke(ctx context.Context, input string) (string, error)
}

// Func adapts a plain function into a Tool.
type Func struct {
	ToolName string
	Desc     string
	Params   json.RawMessage
	Fn       func(ctx context.Context, input string) (string, error)
}

// NewFunc returns a Func tool taking a single free-text query.
func NewFunc(name, desc string, fn func(ctx context.Context, input string) (string, error)) *Func {
	return &Func{ToolName: name, Desc: desc, Fn: fn}
}

// Name implements Tool.
func (f *Func) Name() string { return f.ToolName }

// Description implements Tool.
func (f *Func) Description() string { return f.Desc }

// Schema implements Tool.
func (f *Func) Schema() json.RawMessage {
	if len(f.Params) == 0 {
		return QuerySchema
	}
	return f.Params
}

// Invoke implements Tool.
func (f *Func) Invoke(ctx context.Context, input string) (string, error) {
	return f.Fn(ctx, input)
}

// Definition is a tool's public metadata, returned by Registry.Definitions.
type Definition struct {
	Name        string
	Description string
	Schema      json.RawMessage
}

// ArgumentText extracts the free-text argument from a JSON arguments object.
// It prefers the "query" key, then "input", then the only string value.
// Anything that is not a JSON object is returned trimmed as-is.
func ArgumentText(raw json.RawMessage) string {
	var args map[string]any
	if err := jsonAPI.Unmarshal(raw, &args); err != nil {
		return strings.TrimSpace(string(raw))
	}
	for _, key := range []string{"query", "input"} {
		if s, ok := args[key].(string); ok {
			return s
		}
	}
	if len(args) == 1 {
		for _, v := range args {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	return strings.TrimSpace(string(raw))
}
