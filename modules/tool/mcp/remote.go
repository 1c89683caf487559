package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrRemoteTool is wrapped by errors reported by the MCP server itself.
var ErrRemoteTool = errors.New("mcp tool error")

// remoteTool adapts one MCP server tool to tool.Tool.
type remoteTool struct {
	name    string
	remote  mcp.Tool
	client  *client.Client
	timeout time.Duration
	schema  json.RawMessage
	primary string
}

func newRemoteTool(server string, t mcp.Tool, c *client.Client, timeout time.Duration) (*remoteTool, error) {
	schema := t.RawInputSchema
	if len(schema) == 0 {
		data, err := jsonAPI.Marshal(t.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("marshal schema of %s: %w", t.Name, err)
		}
		schema = data
	}
	return &remoteTool{
		name:    server + "_" + t.Name,
		remote:  t,
		client:  c,
		timeout: timeout,
		schema:  schema,
		primary: primaryProperty(schema),
	}, nil
}

func (r *remoteTool) Name() string            { return r.name }
func (r *remoteTool) Description() string     { return r.remote.Description }
func (r *remoteTool) Schema() json.RawMessage { return r.schema }

// Invoke calls the remote tool. A JSON object input is sent as the
// argument map; any other text is bound to the schema's primary string
// property.
func (r *remoteTool) Invoke(ctx context.Context, input string) (string, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = r.remote.Name
	req.Params.Arguments = r.arguments(input)

	res, err := r.client.CallTool(ctx, req)
	if err != nil {
		return "", fmt.Errorf("call %s: %w", r.remote.Name, err)
	}

	text := contentText(res.Content)
	if res.IsError {
		return "", fmt.Errorf("%w: %s", ErrRemoteTool, text)
	}
	return text, nil
}

func (r *remoteTool) arguments(input string) map[string]any {
	trimmed := strings.TrimSpace(input)
	if strings.HasPrefix(trimmed, "{") {
		var args map[string]any
		if err := jsonAPI.UnmarshalFromString(trimmed, &args); err == nil {
			return args
		}
	}
	if r.primary == "" {
		return map[string]any{}
	}
	return map[string]any{r.primary: input}
}

// primaryProperty picks the string property free text is bound to: the
// first required string property, else a conventional name, else the
// first string property in name order.
func primaryProperty(schema json.RawMessage) string {
	var s struct {
		Properties map[string]struct {
			Type string `json:"type"`
		} `json:"properties"`
		Required []string `json:"required"`
	}
	if err := jsonAPI.Unmarshal(schema, &s); err != nil {
		return ""
	}
	isString := func(name string) bool {
		p, ok := s.Properties[name]
		return ok && (p.Type == "string" || p.Type == "")
	}

	for _, name := range s.Required {
		if isString(name) {
			return name
		}
	}
	for _, name := range []string{"query", "input", "text", "q"} {
		if isString(name) {
			return name
		}
	}
	names := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if isString(name) {
			return name
		}
	}
	return ""
}

func contentText(content []mcp.Content) string {
	parts := make([]string, 0, len(content))
	for _, c := range content {
		if tc, ok := mcp.AsTextContent(c); ok {
			parts = append(parts, tc.Text)
			continue
		}
		if data, err := jsonAPI.Marshal(c); err == nil {
			parts = append(parts, string(data))
		}
	}
	return strings.Join(parts, "\n")
}
