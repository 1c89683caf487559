// Package duckduckgo registers the "Search" tool, backed by the
// DuckDuckGo lite HTML page.
package duckduckgo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/flemzord/scout/internal/core"
	"github.com/flemzord/scout/internal/tool"
	"github.com/flemzord/scout/modules/tool/internal/web"
)

func init() {
	core.RegisterModule(&Module{})
}

var (
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Validator    = (*Module)(nil)
	_ tool.Tool         = (*Module)(nil)
)

// ToolName is the name the model uses to call this tool.
const ToolName = "Search"

// NoResult is returned as the observation when the search finds nothing.
const NoResult = "No good DuckDuckGo Search Result was found"

const description = "A wrapper around DuckDuckGo Search. Useful for when you need to answer questions about current events. Input should be a search query."

// Module is the DuckDuckGo search tool.
type Module struct {
	config  Config
	client  *web.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "tool.duckduckgo",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("duckduckgo: decode config: %w", err)
	}
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.logger = ctx.Logger

	reg, client, err := web.Provision(ctx, m.config.timeout())
	if err != nil {
		return fmt.Errorf("duckduckgo: %w", err)
	}
	m.client = client
	m.limiter = rate.NewLimiter(rate.Limit(m.config.QPS), 1)

	return reg.Register(m)
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	return m.config.validate()
}

// Name implements tool.Tool.
func (m *Module) Name() string { return ToolName }

// Description implements tool.Tool.
func (m *Module) Description() string { return description }

// Schema implements tool.Tool.
func (m *Module) Schema() json.RawMessage { return tool.QuerySchema }

// Invoke implements tool.Tool.
func (m *Module) Invoke(ctx context.Context, input string) (string, error) {
	results, err := m.Search(ctx, input)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return NoResult, nil
	}

	snippets := make([]string, 0, len(results))
	for _, r := range results {
		text := r.Snippet
		if text == "" {
			text = r.Title
		}
		snippets = append(snippets, text)
	}
	return strings.Join(snippets, " "), nil
}

// Search posts query to the lite endpoint and returns at most
// config.MaxResults hits.
func (m *Module) Search(ctx context.Context, query string) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("duckduckgo: query is empty")
	}
	if err := m.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	form := url.Values{"q": {query}}
	if m.config.Region != "" {
		form.Set("kl", m.config.Region)
	}
	body, err := m.client.PostForm(ctx, m.config.Endpoint, form)
	if err != nil {
		return nil, fmt.Errorf("duckduckgo: %w", err)
	}

	results, err := parseResults(bytes.NewReader(body), m.config.MaxResults)
	if err != nil {
		return nil, fmt.Errorf("duckduckgo: parse results: %w", err)
	}
	m.logger.Debug("duckduckgo search", "query", query, "results", len(results))
	return results, nil
}
