// Package wikipedia registers the "wikipedia" tool: a MediaWiki full-text
// search followed by a plain-text intro extract of each hit.
package wikipedia

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"gopkg.in/yaml.v3"

	"github.com/flemzord/scout/internal/core"
	"github.com/flemzord/scout/internal/tool"
	"github.com/flemzord/scout/modules/tool/internal/web"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

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
const ToolName = "wikipedia"

// NoResult is returned as the observation when the search finds nothing.
const NoResult = "No good Wikipedia Search Result was found"

const description = "A wrapper around Wikipedia. Useful for when you need to answer general questions about people, " +
	"places, companies, facts, historical events, or other subjects. Input should be a search query."

// Page is one Wikipedia article summary.
type Page struct {
	Title   string
	Summary string
}

// Format renders the page as the model sees it.
func (p Page) Format() string {
	return "Page: " + p.Title + "\nSummary: " + p.Summary
}

type searchResponse struct {
	Query struct {
		Search []struct {
			Title string `json:"title"`
		} `json:"search"`
	} `json:"query"`
	Error *apiError `json:"error"`
}

type extractResponse struct {
	Query struct {
		Pages []struct {
			Title   string `json:"title"`
			Extract string `json:"extract"`
			Missing bool   `json:"missing"`
		} `json:"pages"`
		Redirects []struct {
			From string `json:"from"`
			To   string `json:"to"`
		} `json:"redirects"`
	} `json:"query"`
	Error *apiError `json:"error"`
}

type apiError struct {
	Code string `json:"code"`
	Info string `json:"info"`
}

func (e *apiError) err() error {
	if e == nil {
		return nil
	}
	return fmt.Errorf("wikipedia api error %s: %s", e.Code, e.Info)
}

// Module is the Wikipedia lookup tool.
type Module struct {
	config Config
	client *web.Client
	logger *slog.Logger
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "tool.wikipedia",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("wikipedia: decode config: %w", err)
	}
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.logger = ctx.Logger

	reg, client, err := web.Provision(ctx, m.config.timeout())
	if err != nil {
		return fmt.Errorf("wikipedia: %w", err)
	}
	m.client = client
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
	pages, err := m.Search(ctx, input)
	if err != nil {
		return "", err
	}
	if len(pages) == 0 {
		return NoResult, nil
	}

	docs := make([]string, 0, len(pages))
	for _, p := range pages {
		docs = append(docs, p.Format())
	}
	return web.Truncate(strings.Join(docs, "\n\n"), m.config.MaxChars), nil
}

// Search returns the intro extracts of the top config.TopK search hits, in
// search order. Hits without an extract are dropped.
func (m *Module) Search(ctx context.Context, query string) ([]Page, error) {
	query = web.Truncate(strings.TrimSpace(query), maxQueryLength)
	if query == "" {
		return nil, errors.New("wikipedia: query is empty")
	}

	titles, err := m.searchTitles(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("wikipedia: %w", err)
	}
	if len(titles) == 0 {
		return nil, nil
	}

	extracts, err := m.extracts(ctx, titles)
	if err != nil {
		return nil, fmt.Errorf("wikipedia: %w", err)
	}

	pages := make([]Page, 0, len(titles))
	for _, title := range titles {
		if p, ok := extracts[title]; ok {
			pages = append(pages, p)
		}
	}
	m.logger.Debug("wikipedia search", "query", query, "results", len(pages))
	return pages, nil
}

func (m *Module) searchTitles(ctx context.Context, query string) ([]string, error) {
	body, err := m.client.Get(ctx, m.config.Endpoint, url.Values{
		"action":        {"query"},
		"list":          {"search"},
		"srsearch":      {query},
		"srlimit":       {strconv.Itoa(m.config.TopK)},
		"srprop":        {""},
		"format":        {"json"},
		"formatversion": {"2"},
	})
	if err != nil {
		return nil, err
	}

	var resp searchResponse
	if err := jsonAPI.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	if err := resp.Error.err(); err != nil {
		return nil, err
	}

	titles := make([]string, 0, len(resp.Query.Search))
	for _, s := range resp.Query.Search {
		titles = append(titles, s.Title)
	}
	return titles, nil
}

// extracts fetches intro extracts keyed by the requested title.
func (m *Module) extracts(ctx context.Context, titles []string) (map[string]Page, error) {
	body, err := m.client.Get(ctx, m.config.Endpoint, url.Values{
		"action":        {"query"},
		"prop":          {"extracts"},
		"exintro":       {"1"},
		"explaintext":   {"1"},
		"redirects":     {"1"},
		"titles":        {strings.Join(titles, "|")},
		"format":        {"json"},
		"formatversion": {"2"},
	})
	if err != nil {
		return nil, err
	}

	var resp extractResponse
	if err := jsonAPI.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode extract response: %w", err)
	}
	if err := resp.Error.err(); err != nil {
		return nil, err
	}

	// Map redirect targets back to the title that was asked for.
	requested := make(map[string]string, len(resp.Query.Redirects))
	for _, r := range resp.Query.Redirects {
		requested[r.To] = r.From
	}

	out := make(map[string]Page, len(resp.Query.Pages))
	for _, p := range resp.Query.Pages {
		summary := strings.TrimSpace(p.Extract)
		if p.Missing || summary == "" {
			continue
		}
		key := p.Title
		if from, ok := requested[p.Title]; ok {
			key = from
		}
		out[key] = Page{Title: p.Title, Summary: summary}
	}
	return out, nil
}
