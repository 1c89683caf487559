// Package arxiv registers the "arxiv" tool, which searches the arXiv
// export API and returns paper metadata and abstracts.
package arxiv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"

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
const ToolName = "arxiv"

// NoResult is returned as the observation when the search finds nothing.
const NoResult = "No good Arxiv Result was found"

const description = "A wrapper around Arxiv.org. Useful for when you need to answer questions about Physics, Mathematics, " +
	"Computer Science, Quantitative Biology, Quantitative Finance, Statistics, Electrical Engineering, and Economics " +
	"from scientific articles on arxiv.org. Input should be a search query."

// idPattern matches bare arXiv identifiers such as 1706.03762 or 2101.00001v2.
var idPattern = regexp.MustCompile(`^\d{4}\.\d{4,5}(v\d+)?$`)

// Module is the arXiv lookup tool.
type Module struct {
	config Config
	client *web.Client
	logger *slog.Logger
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "tool.arxiv",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("arxiv: decode config: %w", err)
	}
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.logger = ctx.Logger

	reg, client, err := web.Provision(ctx, m.config.timeout())
	if err != nil {
		return fmt.Errorf("arxiv: %w", err)
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
	papers, err := m.Search(ctx, input)
	if err != nil {
		return "", err
	}
	if len(papers) == 0 {
		return NoResult, nil
	}

	docs := make([]string, 0, len(papers))
	for _, p := range papers {
		docs = append(docs, p.Format())
	}
	return web.Truncate(strings.Join(docs, "\n\n"), m.config.MaxChars), nil
}

// Search queries the export API for at most config.TopK papers. A bare
// arXiv identifier is looked up directly.
func (m *Module) Search(ctx context.Context, query string) ([]Paper, error) {
	query = web.Truncate(strings.TrimSpace(query), maxQueryLength)
	if query == "" {
		return nil, errors.New("arxiv: query is empty")
	}

	q := url.Values{
		"start":       {"0"},
		"max_results": {strconv.Itoa(m.config.TopK)},
	}
	if idPattern.MatchString(query) {
		q.Set("id_list", query)
	} else {
		q.Set("search_query", query)
	}

	body, err := m.client.Get(ctx, m.config.Endpoint, q)
	if err != nil {
		return nil, fmt.Errorf("arxiv: %w", err)
	}
	papers, err := decodeFeed(body)
	if err != nil {
		return nil, fmt.Errorf("arxiv: %w", err)
	}
	if len(papers) > m.config.TopK {
		papers = papers[:m.config.TopK]
	}
	m.logger.Debug("arxiv search", "query", query, "results", len(papers))
	return papers, nil
}
