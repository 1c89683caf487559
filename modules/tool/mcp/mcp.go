// Package mcp exposes the tools of Model Context Protocol servers to the
// reasoning loop. Each configured server is reached over stdio or
// streamable HTTP, and every tool it lists is registered as
// "<server>_<tool>".
package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	"gopkg.in/yaml.v3"

	"github.com/flemzord/scout/internal/core"
	"github.com/flemzord/scout/internal/tool"
)

func init() {
	core.RegisterModule(&Module{})
}

var (
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Validator    = (*Module)(nil)
	_ core.Starter      = (*Module)(nil)
	_ core.Stopper      = (*Module)(nil)
)

// Client identity announced to servers during initialization.
const (
	ClientName    = "scout"
	ClientVersion = "0.1.0"
)

// Module connects to MCP servers and registers their tools.
type Module struct {
	config   Config
	registry *tool.Registry
	logger   *slog.Logger

	// dial is replaced in tests.
	dial func(ctx context.Context, sc ServerConfig) (*client.Client, error)

	mu      sync.Mutex
	clients map[string]*client.Client
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "tool.mcp",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("mcp: decode config: %w", err)
	}
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.logger = ctx.Logger

	reg, ok := core.Service[*tool.Registry](ctx, tool.RegistryService)
	if !ok {
		return fmt.Errorf("mcp: service %q not available", tool.RegistryService)
	}
	m.registry = reg
	if m.dial == nil {
		m.dial = dial
	}
	m.clients = make(map[string]*client.Client)
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	return m.config.validate()
}

// Start implements core.Starter. It connects to every server in name
// order and registers the tools each one lists.
func (m *Module) Start() error {
	ctx := context.Background()
	names := make([]string, 0, len(m.config.Servers))
	for name := range m.config.Servers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		sc := m.config.Servers[name]
		connectCtx, cancel := context.WithTimeout(ctx, sc.timeout())
		c, err := m.dial(connectCtx, sc)
		if err != nil {
			cancel()
			return fmt.Errorf("mcp: connect %s: %w", name, err)
		}
		m.mu.Lock()
		m.clients[name] = c
		m.mu.Unlock()

		registered, err := m.attach(connectCtx, name, sc, c)
		cancel()
		if err != nil {
			return fmt.Errorf("mcp: %s: %w", name, err)
		}
		m.logger.Info("mcp server attached", "server", name, "tools", registered)
	}
	return nil
}

// attach initializes the session and registers the server's tools.
func (m *Module) attach(ctx context.Context, name string, sc ServerConfig, c *client.Client) ([]string, error) {
	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: ClientName, Version: ClientVersion}
	if _, err := c.Initialize(ctx, initReq); err != nil {
		return nil, fmt.Errorf("initialize: %w", err)
	}

	list, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("list tools: %w", err)
	}

	var registered []string
	for _, t := range list.Tools {
		if !sc.wants(t.Name) {
			continue
		}
		rt, err := newRemoteTool(name, t, c, sc.timeout())
		if err != nil {
			return registered, err
		}
		if err := m.registry.Register(rt); err != nil {
			return registered, err
		}
		registered = append(registered, rt.Name())
	}
	return registered, nil
}

// Stop implements core.Stopper.
func (m *Module) Stop(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for name, c := range m.clients {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("mcp: close %s: %w", name, err))
		}
		delete(m.clients, name)
	}
	return errors.Join(errs...)
}

// dial opens a client for sc. Stdio clients start their subprocess on
// creation; HTTP clients are started explicitly.
func dial(ctx context.Context, sc ServerConfig) (*client.Client, error) {
	if sc.Command != "" {
		return client.NewStdioMCPClient(sc.Command, sc.env(), sc.Args...)
	}

	var opts []transport.StreamableHTTPCOption
	if len(sc.Headers) > 0 {
		opts = append(opts, transport.WithHTTPHeaders(sc.Headers))
	}
	c, err := client.NewStreamableHttpClient(sc.URL, opts...)
	if err != nil {
		return nil, err
	}
	if err := c.Start(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}
