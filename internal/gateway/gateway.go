// Package gateway exposes chat sessions over HTTP and websockets.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"
	"gopkg.in/yaml.v3"

	"github.com/flemzord/scout/internal/agent"
	"github.com/flemzord/scout/internal/chat"
	"github.com/flemzord/scout/internal/core"
	"github.com/flemzord/scout/internal/cron"
	"github.com/flemzord/scout/internal/provider"
	"github.com/flemzord/scout/internal/security"
	"github.com/flemzord/scout/internal/telemetry"
	"github.com/flemzord/scout/internal/tool"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// ModuleID identifies the gateway in the modules section of the config.
const ModuleID core.ModuleID = "gateway.http"

func init() {
	core.RegisterModule(&Gateway{})
}

// Assistant is the chat surface served by the gateway. *chat.Assistant
// implements it.
type Assistant interface {
	Ask(ctx context.Context, sessionID, question string, sink agent.Sink) (chat.Reply, error)
	Transcript(sessionID string) ([]provider.LLMMessage, error)
	Reset(sessionID string) error
	Sessions() ([]string, error)
}

// ToolLister lists the tools offered to the model.
type ToolLister interface {
	Definitions() []tool.Definition
}

// HealthReporter reports provider availability.
type HealthReporter interface {
	HealthReport() []provider.Status
}

// JobLister reports scheduled maintenance jobs.
type JobLister interface {
	NextRuns() map[string]time.Time
}

// Gateway is the HTTP gateway module. It is a leaf module: nothing imports it.
type Gateway struct {
	config    Config
	appCtx    *core.AppContext
	logger    *slog.Logger
	server    *http.Server
	httpStats *httpMetrics
	startedAt time.Time

	// Resolved at Start() via the service registry.
	assistant Assistant
	tools     ToolLister
	providers HealthReporter
	jobs      JobLister
	metrics   *telemetry.Metrics
	audit     *security.AuditLogger
	limiter   *security.RateLimiter
}

var (
	_ core.Module       = (*Gateway)(nil)
	_ core.Configurable = (*Gateway)(nil)
	_ core.Provisioner  = (*Gateway)(nil)
	_ core.Validator    = (*Gateway)(nil)
	_ core.Starter      = (*Gateway)(nil)
	_ core.Stopper      = (*Gateway)(nil)
)

// ModuleInfo implements core.Module.
func (g *Gateway) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  ModuleID,
		New: func() core.Module { return &Gateway{} },
	}
}

// Configure implements core.Configurable.
func (g *Gateway) Configure(node *yaml.Node) error {
	if err := node.Decode(&g.config); err != nil {
		return err
	}
	g.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (g *Gateway) Provision(ctx *core.AppContext) error {
	g.config.defaults()
	g.appCtx = ctx
	g.logger = ctx.Logger
	return nil
}

// Validate implements core.Validator.
func (g *Gateway) Validate() error {
	return g.config.validate()
}

// Start implements core.Starter. It resolves dependencies from the service
// registry and starts the HTTP server. Only the assistant is required.
func (g *Gateway) Start() error {
	g.resolve()
	if g.assistant == nil {
		return fmt.Errorf("gateway: service %q not registered", chat.AssistantService)
	}
	if g.config.Auth.IsConfigured() {
		g.logger.Info("gateway auth enabled")
	} else {
		g.logger.Warn("gateway auth disabled, API is open to local clients", "bind", g.config.Bind)
	}

	g.startedAt = time.Now()
	g.server = &http.Server{
		Addr:         g.config.Bind,
		Handler:      g.buildRouter(),
		ReadTimeout:  g.config.ReadTimeout,
		WriteTimeout: g.config.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.config.Bind)
	if err != nil {
		return fmt.Errorf("gateway: listen failed: %w", err)
	}

	go func() {
		g.logger.Info("gateway listening", "addr", ln.Addr().String())
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()

	return nil
}

// resolve binds the optional services published by the application.
func (g *Gateway) resolve() {
	ctx := g.appCtx
	if a, ok := core.Service[Assistant](ctx, chat.AssistantService); ok {
		g.assistant = a
	}
	if r, ok := core.Service[*tool.Registry](ctx, tool.RegistryService); ok {
		g.tools = r
	}
	if f, ok := core.Service[*provider.Fallback](ctx, provider.FallbackService); ok {
		g.providers = f
	}
	if s, ok := core.Service[*cron.Scheduler](ctx, cron.SchedulerService); ok {
		g.jobs = s
	}
	if m, ok := core.Service[*telemetry.Metrics](ctx, telemetry.MetricsService); ok {
		g.metrics = m
		g.httpStats = newHTTPMetrics(m.Registry())
	}
	if a, ok := core.Service[*security.AuditLogger](ctx, security.AuditService); ok {
		g.audit = a
	}
	if l, ok := core.Service[*security.RateLimiter](ctx, security.RateLimiterService); ok {
		g.limiter = l
	}
}

// Stop implements core.Stopper. Graceful shutdown with configured timeout.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway shutting down")
	return g.server.Shutdown(shutdownCtx)
}
