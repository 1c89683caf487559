package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/flemzord/scout/internal/agent"
	"github.com/flemzord/scout/internal/chat"
	"github.com/flemzord/scout/internal/config"
	"github.com/flemzord/scout/internal/core"
	"github.com/flemzord/scout/internal/cron"
	"github.com/flemzord/scout/internal/history"
	"github.com/flemzord/scout/internal/provider"
	"github.com/flemzord/scout/internal/reasoning"
	"github.com/flemzord/scout/internal/security"
	"github.com/flemzord/scout/internal/telemetry"
	"github.com/flemzord/scout/internal/tool"
)

// Options tune how a Runtime is assembled.
type Options struct {
	// DataDir overrides the default persistent data directory.
	DataDir string

	// LogWriter receives log output. Defaults to os.Stderr.
	LogWriter io.Writer

	// LogLevel overrides log.level from the config when non-empty.
	LogLevel string

	// LogFormat overrides log.format from the config when non-empty.
	LogFormat string

	// ExcludeNamespaces lists module namespaces left out of the runtime,
	// e.g. "gateway" for one-shot command line questions.
	ExcludeNamespaces []string
}

// Runtime is one assembled generation of the application: every
// configured module plus the assistant, tools and background jobs built
// around them.
type Runtime struct {
	Config    *config.Config
	Logger    *slog.Logger
	Assistant *chat.Assistant
	Tools     *tool.Registry
	Metrics   *telemetry.Metrics
	Scheduler *cron.Scheduler

	// Providers is nil when a remote engine answers questions.
	Providers *provider.Fallback

	app      *core.App
	auditOut io.Closer
	tracing  telemetry.ShutdownFunc

	mu      sync.Mutex
	started bool
	closed  bool
}

// Build assembles an unstarted Runtime from a validated config. On error
// everything acquired so far is released.
func Build(cfg *config.Config, opts Options) (rt *Runtime, err error) {
	credStore := security.NewCredentialStore()
	redactor := security.NewRedactor()

	format := cfg.Log.Format
	if opts.LogFormat != "" {
		format = opts.LogFormat
	}
	logger := newLogger(opts.LogWriter, format, resolveLevel(opts.LogLevel, cfg.Log.Level), redactor)

	rt = &Runtime{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			rt.release(context.Background())
			rt = nil
		}
	}()

	auditLogger, auditOut, err := openAuditLog(cfg.Security.AuditLog, redactor, logger)
	if err != nil {
		return rt, err
	}
	rt.auditOut = auditOut

	rateLimiter := security.NewRateLimiter(cfg.Security.RateLimits)

	dataDir := opts.DataDir
	if dataDir == "" {
		dataDir = DefaultDataDir()
	}

	appCtx := core.NewAppContext(logger, dataDir).WithModuleConfigs(cfg.Modules)
	appCtx.RegisterService(security.CredentialsService, credStore)
	appCtx.RegisterService(security.RedactorService, redactor)
	appCtx.RegisterService(security.AuditService, auditLogger)
	appCtx.RegisterService(security.RateLimiterService, rateLimiter)
	if f := cfg.Security.URLFilter; len(f.AllowDomains) > 0 || len(f.DenyDomains) > 0 {
		appCtx.RegisterService(security.URLFilterService, security.NewURLFilter(f))
	}

	// Tracing must be installed before the controller captures its tracer.
	rt.tracing, err = telemetry.SetupTracing(context.Background(), cfg.Telemetry.TracingConfig)
	if err != nil {
		return rt, err
	}

	if !cfg.Telemetry.DisableMetrics {
		rt.Metrics = telemetry.NewMetrics()
		appCtx.RegisterService(telemetry.MetricsService, rt.Metrics)
	}

	rt.Tools = tool.NewRegistry()
	rt.Tools.SetAuditLogger(auditLogger)
	rt.Tools.SetRateLimiter(rateLimiter)
	rt.Tools.SetTimeout(cfg.Agent.ToolTimeout)
	if rt.Metrics != nil {
		rt.Tools.SetObserver(rt.Metrics.ObserveTool)
	}
	appCtx.RegisterService(tool.RegistryService, rt.Tools)

	rt.app = core.NewApp(appCtx)
	if err := rt.app.LoadModules(moduleIDs(cfg, opts.ExcludeNamespaces)); err != nil {
		return rt, err
	}

	// Providers register their keys while provisioning.
	redactor.SyncCredentials(credStore)

	engine, err := rt.buildEngine(appCtx)
	if err != nil {
		return rt, err
	}

	store, ok := core.Service[history.Store](appCtx, history.StoreService)
	if !ok {
		store = history.NewMemoryStore()
	}
	rt.Assistant = chat.NewAssistant(engine, store,
		chat.WithLogger(logger),
		chat.WithHistoryWindow(cfg.Chat.HistoryWindow),
	)
	appCtx.RegisterService(chat.AssistantService, rt.Assistant)

	rt.Scheduler = cron.NewScheduler(logger)
	jobs := []cron.Job{
		&cron.SessionCleanupJob{
			Sessions:     rt.Assistant,
			MaxIdle:      cfg.Chat.SessionTTL,
			Logger:       logger,
			ScheduleExpr: cfg.Chat.CleanupSchedule,
		},
		&cron.RateLimitSweepJob{Limiter: rateLimiter, Logger: logger},
	}
	if rt.Providers != nil {
		jobs = append(jobs, &cron.ProviderHealthJob{Providers: rt.Providers, Logger: logger})
	}
	for _, j := range jobs {
		if err := rt.Scheduler.RegisterJob(j); err != nil {
			return rt, err
		}
	}
	appCtx.RegisterService(cron.SchedulerService, rt.Scheduler)
	rt.app.AppendModule(cron.ModuleID, rt.Scheduler)

	logger.Info("runtime assembled",
		"engine", cfg.Agent.Engine,
		"port", cfg.Agent.Port,
		"tools", rt.Tools.Names(),
	)
	return rt, nil
}

// buildEngine returns the module-provided engine when the remote engine
// is selected, else a controller over the provider fallback chain.
func (rt *Runtime) buildEngine(appCtx *core.AppContext) (chat.Engine, error) {
	cfg := rt.Config
	if cfg.Agent.Engine == config.EngineRemote {
		engine, ok := core.Service[chat.Engine](appCtx, chat.EngineService)
		if !ok {
			return nil, fmt.Errorf("app: engine %q selected but no module registered %s",
				config.EngineRemote, chat.EngineService)
		}
		return engine, nil
	}

	var entries []provider.Entry
	for _, id := range config.ProviderIDs(cfg) {
		mod, ok := rt.app.Module(id)
		if !ok {
			continue
		}
		p, ok := mod.(provider.Provider)
		if !ok {
			return nil, fmt.Errorf("app: module %s is not a provider", id)
		}
		entries = append(entries, provider.Entry{Name: id, Provider: p})
	}
	fallback, err := provider.NewFallback(entries, provider.WithLogger(rt.Logger))
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	rt.Providers = fallback
	appCtx.RegisterService(provider.FallbackService, fallback)

	var port agent.Port
	if cfg.Agent.Port == config.PortToolCalling {
		port = reasoning.NewToolCallingPort(fallback, rt.Tools, cfg.Agent.Reasoning)
	} else {
		port = reasoning.NewTextPort(fallback, rt.Tools, cfg.Agent.Reasoning)
	}

	ctrlOpts := []agent.Option{agent.WithLogger(rt.Logger)}
	if rt.Metrics != nil {
		ctrlOpts = append(ctrlOpts, agent.WithObserver(rt.Metrics.ObserveRun))
	}
	controller := agent.NewController(port, rt.Tools, cfg.Agent.Loop, ctrlOpts...)
	return chat.ControllerEngine{Controller: controller}, nil
}

// Start starts every module, the scheduler last.
func (rt *Runtime) Start() error {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.closed {
		return errors.New("app: runtime already closed")
	}
	if err := rt.app.Start(); err != nil {
		return err
	}
	rt.started = true
	return nil
}

// Close stops the modules and flushes tracing and the audit log. It is
// safe to call more than once.
func (rt *Runtime) Close(ctx context.Context) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.closed {
		return nil
	}
	rt.closed = true
	return rt.release(ctx)
}

func (rt *Runtime) release(ctx context.Context) error {
	if rt.app != nil {
		if rt.started {
			rt.app.Stop()
		} else {
			rt.app.Abort()
		}
	}
	var errs []error
	if rt.tracing != nil {
		if err := rt.tracing(ctx); err != nil {
			errs = append(errs, fmt.Errorf("app: tracing shutdown: %w", err))
		}
	}
	if rt.auditOut != nil {
		if err := rt.auditOut.Close(); err != nil {
			errs = append(errs, fmt.Errorf("app: closing audit log: %w", err))
		}
	}
	return errors.Join(errs...)
}

// openAuditLog returns an audit logger appending JSONL to path. With no
// path, events go to the debug log only.
func openAuditLog(path string, redactor *security.Redactor, logger *slog.Logger) (*security.AuditLogger, io.Closer, error) {
	onEvent := func(e security.AuditEvent) {
		logger.Debug("audit", "type", string(e.Type), "session", e.SessionID, "detail", e.Detail)
	}
	if path == "" {
		return security.NewAuditLogger(security.AuditLoggerConfig{Redactor: redactor, OnEvent: onEvent}), nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, nil, fmt.Errorf("app: creating audit log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("app: opening audit log: %w", err)
	}
	return security.NewAuditLogger(security.AuditLoggerConfig{
		Writer:   f,
		Redactor: redactor,
		OnEvent:  onEvent,
	}), f, nil
}

// moduleIDs returns the configured module IDs minus excluded namespaces.
func moduleIDs(cfg *config.Config, exclude []string) []string {
	ids := config.Resolve(cfg)
	if len(exclude) == 0 {
		return ids
	}
	out := ids[:0]
	for _, id := range ids {
		ns, _, _ := strings.Cut(id, ".")
		skip := false
		for _, e := range exclude {
			if ns == e {
				skip = true
				break
			}
		}
		if !skip {
			out = append(out, id)
		}
	}
	return out
}
