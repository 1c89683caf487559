package reload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/flemzord/scout/internal/config"
)

// Runtime is one running generation of the application.
type Runtime interface {
	Start() error
	Close(ctx context.Context) error
}

// BuildFunc assembles an unstarted Runtime from a validated config.
type BuildFunc func(cfg *config.Config) (Runtime, error)

// Handler swaps the running Runtime for one built from a new config.
// The old runtime is closed before the new one starts, since both would
// bind the same listener. If the new one fails to start, the previous
// config is rebuilt and started again.
type Handler struct {
	build  BuildFunc
	logger *slog.Logger

	mu      sync.Mutex
	current Runtime
	cfg     *config.Config
}

// NewHandler creates a reload handler around the running runtime and the
// config it was built from.
func NewHandler(build BuildFunc, current Runtime, cfg *config.Config, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{build: build, current: current, cfg: cfg, logger: logger}
}

// HandleReload loads a fresh config from disk, validates it and restarts
// the runtime with it. An invalid config leaves the running runtime alone.
func (h *Handler) HandleReload(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}
	return h.HandleReloadFromConfig(ctx, cfg)
}

// HandleReloadFromConfig restarts the runtime with an already-validated config.
func (h *Handler) HandleReloadFromConfig(ctx context.Context, cfg *config.Config) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled before reload: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	next, err := h.build(cfg)
	if err != nil {
		return fmt.Errorf("building runtime: %w", err)
	}

	if h.current != nil {
		if err := h.current.Close(ctx); err != nil {
			h.logger.Warn("closing previous runtime", "error", err)
		}
		h.current = nil
	}

	if err := next.Start(); err != nil {
		startErr := fmt.Errorf("starting runtime: %w", err)
		_ = next.Close(ctx)
		if rbErr := h.rollback(); rbErr != nil {
			return errors.Join(startErr, rbErr)
		}
		return startErr
	}

	h.current = next
	h.cfg = cfg
	h.logger.Info("configuration reloaded successfully")
	return nil
}

// rollback restarts the previous config. Caller holds h.mu.
func (h *Handler) rollback() error {
	if h.cfg == nil {
		return errors.New("rollback: no previous configuration")
	}
	prev, err := h.build(h.cfg)
	if err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	if err := prev.Start(); err != nil {
		_ = prev.Close(context.Background())
		return fmt.Errorf("rollback: %w", err)
	}
	h.current = prev
	h.logger.Warn("reload failed, previous configuration restored")
	return nil
}

// Current returns the running runtime, or nil after a failed rollback.
func (h *Handler) Current() Runtime {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

// Close closes the running runtime.
func (h *Handler) Close(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current == nil {
		return nil
	}
	err := h.current.Close(ctx)
	h.current = nil
	return err
}
