// Package app assembles scout from its configuration and runs it.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/flemzord/scout/internal/config"
	"github.com/flemzord/scout/internal/reload"
)

// RunParams configures the server loop.
type RunParams struct {
	// ConfigPath is an explicit path to the YAML configuration file.
	// If empty, ResolveConfigPath is called automatically.
	ConfigPath string

	// Version, Commit, and Date are injected at build time via ldflags.
	Version string
	Commit  string
	Date    string

	Options
}

// LoadConfig loads and validates the configuration at path, resolving
// the default location when path is empty. It returns the path used.
func LoadConfig(path string) (*config.Config, string, error) {
	if path == "" {
		resolved, err := ResolveConfigPath()
		if err != nil {
			return nil, "", err
		}
		path = resolved
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, path, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// Run builds and starts the runtime, then blocks until ctx is done or a
// shutdown signal arrives. SIGHUP and changes to the config file rebuild
// the runtime from the new configuration; an invalid config keeps the
// running one.
func Run(ctx context.Context, params RunParams) error {
	cfg, cfgPath, err := LoadConfig(params.ConfigPath)
	if err != nil {
		return err
	}

	build := func(c *config.Config) (reload.Runtime, error) {
		return Build(c, params.Options)
	}

	rt, err := Build(cfg, params.Options)
	if err != nil {
		return err
	}
	logger := rt.Logger
	if err := rt.Start(); err != nil {
		_ = rt.Close(context.Background())
		return err
	}
	logger.Info("scout started",
		"version", params.Version,
		"commit", params.Commit,
		"config", cfgPath,
	)

	handler := reload.NewHandler(build, rt, cfg, logger)
	defer func() {
		if err := handler.Close(context.Background()); err != nil {
			logger.Error("shutdown error", "error", err)
		}
		logger.Info("shutdown complete")
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	watchCtx, watchCancel := context.WithCancel(ctx)
	defer watchCancel()
	watcher := reload.NewWatcher(reload.WatcherConfig{ConfigPath: cfgPath})
	watcher.Start(watchCtx)
	defer watcher.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutdown requested")
			return nil
		case sig := <-sigCh:
			if sig != syscall.SIGHUP {
				logger.Info("shutdown signal received", "signal", sig.String())
				return nil
			}
			logger.Info("SIGHUP received, reloading configuration")
			if err := handler.HandleReload(watchCtx, cfgPath); err != nil {
				logger.Error("reload failed", "error", err)
			}
		case evt := <-watcher.Events():
			logger.Info("config file changed, reloading", "path", evt.ConfigPath)
			if err := handler.HandleReload(watchCtx, cfgPath); err != nil {
				logger.Error("reload failed", "error", err)
			}
		}
		if handler.Current() == nil {
			return fmt.Errorf("app: reload left no running runtime")
		}
		if cur, ok := handler.Current().(*Runtime); ok {
			logger = cur.Logger
		}
	}
}

// ResolveConfigPath searches for a config file in standard locations.
// Search order: $XDG_CONFIG_HOME/scout/scout.yaml, ~/.config/scout/scout.yaml, ./scout.yaml
func ResolveConfigPath() (string, error) {
	var candidates []string

	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		candidates = append(candidates, filepath.Join(xdg, "scout", "scout.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "scout", "scout.yaml"))
	}

	candidates = append(candidates, "scout.yaml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no configuration file found (searched: %v)", candidates)
}

// DefaultDataDir returns the default persistent data directory.
// Uses $XDG_DATA_HOME/scout if set, otherwise ~/.local/share/scout.
func DefaultDataDir() string {
	if dir, ok := os.LookupEnv("XDG_DATA_HOME"); ok && dir != "" {
		return filepath.Join(dir, "scout")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "scout")
}
