package config

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/flemzord/scout/internal/core"
	"github.com/flemzord/scout/internal/cron"
)

// RemoteModuleID is the module the remote engine requires.
const RemoteModuleID = "runtime.remote"

// Validate checks the structural validity of a Config.
// It verifies the version field, ensures modules are present, checks that
// all referenced module IDs exist in the registry, and that the selected
// engine has what it needs.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	if len(cfg.Modules) == 0 {
		errs = append(errs, errors.New("config: at least one module must be configured"))
	}

	for _, id := range Resolve(cfg) {
		if _, ok := core.GetModule(id); !ok {
			errs = append(errs, fmt.Errorf("config: unknown module %q", id))
		}
	}

	errs = append(errs, validateAgent(cfg)...)
	errs = append(errs, validateChat(cfg.Chat)...)
	errs = append(errs, validateLog(cfg.Log)...)
	if err := cfg.Telemetry.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("config: %w", err))
	}

	return errors.Join(errs...)
}

func validateAgent(cfg *Config) []error {
	var errs []error
	a := cfg.Agent

	switch a.Port {
	case "", PortText, PortToolCalling:
	default:
		errs = append(errs, fmt.Errorf("config: agent.port %q (want %q or %q)", a.Port, PortText, PortToolCalling))
	}

	switch a.Engine {
	case "", EngineController:
		if len(cfg.Modules) > 0 && len(ProviderIDs(cfg)) == 0 {
			errs = append(errs, errors.New("config: the controller engine needs at least one provider.* module"))
		}
	case EngineRemote:
		if _, ok := cfg.Modules[RemoteModuleID]; !ok {
			errs = append(errs, fmt.Errorf("config: agent.engine %q requires module %q", EngineRemote, RemoteModuleID))
		}
	default:
		errs = append(errs, fmt.Errorf("config: agent.engine %q (want %q or %q)", a.Engine, EngineController, EngineRemote))
	}

	for _, id := range a.Providers {
		if !isProvider(id) {
			errs = append(errs, fmt.Errorf("config: agent.providers: %q is not a provider module", id))
			continue
		}
		if _, ok := cfg.Modules[id]; !ok {
			errs = append(errs, fmt.Errorf("config: agent.providers: module %q is not configured", id))
		}
	}
	if dup := firstDuplicate(a.Providers); dup != "" {
		errs = append(errs, fmt.Errorf("config: agent.providers: %q listed twice", dup))
	}

	if a.Loop.MaxIterations < 0 || a.Loop.LoopThreshold < 0 {
		errs = append(errs, errors.New("config: agent.loop limits must not be negative"))
	}
	if a.ToolTimeout < 0 {
		errs = append(errs, errors.New("config: agent.tool_timeout must not be negative"))
	}
	return errs
}

func validateChat(c ChatConfig) []error {
	var errs []error
	if c.CleanupSchedule != "" {
		if err := cron.ParseSchedule(c.CleanupSchedule); err != nil {
			errs = append(errs, fmt.Errorf("config: chat.cleanup_schedule: %w", err))
		}
	}
	if c.HistoryWindow < 0 {
		errs = append(errs, errors.New("config: chat.history_window must not be negative"))
	}
	return errs
}

func validateLog(l LogConfig) []error {
	var errs []error
	switch l.Format {
	case "", LogFormatText, LogFormatJSON, LogFormatPretty:
	default:
		errs = append(errs, fmt.Errorf("config: log.format %q (want text, json or pretty)", l.Format))
	}
	if l.Level != "" {
		if _, err := ParseLevel(l.Level); err != nil {
			errs = append(errs, fmt.Errorf("config: log.level: %w", err))
		}
	}
	return errs
}

// ParseLevel parses a slog level name such as "info" or "debug".
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, err
	}
	return level, nil
}

func firstDuplicate(ids []string) string {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return id
		}
		seen[id] = struct{}{}
	}
	return ""
}
