// Package config handles YAML configuration loading, environment variable
// expansion, and structural validation for scout.
package config

import (
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/scout/internal/agent"
	"github.com/flemzord/scout/internal/reasoning"
	"github.com/flemzord/scout/internal/security"
	"github.com/flemzord/scout/internal/telemetry"
)

// Engine selects what answers chat questions.
const (
	EngineController = "controller"
	EngineRemote     = "remote"
)

// Port selects how the controller talks to the model.
const (
	PortText        = "text"
	PortToolCalling = "tool_calling"
)

// Log output formats. Pretty is colorized for terminals.
const (
	LogFormatText   = "text"
	LogFormatJSON   = "json"
	LogFormatPretty = "pretty"
)

// Defaults applied by Load.
const (
	DefaultSessionTTL      = time.Hour
	DefaultCleanupSchedule = "*/5 * * * *"
	DefaultLogFormat       = LogFormatText
	DefaultLogLevel        = "info"
	DefaultServiceName     = "scout"
)

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	// Modules maps module IDs to their raw YAML configuration.
	// Keys must match registered module IDs (e.g. "provider.openai_compatible").
	Modules map[string]yaml.Node `yaml:"modules"`

	Agent     AgentConfig     `yaml:"agent"`
	Chat      ChatConfig      `yaml:"chat"`
	Log       LogConfig       `yaml:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Security  SecurityConfig  `yaml:"security"`
}

// AgentConfig configures the reasoning engine.
type AgentConfig struct {
	// Engine is "controller" (default) or "remote". The remote engine
	// requires the runtime.remote module.
	Engine string `yaml:"engine"`

	// Port is "text" (default) or "tool_calling".
	Port string `yaml:"port"`

	// Providers orders the provider modules for failover. Empty means
	// every configured provider.* module, sorted by ID.
	Providers []string `yaml:"providers"`

	// ToolTimeout bounds each tool dispatch. Zero leaves tools unbounded
	// apart from the run timeout.
	ToolTimeout time.Duration `yaml:"tool_timeout"`

	Loop      agent.LoopConfig `yaml:"loop"`
	Reasoning reasoning.Config `yaml:"reasoning"`
}

// ChatConfig configures chat sessions.
type ChatConfig struct {
	// SessionTTL is how long a session may stay idle before cleanup.
	SessionTTL time.Duration `yaml:"session_ttl"`

	// CleanupSchedule is the cron expression of the cleanup job.
	CleanupSchedule string `yaml:"cleanup_schedule"`

	// HistoryWindow caps the prior messages sent with each question.
	HistoryWindow int `yaml:"history_window"`
}

// LogConfig configures the server logger.
type LogConfig struct {
	Format string `yaml:"format"` // text, json or pretty
	Level  string `yaml:"level"`  // "debug", "info", "warn" or "error"
}

// TelemetryConfig configures metrics and tracing.
type TelemetryConfig struct {
	// DisableMetrics turns off the Prometheus collectors and /metrics.
	DisableMetrics bool `yaml:"disable_metrics"`

	telemetry.TracingConfig `yaml:",inline"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	RateLimits security.RateLimitConfig `yaml:"rate_limits"`
	URLFilter  security.URLFilterConfig `yaml:"url_filter"`

	// AuditLog is the JSONL file audit events are appended to. Empty
	// keeps audit events in the debug log only.
	AuditLog string `yaml:"audit_log"`
}

// applyDefaults fills zero values that are not owned by a package's own
// defaults.
func (c *Config) applyDefaults() {
	if c.Agent.Engine == "" {
		c.Agent.Engine = EngineController
	}
	if c.Agent.Port == "" {
		c.Agent.Port = PortText
	}
	if c.Chat.SessionTTL <= 0 {
		c.Chat.SessionTTL = DefaultSessionTTL
	}
	if c.Chat.CleanupSchedule == "" {
		c.Chat.CleanupSchedule = DefaultCleanupSchedule
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = DefaultServiceName
	}
}
