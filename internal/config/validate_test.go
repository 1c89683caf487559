package config

import (
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/scout/internal/core"
)

// stubModule is a basic module for testing.
type stubModule struct {
	id string
}

func (m *stubModule) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  core.ModuleID(m.id),
		New: func() core.Module { return &stubModule{id: m.id} },
	}
}

// registerProvider registers a stub provider module unique to the test.
func registerProvider(t *testing.T) string {
	t.Helper()
	id := "provider." + t.Name()
	core.RegisterModule(&stubModule{id: id})
	return id
}

func registerStub(t *testing.T, id string) {
	t.Helper()
	core.RegisterModule(&stubModule{id: id})
}

func TestValidate_Valid(t *testing.T) {
	id := registerProvider(t)
	cfg := &Config{
		Version: "1",
		Modules: map[string]yaml.Node{id: {}},
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_MissingVersion(t *testing.T) {
	id := registerProvider(t)
	cfg := &Config{
		Modules: map[string]yaml.Node{id: {}},
	}
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error for missing version")
	}
	if !strings.Contains(err.Error(), "version") {
		t.Errorf("error should mention version: %v", err)
	}
}

func TestValidate_UnsupportedVersion(t *testing.T) {
	id := registerProvider(t)
	cfg := &Config{
		Version: "99",
		Modules: map[string]yaml.Node{id: {}},
	}
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error for unsupported version")
	}
	if !strings.Contains(err.Error(), "unsupported") {
		t.Errorf("error should mention unsupported: %v", err)
	}
}

func TestValidate_EmptyModules(t *testing.T) {
	cfg := &Config{
		Version: "1",
		Modules: map[string]yaml.Node{},
	}
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error for empty modules")
	}
	if !strings.Contains(err.Error(), "at least one") {
		t.Errorf("error should mention at least one module: %v", err)
	}
}

func TestValidate_MultipleUnknown(t *testing.T) {
	cfg := &Config{
		Version: "1",
		Modules: map[string]yaml.Node{
			"bad.one": {},
			"bad.two": {},
		},
	}
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error for unknown modules")
	}
	if !strings.Contains(err.Error(), "bad.one") || !strings.Contains(err.Error(), "bad.two") {
		t.Errorf("error should mention both modules: %v", err)
	}
}

func TestValidate_ControllerNeedsProvider(t *testing.T) {
	id := t.Name() + ".tool"
	registerStub(t, id)
	cfg := &Config{
		Version: "1",
		Modules: map[string]yaml.Node{id: {}},
	}
	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "provider.* module") {
		t.Fatalf("Validate = %v, want missing provider error", err)
	}
}

func TestValidate_Agent(t *testing.T) {
	tests := []struct {
		name    string
		agent   AgentConfig
		wantErr string
	}{
		{name: "defaults"},
		{name: "tool calling", agent: AgentConfig{Port: PortToolCalling}},
		{name: "bad port", agent: AgentConfig{Port: "smoke"}, wantErr: "agent.port"},
		{name: "bad engine", agent: AgentConfig{Engine: "magic"}, wantErr: "agent.engine"},
		{name: "remote without module", agent: AgentConfig{Engine: EngineRemote}, wantErr: RemoteModuleID},
		{name: "unconfigured provider", agent: AgentConfig{Providers: []string{"provider.nope"}}, wantErr: "not configured"},
		{name: "not a provider", agent: AgentConfig{Providers: []string{"tool.arxiv"}}, wantErr: "not a provider"},
		{name: "negative timeout", agent: AgentConfig{ToolTimeout: -1}, wantErr: "tool_timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := registerProvider(t)
			cfg := &Config{
				Version: "1",
				Modules: map[string]yaml.Node{id: {}},
				Agent:   tt.agent,
			}
			err := Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_DuplicateProvider(t *testing.T) {
	id := registerProvider(t)
	cfg := &Config{
		Version: "1",
		Modules: map[string]yaml.Node{id: {}},
		Agent:   AgentConfig{Providers: []string{id, id}},
	}
	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "listed twice") {
		t.Fatalf("Validate = %v, want duplicate error", err)
	}
}

func TestValidate_Sections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "bad schedule", mutate: func(c *Config) { c.Chat.CleanupSchedule = "every tuesday" }, wantErr: "cleanup_schedule"},
		{name: "negative window", mutate: func(c *Config) { c.Chat.HistoryWindow = -2 }, wantErr: "history_window"},
		{name: "bad log format", mutate: func(c *Config) { c.Log.Format = "xml" }, wantErr: "log.format"},
		{name: "bad log level", mutate: func(c *Config) { c.Log.Level = "loud" }, wantErr: "log.level"},
		{name: "bad otlp", mutate: func(c *Config) { c.Telemetry.Endpoint = "grpc://x" }, wantErr: "otlp_endpoint"},
		{name: "bad ratio", mutate: func(c *Config) { c.Telemetry.SampleRatio = 2 }, wantErr: "sample_ratio"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := registerProvider(t)
			cfg := &Config{Version: "1", Modules: map[string]yaml.Node{id: {}}}
			tt.mutate(cfg)
			err := Validate(cfg)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestProviderIDs(t *testing.T) {
	t.Parallel()

	cfg := &Config{Modules: map[string]yaml.Node{
		"provider.ollama":            {},
		"tool.wikipedia":             {},
		"provider.openai_compatible": {},
	}}
	got := ProviderIDs(cfg)
	if strings.Join(got, ",") != "provider.ollama,provider.openai_compatible" {
		t.Errorf("ProviderIDs = %v", got)
	}

	cfg.Agent.Providers = []string{"provider.openai_compatible", "provider.ollama"}
	got = ProviderIDs(cfg)
	if got[0] != "provider.openai_compatible" {
		t.Errorf("explicit order not kept: %v", got)
	}
}
