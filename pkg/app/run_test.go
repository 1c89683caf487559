package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/scout/internal/config"
	"github.com/flemzord/scout/internal/core"
	"github.com/flemzord/scout/internal/provider"
	"github.com/flemzord/scout/internal/security"
)

// stubProvider answers every completion with a fixed final answer.
type stubProvider struct{}

func (stubProvider) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "provider.appstub",
		New: func() core.Module { return stubProvider{} },
	}
}

func (stubProvider) Complete(context.Context, provider.CompletionRequest) (provider.CompletionResponse, error) {
	return provider.CompletionResponse{
		Content:      "Thought: easy\nFinal Answer: forty-two",
		FinishReason: provider.FinishReasonStop,
	}, nil
}

func (stubProvider) ModelName() string { return "stub" }

func init() {
	core.RegisterModule(stubProvider{})
}

func newTestRedactor(secrets ...string) *security.Redactor {
	r := security.NewRedactor()
	for _, s := range secrets {
		r.AddLiteral(s)
	}
	return r
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scout.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

const stubConfig = `version: "1"
modules:
  provider.appstub: {}
`

func TestResolveConfigPath_XDGConfigHome(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "scout")
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	cfgPath := filepath.Join(cfgDir, "scout.yaml")
	if err := os.WriteFile(cfgPath, []byte("version: \"1\""), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	t.Setenv("XDG_CONFIG_HOME", dir)

	got, err := ResolveConfigPath()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != cfgPath {
		t.Errorf("got %q, want %q", got, cfgPath)
	}
}

func TestResolveConfigPath_NotFound(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/nonexistent/path")
	t.Chdir(t.TempDir())

	if _, err := ResolveConfigPath(); err == nil {
		t.Error("expected error when no config file found")
	}
}

func TestDefaultDataDir(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/custom/data")
	if got := DefaultDataDir(); got != "/custom/data/scout" {
		t.Errorf("got %q", got)
	}

	t.Setenv("XDG_DATA_HOME", "")
	home, _ := os.UserHomeDir()
	if got, want := DefaultDataDir(), filepath.Join(home, ".local", "share", "scout"); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{"missing file", "/nonexistent/config.yaml"},
		{"invalid yaml", writeConfig(t, "not: valid: yaml: [")},
		{"validation", writeConfig(t, "modules:\n  foo: {}")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := LoadConfig(tt.path); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestRun_InvalidConfigPath(t *testing.T) {
	err := Run(context.Background(), RunParams{ConfigPath: "/nonexistent/config.yaml"})
	if err == nil {
		t.Error("expected error for invalid config path")
	}
}

func TestBuild_AnswersThroughController(t *testing.T) {
	cfg, _, err := LoadConfig(writeConfig(t, stubConfig))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	var logs bytes.Buffer
	rt, err := Build(cfg, Options{DataDir: t.TempDir(), LogWriter: &logs})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := rt.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close(context.Background()) })

	reply, err := rt.Assistant.Ask(context.Background(), "s1", "meaning of life?", nil)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if reply.Answer != "forty-two" {
		t.Errorf("Answer = %q", reply.Answer)
	}

	if rt.Providers == nil || len(rt.Providers.HealthReport()) != 1 {
		t.Errorf("providers = %+v", rt.Providers)
	}
	if rt.Metrics == nil {
		t.Error("metrics should be enabled by default")
	}
	names := rt.Scheduler.JobNames()
	if strings.Join(names, ",") != "provider_health,ratelimit_sweep,session_cleanup" {
		t.Errorf("jobs = %v", names)
	}
	if !strings.Contains(logs.String(), "runtime assembled") {
		t.Errorf("logs missing assembly line: %s", logs.String())
	}
}

func TestBuild_AuditLogFile(t *testing.T) {
	auditPath := filepath.Join(t.TempDir(), "audit", "audit.jsonl")
	cfg, _, err := LoadConfig(writeConfig(t, stubConfig+"security:\n  audit_log: "+auditPath+"\ntelemetry:\n  disable_metrics: true\n"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	var logs bytes.Buffer
	rt, err := Build(cfg, Options{DataDir: t.TempDir(), LogWriter: &logs})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if rt.Metrics != nil {
		t.Error("metrics should be disabled")
	}
	if err := rt.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := rt.Close(context.Background()); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if _, err := os.Stat(auditPath); err != nil {
		t.Errorf("audit log not created: %v", err)
	}
	if err := rt.Start(); err == nil {
		t.Error("Start after Close should fail")
	}
}

func TestBuild_RemoteEngineWithoutModule(t *testing.T) {
	cfg, _, err := LoadConfig(writeConfig(t, stubConfig))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	// Bypasses Validate, which would reject this combination.
	cfg.Agent.Engine = config.EngineRemote

	var logs bytes.Buffer
	if _, err := Build(cfg, Options{DataDir: t.TempDir(), LogWriter: &logs}); err == nil {
		t.Fatal("expected error for remote engine without module")
	}
}

func TestModuleIDs_Exclude(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{Modules: map[string]yaml.Node{
		"gateway.http":     {},
		"provider.appstub": {},
		"tool.wikipedia":   {},
	}}
	got := moduleIDs(cfg, []string{"gateway"})
	if strings.Join(got, ",") != "provider.appstub,tool.wikipedia" {
		t.Errorf("moduleIDs = %v", got)
	}
}

func TestNewLogger_RedactsAndFormats(t *testing.T) {
	t.Parallel()

	for _, format := range []string{config.LogFormatText, config.LogFormatJSON, config.LogFormatPretty} {
		t.Run(format, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			logger := newLogger(&buf, format, resolveLevel("", "debug"), newTestRedactor("sk-live-123"))
			logger.Debug("calling provider", "detail", "key sk-live-123")
			out := buf.String()
			if out == "" {
				t.Fatal("debug line not written")
			}
			if strings.Contains(out, "sk-live-123") {
				t.Errorf("secret leaked: %s", out)
			}
		})
	}
}

func TestResolveLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		override, configured string
		want                 string
	}{
		{"", "", "INFO"},
		{"", "warn", "WARN"},
		{"debug", "warn", "DEBUG"},
		{"bogus", "error", "ERROR"},
	}
	for _, tt := range tests {
		if got := resolveLevel(tt.override, tt.configured).String(); got != tt.want {
			t.Errorf("resolveLevel(%q, %q) = %s, want %s", tt.override, tt.configured, got, tt.want)
		}
	}
}
