// Package gemini implements the provider.gemini module on the Google Gen AI
// SDK (Gemini API backend).
package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"google.golang.org/genai"
	"gopkg.in/yaml.v3"

	"github.com/flemzord/scout/internal/core"
	"github.com/flemzord/scout/internal/provider"
	"github.com/flemzord/scout/internal/security"
)

func init() {
	core.RegisterModule(&Provider{})
}

var (
	_ core.Module       = (*Provider)(nil)
	_ core.Configurable = (*Provider)(nil)
	_ core.Provisioner  = (*Provider)(nil)
	_ core.Validator    = (*Provider)(nil)
	_ provider.Provider = (*Provider)(nil)
)

// Provider generates content with a Gemini model.
type Provider struct {
	config Config
	apiKey string
	client *genai.Client
	logger *slog.Logger
}

// ModuleInfo implements core.Module.
func (p *Provider) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "provider.gemini",
		New: func() core.Module { return &Provider{} },
	}
}

// Configure implements core.Configurable.
func (p *Provider) Configure(node *yaml.Node) error {
	if err := node.Decode(&p.config); err != nil {
		return fmt.Errorf("provider.gemini: decoding config: %w", err)
	}
	p.config.defaults()
	return nil
}

// Provision implements core.Provisioner. The client is only built when a
// key is available; Validate reports a missing one.
func (p *Provider) Provision(ctx *core.AppContext) error {
	p.config.defaults()
	p.logger = ctx.Logger
	p.apiKey = provider.ResolveAPIKey(p.config.APIKey, p.config.APIKeyEnv)
	if creds, ok := core.Service[*security.CredentialStore](ctx, security.CredentialsService); ok && p.apiKey != "" {
		creds.Set("provider.gemini", p.apiKey)
	}
	if p.apiKey == "" {
		return nil
	}
	client, err := newClient(context.Background(), p.config, p.apiKey, nil)
	if err != nil {
		return err
	}
	p.client = client
	return nil
}

// Validate implements core.Validator.
func (p *Provider) Validate() error {
	if err := p.config.validate(); err != nil {
		return err
	}
	if p.apiKey == "" {
		return fmt.Errorf("provider.gemini: %w: set api_key, $%s or $%s",
			provider.ErrMissingAPIKey, p.config.APIKeyEnv, provider.APIKeyEnv)
	}
	return nil
}

func newClient(ctx context.Context, cfg Config, apiKey string, hc *http.Client) (*genai.Client, error) {
	cc := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: hc,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("provider.gemini: creating client: %w", err)
	}
	return client, nil
}

// Complete implements provider.Provider.
func (p *Provider) Complete(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error) {
	contents, system := toContents(req.Messages)

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: system,
		Tools:             toTools(req.Tools, p.logger),
		StopSequences:     req.Stop,
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = p.config.MaxTokens
	}
	if maxTokens > 0 {
		cfg.MaxOutputTokens = int32(maxTokens)
	}
	temperature := req.Temperature
	if temperature == nil {
		temperature = p.config.Temperature
	}
	if temperature != nil {
		cfg.Temperature = genai.Ptr(float32(*temperature))
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.config.Model, contents, cfg)
	if err != nil {
		return provider.CompletionResponse{}, mapError(err)
	}
	return fromResponse(resp), nil
}

// ModelName implements provider.Provider.
func (p *Provider) ModelName() string {
	return p.config.Model
}
