// Package openai implements the provider.openai module on the official
// OpenAI Go SDK, using the Responses API without streaming.
package openai

import (
	"context"
	"fmt"
	"log/slog"

	sdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
	"gopkg.in/yaml.v3"

	"github.com/flemzord/scout/internal/core"
	"github.com/flemzord/scout/internal/provider"
	"github.com/flemzord/scout/internal/security"
)

func init() {
	core.RegisterModule(&Provider{})
}

// Compile-time interface checks.
var (
	_ core.Module       = (*Provider)(nil)
	_ core.Configurable = (*Provider)(nil)
	_ core.Provisioner  = (*Provider)(nil)
	_ core.Validator    = (*Provider)(nil)
	_ provider.Provider = (*Provider)(nil)
)

// Provider is an OpenAI provider module.
type Provider struct {
	config Config
	apiKey string
	client *sdk.Client
	logger *slog.Logger
}

// ModuleInfo implements core.Module.
func (p *Provider) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "provider.openai",
		New: func() core.Module { return &Provider{} },
	}
}

// Configure implements core.Configurable.
func (p *Provider) Configure(node *yaml.Node) error {
	if err := node.Decode(&p.config); err != nil {
		return fmt.Errorf("provider.openai: decoding config: %w", err)
	}
	p.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (p *Provider) Provision(ctx *core.AppContext) error {
	p.config.defaults()
	p.logger = ctx.Logger
	p.apiKey = provider.ResolveAPIKey(p.config.APIKey, p.config.APIKeyEnv)
	if creds, ok := core.Service[*security.CredentialStore](ctx, security.CredentialsService); ok && p.apiKey != "" {
		creds.Set("provider.openai", p.apiKey)
	}
	p.client = newClient(p.config, p.apiKey)
	return nil
}

// Validate implements core.Validator.
func (p *Provider) Validate() error {
	if err := p.config.validate(); err != nil {
		return err
	}
	if p.apiKey == "" {
		return fmt.Errorf("provider.openai: %w: set api_key, $%s or $%s",
			provider.ErrMissingAPIKey, p.config.APIKeyEnv, provider.APIKeyEnv)
	}
	return nil
}

func newClient(cfg Config, apiKey string) *sdk.Client {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithRequestTimeout(cfg.parsedTimeout()),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := sdk.NewClient(opts...)
	return &client
}

// Complete implements provider.Provider. Stop sequences are not supported
// by the Responses API and are ignored.
func (p *Provider) Complete(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error) {
	params := responses.ResponseNewParams{
		Model: p.config.Model,
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: toInput(req.Messages),
		},
		Tools: toTools(req.Tools, p.logger),
	}

	var opts []option.RequestOption
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = p.config.MaxTokens
	}
	if maxTokens > 0 {
		opts = append(opts, option.WithJSONSet("max_output_tokens", maxTokens))
	}
	temperature := req.Temperature
	if temperature == nil {
		temperature = p.config.Temperature
	}
	if temperature != nil {
		opts = append(opts, option.WithJSONSet("temperature", *temperature))
	}

	resp, err := p.client.Responses.New(ctx, params, opts...)
	if err != nil {
		return provider.CompletionResponse{}, mapError(err)
	}
	return fromResponse(resp), nil
}

// ModelName implements provider.Provider.
func (p *Provider) ModelName() string {
	return p.config.Model
}
