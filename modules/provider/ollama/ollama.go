// Package ollama implements the provider.ollama module for models served
// by a local Ollama daemon.
package ollama

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"
	"gopkg.in/yaml.v3"

	"github.com/flemzord/scout/internal/core"
	"github.com/flemzord/scout/internal/provider"
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

// Provider talks to Ollama's chat endpoint without streaming.
type Provider struct {
	config Config
	client *api.Client
	logger *slog.Logger
}

// ModuleInfo implements core.Module.
func (p *Provider) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "provider.ollama",
		New: func() core.Module { return &Provider{} },
	}
}

// Configure implements core.Configurable.
func (p *Provider) Configure(node *yaml.Node) error {
	if err := node.Decode(&p.config); err != nil {
		return fmt.Errorf("provider.ollama: decoding config: %w", err)
	}
	p.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (p *Provider) Provision(ctx *core.AppContext) error {
	p.config.defaults()
	p.logger = ctx.Logger
	u, err := url.Parse(p.config.BaseURL)
	if err != nil {
		return fmt.Errorf("provider.ollama: base_url: %w", err)
	}
	p.client = api.NewClient(u, http.DefaultClient)
	return nil
}

// Validate implements core.Validator.
func (p *Provider) Validate() error {
	return p.config.validate()
}

// Complete implements provider.Provider.
func (p *Provider) Complete(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error) {
	tools, err := toTools(req.Tools)
	if err != nil {
		return provider.CompletionResponse{}, fmt.Errorf("provider.ollama: converting tools: %w", err)
	}

	stream := false
	chatReq := &api.ChatRequest{
		Model:    p.config.Model,
		Messages: toMessages(req.Messages),
		Tools:    tools,
		Stream:   &stream,
		Options:  p.options(req),
	}
	if p.config.KeepAlive > 0 {
		chatReq.KeepAlive = &api.Duration{Duration: p.config.KeepAlive}
	}

	var final api.ChatResponse
	err = p.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		final.Message.Content += resp.Message.Content
		final.Message.ToolCalls = append(final.Message.ToolCalls, resp.Message.ToolCalls...)
		if resp.Done {
			final.DoneReason = resp.DoneReason
			final.Metrics = resp.Metrics
		}
		return nil
	})
	if err != nil {
		return provider.CompletionResponse{}, mapError(err)
	}
	return fromResponse(final), nil
}

// options merges configured options with per-request sampling settings.
func (p *Provider) options(req provider.CompletionRequest) map[string]any {
	opts := make(map[string]any, len(p.config.Options)+3)
	for k, v := range p.config.Options {
		opts[k] = v
	}
	if t := req.Temperature; t != nil {
		opts["temperature"] = *t
	} else if t := p.config.Temperature; t != nil {
		opts["temperature"] = *t
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = p.config.MaxTokens
	}
	if maxTokens > 0 {
		opts["num_predict"] = maxTokens
	}
	if len(req.Stop) > 0 {
		opts["stop"] = req.Stop
	}
	return opts
}

// ModelName implements provider.Provider.
func (p *Provider) ModelName() string {
	return p.config.Model
}
