// Package reasoning implements agent.Port on top of a provider.Provider.
//
// TextPort speaks the Thought / Action / Action Input / Final Answer text
// protocol and works with any chat model. ToolCallingPort uses the
// provider's native function calling instead.
package reasoning

import (
	"github.com/flemzord/scout/internal/provider"
	"github.com/flemzord/scout/internal/tool"
)

// Default values for Config.
const (
	DefaultSystemPrompt = "You are a helpful AI assistant."
	DefaultTemperature  = 0.2
	DefaultMaxTokens    = 2048

	// DefaultFiller replaces the content of an empty last message.
	DefaultFiller = "Hello, please continue."
)

// Config tunes how ports build requests.
type Config struct {
	// SystemPrompt opens every request.
	SystemPrompt string `yaml:"system_prompt"`

	// Temperature is passed to the provider. Nil uses DefaultTemperature.
	Temperature *float64 `yaml:"temperature"`

	// MaxTokens bounds each completion.
	MaxTokens int `yaml:"max_tokens"`

	// MaxHistoryTokens caps the estimated size of prior conversation sent
	// with each step. Zero sends the whole history.
	MaxHistoryTokens int `yaml:"max_history_tokens"`

	// CharsPerToken tunes the token estimator.
	CharsPerToken float64 `yaml:"chars_per_token"`
}

func (c Config) withDefaults() Config {
	if c.SystemPrompt == "" {
		c.SystemPrompt = DefaultSystemPrompt
	}
	if c.Temperature == nil {
		c.Temperature = provider.Float64(DefaultTemperature)
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	return c
}

// Catalog lists the tools a port may offer to the model.
// *tool.Registry implements it.
type Catalog interface {
	Definitions() []tool.Definition
}
