package ollama

import (
	"fmt"
	"net/url"
	"time"
)

const (
	defaultBaseURL = "http://localhost:11434"
	defaultModel   = "llama3.2"
)

// Config holds the configuration for the Ollama provider module.
type Config struct {
	BaseURL     string         `yaml:"base_url"`
	Model       string         `yaml:"model"`
	MaxTokens   int            `yaml:"max_tokens"`
	Temperature *float64       `yaml:"temperature"`
	KeepAlive   time.Duration  `yaml:"keep_alive"`
	Options     map[string]any `yaml:"options"`
}

func (c *Config) defaults() {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.Model == "" {
		c.Model = defaultModel
	}
}

func (c *Config) validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("provider.ollama: base_url is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("provider.ollama: base_url scheme must be http or https, got %q", u.Scheme)
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("provider.ollama: max_tokens must not be negative")
	}
	return nil
}
