package gemini

import "fmt"

const (
	defaultModel     = "gemini-2.5-flash"
	defaultAPIKeyEnv = "GEMINI_API_KEY"
)

// Config holds the configuration for the Gemini provider module.
type Config struct {
	APIKey      string   `yaml:"api_key"`
	APIKeyEnv   string   `yaml:"api_key_env"`
	Model       string   `yaml:"model"`
	BaseURL     string   `yaml:"base_url"`
	MaxTokens   int      `yaml:"max_tokens"`
	Temperature *float64 `yaml:"temperature"`
}

func (c *Config) defaults() {
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.APIKeyEnv == "" {
		c.APIKeyEnv = defaultAPIKeyEnv
	}
}

func (c *Config) validate() error {
	if c.MaxTokens < 0 {
		return fmt.Errorf("provider.gemini: max_tokens must not be negative")
	}
	return nil
}
