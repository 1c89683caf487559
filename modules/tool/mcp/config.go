package mcp

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout bounds connection setup and each remote call.
const DefaultTimeout = "30s"

// Config lists the MCP servers whose tools are exposed to the model.
type Config struct {
	Servers map[string]ServerConfig `yaml:"servers"`
}

// ServerConfig describes one MCP server. Exactly one of Command or URL
// must be set: Command launches a stdio server, URL dials a streamable
// HTTP endpoint.
type ServerConfig struct {
	Command string            `yaml:"command"`
	Args    []string          `yaml:"args"`
	Env     map[string]string `yaml:"env"`
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers"`
	Timeout string            `yaml:"timeout"`

	// Tools, when non-empty, restricts registration to these remote names.
	Tools []string `yaml:"tools"`
}

func (c *Config) defaults() {
	for name, sc := range c.Servers {
		if sc.Timeout == "" {
			sc.Timeout = DefaultTimeout
		}
		c.Servers[name] = sc
	}
}

func (c *Config) validate() error {
	var errs []error
	for name, sc := range c.Servers {
		if name == "" || strings.ContainsAny(name, " \t") {
			errs = append(errs, fmt.Errorf("mcp: invalid server name %q", name))
		}
		switch {
		case sc.Command == "" && sc.URL == "":
			errs = append(errs, fmt.Errorf("mcp: server %q: command or url is required", name))
		case sc.Command != "" && sc.URL != "":
			errs = append(errs, fmt.Errorf("mcp: server %q: command and url are mutually exclusive", name))
		case sc.URL != "":
			if u, err := url.Parse(sc.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
				errs = append(errs, fmt.Errorf("mcp: server %q: invalid url %q", name, sc.URL))
			}
		}
		if _, err := time.ParseDuration(sc.Timeout); err != nil {
			errs = append(errs, fmt.Errorf("mcp: server %q: invalid timeout %q: %w", name, sc.Timeout, err))
		}
	}
	return errors.Join(errs...)
}

func (sc ServerConfig) timeout() time.Duration {
	d, _ := time.ParseDuration(sc.Timeout)
	return d
}

func (sc ServerConfig) env() []string {
	out := make([]string, 0, len(sc.Env))
	for k, v := range sc.Env {
		out = append(out, k+"="+v)
	}
	return out
}

func (sc ServerConfig) wants(tool string) bool {
	if len(sc.Tools) == 0 {
		return true
	}
	for _, t := range sc.Tools {
		if t == tool {
			return true
		}
	}
	return false
}
