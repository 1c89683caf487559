package remote

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Defaults.
const (
	DefaultTimeout    = "120s"
	DefaultMaxRetries = 2
)

// Config configures the remote agent runtime.
type Config struct {
	// URL receives POST {"messages": [...], "input": "<question>"}.
	URL string `yaml:"url"`

	// Token, when set, is sent as a bearer token.
	Token   string            `yaml:"token"`
	Headers map[string]string `yaml:"headers"`
	Timeout string            `yaml:"timeout"`

	// MaxRetries bounds retries on 5xx and 429 responses.
	MaxRetries int `yaml:"max_retries"`
}

func (c *Config) defaults() {
	if c.Timeout == "" {
		c.Timeout = DefaultTimeout
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
}

func (c *Config) timeout() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

func (c *Config) validate() error {
	var errs []error
	if c.URL == "" {
		errs = append(errs, errors.New("remote: url is required"))
	} else if u, err := url.Parse(c.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		errs = append(errs, fmt.Errorf("remote: invalid url %q", c.URL))
	}
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		errs = append(errs, fmt.Errorf("remote: invalid timeout %q: %w", c.Timeout, err))
	}
	if c.MaxRetries < 0 {
		errs = append(errs, errors.New("remote: max_retries must not be negative"))
	}
	return errors.Join(errs...)
}
