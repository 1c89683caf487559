package duckduckgo

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Defaults.
const (
	DefaultEndpoint   = "https://lite.duckduckgo.com/lite/"
	DefaultMaxResults = 5
	DefaultQPS        = 1.0
	DefaultTimeout    = "15s"
)

// Config holds the DuckDuckGo tool configuration.
type Config struct {
	Endpoint   string  `yaml:"endpoint"`
	MaxResults int     `yaml:"max_results"`
	QPS        float64 `yaml:"qps"`
	Timeout    string  `yaml:"timeout"`
	Region     string  `yaml:"region"`
}

func (c *Config) defaults() {
	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}
	if c.MaxResults == 0 {
		c.MaxResults = DefaultMaxResults
	}
	if c.QPS == 0 {
		c.QPS = DefaultQPS
	}
	if c.Timeout == "" {
		c.Timeout = DefaultTimeout
	}
}

func (c *Config) timeout() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

func (c *Config) validate() error {
	var errs []error
	if u, err := url.Parse(c.Endpoint); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		errs = append(errs, fmt.Errorf("duckduckgo: invalid endpoint %q", c.Endpoint))
	}
	if c.MaxResults < 0 {
		errs = append(errs, errors.New("duckduckgo: max_results must be positive"))
	}
	if c.QPS < 0 {
		errs = append(errs, errors.New("duckduckgo: qps must be positive"))
	}
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		errs = append(errs, fmt.Errorf("duckduckgo: invalid timeout %q: %w", c.Timeout, err))
	}
	return errors.Join(errs...)
}
