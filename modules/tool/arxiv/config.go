package arxiv

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Defaults.
const (
	DefaultEndpoint = "https://export.arxiv.org/api/query"
	DefaultTopK     = 1
	DefaultMaxChars = 4000
	DefaultTimeout  = "20s"

	// maxQueryLength bounds the query sent to the export API.
	maxQueryLength = 300
)

// Config holds the arXiv tool configuration.
type Config struct {
	Endpoint string `yaml:"endpoint"`
	TopK     int    `yaml:"top_k"`
	MaxChars int    `yaml:"max_chars"`
	Timeout  string `yaml:"timeout"`
}

func (c *Config) defaults() {
	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}
	if c.TopK == 0 {
		c.TopK = DefaultTopK
	}
	if c.MaxChars == 0 {
		c.MaxChars = DefaultMaxChars
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
		errs = append(errs, fmt.Errorf("arxiv: invalid endpoint %q", c.Endpoint))
	}
	if c.TopK < 0 {
		errs = append(errs, errors.New("arxiv: top_k must be positive"))
	}
	if c.MaxChars < 0 {
		errs = append(errs, errors.New("arxiv: max_chars must be positive"))
	}
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		errs = append(errs, fmt.Errorf("arxiv: invalid timeout %q: %w", c.Timeout, err))
	}
	return errors.Join(errs...)
}
