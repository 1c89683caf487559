package wikipedia

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Defaults.
const (
	DefaultLang     = "en"
	DefaultTopK     = 1
	DefaultMaxChars = 4000
	DefaultTimeout  = "15s"

	maxQueryLength = 300
	// maxTopK is the MediaWiki cap on intro extracts per request.
	maxTopK = 20
)

// Config holds the Wikipedia tool configuration.
type Config struct {
	// Lang selects the wiki edition. Ignored when Endpoint is set.
	Lang     string `yaml:"lang"`
	Endpoint string `yaml:"endpoint"`
	TopK     int    `yaml:"top_k"`
	MaxChars int    `yaml:"max_chars"`
	Timeout  string `yaml:"timeout"`
}

func (c *Config) defaults() {
	if c.Lang == "" {
		c.Lang = DefaultLang
	}
	if c.Endpoint == "" {
		c.Endpoint = "https://" + c.Lang + ".wikipedia.org/w/api.php"
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
	if u, err := url.Parse(c.Endpoint); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("wikipedia: invalid endpoint %q", c.Endpoint))
	}
	if c.TopK < 0 || c.TopK > maxTopK {
		errs = append(errs, fmt.Errorf("wikipedia: top_k must be between 1 and %d", maxTopK))
	}
	if c.MaxChars < 0 {
		errs = append(errs, errors.New("wikipedia: max_chars must be positive"))
	}
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		errs = append(errs, fmt.Errorf("wikipedia: invalid timeout %q: %w", c.Timeout, err))
	}
	return errors.Join(errs...)
}
