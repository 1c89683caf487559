package gateway

import (
	"errors"
	"fmt"
	"net"
	"time"
)

// Config holds HTTP gateway configuration.
type Config struct {
	Bind            string        `yaml:"bind"`
	Auth            AuthConfig    `yaml:"auth"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	AskTimeout      time.Duration `yaml:"ask_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxBodyBytes bounds request bodies and websocket frames.
	MaxBodyBytes int `yaml:"max_body_bytes"`

	// MaxQuestionLength bounds questions, in runes.
	MaxQuestionLength int `yaml:"max_question_length"`

	// AllowedOrigins lists the origin patterns accepted on websocket
	// upgrades. Empty means same-origin only.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// defaults fills zero values with sensible defaults.
func (c *Config) defaults() {
	if c.Bind == "" {
		c.Bind = "127.0.0.1:8080"
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.AskTimeout <= 0 {
		c.AskTimeout = 5 * time.Minute
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = c.AskTimeout + 30*time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = 64 << 10
	}
	if c.MaxQuestionLength <= 0 {
		c.MaxQuestionLength = 4000
	}
}

func (c *Config) validate() error {
	var errs []error
	host, _, err := net.SplitHostPort(c.Bind)
	if err != nil {
		errs = append(errs, fmt.Errorf("gateway: invalid bind address %q: %w", c.Bind, err))
	} else if !isLoopback(host) && !c.Auth.IsConfigured() {
		errs = append(errs, fmt.Errorf("gateway: bind %q is not loopback and no auth is configured", c.Bind))
	}
	if c.WriteTimeout <= c.AskTimeout {
		errs = append(errs, fmt.Errorf("gateway: write_timeout (%s) must exceed ask_timeout (%s)", c.WriteTimeout, c.AskTimeout))
	}
	if c.Auth.BasicUser != "" && c.Auth.BasicPassHash == "" {
		errs = append(errs, errors.New("gateway: auth.basic_user requires auth.basic_pass_hash"))
	}
	return errors.Join(errs...)
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// AuthConfig configures authentication for the API. Any configured method
// is accepted.
type AuthConfig struct {
	BearerToken string `yaml:"bearer_token"`

	// JWTSecret enables HS256 bearer tokens. JWTIssuer, when set, must
	// match the token's iss claim.
	JWTSecret string `yaml:"jwt_secret"`
	JWTIssuer string `yaml:"jwt_issuer"`

	// BasicPassHash is a bcrypt hash, see `scout config hash-password`.
	BasicUser     string `yaml:"basic_user"`
	BasicPassHash string `yaml:"basic_pass_hash"`
}

// IsConfigured returns true if any auth method is configured.
func (a AuthConfig) IsConfigured() bool {
	return a.BearerToken != "" || a.JWTSecret != "" || (a.BasicUser != "" && a.BasicPassHash != "")
}
