package sqlite

import (
	"fmt"
	"strings"
)

const (
	defaultBusyTimeout = 5000

	// DefaultPath keeps transcripts in a process-wide in-memory database.
	DefaultPath = "file::memory:?cache=shared"
)

// Config holds the SQLite history module configuration.
type Config struct {
	// Path is a database file path or DSN. Defaults to DefaultPath, so
	// transcripts are gone when the process exits.
	Path string `yaml:"path"`

	// WAL enables WAL journal mode. Defaults to true for file databases.
	WAL *bool `yaml:"wal"`

	// BusyTimeout is the milliseconds to wait on a busy lock. Defaults to 5000.
	BusyTimeout int `yaml:"busy_timeout"`
}

func (c *Config) defaults() {
	if c.Path == "" {
		c.Path = DefaultPath
	}
	if c.BusyTimeout == 0 {
		c.BusyTimeout = defaultBusyTimeout
	}
}

func (c *Config) inMemory() bool {
	return strings.Contains(c.Path, ":memory:") || strings.Contains(c.Path, "mode=memory")
}

func (c *Config) walEnabled() bool {
	if c.WAL != nil {
		return *c.WAL
	}
	return !c.inMemory()
}

func (c *Config) validate() error {
	if c.BusyTimeout < 0 {
		return fmt.Errorf("sqlite: busy_timeout must be non-negative, got %d", c.BusyTimeout)
	}
	return nil
}
