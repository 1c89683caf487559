package agent

import "time"

// Default values for LoopConfig.
const (
	DefaultMaxIterations = 12
	DefaultTimeout       = 5 * time.Minute

	// DefaultPlaceholder replaces an empty or whitespace-only question.
	DefaultPlaceholder = "Hello, please continue."
)

// LoopConfig controls the behavior of the reasoning controller.
type LoopConfig struct {
	// MaxIterations is the maximum number of think/act cycles.
	MaxIterations int `yaml:"max_iterations"`

	// Timeout is the maximum wall-clock duration of a run.
	Timeout time.Duration `yaml:"timeout"`

	// LoopThreshold is how many times the same successful tool call
	// (name + input) may be proposed before the run is considered stuck.
	// Zero disables the check.
	LoopThreshold int `yaml:"loop_threshold"`

	// Placeholder replaces an empty question.
	Placeholder string `yaml:"placeholder"`

	// Retry governs re-prompting after malformed model output.
	Retry RetryPolicy `yaml:"retry"`
}

// withDefaults returns a copy with zero fields replaced by defaults.
func (c LoopConfig) withDefaults() LoopConfig {
	if c.MaxIterations <= 0 {
		c.MaxIterations = DefaultMaxIterations
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.LoopThreshold < 0 {
		c.LoopThreshold = 0
	}
	if c.Placeholder == "" {
		c.Placeholder = DefaultPlaceholder
	}
	c.Retry = c.Retry.withDefaults()
	return c
}
