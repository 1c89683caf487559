package agent

// DefaultCorrection is sent to the port after output it could not parse.
const DefaultCorrection = "Your last output was not a valid action. Respond with either a tool call or a final answer."

// DefaultMaxCorrections is how many correction re-prompts a single step gets.
const DefaultMaxCorrections = 1

// RetryPolicy bounds how malformed model output is handled. The port is
// re-invoked with Correction at most MaxCorrections times per step; the
// next malformed output fails the run.
type RetryPolicy struct {
	MaxCorrections int    `yaml:"max_corrections"`
	Correction     string `yaml:"correction"`
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxCorrections <= 0 {
		p.MaxCorrections = DefaultMaxCorrections
	}
	if p.Correction == "" {
		p.Correction = DefaultCorrection
	}
	return p
}

// allows reports whether another correction may be attempted after
// `used` corrections.
func (p RetryPolicy) allows(used int) bool {
	return used < p.MaxCorrections
}
