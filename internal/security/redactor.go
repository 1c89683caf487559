package security

import (
	"regexp"
	"strings"
	"sync"
)

// RedactPlaceholder is the replacement string for redacted secrets.
const RedactPlaceholder = "***REDACTED***"

// secretKeyPattern matches map keys that likely contain secrets.
var secretKeyPattern = regexp.MustCompile(`(?i)(secret|token|password|key|credential)`)

// Redactor replaces secret values in strings and maps with a placeholder.
// It matches known API key formats by pattern and runtime credentials by
// literal value. All methods are safe for concurrent use.
type Redactor struct {
	mu       sync.RWMutex
	patterns []*regexp.Regexp
	literals []string
}

// NewRedactor creates a Redactor pre-loaded with DefaultPatterns.
func NewRedactor() *Redactor {
	return &Redactor{
		patterns: DefaultPatterns(),
	}
}

// AddPattern adds a compiled regex pattern to the redactor.
func (r *Redactor) AddPattern(pattern *regexp.Regexp) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patterns = append(r.patterns, pattern)
}

// AddLiteral adds a literal secret value. Empty strings are ignored.
func (r *Redactor) AddLiteral(secret string) {
	if secret == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.literals = append(r.literals, secret)
}

// SyncCredentials replaces all literal values with the current contents
// of the credential store.
func (r *Redactor) SyncCredentials(store *CredentialStore) {
	values := store.Values()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.literals = values
}

// Redact replaces all known secret patterns and literal values in s.
func (r *Redactor) Redact(s string) string {
	if s == "" {
		return s
	}

	r.mu.RLock()
	patterns := r.patterns
	literals := r.literals
	r.mu.RUnlock()

	for _, p := range patterns {
		s = p.ReplaceAllString(s, RedactPlaceholder)
	}
	for _, lit := range literals {
		s = strings.ReplaceAll(s, lit, RedactPlaceholder)
	}
	return s
}

// RedactMap walks a decoded config map and replaces values whose keys
// look secret, plus any string value containing a known secret.
func (r *Redactor) RedactMap(m map[string]any) {
	for k, v := range m {
		if s, ok := v.(string); ok {
			switch {
			case s != "" && secretKeyPattern.MatchString(k):
				m[k] = RedactPlaceholder
			default:
				m[k] = r.Redact(s)
			}
			continue
		}
		switch val := v.(type) {
		case map[string]any:
			r.RedactMap(val)
		case []any:
			for _, item := range val {
				if sub, ok := item.(map[string]any); ok {
					r.RedactMap(sub)
				}
			}
		}
	}
}

// DefaultPatterns returns compiled regex patterns for the API key formats
// of the model vendors scout talks to.
func DefaultPatterns() []*regexp.Regexp {
	return []*regexp.Regexp{
		// Groq
		regexp.MustCompile(`gsk_[a-zA-Z0-9]{20,}`),
		// OpenAI, including project keys
		regexp.MustCompile(`sk-(proj-)?[a-zA-Z0-9_\-]{20,}`),
		// Google AI Studio
		regexp.MustCompile(`AIza[0-9A-Za-z_\-]{35}`),
		// Bearer headers copied into errors
		regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9._\-]{20,}`),
	}
}
