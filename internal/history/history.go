// Package history stores chat transcripts per session.
package history

import (
	"errors"

	"github.com/flemzord/scout/internal/provider"
)

// StoreService is the service name under which a persistent Store
// replaces the default in-memory one.
const StoreService = "history.store"

// ErrInvalidMessage is returned when appending a message with an unknown role.
var ErrInvalidMessage = errors.New("history: invalid message role")

// Store manages session transcripts. Messages are append-only; earlier
// messages are never rewritten. Implementations must be safe for
// concurrent use.
type Store interface {
	// Append adds a message to the session's transcript.
	Append(sessionID string, msg provider.LLMMessage) error

	// Recent returns the n most recent messages for a session.
	// If fewer than n messages exist, all messages are returned.
	Recent(sessionID string, n int) ([]provider.LLMMessage, error)

	// All returns every message for a session.
	All(sessionID string) ([]provider.LLMMessage, error)

	// Purge removes a session's transcript.
	Purge(sessionID string) error

	// Len returns the number of messages stored for a session.
	Len(sessionID string) (int, error)

	// Sessions returns the IDs of all sessions with at least one message.
	Sessions() ([]string, error)
}
