package history

import (
	"fmt"
	"slices"
	"sync"

	"github.com/flemzord/scout/internal/provider"
)

// MemoryStore is a thread-safe, in-memory Store.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]provider.LLMMessage
}

// NewMemoryStore creates a new empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string][]provider.LLMMessage),
	}
}

// Compile-time interface check.
var _ Store = (*MemoryStore)(nil)

// Append adds a message to the session's transcript.
func (s *MemoryStore) Append(sessionID string, msg provider.LLMMessage) error {
	if !msg.Role.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidMessage, msg.Role)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = append(s.sessions[sessionID], msg)
	return nil
}

// Recent returns the n most recent messages for a session.
func (s *MemoryStore) Recent(sessionID string, n int) ([]provider.LLMMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.sessions[sessionID]
	if n <= 0 {
		return nil, nil
	}
	if n > len(msgs) {
		n = len(msgs)
	}
	return slices.Clone(msgs[len(msgs)-n:]), nil
}

// All returns every message for a session.
func (s *MemoryStore) All(sessionID string) ([]provider.LLMMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.sessions[sessionID]), nil
}

// Purge removes a session's transcript.
func (s *MemoryStore) Purge(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

// Len returns the number of messages stored for a session.
func (s *MemoryStore) Len(sessionID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions[sessionID]), nil
}

// Sessions returns all session IDs, sorted.
func (s *MemoryStore) Sessions() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.sessions))
	for id, msgs := range s.sessions {
		if len(msgs) > 0 {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}
