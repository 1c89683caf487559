package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"slices"

	jsoniter "github.com/json-iterator/go"

	"github.com/flemzord/scout/internal/history"
	"github.com/flemzord/scout/internal/provider"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Store implements history.Store on SQLite. The history.Store interface
// carries no context, so queries run under context.Background.
type Store struct {
	db *sql.DB
}

var _ history.Store = (*Store)(nil)

// Append adds a message to the session's transcript.
func (s *Store) Append(sessionID string, msg provider.LLMMessage) error {
	if !msg.Role.Valid() {
		return fmt.Errorf("%w: %q", history.ErrInvalidMessage, msg.Role)
	}

	toolCalls := []byte("[]")
	if len(msg.ToolCalls) > 0 {
		var err error
		toolCalls, err = jsonAPI.Marshal(msg.ToolCalls)
		if err != nil {
			return fmt.Errorf("sqlite: marshal tool_calls: %w", err)
		}
	}

	_, err := s.db.ExecContext(context.Background(), `
		INSERT INTO messages (session_id, seq, role, content, name, tool_id, tool_calls)
		VALUES (?, COALESCE((SELECT MAX(seq) FROM messages WHERE session_id = ?), 0) + 1,
		        ?, ?, ?, ?, ?)`,
		sessionID, sessionID,
		string(msg.Role), msg.Content, msg.Name, msg.ToolID, string(toolCalls),
	)
	if err != nil {
		return fmt.Errorf("sqlite: append message: %w", err)
	}
	return nil
}

// Recent returns the n most recent messages for a session.
func (s *Store) Recent(sessionID string, n int) ([]provider.LLMMessage, error) {
	if n <= 0 {
		return nil, nil
	}
	msgs, err := s.query(`
		SELECT role, content, name, tool_id, tool_calls
		FROM messages
		WHERE session_id = ?
		ORDER BY seq DESC
		LIMIT ?`, sessionID, n)
	if err != nil {
		return nil, fmt.Errorf("sqlite: recent: %w", err)
	}
	slices.Reverse(msgs)
	return msgs, nil
}

// All returns every message for a session in chronological order.
func (s *Store) All(sessionID string) ([]provider.LLMMessage, error) {
	msgs, err := s.query(`
		SELECT role, content, name, tool_id, tool_calls
		FROM messages
		WHERE session_id = ?
		ORDER BY seq ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: all: %w", err)
	}
	return msgs, nil
}

// Purge removes a session's transcript.
func (s *Store) Purge(sessionID string) error {
	if _, err := s.db.ExecContext(context.Background(), "DELETE FROM messages WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("sqlite: purge: %w", err)
	}
	return nil
}

// Len returns the number of messages stored for a session.
func (s *Store) Len(sessionID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM messages WHERE session_id = ?", sessionID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("sqlite: count messages: %w", err)
	}
	return count, nil
}

// Sessions returns all session IDs, sorted.
func (s *Store) Sessions() ([]string, error) {
	rows, err := s.db.QueryContext(context.Background(),
		"SELECT DISTINCT session_id FROM messages ORDER BY session_id")
	if err != nil {
		return nil, fmt.Errorf("sqlite: sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: scan session: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) query(q string, args ...any) ([]provider.LLMMessage, error) {
	rows, err := s.db.QueryContext(context.Background(), q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []provider.LLMMessage
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

func scanMessage(rows *sql.Rows) (provider.LLMMessage, error) {
	var (
		msg       provider.LLMMessage
		role      string
		toolCalls string
	)
	if err := rows.Scan(&role, &msg.Content, &msg.Name, &msg.ToolID, &toolCalls); err != nil {
		return msg, fmt.Errorf("scan message: %w", err)
	}
	msg.Role = provider.MessageRole(role)
	if toolCalls != "" && toolCalls != "[]" {
		if err := jsonAPI.Unmarshal([]byte(toolCalls), &msg.ToolCalls); err != nil {
			return msg, fmt.Errorf("unmarshal tool_calls: %w", err)
		}
	}
	return msg, nil
}
