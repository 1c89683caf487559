package gateway

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"sort"

	"github.com/google/uuid"

	"github.com/flemzord/scout/internal/agent"
	"github.com/flemzord/scout/internal/normalize"
	"github.com/flemzord/scout/internal/provider"
	"github.com/flemzord/scout/internal/security"
)

type askRequest struct {
	Question string `json:"question"`
}

type sessionResponse struct {
	SessionID string                `json:"session_id"`
	Messages  []provider.LLMMessage `json:"messages"`
}

type sessionsResponse struct {
	Sessions []string `json:"sessions"`
}

type toolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// handleAsk returns an http.HandlerFunc for POST /api/sessions/{id}/ask.
func (g *Gateway) handleAsk() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := sessionID(w, r)
		if !ok {
			return
		}
		if !g.allowAsk(w, r, id) {
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, int64(g.config.MaxBodyBytes)+1))
		if err != nil {
			writeError(w, http.StatusRequestEntityTooLarge, security.ErrBodyTooLarge.Error())
			return
		}
		question, err := g.decodeQuestion(body)
		if err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, security.ErrBodyTooLarge) {
				status = http.StatusRequestEntityTooLarge
			}
			writeError(w, status, err.Error())
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), g.config.AskTimeout)
		defer cancel()

		g.emit(security.AuditEvent{Type: security.EventAsk, SessionID: id, RemoteAddr: r.RemoteAddr})
		reply, err := g.assistant.Ask(ctx, id, question, nil)
		if err != nil {
			status, msg := askFailure(err)
			g.logger.Warn("ask failed", "session", id, "status", status, "error", err)
			writeError(w, status, msg)
			return
		}
		writeJSON(w, http.StatusOK, reply)
	}
}

// allowAsk applies the per-client ask limit. It writes the 429 response
// itself when the limit is exceeded.
func (g *Gateway) allowAsk(w http.ResponseWriter, r *http.Request, sessionID string) bool {
	if g.limiter == nil {
		return true
	}
	key := clientKey(r)
	if err := g.limiter.AllowKey(security.KindAsk, key); err != nil {
		g.emit(security.AuditEvent{
			Type:       security.EventRateLimit,
			SessionID:  sessionID,
			RemoteAddr: r.RemoteAddr,
			Detail:     security.KindAsk,
		})
		writeError(w, http.StatusTooManyRequests, err.Error())
		return false
	}
	return true
}

// decodeQuestion validates a {"question": ...} payload.
func (g *Gateway) decodeQuestion(body []byte) (string, error) {
	if err := security.ValidateBody(body, g.config.MaxBodyBytes, security.DefaultMaxJSONDepth); err != nil {
		return "", err
	}
	var req askRequest
	if err := jsonAPI.Unmarshal(body, &req); err != nil {
		return "", security.ErrInvalidJSON
	}
	if err := security.ValidateQuestion(req.Question, g.config.MaxQuestionLength); err != nil {
		return "", err
	}
	return req.Question, nil
}

// askFailure maps an Ask error to an HTTP status and a client-safe message.
func askFailure(err error) (int, string) {
	switch {
	case errors.Is(err, agent.ErrPortUnavailable):
		return http.StatusBadGateway, "reasoning model unavailable"
	case errors.Is(err, normalize.ErrUnrecognizedShape):
		return http.StatusBadGateway, "unrecognized answer from engine"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "question timed out"
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, "request canceled"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// handleCreateSession returns an http.HandlerFunc for POST /api/sessions.
func (g *Gateway) handleCreateSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		msgs, err := g.assistant.Transcript(id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		g.emit(security.AuditEvent{Type: security.EventSessionCreate, SessionID: id, RemoteAddr: r.RemoteAddr})
		writeJSON(w, http.StatusCreated, sessionResponse{SessionID: id, Messages: msgs})
	}
}

// handleListSessions returns an http.HandlerFunc for GET /api/sessions.
func (g *Gateway) handleListSessions() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		ids, err := g.assistant.Sessions()
		if err != nil {
			g.logger.Error("list sessions", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if ids == nil {
			ids = []string{}
		}
		sort.Strings(ids)
		writeJSON(w, http.StatusOK, sessionsResponse{Sessions: ids})
	}
}

// handleMessages returns an http.HandlerFunc for GET /api/sessions/{id}/messages.
func (g *Gateway) handleMessages() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := sessionID(w, r)
		if !ok {
			return
		}
		msgs, err := g.assistant.Transcript(id)
		if err != nil {
			g.logger.Error("load transcript", "session", id, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, sessionResponse{SessionID: id, Messages: msgs})
	}
}

// handleDeleteSession returns an http.HandlerFunc for DELETE /api/sessions/{id}.
func (g *Gateway) handleDeleteSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := sessionID(w, r)
		if !ok {
			return
		}
		if err := g.assistant.Reset(id); err != nil {
			g.logger.Error("reset session", "session", id, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		g.emit(security.AuditEvent{Type: security.EventSessionDelete, SessionID: id, RemoteAddr: r.RemoteAddr})
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleListTools returns an http.HandlerFunc for GET /api/tools.
func (g *Gateway) handleListTools() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		out := []toolInfo{}
		if g.tools != nil {
			for _, d := range g.tools.Definitions() {
				out = append(out, toolInfo{Name: d.Name, Description: d.Description})
			}
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func (g *Gateway) emit(ev security.AuditEvent) {
	if g.audit != nil {
		g.audit.Log(ev)
	}
}

// clientKey identifies the caller for rate limiting. RealIP has already
// replaced RemoteAddr when a proxy header was present.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
