package gateway

import (
	"net/http"
	"regexp"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// sessionIDPattern accepts server-issued UUIDs and short client-chosen names.
var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,127}$`)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	if g.httpStats != nil {
		r.Use(g.httpStats.middleware)
	}

	// Public, no auth required.
	r.Get("/health", g.handleHealth())
	if g.metrics != nil {
		r.Method(http.MethodGet, "/metrics", g.metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		if g.config.Auth.IsConfigured() {
			r.Use(authMiddleware(g.config.Auth, g.audit))
		}
		r.Get("/status", g.handleStatus())
		r.Get("/ws/sessions/{id}", g.handleWebsocket())
		r.Route("/api", func(r chi.Router) {
			r.Get("/tools", g.handleListTools())
			r.Get("/sessions", g.handleListSessions())
			r.Post("/sessions", g.handleCreateSession())
			r.Post("/sessions/{id}/ask", g.handleAsk())
			r.Get("/sessions/{id}/messages", g.handleMessages())
			r.Delete("/sessions/{id}", g.handleDeleteSession())
		})
	})

	return r
}

// sessionID extracts and validates the {id} URL parameter.
func sessionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if !sessionIDPattern.MatchString(id) {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return "", false
	}
	return id, true
}

// writeJSON writes v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = jsonAPI.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
