package gateway

import (
	"net/http"
	"runtime"
	"time"

	"github.com/flemzord/scout/internal/provider"
)

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status    string            `json:"status"` // "ok" or "degraded"
	Providers []provider.Status `json:"providers,omitempty"`
}

// handleHealth returns an http.HandlerFunc for GET /health.
// Returns 200 if all providers are available, 503 if any is cooling down.
func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := HealthResponse{Status: "ok"}
		if g.providers != nil {
			resp.Providers = g.providers.HealthReport()
			for _, p := range resp.Providers {
				if !p.Available {
					resp.Status = "degraded"
					break
				}
			}
		}

		status := http.StatusOK
		if resp.Status == "degraded" {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, resp)
	}
}

// StatusResponse is the JSON response for GET /status.
type StatusResponse struct {
	Version    string               `json:"version"`
	GoVersion  string               `json:"go_version"`
	Uptime     string               `json:"uptime"`
	Goroutines int                  `json:"goroutines"`
	Sessions   int                  `json:"sessions"`
	Tools      []string             `json:"tools"`
	Providers  []provider.Status    `json:"providers,omitempty"`
	Jobs       map[string]time.Time `json:"jobs,omitempty"`
}

// handleStatus returns an http.HandlerFunc for GET /status.
func (g *Gateway) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := StatusResponse{
			Version:    Version,
			GoVersion:  runtime.Version(),
			Goroutines: runtime.NumGoroutine(),
			Tools:      []string{},
		}
		if !g.startedAt.IsZero() {
			resp.Uptime = time.Since(g.startedAt).Truncate(time.Second).String()
		}
		if ids, err := g.assistant.Sessions(); err == nil {
			resp.Sessions = len(ids)
		}
		if g.tools != nil {
			for _, d := range g.tools.Definitions() {
				resp.Tools = append(resp.Tools, d.Name)
			}
		}
		if g.providers != nil {
			resp.Providers = g.providers.HealthReport()
		}
		if g.jobs != nil {
			resp.Jobs = g.jobs.NextRuns()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// Version is reported by GET /status. It is set by the binary at startup.
var Version = "dev"
