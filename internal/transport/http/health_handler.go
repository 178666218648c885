package http

import (
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"cnpulse/internal/config"
)

// HealthHandler reports process liveness and data-path readiness.
type HealthHandler struct {
	paths   config.PathsConfig
	started time.Time
	version string
}

// NewHealthHandler builds the health endpoints.
func NewHealthHandler(paths config.PathsConfig, version string) *HealthHandler {
	return &HealthHandler{paths: paths, started: time.Now(), version: version}
}

// Routes mounts the health endpoints.
func (h *HealthHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.Health)
	r.Get("/ready", h.Ready)
	return r
}

// Health handles GET /api/health.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]any{
		"status":  "ok",
		"version": h.version,
		"uptime":  time.Since(h.started).String(),
	})
}

// Ready handles GET /api/health/ready: ready once the data directories
// exist and are writable.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	ready := true
	for name, dir := range map[string]string{
		"snapshots_dir": h.paths.SnapshotsDir,
		"state_dir":     h.paths.StateDir,
	} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			checks[name] = "missing"
			ready = false
		} else {
			checks[name] = "ok"
		}
	}

	status := "ready"
	if !ready {
		status = "not_ready"
		render.Status(r, http.StatusServiceUnavailable)
	}
	render.JSON(w, r, map[string]any{"status": status, "checks": checks})
}
