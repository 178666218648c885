// Package http exposes the control API: trigger a snapshot run, poll its
// outcome, health checks and the metrics endpoint.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	apierrors "cnpulse/internal/errors"
	"cnpulse/internal/runner"
)

// RunParams are the per-run overrides accepted by the trigger endpoint.
type RunParams struct {
	Markets      []string `json:"markets,omitempty" validate:"omitempty,dive,oneof=cninfo sse bse"`
	Limit        int      `json:"limit,omitempty" validate:"min=0"`
	Codes        []string `json:"codes,omitempty"`
	SnapshotDate string   `json:"snapshot_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// Bind implements render.Binder.
func (p *RunParams) Bind(r *http.Request) error {
	return validator.New().Struct(p)
}

// RunFunc executes one snapshot run; the server wiring supplies it.
type RunFunc func(ctx context.Context, params RunParams) (*runner.Summary, error)

// RunsHandler triggers snapshot runs asynchronously. At most one run is in
// flight: the portals are rate-limited, and overlapping runs would contend
// on the state store.
type RunsHandler struct {
	run    RunFunc
	logger *slog.Logger

	mu      sync.Mutex
	current *runState
	latest  *runState
}

type runState struct {
	RunID    string          `json:"run_id"`
	Status   string          `json:"status"`
	Started  time.Time       `json:"started"`
	Params   RunParams       `json:"params"`
	Summary  *runner.Summary `json:"summary,omitempty"`
	ErrorMsg string          `json:"error,omitempty"`
}

// NewRunsHandler builds the handler around the run function.
func NewRunsHandler(run RunFunc, logger *slog.Logger) *RunsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RunsHandler{
		run:    run,
		logger: logger.With(slog.String("handler", "runs")),
	}
}

// Routes mounts the run endpoints.
func (h *RunsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Start)
	r.Get("/latest", h.Latest)
	return r
}

// Start handles POST /api/runs. The run itself proceeds in the background;
// the response carries the accepted run ID.
func (h *RunsHandler) Start(w http.ResponseWriter, r *http.Request) {
	params := &RunParams{}
	if r.ContentLength > 0 {
		if err := render.Bind(r, params); err != nil {
			_ = render.Render(w, r, apierrors.InvalidRequestWithError(err))
			return
		}
	}

	h.mu.Lock()
	if h.current != nil {
		inFlight := h.current.RunID
		h.mu.Unlock()
		_ = render.Render(w, r, apierrors.RunInProgressError(inFlight))
		return
	}
	state := &runState{
		RunID:   uuid.NewString(),
		Status:  "running",
		Started: time.Now(),
		Params:  *params,
	}
	h.current = state
	h.mu.Unlock()

	accepted := *state
	go h.execute(state)

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, accepted)
}

func (h *RunsHandler) execute(state *runState) {
	logger := h.logger.With(slog.String("run_id", state.RunID))
	logger.Info("run accepted", slog.Any("markets", state.Params.Markets))

	summary, err := h.run(context.Background(), state.Params)

	h.mu.Lock()
	defer h.mu.Unlock()
	if err != nil {
		state.Status = "failed"
		state.ErrorMsg = err.Error()
		logger.Error("run failed", slog.String("error", err.Error()))
	} else {
		state.Status = "finished"
		state.Summary = summary
	}
	h.current = nil
	h.latest = state
}

// Latest handles GET /api/runs/latest: the in-flight run if any, otherwise
// the last finished one.
func (h *RunsHandler) Latest(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	src := h.current
	if src == nil {
		src = h.latest
	}
	var state *runState
	if src != nil {
		// Copy under the lock; execute mutates the live state concurrently.
		copied := *src
		state = &copied
	}
	h.mu.Unlock()

	if state == nil {
		_ = render.Render(w, r, apierrors.NotFoundError("run"))
		return
	}
	render.JSON(w, r, state)
}
