package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hackdash/apiserver/internal/scheduler"
	"github.com/hackdash/apiserver/types"
)

// SchedulerHandler exposes the scheduler's manual trigger and its
// read-only status view for operational testing.
type SchedulerHandler struct {
	scheduler *scheduler.Scheduler
}

func NewSchedulerHandler(s *scheduler.Scheduler) *SchedulerHandler {
	return &SchedulerHandler{scheduler: s}
}

// SchedulerRouter registers scheduler routes. All routes require at least
// the admin role.
func SchedulerRouter(r chi.Router, handler *SchedulerHandler, gate *AccessGate) {
	r.Use(gate.RequireAuth, gate.RequireRole(types.RoleAdmin))

	r.Post("/tick", handler.Trigger)
	r.Get("/status", handler.Status)
}

// Trigger runs one tick synchronously. If the background tick is already
// running the request is rejected rather than queued.
func (h *SchedulerHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	result, err := h.scheduler.Tick(r.Context())
	if err != nil {
		if errors.Is(err, scheduler.ErrTickInProgress) {
			writeError(w, http.StatusConflict, "a tick is already in progress")
			return
		}
		writeError(w, http.StatusInternalServerError, "tick failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Status reports the run state and which hackathons are pending a stage
// update versus up to date, without mutating anything.
func (h *SchedulerHandler) Status(w http.ResponseWriter, r *http.Request) {
	status, err := h.scheduler.Status(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to compute status")
		return
	}
	writeJSON(w, http.StatusOK, status)
}
