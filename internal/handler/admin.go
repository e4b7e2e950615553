package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pastesync/sync-server-go/internal/jobs"
	"github.com/pastesync/sync-server-go/internal/service"
)

// AdminHandler exposes operator utilities: an out-of-cycle cleanup trigger
// and session statistics.
type AdminHandler struct {
	sessionService *service.SessionService
	cleanupJob     *jobs.CleanupJob
}

func NewAdminHandler(sessionService *service.SessionService, cleanupJob *jobs.CleanupJob) *AdminHandler {
	return &AdminHandler{
		sessionService: sessionService,
		cleanupJob:     cleanupJob,
	}
}

func (h *AdminHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/cleanup", h.TriggerCleanup)
	r.Get("/stats", h.GetStats)

	return r
}

// POST /v1/admin/cleanup
func (h *AdminHandler) TriggerCleanup(w http.ResponseWriter, r *http.Request) {
	h.cleanupJob.Sweep()
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /v1/admin/stats
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.sessionService.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}
