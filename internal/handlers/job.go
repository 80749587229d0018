package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"courseta-backend/internal/models"
)

type jobFetcher interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error)
}

// JobHandler serves ingest job status for clients polling instead of (or in
// addition to) listening on the WebSocket.
type JobHandler struct {
	jobs jobFetcher
}

func NewJobHandler(jobs jobFetcher) *JobHandler {
	return &JobHandler{jobs: jobs}
}

// Get handles GET /api/jobs/{id}.
func (h *JobHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid job ID")
		return
	}

	job, err := h.jobs.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "Job not found")
		return
	}

	writeJSON(w, http.StatusOK, job)
}
