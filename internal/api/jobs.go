package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/linepush/internal/scheduler"
)

// handleListJobs returns every scheduled job with its run statistics.
func (s *Server) handleListJobs(w http.ResponseWriter, _ *http.Request) {
	if s.scheduler == nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"jobs":  []scheduler.JobStatus{},
			"count": 0,
		})
		return
	}

	jobs := s.scheduler.Jobs()
	writeJSON(w, http.StatusOK, map[string]any{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

// handleRunJob triggers a job outside its schedule and waits for it.
func (s *Server) handleRunJob(w http.ResponseWriter, r *http.Request) {
	if s.scheduler == nil {
		writeUnavailable(w, "scheduler not configured")
		return
	}

	name := chi.URLParam(r, "name")
	err := s.scheduler.RunNow(r.Context(), name)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"job": name, "status": "completed"})
	case errors.Is(err, scheduler.ErrJobNotFound):
		writeNotFound(w, "job not found")
	default:
		writeJSON(w, http.StatusOK, map[string]any{
			"job":    name,
			"status": "failed",
			"error":  err.Error(),
		})
	}
}
