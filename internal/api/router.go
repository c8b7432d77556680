package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "no such endpoint")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllow, "method not allowed")
	})

	// Prometheus scrape endpoint
	r.Get("/metrics", s.handlePrometheus)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/system", s.handleSystem)

		r.Get("/sensors", s.handleListSensors)
		r.Get("/sensors/{id}", s.handleGetSensor)

		r.Route("/destinations", func(r chi.Router) {
			r.Get("/", s.handleListDestinations)
			r.Get("/{id}", s.handleGetDestination)
			r.Get("/{id}/backlog", s.handleGetBacklog)
		})

		r.Route("/measurements", func(r chi.Router) {
			r.Get("/", s.handleListMeasurements)
			r.Get("/{id}/line", s.handlePreviewLine)
			r.Post("/{id}/publish", s.handlePublish)
		})
		r.Post("/publish", s.handlePublishBatch)

		r.Get("/jobs", s.handleListJobs)
		r.Post("/jobs/{name}/run", s.handleRunJob)

		r.Get("/events", s.handleListEvents)
	})

	return r
}

// handlePrometheus serves the metrics registry in the Prometheus text format.
func (s *Server) handlePrometheus(w http.ResponseWriter, r *http.Request) {
	if s.gatherer == nil {
		writeUnavailable(w, "metrics not configured")
		return
	}
	promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}).ServeHTTP(w, r)
}
