package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/linepush/internal/infrastructure/influxdb"
	"github.com/nerrad567/linepush/internal/pipeline"
)

// handleListDestinations returns the status of every destination.
func (s *Server) handleListDestinations(w http.ResponseWriter, _ *http.Request) {
	clients := s.pipeline.Destinations()
	out := make([]influxdb.Status, 0, len(clients))
	for _, c := range clients {
		out = append(out, c.Status())
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"destinations": out,
		"count":        len(out),
	})
}

// handleGetDestination returns one destination's status.
func (s *Server) handleGetDestination(w http.ResponseWriter, r *http.Request) {
	c, ok := s.lookupDestination(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, c.Status())
}

// handleGetBacklog returns a destination's queued payloads, oldest first.
func (s *Server) handleGetBacklog(w http.ResponseWriter, r *http.Request) {
	c, ok := s.lookupDestination(w, r)
	if !ok {
		return
	}

	entries := c.BacklogEntries()
	if entries == nil {
		entries = []influxdb.BacklogEntry{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"destination": c.ID(),
		"entries":     entries,
		"count":       len(entries),
	})
}

// lookupDestination resolves the {id} URL parameter, writing a 404 on miss.
func (s *Server) lookupDestination(w http.ResponseWriter, r *http.Request) (*influxdb.Client, bool) {
	id := chi.URLParam(r, "id")
	c, err := s.pipeline.Destination(id)
	if err != nil {
		if errors.Is(err, pipeline.ErrUnknownDestination) {
			writeNotFound(w, "destination not found")
			return nil, false
		}
		writeInternalError(w, "failed to resolve destination")
		return nil, false
	}
	return c, true
}
