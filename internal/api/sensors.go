package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/linepush/internal/sensor"
)

// handleListSensors returns a snapshot of every sensor and the subscribed topics.
func (s *Server) handleListSensors(w http.ResponseWriter, _ *http.Request) {
	sensors := s.pipeline.Registry().List()
	topics := s.pipeline.Topics()
	if topics == nil {
		topics = []string{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sensors": sensors,
		"topics":  topics,
		"count":   len(sensors),
	})
}

// handleGetSensor returns one sensor's current state.
func (s *Server) handleGetSensor(w http.ResponseWriter, r *http.Request) {
	sn, err := s.pipeline.Registry().Get(chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, sensor.ErrNotFound) {
			writeNotFound(w, "sensor not found")
			return
		}
		writeInternalError(w, "failed to get sensor")
		return
	}
	writeJSON(w, http.StatusOK, sn.Snapshot())
}
