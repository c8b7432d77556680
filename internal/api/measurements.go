package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/linepush/internal/infrastructure/influxdb"
	"github.com/nerrad567/linepush/internal/pipeline"
)

// MeasurementView describes a configured measurement.
type MeasurementView struct {
	ID          string `json:"id"`
	Prefix      string `json:"prefix"`
	Destination string `json:"destination"`
	Bucket      string `json:"bucket"`
	Fields      int    `json:"fields"`
}

// PublishBatchRequest is the body of POST /api/v1/publish.
type PublishBatchRequest struct {
	Measurements []string `json:"measurements"`
}

// PublishResponse reports the outcome of an on-demand publish.
type PublishResponse struct {
	Status       string          `json:"status"`
	Destination  influxdb.Status `json:"destination"`
	Measurements []string        `json:"measurements"`
	Skipped      string          `json:"skipped,omitempty"`
}

// handleListMeasurements returns every configured measurement.
func (s *Server) handleListMeasurements(w http.ResponseWriter, _ *http.Request) {
	ms := s.pipeline.Measurements()
	out := make([]MeasurementView, 0, len(ms))
	for _, m := range ms {
		out = append(out, MeasurementView{
			ID:          m.ID(),
			Prefix:      m.Line().Prefix(),
			Destination: m.Client().ID(),
			Bucket:      m.Bucket(),
			Fields:      m.Line().Fields(),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"measurements": out,
		"count":        len(out),
	})
}

// handlePreviewLine renders a measurement as it would be sent now.
// The response is the raw line protocol record.
func (s *Server) handlePreviewLine(w http.ResponseWriter, r *http.Request) {
	line, err := s.pipeline.Preview(chi.URLParam(r, "id"))
	if err != nil {
		s.writePublishError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // Best-effort write to response; connection may be closed
	w.Write([]byte(line))
}

// handlePublish sends one measurement immediately.
func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	m, err := s.pipeline.Measurement(id)
	if err != nil {
		s.writePublishError(w, err)
		return
	}

	if err := s.pipeline.Publish(r.Context(), id); err != nil {
		s.writePublishError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, PublishResponse{
		Status:       "sent",
		Destination:  m.Client().Status(),
		Measurements: []string{id},
	})
}

// handlePublishBatch sends several measurements as one payload.
func (s *Server) handlePublishBatch(w http.ResponseWriter, r *http.Request) {
	var req PublishBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if len(req.Measurements) == 0 {
		writeBadRequest(w, "measurements must not be empty")
		return
	}

	err := s.pipeline.PublishBatch(r.Context(), req.Measurements)
	switch {
	case err == nil:
	case errors.Is(err, influxdb.ErrWriteFailed):
		writeError(w, http.StatusBadGateway, ErrCodeWriteFailed, err.Error())
		return
	case errors.Is(err, influxdb.ErrEmptyBatch):
		writeNotFound(w, err.Error())
		return
	case errors.Is(err, pipeline.ErrUnknownMeasurement),
		errors.Is(err, influxdb.ErrMixedDestination),
		errors.Is(err, influxdb.ErrMixedBucket):
		// The remaining members were sent; report what was left out.
	default:
		s.logger.Error("batch publish failed", "error", err)
		writeInternalError(w, "publish failed")
		return
	}

	resp := PublishResponse{Status: "sent", Measurements: req.Measurements}
	if err != nil {
		resp.Status = "partial"
		resp.Skipped = err.Error()
	}
	for _, id := range req.Measurements {
		if m, lookupErr := s.pipeline.Measurement(id); lookupErr == nil {
			resp.Destination = m.Client().Status()
			break
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// writePublishError maps single-measurement errors to HTTP responses.
//
// A write failure answers 502: the payload was accepted locally and queued
// or dropped per the destination's backlog policy.
func (s *Server) writePublishError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, influxdb.ErrWriteFailed):
		writeError(w, http.StatusBadGateway, ErrCodeWriteFailed, err.Error())
	case errors.Is(err, pipeline.ErrUnknownMeasurement):
		writeNotFound(w, "measurement not found")
	default:
		s.logger.Error("publish failed", "error", err)
		writeInternalError(w, "publish failed")
	}
}
