package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/linepush/internal/audit"
)

// handleListEvents returns paginated delivery events with optional filters.
//
// Query parameters:
//   - destination: filter by destination id
//   - kind: filter by event kind (sent, queued, dropped, evicted, drained, failed, skipped)
//   - since: RFC 3339 timestamp; only events at or after it
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		writeUnavailable(w, "delivery audit not configured")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Destination: q.Get("destination"),
		Kind:        q.Get("kind"),
	}

	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeBadRequest(w, "since must be an RFC 3339 timestamp")
			return
		}
		filter.Since = t
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	result, err := s.events.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list delivery events", "error", err)
		writeInternalError(w, "failed to list delivery events")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
