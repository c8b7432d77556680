package api

import (
	"context"
	"net/http"
	"runtime"
	"time"
)

// healthCheckTimeout bounds each component probe in the health endpoint.
const healthCheckTimeout = 2 * time.Second

// Component health states.
const (
	healthOK       = "ok"
	healthDegraded = "degraded"
	healthDisabled = "disabled"
)

// HealthResponse is the body of GET /api/v1/health.
type HealthResponse struct {
	Status     string            `json:"status"`
	Version    string            `json:"version"`
	Components map[string]string `json:"components"`
}

// handleHealth reports the daemon and its optional dependencies.
//
// Destinations are reported from their last delivery outcome rather than a
// live ping, so the endpoint stays cheap enough for container probes.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	resp := HealthResponse{
		Status:     healthOK,
		Version:    s.version,
		Components: make(map[string]string),
	}
	mark := func(name, state string) {
		resp.Components[name] = state
		if state == healthDegraded {
			resp.Status = healthDegraded
		}
	}

	switch {
	case s.mqtt == nil:
		mark("mqtt", healthDisabled)
	case s.mqtt.HealthCheck(ctx) != nil:
		mark("mqtt", healthDegraded)
	default:
		mark("mqtt", healthOK)
	}

	switch {
	case s.db == nil:
		mark("database", healthDisabled)
	case s.db.HealthCheck(ctx) != nil:
		mark("database", healthDegraded)
	default:
		mark("database", healthOK)
	}

	for _, c := range s.pipeline.Destinations() {
		st := c.Status()
		if st.BacklogDepth > 0 || st.LastFailure.After(st.LastSuccess) {
			mark("destination:"+st.ID, healthDegraded)
		} else {
			mark("destination:"+st.ID, healthOK)
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// SystemMetrics represents the GET /api/v1/system response.
type SystemMetrics struct {
	Timestamp     string          `json:"timestamp"`
	Version       string          `json:"version"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	Runtime       RuntimeMetrics  `json:"runtime"`
	MQTT          MQTTMetrics     `json:"mqtt"`
	Pipeline      PipelineMetrics `json:"pipeline"`
	Database      DatabaseMetrics `json:"database"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// MQTTMetrics contains MQTT client statistics.
type MQTTMetrics struct {
	Connected     bool `json:"connected"`
	Subscriptions int  `json:"subscriptions"`
}

// PipelineMetrics summarises configured objects and queued payloads.
type PipelineMetrics struct {
	Sensors        int `json:"sensors"`
	Destinations   int `json:"destinations"`
	Measurements   int `json:"measurements"`
	BacklogEntries int `json:"backlog_entries"`
	Jobs           int `json:"jobs"`
}

// DatabaseMetrics contains database connection pool statistics.
type DatabaseMetrics struct {
	OpenConnections int    `json:"open_connections"`
	InUse           int    `json:"in_use"`
	Idle            int    `json:"idle"`
	WaitCount       int64  `json:"wait_count"`
	SchemaVersion   string `json:"schema_version,omitempty"`
}

// handleSystem returns runtime and pipeline statistics.
func (s *Server) handleSystem(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		Pipeline: PipelineMetrics{
			Sensors:      s.pipeline.Registry().Len(),
			Measurements: len(s.pipeline.Measurements()),
		},
	}

	destinations := s.pipeline.Destinations()
	metrics.Pipeline.Destinations = len(destinations)
	for _, c := range destinations {
		metrics.Pipeline.BacklogEntries += c.Status().BacklogDepth
	}

	if s.scheduler != nil {
		metrics.Pipeline.Jobs = s.scheduler.Len()
	}

	if s.mqtt != nil {
		metrics.MQTT = MQTTMetrics{
			Connected:     s.mqtt.IsConnected(),
			Subscriptions: s.mqtt.SubscriptionCount(),
		}
	}

	if s.db != nil {
		dbStats := s.db.Stats()
		metrics.Database = DatabaseMetrics{
			OpenConnections: dbStats.OpenConnections,
			InUse:           dbStats.InUse,
			Idle:            dbStats.Idle,
			WaitCount:       dbStats.WaitCount,
		}
		if v, err := s.db.SchemaVersion(r.Context()); err == nil {
			metrics.Database.SchemaVersion = v
		}
	}

	writeJSON(w, http.StatusOK, metrics)
}
