// Package api implements the linepush HTTP status API.
//
// This package provides:
//   - Health and runtime status for the daemon and its dependencies
//   - Read-only views of sensors, destinations, backlogs and measurements
//   - On-demand publish of a measurement or a batch
//   - The delivery audit log and Prometheus metrics
//   - Middleware stack (request ID, logging, recovery, body size limit)
//
// # Graceful Degradation
//
// MQTT, the audit database, the scheduler and the metrics registry are
// optional. Endpoints that need a missing dependency answer 503 and the
// rest keep working.
//
// # Security
//
// The API has no authentication. Bind it to localhost (api.host) or put it
// behind a reverse proxy when the host is reachable from other machines.
package api
