// Package influxdb delivers line protocol records to InfluxDB v2 write
// endpoints, with a bounded in-memory backlog for failed writes.
//
// A Client represents one destination: a server URL, organization, optional
// token and a backlog. Measurements are bound to exactly one Client at
// construction and carry their own bucket endpoint.
//
// # Usage
//
//	client, err := influxdb.New(cfg.InfluxDB[0])
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	line := lineproto.NewLine(lineproto.Prefix("climate"), fields...)
//	m := client.NewMeasurement("climate", "sensors", line)
//
//	if err := influxdb.Publish(ctx, m); err != nil {
//	    logger.Warn("publish failed", "error", err)
//	}
//
// # Delivery
//
// Every publish is a synchronous HTTP POST. On success the response body is
// drained, then up to backlog_drain_batch queued payloads are retried
// oldest-first, stopping at the first failure. On failure (transport error,
// missing response or non-2xx status) the payload is queued when the backlog
// is enabled, evicting the oldest entry if full, and dropped otherwise.
// There is no retry timer: queued payloads only move after a later write
// succeeds.
//
// # Thread Safety
//
// All methods are safe for concurrent use. Publishes to one Client are
// serialised, so a write and its opportunistic drain never interleave with
// another write to the same destination.
//
// # Error Handling
//
// Publish errors are diagnostic only. The payload has already been queued or
// dropped by the time the error is returned.
package influxdb
