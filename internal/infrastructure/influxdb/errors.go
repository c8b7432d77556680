package influxdb

import "errors"

// Sentinel errors for InfluxDB operations.
//
// These errors can be checked using errors.Is() for specific handling:
//
//	if errors.Is(err, influxdb.ErrWriteFailed) {
//	    // payload was queued or dropped
//	}
var (
	// ErrWriteFailed indicates a write did not reach the server or was rejected.
	ErrWriteFailed = errors.New("influxdb: write failed")

	// ErrNoResponse indicates the transport returned neither a response nor an error.
	ErrNoResponse = errors.New("influxdb: no response")

	// ErrStatus indicates the server answered with a non-2xx status.
	ErrStatus = errors.New("influxdb: unexpected status")

	// ErrInvalidURL indicates the destination URL cannot be used.
	ErrInvalidURL = errors.New("influxdb: invalid url")

	// ErrEmptyBatch is returned when publishing a batch with no measurements.
	ErrEmptyBatch = errors.New("influxdb: empty batch")

	// ErrNoDestination is returned for a measurement not bound to a client.
	ErrNoDestination = errors.New("influxdb: measurement has no destination")

	// ErrMixedDestination marks a batch member owned by a different client
	// than the first measurement. The member is skipped.
	ErrMixedDestination = errors.New("influxdb: batch measurement targets a different destination")

	// ErrMixedBucket marks a batch member writing to a different bucket
	// than the first measurement. The member is skipped.
	ErrMixedBucket = errors.New("influxdb: batch measurement targets a different bucket")

	// ErrUnhealthy indicates the server answered the ping as not ready.
	ErrUnhealthy = errors.New("influxdb: server not healthy")
)
