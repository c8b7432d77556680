package pipeline

import "errors"

// Domain-specific errors for pipeline operations.
var (
	// ErrUnknownMeasurement is returned when a measurement id is not configured.
	ErrUnknownMeasurement = errors.New("pipeline: unknown measurement")

	// ErrUnknownDestination is returned when a destination id is not configured.
	ErrUnknownDestination = errors.New("pipeline: unknown destination")

	// ErrNoSubscriber is returned by Start when sensors are configured but
	// no MQTT subscriber was supplied.
	ErrNoSubscriber = errors.New("pipeline: no MQTT subscriber for sensors")
)
