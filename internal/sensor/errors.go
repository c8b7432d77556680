package sensor

import "errors"

// Domain errors for the sensor package.
var (
	// ErrNotFound is returned when a sensor ID is not registered.
	ErrNotFound = errors.New("sensor: not found")

	// ErrExists is returned when registering a sensor ID twice.
	ErrExists = errors.New("sensor: already exists")

	// ErrWrongKind is returned by the typed lookups when the sensor exists
	// but is of a different kind.
	ErrWrongKind = errors.New("sensor: wrong kind")

	// ErrInvalidID is returned when a sensor has an empty ID.
	ErrInvalidID = errors.New("sensor: invalid id")

	// ErrInvalidPayload is returned when an incoming payload cannot be
	// interpreted for the sensor's kind.
	ErrInvalidPayload = errors.New("sensor: invalid payload")

	// ErrNotBound is returned when starting a binder with no bindings.
	ErrNotBound = errors.New("sensor: no bindings")
)
