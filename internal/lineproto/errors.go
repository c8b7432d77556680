package lineproto

import "errors"

// Sentinel errors for line protocol construction.
var (
	// ErrInvalidIdentifier indicates a measurement, tag or field name that
	// cannot be used in line protocol.
	ErrInvalidIdentifier = errors.New("lineproto: invalid identifier")
)
