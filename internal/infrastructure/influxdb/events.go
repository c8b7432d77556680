package influxdb

import "context"

// EventKind classifies a delivery event.
type EventKind string

// Delivery event kinds.
const (
	EventSent    EventKind = "sent"    // write accepted
	EventQueued  EventKind = "queued"  // write failed, payload queued
	EventDropped EventKind = "dropped" // write failed, backlog disabled
	EventEvicted EventKind = "evicted" // oldest queued payload discarded
	EventDrained EventKind = "drained" // queued payload delivered on retry
	EventFailed  EventKind = "failed"  // retry of a queued payload failed
	EventSkipped EventKind = "skipped" // measurement excluded from a batch
)

// Event describes one delivery outcome.
type Event struct {
	Destination  string
	Kind         EventKind
	URL          string
	Bytes        int
	BacklogDepth int
	Err          error
}

// EventRecorder persists delivery events, typically to the audit log.
// Recording errors are logged and never affect delivery.
type EventRecorder interface {
	RecordDelivery(ctx context.Context, e Event) error
}
