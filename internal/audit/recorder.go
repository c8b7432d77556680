package audit

import (
	"context"
	"time"

	"github.com/nerrad567/linepush/internal/infrastructure/influxdb"
)

// Recorder adapts a Repository to influxdb.EventRecorder.
type Recorder struct {
	repo Repository
	now  func() time.Time
}

// NewRecorder returns a Recorder writing to repo.
func NewRecorder(repo Repository) *Recorder {
	return &Recorder{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

// RecordDelivery stores one delivery outcome.
func (r *Recorder) RecordDelivery(ctx context.Context, e influxdb.Event) error {
	ev := &Event{
		Destination:  e.Destination,
		Kind:         string(e.Kind),
		URL:          e.URL,
		Bytes:        e.Bytes,
		BacklogDepth: e.BacklogDepth,
		CreatedAt:    r.now(),
	}
	if e.Err != nil {
		ev.Error = e.Err.Error()
	}
	return r.repo.Record(ctx, ev)
}

var _ influxdb.EventRecorder = (*Recorder)(nil)
