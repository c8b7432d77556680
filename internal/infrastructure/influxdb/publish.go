package influxdb

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Publish renders m with the current timestamp and sends it to its
// destination.
//
// The call blocks for the HTTP exchange and any backlog drain that follows
// a successful write. A non-nil error means the payload was queued or
// dropped; it is never fatal.
func Publish(ctx context.Context, m *Measurement) error {
	if m == nil || m.client == nil {
		return ErrNoDestination
	}

	c := m.client
	c.mu.Lock()
	defer c.mu.Unlock()

	payload := m.line.Render(c.timestampSuffix())
	c.logger.Debug("publishing measurement",
		"destination", c.id,
		"measurement", m.id,
		"payload", payload,
	)

	return c.send(ctx, m.endpoint, payload)
}

// PublishBatch renders every measurement with one shared timestamp and sends
// them as a single payload.
//
// The first measurement fixes the destination and bucket. Later members
// owned by another client, or writing to another bucket, are skipped and
// reported in the returned error; the rest are still sent.
//
// Returns ErrEmptyBatch when ms is empty.
func PublishBatch(ctx context.Context, ms ...*Measurement) error {
	if len(ms) == 0 {
		return ErrEmptyBatch
	}
	first := ms[0]
	if first == nil || first.client == nil {
		return ErrNoDestination
	}

	c := first.client
	c.mu.Lock()
	defer c.mu.Unlock()

	suffix := c.timestampSuffix()

	var (
		b    strings.Builder
		errs []error
		ids  []string
	)
	for _, m := range ms {
		var skip error
		switch {
		case m == nil || m.client != c:
			skip = ErrMixedDestination
		case m.endpoint != first.endpoint:
			skip = ErrMixedBucket
		}
		if skip != nil {
			id := "<nil>"
			if m != nil {
				id = m.id
			}
			c.logger.Error("skipping batch measurement",
				"destination", c.id,
				"measurement", id,
				"error", skip,
			)
			c.metrics.incSkipped(c.id)
			c.record(ctx, Event{Kind: EventSkipped, Err: fmt.Errorf("%w: %s", skip, id)})
			errs = append(errs, fmt.Errorf("%w: %s", skip, id))
			continue
		}

		b.WriteString(m.line.Render(suffix))
		ids = append(ids, m.id)
	}

	payload := b.String()
	c.logger.Debug("publishing batch",
		"destination", c.id,
		"measurements", ids,
		"payload", payload,
	)

	if err := c.send(ctx, first.endpoint, payload); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
