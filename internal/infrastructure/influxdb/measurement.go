package influxdb

import (
	"github.com/nerrad567/linepush/internal/lineproto"
)

// Measurement is a line protocol record bound to one destination and bucket.
//
// The client link is a non-owning reference fixed at construction.
type Measurement struct {
	id       string
	bucket   string
	endpoint string
	client   *Client
	line     *lineproto.Line
}

// NewMeasurement binds line to this destination, writing to bucket.
func (c *Client) NewMeasurement(id, bucket string, line *lineproto.Line) *Measurement {
	return &Measurement{
		id:       id,
		bucket:   bucket,
		endpoint: c.WriteURL(bucket),
		client:   c,
		line:     line,
	}
}

// ID returns the measurement ID.
func (m *Measurement) ID() string { return m.id }

// Bucket returns the target bucket.
func (m *Measurement) Bucket() string { return m.bucket }

// Endpoint returns the full write URL.
func (m *Measurement) Endpoint() string { return m.endpoint }

// Client returns the owning destination.
func (m *Measurement) Client() *Client { return m.client }

// Line returns the record composer.
func (m *Measurement) Line() *lineproto.Line { return m.line }

// Preview renders the record as it would be sent now, without sending it.
func (m *Measurement) Preview() string {
	c := m.client
	c.mu.Lock()
	suffix := c.timestampSuffix()
	c.mu.Unlock()
	return m.line.Render(suffix)
}
