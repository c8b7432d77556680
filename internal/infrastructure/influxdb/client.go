package influxdb

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"

	"github.com/nerrad567/linepush/internal/clock"
	"github.com/nerrad567/linepush/internal/infrastructure/config"
)

// Default timeouts for InfluxDB operations.
const (
	defaultPingTimeout = 5 * time.Second
)

// Logger defines the logging interface used by the Client.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Client delivers line protocol to one InfluxDB v2 destination.
//
// The write endpoint, header set and drain batch size are fixed at
// construction. The backlog, last-result bookkeeping and every HTTP exchange
// are guarded by mu, so publishes to one Client run one at a time.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	id         string
	serverURL  string
	writeBase  string
	header     http.Header
	drainBatch int

	// influx is only used for health pings; writes go through transport.
	influx influxdb2.Client

	mu          sync.Mutex
	transport   Transport
	clock       clock.Clock
	backlog     *Backlog
	logger      Logger
	metrics     *Metrics
	recorder    EventRecorder
	lastSuccess time.Time
	lastFailure time.Time
	lastErr     error
}

// New creates a Client for one destination.
//
// No connection is made; use HealthCheck to probe the server. The transport
// is net/http with the destination's timeout, and the clock follows
// time_source.
//
// Parameters:
//   - cfg: Destination configuration from config.yaml
//
// Returns:
//   - *Client: Client ready to publish
//   - error: ErrInvalidURL if the URL or time source cannot be used
func New(cfg config.InfluxDBConfig) (*Client, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, cfg.URL)
	}

	clk, ok := clock.ParseSource(cfg.TimeSource)
	if !ok {
		return nil, fmt.Errorf("influxdb: unknown time source %q", cfg.TimeSource)
	}

	serverURL := strings.TrimRight(cfg.URL, "/")
	drainBatch := cfg.BacklogDrainBatch
	if drainBatch < 1 {
		drainBatch = 1
	}

	opts := influxdb2.DefaultOptions()
	if cfg.Timeout > 0 {
		// #nosec G115 -- checked positive above
		opts.SetHTTPRequestTimeout(uint(cfg.Timeout))
	}

	return &Client{
		id:         cfg.ID,
		serverURL:  serverURL,
		writeBase:  buildWriteBase(serverURL, cfg.Organization),
		header:     buildHeader(cfg.Token),
		drainBatch: drainBatch,
		influx:     influxdb2.NewClientWithOptions(serverURL, cfg.Token, opts),
		transport:  NewHTTPTransport(cfg.TimeoutDuration()),
		clock:      clk,
		backlog:    NewBacklog(cfg.BacklogMaxDepth),
		logger:     noopLogger{},
	}, nil
}

// buildWriteBase returns the v2 write URL without the bucket parameter.
// Timestamps are written in seconds.
func buildWriteBase(serverURL, org string) string {
	return serverURL + "/api/v2/write?org=" + url.QueryEscape(org) + "&precision=s"
}

// ID returns the destination ID.
func (c *Client) ID() string {
	return c.id
}

// WriteURL returns the write endpoint for a bucket.
func (c *Client) WriteURL(bucket string) string {
	return c.writeBase + "&bucket=" + url.QueryEscape(bucket)
}

// SetLogger sets the logger for the client.
func (c *Client) SetLogger(logger Logger) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logger = logger
}

// SetTransport replaces the HTTP transport.
func (c *Client) SetTransport(t Transport) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transport = t
}

// SetClock replaces the time source. A nil clock disables timestamps.
func (c *Client) SetClock(clk clock.Clock) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clock = clk
}

// SetMetrics attaches Prometheus collectors.
func (c *Client) SetMetrics(m *Metrics) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics = m
	m.setDepth(c.id, c.backlog.Len())
}

// SetRecorder attaches an event recorder.
func (c *Client) SetRecorder(r EventRecorder) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recorder = r
}

// send posts payload to endpoint and runs the backlog policy.
// The caller must hold c.mu.
func (c *Client) send(ctx context.Context, endpoint, payload string) error {
	err := c.post(ctx, endpoint, payload)
	if err == nil {
		c.lastSuccess = time.Now()
		c.record(ctx, Event{Kind: EventSent, URL: endpoint, Bytes: len(payload)})

		if c.backlog.Len() > 0 {
			c.drainBacklog(ctx)
		}
		return nil
	}

	c.lastFailure = time.Now()
	c.lastErr = err

	if !c.backlog.Enabled() {
		c.logger.Debug("request failed, backlog disabled, dropping payload",
			"destination", c.id,
			"error", err,
		)
		c.metrics.incDropped(c.id)
		c.record(ctx, Event{Kind: EventDropped, URL: endpoint, Bytes: len(payload), Err: err})
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	c.logger.Debug("request failed, adding to backlog",
		"destination", c.id,
		"error", err,
	)

	oldest, evicted := c.backlog.Enqueue(BacklogEntry{
		URL:      endpoint,
		Payload:  payload,
		QueuedAt: time.Now(),
	})
	if evicted {
		c.logger.Warn("backlog full, dropping oldest entry",
			"destination", c.id,
			"max_depth", c.backlog.MaxDepth(),
			"queued_at", oldest.QueuedAt,
		)
		c.metrics.incEvicted(c.id)
		c.record(ctx, Event{Kind: EventEvicted, URL: oldest.URL, Bytes: len(oldest.Payload)})
	}

	c.metrics.incQueued(c.id)
	c.metrics.setDepth(c.id, c.backlog.Len())
	c.logger.Debug("backlog depth", "destination", c.id, "depth", c.backlog.Len())
	c.record(ctx, Event{Kind: EventQueued, URL: endpoint, Bytes: len(payload), Err: err})

	return fmt.Errorf("%w: %w", ErrWriteFailed, err)
}

// drainBacklog retries up to drainBatch queued payloads, oldest first.
// The caller must hold c.mu.
func (c *Client) drainBacklog(ctx context.Context) {
	drained := c.backlog.Drain(c.drainBatch, func(e BacklogEntry) bool {
		if err := c.post(ctx, e.URL, e.Payload); err != nil {
			c.lastFailure = time.Now()
			c.lastErr = err
			c.logger.Debug("backlog retry failed",
				"destination", c.id,
				"queued_at", e.QueuedAt,
				"error", err,
			)
			c.record(ctx, Event{Kind: EventFailed, URL: e.URL, Bytes: len(e.Payload), Err: err})
			return false
		}
		c.record(ctx, Event{Kind: EventDrained, URL: e.URL, Bytes: len(e.Payload)})
		return true
	})

	c.metrics.addDrained(c.id, drained)
	c.metrics.setDepth(c.id, c.backlog.Len())
	if drained > 0 {
		c.logger.Debug("drained backlog",
			"destination", c.id,
			"items", drained,
			"remaining", c.backlog.Len(),
		)
	}
}

// post performs one write. It fails on a transport error, a missing
// response or a non-2xx status. The response body is always closed and,
// on success, drained first so the connection can be reused.
func (c *Client) post(ctx context.Context, endpoint, payload string) error {
	start := time.Now()
	resp, err := c.transport.Post(ctx, endpoint, payload, c.header)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}

	ok := err == nil && resp != nil && resp.StatusCode >= 200 && resp.StatusCode < 300
	c.metrics.observeWrite(c.id, ok, time.Since(start).Seconds())

	switch {
	case err != nil:
		return err
	case resp == nil:
		return ErrNoResponse
	case !ok:
		return fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode)
	}

	if resp.Body != nil {
		_, _ = io.Copy(io.Discard, resp.Body)
	}
	return nil
}

// record forwards an event to the recorder, if any.
// The caller must hold c.mu.
func (c *Client) record(ctx context.Context, e Event) {
	if c.recorder == nil {
		return
	}
	e.Destination = c.id
	e.BacklogDepth = c.backlog.Len()
	if err := c.recorder.RecordDelivery(ctx, e); err != nil {
		c.logger.Warn("recording delivery event failed",
			"destination", c.id,
			"kind", e.Kind,
			"error", err,
		)
	}
}

// timestampSuffix resolves the suffix shared by every record of one publish.
// The caller must hold c.mu.
func (c *Client) timestampSuffix() string {
	return clock.Suffix(c.clock)
}

// Status is a snapshot of a destination for reporting.
type Status struct {
	ID              string    `json:"id"`
	URL             string    `json:"url"`
	BacklogDepth    int       `json:"backlog_depth"`
	BacklogMaxDepth int       `json:"backlog_max_depth"`
	DrainBatch      int       `json:"drain_batch"`
	LastSuccess     time.Time `json:"last_success,omitempty"`
	LastFailure     time.Time `json:"last_failure,omitempty"`
	LastError       string    `json:"last_error,omitempty"`
}

// Status returns the current state of the destination.
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Status{
		ID:              c.id,
		URL:             c.serverURL,
		BacklogDepth:    c.backlog.Len(),
		BacklogMaxDepth: c.backlog.MaxDepth(),
		DrainBatch:      c.drainBatch,
		LastSuccess:     c.lastSuccess,
		LastFailure:     c.lastFailure,
	}
	if c.lastErr != nil {
		s.LastError = c.lastErr.Error()
	}
	return s
}

// BacklogEntries returns a copy of the queued payloads, oldest first.
func (c *Client) BacklogEntries() []BacklogEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.backlog.Entries()
}

// HealthCheck pings the server.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (c *Client) HealthCheck(ctx context.Context) error {
	checkCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	healthy, err := c.influx.Ping(checkCtx)
	if err != nil {
		return fmt.Errorf("influxdb health check failed: %w", err)
	}
	if !healthy {
		return ErrUnhealthy
	}

	return nil
}

// Close releases idle connections held by the ping client. Queued payloads
// are discarded.
func (c *Client) Close() error {
	if c.influx != nil {
		c.influx.Close()
	}
	return nil
}
