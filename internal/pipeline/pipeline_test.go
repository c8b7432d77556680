package pipeline

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/nerrad567/linepush/internal/clock"
	"github.com/nerrad567/linepush/internal/infrastructure/config"
	"github.com/nerrad567/linepush/internal/infrastructure/influxdb"
	"github.com/nerrad567/linepush/internal/infrastructure/mqtt"
	"github.com/nerrad567/linepush/internal/sensor"
)

const pipelineYAML = `
database:
  path: "/tmp/linepush-test.db"
sensors:
  binary:
    - id: door_open
      topic: home/door
      payload_on: OPEN
      payload_off: CLOSED
  numeric:
    - id: boiler_temp
      topic: home/boiler
      json_key: temperature
      multiply: 0.1
  text:
    - id: boiler_mode
      topic: home/boiler
      json_key: mode
      map:
        "1": heating
influxdb:
  - id: main
    url: http://influx.local:8086/
    organization: home
    token: secret
    tags:
      site: cabin
      room: attic
    backlog_max_depth: 2
    measurements:
      - id: climate
        bucket: sensors
        tags:
          room: kitchen
        binary_sensors: [door_open]
        sensors:
          - sensor_id: boiler_temp
            name: temp
            accuracy_decimals: 1
        text_sensors: [boiler_mode]
      - id: boiler
        bucket: sensors
        name: boiler state
        sensors:
          - sensor_id: boiler_temp
            format: integer
            raw_state: true
  - id: backup
    url: http://backup.local:8086
    organization: home
    measurements:
      - id: door
        bucket: doors
        binary_sensors: [door_open]
`

// transport answers every post with the next scripted error, then 204.
type transport struct {
	mu    sync.Mutex
	fail  []error
	posts []post
}

type post struct {
	url  string
	body string
}

func (t *transport) Post(_ context.Context, url, body string, _ http.Header) (*http.Response, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.posts = append(t.posts, post{url: url, body: body})
	if len(t.fail) > 0 {
		err := t.fail[0]
		t.fail = t.fail[1:]
		return nil, err
	}
	return &http.Response{StatusCode: http.StatusNoContent, Body: io.NopCloser(strings.NewReader(""))}, nil
}

type subscriber struct {
	handlers map[string]mqtt.MessageHandler
}

func (s *subscriber) Subscribe(topic string, _ byte, h mqtt.MessageHandler) error {
	if _, dup := s.handlers[topic]; dup {
		return errors.New("subscribed twice")
	}
	s.handlers[topic] = h
	return nil
}

func (s *subscriber) deliver(t *testing.T, topic, payload string) {
	t.Helper()
	h, ok := s.handlers[topic]
	if !ok {
		t.Fatalf("no subscription for %s", topic)
	}
	if err := h(topic, []byte(payload)); err != nil {
		t.Fatalf("handler(%s) error = %v", topic, err)
	}
}

type statusSink struct {
	topics []string
	last   influxdb.Status
}

func (s *statusSink) PublishJSON(topic string, v any) error {
	s.topics = append(s.topics, topic)
	s.last = v.(influxdb.Status)
	return nil
}

type recorder struct {
	events []influxdb.Event
}

func (r *recorder) RecordDelivery(_ context.Context, e influxdb.Event) error {
	r.events = append(r.events, e)
	return nil
}

type harness struct {
	p         *Pipeline
	sub       *subscriber
	transport *transport
	status    *statusSink
	recorder  *recorder
	reg       *prometheus.Registry
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	cfg, err := config.Parse([]byte(pipelineYAML))
	if err != nil {
		t.Fatalf("config.Parse() error = %v", err)
	}

	h := &harness{
		sub:       &subscriber{handlers: make(map[string]mqtt.MessageHandler)},
		transport: &transport{},
		status:    &statusSink{},
		recorder:  &recorder{},
		reg:       prometheus.NewRegistry(),
	}

	h.p, err = Build(cfg, Deps{
		Subscriber: h.sub,
		Status:     h.status,
		Metrics:    influxdb.NewMetrics(h.reg),
		Recorder:   h.recorder,
		Transport:  h.transport,
		Clock:      clock.Fixed(time.Unix(1700000000, 0)),
	})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	t.Cleanup(func() { h.p.Close() }) //nolint:errcheck // Test cleanup

	if err := h.p.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return h
}

// feed gives every sensor a state.
func (h *harness) feed(t *testing.T) {
	t.Helper()
	h.sub.deliver(t, "home/door", "OPEN")
	h.sub.deliver(t, "home/boiler", `{"temperature": 215, "mode": 1}`)
}

const (
	climateLine = "climate,site=cabin,room=kitchen door_open=1i,temp=21.5,boiler_mode=\"heating\" 1700000000\n"
	boilerLine  = "boiler\\ state,room=attic,site=cabin boiler_temp=215i 1700000000\n"
	sensorsURL  = "http://influx.local:8086/api/v2/write?org=home&precision=s&bucket=sensors"
)

func TestBuild_Assembly(t *testing.T) {
	h := newHarness(t)

	if got := h.p.Registry().Len(); got != 3 {
		t.Errorf("Registry().Len() = %d, want 3", got)
	}

	topics := h.p.Topics()
	if len(topics) != 2 || topics[0] != "home/boiler" || topics[1] != "home/door" {
		t.Errorf("Topics() = %v, want [home/boiler home/door]", topics)
	}
	if len(h.sub.handlers) != 2 {
		t.Errorf("subscriptions = %d, want 2 (shared topic subscribed once)", len(h.sub.handlers))
	}

	var dests []string
	for _, c := range h.p.Destinations() {
		dests = append(dests, c.ID())
	}
	if strings.Join(dests, ",") != "main,backup" {
		t.Errorf("Destinations() = %v, want [main backup]", dests)
	}

	var meas []string
	for _, m := range h.p.Measurements() {
		meas = append(meas, m.ID())
	}
	if strings.Join(meas, ",") != "climate,boiler,door" {
		t.Errorf("Measurements() = %v, want [climate boiler door]", meas)
	}

	m, err := h.p.Measurement("door")
	if err != nil {
		t.Fatalf("Measurement(door) error = %v", err)
	}
	if m.Client().ID() != "backup" || m.Bucket() != "doors" {
		t.Errorf("door measurement = %s/%s, want backup/doors", m.Client().ID(), m.Bucket())
	}

	if _, err := h.p.Measurement("nope"); !errors.Is(err, ErrUnknownMeasurement) {
		t.Errorf("Measurement(nope) error = %v, want ErrUnknownMeasurement", err)
	}
	if _, err := h.p.Destination("nope"); !errors.Is(err, ErrUnknownDestination) {
		t.Errorf("Destination(nope) error = %v, want ErrUnknownDestination", err)
	}
}

func TestPreview(t *testing.T) {
	h := newHarness(t)

	got, err := h.p.Preview("climate")
	if err != nil {
		t.Fatalf("Preview() error = %v", err)
	}
	if want := "climate,site=cabin,room=kitchen 1700000000\n"; got != want {
		t.Errorf("Preview() before any sample = %q, want %q", got, want)
	}

	h.feed(t)

	if got, _ := h.p.Preview("climate"); got != climateLine {
		t.Errorf("Preview(climate) = %q, want %q", got, climateLine)
	}
	if got, _ := h.p.Preview("boiler"); got != boilerLine {
		t.Errorf("Preview(boiler) = %q, want %q", got, boilerLine)
	}
	if _, err := h.p.Preview("nope"); !errors.Is(err, ErrUnknownMeasurement) {
		t.Errorf("Preview(nope) error = %v, want ErrUnknownMeasurement", err)
	}
	if len(h.transport.posts) != 0 {
		t.Errorf("Preview should not send, got %d posts", len(h.transport.posts))
	}
}

func TestPublish(t *testing.T) {
	h := newHarness(t)
	h.feed(t)

	if err := h.p.Publish(context.Background(), "climate"); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	if len(h.transport.posts) != 1 {
		t.Fatalf("posts = %d, want 1", len(h.transport.posts))
	}
	if p := h.transport.posts[0]; p.url != sensorsURL || p.body != climateLine {
		t.Errorf("post = %+v", p)
	}

	if len(h.status.topics) != 1 || h.status.topics[0] != "linepush/destination/main/status" {
		t.Errorf("status topics = %v", h.status.topics)
	}
	if h.status.last.BacklogDepth != 0 || h.status.last.LastSuccess.IsZero() {
		t.Errorf("status = %+v, want empty backlog and a last success", h.status.last)
	}

	if len(h.recorder.events) != 1 || h.recorder.events[0].Kind != influxdb.EventSent {
		t.Errorf("events = %+v, want one sent", h.recorder.events)
	}
	if n, err := testutil.GatherAndCount(h.reg, "linepush_influxdb_writes_total"); err != nil || n != 1 {
		t.Errorf("writes_total series = %d (%v), want 1", n, err)
	}
}

func TestPublish_FailureQueues(t *testing.T) {
	h := newHarness(t)
	h.feed(t)
	h.transport.fail = []error{errors.New("connection refused")}

	err := h.p.Publish(context.Background(), "climate")
	if !errors.Is(err, influxdb.ErrWriteFailed) {
		t.Fatalf("Publish() error = %v, want ErrWriteFailed", err)
	}
	if h.status.last.BacklogDepth != 1 || h.status.last.LastError == "" {
		t.Errorf("status = %+v, want depth 1 with last error", h.status.last)
	}

	// Next success drains the queued line.
	if err := h.p.Publish(context.Background(), "boiler"); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if len(h.transport.posts) != 3 {
		t.Fatalf("posts = %d, want 3 (fail, send, drain)", len(h.transport.posts))
	}
	if h.transport.posts[2].body != climateLine {
		t.Errorf("drained body = %q, want %q", h.transport.posts[2].body, climateLine)
	}
	if h.status.last.BacklogDepth != 0 {
		t.Errorf("status depth = %d, want 0 after drain", h.status.last.BacklogDepth)
	}
}

func TestPublish_UnknownMeasurement(t *testing.T) {
	h := newHarness(t)

	if err := h.p.Publish(context.Background(), "nope"); !errors.Is(err, ErrUnknownMeasurement) {
		t.Errorf("Publish(nope) error = %v, want ErrUnknownMeasurement", err)
	}
	if len(h.transport.posts) != 0 || len(h.status.topics) != 0 {
		t.Error("unknown measurement should neither send nor publish status")
	}
}

func TestPublishBatch(t *testing.T) {
	tests := []struct {
		name      string
		ids       []string
		wantErrs  []error
		wantPosts int
		wantBody  string
	}{
		{
			name:      "single payload",
			ids:       []string{"climate", "boiler"},
			wantPosts: 1,
			wantBody:  climateLine + boilerLine,
		},
		{
			name:      "unknown id reported, rest sent",
			ids:       []string{"climate", "nope"},
			wantErrs:  []error{ErrUnknownMeasurement},
			wantPosts: 1,
			wantBody:  climateLine,
		},
		{
			name:      "nothing known",
			ids:       []string{"nope"},
			wantErrs:  []error{ErrUnknownMeasurement, influxdb.ErrEmptyBatch},
			wantPosts: 0,
		},
		{
			name:      "other destination skipped",
			ids:       []string{"climate", "door"},
			wantErrs:  []error{influxdb.ErrMixedDestination},
			wantPosts: 1,
			wantBody:  climateLine,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.feed(t)

			err := h.p.PublishBatch(context.Background(), tt.ids)
			if len(tt.wantErrs) == 0 && err != nil {
				t.Fatalf("PublishBatch() error = %v", err)
			}
			for _, want := range tt.wantErrs {
				if !errors.Is(err, want) {
					t.Errorf("PublishBatch() error = %v, want %v", err, want)
				}
			}

			if len(h.transport.posts) != tt.wantPosts {
				t.Fatalf("posts = %d, want %d", len(h.transport.posts), tt.wantPosts)
			}
			if tt.wantPosts > 0 && h.transport.posts[0].body != tt.wantBody {
				t.Errorf("body = %q, want %q", h.transport.posts[0].body, tt.wantBody)
			}
		})
	}
}

func TestBuild_InvalidDestination(t *testing.T) {
	cfg, err := config.Parse([]byte(pipelineYAML))
	if err != nil {
		t.Fatalf("config.Parse() error = %v", err)
	}
	cfg.InfluxDB[1].URL = "ftp://backup.local"

	if _, err := Build(cfg, Deps{}); !errors.Is(err, influxdb.ErrInvalidURL) {
		t.Errorf("Build() error = %v, want ErrInvalidURL", err)
	}
}

func TestBuild_WrongSensorKind(t *testing.T) {
	cfg, err := config.Parse([]byte(pipelineYAML))
	if err != nil {
		t.Fatalf("config.Parse() error = %v", err)
	}
	cfg.InfluxDB[1].Measurements[0].BinarySensors[0].SensorID = "boiler_temp"

	if _, err := Build(cfg, Deps{}); !errors.Is(err, sensor.ErrWrongKind) {
		t.Errorf("Build() error = %v, want ErrWrongKind", err)
	}
}

func TestStart_WithoutSubscriber(t *testing.T) {
	cfg, err := config.Parse([]byte(pipelineYAML))
	if err != nil {
		t.Fatalf("config.Parse() error = %v", err)
	}

	p, err := Build(cfg, Deps{})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	defer p.Close() //nolint:errcheck // Test cleanup

	if err := p.Start(); !errors.Is(err, ErrNoSubscriber) {
		t.Errorf("Start() error = %v, want ErrNoSubscriber", err)
	}
	if p.Topics() != nil {
		t.Errorf("Topics() = %v, want nil without a subscriber", p.Topics())
	}
}

func TestMergeTags(t *testing.T) {
	got := mergeTags(
		map[string]string{"site": "cabin", "room": "attic", "floor": "1"},
		map[string]string{"room": "kitchen", "area": "north"},
	)
	var parts []string
	for _, tag := range got {
		parts = append(parts, tag.Key+"="+tag.Value)
	}
	if want := "floor=1,site=cabin,area=north,room=kitchen"; strings.Join(parts, ",") != want {
		t.Errorf("mergeTags() = %v, want %s", parts, want)
	}

	if got := mergeTags(nil, nil); len(got) != 0 {
		t.Errorf("mergeTags(nil, nil) = %v, want empty", got)
	}
}
