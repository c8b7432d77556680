package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/nerrad567/linepush/internal/clock"
	"github.com/nerrad567/linepush/internal/infrastructure/config"
	"github.com/nerrad567/linepush/internal/infrastructure/influxdb"
	"github.com/nerrad567/linepush/internal/infrastructure/logging"
	"github.com/nerrad567/linepush/internal/infrastructure/mqtt"
	"github.com/nerrad567/linepush/internal/lineproto"
	"github.com/nerrad567/linepush/internal/sensor"
)

// StatusPublisher mirrors destination status to the message bus.
// *mqtt.Client satisfies it.
type StatusPublisher interface {
	PublishJSON(topic string, v any) error
}

// Deps carries the collaborators Build wires into the pipeline.
// Every field is optional.
type Deps struct {
	// Logger is the root logger; components log with a "component" attribute.
	Logger *logging.Logger

	// Subscriber receives sensor topic subscriptions (usually *mqtt.Client).
	Subscriber sensor.Subscriber

	// Status receives each destination's status after every publish.
	Status StatusPublisher

	// Metrics records delivery counters for every destination.
	Metrics *influxdb.Metrics

	// Recorder persists delivery events (usually an audit.Recorder).
	Recorder influxdb.EventRecorder

	// Transport replaces the HTTP transport of every destination.
	Transport influxdb.Transport

	// Clock replaces the configured time source of every destination.
	Clock clock.Clock
}

// Pipeline owns the sensors, destinations and measurements built from config.
//
// Thread Safety:
//   - All methods are safe for concurrent use. Publishing to one
//     destination is serialised by that destination's client.
type Pipeline struct {
	logger   *logging.Logger
	registry *sensor.Registry
	binder   *sensor.Binder
	status   StatusPublisher

	destinations map[string]*influxdb.Client
	destOrder    []string

	measurements map[string]*influxdb.Measurement
	measOrder    []string

	closeOnce sync.Once
}

// Build creates a Pipeline from a validated configuration.
//
// Parameters:
//   - cfg: Loaded and validated configuration
//   - deps: Optional collaborators (logger, MQTT, metrics, audit recorder)
//
// Returns:
//   - *Pipeline: Ready to Start and publish
//   - error: If a sensor, destination or measurement cannot be built
func Build(cfg *config.Config, deps Deps) (*Pipeline, error) {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	p := &Pipeline{
		logger:       logger.With("component", "pipeline"),
		registry:     sensor.NewRegistry(),
		status:       deps.Status,
		destinations: make(map[string]*influxdb.Client, len(cfg.InfluxDB)),
		measurements: make(map[string]*influxdb.Measurement),
	}

	if err := p.buildSensors(cfg.Sensors, deps.Subscriber, byte(cfg.MQTT.QoS), logger); err != nil { //nolint:gosec // qos validated 0..2
		return nil, err
	}

	for _, dc := range cfg.InfluxDB {
		client, err := newDestination(dc, deps, logger)
		if err != nil {
			p.Close() //nolint:errcheck // Best effort cleanup on error path
			return nil, err
		}
		p.destinations[dc.ID] = client
		p.destOrder = append(p.destOrder, dc.ID)

		for _, mc := range dc.Measurements {
			line, err := p.buildLine(dc, mc)
			if err != nil {
				p.Close() //nolint:errcheck // Best effort cleanup on error path
				return nil, fmt.Errorf("measurement %q: %w", mc.ID, err)
			}
			p.measurements[mc.ID] = client.NewMeasurement(mc.ID, mc.Bucket, line)
			p.measOrder = append(p.measOrder, mc.ID)
		}
	}

	p.logger.Info("pipeline built",
		"sensors", p.registry.Len(),
		"destinations", len(p.destOrder),
		"measurements", len(p.measOrder),
	)

	return p, nil
}

// buildSensors registers every configured sensor and binds its topic.
func (p *Pipeline) buildSensors(cfg config.SensorsConfig, sub sensor.Subscriber, qos byte, logger *logging.Logger) error {
	type binding struct {
		s       sensor.Sensor
		topic   string
		jsonKey string
	}

	var all []binding
	for _, c := range cfg.Binary {
		all = append(all, binding{sensor.NewBinary(c.ID, c.PayloadOn, c.PayloadOff), c.Topic, c.JSONKey})
	}
	for _, c := range cfg.Numeric {
		cal := sensor.Calibration{Multiply: c.Multiply, Offset: c.Offset}
		all = append(all, binding{sensor.NewNumeric(c.ID, cal), c.Topic, c.JSONKey})
	}
	for _, c := range cfg.Text {
		all = append(all, binding{sensor.NewText(c.ID, c.Map), c.Topic, c.JSONKey})
	}

	if sub != nil {
		p.binder = sensor.NewBinder(p.registry, sub, qos)
		p.binder.SetLogger(logger.With("component", "sensor"))
	}

	for _, b := range all {
		if err := p.registry.Add(b.s); err != nil {
			return fmt.Errorf("sensor %q: %w", b.s.ObjectID(), err)
		}
		if p.binder == nil {
			continue
		}
		if err := p.binder.Bind(sensor.Binding{
			SensorID: b.s.ObjectID(),
			Topic:    b.topic,
			JSONKey:  b.jsonKey,
		}); err != nil {
			return fmt.Errorf("sensor %q: %w", b.s.ObjectID(), err)
		}
	}

	return nil
}

// newDestination creates and wires the client for one destination.
func newDestination(dc config.InfluxDBConfig, deps Deps, logger *logging.Logger) (*influxdb.Client, error) {
	client, err := influxdb.New(dc)
	if err != nil {
		return nil, fmt.Errorf("destination %q: %w", dc.ID, err)
	}

	destLogger := logger.With("component", "influxdb", "destination", dc.ID)
	client.SetLogger(destLogger)
	if deps.Metrics != nil {
		client.SetMetrics(deps.Metrics)
	}
	if deps.Recorder != nil {
		client.SetRecorder(deps.Recorder)
	}
	if deps.Transport != nil {
		client.SetTransport(deps.Transport)
	}
	if deps.Clock != nil {
		client.SetClock(deps.Clock)
	}

	destLogger.Debug("destination configured",
		"url", dc.URL,
		"organization", dc.Organization,
		"token", logging.Redact(dc.Token),
		"backlog_max_depth", dc.BacklogMaxDepth,
	)
	return client, nil
}

// buildLine resolves every field of a measurement against the registry.
func (p *Pipeline) buildLine(dc config.InfluxDBConfig, mc config.MeasurementConfig) (*lineproto.Line, error) {
	line := lineproto.NewLine(lineproto.Prefix(mc.Name, mergeTags(dc.Tags, mc.Tags)...))

	for _, fc := range mc.BinarySensors {
		s, err := p.registry.Binary(fc.SensorID)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", fc.SensorID, err)
		}
		line.Add(lineproto.NewBinaryField(s, fc.Name))
	}

	for _, fc := range mc.Sensors {
		s, err := p.registry.Numeric(fc.SensorID)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", fc.SensorID, err)
		}
		decimals := -1
		if fc.AccuracyDecimals != nil {
			decimals = *fc.AccuracyDecimals
		}
		format := lineproto.ParseNumberFormat(fc.Format)
		line.Add(lineproto.NewNumericField(s, fc.Name, format, decimals, fc.RawState))
	}

	for _, fc := range mc.TextSensors {
		s, err := p.registry.Text(fc.SensorID)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", fc.SensorID, err)
		}
		line.Add(lineproto.NewTextField(s, fc.Name, fc.RawState))
	}

	return line, nil
}

// mergeTags returns destination tags followed by measurement tags, each
// group sorted by key. A measurement tag replaces a destination tag with
// the same key.
func mergeTags(destination, measurement map[string]string) []lineproto.Tag {
	tags := make([]lineproto.Tag, 0, len(destination)+len(measurement))
	for _, k := range sortedKeys(destination) {
		if _, overridden := measurement[k]; overridden {
			continue
		}
		tags = append(tags, lineproto.Tag{Key: k, Value: destination[k]})
	}
	for _, k := range sortedKeys(measurement) {
		tags = append(tags, lineproto.Tag{Key: k, Value: measurement[k]})
	}
	return tags
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Start subscribes every sensor topic. It is a no-op when no sensors are
// configured.
func (p *Pipeline) Start() error {
	if p.registry.Len() == 0 {
		return nil
	}
	if p.binder == nil {
		return ErrNoSubscriber
	}
	if err := p.binder.Start(); err != nil {
		return fmt.Errorf("binding sensors: %w", err)
	}
	return nil
}

// Publish sends one measurement to its destination.
//
// A write failure is returned wrapped in influxdb.ErrWriteFailed; the
// payload has already been queued or dropped per the destination's backlog
// policy.
func (p *Pipeline) Publish(ctx context.Context, id string) error {
	m, ok := p.measurements[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownMeasurement, id)
	}

	err := influxdb.Publish(ctx, m)
	p.publishStatus(m.Client())
	return err
}

// PublishBatch sends several measurements of one destination as a single
// payload. Unknown ids are reported in the returned error and the rest are
// still sent.
func (p *Pipeline) PublishBatch(ctx context.Context, ids []string) error {
	var (
		ms   []*influxdb.Measurement
		errs []error
	)
	for _, id := range ids {
		m, ok := p.measurements[id]
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownMeasurement, id))
			continue
		}
		ms = append(ms, m)
	}

	if len(ms) == 0 {
		errs = append(errs, influxdb.ErrEmptyBatch)
		return errors.Join(errs...)
	}

	if err := influxdb.PublishBatch(ctx, ms...); err != nil {
		errs = append(errs, err)
	}
	p.publishStatus(ms[0].Client())

	return errors.Join(errs...)
}

// publishStatus mirrors a destination's status when a publisher is set.
func (p *Pipeline) publishStatus(c *influxdb.Client) {
	if p.status == nil {
		return
	}
	if err := p.status.PublishJSON(mqtt.Topics{}.DestinationStatus(c.ID()), c.Status()); err != nil {
		p.logger.Debug("destination status not published",
			"destination", c.ID(),
			"error", err,
		)
	}
}

// Preview renders a measurement as it would be sent now, without sending.
func (p *Pipeline) Preview(id string) (string, error) {
	m, ok := p.measurements[id]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownMeasurement, id)
	}
	return m.Preview(), nil
}

// Registry returns the sensor registry.
func (p *Pipeline) Registry() *sensor.Registry {
	return p.registry
}

// Topics returns the subscribed sensor topics, sorted.
func (p *Pipeline) Topics() []string {
	if p.binder == nil {
		return nil
	}
	return p.binder.Topics()
}

// Destination returns the client for a destination id.
func (p *Pipeline) Destination(id string) (*influxdb.Client, error) {
	c, ok := p.destinations[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDestination, id)
	}
	return c, nil
}

// Destinations returns every destination client in configuration order.
func (p *Pipeline) Destinations() []*influxdb.Client {
	out := make([]*influxdb.Client, 0, len(p.destOrder))
	for _, id := range p.destOrder {
		out = append(out, p.destinations[id])
	}
	return out
}

// Measurement returns a measurement by id.
func (p *Pipeline) Measurement(id string) (*influxdb.Measurement, error) {
	m, ok := p.measurements[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMeasurement, id)
	}
	return m, nil
}

// Measurements returns every measurement in configuration order.
func (p *Pipeline) Measurements() []*influxdb.Measurement {
	out := make([]*influxdb.Measurement, 0, len(p.measOrder))
	for _, id := range p.measOrder {
		out = append(out, p.measurements[id])
	}
	return out
}

// HealthCheck pings every destination and returns the joined failures.
func (p *Pipeline) HealthCheck(ctx context.Context) error {
	var errs []error
	for _, id := range p.destOrder {
		if err := p.destinations[id].HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Errorf("destination %q: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// Close releases every destination client. Queued payloads are discarded.
func (p *Pipeline) Close() error {
	var errs []error
	p.closeOnce.Do(func() {
		for _, id := range p.destOrder {
			if err := p.destinations[id].Close(); err != nil {
				errs = append(errs, err)
			}
		}
	})
	return errors.Join(errs...)
}
