package config

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/nerrad567/linepush/internal/lineproto"
)

// Backlog bounds accepted in configuration.
const (
	maxBacklogDepth      = 200
	maxBacklogDrainBatch = 20
)

// Validate checks the configuration for errors.
//
// Every problem found is collected, so one run reports all of them.
//
// Returns:
//   - error: Description of validation failures, or nil if valid
func (c *Config) Validate() error {
	v := &validator{}

	// Database validation
	if c.Database.Enabled && c.Database.Path == "" {
		v.add("database.path is required")
	}
	if c.Database.RetentionDays < 0 {
		v.add("database.retention_days must not be negative")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		v.add("mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled && c.MQTT.Broker.Host == "" {
		v.add("mqtt.broker.host is required")
	}

	// API validation
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		v.add("api.port must be between 1 and 65535")
	}

	kinds := c.validateSensors(v)
	if len(kinds) > 0 && !c.MQTT.Enabled {
		v.add("sensors require mqtt.enabled")
	}
	c.validateDestinations(v, kinds)
	c.validatePublishJobs(v)

	return v.err()
}

type validator struct {
	errs []string
}

func (v *validator) add(format string, args ...any) {
	v.errs = append(v.errs, fmt.Sprintf(format, args...))
}

func (v *validator) err() error {
	if len(v.errs) == 0 {
		return nil
	}
	return fmt.Errorf("configuration errors: %s", strings.Join(v.errs, "; "))
}

// validateSensors checks sensor declarations and returns the kind of every
// declared sensor keyed by ID.
func (c *Config) validateSensors(v *validator) map[string]string {
	kinds := make(map[string]string)

	declare := func(kind, id, topic string) {
		path := "sensors." + kind
		switch {
		case id == "":
			v.add("%s: id is required", path)
			return
		case kinds[id] != "":
			v.add("%s: duplicate sensor id %q", path, id)
			return
		}
		if topic == "" {
			v.add("%s[%s].topic is required", path, id)
		}
		kinds[id] = kind
	}

	for _, s := range c.Sensors.Binary {
		declare("binary", s.ID, s.Topic)
		if s.PayloadOn != "" && s.PayloadOn == s.PayloadOff {
			v.add("sensors.binary[%s]: payload_on and payload_off must differ", s.ID)
		}
	}
	for _, s := range c.Sensors.Numeric {
		declare("numeric", s.ID, s.Topic)
	}
	for _, s := range c.Sensors.Text {
		declare("text", s.ID, s.Topic)
	}

	return kinds
}

func (c *Config) validateDestinations(v *validator, kinds map[string]string) {
	if len(c.InfluxDB) == 0 {
		v.add("influxdb: at least one destination is required")
	}

	destIDs := make(map[string]bool)
	measIDs := make(map[string]bool)

	for i, d := range c.InfluxDB {
		path := fmt.Sprintf("influxdb[%d]", i)
		if d.ID != "" {
			path = "influxdb[" + d.ID + "]"
		}

		switch {
		case d.ID == "":
			v.add("%s.id is required", path)
		case destIDs[d.ID]:
			v.add("%s: duplicate destination id", path)
		}
		destIDs[d.ID] = true

		if u, err := url.Parse(d.URL); err != nil || d.URL == "" || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			v.add("%s.url must be an http or https URL", path)
		}
		if d.Organization == "" {
			v.add("%s.organization is required", path)
		}
		if d.Timeout <= 0 {
			v.add("%s.timeout must be positive", path)
		}
		if d.TimeSource != "system" && d.TimeSource != "none" {
			v.add("%s.time_source must be system or none", path)
		}
		validateTags(v, path, d.Tags)

		// A queued record is replayed later; without a timestamp it would be
		// stored at replay time.
		switch {
		case d.BacklogMaxDepth < 0 || d.BacklogMaxDepth > maxBacklogDepth:
			v.add("%s.backlog_max_depth must be between 0 (disabled) and %d", path, maxBacklogDepth)
		case d.BacklogMaxDepth > 0 && d.TimeSource == "none":
			v.add("%s.backlog_max_depth requires a time source", path)
		}
		switch {
		case d.BacklogDrainBatch != 0 && d.BacklogMaxDepth == 0:
			v.add("%s.backlog_drain_batch requires backlog_max_depth", path)
		case d.BacklogDrainBatch < 0 || d.BacklogDrainBatch > maxBacklogDrainBatch:
			v.add("%s.backlog_drain_batch must be between 0 (default) and %d", path, maxBacklogDrainBatch)
		}

		for _, m := range d.Measurements {
			validateMeasurement(v, path, m, kinds, measIDs)
		}
	}
}

func validateMeasurement(v *validator, destPath string, m MeasurementConfig, kinds map[string]string, seen map[string]bool) {
	path := destPath + ".measurements[" + m.ID + "]"

	switch {
	case m.ID == "":
		v.add("%s.measurements: id is required", destPath)
	case seen[m.ID]:
		v.add("%s: duplicate measurement id", path)
	}
	seen[m.ID] = true

	if m.Bucket == "" {
		v.add("%s.bucket is required", path)
	}
	if err := lineproto.ValidateIdentifier(m.Name); err != nil {
		v.add("%s.name: %v", path, err)
	}
	validateTags(v, path, m.Tags)

	if m.FieldCount() == 0 {
		v.add("%s: at least one field is required", path)
	}

	keys := make(map[string]bool)
	field := func(kind, sensorID, name string) {
		if kinds[sensorID] == "" {
			v.add("%s: unknown sensor %q", path, sensorID)
		} else if kinds[sensorID] != kind {
			v.add("%s: sensor %q is %s, not %s", path, sensorID, kinds[sensorID], kind)
		}
		key := name
		if key == "" {
			key = sensorID
		}
		if err := lineproto.ValidateIdentifier(key); err != nil {
			v.add("%s: field %q: %v", path, key, err)
		}
		if keys[key] {
			v.add("%s: duplicate field %q", path, key)
		}
		keys[key] = true
	}

	for _, f := range m.BinarySensors {
		field("binary", f.SensorID, f.Name)
	}
	for _, f := range m.Sensors {
		field("numeric", f.SensorID, f.Name)
		switch f.Format {
		case "", "float", "integer", "unsigned_integer":
		default:
			v.add("%s: field %q: format must be float, integer or unsigned_integer", path, f.SensorID)
		}
		if f.AccuracyDecimals != nil {
			if lineproto.ParseNumberFormat(f.Format) != lineproto.FormatFloat {
				v.add("%s: field %q: accuracy_decimals is only valid with float format", path, f.SensorID)
			}
			if *f.AccuracyDecimals < 0 {
				v.add("%s: field %q: accuracy_decimals must not be negative", path, f.SensorID)
			}
		}
	}
	for _, f := range m.TextSensors {
		field("text", f.SensorID, f.Name)
	}
}

func validateTags(v *validator, path string, tags map[string]string) {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if err := lineproto.ValidateIdentifier(k); err != nil {
			v.add("%s.tags: %v", path, err)
		}
		if tags[k] == "" {
			v.add("%s.tags[%s]: value is required", path, k)
		}
	}
}

func (c *Config) validatePublishJobs(v *validator) {
	names := make(map[string]bool)

	for i, job := range c.Publish {
		path := fmt.Sprintf("publish[%d]", i)
		if job.Name != "" {
			path = "publish[" + job.Name + "]"
		}

		switch {
		case job.Name == "":
			v.add("%s.name is required", path)
		case names[job.Name]:
			v.add("%s: duplicate job name", path)
		}
		names[job.Name] = true

		if _, err := cron.ParseStandard(job.Schedule); err != nil {
			v.add("%s.schedule: %v", path, err)
		}
		if len(job.Measurements) == 0 {
			v.add("%s.measurements: at least one measurement is required", path)
		}

		var firstDest *InfluxDBConfig
		var firstBucket string
		for j, id := range job.Measurements {
			d, m, ok := c.FindMeasurement(id)
			if !ok {
				v.add("%s: unknown measurement %q", path, id)
				continue
			}
			if !job.Batch {
				continue
			}
			if j == 0 || firstDest == nil {
				firstDest, firstBucket = d, m.Bucket
				continue
			}
			if d != firstDest {
				v.add("%s: batch measurement %q targets a different destination", path, id)
			} else if m.Bucket != firstBucket {
				v.add("%s: batch measurement %q targets a different bucket", path, id)
			}
		}
	}
}
