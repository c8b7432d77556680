package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for linepush.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Logging  LoggingConfig      `yaml:"logging"`
	MQTT     MQTTConfig         `yaml:"mqtt"`
	Database DatabaseConfig     `yaml:"database"`
	API      APIConfig          `yaml:"api"`
	Sensors  SensorsConfig      `yaml:"sensors"`
	InfluxDB []InfluxDBConfig   `yaml:"influxdb"`
	Publish  []PublishJobConfig `yaml:"publish"`
}

// DatabaseConfig contains SQLite settings for the delivery audit log.
type DatabaseConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Path          string `yaml:"path"`
	WALMode       bool   `yaml:"wal_mode"`
	BusyTimeout   int    `yaml:"busy_timeout"`
	RetentionDays int    `yaml:"retention_days"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains HTTP status API settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SensorsConfig declares the sensors fed from MQTT.
type SensorsConfig struct {
	Binary  []BinarySensorConfig  `yaml:"binary"`
	Numeric []NumericSensorConfig `yaml:"numeric"`
	Text    []TextSensorConfig    `yaml:"text"`
}

// BinarySensorConfig declares an on/off sensor.
type BinarySensorConfig struct {
	ID         string `yaml:"id"`
	Topic      string `yaml:"topic"`
	JSONKey    string `yaml:"json_key"`
	PayloadOn  string `yaml:"payload_on"`
	PayloadOff string `yaml:"payload_off"`
}

// NumericSensorConfig declares a numeric sensor with a linear calibration.
type NumericSensorConfig struct {
	ID       string  `yaml:"id"`
	Topic    string  `yaml:"topic"`
	JSONKey  string  `yaml:"json_key"`
	Multiply float64 `yaml:"multiply"`
	Offset   float64 `yaml:"offset"`
}

// TextSensorConfig declares a text sensor with an optional value map.
type TextSensorConfig struct {
	ID      string            `yaml:"id"`
	Topic   string            `yaml:"topic"`
	JSONKey string            `yaml:"json_key"`
	Map     map[string]string `yaml:"map"`
}

// InfluxDBConfig describes one InfluxDB v2 destination and the measurements
// written to it.
type InfluxDBConfig struct {
	ID                string              `yaml:"id"`
	URL               string              `yaml:"url"`
	Organization      string              `yaml:"organization"`
	Token             string              `yaml:"token"`
	Timeout           int                 `yaml:"timeout"`
	TimeSource        string              `yaml:"time_source"`
	Tags              map[string]string   `yaml:"tags"`
	BacklogMaxDepth   int                 `yaml:"backlog_max_depth"`
	BacklogDrainBatch int                 `yaml:"backlog_drain_batch"`
	Measurements      []MeasurementConfig `yaml:"measurements"`
}

// TimeoutDuration returns the HTTP client timeout as a Duration.
func (d InfluxDBConfig) TimeoutDuration() time.Duration {
	return time.Duration(d.Timeout) * time.Second
}

// MeasurementConfig describes one line protocol record.
type MeasurementConfig struct {
	ID            string               `yaml:"id"`
	Bucket        string               `yaml:"bucket"`
	Name          string               `yaml:"name"`
	Tags          map[string]string    `yaml:"tags"`
	BinarySensors []BinaryFieldConfig  `yaml:"binary_sensors"`
	Sensors       []NumericFieldConfig `yaml:"sensors"`
	TextSensors   []TextFieldConfig    `yaml:"text_sensors"`
}

// FieldCount returns the number of configured fields.
func (m MeasurementConfig) FieldCount() int {
	return len(m.BinarySensors) + len(m.Sensors) + len(m.TextSensors)
}

// BinaryFieldConfig maps a binary sensor into a measurement.
type BinaryFieldConfig struct {
	SensorID string `yaml:"sensor_id"`
	Name     string `yaml:"name"`
}

// NumericFieldConfig maps a numeric sensor into a measurement.
// AccuracyDecimals is nil when not configured.
type NumericFieldConfig struct {
	SensorID         string `yaml:"sensor_id"`
	Name             string `yaml:"name"`
	Format           string `yaml:"format"`
	AccuracyDecimals *int   `yaml:"accuracy_decimals"`
	RawState         bool   `yaml:"raw_state"`
}

// TextFieldConfig maps a text sensor into a measurement.
type TextFieldConfig struct {
	SensorID string `yaml:"sensor_id"`
	Name     string `yaml:"name"`
	RawState bool   `yaml:"raw_state"`
}

// PublishJobConfig schedules publication of one or more measurements.
type PublishJobConfig struct {
	Name         string   `yaml:"name"`
	Schedule     string   `yaml:"schedule"`
	Measurements []string `yaml:"measurements"`
	Batch        bool     `yaml:"batch"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Per-destination defaults for values the file left unset
//  4. Environment variables (override file values)
//
// Environment variables follow the pattern: LINEPUSH_SECTION_KEY
// For example: LINEPUSH_DATABASE_PATH, LINEPUSH_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse builds a Config from YAML bytes using the same steps as Load.
func Parse(data []byte) (*Config, error) {
	cfg := defaultConfig()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyDestinationDefaults(cfg)
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default destination values.
const (
	defaultInfluxTimeout     = 10
	defaultBacklogDrainBatch = 1
)

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		MQTT: MQTTConfig{
			Enabled: true,
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "linepush",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Database: DatabaseConfig{
			Enabled:       true,
			Path:          "./data/linepush.db",
			WALMode:       true,
			BusyTimeout:   5,
			RetentionDays: 30,
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
	}
}

// applyDestinationDefaults fills per-destination and per-measurement values
// that cannot be expressed in defaultConfig because they live in lists.
func applyDestinationDefaults(cfg *Config) {
	for i := range cfg.InfluxDB {
		d := &cfg.InfluxDB[i]
		if d.Timeout == 0 {
			d.Timeout = defaultInfluxTimeout
		}
		if d.TimeSource == "" {
			d.TimeSource = "system"
		}
		if d.BacklogMaxDepth > 0 && d.BacklogDrainBatch == 0 {
			d.BacklogDrainBatch = defaultBacklogDrainBatch
		}
		for j := range d.Measurements {
			m := &d.Measurements[j]
			if m.Name == "" {
				m.Name = m.ID
			}
		}
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: LINEPUSH_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Logging
	if v := os.Getenv("LINEPUSH_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Database
	if v := os.Getenv("LINEPUSH_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("LINEPUSH_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("LINEPUSH_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("LINEPUSH_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("LINEPUSH_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB - only fills destinations that have no token of their own
	if v := os.Getenv("LINEPUSH_INFLUXDB_TOKEN"); v != "" {
		for i := range cfg.InfluxDB {
			if cfg.InfluxDB[i].Token == "" {
				cfg.InfluxDB[i].Token = v
			}
		}
	}
}

// FindMeasurement returns the measurement with the given ID and the
// destination that owns it.
func (c *Config) FindMeasurement(id string) (*InfluxDBConfig, *MeasurementConfig, bool) {
	for i := range c.InfluxDB {
		d := &c.InfluxDB[i]
		for j := range d.Measurements {
			if d.Measurements[j].ID == id {
				return d, &d.Measurements[j], true
			}
		}
	}
	return nil, nil, false
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
