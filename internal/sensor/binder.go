package sensor

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/nerrad567/linepush/internal/infrastructure/mqtt"
)

// Logger defines the logging interface used by the Binder.
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

// Subscriber is the part of the MQTT client the binder needs.
// *mqtt.Client satisfies it.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Binding routes payloads from one MQTT topic into one sensor.
type Binding struct {
	SensorID string
	Topic    string

	// JSONKey, when set, selects a top-level key from a JSON object payload.
	// Empty means the whole payload is the value.
	JSONKey string
}

// Binder subscribes sensor topics and feeds received payloads into the
// registry's sensors. Several sensors may share one topic (typically with
// different JSON keys); the topic is subscribed once.
type Binder struct {
	registry *Registry
	sub      Subscriber
	qos      byte
	logger   Logger

	mu      sync.Mutex
	byTopic map[string][]Binding
}

// NewBinder creates a binder that subscribes with the given QoS.
func NewBinder(registry *Registry, sub Subscriber, qos byte) *Binder {
	return &Binder{
		registry: registry,
		sub:      sub,
		qos:      qos,
		logger:   noopLogger{},
		byTopic:  make(map[string][]Binding),
	}
}

// SetLogger sets the logger for the binder.
func (b *Binder) SetLogger(logger Logger) {
	b.logger = logger
}

// Bind registers a binding. The sensor must already be in the registry.
func (b *Binder) Bind(binding Binding) error {
	if binding.Topic == "" {
		return fmt.Errorf("sensor %s: %w", binding.SensorID, mqtt.ErrInvalidTopic)
	}
	if _, err := b.registry.Get(binding.SensorID); err != nil {
		return err
	}

	b.mu.Lock()
	b.byTopic[binding.Topic] = append(b.byTopic[binding.Topic], binding)
	b.mu.Unlock()
	return nil
}

// Topics returns the distinct bound topics, sorted.
func (b *Binder) Topics() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	topics := make([]string, 0, len(b.byTopic))
	for t := range b.byTopic {
		topics = append(topics, t)
	}
	sort.Strings(topics)
	return topics
}

// Start subscribes every bound topic. It stops at the first failed
// subscription. Returns ErrNotBound when nothing has been bound.
func (b *Binder) Start() error {
	topics := b.Topics()
	if len(topics) == 0 {
		return ErrNotBound
	}

	for _, topic := range topics {
		if err := b.sub.Subscribe(topic, b.qos, b.handle); err != nil {
			return fmt.Errorf("subscribing %s: %w", topic, err)
		}
	}

	b.logger.Info("sensor topics subscribed", "topics", len(topics))
	return nil
}

// handle dispatches one MQTT message to every sensor bound to its topic.
// Per-sensor failures are logged; the first one is returned to the MQTT
// client, which logs it again at warn level.
func (b *Binder) handle(topic string, payload []byte) error {
	b.mu.Lock()
	bindings := b.byTopic[topic]
	b.mu.Unlock()

	var firstErr error
	for _, binding := range bindings {
		if err := b.apply(binding, payload); err != nil {
			b.logger.Debug("sensor update rejected",
				"sensor", binding.SensorID,
				"topic", topic,
				"error", err,
			)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (b *Binder) apply(binding Binding, payload []byte) error {
	s, err := b.registry.Get(binding.SensorID)
	if err != nil {
		return err
	}

	value := string(payload)
	if binding.JSONKey != "" {
		value, err = extractJSONValue(payload, binding.JSONKey)
		if err != nil {
			return err
		}
	}

	return s.UpdateFromPayload(value)
}

// extractJSONValue returns the string form of a top-level key in a JSON
// object payload. Numbers keep their shortest representation and booleans
// become "true"/"false".
func extractJSONValue(payload []byte, key string) (string, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(payload, &obj); err != nil {
		return "", fmt.Errorf("%w: not a JSON object: %w", ErrInvalidPayload, err)
	}

	raw, ok := obj[key]
	if !ok {
		return "", fmt.Errorf("%w: key %q missing", ErrInvalidPayload, key)
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", fmt.Errorf("%w: key %q: %w", ErrInvalidPayload, key, err)
	}

	switch val := v.(type) {
	case string:
		return val, nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(val), nil
	case nil:
		return "", fmt.Errorf("%w: key %q is null", ErrInvalidPayload, key)
	default:
		return string(raw), nil
	}
}
