package sensor

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Kind identifies the value type a sensor produces.
type Kind string

// Sensor kinds.
const (
	KindBinary  Kind = "binary"
	KindNumeric Kind = "numeric"
	KindText    Kind = "text"
)

// Sensor is the behaviour shared by every sensor kind.
type Sensor interface {
	// ObjectID returns the stable identifier, used as the default field key.
	ObjectID() string

	// Kind reports the sensor's value type.
	Kind() Kind

	// HasState reports whether at least one sample has been received.
	HasState() bool

	// UpdateFromPayload parses a transport payload and records it as the
	// new sample. Returns ErrInvalidPayload if it cannot be parsed.
	UpdateFromPayload(payload string) error

	// Snapshot returns a copy of the current state for reporting.
	Snapshot() Snapshot
}

// Snapshot is a point-in-time copy of a sensor's state.
type Snapshot struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	HasState  bool      `json:"has_state"`
	State     any       `json:"state,omitempty"`
	RawState  any       `json:"raw_state,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// sample holds the bookkeeping common to all kinds.
type sample struct {
	mu        sync.RWMutex
	id        string
	has       bool
	updatedAt time.Time
}

func (s *sample) ObjectID() string { return s.id }

func (s *sample) HasState() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.has
}

// Binary is an on/off sensor.
type Binary struct {
	sample
	state      bool
	payloadOn  string
	payloadOff string
}

// NewBinary creates a binary sensor. payloadOn and payloadOff, when
// non-empty, are matched exactly before the generic true/false forms.
func NewBinary(id, payloadOn, payloadOff string) *Binary {
	return &Binary{sample: sample{id: id}, payloadOn: payloadOn, payloadOff: payloadOff}
}

// Kind implements Sensor.
func (s *Binary) Kind() Kind { return KindBinary }

// State returns the last recorded state.
func (s *Binary) State() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Update records a new state.
func (s *Binary) Update(state bool) {
	s.mu.Lock()
	s.state = state
	s.has = true
	s.updatedAt = time.Now()
	s.mu.Unlock()
}

// UpdateFromPayload implements Sensor.
//
// Recognised payloads: the configured on/off payloads, then (case-insensitive)
// true/false, on/off, 1/0.
func (s *Binary) UpdateFromPayload(payload string) error {
	p := strings.TrimSpace(payload)
	switch {
	case s.payloadOn != "" && p == s.payloadOn:
		s.Update(true)
		return nil
	case s.payloadOff != "" && p == s.payloadOff:
		s.Update(false)
		return nil
	}

	switch strings.ToLower(p) {
	case "true", "on", "1":
		s.Update(true)
	case "false", "off", "0":
		s.Update(false)
	default:
		return fmt.Errorf("%w: %q is not a binary state", ErrInvalidPayload, payload)
	}
	return nil
}

// Snapshot implements Sensor.
func (s *Binary) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{ID: s.id, Kind: KindBinary, HasState: s.has, UpdatedAt: s.updatedAt}
	if s.has {
		snap.State = s.state
		snap.RawState = s.state
	}
	return snap
}

// Calibration is the linear transform applied to numeric readings.
// The zero value leaves readings unchanged.
type Calibration struct {
	Multiply float64
	Offset   float64
}

func (c Calibration) apply(raw float64) float64 {
	m := c.Multiply
	if m == 0 {
		m = 1
	}
	return raw*m + c.Offset
}

// Numeric is a sensor with a raw reading and a calibrated value.
type Numeric struct {
	sample
	cal   Calibration
	raw   float64
	state float64
}

// NewNumeric creates a numeric sensor. A zero Multiply is treated as 1.
func NewNumeric(id string, cal Calibration) *Numeric {
	return &Numeric{sample: sample{id: id}, cal: cal}
}

// Kind implements Sensor.
func (s *Numeric) Kind() Kind { return KindNumeric }

// State returns the calibrated value.
func (s *Numeric) State() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// RawState returns the reading as received.
func (s *Numeric) RawState() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.raw
}

// Update records a raw reading and recomputes the calibrated value.
func (s *Numeric) Update(raw float64) {
	s.mu.Lock()
	s.raw = raw
	s.state = s.cal.apply(raw)
	s.has = true
	s.updatedAt = time.Now()
	s.mu.Unlock()
}

// UpdateFromPayload implements Sensor.
func (s *Numeric) UpdateFromPayload(payload string) error {
	v, err := strconv.ParseFloat(strings.TrimSpace(payload), 64)
	if err != nil {
		return fmt.Errorf("%w: %q is not a number", ErrInvalidPayload, payload)
	}
	s.Update(v)
	return nil
}

// Snapshot implements Sensor.
func (s *Numeric) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{ID: s.id, Kind: KindNumeric, HasState: s.has, UpdatedAt: s.updatedAt}
	if s.has {
		snap.State = s.state
		snap.RawState = s.raw
	}
	return snap
}

// Text is a sensor with a raw string and a processed value.
type Text struct {
	sample
	mapping map[string]string
	raw     string
	state   string
}

// NewText creates a text sensor. Raw values found in mapping are replaced
// by the mapped value; others pass through unchanged.
func NewText(id string, mapping map[string]string) *Text {
	m := make(map[string]string, len(mapping))
	for k, v := range mapping {
		m[k] = v
	}
	return &Text{sample: sample{id: id}, mapping: m}
}

// Kind implements Sensor.
func (s *Text) Kind() Kind { return KindText }

// State returns the processed value.
func (s *Text) State() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// RawState returns the value as received.
func (s *Text) RawState() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.raw
}

// Update records a raw value and derives the processed one.
func (s *Text) Update(raw string) {
	state := raw
	if mapped, ok := s.mapping[raw]; ok {
		state = mapped
	}

	s.mu.Lock()
	s.raw = raw
	s.state = state
	s.has = true
	s.updatedAt = time.Now()
	s.mu.Unlock()
}

// UpdateFromPayload implements Sensor. Text payloads are taken verbatim.
func (s *Text) UpdateFromPayload(payload string) error {
	s.Update(payload)
	return nil
}

// Snapshot implements Sensor.
func (s *Text) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{ID: s.id, Kind: KindText, HasState: s.has, UpdatedAt: s.updatedAt}
	if s.has {
		snap.State = s.state
		snap.RawState = s.raw
	}
	return snap
}
