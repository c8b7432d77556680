package sensor

import (
	"fmt"
	"sort"
	"sync"
)

// Registry indexes sensors by object ID.
//
// All public methods are thread-safe.
type Registry struct {
	mu      sync.RWMutex
	sensors map[string]Sensor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sensors: make(map[string]Sensor)}
}

// Add registers a sensor. Returns ErrInvalidID for an empty ID and
// ErrExists if the ID is already taken.
func (r *Registry) Add(s Sensor) error {
	id := s.ObjectID()
	if id == "" {
		return ErrInvalidID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sensors[id]; ok {
		return fmt.Errorf("%w: %s", ErrExists, id)
	}
	r.sensors[id] = s
	return nil
}

// Get returns the sensor with the given ID or ErrNotFound.
func (r *Registry) Get(id string) (Sensor, error) {
	r.mu.RLock()
	s, ok := r.sensors[id]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s, nil
}

// Binary returns the binary sensor with the given ID.
func (r *Registry) Binary(id string) (*Binary, error) {
	return lookup[*Binary](r, id, KindBinary)
}

// Numeric returns the numeric sensor with the given ID.
func (r *Registry) Numeric(id string) (*Numeric, error) {
	return lookup[*Numeric](r, id, KindNumeric)
}

// Text returns the text sensor with the given ID.
func (r *Registry) Text(id string) (*Text, error) {
	return lookup[*Text](r, id, KindText)
}

func lookup[T Sensor](r *Registry, id string, kind Kind) (T, error) {
	var zero T
	s, err := r.Get(id)
	if err != nil {
		return zero, err
	}
	typed, ok := s.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s is %s, want %s", ErrWrongKind, id, s.Kind(), kind)
	}
	return typed, nil
}

// Len returns the number of registered sensors.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sensors)
}

// List returns snapshots of every sensor, sorted by ID.
func (r *Registry) List() []Snapshot {
	r.mu.RLock()
	all := make([]Sensor, 0, len(r.sensors))
	for _, s := range r.sensors {
		all = append(all, s)
	}
	r.mu.RUnlock()

	snaps := make([]Snapshot, 0, len(all))
	for _, s := range all {
		snaps = append(snaps, s.Snapshot())
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].ID < snaps[j].ID })
	return snaps
}
