package influxdb

import "time"

// BacklogEntry is a payload that failed to send, with the endpoint it was
// destined for. Entries own their strings; nothing is shared with the caller.
type BacklogEntry struct {
	URL      string    `json:"url"`
	Payload  string    `json:"payload"`
	QueuedAt time.Time `json:"queued_at"`
}

// Backlog is a bounded FIFO of failed writes.
//
// A max depth of 0 disables it: Enqueue drops everything and the backlog
// stays empty. When full, Enqueue evicts the oldest entry first.
//
// Backlog is not safe for concurrent use; Client guards it with its mutex.
type Backlog struct {
	entries  []BacklogEntry
	maxDepth int
}

// NewBacklog creates a backlog holding at most maxDepth entries.
// Negative values are treated as 0.
func NewBacklog(maxDepth int) *Backlog {
	if maxDepth < 0 {
		maxDepth = 0
	}
	return &Backlog{maxDepth: maxDepth}
}

// Enabled reports whether the backlog retains anything.
func (b *Backlog) Enabled() bool {
	return b.maxDepth > 0
}

// MaxDepth returns the configured capacity.
func (b *Backlog) MaxDepth() int {
	return b.maxDepth
}

// Len returns the number of queued entries.
func (b *Backlog) Len() int {
	return len(b.entries)
}

// Enqueue appends e. If the backlog is full the oldest entry is removed
// first and returned with evicted set. A disabled backlog ignores e.
func (b *Backlog) Enqueue(e BacklogEntry) (oldest BacklogEntry, evicted bool) {
	if b.maxDepth == 0 {
		return BacklogEntry{}, false
	}

	if len(b.entries) >= b.maxDepth {
		oldest = b.entries[0]
		b.entries[0] = BacklogEntry{}
		b.entries = b.entries[1:]
		evicted = true
	}

	b.entries = append(b.entries, e)
	return oldest, evicted
}

// Drain offers entries to deliver oldest-first. Each entry for which deliver
// returns true is removed. Drain stops after limit removals, when the backlog
// is empty, or at the first entry deliver rejects, which stays at the front.
// It returns the number of entries removed.
func (b *Backlog) Drain(limit int, deliver func(BacklogEntry) bool) int {
	removed := 0
	for removed < limit && len(b.entries) > 0 {
		if !deliver(b.entries[0]) {
			break
		}
		b.entries[0] = BacklogEntry{}
		b.entries = b.entries[1:]
		removed++
	}

	if len(b.entries) == 0 {
		// Release the backing array once drained.
		b.entries = nil
	}
	return removed
}

// Entries returns a copy of the queued entries, oldest first.
func (b *Backlog) Entries() []BacklogEntry {
	out := make([]BacklogEntry, len(b.entries))
	copy(out, b.entries)
	return out
}
