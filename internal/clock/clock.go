// Package clock provides the wall-clock source used to timestamp published
// records.
//
// A Clock may report that it has no valid time yet (for example an SNTP
// source that has not synchronised). Records are then published without a
// timestamp and InfluxDB stamps them on arrival. A failed write is still
// queued; if it is replayed later it lands at the replay time. Config
// rejects a backlog on a destination whose time source is "none".
package clock

import (
	"strconv"
	"time"
)

// validAfter is the earliest instant a system clock is trusted to be set.
var validAfter = time.Date(2019, time.January, 1, 0, 0, 0, 0, time.UTC)

// Clock reports the current wall-clock time and whether it is valid.
type Clock interface {
	Now() (time.Time, bool)
}

// System reads the host clock. Times before 2019 are treated as unset,
// which is what an embedded host reports before its first sync.
type System struct{}

// Now implements Clock.
func (System) Now() (time.Time, bool) {
	now := time.Now()
	return now, now.After(validAfter)
}

// Func adapts a plain function to the Clock interface.
type Func func() (time.Time, bool)

// Now implements Clock.
func (f Func) Now() (time.Time, bool) {
	return f()
}

// Fixed returns a Clock that always reports t as valid.
func Fixed(t time.Time) Clock {
	return Func(func() (time.Time, bool) { return t, true })
}

// None is a Clock that never has a valid time.
type None struct{}

// Now implements Clock.
func (None) Now() (time.Time, bool) {
	return time.Time{}, false
}

// Suffix formats the timestamp suffix appended to every record in one
// publish: a space followed by whole Unix seconds, or "" when c is nil or
// has no valid time.
func Suffix(c Clock) string {
	if c == nil {
		return ""
	}
	now, ok := c.Now()
	if !ok {
		return ""
	}
	return " " + strconv.FormatInt(now.Unix(), 10)
}

// ParseSource maps a configuration name to a Clock. "system" and "" select
// the host clock; "none" disables timestamps. ok is false for unknown names.
func ParseSource(name string) (c Clock, ok bool) {
	switch name {
	case "", "system":
		return System{}, true
	case "none":
		return None{}, true
	default:
		return nil, false
	}
}
