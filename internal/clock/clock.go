// Package clock provides the host-supplied monotonic time source the
// matching engine consumes. The engine never samples wall-clock time
// itself; every call that needs "now" takes a Source explicitly.
package clock

import "time"

// Source is a host-supplied (timestamp, slot) pair. Timestamp is seconds
// since epoch; slot is a host-defined monotonic counter (e.g. a block or
// tick height) used to disambiguate calls that land in the same second.
type Source struct {
	Timestamp int64
	Slot      uint64
}

// SystemClock produces Source values from the OS wall clock and an
// in-memory slot counter. It exists only for the demo binary;
// engine/ledger/book/market code never constructs one directly.
type SystemClock struct {
	slot uint64
}

// Now returns the current Source and advances the slot counter.
func (c *SystemClock) Now() Source {
	c.slot++
	return Source{Timestamp: time.Now().Unix(), Slot: c.slot}
}
