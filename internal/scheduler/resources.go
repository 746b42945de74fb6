package scheduler

import "fmt"

// Ledger tracks available capacity per resource type on a 0-100 scale.
// The Scheduler owns the ledger and serializes all access behind its lock, so
// check-and-reserve is atomic with respect to concurrent dispatch.
type Ledger struct {
	capacity  map[string]float64
	available map[string]float64
}

// NewLedger creates a ledger with the given capacities. Resource types a task
// requests that were never configured default to a full pool of 100.
func NewLedger(capacities map[string]float64) *Ledger {
	l := &Ledger{
		capacity:  make(map[string]float64),
		available: make(map[string]float64),
	}
	for typ, cap := range capacities {
		l.capacity[typ] = cap
		l.available[typ] = cap
	}
	return l
}

func (l *Ledger) ensure(typ string) {
	if _, ok := l.capacity[typ]; !ok {
		l.capacity[typ] = 100
		l.available[typ] = 100
	}
}

// CanReserve reports whether every requested amount fits current availability.
func (l *Ledger) CanReserve(req map[string]float64) bool {
	for typ, amount := range req {
		l.ensure(typ)
		if l.available[typ] < amount {
			return false
		}
	}
	return true
}

// Reserve atomically checks and decrements availability. Returns false and
// leaves the ledger untouched if any requested amount exceeds availability.
func (l *Ledger) Reserve(req map[string]float64) bool {
	if !l.CanReserve(req) {
		return false
	}
	for typ, amount := range req {
		l.available[typ] -= amount
	}
	return true
}

// Release restores previously reserved amounts, clamped at capacity.
func (l *Ledger) Release(req map[string]float64) {
	for typ, amount := range req {
		l.ensure(typ)
		l.available[typ] += amount
		if l.available[typ] > l.capacity[typ] {
			l.available[typ] = l.capacity[typ]
		}
	}
}

// SetCapacity adjusts the capacity of a resource type at runtime. The delta is
// applied to availability as well, so reservations held by running tasks are
// preserved.
func (l *Ledger) SetCapacity(typ string, capacity float64) error {
	if capacity < 0 {
		return fmt.Errorf("capacity for %q must be non-negative, got %v", typ, capacity)
	}
	l.ensure(typ)
	delta := capacity - l.capacity[typ]
	l.capacity[typ] = capacity
	l.available[typ] += delta
	if l.available[typ] > capacity {
		l.available[typ] = capacity
	}
	return nil
}

// Snapshot returns a copy of current availability per resource type.
func (l *Ledger) Snapshot() map[string]float64 {
	snap := make(map[string]float64, len(l.available))
	for typ, amount := range l.available {
		snap[typ] = amount
	}
	return snap
}
