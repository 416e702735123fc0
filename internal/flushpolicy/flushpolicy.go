// Package flushpolicy decides when the event pipeline closes a batch.
//
// Policies are stateful and owned by a single goroutine: they are not safe
// for concurrent use.
package flushpolicy

import (
	"github.com/TimurManjosov/goflagship-sdk/internal/eventlog"
)

// DefaultThreshold is the event count that closes a batch.
const DefaultThreshold = 4

// Policy is a predicate over the event traffic seen since the last flush.
type Policy interface {
	// Hit records an event, including the manual flush sentinel.
	Hit(e eventlog.Event)
	// ShouldFlush reports whether the current batch should be closed.
	ShouldFlush() bool
	// Reset clears the accumulated state after a flush.
	Reset()
}

// Count trips once threshold persisted events were seen.
type Count struct {
	threshold int
	count     int
}

// NewCount returns a count policy. A threshold below one uses DefaultThreshold.
func NewCount(threshold int) *Count {
	if threshold < 1 {
		threshold = DefaultThreshold
	}
	return &Count{threshold: threshold}
}

func (c *Count) Hit(e eventlog.Event) {
	if !e.IsSentinel() {
		c.count++
	}
}

func (c *Count) ShouldFlush() bool { return c.count >= c.threshold }

func (c *Count) Reset() { c.count = 0 }

// Manual trips when the manual flush sentinel is seen.
type Manual struct {
	flagged bool
}

// NewManual returns a manual flush policy.
func NewManual() *Manual { return &Manual{} }

func (m *Manual) Hit(e eventlog.Event) {
	if e.IsSentinel() {
		m.flagged = true
	}
}

func (m *Manual) ShouldFlush() bool { return m.flagged }

func (m *Manual) Reset() { m.flagged = false }

// Set feeds every event to each policy and trips when any of them does.
type Set []Policy

// Default returns the count and manual policies.
func Default(threshold int) Set {
	return Set{NewCount(threshold), NewManual()}
}

// Hit feeds e to every policy and reports whether any of them trips. When one
// does, all policies are reset.
func (s Set) Hit(e eventlog.Event) bool {
	trip := false
	for _, p := range s {
		p.Hit(e)
		if p.ShouldFlush() {
			trip = true
		}
	}
	if trip {
		s.Reset()
	}
	return trip
}

// Reset resets every policy.
func (s Set) Reset() {
	for _, p := range s {
		p.Reset()
	}
}
