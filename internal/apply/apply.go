// Package apply records which resolved flags were actually used and reports
// them to the backend exactly once per resolve token.
//
// Every entry moves CREATED -> SENDING -> SENT. The transition to SENDING is
// persisted before the network call starts, so after a crash the store alone
// says what may still need sending. Entries are dropped from disk once the
// backend accepted them.
package apply

import (
	"time"

	"github.com/TimurManjosov/goflagship-sdk/internal/store"
)

// Status of one applied flag.
type Status string

const (
	StatusCreated Status = "CREATED"
	StatusSending Status = "SENDING"
	StatusSent    Status = "SENT"
)

// Instance is the record of one flag applied under one resolve token.
type Instance struct {
	Time   time.Time `json:"time"`
	Status Status    `json:"eventStatus"`
}

// Map is resolve token -> flag name -> instance.
type Map map[string]map[string]Instance

// EmptyMap is the canonical empty applied-flags map.
func EmptyMap() Map { return Map{} }

// Count returns the number of entries that are not yet SENT.
func (m Map) Count() int {
	n := 0
	for _, flags := range m {
		for _, inst := range flags {
			if inst.Status != StatusSent {
				n++
			}
		}
	}
	return n
}

// unsent copies m without SENT entries and without tokens left empty.
func (m Map) unsent() Map {
	out := make(Map, len(m))
	for token, flags := range m {
		kept := make(map[string]Instance, len(flags))
		for name, inst := range flags {
			if inst.Status != StatusSent {
				kept[name] = inst
			}
		}
		if len(kept) > 0 {
			out[token] = kept
		}
	}
	return out
}

// Store is the persistence the tracker needs.
type Store = store.Store[Map]
