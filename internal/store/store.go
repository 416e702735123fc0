// Package store persists one JSON document per file.
//
// Reads never fail: a missing file yields the canonical empty value, and a
// file that cannot be parsed is deleted and treated as if it never existed.
// Writes go to a temporary file that is renamed over the target, so a crash
// leaves either the old or the new document on disk.
package store

import (
	"errors"

	"github.com/go-logr/logr"
)

// ErrCorrupt is logged when a persisted document cannot be decoded.
var ErrCorrupt = errors.New("store: corrupt document")

// Store defines the interface for single-document persistence.
// Implementations must be safe for concurrent use.
type Store[T any] interface {
	// Read returns the persisted document, or the canonical empty value when
	// nothing usable is stored.
	Read() T

	// Store replaces the persisted document with v.
	Store(v T) error

	// Delete removes the document. Deleting a missing document is not an error.
	Delete() error
}

// Option configures a store.
type Option func(*options)

type options struct {
	log logr.Logger
}

// WithLogger sets the diagnostic sink used to report discarded documents.
func WithLogger(l logr.Logger) Option {
	return func(o *options) { o.log = l }
}

func buildOptions(opts []Option) options {
	o := options{log: logr.Discard()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
