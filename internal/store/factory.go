package store

import (
	"fmt"

	"github.com/spf13/afero"
)

// Supported store types.
const (
	TypeFile   = "file"
	TypeMemory = "memory"
)

// New creates a store of the given type. path is ignored for memory stores.
func New[T any](storeType string, fs afero.Fs, path string, empty func() T, opts ...Option) (Store[T], error) {
	switch storeType {
	case TypeFile, "":
		if fs == nil {
			return nil, fmt.Errorf("file store requires a filesystem")
		}
		return NewFileStore(fs, path, empty, opts...), nil
	case TypeMemory:
		return NewMemoryStore(empty), nil
	default:
		return nil, fmt.Errorf("unsupported store type: %s", storeType)
	}
}
