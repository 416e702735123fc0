package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-logr/logr"
	"github.com/spf13/afero"
)

// FileStore keeps a JSON document in a single file on an afero filesystem.
type FileStore[T any] struct {
	fs    afero.Fs
	path  string
	empty func() T
	log   logr.Logger

	mu sync.Mutex
}

// NewFileStore creates a store for the document at path. empty builds the
// canonical empty value returned when nothing usable is stored.
func NewFileStore[T any](fs afero.Fs, path string, empty func() T, opts ...Option) *FileStore[T] {
	o := buildOptions(opts)
	return &FileStore[T]{
		fs:    fs,
		path:  path,
		empty: empty,
		log:   o.log.WithName("store").WithValues("path", path),
	}
}

// Path returns the location of the document.
func (s *FileStore[T]) Path() string { return s.path }

// Read returns the stored document. A corrupt file is removed.
func (s *FileStore[T]) Read() T {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Error(err, "read failed, serving empty document")
		}
		return s.empty()
	}

	v := s.empty()
	if err := json.Unmarshal(data, &v); err != nil {
		s.log.Error(fmt.Errorf("%w: %v", ErrCorrupt, err), "discarding document")
		if rmErr := s.fs.Remove(s.path); rmErr != nil && !os.IsNotExist(rmErr) {
			s.log.Error(rmErr, "remove corrupt document failed")
		}
		return s.empty()
	}
	return v
}

// Store writes v through a temporary file renamed over the target.
func (s *FileStore[T]) Store(v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp := s.path + ".tmp"
	f, err := s.fs.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := s.fs.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace document: %w", err)
	}
	return nil
}

// Delete removes the document.
func (s *FileStore[T]) Delete() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fs.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}
