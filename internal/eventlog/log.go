package eventlog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/spf13/afero"
)

const (
	livePrefix  = "live-"
	readySuffix = ".ready"
)

// ErrClosed is returned by operations on a closed Log.
var ErrClosed = errors.New("eventlog: closed")

// Option configures a Log.
type Option func(*Log)

// WithLogger sets the diagnostic sink.
func WithLogger(l logr.Logger) Option {
	return func(lg *Log) { lg.log = l }
}

// WithClock overrides the clock used to name ready files.
func WithClock(now func() time.Time) Option {
	return func(lg *Log) { lg.now = now }
}

// Log is a single-writer append log. All methods are safe for concurrent use;
// appends and rollovers are serialized by one writer lock.
type Log struct {
	fs      afero.Fs
	dir     string
	session string
	log     logr.Logger
	now     func() time.Time

	mu       sync.Mutex
	live     afero.File
	livePath string
	written  int
	closed   bool
}

// Open prepares dir and recovers live files left by earlier sessions.
func Open(fs afero.Fs, dir string, opts ...Option) (*Log, error) {
	l := &Log{
		fs:      fs,
		dir:     dir,
		session: uuid.NewString(),
		log:     logr.Discard(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.log = l.log.WithName("eventlog")
	l.livePath = filepath.Join(dir, livePrefix+l.session)

	if err := fs.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create event directory: %w", err)
	}
	if err := l.recover(); err != nil {
		return nil, err
	}
	return l, nil
}

// recover turns stale live files into ready files.
func (l *Log) recover() error {
	entries, err := afero.ReadDir(l.fs, l.dir)
	if err != nil {
		return fmt.Errorf("failed to list event directory: %w", err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, livePrefix) {
			continue
		}
		path := filepath.Join(l.dir, name)
		if entry.Size() == 0 {
			_ = l.fs.Remove(path)
			continue
		}
		target := l.readyName()
		if err := l.fs.Rename(path, filepath.Join(l.dir, target)); err != nil {
			return fmt.Errorf("failed to recover %s: %w", name, err)
		}
		l.log.Info("recovered live file from earlier session", "file", name, "ready", target)
	}
	return nil
}

func (l *Log) readyName() string {
	return fmt.Sprintf("%020d-%s%s", l.now().UnixNano(), uuid.NewString()[:8], readySuffix)
}

// Append writes e to the live file, creating it on first use.
func (l *Log) Append(e Event) error {
	rec, err := EncodeRecord(e)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrClosed
	}
	if l.live == nil {
		f, err := l.fs.OpenFile(l.livePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("failed to open live file: %w", err)
		}
		l.live = f
	}
	if _, err := l.live.Write(rec); err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	l.written++
	return nil
}

// Pending returns the number of events appended since the last rollover.
func (l *Log) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.written
}

// Rollover seals the live file as a ready file and returns its name. It
// returns "" when nothing was written since the previous rollover. The next
// Append starts a fresh live file.
func (l *Log) Rollover() (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return "", ErrClosed
	}
	if l.live == nil || l.written == 0 {
		return "", nil
	}
	if err := l.live.Sync(); err != nil {
		l.log.Error(err, "sync before rollover failed")
	}
	if err := l.live.Close(); err != nil {
		return "", fmt.Errorf("failed to close live file: %w", err)
	}
	l.live = nil

	name := l.readyName()
	if err := l.fs.Rename(l.livePath, filepath.Join(l.dir, name)); err != nil {
		return "", fmt.Errorf("failed to seal batch: %w", err)
	}
	l.written = 0
	return name, nil
}

// ReadyFiles lists sealed batches, oldest first.
func (l *Log) ReadyFiles() ([]string, error) {
	entries, err := afero.ReadDir(l.fs, l.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list event directory: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), readySuffix) {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// ReadBatch parses the events of a ready file.
func (l *Log) ReadBatch(name string) ([]Event, error) {
	data, err := afero.ReadFile(l.fs, filepath.Join(l.dir, name))
	if err != nil {
		return nil, fmt.Errorf("failed to read batch %s: %w", name, err)
	}
	return Parse(data), nil
}

// Remove deletes a ready file.
func (l *Log) Remove(name string) error {
	if !strings.HasSuffix(name, readySuffix) {
		return fmt.Errorf("refusing to remove non-batch file %s", name)
	}
	if err := l.fs.Remove(filepath.Join(l.dir, name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove batch %s: %w", name, err)
	}
	return nil
}

// Close releases the live file. Unsealed events stay on disk and are
// recovered by the next Open.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	if l.live == nil {
		return nil
	}
	err := l.live.Close()
	l.live = nil
	return err
}
