// Package pipeline moves tracked events from the application to the event
// collector.
//
// Two loops run for the lifetime of a Pipeline. The write loop is the only
// writer of the event log: it appends each event, feeds the flush policies
// and seals a batch when one trips. The upload loop sends every sealed batch
// and deletes it only once the collector is done with it.
package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-logr/logr"
	"github.com/sourcegraph/conc/pool"
	"golang.org/x/sync/errgroup"

	"github.com/TimurManjosov/goflagship-sdk/internal/client"
	"github.com/TimurManjosov/goflagship-sdk/internal/eventlog"
	"github.com/TimurManjosov/goflagship-sdk/internal/flushpolicy"
	"github.com/TimurManjosov/goflagship-sdk/internal/telemetry"
)

const (
	// queueSize is the buffer size of the write queue
	queueSize = 1000

	defaultConcurrency = 4
)

// ErrClosed is returned by Emit after Close.
var ErrClosed = errors.New("pipeline: closed")

// Uploader sends one batch of events.
type Uploader interface {
	Publish(ctx context.Context, events []eventlog.Event) (client.Outcome, error)
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the diagnostic sink.
func WithLogger(l logr.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithMetrics records writes, uploads and the ready-batch gauge.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithPolicies replaces the default flush policies.
func WithPolicies(s flushpolicy.Set) Option {
	return func(p *Pipeline) { p.policies = s }
}

// WithBackOff sets the schedule for re-uploading batches the collector asked
// to resend.
func WithBackOff(b backoff.BackOff) Option {
	return func(p *Pipeline) { p.backoff = b }
}

// WithConcurrency bounds how many batches upload at once.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// Pipeline is the durable event pipeline.
type Pipeline struct {
	log         *eventlog.Log
	uploader    Uploader
	policies    flushpolicy.Set
	backoff     backoff.BackOff
	concurrency int
	logger      logr.Logger
	metrics     *telemetry.Metrics

	writes  chan eventlog.Event
	flushes chan struct{}

	mu     sync.RWMutex
	closed bool

	cancel context.CancelFunc
	g      *errgroup.Group
}

// New starts a pipeline over lg. Batches left by earlier sessions are
// uploaded right away.
func New(lg *eventlog.Log, up Uploader, opts ...Option) *Pipeline {
	p := &Pipeline{
		log:         lg,
		uploader:    up,
		policies:    flushpolicy.Default(flushpolicy.DefaultThreshold),
		concurrency: defaultConcurrency,
		logger:      logr.Discard(),
		writes:      make(chan eventlog.Event, queueSize),
		flushes:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.backoff == nil {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = 5 * time.Second
		b.MaxInterval = 10 * time.Minute
		p.backoff = b
	}
	p.logger = p.logger.WithName("pipeline")

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.g, ctx = errgroup.WithContext(ctx)
	p.g.Go(func() error { return p.writeLoop() })
	p.g.Go(func() error { return p.uploadLoop(ctx) })
	p.signal()
	return p
}

// Emit queues e for writing. It blocks only while the write queue is full.
func (p *Pipeline) Emit(e eventlog.Event) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	p.writes <- e
	return nil
}

// Flush seals whatever was written so far and triggers an upload. It is
// ordered after every event emitted before it.
func (p *Pipeline) Flush() error {
	return p.Emit(eventlog.Event{Name: eventlog.ManualFlushEvent, EventTime: time.Now()})
}

// Backlog returns the events not yet sealed into a batch and the sealed
// batches still waiting for upload.
func (p *Pipeline) Backlog() (events, batches int, err error) {
	ready, err := p.log.ReadyFiles()
	if err != nil {
		return 0, 0, err
	}
	return len(p.writes) + p.log.Pending(), len(ready), nil
}

// Close drains queued events to disk, stops uploading and closes the log.
// Events not yet uploaded stay on disk for the next session.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.writes)
	p.mu.Unlock()

	err := p.g.Wait()
	if cerr := p.log.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

func (p *Pipeline) writeLoop() error {
	// the upload loop has nothing left to do once writes are drained
	defer p.cancel()

	for e := range p.writes {
		if !e.IsSentinel() {
			if err := p.log.Append(e); err != nil {
				p.logger.Error(err, "failed to write event", "event", e.Name)
				continue
			}
			p.metrics.EventWritten()
		}
		if !p.policies.Hit(e) {
			continue
		}
		name, err := p.log.Rollover()
		if err != nil {
			p.logger.Error(err, "rollover failed")
			continue
		}
		if name != "" {
			p.logger.V(1).Info("batch sealed", "file", name)
		}
		p.signal()
	}
	return nil
}

// signal wakes the upload loop. Signals coalesce while one is pending.
func (p *Pipeline) signal() {
	select {
	case p.flushes <- struct{}{}:
	default:
	}
}

func (p *Pipeline) uploadLoop(ctx context.Context) error {
	retry := time.NewTimer(time.Hour)
	retry.Stop()
	defer retry.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-p.flushes:
		case <-retry.C:
		}
		if p.uploadReady(ctx) {
			if wait := p.backoff.NextBackOff(); wait != backoff.Stop {
				p.logger.V(1).Info("upload will be retried", "in", wait)
				retry.Reset(wait)
			}
		} else {
			p.backoff.Reset()
		}
	}
}

// uploadReady uploads every ready batch and reports whether any of them must
// be retried.
func (p *Pipeline) uploadReady(ctx context.Context) bool {
	names, err := p.log.ReadyFiles()
	if err != nil {
		p.logger.Error(err, "failed to list ready batches")
		return true
	}
	p.metrics.SetReadyFiles(len(names))
	if len(names) == 0 {
		return false
	}

	results := pool.NewWithResults[bool]().WithMaxGoroutines(p.concurrency)
	for _, name := range names {
		results.Go(func() bool { return p.uploadBatch(ctx, name) })
	}
	retry := false
	for _, done := range results.Wait() {
		if !done {
			retry = true
		}
	}

	if remaining, err := p.log.ReadyFiles(); err == nil {
		p.metrics.SetReadyFiles(len(remaining))
	}
	return retry
}

// uploadBatch reports whether the batch is finished with.
func (p *Pipeline) uploadBatch(ctx context.Context, name string) bool {
	events, err := p.log.ReadBatch(name)
	if err != nil {
		p.logger.Error(err, "failed to read batch", "file", name)
		return false
	}
	if len(events) > 0 {
		outcome, err := p.uploader.Publish(ctx, events)
		p.metrics.ObserveUpload(outcome.String())
		if err != nil {
			p.logger.Error(err, "upload failed", "file", name, "events", len(events), "outcome", outcome.String())
		}
		if !outcome.Done() {
			return false
		}
		if outcome == client.Dropped {
			p.logger.Info("batch rejected by collector, discarding", "file", name, "events", len(events))
		}
	}
	if err := p.log.Remove(name); err != nil {
		p.logger.Error(err, "failed to remove uploaded batch", "file", name)
		return false
	}
	return true
}
