package apply

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-logr/logr"

	"github.com/TimurManjosov/goflagship-sdk/internal/client"
	"github.com/TimurManjosov/goflagship-sdk/internal/telemetry"
)

// ErrClosed is returned by calls made after Close.
var ErrClosed = errors.New("apply: tracker closed")

// Sender delivers one batch of applied flags for a resolve token.
type Sender interface {
	Apply(ctx context.Context, token string, flags []client.AppliedFlag) (client.Outcome, error)
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithLogger sets the diagnostic sink.
func WithLogger(l logr.Logger) Option {
	return func(t *Tracker) { t.log = l }
}

// WithMetrics records apply outcomes and the pending gauge.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(t *Tracker) { t.metrics = m }
}

// WithBackOff sets the schedule used to retry batches the backend asked to
// resend.
func WithBackOff(b backoff.BackOff) Option {
	return func(t *Tracker) { t.backoff = b }
}

// WithClock overrides the time source for apply timestamps.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

type applyReq struct {
	flag, token string
	at          time.Time
}

type resultReq struct {
	token   string
	flags   []string
	outcome client.Outcome
}

type pendingReq struct {
	reply chan Map
}

// Tracker owns the applied-flags map. All reads and writes of the map and
// of its store happen on one goroutine fed by reqs.
type Tracker struct {
	reqs    chan any
	store   Store
	sender  Sender
	backoff backoff.BackOff
	now     func() time.Time
	log     logr.Logger
	metrics *telemetry.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	done   chan struct{}
	closed atomic.Bool

	// loop state
	applied Map
	retry   *time.Timer
}

// NewTracker loads the persisted map and starts the tracker. Entries left
// SENDING by a previous process are reset to CREATED and resent.
func NewTracker(st Store, sender Sender, opts ...Option) *Tracker {
	ctx, cancel := context.WithCancel(context.Background())
	t := &Tracker{
		reqs:   make(chan any, 64),
		store:  st,
		sender: sender,
		now:    time.Now,
		log:    logr.Discard(),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.backoff == nil {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = time.Second
		b.MaxInterval = 5 * time.Minute
		t.backoff = b
	}
	go t.run()
	return t
}

// Apply records that flag was used under token. The first call for a pair
// schedules a send; later calls are no-ops. It never blocks on the network.
func (t *Tracker) Apply(flag, token string) {
	if t.closed.Load() {
		return
	}
	select {
	case t.reqs <- applyReq{flag: flag, token: token, at: t.now()}:
	case <-t.done:
	}
}

// Pending returns a copy of the entries not yet accepted by the backend.
func (t *Tracker) Pending(ctx context.Context) (Map, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	reply := make(chan Map, 1)
	select {
	case t.reqs <- pendingReq{reply: reply}:
	case <-t.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case m := <-reply:
		return m, nil
	case <-t.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops the tracker and waits for in-flight sends. Entries that were
// not accepted stay on disk for the next process.
func (t *Tracker) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	t.cancel()
	<-t.done
	t.wg.Wait()
	return nil
}

func (t *Tracker) run() {
	defer close(t.done)

	t.applied = t.store.Read()
	if t.applied == nil {
		t.applied = Map{}
	}
	recovered := 0
	for token, flags := range t.applied {
		// a null token entry parses fine but holds nothing
		if flags == nil {
			delete(t.applied, token)
			continue
		}
		for name, inst := range flags {
			if inst.Status == StatusSending {
				inst.Status = StatusCreated
				flags[name] = inst
				recovered++
			}
		}
	}
	if recovered > 0 {
		t.log.Info("recovered applies interrupted mid-send", "count", recovered)
		t.persist()
	}
	t.sendAll()

	t.retry = time.NewTimer(time.Hour)
	t.retry.Stop()
	defer t.retry.Stop()

	for {
		select {
		case <-t.ctx.Done():
			return
		case <-t.retry.C:
			t.sendAll()
		case r := <-t.reqs:
			switch r := r.(type) {
			case applyReq:
				t.handleApply(r)
			case resultReq:
				t.handleResult(r)
			case pendingReq:
				r.reply <- t.applied.unsent()
			}
		}
	}
}

func (t *Tracker) handleApply(r applyReq) {
	flags := t.applied[r.token]
	if flags == nil {
		flags = make(map[string]Instance)
		t.applied[r.token] = flags
	}
	if _, exists := flags[r.flag]; exists {
		return
	}
	flags[r.flag] = Instance{Time: r.at.UTC(), Status: StatusCreated}
	t.persist()
	t.send(r.token)
}

func (t *Tracker) handleResult(r resultReq) {
	flags := t.applied[r.token]
	next := StatusSent
	if !r.outcome.Done() {
		next = StatusCreated
	}
	for _, name := range r.flags {
		if inst, ok := flags[name]; ok && inst.Status == StatusSending {
			inst.Status = next
			flags[name] = inst
		}
	}
	t.metrics.ObserveApply(outcomeLabel(r.outcome), len(r.flags))
	t.persist()

	if r.outcome.Done() {
		t.backoff.Reset()
		return
	}
	wait := t.backoff.NextBackOff()
	if wait == backoff.Stop {
		return
	}
	t.log.V(1).Info("apply will be retried", "token", r.token, "flags", len(r.flags), "in", wait)
	t.retry.Reset(wait)
}

// sendAll starts a send for every token with CREATED entries.
func (t *Tracker) sendAll() {
	tokens := make([]string, 0, len(t.applied))
	for token := range t.applied {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)
	for _, token := range tokens {
		t.send(token)
	}
}

// send moves the CREATED entries of token to SENDING, persists that, and
// only then hands the batch to the sender.
func (t *Tracker) send(token string) {
	var batch []client.AppliedFlag
	var names []string
	for name, inst := range t.applied[token] {
		if inst.Status != StatusCreated {
			continue
		}
		inst.Status = StatusSending
		t.applied[token][name] = inst
		batch = append(batch, client.AppliedFlag{Flag: name, ApplyTime: inst.Time})
		names = append(names, name)
	}
	if len(batch) == 0 {
		return
	}
	t.persist()

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		outcome, err := t.sender.Apply(t.ctx, token, batch)
		if err != nil {
			t.log.Error(err, "apply failed", "token", token, "flags", len(batch), "outcome", outcome.String())
		}
		select {
		case t.reqs <- resultReq{token: token, flags: names, outcome: outcome}:
		case <-t.done:
		}
	}()
}

func (t *Tracker) persist() {
	if err := t.store.Store(t.applied.unsent()); err != nil {
		t.log.Error(err, "failed to persist applied flags")
	}
	t.metrics.SetPendingApplies(t.applied.Count())
}

func outcomeLabel(o client.Outcome) string {
	switch o {
	case client.Accepted:
		return telemetry.OutcomeAccepted
	case client.Dropped:
		return telemetry.OutcomeDropped
	}
	return telemetry.OutcomeRetry
}
