package flagship

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/go-logr/logr"

	"github.com/TimurManjosov/goflagship-sdk/internal/snapshot"
	"github.com/TimurManjosov/goflagship-sdk/internal/value"
)

// layer is the immutable local state of one client: keys it sets and keys
// it hides from its parent.
type layer struct {
	overrides value.Struct
	removed   map[string]struct{}
}

// Client is a handle on the SDK bound to an evaluation context. The root
// client is returned by New; WithContext derives children that read their
// parent's context live.
type Client struct {
	eng    *engine
	parent *Client
	log    logr.Logger

	// current is replaced wholesale by the actor and read lock-free
	current atomic.Pointer[layer]

	reqs     chan any
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	producerMu sync.Mutex
	producers  []*producerRun

	// actor state, root only
	lastPrint uint64
	seq       uint64
	cancelJob context.CancelFunc
	resolving bool
	waiters   []chan struct{}
}

type patchReq struct {
	set    value.Struct
	remove []string
	ack    chan struct{}
}

type resolveDone struct {
	seq uint64
	res snapshot.FlagResolution
	err error
	job resolveJob
}

// resolveJob describes what to do with a resolve result once it is known
// to be the latest. reply is nil for resolves triggered by context changes.
type resolveJob struct {
	activate bool
	reply    chan error
}

type fetchReq struct {
	ctx     context.Context
	evalCtx value.Struct
	job     resolveJob
}

type awaitReq struct {
	reply chan struct{}
}

func newClient(eng *engine, parent *Client, overrides value.Struct) *Client {
	c := &Client{
		eng:    eng,
		parent: parent,
		log:    eng.log.WithName("coordinator"),
		reqs:   make(chan any, 16),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	c.current.Store(&layer{overrides: overrides, removed: map[string]struct{}{}})
	if parent == nil {
		// the initial context is not a change
		c.lastPrint = value.Fingerprint(c.Context())
	}
	go c.run()
	return c
}

// Context returns the full evaluation context: the parent's context minus
// locally removed keys, overlaid with local values.
func (c *Client) Context() value.Struct {
	l := c.current.Load()
	out := value.Struct{}
	if c.parent != nil {
		out = c.parent.Context()
	}
	for k := range l.removed {
		delete(out, k)
	}
	for k, v := range l.overrides {
		out[k] = v
	}
	return out
}

// PutContext sets one context key. It returns once the change is visible
// to Context and GetFlag.
func (c *Client) PutContext(key string, v Value) error {
	return c.patch(value.Struct{key: v}, nil)
}

// PutContextMap sets several context keys at once.
func (c *Client) PutContextMap(m Struct) error {
	return c.patch(m.Copy(), nil)
}

// RemoveContext removes key from this client's context, including a value
// inherited from the parent.
func (c *Client) RemoveContext(key string) error {
	return c.patch(nil, []string{key})
}

// WithContext returns a child client whose context is this client's
// context overlaid with m. The child shares the cache, the apply tracker and
// the event pipeline; it never re-resolves on its own.
func (c *Client) WithContext(m Struct) *Client {
	return newClient(c.eng, c, m.Copy())
}

// AwaitReconciliation blocks until the resolve for the latest root context
// change has completed, or ctx is done.
func (c *Client) AwaitReconciliation(ctx context.Context) error {
	root := c.root()
	reply := make(chan struct{})
	select {
	case root.reqs <- awaitReq{reply: reply}:
	case <-root.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-reply:
		return nil
	case <-root.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) patch(set value.Struct, remove []string) error {
	ack := make(chan struct{})
	select {
	case c.reqs <- patchReq{set: set, remove: remove, ack: ack}:
	case <-c.done:
		return ErrStopped
	}
	select {
	case <-ack:
		return nil
	case <-c.done:
		return ErrStopped
	}
}

func (c *Client) run() {
	defer close(c.done)
	defer func() {
		if c.cancelJob != nil {
			c.cancelJob()
		}
		for _, w := range c.waiters {
			close(w)
		}
	}()

	for {
		select {
		case <-c.stop:
			return
		case <-c.eng.ctx.Done():
			return
		case m := <-c.reqs:
			switch m := m.(type) {
			case patchReq:
				c.applyPatch(m)
				close(m.ack)
			case fetchReq:
				c.startResolve(m.ctx, m.evalCtx, m.job)
			case resolveDone:
				c.finishResolve(m)
			case awaitReq:
				if c.resolving {
					c.waiters = append(c.waiters, m.reply)
				} else {
					close(m.reply)
				}
			}
		}
	}
}

func (c *Client) applyPatch(m patchReq) {
	old := c.current.Load()
	next := &layer{
		overrides: old.overrides.Copy(),
		removed:   make(map[string]struct{}, len(old.removed)),
	}
	for k := range old.removed {
		next.removed[k] = struct{}{}
	}
	for k, v := range m.set {
		next.overrides[k] = v
		delete(next.removed, k)
	}
	for _, k := range m.remove {
		delete(next.overrides, k)
		next.removed[k] = struct{}{}
	}
	c.current.Store(next)

	if c.parent != nil {
		return
	}
	ctx := c.Context()
	fp := value.Fingerprint(ctx)
	if fp == c.lastPrint {
		return
	}
	c.lastPrint = fp
	c.scheduleResolve(ctx)
}

// scheduleResolve cancels any outstanding resolve and starts one for ctx.
// Only the result carrying the latest sequence number is kept.
func (c *Client) scheduleResolve(evalCtx value.Struct) {
	c.startResolve(nil, evalCtx, resolveJob{activate: true})
}

// startResolve runs a resolve as the newest job. A non-nil caller context
// also cancels it.
func (c *Client) startResolve(caller context.Context, evalCtx value.Struct, job resolveJob) {
	if c.cancelJob != nil {
		c.cancelJob()
	}
	c.seq++
	seq := c.seq
	jobCtx, cancel := context.WithCancel(c.eng.ctx)
	c.cancelJob = cancel
	if caller != nil {
		release := context.AfterFunc(caller, cancel)
		c.cancelJob = func() {
			release()
			cancel()
		}
	}
	c.resolving = true

	c.eng.wg.Add(1)
	go func() {
		defer c.eng.wg.Done()
		res, err := c.eng.cache.Resolve(jobCtx, evalCtx)
		if err != nil && caller != nil && caller.Err() != nil {
			err = caller.Err()
		}
		select {
		case c.reqs <- resolveDone{seq: seq, res: res, err: err, job: job}:
		case <-c.done:
		}
	}()
}

func (c *Client) finishResolve(m resolveDone) {
	if m.seq != c.seq {
		c.eng.cache.Superseded()
		c.log.V(1).Info("discarding superseded resolve", "seq", m.seq, "latest", c.seq)
		if m.job.reply != nil {
			m.job.reply <- ErrSuperseded
		}
		return
	}
	c.cancelJob()
	c.cancelJob = nil
	c.resolving = false

	err := m.err
	switch {
	case err != nil:
		if m.job.reply == nil && !errors.Is(err, context.Canceled) {
			c.log.Error(err, "resolve after context change failed")
		}
	case !m.job.activate:
		err = c.eng.cache.Persist(m.res)
	case m.job.reply != nil && m.res.IsEmpty():
		// not modified: the persisted resolution is still current
		c.eng.cache.Activate()
	default:
		err = c.eng.cache.Commit(m.res)
	}
	if m.err == nil && err != nil && m.job.reply == nil {
		c.log.Error(err, "failed to store resolution")
	}
	if m.job.reply != nil {
		m.job.reply <- err
	}
	for _, w := range c.waiters {
		close(w)
	}
	c.waiters = nil
}

// fetch hands a resolve of evalCtx to the root actor and waits for its
// outcome. It returns ErrSuperseded if a newer context change or fetch
// started before the result arrived.
func (c *Client) fetch(ctx context.Context, evalCtx value.Struct, activate bool) error {
	root := c.root()
	reply := make(chan error, 1)
	req := fetchReq{ctx: ctx, evalCtx: evalCtx, job: resolveJob{activate: activate, reply: reply}}
	select {
	case root.reqs <- req:
	case <-root.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-root.done:
		return ErrStopped
	}
}

func (c *Client) root() *Client {
	root := c
	for root.parent != nil {
		root = root.parent
	}
	return root
}
