package snapshot

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"

	"github.com/TimurManjosov/goflagship-sdk/internal/store"
	"github.com/TimurManjosov/goflagship-sdk/internal/telemetry"
	"github.com/TimurManjosov/goflagship-sdk/internal/value"
)

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the diagnostic sink.
func WithLogger(l logr.Logger) Option {
	return func(c *Cache) { c.log = l }
}

// WithMetrics records resolve outcomes and the live flag count.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// WithMaxStaleness makes Activate ignore a persisted resolution older than d.
// Zero means persisted resolutions never expire.
func WithMaxStaleness(d time.Duration) Option {
	return func(c *Cache) { c.maxStaleness = d }
}

// WithClock overrides the time source used to stamp resolutions.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// Cache is the flag resolution cache. Reads of the live resolution are
// lock-free; the persisted copy lives in a store.
type Cache struct {
	current  atomic.Pointer[FlagResolution]
	store    store.Store[FlagResolution]
	resolver Resolver

	maxStaleness time.Duration
	now          func() time.Time
	log          logr.Logger
	metrics      *telemetry.Metrics

	subMu sync.Mutex
	subs  map[subCh]struct{}
}

// NewCache creates a cache backed by st. Nothing is live until Activate or
// Commit is called.
func NewCache(st store.Store[FlagResolution], resolver Resolver, opts ...Option) *Cache {
	c := &Cache{
		store:    st,
		resolver: resolver,
		now:      time.Now,
		log:      logr.Discard(),
		subs:     make(map[subCh]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load returns the live resolution, or nil if none has been activated.
func (c *Cache) Load() *FlagResolution {
	return c.current.Load()
}

// Persisted returns the stored resolution without activating it.
func (c *Cache) Persisted() FlagResolution {
	return c.store.Read()
}

// Activate makes the persisted resolution live. A resolution older than the
// configured max staleness is treated as absent.
func (c *Cache) Activate() {
	res := c.store.Read()
	if c.maxStaleness > 0 && !res.IsEmpty() && c.now().Sub(res.ResolvedAt) > c.maxStaleness {
		c.log.V(1).Info("persisted resolution too old, ignoring",
			"resolvedAt", res.ResolvedAt, "maxStaleness", c.maxStaleness)
		res = Empty()
	}
	c.swap(res)
}

// Resolve asks the backend for a resolution of evalCtx without touching the
// cache. A not-modified answer yields the empty resolution.
func (c *Cache) Resolve(ctx context.Context, evalCtx value.Struct) (FlagResolution, error) {
	resp, err := c.resolver.Resolve(ctx, evalCtx)
	if err != nil {
		c.metrics.ObserveResolve(telemetry.OutcomeFailed)
		return Empty(), fmt.Errorf("resolve: %w", err)
	}
	if resp.NotModified {
		c.metrics.ObserveResolve(telemetry.OutcomeNotModified)
		return Empty(), nil
	}
	c.metrics.ObserveResolve(telemetry.OutcomeResolved)
	res := resp.Resolution
	res.Context = evalCtx.Copy()
	if res.ResolvedAt.IsZero() {
		res.ResolvedAt = c.now().UTC()
	}
	if res.Flags == nil {
		res.Flags = []ResolvedFlag{}
	}
	return res, nil
}

// Fetch resolves evalCtx and persists the result without activating it. A
// not-modified answer leaves the store untouched.
func (c *Cache) Fetch(ctx context.Context, evalCtx value.Struct) (FlagResolution, error) {
	res, err := c.Resolve(ctx, evalCtx)
	if err != nil {
		return res, err
	}
	return res, c.Persist(res)
}

// Persist stores res for a later Activate. The empty resolution is ignored.
func (c *Cache) Persist(res FlagResolution) error {
	if res.IsEmpty() {
		return nil
	}
	if err := c.store.Store(res); err != nil {
		return fmt.Errorf("persist resolution: %w", err)
	}
	c.log.V(1).Info("resolution persisted", "flags", len(res.Flags), "token", res.ResolveToken)
	return nil
}

// Commit persists res and makes it live in one step. Used when the
// application opted into automatic re-resolution on context changes.
func (c *Cache) Commit(res FlagResolution) error {
	if res.IsEmpty() {
		return nil
	}
	if err := c.Persist(res); err != nil {
		return err
	}
	c.swap(res)
	return nil
}

// Superseded records a resolve whose result was discarded.
func (c *Cache) Superseded() {
	c.metrics.ObserveResolve(telemetry.OutcomeSuperseded)
}

func (c *Cache) swap(res FlagResolution) {
	c.current.Store(&res)
	c.metrics.SetCachedFlags(len(res.Flags))
	c.publishUpdate(res.ResolveToken)
}
