// Package flagship is the client runtime for remote flag resolution and
// event tracking.
//
// A Client holds an evaluation context. Flags are resolved by the backend
// for that context, cached on disk, and read synchronously with GetFlag.
// Changing the root context re-resolves in the background; only the resolve
// for the latest context may update the cache. Tracked events are written
// to disk and uploaded in batches.
//
//	c, err := flagship.New(flagship.Options{ClientSecret: secret})
//	if err != nil { ... }
//	defer c.Stop()
//
//	_ = c.FetchAndActivate(ctx)
//	color := flagship.GetFlag(c, "banner.color", "red").Value
//	_ = c.Track("checkout", flagship.Struct{"amount": flagship.Integer(3)})
package flagship

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/go-logr/logr"

	"github.com/TimurManjosov/goflagship-sdk/internal/apply"
	"github.com/TimurManjosov/goflagship-sdk/internal/client"
	"github.com/TimurManjosov/goflagship-sdk/internal/evaluation"
	"github.com/TimurManjosov/goflagship-sdk/internal/eventlog"
	"github.com/TimurManjosov/goflagship-sdk/internal/flushpolicy"
	"github.com/TimurManjosov/goflagship-sdk/internal/pipeline"
	"github.com/TimurManjosov/goflagship-sdk/internal/snapshot"
	"github.com/TimurManjosov/goflagship-sdk/internal/store"
	"github.com/TimurManjosov/goflagship-sdk/internal/telemetry"
	"github.com/TimurManjosov/goflagship-sdk/internal/value"
)

// ErrStopped is returned by calls made after Stop.
var ErrStopped = errors.New("flagship: client stopped")

// ErrSuperseded is returned by FetchAndActivate and AsyncFetch when a newer
// context change or fetch started before the result arrived. The result is
// dropped.
var ErrSuperseded = errors.New("flagship: resolve superseded by a newer context")

// File names under Options.DataDir.
const (
	resolutionFile = "flag_resolution.json"
	appliedFile    = "applied_flags.json"
	visitorFile    = "visitor_id.json"
	eventsDir      = "events"
)

// engine is shared by a root client and all of its children.
type engine struct {
	cache    *snapshot.Cache
	tracker  *apply.Tracker
	pipeline *pipeline.Pipeline
	evalOpts evaluation.Options
	log      logr.Logger
	metrics  *telemetry.Metrics

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	stopped atomic.Bool

	producerMu sync.Mutex
	producers  []*producerRun
}

// New creates the root client. It loads durable state but does not make
// any cached resolution live; call Activate or FetchAndActivate for that.
func New(opts Options) (*Client, error) {
	if opts.ClientSecret == "" {
		return nil, fmt.Errorf("flagship: client secret is required")
	}
	opts = opts.withDefaults()
	logger := opts.Logger

	var metrics *telemetry.Metrics
	if opts.Registerer != nil {
		metrics = telemetry.New(opts.Registerer)
	}

	api := client.NewClient(client.Config{
		ClientSecret: opts.ClientSecret,
		ResolveURL:   opts.ResolveURL,
		EventsURL:    opts.EventsURL,
		Flags:        opts.Flags,
		SDKVersion:   opts.SDKVersion,
		Timeout:      opts.HTTPTimeout,
		HTTPClient:   opts.HTTPClient,
	})

	storeOpts := []store.Option{store.WithLogger(logger.WithName("store"))}
	resStore, err := store.New(opts.StoreType, opts.Fs, filepath.Join(opts.DataDir, resolutionFile), snapshot.Empty, storeOpts...)
	if err != nil {
		return nil, fmt.Errorf("flagship: %w", err)
	}
	appliedStore, err := store.New(opts.StoreType, opts.Fs, filepath.Join(opts.DataDir, appliedFile), apply.EmptyMap, storeOpts...)
	if err != nil {
		return nil, fmt.Errorf("flagship: %w", err)
	}

	lg, err := eventlog.Open(opts.Fs, filepath.Join(opts.DataDir, eventsDir), eventlog.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("flagship: %w", err)
	}

	initial := opts.InitialContext.Copy()
	if !opts.DisableVisitorID {
		id, err := loadVisitorID(opts.StoreType, opts.Fs, filepath.Join(opts.DataDir, visitorFile), storeOpts)
		if err != nil {
			_ = lg.Close()
			return nil, fmt.Errorf("flagship: %w", err)
		}
		initial[VisitorIDKey] = value.String(id)
	}

	cacheOpts := []snapshot.Option{
		snapshot.WithLogger(logger.WithName("cache")),
		snapshot.WithMetrics(metrics),
		snapshot.WithMaxStaleness(opts.MaxStaleness),
	}
	trackerOpts := []apply.Option{
		apply.WithLogger(logger.WithName("apply")),
		apply.WithMetrics(metrics),
	}
	if opts.ApplyBackOff != nil {
		trackerOpts = append(trackerOpts, apply.WithBackOff(opts.ApplyBackOff))
	}
	pipelineOpts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithMetrics(metrics),
		pipeline.WithPolicies(flushpolicy.Default(opts.FlushThreshold)),
	}
	if opts.UploadBackOff != nil {
		pipelineOpts = append(pipelineOpts, pipeline.WithBackOff(opts.UploadBackOff))
	}

	ctx, cancel := context.WithCancel(context.Background())
	eng := &engine{
		cache:    snapshot.NewCache(resStore, api, cacheOpts...),
		tracker:  apply.NewTracker(appliedStore, api, trackerOpts...),
		pipeline: pipeline.New(lg, api, pipelineOpts...),
		evalOpts: evaluation.Options{StrictStaleness: opts.StrictStaleness},
		log:      logger,
		metrics:  metrics,
		ctx:      ctx,
		cancel:   cancel,
	}
	root := newClient(eng, nil, initial)
	logger.WithName("coordinator").V(1).Info("client started",
		"dataDir", opts.DataDir, "storeType", opts.StoreType, "flags", len(opts.Flags))
	return root, nil
}

// Stop cancels outstanding work and releases resources. On the root client
// it shuts down the whole SDK; unsent events and applies stay on disk for
// the next session. On a child it only stops the child.
func (c *Client) Stop() error {
	c.stopOnce.Do(func() { close(c.stop) })
	<-c.done
	c.stopProducers()
	if c.parent != nil {
		return nil
	}

	eng := c.eng
	if !eng.stopped.CompareAndSwap(false, true) {
		return nil
	}
	eng.stopAllProducers()
	perr := eng.pipeline.Close()
	terr := eng.tracker.Close()
	eng.cancel()
	eng.wg.Wait()
	eng.log.WithName("coordinator").V(1).Info("client stopped")
	return errors.Join(perr, terr)
}
