package flagship

import (
	"log"
	"net/http"
	"os"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"

	"github.com/TimurManjosov/goflagship-sdk/internal/flushpolicy"
	"github.com/TimurManjosov/goflagship-sdk/internal/store"
)

// Store types for Options.StoreType.
const (
	StoreFile   = store.TypeFile
	StoreMemory = store.TypeMemory
)

// VisitorIDKey is the context key holding the persisted visitor id.
const VisitorIDKey = "visitor_id"

// Options configures a Client. Only ClientSecret is required.
type Options struct {
	ClientSecret string
	ResolveURL   string
	EventsURL    string

	// Flags limits resolves to these flag names; empty resolves all flags.
	Flags []string

	SDKVersion  string
	HTTPTimeout time.Duration
	HTTPClient  *http.Client

	// DataDir holds the resolution cache, the applied flags and the event
	// log. StoreMemory keeps everything in memory instead.
	DataDir   string
	StoreType string
	Fs        afero.Fs

	// FlushThreshold is the number of events per uploaded batch.
	FlushThreshold int

	// MaxStaleness makes Activate ignore a persisted resolution older than
	// this. Zero means no limit.
	MaxStaleness time.Duration

	// StrictStaleness serves defaults with RESOLVE_STALE when the cached
	// resolution was made for a different context.
	StrictStaleness bool

	// DisableVisitorID stops the client from adding a persisted visitor id
	// to the root context.
	DisableVisitorID bool

	// InitialContext seeds the root context without triggering a resolve.
	InitialContext Struct

	// Logger is the diagnostic sink. Defaults to stderr with a [flagship]
	// prefix.
	Logger logr.Logger

	// Registerer receives the SDK metrics. Nil disables metrics.
	Registerer prometheus.Registerer

	// ApplyBackOff and UploadBackOff override the retry schedules.
	ApplyBackOff  backoff.BackOff
	UploadBackOff backoff.BackOff
}

// Defaults applied by New.
const (
	DefaultResolveURL = "https://resolver.flagship.dev"
	DefaultEventsURL  = "https://events.flagship.dev"
	DefaultDataDir    = ".flagship"
	DefaultSDKVersion = "0.1.0"
)

func (o Options) withDefaults() Options {
	if o.ResolveURL == "" {
		o.ResolveURL = DefaultResolveURL
	}
	if o.EventsURL == "" {
		o.EventsURL = DefaultEventsURL
	}
	if o.DataDir == "" {
		o.DataDir = DefaultDataDir
	}
	if o.StoreType == "" {
		o.StoreType = StoreFile
	}
	if o.SDKVersion == "" {
		o.SDKVersion = DefaultSDKVersion
	}
	if o.FlushThreshold <= 0 {
		o.FlushThreshold = flushpolicy.DefaultThreshold
	}
	if o.Fs == nil {
		if o.StoreType == StoreMemory {
			o.Fs = afero.NewMemMapFs()
		} else {
			o.Fs = afero.NewOsFs()
		}
	}
	if o.Logger.GetSink() == nil {
		o.Logger = stdr.New(log.New(os.Stderr, "[flagship] ", log.LstdFlags))
	}
	return o
}
