// Package config provides SDK configuration loading from environment variables and .env files.
// It uses viper for flexible configuration management with sensible defaults.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/go-logr/logr"
	"github.com/spf13/viper"

	"github.com/TimurManjosov/goflagship-sdk/flagship"
)

// Config holds all SDK and mock server configuration loaded from environment variables or .env file.
// Configuration priority: environment variables > .env file > defaults.
type Config struct {
	ClientSecret    string        // Client secret sent with every request
	ResolveURL      string        // Base URL of the flag resolver
	EventsURL       string        // Base URL of the event collector
	DataDir         string        // Directory for the resolution cache, applied flags and events
	StoreType       string        // Persistence backend (file or memory)
	Flags           []string      // Flags to resolve; empty resolves all
	FlushThreshold  int           // Events per uploaded batch
	MaxStaleness    time.Duration // Maximum age of a persisted resolution; 0 disables
	StrictStaleness bool          // Serve defaults instead of stale values
	SDKVersion      string        // Version reported in the sdk field
	HTTPTimeout     time.Duration // Timeout of every backend call
	MetricsAddr     string        // Metrics server bind address; empty disables
	MockHTTPAddr    string        // Mock backend bind address
	MockFlagsFile   string        // YAML file served by the mock backend
	MockRateLimit   int           // Mock backend requests per minute per IP; 0 disables
}

// Load reads configuration from environment variables and .env file (if present).
// Environment variables take precedence over .env file values.
//
// Validation:
//
//	Load does not check constraints between fields. Use Validate() for that.
func Load() (*Config, error) {
	viperInstance := viper.New()
	viperInstance.SetConfigFile(".env") // Optional; silently ignored if file doesn't exist
	_ = viperInstance.ReadInConfig()    // Ignore error - .env is optional
	viperInstance.AutomaticEnv()        // Read from environment variables

	setConfigDefaults(viperInstance)

	return &Config{
		ClientSecret:    viperInstance.GetString("FLAGSHIP_CLIENT_SECRET"),
		ResolveURL:      viperInstance.GetString("FLAGSHIP_RESOLVE_URL"),
		EventsURL:       viperInstance.GetString("FLAGSHIP_EVENTS_URL"),
		DataDir:         viperInstance.GetString("FLAGSHIP_DATA_DIR"),
		StoreType:       viperInstance.GetString("FLAGSHIP_STORE_TYPE"),
		Flags:           splitList(viperInstance.GetString("FLAGSHIP_FLAGS")),
		FlushThreshold:  viperInstance.GetInt("FLAGSHIP_FLUSH_THRESHOLD"),
		MaxStaleness:    viperInstance.GetDuration("FLAGSHIP_MAX_STALENESS"),
		StrictStaleness: viperInstance.GetBool("FLAGSHIP_STRICT_STALENESS"),
		SDKVersion:      viperInstance.GetString("FLAGSHIP_SDK_VERSION"),
		HTTPTimeout:     viperInstance.GetDuration("FLAGSHIP_HTTP_TIMEOUT"),
		MetricsAddr:     viperInstance.GetString("FLAGSHIP_METRICS_ADDR"),
		MockHTTPAddr:    viperInstance.GetString("MOCK_HTTP_ADDR"),
		MockFlagsFile:   viperInstance.GetString("MOCK_FLAGS_FILE"),
		MockRateLimit:   viperInstance.GetInt("MOCK_RATE_LIMIT"),
	}, nil
}

// setConfigDefaults sets default values for all configuration options.
// These defaults are suitable for local development against the mock backend.
func setConfigDefaults(v *viper.Viper) {
	v.SetDefault("FLAGSHIP_RESOLVE_URL", "http://localhost:8080")
	v.SetDefault("FLAGSHIP_EVENTS_URL", "http://localhost:8080")
	v.SetDefault("FLAGSHIP_DATA_DIR", flagship.DefaultDataDir)
	v.SetDefault("FLAGSHIP_STORE_TYPE", flagship.StoreFile)
	v.SetDefault("FLAGSHIP_FLAGS", "")
	v.SetDefault("FLAGSHIP_FLUSH_THRESHOLD", 4)
	v.SetDefault("FLAGSHIP_MAX_STALENESS", "0s")
	v.SetDefault("FLAGSHIP_STRICT_STALENESS", false)
	v.SetDefault("FLAGSHIP_SDK_VERSION", flagship.DefaultSDKVersion)
	v.SetDefault("FLAGSHIP_HTTP_TIMEOUT", "10s")
	v.SetDefault("FLAGSHIP_METRICS_ADDR", "")
	v.SetDefault("MOCK_HTTP_ADDR", ":8080")
	v.SetDefault("MOCK_FLAGS_FILE", "flags.yaml")
	v.SetDefault("MOCK_RATE_LIMIT", 0)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ValidationError represents a configuration validation error with details about what failed.
type ValidationError struct {
	Field   string // Name of the configuration field
	Message string // Human-readable error message
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation failed [%s]: %s", e.Field, e.Message)
}

// Validate checks the SDK settings.
//
// Validation Rules:
//  1. ClientSecret must be non-empty
//  2. ResolveURL and EventsURL must be absolute http(s) URLs
//  3. StoreType must be one of: "file", "memory"
//  4. DataDir must be non-empty for the file store
//  5. FlushThreshold must be positive
//  6. MaxStaleness and HTTPTimeout must not be negative
//  7. SDKVersion must be a semantic version
//
// Returns:
//   - nil if configuration is valid
//   - ValidationError describing the first validation failure
func (c *Config) Validate() error {
	// 1. Client secret is required
	if c.ClientSecret == "" {
		return ValidationError{
			Field:   "FLAGSHIP_CLIENT_SECRET",
			Message: "client secret cannot be empty",
		}
	}

	// 2. Backend URLs
	for field, raw := range map[string]string{
		"FLAGSHIP_RESOLVE_URL": c.ResolveURL,
		"FLAGSHIP_EVENTS_URL":  c.EventsURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return ValidationError{
				Field:   field,
				Message: fmt.Sprintf("must be an absolute http(s) URL, got '%s'", raw),
			}
		}
	}

	// 3. Validate store type
	if c.StoreType != flagship.StoreFile && c.StoreType != flagship.StoreMemory {
		return ValidationError{
			Field:   "FLAGSHIP_STORE_TYPE",
			Message: fmt.Sprintf("must be 'file' or 'memory', got '%s'", c.StoreType),
		}
	}

	// 4. File store needs a directory
	if c.StoreType == flagship.StoreFile && c.DataDir == "" {
		return ValidationError{
			Field:   "FLAGSHIP_DATA_DIR",
			Message: "data directory is required when FLAGSHIP_STORE_TYPE=file",
		}
	}

	// 5. Batches need at least one event
	if c.FlushThreshold <= 0 {
		return ValidationError{
			Field:   "FLAGSHIP_FLUSH_THRESHOLD",
			Message: fmt.Sprintf("must be positive, got %d", c.FlushThreshold),
		}
	}

	// 6. Durations
	if c.MaxStaleness < 0 {
		return ValidationError{
			Field:   "FLAGSHIP_MAX_STALENESS",
			Message: "cannot be negative",
		}
	}
	if c.HTTPTimeout < 0 {
		return ValidationError{
			Field:   "FLAGSHIP_HTTP_TIMEOUT",
			Message: "cannot be negative",
		}
	}

	// 7. The backend parses the sdk version
	if _, err := semver.StrictNewVersion(c.SDKVersion); err != nil {
		return ValidationError{
			Field:   "FLAGSHIP_SDK_VERSION",
			Message: fmt.Sprintf("must be a semantic version, got '%s'", c.SDKVersion),
		}
	}

	return nil
}

// SDKOptions converts the configuration into client options.
func (c *Config) SDKOptions(logger logr.Logger) flagship.Options {
	return flagship.Options{
		ClientSecret:    c.ClientSecret,
		ResolveURL:      c.ResolveURL,
		EventsURL:       c.EventsURL,
		Flags:           c.Flags,
		SDKVersion:      c.SDKVersion,
		HTTPTimeout:     c.HTTPTimeout,
		DataDir:         c.DataDir,
		StoreType:       c.StoreType,
		FlushThreshold:  c.FlushThreshold,
		MaxStaleness:    c.MaxStaleness,
		StrictStaleness: c.StrictStaleness,
		Logger:          logger,
	}
}
