package config

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/go-logr/logr"
)

var allKeys = []string{
	"FLAGSHIP_CLIENT_SECRET", "FLAGSHIP_RESOLVE_URL", "FLAGSHIP_EVENTS_URL",
	"FLAGSHIP_DATA_DIR", "FLAGSHIP_STORE_TYPE", "FLAGSHIP_FLAGS",
	"FLAGSHIP_FLUSH_THRESHOLD", "FLAGSHIP_MAX_STALENESS", "FLAGSHIP_STRICT_STALENESS",
	"FLAGSHIP_SDK_VERSION", "FLAGSHIP_HTTP_TIMEOUT", "FLAGSHIP_METRICS_ADDR",
	"MOCK_HTTP_ADDR", "MOCK_FLAGS_FILE", "MOCK_RATE_LIMIT",
}

func clearEnv() {
	for _, key := range allKeys {
		os.Unsetenv(key)
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	clearEnv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.ResolveURL != "http://localhost:8080" {
		t.Errorf("Expected ResolveURL='http://localhost:8080', got '%s'", cfg.ResolveURL)
	}
	if cfg.DataDir != ".flagship" {
		t.Errorf("Expected DataDir='.flagship', got '%s'", cfg.DataDir)
	}
	if cfg.StoreType != "file" {
		t.Errorf("Expected StoreType='file', got '%s'", cfg.StoreType)
	}
	if cfg.FlushThreshold != 4 {
		t.Errorf("Expected FlushThreshold=4, got %d", cfg.FlushThreshold)
	}
	if cfg.HTTPTimeout != 10*time.Second {
		t.Errorf("Expected HTTPTimeout=10s, got %v", cfg.HTTPTimeout)
	}
	if cfg.MaxStaleness != 0 {
		t.Errorf("Expected MaxStaleness=0, got %v", cfg.MaxStaleness)
	}
	if len(cfg.Flags) != 0 {
		t.Errorf("Expected no flags, got %v", cfg.Flags)
	}
	if cfg.MockHTTPAddr != ":8080" {
		t.Errorf("Expected MockHTTPAddr=':8080', got '%s'", cfg.MockHTTPAddr)
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	clearEnv()
	os.Setenv("FLAGSHIP_CLIENT_SECRET", "s3cret")
	os.Setenv("FLAGSHIP_STORE_TYPE", "memory")
	os.Setenv("FLAGSHIP_FLAGS", "banner, checkout ,")
	os.Setenv("FLAGSHIP_FLUSH_THRESHOLD", "25")
	os.Setenv("FLAGSHIP_MAX_STALENESS", "1h")
	os.Setenv("FLAGSHIP_STRICT_STALENESS", "true")
	os.Setenv("MOCK_RATE_LIMIT", "30")
	defer clearEnv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.ClientSecret != "s3cret" {
		t.Errorf("Expected ClientSecret='s3cret', got '%s'", cfg.ClientSecret)
	}
	if cfg.StoreType != "memory" {
		t.Errorf("Expected StoreType='memory', got '%s'", cfg.StoreType)
	}
	if len(cfg.Flags) != 2 || cfg.Flags[0] != "banner" || cfg.Flags[1] != "checkout" {
		t.Errorf("Expected flags [banner checkout], got %v", cfg.Flags)
	}
	if cfg.FlushThreshold != 25 {
		t.Errorf("Expected FlushThreshold=25, got %d", cfg.FlushThreshold)
	}
	if cfg.MaxStaleness != time.Hour {
		t.Errorf("Expected MaxStaleness=1h, got %v", cfg.MaxStaleness)
	}
	if !cfg.StrictStaleness {
		t.Error("Expected StrictStaleness=true")
	}
	if cfg.MockRateLimit != 30 {
		t.Errorf("Expected MockRateLimit=30, got %d", cfg.MockRateLimit)
	}
}

func TestLoad_MissingEnvFileIsAcceptable(t *testing.T) {
	clearEnv()
	if _, err := Load(); err != nil {
		t.Errorf("Load() should succeed without .env file, got: %v", err)
	}
}

func validConfig() *Config {
	return &Config{
		ClientSecret:   "secret",
		ResolveURL:     "https://resolver.example.com",
		EventsURL:      "http://localhost:8080",
		DataDir:        "/tmp/flagship",
		StoreType:      "file",
		FlushThreshold: 4,
		SDKVersion:     "1.2.3",
		HTTPTimeout:    time.Second,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"valid", func(*Config) {}, ""},
		{"memory store without dir", func(c *Config) { c.StoreType = "memory"; c.DataDir = "" }, ""},
		{"missing secret", func(c *Config) { c.ClientSecret = "" }, "FLAGSHIP_CLIENT_SECRET"},
		{"relative resolve url", func(c *Config) { c.ResolveURL = "resolver" }, "FLAGSHIP_RESOLVE_URL"},
		{"ftp events url", func(c *Config) { c.EventsURL = "ftp://x" }, "FLAGSHIP_EVENTS_URL"},
		{"unknown store", func(c *Config) { c.StoreType = "postgres" }, "FLAGSHIP_STORE_TYPE"},
		{"file store without dir", func(c *Config) { c.DataDir = "" }, "FLAGSHIP_DATA_DIR"},
		{"zero threshold", func(c *Config) { c.FlushThreshold = 0 }, "FLAGSHIP_FLUSH_THRESHOLD"},
		{"negative staleness", func(c *Config) { c.MaxStaleness = -time.Second }, "FLAGSHIP_MAX_STALENESS"},
		{"negative timeout", func(c *Config) { c.HTTPTimeout = -time.Second }, "FLAGSHIP_HTTP_TIMEOUT"},
		{"bad version", func(c *Config) { c.SDKVersion = "v1" }, "FLAGSHIP_SDK_VERSION"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.field == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			var verr ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() = %v, want ValidationError", err)
			}
			if verr.Field != tt.field {
				t.Errorf("Field = %s, want %s", verr.Field, tt.field)
			}
		})
	}
}

func TestSDKOptions(t *testing.T) {
	cfg := validConfig()
	cfg.Flags = []string{"banner"}
	cfg.MaxStaleness = time.Minute

	opts := cfg.SDKOptions(logr.Discard())
	if opts.ClientSecret != "secret" || opts.DataDir != "/tmp/flagship" {
		t.Errorf("unexpected options: %+v", opts)
	}
	if len(opts.Flags) != 1 || opts.MaxStaleness != time.Minute {
		t.Errorf("flags or staleness not carried over: %+v", opts)
	}
}
