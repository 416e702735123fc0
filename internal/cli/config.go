package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the CLI configuration
type Config struct {
	DefaultProfile string             `yaml:"default_profile"`
	Profiles       map[string]Profile `yaml:"profiles"`
}

// Profile holds the SDK settings for one backend
type Profile struct {
	ResolveURL   string   `yaml:"resolve_url"`
	EventsURL    string   `yaml:"events_url"`
	ClientSecret string   `yaml:"client_secret"`
	DataDir      string   `yaml:"data_dir,omitempty"`
	Flags        []string `yaml:"flags,omitempty"`
}

// ProfileKeys lists the keys accepted by Profile.Get and Profile.Set
var ProfileKeys = []string{"resolve_url", "events_url", "client_secret", "data_dir", "flags"}

// Get returns the value of a profile key
func (p Profile) Get(key string) (string, error) {
	switch key {
	case "resolve_url":
		return p.ResolveURL, nil
	case "events_url":
		return p.EventsURL, nil
	case "client_secret":
		return p.ClientSecret, nil
	case "data_dir":
		return p.DataDir, nil
	case "flags":
		return strings.Join(p.Flags, ","), nil
	}
	return "", fmt.Errorf("unknown key '%s', valid keys: %s", key, strings.Join(ProfileKeys, ", "))
}

// Set updates a profile key in place
func (p *Profile) Set(key, value string) error {
	switch key {
	case "resolve_url":
		p.ResolveURL = value
	case "events_url":
		p.EventsURL = value
	case "client_secret":
		p.ClientSecret = value
	case "data_dir":
		p.DataDir = value
	case "flags":
		p.Flags = nil
		for _, f := range strings.Split(value, ",") {
			if f = strings.TrimSpace(f); f != "" {
				p.Flags = append(p.Flags, f)
			}
		}
	default:
		return fmt.Errorf("unknown key '%s', valid keys: %s", key, strings.Join(ProfileKeys, ", "))
	}
	return nil
}

// ProfileNames returns the configured profile names in order
func (c *Config) ProfileNames() []string {
	names := make([]string, 0, len(c.Profiles))
	for name := range c.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MaskSecret hides all but the first four characters of a secret
func MaskSecret(secret string) string {
	if len(secret) > 4 {
		return secret[:4] + "***"
	}
	return "***"
}

// GetConfigPath returns the path to the config file
func GetConfigPath() (string, error) {
	if p := os.Getenv("FLAGSHIP_CONFIG"); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".flagship", "config.yaml"), nil
}

// LoadConfig loads the configuration from file
func LoadConfig() (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadConfigFile(configPath)
}

// LoadConfigFile loads the configuration from the given path
func LoadConfigFile(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// Return empty config if file doesn't exist
			return &Config{
				DefaultProfile: "local",
				Profiles:       make(map[string]Profile),
			}, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if cfg.Profiles == nil {
		cfg.Profiles = make(map[string]Profile)
	}

	return &cfg, nil
}

// SaveConfig saves the configuration to file
func SaveConfig(cfg *Config) error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}
	return SaveConfigFile(cfg, configPath)
}

// SaveConfigFile saves the configuration to the given path
func SaveConfigFile(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetProfile returns the settings for a profile.
// Priority: environment variables > config file
// Returns the profile and the effective profile name
func GetProfile(cfg *Config, name string) (*Profile, string, error) {
	if name == "" {
		name = cfg.DefaultProfile
	}

	p, ok := cfg.Profiles[name]
	envSecret := os.Getenv("FLAGSHIP_CLIENT_SECRET")
	if !ok && envSecret == "" {
		return nil, "", fmt.Errorf("profile '%s' not found in config", name)
	}

	// Override with env vars if provided
	if envSecret != "" {
		p.ClientSecret = envSecret
	}
	if v := os.Getenv("FLAGSHIP_RESOLVE_URL"); v != "" {
		p.ResolveURL = v
	}
	if v := os.Getenv("FLAGSHIP_EVENTS_URL"); v != "" {
		p.EventsURL = v
	}

	if p.ClientSecret == "" {
		return nil, "", fmt.Errorf("client_secret must be configured for profile '%s'", name)
	}

	return &p, name, nil
}

// InitConfig creates a default config file
func InitConfig() (*Config, error) {
	cfg := &Config{
		DefaultProfile: "local",
		Profiles: map[string]Profile{
			"local": {
				ResolveURL:   "http://localhost:8080",
				EventsURL:    "http://localhost:8080",
				ClientSecret: "local-secret",
			},
			"prod": {
				ResolveURL:   "https://resolver.flagship.dev",
				EventsURL:    "https://events.flagship.dev",
				ClientSecret: "replace-me",
			},
		},
	}

	return cfg, SaveConfig(cfg)
}
