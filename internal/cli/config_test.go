package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFile_MissingReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfigFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "local", cfg.DefaultProfile)
	assert.Empty(t, cfg.Profiles)
}

func TestSaveAndLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	in := &Config{
		DefaultProfile: "dev",
		Profiles: map[string]Profile{
			"dev": {ResolveURL: "http://localhost:8080", ClientSecret: "abc", Flags: []string{"banner"}},
		},
	}
	require.NoError(t, SaveConfigFile(in, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	out, err := LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestLoadConfigFile_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("profiles: ["), 0600))
	_, err := LoadConfigFile(path)
	assert.Error(t, err)
}

func TestInitConfig_UsesConfigOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv("FLAGSHIP_CONFIG", path)

	cfg, err := InitConfig()
	require.NoError(t, err)

	loaded, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
	assert.Equal(t, []string{"local", "prod"}, loaded.ProfileNames())
}

func TestProfileGetSet(t *testing.T) {
	var p Profile
	require.NoError(t, p.Set("flags", "a, b,,c"))
	assert.Equal(t, []string{"a", "b", "c"}, p.Flags)

	got, err := p.Get("flags")
	require.NoError(t, err)
	assert.Equal(t, "a,b,c", got)

	require.NoError(t, p.Set("client_secret", "xyz"))
	got, err = p.Get("client_secret")
	require.NoError(t, err)
	assert.Equal(t, "xyz", got)

	assert.Error(t, p.Set("api_key", "x"))
	_, err = p.Get("api_key")
	assert.Error(t, err)
}

func TestGetProfile(t *testing.T) {
	cfg := &Config{
		DefaultProfile: "local",
		Profiles: map[string]Profile{
			"local": {ResolveURL: "http://localhost:8080", ClientSecret: "file-secret"},
			"empty": {ResolveURL: "http://localhost:8080"},
		},
	}

	t.Run("default profile", func(t *testing.T) {
		p, name, err := GetProfile(cfg, "")
		require.NoError(t, err)
		assert.Equal(t, "local", name)
		assert.Equal(t, "file-secret", p.ClientSecret)
	})

	t.Run("unknown profile", func(t *testing.T) {
		_, _, err := GetProfile(cfg, "staging")
		assert.Error(t, err)
	})

	t.Run("missing secret", func(t *testing.T) {
		_, _, err := GetProfile(cfg, "empty")
		assert.Error(t, err)
	})

	t.Run("env overrides file", func(t *testing.T) {
		t.Setenv("FLAGSHIP_CLIENT_SECRET", "env-secret")
		t.Setenv("FLAGSHIP_RESOLVE_URL", "http://resolver:9000")
		p, _, err := GetProfile(cfg, "local")
		require.NoError(t, err)
		assert.Equal(t, "env-secret", p.ClientSecret)
		assert.Equal(t, "http://resolver:9000", p.ResolveURL)
	})

	t.Run("env only", func(t *testing.T) {
		t.Setenv("FLAGSHIP_CLIENT_SECRET", "env-secret")
		p, name, err := GetProfile(cfg, "ci")
		require.NoError(t, err)
		assert.Equal(t, "ci", name)
		assert.Equal(t, "env-secret", p.ClientSecret)
	})
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "abcd***", MaskSecret("abcdefgh"))
	assert.Equal(t, "***", MaskSecret("abc"))
}
