package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	assert.True(t, cfg.Server.IsServer)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.True(t, cfg.Database.UseMemoryDB)
	assert.Equal(t, "http://localhost:11235", cfg.Crawler.URL)
	assert.Equal(t, 384, cfg.Embedding.Dimensions)
	assert.Equal(t, 4, cfg.Search.OverfetchFactor)
	assert.Equal(t, 5*time.Second, cfg.Sync.IdleThreshold)
	require.NoError(t, cfg.Validate())
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "webrecall.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
crawler:
  url: http://crawler:11235
  timeout: 45s
crawl:
  default_max_depth: 3
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "http://crawler:11235", cfg.Crawler.URL)
	assert.Equal(t, 45*time.Second, cfg.Crawler.Timeout)
	assert.Equal(t, 3, cfg.Crawl.DefaultMaxDepth)
	// untouched keys keep defaults
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
}

func TestLoad_EnvBeatsYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "webrecall.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9090\n"), 0o644))

	t.Setenv("SERVER_PORT", "7070")
	t.Setenv("API_KEY", "env-secret")
	t.Setenv("CRAWLER_URL", "http://env-crawler:11235/")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "env-secret", cfg.Auth.APIKey)
	assert.Equal(t, "http://env-crawler:11235", cfg.Crawler.URL, "trailing slash trimmed")
}

func TestLoad_MissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"empty db path", func(c *Config) { c.Database.Path = "" }},
		{"zero dimensions", func(c *Config) { c.Embedding.Dimensions = 0 }},
		{"zero overfetch", func(c *Config) { c.Search.OverfetchFactor = 0 }},
		{"zero rate limit", func(c *Config) { c.Auth.RateLimitPerMinute = 0 }},
		{"zero sync interval", func(c *Config) { c.Sync.IdleThreshold = 0 }},
		{"forward mode without remote url", func(c *Config) { c.Server.IsServer = false; c.Remote.APIURL = "" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := NewConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestParseBool_TolerantForms(t *testing.T) {
	for _, v := range []string{"true", "1", "YES", "On"} {
		b, err := parseBool(v)
		require.NoError(t, err)
		assert.True(t, b, v)
	}
	for _, v := range []string{"false", "0", "no", "OFF"} {
		b, err := parseBool(v)
		require.NoError(t, err)
		assert.False(t, b, v)
	}
	_, err := parseBool("maybe")
	assert.Error(t, err)
}

func TestWriteYAML_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "webrecall.yaml")

	cfg := NewConfig()
	cfg.Server.Port = 8181
	require.NoError(t, cfg.WriteYAML(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8181, loaded.Server.Port)
}
