package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsAndEnv(t *testing.T) {
	t.Setenv("WARDROBE_DATABASE_DSN", "postgres://u:p@localhost/wardrobe")
	t.Setenv("WARDROBE_PIPELINE_MAX_RETRY", "9")
	t.Setenv("WARDROBE_PIPELINE_REQUEST_MAX_AGE", "30m")

	cfg, err := load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, "postgres://u:p@localhost/wardrobe", cfg.Database.DSN)
	assert.Equal(t, 9, cfg.Pipeline.MaxRetry)
	assert.Equal(t, 30*time.Minute, cfg.Pipeline.RequestMaxAge)
	assert.Equal(t, "localhost:6379", cfg.Redis.Address)
	assert.Equal(t, "wardrobe:push", cfg.Push.ChannelPrefix)
	assert.Equal(t, ":8080", cfg.ListenAddr())
	assert.NoError(t, cfg.ValidateServer())
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  dsn: postgres://file
storage:
  root: /srv/wardrobe
  shared_root: /mnt/shared
  base_url: https://cdn.example.com
worker:
  concurrency: 3
  queues:
    processing.result: 1
`), 0o644))

	cfg, err := load(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, "postgres://file", cfg.Database.DSN)
	assert.Equal(t, "/mnt/shared", cfg.Storage.SharedRoot)
	assert.Equal(t, 3, cfg.Worker.Concurrency)
	assert.Equal(t, map[string]int{"processing.result": 1}, cfg.Worker.Queues)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := load(viper.New(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		var c Config
		c.Database.DSN = "postgres://x"
		c.Redis.Address = "localhost:6379"
		c.Storage.Root = "/tmp/x"
		c.Worker.Concurrency = 1
		c.Worker.Queues = map[string]int{"processing.result": 1}
		c.Push.ChannelPrefix = "p"
		c.Log.Level = "info"
		c.Server.Port = 8080
		return &c
	}
	require.NoError(t, valid().ValidateServer())

	cases := map[string]func(c *Config){
		"no dsn":          func(c *Config) { c.Database.DSN = "" },
		"no redis":        func(c *Config) { c.Redis.Address = "" },
		"zero workers":    func(c *Config) { c.Worker.Concurrency = 0 },
		"bad priority":    func(c *Config) { c.Worker.Queues["processing.result"] = 0 },
		"negative retry":  func(c *Config) { c.Pipeline.MaxRetry = -1 },
		"bad log level":   func(c *Config) { c.Log.Level = "loud" },
		"bad log format":  func(c *Config) { c.Log.Format = "xml" },
		"no push prefix":  func(c *Config) { c.Push.ChannelPrefix = " " },
		"port over range": func(c *Config) { c.Server.Port = 70000 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := valid()
			mutate(c)
			assert.Error(t, c.ValidateServer())
		})
	}
}
