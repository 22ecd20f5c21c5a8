package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Database struct {
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"database"`

	Redis struct {
		Address  string `mapstructure:"address"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`

	Worker struct {
		Concurrency int            `mapstructure:"concurrency"`
		Queues      map[string]int `mapstructure:"queues"`
	} `mapstructure:"worker"`

	Storage struct {
		Root       string `mapstructure:"root"`        // where outputs are written
		SharedRoot string `mapstructure:"shared_root"` // where the image worker leaves its files
		BaseURL    string `mapstructure:"base_url"`
	} `mapstructure:"storage"`

	Pipeline struct {
		MaxRetry       int           `mapstructure:"max_retry"`
		MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
		RequestMaxAge  time.Duration `mapstructure:"request_max_age"` // 0 disables the staleness check
	} `mapstructure:"pipeline"`

	Push struct {
		ChannelPrefix string `mapstructure:"channel_prefix"`
	} `mapstructure:"push"`

	Server struct {
		Addr string `mapstructure:"addr"`
		Port int    `mapstructure:"port"`
	} `mapstructure:"server"`

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"` // "text" or "json"
	} `mapstructure:"log"`
}

// ListenAddr is the host:port the HTTP server binds.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Addr, c.Server.Port)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("worker.concurrency", 10)
	v.SetDefault("worker.queues", map[string]int{
		"processing.result":   6,
		"processing.progress": 3,
	})
	v.SetDefault("storage.root", "./data/storage")
	v.SetDefault("storage.base_url", "/files")
	v.SetDefault("pipeline.max_retry", 5)
	v.SetDefault("pipeline.max_upload_bytes", 20<<20)
	v.SetDefault("pipeline.request_max_age", "0s")
	v.SetDefault("push.channel_prefix", "wardrobe:push")
	v.SetDefault("server.addr", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// LoadConfig reads config.yaml from the working directory (or path, when
// given) and overlays WARDROBE_* environment variables.
func LoadConfig(path string) (*Config, error) {
	return load(viper.New(), path)
}

func load(v *viper.Viper, path string) (*Config, error) {
	setDefaults(v)
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// WARDROBE_DATABASE_DSN -> database.dsn
	v.SetEnvPrefix("WARDROBE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// AutomaticEnv only resolves keys viper already knows about.
	_ = v.BindEnv("database.dsn")
	_ = v.BindEnv("redis.password")
	_ = v.BindEnv("storage.shared_root")

	if err := v.ReadInConfig(); err != nil {
		// Without an explicit path a missing file is fine; defaults and env vars carry the config.
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}
	return &config, nil
}
