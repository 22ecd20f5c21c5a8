package config

import (
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Validate checks the settings every process needs. Server-only fields are
// checked by ValidateServer.
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return errors.New("database.dsn is required")
	}
	if c.Redis.Address == "" {
		return errors.New("redis.address is required")
	}
	if c.Storage.Root == "" {
		return errors.New("storage.root is required")
	}

	if c.Worker.Concurrency <= 0 {
		return errors.New("worker.concurrency must be a positive integer")
	}
	if len(c.Worker.Queues) == 0 {
		return errors.New("worker.queues must define at least one queue")
	}
	for name, priority := range c.Worker.Queues {
		if name == "" {
			return errors.New("worker.queues contains an empty queue name")
		}
		if priority <= 0 {
			return fmt.Errorf("worker.queues priority for queue '%s' must be positive", name)
		}
	}

	if c.Pipeline.MaxRetry < 0 {
		return errors.New("pipeline.max_retry must not be negative")
	}
	if c.Pipeline.MaxUploadBytes < 0 {
		return errors.New("pipeline.max_upload_bytes must not be negative")
	}
	if c.Pipeline.RequestMaxAge < 0 {
		return errors.New("pipeline.request_max_age must not be negative")
	}
	if strings.TrimSpace(c.Push.ChannelPrefix) == "" {
		return errors.New("push.channel_prefix is required")
	}

	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// ValidateServer adds the checks only the HTTP server cares about.
func (c *Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	return nil
}
