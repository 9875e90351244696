package config

import (
	"fmt"

	"github.com/zsiec/framekit/internal/media/codec"
	"github.com/zsiec/framekit/internal/media/merger"
)

func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.Redis.Validate(); err != nil {
		return fmt.Errorf("redis config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics config: %w", err)
	}

	if err := c.Pipeline.Validate(); err != nil {
		return fmt.Errorf("pipeline config: %w", err)
	}

	if err := c.Stats.Validate(); err != nil {
		return fmt.Errorf("stats config: %w", err)
	}

	if c.Server.Enabled && c.Metrics.Enabled && c.Server.Port == c.Metrics.Port {
		return fmt.Errorf("server and metrics cannot share port %d", c.Server.Port)
	}

	return nil
}

func (s *ServerConfig) Validate() error {
	if !s.Enabled {
		return nil
	}

	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", s.Port)
	}

	if s.ReadTimeout < 0 || s.WriteTimeout < 0 {
		return fmt.Errorf("timeouts cannot be negative")
	}

	if s.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown_timeout must be positive")
	}

	return nil
}

func (r *RedisConfig) Validate() error {
	if len(r.Addresses) == 0 {
		return fmt.Errorf("at least one Redis address is required")
	}

	if r.DB < 0 {
		return fmt.Errorf("invalid Redis database number: %d", r.DB)
	}

	if r.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative")
	}

	if r.PoolSize <= 0 {
		return fmt.Errorf("pool_size must be positive")
	}

	if r.MinIdleConns < 0 {
		return fmt.Errorf("min_idle_conns cannot be negative")
	}

	if r.MinIdleConns > r.PoolSize {
		return fmt.Errorf("min_idle_conns cannot be greater than pool_size")
	}

	return nil
}

func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"panic": true,
		"fatal": true,
		"error": true,
		"warn":  true,
		"info":  true,
		"debug": true,
		"trace": true,
	}

	if !validLevels[l.Level] {
		return fmt.Errorf("invalid log level: %s", l.Level)
	}

	if l.Format != "json" && l.Format != "text" {
		return fmt.Errorf("log format must be 'json' or 'text'")
	}

	if l.Output != "stdout" && l.Output != "stderr" {
		if l.MaxSize <= 0 {
			return fmt.Errorf("max_size must be positive for file output")
		}
		if l.MaxBackups < 0 {
			return fmt.Errorf("max_backups cannot be negative")
		}
		if l.MaxAge < 0 {
			return fmt.Errorf("max_age cannot be negative")
		}
	}

	return nil
}

func (m *MetricsConfig) Validate() error {
	if m.Enabled {
		if m.Port < 1 || m.Port > 65535 {
			return fmt.Errorf("invalid metrics port: %d", m.Port)
		}

		if m.Path == "" {
			return fmt.Errorf("metrics path cannot be empty")
		}
	}

	return nil
}

func (p *PipelineConfig) Validate() error {
	if p.Input == "" {
		return fmt.Errorf("input cannot be empty")
	}

	id := codec.FromName(p.Codec)
	if id != codec.H264 && id != codec.H265 {
		return fmt.Errorf("unsupported codec %q: expected H264 or H265", p.Codec)
	}

	if _, err := merger.ParseMode(p.MergeMode); err != nil {
		return err
	}

	if p.FrameRate <= 0 || p.FrameRate > 240 {
		return fmt.Errorf("frame_rate must be in (0, 240], got %g", p.FrameRate)
	}

	if p.ChunkSize < 1024 {
		return fmt.Errorf("chunk_size must be at least 1024 bytes, got %d", p.ChunkSize)
	}

	return nil
}

func (s *StatsConfig) Validate() error {
	if !s.Enabled {
		return nil
	}

	if s.PublishInterval <= 0 {
		return fmt.Errorf("publish_interval must be positive")
	}

	if s.KeyPrefix == "" {
		return fmt.Errorf("key_prefix cannot be empty")
	}

	if s.TTL < s.PublishInterval {
		return fmt.Errorf("ttl (%s) must be at least publish_interval (%s)", s.TTL, s.PublishInterval)
	}

	return nil
}
