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

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Enabled:         true,
			ListenAddr:      "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Redis: RedisConfig{
			Addresses:    []string{"localhost:6379"},
			MaxRetries:   3,
			PoolSize:     10,
			MinIdleConns: 2,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
			Port:    9090,
		},
		Pipeline: PipelineConfig{
			Input:     "-",
			Codec:     "H264",
			MergeMode: "annexb",
			FrameRate: 25,
			ChunkSize: 65536,
		},
		Stats: StatsConfig{
			Enabled:         true,
			PublishInterval: time.Second,
			KeyPrefix:       "framekit:stream:",
			TTL:             30 * time.Second,
		},
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "framekit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "invalid server port",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: true,
			errMsg:  "invalid HTTP port",
		},
		{
			name:    "server and metrics share a port",
			mutate:  func(c *Config) { c.Metrics.Port = 8080 },
			wantErr: true,
			errMsg:  "cannot share port",
		},
		{
			name:    "unsupported codec",
			mutate:  func(c *Config) { c.Pipeline.Codec = "AAC" },
			wantErr: true,
			errMsg:  "pipeline config: unsupported codec",
		},
		{
			name:    "invalid stats interval",
			mutate:  func(c *Config) { c.Stats.PublishInterval = 0 },
			wantErr: true,
			errMsg:  "stats config",
		},
		{
			name: "disabled sections are not validated",
			mutate: func(c *Config) {
				c.Server = ServerConfig{}
				c.Stats = StatsConfig{}
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				if err != nil {
					assert.Contains(t, err.Error(), tt.errMsg)
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	path := writeConfig(t, `
server:
  port: 8081

logging:
  level: "debug"
  format: "text"

pipeline:
  input: "testdata/stream.h265"
  codec: "h265"
  merge_mode: "length_prefixed"
  frame_rate: 30

stats:
  enabled: true
  publish_interval: 2s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8081, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, []string{"localhost:6379"}, cfg.Redis.Addresses)
	assert.Equal(t, "h265", cfg.Pipeline.Codec)
	assert.Equal(t, "length_prefixed", cfg.Pipeline.MergeMode)
	assert.Equal(t, 30.0, cfg.Pipeline.FrameRate)
	assert.Equal(t, 65536, cfg.Pipeline.ChunkSize)
	assert.True(t, cfg.Stats.Enabled)
	assert.Equal(t, 2*time.Second, cfg.Stats.PublishInterval)
	assert.Equal(t, 30*time.Second, cfg.Stats.TTL)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	t.Setenv("FRAMEKIT_PIPELINE_FRAME_RATE", "50")
	t.Setenv("FRAMEKIT_METRICS_ENABLED", "false")

	cfg, err := Load(writeConfig(t, "pipeline:\n  codec: H264\n"))
	require.NoError(t, err)

	assert.Equal(t, 50.0, cfg.Pipeline.FrameRate)
	assert.False(t, cfg.Metrics.Enabled)
}

func TestLoadConfig_Errors(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config")

	viper.Reset()
	_, err = Load(writeConfig(t, "pipeline:\n  merge_mode: rtp\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}
