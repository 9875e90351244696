package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRedisConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  RedisConfig
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid config",
			config: RedisConfig{
				Addresses:    []string{"localhost:6379"},
				DB:           0,
				MaxRetries:   3,
				PoolSize:     100,
				MinIdleConns: 10,
			},
			wantErr: false,
		},
		{
			name: "missing addresses",
			config: RedisConfig{
				Addresses: []string{},
				PoolSize:  100,
			},
			wantErr: true,
			errMsg:  "at least one Redis address is required",
		},
		{
			name: "negative DB",
			config: RedisConfig{
				Addresses: []string{"localhost:6379"},
				DB:        -1,
				PoolSize:  100,
			},
			wantErr: true,
			errMsg:  "invalid Redis database number",
		},
		{
			name: "zero pool size",
			config: RedisConfig{
				Addresses: []string{"localhost:6379"},
			},
			wantErr: true,
			errMsg:  "pool_size must be positive",
		},
		{
			name: "min idle conns greater than pool size",
			config: RedisConfig{
				Addresses:    []string{"localhost:6379"},
				PoolSize:     10,
				MinIdleConns: 20,
			},
			wantErr: true,
			errMsg:  "min_idle_conns cannot be greater than pool_size",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoggingConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  LoggingConfig
		wantErr bool
		errMsg  string
	}{
		{
			name:   "stdout json",
			config: LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
		},
		{
			name:    "invalid level",
			config:  LoggingConfig{Level: "verbose", Format: "json", Output: "stdout"},
			wantErr: true,
			errMsg:  "invalid log level",
		},
		{
			name:    "invalid format",
			config:  LoggingConfig{Level: "info", Format: "xml", Output: "stdout"},
			wantErr: true,
			errMsg:  "log format must be",
		},
		{
			name:    "file output needs max size",
			config:  LoggingConfig{Level: "info", Format: "text", Output: "/var/log/framekit.log"},
			wantErr: true,
			errMsg:  "max_size must be positive",
		},
		{
			name:   "file output",
			config: LoggingConfig{Level: "info", Format: "text", Output: "/var/log/framekit.log", MaxSize: 10},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPipelineConfigValidate(t *testing.T) {
	valid := PipelineConfig{
		Input:     "stream.h264",
		Codec:     "H264",
		MergeMode: "annexb",
		FrameRate: 25,
		ChunkSize: 4096,
	}

	tests := []struct {
		name    string
		mutate  func(p *PipelineConfig)
		wantErr bool
		errMsg  string
	}{
		{name: "valid", mutate: func(p *PipelineConfig) {}},
		{name: "h265 lower case", mutate: func(p *PipelineConfig) { p.Codec = "h265" }},
		{name: "none mode", mutate: func(p *PipelineConfig) { p.MergeMode = "none" }},
		{
			name:    "empty input",
			mutate:  func(p *PipelineConfig) { p.Input = "" },
			wantErr: true,
			errMsg:  "input cannot be empty",
		},
		{
			name:    "audio codec",
			mutate:  func(p *PipelineConfig) { p.Codec = "opus" },
			wantErr: true,
			errMsg:  "unsupported codec",
		},
		{
			name:    "unknown mode",
			mutate:  func(p *PipelineConfig) { p.MergeMode = "rtp" },
			wantErr: true,
			errMsg:  "unknown merge mode",
		},
		{
			name:    "zero frame rate",
			mutate:  func(p *PipelineConfig) { p.FrameRate = 0 },
			wantErr: true,
			errMsg:  "frame_rate",
		},
		{
			name:    "tiny chunk",
			mutate:  func(p *PipelineConfig) { p.ChunkSize = 16 },
			wantErr: true,
			errMsg:  "chunk_size",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestStatsConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  StatsConfig
		wantErr bool
		errMsg  string
	}{
		{name: "disabled", config: StatsConfig{}},
		{
			name:   "valid",
			config: StatsConfig{Enabled: true, PublishInterval: time.Second, KeyPrefix: "fk:", TTL: 10 * time.Second},
		},
		{
			name:    "empty prefix",
			config:  StatsConfig{Enabled: true, PublishInterval: time.Second, TTL: 10 * time.Second},
			wantErr: true,
			errMsg:  "key_prefix cannot be empty",
		},
		{
			name:    "ttl shorter than interval",
			config:  StatsConfig{Enabled: true, PublishInterval: 5 * time.Second, KeyPrefix: "fk:", TTL: time.Second},
			wantErr: true,
			errMsg:  "ttl",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMetricsConfigValidate(t *testing.T) {
	assert.NoError(t, (&MetricsConfig{}).Validate())
	assert.Error(t, (&MetricsConfig{Enabled: true, Port: 0, Path: "/metrics"}).Validate())
	assert.Error(t, (&MetricsConfig{Enabled: true, Port: 9090}).Validate())
}
