package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/framekit/internal/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		config  *config.LoggingConfig
		wantErr bool
		check   func(t *testing.T, log *logrus.Logger)
	}{
		{
			name:   "json format stdout",
			config: &config.LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
			check: func(t *testing.T, log *logrus.Logger) {
				assert.Equal(t, logrus.InfoLevel, log.Level)
				assert.IsType(t, &logrus.JSONFormatter{}, log.Formatter)
				assert.Equal(t, os.Stdout, log.Out)
			},
		},
		{
			name:   "text format stderr",
			config: &config.LoggingConfig{Level: "debug", Format: "text", Output: "stderr"},
			check: func(t *testing.T, log *logrus.Logger) {
				assert.Equal(t, logrus.DebugLevel, log.Level)
				assert.IsType(t, &logrus.TextFormatter{}, log.Formatter)
			},
		},
		{
			name: "rotating file output",
			config: &config.LoggingConfig{
				Level:      "warn",
				Format:     "json",
				Output:     filepath.Join(t.TempDir(), "nested", "framekit.log"),
				MaxSize:    10,
				MaxBackups: 3,
				MaxAge:     7,
			},
			check: func(t *testing.T, log *logrus.Logger) {
				assert.Equal(t, logrus.WarnLevel, log.Level)
				assert.NotEqual(t, os.Stdout, log.Out)
			},
		},
		{
			name:    "invalid log level",
			config:  &config.LoggingConfig{Level: "loud", Format: "json", Output: "stdout"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := New(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, log)
				return
			}
			require.NoError(t, err)
			tt.check(t, log)
		})
	}
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "framekit.log")
	log, err := New(&config.LoggingConfig{Level: "info", Format: "json", Output: path, MaxSize: 1})
	require.NoError(t, err)

	WithStream(WithComponent(Service(log), "pipeline"), "abc").Info("stream started")

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &entry))
	assert.Equal(t, "stream started", entry["message"])
	assert.Equal(t, "pipeline", entry["component"])
	assert.Equal(t, "abc", entry["stream_id"])
	assert.Equal(t, "framekit", entry["service"])
	assert.Contains(t, entry, "version")
}

func TestLogrusAdapter_ImmutableChaining(t *testing.T) {
	log, buf := bufferedLogger()
	base := NewLogrusAdapter(logrus.NewEntry(log))

	child := base.WithField("a", 1)
	_ = child.WithFields(map[string]interface{}{"b": 2})
	child.WithError(assert.AnError).Warnf("value %d", 3)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "value 3", entry["msg"])
	assert.Equal(t, float64(1), entry["a"])
	assert.NotContains(t, entry, "b")
	assert.Equal(t, assert.AnError.Error(), entry[logrus.ErrorKey])
}

func TestLogrusAdapter_Fatal(t *testing.T) {
	log, _ := bufferedLogger()
	exitCode := -1
	log.ExitFunc = func(code int) { exitCode = code }

	NewLogrusAdapter(logrus.NewEntry(log)).Fatal("boom")
	assert.Equal(t, 1, exitCode)
}

func TestNullLogger(t *testing.T) {
	l := NewNullLogger()
	assert.NotPanics(t, func() {
		l.WithField("k", "v").WithError(assert.AnError).WithFields(nil).Info("ignored")
		l.Fatal("does not exit")
	})
}
