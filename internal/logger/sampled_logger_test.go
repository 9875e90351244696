package logger

import (
	"bytes"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countLines(buf *bytes.Buffer) int {
	return bytes.Count(buf.Bytes(), []byte("\n"))
}

func TestSampledLogger_BurstThenDrop(t *testing.T) {
	log, buf := bufferedLogger()
	s := NewSampledLogger(NewLogrusAdapter(logrus.NewEntry(log))).
		WithSampler(CategorySplit, time.Hour, 3)

	for i := 0; i < 10; i++ {
		s.Sample(logrus.WarnLevel, CategorySplit, "bad nal", map[string]interface{}{"i": i})
	}
	assert.Equal(t, 3, countLines(buf))

	stats := s.Stats()[CategorySplit]
	assert.Equal(t, int64(10), stats.Total)
	assert.Equal(t, int64(3), stats.Logged)
	assert.Equal(t, int64(7), stats.Dropped)
}

func TestSampledLogger_ErrorsAndUnknownCategoriesAlwaysLog(t *testing.T) {
	log, buf := bufferedLogger()
	s := NewSampledLogger(NewLogrusAdapter(logrus.NewEntry(log))).
		WithSampler(CategorySink, time.Hour, 1)

	for i := 0; i < 5; i++ {
		s.Sample(logrus.ErrorLevel, CategorySink, "write failed", nil)
		s.Sample(logrus.InfoLevel, "other", "unsampled", nil)
	}
	assert.Equal(t, 10, countLines(buf))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, CategorySink, entry["category"])
}

func TestSampledLogger_DerivedLoggersShareSamplers(t *testing.T) {
	log, buf := bufferedLogger()
	s := NewFrameLogger(NewLogrusAdapter(logrus.NewEntry(log)))

	child, ok := s.WithField("stream_id", "x").(*SampledLogger)
	require.True(t, ok)

	for i := 0; i < 10; i++ {
		child.Sample(logrus.InfoLevel, CategoryStats, "stats", nil)
	}
	assert.Equal(t, 1, countLines(buf))
	assert.Equal(t, int64(10), s.Stats()[CategoryStats].Total)
	assert.Len(t, s.Stats(), 5)
}

func TestSampledLogger_Concurrent(t *testing.T) {
	log, _ := bufferedLogger()
	s := NewFrameLogger(NewLogrusAdapter(logrus.NewEntry(log)))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.Sample(logrus.DebugLevel, CategoryMerge, "merged", nil)
			}
		}()
	}
	wg.Wait()

	stats := s.Stats()[CategoryMerge]
	assert.Equal(t, int64(800), stats.Total)
	assert.Equal(t, stats.Total, stats.Logged+stats.Dropped)
}
