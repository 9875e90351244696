package logger

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Log categories for per-frame events
const (
	CategorySplit    = "split"
	CategoryMerge    = "merge"
	CategoryDispatch = "dispatch"
	CategorySink     = "sink"
	CategoryStats    = "stats"
)

// SampledLogger rate limits high frequency log categories. Messages outside
// a configured category, and all errors, are always logged.
type SampledLogger struct {
	Logger
	samplers *samplerSet
}

type samplerSet struct {
	mu       sync.RWMutex
	samplers map[string]*sampler
}

type sampler struct {
	limiter *rate.Limiter
	total   atomic.Int64
	dropped atomic.Int64
}

// SamplerStats holds statistics for a log category
type SamplerStats struct {
	Name    string `json:"name"`
	Total   int64  `json:"total"`
	Logged  int64  `json:"logged"`
	Dropped int64  `json:"dropped"`
}

// NewSampledLogger wraps base without any sampled categories
func NewSampledLogger(base Logger) *SampledLogger {
	return &SampledLogger{
		Logger:   base,
		samplers: &samplerSet{samplers: make(map[string]*sampler)},
	}
}

// NewFrameLogger creates a sampled logger with limits suited to per-frame
// events on a live stream
func NewFrameLogger(base Logger) *SampledLogger {
	return NewSampledLogger(base).
		WithSampler(CategorySplit, 500*time.Millisecond, 5).
		WithSampler(CategoryMerge, 500*time.Millisecond, 5).
		WithSampler(CategoryDispatch, time.Second, 3).
		WithSampler(CategorySink, time.Second, 3).
		WithSampler(CategoryStats, 5*time.Second, 1)
}

// WithSampler allows burst messages in category and then one per every
func (s *SampledLogger) WithSampler(category string, every time.Duration, burst int) *SampledLogger {
	s.samplers.mu.Lock()
	defer s.samplers.mu.Unlock()
	s.samplers.samplers[category] = &sampler{limiter: rate.NewLimiter(rate.Every(every), burst)}
	return s
}

func (s *SampledLogger) allow(category string) bool {
	s.samplers.mu.RLock()
	sm, ok := s.samplers.samplers[category]
	s.samplers.mu.RUnlock()
	if !ok {
		return true
	}

	sm.total.Add(1)
	if sm.limiter.Allow() {
		return true
	}
	sm.dropped.Add(1)
	return false
}

// Sample logs msg at level unless category is over its rate
func (s *SampledLogger) Sample(level logrus.Level, category, msg string, fields map[string]interface{}) {
	if level > logrus.ErrorLevel && !s.allow(category) {
		return
	}

	out := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out["category"] = category
	s.Logger.WithFields(out).Log(level, msg)
}

// Stats returns the counters of every sampled category
func (s *SampledLogger) Stats() map[string]SamplerStats {
	s.samplers.mu.RLock()
	defer s.samplers.mu.RUnlock()

	stats := make(map[string]SamplerStats, len(s.samplers.samplers))
	for name, sm := range s.samplers.samplers {
		total, dropped := sm.total.Load(), sm.dropped.Load()
		stats[name] = SamplerStats{Name: name, Total: total, Logged: total - dropped, Dropped: dropped}
	}
	return stats
}

func (s *SampledLogger) WithFields(fields map[string]interface{}) Logger {
	return &SampledLogger{Logger: s.Logger.WithFields(fields), samplers: s.samplers}
}

func (s *SampledLogger) WithField(key string, value interface{}) Logger {
	return &SampledLogger{Logger: s.Logger.WithField(key, value), samplers: s.samplers}
}

func (s *SampledLogger) WithError(err error) Logger {
	return &SampledLogger{Logger: s.Logger.WithError(err), samplers: s.samplers}
}
