package pipeline

import (
	"bufio"
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/zsiec/framekit/internal/logger"
	"github.com/zsiec/framekit/internal/media/codec"
	"github.com/zsiec/framekit/internal/media/dispatcher"
	"github.com/zsiec/framekit/internal/media/frame"
	"github.com/zsiec/framekit/internal/metrics"
)

// Recorder writes every frame's bytes to w.
type Recorder struct {
	mu     sync.Mutex
	w      *bufio.Writer
	frames uint64
	bytes  uint64
	err    error
	logger *logger.SampledLogger
}

func NewRecorder(w io.Writer, log logger.Logger) *Recorder {
	return &Recorder{
		w:      bufio.NewWriterSize(w, 256<<10),
		logger: logger.NewFrameLogger(logger.WithComponent(log, "recorder")),
	}
}

// InputFrame rejects every frame after the first write error.
func (r *Recorder) InputFrame(f frame.Frame) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return false
	}
	n, err := r.w.Write(f.Data())
	r.bytes += uint64(n)
	if err != nil {
		r.err = err
		r.logger.Sample(logrus.ErrorLevel, logger.CategorySink, "Recorder write failed", map[string]interface{}{
			"error": err.Error(),
		})
		return false
	}
	r.frames++
	return true
}

func (r *Recorder) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return
	}
	if err := r.w.Flush(); err != nil {
		r.err = err
		r.logger.WithError(err).Error("Recorder flush failed")
	}
}

// Written returns the frames and bytes written so far
func (r *Recorder) Written() (frames, bytes uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames, r.bytes
}

// Err returns the first write error
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// StatsProvider is satisfied by the dispatcher.
type StatsProvider interface {
	Stats() dispatcher.Stats
}

// MetricsSink exports dispatched frames to prometheus. It never reports a
// frame as accepted so it does not mask the absence of a consuming sink.
type MetricsSink struct {
	streamID string
	stats    StatsProvider
}

func NewMetricsSink(streamID string, stats StatsProvider) *MetricsSink {
	return &MetricsSink{streamID: streamID, stats: stats}
}

func (m *MetricsSink) InputFrame(f frame.Frame) bool {
	videoKey := f.KeyFrame() && frame.TrackType(f) == codec.TrackVideo
	metrics.RecordFrame(m.streamID, f.CodecID().Name(), videoKey)
	if videoKey {
		m.update()
	}
	return false
}

func (m *MetricsSink) Flush() { m.update() }

func (m *MetricsSink) update() {
	s := m.stats.Stats()
	metrics.UpdateDispatcherStats(m.streamID, s.GOPSize,
		float64(s.GOPIntervalMs)/1000, float64(s.DurationMs)/1000, s.Delegates)
}
