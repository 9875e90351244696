package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Dispatcher metrics
	streamsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "framekit_streams_active",
		Help: "Number of streams currently being processed",
	})

	framesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "framekit_frames_total",
		Help: "Frames dispatched per stream and codec",
	}, []string{"stream_id", "codec"})

	keyFramesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "framekit_video_key_frames_total",
		Help: "Video key frames dispatched per stream",
	}, []string{"stream_id"})

	gopSize = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "framekit_gop_size_frames",
		Help: "Frames in the last complete GOP",
	}, []string{"stream_id"})

	gopInterval = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "framekit_gop_interval_seconds",
		Help: "Wall time between the last two key frames",
	}, []string{"stream_id"})

	streamDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "framekit_stream_duration_seconds",
		Help: "Relative duration of the stream as seen by the dispatcher",
	}, []string{"stream_id"})

	delegates = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "framekit_dispatcher_delegates",
		Help: "Sinks registered on the dispatcher",
	}, []string{"stream_id"})

	// Merger metrics
	mergedBuffersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "framekit_merged_buffers_total",
		Help: "Buffers emitted by the merger",
	}, []string{"stream_id", "mode"})

	mergedBytesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "framekit_merged_bytes_total",
		Help: "Bytes emitted by the merger",
	}, []string{"stream_id", "mode"})

	mergedGroupFrames = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "framekit_merged_group_frames",
		Help:    "Frames merged into one output buffer",
		Buckets: prometheus.ExponentialBuckets(1, 2, 8), // 1 to 128
	}, []string{"mode"})

	// Pipeline metrics
	chunkBytesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "framekit_input_bytes_total",
		Help: "Bytes read from the pipeline input",
	}, []string{"stream_id"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "framekit_errors_total",
		Help: "Errors per stream and stage",
	}, []string{"stream_id", "stage"})

	statsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "framekit_stats_published_total",
		Help: "Statistics snapshots written to Redis",
	}, []string{"result"})
)

// IncrementActiveStreams marks a stream as started
func IncrementActiveStreams() {
	streamsActive.Inc()
}

// DecrementActiveStreams marks a stream as finished
func DecrementActiveStreams() {
	streamsActive.Dec()
}

// RecordFrame counts one dispatched frame
func RecordFrame(streamID, codec string, videoKey bool) {
	framesTotal.WithLabelValues(streamID, codec).Inc()
	if videoKey {
		keyFramesTotal.WithLabelValues(streamID).Inc()
	}
}

// UpdateDispatcherStats publishes the dispatcher's derived statistics
func UpdateDispatcherStats(streamID string, gop uint64, interval, duration float64, sinks int) {
	gopSize.WithLabelValues(streamID).Set(float64(gop))
	gopInterval.WithLabelValues(streamID).Set(interval)
	streamDuration.WithLabelValues(streamID).Set(duration)
	delegates.WithLabelValues(streamID).Set(float64(sinks))
}

// RecordMerge counts one merged output buffer
func RecordMerge(streamID, mode string, frames, bytes int) {
	mergedBuffersTotal.WithLabelValues(streamID, mode).Inc()
	mergedBytesTotal.WithLabelValues(streamID, mode).Add(float64(bytes))
	mergedGroupFrames.WithLabelValues(mode).Observe(float64(frames))
}

// AddInputBytes counts bytes read from the pipeline input
func AddInputBytes(streamID string, n int) {
	chunkBytesTotal.WithLabelValues(streamID).Add(float64(n))
}

// IncrementError counts an error in a pipeline stage
func IncrementError(streamID, stage string) {
	errorsTotal.WithLabelValues(streamID, stage).Inc()
}

// RecordStatsPublish counts a Redis stats write
func RecordStatsPublish(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	statsPublishedTotal.WithLabelValues(result).Inc()
}

// DeleteStream drops the per-stream series once a stream is finished
func DeleteStream(streamID string) {
	labels := prometheus.Labels{"stream_id": streamID}
	framesTotal.DeletePartialMatch(labels)
	keyFramesTotal.DeletePartialMatch(labels)
	gopSize.DeletePartialMatch(labels)
	gopInterval.DeletePartialMatch(labels)
	streamDuration.DeletePartialMatch(labels)
	delegates.DeletePartialMatch(labels)
	mergedBuffersTotal.DeletePartialMatch(labels)
	mergedBytesTotal.DeletePartialMatch(labels)
	chunkBytesTotal.DeletePartialMatch(labels)
	errorsTotal.DeletePartialMatch(labels)
}
