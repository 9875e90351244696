// Package pipeline drives the frame substrate over an Annex-B elementary
// stream: it splits chunks into NAL units, groups them into access units,
// stamps them at a fixed frame rate, merges them and dispatches the result.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/zsiec/framekit/internal/config"
	"github.com/zsiec/framekit/internal/logger"
	"github.com/zsiec/framekit/internal/media/bitstream"
	"github.com/zsiec/framekit/internal/media/buffer"
	"github.com/zsiec/framekit/internal/media/codec"
	"github.com/zsiec/framekit/internal/media/dispatcher"
	"github.com/zsiec/framekit/internal/media/frame"
	"github.com/zsiec/framekit/internal/media/merger"
	"github.com/zsiec/framekit/internal/metrics"
)

// State of a pipeline run
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateFinished State = "finished"
	StateFailed   State = "failed"
)

// StreamInfo describes a pipeline and its dispatcher statistics
type StreamInfo struct {
	ID        string           `json:"id"`
	Codec     string           `json:"codec"`
	MergeMode string           `json:"merge_mode"`
	Input     string           `json:"input"`
	FrameRate float64          `json:"frame_rate"`
	State     State            `json:"state"`
	StartedAt time.Time        `json:"started_at"`
	Units     uint64           `json:"access_units"`
	Stats     dispatcher.Stats `json:"stats"`

	Resolution *bitstream.Resolution `json:"resolution,omitempty"`
}

// Pipeline is single use: Run may be called once.
type Pipeline struct {
	id     string
	cfg    config.PipelineConfig
	codec  codec.ID
	mode   merger.Mode
	frames *dispatcher.Dispatcher
	merger *merger.Merger
	pool   *buffer.Pool

	au      bitstream.AccessUnits
	units   uint64
	scratch bytes.Buffer
	pacer   *rate.Limiter
	ctx     context.Context

	mu         sync.Mutex
	state      State
	startedAt  time.Time
	resolution bitstream.Resolution
	emitted    atomic.Uint64

	logger  logger.Logger
	sampled *logger.SampledLogger
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithStreamID replaces the generated stream id
func WithStreamID(id string) Option {
	return func(p *Pipeline) { p.id = id }
}

// WithPool sets the pool merged access units are copied into
func WithPool(pool *buffer.Pool) Option {
	return func(p *Pipeline) { p.pool = pool }
}

// New validates cfg and builds a pipeline with an empty dispatcher.
func New(cfg config.PipelineConfig, log logger.Logger, opts ...Option) (*Pipeline, error) {
	id := codec.FromName(cfg.Codec)
	if id != codec.H264 && id != codec.H265 {
		return nil, fmt.Errorf("unsupported codec %q", cfg.Codec)
	}
	mode, err := merger.ParseMode(cfg.MergeMode)
	if err != nil {
		return nil, err
	}
	if cfg.FrameRate <= 0 {
		return nil, fmt.Errorf("frame rate must be positive, got %g", cfg.FrameRate)
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 64 << 10
	}

	p := &Pipeline{
		id:     uuid.NewString(),
		cfg:    cfg,
		codec:  id,
		mode:   mode,
		merger: merger.New(mode),
		state:  StateIdle,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.pool == nil {
		p.pool = buffer.NewPool()
	}
	if cfg.Realtime {
		p.pacer = rate.NewLimiter(rate.Limit(cfg.FrameRate), 1)
	}

	p.logger = logger.WithStream(logger.WithComponent(log, "pipeline"), p.id)
	p.sampled = logger.NewFrameLogger(p.logger)
	p.frames = dispatcher.New(dispatcher.WithLogger(logger.WithComponent(log, "dispatcher").WithField("stream_id", p.id)))

	return p, nil
}

func (p *Pipeline) ID() string { return p.id }

// Dispatcher returns the dispatcher sinks are registered on
func (p *Pipeline) Dispatcher() *dispatcher.Dispatcher { return p.frames }

// Frames satisfies health.FrameCounter
func (p *Pipeline) Frames() uint64 { return p.frames.Frames() }

func (p *Pipeline) Info() StreamInfo {
	p.mu.Lock()
	state, started, res := p.state, p.startedAt, p.resolution
	p.mu.Unlock()

	info := StreamInfo{
		ID:        p.id,
		Codec:     p.codec.Name(),
		MergeMode: p.mode.String(),
		Input:     p.cfg.Input,
		FrameRate: p.cfg.FrameRate,
		State:     state,
		StartedAt: started,
		Units:     p.emitted.Load(),
		Stats:     p.frames.Stats(),
	}
	if !res.IsZero() {
		info.Resolution = &res
	}
	return info
}

func (p *Pipeline) setState(s State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = s
	if s == StateRunning {
		p.startedAt = time.Now()
	}
}

// Run processes r until EOF or until ctx is cancelled. The pending access
// unit is flushed and every sink is flushed before Run returns.
func (p *Pipeline) Run(ctx context.Context, r io.Reader) (err error) {
	p.mu.Lock()
	if p.state != StateIdle {
		p.mu.Unlock()
		return fmt.Errorf("pipeline %s already started", p.id)
	}
	p.mu.Unlock()

	p.ctx = ctx
	p.setState(StateRunning)
	metrics.IncrementActiveStreams()
	p.logger.WithFields(map[string]interface{}{
		"codec":      p.codec.Name(),
		"merge_mode": p.mode.String(),
		"frame_rate": p.cfg.FrameRate,
		"input":      p.cfg.Input,
	}).Info("Pipeline started")

	defer func() {
		p.merger.Flush()
		p.frames.Flush()
		metrics.DecrementActiveStreams()

		state := StateFinished
		if err != nil && !errors.Is(err, context.Canceled) {
			state = StateFailed
		}
		p.setState(state)

		stats := p.frames.Stats()
		p.logger.WithFields(map[string]interface{}{
			"state":        state,
			"access_units": p.emitted.Load(),
			"frames":       stats.Frames,
			"key_frames":   stats.VideoKeyFrames,
			"duration_ms":  stats.DurationMs,
		}).Info("Pipeline stopped")
	}()

	chunks := NewChunkReader(r, p.cfg.ChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		chunk, err := chunks.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			metrics.IncrementError(p.id, "read")
			return fmt.Errorf("read input: %w", err)
		}

		metrics.AddInputBytes(p.id, len(chunk))
		p.processChunk(chunk)
	}
}

func (p *Pipeline) processChunk(chunk []byte) {
	parent := frame.NewOwned(p.codec, 0, chunk)
	err := bitstream.Split(parent, func(sub frame.Frame) {
		p.inputUnit(sub)
		frame.Release(sub)
	})
	if err != nil {
		metrics.IncrementError(p.id, "split")
		p.sampled.Sample(logrus.WarnLevel, logger.CategorySplit, "Failed to split chunk", map[string]interface{}{
			"error": err.Error(),
			"bytes": len(chunk),
		})
	}
}

func (p *Pipeline) inputUnit(sub frame.Frame) {
	fl := bitstream.Classify(p.codec, frame.Payload(sub))
	if p.au.Begins(fl) {
		p.units++
	}
	if fl.Config {
		p.detectResolution(frame.Payload(sub))
	}

	ts := p.timestamp(p.units)
	s := frame.NewStamped(sub)
	s.SetStamp(ts, ts)
	p.merger.Input(s, p.emit, &p.scratch)
	frame.Release(s)
}

// detectResolution records the picture size of the first parsable SPS and
// logs when a later SPS changes it.
func (p *Pipeline) detectResolution(payload []byte) {
	res, err := bitstream.ParseResolution(p.codec, payload)
	if errors.Is(err, bitstream.ErrNotSPS) {
		return
	}
	if err != nil {
		p.sampled.Sample(logrus.DebugLevel, logger.CategorySplit, "Failed to parse SPS", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	p.mu.Lock()
	prev := p.resolution
	p.resolution = res
	p.mu.Unlock()

	if prev != res {
		p.logger.WithFields(map[string]interface{}{
			"resolution": res.String(),
			"previous":   prev.String(),
		}).Info("Stream resolution detected")
	}
}

// timestamp returns the dts in milliseconds of access unit n
func (p *Pipeline) timestamp(n uint64) int64 {
	return int64(float64(n) * 1000 / p.cfg.FrameRate)
}

func (p *Pipeline) emit(dts, pts uint64, buf []byte, key bool) {
	group := p.merger.Group()
	metrics.RecordMerge(p.id, p.mode.String(), group.Frames, len(buf))

	shared := p.pool.Get(len(buf))
	copy(shared.Bytes(), buf)

	f := frame.NewPooled(p.codec, dts, shared,
		frame.WithPTS(pts),
		frame.WithPrefix(p.prefixSize(buf)),
		frame.WithKeyFrame(key),
		frame.WithConfigFrame(group.HaveConfig && !group.HaveDecodeAble),
		frame.WithDropAble(group.HaveDropAble && !group.HaveDecodeAble),
	)
	defer frame.Release(f)

	if p.pacer != nil {
		if err := p.pacer.Wait(p.ctx); err != nil {
			return
		}
	}

	p.emitted.Add(1)
	if !p.frames.InputFrame(f) {
		p.sampled.Sample(logrus.DebugLevel, logger.CategoryDispatch, "No sink accepted access unit", map[string]interface{}{
			"dts":  dts,
			"size": len(buf),
		})
	}
}

func (p *Pipeline) prefixSize(buf []byte) int {
	switch p.mode {
	case merger.AnnexB, merger.LengthPrefixed:
		return 4
	}
	if pos, n := bitstream.FindStartCode(buf, 0); pos == 0 {
		return n
	}
	return 0
}
