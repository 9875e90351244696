// Package dispatcher fans frames out to a dynamic set of sinks and keeps
// running keyframe and GOP statistics for the stream.
//
// Fan-out is serialized, so a sink is never called concurrently. From inside
// its InputFrame or Flush a sink may use AddDelegate, AddFunc, DelDelegate,
// Size, Clear and the statistics accessors. It must not call InputFrame or
// Flush on the same dispatcher: that blocks forever. A sink that needs to feed
// frames back into its own dispatcher must hand them to another goroutine.
package dispatcher

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/zsiec/framekit/internal/logger"
	"github.com/zsiec/framekit/internal/media/codec"
	"github.com/zsiec/framekit/internal/media/frame"
	"github.com/zsiec/framekit/internal/media/stamp"
)

// Writer is a frame sink
type Writer interface {
	// InputFrame consumes f and reports whether it was accepted. A sink that
	// keeps f past the call must go through frame.GetCacheable.
	InputFrame(f frame.Frame) bool
	Flush()
}

// WriterFunc adapts a function to a Writer whose Flush does nothing
type WriterFunc func(f frame.Frame) bool

func (fn WriterFunc) InputFrame(f frame.Frame) bool { return fn(f) }
func (fn WriterFunc) Flush()                        {}

// Handle identifies a registered sink. The zero Handle is never issued.
type Handle uint64

// Corrector smooths timestamps and reports the elapsed stream time
type Corrector interface {
	frame.Reviser
	RelativeStamp() int64
}

type delegate struct {
	handle  Handle
	w       Writer
	removed atomic.Bool
}

// Stats is a snapshot of the dispatcher's statistics
type Stats struct {
	Frames         uint64 `json:"frames"`
	VideoKeyFrames uint64 `json:"video_key_frames"`
	GOPSize        uint64 `json:"gop_size"`
	GOPIntervalMs  int64  `json:"gop_interval_ms"`
	DurationMs     int64  `json:"duration_ms"`
	Delegates      int    `json:"delegates"`
}

// Dispatcher is a Writer that forwards every frame to its registered sinks.
//
// Sinks may add or remove sinks, including themselves, from inside
// InputFrame. A sink removed during a dispatch receives no further frames,
// not even the rest of the current one. Sinks must not call InputFrame or
// Flush on the dispatcher that is calling them.
type Dispatcher struct {
	// dispatchMu serializes fan-out so sinks see frames in input order
	dispatchMu sync.Mutex

	mu        sync.Mutex
	next      Handle
	delegates []*delegate

	frames           uint64
	videoKeyFrames   uint64
	gopSize          uint64
	gopInterval      int64
	framesAtLastKey  uint64
	lastKeyFrameTime time.Time

	stamp  Corrector
	now    func() time.Time
	logger logger.Logger
}

// Option configures a Dispatcher
type Option func(*Dispatcher)

// WithLogger sets the dispatcher's logger
func WithLogger(l logger.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// WithClock replaces the wall clock used for GOP intervals
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// WithCorrector replaces the default stamp.Stamp
func WithCorrector(c Corrector) Option {
	return func(d *Dispatcher) { d.stamp = c }
}

// New creates an empty dispatcher
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		now:    time.Now,
		logger: logger.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.stamp == nil {
		d.stamp = stamp.New()
	}
	d.lastKeyFrameTime = d.now()
	return d
}

// AddDelegate registers w and returns the handle that removes it. A nil
// writer is ignored and yields the zero Handle.
func (d *Dispatcher) AddDelegate(w Writer) Handle {
	if w == nil {
		return 0
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.next++
	d.delegates = append(d.delegates, &delegate{handle: d.next, w: w})
	d.logger.WithFields(map[string]interface{}{
		"handle":    uint64(d.next),
		"delegates": len(d.delegates),
	}).Debug("Delegate added")
	return d.next
}

// AddFunc registers fn as a sink
func (d *Dispatcher) AddFunc(fn func(f frame.Frame) bool) Handle {
	if fn == nil {
		return 0
	}
	return d.AddDelegate(WriterFunc(fn))
}

// DelDelegate removes the sink registered under h. Unknown handles are ignored.
func (d *Dispatcher) DelDelegate(h Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i, dg := range d.delegates {
		if dg.handle != h {
			continue
		}
		dg.removed.Store(true)
		d.delegates = append(d.delegates[:i:i], d.delegates[i+1:]...)
		d.logger.WithFields(map[string]interface{}{
			"handle":    uint64(h),
			"delegates": len(d.delegates),
		}).Debug("Delegate removed")
		return
	}
}

// Size returns the number of registered sinks
func (d *Dispatcher) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.delegates)
}

// Clear removes every sink
func (d *Dispatcher) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, dg := range d.delegates {
		dg.removed.Store(true)
	}
	d.delegates = nil
}

// InputFrame updates the statistics and forwards f to every sink. It
// returns true if at least one sink accepted the frame.
func (d *Dispatcher) InputFrame(f frame.Frame) bool {
	d.dispatchMu.Lock()
	defer d.dispatchMu.Unlock()

	d.mu.Lock()
	d.updateStats(f)
	snapshot := d.delegates
	d.mu.Unlock()

	accepted := false
	for _, dg := range snapshot {
		if dg.removed.Load() {
			continue
		}
		if dg.w.InputFrame(f) {
			accepted = true
		}
	}
	return accepted
}

// Flush flushes every sink
func (d *Dispatcher) Flush() {
	d.dispatchMu.Lock()
	defer d.dispatchMu.Unlock()

	d.mu.Lock()
	snapshot := d.delegates
	d.mu.Unlock()

	for _, dg := range snapshot {
		if !dg.removed.Load() {
			dg.w.Flush()
		}
	}
}

// updateStats must be called with mu held
func (d *Dispatcher) updateStats(f frame.Frame) {
	if f.ConfigFrame() || f.DropAble() {
		return
	}

	d.frames++
	d.stamp.Revise(int64(f.DTS()), int64(f.PTS()))

	if !f.KeyFrame() || frame.TrackType(f) != codec.TrackVideo {
		return
	}

	now := d.now()
	d.videoKeyFrames++
	d.gopSize = d.frames - d.framesAtLastKey
	d.gopInterval = now.Sub(d.lastKeyFrameTime).Milliseconds()
	d.framesAtLastKey = d.frames
	d.lastKeyFrameTime = now

	d.logger.WithFields(map[string]interface{}{
		"gop_size":        d.gopSize,
		"gop_interval_ms": d.gopInterval,
		"key_frames":      d.videoKeyFrames,
	}).Debug("Video keyframe")
}

// Frames returns the number of frames seen, excluding config and dropable frames
func (d *Dispatcher) Frames() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.frames
}

// VideoKeyFrames returns the number of video keyframes seen
func (d *Dispatcher) VideoKeyFrames() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.videoKeyFrames
}

// GOPSize returns the number of frames between the two most recent video keyframes
func (d *Dispatcher) GOPSize() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gopSize
}

// GOPInterval returns the wall clock time between the two most recent video keyframes
func (d *Dispatcher) GOPInterval() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return time.Duration(d.gopInterval) * time.Millisecond
}

// Duration returns the elapsed stream time according to the corrected timestamps
func (d *Dispatcher) Duration() time.Duration {
	return time.Duration(d.stamp.RelativeStamp()) * time.Millisecond
}

// Stats returns a consistent snapshot of all statistics
func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Stats{
		Frames:         d.frames,
		VideoKeyFrames: d.videoKeyFrames,
		GOPSize:        d.gopSize,
		GOPIntervalMs:  d.gopInterval,
		DurationMs:     d.stamp.RelativeStamp(),
		Delegates:      len(d.delegates),
	}
}
