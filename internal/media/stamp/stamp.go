// Package stamp smooths decode and presentation timestamps of a single track
package stamp

import (
	"sync"
)

const (
	// MaxDeltaMs is the largest forward step accepted between two frames.
	// Larger jumps and backward steps are treated as no progress.
	MaxDeltaMs = 10_000

	// MaxCTSMs bounds the presentation offset from the decode time
	MaxCTSMs = 500
)

// Stamp rebases a track's timestamps to start at zero and keeps them
// monotonic across source discontinuities.
type Stamp struct {
	mu sync.Mutex

	started  bool
	lastDTS  int64
	relative int64
}

// New creates a timestamp corrector
func New() *Stamp {
	return &Stamp{}
}

// Revise maps source dts/pts to smoothed output values. A pts of zero means
// the frame has no presentation offset.
func (s *Stamp) Revise(dts, pts int64) (int64, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if pts == 0 {
		pts = dts
	}

	cts := pts - dts
	if cts > MaxCTSMs || cts < -MaxCTSMs {
		cts = 0
	}

	if !s.started {
		s.started = true
		s.lastDTS = dts
		return s.relative, s.relative + cts
	}

	delta := dts - s.lastDTS
	if delta < 0 || delta > MaxDeltaMs {
		delta = 0
	}
	s.lastDTS = dts
	s.relative += delta

	return s.relative, s.relative + cts
}

// RelativeStamp returns the elapsed stream time in milliseconds since the
// first revised frame.
func (s *Stamp) RelativeStamp() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.relative
}

// Reset forgets the base so the next frame starts a new timeline at the
// current relative stamp.
func (s *Stamp) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = false
}
