package buffer

import (
	"sync/atomic"
)

// Buffer is a read-only view of a byte region
type Buffer interface {
	Bytes() []byte
	Len() int
}

// Retainer is implemented by values whose storage is reference counted.
// Every Retain must be matched by exactly one Release.
type Retainer interface {
	Retain()
	Release()
}

// Bytes adapts a plain, garbage collected slice to Buffer
type Bytes []byte

func (b Bytes) Bytes() []byte { return b }
func (b Bytes) Len() int      { return len(b) }

// Shared is a reference counted buffer. It starts with one reference held by
// the creator; when the last reference is released the storage is handed to
// the release callback (typically back to a Pool) exactly once.
type Shared struct {
	data      []byte
	refs      atomic.Int32
	onRelease func([]byte)
}

// NewShared wraps data with a reference count of one. onRelease may be nil.
func NewShared(data []byte, onRelease func([]byte)) *Shared {
	s := &Shared{
		data:      data,
		onRelease: onRelease,
	}
	s.refs.Store(1)
	return s
}

// Bytes returns the buffer contents
func (s *Shared) Bytes() []byte { return s.data }

// Len returns the buffer length
func (s *Shared) Len() int { return len(s.data) }

// Refs returns the current reference count
func (s *Shared) Refs() int32 { return s.refs.Load() }

// Retain adds a reference
func (s *Shared) Retain() {
	if s.refs.Add(1) <= 1 {
		panic("buffer: retain of released buffer")
	}
}

// Release drops a reference and frees the storage when it was the last one
func (s *Shared) Release() {
	n := s.refs.Add(-1)
	switch {
	case n == 0:
		if s.onRelease != nil {
			s.onRelease(s.data)
		}
	case n < 0:
		panic("buffer: release of released buffer")
	}
}

