package frame

import (
	"github.com/zsiec/framekit/internal/media/buffer"
)

// SubFrame is a zero-copy slice of a composite parent frame, such as one NAL
// unit out of an Annex-B chunk or one ADTS frame out of a packed audio
// payload. It holds a reference on the parent so the bytes stay valid for as
// long as the view does.
type SubFrame struct {
	attrs
	parent Frame
	data   []byte
}

// NewSubFrame creates a view of data, which must lie within parent.Data().
// The view inherits the parent's codec, index and timestamps.
func NewSubFrame(parent Frame, data []byte, prefix int, opts ...Option) *SubFrame {
	return NewSubFrameAt(parent, data, parent.DTS(), parent.PTS(), prefix, opts...)
}

// NewSubFrameAt is NewSubFrame with timestamps of its own, for composite
// frames whose parts do not share the parent's instant.
func NewSubFrameAt(parent Frame, data []byte, dts, pts uint64, prefix int, opts ...Option) *SubFrame {
	a := attrs{
		codec:  parent.CodecID(),
		index:  parent.Index(),
		dts:    dts,
		pts:    pts,
		prefix: prefix,
	}
	for _, opt := range opts {
		opt(&a)
	}

	Retain(parent)
	return &SubFrame{attrs: a, parent: parent, data: data}
}

func (f *SubFrame) Data() []byte { return f.data }
func (f *SubFrame) Size() int    { return len(f.data) }

// CacheAble follows the parent; the view has no storage of its own.
func (f *SubFrame) CacheAble() bool { return f.parent.CacheAble() }

// Parent returns the composite frame the view slices
func (f *SubFrame) Parent() Frame { return f.parent }

func (f *SubFrame) Retain()  { Retain(f.parent) }
func (f *SubFrame) Release() { Release(f.parent) }

// Cacheable is a snapshot of another frame that is always safe to retain.
// Its flags are captured at construction.
type Cacheable struct {
	attrs
	data   []byte
	decode bool

	// exactly one of source/buf is set when data aliases other storage
	source Frame
	buf    buffer.Buffer
}

// NewCacheable snapshots f. If f is already cacheable its bytes are aliased;
// if buf is given it must contain f's bytes and is aliased instead;
// otherwise the bytes are copied. forceKey marks the snapshot as a keyframe.
func NewCacheable(f Frame, forceKey bool, buf buffer.Buffer) *Cacheable {
	c := &Cacheable{
		attrs: attrs{
			codec:  f.CodecID(),
			index:  f.Index(),
			dts:    f.DTS(),
			pts:    f.PTS(),
			prefix: f.PrefixSize(),
			key:    forceKey || f.KeyFrame(),
			config: f.ConfigFrame(),
			drop:   f.DropAble(),
		},
		decode: f.DecodeAble(),
	}

	switch {
	case f.CacheAble():
		Retain(f)
		c.source = f
		c.data = f.Data()
	case buf != nil:
		if r, ok := buf.(buffer.Retainer); ok {
			r.Retain()
		}
		c.buf = buf
		c.data = f.Data()
	default:
		c.data = append(make([]byte, 0, f.Size()), f.Data()...)
	}
	return c
}

func (c *Cacheable) Data() []byte     { return c.data }
func (c *Cacheable) Size() int        { return len(c.data) }
func (c *Cacheable) CacheAble() bool  { return true }
func (c *Cacheable) DecodeAble() bool { return c.decode }

func (c *Cacheable) Retain() {
	if c.source != nil {
		Retain(c.source)
	} else if r, ok := c.buf.(buffer.Retainer); ok {
		r.Retain()
	}
}

func (c *Cacheable) Release() {
	if c.source != nil {
		Release(c.source)
	} else if r, ok := c.buf.(buffer.Retainer); ok {
		r.Release()
	}
}

// Stamped overrides the timestamps of the frame it wraps and delegates
// everything else.
type Stamped struct {
	Frame
	dts int64
	pts int64
}

// NewStamped wraps f keeping its timestamps until SetStamp is called
func NewStamped(f Frame) *Stamped {
	Retain(f)
	return &Stamped{Frame: f, dts: int64(f.DTS()), pts: int64(f.PTS())}
}

// NewStampedWith wraps f with timestamps revised by r. A revised pts before
// zero is clamped to the revised dts.
func NewStampedWith(f Frame, r Reviser) *Stamped {
	s := NewStamped(f)
	s.dts, s.pts = r.Revise(int64(f.DTS()), int64(f.PTS()))
	return s
}

// SetStamp replaces the timestamps
func (s *Stamped) SetStamp(dts, pts int64) {
	s.dts = dts
	s.pts = pts
}

func (s *Stamped) DTS() uint64 {
	if s.dts < 0 {
		return 0
	}
	return uint64(s.dts)
}

// PTS falls back to DTS when the pts is unset or negative
func (s *Stamped) PTS() uint64 {
	if s.pts <= 0 {
		return s.DTS()
	}
	return uint64(s.pts)
}

// Unwrap returns the wrapped frame
func (s *Stamped) Unwrap() Frame { return s.Frame }

func (s *Stamped) Retain()  { Retain(s.Frame) }
func (s *Stamped) Release() { Release(s.Frame) }

// assumed declares a frame cacheable without copying it
type assumed struct {
	Frame
}

// AssumeCacheable marks f as cacheable. The caller guarantees f's bytes
// outlive every holder, e.g. a Borrowed frame over memory that is never
// reused. Like GetCacheable, the result carries one reference.
func AssumeCacheable(f Frame) Frame {
	Retain(f)
	if f.CacheAble() {
		return f
	}
	return &assumed{Frame: f}
}

func (a *assumed) CacheAble() bool { return true }
func (a *assumed) Retain()         { Retain(a.Frame) }
func (a *assumed) Release()        { Release(a.Frame) }
