package frame

import (
	"fmt"

	"github.com/zsiec/framekit/internal/media/buffer"
	"github.com/zsiec/framekit/internal/media/codec"
)

// Owned holds an exclusive copy of its bytes
type Owned struct {
	attrs
	buf []byte
}

// NewOwned copies data into a new frame
func NewOwned(id codec.ID, dts uint64, data []byte, opts ...Option) *Owned {
	f := &Owned{attrs: newAttrs(id, dts, opts)}
	f.buf = append(make([]byte, 0, len(data)), data...)
	return f
}

func (f *Owned) Data() []byte    { return f.buf }
func (f *Owned) Size() int       { return len(f.buf) }
func (f *Owned) CacheAble() bool { return true }

// Append grows the frame's buffer. Only the producer may call it, before
// the frame is shared.
func (f *Owned) Append(p []byte) {
	f.buf = append(f.buf, p...)
}

// Borrowed aliases memory owned by the caller, typically a read buffer that
// is reused for the next packet. The caller must keep the memory unchanged
// for as long as the frame is referenced; anything that wants to keep the
// frame longer must go through GetCacheable.
type Borrowed struct {
	attrs
	data []byte
}

// NewBorrowed wraps data without copying. The codec must be valid.
func NewBorrowed(id codec.ID, dts uint64, data []byte, opts ...Option) (*Borrowed, error) {
	if !id.Valid() {
		return nil, fmt.Errorf("%w: borrowed frame with codec %d", ErrInvalidCodec, int(id))
	}
	return &Borrowed{attrs: newAttrs(id, dts, opts), data: data}, nil
}

func (f *Borrowed) Data() []byte    { return f.data }
func (f *Borrowed) Size() int       { return len(f.data) }
func (f *Borrowed) CacheAble() bool { return false }

// AutoRelease owns its memory and hands it to free once the last reference
// is released. It starts with one reference held by the creator.
type AutoRelease struct {
	attrs
	shared *buffer.Shared
}

// NewAutoRelease adopts data. free is called exactly once, after the last
// Release; it may be nil.
func NewAutoRelease(id codec.ID, dts uint64, data []byte, free func([]byte), opts ...Option) *AutoRelease {
	return &AutoRelease{
		attrs:  newAttrs(id, dts, opts),
		shared: buffer.NewShared(data, free),
	}
}

// NewPooled adopts a buffer obtained from a buffer.Pool, including the
// reference the pool handed out.
func NewPooled(id codec.ID, dts uint64, buf *buffer.Shared, opts ...Option) *AutoRelease {
	return &AutoRelease{
		attrs:  newAttrs(id, dts, opts),
		shared: buf,
	}
}

func (f *AutoRelease) Data() []byte    { return f.shared.Bytes() }
func (f *AutoRelease) Size() int       { return f.shared.Len() }
func (f *AutoRelease) CacheAble() bool { return true }
func (f *AutoRelease) Retain()         { f.shared.Retain() }
func (f *AutoRelease) Release()        { f.shared.Release() }

// BufferFrame aliases an externally supplied buffer starting at an offset
type BufferFrame struct {
	attrs
	buf  buffer.Buffer
	data []byte
}

// NewBufferFrame wraps buf[offset:]. A reference counted buffer is retained
// until the frame is released. The codec may be left invalid; Codec reports
// it as ErrInvalidCodec.
func NewBufferFrame(id codec.ID, dts uint64, buf buffer.Buffer, offset int, opts ...Option) *BufferFrame {
	if r, ok := buf.(buffer.Retainer); ok {
		r.Retain()
	}
	return &BufferFrame{
		attrs: newAttrs(id, dts, opts),
		buf:   buf,
		data:  buf.Bytes()[offset:],
	}
}

func (f *BufferFrame) Data() []byte    { return f.data }
func (f *BufferFrame) Size() int       { return len(f.data) }
func (f *BufferFrame) CacheAble() bool { return true }

func (f *BufferFrame) Retain() {
	if r, ok := f.buf.(buffer.Retainer); ok {
		r.Retain()
	}
}

func (f *BufferFrame) Release() {
	if r, ok := f.buf.(buffer.Retainer); ok {
		r.Release()
	}
}
