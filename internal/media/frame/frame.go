// Package frame defines the codec-agnostic access unit representation and
// the ownership variants that implement it.
//
// Variants differ only in where their bytes live and how long they stay
// valid:
//
//	Owned        exclusive copy, always cacheable
//	Borrowed     aliases caller memory that may be reused, never cacheable
//	AutoRelease  owns memory and frees it through a callback on last Release
//	BufferFrame  aliases a shared buffer at an offset, cacheable
//	SubFrame     zero-copy slice of a parent frame, keeps the parent alive
//	Cacheable    snapshot of any frame that is safe to retain
//	Stamped      overrides the timestamps of another frame
//
// Variants backed by reference counted storage implement buffer.Retainer.
// Constructing a view or wrapper takes a reference on whatever it aliases,
// and the wrapper's Release gives it back; Retain and Release on a wrapper
// forward to the aliased storage. Garbage collected variants do not need
// releasing.
package frame

import (
	"errors"
	"fmt"

	"github.com/zsiec/framekit/internal/media/buffer"
	"github.com/zsiec/framekit/internal/media/codec"
)

// ErrInvalidCodec is returned when a frame's codec was never set
var ErrInvalidCodec = errors.New("invalid codec")

// Frame is one access unit, or a zero-copy slice of one
type Frame interface {
	CodecID() codec.ID
	// Index disambiguates multiple tracks of the same type. It defaults to
	// the ordinal of the codec's track type.
	Index() int

	// DTS and PTS are in milliseconds. PTS equals DTS when none was given.
	DTS() uint64
	PTS() uint64

	// PrefixSize is the length of the start code or header preceding the
	// payload: 4 for Annex-B video, 7 for ADTS audio.
	PrefixSize() int

	// Data is the full byte span, prefix included.
	Data() []byte
	Size() int

	KeyFrame() bool
	ConfigFrame() bool
	// CacheAble reports whether Data stays valid after the producing call returns.
	CacheAble() bool
	DropAble() bool
	DecodeAble() bool
}

// Reviser smooths timestamps; implemented by stamp.Stamp
type Reviser interface {
	Revise(dts, pts int64) (int64, int64)
}

// attrs carries the metadata shared by every concrete variant
type attrs struct {
	codec  codec.ID
	index  int
	dts    uint64
	pts    uint64
	prefix int
	key    bool
	config bool
	drop   bool
}

// Option configures frame metadata at construction
type Option func(*attrs)

// WithPTS sets an explicit presentation timestamp
func WithPTS(pts uint64) Option {
	return func(a *attrs) { a.pts = pts }
}

// WithPrefix sets the prefix length
func WithPrefix(n int) Option {
	return func(a *attrs) { a.prefix = n }
}

// WithKeyFrame marks the frame as a keyframe
func WithKeyFrame(key bool) Option {
	return func(a *attrs) { a.key = key }
}

// WithConfigFrame marks the frame as carrying codec configuration
func WithConfigFrame(config bool) Option {
	return func(a *attrs) { a.config = config }
}

// WithDropAble marks the frame as safe to discard
func WithDropAble(drop bool) Option {
	return func(a *attrs) { a.drop = drop }
}

// WithIndex sets an explicit track index
func WithIndex(index int) Option {
	return func(a *attrs) { a.index = index }
}

func newAttrs(id codec.ID, dts uint64, opts []Option) attrs {
	a := attrs{codec: id, index: -1, dts: dts}
	for _, opt := range opts {
		opt(&a)
	}
	return a
}

func (a *attrs) CodecID() codec.ID { return a.codec }
func (a *attrs) DTS() uint64       { return a.dts }
func (a *attrs) PrefixSize() int   { return a.prefix }
func (a *attrs) KeyFrame() bool    { return a.key }
func (a *attrs) ConfigFrame() bool { return a.config }
func (a *attrs) DropAble() bool    { return a.drop }

func (a *attrs) PTS() uint64 {
	if a.pts == 0 {
		return a.dts
	}
	return a.pts
}

func (a *attrs) Index() int {
	if a.index < 0 {
		return int(a.codec.TrackType())
	}
	return a.index
}

// SetIndex sets the track index. Producers call it before handing the frame on.
func (a *attrs) SetIndex(index int) { a.index = index }

// DecodeAble: every non-video frame decodes; video frames decode unless
// they only carry configuration.
func (a *attrs) DecodeAble() bool {
	if a.codec.TrackType() != codec.TrackVideo {
		return true
	}
	return !a.config
}

// Codec returns the frame's codec, or ErrInvalidCodec if it was never set
func Codec(f Frame) (codec.ID, error) {
	id := f.CodecID()
	if !id.Valid() {
		return codec.Invalid, fmt.Errorf("%w: %T has no codec", ErrInvalidCodec, f)
	}
	return id, nil
}

// TrackType returns the track type of the frame's codec
func TrackType(f Frame) codec.TrackType {
	return f.CodecID().TrackType()
}

// Payload returns the frame bytes after its prefix
func Payload(f Frame) []byte {
	data := f.Data()
	prefix := f.PrefixSize()
	if prefix > len(data) {
		return data[len(data):]
	}
	return data[prefix:]
}

// Retain takes a reference on f if its storage is reference counted
func Retain(f Frame) {
	if r, ok := f.(buffer.Retainer); ok {
		r.Retain()
	}
}

// Release gives back a reference taken by Retain or by a constructor
func Release(f Frame) {
	if r, ok := f.(buffer.Retainer); ok {
		r.Release()
	}
}

// GetCacheable returns a frame whose bytes may be kept past the current
// call. A frame that is already cacheable is returned as is, with an extra
// reference taken; otherwise a Cacheable snapshot is built. Either way the
// caller owns one reference on the result and should Release it when done.
func GetCacheable(f Frame) Frame {
	if f.CacheAble() {
		Retain(f)
		return f
	}
	return NewCacheable(f, false, nil)
}
