// Package merger reassembles frames that share a timestamp into a single
// delimited buffer.
package merger

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/zsiec/framekit/internal/media/frame"
)

// maxPending bounds a group whose timestamp never changes
const maxPending = 100

var startCode = []byte{0x00, 0x00, 0x00, 0x01}

// Mode selects how frames of a group are delimited in the output
type Mode int

const (
	// None concatenates the frames as they are
	None Mode = iota
	// AnnexB emits a 00 00 00 01 start code before each payload
	AnnexB
	// LengthPrefixed emits a 4-byte big-endian payload length before each payload
	LengthPrefixed
)

func (m Mode) String() string {
	switch m {
	case None:
		return "none"
	case AnnexB:
		return "annexb"
	case LengthPrefixed:
		return "length_prefixed"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode parses the String form of a mode
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "none", "":
		return None, nil
	case "annexb", "annex_b":
		return AnnexB, nil
	case "length_prefixed", "avcc", "mp4":
		return LengthPrefixed, nil
	default:
		return None, fmt.Errorf("unknown merge mode %q", s)
	}
}

// OutputFunc receives a merged group. buf is only valid for the duration
// of the call.
type OutputFunc func(dts, pts uint64, buf []byte, haveKeyFrame bool)

// Group describes the frames currently pending
type Group struct {
	Frames         int
	HaveDecodeAble bool
	HaveDropAble   bool
	HaveConfig     bool
}

// Merger buffers frames until their timestamp changes and then emits them
// as one unit. It is not safe for concurrent use.
type Merger struct {
	mode    Mode
	pending []frame.Frame
	group   Group

	out     OutputFunc
	scratch *bytes.Buffer
}

// New creates a merger for the given mode
func New(mode Mode) *Merger {
	return &Merger{mode: mode}
}

// Mode returns the merger's delimiting mode
func (m *Merger) Mode() Mode { return m.mode }

// Input adds f to the pending group. If f starts a new group the pending one
// is emitted first through out. Input reports whether a group was emitted.
//
// A non-nil scratch buffer receives the merged bytes; it forces a copy even
// when the group could be passed through.
func (m *Merger) Input(f frame.Frame, out OutputFunc, scratch *bytes.Buffer) bool {
	m.out = out
	m.scratch = scratch

	flushed := false
	if m.willFlush(f) {
		m.Flush()
		flushed = true
	}

	m.pending = append(m.pending, frame.GetCacheable(f))
	m.group.Frames = len(m.pending)
	if f.DecodeAble() {
		m.group.HaveDecodeAble = true
	}
	if f.DropAble() {
		m.group.HaveDropAble = true
	}
	if f.ConfigFrame() {
		m.group.HaveConfig = true
	}

	return flushed
}

func (m *Merger) willFlush(f frame.Frame) bool {
	if len(m.pending) == 0 {
		return false
	}
	return m.pending[len(m.pending)-1].DTS() != f.DTS() || len(m.pending) > maxPending
}

// Flush emits the pending group, if any
func (m *Merger) Flush() {
	if len(m.pending) == 0 {
		return
	}

	if m.out != nil {
		first := m.pending[0]
		key := false
		for _, f := range m.pending {
			if f.KeyFrame() {
				key = true
				break
			}
		}
		m.out(first.DTS(), first.PTS(), m.merge(), key)
	}
	m.Clear()
}

// Group returns the flags of the pending group. Inside an OutputFunc it
// describes the group being emitted.
func (m *Merger) Group() Group { return m.group }

// Clear drops the pending group without emitting it
func (m *Merger) Clear() {
	for i, f := range m.pending {
		frame.Release(f)
		m.pending[i] = nil
	}
	m.pending = m.pending[:0]
	m.group = Group{}
}

func (m *Merger) merge() []byte {
	if len(m.pending) == 1 && m.mode == None && m.scratch == nil {
		return m.pending[0].Data()
	}

	out := m.scratch
	if out == nil {
		out = &bytes.Buffer{}
	}
	out.Reset()

	var size [4]byte
	for _, f := range m.pending {
		switch m.mode {
		case AnnexB:
			out.Write(startCode)
			out.Write(frame.Payload(f))
		case LengthPrefixed:
			payload := frame.Payload(f)
			binary.BigEndian.PutUint32(size[:], uint32(len(payload)))
			out.Write(size[:])
			out.Write(payload)
		default:
			out.Write(f.Data())
		}
	}
	return out.Bytes()
}
