package bitstream

import (
	"github.com/zsiec/framekit/internal/media/codec"
)

// H.264 NAL unit types
const (
	H264NALSlice    = 1
	H264NALIDR      = 5
	H264NALSEI      = 6
	H264NALSPS      = 7
	H264NALPPS      = 8
	H264NALAUD      = 9
	H264NALEndSeq   = 10
	H264NALEndStrm  = 11
	H264NALFiller   = 12
	H264NALSPSExt   = 13
	H264NALPrefix   = 14
	H264NALSubsetSP = 15
)

// H.265 NAL unit types
const (
	HEVCNALBLAWLP      = 16
	HEVCNALCRA         = 21
	HEVCNALVPS         = 32
	HEVCNALSPS         = 33
	HEVCNALPPS         = 34
	HEVCNALAUD         = 35
	HEVCNALEOS         = 36
	HEVCNALEOB         = 37
	HEVCNALFD          = 38
	HEVCNALPrefixSEI   = 39
	HEVCNALSuffixSEI   = 40
	hevcNALMaxVCL      = 31
	hevcNALHeaderBytes = 2
)

// Flags classifies one NAL unit
type Flags struct {
	Type uint8

	// VCL units carry picture data
	VCL bool
	// FirstSlice is set on the first slice of a picture
	FirstSlice bool

	Key      bool
	Config   bool
	DropAble bool

	// StartsAccessUnit is set on non-VCL units that may only precede the
	// first slice of a picture
	StartsAccessUnit bool
}

// H264Flags classifies an H.264 NAL unit. payload excludes the start code.
func H264Flags(payload []byte) Flags {
	if len(payload) == 0 {
		return Flags{}
	}

	t := payload[0] & 0x1f
	f := Flags{Type: t}
	switch t {
	case H264NALSlice, 2, 3, 4:
		f.VCL = true
	case H264NALIDR:
		f.VCL = true
		f.Key = true
	case H264NALSPS, H264NALPPS:
		f.Config = true
		f.StartsAccessUnit = true
	case H264NALSEI, H264NALAUD:
		f.DropAble = true
		f.StartsAccessUnit = true
	case H264NALFiller, H264NALEndSeq, H264NALEndStrm:
		f.DropAble = true
	case H264NALSPSExt, H264NALPrefix, H264NALSubsetSP:
		f.StartsAccessUnit = true
	}

	// first_mb_in_slice is ue(v); a leading 1 bit encodes zero
	if f.VCL && len(payload) > 1 {
		f.FirstSlice = payload[1]&0x80 != 0
	}
	return f
}

// HEVCFlags classifies an H.265 NAL unit. payload excludes the start code.
func HEVCFlags(payload []byte) Flags {
	if len(payload) == 0 {
		return Flags{}
	}

	t := (payload[0] >> 1) & 0x3f
	f := Flags{Type: t}
	switch {
	case t <= hevcNALMaxVCL:
		f.VCL = true
		f.Key = t >= HEVCNALBLAWLP && t <= HEVCNALCRA
	case t == HEVCNALVPS, t == HEVCNALSPS, t == HEVCNALPPS:
		f.Config = true
		f.StartsAccessUnit = true
	case t == HEVCNALAUD, t == HEVCNALPrefixSEI:
		f.DropAble = true
		f.StartsAccessUnit = true
	case t == HEVCNALSuffixSEI, t == HEVCNALFD, t == HEVCNALEOS, t == HEVCNALEOB:
		f.DropAble = true
	}

	// first_slice_segment_in_pic_flag follows the two byte header
	if f.VCL && len(payload) > hevcNALHeaderBytes {
		f.FirstSlice = payload[hevcNALHeaderBytes]&0x80 != 0
	}
	return f
}

// Classify dispatches on the codec. Codecs without NAL units report zero Flags.
func Classify(id codec.ID, payload []byte) Flags {
	switch id {
	case codec.H264:
		return H264Flags(payload)
	case codec.H265:
		return HEVCFlags(payload)
	default:
		return Flags{}
	}
}

// AccessUnits detects picture boundaries in a sequence of NAL units
type AccessUnits struct {
	seenVCL bool
}

// Begins reports whether the unit described by f starts a new access unit.
// The first unit of a stream never does.
func (a *AccessUnits) Begins(f Flags) bool {
	if f.VCL {
		begins := a.seenVCL && f.FirstSlice
		a.seenVCL = true
		return begins
	}
	if f.StartsAccessUnit && a.seenVCL {
		a.seenVCL = false
		return true
	}
	return false
}

// Reset forgets the current access unit
func (a *AccessUnits) Reset() { a.seenVCL = false }
