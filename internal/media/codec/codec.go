package codec

import (
	"strings"
)

// TrackType represents the kind of elementary stream a codec carries
type TrackType int

const (
	TrackInvalid TrackType = -1
	TrackVideo   TrackType = iota - 1
	TrackAudio
	TrackTitle
	TrackApplication
)

// String returns the string representation of TrackType
func (t TrackType) String() string {
	switch t {
	case TrackVideo:
		return "video"
	case TrackAudio:
		return "audio"
	case TrackTitle:
		return "title"
	case TrackApplication:
		return "application"
	default:
		return "invalid"
	}
}

// ParseTrackType converts a track name into a TrackType. Matching is
// case-insensitive; unknown names yield TrackInvalid.
func ParseTrackType(s string) TrackType {
	switch strings.ToLower(s) {
	case "video":
		return TrackVideo
	case "audio":
		return TrackAudio
	case "title":
		return TrackTitle
	case "application":
		return TrackApplication
	default:
		return TrackInvalid
	}
}

// ID identifies a codec. The numeric values are stable and match the
// order of the registry table.
type ID int

const (
	Invalid ID = -1
	H264    ID = iota - 1
	H265
	AAC
	G711A
	G711U
	Opus
	L16
	VP8
	VP9
	AV1
	JPEG
	H266
	TS
	PS
	MP3
	ADPCM
	SVACV
	SVACA
	G722
	G723
	G728
	G729

	numCodecs
)

// MPEG-TS PMT stream_type values
const (
	StreamTypeReserved  uint8 = 0x00
	StreamTypeMP3       uint8 = 0x04
	StreamTypeAAC       uint8 = 0x0f
	StreamTypeH264      uint8 = 0x1b
	StreamTypeJPEG2000  uint8 = 0x21
	StreamTypeH265      uint8 = 0x24
	StreamTypeH266      uint8 = 0x33
	StreamTypeSVACVideo uint8 = 0x80
	StreamTypeG711A     uint8 = 0x90
	StreamTypeG711U     uint8 = 0x91
	StreamTypeG722      uint8 = 0x92
	StreamTypeG723      uint8 = 0x93
	StreamTypeG729      uint8 = 0x99
	StreamTypeSVACAudio uint8 = 0x9b
	StreamTypeOpus      uint8 = 0x9c
	StreamTypeVP8       uint8 = 0x9d
	StreamTypeVP9       uint8 = 0x9e
	StreamTypeAV1       uint8 = 0x9f
)

// MP4 (ISO/IEC 14496-1) objectTypeIndication values
const (
	ObjectTypeNone  uint8 = 0x00
	ObjectTypeH264  uint8 = 0x21
	ObjectTypeHEVC  uint8 = 0x23
	ObjectTypeH266  uint8 = 0x33
	ObjectTypeAAC   uint8 = 0x40
	ObjectTypeMP3   uint8 = 0x6b
	ObjectTypeJPEG  uint8 = 0x6c
	ObjectTypeOpus  uint8 = 0xad
	ObjectTypeVP8   uint8 = 0xb1
	ObjectTypeVP9   uint8 = 0xb2
	ObjectTypeAV1   uint8 = 0xb3
	ObjectTypeG711A uint8 = 0xfd
	ObjectTypeG711U uint8 = 0xfe
)

// Info is one row of the codec registry
type Info struct {
	ID         ID
	Track      TrackType
	Name       string // name used in SDP rtpmap / negotiation
	StreamType uint8  // MPEG-TS stream_type
	ObjectType uint8  // MP4 objectTypeIndication
}

// registry is indexed by ID. It must stay in ID order.
var registry = [numCodecs]Info{
	{H264, TrackVideo, "H264", StreamTypeH264, ObjectTypeH264},
	{H265, TrackVideo, "H265", StreamTypeH265, ObjectTypeHEVC},
	{AAC, TrackAudio, "mpeg4-generic", StreamTypeAAC, ObjectTypeAAC},
	{G711A, TrackAudio, "PCMA", StreamTypeG711A, ObjectTypeG711A},
	{G711U, TrackAudio, "PCMU", StreamTypeG711U, ObjectTypeG711U},
	{Opus, TrackAudio, "opus", StreamTypeOpus, ObjectTypeOpus},
	{L16, TrackAudio, "L16", StreamTypeReserved, ObjectTypeNone},
	{VP8, TrackVideo, "VP8", StreamTypeVP8, ObjectTypeVP8},
	{VP9, TrackVideo, "VP9", StreamTypeVP9, ObjectTypeVP9},
	{AV1, TrackVideo, "AV1", StreamTypeAV1, ObjectTypeAV1},
	{JPEG, TrackVideo, "JPEG", StreamTypeJPEG2000, ObjectTypeJPEG},
	{H266, TrackVideo, "H266", StreamTypeH266, ObjectTypeH266},
	{TS, TrackVideo, "MP2T", StreamTypeReserved, ObjectTypeNone},
	{PS, TrackVideo, "MPEG", StreamTypeReserved, ObjectTypeNone},
	{MP3, TrackAudio, "MP3", StreamTypeMP3, ObjectTypeMP3},
	{ADPCM, TrackAudio, "ADPCM", StreamTypeReserved, ObjectTypeNone},
	{SVACV, TrackVideo, "SVACV", StreamTypeSVACVideo, ObjectTypeNone},
	{SVACA, TrackAudio, "SVACA", StreamTypeSVACAudio, ObjectTypeNone},
	{G722, TrackAudio, "G722", StreamTypeG722, ObjectTypeNone},
	{G723, TrackAudio, "G723", StreamTypeG723, ObjectTypeNone},
	{G728, TrackAudio, "G728", StreamTypeReserved, ObjectTypeNone},
	{G729, TrackAudio, "G729", StreamTypeG729, ObjectTypeNone},
}

// Valid reports whether id refers to a registered codec
func (id ID) Valid() bool {
	return id >= 0 && id < numCodecs
}

// Info returns the registry row for id. ok is false for unknown ids.
func (id ID) Info() (info Info, ok bool) {
	if !id.Valid() {
		return Info{ID: Invalid, Track: TrackInvalid}, false
	}
	return registry[id], true
}

// Name returns the canonical codec name, or "invalid"
func (id ID) Name() string {
	if !id.Valid() {
		return "invalid"
	}
	return registry[id].Name
}

// String implements fmt.Stringer
func (id ID) String() string {
	return id.Name()
}

// TrackType returns the track type the codec belongs to
func (id ID) TrackType() TrackType {
	if !id.Valid() {
		return TrackInvalid
	}
	return registry[id].Track
}

// StreamType returns the MPEG-TS stream_type, StreamTypeReserved if none
func (id ID) StreamType() uint8 {
	if !id.Valid() {
		return StreamTypeReserved
	}
	return registry[id].StreamType
}

// ObjectType returns the MP4 object type, ObjectTypeNone if none
func (id ID) ObjectType() uint8 {
	if !id.Valid() {
		return ObjectTypeNone
	}
	return registry[id].ObjectType
}

// FromName looks a codec up by its SDP name (case-insensitive)
func FromName(name string) ID {
	for _, info := range registry {
		if strings.EqualFold(info.Name, name) {
			return info.ID
		}
	}
	return Invalid
}

// FromStreamType maps an MPEG-TS stream_type back to a codec.
// The reserved value never maps to a codec.
func FromStreamType(streamType uint8) ID {
	if streamType == StreamTypeReserved {
		return Invalid
	}
	for _, info := range registry {
		if info.StreamType == streamType {
			return info.ID
		}
	}
	return Invalid
}

// FromObjectType maps an MP4 object type back to a codec
func FromObjectType(objectType uint8) ID {
	if objectType == ObjectTypeNone {
		return Invalid
	}
	for _, info := range registry {
		if info.ObjectType == objectType {
			return info.ID
		}
	}
	return Invalid
}

// All returns every registered codec row in ID order
func All() []Info {
	out := make([]Info, len(registry))
	copy(out, registry[:])
	return out
}
