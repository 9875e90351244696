package bitstream

import (
	"errors"
	"fmt"
)

const (
	adtsHeaderLen    = 7
	adtsHeaderCRCLen = 9

	// AACSamplesPerFrame is the number of PCM samples in one AAC frame
	AACSamplesPerFrame = 1024
)

// ErrMalformedADTS is returned for a buffer that is not a sequence of ADTS frames
var ErrMalformedADTS = errors.New("malformed ADTS")

var adtsSampleRates = [...]int{
	96000, 88200, 64000, 48000, 44100, 32000,
	24000, 22050, 16000, 12000, 11025, 8000, 7350,
}

// ADTSHeader holds the fields of an ADTS header used for splitting
type ADTSHeader struct {
	HeaderLen   int
	FrameLen    int
	SampleRate  int
	Channels    int
	ProfileType int
}

// ParseADTSHeader parses the header at the start of data
func ParseADTSHeader(data []byte) (ADTSHeader, error) {
	if len(data) < adtsHeaderLen {
		return ADTSHeader{}, fmt.Errorf("%w: short header (%d bytes)", ErrMalformedADTS, len(data))
	}
	if data[0] != 0xff || data[1]&0xf0 != 0xf0 {
		return ADTSHeader{}, fmt.Errorf("%w: bad syncword %02x%02x", ErrMalformedADTS, data[0], data[1])
	}

	h := ADTSHeader{HeaderLen: adtsHeaderLen}
	if data[1]&0x01 == 0 {
		h.HeaderLen = adtsHeaderCRCLen
	}

	idx := int(data[2]>>2) & 0x0f
	if idx >= len(adtsSampleRates) {
		return ADTSHeader{}, fmt.Errorf("%w: sampling index %d", ErrMalformedADTS, idx)
	}
	h.SampleRate = adtsSampleRates[idx]
	h.ProfileType = int(data[2]>>6) + 1
	h.Channels = int(data[2]&0x01)<<2 | int(data[3]>>6)
	h.FrameLen = int(data[3]&0x03)<<11 | int(data[4])<<3 | int(data[5]>>5)

	if h.FrameLen < h.HeaderLen {
		return ADTSHeader{}, fmt.Errorf("%w: frame length %d", ErrMalformedADTS, h.FrameLen)
	}
	return h, nil
}

// SplitADTS calls fn for each ADTS frame in data with its header and its
// ordinal within data.
func SplitADTS(data []byte, fn func(frame []byte, h ADTSHeader, n int)) error {
	n := 0
	for off := 0; off < len(data); n++ {
		h, err := ParseADTSHeader(data[off:])
		if err != nil {
			return fmt.Errorf("frame %d at offset %d: %w", n, off, err)
		}
		if off+h.FrameLen > len(data) {
			return fmt.Errorf("%w: frame %d truncated (%d of %d bytes)", ErrMalformedADTS, n, len(data)-off, h.FrameLen)
		}
		fn(data[off:off+h.FrameLen], h, n)
		off += h.FrameLen
	}
	return nil
}
