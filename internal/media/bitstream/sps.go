package bitstream

import (
	"errors"
	"fmt"

	"github.com/zsiec/framekit/internal/media/codec"
)

// ErrNotSPS is returned by ParseResolution for units that are not a
// sequence parameter set
var ErrNotSPS = errors.New("not a sequence parameter set")

// Resolution is the cropped picture size carried by an SPS
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (r Resolution) IsZero() bool { return r.Width == 0 && r.Height == 0 }

func (r Resolution) String() string { return fmt.Sprintf("%dx%d", r.Width, r.Height) }

// ParseResolution reads the picture size from an SPS NAL unit. payload
// starts at the NAL header.
func ParseResolution(id codec.ID, payload []byte) (Resolution, error) {
	switch id {
	case codec.H264:
		if len(payload) == 0 || payload[0]&0x1f != H264NALSPS {
			return Resolution{}, ErrNotSPS
		}
		return parseH264SPS(Unescape(payload[1:]))
	case codec.H265:
		if len(payload) < hevcNALHeaderBytes || (payload[0]>>1)&0x3f != HEVCNALSPS {
			return Resolution{}, ErrNotSPS
		}
		return parseHEVCSPS(Unescape(payload[hevcNALHeaderBytes:]))
	default:
		return Resolution{}, fmt.Errorf("%w: %s", ErrUnsupportedCodec, id)
	}
}

// chromaSubsampling returns SubWidthC and SubHeightC for chroma_format_idc
func chromaSubsampling(chromaFormat uint32) (int, int) {
	switch chromaFormat {
	case 1:
		return 2, 2
	case 2:
		return 2, 1
	default:
		return 1, 1
	}
}

// profiles carrying chroma_format_idc and bit depth fields
var h264HighProfiles = map[uint32]bool{
	100: true, 110: true, 122: true, 244: true, 44: true,
	83: true, 86: true, 118: true, 128: true, 138: true,
	139: true, 134: true, 135: true,
}

type spsReader struct {
	*BitReader
	err error
}

func (r *spsReader) ue() uint32 {
	if r.err != nil {
		return 0
	}
	v, err := r.ReadUE()
	r.err = err
	return v
}

func (r *spsReader) se() int32 {
	if r.err != nil {
		return 0
	}
	v, err := r.ReadSE()
	r.err = err
	return v
}

func (r *spsReader) bits(n int) uint32 {
	if r.err != nil {
		return 0
	}
	v, err := r.ReadBits(n)
	r.err = err
	return v
}

func (r *spsReader) flag() bool { return r.bits(1) == 1 }

func (r *spsReader) skip(n int) {
	if r.err == nil {
		r.err = r.SkipBits(n)
	}
}

func parseH264SPS(rbsp []byte) (Resolution, error) {
	r := &spsReader{BitReader: NewBitReader(rbsp)}

	profile := r.bits(8)
	r.skip(16) // constraint flags, level_idc
	r.ue()     // seq_parameter_set_id

	chromaFormat := uint32(1)
	separatePlanes := false
	if h264HighProfiles[profile] {
		chromaFormat = r.ue()
		if chromaFormat == 3 {
			separatePlanes = r.flag()
		}
		r.ue() // bit_depth_luma_minus8
		r.ue() // bit_depth_chroma_minus8
		r.skip(1)
		if r.flag() {
			lists := 8
			if chromaFormat == 3 {
				lists = 12
			}
			for i := 0; i < lists; i++ {
				if r.flag() {
					size := 16
					if i >= 6 {
						size = 64
					}
					skipScalingList(r, size)
				}
			}
		}
	}

	r.ue() // log2_max_frame_num_minus4
	switch r.ue() {
	case 0:
		r.ue()
	case 1:
		r.skip(1)
		r.se()
		r.se()
		cycle := r.ue()
		for i := uint32(0); i < cycle && r.err == nil; i++ {
			r.se()
		}
	}
	r.ue()    // max_num_ref_frames
	r.skip(1) // gaps_in_frame_num_value_allowed_flag

	widthMbs := int(r.ue()) + 1
	heightMapUnits := int(r.ue()) + 1
	frameMbsOnly := r.flag()
	if !frameMbsOnly {
		r.skip(1)
	}
	r.skip(1) // direct_8x8_inference_flag

	var cropLeft, cropRight, cropTop, cropBottom int
	if r.flag() {
		cropLeft, cropRight = int(r.ue()), int(r.ue())
		cropTop, cropBottom = int(r.ue()), int(r.ue())
	}
	if r.err != nil {
		return Resolution{}, fmt.Errorf("h264 sps: %w", r.err)
	}

	fieldFactor := 2
	if frameMbsOnly {
		fieldFactor = 1
	}

	cropX, cropY := 1, fieldFactor
	if chromaFormat != 0 && !separatePlanes {
		subW, subH := chromaSubsampling(chromaFormat)
		cropX, cropY = subW, subH*fieldFactor
	}

	res := Resolution{
		Width:  widthMbs*16 - (cropLeft+cropRight)*cropX,
		Height: fieldFactor*heightMapUnits*16 - (cropTop+cropBottom)*cropY,
	}
	if res.Width <= 0 || res.Height <= 0 {
		return Resolution{}, fmt.Errorf("h264 sps: invalid size %s", res)
	}
	return res, nil
}

func skipScalingList(r *spsReader, size int) {
	last, next := int32(8), int32(8)
	for i := 0; i < size && r.err == nil; i++ {
		if next != 0 {
			next = (last + r.se() + 256) % 256
		}
		if next != 0 {
			last = next
		}
	}
}

func parseHEVCSPS(rbsp []byte) (Resolution, error) {
	r := &spsReader{BitReader: NewBitReader(rbsp)}

	r.skip(4) // sps_video_parameter_set_id
	maxSubLayersMinus1 := int(r.bits(3))
	r.skip(1) // sps_temporal_id_nesting_flag
	skipProfileTierLevel(r, maxSubLayersMinus1)

	r.ue() // sps_seq_parameter_set_id
	chromaFormat := r.ue()
	separatePlanes := false
	if chromaFormat == 3 {
		separatePlanes = r.flag()
	}

	width := int(r.ue())
	height := int(r.ue())

	var confLeft, confRight, confTop, confBottom int
	if r.flag() {
		confLeft, confRight = int(r.ue()), int(r.ue())
		confTop, confBottom = int(r.ue()), int(r.ue())
	}
	if r.err != nil {
		return Resolution{}, fmt.Errorf("hevc sps: %w", r.err)
	}

	subW, subH := 1, 1
	if !separatePlanes {
		subW, subH = chromaSubsampling(chromaFormat)
	}

	res := Resolution{
		Width:  width - (confLeft+confRight)*subW,
		Height: height - (confTop+confBottom)*subH,
	}
	if res.Width <= 0 || res.Height <= 0 {
		return Resolution{}, fmt.Errorf("hevc sps: invalid size %s", res)
	}
	return res, nil
}

// skipProfileTierLevel skips profile_tier_level(1, maxSubLayersMinus1)
func skipProfileTierLevel(r *spsReader, maxSubLayersMinus1 int) {
	r.skip(88) // general profile, tier and constraint flags
	r.skip(8)  // general_level_idc

	profilePresent := make([]bool, maxSubLayersMinus1)
	levelPresent := make([]bool, maxSubLayersMinus1)
	for i := 0; i < maxSubLayersMinus1; i++ {
		profilePresent[i] = r.flag()
		levelPresent[i] = r.flag()
	}
	if maxSubLayersMinus1 > 0 {
		r.skip(2 * (8 - maxSubLayersMinus1))
	}
	for i := 0; i < maxSubLayersMinus1; i++ {
		if profilePresent[i] {
			r.skip(88)
		}
		if levelPresent[i] {
			r.skip(8)
		}
	}
}
