package bitstream

import (
	"math/bits"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/framekit/internal/media/codec"
)

type bitWriter struct {
	buf []byte
	n   int
}

func (w *bitWriter) bit(b uint32) {
	if w.n%8 == 0 {
		w.buf = append(w.buf, 0)
	}
	if b == 1 {
		w.buf[len(w.buf)-1] |= 0x80 >> uint(w.n%8)
	}
	w.n++
}

func (w *bitWriter) u(n int, v uint32) {
	for i := n - 1; i >= 0; i-- {
		w.bit(v >> uint(i) & 1)
	}
}

func (w *bitWriter) ue(v uint32) {
	x := v + 1
	l := bits.Len32(x)
	w.u(l-1, 0)
	w.u(l, x)
}

func (w *bitWriter) se(v int32) {
	if v > 0 {
		w.ue(uint32(2*v - 1))
	} else {
		w.ue(uint32(-2 * v))
	}
}

// nal appends the rbsp stop bit and prefixes the NAL header
func (w *bitWriter) nal(header ...byte) []byte {
	w.bit(1)
	return append(header, w.buf...)
}

func TestBitReader(t *testing.T) {
	w := &bitWriter{}
	w.u(3, 5)
	w.ue(0)
	w.ue(7)
	w.ue(1920)
	w.se(-3)
	w.se(4)
	w.u(1, 1)

	br := NewBitReader(w.buf)
	v, err := br.ReadBits(3)
	require.NoError(t, err)
	assert.Equal(t, uint32(5), v)

	for _, expected := range []uint32{0, 7, 1920} {
		ue, err := br.ReadUE()
		require.NoError(t, err)
		assert.Equal(t, expected, ue)
	}

	se, err := br.ReadSE()
	require.NoError(t, err)
	assert.Equal(t, int32(-3), se)
	se, err = br.ReadSE()
	require.NoError(t, err)
	assert.Equal(t, int32(4), se)

	flag, err := br.ReadFlag()
	require.NoError(t, err)
	assert.True(t, flag)
}

func TestBitReader_Bounds(t *testing.T) {
	br := NewBitReader([]byte{0xff})
	_, err := br.ReadBits(9)
	assert.ErrorIs(t, err, ErrShortBitstream)

	_, err = br.ReadBits(33)
	assert.Error(t, err)

	require.NoError(t, br.SkipBits(6))
	v, err := br.ReadBits(2)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), v)

	_, err = br.ReadBit()
	assert.ErrorIs(t, err, ErrShortBitstream)
	assert.ErrorIs(t, br.SkipBits(1), ErrShortBitstream)

	_, err = NewBitReader([]byte{0, 0, 0, 0, 0}).ReadUE()
	assert.Error(t, err)
}

func TestUnescape(t *testing.T) {
	tests := []struct {
		name     string
		in       []byte
		expected []byte
	}{
		{"escaped start code", []byte{0, 0, 3, 1}, []byte{0, 0, 1}},
		{"escaped zeros", []byte{0, 0, 3, 0, 0, 3}, []byte{0, 0, 0, 0}},
		{"not an escape", []byte{0, 0, 3, 4}, []byte{0, 0, 3, 4}},
		{"single zero", []byte{0, 3, 1}, []byte{0, 3, 1}},
		{"empty", []byte{}, []byte{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Unescape(tt.in))
		})
	}
}

func h264SPS(profile uint32, build func(w *bitWriter)) []byte {
	w := &bitWriter{}
	w.u(8, profile)
	w.u(8, 0)  // constraint flags
	w.u(8, 40) // level_idc
	w.ue(0)    // seq_parameter_set_id
	build(w)
	return w.nal(0x67)
}

func TestParseResolution_H264(t *testing.T) {
	baseline := []byte{0x67, 0x42, 0x00, 0x1e, 0xda, 0x05, 0x07, 0xe4}

	main1080p := h264SPS(77, func(w *bitWriter) {
		w.ue(0)   // log2_max_frame_num_minus4
		w.ue(0)   // pic_order_cnt_type
		w.ue(2)   // log2_max_pic_order_cnt_lsb_minus4
		w.ue(4)   // max_num_ref_frames
		w.u(1, 0) // gaps
		w.ue(119)
		w.ue(67)
		w.u(1, 1) // frame_mbs_only_flag
		w.u(1, 1) // direct_8x8_inference_flag
		w.u(1, 1) // frame_cropping_flag
		w.ue(0)
		w.ue(0)
		w.ue(0)
		w.ue(4)
		w.u(1, 0) // vui_parameters_present_flag
	})

	high1080i := h264SPS(100, func(w *bitWriter) {
		w.ue(1)   // chroma_format_idc
		w.ue(0)   // bit_depth_luma_minus8
		w.ue(0)   // bit_depth_chroma_minus8
		w.u(1, 0) // qpprime_y_zero_transform_bypass_flag
		w.u(1, 1) // seq_scaling_matrix_present_flag
		w.u(1, 1) // list 0 present
		for i := 0; i < 16; i++ {
			w.se(1)
		}
		for i := 1; i < 8; i++ {
			w.u(1, 0)
		}
		w.ue(0)
		w.ue(1) // pic_order_cnt_type
		w.u(1, 0)
		w.se(-2)
		w.se(1)
		w.ue(2)
		w.se(3)
		w.se(-1)
		w.ue(2)
		w.u(1, 0)
		w.ue(119)
		w.ue(33)
		w.u(1, 0) // frame_mbs_only_flag
		w.u(1, 1) // mb_adaptive_frame_field_flag
		w.u(1, 1)
		w.u(1, 1)
		w.ue(0)
		w.ue(0)
		w.ue(0)
		w.ue(2)
		w.u(1, 0)
	})

	tests := []struct {
		name     string
		payload  []byte
		expected Resolution
	}{
		{"baseline 320x240", baseline, Resolution{Width: 320, Height: 240}},
		{"main cropped 1080p", main1080p, Resolution{Width: 1920, Height: 1080}},
		{"high interlaced with scaling list", high1080i, Resolution{Width: 1920, Height: 1080}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := ParseResolution(codec.H264, tt.payload)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, res)
		})
	}
}

func hevcSPS(maxSubLayersMinus1 uint32, width, height uint32, confBottom uint32) []byte {
	w := &bitWriter{}
	w.u(4, 0)
	w.u(3, maxSubLayersMinus1)
	w.u(1, 1)
	for i := 0; i < 12; i++ {
		w.u(8, 0x5a) // general profile_tier_level
	}
	for i := uint32(0); i < maxSubLayersMinus1; i++ {
		w.u(1, 1) // sub_layer_profile_present_flag
		w.u(1, 1) // sub_layer_level_present_flag
	}
	if maxSubLayersMinus1 > 0 {
		for i := maxSubLayersMinus1; i < 8; i++ {
			w.u(2, 0)
		}
	}
	for i := uint32(0); i < maxSubLayersMinus1; i++ {
		for j := 0; j < 11; j++ {
			w.u(8, 0x5a)
		}
		w.u(8, 0x5a)
	}
	w.ue(0) // sps_seq_parameter_set_id
	w.ue(1) // chroma_format_idc
	w.ue(width)
	w.ue(height)
	if confBottom > 0 {
		w.u(1, 1)
		w.ue(0)
		w.ue(0)
		w.ue(0)
		w.ue(confBottom)
	} else {
		w.u(1, 0)
	}
	return w.nal(0x42, 0x01)
}

func TestParseResolution_HEVC(t *testing.T) {
	res, err := ParseResolution(codec.H265, hevcSPS(0, 1920, 1088, 4))
	require.NoError(t, err)
	assert.Equal(t, Resolution{Width: 1920, Height: 1080}, res)

	res, err = ParseResolution(codec.H265, hevcSPS(2, 3840, 2160, 0))
	require.NoError(t, err)
	assert.Equal(t, Resolution{Width: 3840, Height: 2160}, res)
	assert.Equal(t, "3840x2160", res.String())
}

func TestParseResolution_Errors(t *testing.T) {
	_, err := ParseResolution(codec.H264, []byte{0x68, 0xce, 0x3c, 0x80})
	assert.ErrorIs(t, err, ErrNotSPS)

	_, err = ParseResolution(codec.H265, []byte{0x44, 0x01, 0xc1})
	assert.ErrorIs(t, err, ErrNotSPS)

	_, err = ParseResolution(codec.H264, []byte{0x67, 0x42, 0x00, 0x1f})
	assert.ErrorIs(t, err, ErrShortBitstream)

	_, err = ParseResolution(codec.AAC, []byte{0xff, 0xf1})
	assert.ErrorIs(t, err, ErrUnsupportedCodec)

	assert.True(t, Resolution{}.IsZero())
}
