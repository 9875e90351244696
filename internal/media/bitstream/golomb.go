package bitstream

import (
	"errors"
	"fmt"
)

// ErrShortBitstream is returned when a read runs past the end of the data
var ErrShortBitstream = errors.New("bitstream exhausted")

// BitReader reads MSB-first bit fields and exp-Golomb codes from an RBSP
type BitReader struct {
	data    []byte
	bytePos int
	bitPos  int
}

func NewBitReader(data []byte) *BitReader {
	return &BitReader{data: data}
}

func (br *BitReader) remaining() int {
	return (len(br.data)-br.bytePos)*8 - br.bitPos
}

func (br *BitReader) ReadBit() (uint32, error) {
	if br.bytePos >= len(br.data) {
		return 0, ErrShortBitstream
	}
	bit := (br.data[br.bytePos] >> (7 - br.bitPos)) & 1
	br.bitPos++
	if br.bitPos == 8 {
		br.bitPos = 0
		br.bytePos++
	}
	return uint32(bit), nil
}

// ReadBits reads n bits, n at most 32
func (br *BitReader) ReadBits(n int) (uint32, error) {
	if n < 0 || n > 32 {
		return 0, fmt.Errorf("invalid bit count: %d", n)
	}
	if br.remaining() < n {
		return 0, fmt.Errorf("%w: need %d bits, have %d", ErrShortBitstream, n, br.remaining())
	}

	var v uint32
	for i := 0; i < n; i++ {
		bit, _ := br.ReadBit()
		v = v<<1 | bit
	}
	return v, nil
}

func (br *BitReader) ReadFlag() (bool, error) {
	bit, err := br.ReadBit()
	return bit == 1, err
}

// ReadUE reads an unsigned exp-Golomb code
func (br *BitReader) ReadUE() (uint32, error) {
	zeros := 0
	for {
		bit, err := br.ReadBit()
		if err != nil {
			return 0, err
		}
		if bit == 1 {
			break
		}
		zeros++
		if zeros > 31 {
			return 0, fmt.Errorf("exp-golomb code with more than 31 leading zeros")
		}
	}
	if zeros == 0 {
		return 0, nil
	}

	suffix, err := br.ReadBits(zeros)
	if err != nil {
		return 0, err
	}
	return (1 << zeros) - 1 + suffix, nil
}

// ReadSE reads a signed exp-Golomb code
func (br *BitReader) ReadSE() (int32, error) {
	ue, err := br.ReadUE()
	if err != nil {
		return 0, err
	}
	if ue%2 == 0 {
		return -int32(ue / 2), nil
	}
	return int32((ue + 1) / 2), nil
}

func (br *BitReader) SkipBits(n int) error {
	if br.remaining() < n {
		return fmt.Errorf("%w: skip %d bits, have %d", ErrShortBitstream, n, br.remaining())
	}
	br.bytePos += (br.bitPos + n) / 8
	br.bitPos = (br.bitPos + n) % 8
	return nil
}

// Unescape strips emulation prevention bytes: the 0x03 of every
// 0x00 0x00 0x03 0x0N sequence with N <= 3, or at the end of data.
func Unescape(data []byte) []byte {
	out := make([]byte, 0, len(data))
	zeros := 0
	for i, b := range data {
		if zeros >= 2 && b == 0x03 && (i+1 == len(data) || data[i+1] <= 0x03) {
			zeros = 0
			continue
		}
		if b == 0 {
			zeros++
		} else {
			zeros = 0
		}
		out = append(out, b)
	}
	return out
}
