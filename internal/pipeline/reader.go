package pipeline

import (
	"errors"
	"io"

	"github.com/zsiec/framekit/internal/media/bitstream"
)

// maxCarryChunks bounds how many chunks may accumulate without a start code
// before the reader gives up waiting for a boundary.
const maxCarryChunks = 16

// ChunkReader reads an Annex-B byte stream and returns spans that end right
// before a start code, so no NAL unit is cut in two.
type ChunkReader struct {
	r     io.Reader
	size  int
	buf   []byte
	carry []byte
	eof   bool
}

func NewChunkReader(r io.Reader, size int) *ChunkReader {
	return &ChunkReader{r: r, size: size}
}

// Next returns the next span. The slice is valid until the following call.
// At the end of input the remainder is returned, then io.EOF.
func (c *ChunkReader) Next() ([]byte, error) {
	for {
		if c.eof {
			if len(c.carry) == 0 {
				return nil, io.EOF
			}
			out := c.carry
			c.carry = nil
			return out, nil
		}

		need := len(c.carry) + c.size
		if cap(c.buf) < need {
			buf := make([]byte, need)
			copy(buf, c.carry)
			c.buf = buf
		} else {
			copy(c.buf[:need], c.carry)
		}
		buf := c.buf[:need]

		n, err := io.ReadFull(c.r, buf[len(c.carry):])
		data := buf[:len(c.carry)+n]
		switch {
		case errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF):
			c.eof = true
			c.carry = data
			continue
		case err != nil:
			return nil, err
		}

		cut := bitstream.LastStartCode(data)
		if cut <= 0 {
			if len(data) >= maxCarryChunks*c.size {
				c.carry = nil
				return data, nil
			}
			c.carry = data
			continue
		}

		c.carry = data[cut:]
		return data[:cut], nil
	}
}
