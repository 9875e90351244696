// Package bitstream splits composite elementary-stream buffers into
// zero-copy sub-frames and classifies the units it finds.
package bitstream

import (
	"bytes"
)

var shortStartCode = []byte{0x00, 0x00, 0x01}

// FindStartCode returns the position and length (3 or 4) of the first
// Annex-B start code at or after from, or -1 if there is none.
func FindStartCode(data []byte, from int) (int, int) {
	if from < 0 {
		from = 0
	}
	if from >= len(data) {
		return -1, 0
	}

	idx := bytes.Index(data[from:], shortStartCode)
	if idx < 0 {
		return -1, 0
	}
	pos := from + idx
	if pos > from && data[pos-1] == 0 {
		return pos - 1, 4
	}
	return pos, 3
}

// LastStartCode returns the position of the last start code in data, or -1
func LastStartCode(data []byte) int {
	idx := bytes.LastIndex(data, shortStartCode)
	if idx < 0 {
		return -1
	}
	if idx > 0 && data[idx-1] == 0 {
		return idx - 1
	}
	return idx
}

// SplitAnnexB calls fn for every NAL unit in data. nal includes its start
// code, prefix is the start code length. Bytes before the first start code
// are skipped; data without any start code is passed whole with prefix 0.
func SplitAnnexB(data []byte, fn func(nal []byte, prefix int)) {
	pos, n := FindStartCode(data, 0)
	if pos < 0 {
		if len(data) > 0 {
			fn(data, 0)
		}
		return
	}

	for pos >= 0 {
		next, nextLen := FindStartCode(data, pos+n)
		end := len(data)
		if next >= 0 {
			end = next
		}
		if end > pos+n {
			fn(data[pos:end], n)
		}
		pos, n = next, nextLen
	}
}
