package bitstream

import (
	"errors"
	"fmt"

	"github.com/zsiec/framekit/internal/media/codec"
	"github.com/zsiec/framekit/internal/media/frame"
)

// ErrUnsupportedCodec is returned by Split for codecs it cannot split
var ErrUnsupportedCodec = errors.New("unsupported codec for splitting")

// Split slices a composite parent into sub-frames without copying. fn owns
// one reference on each sub-frame and must release it.
//
// H.264 and H.265 parents are split at Annex-B start codes and every unit
// is classified; sub-frames share the parent's timestamps. AAC parents are
// split into ADTS frames whose timestamps advance by one frame duration.
func Split(parent frame.Frame, fn func(frame.Frame)) error {
	id, err := frame.Codec(parent)
	if err != nil {
		return err
	}

	switch id {
	case codec.H264, codec.H265:
		SplitAnnexB(parent.Data(), func(nal []byte, prefix int) {
			fl := Classify(id, nal[prefix:])
			fn(frame.NewSubFrame(parent, nal, prefix,
				frame.WithKeyFrame(fl.Key),
				frame.WithConfigFrame(fl.Config),
				frame.WithDropAble(fl.DropAble),
			))
		})
		return nil

	case codec.AAC:
		dts, pts := parent.DTS(), parent.PTS()
		return SplitADTS(parent.Data(), func(data []byte, h ADTSHeader, n int) {
			offset := uint64(n) * AACSamplesPerFrame * 1000 / uint64(h.SampleRate)
			fn(frame.NewSubFrameAt(parent, data, dts+offset, pts+offset, h.HeaderLen))
		})

	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedCodec, id)
	}
}
