package codec

import (
	"image"
	"io"

	"github.com/xfmoulet/qoi"
)

// QOI is a lossless codec without ancillary chunks, so it cannot be padded.
type QOI struct{}

func (QOI) Name() string   { return "qoi" }
func (QOI) Lossless() bool { return true }

func (c QOI) Encode(w io.Writer, img image.Image, p Params) error {
	if p.PaddingKB != 0 {
		return unsupported(c, p, "qoi has no ancillary chunks")
	}
	return qoi.Encode(w, img)
}
