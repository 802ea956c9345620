package transform

import (
	"image"

	"github.com/disintegration/imaging"
)

// RemoveAlpha returns a fully opaque copy of img. Colour channels keep their
// straight (non-premultiplied) values; only alpha is discarded.
func RemoveAlpha(img image.Image) *image.NRGBA {
	dst := imaging.Clone(img)
	b := dst.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.SetNRGBA(x, y, opaque(dst.NRGBAAt(x, y)))
		}
	}
	return dst
}
