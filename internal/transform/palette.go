package transform

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/ericpauley/go-quantize/quantize"
	"golang.org/x/image/draw"
)

// MaxPaletteColors is the largest palette an indexed PNG can carry.
const MaxPaletteColors = 256

// Quantize reduces img to an adaptive palette of at most colors entries
// chosen by median cut. Pixels are mapped to their nearest entry without
// dithering.
func Quantize(img image.Image, colors int) (*image.Paletted, error) {
	if colors < 1 || colors > MaxPaletteColors {
		return nil, fmt.Errorf("palette size %d outside 1..%d", colors, MaxPaletteColors)
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, errors.New("cannot quantize an empty image")
	}

	q := quantize.MedianCutQuantizer{}
	palette := q.Quantize(make(color.Palette, 0, colors), img)
	if len(palette) == 0 {
		return nil, errors.New("quantizer produced an empty palette")
	}

	return Remap(img, palette), nil
}

// Remap maps every pixel of img to its nearest entry in palette.
func Remap(img image.Image, palette color.Palette) *image.Paletted {
	b := img.Bounds()
	dst := image.NewPaletted(b, palette)
	draw.Draw(dst, b, img, b.Min, draw.Src)
	return dst
}
