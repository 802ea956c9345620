// Package transform holds the structural image transforms the lossless size
// search explores: alpha removal, palette reduction and resampling.
package transform

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// ColorMode names the pixel layout of an image the way an encoder sees it.
type ColorMode string

const (
	ModeRGBA     ColorMode = "RGBA"
	ModeRGB      ColorMode = "RGB"
	ModePaletted ColorMode = "P"
	ModeGray     ColorMode = "L"
	ModeCMYK     ColorMode = "CMYK"
)

// ModeOf reports the colour mode of img. RGBA-backed images that are fully
// opaque count as RGB: the PNG encoder writes them without an alpha channel.
func ModeOf(img image.Image) ColorMode {
	switch m := img.(type) {
	case *image.Paletted:
		return ModePaletted
	case *image.Gray, *image.Gray16:
		return ModeGray
	case *image.YCbCr:
		return ModeRGB
	case *image.CMYK:
		return ModeCMYK
	case interface{ Opaque() bool }:
		if m.Opaque() {
			return ModeRGB
		}
	}
	return ModeRGBA
}

// HasAlpha reports whether img carries a transparency channel in use.
func HasAlpha(img image.Image) bool {
	return ModeOf(img) == ModeRGBA
}

// ApplyMode converts img to mode. Converting to the mode img already has
// returns img unchanged.
func ApplyMode(img image.Image, mode ColorMode) (image.Image, error) {
	if ModeOf(img) == mode {
		return img, nil
	}

	switch mode {
	case ModeRGB:
		return RemoveAlpha(img), nil
	case ModePaletted:
		return Quantize(img, MaxPaletteColors)
	case ModeGray:
		dst := image.NewGray(img.Bounds())
		draw.Draw(dst, dst.Bounds(), img, img.Bounds().Min, draw.Src)
		return dst, nil
	case ModeRGBA:
		dst := image.NewNRGBA(img.Bounds())
		draw.Draw(dst, dst.Bounds(), img, img.Bounds().Min, draw.Src)
		return dst, nil
	default:
		return nil, fmt.Errorf("cannot convert to colour mode %q", mode)
	}
}

func opaque(c color.NRGBA) color.NRGBA {
	c.A = 0xff
	return c
}
