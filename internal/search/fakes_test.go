package search

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"testing"

	"sizefit/internal/codec"
	"sizefit/internal/transform"
)

// paddingChunkBytes is what one padding KB costs in the fake codec.
const paddingChunkBytes = 1036

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	clear(p)
	return len(p), nil
}

func writeN(w io.Writer, n int64) error {
	_, err := io.CopyN(w, zeroReader{}, n)
	return err
}

// fakeLossy produces sizeFor(quality) bytes.
type fakeLossy struct {
	sizeFor func(q int) int64
	failFor func(q int) bool
}

func (fakeLossy) Name() string   { return "fake-lossy" }
func (fakeLossy) Lossless() bool { return false }

func (f fakeLossy) Encode(w io.Writer, img image.Image, p codec.Params) error {
	if p.Quality < 1 || p.Quality > 100 {
		return fmt.Errorf("%w: quality %d", codec.ErrUnsupportedCombination, p.Quality)
	}
	if f.failFor != nil && f.failFor(p.Quality) {
		return errors.New("encoder exploded")
	}
	return writeN(w, f.sizeFor(p.Quality))
}

func linearLossy() fakeLossy {
	return fakeLossy{sizeFor: func(q int) int64 { return 1000 + 100*int64(q) }}
}

// fakeLossless sizes an image by pixel count and colour mode: 1 byte per
// pixel paletted, 3 opaque, 4 with alpha.
type fakeLossless struct {
	header       int64
	fail         bool
	failPaletted bool
	noPadding    bool
}

func (fakeLossless) Name() string   { return "fake-lossless" }
func (fakeLossless) Lossless() bool { return true }

func (f fakeLossless) Encode(w io.Writer, img image.Image, p codec.Params) error {
	if f.fail {
		return errors.New("encoder exploded")
	}
	mode := transform.ModeOf(img)
	if f.failPaletted && mode == transform.ModePaletted {
		return errors.New("palette encode failed")
	}
	if p.PaddingKB > 0 && f.noPadding {
		return fmt.Errorf("%w: no padding", codec.ErrUnsupportedCombination)
	}
	return writeN(w, fakeLosslessSize(f.header, img, p.PaddingKB))
}

func fakeLosslessSize(header int64, img image.Image, paddingKB int) int64 {
	bpp := int64(4)
	switch transform.ModeOf(img) {
	case transform.ModePaletted:
		bpp = 1
	case transform.ModeRGB:
		bpp = 3
	}
	b := img.Bounds()
	return header + int64(b.Dx()*b.Dy())*bpp + int64(paddingKB)*paddingChunkBytes
}

// flatResampler allocates a blank image of the requested size, opaque when
// the input is opaque. It keeps large-image tests cheap.
type flatResampler struct{}

func (flatResampler) Name() string { return "flat" }

func (flatResampler) Resize(img image.Image, w, h int) image.Image {
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	a := uint8(0xff)
	if transform.HasAlpha(img) {
		a = 0x80
	}
	for i := 3; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = a
	}
	return dst
}

func solid(w, h int, a uint8) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 0x30, G: 0x60, B: 0x90, A: a})
		}
	}
	return img
}

func noise(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	seed := uint32(42)
	for i := 0; i < len(img.Pix); i += 4 {
		seed = seed*1664525 + 1013904223
		img.Pix[i] = uint8(seed >> 24)
		img.Pix[i+1] = uint8(seed >> 16)
		img.Pix[i+2] = uint8(seed >> 8)
		img.Pix[i+3] = 0xff
	}
	return img
}

func assertTolerance(t *testing.T, res Result) {
	t.Helper()
	diff := res.Achieved - res.Target
	if diff < 0 {
		diff = -diff
	}
	want := float64(diff) <= 0.1*float64(res.Target)
	if res.WithinTolerance != want {
		t.Fatalf("WithinTolerance=%v for achieved %d target %d", res.WithinTolerance, res.Achieved, res.Target)
	}
}

func attemptedFamilies(res Result) map[Family]int {
	seen := make(map[Family]int)
	for _, a := range res.Attempts {
		seen[a.Family]++
	}
	return seen
}
