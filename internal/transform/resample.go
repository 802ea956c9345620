package transform

import (
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/gift"
	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
)

// ErrEmptyResult is returned when a scale factor collapses a dimension to 0.
var ErrEmptyResult = errors.New("resampled image would be empty")

// Resampler resizes an image to exact pixel dimensions.
type Resampler interface {
	Name() string
	Resize(img image.Image, width, height int) image.Image
}

// Lanczos resamples with imaging's Lanczos filter. It is the default.
type Lanczos struct{}

func (Lanczos) Name() string { return "lanczos" }

func (Lanczos) Resize(img image.Image, width, height int) image.Image {
	return imaging.Resize(img, width, height, imaging.Lanczos)
}

// Gift resamples through a gift filter chain with Lanczos weights.
type Gift struct{}

func (Gift) Name() string { return "gift" }

func (Gift) Resize(img image.Image, width, height int) image.Image {
	g := gift.New(gift.Resize(width, height, gift.LanczosResampling))
	dst := image.NewNRGBA(g.Bounds(img.Bounds()))
	g.Draw(dst, img)
	return dst
}

// NFNT resamples with nfnt/resize's three-lobe Lanczos.
type NFNT struct{}

func (NFNT) Name() string { return "nfnt" }

func (NFNT) Resize(img image.Image, width, height int) image.Image {
	return resize.Resize(uint(width), uint(height), img, resize.Lanczos3)
}

// ParseResampler resolves a --resampler flag value.
func ParseResampler(name string) (Resampler, error) {
	switch strings.ToLower(name) {
	case "", "lanczos", "imaging":
		return Lanczos{}, nil
	case "gift":
		return Gift{}, nil
	case "nfnt":
		return NFNT{}, nil
	default:
		return nil, fmt.Errorf("unknown resampler %q", name)
	}
}

// ScaledSize returns the dimensions of img scaled by pct percent, truncated.
func ScaledSize(b image.Rectangle, pct int) (int, int) {
	return b.Dx() * pct / 100, b.Dy() * pct / 100
}

// Scale resizes img by pct percent of its current dimensions.
func Scale(r Resampler, img image.Image, pct int) (image.Image, error) {
	w, h := ScaledSize(img.Bounds(), pct)
	if w < 1 || h < 1 {
		return nil, fmt.Errorf("%w: %d%% of %dx%d", ErrEmptyResult, pct, img.Bounds().Dx(), img.Bounds().Dy())
	}
	return r.Resize(img, w, h), nil
}

// Fit resizes img to width x height. With keepRatio the aspect ratio is
// preserved and the result fits inside the requested box.
func Fit(r Resampler, img image.Image, width, height int, keepRatio bool) (image.Image, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("width and height must be positive, got %dx%d", width, height)
	}
	if keepRatio {
		b := img.Bounds()
		ratio := min(float64(width)/float64(b.Dx()), float64(height)/float64(b.Dy()))
		width = int(float64(b.Dx()) * ratio)
		height = int(float64(b.Dy()) * ratio)
	}
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("%w: %dx%d", ErrEmptyResult, width, height)
	}
	return r.Resize(img, width, height), nil
}
