// Package metrics compares a search result against its source image.
package metrics

import (
	"image"
	"image/color"
	"math"

	butteraugli "github.com/jasonmoo/go-butteraugli"
	"golang.org/x/image/draw"
)

// butteraugliMaxPixels bounds the comparison area; larger inputs are
// downsampled first.
const butteraugliMaxPixels = 500000

// Report holds fidelity figures for a processed image.
type Report struct {
	PSNR        float64 `json:"psnr_db"`
	SSIM        float64 `json:"ssim"`
	MSE         float64 `json:"mse"`
	Butteraugli float64 `json:"butteraugli,omitempty"`
}

// Compare measures processed against original. A processed image with
// different dimensions is rescaled to the original's size first.
func Compare(original, processed image.Image, withButteraugli bool) (Report, error) {
	processed = matchBounds(original, processed)
	sample := AdaptiveSample(original.Bounds())

	r := Report{
		PSNR: PSNR(original, processed, sample),
		SSIM: SSIM(original, processed, sample),
		MSE:  MSE(original, processed, sample),
	}
	if withButteraugli {
		d, err := Butteraugli(original, processed)
		if err != nil {
			return r, err
		}
		r.Butteraugli = d
	}
	return r, nil
}

// AdaptiveSample picks a pixel stride so large images are compared quickly.
func AdaptiveSample(b image.Rectangle) int {
	pixels := b.Dx() * b.Dy()
	switch {
	case pixels <= 1000000:
		return 1
	case pixels <= 4000000:
		return 2
	case pixels <= 16000000:
		return 4
	case pixels <= 64000000:
		return 8
	default:
		return 16
	}
}

func matchBounds(original, processed image.Image) image.Image {
	ob, pb := original.Bounds(), processed.Bounds()
	if ob.Dx() == pb.Dx() && ob.Dy() == pb.Dy() {
		return processed
	}
	dst := image.NewRGBA(ob)
	draw.BiLinear.Scale(dst, ob, processed, pb, draw.Src, nil)
	return dst
}

// PSNR returns the peak signal-to-noise ratio in dB, capped at 100.
func PSNR(a, b image.Image, sample int) float64 {
	mse := meanSquaredError(a, b, sample)
	if mse == 0 {
		return 100.0
	}
	return 20*math.Log10(255) - 10*math.Log10(mse)
}

// MSE returns the mean squared error normalised to [0, 1].
func MSE(a, b image.Image, sample int) float64 {
	return meanSquaredError(a, b, sample) / (255 * 255)
}

func meanSquaredError(a, b image.Image, sample int) float64 {
	if sample < 1 {
		sample = 1
	}
	ab, bb := a.Bounds(), b.Bounds()
	var sum, count float64
	for y := 0; y < ab.Dy(); y += sample {
		for x := 0; x < ab.Dx(); x += sample {
			r1, g1, b1, _ := a.At(ab.Min.X+x, ab.Min.Y+y).RGBA()
			r2, g2, b2, _ := b.At(bb.Min.X+x, bb.Min.Y+y).RGBA()
			dr := float64(r1>>8) - float64(r2>>8)
			dg := float64(g1>>8) - float64(g2>>8)
			db := float64(b1>>8) - float64(b2>>8)
			sum += (dr*dr + dg*dg + db*db) / 3.0
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / count
}

// SSIM returns the mean structural similarity of 8x8 luminance windows.
func SSIM(a, b image.Image, sample int) float64 {
	if sample < 1 {
		sample = 1
	}
	const c1, c2 = 6.5025, 58.5225

	ab, bb := a.Bounds(), b.Bounds()
	w, h := ab.Dx(), ab.Dy()
	lumA := func(x, y int) float64 { return luminance(a.At(ab.Min.X+x, ab.Min.Y+y)) }
	lumB := func(x, y int) float64 { return luminance(b.At(bb.Min.X+x, bb.Min.Y+y)) }

	var total, count float64
	step := 8 * sample
	for y := 0; y < h; y += step {
		for x := 0; x < w; x += step {
			var m1, m2, s1, s2, s12, n float64
			for by := y; by < y+8 && by < h; by++ {
				for bx := x; bx < x+8 && bx < w; bx++ {
					m1 += lumA(bx, by)
					m2 += lumB(bx, by)
					n++
				}
			}
			m1 /= n
			m2 /= n
			for by := y; by < y+8 && by < h; by++ {
				for bx := x; bx < x+8 && bx < w; bx++ {
					v1, v2 := lumA(bx, by), lumB(bx, by)
					s1 += (v1 - m1) * (v1 - m1)
					s2 += (v2 - m2) * (v2 - m2)
					s12 += (v1 - m1) * (v2 - m2)
				}
			}
			if n > 1 {
				s1 /= n - 1
				s2 /= n - 1
				s12 /= n - 1
			} else {
				s1, s2, s12 = 0, 0, 0
			}
			total += ((2*m1*m2 + c1) * (2*s12 + c2)) / ((m1*m1 + m2*m2 + c1) * (s1 + s2 + c2))
			count++
		}
	}
	if count == 0 {
		return 1
	}
	return total / count
}

func luminance(c color.Color) float64 {
	r, g, b, _ := c.RGBA()
	return 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
}

// Butteraugli returns the perceptual distance between a and b. Inputs over
// half a megapixel are downsampled bilinearly before comparison.
func Butteraugli(a, b image.Image) (float64, error) {
	ab := a.Bounds()
	pixels := ab.Dx() * ab.Dy()
	if pixels <= butteraugliMaxPixels {
		return butteraugli.CompareImages(a, b)
	}

	scale := math.Sqrt(float64(butteraugliMaxPixels) / float64(pixels))
	rect := image.Rect(0, 0, int(float64(ab.Dx())*scale), int(float64(ab.Dy())*scale))
	smallA := image.NewRGBA(rect)
	smallB := image.NewRGBA(rect)
	draw.BiLinear.Scale(smallA, rect, a, ab, draw.Over, nil)
	draw.BiLinear.Scale(smallB, rect, b, b.Bounds(), draw.Over, nil)
	return butteraugli.CompareImages(smallA, smallB)
}
