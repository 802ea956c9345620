package search

import (
	"errors"
	"fmt"
	"image"

	"github.com/charmbracelet/log"

	"sizefit/internal/codec"
	"sizefit/internal/transform"
)

// structural is the lossless search: a fixed sequence of transform
// families, each offering candidates to one shared accumulator.
type structural struct {
	src       image.Image
	codec     codec.Codec
	resampler transform.Resampler
	log       *log.Logger
	target    int64
}

// phase evaluates one transform family. grow is decided once per run from
// the unmodified size; a run never mixes shrinking and growing families.
type phase func(acc accumulator, grow bool) accumulator

func (s structural) run() (Result, error) {
	baseline, err := codec.Measure(s.codec, s.src, codec.Params{})
	if err != nil {
		return Result{Codec: s.codec, Target: s.target, Lossless: true},
			fmt.Errorf("%w: unmodified source: %w", ErrNoCandidateFound, err)
	}
	grow := baseline < s.target
	s.log.Debug("baseline", "size", baseline, "target", s.target, "grow", grow)

	acc := newAccumulator(s.target)
	for _, p := range []phase{s.removeAlpha, s.reducePalette, s.downscale, s.upscale, s.pad} {
		acc = p(acc, grow)
	}

	res := Result{
		Target:   s.target,
		Grow:     grow,
		Lossless: true,
		Attempts: acc.attempts,
		Codec:    s.codec,
	}
	if acc.best == nil {
		return res, fmt.Errorf("%w: every %s transform failed to encode", ErrNoCandidateFound, s.codec.Name())
	}

	res.Best = *acc.best
	res.Achieved = acc.best.Size
	res.WithinTolerance = WithinTolerance(acc.best.Size, s.target)
	res.Improved = acc.diff < absDiff(baseline, s.target)
	return res, nil
}

// evaluate measures img with params and offers the result. A failed encode
// is recorded and returned, never offered.
func (s structural) evaluate(acc accumulator, img image.Image, params Parameters, f Family, desc string) (accumulator, int64, error) {
	size, err := codec.Measure(s.codec, img, params.codecParams())
	if err != nil {
		s.log.Debug("encode failed", "family", f, "params", params, "err", err)
		return acc.fail(f, params, err), 0, err
	}
	s.log.Debug("evaluated", "family", f, "params", params, "size", size, "target", s.target)

	return acc.offer(Candidate{
		Image:       img,
		Size:        size,
		Params:      params,
		Family:      f,
		Description: desc,
	}), size, nil
}

func (s structural) removeAlpha(acc accumulator, grow bool) accumulator {
	if grow || !transform.HasAlpha(s.src) {
		return acc
	}
	img := transform.RemoveAlpha(s.src)
	acc, _, _ = s.evaluate(acc, img, Parameters{ColorMode: string(transform.ModeRGB)}, FamilyAlphaRemoval, "alpha channel removed")
	return acc
}

func (s structural) reducePalette(acc accumulator, grow bool) accumulator {
	if grow || transform.ModeOf(s.src) == transform.ModePaletted {
		return acc
	}
	params := Parameters{ColorMode: string(transform.ModePaletted)}
	img, err := transform.Quantize(s.src, transform.MaxPaletteColors)
	if err != nil {
		s.log.Debug("palette reduction failed", "err", err)
		return acc.fail(FamilyPalette, params, err)
	}
	acc, _, _ = s.evaluate(acc, img, params, FamilyPalette, fmt.Sprintf("%d colour palette", transform.MaxPaletteColors))
	return acc
}

// downscale sweeps from 100% to 30% of the source and stops at the first
// step at or under the target. It is a heuristic: smaller untried steps may
// have landed closer.
func (s structural) downscale(acc accumulator, grow bool) accumulator {
	if grow {
		return acc
	}
	if size, ok := acc.bestSize(); ok && size <= s.target {
		return acc
	}

	for pct := downscaleFromPct; pct >= downscaleToPct; pct -= downscaleStepPct {
		params := Parameters{ScalePct: pct}
		img, err := transform.Scale(s.resampler, s.src, pct)
		if err != nil {
			acc = acc.fail(FamilyDownscale, params, err)
			continue
		}
		img = s.matchMode(img, acc)
		params.ColorMode = string(transform.ModeOf(img))

		var size int64
		acc, size, err = s.evaluate(acc, img, params, FamilyDownscale, fmt.Sprintf("scaled to %d%%", pct))
		if err == nil && size <= s.target {
			break
		}
	}
	return acc
}

// matchMode converts a scaled step to the colour mode of the best candidate
// so far, or of the source when nothing has been accepted yet. An indexed
// reference keeps its palette.
func (s structural) matchMode(img image.Image, acc accumulator) image.Image {
	ref := s.src
	if acc.best != nil {
		ref = acc.best.Image
	}
	if p, ok := ref.(*image.Paletted); ok {
		return transform.Remap(img, p.Palette)
	}
	mode := transform.ModeOf(ref)
	if mode == transform.ModeOf(img) {
		return img
	}
	if converted, err := transform.ApplyMode(img, mode); err == nil {
		return converted
	}
	return img
}

// upscale sweeps from 110% to 300% of the best candidate so far (or the
// source) and stops at the first step at or over the target.
func (s structural) upscale(acc accumulator, grow bool) accumulator {
	if !grow {
		return acc
	}
	if size, ok := acc.bestSize(); ok && size >= s.target {
		return acc
	}

	base, basePct := s.src, 100
	if acc.best != nil {
		base = acc.best.Image
		if acc.best.Params.ScalePct > 0 {
			basePct = acc.best.Params.ScalePct
		}
	}

	for pct := upscaleFromPct; pct <= upscaleToPct; pct += upscaleStepPct {
		params := Parameters{ScalePct: basePct * pct / 100}
		img, err := transform.Scale(s.resampler, base, pct)
		if err != nil {
			acc = acc.fail(FamilyUpscale, params, err)
			continue
		}
		params.ColorMode = string(transform.ModeOf(img))

		var size int64
		acc, size, err = s.evaluate(acc, img, params, FamilyUpscale, fmt.Sprintf("scaled to %d%%", params.ScalePct))
		if err == nil && size >= s.target {
			break
		}
	}
	return acc
}

// pad appends 1KB text chunks to the best image so far. It only changes
// container overhead and runs when growing left the best candidate under
// the target or outside the 10% band.
func (s structural) pad(acc accumulator, grow bool) accumulator {
	if !grow {
		return acc
	}
	if size, ok := acc.bestSize(); ok && size >= s.target && WithinTolerance(size, s.target) {
		return acc
	}

	base := Candidate{Image: s.src, Params: Parameters{ColorMode: string(transform.ModeOf(s.src))}}
	if acc.best != nil {
		base = *acc.best
	}

	for kb := 1; kb <= maxPaddingKB; kb++ {
		params := base.Params
		params.PaddingKB = kb

		var size int64
		var err error
		acc, size, err = s.evaluate(acc, base.Image, params, FamilyPadding, fmt.Sprintf("%dKB text padding", kb))
		if errors.Is(err, codec.ErrUnsupportedCombination) {
			break
		}
		if err != nil {
			continue
		}
		if size >= s.target {
			break
		}
	}
	return acc
}
