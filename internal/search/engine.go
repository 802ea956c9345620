package search

import (
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/charmbracelet/log"

	"sizefit/internal/codec"
	"sizefit/internal/transform"
)

// Engine runs size searches. It holds configuration only; Run keeps no
// state between calls, so one Engine may serve concurrent callers.
type Engine struct {
	// Resampler used by the scale sweeps. Defaults to transform.Lanczos.
	Resampler transform.Resampler
	// Logger receives one debug line per evaluation. Defaults to discard.
	Logger *log.Logger
}

var discard = log.New(io.Discard)

// Run is Engine.Run on a zero Engine.
func Run(src image.Image, spec TargetSpec) (Result, error) {
	var e Engine
	return e.Run(src, spec)
}

// Run picks the search path for spec and returns the best candidate found.
// The source image is only read.
func (e *Engine) Run(src image.Image, spec TargetSpec) (Result, error) {
	if spec.Codec == nil {
		return Result{}, fmt.Errorf("%w: no codec", ErrUnsupportedCombination)
	}
	if spec.TargetBytes < 0 {
		return Result{}, fmt.Errorf("%w: target %d bytes is negative", ErrInvalidTarget, spec.TargetBytes)
	}
	quality := spec.BaseQuality
	if quality == 0 {
		quality = DefaultQuality
	}
	if quality < minQuality || quality > maxQuality {
		return Result{}, fmt.Errorf("%w: quality %d outside %d..%d", ErrInvalidTarget, quality, minQuality, maxQuality)
	}
	if src == nil || src.Bounds().Empty() {
		return Result{}, fmt.Errorf("%w: empty source image", ErrNoCandidateFound)
	}

	lossless, err := resolveStrategy(spec)
	if err != nil {
		return Result{}, err
	}

	logger := e.logger().With("codec", spec.Codec.Name())
	switch {
	case spec.TargetBytes == 0:
		return encodeDirect(src, spec.Codec, quality, lossless, logger)
	case lossless:
		s := structural{
			src:       src,
			codec:     spec.Codec,
			resampler: e.resampler(),
			log:       logger,
			target:    spec.TargetBytes,
		}
		return s.run()
	default:
		return searchQuality(src, spec.Codec, spec.TargetBytes, logger)
	}
}

func resolveStrategy(spec TargetSpec) (bool, error) {
	switch spec.Strategy {
	case StrategyAuto:
		return spec.Codec.Lossless(), nil
	case StrategyLossy:
		if spec.Codec.Lossless() {
			return false, fmt.Errorf("%w: %s has no quality knob", ErrUnsupportedCombination, spec.Codec.Name())
		}
		return false, nil
	case StrategyLossless:
		if !spec.Codec.Lossless() {
			return false, fmt.Errorf("%w: %s is a lossy codec", ErrUnsupportedCombination, spec.Codec.Name())
		}
		return true, nil
	default:
		return false, fmt.Errorf("%w: unknown strategy %d", ErrUnsupportedCombination, spec.Strategy)
	}
}

func encodeDirect(src image.Image, c codec.Codec, quality int, lossless bool, logger *log.Logger) (Result, error) {
	params := Parameters{Quality: quality}
	size, err := codec.Measure(c, src, params.codecParams())
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrNoCandidateFound, err)
	}
	logger.Debug("direct encode", "quality", quality, "size", size)

	return Result{
		Best: Candidate{
			Image:       src,
			Size:        size,
			Params:      params,
			Family:      FamilyNone,
			Description: fmt.Sprintf("direct encode at quality %d", quality),
		},
		Achieved:        size,
		WithinTolerance: true,
		Improved:        true,
		Lossless:        lossless,
		Codec:           c,
	}, nil
}

func (e *Engine) logger() *log.Logger {
	if e == nil || e.Logger == nil {
		return discard
	}
	return e.Logger
}

func (e *Engine) resampler() transform.Resampler {
	if e == nil || e.Resampler == nil {
		return transform.Lanczos{}
	}
	return e.Resampler
}

// IsCodecError reports whether err came from a single failed encode.
func IsCodecError(err error) bool {
	var ce *codec.CodecError
	return errors.As(err, &ce)
}
