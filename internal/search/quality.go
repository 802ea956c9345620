package search

import (
	"fmt"
	"image"

	"github.com/charmbracelet/log"

	"sizefit/internal/codec"
)

// searchQuality bisects the integer quality range. Size is only roughly
// monotonic in quality, so every midpoint is compared against the running
// best rather than trusting the final bisection point.
func searchQuality(src image.Image, c codec.Codec, target int64, logger *log.Logger) (Result, error) {
	acc := newAccumulator(target)
	low, high := minQuality, maxQuality

	for low <= high {
		mid := (low + high) / 2
		params := Parameters{Quality: mid}

		size, err := codec.Measure(c, src, params.codecParams())
		if err != nil {
			logger.Debug("encode failed", "family", FamilyQuality, "quality", mid, "err", err)
			acc = acc.fail(FamilyQuality, params, err)
			low = mid + 1
			continue
		}
		logger.Debug("evaluated", "family", FamilyQuality, "quality", mid, "size", size, "target", target)

		acc = acc.offer(Candidate{
			Image:       src,
			Size:        size,
			Params:      params,
			Family:      FamilyQuality,
			Description: fmt.Sprintf("quality %d", mid),
		})

		if closeEnough(size, target) {
			break
		}
		if size > target {
			high = mid - 1
		} else {
			low = mid + 1
		}
	}

	if acc.best == nil {
		return Result{Attempts: acc.attempts, Codec: c, Target: target}, fmt.Errorf("%w: every quality failed to encode with %s", ErrNoCandidateFound, c.Name())
	}

	return Result{
		Best:            *acc.best,
		Achieved:        acc.best.Size,
		Target:          target,
		WithinTolerance: WithinTolerance(acc.best.Size, target),
		Improved:        true,
		Attempts:        acc.attempts,
		Codec:           c,
	}, nil
}
