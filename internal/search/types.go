// Package search finds encoding parameters or structural transforms that
// bring an image's encoded size as close as possible to a byte target.
package search

import (
	"fmt"
	"image"
	"io"
	"strings"

	"sizefit/internal/codec"
)

const (
	// DefaultQuality is used when a TargetSpec leaves BaseQuality unset.
	DefaultQuality = 85

	minQuality = 1
	maxQuality = 100

	downscaleFromPct = 100
	downscaleToPct   = 30
	downscaleStepPct = 5

	upscaleFromPct = 110
	upscaleToPct   = 300
	upscaleStepPct = 10

	maxPaddingKB = 20
)

// Strategy selects the search path.
type Strategy int

const (
	// StrategyAuto picks lossless or lossy from the codec.
	StrategyAuto Strategy = iota
	StrategyLossy
	StrategyLossless
)

func (s Strategy) String() string {
	switch s {
	case StrategyLossy:
		return "lossy"
	case StrategyLossless:
		return "lossless"
	default:
		return "auto"
	}
}

// ParseStrategy maps a flag value to a Strategy.
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(name) {
	case "", "auto":
		return StrategyAuto, nil
	case "lossy":
		return StrategyLossy, nil
	case "lossless":
		return StrategyLossless, nil
	default:
		return StrategyAuto, fmt.Errorf("unknown strategy %q", name)
	}
}

// Family identifies how a candidate was produced.
type Family int

const (
	FamilyNone Family = iota
	FamilyQuality
	FamilyAlphaRemoval
	FamilyPalette
	FamilyDownscale
	FamilyUpscale
	FamilyPadding
)

func (f Family) String() string {
	switch f {
	case FamilyQuality:
		return "quality"
	case FamilyAlphaRemoval:
		return "alpha-removal"
	case FamilyPalette:
		return "palette"
	case FamilyDownscale:
		return "downscale"
	case FamilyUpscale:
		return "upscale"
	case FamilyPadding:
		return "padding"
	default:
		return "none"
	}
}

// Shrinks reports whether the family only runs when the size must go down.
func (f Family) Shrinks() bool {
	return f == FamilyAlphaRemoval || f == FamilyPalette || f == FamilyDownscale
}

// Grows reports whether the family only runs when the size must go up.
func (f Family) Grows() bool {
	return f == FamilyUpscale || f == FamilyPadding
}

// TargetSpec describes what the caller wants.
type TargetSpec struct {
	// TargetBytes of 0 means no target: the source is encoded once at
	// BaseQuality and no search runs.
	TargetBytes int64
	Codec       codec.Codec
	Strategy    Strategy
	BaseQuality int
}

// Parameters records what was applied to produce a candidate. Zero fields
// were not used.
type Parameters struct {
	Quality   int    `json:"quality,omitempty"`
	ScalePct  int    `json:"scale_pct,omitempty"`
	ColorMode string `json:"color_mode,omitempty"`
	PaddingKB int    `json:"padding_kb,omitempty"`
}

func (p Parameters) codecParams() codec.Params {
	return codec.Params{Quality: p.Quality, PaddingKB: p.PaddingKB}
}

func (p Parameters) String() string {
	var parts []string
	if p.Quality > 0 {
		parts = append(parts, fmt.Sprintf("quality=%d", p.Quality))
	}
	if p.ScalePct > 0 {
		parts = append(parts, fmt.Sprintf("scale=%d%%", p.ScalePct))
	}
	if p.ColorMode != "" {
		parts = append(parts, "mode="+p.ColorMode)
	}
	if p.PaddingKB > 0 {
		parts = append(parts, fmt.Sprintf("padding=%dKB", p.PaddingKB))
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, " ")
}

// Candidate is one evaluated transform/parameter choice.
type Candidate struct {
	Image       image.Image
	Size        int64
	Params      Parameters
	Family      Family
	Description string
}

// Attempt is one codec evaluation made during a search. Err is set when the
// encode failed; such attempts never become the best candidate.
type Attempt struct {
	Family Family
	Params Parameters
	Size   int64
	Err    error
}

// Result is what the engine hands back to its caller.
type Result struct {
	Best            Candidate
	Achieved        int64
	Target          int64
	WithinTolerance bool
	// Improved is false when the lossless search could not beat the
	// unmodified source's distance to the target.
	Improved bool
	// Grow is true when the lossless search had to increase the size.
	Grow     bool
	Lossless bool
	Attempts []Attempt
	Codec    codec.Codec
}

// Evaluations is the number of search encodes performed.
func (r Result) Evaluations() int {
	return len(r.Attempts)
}

// Encode writes the chosen candidate with the codec it was measured with.
func (r Result) Encode(w io.Writer) error {
	return r.Codec.Encode(w, r.Best.Image, r.Best.Params.codecParams())
}

// Advisory returns guidance for the caller when a lossless result missed the
// tolerance band, or "" when there is nothing to say.
func (r Result) Advisory() string {
	if !r.Lossless || r.WithinTolerance || r.Target == 0 {
		return ""
	}
	return fmt.Sprintf("%s is lossless and cannot be tuned precisely: achieved %d bytes for a %d byte target. "+
		"Consider a lossy format such as JPEG, resizing the image further, or a dedicated optimiser.",
		r.Codec.Name(), r.Achieved, r.Target)
}

func absDiff(a, b int64) int64 {
	if a > b {
		return a - b
	}
	return b - a
}

// WithinTolerance reports whether achieved is within 10% of target.
func WithinTolerance(achieved, target int64) bool {
	return absDiff(achieved, target)*10 <= target
}

// closeEnough is the quality search's early exit: strictly within 5%.
func closeEnough(size, target int64) bool {
	return absDiff(size, target)*20 < target
}
