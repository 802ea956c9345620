// Package codec wraps the raster encoders sizefit can target and the
// encode-and-measure primitive the size searches are built on.
package codec

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"strings"

	"sizefit/pkg/imgutil"
)

// ErrUnsupportedCombination is returned when a codec cannot honour the
// requested parameters (padding on a container without ancillary chunks,
// a quality outside 1..100, an unknown encoder name).
var ErrUnsupportedCombination = errors.New("unsupported format/parameter combination")

// Params is the per-encode knob set. Lossless codecs ignore Quality.
type Params struct {
	Quality   int
	PaddingKB int
}

// Codec encodes an image into a concrete container format.
type Codec interface {
	Name() string
	Lossless() bool
	Encode(w io.Writer, img image.Image, p Params) error
}

// CodecError reports a single failed encode attempt.
type CodecError struct {
	Codec  string
	Params Params
	Err    error
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("%s encode (quality=%d padding=%dKB): %v", e.Codec, e.Params.Quality, e.Params.PaddingKB, e.Err)
}

func (e *CodecError) Unwrap() error {
	return e.Err
}

func unsupported(c Codec, p Params, format string, args ...any) error {
	return &CodecError{
		Codec:  c.Name(),
		Params: p,
		Err:    fmt.Errorf("%w: "+format, append([]any{ErrUnsupportedCombination}, args...)...),
	}
}

// Options selects concrete encoders when resolving a Kind.
type Options struct {
	// Encoder picks the JPEG implementation: "std" (default) or "jpegli".
	Encoder        string
	PNGCompression png.CompressionLevel
}

// ForKind returns the codec that re-encodes images of the given kind.
func ForKind(kind imgutil.Kind, opts Options) (Codec, error) {
	switch kind {
	case imgutil.KindJPEG:
		switch strings.ToLower(opts.Encoder) {
		case "", "std":
			return JPEG{}, nil
		case "jpegli":
			return Jpegli{}, nil
		default:
			return nil, fmt.Errorf("%w: unknown jpeg encoder %q", ErrUnsupportedCombination, opts.Encoder)
		}
	case imgutil.KindPNG:
		return PNG{Compression: opts.PNGCompression}, nil
	case imgutil.KindQOI:
		return QOI{}, nil
	default:
		return nil, fmt.Errorf("%w: cannot encode %s", ErrUnsupportedCombination, kind)
	}
}

// ParsePNGCompression maps a flag value to a png.CompressionLevel.
func ParsePNGCompression(name string) (png.CompressionLevel, error) {
	switch strings.ToLower(name) {
	case "", "default":
		return png.DefaultCompression, nil
	case "best":
		return png.BestCompression, nil
	case "fast":
		return png.BestSpeed, nil
	case "none":
		return png.NoCompression, nil
	default:
		return png.DefaultCompression, fmt.Errorf("unknown png compression %q", name)
	}
}
