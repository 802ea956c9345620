package processor

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"sizefit/internal/codec"
	"sizefit/internal/search"
	"sizefit/internal/transform"
	"sizefit/pkg/imgutil"
)

type ResizeOptions struct {
	Width     int
	Height    int
	KeepRatio bool
	Quality   int
	// Output is the destination file; empty writes resized_<name> next to
	// the source.
	Output    string
	Codec     codec.Options
	Resampler transform.Resampler
}

type ResizeResult struct {
	OutputPath  string
	Width       int
	Height      int
	SourceBytes int64
	OutputBytes int64
}

// Resize scales the image at path to explicit dimensions. The output keeps
// the source format unless Output names another encodable extension.
func Resize(path string, opts ResizeOptions) (ResizeResult, error) {
	out := ResizeResult{}

	file, err := os.Open(path)
	if err != nil {
		return out, err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return out, err
	}
	out.SourceBytes = stat.Size()

	kind, err := imgutil.SniffReader(file)
	if err != nil {
		return out, err
	}
	outKind := kind
	if k := imgutil.KindFromExt(opts.Output); k.Encodable() {
		outKind = k
	}
	c, err := codec.ForKind(outKind, opts.Codec)
	if err != nil {
		return out, err
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return out, err
	}
	src, err := DecodeImage(file, kind)
	if err != nil {
		return out, err
	}

	resampler := opts.Resampler
	if resampler == nil {
		resampler = transform.Lanczos{}
	}
	resized, err := transform.Fit(resampler, src, opts.Width, opts.Height, opts.KeepRatio)
	if err != nil {
		return out, err
	}

	quality := opts.Quality
	if quality == 0 {
		quality = search.DefaultQuality
	}
	var encoded bytes.Buffer
	if err := c.Encode(&encoded, resized, codec.Params{Quality: quality}); err != nil {
		return out, err
	}

	dest := opts.Output
	if dest == "" {
		dest = filepath.Join(filepath.Dir(path), DefaultPrefix+filepath.Base(path))
	}
	if filepath.Clean(dest) == filepath.Clean(path) {
		return out, fmt.Errorf("output path resolves to input path")
	}
	if err := writeOutput(dest, filepath.Dir(dest), stat.Mode(), encoded.Bytes()); err != nil {
		return out, err
	}

	b := resized.Bounds()
	out.OutputPath = dest
	out.Width, out.Height = b.Dx(), b.Dy()
	out.OutputBytes = int64(encoded.Len())
	return out, nil
}
