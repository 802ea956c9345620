package processor

import (
	"fmt"
	"io"
	"os"

	"sizefit/internal/transform"
	"sizefit/pkg/imgutil"
)

// SourceInfo describes an image file before any processing.
type SourceInfo struct {
	Path      string
	Bytes     int64
	Kind      imgutil.Kind
	Width     int
	Height    int
	ColorMode transform.ColorMode
	Exif      ExifAnalysis
	PNG       PngAnalysis
}

// Inspect reads path and reports its size, format, dimensions, colour mode
// and embedded metadata.
func Inspect(path string) (SourceInfo, error) {
	info := SourceInfo{Path: path}

	file, err := os.Open(path)
	if err != nil {
		return info, err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return info, err
	}
	info.Bytes = stat.Size()

	kind, err := imgutil.SniffReader(file)
	if err != nil {
		return info, err
	}
	info.Kind = kind

	switch kind {
	case imgutil.KindJPEG, imgutil.KindTIFF:
		analysis, err := analyzeExif(file)
		if err != nil {
			return info, fmt.Errorf("read exif: %w", err)
		}
		info.Exif = analysis
	case imgutil.KindPNG:
		analysis, err := scanPNGMetadata(file)
		if err != nil {
			return info, fmt.Errorf("read png chunks: %w", err)
		}
		info.PNG = analysis
	case imgutil.KindUnknown:
		return info, fmt.Errorf("%s: unrecognised image format", path)
	}

	if !kind.Encodable() {
		return info, nil
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return info, err
	}
	img, err := DecodeImage(file, kind)
	if err != nil {
		return info, err
	}
	b := img.Bounds()
	info.Width, info.Height = b.Dx(), b.Dy()
	info.ColorMode = transform.ModeOf(img)
	return info, nil
}
