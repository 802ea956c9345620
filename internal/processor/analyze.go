package processor

import (
	"errors"
	"io"
	"strings"

	exif "github.com/dsoprea/go-exif/v3"
)

type ExifAnalysis struct {
	Tags      int
	HasGPS    bool
	Model     string
	Timestamp string
}

func analyzeExif(rs io.ReadSeeker) (ExifAnalysis, error) {
	analysis := ExifAnalysis{}

	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return analysis, err
	}

	tags, _, err := exif.GetFlatExifDataUniversalSearchWithReadSeeker(rs, nil, true)
	if err != nil {
		if errors.Is(err, exif.ErrNoExif) {
			return analysis, nil
		}
		return analysis, err
	}

	analysis.Tags = len(tags)
	for _, tag := range tags {
		name := tag.TagName

		if strings.HasPrefix(name, "GPS") || strings.Contains(tag.IfdPath, "GPS") {
			analysis.HasGPS = true
		}
		if (name == "Model" || name == "CameraModelName") && analysis.Model == "" {
			analysis.Model = strings.TrimSpace(tag.FormattedFirst)
		}
		if (name == "DateTimeOriginal" || name == "DateTime") && analysis.Timestamp == "" {
			analysis.Timestamp = strings.TrimSpace(tag.FormattedFirst)
		}
	}

	return analysis, nil
}
