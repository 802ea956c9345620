package processor

import (
	"github.com/charmbracelet/log"

	"sizefit/internal/codec"
	"sizefit/internal/metrics"
	"sizefit/internal/search"
	"sizefit/internal/transform"
	"sizefit/pkg/imgutil"
)

const (
	// DefaultPrefix names single-file outputs written next to their source.
	DefaultPrefix = "resized_"
	// DefaultBatchDir receives outputs of a directory run.
	DefaultBatchDir = "resized_images"
)

type Options struct {
	// TargetKB is the requested output size in KB; 0 encodes once at Quality.
	TargetKB    int
	Quality     int
	Strategy    search.Strategy
	InPlace     bool
	OutputDir   string
	Codec       codec.Options
	Resampler   transform.Resampler
	Metrics     bool
	Butteraugli bool
	Workers     int
	Logger      *log.Logger
}

// TargetBytes converts TargetKB to bytes.
func (o Options) TargetBytes() int64 {
	return int64(o.TargetKB) * 1024
}

type Job struct {
	Path    string
	RelPath string
	Display string
}

type Result struct {
	Path       string
	RelPath    string
	Display    string
	OutputPath string
	Kind       imgutil.Kind
	Supported  bool
	Err        error

	SourceBytes     int64
	OutputBytes     int64
	TargetBytes     int64
	Params          search.Parameters
	Family          search.Family
	Description     string
	Evaluations     int
	WithinTolerance bool
	Advisory        string
	MetadataDropped bool
	Metrics         *metrics.Report
}

type Summary struct {
	Total           int
	Processed       int
	Errors          int
	WithinTolerance int
	BytesIn         int64
	BytesOut        int64
}

type ProgressUpdate struct {
	TotalDelta     int
	ProcessedDelta int
	ErrorDelta     int
	WithinDelta    int
	BytesInDelta   int64
	BytesOutDelta  int64
}
