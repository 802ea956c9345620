package processor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/xfmoulet/qoi"

	"sizefit/internal/codec"
	"sizefit/internal/metrics"
	"sizefit/internal/search"
	"sizefit/pkg/imgutil"
)

var discard = log.New(io.Discard)

// Run fits every supported image under root to the options' target. Per-file
// failures are counted and reported in the results; they never abort the
// batch and never leave an output file behind.
func Run(ctx context.Context, root string, opts Options, updates chan<- ProgressUpdate) (Summary, []Result, error) {
	summary := Summary{}
	var files []Result

	info, err := os.Stat(root)
	if err != nil {
		return summary, nil, err
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return summary, nil, err
	}

	if info.IsDir() && !opts.InPlace && opts.OutputDir == "" {
		opts.OutputDir = filepath.Join(absRoot, DefaultBatchDir)
	}
	if opts.Logger == nil {
		opts.Logger = discard
	}

	var outputAbs string
	var outputInsideRoot bool
	if info.IsDir() && !opts.InPlace && opts.OutputDir != "" {
		if absOut, outErr := filepath.Abs(opts.OutputDir); outErr == nil {
			outputAbs = absOut
			absRootClean := filepath.Clean(absRoot)
			outputClean := filepath.Clean(outputAbs)
			if outputClean != absRootClean && isWithin(outputClean, absRootClean) {
				outputInsideRoot = true
			}
		}
	}

	jobs := make(chan Job)
	results := make(chan Result)

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			worker(ctx, jobs, results, opts, updates)
		}()
	}

	collectorDone := make(chan struct{})
	go func() {
		defer close(collectorDone)
		for res := range results {
			if res.Supported {
				summary.Total++
				if updates != nil {
					updates <- ProgressUpdate{ProcessedDelta: 1}
				}
			}
			if res.Err != nil {
				summary.Errors++
				if updates != nil {
					updates <- ProgressUpdate{ErrorDelta: 1}
				}
			} else if res.Supported {
				summary.Processed++
				summary.BytesIn += res.SourceBytes
				summary.BytesOut += res.OutputBytes
				update := ProgressUpdate{BytesInDelta: res.SourceBytes, BytesOutDelta: res.OutputBytes}
				if res.WithinTolerance {
					summary.WithinTolerance++
					update.WithinDelta = 1
				}
				if updates != nil {
					updates <- update
				}
			}
			if res.Supported {
				files = append(files, res)
			}
		}
	}()

	producerErr := make(chan error, 1)
	go func() {
		defer close(jobs)

		sendJob := func(job Job) error {
			if ctx == nil {
				jobs <- job
				return nil
			}
			select {
			case jobs <- job:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if !info.IsDir() {
			job := Job{
				Path:    absRoot,
				RelPath: filepath.Base(absRoot),
				Display: filepath.Base(absRoot),
			}
			producerErr <- sendJob(job)
			return
		}

		fsys := os.DirFS(absRoot)
		err := fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() {
				if outputInsideRoot {
					fullDir := filepath.Join(absRoot, path)
					if isWithin(fullDir, outputAbs) {
						return fs.SkipDir
					}
				}
				return nil
			}
			if !d.Type().IsRegular() {
				return nil
			}

			return sendJob(Job{
				Path:    filepath.Join(absRoot, path),
				RelPath: path,
				Display: path,
			})
		})
		producerErr <- err
	}()

	wg.Wait()
	close(results)
	<-collectorDone

	sort.Slice(files, func(i, j int) bool { return files[i].Display < files[j].Display })

	if err := <-producerErr; err != nil {
		return summary, files, err
	}

	if ctx != nil {
		if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
			return summary, files, err
		}
	}

	return summary, files, nil
}

func worker(ctx context.Context, jobs <-chan Job, results chan<- Result, opts Options, updates chan<- ProgressUpdate) {
	for job := range jobs {
		if ctx != nil {
			if err := ctx.Err(); err != nil {
				return
			}
		}

		res := Result{Path: job.Path, RelPath: job.RelPath, Display: job.Display}

		file, err := os.Open(job.Path)
		if err != nil {
			res.Err = err
			results <- res
			continue
		}

		kind, err := imgutil.SniffReader(file)
		if err != nil {
			_ = file.Close()
			res.Err = err
			results <- res
			continue
		}

		if kind == imgutil.KindUnknown {
			_ = file.Close()
			continue
		}

		res.Kind = kind
		res.Supported = true
		if updates != nil {
			updates <- ProgressUpdate{TotalDelta: 1}
		}

		res = fitFile(file, job, kind, opts, res)
		_ = file.Close()
		if res.Err != nil {
			opts.Logger.Warn("fit failed", "file", job.Display, "err", res.Err)
		}
		results <- res
	}
}

func fitFile(file *os.File, job Job, kind imgutil.Kind, opts Options, res Result) Result {
	srcInfo, err := file.Stat()
	if err != nil {
		res.Err = err
		return res
	}
	res.SourceBytes = srcInfo.Size()
	res.TargetBytes = opts.TargetBytes()

	c, err := codec.ForKind(kind, opts.Codec)
	if err != nil {
		res.Err = err
		return res
	}

	if kind == imgutil.KindJPEG {
		if analysis, exifErr := analyzeExif(file); exifErr == nil && analysis.Tags > 0 {
			res.MetadataDropped = true
		}
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		res.Err = err
		return res
	}

	src, err := DecodeImage(file, kind)
	if err != nil {
		res.Err = err
		return res
	}

	engine := search.Engine{Resampler: opts.Resampler, Logger: opts.Logger.With("file", job.Display)}
	fit, err := engine.Run(src, search.TargetSpec{
		TargetBytes: res.TargetBytes,
		Codec:       c,
		Strategy:    opts.Strategy,
		BaseQuality: opts.Quality,
	})
	if err != nil {
		res.Err = err
		return res
	}

	var encoded bytes.Buffer
	if err := fit.Encode(&encoded); err != nil {
		res.Err = err
		return res
	}

	if opts.Metrics {
		report, err := compareOutput(src, encoded.Bytes(), kind, opts.Butteraugli)
		if err != nil {
			opts.Logger.Warn("metrics unavailable", "file", job.Display, "err", err)
		}
		res.Metrics = report
	}

	destPath, destDir, err := resolveDestination(job, opts)
	if err != nil {
		res.Err = err
		return res
	}
	if err := writeOutput(destPath, destDir, srcInfo.Mode(), encoded.Bytes()); err != nil {
		res.Err = err
		return res
	}

	res.OutputPath = destPath
	res.OutputBytes = int64(encoded.Len())
	res.Params = fit.Best.Params
	res.Family = fit.Best.Family
	res.Description = fit.Best.Description
	res.Evaluations = fit.Evaluations()
	res.WithinTolerance = fit.WithinTolerance
	res.Advisory = fit.Advisory()

	return res
}

// compareOutput scores the encoded output against src. A report is returned
// whenever the output decodes, even if butteraugli fails.
func compareOutput(src image.Image, encoded []byte, kind imgutil.Kind, withButteraugli bool) (*metrics.Report, error) {
	out, err := DecodeImage(bytes.NewReader(encoded), kind)
	if err != nil {
		return nil, fmt.Errorf("decode output for metrics: %w", err)
	}
	report, err := metrics.Compare(src, out, withButteraugli)
	return &report, err
}

// DecodeImage decodes r as the given kind.
func DecodeImage(r io.Reader, kind imgutil.Kind) (image.Image, error) {
	var (
		img image.Image
		err error
	)
	switch kind {
	case imgutil.KindJPEG:
		img, err = jpeg.Decode(r)
	case imgutil.KindPNG:
		img, err = png.Decode(r)
	case imgutil.KindQOI:
		img, err = qoi.Decode(r)
	default:
		return nil, fmt.Errorf("%w: cannot decode %s", codec.ErrUnsupportedCombination, kind)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", kind, err)
	}
	return img, nil
}

func writeOutput(destPath, destDir string, mode os.FileMode, data []byte) error {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return err
	}

	tmpFile, err := os.CreateTemp(destDir, "sizefit-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmpFile.Name())

	if err := tmpFile.Chmod(mode); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Sync(); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return err
	}

	return replaceFile(tmpFile.Name(), destPath)
}

func resolveDestination(job Job, opts Options) (string, string, error) {
	if opts.InPlace {
		return job.Path, filepath.Dir(job.Path), nil
	}

	var destPath string
	if opts.OutputDir == "" {
		destPath = filepath.Join(filepath.Dir(job.Path), DefaultPrefix+filepath.Base(job.Path))
	} else {
		destPath = filepath.Join(opts.OutputDir, job.RelPath)
	}
	if filepath.Clean(destPath) == filepath.Clean(job.Path) {
		return "", "", fmt.Errorf("output path resolves to input path; use --inplace or a different --output")
	}

	return destPath, filepath.Dir(destPath), nil
}

func replaceFile(tmpPath, destPath string) error {
	if err := os.Rename(tmpPath, destPath); err == nil {
		return nil
	}
	if err := os.Remove(destPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return os.Rename(tmpPath, destPath)
}

func isWithin(path string, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	if strings.HasPrefix(rel, "..") {
		return false
	}
	return true
}
