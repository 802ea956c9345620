package processor

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"sizefit/internal/codec"
	"sizefit/internal/transform"
	"sizefit/pkg/imgutil"
)

func TestRunSingleFileDefaultOutput(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "sample.png")
	writePNG(t, src, noiseImage(48, 48))

	summary, results, err := Run(context.Background(), src, Options{Workers: 1}, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Total != 1 || summary.Processed != 1 || summary.Errors != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	want := filepath.Join(dir, "resized_sample.png")
	if results[0].OutputPath != want {
		t.Fatalf("expected output %s, got %s", want, results[0].OutputPath)
	}
	assertFileSize(t, want, results[0].OutputBytes)
	if results[0].Evaluations != 0 || results[0].Params.Quality != 85 {
		t.Fatalf("expected a direct encode at quality 85, got %+v", results[0])
	}
}

func TestRunDirectoryBatch(t *testing.T) {
	dir := t.TempDir()
	writeJPEG(t, filepath.Join(dir, "a.jpg"), noiseImage(64, 64))
	if err := os.MkdirAll(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writePNG(t, filepath.Join(dir, "sub", "b.png"), noiseImage(32, 32))
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not an image"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	opts := Options{TargetKB: 4, Resampler: transform.Lanczos{}}
	summary, results, err := Run(context.Background(), dir, opts, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Total != 2 || summary.Errors != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if results[0].Display != "a.jpg" || results[1].Display != filepath.Join("sub", "b.png") {
		t.Fatalf("results not ordered by path: %s, %s", results[0].Display, results[1].Display)
	}

	for _, res := range results {
		want := filepath.Join(dir, DefaultBatchDir, res.RelPath)
		if res.OutputPath != want {
			t.Fatalf("expected output %s, got %s", want, res.OutputPath)
		}
		assertFileSize(t, want, res.OutputBytes)
		if res.TargetBytes != 4096 || res.Evaluations == 0 {
			t.Fatalf("expected a searched result, got %+v", res)
		}
	}

	// A second run must not pick up the previous outputs.
	summary, _, err = Run(context.Background(), dir, opts, nil)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if summary.Total != 2 {
		t.Fatalf("expected output folder to be skipped, got total %d", summary.Total)
	}
}

func TestRunUnsupportedFormatWritesNothing(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "anim.gif")
	var buf bytes.Buffer
	if err := gif.Encode(&buf, noiseImage(8, 8), nil); err != nil {
		t.Fatalf("encode gif: %v", err)
	}
	if err := os.WriteFile(src, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	summary, results, err := Run(context.Background(), src, Options{TargetKB: 1}, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Errors != 1 || summary.Processed != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if !errors.Is(results[0].Err, codec.ErrUnsupportedCombination) {
		t.Fatalf("expected unsupported combination, got %v", results[0].Err)
	}
	if _, err := os.Stat(filepath.Join(dir, "resized_anim.gif")); !os.IsNotExist(err) {
		t.Fatalf("expected no output file, stat err: %v", err)
	}
}

func TestRunInPlace(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "photo.jpg")
	writeJPEG(t, src, noiseImage(96, 96))

	summary, results, err := Run(context.Background(), src, Options{TargetKB: 3, InPlace: true}, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Processed != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if results[0].OutputPath != src {
		t.Fatalf("expected in-place output, got %s", results[0].OutputPath)
	}
	assertFileSize(t, src, results[0].OutputBytes)

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected temp files to be cleaned up, found %d entries", len(entries))
	}
}

func TestRunReportsMetricsAndDroppedMetadata(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "camera.jpg")
	writeJPEGWithExif(t, src, opaqueGradient(64, 64))

	_, results, err := Run(context.Background(), src, Options{TargetKB: 4, Metrics: true}, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	res := results[0]
	if res.Err != nil {
		t.Fatalf("fit: %v", res.Err)
	}
	if !res.MetadataDropped {
		t.Fatal("expected EXIF metadata to be reported as dropped")
	}
	if res.Metrics == nil || res.Metrics.PSNR <= 0 || res.Metrics.MSE < 0 {
		t.Fatalf("expected metrics, got %+v", res.Metrics)
	}
}

func TestProgressUpdates(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "one.png"), noiseImage(16, 16))
	writePNG(t, filepath.Join(dir, "two.png"), noiseImage(16, 16))

	updates := make(chan ProgressUpdate, 64)
	summary, _, err := Run(context.Background(), dir, Options{}, updates)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	close(updates)

	var total, processed int
	var bytesOut int64
	for u := range updates {
		total += u.TotalDelta
		processed += u.ProcessedDelta
		bytesOut += u.BytesOutDelta
	}
	if total != 2 || processed != 2 || bytesOut != summary.BytesOut {
		t.Fatalf("updates do not match summary: total=%d processed=%d out=%d summary=%+v", total, processed, bytesOut, summary)
	}
}

func TestResolveDestination(t *testing.T) {
	job := Job{Path: filepath.Join("in", "a", "x.png"), RelPath: filepath.Join("a", "x.png")}

	cases := []struct {
		name string
		opts Options
		want string
		err  bool
	}{
		{name: "default", opts: Options{}, want: filepath.Join("in", "a", "resized_x.png")},
		{name: "output dir", opts: Options{OutputDir: "out"}, want: filepath.Join("out", "a", "x.png")},
		{name: "in place", opts: Options{InPlace: true}, want: job.Path},
		{name: "collision", opts: Options{OutputDir: "in"}, err: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, _, err := resolveDestination(job, tc.opts)
			if tc.err {
				if err == nil {
					t.Fatalf("expected error, got %s", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestFormatSize(t *testing.T) {
	cases := map[int64]string{
		512:             "512 B",
		2048:            "2.00 KB",
		1536:            "1.50 KB",
		3 * 1024 * 1024: "3.00 MB",
	}
	for n, want := range cases {
		if got := FormatSize(n); got != want {
			t.Fatalf("FormatSize(%d) = %q, want %q", n, got, want)
		}
	}
}

func noiseImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	seed := uint32(7)
	for i := 0; i < len(img.Pix); i += 4 {
		seed = seed*1664525 + 1013904223
		img.Pix[i] = uint8(seed >> 24)
		img.Pix[i+1] = uint8(seed >> 16)
		img.Pix[i+2] = uint8(seed >> 8)
		img.Pix[i+3] = 0xff
	}
	return img
}

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func writeJPEG(t *testing.T, path string, img image.Image) {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// writeJPEGWithExif encodes img and inserts an APP1 EXIF segment right after
// the SOI marker.
func writeJPEGWithExif(t *testing.T, path string, img image.Image) {
	t.Helper()
	var enc bytes.Buffer
	if err := jpeg.Encode(&enc, img, &jpeg.Options{Quality: 95}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	data := enc.Bytes()

	exif := append([]byte("Exif\x00\x00"), buildExifTIFF()...)
	var buf bytes.Buffer
	buf.Write(data[:2])
	buf.Write([]byte{0xff, 0xe1})
	_ = binary.Write(&buf, binary.BigEndian, uint16(len(exif)+2))
	buf.Write(exif)
	buf.Write(data[2:])

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func buildExifTIFF() []byte {
	var tiff bytes.Buffer
	tiff.Write([]byte{0x49, 0x49, 0x2a, 0x00})
	_ = binary.Write(&tiff, binary.LittleEndian, uint32(8))
	_ = binary.Write(&tiff, binary.LittleEndian, uint16(2))
	_ = binary.Write(&tiff, binary.LittleEndian, uint16(0x0110))
	_ = binary.Write(&tiff, binary.LittleEndian, uint16(2))
	_ = binary.Write(&tiff, binary.LittleEndian, uint32(8))
	_ = binary.Write(&tiff, binary.LittleEndian, uint32(38))
	_ = binary.Write(&tiff, binary.LittleEndian, uint16(0x0132))
	_ = binary.Write(&tiff, binary.LittleEndian, uint16(2))
	_ = binary.Write(&tiff, binary.LittleEndian, uint32(20))
	_ = binary.Write(&tiff, binary.LittleEndian, uint32(46))
	_ = binary.Write(&tiff, binary.LittleEndian, uint32(0))
	tiff.Write([]byte("TestCam\x00"))
	tiff.Write([]byte("2024:01:02 03:04:05\x00"))
	return tiff.Bytes()
}

func assertFileSize(t *testing.T, path string, want int64) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat %s: %v", path, err)
	}
	if info.Size() != want {
		t.Fatalf("%s: expected %d bytes on disk, got %d", path, want, info.Size())
	}
}

func opaqueGradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 0x80, A: 0xff})
		}
	}
	return img
}

func hasKey(keys []string, key string) bool {
	for _, k := range keys {
		if strings.EqualFold(k, key) {
			return true
		}
	}
	return false
}

func TestCompareOutputRejectsUndecodableBytes(t *testing.T) {
	report, err := compareOutput(noiseImage(8, 8), []byte("not a png stream"), imgutil.KindPNG, false)
	if err == nil || report != nil {
		t.Fatalf("expected a decode error and no report, got %+v, %v", report, err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, noiseImage(8, 8)); err != nil {
		t.Fatalf("encode: %v", err)
	}
	report, err = compareOutput(noiseImage(8, 8), buf.Bytes(), imgutil.KindPNG, false)
	if err != nil || report == nil || report.PSNR != 100 {
		t.Fatalf("expected a lossless round trip to score 100 dB, got %+v, %v", report, err)
	}
}

func TestAnalyzeExifWithoutMetadata(t *testing.T) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, opaqueGradient(16, 16), nil); err != nil {
		t.Fatalf("encode: %v", err)
	}
	analysis, err := analyzeExif(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("expected a JPEG without EXIF to be accepted, got %v", err)
	}
	if analysis.Tags != 0 || analysis.Model != "" {
		t.Fatalf("expected an empty analysis, got %+v", analysis)
	}
}
