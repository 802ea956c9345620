package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"sizefit/internal/codec"
	"sizefit/internal/processor"
	"sizefit/internal/search"
	"sizefit/internal/transform"
	"sizefit/internal/tui"
)

var (
	fitTargetKB       int
	fitQuality        int
	fitInPlace        bool
	fitOutputDir      string
	fitEncoder        string
	fitResampler      string
	fitPNGCompression string
	fitStrategy       string
	fitMetrics        bool
	fitButteraugli    bool
	fitWorkers        int
)

var fitCmd = &cobra.Command{
	Use:   "fit [flags] <path>",
	Short: "Re-encode images as close as possible to a target size",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		if fitInPlace && fitOutputDir != "" {
			return fmt.Errorf("--inplace cannot be used with --output")
		}

		opts, err := fitOptions()
		if err != nil {
			return err
		}

		updates := make(chan processor.ProgressUpdate, 64)
		model := tui.NewModel(updates)
		program := tea.NewProgram(model)

		uiDone := make(chan struct{})
		go func() {
			_, _ = program.Run()
			close(uiDone)
		}()

		summary, results, err := processor.Run(context.Background(), path, opts, updates)

		close(updates)
		<-uiDone
		if err != nil {
			return err
		}

		for _, res := range results {
			printFitResult(res)
		}

		rows := []tui.SummaryRow{
			{Label: "Files processed", Value: fmt.Sprintf("%d/%d", summary.Processed, summary.Total)},
			{Label: "Within 10% of target", Value: fmt.Sprintf("%d", summary.WithinTolerance)},
			{Label: "Errors", Value: fmt.Sprintf("%d", summary.Errors), Warn: summary.Errors > 0},
			{Label: "Size before", Value: processor.FormatSize(summary.BytesIn)},
			{Label: "Size after", Value: processor.FormatSize(summary.BytesOut)},
		}
		fmt.Fprintln(os.Stdout, tui.RenderSummary(rows))
		if fitInPlace {
			fmt.Fprintln(os.Stdout, "In-place fit complete.")
		} else if opts.OutputDir != "" {
			outPath := opts.OutputDir
			if abs, absErr := filepath.Abs(outPath); absErr == nil {
				outPath = abs
			}
			fmt.Fprintf(os.Stdout, "Fitted files written to: %s\n", outPath)
		}

		if summary.Errors > 0 {
			return fmt.Errorf("%d of %d files failed", summary.Errors, summary.Total)
		}
		return nil
	},
}

func fitOptions() (processor.Options, error) {
	if fitTargetKB < 0 {
		return processor.Options{}, fmt.Errorf("%w: --target must not be negative", search.ErrInvalidTarget)
	}
	resampler, err := transform.ParseResampler(fitResampler)
	if err != nil {
		return processor.Options{}, err
	}
	compression, err := codec.ParsePNGCompression(fitPNGCompression)
	if err != nil {
		return processor.Options{}, err
	}
	strategy, err := search.ParseStrategy(fitStrategy)
	if err != nil {
		return processor.Options{}, err
	}

	return processor.Options{
		TargetKB:    fitTargetKB,
		Quality:     fitQuality,
		Strategy:    strategy,
		InPlace:     fitInPlace,
		OutputDir:   fitOutputDir,
		Codec:       codec.Options{Encoder: fitEncoder, PNGCompression: compression},
		Resampler:   resampler,
		Metrics:     fitMetrics || fitButteraugli,
		Butteraugli: fitButteraugli,
		Workers:     fitWorkers,
		Logger:      newLogger(),
	}, nil
}

func printFitResult(res processor.Result) {
	fmt.Fprintln(os.Stdout, fitFileStyle.Render(res.Display))
	if res.Err != nil {
		fmt.Fprintf(os.Stdout, "  %s %s\n", fitBulletStyle.Render("-"), fitErrorStyle.Render(res.Err.Error()))
		return
	}

	line := fmt.Sprintf("%s -> %s", processor.FormatSize(res.SourceBytes), processor.FormatSize(res.OutputBytes))
	if res.TargetBytes > 0 {
		line += fmt.Sprintf(" (target %s)", processor.FormatSize(res.TargetBytes))
	}
	fmt.Fprintf(os.Stdout, "  %s %s\n", fitBulletStyle.Render("-"), fitValueStyle.Render(line))
	fmt.Fprintf(os.Stdout, "  %s %s\n", fitBulletStyle.Render("-"),
		fitDimStyle.Render(fmt.Sprintf("%s [%s] after %d evaluations", res.Description, res.Params, res.Evaluations)))
	if res.TargetBytes > 0 && res.WithinTolerance {
		fmt.Fprintf(os.Stdout, "  %s %s\n", fitBulletStyle.Render("-"), fitOKStyle.Render("within 10% of target"))
	}
	if res.Advisory != "" {
		fmt.Fprintf(os.Stdout, "  %s %s\n", fitBulletStyle.Render("-"), fitWarnStyle.Render(res.Advisory))
	}
	if res.MetadataDropped {
		fmt.Fprintf(os.Stdout, "  %s %s\n", fitBulletStyle.Render("-"), fitDimStyle.Render("EXIF metadata was not carried over"))
	}
	if res.Metrics != nil {
		m := res.Metrics
		text := fmt.Sprintf("PSNR %.2f dB, SSIM %.4f", m.PSNR, m.SSIM)
		if m.Butteraugli > 0 {
			text += fmt.Sprintf(", butteraugli %.3f", m.Butteraugli)
		}
		fmt.Fprintf(os.Stdout, "  %s %s\n", fitBulletStyle.Render("-"), fitValueStyle.Render(text))
	}
	fmt.Fprintf(os.Stdout, "  %s %s\n", fitBulletStyle.Render("-"), fitDimStyle.Render(res.OutputPath))
}

var (
	fitFileStyle   = lipgloss.NewStyle().Bold(true).Foreground(tui.ColorAccent)
	fitValueStyle  = lipgloss.NewStyle().Foreground(tui.ColorInk)
	fitDimStyle    = lipgloss.NewStyle().Foreground(tui.ColorDim)
	fitBulletStyle = lipgloss.NewStyle().Foreground(tui.ColorDim)
	fitOKStyle     = lipgloss.NewStyle().Foreground(tui.ColorSuccess)
	fitWarnStyle   = lipgloss.NewStyle().Foreground(tui.ColorWarn)
	fitErrorStyle  = lipgloss.NewStyle().Foreground(tui.ColorError)
)

func init() {
	fitCmd.Flags().IntVarP(&fitTargetKB, "target", "t", 0, "target size in KB (0 encodes once at --quality)")
	fitCmd.Flags().IntVarP(&fitQuality, "quality", "q", search.DefaultQuality, "quality for a direct encode (1-100)")
	fitCmd.Flags().BoolVarP(&fitInPlace, "inplace", "i", false, "overwrite files in place")
	fitCmd.Flags().StringVarP(&fitOutputDir, "output", "o", "", "destination folder (default resized_<name> or resized_images/)")
	fitCmd.Flags().StringVar(&fitEncoder, "encoder", "std", "jpeg encoder: std or jpegli")
	fitCmd.Flags().StringVar(&fitResampler, "resampler", "lanczos", "resampling backend: lanczos, gift or nfnt")
	fitCmd.Flags().StringVar(&fitPNGCompression, "png-compression", "default", "png compression: default, best, fast or none")
	fitCmd.Flags().StringVar(&fitStrategy, "strategy", "auto", "search strategy: auto, lossy or lossless")
	fitCmd.Flags().BoolVar(&fitMetrics, "metrics", false, "report PSNR and SSIM against the source")
	fitCmd.Flags().BoolVar(&fitButteraugli, "butteraugli", false, "also report butteraugli distance (slow)")
	fitCmd.Flags().IntVar(&fitWorkers, "workers", 0, "parallel workers (default: number of CPUs)")

	rootCmd.AddCommand(fitCmd)
}
