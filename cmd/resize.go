package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"sizefit/internal/processor"
	"sizefit/internal/search"
	"sizefit/internal/transform"
	"sizefit/internal/tui"
)

var (
	resizeWidth     int
	resizeHeight    int
	resizeKeepRatio bool
	resizeQuality   int
	resizeOutput    string
	resizeResampler string
)

var resizeCmd = &cobra.Command{
	Use:   "resize [flags] <file>",
	Short: "Resize an image to explicit dimensions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resampler, err := transform.ParseResampler(resizeResampler)
		if err != nil {
			return err
		}

		res, err := processor.Resize(args[0], processor.ResizeOptions{
			Width:     resizeWidth,
			Height:    resizeHeight,
			KeepRatio: resizeKeepRatio,
			Quality:   resizeQuality,
			Output:    resizeOutput,
			Resampler: resampler,
		})
		if err != nil {
			return err
		}

		fmt.Fprintln(os.Stdout, tui.RenderSummary([]tui.SummaryRow{
			{Label: "Dimensions", Value: fmt.Sprintf("%d x %d", res.Width, res.Height)},
			{Label: "Size before", Value: processor.FormatSize(res.SourceBytes)},
			{Label: "Size after", Value: processor.FormatSize(res.OutputBytes)},
			{Label: "Saved to", Value: res.OutputPath},
		}))
		return nil
	},
}

func init() {
	resizeCmd.Flags().IntVarP(&resizeWidth, "width", "w", 0, "target width in pixels")
	resizeCmd.Flags().IntVar(&resizeHeight, "height", 0, "target height in pixels")
	resizeCmd.Flags().BoolVar(&resizeKeepRatio, "keep-ratio", true, "preserve aspect ratio within width x height")
	resizeCmd.Flags().IntVarP(&resizeQuality, "quality", "q", search.DefaultQuality, "jpeg quality (1-100)")
	resizeCmd.Flags().StringVarP(&resizeOutput, "output", "o", "", "output file (default resized_<name>)")
	resizeCmd.Flags().StringVar(&resizeResampler, "resampler", "lanczos", "resampling backend: lanczos, gift or nfnt")
	_ = resizeCmd.MarkFlagRequired("width")
	_ = resizeCmd.MarkFlagRequired("height")

	rootCmd.AddCommand(resizeCmd)
}
