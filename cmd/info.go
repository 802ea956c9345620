package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"sizefit/internal/processor"
	"sizefit/internal/tui"
)

var infoCmd = &cobra.Command{
	Use:   "info <file>...",
	Short: "Show size, dimensions, format and metadata of images",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var failed int
		for i, path := range args {
			if i > 0 {
				fmt.Fprintln(os.Stdout)
			}
			info, err := processor.Inspect(path)
			fmt.Fprintln(os.Stdout, infoFileStyle.Render(path))
			if err != nil {
				failed++
				fmt.Fprintf(os.Stdout, "  %s %s\n", infoBulletStyle.Render("-"), infoDimStyle.Render(err.Error()))
				continue
			}
			for _, row := range infoRows(info) {
				fmt.Fprintf(os.Stdout, "  %s %s\n", infoCategoryStyle.Render(row.Label+":"), infoValueStyle.Render(row.Value))
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d files could not be read", failed, len(args))
		}
		return nil
	},
}

func infoRows(info processor.SourceInfo) []tui.SummaryRow {
	rows := []tui.SummaryRow{
		{Label: "Size", Value: processor.FormatSize(info.Bytes)},
		{Label: "Format", Value: info.Kind.String()},
	}
	if info.Width > 0 {
		rows = append(rows,
			tui.SummaryRow{Label: "Dimensions", Value: fmt.Sprintf("%d x %d", info.Width, info.Height)},
			tui.SummaryRow{Label: "Colour mode", Value: string(info.ColorMode)},
		)
	}
	if info.Exif.Tags > 0 {
		rows = append(rows, tui.SummaryRow{Label: "EXIF tags", Value: fmt.Sprintf("%d", info.Exif.Tags)})
		if info.Exif.Model != "" {
			rows = append(rows, tui.SummaryRow{Label: "Camera", Value: info.Exif.Model})
		}
		if info.Exif.Timestamp != "" {
			rows = append(rows, tui.SummaryRow{Label: "Taken", Value: info.Exif.Timestamp})
		}
		if info.Exif.HasGPS {
			rows = append(rows, tui.SummaryRow{Label: "GPS", Value: "present"})
		}
	}
	if len(info.PNG.TextKeys) > 0 {
		rows = append(rows, tui.SummaryRow{Label: "Text chunks", Value: strings.Join(info.PNG.TextKeys, ", ")})
	}
	if info.PNG.PaddingChunks > 0 {
		rows = append(rows, tui.SummaryRow{Label: "Padding", Value: fmt.Sprintf("%d KB", info.PNG.PaddingChunks)})
	}
	return rows
}

var (
	infoFileStyle     = lipgloss.NewStyle().Bold(true).Foreground(tui.ColorAccent)
	infoCategoryStyle = lipgloss.NewStyle().Foreground(tui.ColorAccentAlt)
	infoValueStyle    = lipgloss.NewStyle().Foreground(tui.ColorInk)
	infoDimStyle      = lipgloss.NewStyle().Foreground(tui.ColorDim)
	infoBulletStyle   = lipgloss.NewStyle().Foreground(tui.ColorDim)
)

func init() {
	rootCmd.AddCommand(infoCmd)
}
