package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

type SummaryRow struct {
	Label string
	Value string
	// Warn highlights the value, e.g. a non-zero error count.
	Warn bool
}

// RenderSummary draws rows as an aligned two-column table between rules.
func RenderSummary(rows []SummaryRow) string {
	labelWidth, valueWidth := 0, 0
	for _, row := range rows {
		labelWidth = max(labelWidth, lipgloss.Width(row.Label))
		valueWidth = max(valueWidth, lipgloss.Width(row.Value))
	}

	rule := ruleStyle.Render(strings.Repeat("-", labelWidth+valueWidth+3))
	lines := make([]string, 0, len(rows)+2)
	lines = append(lines, rule)
	for _, row := range rows {
		style := valueStyle
		if row.Warn {
			style = warnValueStyle
		}
		label := labelStyle.Width(labelWidth).Render(row.Label)
		lines = append(lines, label+" | "+style.Render(row.Value))
	}
	lines = append(lines, rule)
	return strings.Join(lines, "\n")
}

var (
	valueStyle     = lipgloss.NewStyle().Foreground(ColorInk).Bold(true)
	warnValueStyle = lipgloss.NewStyle().Foreground(ColorWarn).Bold(true)
	ruleStyle      = lipgloss.NewStyle().Foreground(ColorDim)
)
