package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/chazu/ablation/pkg/geom"
	"github.com/chazu/ablation/pkg/margin"
)

var (
	colorCyan   = lipgloss.Color("36")  // Teal - headings
	colorGreen  = lipgloss.Color("35")  // Green - success
	colorYellow = lipgloss.Color("220") // Amber - warnings
	colorWhite  = lipgloss.Color("255") // Bright white - values
	colorGray   = lipgloss.Color("245") // Gray - labels
	colorDim    = lipgloss.Color("240") // Dim gray - muted text
)

var (
	styleTitle   = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	styleValue   = lipgloss.NewStyle().Foreground(colorWhite)
	styleNumber  = lipgloss.NewStyle().Foreground(colorCyan)
	styleDim     = lipgloss.NewStyle().Foreground(colorDim)
	styleWarning = lipgloss.NewStyle().Foreground(colorYellow)
	styleKey     = lipgloss.NewStyle().Foreground(colorGray).Width(14)

	styleIconSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleIconWarning = lipgloss.NewStyle().Foreground(colorYellow)
)

const (
	iconSuccess = "✓"
	iconWarning = "!"
	iconArrow   = "→"
)

func printTitle(w io.Writer, title string) {
	fmt.Fprintln(w, styleTitle.Render(title))
}

func printSuccess(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, styleIconSuccess.Render(iconSuccess)+" "+fmt.Sprintf(format, args...))
}

func printWarning(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, styleIconWarning.Render(iconWarning)+" "+styleWarning.Render(fmt.Sprintf(format, args...)))
}

func printKeyValue(w io.Writer, key, value string) {
	fmt.Fprintln(w, "  "+styleKey.Render(key)+" "+styleValue.Render(value))
}

func printFile(w io.Writer, path string) {
	fmt.Fprintln(w, "  "+styleDim.Render(iconArrow)+" "+styleValue.Render(path))
}

func mm(v float64) string {
	return styleNumber.Render(fmt.Sprintf("%.2f", v)) + " mm"
}

// printSummary renders the margin statistics and tumor coverage.
func printSummary(w io.Writer, res *margin.Result) {
	s := res.Summary
	printTitle(w, "Margins (zone surface to tumor surface, negative inside)")
	printKeyValue(w, "points", fmt.Sprintf("%d", s.Count))
	printKeyValue(w, "closest", mm(res.AbsoluteRange[0]))
	printKeyValue(w, "min", mm(s.Min))
	printKeyValue(w, "p20", mm(s.P20))
	printKeyValue(w, "median", mm(s.Median))
	printKeyValue(w, "mean", mm(s.Mean))
	printKeyValue(w, "p80", mm(s.P80))
	printKeyValue(w, "max", mm(s.Max))

	c := res.Coverage
	printTitle(w, "Tumor coverage")
	printKeyValue(w, "tumor", fmt.Sprintf("%.1f mm³", c.TumorVolume))
	printKeyValue(w, "covered", fmt.Sprintf("%.1f mm³ (%.1f%%)", c.CoveredVolume, 100*c.Fraction))
	printKeyValue(w, "residual", fmt.Sprintf("%.1f mm³", c.ResidualVolume))
	if c.ResidualVolume > 0 {
		printWarning(w, "%.1f mm³ of tumor lies outside the ablation zone", c.ResidualVolume)
	}
}

// printBands renders the point count per band.
func printBands(w io.Writer, thresholds []float64, counts []int) {
	printTitle(w, "Bands")
	for i, n := range counts {
		printKeyValue(w, bandLabel(thresholds, i), fmt.Sprintf("%d", n))
	}
}

// bandLabel names band i: "< t0", "[t0, t1)", ..., ">= tn".
func bandLabel(thresholds []float64, i int) string {
	switch {
	case len(thresholds) == 0:
		return "all"
	case i == 0:
		return fmt.Sprintf("< %g", thresholds[0])
	case i == len(thresholds):
		return fmt.Sprintf(">= %g", thresholds[i-1])
	default:
		return fmt.Sprintf("[%g, %g)", thresholds[i-1], thresholds[i])
	}
}

// printMat4 renders a homogeneous transform row by row.
func printMat4(w io.Writer, m geom.Mat4) {
	for _, row := range m {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = fmt.Sprintf("%10.5f", v)
		}
		fmt.Fprintln(w, "  "+styleValue.Render(strings.Join(cells, " ")))
	}
}
