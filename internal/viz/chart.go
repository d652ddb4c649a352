package viz

import (
	"math"

	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/qshpost/internal/bifurcation"
)

// BracketChart plots log10 of the bracket width after each bisection step.
func BracketChart(steps []bifurcation.Step) string {
	if len(steps) == 0 {
		return ""
	}
	widths := make([]float64, len(steps))
	for i, st := range steps {
		widths[i] = math.Log10(math.Max(st.Bracket.Width(), 1e-300))
	}
	if len(widths) == 1 {
		widths = append(widths, widths[0])
	}
	return asciigraph.Plot(widths,
		asciigraph.Height(8),
		asciigraph.Width(40),
		asciigraph.Precision(2),
		asciigraph.Caption("log10 bracket width"))
}

// SeriesChart plots one value per period, e.g. the running iota estimate.
func SeriesChart(values []float64, caption string) string {
	if len(values) == 0 {
		return ""
	}
	if len(values) == 1 {
		values = []float64{values[0], values[0]}
	}
	return asciigraph.Plot(values,
		asciigraph.Height(6),
		asciigraph.Width(50),
		asciigraph.Caption(caption))
}
