package report

import (
	"fmt"
	"image/color"

	"github.com/user/arccheck_drc_go/internal/analysis"
	"github.com/user/arccheck_drc_go/internal/parser"
	perr "github.com/user/arccheck_drc_go/internal/platform/errors"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

var plotColors = []color.Color{
	color.RGBA{R: 255, G: 0, B: 0, A: 255},   // Red
	color.RGBA{G: 160, A: 255},               // Green
	color.RGBA{B: 255, A: 255},               // Blue
	color.RGBA{R: 255, G: 165, A: 255},       // Orange
	color.RGBA{R: 128, G: 0, B: 128, A: 255}, // Purple
	color.RGBA{G: 128, B: 128, A: 255},       // Teal
}

// CreateDoseCurvePlot plots the accumulated dose (cGy) over time for the
// given diodes. Raw curves are dashed, corrected curves solid.
func CreateDoseCurvePlot(raw, corrected parser.DiodeArray, diodes []int, dosePerCount, frameIntervalMS float64) ([]byte, error) {
	if raw.Rows() == 0 || raw.Rows() != corrected.Rows() || raw.Cols() != corrected.Cols() {
		return nil, perr.Correctionf("raw array is %dx%d, corrected is %dx%d",
			raw.Rows(), raw.Cols(), corrected.Rows(), corrected.Cols())
	}
	if len(diodes) == 0 {
		return nil, perr.Configf("no diodes selected for the dose curve")
	}

	p := plot.New()
	p.Title.Text = "Accumulated dose"
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = "Dose (cGy)"
	p.Add(plotter.NewGrid())

	seconds := frameIntervalMS / 1000
	curve := func(a parser.DiodeArray, d int) plotter.XYs {
		pts := make(plotter.XYs, a.Rows())
		for f := range pts {
			pts[f] = plotter.XY{X: float64(f+1) * seconds, Y: a.At(f, d) * dosePerCount}
		}
		return pts
	}

	for i, d := range diodes {
		if d < 0 || d >= raw.Cols() {
			return nil, perr.UnknownDiodef("diode %d outside array of %d columns", d, raw.Cols())
		}
		c := plotColors[i%len(plotColors)]

		rawLine, err := plotter.NewLine(curve(raw, d))
		if err != nil {
			return nil, perr.Correctionf("failed to create raw line for diode %d: %v", d, err)
		}
		rawLine.Color = c
		rawLine.LineStyle.DashArray = []vg.Length{vg.Points(5), vg.Points(5)}

		corrLine, err := plotter.NewLine(curve(corrected, d))
		if err != nil {
			return nil, perr.Correctionf("failed to create corrected line for diode %d: %v", d, err)
		}
		corrLine.Color = c
		corrLine.LineStyle.Width = vg.Points(1.5)

		p.Add(rawLine, corrLine)
		p.Legend.Add(fmt.Sprintf("Diode %d raw", d), rawLine)
		p.Legend.Add(fmt.Sprintf("Diode %d corrected", d), corrLine)
	}

	p.Legend.Top = true
	p.Legend.Left = true
	p.Legend.XOffs = vg.Points(10)
	return renderPNG(p, vg.Points(800), vg.Points(400))
}

// CreateHistogramPlot draws grouped bars of dose per dose-rate interval, one
// group per interval and one bar per diode.
func CreateHistogramPlot(h *analysis.Histogram) ([]byte, error) {
	if h == nil || len(h.Diodes) == 0 {
		return nil, perr.Correctionf("no histogram data to plot")
	}

	p := plot.New()
	p.Title.Text = "Dose per dose-rate interval"
	p.X.Label.Text = "Dose rate (cGy/min)"
	p.Y.Label.Text = "Dose (cGy)"
	p.Add(plotter.NewGrid())

	w := vg.Points(60 / float64(len(h.Diodes)))
	for i, d := range h.Diodes {
		bars, err := plotter.NewBarChart(plotter.Values(h.Dose[i]), w)
		if err != nil {
			return nil, perr.Correctionf("failed to create bars for diode %d: %v", d, err)
		}
		bars.LineStyle.Width = vg.Length(0)
		bars.Color = plotColors[i%len(plotColors)]
		bars.Offset = w * vg.Length(float64(i)-float64(len(h.Diodes)-1)/2)
		p.Add(bars)
		p.Legend.Add(fmt.Sprintf("Diode %d", d), bars)
	}
	p.NominalX(h.Labels...)
	p.Legend.Top = true
	return renderPNG(p, vg.Points(800), vg.Points(400))
}

// generateTicks returns labelled ticks every step from min to max. With
// includeMinMax the max is labelled even when it is off-step.
func generateTicks(min, max, step int, includeMinMax bool) []plot.Tick {
	if step <= 0 {
		step = 1
	}
	var ticks []plot.Tick
	for i := min; i <= max; i += step {
		ticks = append(ticks, plot.Tick{Value: float64(i), Label: fmt.Sprintf("%d", i)})
	}
	if includeMinMax && (max-min)%step != 0 {
		ticks = append(ticks, plot.Tick{Value: float64(max), Label: fmt.Sprintf("%d", max)})
	}
	return ticks
}
