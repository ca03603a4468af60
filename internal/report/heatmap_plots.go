// Package report renders correction results as PNG plots and a PDF summary.
package report

import (
	"bytes"
	"image/color"
	"math"

	"github.com/user/arccheck_drc_go/internal/geometry"
	perr "github.com/user/arccheck_drc_go/internal/platform/errors"
	"github.com/user/arccheck_drc_go/internal/platform/logger"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Scale selects how heatmap values map to colors.
type Scale int

const (
	// Sequential spans min..max of the finite values, low green to high red.
	Sequential Scale = iota
	// Diverging is symmetric around zero, blue negative and red positive.
	Diverging
)

// colorList is a fixed palette.
type colorList []color.Color

func (c colorList) Colors() []color.Color { return c }

// Green -> Yellow -> Orange -> Red
var sequentialColors = colorList{
	color.RGBA{R: 0, G: 100, B: 0, A: 255},
	color.RGBA{R: 0, G: 255, B: 0, A: 255},
	color.RGBA{R: 255, G: 255, B: 0, A: 255},
	color.RGBA{R: 255, G: 165, B: 0, A: 255},
	color.RGBA{R: 255, G: 0, B: 0, A: 255},
}

var nanColor = color.Gray{Y: 200}

// planarGrid adapts a detector grid to plotter.GridXYZ. Grid row 0 is the
// top of the array, plot row 0 is the bottom.
type planarGrid struct {
	z          [][]float64
	rows, cols int
}

func (g planarGrid) Dims() (c, r int)   { return g.cols, g.rows }
func (g planarGrid) Z(c, r int) float64 { return g.z[g.rows-1-r][c] }
func (g planarGrid) X(c int) float64    { return float64(c) }
func (g planarGrid) Y(r int) float64    { return float64(r) }

// CreatePlanarHeatmap draws one value per diode (file order) on the planar
// detector grid. Cells without a dosimetric diode are gray.
func CreatePlanarHeatmap(model *geometry.Model, values []float64, title string, scale Scale) ([]byte, error) {
	if model == nil {
		return nil, perr.Configf("heatmap requires a detector model")
	}
	z, err := model.Planar(values)
	if err != nil {
		return nil, err
	}
	rows, cols := model.GridSize()
	grid := planarGrid{z: z, rows: rows, cols: cols}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, row := range z {
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	if lo > hi {
		return nil, perr.Correctionf("no finite values to plot for %q", title)
	}

	var hm *plotter.HeatMap
	switch scale {
	case Diverging:
		cm := moreland.SmoothBlueRed()
		cm.SetMin(0)
		cm.SetMax(1)
		hm = plotter.NewHeatMap(grid, cm.Palette(64))
		vmax := math.Max(math.Abs(lo), math.Abs(hi))
		if vmax == 0 {
			vmax = 1
		}
		hm.Min, hm.Max = -vmax, vmax
	default:
		hm = plotter.NewHeatMap(grid, sequentialColors)
		hm.Min, hm.Max = lo, hi
		if hm.Min == hm.Max {
			hm.Max = hm.Min + 1
		}
	}
	hm.NaN = nanColor

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Grid column"
	p.Y.Label.Text = "Grid row"
	p.X.Min, p.X.Max = -0.5, float64(cols)-0.5
	p.Y.Min, p.Y.Max = -0.5, float64(rows)-0.5
	p.X.Tick.Marker = plot.ConstantTicks(generateTicks(0, cols-1, 10, true))
	p.Add(hm)

	logger.Named("report").Debug().
		Str("plot", title).
		Float64("min", hm.Min).
		Float64("max", hm.Max).
		Msg("planar heatmap rendered")
	return renderPNG(p, vg.Points(1000), vg.Points(500))
}

func renderPNG(p *plot.Plot, w, h vg.Length) ([]byte, error) {
	writer, err := p.WriterTo(w, h, "png")
	if err != nil {
		return nil, perr.IOf(err, "failed to create plot writer")
	}
	buf := new(bytes.Buffer)
	if _, err := writer.WriteTo(buf); err != nil {
		return nil, perr.IOf(err, "failed to write plot to buffer")
	}
	return buf.Bytes(), nil
}

var _ palette.Palette = sequentialColors
