package analysis

import (
	"fmt"
	"math"
	"strconv"

	"github.com/user/arccheck_drc_go/internal/parser"
	perr "github.com/user/arccheck_drc_go/internal/platform/errors"
)

// DefaultDoseRateBounds are the dose-rate interval edges in cGy/min.
var DefaultDoseRateBounds = []float64{0, 50, 100, 150, 300}

// Increments turns an accumulated array into per-frame increments; the first
// frame counts from zero.
func Increments(acc parser.DiodeArray) parser.DiodeArray {
	out := make([][]float64, acc.Rows())
	for f := range out {
		out[f] = acc.Row(f)
		if f > 0 {
			for d := range out[f] {
				out[f][d] -= acc.At(f-1, d)
			}
		}
	}
	a, _ := parser.NewDiodeArray(out)
	return a
}

// DoseRateHistogram sums the per-frame dose of each diode into dose-rate
// intervals. Intervals are right-closed, (lo, hi], except the first which
// also holds its lower edge; the last runs to +Inf. Frames with a rate
// below the first bound are counted in Dropped.
func DoseRateHistogram(dose, rate parser.DiodeArray, diodes []int, bounds []float64) (*Histogram, error) {
	if len(bounds) == 0 {
		bounds = DefaultDoseRateBounds
	}
	for i := 1; i < len(bounds); i++ {
		if !(bounds[i] > bounds[i-1]) {
			return nil, perr.Configf("dose-rate bounds must increase, got %v", bounds)
		}
	}
	if dose.Rows() != rate.Rows() || dose.Cols() != rate.Cols() {
		return nil, perr.Correctionf("dose array is %dx%d, rate array is %dx%d",
			dose.Rows(), dose.Cols(), rate.Rows(), rate.Cols())
	}

	h := &Histogram{
		Bounds: append([]float64(nil), bounds...),
		Labels: intervalLabels(bounds),
		Diodes: append([]int(nil), diodes...),
		Dose:   make([][]float64, len(diodes)),
	}
	for i, d := range diodes {
		if d < 0 || d >= dose.Cols() {
			return nil, perr.UnknownDiodef("diode %d outside array of %d columns", d, dose.Cols())
		}
		sums := make([]float64, len(bounds))
		for f := 0; f < dose.Rows(); f++ {
			k := intervalOf(rate.At(f, d), bounds)
			if k < 0 {
				h.Dropped++
				continue
			}
			sums[k] += dose.At(f, d)
		}
		h.Dose[i] = sums
	}
	return h, nil
}

func intervalOf(x float64, bounds []float64) int {
	if math.IsNaN(x) || x < bounds[0] {
		return -1
	}
	for k := 1; k < len(bounds); k++ {
		if x <= bounds[k] {
			return k - 1
		}
	}
	return len(bounds) - 1
}

func intervalLabels(bounds []float64) []string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	labels := make([]string, len(bounds))
	for k := range bounds {
		if k == len(bounds)-1 {
			labels[k] = ">" + f(bounds[k])
			continue
		}
		labels[k] = fmt.Sprintf("%s-%s", f(bounds[k]), f(bounds[k+1]))
	}
	return labels
}
