// Package analysis compares raw and corrected diode arrays and bins delivered
// dose by dose rate.
package analysis

import (
	"fmt"
	"math"
	"sort"

	"github.com/user/arccheck_drc_go/internal/geometry"
	"github.com/user/arccheck_drc_go/internal/parser"
	perr "github.com/user/arccheck_drc_go/internal/platform/errors"
)

// Helper to calculate mean
func calculateMean(data []float64) float64 {
	if len(data) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for _, v := range data {
		sum += v
	}
	return sum / float64(len(data))
}

// Helper to calculate population standard deviation
func calculateStdDev(data []float64, mean float64) float64 {
	if len(data) == 0 || math.IsNaN(mean) {
		return math.NaN()
	}
	sumSqDiff := 0.0
	for _, v := range data {
		sumSqDiff += (v - mean) * (v - mean)
	}
	return math.Sqrt(sumSqDiff / float64(len(data)))
}

// Helper to calculate range (max - min)
func calculateRange(data []float64) float64 {
	if len(data) == 0 {
		return math.NaN()
	}
	minVal, maxVal := data[0], data[0]
	for _, v := range data[1:] {
		minVal = math.Min(minVal, v)
		maxVal = math.Max(maxVal, v)
	}
	return maxVal - minVal
}

// rankDescending sorts by value, largest first; ties keep diode order.
func rankDescending(r []RankedDiodeInfo) {
	sort.SliceStable(r, func(i, j int) bool {
		return r[i].Value > r[j].Value
	})
}

// Summarize compares the final frame of raw and corrected accumulated counts
// for every dosimetric diode of model.
func Summarize(raw, corrected parser.DiodeArray, model *geometry.Model) (*Summary, error) {
	if model == nil {
		return nil, perr.Configf("summarize requires a detector model")
	}
	if raw.Rows() == 0 {
		return nil, perr.Correctionf("raw array is empty, cannot summarize")
	}
	if raw.Rows() != corrected.Rows() || raw.Cols() != corrected.Cols() {
		return nil, perr.Correctionf("raw array is %dx%d, corrected is %dx%d",
			raw.Rows(), raw.Cols(), corrected.Rows(), corrected.Cols())
	}
	if raw.Cols() != model.DiodeCount() {
		return nil, perr.Correctionf("arrays have %d columns, detector model %s has %d diodes",
			raw.Cols(), model.Name(), model.DiodeCount())
	}

	s := NewSummary()
	last := raw.Rows() - 1
	relatives := make([]float64, 0, raw.Cols())

	for _, d := range model.Dosimetric() {
		pos, err := model.PlanarIndexOf(d)
		if err != nil {
			return nil, err
		}
		res := DiodeSummary{
			Diode:          d,
			Row:            pos.Row,
			Col:            pos.Col,
			X:              pos.X,
			Y:              pos.Y,
			RawFinal:       raw.At(last, d),
			CorrectedFinal: corrected.At(last, d),
			RelativeChange: math.NaN(),
		}
		res.Change = res.CorrectedFinal - res.RawFinal
		if res.RawFinal != 0 {
			res.RelativeChange = res.Change / res.RawFinal
			relatives = append(relatives, res.RelativeChange)
			s.RankedByRelativeChange = append(s.RankedByRelativeChange,
				RankedDiodeInfo{Diode: d, Value: math.Abs(res.RelativeChange)})
		}
		s.RankedByChange = append(s.RankedByChange, RankedDiodeInfo{Diode: d, Value: math.Abs(res.Change)})
		s.Results = append(s.Results, res)
	}

	rankDescending(s.RankedByChange)
	rankDescending(s.RankedByRelativeChange)

	s.MeanRelativeChange = calculateMean(relatives)
	s.StdRelativeChange = calculateStdDev(relatives, s.MeanRelativeChange)
	s.RelativeChangeRange = calculateRange(relatives)

	if skipped := len(s.Results) - len(relatives); skipped > 0 {
		s.Warnings = append(s.Warnings, fmt.Sprintf("%d diodes recorded no counts; relative change undefined", skipped))
	}
	return s, nil
}

// Top returns at most n entries of a ranking.
func Top(r []RankedDiodeInfo, n int) []RankedDiodeInfo {
	if n < len(r) {
		return r[:n]
	}
	return r
}
