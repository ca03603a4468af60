package correction

import (
	"math"

	"github.com/user/arccheck_drc_go/internal/parser"
	perr "github.com/user/arccheck_drc_go/internal/platform/errors"
)

// Calibration holds the per-diode background and calibration factor rows of
// a calibration file, in file order.
type Calibration struct {
	Background []float64
	Factors    []float64
}

// NewCalibration copies background and factors. Lengths must match.
func NewCalibration(background, factors []float64) (Calibration, error) {
	if len(background) != len(factors) {
		return Calibration{}, perr.Correctionf("background has %d values, calibration has %d", len(background), len(factors))
	}
	return Calibration{
		Background: append([]float64(nil), background...),
		Factors:    append([]float64(nil), factors...),
	}, nil
}

// CalibrationFromBlocks takes the first row of the Calibration block and of
// the optional Background block (zeros when absent).
func CalibrationFromBlocks(blocks []parser.Block) (Calibration, error) {
	cals := parser.Select(blocks, parser.SectionCalibration)
	if len(cals) == 0 {
		return Calibration{}, perr.Formatf(0, 0, "no %s section", parser.SectionCalibration)
	}
	factors := cals[0].Data.Row(0)
	background := make([]float64, len(factors))
	if bks := parser.Select(blocks, parser.SectionBackground); len(bks) > 0 {
		background = bks[0].Data.Row(0)
	}
	return NewCalibration(background, factors)
}

// IntrinsicCorrections returns an array shaped like acc whose interior
// dosimetric elements hold the intrinsic factor of their diode: the measured
// over calibration ratio (acc-background)/cal normalised by the same ratio
// taken against the mean calibration value of the usable dosimetric diodes.
// The measured count cancels, leaving mean(cal)/cal[d], so a calibration row
// of factors near 1 and a calibration frame of raw counts give the same
// scale. Counts are divided by the factor.
//
// The first and last rows and every reference column are copied from acc
// verbatim. A zero, negative or NaN calibration value yields a factor of
// exactly 1.0: this suppresses an undefined division by policy.
func (e *Engine) IntrinsicCorrections(acc parser.DiodeArray, cal Calibration) (parser.DiodeArray, error) {
	factors, err := e.calibrationFactors(acc.Cols(), cal)
	if err != nil {
		return parser.DiodeArray{}, err
	}

	out := acc.Values()
	for f := 1; f < acc.Rows()-1; f++ {
		for d := range out[f] {
			if e.reference[d] {
				continue
			}
			out[f][d] = factors[d]
		}
	}
	return parser.NewDiodeArrayCols(out, acc.Cols())
}

// calibrationFactors returns the intrinsic factor of every column. Reference
// columns get 1.0.
func (e *Engine) calibrationFactors(cols int, cal Calibration) ([]float64, error) {
	if err := e.checkCols(cols); err != nil {
		return nil, err
	}
	if len(cal.Factors) != cols || len(cal.Background) != cols {
		return nil, perr.Correctionf("calibration has %d/%d values, counts have %d columns",
			len(cal.Background), len(cal.Factors), cols)
	}

	var sum float64
	var n int
	for d, v := range cal.Factors {
		if !e.reference[d] && usableCalibration(v) {
			sum += v
			n++
		}
	}
	factors := make([]float64, cols)
	for d, v := range cal.Factors {
		factors[d] = 1.0
		if n > 0 && !e.reference[d] && usableCalibration(v) {
			factors[d] = (sum / float64(n)) / v
		}
	}
	return factors, nil
}

func usableCalibration(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}
