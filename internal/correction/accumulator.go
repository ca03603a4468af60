package correction

import (
	"github.com/user/arccheck_drc_go/internal/parser"
	perr "github.com/user/arccheck_drc_go/internal/platform/errors"
)

// DoseAccumulator keeps the running dose (cGy) of corrected per-frame count
// increments. Negative increments are counted as zero so each column never
// decreases. Skipped columns (reference diodes) stay at zero dose and are
// never counted as clamped.
type DoseAccumulator struct {
	dosePerCount float64
	total        []float64
	skip         []bool
	rows         [][]float64
	clamped      int
}

// NewDoseAccumulator starts an empty accumulator for cols columns. Indices in
// skip outside [0, cols) are ignored.
func NewDoseAccumulator(cols int, dosePerCount float64, skip ...int) *DoseAccumulator {
	a := &DoseAccumulator{
		dosePerCount: dosePerCount,
		total:        make([]float64, cols),
		skip:         make([]bool, cols),
	}
	for _, d := range skip {
		if d >= 0 && d < cols {
			a.skip[d] = true
		}
	}
	return a
}

// Add appends one frame of count increments.
func (a *DoseAccumulator) Add(increment []float64) error {
	if len(increment) != len(a.total) {
		return perr.Correctionf("increment has %d values, accumulator has %d columns", len(increment), len(a.total))
	}
	for d, v := range increment {
		if a.skip[d] {
			continue
		}
		if v < 0 {
			a.clamped++
			continue
		}
		a.total[d] += v * a.dosePerCount
	}
	a.rows = append(a.rows, append([]float64(nil), a.total...))
	return nil
}

// AddAccumulated feeds every row of an accumulated-counts array.
func (a *DoseAccumulator) AddAccumulated(acc parser.DiodeArray) error {
	prev := make([]float64, acc.Cols())
	for f := 0; f < acc.Rows(); f++ {
		row := acc.Row(f)
		inc := make([]float64, len(row))
		for d := range row {
			inc[d] = row[d] - prev[d]
		}
		if err := a.Add(inc); err != nil {
			return err
		}
		prev = row
	}
	return nil
}

// Frames returns the number of frames added.
func (a *DoseAccumulator) Frames() int { return len(a.rows) }

// Clamped returns how many negative increments were counted as zero.
func (a *DoseAccumulator) Clamped() int { return a.clamped }

// Total returns the current dose per column.
func (a *DoseAccumulator) Total() []float64 { return append([]float64(nil), a.total...) }

// Array returns the accumulated dose after every frame.
func (a *DoseAccumulator) Array() (parser.DiodeArray, error) {
	return parser.NewDiodeArrayCols(a.rows, len(a.total))
}
