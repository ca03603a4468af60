// Package correction applies the Jager dose-rate-dependence correction chain
// (pulse rate, dose per pulse, intrinsic) to accumulated diode counts.
package correction

import (
	"context"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/user/arccheck_drc_go/internal/geometry"
	"github.com/user/arccheck_drc_go/internal/parser"
	perr "github.com/user/arccheck_drc_go/internal/platform/errors"
)

// Config is the immutable engine configuration.
type Config struct {
	PulseRate         *Table
	DosePerPulse      *Table
	Model             *geometry.Model
	DosePerCount      float64 // cGy per count
	FrameIntervalMS   float64
	PulseRepetitionHz float64
	Workers           int // frames corrected concurrently; <1 means 1
}

// Engine corrects diode arrays shaped for one detector model. It holds no
// mutable state and is safe for concurrent use.
type Engine struct {
	cfg          Config
	reference    []bool
	frameMinutes float64
}

// NewEngine validates cfg.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.PulseRate == nil || cfg.PulseRate.Len() < 2 {
		return nil, perr.Correctionf("%s table needs at least 2 rows", PulseRateTable)
	}
	if cfg.DosePerPulse == nil || cfg.DosePerPulse.Len() < 2 {
		return nil, perr.Correctionf("%s table needs at least 2 rows", DosePerPulseTable)
	}
	if cfg.Model == nil {
		return nil, perr.Configf("correction engine requires a detector model")
	}
	if !(cfg.DosePerCount > 0) || !(cfg.FrameIntervalMS > 0) || !(cfg.PulseRepetitionHz > 0) {
		return nil, perr.Configf("dose per count, frame interval and pulse repetition frequency must be positive (%g, %g, %g)",
			cfg.DosePerCount, cfg.FrameIntervalMS, cfg.PulseRepetitionHz)
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}

	ref := make([]bool, cfg.Model.DiodeCount())
	for i := range ref {
		ref[i] = cfg.Model.IsReferenceDiode(i)
	}
	return &Engine{
		cfg:          cfg,
		reference:    ref,
		frameMinutes: cfg.FrameIntervalMS / 60000,
	}, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// Model returns the detector model the engine corrects for.
func (e *Engine) Model() *geometry.Model { return e.cfg.Model }

// PulseRateCorrection divides each dosimetric count by the pulse rate factor
// for its dose rate (cGy/min). Reference columns are copied.
func (e *Engine) PulseRateCorrection(counts, doseRate []float64) ([]float64, error) {
	return e.correctRow(e.cfg.PulseRate, counts, doseRate)
}

// DosePerPulseCorrection divides each dosimetric count by the dose per pulse
// factor for its dose per pulse (cGy/pulse). Reference columns are copied.
func (e *Engine) DosePerPulseCorrection(counts, dosePerPulse []float64) ([]float64, error) {
	return e.correctRow(e.cfg.DosePerPulse, counts, dosePerPulse)
}

func (e *Engine) correctRow(t *Table, counts, keys []float64) ([]float64, error) {
	if err := e.checkCols(len(counts)); err != nil {
		return nil, err
	}
	if len(keys) != len(counts) {
		return nil, perr.Correctionf("%s: %d lookup keys for %d counts", t.Name(), len(keys), len(counts))
	}
	out := make([]float64, len(counts))
	for d, v := range counts {
		if e.reference[d] {
			out[d] = v
			continue
		}
		f, err := t.Factor(keys[d])
		if err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeCorrection, "diode %d", d)
		}
		out[d] = v / f
	}
	return out, nil
}

// DoseRates derives the per-frame dose rate (cGy/min) of every column from
// accumulated counts. The first frame counts from zero.
func (e *Engine) DoseRates(acc parser.DiodeArray) (parser.DiodeArray, error) {
	if err := e.checkCols(acc.Cols()); err != nil {
		return parser.DiodeArray{}, err
	}
	out := make([][]float64, acc.Rows())
	for f := range out {
		row := make([]float64, acc.Cols())
		for d := range row {
			row[d] = e.increment(acc, f, d) * e.cfg.DosePerCount / e.frameMinutes
		}
		out[f] = row
	}
	return parser.NewDiodeArrayCols(out, acc.Cols())
}

// ApplyJagerCorrections runs the full chain with a background context.
func (e *Engine) ApplyJagerCorrections(acc parser.DiodeArray, cal Calibration, doseRate parser.DiodeArray) (parser.DiodeArray, error) {
	return e.ApplyJagerCorrectionsContext(context.Background(), acc, cal, doseRate)
}

// ApplyJagerCorrectionsContext corrects accumulated counts frame by frame.
//
// For frame f and dosimetric diode d the background is subtracted from the
// increment acc[f]-acc[f-1] and the result is divided by the intrinsic
// factor: the interior rows of IntrinsicCorrections, and the same
// calibration factor on the first and last frames whose intrinsic rows hold
// raw counts. That calibrated increment is divided by the pulse rate factor
// for doseRate[f][d], then by the dose per pulse factor for the dose per
// pulse re-derived from the pulse rate corrected increment. The corrected
// increments are prefix-summed per diode once every frame is done, so the
// result has the shape and accumulated meaning of acc. Reference columns are
// copied.
func (e *Engine) ApplyJagerCorrectionsContext(ctx context.Context, acc parser.DiodeArray, cal Calibration, doseRate parser.DiodeArray) (parser.DiodeArray, error) {
	if err := e.checkCols(acc.Cols()); err != nil {
		return parser.DiodeArray{}, err
	}
	if doseRate.Rows() != acc.Rows() || doseRate.Cols() != acc.Cols() {
		return parser.DiodeArray{}, perr.Correctionf("dose rate array is %dx%d, counts are %dx%d",
			doseRate.Rows(), doseRate.Cols(), acc.Rows(), acc.Cols())
	}
	intrinsic, err := e.IntrinsicCorrections(acc, cal)
	if err != nil {
		return parser.DiodeArray{}, err
	}
	edge, err := e.calibrationFactors(acc.Cols(), cal)
	if err != nil {
		return parser.DiodeArray{}, err
	}

	n := acc.Rows()
	increments := make([][]float64, n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)
	for f := 0; f < n; f++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			factors := edge
			if f > 0 && f < n-1 {
				factors = intrinsic.Row(f)
			}
			row, err := e.correctFrame(f, acc, doseRate, cal.Background, factors)
			if err != nil {
				return err
			}
			increments[f] = row
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return parser.DiodeArray{}, err
	}

	out := make([][]float64, n)
	running := make([]float64, acc.Cols())
	for f := range out {
		row := make([]float64, acc.Cols())
		for d := range row {
			if e.reference[d] {
				row[d] = acc.At(f, d)
				continue
			}
			running[d] += increments[f][d]
			row[d] = running[d]
		}
		out[f] = row
	}
	return parser.NewDiodeArrayCols(out, acc.Cols())
}

// correctFrame returns the corrected increments of frame f, calibrated with
// background and intrinsic. Reference columns are left zero; the caller
// copies them from the input.
func (e *Engine) correctFrame(f int, acc, doseRate parser.DiodeArray, background, intrinsic []float64) ([]float64, error) {
	row := make([]float64, acc.Cols())
	for d := range row {
		if e.reference[d] {
			continue
		}
		calibrated := (e.increment(acc, f, d) - background[d]) / intrinsic[d]

		prFactor, err := e.cfg.PulseRate.Factor(doseRate.At(f, d))
		if err != nil {
			return nil, elementError(err, f, d)
		}
		pr := calibrated / prFactor

		rate := pr * e.cfg.DosePerCount / e.frameMinutes
		dpp := rate / (60 * e.cfg.PulseRepetitionHz)
		dppFactor, err := e.cfg.DosePerPulse.Factor(dpp)
		if err != nil {
			return nil, elementError(err, f, d)
		}
		v := pr / dppFactor

		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, perr.Correctionf("frame %d, diode %d: corrected value is not finite", f, d)
		}
		row[d] = v
	}
	return row, nil
}

func (e *Engine) increment(acc parser.DiodeArray, f, d int) float64 {
	if f == 0 {
		return acc.At(0, d)
	}
	return acc.At(f, d) - acc.At(f-1, d)
}

func (e *Engine) checkCols(cols int) error {
	if cols != len(e.reference) {
		return perr.Correctionf("array has %d columns, detector model %s has %d diodes",
			cols, e.cfg.Model.Name(), len(e.reference))
	}
	return nil
}

func elementError(err error, f, d int) error {
	return perr.Wrapf(err, perr.ErrorCodeCorrection, "frame %d, diode %d", f, d)
}
