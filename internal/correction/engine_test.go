package correction

import (
	"context"
	stderrs "errors"
	"math"
	"testing"

	"github.com/user/arccheck_drc_go/internal/geometry"
	"github.com/user/arccheck_drc_go/internal/parser"
	perr "github.com/user/arccheck_drc_go/internal/platform/errors"
	kit "github.com/user/arccheck_drc_go/internal/platform/testkit"
)

// fourDiodeModel has diode 4 (file index 3) as its reference channel.
func fourDiodeModel(t *testing.T) *geometry.Model {
	t.Helper()
	m, err := geometry.NewModel(geometry.ModelSpec{Name: "four", DiodeCount: 4, Reference: []int{3}})
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}
	return m
}

func newEngine(t *testing.T, pr, dpp *Table, workers int) *Engine {
	t.Helper()
	e, err := NewEngine(Config{
		PulseRate:         pr,
		DosePerPulse:      dpp,
		Model:             fourDiodeModel(t),
		DosePerCount:      7.7597e-6,
		FrameIntervalMS:   50,
		PulseRepetitionHz: 360,
		Workers:           workers,
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func scenarioTables() (*Table, *Table) {
	return MustTable(PulseRateTable, Row{200, 1.00}, Row{400, 1.02}),
		MustTable(DosePerPulseTable, Row{1, 1.00}, Row{2, 1.01})
}

var scenarioCounts = [][]float64{
	{100, 100, 100, 50},
	{110, 100, 105, 50},
	{120, 100, 110, 50},
}

func TestScenarioThreeFramesFourDiodes(t *testing.T) {
	pr, dpp := scenarioTables()
	e := newEngine(t, pr, dpp, 1)

	acc := parser.MustDiodeArray(scenarioCounts)
	cal, err := NewCalibration([]float64{0, 0, 0, 0}, []float64{105, 100, 105, 50})
	if err != nil {
		t.Fatalf("NewCalibration: %v", err)
	}
	rate, err := e.DoseRates(acc)
	if err != nil {
		t.Fatalf("DoseRates: %v", err)
	}

	out, err := e.ApplyJagerCorrections(acc, cal, rate)
	if err != nil {
		t.Fatalf("ApplyJagerCorrections: %v", err)
	}
	if out.Rows() != 3 || out.Cols() != 4 {
		t.Fatalf("shape = %dx%d", out.Rows(), out.Cols())
	}
	for f := 0; f < 3; f++ {
		if out.At(f, 3) != 50 {
			t.Fatalf("reference diode frame %d = %v, want 50", f, out.At(f, 3))
		}
	}

	// Rates and doses per pulse fall below both tables, so only calibration
	// acts: each diode scales by cal/mean(cal) of the dosimetric diodes.
	mean := (105.0 + 100.0 + 105.0) / 3
	for f := 0; f < 3; f++ {
		for d := 0; d < 3; d++ {
			want := acc.At(f, d) * cal.Factors[d] / mean
			if !kit.AlmostEqual(out.At(f, d), want, 1e-9) {
				t.Fatalf("corrected[%d][%d] = %v, want %v", f, d, out.At(f, d), want)
			}
			if rel := math.Abs(out.At(f, d)/acc.At(f, d) - 1); rel > 0.05 {
				t.Fatalf("corrected[%d][%d] = %v is %.1f%% off raw %v", f, d, out.At(f, d), rel*100, acc.At(f, d))
			}
		}
	}

	intrinsic, err := e.IntrinsicCorrections(acc, cal)
	if err != nil {
		t.Fatalf("IntrinsicCorrections: %v", err)
	}
	for _, f := range []int{0, 2} {
		for d := 0; d < 3; d++ {
			if intrinsic.At(f, d) != acc.At(f, d) {
				t.Fatalf("intrinsic[%d][%d] = %v, want raw %v", f, d, intrinsic.At(f, d), acc.At(f, d))
			}
		}
	}
	for d, want := range []float64{mean / 105, mean / 100, mean / 105, 50} {
		if !kit.AlmostEqual(intrinsic.At(1, d), want, 1e-12) {
			t.Fatalf("interior factor %d = %v, want %v", d, intrinsic.At(1, d), want)
		}
	}
}

func TestBackgroundAndCalibrationReachEveryFrame(t *testing.T) {
	flat := MustTable(PulseRateTable, Row{0, 1}, Row{1, 1})
	e := newEngine(t, flat, MustTable(DosePerPulseTable, Row{0, 1}, Row{1, 1}), 2)
	cal, err := NewCalibration([]float64{5, 5, 5, 0}, []float64{1.2, 0.8, 1.0, 3})
	if err != nil {
		t.Fatalf("NewCalibration: %v", err)
	}

	rows := [][]float64{
		{100, 100, 100, 50},
		{200, 200, 200, 50},
		{300, 300, 300, 50},
		{400, 400, 400, 50},
	}
	// (100-5) per frame, scaled by 1.2, 0.8 and 1.0 around a mean of 1.0.
	perFrame := []float64{114, 76, 95}
	for _, n := range []int{1, 2, 3, 4} {
		acc := parser.MustDiodeArray(rows[:n])
		rate, _ := e.DoseRates(acc)
		out, err := e.ApplyJagerCorrections(acc, cal, rate)
		if err != nil {
			t.Fatalf("%d frames: %v", n, err)
		}
		for f := 0; f < n; f++ {
			for d, inc := range perFrame {
				if want := inc * float64(f+1); !kit.AlmostEqual(out.At(f, d), want, 1e-9) {
					t.Fatalf("%d frames: corrected[%d][%d] = %v, want %v", n, f, d, out.At(f, d), want)
				}
			}
			if out.At(f, 3) != 50 {
				t.Fatalf("%d frames: reference changed at frame %d", n, f)
			}
		}
	}
}

func TestApplyJagerCorrectionsKeepsShapeOfEmptyInput(t *testing.T) {
	pr, dpp := scenarioTables()
	e := newEngine(t, pr, dpp, 2)
	acc := parser.MustDiodeArray(scenarioCounts).Slice(0, 0)
	cal, _ := NewCalibration(make([]float64, 4), []float64{1, 1, 1, 1})

	rate, err := e.DoseRates(acc)
	if err != nil || rate.Rows() != 0 || rate.Cols() != 4 {
		t.Fatalf("DoseRates = %dx%d, %v", rate.Rows(), rate.Cols(), err)
	}
	out, err := e.ApplyJagerCorrections(acc, cal, rate)
	if err != nil {
		t.Fatalf("ApplyJagerCorrections: %v", err)
	}
	if out.Rows() != 0 || out.Cols() != 4 {
		t.Fatalf("shape = %dx%d, want 0x4", out.Rows(), out.Cols())
	}
}

func TestApplyJagerCorrectionsKnownValues(t *testing.T) {
	pr := MustTable(PulseRateTable, Row{0, 2}, Row{1, 2})
	dpp := MustTable(DosePerPulseTable, Row{0, 1}, Row{1, 1})
	e := newEngine(t, pr, dpp, 1)

	acc := parser.MustDiodeArray(scenarioCounts)
	cal, _ := NewCalibration(make([]float64, 4), []float64{1, 1, 1, 1})
	rate, _ := e.DoseRates(acc)

	out, err := e.ApplyJagerCorrections(acc, cal, rate)
	if err != nil {
		t.Fatalf("ApplyJagerCorrections: %v", err)
	}
	kit.MustRowsEqual(t, out.Values(), [][]float64{
		{50, 50, 50, 50},
		{55, 50, 52.5, 50},
		{60, 50, 55, 50},
	}, 1e-9)
}

func TestApplyJagerCorrectionsIdentity(t *testing.T) {
	flat := MustTable(PulseRateTable, Row{0, 1}, Row{1, 1})
	e := newEngine(t, flat, MustTable(DosePerPulseTable, Row{0, 1}, Row{1, 1}), 1)

	acc := parser.MustDiodeArray([][]float64{
		{0, 10, 3, 7},
		{40, 10, 9, 7},
		{95, 12, 9, 7},
		{130, 30, 18, 7},
	})
	cal, _ := NewCalibration(make([]float64, 4), []float64{1, 1, 1, 1})
	rate, _ := e.DoseRates(acc)
	out, err := e.ApplyJagerCorrections(acc, cal, rate)
	if err != nil {
		t.Fatalf("ApplyJagerCorrections: %v", err)
	}
	kit.MustRowsEqual(t, out.Values(), acc.Values(), 1e-9)
}

func TestApplyJagerCorrectionsParallelMatchesSerial(t *testing.T) {
	pr, dpp := scenarioTables()
	rows := make([][]float64, 40)
	for f := range rows {
		rows[f] = []float64{float64(f * 90), float64(f * f), float64(f * 300), 50}
	}
	acc := parser.MustDiodeArray(rows)
	cal, _ := NewCalibration([]float64{1, 2, 3, 0}, []float64{1.01, 0.99, 1.02, 1})

	serial := newEngine(t, pr, dpp, 1)
	parallel := newEngine(t, pr, dpp, 8)
	rate, _ := serial.DoseRates(acc)

	a, err := serial.ApplyJagerCorrections(acc, cal, rate)
	if err != nil {
		t.Fatalf("serial: %v", err)
	}
	b, err := parallel.ApplyJagerCorrectionsContext(context.Background(), acc, cal, rate)
	if err != nil {
		t.Fatalf("parallel: %v", err)
	}
	kit.MustRowsEqual(t, b.Values(), a.Values(), 0)
	if a.Rows() != acc.Rows() || a.Cols() != acc.Cols() {
		t.Fatalf("shape changed")
	}
	for f := 0; f < acc.Rows(); f++ {
		if a.At(f, 3) != acc.At(f, 3) {
			t.Fatalf("reference column changed at frame %d", f)
		}
	}
}

func TestApplyJagerCorrectionsErrors(t *testing.T) {
	pr, dpp := scenarioTables()
	e := newEngine(t, pr, dpp, 2)
	acc := parser.MustDiodeArray(scenarioCounts)
	cal, _ := NewCalibration(make([]float64, 4), []float64{1, 1, 1, 1})

	short := parser.MustDiodeArray([][]float64{{1, 2, 3, 4}})
	if _, err := e.ApplyJagerCorrections(acc, cal, short); !perr.IsCode(err, perr.ErrorCodeCorrection) {
		t.Fatalf("rate shape err = %v", err)
	}

	narrow := parser.MustDiodeArray([][]float64{{1, 2, 3}})
	if _, err := e.ApplyJagerCorrections(narrow, cal, narrow); !perr.IsCode(err, perr.ErrorCodeCorrection) {
		t.Fatalf("column mismatch err = %v", err)
	}

	rows := [][]float64{{1, 1, 1, 1}, {1, math.NaN(), 1, 1}, {1, 1, 1, 1}}
	nanRate := parser.MustDiodeArray(rows)
	_, err := e.ApplyJagerCorrections(acc, cal, nanRate)
	if !perr.IsCode(err, perr.ErrorCodeCorrection) {
		t.Fatalf("NaN rate err = %v", err)
	}
	kit.MustContain(t, err.Error(), "frame 1, diode 1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rate, _ := e.DoseRates(acc)
	if _, err := e.ApplyJagerCorrectionsContext(ctx, acc, cal, rate); !stderrs.Is(err, context.Canceled) {
		t.Fatalf("cancelled err = %v", err)
	}
}

func TestPulseRateCorrection(t *testing.T) {
	pr, dpp := scenarioTables()
	e := newEngine(t, pr, dpp, 1)

	got, err := e.PulseRateCorrection([]float64{100, 102, 50, 7}, []float64{200, 400, 300, 9999})
	if err != nil {
		t.Fatalf("PulseRateCorrection: %v", err)
	}
	want := []float64{100, 100, 50 / 1.01, 7}
	for d := range want {
		if !kit.AlmostEqual(got[d], want[d], 1e-9) {
			t.Fatalf("diode %d = %v, want %v", d, got[d], want[d])
		}
	}

	if _, err := e.PulseRateCorrection([]float64{1, 2, 3, 4}, []float64{1, 2, 3}); !perr.IsCode(err, perr.ErrorCodeCorrection) {
		t.Fatalf("length mismatch err = %v", err)
	}
	if _, err := e.PulseRateCorrection([]float64{1, 2, 3}, []float64{1, 2, 3}); !perr.IsCode(err, perr.ErrorCodeCorrection) {
		t.Fatalf("model mismatch err = %v", err)
	}
	// NaN on the reference column is never looked up.
	if _, err := e.PulseRateCorrection([]float64{1, 2, 3, 4}, []float64{1, 2, 3, math.NaN()}); err != nil {
		t.Fatalf("reference NaN err = %v", err)
	}
}

func TestDosePerPulseCorrection(t *testing.T) {
	pr, dpp := scenarioTables()
	e := newEngine(t, pr, dpp, 1)

	got, err := e.DosePerPulseCorrection([]float64{101, 100, 100, 5}, []float64{2, 0.5, 1.5, 2})
	if err != nil {
		t.Fatalf("DosePerPulseCorrection: %v", err)
	}
	want := []float64{100, 100, 100 / 1.005, 5}
	for d := range want {
		if !kit.AlmostEqual(got[d], want[d], 1e-9) {
			t.Fatalf("diode %d = %v, want %v", d, got[d], want[d])
		}
	}
	if _, err := e.DosePerPulseCorrection([]float64{1, 2, 3, 4}, []float64{math.NaN(), 1, 1, 1}); !perr.IsCode(err, perr.ErrorCodeCorrection) {
		t.Fatalf("NaN key err = %v", err)
	}
}

func TestIntrinsicZeroCalibrationGuard(t *testing.T) {
	pr, dpp := scenarioTables()
	e := newEngine(t, pr, dpp, 1)

	acc := parser.MustDiodeArray([][]float64{
		{10, 10, 0, 5},
		{20, 20, 0, 5},
		{30, 30, 0, 5},
		{40, 40, 0, 5},
	})
	cal, _ := NewCalibration([]float64{1, 1, 1, 1}, []float64{0, math.NaN(), 2, 0})
	out, err := e.IntrinsicCorrections(acc, cal)
	if err != nil {
		t.Fatalf("IntrinsicCorrections: %v", err)
	}
	for f := 1; f <= 2; f++ {
		if out.At(f, 0) != 1.0 || out.At(f, 1) != 1.0 {
			t.Fatalf("frame %d: zero/NaN calibration factor = %v, %v", f, out.At(f, 0), out.At(f, 1))
		}
		// The only usable diode is its own mean.
		if out.At(f, 2) != 1.0 {
			t.Fatalf("frame %d: sole calibrated diode factor = %v", f, out.At(f, 2))
		}
		if out.At(f, 3) != 5 {
			t.Fatalf("frame %d: reference column changed", f)
		}
	}
	kit.MustRowsEqual(t, [][]float64{out.Row(0), out.Row(3)}, [][]float64{acc.Row(0), acc.Row(3)}, 0)

	negative, _ := NewCalibration(make([]float64, 4), []float64{-1, 2, 4, 0})
	out, err = e.IntrinsicCorrections(acc, negative)
	if err != nil {
		t.Fatalf("IntrinsicCorrections: %v", err)
	}
	if out.At(1, 0) != 1.0 || out.At(1, 1) != 1.5 || out.At(1, 2) != 0.75 {
		t.Fatalf("factors = %v", out.Row(1))
	}

	if _, err := e.IntrinsicCorrections(acc, Calibration{}); !perr.IsCode(err, perr.ErrorCodeCorrection) {
		t.Fatalf("short calibration err = %v", err)
	}
}

func TestDoseRates(t *testing.T) {
	pr, dpp := scenarioTables()
	e := newEngine(t, pr, dpp, 1)
	rate, err := e.DoseRates(parser.MustDiodeArray(scenarioCounts))
	if err != nil {
		t.Fatalf("DoseRates: %v", err)
	}
	perCount := 7.7597e-6 / (50.0 / 60000.0)
	if !kit.AlmostEqual(rate.At(0, 0), 100*perCount, 1e-12) || !kit.AlmostEqual(rate.At(1, 2), 5*perCount, 1e-12) {
		t.Fatalf("rates = %v", rate.Values())
	}
	if rate.At(2, 3) != 0 {
		t.Fatalf("constant column should have zero rate")
	}
}

func TestNewEngineValidation(t *testing.T) {
	pr, dpp := scenarioTables()
	m := fourDiodeModel(t)
	cases := []struct {
		cfg  Config
		code perr.ErrorCode
	}{
		{Config{DosePerPulse: dpp, Model: m, DosePerCount: 1, FrameIntervalMS: 1, PulseRepetitionHz: 1}, perr.ErrorCodeCorrection},
		{Config{PulseRate: pr, Model: m, DosePerCount: 1, FrameIntervalMS: 1, PulseRepetitionHz: 1}, perr.ErrorCodeCorrection},
		{Config{PulseRate: pr, DosePerPulse: dpp, DosePerCount: 1, FrameIntervalMS: 1, PulseRepetitionHz: 1}, perr.ErrorCodeConfig},
		{Config{PulseRate: pr, DosePerPulse: dpp, Model: m, FrameIntervalMS: 1, PulseRepetitionHz: 1}, perr.ErrorCodeConfig},
	}
	for i, c := range cases {
		if _, err := NewEngine(c.cfg); !perr.IsCode(err, c.code) {
			t.Fatalf("case %d: err = %v, want %v", i, err, c.code)
		}
	}
	e, err := NewEngine(Config{PulseRate: pr, DosePerPulse: dpp, Model: m, DosePerCount: 1, FrameIntervalMS: 1, PulseRepetitionHz: 1})
	if err != nil || e.Config().Workers != 1 || e.Model() != m {
		t.Fatalf("defaults: %+v, %v", e, err)
	}
}

func TestCalibrationFromBlocks(t *testing.T) {
	blocks := []parser.Block{
		{Label: parser.SectionBackground, Data: parser.MustDiodeArray([][]float64{{1, 2}})},
		{Label: parser.SectionCalibration, Data: parser.MustDiodeArray([][]float64{{0.9, 1.1}})},
	}
	cal, err := CalibrationFromBlocks(blocks)
	if err != nil {
		t.Fatalf("CalibrationFromBlocks: %v", err)
	}
	if cal.Background[1] != 2 || cal.Factors[0] != 0.9 {
		t.Fatalf("cal = %+v", cal)
	}

	cal, err = CalibrationFromBlocks(blocks[1:])
	if err != nil || cal.Background[0] != 0 || cal.Background[1] != 0 {
		t.Fatalf("missing background should be zeros: %+v, %v", cal, err)
	}
	if _, err := CalibrationFromBlocks(blocks[:1]); !perr.IsCode(err, perr.ErrorCodeFormat) {
		t.Fatalf("missing calibration err = %v", err)
	}
	if _, err := NewCalibration([]float64{1}, []float64{1, 2}); !perr.IsCode(err, perr.ErrorCodeCorrection) {
		t.Fatalf("length mismatch err = %v", err)
	}
}
