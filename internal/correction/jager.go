package correction

import "math"

// JagerModel is the exponential detector response fit c - a*exp(-b*x), with
// x in background and calibration corrected counts per frame.
type JagerModel struct {
	A float64 `yaml:"a"`
	B float64 `yaml:"b"`
	C float64 `yaml:"c"`
}

// Published ArcCheck fits.
var (
	PulseRateJager    = JagerModel{A: 0.035, B: 5.21e-5, C: 1}
	DosePerPulseJager = JagerModel{A: 0.0978, B: 3.33e-5, C: 1.011}
)

// Factor evaluates the model at x.
func (j JagerModel) Factor(x float64) float64 {
	return j.C - j.A*math.Exp(-j.B*x)
}

// Tabulate samples the model at bins. Each bin is multiplied by scale before
// evaluation, which converts the table key (e.g. cGy/min) into the model's
// counts per frame; a zero scale means 1.
func (j JagerModel) Tabulate(name string, bins []float64, scale float64) (*Table, error) {
	if scale == 0 {
		scale = 1
	}
	rows := make([]Row, len(bins))
	for i, b := range bins {
		rows[i] = Row{Bin: b, Factor: j.Factor(b * scale)}
	}
	return NewTable(name, rows)
}
