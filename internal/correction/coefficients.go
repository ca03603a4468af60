package correction

import (
	_ "embed"
	"os"

	"gopkg.in/yaml.v3"

	perr "github.com/user/arccheck_drc_go/internal/platform/errors"
)

// Table names used in errors and logs.
const (
	PulseRateTable    = "pulse_rate"
	DosePerPulseTable = "dose_per_pulse"
)

//go:embed coefficients_default.yaml
var defaultCoefficients []byte

// Coefficients is the pair of JCF tables loaded once per run.
type Coefficients struct {
	PulseRate    *Table
	DosePerPulse *Table
}

// tableSpec is either explicit rows or a Jager model sampled at bins.
type tableSpec struct {
	Rows     []Row       `yaml:"rows"`
	Jager    *JagerModel `yaml:"jager"`
	Bins     []float64   `yaml:"bins"`
	BinScale float64     `yaml:"bin_scale"`
}

type coefficientsFile struct {
	PulseRate    tableSpec `yaml:"pulse_rate"`
	DosePerPulse tableSpec `yaml:"dose_per_pulse"`
}

// DefaultCoefficients returns the built-in ArcCheck dataset.
func DefaultCoefficients() (*Coefficients, error) {
	return ParseCoefficients(defaultCoefficients)
}

// LoadCoefficients reads a YAML dataset; an empty path selects the built-in one.
func LoadCoefficients(path string) (*Coefficients, error) {
	if path == "" {
		return DefaultCoefficients()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, perr.IOf(err, "read coefficients %s", path)
	}
	c, err := ParseCoefficients(data)
	if err != nil {
		return nil, perr.WithOp(err, path)
	}
	return c, nil
}

// ParseCoefficients decodes a YAML dataset.
func ParseCoefficients(data []byte) (*Coefficients, error) {
	var f coefficientsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeConfig, "parse coefficients")
	}
	pr, err := f.PulseRate.build(PulseRateTable)
	if err != nil {
		return nil, err
	}
	dpp, err := f.DosePerPulse.build(DosePerPulseTable)
	if err != nil {
		return nil, err
	}
	return &Coefficients{PulseRate: pr, DosePerPulse: dpp}, nil
}

func (s tableSpec) build(name string) (*Table, error) {
	switch {
	case len(s.Rows) > 0 && s.Jager != nil:
		return nil, perr.Configf("%s: give either rows or jager, not both", name)
	case len(s.Rows) > 0:
		return NewTable(name, s.Rows)
	case s.Jager != nil:
		return s.Jager.Tabulate(name, s.Bins, s.BinScale)
	default:
		return nil, perr.Configf("%s: table is missing", name)
	}
}
