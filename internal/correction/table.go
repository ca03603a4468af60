package correction

import (
	"math"
	"sort"

	perr "github.com/user/arccheck_drc_go/internal/platform/errors"
)

// Row is one {bin, factor} entry of a correction table.
type Row struct {
	Bin    float64 `yaml:"bin"`
	Factor float64 `yaml:"factor"`
}

// Table is a read-only JCF lookup table sorted by bin.
//
// Factor contract: a key between two bins is linearly interpolated between
// the bracketing rows; a key below the first bin or above the last returns
// the edge factor unchanged (clamp, never extrapolate).
type Table struct {
	name    string
	bins    []float64
	factors []float64
}

// NewTable validates rows and builds a table. Rows may be given in any order
// but bins must be distinct, and there must be at least two rows with
// finite bins and positive finite factors.
func NewTable(name string, rows []Row) (*Table, error) {
	if len(rows) < 2 {
		return nil, perr.Correctionf("%s table has %d rows, interpolation needs at least 2", name, len(rows))
	}
	sorted := append([]Row(nil), rows...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Bin < sorted[j].Bin })

	t := &Table{
		name:    name,
		bins:    make([]float64, len(sorted)),
		factors: make([]float64, len(sorted)),
	}
	for i, r := range sorted {
		if math.IsNaN(r.Bin) || math.IsInf(r.Bin, 0) {
			return nil, perr.Correctionf("%s table: bin %v is not finite", name, r.Bin)
		}
		if !(r.Factor > 0) || math.IsInf(r.Factor, 0) {
			return nil, perr.Correctionf("%s table: factor %v at bin %g must be positive", name, r.Factor, r.Bin)
		}
		if i > 0 && r.Bin == sorted[i-1].Bin {
			return nil, perr.Correctionf("%s table: duplicate bin %g", name, r.Bin)
		}
		t.bins[i], t.factors[i] = r.Bin, r.Factor
	}
	return t, nil
}

// MustTable is NewTable for literal tables.
func MustTable(name string, rows ...Row) *Table {
	t, err := NewTable(name, rows)
	if err != nil {
		panic(err)
	}
	return t
}

// Name returns the table name used in errors.
func (t *Table) Name() string { return t.name }

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.bins) }

// Rows returns a copy of the sorted rows.
func (t *Table) Rows() []Row {
	out := make([]Row, len(t.bins))
	for i := range out {
		out[i] = Row{Bin: t.bins[i], Factor: t.factors[i]}
	}
	return out
}

// Bracket returns the indices of the rows bounding x. Outside the table both
// indices name the edge row.
func (t *Table) Bracket(x float64) (lo, hi int) {
	n := len(t.bins)
	i := sort.SearchFloat64s(t.bins, x) // first bin >= x
	switch {
	case i == 0:
		return 0, 0
	case i == n:
		return n - 1, n - 1
	case t.bins[i] == x:
		return i, i
	default:
		return i - 1, i
	}
}

// Factor returns the interpolated correction factor for x.
func (t *Table) Factor(x float64) (float64, error) {
	if t == nil || len(t.bins) < 2 {
		return 0, perr.Correctionf("correction table has fewer than 2 rows")
	}
	if math.IsNaN(x) {
		return 0, perr.Correctionf("%s table: lookup key is NaN", t.name)
	}
	lo, hi := t.Bracket(x)
	if lo == hi {
		return t.factors[lo], nil
	}
	w := (x - t.bins[lo]) / (t.bins[hi] - t.bins[lo])
	return t.factors[lo] + w*(t.factors[hi]-t.factors[lo]), nil
}
