package parser

import (
	perr "github.com/user/arccheck_drc_go/internal/platform/errors"
)

// Section tokens that open a data block.
const (
	SectionFrame       = "Frame"
	SectionBackground  = "Background"
	SectionCalibration = "Calibration"
)

// Header keys the codec interprets. Every other key is carried verbatim.
const (
	KeyDiodeCount    = "Diode Count"
	KeyFrameCount    = "Frame Count"
	KeyRowsPerFrame  = "Rows per Frame"
	KeyDosePerCount  = "Dose per Count"
	KeyFrameInterval = "Frame Interval"
	KeyDecimalPlaces = "Decimal Places"
)

// DefaultPrecision is the number of decimals written when neither the header
// nor the codec specify one.
const DefaultPrecision = 6

// sectionTokens is the predefined set of block delimiters.
var sectionTokens = map[string]bool{
	SectionFrame:       true,
	SectionBackground:  true,
	SectionCalibration: true,
}

// DiodeArray is a rectangular rows x cols matrix of diode values in file
// order. It is never mutated after construction.
type DiodeArray struct {
	rows int
	cols int
	data []float64
}

// NewDiodeArray copies rows into a DiodeArray. Ragged input is a format error.
// An empty rows yields a 0x0 array; use NewDiodeArrayCols to keep the width.
func NewDiodeArray(rows [][]float64) (DiodeArray, error) {
	if len(rows) == 0 {
		return DiodeArray{}, nil
	}
	return NewDiodeArrayCols(rows, len(rows[0]))
}

// NewDiodeArrayCols is NewDiodeArray for a known width: every row must hold
// cols values, and no rows yields a 0 x cols array.
func NewDiodeArrayCols(rows [][]float64, cols int) (DiodeArray, error) {
	data := make([]float64, 0, len(rows)*cols)
	for i, r := range rows {
		if len(r) != cols {
			return DiodeArray{}, perr.Formatf(0, 0, "row %d has %d values, want %d", i, len(r), cols)
		}
		data = append(data, r...)
	}
	return DiodeArray{rows: len(rows), cols: cols, data: data}, nil
}

// MustDiodeArray is NewDiodeArray for literals known to be rectangular.
func MustDiodeArray(rows [][]float64) DiodeArray {
	a, err := NewDiodeArray(rows)
	if err != nil {
		panic(err)
	}
	return a
}

// Stack concatenates arrays vertically. All arrays must share a column count.
func Stack(arrays ...DiodeArray) (DiodeArray, error) {
	var out DiodeArray
	for i, a := range arrays {
		if a.rows == 0 {
			continue
		}
		if out.rows == 0 {
			out.cols = a.cols
		} else if a.cols != out.cols {
			return DiodeArray{}, perr.Formatf(0, 0, "array %d has %d columns, want %d", i, a.cols, out.cols)
		}
		out.data = append(out.data, a.data...)
		out.rows += a.rows
	}
	return out, nil
}

// Rows returns the number of rows.
func (a DiodeArray) Rows() int { return a.rows }

// Cols returns the number of diode columns.
func (a DiodeArray) Cols() int { return a.cols }

// At returns the value at row r, column c.
func (a DiodeArray) At(r, c int) float64 { return a.data[r*a.cols+c] }

// Row returns a copy of row r.
func (a DiodeArray) Row(r int) []float64 {
	return append([]float64(nil), a.data[r*a.cols:(r+1)*a.cols]...)
}

// Column returns a copy of column c across all rows.
func (a DiodeArray) Column(c int) []float64 {
	out := make([]float64, a.rows)
	for r := range out {
		out[r] = a.data[r*a.cols+c]
	}
	return out
}

// Values returns a copy of the matrix as row slices.
func (a DiodeArray) Values() [][]float64 {
	out := make([][]float64, a.rows)
	for r := range out {
		out[r] = a.Row(r)
	}
	return out
}

// Slice returns rows [from, to) as a new array.
func (a DiodeArray) Slice(from, to int) DiodeArray {
	return DiodeArray{
		rows: to - from,
		cols: a.cols,
		data: append([]float64(nil), a.data[from*a.cols:to*a.cols]...),
	}
}

// Header is the parsed key/value header of one file plus its verbatim text.
type Header struct {
	text   string
	eol    string
	keys   []string
	values map[string]string
	lines  map[string]int

	diodeCount   int
	frameCount   int
	rowsPerFrame int

	dosePerCount    float64
	hasDosePerCount bool
	frameInterval   float64
	hasInterval     bool
	decimals        int
	hasDecimals     bool
}

// Text returns the header lines as they appeared in the source, joined by
// "\n", without carriage returns or trailing blank lines.
func (h *Header) Text() string { return h.text }

// LineEnding returns "\r\n" when the source used CRLF line endings, else "\n".
func (h *Header) LineEnding() string {
	if h.eol == "" {
		return "\n"
	}
	return h.eol
}

// Keys returns header keys in first-seen order.
func (h *Header) Keys() []string { return append([]string(nil), h.keys...) }

// Get returns the value stored under key.
func (h *Header) Get(key string) (string, bool) {
	v, ok := h.values[key]
	return v, ok
}

// DiodeCount returns the number of diode columns per row.
func (h *Header) DiodeCount() int { return h.diodeCount }

// FrameCount returns the number of Frame blocks in the file.
func (h *Header) FrameCount() int { return h.frameCount }

// RowsPerFrame returns the number of rows in each Frame block.
func (h *Header) RowsPerFrame() int { return h.rowsPerFrame }

// DosePerCount returns the declared cGy per count, if any.
func (h *Header) DosePerCount() (float64, bool) { return h.dosePerCount, h.hasDosePerCount }

// FrameIntervalMS returns the declared frame interval in milliseconds, if any.
func (h *Header) FrameIntervalMS() (float64, bool) { return h.frameInterval, h.hasInterval }

// DecimalPlaces returns the declared output precision, if any.
func (h *Header) DecimalPlaces() (int, bool) { return h.decimals, h.hasDecimals }

// Block is one delimited data section.
type Block struct {
	Label  string // Frame, Background or Calibration
	Suffix string // rest of the section line, e.g. the frame number
	Line   int    // 1-based line of the section token
	Data   DiodeArray
}

// SectionLine renders the block's section line.
func (b Block) SectionLine() string {
	if b.Suffix == "" {
		return b.Label
	}
	return b.Label + " " + b.Suffix
}

// Select returns the blocks carrying label, in order.
func Select(blocks []Block, label string) []Block {
	var out []Block
	for _, b := range blocks {
		if b.Label == label {
			out = append(out, b)
		}
	}
	return out
}
