// Package geometry maps file-order diode indices onto the planar layout of a
// detector model and identifies the reference diodes excluded from correction.
package geometry

import (
	"math"
	"sort"
	"strings"

	perr "github.com/user/arccheck_drc_go/internal/platform/errors"
)

// Model is an immutable detector model. The mapping from file index to
// Position is total over [0, DiodeCount).
type Model struct {
	name       string
	positions  []Position
	dosimetric []int
	references []int
	grid       [][]int // grid[row][col] = file index, -1 when empty
	gridRows   int
	gridCols   int
}

// NewModel validates spec and builds the model.
func NewModel(spec ModelSpec) (*Model, error) {
	name := strings.ToLower(strings.TrimSpace(spec.Name))
	if name == "" {
		return nil, perr.Configf("detector model name is required")
	}
	if spec.DiodeCount <= 0 {
		return nil, perr.Configf("detector model %s: diode_count must be positive, got %d", name, spec.DiodeCount)
	}

	refs := make(map[int]bool, len(spec.Reference))
	for _, r := range spec.Reference {
		if r < 0 || r >= spec.DiodeCount {
			return nil, perr.Configf("detector model %s: reference diode %d outside [0,%d)", name, r, spec.DiodeCount)
		}
		refs[r] = true
	}
	nDosimetric := spec.DiodeCount - len(refs)

	rows, cols := spec.GridRows, spec.GridCols
	if rows == 0 && cols == 0 {
		rows, cols = 1, nDosimetric
	}
	if rows <= 0 || cols <= 0 {
		return nil, perr.Configf("detector model %s: grid must have positive rows and cols, got %dx%d", name, rows, cols)
	}

	cells := spec.Cells
	if len(cells) == 0 {
		if rows*cols < nDosimetric {
			return nil, perr.Configf("detector model %s: %dx%d grid cannot hold %d diodes", name, rows, cols, nDosimetric)
		}
		cells = make([][2]int, nDosimetric)
		for k := range cells {
			cells[k] = [2]int{rows - 1 - k/cols, k % cols}
		}
	}
	if len(cells) != nDosimetric {
		return nil, perr.Configf("detector model %s: %d cells declared for %d dosimetric diodes", name, len(cells), nDosimetric)
	}

	pitch := spec.PitchCM
	if pitch == 0 {
		pitch = 1
	}

	m := &Model{
		name:      name,
		positions: make([]Position, spec.DiodeCount),
		gridRows:  rows,
		gridCols:  cols,
		grid:      make([][]int, rows),
	}
	for r := range m.grid {
		m.grid[r] = make([]int, cols)
		for c := range m.grid[r] {
			m.grid[r][c] = -1
		}
	}

	k := 0
	for i := 0; i < spec.DiodeCount; i++ {
		if refs[i] {
			m.positions[i] = ReferencePosition
			m.references = append(m.references, i)
			continue
		}
		row, col := cells[k][0], cells[k][1]
		k++
		if row < 0 || row >= rows || col < 0 || col >= cols {
			return nil, perr.Configf("detector model %s: diode %d cell (%d,%d) outside %dx%d grid", name, i, row, col, rows, cols)
		}
		if m.grid[row][col] != -1 {
			return nil, perr.Configf("detector model %s: diodes %d and %d share cell (%d,%d)", name, m.grid[row][col], i, row, col)
		}
		m.grid[row][col] = i
		m.positions[i] = Position{
			Row: row,
			Col: col,
			X:   spec.OriginXCM + float64(col)*pitch,
			Y:   spec.OriginYCM - float64(row)*pitch,
		}
		m.dosimetric = append(m.dosimetric, i)
	}
	return m, nil
}

// Name returns the lower-case model name.
func (m *Model) Name() string { return m.name }

// DiodeCount returns the number of file-order columns, reference diodes included.
func (m *Model) DiodeCount() int { return len(m.positions) }

// GridSize returns the planar grid dimensions.
func (m *Model) GridSize() (rows, cols int) { return m.gridRows, m.gridCols }

// PlanarIndexOf returns the planar position of fileIndex.
func (m *Model) PlanarIndexOf(fileIndex int) (Position, error) {
	if fileIndex < 0 || fileIndex >= len(m.positions) {
		return Position{}, perr.UnknownDiodef("diode %d outside detector model %s (0..%d)", fileIndex, m.name, len(m.positions)-1)
	}
	return m.positions[fileIndex], nil
}

// IsReferenceDiode reports whether fileIndex is a reference/edge diode.
// Indices outside the model are not reference diodes.
func (m *Model) IsReferenceDiode(fileIndex int) bool {
	if fileIndex < 0 || fileIndex >= len(m.positions) {
		return false
	}
	return m.positions[fileIndex].Reference
}

// Dosimetric returns the file indices that take part in correction, ascending.
func (m *Model) Dosimetric() []int { return append([]int(nil), m.dosimetric...) }

// References returns the reference diode file indices, ascending.
func (m *Model) References() []int { return append([]int(nil), m.references...) }

// DiodeAt returns the file index occupying a grid cell.
func (m *Model) DiodeAt(row, col int) (int, bool) {
	if row < 0 || row >= m.gridRows || col < 0 || col >= m.gridCols {
		return 0, false
	}
	idx := m.grid[row][col]
	return idx, idx >= 0
}

// Planar remaps a file-order row onto the grid. Empty cells and reference
// diodes are NaN.
func (m *Model) Planar(values []float64) ([][]float64, error) {
	if len(values) != len(m.positions) {
		return nil, perr.UnknownDiodef("row has %d values, detector model %s has %d diodes", len(values), m.name, len(m.positions))
	}
	out := make([][]float64, m.gridRows)
	for r := range out {
		out[r] = make([]float64, m.gridCols)
		for c := range out[r] {
			if idx := m.grid[r][c]; idx >= 0 {
				out[r][c] = values[idx]
			} else {
				out[r][c] = math.NaN()
			}
		}
	}
	return out, nil
}

// Registry is an immutable set of detector models keyed by lower-case name.
type Registry struct {
	models map[string]*Model
}

// NewRegistry builds the built-in models plus the given specs. A spec may
// not redefine a built-in or another spec.
func NewRegistry(specs ...ModelSpec) (*Registry, error) {
	r := &Registry{models: make(map[string]*Model)}
	for _, s := range append(builtinSpecs(), specs...) {
		m, err := NewModel(s)
		if err != nil {
			return nil, err
		}
		if _, dup := r.models[m.name]; dup {
			return nil, perr.Configf("detector model %s declared twice", m.name)
		}
		r.models[m.name] = m
	}
	return r, nil
}

// Lookup returns the model registered under name (case-insensitive).
func (r *Registry) Lookup(name string) (*Model, error) {
	m, ok := r.models[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, perr.Configf("unknown detector model %q (known: %s)", name, strings.Join(r.Names(), ", "))
	}
	return m, nil
}

// Names lists registered model names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.models))
	for n := range r.models {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

var builtins = func() *Registry {
	r, err := NewRegistry()
	if err != nil {
		panic(err)
	}
	return r
}()

// Lookup returns a built-in detector model.
func Lookup(name string) (*Model, error) { return builtins.Lookup(name) }

// PlanarIndexOf resolves fileIndex against a built-in detector model.
func PlanarIndexOf(fileIndex int, model string) (Position, error) {
	m, err := Lookup(model)
	if err != nil {
		return Position{}, err
	}
	return m.PlanarIndexOf(fileIndex)
}

// IsReferenceDiode reports whether fileIndex is a reference diode of a
// built-in detector model. Unknown models have no reference diodes.
func IsReferenceDiode(fileIndex int, model string) bool {
	m, err := Lookup(model)
	if err != nil {
		return false
	}
	return m.IsReferenceDiode(fileIndex)
}
