package geometry

import "math"

// ArcCheck is the name of the built-in ArcCheck detector model.
const ArcCheck = "arccheck"

const (
	arcCheckDiodes   = 1386 // dosimetric diodes
	arcCheckGridRows = 41
	arcCheckGridCols = 131
	arcCheckPerRow   = 66 // diodes per populated grid row
	arcCheckPitchCM  = 0.5
	arcCheckOriginX  = -32.5
	arcCheckOriginY  = 10.0
)

// Position is the planar location of one file-order diode.
// Reference diodes carry Reference=true, Row/Col = -1 and NaN coordinates.
type Position struct {
	Row       int
	Col       int
	X         float64 // cm
	Y         float64 // cm
	Reference bool
}

// ReferencePosition is the sentinel returned for reference/edge diodes.
var ReferencePosition = Position{Row: -1, Col: -1, X: math.NaN(), Y: math.NaN(), Reference: true}

// ModelSpec declares a detector model. Cells, when given, lists the grid cell
// ([row, col]) of each dosimetric diode in file order; otherwise the diodes
// fill the grid row by row starting at the bottom-left cell.
type ModelSpec struct {
	Name       string   `yaml:"name" validate:"required"`
	DiodeCount int      `yaml:"diode_count" validate:"gt=0"`
	Reference  []int    `yaml:"reference"`
	GridRows   int      `yaml:"grid_rows" validate:"gte=0"`
	GridCols   int      `yaml:"grid_cols" validate:"gte=0"`
	PitchCM    float64  `yaml:"pitch_cm" validate:"gte=0"`
	OriginXCM  float64  `yaml:"origin_x_cm"`
	OriginYCM  float64  `yaml:"origin_y_cm"`
	Cells      [][2]int `yaml:"cells"`
}

// arcCheckSpec reproduces the SNC Patient planar display: diode n (1-based)
// sits on every second row and column, filled left to right from the bottom
// row upwards. File column 0 is the reference diode.
func arcCheckSpec() ModelSpec {
	cells := make([][2]int, 0, arcCheckDiodes)
	for n := 0; n < arcCheckDiodes; n++ {
		row := (arcCheckGridRows - 1) - 2*(n/arcCheckPerRow)
		col := 2 * (n % arcCheckPerRow)
		cells = append(cells, [2]int{row, col})
	}
	return ModelSpec{
		Name:       ArcCheck,
		DiodeCount: arcCheckDiodes + 1,
		Reference:  []int{0},
		GridRows:   arcCheckGridRows,
		GridCols:   arcCheckGridCols,
		PitchCM:    arcCheckPitchCM,
		OriginXCM:  arcCheckOriginX,
		OriginYCM:  arcCheckOriginY,
		Cells:      cells,
	}
}

// builtinSpecs lists the detector models every registry knows about.
func builtinSpecs() []ModelSpec {
	return []ModelSpec{arcCheckSpec()}
}
