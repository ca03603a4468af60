package analysis

// DiodeSummary holds the raw and corrected totals for a single dosimetric diode.
type DiodeSummary struct {
	Diode          int     // file-order index
	Row, Col       int     // planar grid cell
	X, Y           float64 // cm
	RawFinal       float64 // last accumulated raw count
	CorrectedFinal float64 // last accumulated corrected count
	Change         float64 // CorrectedFinal - RawFinal
	RelativeChange float64 // Change / RawFinal, NaN when RawFinal is zero
}

// RankedDiodeInfo is used for ranking diodes by different criteria.
type RankedDiodeInfo struct {
	Diode int
	Value float64 // The value being ranked (e.g. abs change)
}

// Summary holds all results of comparing a raw and a corrected run.
type Summary struct {
	Results                []DiodeSummary
	RankedByChange         []RankedDiodeInfo // Sorted by absolute change, descending
	RankedByRelativeChange []RankedDiodeInfo // Sorted by absolute relative change, descending
	MeanRelativeChange     float64
	StdRelativeChange      float64
	RelativeChangeRange    float64
	Warnings               []string
}

// NewSummary returns an empty Summary.
func NewSummary() *Summary {
	return &Summary{
		Results:                make([]DiodeSummary, 0),
		RankedByChange:         make([]RankedDiodeInfo, 0),
		RankedByRelativeChange: make([]RankedDiodeInfo, 0),
		Warnings:               make([]string, 0),
	}
}

// Histogram is the dose delivered per dose-rate interval for a set of diodes.
type Histogram struct {
	Bounds  []float64   // interval edges; the last interval is open-ended
	Labels  []string    // one per interval, e.g. "0-50", ">300"
	Diodes  []int       // file-order indices, one row of Dose each
	Dose    [][]float64 // Dose[i][k] = dose of Diodes[i] in interval k
	Dropped int         // frames whose rate fell below the first bound
}
