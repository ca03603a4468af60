package pipeline

import (
	"context"
	"path/filepath"
	"time"

	"github.com/user/arccheck_drc_go/internal/analysis"
	perr "github.com/user/arccheck_drc_go/internal/platform/errors"
	"github.com/user/arccheck_drc_go/internal/platform/logger"
	"github.com/user/arccheck_drc_go/internal/report"
)

// WriteReport renders the plots of res and writes the PDF report to path.
// A plot that cannot be drawn is logged and left out of the report.
func WriteReport(ctx context.Context, path string, res *Result, in Inputs) error {
	if res == nil || res.Summary == nil {
		return perr.Correctionf("no correction result to report")
	}
	log := logger.C(logger.WithRun(ctx, res.RunID))

	last := res.Raw.Rows() - 1
	relative := make([]float64, res.Raw.Cols())
	finalDose := res.Dose.Row(last)
	for _, r := range res.Summary.Results {
		relative[r.Diode] = r.RelativeChange
	}

	plots := make(map[string][]byte)
	add := func(key string, b []byte, err error) {
		if err != nil {
			log.Warn().Err(err).Str("plot", key).Msg("plot skipped")
			return
		}
		plots[key] = b
	}

	b, err := report.CreatePlanarHeatmap(res.Model, relative, "Relative change (corrected vs raw)", report.Diverging)
	add(report.PlotRelativeChange, b, err)
	b, err = report.CreatePlanarHeatmap(res.Model, finalDose, "Corrected dose (cGy)", report.Sequential)
	add(report.PlotCorrectedDose, b, err)

	curveDiodes := in.Diodes
	if len(curveDiodes) == 0 {
		for _, r := range analysis.Top(res.Summary.RankedByChange, 3) {
			curveDiodes = append(curveDiodes, r.Diode)
		}
	}
	if len(curveDiodes) > 0 {
		b, err = report.CreateDoseCurvePlot(res.Raw, res.Corrected, curveDiodes, res.DosePerCount, res.FrameIntervalMS)
		add(report.PlotDoseCurve, b, err)
	}
	if res.Histogram != nil {
		b, err = report.CreateHistogramPlot(res.Histogram)
		add(report.PlotHistogram, b, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	meta := report.Metadata{
		RunID:           res.RunID,
		Model:           res.Model.Name(),
		MeasurementFile: filepath.Base(in.MeasurementPath),
		CalibrationFile: filepath.Base(in.CalibrationPath),
		Frames:          len(res.Frames),
		Generated:       time.Now(),
	}
	for _, k := range res.Header.Keys() {
		v, _ := res.Header.Get(k)
		meta.Header = append(meta.Header, [2]string{k, v})
	}
	return report.BuildPDFReport(path, meta, res.Summary, plots)
}
