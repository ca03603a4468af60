package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/user/arccheck_drc_go/internal/observability"
	"github.com/user/arccheck_drc_go/internal/pipeline"
	"github.com/user/arccheck_drc_go/internal/platform/config"
	perr "github.com/user/arccheck_drc_go/internal/platform/errors"
	"github.com/user/arccheck_drc_go/internal/platform/logger"
)

// Options are the command-line settings of one run.
type Options struct {
	ConfigPath      string
	CalibrationPath string
	MeasurementPath string
	OutputPath      string
	ReportPath      string
	MetricsPath     string
	Model           string
	Diodes          []int
}

// App runs corrections and reports progress through the logger.
type App struct {
	ctx     context.Context
	metrics *observability.RunCollector
}

// NewApp creates an App with its own metrics registry.
func NewApp(ctx context.Context) (*App, error) {
	metrics, err := observability.NewRunCollector(prometheus.NewRegistry())
	if err != nil {
		return nil, err
	}
	return &App{ctx: ctx, metrics: metrics}, nil
}

func (a *App) sendStatus(format string, args ...any) {
	logger.C(a.ctx).Info().Msgf(format, args...)
}

// HandleCorrection runs one correction and, when asked, writes the PDF report
// and the metrics textfile. The metrics are written even for a failed run.
func (a *App) HandleCorrection(opt Options) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = perr.Newf(perr.ErrorCodeUnknown, "panic recovered: %v", r)
		}
		if opt.MetricsPath != "" {
			if werr := a.metrics.WriteTextfile(opt.MetricsPath); werr != nil && err == nil {
				err = werr
			}
		}
	}()

	if opt.MeasurementPath == "" || opt.CalibrationPath == "" || opt.OutputPath == "" {
		return perr.Configf("-measurement, -calibration and -out are required")
	}
	cfg, err := config.LoadRunConfig(opt.ConfigPath)
	if err != nil {
		return err
	}
	if opt.Model != "" {
		cfg.Model = opt.Model
	}

	a.sendStatus("Correcting %s with %s", opt.MeasurementPath, opt.CalibrationPath)
	in := pipeline.Inputs{
		Config:          cfg,
		CalibrationPath: opt.CalibrationPath,
		MeasurementPath: opt.MeasurementPath,
		OutputPath:      opt.OutputPath,
		Diodes:          opt.Diodes,
		Metrics:         a.metrics,
	}
	res, err := pipeline.Run(a.ctx, in)
	if err != nil {
		return err
	}
	a.sendStatus("Corrected %d frames of %d diodes, written to %s", len(res.Frames), res.Corrected.Cols(), opt.OutputPath)
	for _, w := range res.Summary.Warnings {
		a.sendStatus("Warning: %s", w)
	}

	if opt.ReportPath != "" {
		a.sendStatus("Generating PDF: %s", opt.ReportPath)
		if err := pipeline.WriteReport(a.ctx, opt.ReportPath, res, in); err != nil {
			return err
		}
	}
	return nil
}
