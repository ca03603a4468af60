// Package pipeline drives one correction run: load configuration and files,
// correct the measurement, serialize it and summarize the change.
package pipeline

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/user/arccheck_drc_go/internal/analysis"
	"github.com/user/arccheck_drc_go/internal/correction"
	"github.com/user/arccheck_drc_go/internal/geometry"
	"github.com/user/arccheck_drc_go/internal/observability"
	"github.com/user/arccheck_drc_go/internal/parser"
	"github.com/user/arccheck_drc_go/internal/platform/config"
	perr "github.com/user/arccheck_drc_go/internal/platform/errors"
	"github.com/user/arccheck_drc_go/internal/platform/logger"
)

// Inputs names the files and settings of a run.
type Inputs struct {
	Config          *config.RunConfig // nil loads defaults plus ARCCHECK_* overrides
	CalibrationPath string
	MeasurementPath string
	OutputPath      string // corrected file; empty keeps the output in Result only
	Diodes          []int  // histogram diodes; empty picks the diode changed most
	Metrics         *observability.RunCollector
}

// CorrectedFrame is a corrected Frame block in vendor shape.
type CorrectedFrame struct {
	parser.Block
	Index int // position among the Frame blocks, 0-based
}

// Result is everything a run produced.
type Result struct {
	RunID     string
	Model     *geometry.Model
	Header    *parser.Header
	Raw       parser.DiodeArray // accumulated counts as measured
	DoseRate  parser.DiodeArray // cGy/min per row
	Corrected parser.DiodeArray // accumulated corrected counts
	Frames    []CorrectedFrame
	Blocks    []parser.Block // output blocks, file order
	Output    string         // serialized corrected file
	Dose      parser.DiodeArray
	Clamped   int
	Summary   *analysis.Summary
	Histogram *analysis.Histogram

	DosePerCount    float64
	FrameIntervalMS float64
}

// Run executes one correction. A malformed file, an unknown diode or a
// correction failure aborts the run and nothing is written.
func Run(ctx context.Context, in Inputs) (res *Result, err error) {
	runID := uuid.NewString()
	ctx = logger.WithRun(ctx, runID)
	log := logger.C(ctx)
	start := time.Now()
	defer func() {
		in.Metrics.RunFinished(err)
		in.Metrics.ObserveStage("total", start)
		if err != nil {
			log.Error().Err(err).Str("code", perr.CodeOf(err).String()).Msg("correction run failed")
		}
	}()

	cfg := in.Config
	if cfg == nil {
		if cfg, err = config.LoadRunConfig(""); err != nil {
			return nil, err
		}
	} else if err = cfg.Validate(); err != nil {
		return nil, err
	}
	model, err := cfg.DetectorModel()
	if err != nil {
		return nil, err
	}
	coeffs, err := correction.LoadCoefficients(cfg.Coefficients)
	if err != nil {
		return nil, err
	}
	codec := parser.NewCodec(parser.WithModel(model), parser.WithPrecision(cfg.Precision))
	log.Info().
		Str("model", model.Name()).
		Str("measurement", in.MeasurementPath).
		Str("calibration", in.CalibrationPath).
		Int("workers", cfg.Workers).
		Msg("correction run started")

	stage := time.Now()
	_, calBlocks, err := codec.ReadFile(in.CalibrationPath)
	if err != nil {
		return nil, err
	}
	cal, err := correction.CalibrationFromBlocks(calBlocks)
	if err != nil {
		return nil, perr.WithOp(err, in.CalibrationPath)
	}
	header, blocks, err := codec.ReadFile(in.MeasurementPath)
	if err != nil {
		return nil, err
	}
	in.Metrics.ObserveStage("parse", stage)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res = &Result{
		RunID:           runID,
		Model:           model,
		Header:          header,
		DosePerCount:    cfg.DosePerCount,
		FrameIntervalMS: cfg.FrameIntervalMS,
	}
	if v, ok := header.DosePerCount(); ok {
		res.DosePerCount = v
	}
	if v, ok := header.FrameIntervalMS(); ok {
		res.FrameIntervalMS = v
	}

	frames := parser.Select(blocks, parser.SectionFrame)
	arrays := make([]parser.DiodeArray, len(frames))
	for i, b := range frames {
		arrays[i] = b.Data
	}
	if res.Raw, err = parser.Stack(arrays...); err != nil {
		return nil, err
	}
	if res.Raw.Rows() == 0 {
		return nil, perr.WithOp(perr.Formatf(0, 0, "measurement has no frames"), in.MeasurementPath)
	}

	stage = time.Now()
	engine, err := correction.NewEngine(correction.Config{
		PulseRate:         coeffs.PulseRate,
		DosePerPulse:      coeffs.DosePerPulse,
		Model:             model,
		DosePerCount:      res.DosePerCount,
		FrameIntervalMS:   res.FrameIntervalMS,
		PulseRepetitionHz: cfg.PulseRepetitionHz,
		Workers:           cfg.Workers,
	})
	if err != nil {
		return nil, err
	}
	if res.DoseRate, err = engine.DoseRates(res.Raw); err != nil {
		return nil, err
	}
	if res.Corrected, err = engine.ApplyJagerCorrectionsContext(ctx, res.Raw, cal, res.DoseRate); err != nil {
		return nil, err
	}
	in.Metrics.ObserveStage("correct", stage)
	log.Info().Int("rows", res.Raw.Rows()).Dur("took", time.Since(stage)).Msg("corrections applied")
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res.Frames, res.Blocks = split(blocks, res.Corrected)
	stage = time.Now()
	if res.Output, err = codec.Serialize(header, res.Blocks); err != nil {
		return nil, err
	}
	if in.OutputPath != "" {
		if err := os.WriteFile(in.OutputPath, []byte(res.Output), 0o644); err != nil {
			return nil, perr.WithOp(perr.IOf(err, "write corrected file"), in.OutputPath)
		}
		log.Info().Str("path", in.OutputPath).Msg("corrected file written")
	}
	in.Metrics.ObserveStage("serialize", stage)

	stage = time.Now()
	acc := correction.NewDoseAccumulator(res.Corrected.Cols(), res.DosePerCount, model.References()...)
	if err := acc.AddAccumulated(res.Corrected); err != nil {
		return nil, err
	}
	if res.Dose, err = acc.Array(); err != nil {
		return nil, err
	}
	res.Clamped = acc.Clamped()
	if res.Clamped > 0 {
		log.Warn().Int("clamped", res.Clamped).Msg("negative corrected increments counted as zero dose")
	}

	if res.Summary, err = analysis.Summarize(res.Raw, res.Corrected, model); err != nil {
		return nil, err
	}
	diodes := in.Diodes
	if len(diodes) == 0 && len(res.Summary.RankedByChange) > 0 {
		diodes = []int{res.Summary.RankedByChange[0].Diode}
	}
	if len(diodes) > 0 {
		res.Histogram, err = analysis.DoseRateHistogram(analysis.Increments(res.Dose), res.DoseRate, diodes, nil)
		if err != nil {
			return nil, err
		}
	}
	in.Metrics.ObserveStage("analyze", stage)
	in.Metrics.RecordCorrection(len(res.Frames), res.Corrected.Cols(), res.Clamped)

	log.Info().
		Int("frames", len(res.Frames)).
		Float64("mean_relative_change", res.Summary.MeanRelativeChange).
		Dur("took", time.Since(start)).
		Msg("correction run finished")
	return res, nil
}

// split cuts corrected back into the Frame blocks it was stacked from.
// Other blocks are passed through unchanged.
func split(blocks []parser.Block, corrected parser.DiodeArray) ([]CorrectedFrame, []parser.Block) {
	out := make([]parser.Block, len(blocks))
	var frames []CorrectedFrame
	row := 0
	for i, b := range blocks {
		out[i] = b
		if b.Label != parser.SectionFrame {
			continue
		}
		n := b.Data.Rows()
		out[i].Data = corrected.Slice(row, row+n)
		row += n
		frames = append(frames, CorrectedFrame{Block: out[i], Index: len(frames)})
	}
	return frames, out
}
