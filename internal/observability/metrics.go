// Package observability records correction run metrics in Prometheus form.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	perr "github.com/user/arccheck_drc_go/internal/platform/errors"
)

// RunCollector bundles the metrics of correction runs. A batch process has
// no scrape endpoint, so the metrics are flushed to a node-exporter textfile.
type RunCollector struct {
	gatherer prometheus.Gatherer

	Runs             *prometheus.CounterVec
	Errors           *prometheus.CounterVec
	StageDurations   *prometheus.HistogramVec
	FramesCorrected  prometheus.Counter
	ClampedIncrement prometheus.Counter
	Diodes           prometheus.Gauge
}

// NewRunCollector registers run metrics against reg, defaulting to the global
// registry when nil.
func NewRunCollector(reg prometheus.Registerer) (*RunCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	runs, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "arccheck_runs_total",
		Help: "Correction runs, labeled by outcome.",
	}, []string{"outcome"}), "arccheck_runs_total")
	if err != nil {
		return nil, err
	}
	errs, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "arccheck_errors_total",
		Help: "Failed runs, labeled by error code.",
	}, []string{"code"}), "arccheck_errors_total")
	if err != nil {
		return nil, err
	}
	stages, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "arccheck_stage_duration_seconds",
		Help:    "Duration of each pipeline stage in seconds.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"stage"}), "arccheck_stage_duration_seconds")
	if err != nil {
		return nil, err
	}
	frames, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "arccheck_frames_corrected_total",
		Help: "Frames passed through the correction chain.",
	}), "arccheck_frames_corrected_total")
	if err != nil {
		return nil, err
	}
	clamped, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "arccheck_clamped_increments_total",
		Help: "Negative corrected dose increments counted as zero.",
	}), "arccheck_clamped_increments_total")
	if err != nil {
		return nil, err
	}
	diodes, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "arccheck_diodes",
		Help: "Diode columns of the last corrected measurement.",
	}), "arccheck_diodes")
	if err != nil {
		return nil, err
	}

	return &RunCollector{
		gatherer:         gatherer,
		Runs:             runs,
		Errors:           errs,
		StageDurations:   stages,
		FramesCorrected:  frames,
		ClampedIncrement: clamped,
		Diodes:           diodes,
	}, nil
}

// ObserveStage records how long a stage took since start.
func (c *RunCollector) ObserveStage(stage string, start time.Time) {
	if c == nil {
		return
	}
	c.StageDurations.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// RunFinished counts a run; a non-nil err is also counted by its code.
func (c *RunCollector) RunFinished(err error) {
	if c == nil {
		return
	}
	if err != nil {
		c.Runs.WithLabelValues("failure").Inc()
		c.Errors.WithLabelValues(perr.CodeOf(err).String()).Inc()
		return
	}
	c.Runs.WithLabelValues("success").Inc()
}

// RecordCorrection adds the size of one corrected measurement.
func (c *RunCollector) RecordCorrection(frames, diodes, clamped int) {
	if c == nil {
		return
	}
	c.FramesCorrected.Add(float64(frames))
	c.ClampedIncrement.Add(float64(clamped))
	c.Diodes.Set(float64(diodes))
}

// WriteTextfile writes every gathered metric to path in the text exposition
// format, atomically.
func (c *RunCollector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.gatherer); err != nil {
		return perr.WithOp(perr.IOf(err, "failed to write metrics textfile"), path)
	}
	return nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T, name string) (T, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
			var zero T
			return zero, perr.Configf("collector %s already registered with incompatible type", name)
		}
		var zero T
		return zero, perr.Wrapf(err, perr.ErrorCodeConfig, "register collector %s", name)
	}
	return c, nil
}
