// Command arccheck_correct applies the dose-rate-dependence correction to an
// ArcCheck measurement file and writes the corrected file in the same format.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	perr "github.com/user/arccheck_drc_go/internal/platform/errors"
	"github.com/user/arccheck_drc_go/internal/platform/logger"
)

func main() {
	configPath := flag.String("config", "", "run configuration YAML (defaults when empty)")
	calibration := flag.String("calibration", "", "calibration file with Background and Calibration sections")
	measurement := flag.String("measurement", "", "measurement file to correct")
	out := flag.String("out", "", "path of the corrected measurement file")
	reportPath := flag.String("report", "", "optional PDF report path")
	metricsPath := flag.String("metrics", "", "optional Prometheus textfile path")
	model := flag.String("model", "", "detector model, overrides the config")
	diodes := flag.String("diode", "", "comma-separated diode indices for the histogram and dose curves")
	flag.Parse()

	os.Exit(run(*configPath, *calibration, *measurement, *out, *reportPath, *metricsPath, *model, *diodes))
}

func run(configPath, calibration, measurement, out, reportPath, metricsPath, model, diodes string) int {
	log := logger.Get()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ids, err := parseDiodes(diodes)
	if err != nil {
		log.Error().Err(err).Msg("invalid flags")
		return perr.ExitStatus(err)
	}
	app, err := NewApp(ctx)
	if err != nil {
		log.Error().Err(err).Msg("startup failed")
		return perr.ExitStatus(err)
	}
	err = app.HandleCorrection(Options{
		ConfigPath:      configPath,
		CalibrationPath: calibration,
		MeasurementPath: measurement,
		OutputPath:      out,
		ReportPath:      reportPath,
		MetricsPath:     metricsPath,
		Model:           model,
		Diodes:          ids,
	})
	if err != nil {
		log.Error().Err(err).Str("code", perr.CodeOf(err).String()).Msg("arccheck_correct failed")
	}
	return perr.ExitStatus(err)
}

// parseDiodes reads "3, 17,200" into file indices.
func parseDiodes(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var ids []int
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 0 {
			return nil, perr.Configf("-diode: %q is not a diode index", part)
		}
		ids = append(ids, n)
	}
	return ids, nil
}
