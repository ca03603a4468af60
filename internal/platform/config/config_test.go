package config

import (
	"strings"
	"testing"

	perr "github.com/user/arccheck_drc_go/internal/platform/errors"
	kit "github.com/user/arccheck_drc_go/internal/platform/testkit"
)

func TestLoadRunConfig_DefaultsWithoutFile(t *testing.T) {
	cfg, err := LoadRunConfig("")
	if err != nil {
		t.Fatalf("LoadRunConfig: %v", err)
	}
	if cfg.Model != "arccheck" || cfg.DosePerCount != DefaultDosePerCount || cfg.FrameIntervalMS != 50 ||
		cfg.Workers != 1 || cfg.Precision != 6 {
		t.Fatalf("defaults = %+v", cfg)
	}
	m, err := cfg.DetectorModel()
	if err != nil || m.DiodeCount() != 1387 {
		t.Fatalf("DetectorModel = %v, %v", m, err)
	}
}

func TestLoadRunConfig_YAMLAndModels(t *testing.T) {
	p := kit.WriteFile(t, "run.yaml", strings.Join([]string{
		"model: bench",
		"coefficients: coeffs.yaml",
		"frame_interval_ms: 100",
		"workers: 4",
		"precision: 3",
		"models:",
		"  - name: bench",
		"    diode_count: 5",
		"    reference: [4]",
		"    grid_rows: 2",
		"    grid_cols: 2",
		"    pitch_cm: 1.0",
	}, "\n"))

	cfg, err := LoadRunConfig(p)
	if err != nil {
		t.Fatalf("LoadRunConfig: %v", err)
	}
	if cfg.Coefficients != "coeffs.yaml" || cfg.FrameIntervalMS != 100 || cfg.Workers != 4 || cfg.Precision != 3 {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.DosePerCount != DefaultDosePerCount {
		t.Fatalf("unset keys must keep defaults, got %v", cfg.DosePerCount)
	}
	m, err := cfg.DetectorModel()
	if err != nil {
		t.Fatalf("DetectorModel: %v", err)
	}
	if !m.IsReferenceDiode(4) || m.IsReferenceDiode(0) {
		t.Fatalf("reference diodes wrong for %s", m.Name())
	}
}

func TestLoadRunConfig_EnvOverrides(t *testing.T) {
	t.Setenv("ARCCHECK_WORKERS", "8")
	t.Setenv("ARCCHECK_DOSE_PER_COUNT", "1e-5")
	t.Setenv("ARCCHECK_PRECISION", "not-a-number")

	cfg, err := LoadRunConfig("")
	if err != nil {
		t.Fatalf("LoadRunConfig: %v", err)
	}
	if cfg.Workers != 8 || cfg.DosePerCount != 1e-5 {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
	if cfg.Precision != DefaultPrecision {
		t.Fatalf("invalid env int should keep default, got %d", cfg.Precision)
	}
}

func TestLoadRunConfig_Errors(t *testing.T) {
	if _, err := LoadRunConfig("/does/not/exist.yaml"); !perr.IsCode(err, perr.ErrorCodeIO) {
		t.Fatalf("missing file err = %v", err)
	}

	bad := kit.WriteFile(t, "bad.yaml", "workers: [oops")
	if _, err := LoadRunConfig(bad); !perr.IsCode(err, perr.ErrorCodeConfig) {
		t.Fatalf("bad yaml err = %v", err)
	}

	invalid := kit.WriteFile(t, "invalid.yaml", "workers: 0\nframe_interval_ms: -1\n")
	_, err := LoadRunConfig(invalid)
	if !perr.IsCode(err, perr.ErrorCodeConfig) {
		t.Fatalf("invalid values err = %v", err)
	}
	kit.MustContain(t, err.Error(), "Workers failed gte")
	kit.MustContain(t, err.Error(), "FrameIntervalMS failed gt")
}

func TestDetectorModel_Unknown(t *testing.T) {
	cfg := Default()
	cfg.Model = "ghost"
	if _, err := cfg.DetectorModel(); !perr.IsCode(err, perr.ErrorCodeConfig) {
		t.Fatalf("unknown model err = %v", err)
	}
}

func TestConfPrefix(t *testing.T) {
	t.Setenv("X_Y_NAME", "  v ")
	c := NewEnv().Prefix("X_").Prefix("Y_")
	if got := c.MayString("NAME", "d"); got != "v" {
		t.Fatalf("MayString = %q", got)
	}
	if got := c.MayString("MISSING", "d"); got != "d" {
		t.Fatalf("MayString default = %q", got)
	}
	t.Setenv("X_Y_F", "bad")
	if got := c.MayFloat64("F", 2.5); got != 2.5 {
		t.Fatalf("MayFloat64 invalid = %v", got)
	}
}
