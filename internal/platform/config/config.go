// Package config loads the run configuration: detector models, coefficient
// dataset location and correction engine knobs.
package config

import (
	"os"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/user/arccheck_drc_go/internal/geometry"
	perr "github.com/user/arccheck_drc_go/internal/platform/errors"
)

// Defaults for a clinical ArcCheck acquisition.
const (
	DefaultModel             = geometry.ArcCheck
	DefaultDosePerCount      = 7.7597e-6 // cGy per count
	DefaultFrameIntervalMS   = 50.0
	DefaultPulseRepetitionHz = 360.0
	DefaultWorkers           = 1
	DefaultPrecision         = 6
)

// RunConfig is the top-level structure of the run YAML file.
type RunConfig struct {
	Model             string               `yaml:"model" validate:"required"`
	Models            []geometry.ModelSpec `yaml:"models" validate:"dive"`
	Coefficients      string               `yaml:"coefficients"`
	DosePerCount      float64              `yaml:"dose_per_count" validate:"gt=0"`
	FrameIntervalMS   float64              `yaml:"frame_interval_ms" validate:"gt=0"`
	PulseRepetitionHz float64              `yaml:"pulse_repetition_hz" validate:"gt=0"`
	Workers           int                  `yaml:"workers" validate:"gte=1,lte=256"`
	Precision         int                  `yaml:"precision" validate:"gte=0,lte=12"`
}

// Default returns a RunConfig populated with the built-in defaults.
func Default() *RunConfig {
	return &RunConfig{
		Model:             DefaultModel,
		DosePerCount:      DefaultDosePerCount,
		FrameIntervalMS:   DefaultFrameIntervalMS,
		PulseRepetitionHz: DefaultPulseRepetitionHz,
		Workers:           DefaultWorkers,
		Precision:         DefaultPrecision,
	}
}

// LoadRunConfig reads path (defaults only when path is empty), applies
// ARCCHECK_* environment overrides and validates the result.
func LoadRunConfig(path string) (*RunConfig, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, perr.IOf(err, "read run config %s", path)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeConfig, "parse run config %s", path)
		}
	}
	cfg.ApplyEnv(NewEnv().Prefix("ARCCHECK_"))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from env (MODEL, COEFFICIENTS, DOSE_PER_COUNT,
// FRAME_INTERVAL_MS, PULSE_REPETITION_HZ, WORKERS, PRECISION).
func (c *RunConfig) ApplyEnv(env Conf) {
	c.Model = env.MayString("MODEL", c.Model)
	c.Coefficients = env.MayString("COEFFICIENTS", c.Coefficients)
	c.DosePerCount = env.MayFloat64("DOSE_PER_COUNT", c.DosePerCount)
	c.FrameIntervalMS = env.MayFloat64("FRAME_INTERVAL_MS", c.FrameIntervalMS)
	c.PulseRepetitionHz = env.MayFloat64("PULSE_REPETITION_HZ", c.PulseRepetitionHz)
	c.Workers = env.MayInt("WORKERS", c.Workers)
	c.Precision = env.MayInt("PRECISION", c.Precision)
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks struct constraints and reports every violation in one
// config error.
func (c *RunConfig) Validate() error {
	err := validatorInstance().Struct(c)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return perr.Wrap(err, perr.ErrorCodeConfig, "validate run config")
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fe.Namespace()+" failed "+fe.Tag())
	}
	return perr.Configf("invalid run config: %s", strings.Join(msgs, "; "))
}

// Registry builds the detector model registry declared by the config.
func (c *RunConfig) Registry() (*geometry.Registry, error) {
	return geometry.NewRegistry(c.Models...)
}

// DetectorModel resolves the configured detector model.
func (c *RunConfig) DetectorModel() (*geometry.Model, error) {
	reg, err := c.Registry()
	if err != nil {
		return nil, err
	}
	return reg.Lookup(c.Model)
}
