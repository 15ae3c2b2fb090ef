// Package config loads the JSON tuning file that drives mesh extraction,
// cleanup and evaluation.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/ngailapdi/isomesh/evaluate"
	"github.com/ngailapdi/isomesh/meshclean"
	"github.com/ngailapdi/isomesh/meshgen"
	"github.com/pkg/errors"
)

// DefaultConfigPath is the path of the shipped defaults file relative to the
// repository root.
const DefaultConfigPath = "config/defaults.json"

const maxFileSize = 1 << 20

// TuningConfig holds every tunable of a run. Absent fields fall back to the
// defaults returned by the getters, so partial files are valid.
type TuningConfig struct {
	// Extraction
	Field           *string  `json:"field,omitempty"` // "occupancy" or "sdf"
	Resolution0     *int     `json:"resolution0,omitempty"`
	UpsamplingSteps *int     `json:"upsampling_steps,omitempty"`
	Threshold       *float64 `json:"threshold,omitempty"`
	BoxSize         *float64 `json:"box_size,omitempty"`
	MaxPoints       *int     `json:"max_points,omitempty"`
	Workers         *int     `json:"workers,omitempty"`
	Uniform         *bool    `json:"uniform,omitempty"`

	// Cleanup
	Clean      *bool    `json:"clean,omitempty"`
	DistThresh *float64 `json:"dist_thresh,omitempty"`
	NumThresh  *float64 `json:"num_thresh,omitempty"`

	// Evaluation
	EvalMode      *string  `json:"eval_mode,omitempty"` // "occnet" or "sdf"
	NumSamples    *int     `json:"num_samples,omitempty"`
	Iso           *float64 `json:"iso,omitempty"`
	SignThreshold *float64 `json:"sign_threshold,omitempty"`
	SkipNormalize *bool    `json:"skip_normalize,omitempty"`
	Seed          *int64   `json:"seed,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }
func ptrInt64(v int64) *int64       { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields unset.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field set to its
// default.
func DefaultTuningConfig() *TuningConfig {
	var c TuningConfig
	return &TuningConfig{
		Field:           ptrString(c.GetField().String()),
		Resolution0:     ptrInt(c.GetResolution0()),
		UpsamplingSteps: ptrInt(c.GetUpsamplingSteps()),
		Threshold:       ptrFloat64(c.GetThreshold()),
		BoxSize:         ptrFloat64(c.GetBoxSize()),
		MaxPoints:       ptrInt(c.GetMaxPoints()),
		Workers:         ptrInt(c.GetWorkers()),
		Uniform:         ptrBool(c.GetUniform()),
		Clean:           ptrBool(c.GetClean()),
		DistThresh:      ptrFloat64(c.GetDistThresh()),
		NumThresh:       ptrFloat64(c.GetNumThresh()),
		EvalMode:        ptrString(c.GetEvalMode().String()),
		NumSamples:      ptrInt(c.GetNumSamples()),
		Iso:             ptrFloat64(c.GetIso()),
		SignThreshold:   ptrFloat64(c.GetSignThreshold()),
		SkipNormalize:   ptrBool(c.GetSkipNormalize()),
		Seed:            ptrInt64(c.GetSeed()),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. The file must have
// a .json extension and be at most 1 MiB.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, errors.Errorf("config file must have .json extension, got %q", ext)
	}
	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, errors.Wrap(err, "stat config file")
	}
	if info.Size() > maxFileSize {
		return nil, errors.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, errors.Wrap(err, "read config file")
	}
	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "parse config JSON")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath from the working directory
// or one of its parents. It panics if the file cannot be loaded.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run from repository root")
}

// Validate checks that the set values are usable.
func (c *TuningConfig) Validate() error {
	if c.Field != nil {
		if _, err := parseKind(*c.Field); err != nil {
			return err
		}
	}
	if c.EvalMode != nil {
		if _, err := evaluate.ParseMode(*c.EvalMode); err != nil {
			return err
		}
	}
	if c.NumSamples != nil && *c.NumSamples < 1 {
		return errors.Errorf("num_samples must be positive, got %d", *c.NumSamples)
	}
	if c.MaxPoints != nil && *c.MaxPoints < 0 {
		return errors.Errorf("max_points must be non-negative, got %d", *c.MaxPoints)
	}
	if c.Workers != nil && *c.Workers < 0 {
		return errors.Errorf("workers must be non-negative, got %d", *c.Workers)
	}
	if c.NumThresh != nil && (*c.NumThresh < 0 || *c.NumThresh > 1) {
		return errors.Errorf("num_thresh must be between 0 and 1, got %f", *c.NumThresh)
	}
	if c.SignThreshold != nil && *c.SignThreshold < 0 {
		return errors.Errorf("sign_threshold must be non-negative, got %f", *c.SignThreshold)
	}
	if c.DistThresh != nil && *c.DistThresh < 0 {
		return errors.Errorf("dist_thresh must be non-negative, got %f", *c.DistThresh)
	}
	return c.Meshgen().Validate()
}

func parseKind(s string) (meshgen.Kind, error) {
	switch s {
	case "occupancy", "occnet":
		return meshgen.Occupancy, nil
	case "sdf":
		return meshgen.SDF, nil
	}
	return 0, errors.Errorf("unknown field kind %q", s)
}

// GetField returns the oracle field kind or the default, occupancy.
func (c *TuningConfig) GetField() meshgen.Kind {
	if c.Field == nil {
		return meshgen.Occupancy
	}
	k, err := parseKind(*c.Field)
	if err != nil {
		return meshgen.Occupancy
	}
	return k
}

func (c *TuningConfig) defaults() meshgen.Config { return meshgen.DefaultConfig(c.GetField()) }

// GetResolution0 returns the coarse resolution or the default.
func (c *TuningConfig) GetResolution0() int {
	if c.Resolution0 == nil {
		return c.defaults().Resolution0
	}
	return *c.Resolution0
}

// GetUpsamplingSteps returns the number of refinement steps or the default.
func (c *TuningConfig) GetUpsamplingSteps() int {
	if c.UpsamplingSteps == nil {
		return c.defaults().UpsamplingSteps
	}
	return *c.UpsamplingSteps
}

// GetThreshold returns the isovalue or the default of the field kind.
func (c *TuningConfig) GetThreshold() float64 {
	if c.Threshold == nil {
		return c.defaults().Threshold
	}
	return *c.Threshold
}

// GetBoxSize returns the meshed cube side or the default.
func (c *TuningConfig) GetBoxSize() float64 {
	if c.BoxSize == nil {
		return c.defaults().BoxSize
	}
	return *c.BoxSize
}

// GetMaxPoints returns the oracle chunk size. Zero selects the batcher default.
func (c *TuningConfig) GetMaxPoints() int {
	if c.MaxPoints == nil {
		return 0
	}
	return *c.MaxPoints
}

// GetWorkers returns the number of concurrent oracle calls or the default, 1.
func (c *TuningConfig) GetWorkers() int {
	if c.Workers == nil {
		return 1
	}
	return *c.Workers
}

func (c *TuningConfig) GetUniform() bool {
	return c.Uniform != nil && *c.Uniform
}

// GetClean returns whether floating components are removed. Defaults to true.
func (c *TuningConfig) GetClean() bool {
	if c.Clean == nil {
		return true
	}
	return *c.Clean
}

func (c *TuningConfig) GetDistThresh() float64 {
	if c.DistThresh == nil {
		return meshclean.DefaultDistThresh
	}
	return *c.DistThresh
}

func (c *TuningConfig) GetNumThresh() float64 {
	if c.NumThresh == nil {
		return meshclean.DefaultNumThresh
	}
	return *c.NumThresh
}

// GetEvalMode returns the evaluation mode. It follows the field kind when unset.
func (c *TuningConfig) GetEvalMode() evaluate.Mode {
	if c.EvalMode != nil {
		if m, err := evaluate.ParseMode(*c.EvalMode); err == nil {
			return m
		}
	}
	if c.GetField() == meshgen.SDF {
		return evaluate.ModeSDF
	}
	return evaluate.ModeOccupancy
}

func (c *TuningConfig) GetNumSamples() int {
	if c.NumSamples == nil {
		return evaluate.DefaultNumSamples
	}
	return *c.NumSamples
}

func (c *TuningConfig) GetIso() float64 {
	if c.Iso == nil {
		return evaluate.DefaultIso
	}
	return *c.Iso
}

func (c *TuningConfig) GetSignThreshold() float64 {
	if c.SignThreshold == nil {
		return evaluate.DefaultSignThreshold
	}
	return *c.SignThreshold
}

func (c *TuningConfig) GetSkipNormalize() bool {
	return c.SkipNormalize != nil && *c.SkipNormalize
}

func (c *TuningConfig) GetSeed() int64 {
	if c.Seed == nil {
		return 0
	}
	return *c.Seed
}

// Meshgen returns the extraction configuration.
func (c *TuningConfig) Meshgen() meshgen.Config {
	return meshgen.Config{
		Kind:            c.GetField(),
		Resolution0:     c.GetResolution0(),
		UpsamplingSteps: c.GetUpsamplingSteps(),
		Threshold:       c.GetThreshold(),
		BoxSize:         c.GetBoxSize(),
		MaxPoints:       c.GetMaxPoints(),
		Workers:         c.GetWorkers(),
	}
}

// Cleaner returns the configured component filter.
func (c *TuningConfig) Cleaner() meshclean.ComponentFilter {
	return meshclean.ComponentFilter{DistThresh: c.GetDistThresh(), NumThresh: c.GetNumThresh()}
}

// EvalOptions returns the evaluation options.
func (c *TuningConfig) EvalOptions() evaluate.Options {
	return evaluate.Options{
		Mode:          c.GetEvalMode(),
		NumSamples:    c.GetNumSamples(),
		Iso:           c.GetIso(),
		SignThreshold: c.GetSignThreshold(),
		SkipNormalize: c.GetSkipNormalize(),
		Seed:          c.GetSeed(),
	}
}
