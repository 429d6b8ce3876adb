package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultSpins       = 64
	DefaultMoment      = 1.5 // Bohr magnetons
	DefaultAnisotropy  = 1e-23
	DefaultExchange    = 6e-21
	DefaultDamping     = 0.1
	DefaultTemperature = 0.0
	DefaultDt          = 1e-15

	DefaultHMax        = 1.0
	DefaultHInc        = 0.1
	DefaultEquilibrate = 1000
	DefaultLoopTime    = 200
	DefaultPartialTime = 10
	DefaultTotalTime   = 10000

	DefaultOutputDir = "runs"
)

type Config struct {
	Program    string           `yaml:"program"`
	Integrator string           `yaml:"integrator"`
	Seed       int64            `yaml:"seed"`
	Log        LogConfig        `yaml:"log"`
	System     SystemConfig     `yaml:"system"`
	Sweep      SweepConfig      `yaml:"sweep"`
	Backend    BackendConfig    `yaml:"backend"`
	Hooks      HooksConfig      `yaml:"hooks"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
	Output     OutputConfig     `yaml:"output"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type SystemConfig struct {
	Spins       int     `yaml:"spins"`
	Moment      float64 `yaml:"moment"`
	Anisotropy  float64 `yaml:"anisotropy"`
	Exchange    float64 `yaml:"exchange"`
	Damping     float64 `yaml:"damping"`
	Temperature float64 `yaml:"temperature"`
	Dt          float64 `yaml:"dt"`
	FieldTheta  float64 `yaml:"field_theta"`
	FieldPhi    float64 `yaml:"field_phi"`
	Randomize   bool    `yaml:"randomize"`

	// ConstrainedFraction is the leading fraction of the chain moved by
	// constrained Monte Carlo.
	ConstrainedFraction float64 `yaml:"constrained_fraction"`
	ConstraintTheta     float64 `yaml:"constraint_theta"`
	ConstraintPhi       float64 `yaml:"constraint_phi"`
}

type SweepConfig struct {
	HMin              float64 `yaml:"h_min"`
	HMax              float64 `yaml:"h_max"`
	HInc              float64 `yaml:"h_inc"`
	HEq               float64 `yaml:"h_eq"`
	EquilibrationTime uint64  `yaml:"equilibration_time"`
	LoopTime          uint64  `yaml:"loop_time"`
	PartialTime       uint64  `yaml:"partial_time"`
	TotalTime         uint64  `yaml:"total_time"`
}

// BackendConfig describes the execution resources. Fewer than two workers
// means no distributed backend.
type BackendConfig struct {
	Workers     int  `yaml:"workers"`
	Accelerator bool `yaml:"accelerator"`
}

type HooksConfig struct {
	HeadSpeed float64        `yaml:"head_speed"`
	Demag     DemagConfig    `yaml:"demag"`
	Lagrange  LagrangeConfig `yaml:"lagrange"`
}

type DemagConfig struct {
	Enabled    bool       `yaml:"enabled"`
	Factors    [3]float64 `yaml:"factors"`
	Saturation float64    `yaml:"saturation"`
	Rate       uint64     `yaml:"rate"`
}

type LagrangeConfig struct {
	Enabled bool    `yaml:"enabled"`
	M       float64 `yaml:"m"`
	N       float64 `yaml:"n"`
	Theta   float64 `yaml:"theta"`
	Phi     float64 `yaml:"phi"`
}

type CheckpointConfig struct {
	Store string `yaml:"store"`
	Path  string `yaml:"path"`
	Key   string `yaml:"key"`

	// Load restores spins from the checkpoint; Continue also resumes the
	// sweep position and clock.
	Load         bool `yaml:"load"`
	Continue     bool `yaml:"continue"`
	AllowMissing bool `yaml:"allow_missing"`

	Save       bool `yaml:"save"`
	Continuous bool `yaml:"continuous"`
	SaveRate   int  `yaml:"save_rate"`
}

type OutputConfig struct {
	Dir  string `yaml:"dir"`
	Live bool   `yaml:"live"`
}

func DefaultConfig() *Config {
	return &Config{
		Program:    "hysteresis",
		Integrator: "llg-heun",
		Seed:       1,
		Log:        LogConfig{Level: "info", Format: "text"},
		System: SystemConfig{
			Spins:               DefaultSpins,
			Moment:              DefaultMoment,
			Anisotropy:          DefaultAnisotropy,
			Exchange:            DefaultExchange,
			Damping:             DefaultDamping,
			Temperature:         DefaultTemperature,
			Dt:                  DefaultDt,
			ConstrainedFraction: 1,
		},
		Sweep: SweepConfig{
			HMin:              -DefaultHMax,
			HMax:              DefaultHMax,
			HInc:              DefaultHInc,
			HEq:               DefaultHMax,
			EquilibrationTime: DefaultEquilibrate,
			LoopTime:          DefaultLoopTime,
			PartialTime:       DefaultPartialTime,
			TotalTime:         DefaultTotalTime,
		},
		Hooks: HooksConfig{
			Demag:    DemagConfig{Factors: [3]float64{0, 0, 1}, Saturation: 1, Rate: 100},
			Lagrange: LagrangeConfig{M: 1, N: 1e-3},
		},
		Checkpoint: CheckpointConfig{
			Store:    "file",
			Path:     "checkpoint.json",
			Key:      "default",
			SaveRate: 1,
		},
		Output: OutputConfig{Dir: DefaultOutputDir},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks values that do not depend on the selected program. Sweep
// bounds are checked when the sweep is built.
func (c *Config) Validate() error {
	s := c.System
	switch {
	case s.Spins < 2:
		return fmt.Errorf("config: system.spins must be at least 2, got %d", s.Spins)
	case s.Moment <= 0:
		return fmt.Errorf("config: system.moment must be positive, got %g", s.Moment)
	case s.Dt <= 0:
		return fmt.Errorf("config: system.dt must be positive, got %g", s.Dt)
	case s.Temperature < 0:
		return fmt.Errorf("config: system.temperature must be non-negative, got %g", s.Temperature)
	case s.ConstrainedFraction < 0 || s.ConstrainedFraction > 1:
		return fmt.Errorf("config: system.constrained_fraction must be in [0, 1], got %g", s.ConstrainedFraction)
	case c.Backend.Workers < 0:
		return fmt.Errorf("config: backend.workers must be non-negative, got %d", c.Backend.Workers)
	case c.Hooks.Demag.Enabled && c.Hooks.Demag.Rate == 0:
		return fmt.Errorf("config: hooks.demag.rate must be positive")
	}

	switch c.Checkpoint.Store {
	case "file", "sqlite", "memory":
	default:
		return fmt.Errorf("config: unknown checkpoint.store %q", c.Checkpoint.Store)
	}
	if c.Checkpoint.Continue && !c.Checkpoint.Load {
		return fmt.Errorf("config: checkpoint.continue requires checkpoint.load")
	}
	if c.Checkpoint.Continuous && c.Checkpoint.SaveRate <= 0 {
		return fmt.Errorf("config: checkpoint.save_rate must be positive, got %d", c.Checkpoint.SaveRate)
	}
	return nil
}

func (c *Config) Clone() *Config {
	out := *c
	return &out
}
