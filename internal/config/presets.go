package config

import "sort"

func preset(mut func(c *Config)) *Config {
	c := DefaultConfig()
	mut(c)
	return c
}

var Presets = map[string]map[string]*Config{
	"hysteresis": {
		"quick": preset(func(c *Config) {
			c.System.Spins = 16
			c.Sweep.EquilibrationTime = 200
			c.Sweep.LoopTime = 50
			c.Sweep.PartialTime = 10
		}),
		"fine": preset(func(c *Config) {
			c.Sweep.HInc = 0.02
			c.Sweep.LoopTime = 500
			c.Sweep.PartialTime = 50
		}),
		"thermal": preset(func(c *Config) {
			c.System.Temperature = 300
			c.Sweep.LoopTime = 1000
			c.Sweep.PartialTime = 100
		}),
		"monte-carlo": preset(func(c *Config) {
			c.Integrator = "monte-carlo"
			c.System.Temperature = 10
			c.Sweep.EquilibrationTime = 100
			c.Sweep.LoopTime = 20
			c.Sweep.PartialTime = 1
		}),
		"demag": preset(func(c *Config) {
			c.Hooks.Demag.Enabled = true
			c.Hooks.Demag.Rate = 50
		}),
	},
	"time-series": {
		"relax": preset(func(c *Config) {
			c.Program = "time-series"
			c.System.Randomize = true
			c.Sweep.HEq = 0
			c.Sweep.TotalTime = 5000
			c.Sweep.PartialTime = 50
		}),
		"constrained": preset(func(c *Config) {
			c.Program = "time-series"
			c.Integrator = "constrained-monte-carlo"
			c.System.Temperature = 300
			c.System.ConstraintTheta = 45
			c.Sweep.TotalTime = 2000
			c.Sweep.PartialTime = 20
		}),
	},
	"benchmark": {
		"heun": preset(func(c *Config) {
			c.Program = "benchmark"
			c.System.Spins = 4096
			c.System.Temperature = 300
			c.Sweep.TotalTime = 1000
		}),
		"distributed": preset(func(c *Config) {
			c.Program = "benchmark"
			c.System.Spins = 4096
			c.Backend.Workers = 4
			c.Sweep.TotalTime = 1000
		}),
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(program, name string) *Config {
	programPresets, ok := Presets[program]
	if !ok {
		return nil
	}
	cfg, ok := programPresets[name]
	if !ok {
		return nil
	}
	return cfg.Clone()
}

func ListPresets(program string) []string {
	programPresets, ok := Presets[program]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(programPresets))
	for name := range programPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func ListPrograms() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
