// Package config loads the planner settings from a TOML file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/chazu/ablation/pkg/geom"
)

// Config holds planner settings. Every field has a default, so an empty
// or missing file is a valid configuration.
type Config struct {
	Probe   Probe   `toml:"probe"`
	Mesh    Mesh    `toml:"mesh"`
	Voxel   Voxel   `toml:"voxel"`
	Margin  Margin  `toml:"margin"`
	Planner Planner `toml:"planner"`
	Engine  Engine  `toml:"engine"`
}

// Probe describes the probe template used when a plan does not define one.
type Probe struct {
	Name   string     `toml:"name"`
	Length float64    `toml:"length"` // mm
	Radius float64    `toml:"radius"` // mm
	Round  float64    `toml:"round"`  // edge rounding, mm
	Axis   [3]float64 `toml:"axis"`   // canonical probe axis in template space
}

// AxisVec returns the probe axis as a vector.
func (p Probe) AxisVec() geom.Vec3 {
	return geom.Vec3{X: p.Axis[0], Y: p.Axis[1], Z: p.Axis[2]}
}

// Mesh controls surface extraction.
type Mesh struct {
	// Cells is the marching cubes resolution along the longest axis.
	Cells int `toml:"cells"`
}

// Voxel controls the voxel-grid representation used for volume estimates.
type Voxel struct {
	Spacing float64 `toml:"spacing"` // mm
}

// Margin holds the default band thresholds, ascending, in mm.
type Margin struct {
	Thresholds []float64 `toml:"thresholds"`
}

// Planner controls session behavior.
type Planner struct {
	// AutoRecombine re-runs the union after every landmark change once a
	// combination exists.
	AutoRecombine bool `toml:"auto_recombine"`
}

// Engine controls plan script evaluation.
type Engine struct {
	Timeout time.Duration `toml:"timeout"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Probe: Probe{
			Name:   "probe",
			Length: 30,
			Radius: 2.5,
			Axis:   [3]float64{0, 0, -1},
		},
		Mesh:   Mesh{Cells: 100},
		Voxel:  Voxel{Spacing: 1},
		Margin: Margin{Thresholds: []float64{-10, -5, -2}},
		Engine: Engine{Timeout: 5 * time.Second},
	}
}

// Load reads path on top of Default. A missing file returns the defaults.
// Keys in the file that match no setting are returned so the caller can
// warn about them.
func Load(path string) (*Config, []string, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil, nil
	}

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Default(), nil, nil
		}
		return nil, nil, fmt.Errorf("config: %s: %w", path, err)
	}

	var unknown []string
	for _, k := range md.Undecoded() {
		unknown = append(unknown, k.String())
	}
	if err := cfg.Validate(); err != nil {
		return nil, unknown, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, unknown, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error
	if c.Probe.Length <= 0 {
		errs = append(errs, fmt.Errorf("probe.length must be positive, got %g", c.Probe.Length))
	}
	if c.Probe.Radius <= 0 {
		errs = append(errs, fmt.Errorf("probe.radius must be positive, got %g", c.Probe.Radius))
	}
	if c.Probe.Round < 0 || c.Probe.Round > c.Probe.Radius {
		errs = append(errs, fmt.Errorf("probe.round must be in [0, radius], got %g", c.Probe.Round))
	}
	if _, err := geom.Normalize(c.Probe.AxisVec()); err != nil {
		errs = append(errs, fmt.Errorf("probe.axis: %w", err))
	}
	if c.Mesh.Cells <= 0 {
		errs = append(errs, fmt.Errorf("mesh.cells must be positive, got %d", c.Mesh.Cells))
	}
	if c.Voxel.Spacing <= 0 {
		errs = append(errs, fmt.Errorf("voxel.spacing must be positive, got %g", c.Voxel.Spacing))
	}
	for i := 1; i < len(c.Margin.Thresholds); i++ {
		if c.Margin.Thresholds[i] <= c.Margin.Thresholds[i-1] {
			errs = append(errs, fmt.Errorf("margin.thresholds must ascend: %g follows %g",
				c.Margin.Thresholds[i], c.Margin.Thresholds[i-1]))
			break
		}
	}
	if c.Engine.Timeout < 0 {
		errs = append(errs, fmt.Errorf("engine.timeout must not be negative, got %s", c.Engine.Timeout))
	}
	return errors.Join(errs...)
}
