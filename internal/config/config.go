// Package config holds the fixed simulation configuration. Values are read
// once at startup; changing any of them requires re-deriving the spectral
// constants and reallocating every buffer, so there is no hot reload.
package config

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"waveletsim/internal/spectrum"
)

// Grid fixes the amplitude field dimensions.
type Grid struct {
	Width      int `yaml:"width"`
	Height     int `yaml:"height"`
	Directions int `yaml:"directions"`
}

// Spectrum fixes the wave spectrum domain. Wavelength bounds are given in
// spectrum units; zeta bounds are their base-2 logarithms.
type Spectrum struct {
	WindSpeed         float64 `yaml:"wind_speed"`
	WavelengthMin     float64 `yaml:"wavelength_min"`
	WavelengthMax     float64 `yaml:"wavelength_max"`
	QuadratureSamples int     `yaml:"quadrature_samples"`
	RealWorldScale    float64 `yaml:"real_world_scale"`
}

// Output fixes the normal-map resolution published to the viewer.
type Output struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

type Config struct {
	Backend     string   `yaml:"backend"` // "cpu" | "opencl"
	Grid        Grid     `yaml:"grid"`
	Spectrum    Spectrum `yaml:"spectrum"`
	ProfileSize int      `yaml:"profile_size"`
	Output      Output   `yaml:"output"`
	Addr        string   `yaml:"addr"` // HTTP listen address for the preview endpoints
}

// Default returns the reference configuration the tests pin their recorded
// constants against.
func Default() Config {
	return Config{
		Backend: "cpu",
		Grid:    Grid{Width: 128, Height: 128, Directions: 16},
		Spectrum: Spectrum{
			WindSpeed:         10,
			WavelengthMin:     0.03,
			WavelengthMax:     10,
			QuadratureSamples: 100,
			RealWorldScale:    10,
		},
		ProfileSize: 1024,
		Output:      Output{Width: 256, Height: 256},
		Addr:        ":8090",
	}
}

// Load reads a YAML config from disk.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Save writes the config as YAML.
func Save(path string, c *Config) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Grid.Width < 2 || c.Grid.Height < 2 {
		return fmt.Errorf("grid %dx%d is too small", c.Grid.Width, c.Grid.Height)
	}
	if c.Grid.Directions < 2 {
		return fmt.Errorf("direction bin count %d is below 2", c.Grid.Directions)
	}
	if c.ProfileSize < 2 {
		return fmt.Errorf("profile buffer size %d is below 2", c.ProfileSize)
	}
	if c.Spectrum.WindSpeed <= 0 {
		return fmt.Errorf("wind speed %g must be positive", c.Spectrum.WindSpeed)
	}
	if c.Spectrum.WavelengthMin <= 0 || c.Spectrum.WavelengthMax <= c.Spectrum.WavelengthMin {
		return fmt.Errorf("wavelength range [%g, %g] is invalid",
			c.Spectrum.WavelengthMin, c.Spectrum.WavelengthMax)
	}
	if c.Spectrum.QuadratureSamples < 1 {
		return fmt.Errorf("quadrature sample count %d is below 1", c.Spectrum.QuadratureSamples)
	}
	if c.Spectrum.RealWorldScale <= 0 {
		return fmt.Errorf("real world scale %g must be positive", c.Spectrum.RealWorldScale)
	}
	switch c.Backend {
	case "cpu", "opencl":
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	return nil
}

// SpectrumParams converts the wavelength bounds to the log2 domain the
// spectrum model works in.
func (c *Config) SpectrumParams() spectrum.Params {
	return spectrum.Params{
		WindSpeed:         c.Spectrum.WindSpeed,
		ZetaMin:           math.Log2(c.Spectrum.WavelengthMin),
		ZetaMax:           math.Log2(c.Spectrum.WavelengthMax),
		QuadratureSamples: c.Spectrum.QuadratureSamples,
		RealWorldScale:    c.Spectrum.RealWorldScale,
	}
}
