package config

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	assert.NoError(t, c.Validate())
}

func TestValidateRejectsBrokenConfigs(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"tiny grid", func(c *Config) { c.Grid.Width = 1 }},
		{"one direction", func(c *Config) { c.Grid.Directions = 1 }},
		{"zero wind", func(c *Config) { c.Spectrum.WindSpeed = 0 }},
		{"inverted wavelengths", func(c *Config) { c.Spectrum.WavelengthMax = c.Spectrum.WavelengthMin }},
		{"no quadrature", func(c *Config) { c.Spectrum.QuadratureSamples = 0 }},
		{"bad backend", func(c *Config) { c.Backend = "cuda" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := Default()
			tc.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestSpectrumParamsUsesLog2Domain(t *testing.T) {
	c := Default()
	p := c.SpectrumParams()
	assert.InDelta(t, math.Log2(0.03), p.ZetaMin, 1e-12)
	assert.InDelta(t, math.Log2(10), p.ZetaMax, 1e-12)
	assert.Equal(t, 100, p.QuadratureSamples)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	c := Default()
	c.Grid.Width = 64
	c.Backend = "opencl"
	require.NoError(t, Save(path, &c))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, c, *loaded)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
