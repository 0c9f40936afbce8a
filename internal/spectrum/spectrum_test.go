package spectrum

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultParams() Params {
	return Params{
		WindSpeed:         10,
		ZetaMin:           math.Log2(0.03),
		ZetaMax:           math.Log2(10),
		QuadratureSamples: 100,
		RealWorldScale:    10,
	}
}

func TestIntegrateConstant(t *testing.T) {
	one := func(float64) float64 { return 1 }
	for _, count := range []int{1, 2, 7, 100} {
		got := Integrate(count, -3, 5, one)
		assert.InDelta(t, 8.0, got, 1e-12, "count=%d", count)
	}
}

func TestIntegrateAffineExact(t *testing.T) {
	// Midpoint rule is exact for m*x + c regardless of subdivision.
	f := func(x float64) float64 { return 2.5*x - 4 }
	want := 2.5/2*(9*9-2*2) - 4*(9-2)
	for _, count := range []int{1, 3, 50} {
		got := Integrate(count, 2, 9, f)
		assert.InDelta(t, want, got, 1e-10, "count=%d", count)
	}
}

func TestDensityNonNegative(t *testing.T) {
	p := defaultParams()
	n := 1000
	for i := 0; i <= n; i++ {
		zeta := p.ZetaMin + (p.ZetaMax-p.ZetaMin)*float64(i)/float64(n)
		if p.Density(zeta) < 0 {
			t.Fatalf("density negative at zeta=%g", zeta)
		}
	}
}

func TestDensityReferenceSample(t *testing.T) {
	p := defaultParams()
	// 0.139098 * sqrt(exp(-1.8038897788076411/10^4)) at zeta = 0.
	assert.InDelta(t, 0.13901, p.Density(0), 1e-4)
}

func TestDeriveReferenceGroupSpeed(t *testing.T) {
	consts, err := defaultParams().Derive()
	require.NoError(t, err)
	// Recorded reference for the default configuration.
	assert.InDelta(t, 11.986110214711852, consts.GroupSpeed, 1e-9)
	assert.InDelta(t, 100.0, consts.Period, 1e-9)
}

func TestDeriveRejectsDegenerateConfig(t *testing.T) {
	p := defaultParams()
	p.QuadratureSamples = 0
	_, err := p.Derive()
	assert.Error(t, err)

	p = defaultParams()
	p.ZetaMax = p.ZetaMin
	_, err = p.Derive()
	assert.Error(t, err)
}
