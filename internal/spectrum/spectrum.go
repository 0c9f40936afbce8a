// Package spectrum derives the scalar constants that seed the wave
// simulation from a directional energy-density model over log2-wavelength.
package spectrum

import (
	"fmt"
	"math"
)

// Gravity is the gravitational acceleration used by the deep-water
// dispersion relation.
const Gravity = 9.81

// pmPeakScale is the exponential falloff constant of the energy density;
// it divides by windSpeed^4.
const pmPeakScale = 1.8038897788076411

// Params holds the immutable spectral configuration. All fields are fixed
// at startup; derived constants are computed once via Derive.
type Params struct {
	// WindSpeed parameterizes the energy density falloff.
	WindSpeed float64
	// ZetaMin and ZetaMax bound the log2-wavelength domain.
	ZetaMin float64
	ZetaMax float64
	// QuadratureSamples is the subinterval count for the midpoint rule.
	QuadratureSamples int
	// RealWorldScale converts spectrum-domain lengths to world units.
	RealWorldScale float64
}

// Constants are the values derived once from Params and never recomputed.
type Constants struct {
	// GroupSpeed is the energy-weighted average group velocity, scaled to
	// world units. It governs amplitude transport.
	GroupSpeed float64
	// Period is the largest represented wavelength in world units; the
	// profile buffer repeats over it in both space and time.
	Period float64
}

// Density returns the energy density at log2-wavelength zeta. It is
// non-negative everywhere on the domain.
func (p Params) Density(zeta float64) float64 {
	a := math.Exp2(1.5 * zeta)
	b := math.Exp(-pmPeakScale * math.Exp2(2*zeta) / math.Pow(p.WindSpeed, 4))
	return 0.139098 * math.Sqrt(a*b)
}

// Integrate applies the composite midpoint rule over count equal
// subintervals of [min, max]. It is exact for affine integrands and is the
// only quadrature used by the simulation.
func Integrate(count int, min, max float64, f func(float64) float64) float64 {
	dx := (max - min) / float64(count)
	var sum float64
	for i := 0; i < count; i++ {
		x := min + (float64(i)+0.5)*dx
		sum += f(x)
	}
	return sum * dx
}

// groupVelocity returns the deep-water group velocity for the wavelength
// encoded by zeta.
func groupVelocity(zeta float64) float64 {
	wavelength := math.Exp2(zeta)
	k := 2 * math.Pi / wavelength
	return 0.5 * math.Sqrt(Gravity/k)
}

// Derive computes the simulation constants. It fails when the density
// integral is not strictly positive, which would make the energy-weighted
// average undefined; callers treat that as a fatal configuration error.
func (p Params) Derive() (Constants, error) {
	if p.QuadratureSamples < 1 {
		return Constants{}, fmt.Errorf("quadrature sample count %d is below 1", p.QuadratureSamples)
	}
	if p.ZetaMax <= p.ZetaMin {
		return Constants{}, fmt.Errorf("empty spectrum domain [%g, %g]", p.ZetaMin, p.ZetaMax)
	}
	weighted := Integrate(p.QuadratureSamples, p.ZetaMin, p.ZetaMax, func(zeta float64) float64 {
		return groupVelocity(zeta) * p.Density(zeta)
	})
	total := Integrate(p.QuadratureSamples, p.ZetaMin, p.ZetaMax, p.Density)
	if total <= 0 {
		return Constants{}, fmt.Errorf("spectrum density integral %g is not positive", total)
	}
	return Constants{
		GroupSpeed: p.RealWorldScale * weighted / total,
		Period:     p.RealWorldScale * math.Exp2(p.ZetaMax),
	}, nil
}
