package compute

import (
	"math"

	"waveletsim/internal/spectrum"
)

// Diffusion coefficients, scaled by groupSpeed*dt at dispatch time. The
// combined weight is clamped so the stencil stays a convex combination;
// amplitudes can then never go negative through diffusion.
const (
	diffusionAngular = 0.025
	diffusionSpatial = 0.0005
	maxDiffusion     = 0.5
)

// profileIntegrationNodes is the midpoint-rule node count used when
// integrating the spectrum into each profile sample.
const profileIntegrationNodes = 100

// cpuPrograms is the CPU backend's program: the five kernel bodies keyed by
// the names every Device must resolve.
var cpuPrograms = map[string]cpuProgram{
	KernelAdvect: {
		scalars: []string{"dt", "group_speed", "origin_x", "origin_y", "cell_size_x", "cell_size_y"},
		buffers: []bufferReq{
			{"amp_in", ampSize},
			{"amp_out", ampSize},
		},
		run: runAdvect,
	},
	KernelDiffuse: {
		scalars: []string{"dt", "group_speed"},
		buffers: []bufferReq{
			{"amp_in", ampSize},
			{"amp_out", ampSize},
		},
		run: runDiffuse,
	},
	KernelInjectPoint: {
		scalars: []string{"strength"},
		ints:    []string{"x", "y", "width", "height"},
		buffers: []bufferReq{
			{"amp", func(a *kernelArgs, ext Extent) int {
				return a.integer("width") * a.integer("height") * ext.Z
			}},
		},
		run: runInjectPoint,
	},
	KernelProfileBuffer: {
		scalars: []string{"time", "period", "wind_speed", "zeta_min", "zeta_max"},
		buffers: []bufferReq{
			{"profile", func(_ *kernelArgs, ext Extent) int { return 2 * ext.X }},
		},
		run: runProfileBuffer,
	},
	KernelNormals: {
		scalars: []string{"period"},
		ints:    []string{"width", "height", "directions", "profile_size"},
		buffers: []bufferReq{
			{"amp", func(a *kernelArgs, _ Extent) int {
				return a.integer("width") * a.integer("height") * a.integer("directions")
			}},
			{"profile", func(a *kernelArgs, _ Extent) int { return 2 * a.integer("profile_size") }},
			{"normals", func(_ *kernelArgs, ext Extent) int { return 3 * ext.X * ext.Y }},
		},
		run: runNormals,
	},
}

func ampSize(_ *kernelArgs, ext Extent) int { return ext.Count() }

// binAngle returns the travel direction encoded by a direction bin center.
func binAngle(bin, directions int) float64 {
	return 2 * math.Pi * (float64(bin) + 0.5) / float64(directions)
}

// sampleAmplitude reads the amplitude grid bilinearly at fractional cell
// coordinates within one direction slice. Cells outside the grid contribute
// zero, so transported energy is absorbed at the boundary rather than
// reflected.
func sampleAmplitude(amp []float32, width, height, bin int, fx, fy float64) float32 {
	x0 := int(math.Floor(fx))
	y0 := int(math.Floor(fy))
	tx := float32(fx - float64(x0))
	ty := float32(fy - float64(y0))
	at := func(x, y int) float32 {
		if x < 0 || x >= width || y < 0 || y >= height {
			return 0
		}
		return amp[(bin*height+y)*width+x]
	}
	top := at(x0, y0)*(1-tx) + at(x0+1, y0)*tx
	bottom := at(x0, y0+1)*(1-tx) + at(x0+1, y0+1)*tx
	return top*(1-ty) + bottom*ty
}

// runAdvect transports each cell's amplitude along its direction bin via a
// semi-Lagrangian backtrace: the output cell samples the input grid at the
// departure point groupSpeed*dt behind it.
func runAdvect(a *kernelArgs, ext Extent, lo, hi int) {
	in := a.buffer("amp_in")
	out := a.buffer("amp_out")
	dt := a.scalar("dt")
	gs := a.scalar("group_speed")
	ox := a.scalar("origin_x")
	oy := a.scalar("origin_y")
	csx := a.scalar("cell_size_x")
	csy := a.scalar("cell_size_y")
	w, h, d := ext.X, ext.Y, ext.Z
	dist := gs * dt
	for i := lo; i < hi; i++ {
		x := i % w
		y := (i / w) % h
		bin := i / (w * h)
		theta := binAngle(bin, d)
		px := ox + (float64(x)+0.5)*csx - math.Cos(theta)*dist
		py := oy + (float64(y)+0.5)*csy - math.Sin(theta)*dist
		fx := (px-ox)/csx - 0.5
		fy := (py-oy)/csy - 0.5
		out[i] = sampleAmplitude(in, w, h, bin, fx, fy)
	}
}

// runDiffuse smooths the field across neighboring direction bins (cyclic)
// and, weakly, across spatial neighbors. This damps the aliasing the
// discrete transport step introduces; it is a stability measure, not an
// attenuation model.
func runDiffuse(a *kernelArgs, ext Extent, lo, hi int) {
	in := a.buffer("amp_in")
	out := a.buffer("amp_out")
	dt := a.scalar("dt")
	gs := a.scalar("group_speed")
	w, h, d := ext.X, ext.Y, ext.Z

	minDim := w
	if h < minDim {
		minDim = h
	}
	gammaTheta := diffusionAngular * gs * dt * float64(d)
	gammaSpat := diffusionSpatial * gs * dt * float64(minDim)
	if total := gammaTheta + gammaSpat; total > maxDiffusion {
		scale := maxDiffusion / total
		gammaTheta *= scale
		gammaSpat *= scale
	}
	gt := float32(gammaTheta)
	gp := float32(gammaSpat)
	center := 1 - gt - gp

	at := func(x, y, bin int) float32 { return in[(bin*h+y)*w+x] }
	// Spatial neighbors clamp to the center cell at the border so the
	// stencil weights always sum to one.
	atClamped := func(x, y, bin int, c float32) float32 {
		if x < 0 || x >= w || y < 0 || y >= h {
			return c
		}
		return at(x, y, bin)
	}
	for i := lo; i < hi; i++ {
		x := i % w
		y := (i / w) % h
		bin := i / (w * h)
		c := at(x, y, bin)
		prev := at(x, y, (bin+d-1)%d)
		next := at(x, y, (bin+1)%d)
		spatial := atClamped(x-1, y, bin, c) + atClamped(x+1, y, bin, c) +
			atClamped(x, y-1, bin, c) + atClamped(x, y+1, bin, c)
		out[i] = center*c + 0.5*gt*(prev+next) + 0.25*gp*spatial
	}
}

// runInjectPoint adds an impulse across every direction bin of one cell,
// writing the amplitude buffer in place. The extent spans the direction
// axis only, so no two invocations touch the same element.
func runInjectPoint(a *kernelArgs, ext Extent, lo, hi int) {
	amp := a.buffer("amp")
	w := a.integer("width")
	h := a.integer("height")
	x := a.integer("x")
	y := a.integer("y")
	strength := float32(a.scalar("strength"))
	if x < 0 || x >= w || y < 0 || y >= h {
		return
	}
	for bin := lo; bin < hi; bin++ {
		amp[(bin*h+y)*w+x] += strength
	}
}

// runProfileBuffer rebuilds the periodic waveform table. Sample i holds the
// vertical displacement at phase fraction i/size and its derivative per
// unit phase fraction, each integrated over the spectrum with the midpoint
// rule. Angular frequencies are snapped to harmonics of 2*pi/period, which
// makes the table exactly periodic in time with period `period`.
func runProfileBuffer(a *kernelArgs, ext Extent, lo, hi int) {
	profile := a.buffer("profile")
	t := a.scalar("time")
	period := a.scalar("period")
	zetaMin := a.scalar("zeta_min")
	zetaMax := a.scalar("zeta_max")
	params := spectrum.Params{WindSpeed: a.scalar("wind_speed")}

	size := ext.X
	// Period is the largest wavelength in world units, so the world scale
	// factor is recoverable from the domain bound.
	worldScale := period / math.Exp2(zetaMax)
	baseOmega := 2 * math.Pi / period

	for i := lo; i < hi; i++ {
		p := float64(i) / float64(size) * period
		wave := func(zeta float64) (dens, k, phi float64) {
			wavelength := worldScale * math.Exp2(zeta)
			k = 2 * math.Pi / wavelength
			omega := math.Sqrt(spectrum.Gravity * k)
			harmonic := math.Round(omega / baseOmega)
			if harmonic < 1 {
				harmonic = 1
			}
			return params.Density(zeta), k, k*p - harmonic*baseOmega*t
		}
		disp := spectrum.Integrate(profileIntegrationNodes, zetaMin, zetaMax, func(zeta float64) float64 {
			dens, _, phi := wave(zeta)
			return dens * math.Cos(phi)
		})
		slope := spectrum.Integrate(profileIntegrationNodes, zetaMin, zetaMax, func(zeta float64) float64 {
			dens, k, phi := wave(zeta)
			return -dens * k * period * math.Sin(phi)
		})
		profile[2*i] = float32(disp)
		profile[2*i+1] = float32(slope)
	}
}

// profileSlope samples the stored derivative linearly at phase fraction
// s in [0,1), wrapping at the period boundary.
func profileSlope(profile []float32, size int, s float64) float64 {
	fi := s * float64(size)
	i0 := int(math.Floor(fi)) % size
	if i0 < 0 {
		i0 += size
	}
	i1 := (i0 + 1) % size
	t := float32(fi - math.Floor(fi))
	return float64(profile[2*i0+1]*(1-t) + profile[2*i1+1]*t)
}

// runNormals reconstructs a surface normal per output texel: each direction
// bin contributes its amplitude times the profile slope at the texel's
// phase along that direction, accumulated into a height gradient.
func runNormals(a *kernelArgs, ext Extent, lo, hi int) {
	amp := a.buffer("amp")
	profile := a.buffer("profile")
	normals := a.buffer("normals")
	w := a.integer("width")
	h := a.integer("height")
	d := a.integer("directions")
	profileSize := a.integer("profile_size")
	outW, outH := ext.X, ext.Y

	for i := lo; i < hi; i++ {
		ix := i % outW
		iy := i / outW
		u := (float64(ix) + 0.5) / float64(outW)
		v := (float64(iy) + 0.5) / float64(outH)
		var dhdu, dhdv float64
		for bin := 0; bin < d; bin++ {
			theta := binAngle(bin, d)
			ct := math.Cos(theta)
			st := math.Sin(theta)
			value := float64(sampleAmplitude(amp, w, h, bin, u*float64(w)-0.5, v*float64(h)-0.5))
			if value == 0 {
				continue
			}
			s := u*ct + v*st
			s -= math.Floor(s)
			slope := profileSlope(profile, profileSize, s)
			dhdu += value * slope * ct
			dhdv += value * slope * st
		}
		nx := -dhdu
		ny := -dhdv
		nz := 1.0
		inv := 1 / math.Sqrt(nx*nx+ny*ny+nz*nz)
		normals[3*i] = float32(nx * inv)
		normals[3*i+1] = float32(ny * inv)
		normals[3*i+2] = float32(nz * inv)
	}
}
