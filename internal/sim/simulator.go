package sim

import (
	"fmt"

	"waveletsim/internal/compute"
	"waveletsim/internal/spectrum"
)

// injectStrength is the fixed energy impulse added to every direction bin
// of the injected cell.
const injectStrength = 0.5

// Options fixes the grid and output geometry at initialization. Changing
// any of these requires constructing a new Simulator.
type Options struct {
	Width        int
	Height       int
	Directions   int
	ProfileSize  int
	OutputWidth  int
	OutputHeight int
}

// Simulator owns the amplitude field, the profile buffer, and the resolved
// kernels, and exposes the individual pipeline steps. The Scheduler
// sequences them; nothing here enforces frame ordering.
type Simulator struct {
	opts   Options
	params spectrum.Params
	consts spectrum.Constants

	field   *AmplitudeField
	profile []float32
	normals *NormalField

	advect    compute.Kernel
	diffuse   compute.Kernel
	inject    compute.Kernel
	profileK  compute.Kernel
	normalsK  compute.Kernel
	ampExtent compute.Extent
}

// NewSimulator derives the spectral constants, allocates all buffers, and
// resolves every kernel. Any unresolvable kernel is returned as an error;
// callers treat it as fatal.
func NewSimulator(dev compute.Device, params spectrum.Params, opts Options) (*Simulator, error) {
	consts, err := params.Derive()
	if err != nil {
		return nil, fmt.Errorf("deriving spectral constants: %w", err)
	}
	field, err := NewAmplitudeField(opts.Width, opts.Height, opts.Directions)
	if err != nil {
		return nil, err
	}
	if opts.ProfileSize < 2 {
		return nil, fmt.Errorf("profile buffer size %d is below 2", opts.ProfileSize)
	}
	s := &Simulator{
		opts:      opts,
		params:    params,
		consts:    consts,
		field:     field,
		profile:   make([]float32, 2*opts.ProfileSize),
		ampExtent: compute.Extent{X: opts.Width, Y: opts.Height, Z: opts.Directions},
	}
	if opts.OutputWidth > 0 && opts.OutputHeight > 0 {
		s.normals = newNormalField(opts.OutputWidth, opts.OutputHeight)
	}
	for _, bind := range []struct {
		name   string
		target *compute.Kernel
	}{
		{compute.KernelAdvect, &s.advect},
		{compute.KernelDiffuse, &s.diffuse},
		{compute.KernelInjectPoint, &s.inject},
		{compute.KernelProfileBuffer, &s.profileK},
		{compute.KernelNormals, &s.normalsK},
	} {
		k, err := dev.Kernel(bind.name)
		if err != nil {
			return nil, fmt.Errorf("initializing simulator: %w", err)
		}
		*bind.target = k
	}
	s.prepareStaticArgs()
	return s, nil
}

// prepareStaticArgs binds the parameters that never change between frames.
func (s *Simulator) prepareStaticArgs() {
	s.advect.SetScalar("group_speed", s.consts.GroupSpeed)
	s.advect.SetScalar("origin_x", 0)
	s.advect.SetScalar("origin_y", 0)
	s.advect.SetScalar("cell_size_x", 1/float64(s.opts.Width))
	s.advect.SetScalar("cell_size_y", 1/float64(s.opts.Height))

	s.diffuse.SetScalar("group_speed", s.consts.GroupSpeed)

	s.inject.SetScalar("strength", injectStrength)
	s.inject.SetInt("width", s.opts.Width)
	s.inject.SetInt("height", s.opts.Height)

	s.profileK.SetScalar("period", s.consts.Period)
	s.profileK.SetScalar("wind_speed", s.params.WindSpeed)
	s.profileK.SetScalar("zeta_min", s.params.ZetaMin)
	s.profileK.SetScalar("zeta_max", s.params.ZetaMax)
	s.profileK.BindBuffer("profile", s.profile)

	s.normalsK.SetScalar("period", s.consts.Period)
	s.normalsK.SetInt("width", s.opts.Width)
	s.normalsK.SetInt("height", s.opts.Height)
	s.normalsK.SetInt("directions", s.opts.Directions)
	s.normalsK.SetInt("profile_size", s.opts.ProfileSize)
	s.normalsK.BindBuffer("profile", s.profile)
}

// Field exposes the amplitude field, primarily for tests and monitoring.
func (s *Simulator) Field() *AmplitudeField { return s.field }

// Constants returns the derived spectral constants.
func (s *Simulator) Constants() spectrum.Constants { return s.consts }

// Advect transports the whole field along its direction bins and swaps the
// buffer pair.
func (s *Simulator) Advect(dt float64) error {
	s.advect.SetScalar("dt", dt)
	s.advect.BindBuffer("amp_in", s.field.Current())
	s.advect.BindBuffer("amp_out", s.field.Next())
	if err := s.advect.Dispatch(s.ampExtent); err != nil {
		return fmt.Errorf("advect: %w", err)
	}
	s.field.Swap()
	return nil
}

// Diffuse smooths the whole field and swaps the buffer pair.
func (s *Simulator) Diffuse(dt float64) error {
	s.diffuse.SetScalar("dt", dt)
	s.diffuse.BindBuffer("amp_in", s.field.Current())
	s.diffuse.BindBuffer("amp_out", s.field.Next())
	if err := s.diffuse.Dispatch(s.ampExtent); err != nil {
		return fmt.Errorf("diffuse: %w", err)
	}
	s.field.Swap()
	return nil
}

// InjectPoint adds an impulse across all direction bins at one grid cell,
// in place in the current buffer. Out-of-range coordinates are rejected as
// a no-op; the buffer pair does not swap.
func (s *Simulator) InjectPoint(x, y int) error {
	if x < 0 || x >= s.opts.Width || y < 0 || y >= s.opts.Height {
		return nil
	}
	s.inject.SetInt("x", x)
	s.inject.SetInt("y", y)
	s.inject.BindBuffer("amp", s.field.Current())
	if err := s.inject.Dispatch(compute.Extent{X: 1, Y: 1, Z: s.opts.Directions}); err != nil {
		return fmt.Errorf("inject: %w", err)
	}
	return nil
}

// RebuildProfile recomputes the periodic waveform table for the given
// elapsed time. Identical inputs reproduce identical output.
func (s *Simulator) RebuildProfile(t float64) error {
	s.profileK.SetScalar("time", t)
	if err := s.profileK.Dispatch(compute.Extent{X: s.opts.ProfileSize, Y: 1, Z: 1}); err != nil {
		return fmt.Errorf("profile: %w", err)
	}
	return nil
}

// Profile returns the current waveform table as (displacement, slope)
// pairs.
func (s *Simulator) Profile() []float32 { return s.profile }

// ReconstructNormals derives the normal field from the current amplitude
// buffer and profile buffer. It requires output dimensions to have been
// configured.
func (s *Simulator) ReconstructNormals() (*NormalField, error) {
	if s.normals == nil {
		return nil, fmt.Errorf("no output resolution configured")
	}
	s.normalsK.BindBuffer("amp", s.field.Current())
	s.normalsK.BindBuffer("normals", s.normals.Data)
	ext := compute.Extent{X: s.normals.Width, Y: s.normals.Height, Z: 1}
	if err := s.normalsK.Dispatch(ext); err != nil {
		return nil, fmt.Errorf("normals: %w", err)
	}
	return s.normals, nil
}
