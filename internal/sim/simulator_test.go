package sim

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waveletsim/internal/compute"
	"waveletsim/internal/spectrum"
)

func testParams() spectrum.Params {
	return spectrum.Params{
		WindSpeed:         10,
		ZetaMin:           math.Log2(0.03),
		ZetaMax:           math.Log2(10),
		QuadratureSamples: 100,
		RealWorldScale:    10,
	}
}

func newTestSimulator(t *testing.T, opts Options) *Simulator {
	t.Helper()
	s, err := NewSimulator(compute.NewCPUDevice(), testParams(), opts)
	require.NoError(t, err)
	return s
}

func smallOptions() Options {
	return Options{Width: 32, Height: 32, Directions: 8, ProfileSize: 64}
}

func fullOptions() Options {
	return Options{Width: 128, Height: 128, Directions: 16, ProfileSize: 256}
}

func TestBufferParityReturnsAfterFrame(t *testing.T) {
	s := newTestSimulator(t, smallOptions())
	sched := NewScheduler(s, nil)
	before := s.Field().CurrentSlot()
	require.NoError(t, sched.Frame(0.016))
	// Advect and Diffuse each toggle once; parity is restored.
	assert.Equal(t, before, s.Field().CurrentSlot())
}

func TestInjectPointOutOfRangeIsNoOp(t *testing.T) {
	s := newTestSimulator(t, smallOptions())
	for _, c := range [][2]int{{-1, 5}, {5, -1}, {32, 0}, {0, 32}, {100, 100}} {
		require.NoError(t, s.InjectPoint(c[0], c[1]))
	}
	for _, buf := range [][]float32{s.Field().Current(), s.Field().Next()} {
		for i, v := range buf {
			if v != 0 {
				t.Fatalf("buffer modified at %d: %g", i, v)
			}
		}
	}
	assert.Equal(t, 0, s.Field().CurrentSlot())
}

func TestInjectPointHitsEveryDirectionBin(t *testing.T) {
	s := newTestSimulator(t, smallOptions())
	require.NoError(t, s.InjectPoint(7, 9))
	for bin := 0; bin < 8; bin++ {
		assert.Equal(t, float32(injectStrength), s.Field().At(7, 9, bin), "bin %d", bin)
	}
	// In-place write: the buffer pair did not swap.
	assert.Equal(t, 0, s.Field().CurrentSlot())
}

func TestZeroFieldStaysZero(t *testing.T) {
	s := newTestSimulator(t, fullOptions())
	sched := NewScheduler(s, nil)
	for i := 0; i < 10; i++ {
		require.NoError(t, sched.Frame(0.016))
	}
	for i, v := range s.Field().Current() {
		if v != 0 {
			t.Fatalf("spontaneous energy %g at %d", v, i)
		}
	}
}

func TestInjectionTransportsNearInjectedCell(t *testing.T) {
	s := newTestSimulator(t, fullOptions())
	require.NoError(t, s.InjectPoint(64, 64))

	dt := 0.001
	require.NoError(t, s.Advect(dt))
	require.NoError(t, s.Diffuse(dt))

	// Transport moves energy at most groupSpeed*dt across the normalized
	// domain; bilinear sampling and the diffusion stencil add one cell each.
	cells := s.Constants().GroupSpeed * dt * 128
	maxRadius := int(math.Ceil(cells)) + 2

	var total float64
	f := s.Field()
	for bin := 0; bin < f.Directions; bin++ {
		for y := 0; y < f.Height; y++ {
			for x := 0; x < f.Width; x++ {
				v := f.At(x, y, bin)
				if v < 0 {
					t.Fatalf("negative amplitude %g at (%d,%d,%d)", v, x, y, bin)
				}
				if v == 0 {
					continue
				}
				total += float64(v)
				dx, dy := x-64, y-64
				if dx < -maxRadius || dx > maxRadius || dy < -maxRadius || dy > maxRadius {
					t.Fatalf("energy %g escaped to (%d,%d,%d), radius limit %d", v, x, y, bin, maxRadius)
				}
			}
		}
	}
	assert.Greater(t, total, 0.0, "injected energy vanished")
}

func TestProfileBufferTimePeriodicity(t *testing.T) {
	s := newTestSimulator(t, smallOptions())
	period := s.Constants().Period

	require.NoError(t, s.RebuildProfile(1.37))
	first := append([]float32(nil), s.Profile()...)

	require.NoError(t, s.RebuildProfile(1.37+period))
	second := s.Profile()

	// Slope samples reach a few thousand in magnitude, so allow a few
	// float32 ulps.
	for i := range first {
		assert.InDelta(t, first[i], second[i], 2e-3, "sample %d", i)
	}
}

func TestProfileBufferDeterministic(t *testing.T) {
	s := newTestSimulator(t, smallOptions())
	require.NoError(t, s.RebuildProfile(4.2))
	first := append([]float32(nil), s.Profile()...)
	require.NoError(t, s.RebuildProfile(4.2))
	assert.Equal(t, first, s.Profile())
}

func TestNormalsFlatFieldPointUp(t *testing.T) {
	opts := smallOptions()
	opts.OutputWidth, opts.OutputHeight = 16, 16
	s := newTestSimulator(t, opts)
	require.NoError(t, s.RebuildProfile(0))
	normals, err := s.ReconstructNormals()
	require.NoError(t, err)
	for y := 0; y < normals.Height; y++ {
		for x := 0; x < normals.Width; x++ {
			n := normals.At(x, y)
			assert.InDelta(t, 0, n.X(), 1e-6)
			assert.InDelta(t, 0, n.Y(), 1e-6)
			assert.InDelta(t, 1, n.Z(), 1e-6)
		}
	}
}

func TestNormalsPerturbedAfterInjection(t *testing.T) {
	opts := smallOptions()
	opts.OutputWidth, opts.OutputHeight = 32, 32
	s := newTestSimulator(t, opts)
	require.NoError(t, s.InjectPoint(16, 16))
	require.NoError(t, s.RebuildProfile(0.5))
	normals, err := s.ReconstructNormals()
	require.NoError(t, err)

	tilted := false
	for y := 0; y < normals.Height && !tilted; y++ {
		for x := 0; x < normals.Width; x++ {
			n := normals.At(x, y)
			if math.Abs(float64(n.X())) > 1e-6 || math.Abs(float64(n.Y())) > 1e-6 {
				tilted = true
				break
			}
			// Unit length regardless.
			length := math.Sqrt(float64(n.X()*n.X() + n.Y()*n.Y() + n.Z()*n.Z()))
			assert.InDelta(t, 1, length, 1e-5)
		}
	}
	assert.True(t, tilted, "injected energy produced no normal perturbation")
}

func TestReconstructNormalsWithoutOutputResolution(t *testing.T) {
	s := newTestSimulator(t, smallOptions())
	_, err := s.ReconstructNormals()
	assert.Error(t, err)
}
