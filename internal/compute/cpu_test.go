package compute

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAmpKernel(t *testing.T, name string) Kernel {
	t.Helper()
	dev := NewCPUDevice()
	k, err := dev.Kernel(name)
	require.NoError(t, err)
	return k
}

func TestUnknownKernelName(t *testing.T) {
	dev := NewCPUDevice()
	_, err := dev.Kernel("erode")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "erode")
}

func TestDispatchRejectsMissingBindings(t *testing.T) {
	k := newAmpKernel(t, KernelDiffuse)
	ext := Extent{X: 4, Y: 4, Z: 2}
	err := k.Dispatch(ext)
	require.Error(t, err)

	k.SetScalar("dt", 0.01)
	k.SetScalar("group_speed", 1)
	k.BindBuffer("amp_in", make([]float32, ext.Count()))
	k.BindBuffer("amp_out", make([]float32, ext.Count()-1))
	err = k.Dispatch(ext)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "amp_out")
}

func TestAdvectZeroDtIsIdentity(t *testing.T) {
	ext := Extent{X: 8, Y: 8, Z: 4}
	in := make([]float32, ext.Count())
	out := make([]float32, ext.Count())
	for i := range in {
		in[i] = float32(i%13) * 0.25
	}
	k := newAmpKernel(t, KernelAdvect)
	k.SetScalar("dt", 0)
	k.SetScalar("group_speed", 5)
	k.SetScalar("origin_x", 0)
	k.SetScalar("origin_y", 0)
	k.SetScalar("cell_size_x", 1.0/float64(ext.X))
	k.SetScalar("cell_size_y", 1.0/float64(ext.Y))
	k.BindBuffer("amp_in", in)
	k.BindBuffer("amp_out", out)
	require.NoError(t, k.Dispatch(ext))
	for i := range in {
		assert.InDelta(t, in[i], out[i], 1e-6, "index %d", i)
	}
}

func TestDiffusePreservesTotalEnergyInteriorly(t *testing.T) {
	// A convex stencil away from the spatial border redistributes but does
	// not create energy, and never produces negative values.
	ext := Extent{X: 9, Y: 9, Z: 4}
	in := make([]float32, ext.Count())
	out := make([]float32, ext.Count())
	for bin := 0; bin < ext.Z; bin++ {
		in[(bin*ext.Y+4)*ext.X+4] = 1
	}
	k := newAmpKernel(t, KernelDiffuse)
	k.SetScalar("dt", 0.01)
	k.SetScalar("group_speed", 10)
	k.BindBuffer("amp_in", in)
	k.BindBuffer("amp_out", out)
	require.NoError(t, k.Dispatch(ext))

	var sumIn, sumOut float64
	for i := range in {
		sumIn += float64(in[i])
		sumOut += float64(out[i])
		if out[i] < 0 {
			t.Fatalf("negative amplitude %g at %d", out[i], i)
		}
	}
	assert.InDelta(t, sumIn, sumOut, 1e-4)
}

func TestInjectPointKernelGuardsRange(t *testing.T) {
	w, h, d := 4, 4, 2
	amp := make([]float32, w*h*d)
	k := newAmpKernel(t, KernelInjectPoint)
	k.SetScalar("strength", 1)
	k.SetInt("width", w)
	k.SetInt("height", h)
	k.SetInt("x", w) // one past the edge
	k.SetInt("y", 0)
	k.BindBuffer("amp", amp)
	require.NoError(t, k.Dispatch(Extent{X: 1, Y: 1, Z: d}))
	for i, v := range amp {
		if v != 0 {
			t.Fatalf("out-of-range inject wrote %g at %d", v, i)
		}
	}

	k.SetInt("x", 2)
	k.SetInt("y", 3)
	require.NoError(t, k.Dispatch(Extent{X: 1, Y: 1, Z: d}))
	for bin := 0; bin < d; bin++ {
		assert.Equal(t, float32(1), amp[(bin*h+3)*w+2])
	}
}
