package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSurface counts publishes and remembers the last field.
type recordingSurface struct {
	publishes int
	last      *NormalField
}

func (r *recordingSurface) Publish(n *NormalField) error {
	r.publishes++
	r.last = n
	return nil
}

func TestFrameWithoutSurfaceSkipsNormals(t *testing.T) {
	// No output resolution configured at all; the frame must still succeed.
	s := newTestSimulator(t, smallOptions())
	sched := NewScheduler(s, nil)
	require.NoError(t, sched.Frame(0.016))
	assert.Equal(t, uint64(1), sched.LastStats().Frame)
}

func TestFramePublishesToSurface(t *testing.T) {
	opts := smallOptions()
	opts.OutputWidth, opts.OutputHeight = 16, 16
	s := newTestSimulator(t, opts)
	surface := &recordingSurface{}
	sched := NewScheduler(s, surface)

	require.NoError(t, sched.Frame(0.016))
	require.NoError(t, sched.Frame(0.016))
	assert.Equal(t, 2, surface.publishes)
	require.NotNil(t, surface.last)
	assert.Equal(t, 16, surface.last.Width)
}

func TestPickTranslatesToGridCell(t *testing.T) {
	s := newTestSimulator(t, smallOptions())
	sched := NewScheduler(s, nil)
	sched.QueuePick(0.5, 0.25)
	require.NoError(t, sched.Frame(0.004))

	stats := sched.LastStats()
	assert.Equal(t, 1, stats.Picks)
	assert.Greater(t, stats.TotalEnergy, 0.0)
}

func TestPickOutsideUnitSquareIsDropped(t *testing.T) {
	s := newTestSimulator(t, smallOptions())
	sched := NewScheduler(s, nil)
	sched.QueuePick(1.0, 0.5)  // floor(1.0 * width) is out of range
	sched.QueuePick(-0.1, 0.5) // negative cell
	require.NoError(t, sched.Frame(0.004))
	assert.Equal(t, 0.0, sched.LastStats().TotalEnergy)
}

func TestElapsedTimeAccumulates(t *testing.T) {
	s := newTestSimulator(t, smallOptions())
	sched := NewScheduler(s, nil)
	for i := 0; i < 4; i++ {
		require.NoError(t, sched.Frame(0.25))
	}
	assert.InDelta(t, 1.0, sched.LastStats().Elapsed, 1e-12)
}
