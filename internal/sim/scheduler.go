package sim

import "math"

// PickEvent is a normalized hit coordinate in [0,1)^2 supplied by the
// external input collaborator.
type PickEvent struct {
	U, V float64
}

// Surface receives the reconstructed normal field each frame. The field is
// owned by the simulation; implementations must treat it as read-only and
// must not retain it across frames.
type Surface interface {
	Publish(n *NormalField) error
}

// Stats summarizes the last completed frame.
type Stats struct {
	Frame       uint64
	Elapsed     float64
	Picks       int
	TotalEnergy float64
}

// Scheduler sequences the fixed per-frame pipeline. It owns no simulation
// state beyond the pick queue and the clock; ordering is enforced here and
// nowhere else.
type Scheduler struct {
	sim     *Simulator
	surface Surface
	picks   []PickEvent
	elapsed float64
	frame   uint64
	stats   Stats
}

// NewScheduler wires a simulator to an optional output surface. A nil
// surface skips normal reconstruction entirely; the rest of the pipeline
// still runs.
func NewScheduler(s *Simulator, surface Surface) *Scheduler {
	return &Scheduler{sim: s, surface: surface}
}

// QueuePick records a pick event for the next frame. Coordinates outside
// [0,1) translate to out-of-range grid cells and are dropped at the
// injection boundary.
func (sc *Scheduler) QueuePick(u, v float64) {
	sc.picks = append(sc.picks, PickEvent{U: u, V: v})
}

// Frame runs one pipeline pass: queued injections, advect, diffuse, profile
// rebuild, then normal reconstruction when a surface is configured.
// Injection happens before transport, so injected energy is carried away
// within the same frame rather than settling at the picked cell.
func (sc *Scheduler) Frame(dt float64) error {
	picks := len(sc.picks)
	for _, pick := range sc.picks {
		x := int(math.Floor(pick.U * float64(sc.sim.opts.Width)))
		y := int(math.Floor(pick.V * float64(sc.sim.opts.Height)))
		if err := sc.sim.InjectPoint(x, y); err != nil {
			return err
		}
	}
	sc.picks = sc.picks[:0]

	if err := sc.sim.Advect(dt); err != nil {
		return err
	}
	if err := sc.sim.Diffuse(dt); err != nil {
		return err
	}

	sc.elapsed += dt
	if err := sc.sim.RebuildProfile(sc.elapsed); err != nil {
		return err
	}

	if sc.surface != nil {
		normals, err := sc.sim.ReconstructNormals()
		if err != nil {
			return err
		}
		if err := sc.surface.Publish(normals); err != nil {
			return err
		}
	}

	sc.frame++
	sc.stats = Stats{
		Frame:       sc.frame,
		Elapsed:     sc.elapsed,
		Picks:       picks,
		TotalEnergy: sc.sim.field.Total(),
	}
	return nil
}

// LastStats reports the summary of the most recent frame.
func (sc *Scheduler) LastStats() Stats { return sc.stats }
