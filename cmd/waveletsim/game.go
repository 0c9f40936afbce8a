package main

import (
	"time"

	"github.com/hajimehoshi/ebiten/v2"

	"waveletsim/internal/sim"
	"waveletsim/internal/ws"
)

const (
	defaultDt  = 1.0 / 60.0
	maxFrameDt = 0.1
)

// Game drives the simulation from Ebiten's tick loop and acts as the
// scheduler's output surface, converting each published normal field into
// screen pixels.
type Game struct {
	sched *sim.Scheduler
	state *ws.State

	outW, outH int
	pixels     []byte

	lastTick        time.Time
	lastSimDuration time.Duration
}

func newGame(sched *sim.Scheduler, state *ws.State, outW, outH int) *Game {
	return &Game{
		sched: sched,
		state: state,
		outW:  outW,
		outH:  outH,
	}
}

// Publish stores the normal field as RGBA pixels for Draw and fans it out
// to the WebSocket preview. It satisfies sim.Surface.
func (g *Game) Publish(n *sim.NormalField) error {
	if len(g.pixels) != 4*n.Width*n.Height {
		g.pixels = make([]byte, 4*n.Width*n.Height)
	}
	ws.EncodeNormals(n, g.pixels)
	if g.state != nil {
		return g.state.Publish(n)
	}
	return nil
}

// Update forwards mouse picks and runs one pipeline frame with the real
// elapsed time.
func (g *Game) Update() error {
	now := time.Now()
	dt := defaultDt
	if !g.lastTick.IsZero() {
		dt = now.Sub(g.lastTick).Seconds()
		if dt <= 0 {
			dt = defaultDt
		} else if dt > maxFrameDt {
			dt = maxFrameDt
		}
	}
	g.lastTick = now

	if ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft) {
		cx, cy := ebiten.CursorPosition()
		if cx >= 0 && cx < g.outW && cy >= 0 && cy < g.outH {
			u := float64(cx) / float64(g.outW)
			v := float64(cy) / float64(g.outH)
			g.sched.QueuePick(u, v)
		}
	}

	simStart := time.Now()
	if err := g.sched.Frame(dt); err != nil {
		return err
	}
	g.lastSimDuration = time.Since(simStart)
	if g.state != nil {
		g.state.SetStats(g.sched.LastStats())
	}
	return nil
}
