package main

import (
	"fmt"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
)

// Draw renders the latest published normal map and the optional debug
// overlay.
func (g *Game) Draw(screen *ebiten.Image) {
	if len(g.pixels) == 4*g.outW*g.outH {
		screen.WritePixels(g.pixels)
	}

	if *debugFlag {
		stats := g.sched.LastStats()
		msg := fmt.Sprintf("FPS: %.1f\nTPS: %.1f\nSim: %.2f ms\nEnergy: %.3f\nFrame: %d",
			ebiten.ActualFPS(), ebiten.ActualTPS(),
			g.lastSimDuration.Seconds()*1000, stats.TotalEnergy, stats.Frame)
		ebitenutil.DebugPrint(screen, msg)
	}
}

// Layout reports the logical screen size used by Ebiten.
func (g *Game) Layout(_, _ int) (int, int) { return g.outW, g.outH }
