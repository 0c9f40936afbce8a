// Package sim owns the wave-energy state and orchestrates the per-frame
// kernel pipeline that evolves it into a consumable normal field.
package sim

import "fmt"

// bufferPair is the two-slot double buffer behind the amplitude field.
// Exactly one slot is current at any time; whole-buffer passes write the
// other slot and then swap. There is no index arithmetic to misalign.
type bufferPair struct {
	slots   [2][]float32
	flipped bool
}

func (p *bufferPair) current() []float32 {
	if p.flipped {
		return p.slots[1]
	}
	return p.slots[0]
}

func (p *bufferPair) next() []float32 {
	if p.flipped {
		return p.slots[0]
	}
	return p.slots[1]
}

func (p *bufferPair) swap() { p.flipped = !p.flipped }

// AmplitudeField is the double-buffered directional energy grid. Values are
// energy densities and stay non-negative through every pipeline step.
type AmplitudeField struct {
	Width      int
	Height     int
	Directions int
	pair       bufferPair
}

// NewAmplitudeField allocates both buffers zeroed.
func NewAmplitudeField(width, height, directions int) (*AmplitudeField, error) {
	if width < 1 || height < 1 || directions < 1 {
		return nil, fmt.Errorf("invalid field dimensions %dx%dx%d", width, height, directions)
	}
	n := width * height * directions
	f := &AmplitudeField{Width: width, Height: height, Directions: directions}
	f.pair.slots[0] = make([]float32, n)
	f.pair.slots[1] = make([]float32, n)
	return f, nil
}

// Current returns the readable buffer.
func (f *AmplitudeField) Current() []float32 { return f.pair.current() }

// Next returns the buffer the step in progress writes.
func (f *AmplitudeField) Next() []float32 { return f.pair.next() }

// Swap promotes the next buffer to current after a whole-buffer pass.
func (f *AmplitudeField) Swap() { f.pair.swap() }

// CurrentSlot reports which slot is current; whole-buffer passes toggle it.
func (f *AmplitudeField) CurrentSlot() int {
	if f.pair.flipped {
		return 1
	}
	return 0
}

// At reads one cell of the current buffer.
func (f *AmplitudeField) At(x, y, bin int) float32 {
	return f.Current()[(bin*f.Height+y)*f.Width+x]
}

// Total sums the current buffer; useful for stability monitoring.
func (f *AmplitudeField) Total() float64 {
	var sum float64
	for _, v := range f.Current() {
		sum += float64(v)
	}
	return sum
}
