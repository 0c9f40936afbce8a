package sim

import "github.com/go-gl/mathgl/mgl32"

// NormalField is the derived per-texel surface normal grid. It is rebuilt
// every frame and shared read-only with the consumer.
type NormalField struct {
	Width  int
	Height int
	// Data holds unit normals as packed x,y,z triples.
	Data []float32
}

func newNormalField(width, height int) *NormalField {
	return &NormalField{
		Width:  width,
		Height: height,
		Data:   make([]float32, 3*width*height),
	}
}

// At returns the normal at a texel.
func (n *NormalField) At(x, y int) mgl32.Vec3 {
	i := 3 * (y*n.Width + x)
	return mgl32.Vec3{n.Data[i], n.Data[i+1], n.Data[i+2]}
}
