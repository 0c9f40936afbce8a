// Package compute abstracts the parallel kernels the simulation dispatches:
// a device resolves named kernels, callers bind named scalar parameters and
// buffers, then dispatch over a 3D index range.
package compute

// Kernel names resolvable from every Device. A name that fails to resolve
// is a fatal initialization error for the simulation.
const (
	KernelAdvect        = "advect"
	KernelDiffuse       = "diffuse"
	KernelInjectPoint   = "inject_point"
	KernelProfileBuffer = "profile_buffer"
	KernelNormals       = "normals"
)

// Extent is the 3D dispatch range of a kernel; every index in
// [0,X) × [0,Y) × [0,Z) is visited exactly once.
type Extent struct {
	X, Y, Z int
}

// Count returns the total number of kernel invocations.
func (e Extent) Count() int { return e.X * e.Y * e.Z }

// Kernel is one named parallel-compute capability. Parameters and buffers
// are bound by name and retained until rebound; Dispatch reports missing or
// mis-sized bindings instead of executing.
//
// Invocations within a dispatch are independent: a kernel must never read a
// cell of a bound output buffer written by another invocation of the same
// dispatch.
type Kernel interface {
	SetScalar(name string, value float64)
	SetInt(name string, value int)
	BindBuffer(name string, buf []float32)
	Dispatch(extent Extent) error
}

// Device resolves kernels by name and owns whatever execution resources
// back them.
type Device interface {
	// Kernel resolves a named kernel, reporting which name failed when it
	// cannot.
	Kernel(name string) (Kernel, error)
	// Name identifies the backend for logs.
	Name() string
	// Close releases backend resources.
	Close()
}
