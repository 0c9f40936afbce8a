package compute

import (
	"fmt"
	"runtime"
	"sync"
)

// cpuDevice executes kernels on the host, fanning each dispatch out across
// worker goroutines over a flattened index range.
type cpuDevice struct {
	workers int
}

// NewCPUDevice returns the host execution backend. It is always available.
func NewCPUDevice() Device {
	workers := runtime.NumCPU()
	if workers < 1 {
		workers = 1
	}
	return &cpuDevice{workers: workers}
}

func (d *cpuDevice) Kernel(name string) (Kernel, error) {
	prog, ok := cpuPrograms[name]
	if !ok {
		return nil, fmt.Errorf("resolving kernel %q: not part of the CPU program", name)
	}
	return &cpuKernel{
		name:    name,
		prog:    prog,
		workers: d.workers,
		args: kernelArgs{
			scalars: map[string]float64{},
			ints:    map[string]int{},
			buffers: map[string][]float32{},
		},
	}, nil
}

func (d *cpuDevice) Name() string {
	return fmt.Sprintf("CPU (%d workers)", d.workers)
}

func (d *cpuDevice) Close() {}

// kernelArgs holds the named bindings of one kernel instance.
type kernelArgs struct {
	scalars map[string]float64
	ints    map[string]int
	buffers map[string][]float32
}

func (a *kernelArgs) scalar(name string) float64   { return a.scalars[name] }
func (a *kernelArgs) integer(name string) int      { return a.ints[name] }
func (a *kernelArgs) buffer(name string) []float32 { return a.buffers[name] }

// bufferReq declares a buffer a program requires and its expected length
// for a given dispatch.
type bufferReq struct {
	name string
	size func(a *kernelArgs, ext Extent) int
}

// cpuProgram is the host-side body of one named kernel together with its
// binding contract.
type cpuProgram struct {
	scalars []string
	ints    []string
	buffers []bufferReq
	// run executes invocations [lo, hi) of the flattened extent. Bodies
	// decode x = i%X, y = (i/X)%Y, z = i/(X*Y).
	run func(a *kernelArgs, ext Extent, lo, hi int)
}

type cpuKernel struct {
	name    string
	prog    cpuProgram
	workers int
	args    kernelArgs
}

func (k *cpuKernel) SetScalar(name string, value float64) { k.args.scalars[name] = value }
func (k *cpuKernel) SetInt(name string, value int)        { k.args.ints[name] = value }
func (k *cpuKernel) BindBuffer(name string, buf []float32) {
	k.args.buffers[name] = buf
}

// validate checks every declared binding before any invocation runs.
func (k *cpuKernel) validate(ext Extent) error {
	for _, name := range k.prog.scalars {
		if _, ok := k.args.scalars[name]; !ok {
			return fmt.Errorf("kernel %q: scalar %q is not set", k.name, name)
		}
	}
	for _, name := range k.prog.ints {
		if _, ok := k.args.ints[name]; !ok {
			return fmt.Errorf("kernel %q: int %q is not set", k.name, name)
		}
	}
	for _, req := range k.prog.buffers {
		buf, ok := k.args.buffers[req.name]
		if !ok {
			return fmt.Errorf("kernel %q: buffer %q is not bound", k.name, req.name)
		}
		if want := req.size(&k.args, ext); len(buf) != want {
			return fmt.Errorf("kernel %q: buffer %q has %d elements, want %d",
				k.name, req.name, len(buf), want)
		}
	}
	return nil
}

func (k *cpuKernel) Dispatch(ext Extent) error {
	total := ext.Count()
	if total <= 0 {
		return fmt.Errorf("kernel %q: empty dispatch extent %+v", k.name, ext)
	}
	if err := k.validate(ext); err != nil {
		return err
	}
	workers := k.workers
	if workers > total {
		workers = total
	}
	chunk := (total + workers - 1) / workers
	var wg sync.WaitGroup
	for lo := 0; lo < total; lo += chunk {
		hi := lo + chunk
		if hi > total {
			hi = total
		}
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			k.prog.run(&k.args, ext, lo, hi)
		}(lo, hi)
	}
	wg.Wait()
	return nil
}
