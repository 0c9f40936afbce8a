//go:build opencl

package compute

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jgillich/go-opencl/cl"
)

// openCLDevice backs the kernel capability interface with an OpenCL context.
// Bound host slices are uploaded before each dispatch and output buffers are
// read back afterwards, so the host-visible contract matches the CPU
// backend exactly.
type openCLDevice struct {
	context    *cl.Context
	queue      *cl.CommandQueue
	program    *cl.Program
	deviceName string
}

// buffer roles within one kernel dispatch.
const (
	roleIn = iota
	roleOut
	roleInOut
)

type oclArgKind int

const (
	argScalar oclArgKind = iota
	argInt
	argBuffer
)

// oclArg describes one kernel argument: its bound name, kind, and (for
// buffers) transfer role. Argument order matches the OpenCL signatures in
// waterKernelSource; three trailing extent ints are appended automatically.
type oclArg struct {
	name string
	kind oclArgKind
	role int
}

var oclKernelArgs = map[string][]oclArg{
	KernelAdvect: {
		{name: "dt", kind: argScalar},
		{name: "group_speed", kind: argScalar},
		{name: "origin_x", kind: argScalar},
		{name: "origin_y", kind: argScalar},
		{name: "cell_size_x", kind: argScalar},
		{name: "cell_size_y", kind: argScalar},
		{name: "amp_in", kind: argBuffer, role: roleIn},
		{name: "amp_out", kind: argBuffer, role: roleOut},
	},
	KernelDiffuse: {
		{name: "dt", kind: argScalar},
		{name: "group_speed", kind: argScalar},
		{name: "amp_in", kind: argBuffer, role: roleIn},
		{name: "amp_out", kind: argBuffer, role: roleOut},
	},
	KernelInjectPoint: {
		{name: "strength", kind: argScalar},
		{name: "x", kind: argInt},
		{name: "y", kind: argInt},
		{name: "width", kind: argInt},
		{name: "height", kind: argInt},
		{name: "amp", kind: argBuffer, role: roleInOut},
	},
	KernelProfileBuffer: {
		{name: "time", kind: argScalar},
		{name: "period", kind: argScalar},
		{name: "wind_speed", kind: argScalar},
		{name: "zeta_min", kind: argScalar},
		{name: "zeta_max", kind: argScalar},
		{name: "profile", kind: argBuffer, role: roleOut},
	},
	KernelNormals: {
		{name: "period", kind: argScalar},
		{name: "width", kind: argInt},
		{name: "height", kind: argInt},
		{name: "directions", kind: argInt},
		{name: "profile_size", kind: argInt},
		{name: "amp", kind: argBuffer, role: roleIn},
		{name: "profile", kind: argBuffer, role: roleIn},
		{name: "normals", kind: argBuffer, role: roleOut},
	},
}

const waterKernelSource = `
float spectrum_density(float zeta, float wind_speed) {
    float a = exp2(1.5f * zeta);
    float u4 = wind_speed * wind_speed * wind_speed * wind_speed;
    float b = exp(-1.8038897788076411f * exp2(2.0f * zeta) / u4);
    return 0.139098f * sqrt(a * b);
}

float sample_amplitude(__global const float* amp, int width, int height, int bin,
                       float fx, float fy) {
    int x0 = (int)floor(fx);
    int y0 = (int)floor(fy);
    float tx = fx - (float)x0;
    float ty = fy - (float)y0;
    float v00 = 0.0f, v10 = 0.0f, v01 = 0.0f, v11 = 0.0f;
    int base = bin * height;
    if (x0 >= 0 && x0 < width && y0 >= 0 && y0 < height) v00 = amp[(base + y0) * width + x0];
    if (x0 + 1 >= 0 && x0 + 1 < width && y0 >= 0 && y0 < height) v10 = amp[(base + y0) * width + x0 + 1];
    if (x0 >= 0 && x0 < width && y0 + 1 >= 0 && y0 + 1 < height) v01 = amp[(base + y0 + 1) * width + x0];
    if (x0 + 1 >= 0 && x0 + 1 < width && y0 + 1 >= 0 && y0 + 1 < height) v11 = amp[(base + y0 + 1) * width + x0 + 1];
    float top = v00 * (1.0f - tx) + v10 * tx;
    float bottom = v01 * (1.0f - tx) + v11 * tx;
    return top * (1.0f - ty) + bottom * ty;
}

__kernel void advect(
    const float dt,
    const float group_speed,
    const float origin_x,
    const float origin_y,
    const float cell_size_x,
    const float cell_size_y,
    __global const float* amp_in,
    __global float* amp_out,
    const int ext_x,
    const int ext_y,
    const int ext_z)
{
    int i = get_global_id(0);
    int total = ext_x * ext_y * ext_z;
    if (i >= total) return;
    int x = i % ext_x;
    int y = (i / ext_x) % ext_y;
    int bin = i / (ext_x * ext_y);
    float theta = 2.0f * M_PI_F * ((float)bin + 0.5f) / (float)ext_z;
    float dist = group_speed * dt;
    float px = origin_x + ((float)x + 0.5f) * cell_size_x - cos(theta) * dist;
    float py = origin_y + ((float)y + 0.5f) * cell_size_y - sin(theta) * dist;
    float fx = (px - origin_x) / cell_size_x - 0.5f;
    float fy = (py - origin_y) / cell_size_y - 0.5f;
    amp_out[i] = sample_amplitude(amp_in, ext_x, ext_y, bin, fx, fy);
}

__kernel void diffuse(
    const float dt,
    const float group_speed,
    __global const float* amp_in,
    __global float* amp_out,
    const int ext_x,
    const int ext_y,
    const int ext_z)
{
    int i = get_global_id(0);
    int total = ext_x * ext_y * ext_z;
    if (i >= total) return;
    int w = ext_x;
    int h = ext_y;
    int d = ext_z;
    int x = i % w;
    int y = (i / w) % h;
    int bin = i / (w * h);
    int min_dim = w < h ? w : h;
    float gt = 0.025f * group_speed * dt * (float)d;
    float gp = 0.0005f * group_speed * dt * (float)min_dim;
    float tot = gt + gp;
    if (tot > 0.5f) {
        float scale = 0.5f / tot;
        gt *= scale;
        gp *= scale;
    }
    float c = amp_in[(bin * h + y) * w + x];
    float prev = amp_in[(((bin + d - 1) % d) * h + y) * w + x];
    float next = amp_in[(((bin + 1) % d) * h + y) * w + x];
    float left = x > 0 ? amp_in[(bin * h + y) * w + x - 1] : c;
    float right = x < w - 1 ? amp_in[(bin * h + y) * w + x + 1] : c;
    float up = y > 0 ? amp_in[(bin * h + y - 1) * w + x] : c;
    float down = y < h - 1 ? amp_in[(bin * h + y + 1) * w + x] : c;
    amp_out[i] = (1.0f - gt - gp) * c + 0.5f * gt * (prev + next)
        + 0.25f * gp * (left + right + up + down);
}

__kernel void inject_point(
    const float strength,
    const int x,
    const int y,
    const int width,
    const int height,
    __global float* amp,
    const int ext_x,
    const int ext_y,
    const int ext_z)
{
    int bin = get_global_id(0);
    if (bin >= ext_z) return;
    if (x < 0 || x >= width || y < 0 || y >= height) return;
    amp[(bin * height + y) * width + x] += strength;
}

__kernel void profile_buffer(
    const float time,
    const float period,
    const float wind_speed,
    const float zeta_min,
    const float zeta_max,
    __global float* profile,
    const int ext_x,
    const int ext_y,
    const int ext_z)
{
    int i = get_global_id(0);
    if (i >= ext_x) return;
    float world_scale = period / exp2(zeta_max);
    float base_omega = 2.0f * M_PI_F / period;
    float p = (float)i / (float)ext_x * period;
    int nodes = 100;
    float dz = (zeta_max - zeta_min) / (float)nodes;
    float disp = 0.0f;
    float slope = 0.0f;
    for (int n = 0; n < nodes; n++) {
        float zeta = zeta_min + ((float)n + 0.5f) * dz;
        float wavelength = world_scale * exp2(zeta);
        float k = 2.0f * M_PI_F / wavelength;
        float omega = sqrt(9.81f * k);
        float harmonic = round(omega / base_omega);
        if (harmonic < 1.0f) harmonic = 1.0f;
        float phi = k * p - harmonic * base_omega * time;
        float dens = spectrum_density(zeta, wind_speed);
        disp += dens * cos(phi);
        slope += -dens * k * period * sin(phi);
    }
    profile[2 * i] = disp * dz;
    profile[2 * i + 1] = slope * dz;
}

__kernel void normals(
    const float period,
    const int width,
    const int height,
    const int directions,
    const int profile_size,
    __global const float* amp,
    __global const float* profile,
    __global float* out_normals,
    const int ext_x,
    const int ext_y,
    const int ext_z)
{
    int i = get_global_id(0);
    if (i >= ext_x * ext_y) return;
    int ix = i % ext_x;
    int iy = i / ext_x;
    float u = ((float)ix + 0.5f) / (float)ext_x;
    float v = ((float)iy + 0.5f) / (float)ext_y;
    float dhdu = 0.0f;
    float dhdv = 0.0f;
    for (int bin = 0; bin < directions; bin++) {
        float theta = 2.0f * M_PI_F * ((float)bin + 0.5f) / (float)directions;
        float ct = cos(theta);
        float st = sin(theta);
        float a = sample_amplitude(amp, width, height, bin,
                                   u * (float)width - 0.5f, v * (float)height - 0.5f);
        if (a == 0.0f) continue;
        float s = u * ct + v * st;
        s -= floor(s);
        float fi = s * (float)profile_size;
        int i0 = ((int)floor(fi)) % profile_size;
        if (i0 < 0) i0 += profile_size;
        int i1 = (i0 + 1) % profile_size;
        float t = fi - floor(fi);
        float slope = profile[2 * i0 + 1] * (1.0f - t) + profile[2 * i1 + 1] * t;
        dhdu += a * slope * ct;
        dhdv += a * slope * st;
    }
    float nx = -dhdu;
    float ny = -dhdv;
    float nz = 1.0f;
    float inv = rsqrt(nx * nx + ny * ny + nz * nz);
    out_normals[3 * i] = nx * inv;
    out_normals[3 * i + 1] = ny * inv;
    out_normals[3 * i + 2] = nz * inv;
}`

// NewOpenCLDevice initializes an OpenCL context on the first GPU device it
// finds, falling back to a CPU device, and builds the water kernel program.
func NewOpenCLDevice() (Device, error) {
	platforms, err := cl.GetPlatforms()
	if err != nil {
		msg := "querying OpenCL platforms"
		if strings.Contains(err.Error(), "-1001") {
			msg += ": no ICD loader reported any platforms; install OpenCL drivers and verify with `clinfo`"
		}
		return nil, fmt.Errorf("%s: %w", msg, err)
	}
	if len(platforms) == 0 {
		return nil, errors.New("no OpenCL platforms available; ensure a vendor driver is installed and detected by `clinfo`")
	}
	device := findDevice(platforms, cl.DeviceTypeGPU)
	if device == nil {
		device = findDevice(platforms, cl.DeviceTypeCPU)
	}
	if device == nil {
		return nil, errors.New("no suitable OpenCL devices found")
	}

	context, err := cl.CreateContext([]*cl.Device{device})
	if err != nil {
		return nil, fmt.Errorf("creating OpenCL context: %w", err)
	}
	queue, err := context.CreateCommandQueue(device, 0)
	if err != nil {
		context.Release()
		return nil, fmt.Errorf("creating OpenCL command queue: %w", err)
	}
	program, err := context.CreateProgramWithSource([]string{waterKernelSource})
	if err != nil {
		queue.Release()
		context.Release()
		return nil, fmt.Errorf("creating OpenCL program: %w", err)
	}
	if err := program.BuildProgram([]*cl.Device{device}, ""); err != nil {
		program.Release()
		queue.Release()
		context.Release()
		if buildErr, ok := err.(cl.BuildError); ok {
			return nil, fmt.Errorf("building OpenCL program: %s", string(buildErr))
		}
		return nil, fmt.Errorf("building OpenCL program: %w", err)
	}
	return &openCLDevice{
		context:    context,
		queue:      queue,
		program:    program,
		deviceName: device.Name(),
	}, nil
}

func findDevice(platforms []*cl.Platform, kind cl.DeviceType) *cl.Device {
	for _, p := range platforms {
		devices, err := p.GetDevices(kind)
		if err != nil && err != cl.ErrDeviceNotFound {
			continue
		}
		if len(devices) > 0 {
			return devices[0]
		}
	}
	return nil
}

func (d *openCLDevice) Kernel(name string) (Kernel, error) {
	args, ok := oclKernelArgs[name]
	if !ok {
		return nil, fmt.Errorf("resolving kernel %q: not part of the water program", name)
	}
	kernel, err := d.program.CreateKernel(name)
	if err != nil {
		return nil, fmt.Errorf("resolving kernel %q: %w", name, err)
	}
	return &openCLKernel{
		device:  d,
		name:    name,
		kernel:  kernel,
		argSpec: args,
		scalars: map[string]float64{},
		ints:    map[string]int{},
		host:    map[string][]float32{},
		bufs:    map[string]*deviceBuffer{},
	}, nil
}

func (d *openCLDevice) Name() string {
	return fmt.Sprintf("OpenCL (%s)", d.deviceName)
}

func (d *openCLDevice) Close() {
	if d.program != nil {
		d.program.Release()
		d.program = nil
	}
	if d.queue != nil {
		d.queue.Release()
		d.queue = nil
	}
	if d.context != nil {
		d.context.Release()
		d.context = nil
	}
}

type deviceBuffer struct {
	mem  *cl.MemObject
	size int
}

type openCLKernel struct {
	device  *openCLDevice
	name    string
	kernel  *cl.Kernel
	argSpec []oclArg
	scalars map[string]float64
	ints    map[string]int
	host    map[string][]float32
	bufs    map[string]*deviceBuffer
}

func (k *openCLKernel) SetScalar(name string, value float64) { k.scalars[name] = value }
func (k *openCLKernel) SetInt(name string, value int)        { k.ints[name] = value }
func (k *openCLKernel) BindBuffer(name string, buf []float32) {
	k.host[name] = buf
}

// ensureBuffer returns a device buffer sized for the bound host slice,
// reallocating when the host slice length changed.
func (k *openCLKernel) ensureBuffer(name string, size int) (*deviceBuffer, error) {
	if buf, ok := k.bufs[name]; ok && buf.size == size {
		return buf, nil
	}
	if buf, ok := k.bufs[name]; ok {
		buf.mem.Release()
		delete(k.bufs, name)
	}
	mem, err := k.device.context.CreateEmptyBuffer(cl.MemReadWrite, size*4)
	if err != nil {
		return nil, fmt.Errorf("kernel %q: allocating buffer %q: %w", k.name, name, err)
	}
	buf := &deviceBuffer{mem: mem, size: size}
	k.bufs[name] = buf
	return buf, nil
}

func (k *openCLKernel) Dispatch(ext Extent) error {
	total := ext.Count()
	if total <= 0 {
		return fmt.Errorf("kernel %q: empty dispatch extent %+v", k.name, ext)
	}
	queue := k.device.queue
	for i, arg := range k.argSpec {
		switch arg.kind {
		case argScalar:
			value, ok := k.scalars[arg.name]
			if !ok {
				return fmt.Errorf("kernel %q: scalar %q is not set", k.name, arg.name)
			}
			if err := k.kernel.SetArgFloat32(i, float32(value)); err != nil {
				return fmt.Errorf("kernel %q: setting %q: %w", k.name, arg.name, err)
			}
		case argInt:
			value, ok := k.ints[arg.name]
			if !ok {
				return fmt.Errorf("kernel %q: int %q is not set", k.name, arg.name)
			}
			if err := k.kernel.SetArgInt32(i, int32(value)); err != nil {
				return fmt.Errorf("kernel %q: setting %q: %w", k.name, arg.name, err)
			}
		case argBuffer:
			host, ok := k.host[arg.name]
			if !ok {
				return fmt.Errorf("kernel %q: buffer %q is not bound", k.name, arg.name)
			}
			buf, err := k.ensureBuffer(arg.name, len(host))
			if err != nil {
				return err
			}
			if arg.role == roleIn || arg.role == roleInOut {
				if _, err := queue.EnqueueWriteBufferFloat32(buf.mem, false, 0, host, nil); err != nil {
					return fmt.Errorf("kernel %q: writing buffer %q: %w", k.name, arg.name, err)
				}
			}
			if err := k.kernel.SetArgBuffer(i, buf.mem); err != nil {
				return fmt.Errorf("kernel %q: binding buffer %q: %w", k.name, arg.name, err)
			}
		}
	}
	extBase := len(k.argSpec)
	for offset, dim := range []int{ext.X, ext.Y, ext.Z} {
		if err := k.kernel.SetArgInt32(extBase+offset, int32(dim)); err != nil {
			return fmt.Errorf("kernel %q: setting extent: %w", k.name, err)
		}
	}
	if _, err := queue.EnqueueNDRangeKernel(k.kernel, nil, []int{total}, nil, nil); err != nil {
		return fmt.Errorf("kernel %q: enqueueing: %w", k.name, err)
	}
	for _, arg := range k.argSpec {
		if arg.kind != argBuffer || arg.role == roleIn {
			continue
		}
		host := k.host[arg.name]
		buf := k.bufs[arg.name]
		if _, err := queue.EnqueueReadBufferFloat32(buf.mem, true, 0, host, nil); err != nil {
			return fmt.Errorf("kernel %q: reading buffer %q: %w", k.name, arg.name, err)
		}
	}
	return nil
}
