//go:build !opencl

package compute

import "errors"

// NewOpenCLDevice is unavailable without the opencl build tag.
func NewOpenCLDevice() (Device, error) {
	return nil, errors.New("OpenCL support is not enabled; rebuild with -tags opencl")
}
