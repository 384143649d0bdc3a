package tensor

import (
	"fmt"
	"strings"
)

// Device represents the compute device for tensor operations.
type Device int

// Supported compute devices.
const (
	CPU Device = iota
	CUDA
	WebGPU
)

// String returns a human-readable device name.
func (d Device) String() string {
	switch d {
	case CPU:
		return "cpu"
	case CUDA:
		return "cuda"
	case WebGPU:
		return "webgpu"
	default:
		return "unknown"
	}
}

// ParseDevice maps a device name to a Device.
func ParseDevice(name string) (Device, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "cpu":
		return CPU, nil
	case "cuda", "gpu":
		return CUDA, nil
	case "webgpu":
		return WebGPU, nil
	default:
		return CPU, fmt.Errorf("unknown device %q", name)
	}
}
