// Package device resolves the compute device for a run and reports the
// host CPU.
package device

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/klauspost/cpuid/v2"

	"github.com/born-ml/cifarnet/internal/tensor"
)

// ErrDeviceUnavailable is returned when a requested accelerator is not
// available in this build or on this host.
var ErrDeviceUnavailable = errors.New("device unavailable")

// Auto selects the best available device.
const Auto = "auto"

// Accelerators lists the accelerator devices compiled into this build.
// Kernels run on the host only, so it is empty.
var Accelerators []tensor.Device

// Select resolves a device preference ("auto", "cpu", "cuda", "webgpu").
//
// "auto" picks the first available accelerator and falls back to the CPU.
// Naming an accelerator that is not available returns ErrDeviceUnavailable.
func Select(pref string) (tensor.Device, error) {
	pref = strings.ToLower(strings.TrimSpace(pref))
	if pref == "" || pref == Auto {
		if len(Accelerators) > 0 {
			return Accelerators[0], nil
		}
		return tensor.CPU, nil
	}

	dev, err := tensor.ParseDevice(pref)
	if err != nil {
		return tensor.CPU, err
	}
	if dev == tensor.CPU || available(dev) {
		return dev, nil
	}
	return tensor.CPU, fmt.Errorf("%w: %s", ErrDeviceUnavailable, dev)
}

func available(dev tensor.Device) bool {
	for _, a := range Accelerators {
		if a == dev {
			return true
		}
	}
	return false
}

// Info describes the host CPU.
type Info struct {
	Brand         string
	Vendor        string
	PhysicalCores int
	LogicalCores  int
	SIMD          []string // Vector extensions relevant to the GEMM kernels
}

// simdFeatures are reported when present, in this order.
var simdFeatures = []struct {
	id   cpuid.FeatureID
	name string
}{
	{cpuid.SSE4, "SSE4.1"},
	{cpuid.AVX, "AVX"},
	{cpuid.AVX2, "AVX2"},
	{cpuid.FMA3, "FMA3"},
	{cpuid.AVX512F, "AVX512F"},
	{cpuid.ASIMD, "NEON"},
	{cpuid.SVE, "SVE"},
}

// Probe inspects the host CPU.
func Probe() Info {
	info := Info{
		Brand:         cpuid.CPU.BrandName,
		Vendor:        cpuid.CPU.VendorString,
		PhysicalCores: cpuid.CPU.PhysicalCores,
		LogicalCores:  cpuid.CPU.LogicalCores,
	}
	if info.Brand == "" {
		info.Brand = runtime.GOARCH
	}
	if info.LogicalCores <= 0 {
		info.LogicalCores = runtime.NumCPU()
	}
	for _, f := range simdFeatures {
		if cpuid.CPU.Supports(f.id) {
			info.SIMD = append(info.SIMD, f.name)
		}
	}
	return info
}

// Workers returns the default worker count for data-parallel kernels:
// one per physical core, or per logical CPU when the core count is unknown.
func (i Info) Workers() int {
	if i.PhysicalCores > 0 {
		return i.PhysicalCores
	}
	return max(1, i.LogicalCores)
}

// String formats the report as a single line.
func (i Info) String() string {
	simd := "none"
	if len(i.SIMD) > 0 {
		simd = strings.Join(i.SIMD, ",")
	}
	return fmt.Sprintf("%s (%d cores, %d threads, simd=%s)", i.Brand, i.PhysicalCores, i.LogicalCores, simd)
}
