// Package cpu implements the host compute kernels: convolution and dense
// layers on gonum GEMM, pooling, activations and the cross-entropy loss.
//
// Kernels take and return *tensor.Tensor and never record anything; the
// autodiff package wraps them and records operations on the tape.
package cpu

import (
	"fmt"

	"github.com/born-ml/cifarnet/internal/parallel"
	"github.com/born-ml/cifarnet/internal/tensor"
)

// CPUBackend implements tensor operations on the host CPU.
type CPUBackend struct {
	device   tensor.Device
	parallel parallel.Config
}

// New creates a new CPU backend using every available core.
func New() *CPUBackend {
	return NewWithConfig(parallel.DefaultConfig())
}

// NewWithConfig creates a CPU backend with an explicit worker configuration.
func NewWithConfig(cfg parallel.Config) *CPUBackend {
	return &CPUBackend{
		device:   tensor.CPU,
		parallel: cfg,
	}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

// Workers returns the number of goroutines kernels fan out to.
func (cpu *CPUBackend) Workers() int {
	if !cpu.parallel.Enabled {
		return 1
	}
	return cpu.parallel.NumWorkers
}

// forSamples runs f over contiguous sample ranges using the backend's
// parallel configuration.
func (cpu *CPUBackend) forSamples(n int, f func(start, end int)) {
	parallel.ForChunks(n, f, cpu.parallel)
}

// Add returns a + b element-wise. Shapes must match exactly.
func (cpu *CPUBackend) Add(a, b *tensor.Tensor) *tensor.Tensor {
	if !a.Shape().Equal(b.Shape()) {
		panic(fmt.Sprintf("add: shape mismatch %v vs %v", a.Shape(), b.Shape()))
	}
	out := tensor.Zeros(a.Shape())
	outData, aData, bData := out.Data(), a.Data(), b.Data()
	for i := range outData {
		outData[i] = aData[i] + bData[i]
	}
	return out
}

// AddChannelBias adds bias[c] to every element of channel c of an
// [N, C, ...] tensor.
func (cpu *CPUBackend) AddChannelBias(input, bias *tensor.Tensor) *tensor.Tensor {
	shape := input.Shape()
	if len(shape) < 2 {
		panic(fmt.Sprintf("add_channel_bias: expected at least 2D input, got %dD", len(shape)))
	}
	C := shape[1]
	if bias.NumElements() != C {
		panic(fmt.Sprintf("add_channel_bias: bias has %d elements, input has %d channels", bias.NumElements(), C))
	}
	N := shape[0]
	plane := input.NumElements() / (N * C)

	out := input.Clone()
	outData, biasData := out.Data(), bias.Data()
	for n := 0; n < N; n++ {
		for c := 0; c < C; c++ {
			b := biasData[c]
			row := outData[(n*C+c)*plane : (n*C+c+1)*plane]
			for i := range row {
				row[i] += b
			}
		}
	}
	return out
}

// ChannelBiasGrad reduces an [N, C, ...] gradient to [C] by summing over every
// axis except the channel axis.
func (cpu *CPUBackend) ChannelBiasGrad(outputGrad *tensor.Tensor) *tensor.Tensor {
	shape := outputGrad.Shape()
	N, C := shape[0], shape[1]
	plane := outputGrad.NumElements() / (N * C)

	grad := tensor.Zeros(tensor.Shape{C})
	gradData, gData := grad.Data(), outputGrad.Data()
	for n := 0; n < N; n++ {
		for c := 0; c < C; c++ {
			sum := 0.0
			for _, v := range gData[(n*C+c)*plane : (n*C+c+1)*plane] {
				sum += v
			}
			gradData[c] += sum
		}
	}
	return grad
}
