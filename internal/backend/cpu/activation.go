package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/cifarnet/internal/tensor"
)

// ReLU applies max(0, x) element-wise.
func (cpu *CPUBackend) ReLU(x *tensor.Tensor) *tensor.Tensor {
	out := tensor.Zeros(x.Shape())
	outData := out.Data()
	for i, v := range x.Data() {
		if v > 0 {
			outData[i] = v
		}
	}
	return out
}

// ReLUBackward masks outputGrad where the input was not positive.
func (cpu *CPUBackend) ReLUBackward(input, outputGrad *tensor.Tensor) *tensor.Tensor {
	grad := tensor.Zeros(input.Shape())
	gradData, gData := grad.Data(), outputGrad.Data()
	for i, v := range input.Data() {
		if v > 0 {
			gradData[i] = gData[i]
		}
	}
	return grad
}

// Sigmoid applies 1 / (1 + exp(-x)) element-wise.
func (cpu *CPUBackend) Sigmoid(x *tensor.Tensor) *tensor.Tensor {
	out := tensor.Zeros(x.Shape())
	outData := out.Data()
	for i, v := range x.Data() {
		outData[i] = 1 / (1 + math.Exp(-v))
	}
	return out
}

// SigmoidBackward uses the saved output: dσ/dx = σ(1-σ).
func (cpu *CPUBackend) SigmoidBackward(output, outputGrad *tensor.Tensor) *tensor.Tensor {
	grad := tensor.Zeros(output.Shape())
	gradData, gData := grad.Data(), outputGrad.Data()
	for i, y := range output.Data() {
		gradData[i] = gData[i] * y * (1 - y)
	}
	return grad
}

// Tanh applies the hyperbolic tangent element-wise.
func (cpu *CPUBackend) Tanh(x *tensor.Tensor) *tensor.Tensor {
	out := tensor.Zeros(x.Shape())
	outData := out.Data()
	for i, v := range x.Data() {
		outData[i] = math.Tanh(v)
	}
	return out
}

// TanhBackward uses the saved output: dtanh/dx = 1 - tanh².
func (cpu *CPUBackend) TanhBackward(output, outputGrad *tensor.Tensor) *tensor.Tensor {
	grad := tensor.Zeros(output.Shape())
	gradData, gData := grad.Data(), outputGrad.Data()
	for i, y := range output.Data() {
		gradData[i] = gData[i] * (1 - y*y)
	}
	return grad
}

// Softmax normalizes along axis 1 of an [N, C, ...] tensor, independently
// for every sample and trailing position. For a 2D [N, C] input this is the
// usual per-row softmax; for [N, C, H, W] it normalizes across channels.
func (cpu *CPUBackend) Softmax(x *tensor.Tensor) *tensor.Tensor {
	N, C, inner := softmaxDims(x.Shape())
	out := tensor.Zeros(x.Shape())
	in, outData := x.Data(), out.Data()

	for n := 0; n < N; n++ {
		base := n * C * inner
		for p := 0; p < inner; p++ {
			maxVal := math.Inf(-1)
			for c := 0; c < C; c++ {
				maxVal = math.Max(maxVal, in[base+c*inner+p])
			}
			sum := 0.0
			for c := 0; c < C; c++ {
				e := math.Exp(in[base+c*inner+p] - maxVal)
				outData[base+c*inner+p] = e
				sum += e
			}
			for c := 0; c < C; c++ {
				outData[base+c*inner+p] /= sum
			}
		}
	}
	return out
}

// SoftmaxBackward computes dx = y ⊙ (g - Σ_c g·y) along axis 1.
func (cpu *CPUBackend) SoftmaxBackward(output, outputGrad *tensor.Tensor) *tensor.Tensor {
	N, C, inner := softmaxDims(output.Shape())
	grad := tensor.Zeros(output.Shape())
	y, g, gradData := output.Data(), outputGrad.Data(), grad.Data()

	for n := 0; n < N; n++ {
		base := n * C * inner
		for p := 0; p < inner; p++ {
			dot := 0.0
			for c := 0; c < C; c++ {
				i := base + c*inner + p
				dot += g[i] * y[i]
			}
			for c := 0; c < C; c++ {
				i := base + c*inner + p
				gradData[i] = y[i] * (g[i] - dot)
			}
		}
	}
	return grad
}

func softmaxDims(shape tensor.Shape) (n, c, inner int) {
	if len(shape) < 2 {
		panic(fmt.Sprintf("softmax: expected at least 2D input, got %dD", len(shape)))
	}
	inner = 1
	for _, d := range shape[2:] {
		inner *= d
	}
	return shape[0], shape[1], inner
}
