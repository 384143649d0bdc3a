package ops

import (
	"github.com/born-ml/cifarnet/internal/backend/cpu"
	"github.com/born-ml/cifarnet/internal/tensor"
)

// Conv2DOp records a 2D convolution.
//
// Backward:
//   - d_input:  transposed convolution of d_output with the kernel
//   - d_kernel: correlation of the input with d_output
type Conv2DOp struct {
	input   *tensor.Tensor
	kernel  *tensor.Tensor
	output  *tensor.Tensor
	stride  int
	padding int
}

// NewConv2DOp creates a new Conv2D operation.
func NewConv2DOp(input, kernel, output *tensor.Tensor, stride, padding int) *Conv2DOp {
	return &Conv2DOp{
		input:   input,
		kernel:  kernel,
		output:  output,
		stride:  stride,
		padding: padding,
	}
}

// Inputs returns [input, kernel].
func (op *Conv2DOp) Inputs() []*tensor.Tensor {
	return []*tensor.Tensor{op.input, op.kernel}
}

// Output returns the convolution result.
func (op *Conv2DOp) Output() *tensor.Tensor {
	return op.output
}

// Backward delegates both gradients to the backend.
func (op *Conv2DOp) Backward(outputGrad *tensor.Tensor, backend *cpu.CPUBackend) []*tensor.Tensor {
	inputGrad, kernelGrad := backend.Conv2DBackward(op.input, op.kernel, outputGrad, op.stride, op.padding)
	return []*tensor.Tensor{inputGrad, kernelGrad}
}

// ChannelBiasOp records output = input + bias broadcast over channel axis 1.
type ChannelBiasOp struct {
	input  *tensor.Tensor
	bias   *tensor.Tensor
	output *tensor.Tensor
}

// NewChannelBiasOp creates a new ChannelBias operation.
func NewChannelBiasOp(input, bias, output *tensor.Tensor) *ChannelBiasOp {
	return &ChannelBiasOp{input: input, bias: bias, output: output}
}

// Inputs returns [input, bias].
func (op *ChannelBiasOp) Inputs() []*tensor.Tensor {
	return []*tensor.Tensor{op.input, op.bias}
}

// Output returns the biased tensor.
func (op *ChannelBiasOp) Output() *tensor.Tensor {
	return op.output
}

// Backward passes the gradient through unchanged and reduces it for the bias.
func (op *ChannelBiasOp) Backward(outputGrad *tensor.Tensor, backend *cpu.CPUBackend) []*tensor.Tensor {
	return []*tensor.Tensor{outputGrad, backend.ChannelBiasGrad(outputGrad)}
}
