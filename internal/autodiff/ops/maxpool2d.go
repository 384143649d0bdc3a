package ops

import (
	"github.com/born-ml/cifarnet/internal/backend/cpu"
	"github.com/born-ml/cifarnet/internal/tensor"
)

// MaxPool2DOp records a max pooling. Only the positions that produced a
// maximum receive gradient.
type MaxPool2DOp struct {
	input   *tensor.Tensor
	output  *tensor.Tensor
	indices []int
}

// NewMaxPool2DOp creates a new MaxPool2D operation from the argmax indices
// returned by the forward kernel.
func NewMaxPool2DOp(input, output *tensor.Tensor, indices []int) *MaxPool2DOp {
	return &MaxPool2DOp{input: input, output: output, indices: indices}
}

// Inputs returns [input].
func (op *MaxPool2DOp) Inputs() []*tensor.Tensor {
	return []*tensor.Tensor{op.input}
}

// Output returns the pooled tensor.
func (op *MaxPool2DOp) Output() *tensor.Tensor {
	return op.output
}

// Backward scatters the gradient to the recorded maxima.
func (op *MaxPool2DOp) Backward(outputGrad *tensor.Tensor, backend *cpu.CPUBackend) []*tensor.Tensor {
	return []*tensor.Tensor{backend.MaxPool2DBackward(op.input.Shape(), op.indices, outputGrad)}
}

// ReshapeOp records a view with a different shape over the same data.
type ReshapeOp struct {
	input  *tensor.Tensor
	output *tensor.Tensor
}

// NewReshapeOp creates a new Reshape operation.
func NewReshapeOp(input, output *tensor.Tensor) *ReshapeOp {
	return &ReshapeOp{input: input, output: output}
}

// Inputs returns [input].
func (op *ReshapeOp) Inputs() []*tensor.Tensor {
	return []*tensor.Tensor{op.input}
}

// Output returns the reshaped view.
func (op *ReshapeOp) Output() *tensor.Tensor {
	return op.output
}

// Backward reshapes the gradient back to the input shape.
func (op *ReshapeOp) Backward(outputGrad *tensor.Tensor, _ *cpu.CPUBackend) []*tensor.Tensor {
	return []*tensor.Tensor{outputGrad.View(op.input.Shape()...)}
}
