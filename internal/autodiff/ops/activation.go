package ops

import (
	"github.com/born-ml/cifarnet/internal/backend/cpu"
	"github.com/born-ml/cifarnet/internal/tensor"
)

// ReLUOp represents output = max(0, x).
//
// Backward: d(ReLU(x))/dx = 1 if x > 0, else 0.
type ReLUOp struct {
	input  *tensor.Tensor
	output *tensor.Tensor
}

// NewReLUOp creates a new ReLUOp.
func NewReLUOp(input, output *tensor.Tensor) *ReLUOp {
	return &ReLUOp{input: input, output: output}
}

// Inputs returns [x].
func (op *ReLUOp) Inputs() []*tensor.Tensor { return []*tensor.Tensor{op.input} }

// Output returns max(0, x).
func (op *ReLUOp) Output() *tensor.Tensor { return op.output }

// Backward masks the gradient by the sign of the input.
func (op *ReLUOp) Backward(outputGrad *tensor.Tensor, backend *cpu.CPUBackend) []*tensor.Tensor {
	return []*tensor.Tensor{backend.ReLUBackward(op.input, outputGrad)}
}

// SigmoidOp represents output = 1 / (1 + exp(-x)).
type SigmoidOp struct {
	input  *tensor.Tensor
	output *tensor.Tensor
}

// NewSigmoidOp creates a new SigmoidOp.
func NewSigmoidOp(input, output *tensor.Tensor) *SigmoidOp {
	return &SigmoidOp{input: input, output: output}
}

// Inputs returns [x].
func (op *SigmoidOp) Inputs() []*tensor.Tensor { return []*tensor.Tensor{op.input} }

// Output returns σ(x).
func (op *SigmoidOp) Output() *tensor.Tensor { return op.output }

// Backward uses σ(1-σ) from the saved output.
func (op *SigmoidOp) Backward(outputGrad *tensor.Tensor, backend *cpu.CPUBackend) []*tensor.Tensor {
	return []*tensor.Tensor{backend.SigmoidBackward(op.output, outputGrad)}
}

// TanhOp represents output = tanh(x).
type TanhOp struct {
	input  *tensor.Tensor
	output *tensor.Tensor
}

// NewTanhOp creates a new TanhOp.
func NewTanhOp(input, output *tensor.Tensor) *TanhOp {
	return &TanhOp{input: input, output: output}
}

// Inputs returns [x].
func (op *TanhOp) Inputs() []*tensor.Tensor { return []*tensor.Tensor{op.input} }

// Output returns tanh(x).
func (op *TanhOp) Output() *tensor.Tensor { return op.output }

// Backward uses 1 - tanh² from the saved output.
func (op *TanhOp) Backward(outputGrad *tensor.Tensor, backend *cpu.CPUBackend) []*tensor.Tensor {
	return []*tensor.Tensor{backend.TanhBackward(op.output, outputGrad)}
}

// SoftmaxOp represents a softmax along axis 1.
type SoftmaxOp struct {
	input  *tensor.Tensor
	output *tensor.Tensor
}

// NewSoftmaxOp creates a new SoftmaxOp.
func NewSoftmaxOp(input, output *tensor.Tensor) *SoftmaxOp {
	return &SoftmaxOp{input: input, output: output}
}

// Inputs returns [x].
func (op *SoftmaxOp) Inputs() []*tensor.Tensor { return []*tensor.Tensor{op.input} }

// Output returns softmax(x).
func (op *SoftmaxOp) Output() *tensor.Tensor { return op.output }

// Backward applies the softmax Jacobian-vector product.
func (op *SoftmaxOp) Backward(outputGrad *tensor.Tensor, backend *cpu.CPUBackend) []*tensor.Tensor {
	return []*tensor.Tensor{backend.SoftmaxBackward(op.output, outputGrad)}
}
