package ops

import (
	"github.com/born-ml/cifarnet/internal/backend/cpu"
	"github.com/born-ml/cifarnet/internal/tensor"
)

// LinearOp records output = input·weightᵀ + bias.
//
// The bias may be nil, in which case only input and weight receive
// gradients.
type LinearOp struct {
	input  *tensor.Tensor
	weight *tensor.Tensor
	bias   *tensor.Tensor
	output *tensor.Tensor
}

// NewLinearOp creates a new Linear operation.
func NewLinearOp(input, weight, bias, output *tensor.Tensor) *LinearOp {
	return &LinearOp{input: input, weight: weight, bias: bias, output: output}
}

// Inputs returns [input, weight] or [input, weight, bias].
func (op *LinearOp) Inputs() []*tensor.Tensor {
	if op.bias == nil {
		return []*tensor.Tensor{op.input, op.weight}
	}
	return []*tensor.Tensor{op.input, op.weight, op.bias}
}

// Output returns the layer output.
func (op *LinearOp) Output() *tensor.Tensor {
	return op.output
}

// Backward computes dx = dy·W, dW = dyᵀ·x and db = Σ dy.
func (op *LinearOp) Backward(outputGrad *tensor.Tensor, backend *cpu.CPUBackend) []*tensor.Tensor {
	inputGrad, weightGrad, biasGrad := backend.LinearBackward(op.input, op.weight, outputGrad)
	if op.bias == nil {
		return []*tensor.Tensor{inputGrad, weightGrad}
	}
	return []*tensor.Tensor{inputGrad, weightGrad, biasGrad}
}
