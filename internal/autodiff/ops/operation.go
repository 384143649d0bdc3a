// Package ops defines the differentiable operations recorded on the
// gradient tape.
//
// Each operation keeps references to its inputs and output from the forward
// pass and computes input gradients during the backward pass:
//   - Conv2DOp: 2D convolution (input, kernel)
//   - ChannelBiasOp: per-channel bias broadcast over [N, C, ...]
//   - LinearOp: x·Wᵀ + b
//   - MaxPool2DOp: max pooling, gradient routed to the selected maxima
//   - ReLUOp, SigmoidOp, TanhOp, SoftmaxOp: activations
//   - ReshapeOp: shape change without data movement
//   - CrossEntropyOp: mean softmax cross-entropy over a batch
package ops

import (
	"github.com/born-ml/cifarnet/internal/backend/cpu"
	"github.com/born-ml/cifarnet/internal/tensor"
)

// Operation represents a differentiable operation in the computation graph.
type Operation interface {
	// Backward computes gradients for inputs given the output gradient.
	// The returned slice is parallel to Inputs(); nil entries mean no
	// gradient flows to that input.
	Backward(outputGrad *tensor.Tensor, backend *cpu.CPUBackend) []*tensor.Tensor

	// Inputs returns the input tensors for this operation.
	Inputs() []*tensor.Tensor

	// Output returns the output tensor produced by this operation.
	Output() *tensor.Tensor
}
