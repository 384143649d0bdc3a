package ops

import (
	"github.com/born-ml/cifarnet/internal/backend/cpu"
	"github.com/born-ml/cifarnet/internal/tensor"
)

// CrossEntropyOp records the mean cross-entropy of logits against integer
// targets. The output is a one-element tensor.
//
// Backward: ∂L/∂logits = (softmax(logits) - onehot(targets)) / batch.
type CrossEntropyOp struct {
	logits  *tensor.Tensor
	output  *tensor.Tensor
	probs   *tensor.Tensor
	targets []int32
}

// NewCrossEntropyOp creates a new CrossEntropy operation. probs are the
// softmax probabilities computed in the forward pass.
func NewCrossEntropyOp(logits, output, probs *tensor.Tensor, targets []int32) *CrossEntropyOp {
	return &CrossEntropyOp{logits: logits, output: output, probs: probs, targets: targets}
}

// Inputs returns [logits].
func (op *CrossEntropyOp) Inputs() []*tensor.Tensor {
	return []*tensor.Tensor{op.logits}
}

// Output returns the scalar loss tensor.
func (op *CrossEntropyOp) Output() *tensor.Tensor {
	return op.output
}

// Backward scales the softmax-minus-onehot gradient by the incoming scalar.
func (op *CrossEntropyOp) Backward(outputGrad *tensor.Tensor, backend *cpu.CPUBackend) []*tensor.Tensor {
	return []*tensor.Tensor{backend.CrossEntropyBackward(op.probs, op.targets, outputGrad.Item())}
}
