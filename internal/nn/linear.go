package nn

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/cifarnet/internal/autodiff"
	"github.com/born-ml/cifarnet/internal/tensor"
)

// Linear is a fully connected layer.
//
// Computes: y = x @ W.T + b
//
// Where:
//   - x: input tensor with shape [batch_size, in_features]
//   - W: weight matrix with shape [out_features, in_features]
//   - b: bias vector with shape [out_features]
//   - y: output tensor with shape [batch_size, out_features]
//
// Example:
//
//	layer := nn.NewLinear(1024, 256, rng, backend)
//	output := layer.Forward(input) // [32, 1024] -> [32, 256]
type Linear struct {
	inFeatures  int
	outFeatures int
	weight      *Parameter
	bias        *Parameter
	backend     *autodiff.Backend
}

// NewLinear creates a new fully connected layer.
//
// Weights use Xavier initialization; the bias starts at zero.
func NewLinear(inFeatures, outFeatures int, rng *rand.Rand, backend *autodiff.Backend) *Linear {
	if inFeatures <= 0 || outFeatures <= 0 {
		panic(fmt.Sprintf("linear: invalid features in=%d, out=%d", inFeatures, outFeatures))
	}
	weight := Xavier(inFeatures, outFeatures, tensor.Shape{outFeatures, inFeatures}, rng)
	return &Linear{
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		weight:      NewParameter("weight", weight),
		bias:        NewParameter("bias", tensor.Zeros(tensor.Shape{outFeatures})),
		backend:     backend,
	}
}

// Forward computes the linear transformation.
//
// Input: [batch_size, in_features]
// Output: [batch_size, out_features].
func (l *Linear) Forward(input *tensor.Tensor) *tensor.Tensor {
	shape := input.Shape()
	if len(shape) != 2 || shape[1] != l.inFeatures {
		panic(fmt.Sprintf("linear: expected input [batch, %d], got %v", l.inFeatures, shape))
	}
	return l.backend.Linear(input, l.weight.Tensor(), l.bias.Tensor())
}

// Parameters returns weight and bias.
func (l *Linear) Parameters() []*Parameter {
	return []*Parameter{l.weight, l.bias}
}

// Weight returns the weight parameter.
func (l *Linear) Weight() *Parameter {
	return l.weight
}

// Bias returns the bias parameter.
func (l *Linear) Bias() *Parameter {
	return l.bias
}

// InFeatures returns the input dimension.
func (l *Linear) InFeatures() int {
	return l.inFeatures
}

// OutFeatures returns the output dimension.
func (l *Linear) OutFeatures() int {
	return l.outFeatures
}

// String returns a string representation of the layer.
func (l *Linear) String() string {
	return fmt.Sprintf("Linear(in_features=%d, out_features=%d, bias=true)", l.inFeatures, l.outFeatures)
}
