package nn

import (
	"github.com/born-ml/cifarnet/internal/tensor"
)

// Parameter represents a trainable parameter in a neural network.
//
// Parameters are tensors that require gradient computation during training.
// They typically represent weights and biases of layers. The optimizer
// updates the tensor in place, so every module holding the same Parameter
// sees the new values.
//
// Example:
//
//	weight := nn.NewParameter("weight", weightTensor)
//	w := weight.Tensor()
//	grad := weight.Grad() // nil before the first backward pass
type Parameter struct {
	name   string         // Parameter name (e.g., "weight", "bias")
	tensor *tensor.Tensor // The parameter tensor
	grad   *tensor.Tensor // Gradient tensor (computed during backward pass)
}

// NewParameter creates a new trainable parameter.
//
// Parameters:
//   - name: Descriptive name for this parameter (e.g., "weight")
//   - t: The initialized parameter tensor
func NewParameter(name string, t *tensor.Tensor) *Parameter {
	return &Parameter{
		name:   name,
		tensor: t,
	}
}

// Name returns the parameter name.
func (p *Parameter) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter) Tensor() *tensor.Tensor {
	return p.tensor
}

// Grad returns the gradient tensor.
//
// Returns nil if no gradient has been computed yet (before backward pass).
func (p *Parameter) Grad() *tensor.Tensor {
	return p.grad
}

// SetGrad sets the gradient tensor.
func (p *Parameter) SetGrad(grad *tensor.Tensor) {
	p.grad = grad
}

// ZeroGrad clears the gradient tensor.
//
// This should be called before each training iteration to avoid
// accumulating gradients from previous iterations.
func (p *Parameter) ZeroGrad() {
	p.grad = nil
}

// NumElements returns the number of scalar values held by the parameter.
func (p *Parameter) NumElements() int {
	return p.tensor.NumElements()
}
