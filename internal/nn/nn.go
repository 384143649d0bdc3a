// Package nn implements the neural network modules used by the classifier.
//
// This package provides building blocks for constructing convolutional
// networks:
//   - Module interface: Base interface for all NN components
//   - Parameter: Trainable parameters with gradient tracking
//   - Conv2D, MaxPool2D, Flatten, Linear: Layers
//   - Activations: ReLU, Sigmoid, Tanh, Softmax
//   - CrossEntropyLoss and Accuracy
//   - Sequential: Container for stacking layers
//
// Every layer computes through an autodiff.Backend, so forward passes made
// while the tape is recording can be differentiated.
package nn

import (
	"github.com/born-ml/cifarnet/internal/tensor"
)

// Module is the base interface for all neural network components.
//
// Every NN module must implement:
//   - Forward: Compute output from input
//   - Parameters: Return all trainable parameters
//
// Modules can be composed to build complex architectures:
//
//	model := nn.NewSequential(
//	    nn.NewConv2D(3, 16, 3, 1, 1, rng, backend),
//	    nn.NewReLU(backend),
//	    nn.NewMaxPool2D(2, 2, backend),
//	)
type Module interface {
	// Forward computes the output of the module given an input tensor.
	Forward(input *tensor.Tensor) *tensor.Tensor

	// Parameters returns all trainable parameters of this module.
	//
	// Returns an empty slice for modules without trainable parameters
	// (e.g., activation functions).
	Parameters() []*Parameter
}
