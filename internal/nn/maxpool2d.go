package nn

import (
	"fmt"

	"github.com/born-ml/cifarnet/internal/autodiff"
	"github.com/born-ml/cifarnet/internal/tensor"
)

// MaxPool2D is a 2D max pooling layer.
//
// Max pooling reduces spatial dimensions by taking the maximum value
// in each window. MaxPool2D has no learnable parameters.
//
// Input shape:  [batch, channels, height, width]
// Output shape: [batch, channels, out_height, out_width]
//
// Where:
//
//	out_height = (height - kernelSize) / stride + 1
//	out_width = (width - kernelSize) / stride + 1
//
// Example:
//
//	pool := nn.NewMaxPool2D(2, 2, backend)
//	output := pool.Forward(input) // [32, 256, 32, 32] -> [32, 256, 16, 16]
type MaxPool2D struct {
	kernelSize int
	stride     int
	backend    *autodiff.Backend
}

// NewMaxPool2D creates a new max pooling layer.
func NewMaxPool2D(kernelSize, stride int, backend *autodiff.Backend) *MaxPool2D {
	if kernelSize <= 0 || stride <= 0 {
		panic(fmt.Sprintf("maxpool2d: invalid kernel=%d, stride=%d", kernelSize, stride))
	}
	return &MaxPool2D{
		kernelSize: kernelSize,
		stride:     stride,
		backend:    backend,
	}
}

// Forward applies max pooling.
func (m *MaxPool2D) Forward(input *tensor.Tensor) *tensor.Tensor {
	return m.backend.MaxPool2D(input, m.kernelSize, m.stride)
}

// Parameters returns nil (max pooling has no trainable parameters).
func (m *MaxPool2D) Parameters() []*Parameter {
	return nil
}

// String returns a string representation of the layer.
func (m *MaxPool2D) String() string {
	return fmt.Sprintf("MaxPool2D(kernel_size=%d, stride=%d)", m.kernelSize, m.stride)
}

// ComputeOutputSize computes the output spatial size for a square input.
func (m *MaxPool2D) ComputeOutputSize(inputSize int) int {
	return (inputSize-m.kernelSize)/m.stride + 1
}

// Flatten reshapes [batch, d1, d2, ...] into [batch, d1*d2*...].
type Flatten struct {
	backend *autodiff.Backend
}

// NewFlatten creates a new flatten layer.
func NewFlatten(backend *autodiff.Backend) *Flatten {
	return &Flatten{backend: backend}
}

// Forward flattens every dimension after the batch dimension.
func (f *Flatten) Forward(input *tensor.Tensor) *tensor.Tensor {
	shape := input.Shape()
	if len(shape) < 2 {
		panic(fmt.Sprintf("flatten: expected at least 2D input, got %dD", len(shape)))
	}
	return f.backend.Reshape(input, shape[0], input.NumElements()/shape[0])
}

// Parameters returns nil.
func (f *Flatten) Parameters() []*Parameter {
	return nil
}

// String returns a string representation of the layer.
func (f *Flatten) String() string {
	return "Flatten()"
}
