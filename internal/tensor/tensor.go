// Package tensor provides the dense float64 tensor used by the network,
// the CPU kernels and the gradient tape.
package tensor

import (
	"fmt"
	"math/rand"
)

// Tensor is a dense, row-major float64 array with a shape.
//
// Tensors created by View share storage with their source, so in-place
// writes (optimizer updates, LoadStateDict) are visible through every view.
type Tensor struct {
	shape  Shape
	data   []float64
	device Device
}

// New wraps data in a tensor of the given shape without copying.
func New(shape Shape, data []float64) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("shape %v requires %d elements, but got %d", shape, shape.NumElements(), len(data))
	}
	return &Tensor{shape: shape.Clone(), data: data, device: CPU}, nil
}

// Zeros creates a tensor filled with zeros.
//
// Panics on an invalid shape: shapes are built by layer code, not user input.
func Zeros(shape Shape) *Tensor {
	if err := shape.Validate(); err != nil {
		panic(fmt.Sprintf("tensor: %v", err))
	}
	return &Tensor{
		shape:  shape.Clone(),
		data:   make([]float64, shape.NumElements()),
		device: CPU,
	}
}

// Full creates a tensor filled with value.
func Full(shape Shape, value float64) *Tensor {
	t := Zeros(shape)
	for i := range t.data {
		t.data[i] = value
	}
	return t
}

// FromSlice copies data into a new tensor.
func FromSlice(data []float64, shape Shape) (*Tensor, error) {
	buf := make([]float64, len(data))
	copy(buf, data)
	return New(shape, buf)
}

// MustFromSlice is FromSlice that panics on error. Intended for tests and
// constant tables.
func MustFromSlice(data []float64, shape Shape) *Tensor {
	t, err := FromSlice(data, shape)
	if err != nil {
		panic(err)
	}
	return t
}

// Uniform creates a tensor with values drawn uniformly from [low, high).
//
// Note: uses math/rand (not crypto/rand), seeded by the caller for
// reproducible initialization.
func Uniform(shape Shape, low, high float64, rng *rand.Rand) *Tensor {
	t := Zeros(shape)
	span := high - low
	for i := range t.data {
		t.data[i] = low + rng.Float64()*span
	}
	return t
}

// Shape returns the tensor's shape.
func (t *Tensor) Shape() Shape {
	return t.shape
}

// Data returns the backing slice. Writes are visible to every view.
func (t *Tensor) Data() []float64 {
	return t.data
}

// NumElements returns the number of elements.
func (t *Tensor) NumElements() int {
	return len(t.data)
}

// Device returns the device holding the tensor data.
func (t *Tensor) Device() Device {
	return t.device
}

// Item returns the single value of a one-element tensor.
func (t *Tensor) Item() float64 {
	if len(t.data) != 1 {
		panic(fmt.Sprintf("tensor: Item on tensor with %d elements", len(t.data)))
	}
	return t.data[0]
}

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	data := make([]float64, len(t.data))
	copy(data, t.data)
	return &Tensor{shape: t.shape.Clone(), data: data, device: t.device}
}

// View returns a tensor with a new shape sharing the same storage.
func (t *Tensor) View(shape ...int) *Tensor {
	s := Shape(shape)
	if s.NumElements() != len(t.data) {
		panic(fmt.Sprintf("tensor: cannot view %v as %v", t.shape, s))
	}
	return &Tensor{shape: s.Clone(), data: t.data, device: t.device}
}

// CopyFrom overwrites t's values with src's. Shapes must match.
func (t *Tensor) CopyFrom(src *Tensor) error {
	if !t.shape.Equal(src.shape) {
		return fmt.Errorf("shape mismatch: expected %v, got %v", t.shape, src.shape)
	}
	copy(t.data, src.data)
	return nil
}

// Fill sets every element to value.
func (t *Tensor) Fill(value float64) {
	for i := range t.data {
		t.data[i] = value
	}
}

// To moves the tensor to device. Only host memory is implemented, so any
// other target is reported as an error.
func (t *Tensor) To(device Device) (*Tensor, error) {
	if device != CPU {
		return nil, fmt.Errorf("tensor: device %s not supported by this build", device)
	}
	return t, nil
}

// String returns a short description.
func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor(shape=%v, device=%s)", t.shape, t.device)
}
