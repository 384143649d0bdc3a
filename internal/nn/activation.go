package nn

import (
	"errors"
	"fmt"
	"strings"

	"github.com/born-ml/cifarnet/internal/autodiff"
	"github.com/born-ml/cifarnet/internal/tensor"
)

// ErrUnknownActivation is returned when an activation name is not supported.
var ErrUnknownActivation = errors.New("unknown activation")

// ActivationKind names an activation function.
type ActivationKind string

// Supported activation kinds.
const (
	ActivationReLU    ActivationKind = "relu"
	ActivationSigmoid ActivationKind = "sigmoid"
	ActivationTanh    ActivationKind = "tanh"
	ActivationSoftmax ActivationKind = "softmax"
)

// ParseActivation resolves a case-insensitive activation name.
func ParseActivation(name string) (ActivationKind, error) {
	kind := ActivationKind(strings.ToLower(strings.TrimSpace(name)))
	switch kind {
	case ActivationReLU, ActivationSigmoid, ActivationTanh, ActivationSoftmax:
		return kind, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownActivation, name)
	}
}

// NewActivation creates the activation module for kind.
//
// The returned module is stateless; a single instance may be reused at
// every activation site of a network.
func NewActivation(kind ActivationKind, backend *autodiff.Backend) (Module, error) {
	switch kind {
	case ActivationReLU:
		return NewReLU(backend), nil
	case ActivationSigmoid:
		return NewSigmoid(backend), nil
	case ActivationTanh:
		return NewTanh(backend), nil
	case ActivationSoftmax:
		return NewSoftmax(backend), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownActivation, string(kind))
	}
}

// ReLU is a Rectified Linear Unit activation module.
//
// Applies the element-wise function: f(x) = max(0, x)
type ReLU struct {
	backend *autodiff.Backend
}

// NewReLU creates a new ReLU activation module.
func NewReLU(backend *autodiff.Backend) *ReLU {
	return &ReLU{backend: backend}
}

// Forward applies ReLU activation: f(x) = max(0, x).
func (r *ReLU) Forward(input *tensor.Tensor) *tensor.Tensor {
	return r.backend.ReLU(input)
}

// Parameters returns nil (ReLU has no trainable parameters).
func (r *ReLU) Parameters() []*Parameter {
	return nil
}

// String returns a string representation of the module.
func (r *ReLU) String() string {
	return "ReLU()"
}

// Sigmoid is a sigmoid activation module.
//
// Applies the element-wise function: σ(x) = 1 / (1 + exp(-x))
type Sigmoid struct {
	backend *autodiff.Backend
}

// NewSigmoid creates a new Sigmoid activation module.
func NewSigmoid(backend *autodiff.Backend) *Sigmoid {
	return &Sigmoid{backend: backend}
}

// Forward applies Sigmoid activation.
func (s *Sigmoid) Forward(input *tensor.Tensor) *tensor.Tensor {
	return s.backend.Sigmoid(input)
}

// Parameters returns nil.
func (s *Sigmoid) Parameters() []*Parameter {
	return nil
}

// String returns a string representation of the module.
func (s *Sigmoid) String() string {
	return "Sigmoid()"
}

// Tanh is a hyperbolic tangent activation module.
type Tanh struct {
	backend *autodiff.Backend
}

// NewTanh creates a new Tanh activation module.
func NewTanh(backend *autodiff.Backend) *Tanh {
	return &Tanh{backend: backend}
}

// Forward applies tanh element-wise.
func (t *Tanh) Forward(input *tensor.Tensor) *tensor.Tensor {
	return t.backend.Tanh(input)
}

// Parameters returns nil.
func (t *Tanh) Parameters() []*Parameter {
	return nil
}

// String returns a string representation of the module.
func (t *Tanh) String() string {
	return "Tanh()"
}

// Softmax normalizes along dimension 1 (classes for [B,C] input,
// channels for [B,C,H,W] input).
type Softmax struct {
	backend *autodiff.Backend
}

// NewSoftmax creates a new Softmax activation module.
func NewSoftmax(backend *autodiff.Backend) *Softmax {
	return &Softmax{backend: backend}
}

// Forward applies softmax along dimension 1.
func (s *Softmax) Forward(input *tensor.Tensor) *tensor.Tensor {
	return s.backend.Softmax(input)
}

// Parameters returns nil.
func (s *Softmax) Parameters() []*Parameter {
	return nil
}

// String returns a string representation of the module.
func (s *Softmax) String() string {
	return "Softmax(dim=1)"
}
