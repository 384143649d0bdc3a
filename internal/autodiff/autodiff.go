// Package autodiff implements reverse-mode automatic differentiation using
// the decorator pattern.
//
// Backend wraps the CPU backend: every forward method runs the kernel and,
// while the tape is recording, appends the matching operation so Backward
// can later replay the graph in reverse.
//
// Usage:
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//	logits := model.Forward(images)
//	loss := backend.CrossEntropy(logits, labels)
//	grads := backend.Backward(loss)
//	optimizer.Step(grads)
//	backend.Tape().Clear()
package autodiff

import (
	"fmt"

	"github.com/born-ml/cifarnet/internal/autodiff/ops"
	"github.com/born-ml/cifarnet/internal/backend/cpu"
	"github.com/born-ml/cifarnet/internal/tensor"
)

// Backend wraps a CPU backend and records operations in a GradientTape.
type Backend struct {
	inner *cpu.CPUBackend
	tape  *GradientTape
}

// New creates a new autodiff Backend wrapping the given backend.
func New(backend *cpu.CPUBackend) *Backend {
	return &Backend{
		inner: backend,
		tape:  NewGradientTape(),
	}
}

// Tape returns the gradient tape for manual control.
func (b *Backend) Tape() *GradientTape {
	return b.tape
}

// Inner returns the wrapped backend.
func (b *Backend) Inner() *cpu.CPUBackend {
	return b.inner
}

// Name returns the backend name.
func (b *Backend) Name() string {
	return "Autodiff(" + b.inner.Name() + ")"
}

// Device returns the compute device.
func (b *Backend) Device() tensor.Device {
	return b.inner.Device()
}

// Conv2D performs 2D convolution and records the operation.
func (b *Backend) Conv2D(input, kernel *tensor.Tensor, stride, padding int) *tensor.Tensor {
	out := b.inner.Conv2D(input, kernel, stride, padding)
	b.tape.Record(ops.NewConv2DOp(input, kernel, out, stride, padding))
	return out
}

// AddChannelBias adds a per-channel bias and records the operation.
func (b *Backend) AddChannelBias(input, bias *tensor.Tensor) *tensor.Tensor {
	out := b.inner.AddChannelBias(input, bias)
	b.tape.Record(ops.NewChannelBiasOp(input, bias, out))
	return out
}

// Linear computes input·weightᵀ + bias and records the operation.
func (b *Backend) Linear(input, weight, bias *tensor.Tensor) *tensor.Tensor {
	out := b.inner.Linear(input, weight, bias)
	b.tape.Record(ops.NewLinearOp(input, weight, bias, out))
	return out
}

// MaxPool2D performs max pooling and records the operation.
func (b *Backend) MaxPool2D(input *tensor.Tensor, kernelSize, stride int) *tensor.Tensor {
	out, indices := b.inner.MaxPool2D(input, kernelSize, stride)
	b.tape.Record(ops.NewMaxPool2DOp(input, out, indices))
	return out
}

// Reshape returns a view with a new shape and records the operation.
func (b *Backend) Reshape(input *tensor.Tensor, shape ...int) *tensor.Tensor {
	out := input.View(shape...)
	b.tape.Record(ops.NewReshapeOp(input, out))
	return out
}

// ReLU applies max(0, x) and records the operation.
func (b *Backend) ReLU(x *tensor.Tensor) *tensor.Tensor {
	out := b.inner.ReLU(x)
	b.tape.Record(ops.NewReLUOp(x, out))
	return out
}

// Sigmoid applies the logistic function and records the operation.
func (b *Backend) Sigmoid(x *tensor.Tensor) *tensor.Tensor {
	out := b.inner.Sigmoid(x)
	b.tape.Record(ops.NewSigmoidOp(x, out))
	return out
}

// Tanh applies tanh and records the operation.
func (b *Backend) Tanh(x *tensor.Tensor) *tensor.Tensor {
	out := b.inner.Tanh(x)
	b.tape.Record(ops.NewTanhOp(x, out))
	return out
}

// Softmax normalizes along axis 1 and records the operation.
func (b *Backend) Softmax(x *tensor.Tensor) *tensor.Tensor {
	out := b.inner.Softmax(x)
	b.tape.Record(ops.NewSoftmaxOp(x, out))
	return out
}

// CrossEntropy computes the mean cross-entropy loss as a one-element tensor
// and records the operation.
func (b *Backend) CrossEntropy(logits *tensor.Tensor, targets []int32) *tensor.Tensor {
	loss, probs := b.inner.CrossEntropy(logits, targets)
	out := tensor.Full(tensor.Shape{1}, loss)
	b.tape.Record(ops.NewCrossEntropyOp(logits, out, probs, targets))
	return out
}

// Backward computes gradients of a one-element loss tensor with respect to
// every tensor recorded on the tape.
//
// Panics if nothing was recorded: that means the tape was not started before
// the forward pass.
func (b *Backend) Backward(loss *tensor.Tensor) map[*tensor.Tensor]*tensor.Tensor {
	if b.tape.NumOps() == 0 {
		panic("backward: no operations recorded (did you forget to call Tape().StartRecording()?)")
	}
	if loss.NumElements() != 1 {
		panic(fmt.Sprintf("backward: loss must have one element, got shape %v", loss.Shape()))
	}
	return b.tape.Backward(loss, tensor.Full(loss.Shape(), 1), b.inner)
}
