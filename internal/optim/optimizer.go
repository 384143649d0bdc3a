// Package optim implements optimization algorithms for training neural networks.
//
// This package provides:
//   - Optimizer interface: Base interface for all optimizers
//   - SGD: Stochastic Gradient Descent with momentum
//   - Adam: Adaptive Moment Estimation
//
// Example usage:
//
//	optimizer := optim.NewSGD(model.Parameters(), optim.SGDConfig{
//	    LR:       0.001,
//	    Momentum: 0.9,
//	})
//
//	optimizer.ZeroGrad()
//	backend.Tape().StartRecording()
//	loss := criterion.Forward(model.Forward(images), labels)
//	optimizer.Step(backend.Backward(loss))
//	backend.Tape().Clear()
package optim

import (
	"fmt"
	"strings"

	"github.com/born-ml/cifarnet/internal/nn"
	"github.com/born-ml/cifarnet/internal/tensor"
)

// Optimizer is the base interface for all optimization algorithms.
//
// All optimizers must implement:
//   - Step: Apply gradient updates to parameters
//   - ZeroGrad: Clear gradients before next iteration
//   - GetLR: Get current learning rate (for monitoring)
type Optimizer interface {
	// Step applies gradient updates to all parameters in place.
	//
	// Takes the gradient map returned by Backward. Parameters without an
	// entry did not take part in the forward pass and are left unchanged.
	Step(grads map[*tensor.Tensor]*tensor.Tensor)

	// ZeroGrad clears all parameter gradients.
	ZeroGrad()

	// GetLR returns the current learning rate.
	GetLR() float64
}

// Kind names an optimization algorithm.
type Kind string

// Supported optimizers.
const (
	KindSGD  Kind = "sgd"
	KindAdam Kind = "adam"
)

// Config selects and configures an optimizer.
type Config struct {
	Kind     Kind    // "sgd" or "adam"
	LR       float64 // Learning rate
	Momentum float64 // SGD only
}

// New builds the optimizer described by cfg over params.
func New(params []*nn.Parameter, cfg Config) (Optimizer, error) {
	switch Kind(strings.ToLower(string(cfg.Kind))) {
	case KindSGD, "":
		return NewSGD(params, SGDConfig{LR: cfg.LR, Momentum: cfg.Momentum}), nil
	case KindAdam:
		return NewAdam(params, AdamConfig{LR: cfg.LR}), nil
	default:
		return nil, fmt.Errorf("unknown optimizer %q", cfg.Kind)
	}
}

// getGradient retrieves the gradient for a parameter and records it on
// the parameter.
//
// Returns nil if no gradient is found (parameter wasn't part of computation graph).
func getGradient(param *nn.Parameter, grads map[*tensor.Tensor]*tensor.Tensor) *tensor.Tensor {
	grad := grads[param.Tensor()]
	if grad != nil {
		param.SetGrad(grad)
	}
	return grad
}
