package optim

import (
	"github.com/born-ml/cifarnet/internal/nn"
	"github.com/born-ml/cifarnet/internal/tensor"
)

// SGD implements Stochastic Gradient Descent optimizer with optional momentum.
//
// Update rule without momentum:
//
//	param = param - lr * gradient
//
// Update rule with momentum:
//
//	velocity = momentum * velocity + gradient
//	param = param - lr * velocity
type SGD struct {
	params     []*nn.Parameter
	lr         float64
	momentum   float64
	velocities map[*nn.Parameter]*tensor.Tensor
}

// SGDConfig holds configuration for SGD optimizer.
type SGDConfig struct {
	LR       float64 // Learning rate (default: 0.01)
	Momentum float64 // Momentum factor (default: 0.0, range: [0, 1))
}

// NewSGD creates a new SGD optimizer.
func NewSGD(params []*nn.Parameter, config SGDConfig) *SGD {
	if config.LR == 0 {
		config.LR = 0.01
	}
	return &SGD{
		params:     params,
		lr:         config.LR,
		momentum:   config.Momentum,
		velocities: make(map[*nn.Parameter]*tensor.Tensor),
	}
}

// Step performs a single optimization step.
//
// Parameters with no gradient (not in computational graph) are skipped.
func (s *SGD) Step(grads map[*tensor.Tensor]*tensor.Tensor) {
	for _, param := range s.params {
		grad := getGradient(param, grads)
		if grad == nil {
			continue
		}

		p, g := param.Tensor().Data(), grad.Data()
		if s.momentum == 0 {
			for i := range p {
				p[i] -= s.lr * g[i]
			}
			continue
		}

		velocity, exists := s.velocities[param]
		if !exists {
			velocity = tensor.Zeros(param.Tensor().Shape())
			s.velocities[param] = velocity
		}
		v := velocity.Data()
		for i := range p {
			v[i] = s.momentum*v[i] + g[i]
			p[i] -= s.lr * v[i]
		}
	}
}

// ZeroGrad clears gradients for all parameters.
func (s *SGD) ZeroGrad() {
	for _, param := range s.params {
		param.ZeroGrad()
	}
}

// GetLR returns the current learning rate.
func (s *SGD) GetLR() float64 {
	return s.lr
}

// SetLR updates the learning rate.
func (s *SGD) SetLR(lr float64) {
	s.lr = lr
}
