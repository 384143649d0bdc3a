package optim

import (
	"math"

	"github.com/born-ml/cifarnet/internal/nn"
	"github.com/born-ml/cifarnet/internal/tensor"
)

// Adam implements the Adam optimization algorithm.
//
// Update rule:
//
//	m_t = beta1 * m_{t-1} + (1-beta1) * gradient       // First moment
//	v_t = beta2 * v_{t-1} + (1-beta2) * gradient²      // Second moment
//	m_hat = m_t / (1 - beta1^t)                        // Bias correction
//	v_hat = v_t / (1 - beta2^t)                        // Bias correction
//	param = param - lr * m_hat / (sqrt(v_hat) + eps)  // Parameter update
//
// Reference: "Adam: A Method for Stochastic Optimization" (Kingma & Ba, 2014)
type Adam struct {
	params []*nn.Parameter
	lr     float64
	beta1  float64
	beta2  float64
	eps    float64
	t      int                              // Timestep for bias correction
	m      map[*nn.Parameter]*tensor.Tensor // First moment estimates
	v      map[*nn.Parameter]*tensor.Tensor // Second moment estimates
}

// AdamConfig holds configuration for Adam optimizer.
type AdamConfig struct {
	LR    float64    // Learning rate (default: 0.001)
	Betas [2]float64 // Coefficients for computing running averages (default: [0.9, 0.999])
	Eps   float64    // Term for numerical stability (default: 1e-8)
}

// NewAdam creates a new Adam optimizer with default hyperparameters
// for any zero config field.
func NewAdam(params []*nn.Parameter, config AdamConfig) *Adam {
	if config.LR == 0 {
		config.LR = 0.001
	}
	if config.Betas[0] == 0 {
		config.Betas[0] = 0.9
	}
	if config.Betas[1] == 0 {
		config.Betas[1] = 0.999
	}
	if config.Eps == 0 {
		config.Eps = 1e-8
	}
	return &Adam{
		params: params,
		lr:     config.LR,
		beta1:  config.Betas[0],
		beta2:  config.Betas[1],
		eps:    config.Eps,
		m:      make(map[*nn.Parameter]*tensor.Tensor),
		v:      make(map[*nn.Parameter]*tensor.Tensor),
	}
}

// Step performs a single optimization step using Adam algorithm.
//
// Parameters with no gradient are skipped.
func (a *Adam) Step(grads map[*tensor.Tensor]*tensor.Tensor) {
	a.t++
	biasCorrection1 := 1.0 - math.Pow(a.beta1, float64(a.t))
	biasCorrection2 := 1.0 - math.Pow(a.beta2, float64(a.t))

	for _, param := range a.params {
		grad := getGradient(param, grads)
		if grad == nil {
			continue
		}

		m, ok := a.m[param]
		if !ok {
			m = tensor.Zeros(param.Tensor().Shape())
			a.m[param] = m
			a.v[param] = tensor.Zeros(param.Tensor().Shape())
		}
		mData, vData := m.Data(), a.v[param].Data()
		p, g := param.Tensor().Data(), grad.Data()

		for i := range p {
			mData[i] = a.beta1*mData[i] + (1.0-a.beta1)*g[i]
			vData[i] = a.beta2*vData[i] + (1.0-a.beta2)*g[i]*g[i]
			mHat := mData[i] / biasCorrection1
			vHat := vData[i] / biasCorrection2
			p[i] -= a.lr * mHat / (math.Sqrt(vHat) + a.eps)
		}
	}
}

// ZeroGrad clears gradients for all parameters.
func (a *Adam) ZeroGrad() {
	for _, param := range a.params {
		param.ZeroGrad()
	}
}

// GetLR returns the current learning rate.
func (a *Adam) GetLR() float64 {
	return a.lr
}

// SetLR updates the learning rate.
func (a *Adam) SetLR(lr float64) {
	a.lr = lr
}

// GetTimestep returns the number of steps taken.
func (a *Adam) GetTimestep() int {
	return a.t
}
