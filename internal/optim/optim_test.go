package optim_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/born-ml/cifarnet/internal/autodiff"
	"github.com/born-ml/cifarnet/internal/backend/cpu"
	"github.com/born-ml/cifarnet/internal/nn"
	"github.com/born-ml/cifarnet/internal/optim"
	"github.com/born-ml/cifarnet/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scalarParam(v float64) *nn.Parameter {
	return nn.NewParameter("x", tensor.MustFromSlice([]float64{v}, tensor.Shape{1}))
}

func TestSGD_SimpleUpdate(t *testing.T) {
	param := scalarParam(2.0)
	optimizer := optim.NewSGD([]*nn.Parameter{param}, optim.SGDConfig{LR: 0.1})

	grad := tensor.MustFromSlice([]float64{1.0}, tensor.Shape{1})
	optimizer.Step(map[*tensor.Tensor]*tensor.Tensor{param.Tensor(): grad})

	// x_new = 2.0 - 0.1 * 1.0
	assert.InDelta(t, 1.9, param.Tensor().Item(), 1e-12)
	assert.Same(t, grad, param.Grad())

	optimizer.ZeroGrad()
	assert.Nil(t, param.Grad())
}

func TestSGD_WithMomentum(t *testing.T) {
	param := scalarParam(1.0)
	optimizer := optim.NewSGD([]*nn.Parameter{param}, optim.SGDConfig{LR: 0.1, Momentum: 0.9})
	grads := map[*tensor.Tensor]*tensor.Tensor{
		param.Tensor(): tensor.MustFromSlice([]float64{1.0}, tensor.Shape{1}),
	}

	optimizer.Step(grads) // v = 1,   x = 1 - 0.1
	optimizer.Step(grads) // v = 1.9, x = 0.9 - 0.19
	assert.InDelta(t, 0.71, param.Tensor().Item(), 1e-12)
}

func TestSGD_SkipsParamsWithoutGradient(t *testing.T) {
	param := scalarParam(3.0)
	optimizer := optim.NewSGD([]*nn.Parameter{param}, optim.SGDConfig{LR: 0.5})
	optimizer.Step(map[*tensor.Tensor]*tensor.Tensor{})
	assert.Equal(t, 3.0, param.Tensor().Item())
}

func TestAdam_FirstStepMovesByLR(t *testing.T) {
	param := scalarParam(0.5)
	optimizer := optim.NewAdam([]*nn.Parameter{param}, optim.AdamConfig{LR: 0.01})
	optimizer.Step(map[*tensor.Tensor]*tensor.Tensor{
		param.Tensor(): tensor.MustFromSlice([]float64{4.0}, tensor.Shape{1}),
	})

	// After bias correction m_hat = g and v_hat = g², so the step is lr*sign(g).
	assert.InDelta(t, 0.49, param.Tensor().Item(), 1e-8)
	assert.Equal(t, 1, optimizer.GetTimestep())
}

func TestNew_SelectsOptimizer(t *testing.T) {
	params := []*nn.Parameter{scalarParam(0)}

	opt, err := optim.New(params, optim.Config{Kind: "SGD", LR: 0.001, Momentum: 0.9})
	require.NoError(t, err)
	assert.IsType(t, &optim.SGD{}, opt)
	assert.Equal(t, 0.001, opt.GetLR())

	opt, err = optim.New(params, optim.Config{Kind: optim.KindAdam, LR: 0.002})
	require.NoError(t, err)
	assert.IsType(t, &optim.Adam{}, opt)

	_, err = optim.New(params, optim.Config{Kind: "rmsprop"})
	assert.Error(t, err)
}

// Training a small linear classifier on a separable problem lowers the loss.
func TestSGD_ReducesLoss(t *testing.T) {
	backend := autodiff.New(cpu.New())
	layer := nn.NewLinear(2, 2, rand.New(rand.NewSource(7)), backend)
	criterion := nn.NewCrossEntropyLoss(backend)
	optimizer := optim.NewSGD(layer.Parameters(), optim.SGDConfig{LR: 0.5})

	x := tensor.MustFromSlice([]float64{1, 0, 0, 1, 2, 0, 0, 2}, tensor.Shape{4, 2})
	labels := []int32{0, 1, 0, 1}

	first := math.Inf(1)
	var last float64
	backend.Tape().StartRecording()
	for step := range 50 {
		optimizer.ZeroGrad()
		loss := criterion.Forward(layer.Forward(x), labels)
		optimizer.Step(backend.Backward(loss))
		backend.Tape().Clear()
		if step == 0 {
			first = loss.Item()
		}
		last = loss.Item()
	}
	assert.Less(t, last, first)
	assert.Equal(t, 1.0, nn.Accuracy(layer.Forward(x), labels))
}
