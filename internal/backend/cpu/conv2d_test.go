package cpu

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/cifarnet/internal/parallel"
	"github.com/born-ml/cifarnet/internal/tensor"
)

func TestConv2D_ForwardValues(t *testing.T) {
	backend := New()

	// 1 -> 1 channel, 2x2 kernel over a 3x3 input holding 1..9.
	kernel := tensor.MustFromSlice([]float64{1, 2, 3, 4}, tensor.Shape{1, 1, 2, 2})
	input := tensor.MustFromSlice([]float64{1, 2, 3, 4, 5, 6, 7, 8, 9}, tensor.Shape{1, 1, 3, 3})

	output := backend.Conv2D(input, kernel, 1, 0)

	// [0,0]: 1*1 + 2*2 + 3*4 + 4*5 = 37
	// [0,1]: 1*2 + 2*3 + 3*5 + 4*6 = 47
	// [1,0]: 1*4 + 2*5 + 3*7 + 4*8 = 67
	// [1,1]: 1*5 + 2*6 + 3*8 + 4*9 = 77
	require.True(t, output.Shape().Equal(tensor.Shape{1, 1, 2, 2}))
	assert.Equal(t, []float64{37, 47, 67, 77}, output.Data())
}

func TestConv2D_PaddingKeepsSpatialSize(t *testing.T) {
	backend := New()
	input := tensor.Full(tensor.Shape{2, 3, 8, 8}, 1)
	kernel := tensor.Full(tensor.Shape{4, 3, 3, 3}, 1)

	output := backend.Conv2D(input, kernel, 1, 1)

	require.True(t, output.Shape().Equal(tensor.Shape{2, 4, 8, 8}))
	data := output.Data()
	// Corner sees a 2x2 window per channel, interior a full 3x3.
	assert.Equal(t, 12.0, data[0])
	assert.Equal(t, 27.0, data[1*8+1])
}

func TestConv2D_Stride(t *testing.T) {
	backend := New()
	input := tensor.Zeros(tensor.Shape{1, 1, 7, 7})
	kernel := tensor.Zeros(tensor.Shape{1, 1, 3, 3})

	output := backend.Conv2D(input, kernel, 2, 0)
	assert.True(t, output.Shape().Equal(tensor.Shape{1, 1, 3, 3}))
}

func TestConv2D_ChannelMismatchPanics(t *testing.T) {
	backend := New()
	input := tensor.Zeros(tensor.Shape{1, 2, 4, 4})
	kernel := tensor.Zeros(tensor.Shape{1, 3, 3, 3})
	assert.Panics(t, func() { backend.Conv2D(input, kernel, 1, 0) })
}

func TestConv2D_SequentialMatchesParallel(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	input := tensor.Uniform(tensor.Shape{5, 2, 6, 6}, -1, 1, rng)
	kernel := tensor.Uniform(tensor.Shape{3, 2, 3, 3}, -1, 1, rng)

	seq := NewWithConfig(parallel.WithWorkers(1)).Conv2D(input, kernel, 1, 1)
	par := NewWithConfig(parallel.WithWorkers(4)).Conv2D(input, kernel, 1, 1)

	assert.InDeltaSlice(t, seq.Data(), par.Data(), 1e-12)
}

// TestConv2DBackward_NumericGradient checks both gradients against central
// finite differences of L = Σ conv(x, w) ⊙ r for a fixed random r.
func TestConv2DBackward_NumericGradient(t *testing.T) {
	backend := NewWithConfig(parallel.WithWorkers(2))
	rng := rand.New(rand.NewSource(7))

	input := tensor.Uniform(tensor.Shape{2, 2, 5, 5}, -1, 1, rng)
	kernel := tensor.Uniform(tensor.Shape{3, 2, 3, 3}, -1, 1, rng)
	stride, padding := 2, 1

	out := backend.Conv2D(input, kernel, stride, padding)
	r := tensor.Uniform(out.Shape(), -1, 1, rng)

	loss := func() float64 {
		y := backend.Conv2D(input, kernel, stride, padding)
		sum := 0.0
		for i, v := range y.Data() {
			sum += v * r.Data()[i]
		}
		return sum
	}

	inputGrad, kernelGrad := backend.Conv2DBackward(input, kernel, r, stride, padding)

	checkNumericGrad(t, "input", input, inputGrad, loss)
	checkNumericGrad(t, "kernel", kernel, kernelGrad, loss)
}

func checkNumericGrad(t *testing.T, name string, param, analytic *tensor.Tensor, loss func() float64) {
	t.Helper()
	const eps = 1e-5
	data := param.Data()
	for i := range data {
		orig := data[i]
		data[i] = orig + eps
		plus := loss()
		data[i] = orig - eps
		minus := loss()
		data[i] = orig

		numeric := (plus - minus) / (2 * eps)
		if math.Abs(numeric-analytic.Data()[i]) > 1e-6 {
			t.Fatalf("%s grad[%d]: analytic %.8f, numeric %.8f", name, i, analytic.Data()[i], numeric)
		}
	}
}
