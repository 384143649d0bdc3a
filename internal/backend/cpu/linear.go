package cpu

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/cifarnet/internal/tensor"
)

// Linear computes y = x·Wᵀ + b.
//
// Shapes: x [batch, in], weight [out, in], bias [out] (may be nil),
// result [batch, out].
func (cpu *CPUBackend) Linear(input, weight, bias *tensor.Tensor) *tensor.Tensor {
	batch, in, out := linearDims(input, weight)

	output := tensor.Zeros(tensor.Shape{batch, out})
	x := mat.NewDense(batch, in, input.Data())
	w := mat.NewDense(out, in, weight.Data())
	y := mat.NewDense(batch, out, output.Data())
	y.Mul(x, w.T())

	if bias != nil {
		if bias.NumElements() != out {
			panic(fmt.Sprintf("linear: bias has %d elements, want %d", bias.NumElements(), out))
		}
		b := bias.Data()
		data := output.Data()
		for r := 0; r < batch; r++ {
			row := data[r*out : (r+1)*out]
			for j := range row {
				row[j] += b[j]
			}
		}
	}
	return output
}

// LinearBackward returns the gradients of Linear with respect to its input,
// weight and bias:
//
//	dx = dy·W      [batch, in]
//	dW = dyᵀ·x     [out, in]
//	db = Σ_rows dy [out]
func (cpu *CPUBackend) LinearBackward(input, weight, outputGrad *tensor.Tensor) (inputGrad, weightGrad, biasGrad *tensor.Tensor) {
	batch, in, out := linearDims(input, weight)
	if !outputGrad.Shape().Equal(tensor.Shape{batch, out}) {
		panic(fmt.Sprintf("linear backward: output grad shape %v, want [%d, %d]", outputGrad.Shape(), batch, out))
	}

	x := mat.NewDense(batch, in, input.Data())
	w := mat.NewDense(out, in, weight.Data())
	dy := mat.NewDense(batch, out, outputGrad.Data())

	inputGrad = tensor.Zeros(tensor.Shape{batch, in})
	mat.NewDense(batch, in, inputGrad.Data()).Mul(dy, w)

	weightGrad = tensor.Zeros(tensor.Shape{out, in})
	mat.NewDense(out, in, weightGrad.Data()).Mul(dy.T(), x)

	biasGrad = tensor.Zeros(tensor.Shape{out})
	bg := biasGrad.Data()
	g := outputGrad.Data()
	for r := 0; r < batch; r++ {
		for j := 0; j < out; j++ {
			bg[j] += g[r*out+j]
		}
	}
	return inputGrad, weightGrad, biasGrad
}

func linearDims(input, weight *tensor.Tensor) (batch, in, out int) {
	xs, ws := input.Shape(), weight.Shape()
	if len(xs) != 2 {
		panic(fmt.Sprintf("linear: expected 2D input [batch, in], got %dD", len(xs)))
	}
	if len(ws) != 2 {
		panic(fmt.Sprintf("linear: expected 2D weight [out, in], got %dD", len(ws)))
	}
	if xs[1] != ws[1] {
		panic(fmt.Sprintf("linear: input features %d != weight in_features %d", xs[1], ws[1]))
	}
	return xs[0], xs[1], ws[0]
}
