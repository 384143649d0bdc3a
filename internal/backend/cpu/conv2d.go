package cpu

import (
	"fmt"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/cifarnet/internal/tensor"
)

// convGeometry holds the dimensions shared by the forward and backward
// convolution kernels.
type convGeometry struct {
	N, CIn, H, W      int
	COut, KH, KW      int
	HOut, WOut        int
	stride, padding   int
	colRows, colCols  int // im2col matrix: [CIn*KH*KW, HOut*WOut]
	inPlane, outPlane int // elements per sample in input / output
}

func newConvGeometry(input, kernel *tensor.Tensor, stride, padding int) convGeometry {
	inputShape := input.Shape()
	kernelShape := kernel.Shape()

	if len(inputShape) != 4 {
		panic(fmt.Sprintf("conv2d: input must be 4D [N,C,H,W], got %dD", len(inputShape)))
	}
	if len(kernelShape) != 4 {
		panic(fmt.Sprintf("conv2d: kernel must be 4D [C_out,C_in,K_h,K_w], got %dD", len(kernelShape)))
	}
	if inputShape[1] != kernelShape[1] {
		panic(fmt.Sprintf("conv2d: input channels %d != kernel channels %d", inputShape[1], kernelShape[1]))
	}
	if stride <= 0 || padding < 0 {
		panic(fmt.Sprintf("conv2d: invalid stride=%d padding=%d", stride, padding))
	}

	g := convGeometry{
		N: inputShape[0], CIn: inputShape[1], H: inputShape[2], W: inputShape[3],
		COut: kernelShape[0], KH: kernelShape[2], KW: kernelShape[3],
		stride: stride, padding: padding,
	}
	g.HOut = (g.H+2*padding-g.KH)/stride + 1
	g.WOut = (g.W+2*padding-g.KW)/stride + 1
	if g.HOut <= 0 || g.WOut <= 0 {
		panic(fmt.Sprintf("conv2d: invalid output dimensions: out_h=%d, out_w=%d (input %dx%d, kernel %dx%d)",
			g.HOut, g.WOut, g.H, g.W, g.KH, g.KW))
	}
	g.colRows = g.CIn * g.KH * g.KW
	g.colCols = g.HOut * g.WOut
	g.inPlane = g.CIn * g.H * g.W
	g.outPlane = g.COut * g.colCols
	return g
}

// Conv2D performs 2D convolution using the im2col algorithm.
//
// Input shape:  [batch, in_channels, height, width]
// Kernel shape: [out_channels, in_channels, kernel_h, kernel_w]
// Output shape: [batch, out_channels, out_h, out_w]
//
// For every sample the input patches are unrolled into a
// [C_in*K_h*K_w, H_out*W_out] column matrix and multiplied by the kernel
// viewed as [C_out, C_in*K_h*K_w]. The product is already laid out as the
// sample's [C_out, H_out, W_out] output plane, so no rearrangement is needed.
// Samples are processed concurrently, each worker owning one column buffer.
func (cpu *CPUBackend) Conv2D(input, kernel *tensor.Tensor, stride, padding int) *tensor.Tensor {
	g := newConvGeometry(input, kernel, stride, padding)

	output := tensor.Zeros(tensor.Shape{g.N, g.COut, g.HOut, g.WOut})
	inputData := input.Data()
	outputData := output.Data()
	weights := mat.NewDense(g.COut, g.colRows, kernel.Data())

	cpu.forSamples(g.N, func(start, end int) {
		colBuf := make([]float64, g.colRows*g.colCols)
		cols := mat.NewDense(g.colRows, g.colCols, colBuf)
		for n := start; n < end; n++ {
			im2col(colBuf, inputData[n*g.inPlane:(n+1)*g.inPlane], g)
			out := mat.NewDense(g.COut, g.colCols, outputData[n*g.outPlane:(n+1)*g.outPlane])
			out.Mul(weights, cols)
		}
	})

	return output
}

// Conv2DBackward computes the input and kernel gradients of Conv2D.
//
// Given outputGrad ∂L/∂output [N, C_out, H_out, W_out]:
//
//	inputGrad  = col2im(kernelᵀ · outputGrad_n)   for every sample n
//	kernelGrad = Σ_n outputGrad_n · im2col(input_n)ᵀ
//
// Kernel gradients are accumulated per worker and summed once at the end.
func (cpu *CPUBackend) Conv2DBackward(input, kernel, outputGrad *tensor.Tensor, stride, padding int) (inputGrad, kernelGrad *tensor.Tensor) {
	g := newConvGeometry(input, kernel, stride, padding)
	if !outputGrad.Shape().Equal(tensor.Shape{g.N, g.COut, g.HOut, g.WOut}) {
		panic(fmt.Sprintf("conv2d backward: output grad shape %v does not match [%d, %d, %d, %d]",
			outputGrad.Shape(), g.N, g.COut, g.HOut, g.WOut))
	}

	inputGrad = tensor.Zeros(input.Shape())
	kernelGrad = tensor.Zeros(kernel.Shape())

	inputData := input.Data()
	gradData := outputGrad.Data()
	inputGradData := inputGrad.Data()
	weights := mat.NewDense(g.COut, g.colRows, kernel.Data())
	kernelGradMat := mat.NewDense(g.COut, g.colRows, kernelGrad.Data())

	var mu sync.Mutex
	cpu.forSamples(g.N, func(start, end int) {
		colBuf := make([]float64, g.colRows*g.colCols)
		cols := mat.NewDense(g.colRows, g.colCols, colBuf)
		dCols := mat.NewDense(g.colRows, g.colCols, nil)
		localGrad := mat.NewDense(g.COut, g.colRows, nil)
		var step mat.Dense

		for n := start; n < end; n++ {
			gOut := mat.NewDense(g.COut, g.colCols, gradData[n*g.outPlane:(n+1)*g.outPlane])

			im2col(colBuf, inputData[n*g.inPlane:(n+1)*g.inPlane], g)
			step.Mul(gOut, cols.T())
			localGrad.Add(localGrad, &step)

			dCols.Mul(weights.T(), gOut)
			col2im(inputGradData[n*g.inPlane:(n+1)*g.inPlane], dCols.RawMatrix().Data, g)
		}

		mu.Lock()
		kernelGradMat.Add(kernelGradMat, localGrad)
		mu.Unlock()
	})

	return inputGrad, kernelGrad
}

// im2col unrolls one sample [C, H, W] into colBuf laid out as
// [C*KH*KW, HOut*WOut]. Out-of-bounds (padding) positions are zero.
func im2col(colBuf, sample []float64, g convGeometry) {
	row := 0
	for c := 0; c < g.CIn; c++ {
		channel := sample[c*g.H*g.W : (c+1)*g.H*g.W]
		for kh := 0; kh < g.KH; kh++ {
			for kw := 0; kw < g.KW; kw++ {
				dst := colBuf[row*g.colCols : (row+1)*g.colCols]
				idx := 0
				for oh := 0; oh < g.HOut; oh++ {
					h := oh*g.stride - g.padding + kh
					for ow := 0; ow < g.WOut; ow++ {
						w := ow*g.stride - g.padding + kw
						if h >= 0 && h < g.H && w >= 0 && w < g.W {
							dst[idx] = channel[h*g.W+w]
						} else {
							dst[idx] = 0
						}
						idx++
					}
				}
				row++
			}
		}
	}
}

// col2im is the adjoint of im2col: it scatters-adds columns back into a
// [C, H, W] sample gradient.
func col2im(sampleGrad, colBuf []float64, g convGeometry) {
	row := 0
	for c := 0; c < g.CIn; c++ {
		channel := sampleGrad[c*g.H*g.W : (c+1)*g.H*g.W]
		for kh := 0; kh < g.KH; kh++ {
			for kw := 0; kw < g.KW; kw++ {
				src := colBuf[row*g.colCols : (row+1)*g.colCols]
				idx := 0
				for oh := 0; oh < g.HOut; oh++ {
					h := oh*g.stride - g.padding + kh
					for ow := 0; ow < g.WOut; ow++ {
						w := ow*g.stride - g.padding + kw
						if h >= 0 && h < g.H && w >= 0 && w < g.W {
							channel[h*g.W+w] += src[idx]
						}
						idx++
					}
				}
				row++
			}
		}
	}
}
