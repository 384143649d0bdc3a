package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/cifarnet/internal/tensor"
)

// MaxPool2D performs 2D max pooling.
//
// Input shape:  [batch, channels, height, width]
// Output shape: [batch, channels, out_height, out_width]
//
// Where:
//
//	out_height = (height - kernelSize) / stride + 1
//	out_width = (width - kernelSize) / stride + 1
//
// Besides the pooled output, the flat input index of every selected maximum
// is returned; MaxPool2DBackward routes gradients through those positions.
// Within a window the first maximum in row-major order wins.
//
// Example (2x2 pool, stride=2):
//
//	Input: [[1,2,3,4],    Output: [[6,8],
//	        [5,6,7,8],             [14,16]]
//	        [9,10,11,12],
//	        [13,14,15,16]]
func (cpu *CPUBackend) MaxPool2D(input *tensor.Tensor, kernelSize, stride int) (*tensor.Tensor, []int) {
	inputShape := input.Shape()
	if len(inputShape) != 4 {
		panic(fmt.Sprintf("maxpool2d: expected 4D input [N,C,H,W], got %dD", len(inputShape)))
	}
	N, C, H, W := inputShape[0], inputShape[1], inputShape[2], inputShape[3]

	if kernelSize <= 0 {
		panic(fmt.Sprintf("maxpool2d: invalid kernel size %d", kernelSize))
	}
	if stride <= 0 {
		panic(fmt.Sprintf("maxpool2d: invalid stride %d", stride))
	}
	if kernelSize > H || kernelSize > W {
		panic(fmt.Sprintf("maxpool2d: kernel size %d too large for input %dx%d", kernelSize, H, W))
	}

	HOut := (H-kernelSize)/stride + 1
	WOut := (W-kernelSize)/stride + 1

	output := tensor.Zeros(tensor.Shape{N, C, HOut, WOut})
	indices := make([]int, output.NumElements())
	inputData := input.Data()
	outputData := output.Data()

	cpu.forSamples(N, func(start, end int) {
		for n := start; n < end; n++ {
			for c := 0; c < C; c++ {
				inOffset := (n*C + c) * H * W
				outOffset := (n*C + c) * HOut * WOut
				for oh := 0; oh < HOut; oh++ {
					hStart := oh * stride
					for ow := 0; ow < WOut; ow++ {
						wStart := ow * stride
						maxVal := math.Inf(-1)
						maxIdx := inOffset + hStart*W + wStart
						for kh := 0; kh < kernelSize; kh++ {
							rowStart := inOffset + (hStart+kh)*W
							for kw := 0; kw < kernelSize; kw++ {
								idx := rowStart + wStart + kw
								if v := inputData[idx]; v > maxVal {
									maxVal = v
									maxIdx = idx
								}
							}
						}
						o := outOffset + oh*WOut + ow
						outputData[o] = maxVal
						indices[o] = maxIdx
					}
				}
			}
		}
	})

	return output, indices
}

// MaxPool2DBackward scatters outputGrad into an input-shaped gradient at the
// positions recorded by MaxPool2D. Overlapping windows accumulate.
func (cpu *CPUBackend) MaxPool2DBackward(inputShape tensor.Shape, indices []int, outputGrad *tensor.Tensor) *tensor.Tensor {
	if len(indices) != outputGrad.NumElements() {
		panic(fmt.Sprintf("maxpool2d backward: %d indices for %d gradient elements", len(indices), outputGrad.NumElements()))
	}
	inputGrad := tensor.Zeros(inputShape)
	gradData := inputGrad.Data()
	for i, g := range outputGrad.Data() {
		gradData[indices[i]] += g
	}
	return inputGrad
}
