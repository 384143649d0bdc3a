package nn

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/cifarnet/internal/autodiff"
	"github.com/born-ml/cifarnet/internal/tensor"
)

// Conv2D is a 2D convolutional layer with a square kernel and bias.
//
// Performs convolution: output = Conv2D(input, weight) + bias
//
// Input shape:  [batch, in_channels, height, width]
// Weight shape: [out_channels, in_channels, kernel, kernel]
// Bias shape:   [out_channels]
// Output shape: [batch, out_channels, out_h, out_w]
//
// Where:
//
//	out_h = (height + 2*padding - kernel) / stride + 1
//	out_w = (width + 2*padding - kernel) / stride + 1
//
// Example:
//
//	conv := nn.NewConv2D(3, 256, 3, 1, 1, rng, backend)
//	output := conv.Forward(images) // [32, 256, 32, 32]
type Conv2D struct {
	inChannels  int
	outChannels int
	kernelSize  int
	stride      int
	padding     int

	weight *Parameter // [out_channels, in_channels, kernel, kernel]
	bias   *Parameter // [out_channels]

	backend *autodiff.Backend
}

// NewConv2D creates a new 2D convolutional layer with Xavier initialization.
//
// Parameters:
//   - inChannels: Number of input channels
//   - outChannels: Number of output channels (number of filters)
//   - kernelSize: Kernel height and width
//   - stride: Stride for convolution (commonly 1 or 2)
//   - padding: Zero padding to apply to input (commonly 0, 1, 2)
//   - rng: Source for weight initialization
//   - backend: Backend for computation
//
// Initialization:
//   - Weights: Xavier/Glorot uniform initialization
//   - Bias: Zeros
func NewConv2D(inChannels, outChannels, kernelSize, stride, padding int, rng *rand.Rand, backend *autodiff.Backend) *Conv2D {
	if inChannels <= 0 || outChannels <= 0 {
		panic(fmt.Sprintf("conv2d: invalid channels in=%d, out=%d", inChannels, outChannels))
	}
	if kernelSize <= 0 {
		panic(fmt.Sprintf("conv2d: invalid kernel size %d", kernelSize))
	}
	if stride <= 0 {
		panic(fmt.Sprintf("conv2d: invalid stride %d", stride))
	}
	if padding < 0 {
		panic(fmt.Sprintf("conv2d: invalid padding %d", padding))
	}

	// fan_in = in_channels * k * k, fan_out = out_channels * k * k
	area := kernelSize * kernelSize
	weight := Xavier(inChannels*area, outChannels*area,
		tensor.Shape{outChannels, inChannels, kernelSize, kernelSize}, rng)

	return &Conv2D{
		inChannels:  inChannels,
		outChannels: outChannels,
		kernelSize:  kernelSize,
		stride:      stride,
		padding:     padding,
		weight:      NewParameter("weight", weight),
		bias:        NewParameter("bias", tensor.Zeros(tensor.Shape{outChannels})),
		backend:     backend,
	}
}

// Forward performs the forward pass.
//
// Input: [batch, in_channels, height, width]
// Output: [batch, out_channels, out_h, out_w].
func (c *Conv2D) Forward(input *tensor.Tensor) *tensor.Tensor {
	inputShape := input.Shape()
	if len(inputShape) != 4 {
		panic(fmt.Sprintf("conv2d: expected 4D input [N,C,H,W], got %dD", len(inputShape)))
	}
	if inputShape[1] != c.inChannels {
		panic(fmt.Sprintf("conv2d: input channels %d != expected %d", inputShape[1], c.inChannels))
	}

	output := c.backend.Conv2D(input, c.weight.Tensor(), c.stride, c.padding)
	return c.backend.AddChannelBias(output, c.bias.Tensor())
}

// Parameters returns all trainable parameters.
func (c *Conv2D) Parameters() []*Parameter {
	return []*Parameter{c.weight, c.bias}
}

// Weight returns the kernel parameter.
func (c *Conv2D) Weight() *Parameter {
	return c.weight
}

// Bias returns the bias parameter.
func (c *Conv2D) Bias() *Parameter {
	return c.bias
}

// String returns a string representation of the layer.
func (c *Conv2D) String() string {
	return fmt.Sprintf("Conv2D(in_channels=%d, out_channels=%d, kernel_size=(%d, %d), stride=%d, padding=%d)",
		c.inChannels, c.outChannels, c.kernelSize, c.kernelSize, c.stride, c.padding)
}

// InChannels returns the number of input channels.
func (c *Conv2D) InChannels() int {
	return c.inChannels
}

// OutChannels returns the number of output channels.
func (c *Conv2D) OutChannels() int {
	return c.outChannels
}

// ComputeOutputSize computes output spatial size for a square input.
func (c *Conv2D) ComputeOutputSize(inputSize int) int {
	return (inputSize+2*c.padding-c.kernelSize)/c.stride + 1
}
