package model

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/born-ml/cifarnet/internal/nn"
)

// ErrInvalidConfig is returned for hyperparameters no network can be built from.
var ErrInvalidConfig = errors.New("invalid model configuration")

// Config holds the network hyperparameters.
type Config struct {
	Blocks            int    // Extra conv/act/pool blocks after the input block (N >= 0)
	Filters           int    // Channels produced by every convolution (F)
	KernelSize        int    // Square kernel size (K)
	Stride            int    // Convolution stride (S)
	Padding           int    // Zero padding (P)
	Activation        string // relu, sigmoid, tanh or softmax
	ShareBlockWeights bool   // Reuse one convolution for every extra block
	InChannels        int    // Input image channels
	ImageSize         int    // Input height and width
	NumClasses        int    // Output scores
	Seed              int64  // Weight initialization seed
}

// DefaultConfig returns the CIFAR-10 defaults: 256 filters, 3x3 kernels
// with stride 1 and padding 1, three shared extra blocks and ReLU.
func DefaultConfig() Config {
	return Config{
		Blocks:            3,
		Filters:           256,
		KernelSize:        3,
		Stride:            1,
		Padding:           1,
		Activation:        string(nn.ActivationReLU),
		ShareBlockWeights: true,
		InChannels:        3,
		ImageSize:         32,
		NumClasses:        10,
		Seed:              1,
	}
}

// Validate checks the hyperparameters and returns the spatial size of the
// feature map entering the flatten layer.
func (c Config) Validate() (int, error) {
	if _, err := nn.ParseActivation(c.Activation); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	switch {
	case c.Filters <= 0:
		return 0, fmt.Errorf("%w: filters must be positive, got %d", ErrInvalidConfig, c.Filters)
	case c.KernelSize <= 0:
		return 0, fmt.Errorf("%w: kernel size must be positive, got %d", ErrInvalidConfig, c.KernelSize)
	case c.Stride <= 0:
		return 0, fmt.Errorf("%w: stride must be positive, got %d", ErrInvalidConfig, c.Stride)
	case c.Padding < 0:
		return 0, fmt.Errorf("%w: padding must not be negative, got %d", ErrInvalidConfig, c.Padding)
	case c.Blocks < 0:
		return 0, fmt.Errorf("%w: blocks must not be negative, got %d", ErrInvalidConfig, c.Blocks)
	case c.InChannels <= 0 || c.ImageSize <= 0 || c.NumClasses <= 0:
		return 0, fmt.Errorf("%w: channels, image size and classes must be positive", ErrInvalidConfig)
	}

	size := c.ImageSize
	for stage := 0; stage <= c.Blocks; stage++ {
		size = (size+2*c.Padding-c.KernelSize)/c.Stride + 1
		if size < poolSize {
			return 0, fmt.Errorf("%w: feature map collapses at block %d", ErrInvalidConfig, stage)
		}
		size = (size-poolSize)/poolSize + 1
	}
	return size, nil
}

// Metadata renders the configuration as string pairs for the saved header.
func (c Config) Metadata() map[string]string {
	return map[string]string{
		"blocks":              strconv.Itoa(c.Blocks),
		"filters":             strconv.Itoa(c.Filters),
		"kernel_size":         strconv.Itoa(c.KernelSize),
		"stride":              strconv.Itoa(c.Stride),
		"padding":             strconv.Itoa(c.Padding),
		"activation":          c.Activation,
		"share_block_weights": strconv.FormatBool(c.ShareBlockWeights),
		"in_channels":         strconv.Itoa(c.InChannels),
		"image_size":          strconv.Itoa(c.ImageSize),
		"num_classes":         strconv.Itoa(c.NumClasses),
	}
}
