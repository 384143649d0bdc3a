package model

import (
	"errors"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/born-ml/cifarnet/internal/autodiff"
	"github.com/born-ml/cifarnet/internal/backend/cpu"
	"github.com/born-ml/cifarnet/internal/nn"
	"github.com/born-ml/cifarnet/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallConfig(blocks int) Config {
	cfg := DefaultConfig()
	cfg.Blocks = blocks
	cfg.Filters = 4
	return cfg
}

func randomImages(batch int, cfg Config, seed int64) *tensor.Tensor {
	//nolint:gosec // test data
	rng := rand.New(rand.NewSource(seed))
	return tensor.Uniform(tensor.Shape{batch, cfg.InChannels, cfg.ImageSize, cfg.ImageSize}, -1, 1, rng)
}

func TestNew_OutputShapeForAnyBlockCount(t *testing.T) {
	for blocks := range 5 {
		cfg := smallConfig(blocks)
		net, err := New(cfg, autodiff.New(cpu.New()))
		require.NoError(t, err, "blocks=%d", blocks)

		out := net.Forward(randomImages(2, cfg, int64(blocks)))
		assert.Equal(t, tensor.Shape{2, 10}, out.Shape(), "blocks=%d", blocks)
	}
}

func TestNew_DefaultFlattenIsFourFilters(t *testing.T) {
	cfg := DefaultConfig()
	spatial, err := cfg.Validate()
	require.NoError(t, err)
	assert.Equal(t, 2, spatial)

	net, err := New(smallConfig(3), autodiff.New(cpu.New()))
	require.NoError(t, err)
	assert.Equal(t, 4*4, net.FlattenFeatures())
}

func TestNew_ZeroBlocksLayerList(t *testing.T) {
	net, err := New(smallConfig(0), autodiff.New(cpu.New()))
	require.NoError(t, err)

	layers := net.Layers()
	require.Len(t, layers, 7)
	assert.IsType(t, &nn.Conv2D{}, layers[0])
	assert.IsType(t, &nn.ReLU{}, layers[1])
	assert.IsType(t, &nn.MaxPool2D{}, layers[2])
	assert.IsType(t, &nn.Flatten{}, layers[3])
	assert.IsType(t, &nn.Linear{}, layers[4])
	assert.IsType(t, &nn.ReLU{}, layers[5])
	assert.IsType(t, &nn.Linear{}, layers[6])

	// 16x16 after one pool: 4*16*16 inputs to the first linear layer.
	assert.Equal(t, 4*16*16, net.FlattenFeatures())
}

func TestNew_ActivationInstanceReused(t *testing.T) {
	cfg := smallConfig(2)
	cfg.Activation = "tanh"
	net, err := New(cfg, autodiff.New(cpu.New()))
	require.NoError(t, err)

	var acts []nn.Module
	for _, l := range net.Layers() {
		if _, ok := l.(*nn.Tanh); ok {
			acts = append(acts, l)
		}
	}
	require.Len(t, acts, 4)
	for _, a := range acts[1:] {
		assert.Same(t, acts[0], a)
	}
}

func TestNew_SharedBlockWeights(t *testing.T) {
	net, err := New(smallConfig(3), autodiff.New(cpu.New()))
	require.NoError(t, err)

	layers := net.Layers()
	assert.Same(t, layers[3], layers[6])
	assert.Same(t, layers[3], layers[9])
	assert.NotSame(t, layers[0], layers[3])
	// input conv + one shared conv + two linears, weight and bias each
	assert.Len(t, net.Parameters(), 8)
}

func TestNew_IndependentBlockWeights(t *testing.T) {
	cfg := smallConfig(3)
	cfg.ShareBlockWeights = false
	net, err := New(cfg, autodiff.New(cpu.New()))
	require.NoError(t, err)

	layers := net.Layers()
	assert.NotSame(t, layers[3], layers[6])
	assert.Len(t, net.Parameters(), 12)

	shared, err := New(smallConfig(3), autodiff.New(cpu.New()))
	require.NoError(t, err)
	convParams := 4*4*3*3 + 4
	assert.Equal(t, shared.NumParameters()+2*convParams, net.NumParameters())
}

func TestNew_UnknownActivation(t *testing.T) {
	cfg := smallConfig(1)
	cfg.Activation = "gelu"
	net, err := New(cfg, autodiff.New(cpu.New()))
	assert.Nil(t, net)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
	assert.True(t, errors.Is(err, nn.ErrUnknownActivation))
}

func TestValidate_RejectsBadHyperparameters(t *testing.T) {
	mutate := map[string]func(*Config){
		"zero filters":     func(c *Config) { c.Filters = 0 },
		"zero kernel":      func(c *Config) { c.KernelSize = 0 },
		"zero stride":      func(c *Config) { c.Stride = 0 },
		"negative padding": func(c *Config) { c.Padding = -1 },
		"negative blocks":  func(c *Config) { c.Blocks = -1 },
		"collapses":        func(c *Config) { c.Blocks = 5 },
	}
	for name, m := range mutate {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			m(&cfg)
			_, err := cfg.Validate()
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestSaveLoad_IdenticalOutputs(t *testing.T) {
	cfg := smallConfig(2)
	src, err := New(cfg, autodiff.New(cpu.New()))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "net.born")
	require.NoError(t, src.Save(path))

	cfg.Seed = 99
	dst, err := New(cfg, autodiff.New(cpu.New()))
	require.NoError(t, err)

	images := randomImages(3, cfg, 5)
	assert.NotEqual(t, src.Forward(images).Data(), dst.Forward(images).Data())

	require.NoError(t, dst.Load(path))
	assert.Equal(t, src.Forward(images).Data(), dst.Forward(images).Data())
}

func TestLoad_RejectsOtherArchitecture(t *testing.T) {
	src, err := New(smallConfig(1), autodiff.New(cpu.New()))
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "net.born")
	require.NoError(t, src.Save(path))

	cfg := smallConfig(2)
	cfg.ShareBlockWeights = false
	other, err := New(cfg, autodiff.New(cpu.New()))
	require.NoError(t, err)
	assert.Error(t, other.Load(path))
}

func TestNetwork_ModeAndDevice(t *testing.T) {
	net, err := New(smallConfig(0), autodiff.New(cpu.New()))
	require.NoError(t, err)

	assert.True(t, net.Training())
	net.Eval()
	assert.False(t, net.Training())
	net.Train()
	assert.True(t, net.Training())

	require.NoError(t, net.To(tensor.CPU))
	assert.Error(t, net.To(tensor.CUDA))
	assert.Contains(t, net.String(), "Conv2D(in_channels=3, out_channels=4")
}
