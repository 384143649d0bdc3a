// Package model builds the CIFAR-10 convolutional classifier.
//
// Architecture, for N extra blocks and F filters:
//
//	conv(3->F) -> act -> maxpool(2)
//	N x [conv(F->F) -> act -> maxpool(2)]
//	flatten -> linear(F*h*w -> F) -> act -> linear(F -> classes)
//
// One activation instance and one pooling instance serve every site. With
// ShareBlockWeights the N extra blocks also reuse a single convolution.
package model

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/cifarnet/internal/autodiff"
	"github.com/born-ml/cifarnet/internal/nn"
	"github.com/born-ml/cifarnet/internal/serialization"
	"github.com/born-ml/cifarnet/internal/tensor"
)

const poolSize = 2

// ModelType is recorded in saved weight files.
const ModelType = "CIFARNet"

// Network is the assembled classifier.
type Network struct {
	cfg      Config
	seq      *nn.Sequential
	device   tensor.Device
	features int // Inputs to the first linear layer
}

// New validates cfg and assembles the network on backend.
//
// Configuration errors are reported before any parameter is allocated.
func New(cfg Config, backend *autodiff.Backend) (*Network, error) {
	spatial, err := cfg.Validate()
	if err != nil {
		return nil, err
	}
	kind, _ := nn.ParseActivation(cfg.Activation)
	act, err := nn.NewActivation(kind, backend)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	//nolint:gosec // weight initialization, not security-critical
	rng := rand.New(rand.NewSource(cfg.Seed))
	pool := nn.NewMaxPool2D(poolSize, poolSize, backend)
	conv := func(in int) *nn.Conv2D {
		return nn.NewConv2D(in, cfg.Filters, cfg.KernelSize, cfg.Stride, cfg.Padding, rng, backend)
	}

	seq := nn.NewSequential(conv(cfg.InChannels), act, pool)

	var shared *nn.Conv2D
	for range cfg.Blocks {
		block := shared
		if block == nil || !cfg.ShareBlockWeights {
			block = conv(cfg.Filters)
			shared = block
		}
		seq.Add(block)
		seq.Add(act)
		seq.Add(pool)
	}

	features := cfg.Filters * spatial * spatial
	seq.Add(nn.NewFlatten(backend))
	seq.Add(nn.NewLinear(features, cfg.Filters, rng, backend))
	seq.Add(act)
	seq.Add(nn.NewLinear(cfg.Filters, cfg.NumClasses, rng, backend))

	return &Network{
		cfg:      cfg,
		seq:      seq,
		device:   tensor.CPU,
		features: features,
	}, nil
}

// Forward maps images [B, C, H, W] to class scores [B, NumClasses].
func (n *Network) Forward(images *tensor.Tensor) *tensor.Tensor {
	return n.seq.Forward(images)
}

// Parameters returns every distinct trainable parameter.
func (n *Network) Parameters() []*nn.Parameter {
	return n.seq.Parameters()
}

// Train switches to training mode.
func (n *Network) Train() {
	n.seq.Train()
}

// Eval switches to evaluation mode.
func (n *Network) Eval() {
	n.seq.Eval()
}

// Training reports whether the network is in training mode.
func (n *Network) Training() bool {
	return n.seq.Training()
}

// To moves the parameters to device.
func (n *Network) To(device tensor.Device) error {
	for _, p := range n.Parameters() {
		if _, err := p.Tensor().To(device); err != nil {
			return fmt.Errorf("move %s to %s: %w", p.Name(), device, err)
		}
	}
	n.device = device
	return nil
}

// Device returns the device holding the parameters.
func (n *Network) Device() tensor.Device {
	return n.device
}

// Config returns the hyperparameters the network was built from.
func (n *Network) Config() Config {
	return n.cfg
}

// Layers returns the module pipeline in order, shared modules repeated.
func (n *Network) Layers() []nn.Module {
	layers := make([]nn.Module, n.seq.Len())
	for i := range layers {
		layers[i] = n.seq.Module(i)
	}
	return layers
}

// FlattenFeatures returns the input width of the first linear layer.
func (n *Network) FlattenFeatures() int {
	return n.features
}

// NumParameters counts trainable scalars, shared weights once.
func (n *Network) NumParameters() int {
	total := 0
	for _, p := range n.Parameters() {
		total += p.NumElements()
	}
	return total
}

// StateDict returns the live parameter tensors keyed by layer index.
func (n *Network) StateDict() map[string]*tensor.Tensor {
	return n.seq.StateDict()
}

// LoadStateDict copies weights into the network.
func (n *Network) LoadStateDict(stateDict map[string]*tensor.Tensor) error {
	return n.seq.LoadStateDict(stateDict)
}

// Save writes the weights to path in .born format.
func (n *Network) Save(path string) error {
	return serialization.WriteFile(path, n.StateDict(), ModelType, n.cfg.Metadata())
}

// Load reads weights saved by Save.
func (n *Network) Load(path string) error {
	stateDict, header, err := serialization.ReadFile(path)
	if err != nil {
		return err
	}
	if header.ModelType != ModelType {
		return fmt.Errorf("%s: model type %q, expected %q", path, header.ModelType, ModelType)
	}
	if err := n.LoadStateDict(stateDict); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// String prints the architecture.
func (n *Network) String() string {
	return n.seq.String()
}
