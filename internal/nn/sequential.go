package nn

import (
	"fmt"
	"strings"

	"github.com/born-ml/cifarnet/internal/tensor"
)

// Sequential is a container module that chains multiple modules together.
//
// Each module's output becomes the next module's input. The same module
// instance may appear more than once; its parameters are then reported
// once by Parameters and StateDict, under the index of the first occurrence.
//
// Example:
//
//	model := nn.NewSequential(
//	    nn.NewLinear(784, 128, rng, backend),
//	    nn.NewReLU(backend),
//	    nn.NewLinear(128, 10, rng, backend),
//	)
//
//	output := model.Forward(input)
type Sequential struct {
	modules  []Module
	training bool
}

// NewSequential creates a new Sequential container in training mode.
func NewSequential(modules ...Module) *Sequential {
	return &Sequential{
		modules:  modules,
		training: true,
	}
}

// Forward applies all modules in sequence.
func (s *Sequential) Forward(input *tensor.Tensor) *tensor.Tensor {
	output := input
	for _, module := range s.modules {
		output = module.Forward(output)
	}
	return output
}

// namedParameter pairs a parameter with its state dict key.
type namedParameter struct {
	key   string
	param *Parameter
}

// namedParameters returns every distinct parameter keyed "<index>.<name>".
func (s *Sequential) namedParameters() []namedParameter {
	seen := make(map[*Parameter]struct{})
	var named []namedParameter
	for i, module := range s.modules {
		for _, p := range module.Parameters() {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			named = append(named, namedParameter{key: fmt.Sprintf("%d.%s", i, p.Name()), param: p})
		}
	}
	return named
}

// Parameters returns all distinct trainable parameters from all modules.
func (s *Sequential) Parameters() []*Parameter {
	named := s.namedParameters()
	params := make([]*Parameter, len(named))
	for i, np := range named {
		params[i] = np.param
	}
	return params
}

// Add appends a module to the sequence.
func (s *Sequential) Add(module Module) {
	s.modules = append(s.modules, module)
}

// Len returns the number of modules in the sequence.
func (s *Sequential) Len() int {
	return len(s.modules)
}

// Module returns the module at the given index.
//
// Panics if index is out of bounds.
func (s *Sequential) Module(index int) Module {
	if index < 0 || index >= len(s.modules) {
		panic("Sequential.Module: index out of bounds")
	}
	return s.modules[index]
}

// Train switches the container to training mode.
func (s *Sequential) Train() {
	s.training = true
}

// Eval switches the container to evaluation mode.
func (s *Sequential) Eval() {
	s.training = false
}

// Training reports whether the container is in training mode.
func (s *Sequential) Training() bool {
	return s.training
}

// StateDict returns a map of parameter names to tensors.
//
// Parameters are prefixed with their module index (e.g., "0.weight",
// "0.bias", "7.weight"). The tensors are the live parameter tensors.
func (s *Sequential) StateDict() map[string]*tensor.Tensor {
	stateDict := make(map[string]*tensor.Tensor)
	for _, np := range s.namedParameters() {
		stateDict[np.key] = np.param.Tensor()
	}
	return stateDict
}

// LoadStateDict copies tensors into the parameters with matching keys.
//
// Every parameter must be present with the same shape; extra keys are
// rejected so a dict from a different architecture cannot load silently.
func (s *Sequential) LoadStateDict(stateDict map[string]*tensor.Tensor) error {
	named := s.namedParameters()
	if len(stateDict) != len(named) {
		return fmt.Errorf("state dict has %d tensors, model expects %d", len(stateDict), len(named))
	}
	for _, np := range named {
		src, ok := stateDict[np.key]
		if !ok {
			return fmt.Errorf("missing parameter %q", np.key)
		}
		if err := np.param.Tensor().CopyFrom(src); err != nil {
			return fmt.Errorf("failed to load parameter %q: %w", np.key, err)
		}
	}
	return nil
}

// String prints the module tree.
func (s *Sequential) String() string {
	var b strings.Builder
	b.WriteString("Sequential(\n")
	for i, module := range s.modules {
		fmt.Fprintf(&b, "  (%d): %v\n", i, module)
	}
	b.WriteString(")")
	return b.String()
}
