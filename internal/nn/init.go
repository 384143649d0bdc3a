package nn

import (
	"math"
	"math/rand"

	"github.com/born-ml/cifarnet/internal/tensor"
)

// Xavier (Glorot) initialization for weights.
//
// Initializes weights with values drawn from a uniform distribution:
// U(-sqrt(6/(fan_in + fan_out)), sqrt(6/(fan_in + fan_out)))
//
// Parameters:
//   - fanIn: Number of input units
//   - fanOut: Number of output units
//   - shape: Shape of the weight tensor
//   - rng: Seeded source, so two networks built with the same seed match
func Xavier(fanIn, fanOut int, shape tensor.Shape, rng *rand.Rand) *tensor.Tensor {
	bound := math.Sqrt(6.0 / float64(fanIn+fanOut))
	return tensor.Uniform(shape, -bound, bound, rng)
}
