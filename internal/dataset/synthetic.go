package dataset

import (
	"math/rand"
)

// Synthetic generates a learnable stand-in for CIFAR-10: every class has a
// fixed random prototype image and samples add Gaussian noise to it.
// Values are clipped to [-1, 1], matching normalized pixels.
func Synthetic(samples, channels, size, classes int, noise float64, seed int64) (*Dataset, error) {
	//nolint:gosec // test data
	rng := rand.New(rand.NewSource(seed))
	sampleSize := channels * size * size

	prototypes := make([][]float64, classes)
	for c := range prototypes {
		prototypes[c] = make([]float64, sampleSize)
		for i := range prototypes[c] {
			prototypes[c][i] = rng.Float64()*2 - 1
		}
	}

	images := make([]float64, 0, samples*sampleSize)
	labels := make([]int32, samples)
	for s := range samples {
		class := s % classes
		labels[s] = int32(class)
		for _, v := range prototypes[class] {
			images = append(images, clip(v+rng.NormFloat64()*noise))
		}
	}
	return NewDataset(images, labels, channels, size, size, classes)
}

func clip(v float64) float64 {
	return max(-1, min(1, v))
}
