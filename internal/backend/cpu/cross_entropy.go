package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/cifarnet/internal/tensor"
)

// CrossEntropy computes the mean cross-entropy between raw logits
// [batch, classes] and integer class targets.
//
// LogSoftmax uses the log-sum-exp trick:
//
//	log p[i] = z[i] - (max(z) + log Σ exp(z - max(z)))
//
// The per-row softmax probabilities are returned alongside the loss so the
// backward pass does not recompute them.
func (cpu *CPUBackend) CrossEntropy(logits *tensor.Tensor, targets []int32) (loss float64, probs *tensor.Tensor) {
	shape := logits.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("cross_entropy: logits must be 2D [batch, classes], got %dD", len(shape)))
	}
	batch, classes := shape[0], shape[1]
	if len(targets) != batch {
		panic(fmt.Sprintf("cross_entropy: %d targets for batch of %d", len(targets), batch))
	}

	probs = tensor.Zeros(shape)
	z, p := logits.Data(), probs.Data()
	total := 0.0
	for b := 0; b < batch; b++ {
		row := z[b*classes : (b+1)*classes]
		prow := p[b*classes : (b+1)*classes]

		maxZ := math.Inf(-1)
		for _, v := range row {
			maxZ = math.Max(maxZ, v)
		}
		sum := 0.0
		for j, v := range row {
			e := math.Exp(v - maxZ)
			prow[j] = e
			sum += e
		}
		logSum := maxZ + math.Log(sum)
		for j := range prow {
			prow[j] /= sum
		}

		target := int(targets[b])
		if target < 0 || target >= classes {
			panic(fmt.Sprintf("cross_entropy: target %d out of range [0, %d)", target, classes))
		}
		total += logSum - row[target]
	}
	return total / float64(batch), probs
}

// CrossEntropyBackward returns ∂L/∂logits = (softmax - onehot) · scale / batch,
// where scale is the incoming gradient of the scalar loss.
func (cpu *CPUBackend) CrossEntropyBackward(probs *tensor.Tensor, targets []int32, scale float64) *tensor.Tensor {
	shape := probs.Shape()
	batch, classes := shape[0], shape[1]
	grad := probs.Clone()
	g := grad.Data()
	for b := 0; b < batch; b++ {
		g[b*classes+int(targets[b])] -= 1
	}
	factor := scale / float64(batch)
	for i := range g {
		g[i] *= factor
	}
	return grad
}
