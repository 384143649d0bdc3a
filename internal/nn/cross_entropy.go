package nn

import (
	"fmt"

	"github.com/born-ml/cifarnet/internal/autodiff"
	"github.com/born-ml/cifarnet/internal/tensor"
)

// Loss maps class scores and integer labels to a one-element loss tensor.
type Loss interface {
	Forward(logits *tensor.Tensor, labels []int32) *tensor.Tensor
}

// CrossEntropyLoss computes cross-entropy loss for multi-class classification.
//
// Combines LogSoftmax and negative log-likelihood:
//
//	Loss = -log(softmax(logits)[target])
//
// averaged over the batch. Logits are unnormalized scores; the log-sum-exp
// trick keeps the computation stable.
//
// Example:
//
//	criterion := nn.NewCrossEntropyLoss(backend)
//	loss := criterion.Forward(logits, labels) // shape [1]
type CrossEntropyLoss struct {
	backend *autodiff.Backend
}

// NewCrossEntropyLoss creates a new cross-entropy loss function.
func NewCrossEntropyLoss(backend *autodiff.Backend) *CrossEntropyLoss {
	return &CrossEntropyLoss{backend: backend}
}

// Forward computes the mean loss over the batch and records it on the tape.
func (c *CrossEntropyLoss) Forward(logits *tensor.Tensor, labels []int32) *tensor.Tensor {
	return c.backend.CrossEntropy(logits, labels)
}

// Accuracy computes the fraction of rows whose highest score is the label.
//
// Ties resolve to the first maximal index. Returns a value in [0, 1];
// an empty batch yields 0.
//
// Parameters:
//   - logits: Scores with shape [batch_size, num_classes]
//   - labels: True class per row
func Accuracy(logits *tensor.Tensor, labels []int32) float64 {
	shape := logits.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("accuracy: logits must be 2D [batch, classes], got %v", shape))
	}
	batch, classes := shape[0], shape[1]
	if len(labels) != batch {
		panic(fmt.Sprintf("accuracy: %d labels for batch of %d", len(labels), batch))
	}
	if batch == 0 {
		return 0
	}

	data := logits.Data()
	correct := 0
	for i := range batch {
		if argmax(data[i*classes:(i+1)*classes]) == int(labels[i]) {
			correct++
		}
	}
	return float64(correct) / float64(batch)
}

// argmax returns the index of the first maximum.
func argmax(z []float64) int {
	best := 0
	for i := 1; i < len(z); i++ {
		if z[i] > z[best] {
			best = i
		}
	}
	return best
}
