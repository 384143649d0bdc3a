// Package trainer runs the epoch loop: a training pass and a validation
// pass per epoch, per-epoch loss and accuracy curves, and an early stop
// once training accuracy pulls away from validation accuracy.
package trainer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/born-ml/cifarnet/internal/autodiff"
	"github.com/born-ml/cifarnet/internal/dataset"
	"github.com/born-ml/cifarnet/internal/nn"
	"github.com/born-ml/cifarnet/internal/optim"
	"github.com/born-ml/cifarnet/internal/tensor"
)

// ErrEmptySource is returned when a data source yields no batches.
var ErrEmptySource = errors.New("trainer: data source yielded no batches")

// Defaults applied by New for zero Options fields.
const (
	DefaultEpochs     = 100
	DefaultOverfitGap = 0.15
)

// Normalization selects how per-batch totals become epoch averages.
type Normalization int

const (
	// PerBatch divides loss and accuracy totals by the number of batches.
	// Loss totals are accumulated as loss*batchSize, so the reported loss
	// is scaled by the batch size.
	PerBatch Normalization = iota
	// PerSample reports the mean loss per sample and weights accuracy by
	// batch size.
	PerSample
)

// String returns the mode name.
func (n Normalization) String() string {
	if n == PerSample {
		return "per-sample"
	}
	return "per-batch"
}

// ParseNormalization resolves "per-batch" or "per-sample".
func ParseNormalization(s string) (Normalization, error) {
	switch s {
	case "", "per-batch", "batch":
		return PerBatch, nil
	case "per-sample", "sample":
		return PerSample, nil
	default:
		return PerBatch, fmt.Errorf("trainer: unknown normalization %q", s)
	}
}

// Model is the network being trained.
type Model interface {
	Forward(images *tensor.Tensor) *tensor.Tensor
	Train()
	Eval()
	To(device tensor.Device) error
}

// Options configures a Trainer.
type Options struct {
	Epochs        int           // Epoch budget (default 100)
	OverfitGap    float64       // Stop once trainAcc - valAcc exceeds this (default 0.15)
	Normalization Normalization // Epoch averaging mode
	Out           io.Writer     // Progress lines (default stdout)
	Logger        *slog.Logger  // Diagnostics (default slog.Default)
}

// History holds one entry per completed epoch in each curve.
type History struct {
	TrainLoss    []float64
	ValLoss      []float64
	TrainAcc     []float64
	ValAcc       []float64
	StoppedEarly bool
}

// Epochs returns the number of completed epochs.
func (h *History) Epochs() int {
	return len(h.TrainLoss)
}

func (h *History) record(trainLoss, valLoss, trainAcc, valAcc float64) {
	h.TrainLoss = append(h.TrainLoss, trainLoss)
	h.ValLoss = append(h.ValLoss, valLoss)
	h.TrainAcc = append(h.TrainAcc, trainAcc)
	h.ValAcc = append(h.ValAcc, valAcc)
}

// Trainer runs training on an autodiff backend.
type Trainer struct {
	backend *autodiff.Backend
	opts    Options
}

// New creates a Trainer, filling zero Options fields with defaults.
func New(backend *autodiff.Backend, opts Options) *Trainer {
	if opts.Epochs <= 0 {
		opts.Epochs = DefaultEpochs
	}
	if opts.OverfitGap == 0 {
		opts.OverfitGap = DefaultOverfitGap
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Trainer{backend: backend, opts: opts}
}

// Options returns the effective options.
func (t *Trainer) Options() Options {
	return t.opts
}

// Fit trains model for up to Epochs epochs and returns the curves.
//
// Each epoch runs a training pass (zero gradients, forward, loss, backward,
// step per batch) and a validation pass without gradient tracking, then
// appends the averaged loss and accuracy of both passes to the history and
// prints a progress line. When training accuracy exceeds validation
// accuracy by more than OverfitGap the epoch is still recorded and the loop
// stops.
//
// Errors from sources, device placement and ctx cancellation are returned
// together with the history recorded so far.
func (t *Trainer) Fit(
	ctx context.Context,
	model Model,
	optimizer optim.Optimizer,
	loss nn.Loss,
	train, val dataset.Source,
	device tensor.Device,
) (*History, error) {
	history := &History{}
	if err := model.To(device); err != nil {
		return history, fmt.Errorf("trainer: %w", err)
	}
	fmt.Fprintln(t.opts.Out, device)

	for epoch := range t.opts.Epochs {
		trainLoss, trainAcc, err := t.trainEpoch(ctx, model, optimizer, loss, train, device)
		if err != nil {
			return history, fmt.Errorf("epoch %d training: %w", epoch, err)
		}
		valLoss, valAcc, err := t.Evaluate(ctx, model, loss, val, device)
		if err != nil {
			return history, fmt.Errorf("epoch %d validation: %w", epoch, err)
		}

		history.record(trainLoss, valLoss, trainAcc, valAcc)
		t.opts.Logger.Debug("epoch complete",
			"epoch", epoch,
			"train_loss", trainLoss,
			"val_loss", valLoss,
			"train_acc", trainAcc,
			"val_acc", valAcc,
		)
		fmt.Fprintf(t.opts.Out, "Epoch:%d Train accuracy:%.4f Validation accuracy:%.4f\n", epoch, trainAcc, valAcc)

		if trainAcc-valAcc > t.opts.OverfitGap {
			fmt.Fprintf(t.opts.Out, "\nWith further iterations, overfitting is possible \nBreak loop, epoch: %d\n", epoch)
			history.StoppedEarly = true
			break
		}
	}
	return history, nil
}

// trainEpoch runs one training pass.
func (t *Trainer) trainEpoch(
	ctx context.Context,
	model Model,
	optimizer optim.Optimizer,
	loss nn.Loss,
	src dataset.Source,
	device tensor.Device,
) (float64, float64, error) {
	model.Train()
	tape := t.backend.Tape()
	tape.Clear()
	tape.StartRecording()
	defer func() {
		tape.StopRecording()
		tape.Clear()
	}()

	var acc accumulator
	for batch, err := range src.Batches() {
		if err != nil {
			return 0, 0, err
		}
		if err := ctx.Err(); err != nil {
			return 0, 0, err
		}
		images, err := batch.Images.To(device)
		if err != nil {
			return 0, 0, err
		}

		optimizer.ZeroGrad()
		logits := model.Forward(images)
		lossValue := loss.Forward(logits, batch.Labels)
		optimizer.Step(t.backend.Backward(lossValue))
		tape.Clear()

		acc.add(lossValue.Item(), nn.Accuracy(logits, batch.Labels), batch.Size())
	}
	return acc.result(t.opts.Normalization)
}

// Evaluate runs one pass over src in evaluation mode without recording
// gradients and returns the averaged loss and accuracy.
func (t *Trainer) Evaluate(
	ctx context.Context,
	model Model,
	loss nn.Loss,
	src dataset.Source,
	device tensor.Device,
) (float64, float64, error) {
	model.Eval()
	tape := t.backend.Tape()
	wasRecording := tape.IsRecording()
	tape.StopRecording()
	defer func() {
		if wasRecording {
			tape.StartRecording()
		}
	}()

	var acc accumulator
	for batch, err := range src.Batches() {
		if err != nil {
			return 0, 0, err
		}
		if err := ctx.Err(); err != nil {
			return 0, 0, err
		}
		images, err := batch.Images.To(device)
		if err != nil {
			return 0, 0, err
		}

		logits := model.Forward(images)
		lossValue := loss.Forward(logits, batch.Labels)
		acc.add(lossValue.Item(), nn.Accuracy(logits, batch.Labels), batch.Size())
	}
	return acc.result(t.opts.Normalization)
}

// accumulator sums per-batch metrics over one pass.
type accumulator struct {
	loss        float64 // sum of loss * batchSize
	acc         float64 // sum of batch accuracies
	weightedAcc float64 // sum of accuracy * batchSize
	batches     int
	samples     int
}

func (a *accumulator) add(loss, accuracy float64, size int) {
	a.loss += loss * float64(size)
	a.acc += accuracy
	a.weightedAcc += accuracy * float64(size)
	a.batches++
	a.samples += size
}

func (a *accumulator) result(mode Normalization) (float64, float64, error) {
	if a.batches == 0 {
		return 0, 0, ErrEmptySource
	}
	if mode == PerSample {
		return a.loss / float64(a.samples), a.weightedAcc / float64(a.samples), nil
	}
	return a.loss / float64(a.batches), a.acc / float64(a.batches), nil
}
