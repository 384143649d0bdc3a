// Package pipeline wires a configuration into a complete run: build the
// network, load the data, train, then write the curves and the weights.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/born-ml/cifarnet/internal/autodiff"
	"github.com/born-ml/cifarnet/internal/backend/cpu"
	"github.com/born-ml/cifarnet/internal/config"
	"github.com/born-ml/cifarnet/internal/dataset"
	"github.com/born-ml/cifarnet/internal/device"
	"github.com/born-ml/cifarnet/internal/model"
	"github.com/born-ml/cifarnet/internal/nn"
	"github.com/born-ml/cifarnet/internal/optim"
	"github.com/born-ml/cifarnet/internal/parallel"
	"github.com/born-ml/cifarnet/internal/report"
	"github.com/born-ml/cifarnet/internal/tensor"
	"github.com/born-ml/cifarnet/internal/trainer"
)

// syntheticNoise is the pixel noise of the synthetic stand-in set.
const syntheticNoise = 0.4

// Result is what a training run produced.
type Result struct {
	Network *model.Network
	History *trainer.History
	Device  tensor.Device
}

// env is the runtime shared by Run and Evaluate.
type env struct {
	backend *autodiff.Backend
	device  tensor.Device
	network *model.Network
}

func setup(cfg config.Config, logger *slog.Logger) (*env, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	host := device.Probe()
	workers := cfg.Workers
	if workers == 0 {
		workers = host.Workers()
	}
	logger.Info("host", "cpu", host.String(), "workers", workers)

	dev, err := device.Select(cfg.Device)
	if err != nil {
		return nil, err
	}

	backend := autodiff.New(cpu.NewWithConfig(parallel.WithWorkers(workers)))
	network, err := model.New(cfg.ModelConfig(), backend)
	if err != nil {
		return nil, err
	}
	logger.Info("model built",
		"parameters", network.NumParameters(),
		"flatten_features", network.FlattenFeatures(),
		"backend", backend.Name(),
	)
	return &env{backend: backend, device: dev, network: network}, nil
}

// Run trains a network as described by cfg. The architecture and the
// per-epoch progress are printed to out.
//
// On a training error the partial history is returned with the error and
// no artifacts are written.
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger, out io.Writer) (*Result, error) {
	e, err := setup(cfg, logger)
	if err != nil {
		return nil, err
	}
	fmt.Fprintln(out, e.network)

	trainSet, valSet, err := loadData(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	trainLoader, err := dataset.NewLoader(trainSet, dataset.LoaderOptions{
		BatchSize: cfg.Train.BatchSize,
		Shuffle:   true,
		Seed:      cfg.Train.Seed,
	})
	if err != nil {
		return nil, err
	}
	valLoader, err := dataset.NewLoader(valSet, dataset.LoaderOptions{BatchSize: cfg.Train.BatchSize})
	if err != nil {
		return nil, err
	}

	optimizer, err := optim.New(e.network.Parameters(), cfg.OptimizerConfig())
	if err != nil {
		return nil, err
	}
	norm, err := trainer.ParseNormalization(cfg.Train.Normalization)
	if err != nil {
		return nil, err
	}

	t := trainer.New(e.backend, trainer.Options{
		Epochs:        cfg.Train.Epochs,
		OverfitGap:    cfg.Train.OverfitGap,
		Normalization: norm,
		Out:           out,
		Logger:        logger,
	})
	logger.Info("training",
		"train_samples", trainSet.Len(),
		"val_samples", valSet.Len(),
		"epochs", cfg.Train.Epochs,
		"optimizer", cfg.Train.Optimizer,
		"lr", optimizer.GetLR(),
	)

	result := &Result{Network: e.network, Device: e.device}
	result.History, err = t.Fit(ctx, e.network, optimizer, nn.NewCrossEntropyLoss(e.backend), trainLoader, valLoader, e.device)
	if err != nil {
		return result, err
	}
	if result.History.StoppedEarly {
		logger.Warn("stopped early", "epochs", result.History.Epochs())
	}

	if err := writeArtifacts(cfg.Output, result, logger); err != nil {
		return result, err
	}
	return result, nil
}

func writeArtifacts(o config.OutputConfig, r *Result, logger *slog.Logger) error {
	if o.Plot != "" {
		if err := report.SavePlot(o.Plot, r.History); err != nil {
			return err
		}
		logger.Info("curves written", "path", o.Plot)
	}
	if o.History != "" {
		if err := report.SaveCSV(o.History, r.History); err != nil {
			return err
		}
		logger.Info("history written", "path", o.History)
	}
	if o.Weights != "" {
		if err := r.Network.Save(o.Weights); err != nil {
			return fmt.Errorf("save weights: %w", err)
		}
		logger.Info("weights written", "path", o.Weights)
	}
	return nil
}

// Evaluate loads the weights named by cfg.Output.Weights into a fresh
// network and reports loss and accuracy over the validation split.
func Evaluate(ctx context.Context, cfg config.Config, logger *slog.Logger, out io.Writer) (float64, float64, error) {
	e, err := setup(cfg, logger)
	if err != nil {
		return 0, 0, err
	}
	if err := e.network.Load(cfg.Output.Weights); err != nil {
		return 0, 0, err
	}
	if err := e.network.To(e.device); err != nil {
		return 0, 0, err
	}

	_, valSet, err := loadData(ctx, cfg, logger)
	if err != nil {
		return 0, 0, err
	}
	valLoader, err := dataset.NewLoader(valSet, dataset.LoaderOptions{BatchSize: cfg.Train.BatchSize})
	if err != nil {
		return 0, 0, err
	}
	norm, err := trainer.ParseNormalization(cfg.Train.Normalization)
	if err != nil {
		return 0, 0, err
	}

	t := trainer.New(e.backend, trainer.Options{Normalization: norm, Out: out, Logger: logger})
	loss, acc, err := t.Evaluate(ctx, e.network, nn.NewCrossEntropyLoss(e.backend), valLoader, e.device)
	if err != nil {
		return 0, 0, err
	}
	fmt.Fprintf(out, "Validation loss:%.4f Validation accuracy:%.4f\n", loss, acc)
	return loss, acc, nil
}

// loadData returns the training and validation sets.
func loadData(ctx context.Context, cfg config.Config, logger *slog.Logger) (*dataset.Dataset, *dataset.Dataset, error) {
	d := cfg.Data
	if d.Synthetic {
		m := cfg.ModelConfig()
		valSamples := max(d.SyntheticSamples/4, 1)
		data, err := dataset.Synthetic(d.SyntheticSamples+valSamples, m.InChannels, m.ImageSize, m.NumClasses, syntheticNoise, cfg.Train.Seed)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using synthetic data", "samples", data.Len())
		train, val := data.Split(d.SyntheticSamples)
		return train, val, nil
	}

	dir, err := dataset.EnsureCIFAR10(ctx, d.Root, d.URL, d.Download, logger)
	if err != nil {
		return nil, nil, err
	}
	train, err := dataset.LoadCIFAR10(dir, true, d.MaxTrainSamples)
	if err != nil {
		return nil, nil, err
	}
	val, err := dataset.LoadCIFAR10(dir, false, d.MaxValSamples)
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("class balance", "train", train.ClassCounts(), "val", val.ClassCounts())
	return train, val, nil
}
