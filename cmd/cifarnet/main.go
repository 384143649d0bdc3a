// Package main provides the cifarnet CLI: train a CIFAR-10 convolutional
// classifier, evaluate saved weights, print the version.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"

	"github.com/born-ml/cifarnet/internal/config"
	"github.com/born-ml/cifarnet/internal/pipeline"
	"github.com/born-ml/cifarnet/internal/serialization"
)

const version = "v0.1.0"

func usage(w io.Writer) {
	fmt.Fprintf(w, "cifarnet %s - CIFAR-10 CNN trainer\n\n", version)
	fmt.Fprintln(w, "Usage: cifarnet <command> [flags]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  train      Train a network and save its weights")
	fmt.Fprintln(w, "  eval       Report validation loss and accuracy of saved weights")
	fmt.Fprintln(w, "  version    Show version")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Run 'cifarnet <command> -h' for the flags of a command.")
}

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var err error
	switch os.Args[1] {
	case "train":
		err = runTrain(ctx, os.Args[2:])
	case "eval":
		err = runEval(ctx, os.Args[2:])
	case "version":
		fmt.Printf("cifarnet %s (weights format %s)\n", version, serialization.Version)
	case "help", "-h", "--help":
		usage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		usage(os.Stderr)
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("cifarnet %s: %v", os.Args[1], err)
	}
}

// flags binds the shared command-line options.
type flags struct {
	fs         *flag.FlagSet
	configPath string

	epochs     int
	batchSize  int
	lr         float64
	optimizer  string
	blocks     int
	filters    int
	activation string
	dataRoot   string
	maxSamples int
	synthetic  bool
	device     string
	workers    int
	weights    string
	plot       string
	history    string
	logLevel   string
}

func newFlags(name string) *flags {
	d := config.Default()
	f := &flags{fs: flag.NewFlagSet(name, flag.ExitOnError)}
	fs := f.fs
	fs.StringVar(&f.configPath, "config", "", "YAML config file (flags override it)")
	fs.IntVar(&f.epochs, "epochs", d.Train.Epochs, "Maximum number of epochs")
	fs.IntVar(&f.batchSize, "batch", d.Train.BatchSize, "Batch size")
	fs.Float64Var(&f.lr, "lr", d.Train.LearningRate, "Learning rate")
	fs.StringVar(&f.optimizer, "optimizer", d.Train.Optimizer, "Optimizer: sgd or adam")
	fs.IntVar(&f.blocks, "blocks", d.Model.Blocks, "Extra conv/act/pool blocks")
	fs.IntVar(&f.filters, "filters", d.Model.Filters, "Filters per convolution")
	fs.StringVar(&f.activation, "activation", d.Model.Activation, "Activation: relu, sigmoid, tanh or softmax")
	fs.StringVar(&f.dataRoot, "data", d.Data.Root, "Dataset root directory")
	fs.IntVar(&f.maxSamples, "samples", 0, "Max samples per split (0 = all)")
	fs.BoolVar(&f.synthetic, "synthetic", false, "Use synthetic data instead of CIFAR-10")
	fs.StringVar(&f.device, "device", d.Device, "Device: auto, cpu, cuda or webgpu")
	fs.IntVar(&f.workers, "workers", 0, "Kernel worker goroutines (0 = one per core)")
	fs.StringVar(&f.weights, "weights", d.Output.Weights, "Weights file")
	fs.StringVar(&f.plot, "plot", d.Output.Plot, "Loss/accuracy PNG (empty to skip)")
	fs.StringVar(&f.history, "history", "", "Per-epoch CSV (empty to skip)")
	fs.StringVar(&f.logLevel, "log-level", d.LogLevel, "Log level: debug, info, warn or error")
	return f
}

// load parses args and builds the effective config: defaults, then the
// config file, then every flag given explicitly.
func (f *flags) load(args []string) (config.Config, error) {
	if err := f.fs.Parse(args); err != nil {
		return config.Config{}, err
	}

	cfg := config.Default()
	if f.configPath != "" {
		var err error
		if cfg, err = config.Load(f.configPath); err != nil {
			return config.Config{}, err
		}
	}

	var o config.Overrides
	f.fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "epochs":
			o.Epochs = &f.epochs
		case "batch":
			o.BatchSize = &f.batchSize
		case "lr":
			o.LearningRate = &f.lr
		case "optimizer":
			o.Optimizer = &f.optimizer
		case "blocks":
			o.Blocks = &f.blocks
		case "filters":
			o.Filters = &f.filters
		case "activation":
			o.Activation = &f.activation
		case "data":
			o.DataRoot = &f.dataRoot
		case "samples":
			o.MaxSamples = &f.maxSamples
		case "synthetic":
			o.Synthetic = &f.synthetic
		case "device":
			o.Device = &f.device
		case "workers":
			o.Workers = &f.workers
		case "weights":
			o.Weights = &f.weights
		case "plot":
			o.Plot = &f.plot
		case "history":
			o.History = &f.history
		case "log-level":
			o.LogLevel = &f.logLevel
		}
	})
	config.ApplyOverrides(&cfg, o)
	return cfg, cfg.Validate()
}

func newLogger(cfg config.Config) *slog.Logger {
	level, _ := cfg.LogLevelValue()
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func runTrain(ctx context.Context, args []string) error {
	cfg, err := newFlags("train").load(args)
	if err != nil {
		return err
	}
	_, err = pipeline.Run(ctx, cfg, newLogger(cfg), os.Stdout)
	return err
}

func runEval(ctx context.Context, args []string) error {
	cfg, err := newFlags("eval").load(args)
	if err != nil {
		return err
	}
	_, _, err = pipeline.Evaluate(ctx, cfg, newLogger(cfg), os.Stdout)
	return err
}
