// Package config loads the run configuration from YAML and command-line
// overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/born-ml/cifarnet/internal/dataset"
	"github.com/born-ml/cifarnet/internal/model"
	"github.com/born-ml/cifarnet/internal/optim"
	"github.com/born-ml/cifarnet/internal/trainer"
)

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("invalid config")

// Config is the full run configuration.
type Config struct {
	Model    ModelConfig  `yaml:"model"`
	Train    TrainConfig  `yaml:"train"`
	Data     DataConfig   `yaml:"data"`
	Output   OutputConfig `yaml:"output"`
	Device   string       `yaml:"device"`  // auto, cpu, cuda or webgpu
	Workers  int          `yaml:"workers"` // 0 means one per physical core
	LogLevel string       `yaml:"log_level"`
}

// ModelConfig holds the network hyperparameters.
type ModelConfig struct {
	Blocks            int    `yaml:"blocks"`
	Filters           int    `yaml:"filters"`
	KernelSize        int    `yaml:"kernel_size"`
	Stride            int    `yaml:"stride"`
	Padding           int    `yaml:"padding"`
	Activation        string `yaml:"activation"`
	ShareBlockWeights bool   `yaml:"share_block_weights"`
}

// TrainConfig holds the optimization settings.
type TrainConfig struct {
	Epochs        int     `yaml:"epochs"`
	BatchSize     int     `yaml:"batch_size"`
	Optimizer     string  `yaml:"optimizer"`
	LearningRate  float64 `yaml:"learning_rate"`
	Momentum      float64 `yaml:"momentum"`
	OverfitGap    float64 `yaml:"overfit_gap"`
	Normalization string  `yaml:"normalization"` // per-batch or per-sample
	Seed          int64   `yaml:"seed"`
}

// DataConfig locates the dataset.
type DataConfig struct {
	Root             string `yaml:"root"`
	Download         bool   `yaml:"download"`
	URL              string `yaml:"url"`
	MaxTrainSamples  int    `yaml:"max_train_samples"` // 0 means all
	MaxValSamples    int    `yaml:"max_val_samples"`
	Synthetic        bool   `yaml:"synthetic"`
	SyntheticSamples int    `yaml:"synthetic_samples"`
}

// OutputConfig names the artifacts written after training. Empty paths are
// skipped.
type OutputConfig struct {
	Weights string `yaml:"weights"`
	Plot    string `yaml:"plot"`
	History string `yaml:"history"`
}

// Default returns the configuration of the reference CIFAR-10 run.
func Default() Config {
	m := model.DefaultConfig()
	return Config{
		Model: ModelConfig{
			Blocks:            m.Blocks,
			Filters:           m.Filters,
			KernelSize:        m.KernelSize,
			Stride:            m.Stride,
			Padding:           m.Padding,
			Activation:        m.Activation,
			ShareBlockWeights: m.ShareBlockWeights,
		},
		Train: TrainConfig{
			Epochs:        trainer.DefaultEpochs,
			BatchSize:     32,
			Optimizer:     string(optim.KindSGD),
			LearningRate:  0.001,
			Momentum:      0.9,
			OverfitGap:    trainer.DefaultOverfitGap,
			Normalization: trainer.PerBatch.String(),
			Seed:          m.Seed,
		},
		Data: DataConfig{
			Root:             "./data_cifar10",
			Download:         true,
			URL:              dataset.CIFARArchiveURL,
			SyntheticSamples: 512,
		},
		Output: OutputConfig{
			Weights: "cifar10-cnn.born",
			Plot:    "cifar10-cnn.png",
		},
		Device:   "auto",
		LogLevel: "info",
	}
}

// Load reads a YAML file on top of the defaults. Unknown keys are errors.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML on top of the defaults.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Overrides carries command-line values. Nil fields leave the config as is.
type Overrides struct {
	Epochs       *int
	BatchSize    *int
	LearningRate *float64
	Optimizer    *string
	Blocks       *int
	Filters      *int
	Activation   *string
	DataRoot     *string
	MaxSamples   *int
	Synthetic    *bool
	Device       *string
	Workers      *int
	Weights      *string
	Plot         *string
	History      *string
	LogLevel     *string
}

// ApplyOverrides copies every non-nil override into cfg. MaxSamples caps
// both the training and validation sets.
func ApplyOverrides(cfg *Config, o Overrides) {
	setIf(&cfg.Train.Epochs, o.Epochs)
	setIf(&cfg.Train.BatchSize, o.BatchSize)
	setIf(&cfg.Train.LearningRate, o.LearningRate)
	setIf(&cfg.Train.Optimizer, o.Optimizer)
	setIf(&cfg.Model.Blocks, o.Blocks)
	setIf(&cfg.Model.Filters, o.Filters)
	setIf(&cfg.Model.Activation, o.Activation)
	setIf(&cfg.Data.Root, o.DataRoot)
	setIf(&cfg.Data.MaxTrainSamples, o.MaxSamples)
	setIf(&cfg.Data.MaxValSamples, o.MaxSamples)
	setIf(&cfg.Data.Synthetic, o.Synthetic)
	setIf(&cfg.Device, o.Device)
	setIf(&cfg.Workers, o.Workers)
	setIf(&cfg.Output.Weights, o.Weights)
	setIf(&cfg.Output.Plot, o.Plot)
	setIf(&cfg.Output.History, o.History)
	setIf(&cfg.LogLevel, o.LogLevel)
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// Validate checks every section.
func (c Config) Validate() error {
	if _, err := c.ModelConfig().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if _, err := trainer.ParseNormalization(c.Train.Normalization); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if _, err := c.LogLevelValue(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	switch optim.Kind(strings.ToLower(c.Train.Optimizer)) {
	case optim.KindSGD, optim.KindAdam:
	default:
		return fmt.Errorf("%w: unknown optimizer %q", ErrInvalid, c.Train.Optimizer)
	}

	var problems []string
	if c.Train.Epochs <= 0 {
		problems = append(problems, "train.epochs must be positive")
	}
	if c.Train.BatchSize <= 0 {
		problems = append(problems, "train.batch_size must be positive")
	}
	if c.Train.LearningRate <= 0 {
		problems = append(problems, "train.learning_rate must be positive")
	}
	if c.Train.Momentum < 0 || c.Train.Momentum >= 1 {
		problems = append(problems, "train.momentum must be in [0, 1)")
	}
	if c.Train.OverfitGap < 0 {
		problems = append(problems, "train.overfit_gap must not be negative")
	}
	if c.Data.MaxTrainSamples < 0 || c.Data.MaxValSamples < 0 {
		problems = append(problems, "data sample caps must not be negative")
	}
	if c.Data.Synthetic && c.Data.SyntheticSamples <= 0 {
		problems = append(problems, "data.synthetic_samples must be positive")
	}
	if !c.Data.Synthetic && c.Data.Root == "" {
		problems = append(problems, "data.root is required")
	}
	if c.Workers < 0 {
		problems = append(problems, "workers must not be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// ModelConfig returns the network hyperparameters with the CIFAR-10 input
// geometry.
func (c Config) ModelConfig() model.Config {
	m := model.DefaultConfig()
	m.Blocks = c.Model.Blocks
	m.Filters = c.Model.Filters
	m.KernelSize = c.Model.KernelSize
	m.Stride = c.Model.Stride
	m.Padding = c.Model.Padding
	m.Activation = c.Model.Activation
	m.ShareBlockWeights = c.Model.ShareBlockWeights
	m.Seed = c.Train.Seed
	return m
}

// OptimizerConfig returns the optimizer settings.
func (c Config) OptimizerConfig() optim.Config {
	return optim.Config{
		Kind:     optim.Kind(strings.ToLower(c.Train.Optimizer)),
		LR:       c.Train.LearningRate,
		Momentum: c.Train.Momentum,
	}
}

// LogLevelValue parses LogLevel.
func (c Config) LogLevelValue() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}
