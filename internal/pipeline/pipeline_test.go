package pipeline

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/cifarnet/internal/config"
	"github.com/born-ml/cifarnet/internal/dataset"
	"github.com/born-ml/cifarnet/internal/device"
	"github.com/born-ml/cifarnet/internal/tensor"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func smallConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Model.Filters = 4
	cfg.Model.Blocks = 1
	cfg.Train.Epochs = 2
	cfg.Train.BatchSize = 8
	cfg.Train.LearningRate = 0.05
	cfg.Data.Synthetic = true
	cfg.Data.SyntheticSamples = 40
	cfg.Device = "cpu"
	cfg.Workers = 1
	cfg.Output = config.OutputConfig{
		Weights: filepath.Join(dir, "net.born"),
		Plot:    filepath.Join(dir, "curves.png"),
		History: filepath.Join(dir, "history.csv"),
	}
	return cfg
}

func TestRun_Synthetic(t *testing.T) {
	cfg := smallConfig(t)
	var out bytes.Buffer

	res, err := Run(context.Background(), cfg, discard(), &out)
	require.NoError(t, err)

	h := res.History
	require.NotNil(t, h)
	assert.LessOrEqual(t, h.Epochs(), 2)
	assert.Positive(t, h.Epochs())
	assert.Len(t, h.ValAcc, h.Epochs())
	assert.Equal(t, tensor.CPU, res.Device)

	text := out.String()
	assert.True(t, strings.HasPrefix(text, "Sequential("))
	assert.Contains(t, text, "Epoch:0 Train accuracy:")

	for _, path := range []string{cfg.Output.Weights, cfg.Output.Plot, cfg.Output.History} {
		_, err := os.Stat(path)
		assert.NoError(t, err, path)
	}
}

func TestEvaluate_MatchesFinalEpoch(t *testing.T) {
	cfg := smallConfig(t)
	res, err := Run(context.Background(), cfg, discard(), io.Discard)
	require.NoError(t, err)

	var out bytes.Buffer
	loss, acc, err := Evaluate(context.Background(), cfg, discard(), &out)
	require.NoError(t, err)

	last := res.History.Epochs() - 1
	assert.InDelta(t, res.History.ValLoss[last], loss, 1e-9)
	assert.InDelta(t, res.History.ValAcc[last], acc, 1e-9)
	assert.Contains(t, out.String(), "Validation accuracy:")
}

func TestEvaluate_MissingWeights(t *testing.T) {
	cfg := smallConfig(t)
	_, _, err := Evaluate(context.Background(), cfg, discard(), io.Discard)
	require.Error(t, err)
}

func TestRun_SkipsEmptyOutputs(t *testing.T) {
	cfg := smallConfig(t)
	cfg.Train.Epochs = 1
	cfg.Output = config.OutputConfig{}

	res, err := Run(context.Background(), cfg, discard(), io.Discard)
	require.NoError(t, err)
	assert.Equal(t, 1, res.History.Epochs())
}

func TestRun_InvalidConfig(t *testing.T) {
	cfg := smallConfig(t)
	cfg.Model.Activation = "swish"

	_, err := Run(context.Background(), cfg, discard(), io.Discard)
	assert.ErrorIs(t, err, config.ErrInvalid)
	_, statErr := os.Stat(cfg.Output.Weights)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRun_UnavailableDevice(t *testing.T) {
	cfg := smallConfig(t)
	cfg.Device = "cuda"

	_, err := Run(context.Background(), cfg, discard(), io.Discard)
	assert.ErrorIs(t, err, device.ErrDeviceUnavailable)
}

func TestRun_Cancelled(t *testing.T) {
	cfg := smallConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := Run(ctx, cfg, discard(), io.Discard)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, res.History.Epochs())
}

func writeCIFAR(t *testing.T, root string, perFile int) {
	t.Helper()
	dir := filepath.Join(root, dataset.CIFARDirName)
	require.NoError(t, os.MkdirAll(dir, 0o755))

	record := make([]byte, 1+3*32*32)
	files := append(dataset.CIFARTrainFiles(), dataset.CIFARTestFiles()...)
	for fi, name := range files {
		var buf bytes.Buffer
		for i := range perFile {
			record[0] = byte((fi + i) % dataset.CIFARClasses)
			for p := 1; p < len(record); p++ {
				record[p] = byte(p * (i + 1))
			}
			buf.Write(record)
		}
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), buf.Bytes(), 0o600))
	}
}

func TestRun_CIFARFiles(t *testing.T) {
	cfg := smallConfig(t)
	cfg.Data.Synthetic = false
	cfg.Data.Root = t.TempDir()
	cfg.Data.Download = false
	cfg.Data.MaxTrainSamples = 12
	cfg.Train.Epochs = 1
	writeCIFAR(t, cfg.Data.Root, 4)

	res, err := Run(context.Background(), cfg, discard(), io.Discard)
	require.NoError(t, err)
	assert.Equal(t, 1, res.History.Epochs())
}

func TestRun_CIFARMissing(t *testing.T) {
	cfg := smallConfig(t)
	cfg.Data.Synthetic = false
	cfg.Data.Root = t.TempDir()
	cfg.Data.Download = false

	_, err := Run(context.Background(), cfg, discard(), io.Discard)
	require.Error(t, err)
}
