package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlagsLoad_Defaults(t *testing.T) {
	cfg, err := newFlags("train").load(nil)
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.Train.Epochs)
	assert.Equal(t, 256, cfg.Model.Filters)
	assert.Equal(t, "cifar10-cnn.born", cfg.Output.Weights)
}

func TestFlagsLoad_FlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte("train:\n  epochs: 7\n  batch_size: 16\n"), 0o600))

	cfg, err := newFlags("train").load([]string{"-config", path, "-epochs", "3", "-synthetic"})
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Train.Epochs)
	assert.Equal(t, 16, cfg.Train.BatchSize)
	assert.True(t, cfg.Data.Synthetic)
}

func TestFlagsLoad_Invalid(t *testing.T) {
	_, err := newFlags("train").load([]string{"-activation", "gelu"})
	require.Error(t, err)
}
