package main

import (
	"errors"
	"flag"
	"io/fs"
	"testing"

	"github.com/born-ml/vit/internal/vit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags_TrainDefaults(t *testing.T) {
	j, err := parseFlags("train", nil)
	require.NoError(t, err)

	assert.Equal(t, vit.DefaultConfig(), j.model)
	assert.Equal(t, 5, j.opts.Epochs)
	assert.Equal(t, 128, j.opts.BatchSize)
	assert.InDelta(t, 0.005, j.opts.LR, 1e-9)
	assert.True(t, j.opts.ShowProgress)
	assert.Equal(t, "cpu", j.device)
}

func TestParseFlags_Train(t *testing.T) {
	j, err := parseFlags("train", []string{
		"-synthetic", "-epochs", "2", "-batch", "16", "-lr", "0.01",
		"-patches", "4", "-blocks", "1", "-hidden", "12", "-heads", "3",
		"-out", "model.born", "-no-progress",
	})
	require.NoError(t, err)

	assert.True(t, j.synthetic)
	assert.Equal(t, 2, j.opts.Epochs)
	assert.Equal(t, 16, j.opts.BatchSize)
	assert.InDelta(t, 0.01, j.opts.LR, 1e-7)
	assert.Equal(t, 4, j.model.NPatches)
	assert.Equal(t, 1, j.model.NBlocks)
	assert.Equal(t, 12, j.model.HiddenD)
	assert.Equal(t, 3, j.model.NHeads)
	assert.Equal(t, "model.born", j.out)
	assert.False(t, j.opts.ShowProgress)
}

func TestParseFlags_Errors(t *testing.T) {
	tests := []struct {
		name    string
		command string
		args    []string
		want    error
	}{
		{"patch grid", "train", []string{"-patches", "5"}, vit.ErrPatchGrid},
		{"head split", "train", []string{"-heads", "3"}, vit.ErrHeadSplit},
		{"help", "train", []string{"-h"}, flag.ErrHelp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseFlags(tt.command, tt.args)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := parseFlags("train", []string{"-epochs", "0"})
	assert.Error(t, err)

	_, err = parseFlags("eval", nil)
	assert.Error(t, err, "eval requires -checkpoint")

	_, err = parseFlags("train", []string{"-device", "cuda"})
	assert.ErrorContains(t, err, "unknown device")

	_, err = parseFlags("eval", []string{"-checkpoint", "vit.born", "-device", "tpu"})
	assert.ErrorContains(t, err, "unknown device")
}

func TestParseFlags_Eval(t *testing.T) {
	j, err := parseFlags("eval", []string{"-checkpoint", "vit.born", "-data", "/tmp/mnist", "-seed", "9", "-device", "webgpu"})
	require.NoError(t, err)
	assert.Equal(t, "vit.born", j.checkpoint)
	assert.Equal(t, "/tmp/mnist", j.dataDir)
	assert.Equal(t, int64(9), j.opts.Seed)
	assert.Equal(t, "webgpu", j.device)
}

// Train and eval with the same -seed see the same synthetic test split.
func TestLoadData_SyntheticSeedShared(t *testing.T) {
	trainJob, err := parseFlags("train", []string{"-synthetic", "-samples", "30", "-seed", "5"})
	require.NoError(t, err)
	evalJob, err := parseFlags("eval", []string{"-synthetic", "-samples", "30", "-seed", "5", "-checkpoint", "vit.born"})
	require.NoError(t, err)

	_, trainTest, err := loadData(trainJob)
	require.NoError(t, err)
	_, evalTest, err := loadData(evalJob)
	require.NoError(t, err)
	assert.Equal(t, trainTest.Labels, evalTest.Labels)
	assert.Equal(t, trainTest.Images, evalTest.Images)
}

func TestLoadData_Synthetic(t *testing.T) {
	j := job{command: "train", synthetic: true, samples: 50}
	trainData, testData, err := loadData(j)
	require.NoError(t, err)
	assert.Equal(t, 40, trainData.NumSamples())
	assert.Equal(t, 10, testData.NumSamples())

	j.command = "eval"
	trainData, _, err = loadData(j)
	require.NoError(t, err)
	assert.Nil(t, trainData)
}

func TestLoadData_MissingFiles(t *testing.T) {
	_, _, err := loadData(job{command: "train", dataDir: t.TempDir()})
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
	assert.Contains(t, err.Error(), "-synthetic")
}

func TestExecute_TrainAndEval(t *testing.T) {
	if testing.Short() {
		t.Skip("trains a model")
	}
	out := t.TempDir() + "/vit.born"

	j, err := parseFlags("train", []string{"-synthetic", "-samples", "40", "-epochs", "1", "-batch", "10", "-no-progress", "-out", out})
	require.NoError(t, err)
	require.NoError(t, dispatch(j))

	j, err = parseFlags("eval", []string{"-synthetic", "-samples", "40", "-no-progress", "-checkpoint", out})
	require.NoError(t, err)
	require.NoError(t, dispatch(j))
}
