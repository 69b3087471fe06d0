package vit

import (
	"testing"

	"github.com/born-ml/born/autodiff"
	"github.com/born-ml/born/backend/cpu"
	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"
	"github.com/stretchr/testify/require"
)

type Backend = *autodiff.Backend[*cpu.Backend]

var _ nn.Module[Backend] = (*ViT[Backend])(nil)

func newBackend() Backend {
	return autodiff.New(cpu.New())
}

// arange returns [0, 1, ..., n-1] as float32.
func arange(n int) []float32 {
	data := make([]float32, n)
	for i := range data {
		data[i] = float32(i)
	}
	return data
}

func randImages(t *testing.T, backend Backend, shape tensor.Shape) *tensor.Tensor[float32, Backend] {
	t.Helper()
	images := tensor.Rand[float32](shape, backend)
	require.Equal(t, shape, images.Shape())
	return images
}

// linearRef computes x @ W.T + b for a single row using the layer's weights.
func linearRef(l *nn.Linear[Backend], x []float32) []float32 {
	w := l.Weight().Tensor().Data()
	b := l.Bias().Tensor().Data()
	in, out := l.InFeatures(), l.OutFeatures()
	y := make([]float32, out)
	for o := 0; o < out; o++ {
		sum := b[o]
		for i := 0; i < in; i++ {
			sum += x[i] * w[o*in+i]
		}
		y[o] = sum
	}
	return y
}
