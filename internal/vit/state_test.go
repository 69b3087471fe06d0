package vit

import (
	"testing"

	"github.com/born-ml/born/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestViT_NamedParameters(t *testing.T) {
	backend := newBackend()

	model, err := New(DefaultConfig(), backend)
	require.NoError(t, err)

	named := model.NamedParameters()
	require.Len(t, named, len(model.Parameters()))

	names := make(map[string]bool, len(named))
	for _, np := range named {
		assert.False(t, names[np.Name], "duplicate key %s", np.Name)
		names[np.Name] = true
	}

	for _, key := range []string{
		"mapper.weight", "mapper.bias", "class_token",
		"blocks.0.norm1.gamma", "blocks.0.norm1.beta",
		"blocks.0.msa.q.0.weight", "blocks.0.msa.v.1.bias",
		"blocks.1.norm2.gamma", "blocks.1.mlp.fc1.weight", "blocks.1.mlp.fc2.bias",
		"head.weight", "head.bias",
	} {
		assert.True(t, names[key], "missing %s", key)
	}
}

func TestViT_StateDictRoundTrip(t *testing.T) {
	backend := newBackend()

	src, err := New(DefaultConfig(), backend)
	require.NoError(t, err)
	dst, err := New(DefaultConfig(), backend)
	require.NoError(t, err)

	require.NoError(t, dst.LoadStateDict(src.StateDict()))

	images := randImages(t, backend, tensor.Shape{2, 1, 28, 28})
	want := append([]float32(nil), src.Forward(images).Data()...)
	got := dst.Forward(images).Data()
	assert.InDeltaSlice(t, want, got, 1e-6)
}

func TestViT_LoadStateDictErrors(t *testing.T) {
	backend := newBackend()

	model, err := New(DefaultConfig(), backend)
	require.NoError(t, err)

	t.Run("missing key", func(t *testing.T) {
		sd := model.StateDict()
		delete(sd, "head.bias")
		assert.ErrorContains(t, model.LoadStateDict(sd), "head.bias")
	})

	t.Run("unexpected key", func(t *testing.T) {
		sd := model.StateDict()
		sd["pos_embed"] = model.PositionalTable().Raw()
		assert.ErrorContains(t, model.LoadStateDict(sd), "pos_embed")
	})

	t.Run("shape mismatch", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.HiddenD = 16
		wider, err := New(cfg, backend)
		require.NoError(t, err)
		assert.ErrorContains(t, model.LoadStateDict(wider.StateDict()), "shape mismatch")
	})
}
