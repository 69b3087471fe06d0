package vit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	ph, pw := cfg.PatchSize()
	assert.Equal(t, 4, ph)
	assert.Equal(t, 4, pw)
	assert.Equal(t, 16, cfg.PatchDim())
	assert.Equal(t, 50, cfg.SeqLen())
	assert.Equal(t, 4, cfg.HeadDim())
	assert.Equal(t, 4, cfg.MLPRatio)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"patches do not divide height", func(c *Config) { c.NPatches = 5 }, ErrPatchGrid},
		{"patches do not divide width", func(c *Config) { c.Width = 30; c.Height = 28 }, ErrPatchGrid},
		{"heads do not divide hidden", func(c *Config) { c.HiddenD = 9 }, ErrHeadSplit},
		{"zero heads", func(c *Config) { c.NHeads = 0 }, ErrInvalidConfig},
		{"zero blocks", func(c *Config) { c.NBlocks = 0 }, ErrInvalidConfig},
		{"negative classes", func(c *Config) { c.OutD = -1 }, ErrInvalidConfig},
		{"zero mlp ratio", func(c *Config) { c.MLPRatio = 0 }, ErrInvalidConfig},
		{"zero epsilon", func(c *Config) { c.NormEps = 0 }, ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}
