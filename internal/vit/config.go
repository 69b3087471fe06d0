package vit

import "fmt"

// Config defines the architecture of a Vision Transformer.
type Config struct {
	Channels int     `json:"channels"`  // Input channels (1 for MNIST)
	Height   int     `json:"height"`    // Input height in pixels
	Width    int     `json:"width"`     // Input width in pixels
	NPatches int     `json:"n_patches"` // Patches per side; the image is cut into NPatches x NPatches tiles
	NBlocks  int     `json:"n_blocks"`  // Number of transformer blocks
	HiddenD  int     `json:"hidden_d"`  // Token embedding width
	NHeads   int     `json:"n_heads"`   // Attention heads, must divide HiddenD
	OutD     int     `json:"out_d"`     // Number of output classes
	MLPRatio int     `json:"mlp_ratio"` // Feed-forward expansion factor (hidden = MLPRatio * HiddenD)
	NormEps  float32 `json:"norm_eps"`  // LayerNorm epsilon
}

// DefaultConfig returns the MNIST configuration: 1x28x28 images cut into a
// 7x7 grid of 4x4 patches, two blocks of width 8 with two heads, ten classes.
func DefaultConfig() Config {
	return Config{
		Channels: 1,
		Height:   28,
		Width:    28,
		NPatches: 7,
		NBlocks:  2,
		HiddenD:  8,
		NHeads:   2,
		OutD:     10,
		MLPRatio: 4,
		NormEps:  1e-5,
	}
}

// Validate checks the configuration for construction-time errors.
//
// The returned error wraps ErrInvalidConfig and, where it applies, the more
// specific ErrPatchGrid or ErrHeadSplit.
func (c Config) Validate() error {
	dims := []struct {
		name  string
		value int
	}{
		{"channels", c.Channels},
		{"height", c.Height},
		{"width", c.Width},
		{"n_patches", c.NPatches},
		{"n_blocks", c.NBlocks},
		{"hidden_d", c.HiddenD},
		{"n_heads", c.NHeads},
		{"out_d", c.OutD},
		{"mlp_ratio", c.MLPRatio},
	}
	for _, d := range dims {
		if d.value <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %d", ErrInvalidConfig, d.name, d.value)
		}
	}
	if c.NormEps <= 0 {
		return fmt.Errorf("%w: norm_eps must be positive, got %g", ErrInvalidConfig, c.NormEps)
	}
	if c.Height%c.NPatches != 0 {
		return fmt.Errorf("%w: %w: height %d, n_patches %d", ErrInvalidConfig, ErrPatchGrid, c.Height, c.NPatches)
	}
	if c.Width%c.NPatches != 0 {
		return fmt.Errorf("%w: %w: width %d, n_patches %d", ErrInvalidConfig, ErrPatchGrid, c.Width, c.NPatches)
	}
	if c.HiddenD%c.NHeads != 0 {
		return fmt.Errorf("%w: %w: hidden_d %d, n_heads %d", ErrInvalidConfig, ErrHeadSplit, c.HiddenD, c.NHeads)
	}
	return nil
}

// PatchSize returns the patch height and width in pixels.
func (c Config) PatchSize() (int, int) {
	return c.Height / c.NPatches, c.Width / c.NPatches
}

// PatchDim returns the length of a flattened patch (C * patch_h * patch_w).
func (c Config) PatchDim() int {
	ph, pw := c.PatchSize()
	return c.Channels * ph * pw
}

// SeqLen returns the token sequence length including the class token.
func (c Config) SeqLen() int {
	return c.NPatches*c.NPatches + 1
}

// HeadDim returns the per-head feature width.
func (c Config) HeadDim() int {
	return c.HiddenD / c.NHeads
}
