// Package vit implements a minimal Vision Transformer classifier on top of the
// Born tensor, autodiff and nn packages.
//
// The model cuts square images into a grid of patches, embeds each patch
// linearly, prepends a learnable class token, adds a fixed sinusoidal
// positional table and runs a stack of pre-norm transformer blocks. The final
// class-token representation is mapped to a probability distribution over the
// output classes.
//
// Components:
//   - Patchify: [N, C, H, W] → [N, P², C·s·s]
//   - PositionalEmbeddings: fixed sin/cos table, never trained
//   - MSA: per-head split, project and attend, concatenate
//   - Block: x + MSA(LN(x)), then x + MLP(LN(x))
//   - ViT: orchestration and classification head
package vit
