// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package vit provides a Vision Transformer image classifier built on Born.
//
// Example:
//
//	import (
//	    "github.com/born-ml/born/autodiff"
//	    "github.com/born-ml/born/backend/cpu"
//	    "github.com/born-ml/vit/vit"
//	)
//
//	backend := autodiff.New(cpu.New())
//	model, err := vit.New(vit.DefaultConfig(), backend)
//	probs, err := model.Predict(images) // images: [N, 1, 28, 28] → probs: [N, 10]
package vit

import (
	"github.com/born-ml/born/tensor"
	"github.com/born-ml/vit/internal/vit"
)

// Config defines the architecture of a Vision Transformer.
type Config = vit.Config

// DefaultConfig returns the MNIST configuration.
func DefaultConfig() Config {
	return vit.DefaultConfig()
}

// ViT is a Vision Transformer classifier.
type ViT[B tensor.Backend] = vit.ViT[B]

// New creates a ViT for cfg on backend.
//
// Returns an error wrapping ErrInvalidConfig when cfg is invalid.
func New[B tensor.Backend](cfg Config, backend B) (*ViT[B], error) {
	return vit.New(cfg, backend)
}

// Building blocks

// MSA is multi-head self-attention with per-head projections.
type MSA[B tensor.Backend] = vit.MSA[B]

// NewMSA creates a multi-head self-attention layer.
func NewMSA[B tensor.Backend](hiddenD, nHeads int, backend B) (*MSA[B], error) {
	return vit.NewMSA(hiddenD, nHeads, backend)
}

// Block is a pre-norm transformer encoder block.
type Block[B tensor.Backend] = vit.Block[B]

// NewBlock creates a transformer encoder block.
func NewBlock[B tensor.Backend](hiddenD, nHeads, mlpRatio int, normEps float32, backend B) (*Block[B], error) {
	return vit.NewBlock(hiddenD, nHeads, mlpRatio, normEps, backend)
}

// NamedParameter pairs a trainable parameter with its state dict key.
type NamedParameter[B tensor.Backend] = vit.NamedParameter[B]

// Functions

// Patchify splits images [N, C, H, W] into [N, P², C·(H/P)·(W/P)] patches.
func Patchify[B tensor.Backend](images *tensor.Tensor[float32, B], nPatches int) (*tensor.Tensor[float32, B], error) {
	return vit.Patchify(images, nPatches)
}

// PositionalEmbeddings returns the sinusoidal table [seqLen, dim] in row-major order.
func PositionalEmbeddings(seqLen, dim int) []float32 {
	return vit.PositionalEmbeddings(seqLen, dim)
}

// Errors

var (
	ErrInvalidConfig  = vit.ErrInvalidConfig
	ErrPatchGrid      = vit.ErrPatchGrid
	ErrHeadSplit      = vit.ErrHeadSplit
	ErrNonSquareImage = vit.ErrNonSquareImage
	ErrInvalidInput   = vit.ErrInvalidInput
)
