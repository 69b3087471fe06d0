package vit

import (
	"fmt"

	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"
)

// Block is a pre-norm transformer encoder block.
//
//	x → Norm1 → MSA → + → Norm2 → MLP → + → output
//	↑___________________|  ↑____________|
//
// Both sums are identity residuals; normalization only feeds the sub-layer.
type Block[B tensor.Backend] struct {
	Norm1 *nn.LayerNorm[B]
	MSA   *MSA[B]
	Norm2 *nn.LayerNorm[B]
	MLP   *MLP[B]
}

// NewBlock creates a block over hiddenD-wide tokens with nHeads attention
// heads and an mlpRatio*hiddenD feed-forward layer.
func NewBlock[B tensor.Backend](hiddenD, nHeads, mlpRatio int, normEps float32, backend B) (*Block[B], error) {
	if mlpRatio <= 0 {
		return nil, fmt.Errorf("%w: mlp_ratio must be positive, got %d", ErrInvalidConfig, mlpRatio)
	}
	if normEps <= 0 {
		return nil, fmt.Errorf("%w: norm_eps must be positive, got %g", ErrInvalidConfig, normEps)
	}
	msa, err := NewMSA(hiddenD, nHeads, backend)
	if err != nil {
		return nil, err
	}
	return &Block[B]{
		Norm1: nn.NewLayerNorm(hiddenD, normEps, backend),
		MSA:   msa,
		Norm2: nn.NewLayerNorm(hiddenD, normEps, backend),
		MLP:   NewMLP(hiddenD, mlpRatio, backend),
	}, nil
}

// Forward computes the block output.
//
// Shapes:
//   - x: [batch, seq, hidden_d]
//   - output: [batch, seq, hidden_d]
func (b *Block[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	x = x.Add(b.MSA.Forward(b.Norm1.Forward(x)))
	return x.Add(b.MLP.Forward(b.Norm2.Forward(x)))
}

// Parameters returns norm, attention and MLP parameters.
func (b *Block[B]) Parameters() []*nn.Parameter[B] {
	var params []*nn.Parameter[B]
	params = append(params, b.Norm1.Parameters()...)
	params = append(params, b.MSA.Parameters()...)
	params = append(params, b.Norm2.Parameters()...)
	params = append(params, b.MLP.Parameters()...)
	return params
}

func (b *Block[B]) namedParameters(prefix string, out []NamedParameter[B]) []NamedParameter[B] {
	out = appendNorm(out, prefix+"norm1", b.Norm1)
	out = b.MSA.namedParameters(prefix+"msa.", out)
	out = appendNorm(out, prefix+"norm2", b.Norm2)
	return b.MLP.namedParameters(prefix+"mlp.", out)
}
