package vit

import (
	"fmt"
	"math"

	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"
)

// MSA implements multi-head self-attention with per-head projections.
//
// Unlike nn.MultiHeadAttention, which projects the whole token and then
// splits, MSA splits first: each head owns a contiguous slice of the token's
// features and three independent [d_head → d_head] projections. There is no
// output projection; head outputs are concatenated back in head order.
//
// Architecture (per head h):
//
//	x_h = x[..., h*d_head:(h+1)*d_head]
//	out_h = softmax(Q_h(x_h) @ K_h(x_h)^T / sqrt(d_head)) @ V_h(x_h)
//	out = concat(out_0, ..., out_{H-1})
//
// All heads are evaluated in one batched attention call over [batch, heads].
type MSA[B tensor.Backend] struct {
	Query    []*nn.Linear[B] // one [d_head → d_head] projection per head
	Key      []*nn.Linear[B]
	Value    []*nn.Linear[B]
	NumHeads int
	HeadDim  int
	HiddenD  int
	backend  B
}

// NewMSA creates a self-attention layer over hiddenD-wide tokens.
//
// hiddenD must be divisible by nHeads.
func NewMSA[B tensor.Backend](hiddenD, nHeads int, backend B) (*MSA[B], error) {
	if hiddenD <= 0 || nHeads <= 0 {
		return nil, fmt.Errorf("%w: hidden_d %d, n_heads %d must be positive", ErrInvalidConfig, hiddenD, nHeads)
	}
	if hiddenD%nHeads != 0 {
		return nil, fmt.Errorf("%w: %w: can't divide dimension %d into %d heads", ErrInvalidConfig, ErrHeadSplit, hiddenD, nHeads)
	}
	headDim := hiddenD / nHeads

	m := &MSA[B]{
		Query:    make([]*nn.Linear[B], nHeads),
		Key:      make([]*nn.Linear[B], nHeads),
		Value:    make([]*nn.Linear[B], nHeads),
		NumHeads: nHeads,
		HeadDim:  headDim,
		HiddenD:  hiddenD,
		backend:  backend,
	}
	for h := 0; h < nHeads; h++ {
		m.Query[h] = nn.NewLinear(headDim, headDim, backend)
		m.Key[h] = nn.NewLinear(headDim, headDim, backend)
		m.Value[h] = nn.NewLinear(headDim, headDim, backend)
	}
	return m, nil
}

// Forward computes self-attention for a batch of sequences.
//
// Shapes:
//   - x: [batch, seq, hidden_d]
//   - output: [batch, seq, hidden_d]
func (m *MSA[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	out, _ := m.ForwardWithWeights(x)
	return out
}

// ForwardWithWeights is Forward that also returns the attention weights
// with shape [batch, heads, seq, seq].
func (m *MSA[B]) ForwardWithWeights(x *tensor.Tensor[float32, B]) (*tensor.Tensor[float32, B], *tensor.Tensor[float32, B]) {
	shape := x.Shape()
	if len(shape) != 3 || shape[2] != m.HiddenD {
		panic(fmt.Sprintf("MSA.Forward: expected [batch, seq, %d], got %v", m.HiddenD, shape))
	}
	batch, seq := shape[0], shape[1]

	slices := []*tensor.Tensor[float32, B]{x}
	if m.NumHeads > 1 {
		slices = x.Chunk(m.NumHeads, 2)
	}

	qs := make([]*tensor.Tensor[float32, B], m.NumHeads)
	ks := make([]*tensor.Tensor[float32, B], m.NumHeads)
	vs := make([]*tensor.Tensor[float32, B], m.NumHeads)
	for h, xh := range slices {
		// Linear expects 2D: [batch*seq, d_head]
		flat := xh.Reshape(batch*seq, m.HeadDim)
		qs[h] = m.Query[h].Forward(flat).Reshape(batch, 1, seq, m.HeadDim)
		ks[h] = m.Key[h].Forward(flat).Reshape(batch, 1, seq, m.HeadDim)
		vs[h] = m.Value[h].Forward(flat).Reshape(batch, 1, seq, m.HeadDim)
	}

	// [batch, heads, seq, d_head]
	q := stackHeads(qs)
	k := stackHeads(ks)
	v := stackHeads(vs)

	// softmax(Q @ K^T / sqrt(d_head)) @ V, unmasked. The scale is a full-shape
	// tensor so the product stays on the autodiff tape.
	scores := q.BatchMatMul(k.Transpose(0, 1, 3, 2)) // [batch, heads, seq, seq]
	scale := tensor.Full[float32](scores.Shape(), float32(1/math.Sqrt(float64(m.HeadDim))), m.backend)
	weights := scores.Mul(scale).Softmax(-1)
	attnOut := weights.BatchMatMul(v)

	// [batch, heads, seq, d_head] -> [batch, seq, heads, d_head] -> [batch, seq, hidden_d]
	out := attnOut.Transpose(0, 2, 1, 3).Reshape(batch, seq, m.HiddenD)
	return out, weights
}

// Parameters returns the projections of every head in head order.
func (m *MSA[B]) Parameters() []*nn.Parameter[B] {
	params := make([]*nn.Parameter[B], 0, 6*m.NumHeads)
	for h := 0; h < m.NumHeads; h++ {
		params = append(params, m.Query[h].Parameters()...)
		params = append(params, m.Key[h].Parameters()...)
		params = append(params, m.Value[h].Parameters()...)
	}
	return params
}

func (m *MSA[B]) namedParameters(prefix string, out []NamedParameter[B]) []NamedParameter[B] {
	for h := 0; h < m.NumHeads; h++ {
		out = appendLinear(out, fmt.Sprintf("%sq.%d", prefix, h), m.Query[h])
		out = appendLinear(out, fmt.Sprintf("%sk.%d", prefix, h), m.Key[h])
		out = appendLinear(out, fmt.Sprintf("%sv.%d", prefix, h), m.Value[h])
	}
	return out
}

func stackHeads[B tensor.Backend](heads []*tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if len(heads) == 1 {
		return heads[0]
	}
	return tensor.Cat(heads, 1)
}
