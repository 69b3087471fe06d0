package vit

import (
	"math"

	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"
)

// MLP is the feed-forward sub-layer of a block:
//
//	MLP(x) = Linear2(GELU(Linear1(x)))
//
// GELU uses the tanh approximation, within 1e-3 of the exact erf form.
//
// Linear1 expands hidden_d to ratio*hidden_d, Linear2 projects back.
type MLP[B tensor.Backend] struct {
	Linear1 *nn.Linear[B]
	Linear2 *nn.Linear[B]
}

// NewMLP creates a feed-forward network with a ratio*hiddenD hidden layer.
func NewMLP[B tensor.Backend](hiddenD, ratio int, backend B) *MLP[B] {
	return &MLP[B]{
		Linear1: nn.NewLinear(hiddenD, ratio*hiddenD, backend),
		Linear2: nn.NewLinear(ratio*hiddenD, hiddenD, backend),
	}
}

// Forward applies the MLP to every token.
//
// Shapes:
//   - x: [batch, seq, hidden_d] or [batch, hidden_d]
//   - output: same as x
func (f *MLP[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := x.Shape()
	is3D := len(shape) == 3
	if is3D {
		x = x.Reshape(shape[0]*shape[1], shape[2])
	}

	x = f.Linear1.Forward(x)
	x = gelu(x)
	x = f.Linear2.Forward(x)

	if is3D {
		x = x.Reshape(shape[0], shape[1], shape[2])
	}
	return x
}

// Parameters returns Linear1 and Linear2 parameters.
func (f *MLP[B]) Parameters() []*nn.Parameter[B] {
	params := make([]*nn.Parameter[B], 0, 4)
	params = append(params, f.Linear1.Parameters()...)
	params = append(params, f.Linear2.Parameters()...)
	return params
}

func (f *MLP[B]) namedParameters(prefix string, out []NamedParameter[B]) []NamedParameter[B] {
	out = appendLinear(out, prefix+"fc1", f.Linear1)
	return appendLinear(out, prefix+"fc2", f.Linear2)
}

// gelu computes 0.5 * x * (1 + tanh(sqrt(2/pi) * (x + 0.044715 * x^3))).
//
// Constants are full-shape tensors rather than scalar ops so that every step
// is recorded by the autodiff backend.
func gelu[B tensor.Backend](x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape, backend := x.Shape(), x.Backend()
	full := func(v float32) *tensor.Tensor[float32, B] {
		return tensor.Full[float32](shape, v, backend)
	}

	x3 := x.Mul(x).Mul(x)
	inner := x.Add(x3.Mul(full(0.044715))).Mul(full(float32(math.Sqrt(2 / math.Pi))))
	t := nn.NewTanh[B]().Forward(inner)
	return x.Mul(full(0.5)).Mul(t.Add(full(1)))
}
