package vit

import (
	"fmt"
	"math"

	"github.com/born-ml/born/tensor"
)

// PositionalEmbeddings computes the fixed sinusoidal table used by the model.
//
// The result is a row-major [seqLen, dim] matrix where
//
//	PE(pos, d) = sin(pos / 10000^(d/dim))        for even d
//	PE(pos, d) = cos(pos / 10000^((d-1)/dim))    for odd d
//
// The function is pure: equal arguments always give equal tables.
func PositionalEmbeddings(seqLen, dim int) []float32 {
	if seqLen <= 0 {
		panic(fmt.Sprintf("PositionalEmbeddings: seqLen must be positive, got %d", seqLen))
	}
	if dim <= 0 {
		panic(fmt.Sprintf("PositionalEmbeddings: dim must be positive, got %d", dim))
	}

	table := make([]float32, seqLen*dim)
	for pos := 0; pos < seqLen; pos++ {
		for d := 0; d < dim; d++ {
			var v float64
			if d%2 == 0 {
				v = math.Sin(float64(pos) / math.Pow(10000, float64(d)/float64(dim)))
			} else {
				v = math.Cos(float64(pos) / math.Pow(10000, float64(d-1)/float64(dim)))
			}
			table[pos*dim+d] = float32(v)
		}
	}
	return table
}

// NewPositionalTable returns the sinusoidal table as a [seqLen, dim] tensor.
//
// The tensor is a constant: it is never wrapped in an nn.Parameter, so the
// optimizer cannot see it.
func NewPositionalTable[B tensor.Backend](seqLen, dim int, backend B) *tensor.Tensor[float32, B] {
	table, err := tensor.FromSlice(PositionalEmbeddings(seqLen, dim), tensor.Shape{seqLen, dim}, backend)
	if err != nil {
		panic(fmt.Sprintf("failed to create positional table: %v", err))
	}
	return table
}
