package vit

import (
	"math"
	"testing"

	"github.com/born-ml/born/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMSA_Shape(t *testing.T) {
	backend := newBackend()

	tests := []struct {
		batch, seq, hidden, heads int
	}{
		{2, 50, 8, 2},
		{1, 5, 8, 1},
		{3, 7, 12, 3},
		{2, 4, 16, 8},
	}

	for _, tt := range tests {
		msa, err := NewMSA(tt.hidden, tt.heads, backend)
		require.NoError(t, err)
		assert.Equal(t, tt.hidden/tt.heads, msa.HeadDim)

		x := tensor.Randn[float32](tensor.Shape{tt.batch, tt.seq, tt.hidden}, backend)
		out, weights := msa.ForwardWithWeights(x)

		assert.Equal(t, x.Shape(), out.Shape())
		assert.Equal(t, tensor.Shape{tt.batch, tt.heads, tt.seq, tt.seq}, weights.Shape())
	}
}

func TestMSA_InvalidHeads(t *testing.T) {
	backend := newBackend()

	_, err := NewMSA(8, 3, backend)
	assert.ErrorIs(t, err, ErrHeadSplit)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewMSA(8, 0, backend)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestMSA_WeightsAreDistributions(t *testing.T) {
	backend := newBackend()

	msa, err := NewMSA(8, 2, backend)
	require.NoError(t, err)

	x := tensor.Randn[float32](tensor.Shape{2, 6, 8}, backend)
	_, weights := msa.ForwardWithWeights(x)

	data := weights.Data()
	for row := 0; row < len(data)/6; row++ {
		sum := float32(0)
		for j := 0; j < 6; j++ {
			v := data[row*6+j]
			assert.GreaterOrEqual(t, v, float32(0))
			sum += v
		}
		assert.InDelta(t, 1.0, sum, 1e-5)
	}
}

// TestMSA_MatchesReference compares the batched computation against a
// per-sequence, per-head loop.
func TestMSA_MatchesReference(t *testing.T) {
	backend := newBackend()

	batch, seq, hidden, heads := 2, 3, 4, 2
	headDim := hidden / heads

	msa, err := NewMSA(hidden, heads, backend)
	require.NoError(t, err)

	x := tensor.Randn[float32](tensor.Shape{batch, seq, hidden}, backend)
	xData := append([]float32(nil), x.Data()...)

	got := msa.Forward(x).Data()

	scale := 1 / math.Sqrt(float64(headDim))
	for n := 0; n < batch; n++ {
		for h := 0; h < heads; h++ {
			q := make([][]float32, seq)
			k := make([][]float32, seq)
			v := make([][]float32, seq)
			for i := 0; i < seq; i++ {
				off := (n*seq+i)*hidden + h*headDim
				xh := xData[off : off+headDim]
				q[i] = linearRef(msa.Query[h], xh)
				k[i] = linearRef(msa.Key[h], xh)
				v[i] = linearRef(msa.Value[h], xh)
			}

			for i := 0; i < seq; i++ {
				scores := make([]float64, seq)
				maxScore := math.Inf(-1)
				for j := 0; j < seq; j++ {
					dot := 0.0
					for d := 0; d < headDim; d++ {
						dot += float64(q[i][d] * k[j][d])
					}
					scores[j] = dot * scale
					maxScore = math.Max(maxScore, scores[j])
				}
				total := 0.0
				for j := range scores {
					scores[j] = math.Exp(scores[j] - maxScore)
					total += scores[j]
				}

				for d := 0; d < headDim; d++ {
					want := 0.0
					for j := 0; j < seq; j++ {
						want += scores[j] / total * float64(v[j][d])
					}
					idx := (n*seq+i)*hidden + h*headDim + d
					assert.InDelta(t, want, float64(got[idx]), 1e-4, "n=%d h=%d i=%d d=%d", n, h, i, d)
				}
			}
		}
	}
}

func TestMSA_Parameters(t *testing.T) {
	backend := newBackend()

	msa, err := NewMSA(8, 2, backend)
	require.NoError(t, err)

	// q/k/v per head, weight and bias each.
	assert.Len(t, msa.Parameters(), 2*3*2)
}
