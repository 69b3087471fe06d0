package vit

import (
	"testing"

	"github.com/born-ml/born/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatchify_Shape(t *testing.T) {
	backend := newBackend()

	tests := []struct {
		n, c, size, patches int
	}{
		{2, 1, 28, 7},
		{3, 1, 28, 4},
		{1, 3, 32, 8},
		{4, 2, 6, 1},
		{1, 1, 6, 6},
	}

	for _, tt := range tests {
		images := randImages(t, backend, tensor.Shape{tt.n, tt.c, tt.size, tt.size})

		patches, err := Patchify(images, tt.patches)
		require.NoError(t, err)

		s := tt.size / tt.patches
		assert.Equal(t, tensor.Shape{tt.n, tt.patches * tt.patches, tt.c * s * s}, patches.Shape())
	}
}

func TestPatchify_Order(t *testing.T) {
	backend := newBackend()

	// Two images, two channels, 4x4 pixels, 2x2 grid of 2x2 patches.
	images, err := tensor.FromSlice(arange(2*2*4*4), tensor.Shape{2, 2, 4, 4}, backend)
	require.NoError(t, err)

	patches, err := Patchify(images, 2)
	require.NoError(t, err)
	require.Equal(t, tensor.Shape{2, 4, 8}, patches.Shape())

	data := patches.Data()

	// Image 0, patch (0, 1): rows 0-1, cols 2-3 of each channel.
	assert.Equal(t, []float32{2, 3, 6, 7, 18, 19, 22, 23}, data[1*8:2*8])

	// Image 0, patch (1, 0): rows 2-3, cols 0-1.
	assert.Equal(t, []float32{8, 9, 12, 13, 24, 25, 28, 29}, data[2*8:3*8])

	// Image 1, patch (1, 1): offset by one image (32 values).
	assert.Equal(t, []float32{42, 43, 46, 47, 58, 59, 62, 63}, data[7*8:8*8])
}

func TestPatchify_Errors(t *testing.T) {
	backend := newBackend()

	_, err := Patchify(randImages(t, backend, tensor.Shape{1, 1, 28, 24}), 4)
	assert.ErrorIs(t, err, ErrNonSquareImage)

	_, err = Patchify(randImages(t, backend, tensor.Shape{1, 1, 28, 28}), 5)
	assert.ErrorIs(t, err, ErrPatchGrid)

	_, err = Patchify(randImages(t, backend, tensor.Shape{1, 1, 28, 28}), 0)
	assert.ErrorIs(t, err, ErrPatchGrid)

	_, err = Patchify(randImages(t, backend, tensor.Shape{1, 28, 28}), 7)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestPatchify_DoesNotModifyInput(t *testing.T) {
	backend := newBackend()

	images, err := tensor.FromSlice(arange(16), tensor.Shape{1, 1, 4, 4}, backend)
	require.NoError(t, err)

	_, err = Patchify(images, 2)
	require.NoError(t, err)
	assert.Equal(t, arange(16), images.Data())
}
