package vit

import (
	"fmt"

	"github.com/born-ml/born/tensor"
)

// Patchify cuts a batch of square images into a row-major grid of
// non-overlapping patches and flattens each patch.
//
// Shapes:
//   - images: [N, C, H, W] with H == W and H divisible by nPatches
//   - output: [N, nPatches², C * s * s] where s = H / nPatches
//
// Patch (i, j) lands at sequence index i*nPatches + j and is flattened in
// channel, row, column order.
//
// Example:
//
//	images := tensor.Rand[float32](tensor.Shape{2, 1, 28, 28}, backend)
//	patches, err := vit.Patchify(images, 7)  // [2, 49, 16]
func Patchify[B tensor.Backend](images *tensor.Tensor[float32, B], nPatches int) (*tensor.Tensor[float32, B], error) {
	shape := images.Shape()
	if len(shape) != 4 {
		return nil, fmt.Errorf("%w: patchify expects [N, C, H, W], got %v", ErrInvalidInput, shape)
	}
	n, c, h, w := shape[0], shape[1], shape[2], shape[3]
	if h != w {
		return nil, fmt.Errorf("%w: got %dx%d", ErrNonSquareImage, h, w)
	}
	if nPatches <= 0 || h%nPatches != 0 {
		return nil, fmt.Errorf("%w: size %d, n_patches %d", ErrPatchGrid, h, nPatches)
	}

	s := h / nPatches
	patchDim := c * s * s
	numPatches := nPatches * nPatches

	src := images.Data()
	dst := make([]float32, n*numPatches*patchDim)

	imageStride := c * h * w
	channelStride := h * w
	for idx := 0; idx < n; idx++ {
		image := src[idx*imageStride : (idx+1)*imageStride]
		for i := 0; i < nPatches; i++ {
			for j := 0; j < nPatches; j++ {
				out := dst[(idx*numPatches+i*nPatches+j)*patchDim:]
				k := 0
				for ch := 0; ch < c; ch++ {
					for r := i * s; r < (i+1)*s; r++ {
						row := image[ch*channelStride+r*w:]
						k += copy(out[k:k+s], row[j*s:(j+1)*s])
					}
				}
			}
		}
	}

	return tensor.FromSlice(dst, tensor.Shape{n, numPatches, patchDim}, images.Backend())
}
