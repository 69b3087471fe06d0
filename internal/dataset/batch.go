package dataset

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/born-ml/born/tensor"
)

// Batch is a mini-batch of images shaped (N, 1, 28, 28) and labels shaped (N).
type Batch[B tensor.Backend] struct {
	Images *tensor.Tensor[float32, B]
	Labels *tensor.Tensor[int32, B]
	Size   int
}

// Batches splits data into mini-batches of batchSize samples. The last batch
// may be smaller. When shuffle is set the sample order is permuted with rng,
// which must then be non-nil.
func Batches[B tensor.Backend](
	data *MNIST,
	batchSize int,
	shuffle bool,
	rng *rand.Rand,
	backend B,
) ([]*Batch[B], error) {
	n := data.NumSamples()
	if n != len(data.Labels) {
		return nil, fmt.Errorf("images and labels length mismatch: %d != %d", n, len(data.Labels))
	}
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}

	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	if shuffle {
		if rng == nil {
			return nil, errors.New("shuffle requires a random source")
		}
		rng.Shuffle(n, func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
	}

	batches := make([]*Batch[B], 0, (n+batchSize-1)/batchSize)
	for start := 0; start < n; start += batchSize {
		end := min(start+batchSize, n)
		size := end - start

		imagesRaw, err := tensor.NewRaw(tensor.Shape{size, 1, Rows, Cols}, tensor.Float32, backend.Device())
		if err != nil {
			return nil, fmt.Errorf("failed to create images tensor: %w", err)
		}
		labelsRaw, err := tensor.NewRaw(tensor.Shape{size}, tensor.Int32, backend.Device())
		if err != nil {
			return nil, fmt.Errorf("failed to create labels tensor: %w", err)
		}

		images := imagesRaw.AsFloat32()
		labels := labelsRaw.AsInt32()
		for j, idx := range indices[start:end] {
			if len(data.Images[idx]) != Pixels {
				return nil, fmt.Errorf("sample %d has %d pixels, want %d", idx, len(data.Images[idx]), Pixels)
			}
			copy(images[j*Pixels:(j+1)*Pixels], data.Images[idx])
			labels[j] = data.Labels[idx]
		}

		batches = append(batches, &Batch[B]{
			Images: tensor.New[float32, B](imagesRaw, backend),
			Labels: tensor.New[int32, B](labelsRaw, backend),
			Size:   size,
		})
	}
	return batches, nil
}
