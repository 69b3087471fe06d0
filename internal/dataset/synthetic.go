package dataset

import "math/rand"

// Synthetic generates n deterministic digit-like images for offline runs.
//
// Each class c draws a horizontal bar whose vertical position depends on c,
// plus a vertical bar for odd classes, then adds uniform noise. The classes
// are separable enough for a small model to learn within a few epochs.
func Synthetic(n int, seed int64) *MNIST {
	rng := rand.New(rand.NewSource(seed))

	data := &MNIST{
		Images: make([][]float32, n),
		Labels: make([]int32, n),
	}
	for i := 0; i < n; i++ {
		label := i % NumClasses
		img := make([]float32, Pixels)

		top := 2 + label*2 + rng.Intn(2)
		for row := top; row < top+4 && row < Rows; row++ {
			for col := 4; col < 24; col++ {
				img[row*Cols+col] = 0.8
			}
		}
		if label%2 == 1 {
			col := 6 + label + rng.Intn(2)
			for row := 4; row < 24; row++ {
				img[row*Cols+col] = 1.0
			}
		}
		for j := range img {
			img[j] = min(1, img[j]+0.1*rng.Float32())
		}

		data.Images[i] = img
		data.Labels[i] = int32(label)
	}

	rng.Shuffle(n, func(a, b int) {
		data.Images[a], data.Images[b] = data.Images[b], data.Images[a]
		data.Labels[a], data.Labels[b] = data.Labels[b], data.Labels[a]
	})
	return data
}
