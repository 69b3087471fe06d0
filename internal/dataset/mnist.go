package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
)

// MNIST image geometry.
const (
	Rows       = 28
	Cols       = 28
	Pixels     = Rows * Cols
	NumClasses = 10
)

// MNIST holds images and labels in memory.
type MNIST struct {
	Images [][]float32 // [num_samples][784], scaled to [0, 1]
	Labels []int32     // [num_samples]
}

// LoadMNIST loads the official MNIST IDX files from dir.
//
// Expected files in dir (each may also be gzip-compressed with a .gz suffix):
//   - train-images-idx3-ubyte, train-labels-idx1-ubyte (train == true)
//   - t10k-images-idx3-ubyte, t10k-labels-idx1-ubyte (train == false)
//
// maxSamples limits the number of samples read; 0 loads everything.
func LoadMNIST(dir string, train bool, maxSamples int) (*MNIST, error) {
	prefix := "t10k"
	if train {
		prefix = "train"
	}
	imageFile := filepath.Join(dir, prefix+"-images-idx3-ubyte")
	labelFile := filepath.Join(dir, prefix+"-labels-idx1-ubyte")

	images, err := readIDXImages(imageFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load images: %w", err)
	}
	labels, err := readIDXLabels(labelFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load labels: %w", err)
	}

	return fromIDX(images, labels, maxSamples)
}

func fromIDX(images *idxImages, labels []byte, maxSamples int) (*MNIST, error) {
	if images.Rows != Rows || images.Cols != Cols {
		return nil, fmt.Errorf("%w: image size %dx%d, want %dx%d", ErrBadIDX, images.Rows, images.Cols, Rows, Cols)
	}
	if len(images.Pixels) != len(labels) {
		return nil, fmt.Errorf("%w: image count (%d) != label count (%d)", ErrBadIDX, len(images.Pixels), len(labels))
	}

	n := limit(len(labels), maxSamples)
	data := &MNIST{
		Images: make([][]float32, n),
		Labels: make([]int32, n),
	}
	for i := 0; i < n; i++ {
		if labels[i] >= NumClasses {
			return nil, fmt.Errorf("%w: sample %d has label %d", ErrBadLabel, i, labels[i])
		}
		data.Labels[i] = int32(labels[i])

		img := make([]float32, Pixels)
		for j, px := range images.Pixels[i] {
			img[j] = float32(px) / 255.0
		}
		data.Images[i] = img
	}
	return data, nil
}

// LoadMNISTCSV loads a Kaggle-style CSV file:
//
//	label,pixel0,pixel1,...,pixel783
//	5,0,0,12,...,0
//
// The first row is a header and is skipped. Pixels are scaled to [0, 1].
func LoadMNISTCSV(path string, maxSamples int) (*MNIST, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return readCSV(file, maxSamples)
}

func readCSV(r io.Reader, maxSamples int) (*MNIST, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 1 + Pixels
	reader.ReuseRecord = true

	if _, err := reader.Read(); err != nil {
		return nil, fmt.Errorf("%w: missing header: %w", ErrBadCSV, err)
	}

	data := &MNIST{}
	for row := 1; maxSamples <= 0 || len(data.Labels) < maxSamples; row++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %w", ErrBadCSV, row, err)
		}

		label, err := strconv.Atoi(record[0])
		if err != nil {
			return nil, fmt.Errorf("%w: invalid label at row %d: %w", ErrBadCSV, row, err)
		}
		if label < 0 || label >= NumClasses {
			return nil, fmt.Errorf("%w: row %d has label %d", ErrBadLabel, row, label)
		}

		img := make([]float32, Pixels)
		for j := range img {
			px, err := strconv.Atoi(record[j+1])
			if err != nil {
				return nil, fmt.Errorf("%w: invalid pixel at row %d, column %d: %w", ErrBadCSV, row, j+1, err)
			}
			img[j] = float32(px) / 255.0
		}

		data.Images = append(data.Images, img)
		data.Labels = append(data.Labels, int32(label))
	}

	if len(data.Labels) == 0 {
		return nil, fmt.Errorf("%w: no samples", ErrBadCSV)
	}
	return data, nil
}

// NumSamples returns the number of samples in the dataset.
func (d *MNIST) NumSamples() int {
	return len(d.Images)
}

// Split divides the dataset into a training part and a validation part
// holding valRatio of the samples. The underlying slices are shared.
func (d *MNIST) Split(valRatio float32) (train, val *MNIST) {
	n := d.NumSamples()
	splitIdx := int(float32(n) * (1.0 - valRatio))
	splitIdx = max(0, min(n, splitIdx))

	return &MNIST{Images: d.Images[:splitIdx], Labels: d.Labels[:splitIdx]},
		&MNIST{Images: d.Images[splitIdx:], Labels: d.Labels[splitIdx:]}
}

func limit(n, maxSamples int) int {
	if maxSamples > 0 && n > maxSamples {
		return maxSamples
	}
	return n
}
