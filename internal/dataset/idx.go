package dataset

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"
)

// IDX magic numbers (unsigned byte data, 3 and 1 dimensions).
const (
	idxImagesMagic = 0x00000803 // 2051
	idxLabelsMagic = 0x00000801 // 2049
)

// idxImages is the decoded content of an IDX3 image file.
type idxImages struct {
	Rows   int
	Cols   int
	Pixels [][]byte // [num_images][rows*cols]
}

// openIDX opens path, falling back to path+".gz". Gzip-compressed files
// are decompressed transparently.
func openIDX(path string) (io.ReadCloser, error) {
	file, err := os.Open(path)
	if os.IsNotExist(err) && !strings.HasSuffix(path, ".gz") {
		file, err = os.Open(path + ".gz")
		if err == nil {
			path += ".gz"
		}
	}
	if err != nil {
		return nil, err
	}

	if !strings.HasSuffix(path, ".gz") {
		return file, nil
	}

	gz, err := gzip.NewReader(file)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &gzipFile{Reader: gz, file: file}, nil
}

type gzipFile struct {
	*gzip.Reader
	file *os.File
}

func (g *gzipFile) Close() error {
	gzErr := g.Reader.Close()
	if err := g.file.Close(); err != nil {
		return err
	}
	return gzErr
}

// readIDXImages reads an MNIST image file in IDX format.
//
// IDX file format for images:
//
//	magic number: 0x00000803 (2051)
//	number of images: 4 bytes
//	number of rows: 4 bytes (28)
//	number of cols: 4 bytes (28)
//	pixel data: unsigned bytes (0-255)
func readIDXImages(path string) (*idxImages, error) {
	rc, err := openIDX(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	return decodeIDXImages(bufio.NewReader(rc))
}

func decodeIDXImages(r io.Reader) (*idxImages, error) {
	var header [4]uint32
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return nil, fmt.Errorf("%w: read image header: %w", ErrBadIDX, err)
	}
	if header[0] != idxImagesMagic {
		return nil, fmt.Errorf("%w: invalid image magic number: got %d, want %d", ErrBadIDX, header[0], idxImagesMagic)
	}

	numImages, rows, cols := int(header[1]), int(header[2]), int(header[3])
	if rows == 0 || cols == 0 {
		return nil, fmt.Errorf("%w: empty image dimensions %dx%d", ErrBadIDX, rows, cols)
	}

	images := &idxImages{
		Rows:   rows,
		Cols:   cols,
		Pixels: make([][]byte, numImages),
	}
	for i := range images.Pixels {
		images.Pixels[i] = make([]byte, rows*cols)
		if _, err := io.ReadFull(r, images.Pixels[i]); err != nil {
			return nil, fmt.Errorf("%w: read image %d: %w", ErrBadIDX, i, err)
		}
	}
	return images, nil
}

// readIDXLabels reads an MNIST label file in IDX format.
//
// IDX file format for labels:
//
//	magic number: 0x00000801 (2049)
//	number of labels: 4 bytes
//	label data: unsigned bytes (0-9)
func readIDXLabels(path string) ([]byte, error) {
	rc, err := openIDX(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	return decodeIDXLabels(bufio.NewReader(rc))
}

func decodeIDXLabels(r io.Reader) ([]byte, error) {
	var header [2]uint32
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return nil, fmt.Errorf("%w: read label header: %w", ErrBadIDX, err)
	}
	if header[0] != idxLabelsMagic {
		return nil, fmt.Errorf("%w: invalid label magic number: got %d, want %d", ErrBadIDX, header[0], idxLabelsMagic)
	}

	labels := make([]byte, header[1])
	if _, err := io.ReadFull(r, labels); err != nil {
		return nil, fmt.Errorf("%w: read labels: %w", ErrBadIDX, err)
	}
	return labels, nil
}
