package dataset

import (
	"compress/gzip"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

const (
	imagesMagic = 2051
	labelsMagic = 2049
)

// ReadImages reads an IDX image file.
//
// IDX file format for images:
//
//	magic number: 0x00000803 (2051)
//	number of images: 4 bytes
//	number of rows: 4 bytes (28)
//	number of cols: 4 bytes (28)
//	pixel data: unsigned bytes (0-255)
func ReadImages(r io.Reader) (images [][]byte, rows, cols int, err error) {
	var header [4]uint32
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return nil, 0, 0, fmt.Errorf("failed to read image header: %w", err)
	}
	if header[0] != imagesMagic {
		return nil, 0, 0, fmt.Errorf("invalid magic number: got %d, want %d", header[0], imagesMagic)
	}

	count, rows, cols := int(header[1]), int(header[2]), int(header[3])
	if rows == 0 || cols == 0 {
		return nil, 0, 0, fmt.Errorf("invalid image size %dx%d", rows, cols)
	}
	images = make([][]byte, count)
	for i := range images {
		images[i] = make([]byte, rows*cols)
		if _, err := io.ReadFull(r, images[i]); err != nil {
			return nil, 0, 0, fmt.Errorf("failed to read image %d: %w", i, err)
		}
	}
	return images, rows, cols, nil
}

// ReadLabels reads an IDX label file.
//
// IDX file format for labels:
//
//	magic number: 0x00000801 (2049)
//	number of labels: 4 bytes
//	label data: unsigned bytes (0-9)
func ReadLabels(r io.Reader) ([]byte, error) {
	var header [2]uint32
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return nil, fmt.Errorf("failed to read label header: %w", err)
	}
	if header[0] != labelsMagic {
		return nil, fmt.Errorf("invalid magic number: got %d, want %d", header[0], labelsMagic)
	}

	labels := make([]byte, header[1])
	if _, err := io.ReadFull(r, labels); err != nil {
		return nil, fmt.Errorf("failed to read labels: %w", err)
	}
	return labels, nil
}

// Load reads an MNIST-style dataset from dir.
//
// Expected files in dir (optionally gzip-compressed with a .gz suffix):
//   - train-images-idx3-ubyte (or t10k-images-idx3-ubyte for test)
//   - train-labels-idx1-ubyte (or t10k-labels-idx1-ubyte for test)
//
// Fashion-MNIST ships with the same names and format.
func Load(dir string, train bool) (*Dataset, error) {
	prefix := "t10k"
	if train {
		prefix = "train"
	}

	var (
		images     [][]byte
		rows, cols int
		labels     []byte
	)
	err := withFile(filepath.Join(dir, prefix+"-images-idx3-ubyte"), func(r io.Reader) error {
		var err error
		images, rows, cols, err = ReadImages(r)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load images: %w", err)
	}
	err = withFile(filepath.Join(dir, prefix+"-labels-idx1-ubyte"), func(r io.Reader) error {
		var err error
		labels, err = ReadLabels(r)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load labels: %w", err)
	}
	return New(images, labels, rows, cols)
}

// withFile opens name, or name.gz when only the compressed file exists.
func withFile(name string, fn func(io.Reader) error) error {
	file, err := os.Open(name)
	if errors.Is(err, fs.ErrNotExist) {
		return withGzip(name+".gz", fn)
	}
	if err != nil {
		return err
	}
	defer file.Close()
	return fn(file)
}

func withGzip(name string, fn func(io.Reader) error) error {
	file, err := os.Open(name)
	if err != nil {
		return err
	}
	defer file.Close()

	zr, err := gzip.NewReader(file)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	defer zr.Close()
	return fn(zr)
}
