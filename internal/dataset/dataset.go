// Package dataset feeds MNIST-style grayscale images to a VGG input.
//
// Samples are upsampled bilinearly to the network's spatial size,
// replicated across channels, scaled to [0, 1] and written in nchw order.
// Labels become one-hot vectors. An Iterator owns its own cursor, so
// several iterators may walk one Dataset independently.
package dataset

import (
	"fmt"
	"image"
	"io"
	"runtime"

	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"
)

// Dataset holds raw images and labels.
type Dataset struct {
	images [][]byte
	labels []byte
	rows   int
	cols   int
}

// New wraps raw images of rows x cols bytes and their labels.
func New(images [][]byte, labels []byte, rows, cols int) (*Dataset, error) {
	if len(images) != len(labels) {
		return nil, fmt.Errorf("image count (%d) != label count (%d)", len(images), len(labels))
	}
	for i, img := range images {
		if len(img) != rows*cols {
			return nil, fmt.Errorf("image %d has %d pixels, want %dx%d", i, len(img), rows, cols)
		}
	}
	return &Dataset{images: images, labels: labels, rows: rows, cols: cols}, nil
}

// Len returns the number of samples.
func (d *Dataset) Len() int {
	return len(d.images)
}

// Config controls how samples are converted.
type Config struct {
	Batch    int
	Channels int
	Size     int // output height and width
	Classes  int
	Workers  int // 0 means one per CPU
}

// DefaultConfig matches the VGG input: 16 x 3 x 224 x 224, 10 classes.
func DefaultConfig() Config {
	return Config{Batch: 16, Channels: 3, Size: 224, Classes: 10}
}

// Batch is one converted batch.
type Batch struct {
	Index  int       // batch number since the last Reset
	Images []float32 // [Batch, Channels, Size, Size]
	Labels []float32 // [Batch, Classes], one-hot
	Class  []int     // raw labels
}

// Iterator walks a Dataset batch by batch.
type Iterator struct {
	ds     *Dataset
	cfg    Config
	cursor int
	index  int
}

// NewIterator creates an iterator positioned at the first sample.
func NewIterator(ds *Dataset, cfg Config) (*Iterator, error) {
	if cfg.Batch <= 0 || cfg.Channels <= 0 || cfg.Size <= 0 || cfg.Classes <= 0 {
		return nil, fmt.Errorf("invalid iterator config %+v", cfg)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	return &Iterator{ds: ds, cfg: cfg}, nil
}

// Next converts the next Batch samples. It returns io.EOF once fewer than a
// full batch remain; the remainder is dropped.
func (it *Iterator) Next() (*Batch, error) {
	n, c, s := it.cfg.Batch, it.cfg.Channels, it.cfg.Size
	if it.cursor+n > it.ds.Len() {
		return nil, io.EOF
	}

	b := &Batch{
		Index:  it.index,
		Images: make([]float32, n*c*s*s),
		Labels: make([]float32, n*it.cfg.Classes),
		Class:  make([]int, n),
	}

	var g errgroup.Group
	g.SetLimit(it.cfg.Workers)
	for i := 0; i < n; i++ {
		i := i // per-iteration copy (go.mod targets go 1.21)
		sample := it.cursor + i
		g.Go(func() error {
			label := int(it.ds.labels[sample])
			if label >= it.cfg.Classes {
				return fmt.Errorf("sample %d: label %d out of range [0, %d)", sample, label, it.cfg.Classes)
			}
			it.convert(b.Images[i*c*s*s:(i+1)*c*s*s], it.ds.images[sample])
			b.Labels[i*it.cfg.Classes+label] = 1
			b.Class[i] = label
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	it.cursor += n
	it.index++
	return b, nil
}

// Reset rewinds the iterator to the first sample.
func (it *Iterator) Reset() {
	it.cursor = 0
	it.index = 0
}

// convert upsamples one grayscale image into dst as Channels x Size x Size.
func (it *Iterator) convert(dst []float32, pixels []byte) {
	src := &image.Gray{
		Pix:    pixels,
		Stride: it.ds.cols,
		Rect:   image.Rect(0, 0, it.ds.cols, it.ds.rows),
	}
	size := it.cfg.Size
	scaled := image.NewGray(image.Rect(0, 0, size, size))
	draw.BiLinear.Scale(scaled, scaled.Bounds(), src, src.Bounds(), draw.Src, nil)

	plane := size * size
	for y := 0; y < size; y++ {
		row := scaled.Pix[y*scaled.Stride : y*scaled.Stride+size]
		for x, p := range row {
			dst[y*size+x] = float32(p) / 255.0
		}
	}
	for ch := 1; ch < it.cfg.Channels; ch++ {
		copy(dst[ch*plane:(ch+1)*plane], dst[:plane])
	}
}
