// Package dataset provides image classification data for training:
// the CIFAR-10 binary reader, a synthetic generator and a batching loader.
package dataset

import (
	"fmt"
	"iter"

	"github.com/born-ml/cifarnet/internal/tensor"
)

// Batch is one mini-batch of images [B, C, H, W] and their labels.
type Batch struct {
	Images *tensor.Tensor
	Labels []int32
}

// Size returns the number of samples in the batch.
func (b Batch) Size() int {
	return len(b.Labels)
}

// Source yields mini-batches. Each call to Batches starts a new pass.
type Source interface {
	// Len returns the number of samples in one pass.
	Len() int

	// Batches iterates over one pass. A non-nil error ends the pass.
	Batches() iter.Seq2[Batch, error]
}

// Dataset holds normalized images in channel-planar layout.
type Dataset struct {
	Channels int
	Height   int
	Width    int
	Classes  int
	images   []float64 // N * Channels * Height * Width
	labels   []int32
}

// NewDataset wraps images and labels. images must hold len(labels)
// samples of channels*height*width values each.
func NewDataset(images []float64, labels []int32, channels, height, width, classes int) (*Dataset, error) {
	sampleSize := channels * height * width
	if sampleSize <= 0 {
		return nil, fmt.Errorf("dataset: invalid sample shape %dx%dx%d", channels, height, width)
	}
	if len(images) != len(labels)*sampleSize {
		return nil, fmt.Errorf("dataset: %d values for %d samples of %d", len(images), len(labels), sampleSize)
	}
	for i, l := range labels {
		if l < 0 || int(l) >= classes {
			return nil, fmt.Errorf("dataset: label %d of sample %d outside [0, %d)", l, i, classes)
		}
	}
	return &Dataset{
		Channels: channels,
		Height:   height,
		Width:    width,
		Classes:  classes,
		images:   images,
		labels:   labels,
	}, nil
}

// Len returns the number of samples.
func (d *Dataset) Len() int {
	return len(d.labels)
}

// SampleSize returns the number of values per image.
func (d *Dataset) SampleSize() int {
	return d.Channels * d.Height * d.Width
}

// Sample returns the image values and label at index i. The slice aliases
// the dataset storage.
func (d *Dataset) Sample(i int) ([]float64, int32) {
	size := d.SampleSize()
	return d.images[i*size : (i+1)*size], d.labels[i]
}

// Head returns a view of the first n samples (all of them when n <= 0 or
// n >= Len).
func (d *Dataset) Head(n int) *Dataset {
	if n <= 0 || n >= d.Len() {
		return d
	}
	head := *d
	head.images = d.images[:n*d.SampleSize()]
	head.labels = d.labels[:n]
	return &head
}

// Split divides the dataset at sample n into two views. n is clamped to
// [0, Len].
func (d *Dataset) Split(n int) (*Dataset, *Dataset) {
	n = min(max(n, 0), d.Len())
	size := d.SampleSize()
	head, tail := *d, *d
	head.images, head.labels = d.images[:n*size], d.labels[:n]
	tail.images, tail.labels = d.images[n*size:], d.labels[n:]
	return &head, &tail
}

// ClassCounts returns how many samples carry each label.
func (d *Dataset) ClassCounts() []int {
	counts := make([]int, d.Classes)
	for _, l := range d.labels {
		counts[l]++
	}
	return counts
}

// batch gathers the samples at indices into a Batch.
func (d *Dataset) batch(indices []int) Batch {
	size := d.SampleSize()
	images := tensor.Zeros(tensor.Shape{len(indices), d.Channels, d.Height, d.Width})
	labels := make([]int32, len(indices))
	dst := images.Data()
	for i, idx := range indices {
		copy(dst[i*size:(i+1)*size], d.images[idx*size:(idx+1)*size])
		labels[i] = d.labels[idx]
	}
	return Batch{Images: images, Labels: labels}
}
