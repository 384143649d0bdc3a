package dataset

import (
	"errors"
	"iter"
	"math/rand"
)

// ErrInvalidBatchSize is returned for a non-positive batch size.
var ErrInvalidBatchSize = errors.New("dataset: batch size must be positive")

// LoaderOptions configures a Loader.
type LoaderOptions struct {
	BatchSize int   // Samples per batch; the last batch may be smaller
	Shuffle   bool  // Reorder samples on every pass
	Seed      int64 // Shuffle seed
}

// Loader batches an in-memory Dataset.
//
// With Shuffle, every call to Batches draws a new permutation from a
// seeded source, so a run is reproducible for a fixed seed.
type Loader struct {
	data *Dataset
	opts LoaderOptions
	rng  *rand.Rand
}

// NewLoader creates a loader over data.
func NewLoader(data *Dataset, opts LoaderOptions) (*Loader, error) {
	if opts.BatchSize <= 0 {
		return nil, ErrInvalidBatchSize
	}
	return &Loader{
		data: data,
		opts: opts,
		//nolint:gosec // shuffling, not security-critical
		rng: rand.New(rand.NewSource(opts.Seed)),
	}, nil
}

// Len returns the number of samples in one pass.
func (l *Loader) Len() int {
	return l.data.Len()
}

// NumBatches returns the number of batches in one pass.
func (l *Loader) NumBatches() int {
	return (l.data.Len() + l.opts.BatchSize - 1) / l.opts.BatchSize
}

// Batches iterates over one pass of the dataset.
func (l *Loader) Batches() iter.Seq2[Batch, error] {
	order := make([]int, l.data.Len())
	for i := range order {
		order[i] = i
	}
	if l.opts.Shuffle {
		l.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}

	return func(yield func(Batch, error) bool) {
		for start := 0; start < len(order); start += l.opts.BatchSize {
			end := min(start+l.opts.BatchSize, len(order))
			if !yield(l.data.batch(order[start:end]), nil) {
				return
			}
		}
	}
}
