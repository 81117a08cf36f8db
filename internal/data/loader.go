package data

import (
	"math/rand"

	"github.com/bcisec/extractor/internal/tensor"
)

// Loader iterates a dataset in mini-batches.
//
// When shuffling is enabled the order is drawn from the loader's own seeded
// source, so two loaders built with the same seed visit trials in the same
// order. A batch size larger than the dataset yields a single full batch.
type Loader[B tensor.Backend] struct {
	dataset   *Dataset
	batchSize int
	shuffle   bool
	rng       *rand.Rand
	order     []int
	pos       int
	backend   B
}

// LoaderConfig configures a Loader.
type LoaderConfig struct {
	BatchSize int
	Shuffle   bool
	Seed      int64
}

// NewLoader creates a loader over dataset. BatchSize must be positive.
func NewLoader[B tensor.Backend](dataset *Dataset, config LoaderConfig, backend B) *Loader[B] {
	if config.BatchSize <= 0 {
		panic("data: loader batch size must be positive")
	}
	l := &Loader[B]{
		dataset:   dataset,
		batchSize: config.BatchSize,
		shuffle:   config.Shuffle,
		rng:       rand.New(rand.NewSource(config.Seed)),
		backend:   backend,
	}
	l.Reset()
	return l
}

// Reset rewinds the loader and, when shuffling, draws a fresh order.
func (l *Loader[B]) Reset() {
	n := l.dataset.Len()
	if l.order == nil {
		l.order = make([]int, n)
	}
	for i := range l.order {
		l.order[i] = i
	}
	if l.shuffle {
		l.rng.Shuffle(n, func(i, j int) {
			l.order[i], l.order[j] = l.order[j], l.order[i]
		})
	}
	l.pos = 0
}

// Next returns the next mini-batch, or (nil, false) when the epoch is done.
// The last batch of an epoch may be smaller than the configured size.
func (l *Loader[B]) Next() (*Batch[B], bool) {
	if l.pos >= l.dataset.Len() {
		return nil, false
	}
	end := l.pos + l.batchSize
	if end > l.dataset.Len() {
		end = l.dataset.Len()
	}
	batch := batchTensors(l.dataset, l.order[l.pos:end], l.backend)
	l.pos = end
	return batch, true
}

// NumExamples returns the number of trials the loader visits per epoch.
func (l *Loader[B]) NumExamples() int {
	return l.dataset.Len()
}

// NumBatches returns the number of batches per epoch.
func (l *Loader[B]) NumBatches() int {
	n := l.dataset.Len()
	return (n + l.batchSize - 1) / l.batchSize
}
