// Package data provides EEG trial datasets, mini-batch loading and k-fold
// splitting for the extraction pipeline.
package data

import (
	"fmt"

	"github.com/bcisec/extractor/internal/tensor"
)

// Dataset holds EEG trials as flattened float32 samples plus int32 class
// labels. Every sample has the same shape, typically [1, channels, samples]
// for single-plane EEG input.
//
// A dataset may carry per-trial group ids: windows sliced from the same
// recording share a group, and the grouped k-fold splitter keeps a group
// inside a single fold bucket so no recording leaks across the train/test
// boundary. An ungrouped dataset treats every trial as its own group.
type Dataset struct {
	samples     [][]float32
	labels      []int32
	groups      []int
	sampleShape tensor.Shape
}

// NewDataset creates a dataset from flattened samples and labels.
// Each sample must have sampleShape.NumElements() values.
func NewDataset(samples [][]float32, labels []int32, sampleShape tensor.Shape) (*Dataset, error) {
	if len(samples) != len(labels) {
		return nil, fmt.Errorf("data: %d samples but %d labels", len(samples), len(labels))
	}
	if err := sampleShape.Validate(); err != nil {
		return nil, fmt.Errorf("data: invalid sample shape: %w", err)
	}
	want := sampleShape.NumElements()
	for i, s := range samples {
		if len(s) != want {
			return nil, fmt.Errorf("data: sample %d has %d values, want %d for shape %v", i, len(s), want, sampleShape)
		}
	}
	return &Dataset{
		samples:     samples,
		labels:      labels,
		sampleShape: sampleShape.Clone(),
	}, nil
}

// NewGroupedDataset creates a dataset whose trials carry group ids, one per
// trial, for group-aware fold splitting.
func NewGroupedDataset(samples [][]float32, labels []int32, groups []int, sampleShape tensor.Shape) (*Dataset, error) {
	d, err := NewDataset(samples, labels, sampleShape)
	if err != nil {
		return nil, err
	}
	if len(groups) != len(samples) {
		return nil, fmt.Errorf("data: %d samples but %d group ids", len(samples), len(groups))
	}
	d.groups = groups
	return d, nil
}

// Len returns the number of trials.
func (d *Dataset) Len() int {
	return len(d.samples)
}

// SampleShape returns the per-trial shape (without the batch dimension).
func (d *Dataset) SampleShape() tensor.Shape {
	return d.sampleShape
}

// Label returns the class label of trial i.
func (d *Dataset) Label(i int) int32 {
	return d.labels[i]
}

// Groups returns the per-trial group ids. For an ungrouped dataset every
// trial gets a distinct id, so grouped splitting degenerates to the plain
// per-trial split.
func (d *Dataset) Groups() []int {
	if d.groups != nil {
		return d.groups
	}
	groups := make([]int, len(d.samples))
	for i := range groups {
		groups[i] = i
	}
	return groups
}

// Subset returns a view-like dataset containing the trials at the given
// indices. Sample slices are shared with the parent.
func (d *Dataset) Subset(indices []int) *Dataset {
	samples := make([][]float32, len(indices))
	labels := make([]int32, len(indices))
	var groups []int
	if d.groups != nil {
		groups = make([]int, len(indices))
	}
	for i, idx := range indices {
		samples[i] = d.samples[idx]
		labels[i] = d.labels[idx]
		if groups != nil {
			groups[i] = d.groups[idx]
		}
	}
	return &Dataset{
		samples:     samples,
		labels:      labels,
		groups:      groups,
		sampleShape: d.sampleShape,
	}
}

// Batch holds one mini-batch as backend tensors.
type Batch[B tensor.Backend] struct {
	Inputs *tensor.Tensor[float32, B] // [batch, sampleShape...]
	Labels *tensor.Tensor[int32, B]   // [batch]
	Size   int
}

// batchTensors assembles the trials at indices into a pair of tensors.
func batchTensors[B tensor.Backend](d *Dataset, indices []int, backend B) *Batch[B] {
	batchShape := append(tensor.Shape{len(indices)}, d.sampleShape...)
	sampleLen := d.sampleShape.NumElements()

	inputs := make([]float32, len(indices)*sampleLen)
	labels := make([]int32, len(indices))
	for i, idx := range indices {
		copy(inputs[i*sampleLen:(i+1)*sampleLen], d.samples[idx])
		labels[i] = d.labels[idx]
	}

	return &Batch[B]{
		Inputs: tensor.MustFromSlice(inputs, batchShape, backend),
		Labels: tensor.MustFromSlice(labels, tensor.Shape{len(indices)}, backend),
		Size:   len(indices),
	}
}
