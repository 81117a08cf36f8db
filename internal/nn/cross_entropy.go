package nn

import (
	"fmt"

	"github.com/bcisec/extractor/internal/autodiff/ops"
	"github.com/bcisec/extractor/internal/tensor"
)

// crossEntropyBackend is implemented by autodiff-aware backends that record
// the fused cross-entropy operation.
type crossEntropyBackend interface {
	CrossEntropy(logits, targets *tensor.RawTensor) *tensor.RawTensor
}

// CrossEntropyLoss computes the mean cross-entropy between logits of shape
// [batch, classes] and int32 class indices of shape [batch].
type CrossEntropyLoss[B tensor.Backend] struct {
	backend B
}

// NewCrossEntropyLoss creates a cross-entropy loss criterion.
func NewCrossEntropyLoss[B tensor.Backend](backend B) *CrossEntropyLoss[B] {
	return &CrossEntropyLoss[B]{backend: backend}
}

// Forward returns a scalar loss tensor of shape [1]. With an autodiff backend
// the operation is recorded on the tape so gradients flow to the logits.
func (c *CrossEntropyLoss[B]) Forward(logits *tensor.Tensor[float32, B], targets *tensor.Tensor[int32, B]) *tensor.Tensor[float32, B] {
	if logits.Shape().NumDims() != 2 {
		panic(fmt.Sprintf("nn: cross-entropy expects 2D logits, got shape %v", logits.Shape()))
	}
	if ad, ok := any(c.backend).(crossEntropyBackend); ok {
		return tensor.New[float32, B](ad.CrossEntropy(logits.Raw(), targets.Raw()), c.backend)
	}
	return tensor.New[float32, B](ops.CrossEntropyForward(logits.Raw(), targets.Raw(), c.backend.Device()), c.backend)
}

// Argmax returns the index of the largest logit per row as int32 class
// predictions of shape [batch]. The result is detached from any tape, which
// is what pseudo-labeling a student from a frozen victim needs.
func Argmax[B tensor.Backend](logits *tensor.Tensor[float32, B], backend B) *tensor.Tensor[int32, B] {
	shape := logits.Shape()
	if shape.NumDims() != 2 {
		panic(fmt.Sprintf("nn: argmax expects 2D logits, got shape %v", shape))
	}
	batch, classes := shape[0], shape[1]
	data := logits.Raw().AsFloat32()

	out := make([]int32, batch)
	for i := 0; i < batch; i++ {
		row := data[i*classes : (i+1)*classes]
		best := 0
		for j := 1; j < classes; j++ {
			if row[j] > row[best] {
				best = j
			}
		}
		out[i] = int32(best)
	}
	return tensor.MustFromSlice(out, tensor.Shape{batch}, backend)
}

// Accuracy returns the fraction of rows whose argmax matches the target
// class index.
func Accuracy[B tensor.Backend](logits *tensor.Tensor[float32, B], targets *tensor.Tensor[int32, B]) float32 {
	shape := logits.Shape()
	if shape.NumDims() != 2 {
		panic(fmt.Sprintf("nn: accuracy expects 2D logits, got shape %v", shape))
	}
	batch, classes := shape[0], shape[1]
	if targets.Shape().NumElements() != batch {
		panic(fmt.Sprintf("nn: accuracy batch mismatch: %d logits rows vs %d targets", batch, targets.Shape().NumElements()))
	}
	data := logits.Raw().AsFloat32()
	labels := targets.Raw().AsInt32()

	correct := 0
	for i := 0; i < batch; i++ {
		row := data[i*classes : (i+1)*classes]
		best := 0
		for j := 1; j < classes; j++ {
			if row[j] > row[best] {
				best = j
			}
		}
		if int32(best) == labels[i] {
			correct++
		}
	}
	return float32(correct) / float32(batch)
}

// CorrectCount returns how many rows of logits predict the matching target.
// Callers accumulating accuracy across batches of uneven size need the raw
// count rather than a per-batch mean.
func CorrectCount[B tensor.Backend](logits *tensor.Tensor[float32, B], targets *tensor.Tensor[int32, B]) int {
	shape := logits.Shape()
	batch, classes := shape[0], shape[1]
	data := logits.Raw().AsFloat32()
	labels := targets.Raw().AsInt32()

	correct := 0
	for i := 0; i < batch; i++ {
		row := data[i*classes : (i+1)*classes]
		best := 0
		for j := 1; j < classes; j++ {
			if row[j] > row[best] {
				best = j
			}
		}
		if int32(best) == labels[i] {
			correct++
		}
	}
	return correct
}
