package nn

import (
	"github.com/bcisec/extractor/internal/autodiff/ops"
	"github.com/bcisec/extractor/internal/tensor"
)

// reluBackend is implemented by autodiff-aware backends that record ReLU.
type reluBackend interface {
	ReLU(x *tensor.RawTensor) *tensor.RawTensor
}

// eluBackend is implemented by autodiff-aware backends that record ELU.
type eluBackend interface {
	ELU(x *tensor.RawTensor, alpha float32) *tensor.RawTensor
}

// ReLU applies the rectified linear unit: max(0, x).
type ReLU[B tensor.Backend] struct {
	backend B
}

// NewReLU creates a ReLU activation.
func NewReLU[B tensor.Backend](backend B) *ReLU[B] {
	return &ReLU[B]{backend: backend}
}

// Forward applies the activation. With an autodiff backend the operation is
// recorded on the tape; otherwise it is computed directly.
func (r *ReLU[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if ad, ok := any(r.backend).(reluBackend); ok {
		return tensor.New[float32, B](ad.ReLU(input.Raw()), r.backend)
	}
	return tensor.New[float32, B](ops.ReLUForward(input.Raw(), r.backend.Device()), r.backend)
}

// Parameters returns an empty slice.
func (r *ReLU[B]) Parameters() []*Parameter[B] {
	return nil
}

// ELU applies the exponential linear unit, the standard activation in
// DeepConvNet-style EEG classifiers.
type ELU[B tensor.Backend] struct {
	alpha   float32
	backend B
}

// NewELU creates an ELU activation with alpha = 1.
func NewELU[B tensor.Backend](backend B) *ELU[B] {
	return &ELU[B]{alpha: 1.0, backend: backend}
}

// Forward applies the activation.
func (e *ELU[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if ad, ok := any(e.backend).(eluBackend); ok {
		return tensor.New[float32, B](ad.ELU(input.Raw(), e.alpha), e.backend)
	}
	return tensor.New[float32, B](ops.ELUForward(input.Raw(), e.alpha, e.backend.Device()), e.backend)
}

// Parameters returns an empty slice.
func (e *ELU[B]) Parameters() []*Parameter[B] {
	return nil
}
