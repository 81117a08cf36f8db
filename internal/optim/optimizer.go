// Package optim implements gradient-based optimizers for training.
//
// Optimizers consume the gradient map produced by the autodiff tape's
// Backward pass and update parameters in place:
//
//	grads := backend.Backward(loss.Raw())
//	optimizer.Step(grads)
//	backend.Tape().Clear()
//
// Gradients live in the tape's gradient map rather than on parameters, so
// clearing the tape between iterations replaces the usual zero-grad call.
package optim

import (
	"github.com/bcisec/extractor/internal/nn"
	"github.com/bcisec/extractor/internal/tensor"
)

// Optimizer updates model parameters from a gradient map.
type Optimizer interface {
	// Step applies one update to every parameter that has an entry in grads.
	// Parameters absent from the map did not participate in the forward pass
	// and are skipped.
	Step(grads map[*tensor.RawTensor]*tensor.RawTensor)

	// GetLR returns the current learning rate.
	GetLR() float32
}

// getGradient retrieves the gradient for a parameter, or nil when the
// parameter was not part of the recorded computation.
func getGradient[B tensor.Backend](param *nn.Parameter[B], grads map[*tensor.RawTensor]*tensor.RawTensor) *tensor.RawTensor {
	if param == nil {
		return nil
	}
	return grads[param.Tensor().Raw()]
}
