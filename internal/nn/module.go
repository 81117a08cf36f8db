// Package nn implements the neural network building blocks used by the
// victim and student classifiers: Module/Parameter, Linear, Conv2D,
// MaxPool2D, activations, cross-entropy loss and weight initialization.
//
// Design follows the PyTorch Module pattern adapted to Go generics: a module
// is generic over its compute backend, and evaluation ("no-grad") mode is a
// property of the autodiff backend's tape rather than of the module.
package nn

import "github.com/bcisec/extractor/internal/tensor"

// Module is the base interface for all neural network components.
type Module[B tensor.Backend] interface {
	// Forward computes the output of the module for an input batch.
	Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]

	// Parameters returns all trainable parameters of this module,
	// including nested module parameters. Modules without trainable
	// parameters return an empty slice.
	Parameters() []*Parameter[B]
}

// StateModule is a Module whose parameters can be snapshotted and restored
// as a flat name → tensor mapping. Checkpointing works on this interface.
type StateModule[B tensor.Backend] interface {
	Module[B]

	// StateDict returns the module's parameter state.
	StateDict() map[string]*tensor.RawTensor

	// LoadStateDict restores the module's parameters from a state dict.
	LoadStateDict(stateDict map[string]*tensor.RawTensor) error
}
