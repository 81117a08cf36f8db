// Package attack implements the gradient-sign adversarial example generator
// used to probe the victim model near its decision boundary.
package attack

import (
	"github.com/bcisec/extractor/internal/autodiff"
	"github.com/bcisec/extractor/internal/nn"
	"github.com/bcisec/extractor/internal/tensor"
)

// Config holds PGD hyperparameters. Zero values fall back to the defaults
// used by the extraction pipeline (30 steps, step size 0.001).
type Config struct {
	Steps int
	Alpha float32
}

func (c Config) withDefaults() Config {
	if c.Steps == 0 {
		c.Steps = 30
	}
	if c.Alpha == 0 {
		c.Alpha = 0.001
	}
	return c
}

// Result holds the perturbed batch and the model's accuracy on it.
type Result[B tensor.Backend] struct {
	// Adversarial is the perturbed input batch, same shape as the original.
	Adversarial *tensor.Tensor[float32, *autodiff.Backend[B]]

	// Accuracy is the fraction of the batch the model still classifies as
	// the reference labels, measured on the logits of the final gradient
	// step. The final perturbation is applied after that forward pass, so
	// this reads the batch one step before the returned examples.
	Accuracy float32
}

// Generate runs iterative gradient-sign ascent on the cross-entropy loss of
// model against the given labels.
//
// Each step records one forward pass on the tape, differentiates the negated
// loss with respect to the current input, and moves every input element one
// alpha in the direction of the gradient sign. Negating the loss turns the
// descent-form update into ascent on the true loss.
//
// The tape is cleared on entry and exit; callers lose any recording in
// progress.
func Generate[B tensor.Backend](
	model nn.Module[*autodiff.Backend[B]],
	inputs *tensor.Tensor[float32, *autodiff.Backend[B]],
	labels *tensor.Tensor[int32, *autodiff.Backend[B]],
	config Config,
	backend *autodiff.Backend[B],
) Result[B] {
	config = config.withDefaults()

	criterion := nn.NewCrossEntropyLoss(backend)
	tape := backend.Tape()

	xAdv := inputs.Clone()
	var lastLogits *tensor.Tensor[float32, *autodiff.Backend[B]]

	for step := 0; step < config.Steps; step++ {
		tape.Clear()
		tape.StartRecording()

		logits := model.Forward(xAdv)
		loss := criterion.Forward(logits, labels)
		negLoss := loss.MulScalar(-1)

		grads := backend.Backward(negLoss.Raw())
		tape.StopRecording()

		if grad, ok := grads[xAdv.Raw()]; ok {
			applySignedStep(xAdv.Raw(), grad, config.Alpha)
		}
		lastLogits = logits
	}
	tape.Clear()

	return Result[B]{
		Adversarial: xAdv,
		Accuracy:    nn.Accuracy(lastLogits, labels),
	}
}

// applySignedStep performs x -= alpha * sign(grad) element-wise in place.
// Zero gradient entries leave the input untouched.
func applySignedStep(x, grad *tensor.RawTensor, alpha float32) {
	xData := x.AsFloat32()
	gradData := grad.AsFloat32()
	for i := range xData {
		switch {
		case gradData[i] > 0:
			xData[i] -= alpha
		case gradData[i] < 0:
			xData[i] += alpha
		}
	}
}
