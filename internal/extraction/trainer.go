// Package extraction implements the model-extraction training pipeline: the
// distillation training step, the evaluation step, and the k-fold
// orchestrator with per-fold and global-best checkpointing.
package extraction

import (
	"gonum.org/v1/gonum/stat"

	"github.com/bcisec/extractor/internal/attack"
	"github.com/bcisec/extractor/internal/autodiff"
	"github.com/bcisec/extractor/internal/data"
	"github.com/bcisec/extractor/internal/nn"
	"github.com/bcisec/extractor/internal/optim"
	"github.com/bcisec/extractor/internal/tensor"
)

// TrainEpoch runs one distillation pass over the loader, updating the
// student in place, and returns the mean per-batch loss.
//
// Per batch: the frozen victim labels the clean inputs (argmax over its
// logits), the adversarial generator perturbs the batch against those
// pseudo-labels, and the student is fit to predict the pseudo-labels on
// both the clean and the perturbed inputs:
//
//	loss = CE(student(x), pseudo) + CE(student(x_adv), pseudo)
//
// The victim's forward pass runs with recording off, so no gradient ever
// reaches it.
func TrainEpoch[B tensor.Backend](
	victim nn.Module[*autodiff.Backend[B]],
	student nn.Module[*autodiff.Backend[B]],
	loader *data.Loader[*autodiff.Backend[B]],
	optimizer optim.Optimizer,
	attackConfig attack.Config,
	backend *autodiff.Backend[B],
) float64 {
	tape := backend.Tape()
	criterion := nn.NewCrossEntropyLoss(backend)

	losses := make([]float64, 0, loader.NumBatches())
	loader.Reset()
	for {
		batch, ok := loader.Next()
		if !ok {
			break
		}

		tape.StopRecording()
		victimLogits := victim.Forward(batch.Inputs)
		pseudo := nn.Argmax(victimLogits, backend)

		adv := attack.Generate(student, batch.Inputs, pseudo, attackConfig, backend)

		tape.Clear()
		tape.StartRecording()
		cleanLogits := student.Forward(batch.Inputs)
		advLogits := student.Forward(adv.Adversarial)
		loss := criterion.Forward(cleanLogits, pseudo).Add(criterion.Forward(advLogits, pseudo))

		grads := backend.Backward(loss.Raw())
		tape.StopRecording()
		optimizer.Step(grads)
		tape.Clear()

		losses = append(losses, float64(loss.Item()))
	}

	if len(losses) == 0 {
		return 0
	}
	return stat.Mean(losses, nil)
}
