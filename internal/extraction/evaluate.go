package extraction

import (
	"gonum.org/v1/gonum/stat"

	"github.com/bcisec/extractor/internal/autodiff"
	"github.com/bcisec/extractor/internal/data"
	"github.com/bcisec/extractor/internal/nn"
	"github.com/bcisec/extractor/internal/tensor"
)

// LossNorm selects how per-batch losses are averaged into the epoch loss.
type LossNorm int

const (
	// MeanOfMeans averages the per-batch mean losses, weighting every batch
	// equally. Slightly biased when the final batch is partial, but it is
	// the convention the extraction literature reports against.
	MeanOfMeans LossNorm = iota

	// SampleWeighted weights each batch mean by its size, giving the exact
	// per-sample mean loss.
	SampleWeighted
)

// EvalResult holds the outcome of one evaluation pass.
type EvalResult struct {
	Loss     float64
	Accuracy float64
}

// Evaluate computes loss and accuracy of model over the loader against
// ground-truth labels, without updating parameters. Runs with gradient
// recording off; any recording in progress is cleared.
//
// Accuracy is always sample-weighted: correct predictions over total
// examples.
func Evaluate[B tensor.Backend](
	model nn.Module[*autodiff.Backend[B]],
	loader *data.Loader[*autodiff.Backend[B]],
	norm LossNorm,
	backend *autodiff.Backend[B],
) EvalResult {
	tape := backend.Tape()
	tape.StopRecording()
	tape.Clear()

	criterion := nn.NewCrossEntropyLoss(backend)

	losses := make([]float64, 0, loader.NumBatches())
	weights := make([]float64, 0, loader.NumBatches())
	correct, total := 0, 0

	loader.Reset()
	for {
		batch, ok := loader.Next()
		if !ok {
			break
		}
		logits := model.Forward(batch.Inputs)
		loss := criterion.Forward(logits, batch.Labels)

		losses = append(losses, float64(loss.Item()))
		weights = append(weights, float64(batch.Size))
		correct += nn.CorrectCount(logits, batch.Labels)
		total += batch.Size
	}

	if total == 0 {
		return EvalResult{}
	}

	result := EvalResult{Accuracy: float64(correct) / float64(total)}
	switch norm {
	case SampleWeighted:
		result.Loss = stat.Mean(losses, weights)
	default:
		result.Loss = stat.Mean(losses, nil)
	}
	return result
}
