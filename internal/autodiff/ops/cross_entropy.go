package ops

import (
	"fmt"
	"math"

	"github.com/bcisec/extractor/internal/tensor"
)

// CrossEntropyOp records the fused softmax + cross-entropy loss.
//
// Forward:
//
//	Loss = mean(-log_softmax(logits)[target])
//
// Backward:
//
//	∂L/∂logits = (softmax(logits) - y_one_hot) / batch_size
//
// Logits are [batch, classes]; targets are [batch] int32 class indices.
// The fused gradient is why softmax and cross-entropy are combined here
// instead of being chained as separate tape entries.
type CrossEntropyOp struct {
	logits  *tensor.RawTensor
	targets *tensor.RawTensor
	output  *tensor.RawTensor
}

// NewCrossEntropyOp creates a new cross-entropy operation.
func NewCrossEntropyOp(logits, targets, output *tensor.RawTensor) *CrossEntropyOp {
	return &CrossEntropyOp{logits: logits, targets: targets, output: output}
}

// Inputs returns [logits]. Targets are class indices and receive no gradient.
func (op *CrossEntropyOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.logits}
}

// Output returns the scalar loss.
func (op *CrossEntropyOp) Output() *tensor.RawTensor { return op.output }

// Backward computes the gradient with respect to logits.
func (op *CrossEntropyOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	shape := op.logits.Shape()
	if len(shape) != 2 {
		panic("cross entropy backward: logits must be 2D [batch, classes]")
	}
	batchSize, numClasses := shape[0], shape[1]

	grad, err := tensor.NewRaw(shape, tensor.Float32, op.logits.Device())
	if err != nil {
		panic(fmt.Sprintf("cross entropy backward: %v", err))
	}

	logitsData := op.logits.AsFloat32()
	targetsData := op.targets.AsInt32()
	gradData := grad.AsFloat32()
	gradScale := outputGrad.AsFloat32()[0]

	for b := 0; b < batchSize; b++ {
		row := logitsData[b*numClasses : (b+1)*numClasses]
		probs := softmaxRow(row)
		target := int(targetsData[b])
		for i := 0; i < numClasses; i++ {
			g := probs[i]
			if i == target {
				g -= 1.0
			}
			gradData[b*numClasses+i] = gradScale * g / float32(batchSize)
		}
	}
	return []*tensor.RawTensor{grad}
}

// CrossEntropyForward computes mean(-log_softmax(logits)[target]) as a
// single-element tensor, using the log-sum-exp trick.
func CrossEntropyForward(logits, targets *tensor.RawTensor, device tensor.Device) *tensor.RawTensor {
	shape := logits.Shape()
	if len(shape) != 2 {
		panic("cross entropy: logits must be 2D [batch, classes]")
	}
	batchSize, numClasses := shape[0], shape[1]

	logitsData := logits.AsFloat32()
	targetsData := targets.AsInt32()
	if len(targetsData) != batchSize {
		panic(fmt.Sprintf("cross entropy: %d targets for batch of %d", len(targetsData), batchSize))
	}

	var total float32
	for b := 0; b < batchSize; b++ {
		row := logitsData[b*numClasses : (b+1)*numClasses]
		target := int(targetsData[b])
		if target < 0 || target >= numClasses {
			panic(fmt.Sprintf("cross entropy: target %d out of range [0, %d)", target, numClasses))
		}

		maxVal := row[0]
		for _, v := range row[1:] {
			if v > maxVal {
				maxVal = v
			}
		}
		var sumExp float64
		for _, v := range row {
			sumExp += math.Exp(float64(v - maxVal))
		}
		logSumExp := float64(maxVal) + math.Log(sumExp)
		total += float32(logSumExp - float64(row[target]))
	}

	result, err := tensor.NewRaw(tensor.Shape{1}, tensor.Float32, device)
	if err != nil {
		panic(fmt.Sprintf("cross entropy: %v", err))
	}
	result.AsFloat32()[0] = total / float32(batchSize)
	return result
}

// softmaxRow computes a numerically stable softmax for one row.
func softmaxRow(row []float32) []float32 {
	probs := make([]float32, len(row))

	maxVal := row[0]
	for _, v := range row[1:] {
		if v > maxVal {
			maxVal = v
		}
	}

	var sum float32
	for i, v := range row {
		probs[i] = float32(math.Exp(float64(v - maxVal)))
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}
