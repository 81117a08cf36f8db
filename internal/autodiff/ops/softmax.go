package ops

import (
	"fmt"

	"github.com/bcisec/extractor/internal/tensor"
)

// SoftmaxOp records a softmax along the last dimension.
//
// Backward (per row):
//
//	∂L/∂x_j = s_j * (g_j - Σ_i g_i * s_i)
//
// where s is the softmax output and g the output gradient.
type SoftmaxOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// NewSoftmaxOp creates a new SoftmaxOp.
func NewSoftmaxOp(input, output *tensor.RawTensor) *SoftmaxOp {
	return &SoftmaxOp{input: input, output: output}
}

// Backward computes the softmax input gradient.
func (op *SoftmaxOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	grad, err := tensor.NewRaw(op.input.Shape(), tensor.Float32, op.input.Device())
	if err != nil {
		panic(fmt.Sprintf("softmax backward: %v", err))
	}

	shape := op.input.Shape()
	rowLen := shape[len(shape)-1]
	rows := op.input.NumElements() / rowLen

	sData := op.output.AsFloat32()
	gData := outputGrad.AsFloat32()
	out := grad.AsFloat32()

	for r := 0; r < rows; r++ {
		s := sData[r*rowLen : (r+1)*rowLen]
		g := gData[r*rowLen : (r+1)*rowLen]

		var dot float32
		for i := range s {
			dot += g[i] * s[i]
		}
		for i := range s {
			out[r*rowLen+i] = s[i] * (g[i] - dot)
		}
	}
	return []*tensor.RawTensor{grad}
}

// Inputs returns [x].
func (op *SoftmaxOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.input} }

// Output returns softmax(x).
func (op *SoftmaxOp) Output() *tensor.RawTensor { return op.output }
