package ops

import "github.com/bcisec/extractor/internal/tensor"

// MaxPool2DOp records a max pooling operation.
//
// Max indices are captured at construction time (i.e. during the forward
// pass); the backward pass routes each output gradient to the single input
// position that held the maximum.
type MaxPool2DOp struct {
	input      *tensor.RawTensor
	output     *tensor.RawTensor
	maxIndices []int
}

// NewMaxPool2DOp creates a new MaxPool2DOp and records the max positions.
func NewMaxPool2DOp(input, output *tensor.RawTensor, kernelH, kernelW, strideH, strideW int) *MaxPool2DOp {
	return &MaxPool2DOp{
		input:      input,
		output:     output,
		maxIndices: computeMaxIndices(input, output, kernelH, kernelW, strideH, strideW),
	}
}

// computeMaxIndices finds which input position had the max value for each output position.
func computeMaxIndices(input, output *tensor.RawTensor, kernelH, kernelW, strideH, strideW int) []int {
	inShape := input.Shape()
	outShape := output.Shape()

	n, c, h, w := inShape[0], inShape[1], inShape[2], inShape[3]
	hOut, wOut := outShape[2], outShape[3]

	inData := input.AsFloat32()
	maxIndices := make([]int, n*c*hOut*wOut)

	outIdx := 0
	for b := 0; b < n; b++ {
		for ch := 0; ch < c; ch++ {
			for oh := 0; oh < hOut; oh++ {
				for ow := 0; ow < wOut; ow++ {
					maxVal := float32(-3.4e38)
					maxPos := 0
					for kh := 0; kh < kernelH; kh++ {
						for kw := 0; kw < kernelW; kw++ {
							idx := ((b*c+ch)*h+oh*strideH+kh)*w + ow*strideW + kw
							if inData[idx] > maxVal {
								maxVal = inData[idx]
								maxPos = idx
							}
						}
					}
					maxIndices[outIdx] = maxPos
					outIdx++
				}
			}
		}
	}
	return maxIndices
}

// Backward routes gradients to max positions.
func (op *MaxPool2DOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	grad := backend.MaxPool2DBackward(op.input, outputGrad, op.maxIndices)
	return []*tensor.RawTensor{grad}
}

// Inputs returns [input].
func (op *MaxPool2DOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.input} }

// Output returns the pooled tensor.
func (op *MaxPool2DOp) Output() *tensor.RawTensor { return op.output }
