package ops

import (
	"fmt"

	"github.com/bcisec/extractor/internal/tensor"
)

// reduceBroadcast reduces a gradient tensor back to the shape of a forward
// input that was broadcast, by summing over the broadcast dimensions.
//
// Example:
//
//	Forward:  bias[1, 4] + x[3, 4] -> y[3, 4]
//	Backward: grad_y[3, 4] -> grad_bias[1, 4] (sum along dim 0)
func reduceBroadcast(grad *tensor.RawTensor, targetShape tensor.Shape, backend tensor.Backend) *tensor.RawTensor {
	gradShape := grad.Shape()

	// Clone when shapes already match so accumulation never aliases.
	if gradShape.Equal(targetShape) {
		return grad.Clone()
	}

	// Sum away leading dimensions the target doesn't have.
	result := grad
	for len(result.Shape()) > len(targetShape) {
		result = sumAlongDimension(result, 0)
		result = backend.Reshape(result, result.Shape()[1:])
	}

	// Sum along dimensions where the target is 1.
	for i := 0; i < len(targetShape); i++ {
		if targetShape[i] == 1 && result.Shape()[i] > 1 {
			result = sumAlongDimension(result, i)
		}
	}

	if !result.Shape().Equal(targetShape) {
		result = backend.Reshape(result, targetShape)
	}
	return result
}

// sumAlongDimension sums a float32 tensor along one dimension, keeping it as size 1.
func sumAlongDimension(t *tensor.RawTensor, dim int) *tensor.RawTensor {
	shape := t.Shape()
	if dim < 0 || dim >= len(shape) {
		panic(fmt.Sprintf("sumAlongDimension: invalid dimension %d for shape %v", dim, shape))
	}

	outShape := shape.Clone()
	outShape[dim] = 1
	result, err := tensor.NewRaw(outShape, tensor.Float32, t.Device())
	if err != nil {
		panic(fmt.Sprintf("sumAlongDimension: failed to create result: %v", err))
	}

	inData := t.AsFloat32()
	outData := result.AsFloat32()
	strides := shape.ComputeStrides()
	outStrides := outShape.ComputeStrides()

	for i, v := range inData {
		rem := i
		outIdx := 0
		for d := range shape {
			coord := rem / strides[d]
			rem %= strides[d]
			if d != dim {
				outIdx += coord * outStrides[d]
			}
		}
		outData[outIdx] += v
	}
	return result
}
