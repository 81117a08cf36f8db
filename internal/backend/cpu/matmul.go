package cpu

import (
	"fmt"

	"github.com/bcisec/extractor/internal/tensor"
)

// MatMul performs 2D matrix multiplication: [m, k] @ [k, n] -> [m, n].
func (c *Backend) MatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	aShape := a.Shape()
	bShape := b.Shape()
	if len(aShape) != 2 || len(bShape) != 2 {
		panic(fmt.Sprintf("matmul: expected 2D tensors, got %v and %v", aShape, bShape))
	}
	if aShape[1] != bShape[0] {
		panic(fmt.Sprintf("matmul: inner dimensions mismatch: %v @ %v", aShape, bShape))
	}

	m, k, n := aShape[0], aShape[1], bShape[1]
	result, err := tensor.NewRaw(tensor.Shape{m, n}, tensor.Float32, c.device)
	if err != nil {
		panic(fmt.Sprintf("matmul: failed to create result tensor: %v", err))
	}

	aData := a.AsFloat32()
	bData := b.AsFloat32()
	outData := result.AsFloat32()

	// ikj loop order keeps the inner loops sequential over memory.
	for i := 0; i < m; i++ {
		aRow := aData[i*k : (i+1)*k]
		outRow := outData[i*n : (i+1)*n]
		for kk := 0; kk < k; kk++ {
			av := aRow[kk]
			if av == 0 {
				continue
			}
			bRow := bData[kk*n : (kk+1)*n]
			for j := 0; j < n; j++ {
				outRow[j] += av * bRow[j]
			}
		}
	}
	return result
}
