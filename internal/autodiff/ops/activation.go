package ops

import (
	"fmt"
	"math"

	"github.com/bcisec/extractor/internal/tensor"
)

// ReLUOp records a ReLU activation: output = max(0, x).
//
// d(ReLU(x))/dx = 1 if x > 0, else 0.
type ReLUOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// NewReLUOp creates a new ReLUOp.
func NewReLUOp(input, output *tensor.RawTensor) *ReLUOp {
	return &ReLUOp{input: input, output: output}
}

// Backward masks the output gradient with the positive-input positions.
func (op *ReLUOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	grad, err := tensor.NewRaw(op.input.Shape(), tensor.Float32, op.input.Device())
	if err != nil {
		panic(fmt.Sprintf("relu backward: %v", err))
	}

	inData := op.input.AsFloat32()
	gData := outputGrad.AsFloat32()
	out := grad.AsFloat32()
	for i, v := range inData {
		if v > 0 {
			out[i] = gData[i]
		}
	}
	return []*tensor.RawTensor{grad}
}

// Inputs returns [x].
func (op *ReLUOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.input} }

// Output returns max(0, x).
func (op *ReLUOp) Output() *tensor.RawTensor { return op.output }

// ELUOp records an ELU activation:
//
//	output = x               if x > 0
//	output = α·(exp(x) - 1)  otherwise
//
// d(ELU(x))/dx = 1 for x > 0, else output + α.
type ELUOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
	alpha  float32
}

// NewELUOp creates a new ELUOp.
func NewELUOp(input, output *tensor.RawTensor, alpha float32) *ELUOp {
	return &ELUOp{input: input, output: output, alpha: alpha}
}

// Backward computes the ELU input gradient.
func (op *ELUOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	grad, err := tensor.NewRaw(op.input.Shape(), tensor.Float32, op.input.Device())
	if err != nil {
		panic(fmt.Sprintf("elu backward: %v", err))
	}

	inData := op.input.AsFloat32()
	outData := op.output.AsFloat32()
	gData := outputGrad.AsFloat32()
	out := grad.AsFloat32()
	for i, v := range inData {
		if v > 0 {
			out[i] = gData[i]
		} else {
			out[i] = gData[i] * (outData[i] + op.alpha)
		}
	}
	return []*tensor.RawTensor{grad}
}

// Inputs returns [x].
func (op *ELUOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.input} }

// Output returns the activated tensor.
func (op *ELUOp) Output() *tensor.RawTensor { return op.output }

// ELUForward computes the ELU forward pass.
func ELUForward(x *tensor.RawTensor, alpha float32, device tensor.Device) *tensor.RawTensor {
	result, err := tensor.NewRaw(x.Shape(), tensor.Float32, device)
	if err != nil {
		panic(fmt.Sprintf("elu: %v", err))
	}

	inData := x.AsFloat32()
	outData := result.AsFloat32()
	for i, v := range inData {
		if v > 0 {
			outData[i] = v
		} else {
			outData[i] = alpha * float32(math.Expm1(float64(v)))
		}
	}
	return result
}

// ReLUForward computes the ReLU forward pass.
func ReLUForward(x *tensor.RawTensor, device tensor.Device) *tensor.RawTensor {
	result, err := tensor.NewRaw(x.Shape(), tensor.Float32, device)
	if err != nil {
		panic(fmt.Sprintf("relu: %v", err))
	}

	inData := x.AsFloat32()
	outData := result.AsFloat32()
	for i, v := range inData {
		if v > 0 {
			outData[i] = v
		}
	}
	return result
}
