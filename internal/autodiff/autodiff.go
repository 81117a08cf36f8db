// Package autodiff implements reverse-mode automatic differentiation as a
// backend decorator.
//
// Backend[B] wraps any tensor.Backend and records operations on a
// GradientTape during the forward pass; Backward walks the tape in reverse
// to produce a gradient for every participating tensor, including model
// inputs, which is what the adversarial-example generator differentiates.
//
// Usage:
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//	logits := model.Forward(x)
//	loss := backend.CrossEntropy(logits.Raw(), labels.Raw())
//	grads := backend.Backward(loss)
package autodiff

import (
	"fmt"

	"github.com/bcisec/extractor/internal/autodiff/ops"
	"github.com/bcisec/extractor/internal/tensor"
)

// Backend wraps a compute backend and adds gradient recording.
type Backend[B tensor.Backend] struct {
	inner B
	tape  *GradientTape
}

// New creates an autodiff backend wrapping the given compute backend.
func New[B tensor.Backend](backend B) *Backend[B] {
	return &Backend[B]{inner: backend, tape: NewGradientTape()}
}

// Tape returns the gradient tape for recording control.
func (b *Backend[B]) Tape() *GradientTape {
	return b.tape
}

// Inner returns the wrapped backend.
func (b *Backend[B]) Inner() B {
	return b.inner
}

// Name returns the backend name.
func (b *Backend[B]) Name() string {
	return "Autodiff(" + b.inner.Name() + ")"
}

// Device returns the compute device.
func (b *Backend[B]) Device() tensor.Device {
	return b.inner.Device()
}

// Backward computes gradients for a single-element output tensor.
//
// The output gradient is initialized to one, as for a scalar loss.
func (b *Backend[B]) Backward(output *tensor.RawTensor) map[*tensor.RawTensor]*tensor.RawTensor {
	if b.tape.NumOps() == 0 {
		panic("backward: no operations recorded (did you forget Tape().StartRecording()?)")
	}

	outputGrad, err := tensor.NewRaw(output.Shape(), tensor.Float32, b.Device())
	if err != nil {
		panic(fmt.Sprintf("backward: failed to create output gradient: %v", err))
	}
	data := outputGrad.AsFloat32()
	for i := range data {
		data[i] = 1.0
	}
	return b.tape.Backward(outputGrad, b)
}

// Add performs element-wise addition and records the operation.
func (b *Backend[B]) Add(a, c *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Add(a, c)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewAddOp(a, c, result))
	}
	return result
}

// Sub performs element-wise subtraction and records the operation.
func (b *Backend[B]) Sub(a, c *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Sub(a, c)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewSubOp(a, c, result))
	}
	return result
}

// Mul performs element-wise multiplication and records the operation.
func (b *Backend[B]) Mul(a, c *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Mul(a, c)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewMulOp(a, c, result))
	}
	return result
}

// Div performs element-wise division and records the operation.
func (b *Backend[B]) Div(a, c *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Div(a, c)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewDivOp(a, c, result))
	}
	return result
}

// MulScalar multiplies by a scalar and records the operation.
// Recording keeps the generator's loss negation differentiable.
func (b *Backend[B]) MulScalar(x *tensor.RawTensor, scalar float32) *tensor.RawTensor {
	result := b.inner.MulScalar(x, scalar)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewMulScalarOp(x, result, scalar))
	}
	return result
}

// AddScalar adds a scalar and records the operation.
func (b *Backend[B]) AddScalar(x *tensor.RawTensor, scalar float32) *tensor.RawTensor {
	result := b.inner.AddScalar(x, scalar)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewAddScalarOp(x, result))
	}
	return result
}

// MatMul performs matrix multiplication and records the operation.
func (b *Backend[B]) MatMul(a, c *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.MatMul(a, c)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewMatMulOp(a, c, result))
	}
	return result
}

// Reshape reshapes a tensor and records the operation so gradients reach
// tensors reshaped for broadcasting (e.g. conv bias).
func (b *Backend[B]) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	result := b.inner.Reshape(t, newShape)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewReshapeOp(t, result))
	}
	return result
}

// Transpose transposes a tensor and records the operation. The CPU backend
// materializes transposes, so without recording, gradients computed for the
// transposed copy would never reach the original parameter.
func (b *Backend[B]) Transpose(t *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	ndim := len(t.Shape())
	if len(axes) == 0 {
		axes = make([]int, ndim)
		for i := range axes {
			axes[i] = ndim - 1 - i
		}
	}

	result := b.inner.Transpose(t, axes...)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewTransposeOp(t, result, axes))
	}
	return result
}

// Conv2D performs 2D convolution and records the operation.
func (b *Backend[B]) Conv2D(input, kernel *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	result := b.inner.Conv2D(input, kernel, stride, padding)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewConv2DOp(input, kernel, result, stride, padding))
	}
	return result
}

// Conv2DInputBackward delegates to the wrapped backend.
func (b *Backend[B]) Conv2DInputBackward(input, kernel, grad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	return b.inner.Conv2DInputBackward(input, kernel, grad, stride, padding)
}

// Conv2DKernelBackward delegates to the wrapped backend.
func (b *Backend[B]) Conv2DKernelBackward(input, kernel, grad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	return b.inner.Conv2DKernelBackward(input, kernel, grad, stride, padding)
}

// MaxPool2D performs max pooling and records the operation, capturing max
// indices for gradient routing.
func (b *Backend[B]) MaxPool2D(input *tensor.RawTensor, kernelH, kernelW, strideH, strideW int) *tensor.RawTensor {
	result := b.inner.MaxPool2D(input, kernelH, kernelW, strideH, strideW)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewMaxPool2DOp(input, result, kernelH, kernelW, strideH, strideW))
	}
	return result
}

// MaxPool2DBackward delegates to the wrapped backend.
func (b *Backend[B]) MaxPool2DBackward(input, grad *tensor.RawTensor, maxIndices []int) *tensor.RawTensor {
	return b.inner.MaxPool2DBackward(input, grad, maxIndices)
}

// Softmax applies softmax and records the operation.
func (b *Backend[B]) Softmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	result := b.inner.Softmax(x, dim)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewSoftmaxOp(x, result))
	}
	return result
}

// ReLU applies ReLU and records the operation.
func (b *Backend[B]) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	result := ops.ReLUForward(x, b.Device())
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewReLUOp(x, result))
	}
	return result
}

// ELU applies ELU with the given alpha and records the operation.
func (b *Backend[B]) ELU(x *tensor.RawTensor, alpha float32) *tensor.RawTensor {
	result := ops.ELUForward(x, alpha, b.Device())
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewELUOp(x, result, alpha))
	}
	return result
}

// CrossEntropy computes the fused softmax cross-entropy loss and records the
// operation. Logits are [batch, classes]; targets are [batch] int32 indices.
func (b *Backend[B]) CrossEntropy(logits, targets *tensor.RawTensor) *tensor.RawTensor {
	result := ops.CrossEntropyForward(logits, targets, b.Device())
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewCrossEntropyOp(logits, targets, result))
	}
	return result
}
