package tensor

// Backend defines the compute interface the pipeline runs on.
//
// The CPU backend implements it directly; the autodiff backend decorates any
// Backend and records operations on a gradient tape. Passing the backend
// explicitly is what makes the execution context (device, gradient mode) a
// parameter instead of ambient state.
type Backend interface {
	// Element-wise binary operations (NumPy-style broadcasting).
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor
	Div(a, b *RawTensor) *RawTensor

	// Scalar operations.
	MulScalar(x *RawTensor, scalar float32) *RawTensor
	AddScalar(x *RawTensor, scalar float32) *RawTensor

	// Matrix operations.
	MatMul(a, b *RawTensor) *RawTensor

	// Convolutional operations.
	Conv2D(input, kernel *RawTensor, stride, padding int) *RawTensor
	Conv2DInputBackward(input, kernel, grad *RawTensor, stride, padding int) *RawTensor
	Conv2DKernelBackward(input, kernel, grad *RawTensor, stride, padding int) *RawTensor
	MaxPool2D(input *RawTensor, kernelH, kernelW, strideH, strideW int) *RawTensor
	MaxPool2DBackward(input, grad *RawTensor, maxIndices []int) *RawTensor

	// Shape operations.
	Reshape(t *RawTensor, newShape Shape) *RawTensor
	Transpose(t *RawTensor, axes ...int) *RawTensor

	// Activations.
	Softmax(x *RawTensor, dim int) *RawTensor

	// Metadata.
	Name() string
	Device() Device
}
