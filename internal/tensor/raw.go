package tensor

import (
	"fmt"
	"unsafe"
)

// Device represents the compute device for tensor operations.
//
// The pipeline is single-device and synchronous; the device is threaded
// through every component as part of the backend rather than read from
// ambient state.
type Device int

// Supported compute devices.
const (
	CPU Device = iota
)

// String returns a human-readable device name.
func (d Device) String() string {
	switch d {
	case CPU:
		return "CPU"
	default:
		return "Unknown"
	}
}

// RawTensor is the low-level tensor representation: a flat byte buffer
// with shape, row-major strides and runtime type information.
type RawTensor struct {
	data   []byte
	shape  Shape
	stride []int
	dtype  DataType
	device Device
}

// NewRaw creates a new RawTensor with the given shape and type.
// Memory is allocated zero-initialized.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}

	byteSize := shape.NumElements() * dtype.Size()
	return &RawTensor{
		data:   make([]byte, byteSize),
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
		dtype:  dtype,
		device: device,
	}, nil
}

// Shape returns the tensor's shape.
func (t *RawTensor) Shape() Shape {
	return t.shape
}

// Strides returns the tensor's row-major strides.
func (t *RawTensor) Strides() []int {
	return t.stride
}

// DType returns the tensor's data type.
func (t *RawTensor) DType() DataType {
	return t.dtype
}

// Device returns the device the tensor resides on.
func (t *RawTensor) Device() Device {
	return t.device
}

// NumElements returns the total number of elements.
func (t *RawTensor) NumElements() int {
	return t.shape.NumElements()
}

// Bytes returns the underlying byte buffer.
// Used by the checkpoint writer; modifications alias the tensor.
func (t *RawTensor) Bytes() []byte {
	return t.data
}

// AsFloat32 returns the buffer viewed as []float32.
// Panics if the dtype is not Float32.
func (t *RawTensor) AsFloat32() []float32 {
	if t.dtype != Float32 {
		panic(fmt.Sprintf("AsFloat32 called on %s tensor", t.dtype))
	}
	if len(t.data) == 0 {
		return nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&t.data[0])), t.NumElements())
}

// AsInt32 returns the buffer viewed as []int32.
// Panics if the dtype is not Int32.
func (t *RawTensor) AsInt32() []int32 {
	if t.dtype != Int32 {
		panic(fmt.Sprintf("AsInt32 called on %s tensor", t.dtype))
	}
	if len(t.data) == 0 {
		return nil
	}
	return unsafe.Slice((*int32)(unsafe.Pointer(&t.data[0])), t.NumElements())
}

// Clone returns a deep copy of the tensor.
func (t *RawTensor) Clone() *RawTensor {
	clone, err := NewRaw(t.shape, t.dtype, t.device)
	if err != nil {
		panic(err) // Shape already validated
	}
	copy(clone.data, t.data)
	return clone
}
