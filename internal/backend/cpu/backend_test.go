package cpu

import (
	"math"
	"testing"

	"github.com/bcisec/extractor/internal/tensor"
)

func raw(t *testing.T, data []float32, shape tensor.Shape) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.NewRaw(shape, tensor.Float32, tensor.CPU)
	if err != nil {
		t.Fatal(err)
	}
	copy(r.AsFloat32(), data)
	return r
}

func assertClose(t *testing.T, got []float32, want []float32, tol float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if math.Abs(float64(got[i]-want[i])) > tol {
			t.Fatalf("element %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestAdd(t *testing.T) {
	b := New()
	a := raw(t, []float32{1, 2, 3, 4}, tensor.Shape{2, 2})
	c := raw(t, []float32{10, 20, 30, 40}, tensor.Shape{2, 2})

	result := b.Add(a, c)
	assertClose(t, result.AsFloat32(), []float32{11, 22, 33, 44}, 0)
}

func TestAdd_Broadcast(t *testing.T) {
	b := New()
	a := raw(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	bias := raw(t, []float32{10, 20, 30}, tensor.Shape{3})

	result := b.Add(a, bias)
	if !result.Shape().Equal(tensor.Shape{2, 3}) {
		t.Fatalf("shape = %v, want [2 3]", result.Shape())
	}
	assertClose(t, result.AsFloat32(), []float32{11, 22, 33, 14, 25, 36}, 0)
}

func TestSubMulDiv(t *testing.T) {
	b := New()
	a := raw(t, []float32{4, 9, 16, 25}, tensor.Shape{4})
	c := raw(t, []float32{2, 3, 4, 5}, tensor.Shape{4})

	assertClose(t, b.Sub(a, c).AsFloat32(), []float32{2, 6, 12, 20}, 0)
	assertClose(t, b.Mul(a, c).AsFloat32(), []float32{8, 27, 64, 125}, 0)
	assertClose(t, b.Div(a, c).AsFloat32(), []float32{2, 3, 4, 5}, 0)
}

func TestScalarOps(t *testing.T) {
	b := New()
	a := raw(t, []float32{1, -2, 3}, tensor.Shape{3})

	assertClose(t, b.MulScalar(a, -1).AsFloat32(), []float32{-1, 2, -3}, 0)
	assertClose(t, b.AddScalar(a, 0.5).AsFloat32(), []float32{1.5, -1.5, 3.5}, 0)
}

func TestMatMul(t *testing.T) {
	b := New()
	// [2x3] @ [3x2]
	a := raw(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	c := raw(t, []float32{7, 8, 9, 10, 11, 12}, tensor.Shape{3, 2})

	result := b.MatMul(a, c)
	if !result.Shape().Equal(tensor.Shape{2, 2}) {
		t.Fatalf("shape = %v, want [2 2]", result.Shape())
	}
	assertClose(t, result.AsFloat32(), []float32{58, 64, 139, 154}, 1e-5)
}

func TestTranspose2D(t *testing.T) {
	b := New()
	a := raw(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})

	result := b.Transpose(a)
	if !result.Shape().Equal(tensor.Shape{3, 2}) {
		t.Fatalf("shape = %v, want [3 2]", result.Shape())
	}
	assertClose(t, result.AsFloat32(), []float32{1, 4, 2, 5, 3, 6}, 0)
}

func TestReshape(t *testing.T) {
	b := New()
	a := raw(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})

	result := b.Reshape(a, tensor.Shape{3, 2})
	assertClose(t, result.AsFloat32(), []float32{1, 2, 3, 4, 5, 6}, 0)

	// Reshape copies; mutating the result must not touch the source.
	result.AsFloat32()[0] = 99
	if a.AsFloat32()[0] != 1 {
		t.Error("reshape aliases the source buffer")
	}
}

func TestConv2D_KnownValues(t *testing.T) {
	b := New()
	// 1x1x3x3 input, 1x1x2x2 kernel of ones: each output is the window sum.
	input := raw(t, []float32{
		1, 2, 3,
		4, 5, 6,
		7, 8, 9,
	}, tensor.Shape{1, 1, 3, 3})
	kernel := raw(t, []float32{1, 1, 1, 1}, tensor.Shape{1, 1, 2, 2})

	result := b.Conv2D(input, kernel, 1, 0)
	if !result.Shape().Equal(tensor.Shape{1, 1, 2, 2}) {
		t.Fatalf("shape = %v, want [1 1 2 2]", result.Shape())
	}
	assertClose(t, result.AsFloat32(), []float32{12, 16, 24, 28}, 1e-6)
}

func TestConv2D_RectangularKernel(t *testing.T) {
	b := New()
	// Temporal conv shape: [1, 1, 2, 4] input with 1x3 kernel.
	input := raw(t, []float32{
		1, 2, 3, 4,
		5, 6, 7, 8,
	}, tensor.Shape{1, 1, 2, 4})
	kernel := raw(t, []float32{1, 1, 1}, tensor.Shape{1, 1, 1, 3})

	result := b.Conv2D(input, kernel, 1, 0)
	if !result.Shape().Equal(tensor.Shape{1, 1, 2, 2}) {
		t.Fatalf("shape = %v, want [1 1 2 2]", result.Shape())
	}
	assertClose(t, result.AsFloat32(), []float32{6, 9, 18, 21}, 1e-6)
}

func TestMaxPool2D_Square(t *testing.T) {
	b := New()
	input := raw(t, []float32{
		1, 3, 2, 4,
		5, 7, 6, 8,
		9, 11, 10, 12,
		13, 15, 14, 16,
	}, tensor.Shape{1, 1, 4, 4})

	result := b.MaxPool2D(input, 2, 2, 2, 2)
	if !result.Shape().Equal(tensor.Shape{1, 1, 2, 2}) {
		t.Fatalf("shape = %v, want [1 1 2 2]", result.Shape())
	}
	assertClose(t, result.AsFloat32(), []float32{7, 8, 15, 16}, 0)
}

func TestMaxPool2D_TimeAxisOnly(t *testing.T) {
	b := New()
	// EEG-style pooling: 1x2 window over the time axis, electrode axis kept.
	input := raw(t, []float32{
		1, 5, 2, 6,
		9, 3, 8, 4,
	}, tensor.Shape{1, 1, 2, 4})

	result := b.MaxPool2D(input, 1, 2, 1, 2)
	if !result.Shape().Equal(tensor.Shape{1, 1, 2, 2}) {
		t.Fatalf("shape = %v, want [1 1 2 2]", result.Shape())
	}
	assertClose(t, result.AsFloat32(), []float32{5, 6, 9, 8}, 0)
}

func TestMaxPool2DBackward_RoutesToMax(t *testing.T) {
	b := New()
	input := raw(t, []float32{
		1, 5,
		2, 3,
	}, tensor.Shape{1, 1, 2, 2})

	// One output position; the maximum sits at flat index 1.
	grad := raw(t, []float32{10}, tensor.Shape{1, 1, 1, 1})
	result := b.MaxPool2DBackward(input, grad, []int{1})
	assertClose(t, result.AsFloat32(), []float32{0, 10, 0, 0}, 0)
}

func TestSoftmax_LastDim(t *testing.T) {
	b := New()
	input := raw(t, []float32{1, 1, 1, 1}, tensor.Shape{2, 2})

	result := b.Softmax(input, -1)
	assertClose(t, result.AsFloat32(), []float32{0.5, 0.5, 0.5, 0.5}, 1e-6)
}

func TestSoftmax_SumsToOne(t *testing.T) {
	b := New()
	input := raw(t, []float32{3, -1, 0.5, 2, 7, -4}, tensor.Shape{2, 3})

	result := b.Softmax(input, -1)
	data := result.AsFloat32()
	for row := 0; row < 2; row++ {
		var sum float64
		for col := 0; col < 3; col++ {
			v := data[row*3+col]
			if v < 0 || v > 1 {
				t.Fatalf("softmax value %v outside [0,1]", v)
			}
			sum += float64(v)
		}
		if math.Abs(sum-1) > 1e-5 {
			t.Fatalf("row %d sums to %v", row, sum)
		}
	}
}
