package nn

import (
	"math"
	"testing"

	"github.com/bcisec/extractor/internal/autodiff"
	"github.com/bcisec/extractor/internal/backend/cpu"
	"github.com/bcisec/extractor/internal/tensor"
)

func TestLinear_ForwardValues(t *testing.T) {
	backend := cpu.New()
	linear := NewLinear(2, 2, backend)

	// y = x @ Wᵀ + b with hand-set weights.
	copy(linear.weight.Tensor().Raw().AsFloat32(), []float32{1, 2, 3, 4})
	copy(linear.bias.Tensor().Raw().AsFloat32(), []float32{10, 20})

	x := tensor.MustFromSlice([]float32{1, 1}, tensor.Shape{1, 2}, backend)
	y := linear.Forward(x)

	want := []float32{13, 27}
	got := y.Data()
	for i := range want {
		if math.Abs(float64(got[i]-want[i])) > 1e-5 {
			t.Fatalf("forward = %v, want %v", got, want)
		}
	}
}

func TestLinear_StateDictRoundTrip(t *testing.T) {
	backend := cpu.New()
	src := NewLinear(3, 2, backend)
	dst := NewLinear(3, 2, backend)

	if err := dst.LoadStateDict(src.StateDict()); err != nil {
		t.Fatal(err)
	}
	srcW := src.weight.Tensor().Data()
	dstW := dst.weight.Tensor().Data()
	for i := range srcW {
		if srcW[i] != dstW[i] {
			t.Fatal("weights differ after LoadStateDict")
		}
	}
}

func TestLinear_LoadStateDictValidation(t *testing.T) {
	backend := cpu.New()
	linear := NewLinear(3, 2, backend)

	if err := linear.LoadStateDict(map[string]*tensor.RawTensor{}); err == nil {
		t.Error("expected error for missing entries")
	}

	bad := NewLinear(4, 2, backend).StateDict()
	if err := linear.LoadStateDict(bad); err == nil {
		t.Error("expected error for shape mismatch")
	}
}

func TestConv2D_ForwardShape(t *testing.T) {
	backend := cpu.New()
	// Temporal conv over an EEG trial: [batch, 1, channels, samples].
	conv := NewConv2D(1, 8, 1, 5, 1, 0, backend)

	input := tensor.Zeros[float32](tensor.Shape{2, 1, 4, 32}, backend)
	output := conv.Forward(input)

	want := tensor.Shape{2, 8, 4, 28}
	if !output.Shape().Equal(want) {
		t.Fatalf("output shape = %v, want %v", output.Shape(), want)
	}
}

func TestConv2D_SpatialCollapsesElectrodes(t *testing.T) {
	backend := cpu.New()
	conv := NewConv2D(8, 8, 4, 1, 1, 0, backend)

	input := tensor.Zeros[float32](tensor.Shape{2, 8, 4, 28}, backend)
	output := conv.Forward(input)

	want := tensor.Shape{2, 8, 1, 28}
	if !output.Shape().Equal(want) {
		t.Fatalf("output shape = %v, want %v", output.Shape(), want)
	}
}

func TestMaxPool2D_TimePooling(t *testing.T) {
	backend := cpu.New()
	pool := NewMaxPool2D(1, 2, 1, 2, backend)

	input := tensor.MustFromSlice([]float32{1, 5, 2, 6, 9, 3, 8, 4}, tensor.Shape{1, 1, 2, 4}, backend)
	output := pool.Forward(input)

	if !output.Shape().Equal(tensor.Shape{1, 1, 2, 2}) {
		t.Fatalf("output shape = %v, want [1 1 2 2]", output.Shape())
	}
	want := []float32{5, 6, 9, 8}
	for i, v := range output.Data() {
		if v != want[i] {
			t.Fatalf("pooled = %v, want %v", output.Data(), want)
		}
	}
}

func TestXavier_Bounds(t *testing.T) {
	backend := cpu.New()
	tensor.Seed(11)

	w := Xavier(100, 100, tensor.Shape{100, 100}, backend)
	limit := float32(math.Sqrt(6.0 / 200.0))
	for _, v := range w.Data() {
		if v < -limit || v > limit {
			t.Fatalf("weight %v outside ±%v", v, limit)
		}
	}
}

func TestCrossEntropyLoss_UniformLogits(t *testing.T) {
	backend := autodiff.New(cpu.New())
	criterion := NewCrossEntropyLoss(backend)

	logits := tensor.Zeros[float32](tensor.Shape{4, 2}, backend)
	targets := tensor.MustFromSlice([]int32{0, 1, 0, 1}, tensor.Shape{4}, backend)

	loss := criterion.Forward(logits, targets)
	want := float32(math.Log(2))
	if math.Abs(float64(loss.Item()-want)) > 1e-5 {
		t.Fatalf("loss = %v, want %v", loss.Item(), want)
	}
}

func TestCrossEntropyLoss_RecordsOnTape(t *testing.T) {
	backend := autodiff.New(cpu.New())
	criterion := NewCrossEntropyLoss(backend)

	logits := tensor.MustFromSlice([]float32{1, -1}, tensor.Shape{1, 2}, backend)
	targets := tensor.MustFromSlice([]int32{0}, tensor.Shape{1}, backend)

	backend.Tape().StartRecording()
	loss := criterion.Forward(logits, targets)
	grads := backend.Backward(loss.Raw())

	if _, ok := grads[logits.Raw()]; !ok {
		t.Fatal("no gradient for logits")
	}
}

func TestArgmax(t *testing.T) {
	backend := cpu.New()
	logits := tensor.MustFromSlice([]float32{
		0.1, 0.9,
		2.0, -1.0,
		0.5, 0.5,
	}, tensor.Shape{3, 2}, backend)

	pred := Argmax(logits, backend)
	want := []int32{1, 0, 0} // ties resolve to the first class
	for i, v := range pred.Data() {
		if v != want[i] {
			t.Fatalf("argmax = %v, want %v", pred.Data(), want)
		}
	}
}

func TestAccuracy(t *testing.T) {
	backend := cpu.New()
	logits := tensor.MustFromSlice([]float32{
		0.1, 0.9,
		2.0, -1.0,
		-0.5, 0.5,
		1.0, 0.0,
	}, tensor.Shape{4, 2}, backend)
	targets := tensor.MustFromSlice([]int32{1, 0, 0, 1}, tensor.Shape{4}, backend)

	acc := Accuracy(logits, targets)
	if acc != 0.5 {
		t.Fatalf("accuracy = %v, want 0.5", acc)
	}
	if got := CorrectCount(logits, targets); got != 2 {
		t.Fatalf("correct count = %d, want 2", got)
	}
}

func TestMergeExtractStateDict(t *testing.T) {
	backend := cpu.New()
	linear := NewLinear(2, 2, backend)

	flat := make(map[string]*tensor.RawTensor)
	MergeStateDict(flat, "fc", linear.StateDict())

	if _, ok := flat["fc.weight"]; !ok {
		t.Fatal("merged dict missing fc.weight")
	}

	extracted := ExtractStateDict(flat, "fc")
	if _, ok := extracted["weight"]; !ok {
		t.Fatal("extracted dict missing weight")
	}
}

func TestCloneStateDict_NoAliasing(t *testing.T) {
	backend := cpu.New()
	linear := NewLinear(2, 2, backend)

	snapshot := CloneStateDict(linear.StateDict())
	linear.weight.Tensor().Raw().AsFloat32()[0] = 42

	if snapshot["weight"].AsFloat32()[0] == 42 {
		t.Fatal("snapshot aliases live parameters")
	}
}

func TestELU_Forward(t *testing.T) {
	backend := cpu.New()
	elu := NewELU(backend)

	x := tensor.MustFromSlice([]float32{2, 0, -1}, tensor.Shape{3}, backend)
	y := elu.Forward(x)

	got := y.Data()
	if got[0] != 2 || got[1] != 0 {
		t.Fatalf("ELU(2,0) = %v,%v, want 2,0", got[0], got[1])
	}
	want := float32(math.Expm1(-1))
	if math.Abs(float64(got[2]-want)) > 1e-6 {
		t.Fatalf("ELU(-1) = %v, want %v", got[2], want)
	}
}

func TestReLU_Forward(t *testing.T) {
	backend := cpu.New()
	relu := NewReLU(backend)

	x := tensor.MustFromSlice([]float32{-3, 0, 4}, tensor.Shape{3}, backend)
	y := relu.Forward(x)

	want := []float32{0, 0, 4}
	for i, v := range y.Data() {
		if v != want[i] {
			t.Fatalf("ReLU = %v, want %v", y.Data(), want)
		}
	}
}
