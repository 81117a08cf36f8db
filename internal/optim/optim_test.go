package optim

import (
	"math"
	"testing"

	"github.com/bcisec/extractor/internal/autodiff"
	"github.com/bcisec/extractor/internal/backend/cpu"
	"github.com/bcisec/extractor/internal/nn"
	"github.com/bcisec/extractor/internal/tensor"
)

func gradsFor[B tensor.Backend](t *testing.T, param *nn.Parameter[B], values []float32) map[*tensor.RawTensor]*tensor.RawTensor {
	t.Helper()
	g, err := tensor.NewRaw(param.Tensor().Shape(), tensor.Float32, tensor.CPU)
	if err != nil {
		t.Fatal(err)
	}
	copy(g.AsFloat32(), values)
	return map[*tensor.RawTensor]*tensor.RawTensor{param.Tensor().Raw(): g}
}

func TestSGD_Step(t *testing.T) {
	backend := cpu.New()
	param := nn.NewParameter("w", tensor.MustFromSlice([]float32{1, 2}, tensor.Shape{2}, backend))

	opt := NewSGD([]*nn.Parameter[*cpu.Backend]{param}, SGDConfig{LR: 0.1}, backend)
	opt.Step(gradsFor(t, param, []float32{1, -1}))

	got := param.Tensor().Data()
	want := []float32{0.9, 2.1}
	for i := range want {
		if math.Abs(float64(got[i]-want[i])) > 1e-6 {
			t.Fatalf("param = %v, want %v", got, want)
		}
	}
}

func TestSGD_Momentum(t *testing.T) {
	backend := cpu.New()
	param := nn.NewParameter("w", tensor.MustFromSlice([]float32{0}, tensor.Shape{1}, backend))

	opt := NewSGD([]*nn.Parameter[*cpu.Backend]{param}, SGDConfig{LR: 1, Momentum: 0.5}, backend)

	// First step: v = 1, param = -1. Second: v = 1.5, param = -2.5.
	opt.Step(gradsFor(t, param, []float32{1}))
	opt.Step(gradsFor(t, param, []float32{1}))

	got := param.Tensor().Data()[0]
	if math.Abs(float64(got+2.5)) > 1e-6 {
		t.Fatalf("param = %v, want -2.5", got)
	}
}

func TestAdam_FirstStepMovesByLR(t *testing.T) {
	backend := cpu.New()
	param := nn.NewParameter("w", tensor.MustFromSlice([]float32{1}, tensor.Shape{1}, backend))

	opt := NewAdam([]*nn.Parameter[*cpu.Backend]{param}, AdamConfig{LR: 0.1}, backend)
	opt.Step(gradsFor(t, param, []float32{5}))

	// After bias correction the first update is ≈ lr * sign(grad).
	got := param.Tensor().Data()[0]
	if math.Abs(float64(got-0.9)) > 1e-3 {
		t.Fatalf("param = %v, want ≈0.9", got)
	}
	if opt.Timestep() != 1 {
		t.Fatalf("timestep = %d, want 1", opt.Timestep())
	}
}

func TestAdam_SkipsParamsWithoutGradient(t *testing.T) {
	backend := cpu.New()
	a := nn.NewParameter("a", tensor.MustFromSlice([]float32{1}, tensor.Shape{1}, backend))
	b := nn.NewParameter("b", tensor.MustFromSlice([]float32{2}, tensor.Shape{1}, backend))

	opt := NewAdam([]*nn.Parameter[*cpu.Backend]{a, b}, AdamConfig{LR: 0.1}, backend)
	opt.Step(gradsFor(t, a, []float32{1}))

	if b.Tensor().Data()[0] != 2 {
		t.Fatal("parameter without gradient was updated")
	}
	if a.Tensor().Data()[0] == 1 {
		t.Fatal("parameter with gradient was not updated")
	}
}

func TestAdam_WeightDecayPullsTowardZero(t *testing.T) {
	backend := cpu.New()
	param := nn.NewParameter("w", tensor.MustFromSlice([]float32{10}, tensor.Shape{1}, backend))

	opt := NewAdam([]*nn.Parameter[*cpu.Backend]{param}, AdamConfig{LR: 0.1, WeightDecay: 1}, backend)
	// Zero gradient: the whole update is the decay term.
	opt.Step(gradsFor(t, param, []float32{0}))

	got := param.Tensor().Data()[0]
	if got >= 10 {
		t.Fatalf("param = %v, want < 10 under weight decay", got)
	}
}

func TestAdam_ConvergesOnQuadratic(t *testing.T) {
	// Minimize f(w) = w² by feeding the analytic gradient 2w.
	backend := cpu.New()
	param := nn.NewParameter("w", tensor.MustFromSlice([]float32{3}, tensor.Shape{1}, backend))

	opt := NewAdam([]*nn.Parameter[*cpu.Backend]{param}, AdamConfig{LR: 0.1}, backend)
	for i := 0; i < 200; i++ {
		w := param.Tensor().Data()[0]
		opt.Step(gradsFor(t, param, []float32{2 * w}))
	}

	got := param.Tensor().Data()[0]
	if math.Abs(float64(got)) > 0.05 {
		t.Fatalf("w = %v after 200 steps, want ≈0", got)
	}
}

func TestAdam_TrainsLinearModelEndToEnd(t *testing.T) {
	// One gradient step through the tape must reduce the loss of a linear
	// classifier on a fixed batch.
	backend := autodiff.New(cpu.New())
	model := nn.NewLinear(2, 2, backend)
	criterion := nn.NewCrossEntropyLoss(backend)
	opt := NewAdam(model.Parameters(), AdamConfig{LR: 0.05}, backend)

	x := tensor.MustFromSlice([]float32{1, 0, 0, 1}, tensor.Shape{2, 2}, backend)
	y := tensor.MustFromSlice([]int32{0, 1}, tensor.Shape{2}, backend)

	lossAt := func() float32 {
		backend.Tape().StopRecording()
		return criterion.Forward(model.Forward(x), y).Item()
	}
	before := lossAt()

	for i := 0; i < 20; i++ {
		backend.Tape().Clear()
		backend.Tape().StartRecording()
		loss := criterion.Forward(model.Forward(x), y)
		grads := backend.Backward(loss.Raw())
		backend.Tape().StopRecording()
		opt.Step(grads)
	}
	backend.Tape().Clear()

	after := lossAt()
	if after >= before {
		t.Fatalf("loss did not decrease: before %v, after %v", before, after)
	}
}
