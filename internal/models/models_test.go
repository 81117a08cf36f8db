package models

import (
	"testing"

	"github.com/bcisec/extractor/internal/backend/cpu"
	"github.com/bcisec/extractor/internal/tensor"
)

func trialBatch(t *testing.T, batch int, config Config, backend *cpu.Backend) *tensor.Tensor[float32, *cpu.Backend] {
	t.Helper()
	tensor.Seed(1)
	return tensor.Randn(tensor.Shape{batch, 1, config.Channels, config.Samples}, backend)
}

func TestDeepConvNet_Forward(t *testing.T) {
	backend := cpu.New()
	config := Config{Channels: 32, Samples: 128, NumClasses: 2}
	model := NewDeepConvNet(config, backend)

	logits := model.Forward(trialBatch(t, 3, config, backend))
	if !logits.Shape().Equal(tensor.Shape{3, 2}) {
		t.Fatalf("logits shape = %v, want [3 2]", logits.Shape())
	}
	for i, v := range logits.Data() {
		if v != v {
			t.Fatalf("logit %d is NaN", i)
		}
	}
}

func TestDeepConvNet_TooShort(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for trials too short for four conv/pool stages")
		}
	}()
	NewDeepConvNet(Config{Channels: 4, Samples: 64, NumClasses: 2}, cpu.New())
}

func TestShallowNet_Forward(t *testing.T) {
	backend := cpu.New()
	config := Config{Channels: 32, Samples: 128, NumClasses: 2}
	model := NewShallowNet(config, backend)

	logits := model.Forward(trialBatch(t, 2, config, backend))
	if !logits.Shape().Equal(tensor.Shape{2, 2}) {
		t.Fatalf("logits shape = %v, want [2 2]", logits.Shape())
	}
}

func TestShallowNet_SmallGeometry(t *testing.T) {
	backend := cpu.New()
	config := Config{Channels: 4, Samples: 64, NumClasses: 3}
	model := NewShallowNet(config, backend)

	logits := model.Forward(trialBatch(t, 1, config, backend))
	if !logits.Shape().Equal(tensor.Shape{1, 3}) {
		t.Fatalf("logits shape = %v, want [1 3]", logits.Shape())
	}
}

func TestDeepConvNet_StateDictRoundTrip(t *testing.T) {
	backend := cpu.New()
	config := Config{Channels: 8, Samples: 128, NumClasses: 2}

	src := NewDeepConvNet(config, backend)
	dst := NewDeepConvNet(config, backend)

	if err := dst.LoadStateDict(src.StateDict()); err != nil {
		t.Fatalf("LoadStateDict() error = %v", err)
	}

	input := trialBatch(t, 2, config, backend)
	a := src.Forward(input).Data()
	b := dst.Forward(input).Data()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("output %d differs after state dict round trip: %g vs %g", i, a[i], b[i])
		}
	}
}

func TestShallowNet_StateDictRoundTrip(t *testing.T) {
	backend := cpu.New()
	config := Config{Channels: 8, Samples: 64, NumClasses: 2}

	src := NewShallowNet(config, backend)
	dst := NewShallowNet(config, backend)

	if err := dst.LoadStateDict(src.StateDict()); err != nil {
		t.Fatalf("LoadStateDict() error = %v", err)
	}

	input := trialBatch(t, 2, config, backend)
	a := src.Forward(input).Data()
	b := dst.Forward(input).Data()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("output %d differs after state dict round trip: %g vs %g", i, a[i], b[i])
		}
	}
}

func TestLoadStateDict_WrongGeometry(t *testing.T) {
	backend := cpu.New()
	wide := NewShallowNet(Config{Channels: 32, Samples: 128, NumClasses: 2}, backend)
	narrow := NewShallowNet(Config{Channels: 8, Samples: 128, NumClasses: 2}, backend)

	if err := narrow.LoadStateDict(wide.StateDict()); err == nil {
		t.Fatal("expected error loading a 32-channel state dict into an 8-channel model")
	}
}

func TestRegistry(t *testing.T) {
	backend := cpu.New()
	config := Config{Channels: 8, Samples: 128, NumClasses: 2}

	deep, err := New(DeepNetName, config, backend)
	if err != nil {
		t.Fatalf("New(%q) error = %v", DeepNetName, err)
	}
	if _, ok := deep.(*DeepConvNet[*cpu.Backend]); !ok {
		t.Errorf("New(%q) returned %T", DeepNetName, deep)
	}

	shallow, err := New(ShallowNetName, config, backend)
	if err != nil {
		t.Fatalf("New(%q) error = %v", ShallowNetName, err)
	}
	if _, ok := shallow.(*ShallowNet[*cpu.Backend]); !ok {
		t.Errorf("New(%q) returned %T", ShallowNetName, shallow)
	}

	if _, err := New("eegnet", config, backend); err == nil {
		t.Error("expected error for unknown architecture name")
	}
}
