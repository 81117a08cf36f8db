package extraction

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcisec/extractor/internal/attack"
	"github.com/bcisec/extractor/internal/autodiff"
	"github.com/bcisec/extractor/internal/backend/cpu"
	"github.com/bcisec/extractor/internal/data"
	"github.com/bcisec/extractor/internal/metrics"
	"github.com/bcisec/extractor/internal/nn"
	"github.com/bcisec/extractor/internal/optim"
	"github.com/bcisec/extractor/internal/serialization"
	"github.com/bcisec/extractor/internal/tensor"
)

type adBackend = *autodiff.Backend[*cpu.Backend]

// separableDataset builds a linearly separable two-class problem: class 0
// lives in the positive orthant, class 1 in the negative one.
func separableDataset(t *testing.T, n int) *data.Dataset {
	t.Helper()
	samples := make([][]float32, n)
	labels := make([]int32, n)
	for i := range samples {
		sign := float32(1)
		labels[i] = int32(i % 2)
		if labels[i] == 1 {
			sign = -1
		}
		jitter := float32(i%5) * 0.05
		samples[i] = []float32{
			sign * (1 + jitter),
			sign * (0.8 - jitter),
			sign * (1.2 + jitter),
			sign * 0.9,
		}
	}
	d, err := data.NewDataset(samples, labels, tensor.Shape{4})
	require.NoError(t, err)
	return d
}

// oracleVictim returns a linear model that classifies separableDataset
// perfectly: positive inputs to class 0, negative to class 1.
func oracleVictim(backend adBackend) *nn.Linear[adBackend] {
	victim := nn.NewLinear(4, 2, backend)
	copy(victim.Parameters()[0].Tensor().Raw().AsFloat32(), []float32{
		1, 1, 1, 1,
		-1, -1, -1, -1,
	})
	copy(victim.Parameters()[1].Tensor().Raw().AsFloat32(), []float32{0, 0})
	return victim
}

func cloneWeights(m nn.Module[adBackend]) [][]float32 {
	var out [][]float32
	for _, p := range m.Parameters() {
		out = append(out, append([]float32(nil), p.Tensor().Raw().AsFloat32()...))
	}
	return out
}

func TestTrainEpoch(t *testing.T) {
	backend := autodiff.New(cpu.New())
	dataset := separableDataset(t, 16)
	victim := oracleVictim(backend)
	student := nn.NewLinear(4, 2, backend)

	loader := data.NewLoader(dataset, data.LoaderConfig{BatchSize: 4, Shuffle: true, Seed: 1}, backend)
	optimizer := optim.NewAdam(student.Parameters(), optim.AdamConfig{LR: 0.01}, backend)
	before := cloneWeights(student)

	loss := TrainEpoch(victim, student, loader, optimizer, attack.Config{Steps: 2, Alpha: 0.01}, backend)

	// Two cross-entropy terms over two classes: each starts near ln 2.
	assert.Greater(t, loss, 0.0)
	assert.Less(t, loss, 10.0)

	after := cloneWeights(student)
	changed := false
	for i := range before {
		for j := range before[i] {
			if before[i][j] != after[i][j] {
				changed = true
			}
		}
	}
	assert.True(t, changed, "training left the student untouched")
	assert.Zero(t, backend.Tape().NumOps(), "tape not cleared after training")
}

func TestTrainEpoch_LossDecreases(t *testing.T) {
	backend := autodiff.New(cpu.New())
	dataset := separableDataset(t, 32)
	victim := oracleVictim(backend)
	student := nn.NewLinear(4, 2, backend)

	loader := data.NewLoader(dataset, data.LoaderConfig{BatchSize: 8, Shuffle: true, Seed: 1}, backend)
	optimizer := optim.NewAdam(student.Parameters(), optim.AdamConfig{LR: 0.05}, backend)
	attackCfg := attack.Config{Steps: 2, Alpha: 0.01}

	first := TrainEpoch(victim, student, loader, optimizer, attackCfg, backend)
	var last float64
	for epoch := 0; epoch < 10; epoch++ {
		last = TrainEpoch(victim, student, loader, optimizer, attackCfg, backend)
	}
	assert.Less(t, last, first, "loss did not decrease over epochs")
}

func TestTrainEpoch_VictimFrozen(t *testing.T) {
	backend := autodiff.New(cpu.New())
	dataset := separableDataset(t, 8)
	victim := oracleVictim(backend)
	student := nn.NewLinear(4, 2, backend)

	before := cloneWeights(victim)
	loader := data.NewLoader(dataset, data.LoaderConfig{BatchSize: 4}, backend)
	optimizer := optim.NewAdam(student.Parameters(), optim.AdamConfig{LR: 0.01}, backend)
	TrainEpoch(victim, student, loader, optimizer, attack.Config{Steps: 1}, backend)

	after := cloneWeights(victim)
	assert.Equal(t, before, after, "victim weights changed during distillation")
}

func TestEvaluate(t *testing.T) {
	backend := autodiff.New(cpu.New())
	dataset := separableDataset(t, 12)
	victim := oracleVictim(backend)

	loader := data.NewLoader(dataset, data.LoaderConfig{BatchSize: 4}, backend)
	result := Evaluate(victim, loader, MeanOfMeans, backend)

	// The oracle separates this dataset perfectly.
	assert.InDelta(t, 1.0, result.Accuracy, 1e-9)
	assert.Greater(t, result.Loss, 0.0)
}

func TestEvaluate_Idempotent(t *testing.T) {
	backend := autodiff.New(cpu.New())
	dataset := separableDataset(t, 12)
	model := nn.NewLinear(4, 2, backend)

	loader := data.NewLoader(dataset, data.LoaderConfig{BatchSize: 5}, backend)
	a := Evaluate(model, loader, MeanOfMeans, backend)
	b := Evaluate(model, loader, MeanOfMeans, backend)

	assert.Equal(t, a, b)
	assert.GreaterOrEqual(t, a.Accuracy, 0.0)
	assert.LessOrEqual(t, a.Accuracy, 1.0)
}

func TestEvaluate_LossNorms(t *testing.T) {
	backend := autodiff.New(cpu.New())
	// 10 trials with batch size 4 leaves a partial batch of 2, so the two
	// normalizations must disagree unless all batch means coincide.
	dataset := separableDataset(t, 10)
	model := nn.NewLinear(4, 2, backend)

	loader := data.NewLoader(dataset, data.LoaderConfig{BatchSize: 4}, backend)
	plain := Evaluate(model, loader, MeanOfMeans, backend)
	weighted := Evaluate(model, loader, SampleWeighted, backend)

	assert.Equal(t, plain.Accuracy, weighted.Accuracy, "accuracy must not depend on loss normalization")
	assert.NotEqual(t, plain.Loss, weighted.Loss)
}

func TestEvaluate_AccuracyBatchSizeInvariant(t *testing.T) {
	backend := autodiff.New(cpu.New())
	dataset := separableDataset(t, 14)
	model := nn.NewLinear(4, 2, backend)

	small := data.NewLoader(dataset, data.LoaderConfig{BatchSize: 3}, backend)
	large := data.NewLoader(dataset, data.LoaderConfig{BatchSize: 14}, backend)

	a := Evaluate(model, small, MeanOfMeans, backend)
	b := Evaluate(model, large, MeanOfMeans, backend)
	assert.InDelta(t, a.Accuracy, b.Accuracy, 1e-9, "accuracy must not depend on batching")
}

func TestEvaluate_ConstantPredictor(t *testing.T) {
	backend := autodiff.New(cpu.New())
	dataset := separableDataset(t, 11) // 6 trials of class 0, 5 of class 1

	// Bias forces class 0 regardless of input.
	model := nn.NewLinear(4, 2, backend)
	weights := model.Parameters()[0].Tensor().Raw().AsFloat32()
	for i := range weights {
		weights[i] = 0
	}
	copy(model.Parameters()[1].Tensor().Raw().AsFloat32(), []float32{10, -10})

	loader := data.NewLoader(dataset, data.LoaderConfig{BatchSize: 4}, backend)
	result := Evaluate(model, loader, MeanOfMeans, backend)
	assert.InDelta(t, 6.0/11.0, result.Accuracy, 1e-9)
}

func TestOrchestratorRun_FoldSubset(t *testing.T) {
	backend := autodiff.New(cpu.New())

	cfg := Config{
		VictimName:  "oracle",
		StudentName: "linear",
		Epochs:      2,
		BatchSize:   4,
		LR:          0.05,
		NumFolds:    3,
		FoldStart:   1,
		FoldEnd:     2,
		Seed:        1,
		OutputRoot:  t.TempDir(),
		Attack:      attack.Config{Steps: 1, Alpha: 0.01},
	}

	victim := oracleVictim(backend)
	student := nn.NewLinear(4, 2, backend)
	dataset := separableDataset(t, 18)

	orch := NewOrchestrator(cfg, backend, nil)
	_, err := orch.Run(0, victim, student, dataset)
	require.NoError(t, err)

	saveDir := orch.Config().SaveDir(0)
	_, err = os.Stat(FoldCheckpoint(saveDir, 1))
	assert.NoError(t, err, "selected fold checkpoint missing")
	_, err = os.Stat(FoldCheckpoint(saveDir, 0))
	assert.True(t, os.IsNotExist(err), "fold outside the subset was trained")
	_, err = os.Stat(FoldCheckpoint(saveDir, 2))
	assert.True(t, os.IsNotExist(err), "fold outside the subset was trained")
}

func TestBestTracker(t *testing.T) {
	var tr bestTracker
	assert.True(t, tr.Improved(0.5))
	assert.False(t, tr.Improved(0.5), "ties must not count as improvement")
	assert.False(t, tr.Improved(0.4))
	assert.True(t, tr.Improved(0.75))
	assert.InDelta(t, 0.75, tr.Best(), 1e-12)
	assert.Equal(t, 2, tr.Promotions())
}

func TestConfigPaths(t *testing.T) {
	cfg := Config{
		VictimName:  "deepnet",
		StudentName: "shallownet",
		OutputRoot:  "out",
	}.withDefaults()

	saveDir := cfg.SaveDir(4)
	want := filepath.Join("out", "model", "model_extract_adv", "deepnet_shallownet", "model_extract_4")
	assert.Equal(t, want, saveDir)
	assert.Equal(t, filepath.Join(want, "model_2.pth"), FoldCheckpoint(saveDir, 2))
	assert.Equal(t, filepath.Join(want, "model_best.pth"), BestCheckpoint(saveDir))
}

func TestOrchestratorRun(t *testing.T) {
	backend := autodiff.New(cpu.New())
	root := t.TempDir()

	cfg := Config{
		VictimName:  "oracle",
		StudentName: "linear",
		Epochs:      3,
		BatchSize:   4,
		LR:          0.05,
		NumFolds:    2,
		Seed:        2023,
		OutputRoot:  root,
		Attack:      attack.Config{Steps: 2, Alpha: 0.01},
	}

	victim := oracleVictim(backend)
	student := nn.NewLinear(4, 2, backend)
	dataset := separableDataset(t, 24)

	orch := NewOrchestrator(cfg, backend, nil)
	best, err := orch.Run(4, victim, student, dataset)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, best, 0.0)
	assert.LessOrEqual(t, best, 1.0)

	saveDir := orch.Config().SaveDir(4)
	for fold := 0; fold < cfg.NumFolds; fold++ {
		_, header, err := serialization.LoadStateDict(FoldCheckpoint(saveDir, fold), backend.Device())
		require.NoError(t, err, "fold %d checkpoint missing", fold)
		assert.Equal(t, "linear", header.ModelType)
		require.NotNil(t, header.TrainingMeta)
		assert.Equal(t, fold, header.TrainingMeta.Fold)
	}

	// At least one fold must have been promoted to the global best.
	_, bestHeader, err := serialization.LoadStateDict(BestCheckpoint(saveDir), backend.Device())
	require.NoError(t, err)
	assert.InDelta(t, best, bestHeader.TrainingMeta.TestAcc, 1e-9)

	// Scalar curves land in the mirrored result tree.
	scalars := filepath.Join(metrics.MirrorPath(saveDir), "scalars.csv")
	raw, err := os.ReadFile(scalars)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Loss/Train")
	assert.Contains(t, string(raw), "Loss/Test")
	assert.Contains(t, string(raw), "Acc/Test")
}

func TestOrchestratorRun_StudentLearnsOracle(t *testing.T) {
	backend := autodiff.New(cpu.New())

	cfg := Config{
		VictimName:  "oracle",
		StudentName: "linear",
		Epochs:      8,
		BatchSize:   8,
		LR:          0.05,
		NumFolds:    2,
		Seed:        7,
		OutputRoot:  t.TempDir(),
		Attack:      attack.Config{Steps: 2, Alpha: 0.01},
	}

	victim := oracleVictim(backend)
	student := nn.NewLinear(4, 2, backend)
	dataset := separableDataset(t, 40)

	best, err := NewOrchestrator(cfg, backend, nil).Run(0, victim, student, dataset)
	require.NoError(t, err)

	// A linear student distilling a linear oracle on separable data should
	// end well above chance.
	assert.Greater(t, best, 0.5)
}
