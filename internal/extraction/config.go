package extraction

import (
	"fmt"
	"path/filepath"

	"github.com/bcisec/extractor/internal/attack"
)

// Config parameterizes one extraction run.
type Config struct {
	// VictimName and StudentName key the checkpoint directory.
	VictimName  string
	StudentName string

	Epochs      int
	BatchSize   int
	LR          float32
	WeightDecay float32

	// NumFolds is the k of the cross-validation split. FoldStart and
	// FoldEnd select the half-open subset of folds actually trained;
	// a zero FoldEnd means all folds.
	NumFolds  int
	FoldStart int
	FoldEnd   int

	// GroupFolds splits by trial group instead of by trial, keeping all
	// windows of one recording inside a single fold bucket.
	GroupFolds bool

	// Seed drives the fold split and the loaders' shuffle order.
	Seed int64

	// OutputRoot is the directory holding the model/ and result/ trees.
	// Defaults to the current directory.
	OutputRoot string

	Attack   attack.Config
	LossNorm LossNorm
}

func (c Config) withDefaults() Config {
	if c.Epochs == 0 {
		c.Epochs = 50
	}
	if c.BatchSize == 0 {
		c.BatchSize = 64
	}
	if c.LR == 0 {
		c.LR = 1e-3
	}
	if c.NumFolds == 0 {
		c.NumFolds = 5
	}
	if c.FoldEnd == 0 {
		c.FoldEnd = c.NumFolds
	}
	if c.OutputRoot == "" {
		c.OutputRoot = "."
	}
	return c
}

// SaveDir returns the checkpoint directory for run index run:
// <root>/model/model_extract_adv/<victim>_<student>/model_extract_<run>.
func (c Config) SaveDir(run int) string {
	pair := c.VictimName + "_" + c.StudentName
	return filepath.Join(c.OutputRoot, "model", "model_extract_adv", pair, fmt.Sprintf("model_extract_%d", run))
}

// FoldCheckpoint returns the per-fold best checkpoint path within saveDir.
func FoldCheckpoint(saveDir string, fold int) string {
	return filepath.Join(saveDir, fmt.Sprintf("model_%d.pth", fold))
}

// BestCheckpoint returns the global-best checkpoint path within saveDir.
func BestCheckpoint(saveDir string) string {
	return filepath.Join(saveDir, "model_best.pth")
}
