package extraction

import (
	"fmt"
	"log"
	"path/filepath"

	"github.com/bcisec/extractor/internal/autodiff"
	"github.com/bcisec/extractor/internal/data"
	"github.com/bcisec/extractor/internal/metrics"
	"github.com/bcisec/extractor/internal/nn"
	"github.com/bcisec/extractor/internal/optim"
	"github.com/bcisec/extractor/internal/serialization"
	"github.com/bcisec/extractor/internal/tensor"
)

// Orchestrator drives one extraction run: k-fold cross-validation of a
// student against a frozen victim, with per-fold and global-best
// checkpointing.
//
// Each fold moves through three explicit phases:
//
//	TRAIN_FOLD            train for the configured epochs, snapshotting the
//	                      student whenever its test accuracy strictly
//	                      improves within the fold
//	SELECT_BEST           reload the fold's best snapshot and re-evaluate it
//	MAYBE_PROMOTE_GLOBAL  promote the snapshot to model_best.pth if its
//	                      re-evaluated accuracy strictly beats the best
//	                      across folds so far
type Orchestrator[B tensor.Backend] struct {
	config  Config
	backend *autodiff.Backend[B]
	logger  *log.Logger
}

// NewOrchestrator creates an orchestrator. A nil logger disables progress
// output.
func NewOrchestrator[B tensor.Backend](config Config, backend *autodiff.Backend[B], logger *log.Logger) *Orchestrator[B] {
	return &Orchestrator[B]{
		config:  config.withDefaults(),
		backend: backend,
		logger:  logger,
	}
}

// Config returns the orchestrator's configuration with defaults applied.
func (o *Orchestrator[B]) Config() Config {
	return o.config
}

// Run performs one full extraction run under the given run index and
// returns the best re-evaluated fold accuracy. The student is trained in
// place and ends up holding the weights of the last fold's best snapshot.
func (o *Orchestrator[B]) Run(
	run int,
	victim nn.Module[*autodiff.Backend[B]],
	student nn.StateModule[*autodiff.Backend[B]],
	dataset *data.Dataset,
) (float64, error) {
	cfg := o.config
	saveDir := cfg.SaveDir(run)

	writer, err := metrics.NewWriter(filepath.Join(metrics.MirrorPath(saveDir), "scalars.csv"))
	if err != nil {
		return 0, err
	}
	defer writer.Close()

	optimizer := optim.NewAdam(student.Parameters(), optim.AdamConfig{
		LR:          cfg.LR,
		WeightDecay: cfg.WeightDecay,
	}, o.backend)

	if cfg.FoldStart < 0 || cfg.FoldEnd > cfg.NumFolds || cfg.FoldStart >= cfg.FoldEnd {
		return 0, fmt.Errorf("invalid fold range [%d, %d) of %d folds", cfg.FoldStart, cfg.FoldEnd, cfg.NumFolds)
	}

	splitter := data.KFold{NumFolds: cfg.NumFolds, Shuffle: true, Seed: cfg.Seed}
	var folds []data.Fold
	if cfg.GroupFolds {
		folds, err = splitter.SplitGrouped(dataset.Groups())
	} else {
		folds, err = splitter.Split(dataset.Len())
	}
	if err != nil {
		return 0, err
	}

	var global bestTracker
	for splitIdx := cfg.FoldStart; splitIdx < cfg.FoldEnd; splitIdx++ {
		fold := folds[splitIdx]
		trainLoader := data.NewLoader(dataset.Subset(fold.Train), data.LoaderConfig{
			BatchSize: cfg.BatchSize,
			Shuffle:   true,
			Seed:      cfg.Seed + int64(splitIdx),
		}, o.backend)
		testLoader := data.NewLoader(dataset.Subset(fold.Test), data.LoaderConfig{
			BatchSize: cfg.BatchSize,
		}, o.backend)

		if err := o.trainFold(run, splitIdx, victim, student, trainLoader, testLoader, optimizer, writer, saveDir); err != nil {
			return 0, err
		}

		foldAcc, err := o.selectBest(splitIdx, student, testLoader, writer, saveDir)
		if err != nil {
			return 0, err
		}

		if err := o.maybePromoteGlobal(splitIdx, foldAcc, &global, student, saveDir); err != nil {
			return 0, err
		}
	}
	return global.Best(), nil
}

// trainFold is the TRAIN_FOLD phase: fit the student on one fold's training
// split, checkpointing on strictly improved test accuracy.
func (o *Orchestrator[B]) trainFold(
	run, splitIdx int,
	victim nn.Module[*autodiff.Backend[B]],
	student nn.StateModule[*autodiff.Backend[B]],
	trainLoader, testLoader *data.Loader[*autodiff.Backend[B]],
	optimizer optim.Optimizer,
	writer *metrics.Writer,
	saveDir string,
) error {
	cfg := o.config
	ckptPath := FoldCheckpoint(saveDir, splitIdx)

	var foldBest bestTracker
	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		step := splitIdx*cfg.Epochs + epoch

		trainLoss := TrainEpoch(victim, student, trainLoader, optimizer, cfg.Attack, o.backend)
		if err := writer.AddScalar("Loss/Train", trainLoss, step); err != nil {
			return err
		}

		eval := Evaluate(student, testLoader, cfg.LossNorm, o.backend)
		if err := writer.AddScalar("Loss/Test", eval.Loss, step); err != nil {
			return err
		}

		o.logf("run %d fold %d epoch %d: train loss %.4f, test loss %.4f, test acc %.4f",
			run, splitIdx, epoch, trainLoss, eval.Loss, eval.Accuracy)

		if foldBest.Improved(eval.Accuracy) {
			meta := &serialization.TrainingMeta{
				Fold:     splitIdx,
				Epoch:    epoch,
				TestAcc:  eval.Accuracy,
				TestLoss: eval.Loss,
			}
			if err := serialization.SaveStateDict(ckptPath, student.StateDict(), cfg.StudentName, meta); err != nil {
				return fmt.Errorf("fold %d: %w", splitIdx, err)
			}
		}
	}

	// A student that never beat zero accuracy leaves no snapshot; persist
	// the final state so SELECT_BEST has something to reload.
	if foldBest.Promotions() == 0 {
		meta := &serialization.TrainingMeta{Fold: splitIdx, Epoch: cfg.Epochs - 1}
		if err := serialization.SaveStateDict(ckptPath, student.StateDict(), cfg.StudentName, meta); err != nil {
			return fmt.Errorf("fold %d: %w", splitIdx, err)
		}
	}
	return nil
}

// selectBest is the SELECT_BEST phase: reload the fold's best snapshot into
// the student and re-evaluate it on the fold's test split.
func (o *Orchestrator[B]) selectBest(
	splitIdx int,
	student nn.StateModule[*autodiff.Backend[B]],
	testLoader *data.Loader[*autodiff.Backend[B]],
	writer *metrics.Writer,
	saveDir string,
) (float64, error) {
	stateDict, _, err := serialization.LoadStateDict(FoldCheckpoint(saveDir, splitIdx), o.backend.Device())
	if err != nil {
		return 0, fmt.Errorf("fold %d reload: %w", splitIdx, err)
	}
	if err := student.LoadStateDict(stateDict); err != nil {
		return 0, fmt.Errorf("fold %d reload: %w", splitIdx, err)
	}

	eval := Evaluate(student, testLoader, o.config.LossNorm, o.backend)
	if err := writer.AddScalar("Acc/Test", eval.Accuracy, splitIdx+1); err != nil {
		return 0, err
	}
	return eval.Accuracy, nil
}

// maybePromoteGlobal is the MAYBE_PROMOTE_GLOBAL phase: persist the current
// student as the global best when the fold's re-evaluated accuracy strictly
// beats all previous folds.
func (o *Orchestrator[B]) maybePromoteGlobal(
	splitIdx int,
	foldAcc float64,
	global *bestTracker,
	student nn.StateModule[*autodiff.Backend[B]],
	saveDir string,
) error {
	if !global.Improved(foldAcc) {
		return nil
	}
	o.logf("fold %d: new global best accuracy %.4f", splitIdx, foldAcc)

	meta := &serialization.TrainingMeta{Fold: splitIdx, TestAcc: foldAcc}
	if err := serialization.SaveStateDict(BestCheckpoint(saveDir), student.StateDict(), o.config.StudentName, meta); err != nil {
		return fmt.Errorf("promote fold %d: %w", splitIdx, err)
	}
	return nil
}

func (o *Orchestrator[B]) logf(format string, args ...any) {
	if o.logger != nil {
		o.logger.Printf(format, args...)
	}
}
