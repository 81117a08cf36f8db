// Command extract-adv runs the model-extraction adversarial-attack pipeline:
// it trains a student EEG classifier to mimic a frozen victim model using
// PGD-perturbed pseudo-labeled batches, under k-fold cross-validation.
//
// The pipeline is CPU-only, so there is no device-selection flag; everything
// runs on the Go CPU backend.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/bcisec/extractor/internal/attack"
	"github.com/bcisec/extractor/internal/autodiff"
	"github.com/bcisec/extractor/internal/backend/cpu"
	"github.com/bcisec/extractor/internal/data"
	"github.com/bcisec/extractor/internal/extraction"
	"github.com/bcisec/extractor/internal/models"
	"github.com/bcisec/extractor/internal/nn"
	"github.com/bcisec/extractor/internal/serialization"
	"github.com/bcisec/extractor/internal/tensor"
)

func main() {
	var (
		victimName = flag.String("victim", "eegconformer", "victim model name (keys the output directory)")
		victimArch = flag.String("victim-arch", models.DeepNetName, "victim architecture: deepnet or shallownet")
		victimCkpt = flag.String("victim-checkpoint", "", "checkpoint to load into the victim (random init when empty)")
		student    = flag.String("student", models.DeepNetName, "student architecture: deepnet or shallownet")
		label      = flag.String("label", "valence", "emotion dimension: valence or arousal")

		epochs      = flag.Int("epochs", 50, "training epochs per fold")
		lr          = flag.Float64("lr", 1e-3, "Adam learning rate")
		batchSize   = flag.Int("batch-size", 64, "mini-batch size")
		weightDecay = flag.Float64("weight-decay", 1e-4, "L2 weight decay")
		folds       = flag.Int("folds", 5, "cross-validation folds")
		foldStart   = flag.Int("fold-start", 0, "first fold to train (inclusive)")
		foldEnd     = flag.Int("fold-end", 0, "last fold to train (exclusive, 0 = all folds)")
		groupFolds  = flag.Bool("group-folds", false, "split folds by trial group instead of by trial")
		runStart    = flag.Int("run-start", 4, "first run index (inclusive)")
		runEnd      = flag.Int("run-end", 5, "last run index (exclusive)")
		seed        = flag.Int64("seed", 2023, "global random seed")
		outputRoot  = flag.String("out", ".", "root directory for the model/ and result/ trees")

		pgdSteps = flag.Int("pgd-steps", 30, "PGD iterations per batch")
		pgdAlpha = flag.Float64("pgd-alpha", 0.001, "PGD step size")

		trials     = flag.Int("trials", 600, "synthetic trials to generate")
		channels   = flag.Int("channels", 32, "EEG channels")
		samples    = flag.Int("samples", 128, "time points per trial")
		numClasses = flag.Int("classes", 2, "output classes")
	)
	flag.Parse()

	logger := log.New(os.Stderr, "", log.LstdFlags)
	if err := run(runConfig{
		victimName: *victimName, victimArch: *victimArch, victimCkpt: *victimCkpt,
		student: *student, label: *label,
		epochs: *epochs, lr: float32(*lr), batchSize: *batchSize,
		weightDecay: float32(*weightDecay), folds: *folds,
		foldStart: *foldStart, foldEnd: *foldEnd, groupFolds: *groupFolds,
		runStart: *runStart, runEnd: *runEnd, seed: *seed, outputRoot: *outputRoot,
		pgdSteps: *pgdSteps, pgdAlpha: float32(*pgdAlpha),
		trials: *trials, channels: *channels, samples: *samples, numClasses: *numClasses,
	}, logger); err != nil {
		logger.Fatal(err)
	}
}

type runConfig struct {
	victimName, victimArch, victimCkpt string
	student, label                     string

	epochs                    int
	lr, weightDecay           float32
	batchSize, folds          int
	foldStart, foldEnd        int
	groupFolds                bool
	runStart, runEnd          int
	seed                      int64
	outputRoot                string
	pgdSteps                  int
	pgdAlpha                  float32
	trials, channels, samples int
	numClasses                int
}

func run(cfg runConfig, logger *log.Logger) error {
	if cfg.label != "valence" && cfg.label != "arousal" {
		return fmt.Errorf("unknown label %q (want valence or arousal)", cfg.label)
	}
	if cfg.runStart >= cfg.runEnd {
		return fmt.Errorf("empty run range [%d, %d)", cfg.runStart, cfg.runEnd)
	}

	tensor.Seed(cfg.seed)
	backend := autodiff.New(cpu.New())

	modelConfig := models.Config{
		Channels:   cfg.channels,
		Samples:    cfg.samples,
		NumClasses: cfg.numClasses,
	}

	victim, err := models.New(cfg.victimArch, modelConfig, backend)
	if err != nil {
		return fmt.Errorf("victim: %w", err)
	}
	if cfg.victimCkpt != "" {
		if err := loadCheckpoint(victim, cfg.victimCkpt, backend); err != nil {
			return fmt.Errorf("victim checkpoint: %w", err)
		}
		logger.Printf("loaded victim weights from %s", cfg.victimCkpt)
	} else {
		logger.Printf("no victim checkpoint given; using a randomly initialized %s victim", cfg.victimArch)
	}

	dataset, err := data.Synthetic(data.SyntheticConfig{
		NumTrials:  cfg.trials,
		Channels:   cfg.channels,
		Samples:    cfg.samples,
		NumClasses: cfg.numClasses,
		Seed:       cfg.seed,
	})
	if err != nil {
		return fmt.Errorf("dataset: %w", err)
	}
	logger.Printf("attack dataset: %d trials of %d x %d, label %s", dataset.Len(), cfg.channels, cfg.samples, cfg.label)

	orch := extraction.NewOrchestrator(extraction.Config{
		VictimName:  cfg.victimName,
		StudentName: cfg.student,
		Epochs:      cfg.epochs,
		BatchSize:   cfg.batchSize,
		LR:          cfg.lr,
		WeightDecay: cfg.weightDecay,
		NumFolds:    cfg.folds,
		FoldStart:   cfg.foldStart,
		FoldEnd:     cfg.foldEnd,
		GroupFolds:  cfg.groupFolds,
		Seed:        cfg.seed,
		OutputRoot:  cfg.outputRoot,
		Attack:      attack.Config{Steps: cfg.pgdSteps, Alpha: cfg.pgdAlpha},
	}, backend, logger)

	for run := cfg.runStart; run < cfg.runEnd; run++ {
		studentModel, err := models.New(cfg.student, modelConfig, backend)
		if err != nil {
			return fmt.Errorf("student: %w", err)
		}

		acc, err := orch.Run(run, victim, studentModel, dataset)
		if err != nil {
			return fmt.Errorf("run %d: %w", run, err)
		}
		fmt.Printf("run %d: best extraction accuracy %.4f (checkpoints under %s)\n",
			run, acc, orch.Config().SaveDir(run))
	}
	return nil
}

func loadCheckpoint[B tensor.Backend](model nn.StateModule[B], path string, backend B) error {
	stateDict, _, err := serialization.LoadStateDict(path, backend.Device())
	if err != nil {
		return err
	}
	return model.LoadStateDict(stateDict)
}
