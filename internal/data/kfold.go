package data

import (
	"fmt"
	"math/rand"
)

// Fold is one train/test split of a k-fold partition. Index slices refer to
// positions in the dataset that was split.
type Fold struct {
	Train []int
	Test  []int
}

// KFold partitions trial indices into k disjoint test folds, sklearn-style:
// the first n mod k folds receive one extra trial. With Shuffle set the
// indices are permuted with the given seed before partitioning, so the same
// seed reproduces the same splits.
type KFold struct {
	NumFolds int
	Shuffle  bool
	Seed     int64
}

// Split returns the k folds for a dataset of n trials.
func (kf KFold) Split(n int) ([]Fold, error) {
	if kf.NumFolds < 2 {
		return nil, fmt.Errorf("data: k-fold needs at least 2 folds, got %d", kf.NumFolds)
	}
	if n < kf.NumFolds {
		return nil, fmt.Errorf("data: cannot split %d trials into %d folds", n, kf.NumFolds)
	}

	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	if kf.Shuffle {
		rng := rand.New(rand.NewSource(kf.Seed))
		rng.Shuffle(n, func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
	}

	base := n / kf.NumFolds
	extra := n % kf.NumFolds

	folds := make([]Fold, kf.NumFolds)
	start := 0
	for f := 0; f < kf.NumFolds; f++ {
		size := base
		if f < extra {
			size++
		}
		test := indices[start : start+size]
		train := make([]int, 0, n-size)
		train = append(train, indices[:start]...)
		train = append(train, indices[start+size:]...)

		folds[f] = Fold{
			Train: train,
			Test:  append([]int(nil), test...),
		}
		start += size
	}
	return folds, nil
}

// SplitGrouped returns k folds for trials carrying group ids, assigning
// whole groups to test buckets so windows of one recording never straddle
// the train/test boundary. groups holds one id per trial.
func (kf KFold) SplitGrouped(groups []int) ([]Fold, error) {
	if kf.NumFolds < 2 {
		return nil, fmt.Errorf("data: k-fold needs at least 2 folds, got %d", kf.NumFolds)
	}

	// Unique group ids in first-seen order, plus their member trials.
	members := make(map[int][]int)
	var unique []int
	for i, g := range groups {
		if _, seen := members[g]; !seen {
			unique = append(unique, g)
		}
		members[g] = append(members[g], i)
	}
	if len(unique) < kf.NumFolds {
		return nil, fmt.Errorf("data: cannot split %d groups into %d folds", len(unique), kf.NumFolds)
	}

	if kf.Shuffle {
		rng := rand.New(rand.NewSource(kf.Seed))
		rng.Shuffle(len(unique), func(i, j int) {
			unique[i], unique[j] = unique[j], unique[i]
		})
	}

	base := len(unique) / kf.NumFolds
	extra := len(unique) % kf.NumFolds

	folds := make([]Fold, kf.NumFolds)
	start := 0
	for f := 0; f < kf.NumFolds; f++ {
		size := base
		if f < extra {
			size++
		}
		testGroups := make(map[int]bool, size)
		for _, g := range unique[start : start+size] {
			testGroups[g] = true
		}

		var train, test []int
		for _, g := range unique {
			if testGroups[g] {
				test = append(test, members[g]...)
			} else {
				train = append(train, members[g]...)
			}
		}
		folds[f] = Fold{Train: train, Test: test}
		start += size
	}
	return folds, nil
}
