// Package model_selection provides train/test splitting and k-fold
// cross-validation over gonum matrices.
package model_selection

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/edustats/dropout/pkg/errors"
)

// TrainTestSplit shuffles the samples with the given seed and splits them
// into train and test sets. testSize is the test fraction in (0, 1).
func TrainTestSplit(X, y mat.Matrix, testSize float64, seed int64) (XTrain, XTest, yTrain, yTest *mat.Dense, err error) {
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, nil, nil, errors.NewValidationError("test_size", "must be in (0, 1)", testSize)
	}

	nSamples, _ := X.Dims()
	yRows, _ := y.Dims()
	if nSamples == 0 {
		return nil, nil, nil, nil, errors.ErrEmptyData
	}
	if yRows != nSamples {
		return nil, nil, nil, nil, errors.NewDimensionError("TrainTestSplit", nSamples, yRows, 0)
	}

	nTest := int(float64(nSamples) * testSize)
	if nTest == 0 || nTest == nSamples {
		return nil, nil, nil, nil, errors.NewValidationError("test_size",
			"leaves an empty train or test set", testSize)
	}

	perm := rand.New(rand.NewSource(seed)).Perm(nSamples)
	XTrain, yTrain = Subset(X, y, perm[nTest:])
	XTest, yTest = Subset(X, y, perm[:nTest])
	return XTrain, XTest, yTrain, yTest, nil
}

// Subset extracts the given sample rows of X and y into fresh matrices.
func Subset(X, y mat.Matrix, indices []int) (*mat.Dense, *mat.Dense) {
	_, nFeatures := X.Dims()

	Xs := mat.NewDense(len(indices), nFeatures, nil)
	ys := mat.NewDense(len(indices), 1, nil)
	for i, idx := range indices {
		for j := 0; j < nFeatures; j++ {
			Xs.Set(i, j, X.At(idx, j))
		}
		ys.Set(i, 0, y.At(idx, 0))
	}
	return Xs, ys
}

// Fold is one cross-validation round: the samples to fit on and the samples
// to score on.
type Fold struct {
	TrainIndices []int
	TestIndices  []int
}

// KFold splits samples into k consecutive folds, optionally shuffled.
type KFold struct {
	NSplits int
	Shuffle bool
	Seed    int64
}

// NewKFold creates a k-fold splitter.
func NewKFold(nSplits int, shuffle bool, seed int64) *KFold {
	return &KFold{NSplits: nSplits, Shuffle: shuffle, Seed: seed}
}

// Split produces the folds for n samples. Each sample lands in exactly one
// test fold.
func (kf *KFold) Split(X, _ mat.Matrix) ([]Fold, error) {
	nSamples, _ := X.Dims()
	if kf.NSplits < 2 {
		return nil, errors.NewValidationError("n_splits", "must be at least 2", kf.NSplits)
	}
	if kf.NSplits > nSamples {
		return nil, errors.NewValidationError("n_splits",
			"must not exceed the number of samples", kf.NSplits)
	}

	order := make([]int, nSamples)
	for i := range order {
		order[i] = i
	}
	if kf.Shuffle {
		rand.New(rand.NewSource(kf.Seed)).Shuffle(nSamples, func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
	}

	// Distribute the remainder one extra sample per leading fold.
	folds := make([]Fold, kf.NSplits)
	foldSize := nSamples / kf.NSplits
	remainder := nSamples % kf.NSplits
	pos := 0
	for f := 0; f < kf.NSplits; f++ {
		size := foldSize
		if f < remainder {
			size++
		}
		test := order[pos : pos+size]
		pos += size

		fold := Fold{TestIndices: append([]int(nil), test...)}
		inTest := make(map[int]bool, len(test))
		for _, idx := range test {
			inTest[idx] = true
		}
		for _, idx := range order {
			if !inTest[idx] {
				fold.TrainIndices = append(fold.TrainIndices, idx)
			}
		}
		folds[f] = fold
	}
	return folds, nil
}

// StratifiedKFold splits samples so each fold keeps roughly the overall class
// proportions. Important here: dropout labels are imbalanced.
type StratifiedKFold struct {
	NSplits int
	Shuffle bool
	Seed    int64
}

// NewStratifiedKFold creates a stratified k-fold splitter.
func NewStratifiedKFold(nSplits int, shuffle bool, seed int64) *StratifiedKFold {
	return &StratifiedKFold{NSplits: nSplits, Shuffle: shuffle, Seed: seed}
}

// Split produces stratified folds using the class labels in y.
func (skf *StratifiedKFold) Split(X, y mat.Matrix) ([]Fold, error) {
	nSamples, _ := X.Dims()
	yRows, _ := y.Dims()
	if skf.NSplits < 2 {
		return nil, errors.NewValidationError("n_splits", "must be at least 2", skf.NSplits)
	}
	if yRows != nSamples {
		return nil, errors.NewDimensionError("StratifiedKFold.Split", nSamples, yRows, 0)
	}
	if skf.NSplits > nSamples {
		return nil, errors.NewValidationError("n_splits",
			"must not exceed the number of samples", skf.NSplits)
	}

	byClass := make(map[int][]int)
	for i := 0; i < nSamples; i++ {
		label := int(y.At(i, 0))
		byClass[label] = append(byClass[label], i)
	}

	// Every fold must receive at least one test sample of every class, so
	// n_splits is bounded by the smallest class.
	for label, indices := range byClass {
		if len(indices) < skf.NSplits {
			return nil, errors.NewValidationError("n_splits",
				fmt.Sprintf("must not exceed the %d members of class %d", len(indices), label), skf.NSplits)
		}
	}

	rng := rand.New(rand.NewSource(skf.Seed))
	testSets := make([][]int, skf.NSplits)
	for _, indices := range byClass {
		if skf.Shuffle {
			rng.Shuffle(len(indices), func(i, j int) {
				indices[i], indices[j] = indices[j], indices[i]
			})
		}
		// Deal this class's samples round-robin across folds.
		for i, idx := range indices {
			f := i % skf.NSplits
			testSets[f] = append(testSets[f], idx)
		}
	}

	folds := make([]Fold, skf.NSplits)
	for f := range folds {
		inTest := make(map[int]bool, len(testSets[f]))
		for _, idx := range testSets[f] {
			inTest[idx] = true
		}
		fold := Fold{TestIndices: testSets[f]}
		for i := 0; i < nSamples; i++ {
			if !inTest[i] {
				fold.TrainIndices = append(fold.TrainIndices, i)
			}
		}
		folds[f] = fold
	}
	return folds, nil
}
