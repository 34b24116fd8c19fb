// Package neighbors implements the k-nearest-neighbors classifier used for
// dropout prediction.
package neighbors

import (
	"bytes"
	"encoding/gob"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/edustats/dropout/core/model"
	"github.com/edustats/dropout/core/parallel"
	"github.com/edustats/dropout/pkg/errors"
)

// Neighbor vote weighting.
const (
	WeightUniform  = "uniform"
	WeightDistance = "distance"
)

// KNNClassifier is a lazy classifier: Fit stores the training data and
// Predict votes among the k nearest training points by squared Euclidean
// distance. Features should be scaled first or large-ranged columns dominate
// the metric.
type KNNClassifier struct {
	State *model.StateManager

	// Hyperparameters
	K       int
	Weights string

	// Training data, public for gob encoding.
	XTrain   *mat.Dense
	YTrain   []int
	ClassSet []int
}

// KNNOption is a functional option for KNNClassifier.
type KNNOption func(*KNNClassifier)

// WithKNNWeights sets the vote weighting: "uniform" (default) or "distance".
func WithKNNWeights(weights string) KNNOption {
	return func(k *KNNClassifier) {
		k.Weights = weights
	}
}

// NewKNNClassifier creates a KNN classifier with the given neighbor count.
func NewKNNClassifier(k int, opts ...KNNOption) *KNNClassifier {
	knn := &KNNClassifier{
		State:   model.NewStateManager(),
		K:       k,
		Weights: WeightUniform,
	}
	for _, opt := range opts {
		opt(knn)
	}
	return knn
}

// Fit stores the training data after validating shapes and hyperparameters.
func (k *KNNClassifier) Fit(X, y mat.Matrix) error {
	if k.K < 1 {
		return errors.NewValidationError("k", "must be at least 1", k.K)
	}
	if k.Weights != WeightUniform && k.Weights != WeightDistance {
		return errors.NewValidationError("weights", "must be uniform or distance", k.Weights)
	}

	nSamples, nFeatures := X.Dims()
	yRows, yCols := y.Dims()
	if nSamples == 0 {
		return errors.ErrEmptyData
	}
	if yRows != nSamples {
		return errors.NewDimensionError("KNNClassifier.Fit", nSamples, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewValueError("KNNClassifier.Fit", "y must be a column vector")
	}
	if k.K > nSamples {
		return errors.NewValidationError("k", "must not exceed the number of training samples", k.K)
	}

	k.XTrain = mat.DenseCopyOf(X)
	k.YTrain = make([]int, nSamples)
	classSet := make(map[int]bool)
	for i := 0; i < nSamples; i++ {
		label := int(y.At(i, 0))
		k.YTrain[i] = label
		classSet[label] = true
	}

	k.ClassSet = make([]int, 0, len(classSet))
	for c := range classSet {
		k.ClassSet = append(k.ClassSet, c)
	}
	sort.Ints(k.ClassSet)

	k.State.SetDimensions(nFeatures, nSamples)
	k.State.SetFitted()
	return nil
}

// Predict returns the majority-vote class for each row of X. Vote ties break
// toward the lowest class code.
func (k *KNNClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	probas, err := k.PredictProba(X)
	if err != nil {
		return nil, err
	}

	nSamples, _ := X.Dims()
	out := mat.NewDense(nSamples, 1, nil)
	for i := 0; i < nSamples; i++ {
		best, bestShare := 0, -1.0
		for ci := range k.ClassSet {
			if share := probas.At(i, ci); share > bestShare {
				best, bestShare = ci, share
			}
		}
		out.Set(i, 0, float64(k.ClassSet[best]))
	}
	return out, nil
}

// PredictProba returns neighbor vote shares per class, columns ordered as
// Classes(). With distance weighting, votes are weighted by inverse distance;
// exact matches (distance 0) split the whole vote among themselves.
func (k *KNNClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := k.State.RequireFitted("KNNClassifier", "PredictProba"); err != nil {
		return nil, err
	}
	nSamples, nFeatures := X.Dims()
	if err := k.State.ValidateFeatures("KNNClassifier.PredictProba", nFeatures); err != nil {
		return nil, err
	}

	classIndex := make(map[int]int, len(k.ClassSet))
	for i, c := range k.ClassSet {
		classIndex[c] = i
	}

	out := mat.NewDense(nSamples, len(k.ClassSet), nil)
	parallel.ParallelizeWithThreshold(nSamples, 32, func(start, end int) {
		for i := start; i < end; i++ {
			k.voteShares(mat.Row(nil, i, X), classIndex, out, i)
		}
	})
	return out, nil
}

type neighbor struct {
	dist  float64
	label int
}

func (k *KNNClassifier) voteShares(xi []float64, classIndex map[int]int, out *mat.Dense, row int) {
	// Maintain a small sorted slice of the k best neighbors; training sets at
	// this scale don't justify a heap.
	nbrs := make([]neighbor, 0, k.K)
	nTrain, _ := k.XTrain.Dims()

	for j := 0; j < nTrain; j++ {
		d := euclidSquared(xi, k.XTrain.RawRowView(j))
		if len(nbrs) < k.K {
			nbrs = append(nbrs, neighbor{dist: d, label: k.YTrain[j]})
			sort.Slice(nbrs, func(a, b int) bool { return nbrs[a].dist < nbrs[b].dist })
		} else if d < nbrs[len(nbrs)-1].dist {
			nbrs[len(nbrs)-1] = neighbor{dist: d, label: k.YTrain[j]}
			sort.Slice(nbrs, func(a, b int) bool { return nbrs[a].dist < nbrs[b].dist })
		}
	}

	votes := make([]float64, len(k.ClassSet))
	var total float64
	if k.Weights == WeightDistance && nbrs[0].dist == 0 {
		// Exact matches take the whole vote. Several training points may
		// coincide with the query, so every zero-distance neighbor counts;
		// nbrs is sorted, so they sit at the front.
		for _, nb := range nbrs {
			if nb.dist != 0 {
				break
			}
			votes[classIndex[nb.label]]++
			total++
		}
	} else {
		for _, nb := range nbrs {
			w := 1.0
			if k.Weights == WeightDistance {
				w = 1 / nb.dist
			}
			votes[classIndex[nb.label]] += w
			total += w
		}
	}

	for ci, v := range votes {
		out.Set(row, ci, v/total)
	}
}

// Score returns the mean accuracy on the given test data.
func (k *KNNClassifier) Score(X, y mat.Matrix) (float64, error) {
	preds, err := k.Predict(X)
	if err != nil {
		return 0, err
	}

	nSamples, _ := X.Dims()
	correct := 0
	for i := 0; i < nSamples; i++ {
		if preds.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(nSamples), nil
}

// Classes returns the sorted unique class codes seen during fitting.
func (k *KNNClassifier) Classes() []int {
	return k.ClassSet
}

// GetParams returns the hyperparameters.
func (k *KNNClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_neighbors": k.K,
		"weights":     k.Weights,
	}
}

// knnState is the gob wire form of a fitted KNNClassifier. XTrain travels as
// the matrix's binary encoding since mat.Dense has no exported fields.
type knnState struct {
	Fitted    bool
	NFeatures int
	NSamples  int
	K         int
	Weights   string
	XTrain    []byte
	YTrain    []int
	ClassSet  []int
}

// GobEncode implements gob.GobEncoder.
func (k *KNNClassifier) GobEncode() ([]byte, error) {
	nFeatures, nSamples := k.State.GetDimensions()
	state := knnState{
		Fitted:    k.State.IsFitted(),
		NFeatures: nFeatures,
		NSamples:  nSamples,
		K:         k.K,
		Weights:   k.Weights,
		YTrain:    k.YTrain,
		ClassSet:  k.ClassSet,
	}
	if k.XTrain != nil {
		raw, err := k.XTrain.MarshalBinary()
		if err != nil {
			return nil, errors.Wrap(err, "failed to encode training data")
		}
		state.XTrain = raw
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(state); err != nil {
		return nil, errors.Wrap(err, "failed to encode KNNClassifier")
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder.
func (k *KNNClassifier) GobDecode(data []byte) error {
	var state knnState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&state); err != nil {
		return errors.Wrap(err, "failed to decode KNNClassifier")
	}

	k.K = state.K
	k.Weights = state.Weights
	k.YTrain = state.YTrain
	k.ClassSet = state.ClassSet
	if state.XTrain != nil {
		k.XTrain = &mat.Dense{}
		if err := k.XTrain.UnmarshalBinary(state.XTrain); err != nil {
			return errors.Wrap(err, "failed to decode training data")
		}
	}

	k.State = model.NewStateManager()
	k.State.SetDimensions(state.NFeatures, state.NSamples)
	if state.Fitted {
		k.State.SetFitted()
	}
	return nil
}

func euclidSquared(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

var _ model.Classifier = (*KNNClassifier)(nil)
