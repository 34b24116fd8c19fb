// Package metrics provides the classification metrics the pipeline reports:
// accuracy, precision/recall/F1, confusion matrices, and ROC/AUC.
package metrics

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/edustats/dropout/pkg/errors"
)

func checkPair(op string, yTrue, yPred *mat.VecDense) (int, error) {
	if yTrue == nil || yTrue.Len() == 0 {
		return 0, errors.NewValueError(op, "empty vector")
	}
	if yPred == nil || yPred.Len() != yTrue.Len() {
		got := 0
		if yPred != nil {
			got = yPred.Len()
		}
		return 0, errors.NewDimensionError(op, yTrue.Len(), got, 0)
	}
	return yTrue.Len(), nil
}

// Accuracy returns the fraction of exact label matches.
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("Accuracy", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	correct := 0
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == yPred.AtVec(i) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// Precision returns tp / (tp + fp) for the given positive class. With no
// predicted positives the metric is undefined; it returns 0 and emits an
// UndefinedMetricWarning.
func Precision(yTrue, yPred *mat.VecDense, positive int) (float64, error) {
	n, err := checkPair("Precision", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	tp, fp := 0, 0
	for i := 0; i < n; i++ {
		if int(yPred.AtVec(i)) == positive {
			if int(yTrue.AtVec(i)) == positive {
				tp++
			} else {
				fp++
			}
		}
	}
	if tp+fp == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("precision", "no predicted positives", 0))
		return 0, nil
	}
	return float64(tp) / float64(tp+fp), nil
}

// Recall returns tp / (tp + fn) for the given positive class. With no true
// positives in yTrue the metric is undefined; it returns 0 and emits an
// UndefinedMetricWarning.
func Recall(yTrue, yPred *mat.VecDense, positive int) (float64, error) {
	n, err := checkPair("Recall", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	tp, fn := 0, 0
	for i := 0; i < n; i++ {
		if int(yTrue.AtVec(i)) == positive {
			if int(yPred.AtVec(i)) == positive {
				tp++
			} else {
				fn++
			}
		}
	}
	if tp+fn == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("recall", "no true positives", 0))
		return 0, nil
	}
	return float64(tp) / float64(tp+fn), nil
}

// F1Score returns the harmonic mean of precision and recall for the given
// positive class, 0 when both are 0.
func F1Score(yTrue, yPred *mat.VecDense, positive int) (float64, error) {
	prec, err := Precision(yTrue, yPred, positive)
	if err != nil {
		return 0, err
	}
	rec, err := Recall(yTrue, yPred, positive)
	if err != nil {
		return 0, err
	}
	if prec+rec == 0 {
		return 0, nil
	}
	return 2 * prec * rec / (prec + rec), nil
}

func uniqueClasses(vecs ...*mat.VecDense) []int {
	seen := make(map[int]bool)
	for _, v := range vecs {
		for i := 0; i < v.Len(); i++ {
			seen[int(v.AtVec(i))] = true
		}
	}
	classes := make([]int, 0, len(seen))
	for c := range seen {
		classes = append(classes, c)
	}
	sort.Ints(classes)
	return classes
}

// MacroF1 averages the one-vs-rest F1 over all classes present in yTrue or
// yPred.
func MacroF1(yTrue, yPred *mat.VecDense) (float64, error) {
	if _, err := checkPair("MacroF1", yTrue, yPred); err != nil {
		return 0, err
	}

	classes := uniqueClasses(yTrue, yPred)
	var sum float64
	for _, c := range classes {
		f1, err := F1Score(yTrue, yPred, c)
		if err != nil {
			return 0, err
		}
		sum += f1
	}
	return sum / float64(len(classes)), nil
}

// Confusion is a confusion matrix over the sorted class set. Counts[i][j] is
// the number of samples with true class Classes[i] predicted as Classes[j].
type Confusion struct {
	Classes []int
	Counts  [][]int
}

// ConfusionMatrix builds the confusion matrix for a prediction run.
func ConfusionMatrix(yTrue, yPred *mat.VecDense) (*Confusion, error) {
	n, err := checkPair("ConfusionMatrix", yTrue, yPred)
	if err != nil {
		return nil, err
	}

	classes := uniqueClasses(yTrue, yPred)
	index := make(map[int]int, len(classes))
	for i, c := range classes {
		index[c] = i
	}

	counts := make([][]int, len(classes))
	for i := range counts {
		counts[i] = make([]int, len(classes))
	}
	for i := 0; i < n; i++ {
		counts[index[int(yTrue.AtVec(i))]][index[int(yPred.AtVec(i))]]++
	}
	return &Confusion{Classes: classes, Counts: counts}, nil
}

// At returns the count of samples with the given true class predicted as the
// given class.
func (c *Confusion) At(trueClass, predClass int) int {
	ti, pi := -1, -1
	for i, cls := range c.Classes {
		if cls == trueClass {
			ti = i
		}
		if cls == predClass {
			pi = i
		}
	}
	if ti < 0 || pi < 0 {
		return 0
	}
	return c.Counts[ti][pi]
}

// String renders the matrix with predicted classes as columns.
func (c *Confusion) String() string {
	var b strings.Builder
	b.WriteString("true\\pred")
	for _, cls := range c.Classes {
		fmt.Fprintf(&b, "%8d", cls)
	}
	b.WriteString("\n")
	for i, cls := range c.Classes {
		fmt.Fprintf(&b, "%9d", cls)
		for j := range c.Classes {
			fmt.Fprintf(&b, "%8d", c.Counts[i][j])
		}
		b.WriteString("\n")
	}
	return b.String()
}

// AUC computes the area under the ROC curve for binary labels (0/1) and
// continuous scores, by pairwise ranking with ties counted as half. When only
// one class is present the metric is undefined: it returns 0.5 and emits an
// UndefinedMetricWarning.
func AUC(yTrue, yScore *mat.VecDense) (float64, error) {
	n, err := checkPair("AUC", yTrue, yScore)
	if err != nil {
		return 0, err
	}

	var pos, neg []float64
	for i := 0; i < n; i++ {
		switch yTrue.AtVec(i) {
		case 0:
			neg = append(neg, yScore.AtVec(i))
		case 1:
			pos = append(pos, yScore.AtVec(i))
		default:
			return 0, errors.NewValueError("AUC",
				fmt.Sprintf("labels must be 0 or 1, got %g", yTrue.AtVec(i)))
		}
	}
	if len(pos) == 0 || len(neg) == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("roc_auc", "only one class present", 0.5))
		return 0.5, nil
	}

	var wins float64
	for _, p := range pos {
		for _, q := range neg {
			switch {
			case p > q:
				wins += 1
			case p == q:
				wins += 0.5
			}
		}
	}
	return wins / float64(len(pos)*len(neg)), nil
}

// ROCCurve returns the ROC points for binary labels and scores, sweeping the
// threshold over the distinct scores from high to low. The first point is
// (0, 0) and the last is (1, 1).
func ROCCurve(yTrue, yScore *mat.VecDense) (fpr, tpr []float64, err error) {
	n, err := checkPair("ROCCurve", yTrue, yScore)
	if err != nil {
		return nil, nil, err
	}

	nPos, nNeg := 0, 0
	type point struct {
		score float64
		label int
	}
	points := make([]point, n)
	for i := 0; i < n; i++ {
		label := int(yTrue.AtVec(i))
		if label != 0 && label != 1 {
			return nil, nil, errors.NewValueError("ROCCurve",
				fmt.Sprintf("labels must be 0 or 1, got %d", label))
		}
		if label == 1 {
			nPos++
		} else {
			nNeg++
		}
		points[i] = point{score: yScore.AtVec(i), label: label}
	}
	if nPos == 0 || nNeg == 0 {
		return nil, nil, errors.NewValueError("ROCCurve", "need both classes to draw a ROC curve")
	}

	sort.Slice(points, func(i, j int) bool { return points[i].score > points[j].score })

	fpr = []float64{0}
	tpr = []float64{0}
	tp, fp := 0, 0
	for i := 0; i < n; {
		// Consume all points sharing a score so ties move diagonally.
		score := points[i].score
		for i < n && points[i].score == score {
			if points[i].label == 1 {
				tp++
			} else {
				fp++
			}
			i++
		}
		fpr = append(fpr, float64(fp)/float64(nNeg))
		tpr = append(tpr, float64(tp)/float64(nPos))
	}
	return fpr, tpr, nil
}

// Report renders a per-class precision/recall/F1 table with supports and the
// overall accuracy. names maps class codes to display labels; missing codes
// render numerically.
func Report(yTrue, yPred *mat.VecDense, names map[int]string) (string, error) {
	n, err := checkPair("Report", yTrue, yPred)
	if err != nil {
		return "", err
	}

	classes := uniqueClasses(yTrue, yPred)

	var b strings.Builder
	fmt.Fprintf(&b, "%-16s %9s %9s %9s %9s\n", "", "precision", "recall", "f1-score", "support")
	for _, c := range classes {
		prec, err := Precision(yTrue, yPred, c)
		if err != nil {
			return "", err
		}
		rec, err := Recall(yTrue, yPred, c)
		if err != nil {
			return "", err
		}
		var f1 float64
		if prec+rec > 0 {
			f1 = 2 * prec * rec / (prec + rec)
		}
		support := 0
		for i := 0; i < n; i++ {
			if int(yTrue.AtVec(i)) == c {
				support++
			}
		}

		name, ok := names[c]
		if !ok {
			name = fmt.Sprintf("%d", c)
		}
		fmt.Fprintf(&b, "%-16s %9.3f %9.3f %9.3f %9d\n", name, prec, rec, f1, support)
	}

	acc, err := Accuracy(yTrue, yPred)
	if err != nil {
		return "", err
	}
	fmt.Fprintf(&b, "\n%-16s %29.3f %9d\n", "accuracy", acc, n)
	return b.String(), nil
}

// Vec converts an n×1 matrix (the shape Predict returns) to a VecDense.
func Vec(m mat.Matrix) (*mat.VecDense, error) {
	r, c := m.Dims()
	if c != 1 {
		return nil, errors.NewValueError("Vec", "must be a column vector (n×1 matrix)")
	}
	v := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		v.SetVec(i, m.At(i, 0))
	}
	return v, nil
}

// AlmostEqual reports whether two floats agree within tolerance. Shared by
// tests and threshold comparisons.
func AlmostEqual(a, b, tolerance float64) bool {
	return math.Abs(a-b) <= tolerance
}
