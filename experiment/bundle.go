// Package experiment runs the training pipeline end to end: load and audit
// the dataset, repair and encode it, train the configured classifiers,
// evaluate them, and persist a serving bundle.
package experiment

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/edustats/dropout/core/model"
	"github.com/edustats/dropout/dataset"
	"github.com/edustats/dropout/linear_model"
	"github.com/edustats/dropout/neighbors"
	"github.com/edustats/dropout/pkg/errors"
	"github.com/edustats/dropout/preprocessing"
	"github.com/edustats/dropout/svm"
)

// Scaler kinds recorded in a bundle.
const (
	ScalerStandard = "standard"
	ScalerMinMax   = "minmax"
	ScalerNone     = "none"
)

// Bundle packages everything the serving path needs to turn a raw student
// record into a prediction: the fitted preprocessing steps, the trained
// models, and the label mapping. Model fields are concrete types so the
// whole bundle round-trips through gob.
type Bundle struct {
	TargetColumn   string
	PositiveLabel  string
	FeatureColumns []string
	// EncodedColumns is the model input layout: numeric columns keep their
	// name, categorical columns expand to "column=category".
	EncodedColumns []string
	Categorical    []string
	ImputeStrategy string

	Imputers map[string]*preprocessing.SimpleImputer
	Encoders map[string]*preprocessing.OneHotEncoder

	ScalerKind string
	Standard   *preprocessing.StandardScaler
	MinMax     *preprocessing.MinMaxScaler

	// Target maps label strings to class codes in multiclass mode. In
	// positive-label mode it is nil and PositiveLabel defines class 1.
	Target *preprocessing.LabelEncoder

	KNN      *neighbors.KNNClassifier
	Logistic *linear_model.LogisticRegression
	SVC      *svm.LinearSVC

	Best      string
	TrainedAt time.Time
}

// ModelNames returns the names of the models present in the bundle.
func (b *Bundle) ModelNames() []string {
	var names []string
	if b.KNN != nil {
		names = append(names, "knn")
	}
	if b.Logistic != nil {
		names = append(names, "logistic_regression")
	}
	if b.SVC != nil {
		names = append(names, "linear_svc")
	}
	return names
}

// Model returns the named classifier, or the best one for an empty name.
func (b *Bundle) Model(name string) (model.Classifier, error) {
	if name == "" {
		name = b.Best
	}
	switch name {
	case "knn":
		if b.KNN != nil {
			return b.KNN, nil
		}
	case "logistic_regression":
		if b.Logistic != nil {
			return b.Logistic, nil
		}
	case "linear_svc":
		if b.SVC != nil {
			return b.SVC, nil
		}
	default:
		return nil, errors.NewValueError("Bundle.Model",
			fmt.Sprintf("unknown model %q (available: %v)", name, b.ModelNames()))
	}
	return nil, errors.NewValueError("Bundle.Model",
		fmt.Sprintf("model %q was not trained (available: %v)", name, b.ModelNames()))
}

// LabelFor maps a class code back to its label string.
func (b *Bundle) LabelFor(code int) string {
	if b.Target != nil {
		labels, err := b.Target.InverseTransform([]int{code})
		if err == nil {
			return labels[0]
		}
		return fmt.Sprintf("class %d", code)
	}
	if code == 1 {
		return b.PositiveLabel
	}
	return "Not " + b.PositiveLabel
}

// ClassNames returns the code-to-label mapping for reporting.
func (b *Bundle) ClassNames() map[int]string {
	names := make(map[int]string)
	if b.Target != nil {
		for code := range b.Target.Classes() {
			names[code] = b.LabelFor(code)
		}
		return names
	}
	names[0] = b.LabelFor(0)
	names[1] = b.LabelFor(1)
	return names
}

func (b *Bundle) isCategorical(column string) bool {
	_, ok := b.Encoders[column]
	return ok
}

// Vectorize turns raw feature records into the model input matrix: missing
// cells are filled with the fitted imputers, categorical columns are one-hot
// encoded, and the result is scaled like the training data. Every record must
// supply all feature columns.
func (b *Bundle) Vectorize(records []map[string]string) (*mat.Dense, error) {
	if len(records) == 0 {
		return nil, errors.ErrEmptyData
	}

	out := mat.NewDense(len(records), len(b.EncodedColumns), nil)
	for i, rec := range records {
		col := 0
		for _, name := range b.FeatureColumns {
			cell, ok := rec[name]
			if !ok {
				return nil, errors.NewValueError("Bundle.Vectorize",
					fmt.Sprintf("record %d is missing feature '%s'", i, name))
			}
			if dataset.IsMissing(cell) {
				im, ok := b.Imputers[name]
				if !ok {
					return nil, errors.NewValueError("Bundle.Vectorize",
						fmt.Sprintf("record %d: feature '%s' is missing and has no imputer", i, name))
				}
				cell = im.Fill
			}

			if enc, ok := b.Encoders[name]; ok {
				indicator, err := enc.Transform([]string{cell})
				if err != nil {
					return nil, errors.Wrapf(err, "record %d, feature '%s'", i, name)
				}
				for j := 0; j < len(enc.Categories()); j++ {
					out.Set(i, col, indicator.At(0, j))
					col++
				}
				continue
			}

			v, ok := dataset.ParseCell(cell)
			if !ok {
				return nil, errors.NewValueError("Bundle.Vectorize",
					fmt.Sprintf("record %d: feature '%s' value %q is not numeric", i, name, cell))
			}
			out.Set(i, col, v)
			col++
		}
	}

	scaled, err := b.scale(out)
	if err != nil {
		return nil, err
	}
	return scaled, nil
}

func (b *Bundle) scale(X *mat.Dense) (*mat.Dense, error) {
	switch b.ScalerKind {
	case ScalerStandard:
		out, err := b.Standard.Transform(X)
		if err != nil {
			return nil, err
		}
		return out.(*mat.Dense), nil
	case ScalerMinMax:
		out, err := b.MinMax.Transform(X)
		if err != nil {
			return nil, err
		}
		return out.(*mat.Dense), nil
	default:
		return X, nil
	}
}

// Prediction is one scored record.
type Prediction struct {
	Code  int
	Label string
	// Probabilities is keyed by label, from the model's PredictProba.
	Probabilities map[string]float64
}

// Predict vectorizes the records and scores them with the named model (empty
// name means the best model from training).
func (b *Bundle) Predict(modelName string, records []map[string]string) ([]Prediction, error) {
	clf, err := b.Model(modelName)
	if err != nil {
		return nil, err
	}

	X, err := b.Vectorize(records)
	if err != nil {
		return nil, err
	}

	preds, err := clf.Predict(X)
	if err != nil {
		return nil, err
	}
	probas, err := clf.PredictProba(X)
	if err != nil {
		return nil, err
	}

	classes := clf.Classes()
	out := make([]Prediction, len(records))
	for i := range records {
		code := int(preds.At(i, 0))
		p := Prediction{
			Code:          code,
			Label:         b.LabelFor(code),
			Probabilities: make(map[string]float64, len(classes)),
		}
		for ci, c := range classes {
			p.Probabilities[b.LabelFor(c)] = probas.At(i, ci)
		}
		out[i] = p
	}
	return out, nil
}

// Save writes the bundle to a file with gob encoding.
func (b *Bundle) Save(path string) error {
	return model.SaveModel(b, path)
}

// LoadBundle reads a bundle saved by Save.
func LoadBundle(path string) (*Bundle, error) {
	b := &Bundle{}
	if err := model.LoadModel(b, path); err != nil {
		return nil, errors.Wrapf(err, "failed to load bundle from %s", path)
	}
	return b, nil
}
