package experiment

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/edustats/dropout/config"
	"github.com/edustats/dropout/core/model"
	"github.com/edustats/dropout/dataset"
	"github.com/edustats/dropout/evaluation"
	"github.com/edustats/dropout/linear_model"
	"github.com/edustats/dropout/metrics"
	"github.com/edustats/dropout/model_selection"
	"github.com/edustats/dropout/neighbors"
	"github.com/edustats/dropout/pkg/errors"
	"github.com/edustats/dropout/pkg/log"
	"github.com/edustats/dropout/preprocessing"
	"github.com/edustats/dropout/svm"
)

// Result is what a pipeline run produces: the dataset audit, the comparison
// report, per-model scores, ROC curves (binary runs only), and the bundle
// ready for serving.
type Result struct {
	Audit   *dataset.AuditReport
	Report  string
	Results []evaluation.ModelResult
	ROC     []evaluation.ROCSeries
	Binary  bool
	Bundle  *Bundle
}

// Run executes the full training pipeline for an experiment and writes the
// configured artifacts (report, ROC plot, bundle).
func Run(exp *config.Experiment) (*Result, error) {
	start := time.Now()

	table, err := dataset.Load(exp.Dataset.Path)
	if err != nil {
		return nil, err
	}
	if len(exp.Dataset.DropColumns) > 0 {
		table, err = table.Drop(exp.Dataset.DropColumns...)
		if err != nil {
			return nil, err
		}
	}
	slog.Info("dataset loaded",
		slog.String(log.DatasetKey, exp.Dataset.Path),
		slog.Int(log.SamplesKey, table.NumRows()),
		slog.Int(log.FeaturesKey, table.NumCols()-1))

	targetCells, err := table.Column(exp.Dataset.Target)
	if err != nil {
		return nil, err
	}
	features, err := table.Drop(exp.Dataset.Target)
	if err != nil {
		return nil, err
	}

	categorical := make(map[string]bool, len(exp.Dataset.Categorical))
	for _, c := range exp.Dataset.Categorical {
		if _, err := features.ColumnIndex(c); err != nil {
			return nil, err
		}
		categorical[c] = true
	}

	audit, err := auditFeatures(features, categorical)
	if err != nil {
		return nil, err
	}

	imputers, err := imputeFeatures(features, categorical, exp.Dataset.ImputeStrategy)
	if err != nil {
		return nil, err
	}

	y, targetEncoder, err := encodeTarget(targetCells, exp.Dataset.PositiveLabel)
	if err != nil {
		return nil, err
	}

	X, encodedColumns, encoders, err := buildDesign(features, categorical)
	if err != nil {
		return nil, err
	}

	XTrain, XTest, yTrain, yTest, err := model_selection.TrainTestSplit(
		X, y, exp.Evaluation.TestSize, exp.Evaluation.Seed)
	if err != nil {
		return nil, err
	}

	bundle := &Bundle{
		TargetColumn:   exp.Dataset.Target,
		PositiveLabel:  exp.Dataset.PositiveLabel,
		FeatureColumns: features.Columns,
		EncodedColumns: encodedColumns,
		Categorical:    exp.Dataset.Categorical,
		ImputeStrategy: exp.Dataset.ImputeStrategy,
		Imputers:       imputers,
		Encoders:       encoders,
		ScalerKind:     exp.Preprocessing.Scaler,
		Target:         targetEncoder,
		TrainedAt:      start,
	}

	// Fit the scaler on the training split only so test scores stay honest.
	XTrain, XTest, err = fitScaler(bundle, XTrain, XTest)
	if err != nil {
		return nil, err
	}

	binary := isBinary(y)
	result := &Result{Audit: audit, Binary: binary, Bundle: bundle}

	for _, mc := range exp.Models {
		mr, roc, err := trainAndEvaluate(mc, bundle, XTrain, yTrain, XTest, yTest, exp.Evaluation, binary)
		if err != nil {
			return nil, err
		}
		result.Results = append(result.Results, *mr)
		if roc != nil {
			result.ROC = append(result.ROC, *roc)
		}
	}

	best, err := evaluation.BestModel(result.Results, exp.Evaluation.PrimaryMetric)
	if err != nil {
		return nil, err
	}
	bundle.Best = best.Name

	report, err := evaluation.RenderComparison(result.Results, exp.Evaluation.PrimaryMetric)
	if err != nil {
		return nil, err
	}
	result.Report = report

	if err := writeArtifacts(exp.Output, result); err != nil {
		return nil, err
	}

	slog.Info("experiment finished",
		slog.String(log.ModelNameKey, best.Name),
		slog.Float64(log.AccuracyKey, best.Accuracy),
		slog.Int64(log.DurationMsKey, time.Since(start).Milliseconds()))
	return result, nil
}

// auditFeatures verifies the non-categorical columns are numeric. Non-numeric
// text outside the declared categorical set is a hard error; missing cells
// only raise DataQualityWarnings since imputation repairs them next.
func auditFeatures(features *dataset.Table, categorical map[string]bool) (*dataset.AuditReport, error) {
	var numericCols []string
	for _, c := range features.Columns {
		if !categorical[c] {
			numericCols = append(numericCols, c)
		}
	}

	audit, err := dataset.VerifyColumns(features, numericCols...)
	if err != nil {
		return nil, err
	}

	for _, r := range audit.Reports {
		if r.NullCount > 0 {
			errors.Warn(errors.NewDataQualityWarning(r.Column, "missing", r.NullCount,
				"missing cells will be imputed"))
		}
	}
	if bad := audit.NonNumericColumns(); len(bad) > 0 {
		return nil, errors.NewValueError("experiment.Run",
			fmt.Sprintf("columns %v contain non-numeric data; declare them categorical or drop them", bad))
	}
	return audit, nil
}

// imputeFeatures repairs missing cells in place: numeric columns with the
// configured strategy, categorical columns always with most_frequent.
func imputeFeatures(features *dataset.Table, categorical map[string]bool, strategy string) (map[string]*preprocessing.SimpleImputer, error) {
	imputers := make(map[string]*preprocessing.SimpleImputer)
	for _, c := range features.Columns {
		colStrategy := strategy
		if categorical[c] {
			colStrategy = preprocessing.StrategyMostFrequent
		}
		fitted, err := preprocessing.ImputeTable(features, colStrategy, c)
		if err != nil {
			return nil, err
		}
		imputers[c] = fitted[c]
	}
	return imputers, nil
}

// encodeTarget turns label strings into class codes. With a positive label
// the problem is binary: that label becomes 1 and everything else 0.
// Otherwise a LabelEncoder assigns codes in sorted label order.
func encodeTarget(cells []string, positiveLabel string) (*mat.Dense, *preprocessing.LabelEncoder, error) {
	if len(cells) == 0 {
		return nil, nil, errors.ErrEmptyData
	}

	y := mat.NewDense(len(cells), 1, nil)
	if positiveLabel != "" {
		found := false
		for i, cell := range cells {
			if cell == positiveLabel {
				y.Set(i, 0, 1)
				found = true
			}
		}
		if !found {
			return nil, nil, errors.NewValueError("encodeTarget",
				fmt.Sprintf("positive label %q never occurs in the target column", positiveLabel))
		}
		return y, nil, nil
	}

	encoder := preprocessing.NewLabelEncoder()
	codes, err := encoder.FitTransform(cells)
	if err != nil {
		return nil, nil, err
	}
	for i, code := range codes {
		y.Set(i, 0, float64(code))
	}
	return y, encoder, nil
}

// buildDesign materializes the feature table into the model input matrix.
// Columns keep their table order; categorical ones expand into one
// "column=category" indicator per category.
func buildDesign(features *dataset.Table, categorical map[string]bool) (*mat.Dense, []string, map[string]*preprocessing.OneHotEncoder, error) {
	nRows := features.NumRows()
	if nRows == 0 {
		return nil, nil, nil, errors.ErrEmptyData
	}

	var (
		columns  [][]float64
		names    []string
		encoders = make(map[string]*preprocessing.OneHotEncoder)
	)
	for _, name := range features.Columns {
		cells, err := features.Column(name)
		if err != nil {
			return nil, nil, nil, err
		}

		if categorical[name] {
			enc := preprocessing.NewOneHotEncoder()
			indicators, err := enc.FitTransform(cells)
			if err != nil {
				return nil, nil, nil, errors.Wrapf(err, "encoding column '%s'", name)
			}
			encoders[name] = enc
			for j, cat := range enc.Categories() {
				col := make([]float64, nRows)
				for i := range col {
					col[i] = indicators.At(i, j)
				}
				columns = append(columns, col)
				names = append(names, name+"="+cat)
			}
			continue
		}

		col := make([]float64, nRows)
		for i, cell := range cells {
			v, ok := dataset.ParseCell(cell)
			if !ok {
				return nil, nil, nil, errors.NewValueError("buildDesign",
					fmt.Sprintf("row %d, column '%s': cell %q is not numeric", i, name, cell))
			}
			col[i] = v
		}
		columns = append(columns, col)
		names = append(names, name)
	}

	X := mat.NewDense(nRows, len(columns), nil)
	for j, col := range columns {
		for i, v := range col {
			X.Set(i, j, v)
		}
	}
	return X, names, encoders, nil
}

func fitScaler(bundle *Bundle, XTrain, XTest *mat.Dense) (*mat.Dense, *mat.Dense, error) {
	switch bundle.ScalerKind {
	case ScalerStandard:
		bundle.Standard = preprocessing.NewStandardScaler()
		if err := bundle.Standard.Fit(XTrain); err != nil {
			return nil, nil, err
		}
	case ScalerMinMax:
		bundle.MinMax = preprocessing.NewMinMaxScaler()
		if err := bundle.MinMax.Fit(XTrain); err != nil {
			return nil, nil, err
		}
	case ScalerNone:
		return XTrain, XTest, nil
	default:
		return nil, nil, errors.NewValidationError("preprocessing.scaler",
			"must be one of standard, minmax, none", bundle.ScalerKind)
	}

	scaledTrain, err := bundle.scale(XTrain)
	if err != nil {
		return nil, nil, err
	}
	scaledTest, err := bundle.scale(XTest)
	if err != nil {
		return nil, nil, err
	}
	return scaledTrain, scaledTest, nil
}

func isBinary(y *mat.Dense) bool {
	rows, _ := y.Dims()
	seen := make(map[int]bool)
	for i := 0; i < rows; i++ {
		seen[int(y.At(i, 0))] = true
	}
	return len(seen) == 2
}

// classifierFactory returns a constructor for the configured model so
// cross-validation can fit a fresh estimator per fold.
func classifierFactory(mc config.ModelConfig, seed int64) (func() model.Classifier, error) {
	switch mc.Type {
	case config.ModelKNN:
		return func() model.Classifier {
			return neighbors.NewKNNClassifier(mc.K, neighbors.WithKNNWeights(mc.Weights))
		}, nil
	case config.ModelLogistic:
		return func() model.Classifier {
			return linear_model.NewLogisticRegression(
				linear_model.WithC(mc.C),
				linear_model.WithMaxIter(mc.MaxIter),
				linear_model.WithTol(mc.Tol),
				linear_model.WithRandomState(seed),
			)
		}, nil
	case config.ModelLinearSVC:
		return func() model.Classifier {
			return svm.NewLinearSVC(
				svm.WithC(mc.C),
				svm.WithMaxIter(mc.MaxIter),
				svm.WithTol(mc.Tol),
				svm.WithRandomState(seed),
			)
		}, nil
	}
	return nil, errors.NewValidationError("model", "unknown model type", mc.Type)
}

func trainAndEvaluate(mc config.ModelConfig, bundle *Bundle, XTrain, yTrain, XTest, yTest *mat.Dense,
	eval *config.EvaluationConfig, binary bool) (*evaluation.ModelResult, *evaluation.ROCSeries, error) {

	factory, err := classifierFactory(mc, eval.Seed)
	if err != nil {
		return nil, nil, err
	}

	fitStart := time.Now()
	clf := factory()
	if err := clf.Fit(XTrain, yTrain); err != nil {
		return nil, nil, errors.Wrapf(err, "training %s", mc.Type)
	}
	slog.Info("model trained",
		slog.String(log.ModelNameKey, mc.Type),
		slog.String(log.PhaseKey, "fit"),
		slog.Int64(log.DurationMsKey, time.Since(fitStart).Milliseconds()))

	switch mc.Type {
	case config.ModelKNN:
		bundle.KNN = clf.(*neighbors.KNNClassifier)
	case config.ModelLogistic:
		bundle.Logistic = clf.(*linear_model.LogisticRegression)
	case config.ModelLinearSVC:
		bundle.SVC = clf.(*svm.LinearSVC)
	}

	preds, err := clf.Predict(XTest)
	if err != nil {
		return nil, nil, err
	}
	yTrue, err := metrics.Vec(yTest)
	if err != nil {
		return nil, nil, err
	}
	yPred, err := metrics.Vec(preds)
	if err != nil {
		return nil, nil, err
	}

	mr := &evaluation.ModelResult{Name: mc.Type}
	if mr.Accuracy, err = metrics.Accuracy(yTrue, yPred); err != nil {
		return nil, nil, err
	}
	if mr.MacroF1, err = metrics.MacroF1(yTrue, yPred); err != nil {
		return nil, nil, err
	}
	if mr.Detail, err = metrics.Report(yTrue, yPred, bundle.ClassNames()); err != nil {
		return nil, nil, err
	}

	var roc *evaluation.ROCSeries
	if binary {
		scores, err := positiveScores(clf, XTest)
		if err != nil {
			return nil, nil, err
		}
		if mr.AUC, err = metrics.AUC(yTrue, scores); err != nil {
			return nil, nil, err
		}
		mr.HasAUC = true

		fpr, tpr, err := metrics.ROCCurve(yTrue, scores)
		if err != nil {
			return nil, nil, err
		}
		roc = &evaluation.ROCSeries{Name: mc.Type, FPR: fpr, TPR: tpr, AUC: mr.AUC}
	}

	if eval.CVFolds >= 2 {
		cv, err := model_selection.CrossValidate(factory, XTrain, yTrain,
			model_selection.NewStratifiedKFold(eval.CVFolds, true, eval.Seed), eval.PrimaryMetric)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "cross-validating %s", mc.Type)
		}
		mr.HasCV = true
		mr.CVMean = cv.Mean()
		mr.CVStd = cv.Std()
	}

	slog.Info("model evaluated",
		slog.String(log.ModelNameKey, mc.Type),
		slog.String(log.PhaseKey, "evaluate"),
		slog.Float64(log.AccuracyKey, mr.Accuracy))
	return mr, roc, nil
}

// positiveScores extracts each sample's probability of class 1.
func positiveScores(clf model.Classifier, X mat.Matrix) (*mat.VecDense, error) {
	probas, err := clf.PredictProba(X)
	if err != nil {
		return nil, err
	}

	posCol := -1
	for i, c := range clf.Classes() {
		if c == 1 {
			posCol = i
		}
	}
	if posCol < 0 {
		return nil, errors.NewValueError("positiveScores", "classifier has no class 1")
	}

	rows, _ := probas.Dims()
	out := mat.NewVecDense(rows, nil)
	for i := 0; i < rows; i++ {
		out.SetVec(i, probas.At(i, posCol))
	}
	return out, nil
}

func writeArtifacts(out *config.OutputConfig, result *Result) error {
	if out.ModelDir != "" {
		if err := os.MkdirAll(out.ModelDir, 0o755); err != nil {
			return errors.Wrap(err, "failed to create model directory")
		}
		if err := result.Bundle.Save(filepath.Join(out.ModelDir, "bundle.gob")); err != nil {
			return err
		}
	}
	if out.Report != "" {
		if err := os.MkdirAll(filepath.Dir(out.Report), 0o755); err != nil {
			return errors.Wrap(err, "failed to create report directory")
		}
		content := result.Audit.String() + "\n" + result.Report
		if err := os.WriteFile(out.Report, []byte(content), 0o644); err != nil {
			return errors.Wrap(err, "failed to write report")
		}
	}
	if out.ROCCurve != "" && len(result.ROC) > 0 {
		if err := os.MkdirAll(filepath.Dir(out.ROCCurve), 0o755); err != nil {
			return errors.Wrap(err, "failed to create plot directory")
		}
		if err := evaluation.SaveROCPlot(out.ROCCurve, result.ROC); err != nil {
			return err
		}
	}
	return nil
}
