// Package config loads experiment definitions from HCL files. An experiment
// names the dataset, the preprocessing steps, the models to train with their
// hyperparameters, and where the artifacts go.
package config

import (
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/edustats/dropout/pkg/errors"
)

// Experiment is a fully decoded experiment file.
type Experiment struct {
	Dataset       DatasetConfig        `hcl:"dataset,block"`
	Preprocessing *PreprocessingConfig `hcl:"preprocessing,block"`
	Models        []ModelConfig        `hcl:"model,block"`
	Evaluation    *EvaluationConfig    `hcl:"evaluation,block"`
	Output        *OutputConfig        `hcl:"output,block"`
}

// DatasetConfig locates the dataset and describes how to read it.
type DatasetConfig struct {
	Path string `hcl:"path"`
	// Target is the label column.
	Target string `hcl:"target"`
	// PositiveLabel switches binary mode: the named label becomes class 1
	// and every other label class 0. Empty keeps all labels as classes.
	PositiveLabel string `hcl:"positive_label,optional"`
	// DropColumns are removed before modeling (IDs, names).
	DropColumns []string `hcl:"drop_columns,optional"`
	// Categorical columns are one-hot encoded; remaining feature columns
	// must be numeric after imputation.
	Categorical []string `hcl:"categorical,optional"`
	// ImputeStrategy repairs missing cells: mean, median, most_frequent.
	ImputeStrategy string `hcl:"impute_strategy,optional"`
}

// PreprocessingConfig selects the feature scaler.
type PreprocessingConfig struct {
	Scaler string `hcl:"scaler,optional"` // standard | minmax | none
}

// ModelConfig is one model block. The label picks the estimator
// ("knn", "logistic_regression", "linear_svc"); the attributes are its
// hyperparameters, all optional.
type ModelConfig struct {
	Type string `hcl:"type,label"`

	K       int     `hcl:"k,optional"`
	Weights string  `hcl:"weights,optional"`
	C       float64 `hcl:"c,optional"`
	MaxIter int     `hcl:"max_iter,optional"`
	Tol     float64 `hcl:"tol,optional"`
}

// Model type labels accepted in experiment files.
const (
	ModelKNN       = "knn"
	ModelLogistic  = "logistic_regression"
	ModelLinearSVC = "linear_svc"
)

// EvaluationConfig controls the split and reported metrics.
type EvaluationConfig struct {
	TestSize      float64 `hcl:"test_size,optional"`
	CVFolds       int     `hcl:"cv_folds,optional"` // 0 disables cross-validation
	Seed          int64   `hcl:"seed,optional"`
	PrimaryMetric string  `hcl:"primary_metric,optional"` // accuracy | f1_macro
}

// OutputConfig names the artifact paths.
type OutputConfig struct {
	ModelDir string `hcl:"model_dir,optional"`
	Report   string `hcl:"report,optional"`
	ROCCurve string `hcl:"roc_curve,optional"`
}

// LoadExperiment parses and decodes an experiment file, applies defaults,
// and validates it. HCL expressions may reference process environment
// variables as env.NAME.
func LoadExperiment(path string) (*Experiment, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, errors.Newf("failed to parse experiment file %s: %s", path, diags.Error())
	}
	return decodeExperiment(file.Body, path)
}

// ParseExperiment decodes experiment HCL from a byte slice, for tests and
// embedded configs.
func ParseExperiment(src []byte, filename string) (*Experiment, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, errors.Newf("failed to parse experiment %s: %s", filename, diags.Error())
	}
	return decodeExperiment(file.Body, filename)
}

func decodeExperiment(body hcl.Body, filename string) (*Experiment, error) {
	var exp Experiment
	diags := gohcl.DecodeBody(body, evalContext(), &exp)
	if diags.HasErrors() {
		return nil, errors.Newf("failed to decode experiment %s: %s", filename, diags.Error())
	}

	exp.applyDefaults()
	if err := exp.Validate(); err != nil {
		return nil, err
	}
	return &exp, nil
}

// evalContext exposes the process environment to HCL expressions as env.NAME.
func evalContext() *hcl.EvalContext {
	envVals := make(map[string]cty.Value)
	for _, kv := range os.Environ() {
		if idx := strings.IndexByte(kv, '='); idx > 0 {
			envVals[kv[:idx]] = cty.StringVal(kv[idx+1:])
		}
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": cty.ObjectVal(envVals),
		},
	}
}

func (e *Experiment) applyDefaults() {
	if e.Dataset.ImputeStrategy == "" {
		e.Dataset.ImputeStrategy = "mean"
	}

	if e.Preprocessing == nil {
		e.Preprocessing = &PreprocessingConfig{}
	}
	if e.Preprocessing.Scaler == "" {
		e.Preprocessing.Scaler = "standard"
	}

	if e.Evaluation == nil {
		e.Evaluation = &EvaluationConfig{}
	}
	if e.Evaluation.TestSize == 0 {
		e.Evaluation.TestSize = 0.25
	}
	if e.Evaluation.Seed == 0 {
		e.Evaluation.Seed = 42
	}
	if e.Evaluation.PrimaryMetric == "" {
		e.Evaluation.PrimaryMetric = "accuracy"
	}

	if e.Output == nil {
		e.Output = &OutputConfig{}
	}
	if e.Output.ModelDir == "" {
		e.Output.ModelDir = "artifacts"
	}

	for i := range e.Models {
		m := &e.Models[i]
		switch m.Type {
		case ModelKNN:
			if m.K == 0 {
				m.K = 5
			}
			if m.Weights == "" {
				m.Weights = "uniform"
			}
		case ModelLogistic:
			if m.C == 0 {
				m.C = 1.0
			}
			if m.MaxIter == 0 {
				m.MaxIter = 100
			}
			if m.Tol == 0 {
				m.Tol = 1e-4
			}
		case ModelLinearSVC:
			if m.C == 0 {
				m.C = 1.0
			}
			if m.MaxIter == 0 {
				m.MaxIter = 1000
			}
			if m.Tol == 0 {
				m.Tol = 1e-4
			}
		}
	}
}

// Validate checks the decoded experiment for values the pipeline cannot run
// with. Errors name the offending attribute.
func (e *Experiment) Validate() error {
	if e.Dataset.Path == "" {
		return errors.NewValidationError("dataset.path", "must not be empty", e.Dataset.Path)
	}
	if e.Dataset.Target == "" {
		return errors.NewValidationError("dataset.target", "must not be empty", e.Dataset.Target)
	}
	switch e.Dataset.ImputeStrategy {
	case "mean", "median", "most_frequent":
	default:
		return errors.NewValidationError("dataset.impute_strategy",
			"must be one of mean, median, most_frequent", e.Dataset.ImputeStrategy)
	}

	switch e.Preprocessing.Scaler {
	case "standard", "minmax", "none":
	default:
		return errors.NewValidationError("preprocessing.scaler",
			"must be one of standard, minmax, none", e.Preprocessing.Scaler)
	}

	if len(e.Models) == 0 {
		return errors.NewValidationError("model", "at least one model block is required", nil)
	}
	seen := make(map[string]bool)
	for _, m := range e.Models {
		switch m.Type {
		case ModelKNN, ModelLogistic, ModelLinearSVC:
		default:
			return errors.NewValidationError("model",
				"must be one of knn, logistic_regression, linear_svc", m.Type)
		}
		if seen[m.Type] {
			return errors.NewValidationError("model", "duplicate model block", m.Type)
		}
		seen[m.Type] = true
	}

	if e.Evaluation.TestSize <= 0 || e.Evaluation.TestSize >= 1 {
		return errors.NewValidationError("evaluation.test_size", "must be in (0, 1)", e.Evaluation.TestSize)
	}
	if e.Evaluation.CVFolds == 1 {
		return errors.NewValidationError("evaluation.cv_folds", "must be 0 or at least 2", e.Evaluation.CVFolds)
	}
	switch e.Evaluation.PrimaryMetric {
	case "accuracy", "f1_macro":
	default:
		return errors.NewValidationError("evaluation.primary_metric",
			"must be accuracy or f1_macro", e.Evaluation.PrimaryMetric)
	}
	return nil
}
