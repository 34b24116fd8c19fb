package evaluation

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSaveROCPlot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roc.png")

	series := []ROCSeries{
		{
			Name: "knn",
			FPR:  []float64{0, 0, 0.5, 1},
			TPR:  []float64{0, 0.5, 1, 1},
			AUC:  0.875,
		},
		{
			Name: "logistic_regression",
			FPR:  []float64{0, 0.25, 1},
			TPR:  []float64{0, 0.75, 1},
			AUC:  0.75,
		},
	}
	if err := SaveROCPlot(path, series); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) < 8 || string(data[1:4]) != "PNG" {
		t.Error("output is not a PNG file")
	}
}

func TestSaveROCPlotValidation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roc.png")

	if err := SaveROCPlot(path, nil); err == nil {
		t.Error("empty series should be rejected")
	}

	bad := []ROCSeries{{Name: "knn", FPR: []float64{0, 1}, TPR: []float64{0}}}
	if err := SaveROCPlot(path, bad); err == nil {
		t.Error("mismatched FPR/TPR lengths should be rejected")
	}
}

func TestRenderComparison(t *testing.T) {
	results := []ModelResult{
		{Name: "knn", Accuracy: 0.82, MacroF1: 0.79, HasAUC: true, AUC: 0.88},
		{Name: "logistic_regression", Accuracy: 0.87, MacroF1: 0.84, HasAUC: true, AUC: 0.91,
			HasCV: true, CVMean: 0.86, CVStd: 0.02, Detail: "per-class detail here"},
		{Name: "linear_svc", Accuracy: 0.85, MacroF1: 0.86},
	}

	report, err := RenderComparison(results, "accuracy")
	if err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(report, "best model by accuracy: logistic_regression") {
		t.Errorf("report missing best-model line:\n%s", report)
	}
	if !strings.Contains(report, "*logistic_regression") {
		t.Errorf("best model not marked in table:\n%s", report)
	}
	if !strings.Contains(report, "per-class detail here") {
		t.Error("report should include per-model detail sections")
	}
	// linear_svc has no AUC and no CV scores.
	for _, line := range strings.Split(report, "\n") {
		if strings.Contains(line, "linear_svc") && !strings.Contains(line, "-") {
			t.Errorf("missing placeholder for absent scores: %q", line)
		}
	}
}

func TestBestModelByMacroF1(t *testing.T) {
	results := []ModelResult{
		{Name: "knn", Accuracy: 0.90, MacroF1: 0.70},
		{Name: "linear_svc", Accuracy: 0.85, MacroF1: 0.86},
	}
	best, err := BestModel(results, "f1_macro")
	if err != nil {
		t.Fatal(err)
	}
	if best.Name != "linear_svc" {
		t.Errorf("best by f1_macro = %s, want linear_svc", best.Name)
	}

	if _, err := BestModel(nil, "accuracy"); err == nil {
		t.Error("empty results should be rejected")
	}
}
