package experiment

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/edustats/dropout/config"
)

// writeStudentCSV writes a linearly separable binary dataset: dropouts have
// low grades and high absences, graduates the opposite. One grade cell is
// missing and one column is categorical.
func writeStudentCSV(t *testing.T, dir string) string {
	t.Helper()

	var b strings.Builder
	b.WriteString("Age,Grade,Absences,Gender,Target\n")
	for i := 0; i < 20; i++ {
		grade := fmt.Sprintf("%d", 8+i%3)
		if i == 4 {
			grade = "" // repaired by imputation
		}
		gender := "male"
		if i%2 == 0 {
			gender = "female"
		}
		fmt.Fprintf(&b, "%d,%s,%d,%s,Dropout\n", 18+i%5, grade, 20+i%7, gender)
	}
	for i := 0; i < 20; i++ {
		gender := "male"
		if i%2 == 0 {
			gender = "female"
		}
		fmt.Fprintf(&b, "%d,%d,%d,%s,Graduate\n", 18+i%5, 16+i%4, i%5, gender)
	}

	path := filepath.Join(dir, "students.csv")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func binaryExperiment(dataPath, outDir string) *config.Experiment {
	src := fmt.Sprintf(`
dataset {
  path           = %q
  target         = "Target"
  positive_label = "Dropout"
  categorical    = ["Gender"]
}

model "knn" {
  k = 3
}

model "logistic_regression" {
  max_iter = 200
}

model "linear_svc" {}

evaluation {
  test_size = 0.25
  cv_folds  = 2
  seed      = 11
}

output {
  model_dir = %q
  report    = %q
  roc_curve = %q
}
`, dataPath, outDir,
		filepath.Join(outDir, "report.txt"),
		filepath.Join(outDir, "roc.png"))

	exp, err := config.ParseExperiment([]byte(src), "test.hcl")
	if err != nil {
		panic(err)
	}
	return exp
}

func TestRunBinaryExperiment(t *testing.T) {
	dir := t.TempDir()
	dataPath := writeStudentCSV(t, dir)
	outDir := filepath.Join(dir, "out")

	result, err := Run(binaryExperiment(dataPath, outDir))
	if err != nil {
		t.Fatal(err)
	}

	if !result.Binary {
		t.Error("positive-label run should be binary")
	}
	if len(result.Results) != 3 {
		t.Fatalf("got %d model results, want 3", len(result.Results))
	}
	for _, mr := range result.Results {
		if mr.Accuracy < 0.8 {
			t.Errorf("%s accuracy = %v on separable data", mr.Name, mr.Accuracy)
		}
		if !mr.HasAUC {
			t.Errorf("%s missing AUC in a binary run", mr.Name)
		}
		if !mr.HasCV {
			t.Errorf("%s missing cross-validation scores", mr.Name)
		}
	}
	if len(result.ROC) != 3 {
		t.Errorf("got %d ROC series, want 3", len(result.ROC))
	}

	if result.Bundle.Best == "" {
		t.Error("bundle should record the best model")
	}
	if !strings.Contains(result.Report, "MODEL COMPARISON") {
		t.Error("report missing comparison table")
	}
	if !strings.Contains(result.Audit.String(), "NUMERIC COLUMN VERIFICATION") {
		t.Error("audit report missing verification section")
	}

	for _, artifact := range []string{"bundle.gob", "report.txt", "roc.png"} {
		if _, err := os.Stat(filepath.Join(outDir, artifact)); err != nil {
			t.Errorf("missing artifact %s: %v", artifact, err)
		}
	}
}

func TestRunThenServeFromBundle(t *testing.T) {
	dir := t.TempDir()
	dataPath := writeStudentCSV(t, dir)
	outDir := filepath.Join(dir, "out")

	if _, err := Run(binaryExperiment(dataPath, outDir)); err != nil {
		t.Fatal(err)
	}

	bundle, err := LoadBundle(filepath.Join(outDir, "bundle.gob"))
	if err != nil {
		t.Fatal(err)
	}

	records := []map[string]string{
		{"Age": "19", "Grade": "8", "Absences": "25", "Gender": "male"},
		{"Age": "20", "Grade": "18", "Absences": "1", "Gender": "female"},
		{"Age": "21", "Grade": "", "Absences": "24", "Gender": "male"}, // imputed grade
	}
	preds, err := bundle.Predict("", records)
	if err != nil {
		t.Fatal(err)
	}

	if preds[0].Label != "Dropout" {
		t.Errorf("struggling student predicted %q, want Dropout", preds[0].Label)
	}
	if preds[1].Label != "Not Dropout" {
		t.Errorf("strong student predicted %q, want Not Dropout", preds[1].Label)
	}
	for i, p := range preds {
		var total float64
		for _, prob := range p.Probabilities {
			total += prob
		}
		if total < 0.99 || total > 1.01 {
			t.Errorf("record %d probabilities sum to %v", i, total)
		}
	}

	// Every trained model is addressable by name.
	for _, name := range bundle.ModelNames() {
		if _, err := bundle.Predict(name, records[:1]); err != nil {
			t.Errorf("predicting with %s: %v", name, err)
		}
	}
	if _, err := bundle.Predict("random_forest", records[:1]); err == nil {
		t.Error("unknown model name should be rejected")
	}
}

func TestRunMulticlassExperiment(t *testing.T) {
	dir := t.TempDir()

	var b strings.Builder
	b.WriteString("Grade,Absences,Target\n")
	for i := 0; i < 12; i++ {
		fmt.Fprintf(&b, "%d,%d,Dropout\n", 6+i%3, 25+i%5)
	}
	for i := 0; i < 12; i++ {
		fmt.Fprintf(&b, "%d,%d,Enrolled\n", 12+i%3, 10+i%5)
	}
	for i := 0; i < 12; i++ {
		fmt.Fprintf(&b, "%d,%d,Graduate\n", 18+i%3, i%5)
	}
	dataPath := filepath.Join(dir, "students.csv")
	if err := os.WriteFile(dataPath, []byte(b.String()), 0o644); err != nil {
		t.Fatal(err)
	}

	src := fmt.Sprintf(`
dataset {
  path   = %q
  target = "Target"
}

model "knn" {
  k = 3
}

output {
  model_dir = %q
}
`, dataPath, filepath.Join(dir, "out"))
	exp, err := config.ParseExperiment([]byte(src), "multi.hcl")
	if err != nil {
		t.Fatal(err)
	}

	result, err := Run(exp)
	if err != nil {
		t.Fatal(err)
	}
	if result.Binary {
		t.Error("three-class run should not be binary")
	}
	if len(result.ROC) != 0 {
		t.Error("multiclass run should not produce ROC curves")
	}

	// Labels encode in sorted order.
	names := result.Bundle.ClassNames()
	if names[0] != "Dropout" || names[1] != "Enrolled" || names[2] != "Graduate" {
		t.Errorf("class names = %v", names)
	}
}

func TestRunRejectsUndeclaredTextColumn(t *testing.T) {
	dir := t.TempDir()

	data := "Grade,Gender,Target\n10,male,Dropout\n15,female,Graduate\n"
	dataPath := filepath.Join(dir, "students.csv")
	if err := os.WriteFile(dataPath, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	src := fmt.Sprintf(`
dataset {
  path   = %q
  target = "Target"
}

model "knn" {}
`, dataPath)
	exp, err := config.ParseExperiment([]byte(src), "bad.hcl")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := Run(exp); err == nil {
		t.Error("undeclared text column should fail the audit")
	}
}
