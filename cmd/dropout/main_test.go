package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTrainingData(t *testing.T, dir string) string {
	t.Helper()

	var b strings.Builder
	b.WriteString("Grade,Absences,Target\n")
	for i := 0; i < 16; i++ {
		fmt.Fprintf(&b, "%d,%d,Dropout\n", 7+i%3, 22+i%5)
	}
	for i := 0; i < 16; i++ {
		fmt.Fprintf(&b, "%d,%d,Graduate\n", 16+i%3, i%5)
	}

	path := filepath.Join(dir, "students.csv")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func writeExperiment(t *testing.T, dir, dataPath string) string {
	t.Helper()

	src := fmt.Sprintf(`
dataset {
  path           = %q
  target         = "Target"
  positive_label = "Dropout"
}

model "knn" {
  k = 3
}

model "logistic_regression" {}

output {
  model_dir = %q
  report    = %q
}
`, dataPath, filepath.Join(dir, "out"), filepath.Join(dir, "out", "report.txt"))

	path := filepath.Join(dir, "experiment.hcl")
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunUsage(t *testing.T) {
	var out bytes.Buffer

	if code := run(nil, &out); code != exitUsage {
		t.Errorf("no args: exit = %d, want %d", code, exitUsage)
	}
	if code := run([]string{"juggle"}, &out); code != exitUsage {
		t.Errorf("unknown command: exit = %d, want %d", code, exitUsage)
	}
	if code := run([]string{"help"}, &out); code != exitOK {
		t.Errorf("help: exit = %d, want %d", code, exitOK)
	}
	if code := run([]string{"train"}, &out); code != exitUsage {
		t.Errorf("train without -config: exit = %d, want %d", code, exitUsage)
	}
	if code := run([]string{"serve"}, &out); code != exitUsage {
		t.Errorf("serve without -bundle: exit = %d, want %d", code, exitUsage)
	}
}

func TestTrainEvaluatePredict(t *testing.T) {
	dir := t.TempDir()
	dataPath := writeTrainingData(t, dir)
	configPath := writeExperiment(t, dir, dataPath)

	var out bytes.Buffer
	if code := run([]string{"train", "-config", configPath, "-log-level", "warn"}, &out); code != exitOK {
		t.Fatalf("train exit = %d\n%s", code, out.String())
	}
	if !strings.Contains(out.String(), "MODEL COMPARISON") {
		t.Error("train output missing comparison report")
	}

	bundlePath := filepath.Join(dir, "out", "bundle.gob")
	if _, err := os.Stat(bundlePath); err != nil {
		t.Fatalf("bundle not written: %v", err)
	}

	out.Reset()
	if code := run([]string{"evaluate", "-bundle", bundlePath, "-data", dataPath}, &out); code != exitOK {
		t.Fatalf("evaluate exit = %d\n%s", code, out.String())
	}
	if !strings.Contains(out.String(), "accuracy=") {
		t.Errorf("evaluate output missing scores:\n%s", out.String())
	}

	// Predict against the same file minus the label column.
	unlabeled := filepath.Join(dir, "unlabeled.csv")
	content := "Grade,Absences\n8,24\n17,1\n"
	if err := os.WriteFile(unlabeled, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	out.Reset()
	if code := run([]string{"predict", "-bundle", bundlePath, "-data", unlabeled}, &out); code != exitOK {
		t.Fatalf("predict exit = %d\n%s", code, out.String())
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("predict output:\n%s", out.String())
	}
	if !strings.Contains(lines[1], "Dropout") {
		t.Errorf("first record should predict Dropout: %q", lines[1])
	}
}

func TestInspect(t *testing.T) {
	dir := t.TempDir()

	clean := filepath.Join(dir, "clean.csv")
	if err := os.WriteFile(clean, []byte("A,B\n1,2\n3,4\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if code := run([]string{"inspect", "-data", clean}, &out); code != exitOK {
		t.Fatalf("inspect exit = %d\n%s", code, out.String())
	}
	if !strings.Contains(out.String(), "NUMERIC COLUMN VERIFICATION") {
		t.Error("inspect output missing audit header")
	}

	dirty := filepath.Join(dir, "dirty.csv")
	if err := os.WriteFile(dirty, []byte("A,B\n1,x\n3,4\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	out.Reset()
	if code := run([]string{"inspect", "-data", dirty}, &out); code != exitError {
		t.Errorf("dirty dataset: exit = %d, want %d", code, exitError)
	}
}

func TestInvalidLogLevelIsUsageError(t *testing.T) {
	var out bytes.Buffer

	code := run([]string{"train", "-config", "x.hcl", "-log-level", "inof"}, &out)
	if code != exitUsage {
		t.Errorf("misspelled -log-level: exit = %d, want %d", code, exitUsage)
	}
	if !strings.Contains(out.String(), "invalid -log-level") {
		t.Errorf("output should name the bad flag:\n%s", out.String())
	}

	out.Reset()
	code = run([]string{"serve", "-bundle", "b.gob", "-log-level", "loud"}, &out)
	if code != exitUsage {
		t.Errorf("serve with bad -log-level: exit = %d, want %d", code, exitUsage)
	}
}
