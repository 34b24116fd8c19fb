package metrics

import (
	"math"
	"strings"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func vec(values ...float64) *mat.VecDense {
	return mat.NewVecDense(len(values), values)
}

func TestAccuracy(t *testing.T) {
	tests := []struct {
		name    string
		yTrue   []float64
		yPred   []float64
		want    float64
		wantErr bool
	}{
		{"perfect", []float64{0, 1, 1, 0}, []float64{0, 1, 1, 0}, 1.0, false},
		{"half", []float64{0, 1, 1, 0}, []float64{0, 1, 0, 1}, 0.5, false},
		{"all wrong", []float64{0, 0}, []float64{1, 1}, 0.0, false},
		{"dimension mismatch", []float64{0, 1}, []float64{0}, 0, true},
		{"empty", nil, nil, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var yTrue, yPred *mat.VecDense
			if len(tt.yTrue) > 0 {
				yTrue = vec(tt.yTrue...)
			}
			if len(tt.yPred) > 0 {
				yPred = vec(tt.yPred...)
			}
			got, err := Accuracy(yTrue, yPred)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Accuracy() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Accuracy() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPrecisionRecallF1(t *testing.T) {
	// tp=2 fp=1 fn=1 tn=1 for positive class 1.
	yTrue := vec(1, 1, 1, 0, 0)
	yPred := vec(1, 1, 0, 1, 0)

	prec, err := Precision(yTrue, yPred, 1)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(prec-2.0/3.0) > 1e-9 {
		t.Errorf("Precision = %v, want 2/3", prec)
	}

	rec, err := Recall(yTrue, yPred, 1)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(rec-2.0/3.0) > 1e-9 {
		t.Errorf("Recall = %v, want 2/3", rec)
	}

	f1, err := F1Score(yTrue, yPred, 1)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(f1-2.0/3.0) > 1e-9 {
		t.Errorf("F1 = %v, want 2/3", f1)
	}
}

func TestPrecisionUndefined(t *testing.T) {
	// No predicted positives: precision falls back to 0.
	prec, err := Precision(vec(1, 0), vec(0, 0), 1)
	if err != nil {
		t.Fatal(err)
	}
	if prec != 0 {
		t.Errorf("undefined precision should be 0, got %v", prec)
	}
}

func TestMacroF1(t *testing.T) {
	// Three classes, one error in class 1.
	yTrue := vec(0, 0, 1, 1, 2, 2)
	yPred := vec(0, 0, 1, 2, 2, 2)

	got, err := MacroF1(yTrue, yPred)
	if err != nil {
		t.Fatal(err)
	}
	// class0 f1=1, class1 f1=2/3, class2 f1=0.8
	want := (1.0 + 2.0/3.0 + 0.8) / 3
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("MacroF1 = %v, want %v", got, want)
	}
}

func TestConfusionMatrix(t *testing.T) {
	yTrue := vec(0, 0, 1, 1, 2)
	yPred := vec(0, 1, 1, 1, 0)

	cm, err := ConfusionMatrix(yTrue, yPred)
	if err != nil {
		t.Fatal(err)
	}
	if len(cm.Classes) != 3 {
		t.Fatalf("Classes = %v", cm.Classes)
	}
	if cm.At(0, 0) != 1 || cm.At(0, 1) != 1 || cm.At(1, 1) != 2 || cm.At(2, 0) != 1 {
		t.Errorf("unexpected counts: %v", cm.Counts)
	}
	if !strings.Contains(cm.String(), "true\\pred") {
		t.Errorf("String() missing header: %s", cm.String())
	}
}

func TestAUC(t *testing.T) {
	tests := []struct {
		name    string
		yTrue   []float64
		yScore  []float64
		want    float64
		wantErr bool
	}{
		{"perfect", []float64{0, 0, 0, 1, 1, 1}, []float64{0.1, 0.2, 0.3, 0.7, 0.8, 0.9}, 1.0, false},
		{"worst", []float64{0, 0, 0, 1, 1, 1}, []float64{0.9, 0.8, 0.7, 0.3, 0.2, 0.1}, 0.0, false},
		{"random", []float64{0, 1, 0, 1}, []float64{0.5, 0.5, 0.5, 0.5}, 0.5, false},
		{"typical", []float64{0, 0, 1, 1}, []float64{0.1, 0.4, 0.35, 0.8}, 0.75, false},
		{"all positive", []float64{1, 1, 1}, []float64{0.1, 0.4, 0.8}, 0.5, false},
		{"all negative", []float64{0, 0, 0}, []float64{0.1, 0.4, 0.8}, 0.5, false},
		{"non-binary labels", []float64{0, 0.5, 1}, []float64{0.1, 0.5, 0.9}, 0, true},
		{"dimension mismatch", []float64{0, 1}, []float64{0.5}, 0, true},
		{"empty", nil, nil, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var yTrue, yScore *mat.VecDense
			if len(tt.yTrue) > 0 {
				yTrue = vec(tt.yTrue...)
			}
			if len(tt.yScore) > 0 {
				yScore = vec(tt.yScore...)
			}
			got, err := AUC(yTrue, yScore)
			if (err != nil) != tt.wantErr {
				t.Fatalf("AUC() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("AUC() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestROCCurve(t *testing.T) {
	yTrue := vec(0, 0, 1, 1)
	yScore := vec(0.1, 0.4, 0.35, 0.8)

	fpr, tpr, err := ROCCurve(yTrue, yScore)
	if err != nil {
		t.Fatal(err)
	}
	if len(fpr) != len(tpr) {
		t.Fatalf("fpr and tpr lengths differ: %d vs %d", len(fpr), len(tpr))
	}
	if fpr[0] != 0 || tpr[0] != 0 {
		t.Errorf("curve should start at (0,0), got (%v,%v)", fpr[0], tpr[0])
	}
	if fpr[len(fpr)-1] != 1 || tpr[len(tpr)-1] != 1 {
		t.Errorf("curve should end at (1,1), got (%v,%v)", fpr[len(fpr)-1], tpr[len(tpr)-1])
	}

	if _, _, err := ROCCurve(vec(1, 1), vec(0.2, 0.9)); err == nil {
		t.Error("single-class input should be an error")
	}
}

func TestReport(t *testing.T) {
	yTrue := vec(0, 0, 1, 1)
	yPred := vec(0, 1, 1, 1)

	report, err := Report(yTrue, yPred, map[int]string{0: "Retained", 1: "Dropout"})
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Retained", "Dropout", "precision", "accuracy"} {
		if !strings.Contains(report, want) {
			t.Errorf("report missing %q:\n%s", want, report)
		}
	}
}

func TestVec(t *testing.T) {
	m := mat.NewDense(3, 1, []float64{1, 2, 3})
	v, err := Vec(m)
	if err != nil {
		t.Fatal(err)
	}
	if v.Len() != 3 || v.AtVec(2) != 3 {
		t.Errorf("unexpected vector: %v", v.RawVector().Data)
	}

	if _, err := Vec(mat.NewDense(2, 2, nil)); err == nil {
		t.Error("wide matrix should be rejected")
	}
}
