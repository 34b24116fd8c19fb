package evaluation

import (
	"fmt"
	"strings"

	"github.com/edustats/dropout/pkg/errors"
)

// ModelResult collects one model's test-set scores for the comparison report.
type ModelResult struct {
	Name     string
	Accuracy float64
	MacroF1  float64
	AUC      float64
	HasAUC   bool
	CVMean   float64
	CVStd    float64
	HasCV    bool
	// Detail is the per-class breakdown appended below the comparison table.
	Detail string
}

// BestModel returns the result with the highest primary metric
// ("accuracy" or "f1_macro"). Ties keep the earlier model.
func BestModel(results []ModelResult, primaryMetric string) (ModelResult, error) {
	if len(results) == 0 {
		return ModelResult{}, errors.NewValueError("BestModel", "no model results")
	}
	best := results[0]
	for _, r := range results[1:] {
		if primaryScore(r, primaryMetric) > primaryScore(best, primaryMetric) {
			best = r
		}
	}
	return best, nil
}

func primaryScore(r ModelResult, metric string) float64 {
	if metric == "f1_macro" {
		return r.MacroF1
	}
	return r.Accuracy
}

// RenderComparison renders the model comparison table followed by each
// model's per-class detail. The best model by the primary metric is marked.
func RenderComparison(results []ModelResult, primaryMetric string) (string, error) {
	best, err := BestModel(results, primaryMetric)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("MODEL COMPARISON\n")
	b.WriteString("================\n\n")
	fmt.Fprintf(&b, "%-22s %10s %10s %10s %16s\n", "model", "accuracy", "f1_macro", "auc", "cv (mean±std)")

	for _, r := range results {
		marker := " "
		if r.Name == best.Name {
			marker = "*"
		}
		auc := "-"
		if r.HasAUC {
			auc = fmt.Sprintf("%.4f", r.AUC)
		}
		cv := "-"
		if r.HasCV {
			cv = fmt.Sprintf("%.4f±%.4f", r.CVMean, r.CVStd)
		}
		fmt.Fprintf(&b, "%s%-21s %10.4f %10.4f %10s %16s\n",
			marker, r.Name, r.Accuracy, r.MacroF1, auc, cv)
	}
	fmt.Fprintf(&b, "\nbest model by %s: %s\n", primaryMetric, best.Name)

	for _, r := range results {
		if r.Detail == "" {
			continue
		}
		fmt.Fprintf(&b, "\n--- %s ---\n%s", r.Name, r.Detail)
		if !strings.HasSuffix(r.Detail, "\n") {
			b.WriteString("\n")
		}
	}
	return b.String(), nil
}
