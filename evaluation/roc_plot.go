// Package evaluation renders evaluation artifacts: ROC curve plots and text
// reports comparing the trained models.
package evaluation

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/edustats/dropout/pkg/errors"
)

// ROCSeries is one model's ROC curve with its area under the curve.
type ROCSeries struct {
	Name string
	FPR  []float64
	TPR  []float64
	AUC  float64
}

// SaveROCPlot renders the given ROC curves into a single PNG at path. A dashed
// diagonal marks the random-classifier baseline.
func SaveROCPlot(path string, series []ROCSeries) error {
	if len(series) == 0 {
		return errors.NewValueError("SaveROCPlot", "no ROC series to plot")
	}

	p := plot.New()
	p.Title.Text = "ROC Curves"
	p.X.Label.Text = "False Positive Rate"
	p.Y.Label.Text = "True Positive Rate"
	p.X.Min, p.X.Max = 0, 1
	p.Y.Min, p.Y.Max = 0, 1
	p.Legend.Top = false
	p.Legend.Left = false

	diagonal, err := plotter.NewLine(plotter.XYs{{X: 0, Y: 0}, {X: 1, Y: 1}})
	if err != nil {
		return errors.Wrap(err, "failed to build baseline")
	}
	diagonal.LineStyle.Color = color.Gray{Y: 128}
	diagonal.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
	p.Add(diagonal)
	p.Legend.Add("chance", diagonal)

	for i, s := range series {
		if len(s.FPR) != len(s.TPR) {
			return errors.NewDimensionError("SaveROCPlot", len(s.FPR), len(s.TPR), 0)
		}
		pts := make(plotter.XYs, len(s.FPR))
		for j := range s.FPR {
			pts[j] = plotter.XY{X: s.FPR[j], Y: s.TPR[j]}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return errors.Wrapf(err, "failed to build ROC line for %s", s.Name)
		}
		line.LineStyle.Color = plotutil.Color(i)
		line.LineStyle.Width = vg.Points(1.5)
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("%s (AUC = %.3f)", s.Name, s.AUC), line)
	}

	if err := p.Save(6*vg.Inch, 6*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "failed to save ROC plot to %s", path)
	}
	return nil
}
