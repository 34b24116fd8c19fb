package preprocessing

import (
	"sort"
	"strconv"

	"github.com/edustats/dropout/core/model"
	"github.com/edustats/dropout/dataset"
	"github.com/edustats/dropout/pkg/errors"
)

// Imputation strategies.
const (
	StrategyMean         = "mean"
	StrategyMedian       = "median"
	StrategyMostFrequent = "most_frequent"
)

// SimpleImputer fills missing cells of one column. Numeric strategies (mean,
// median) require the non-missing cells to parse; most_frequent works on any
// column.
type SimpleImputer struct {
	State *model.StateManager

	Strategy string
	// Fill is the replacement value learned by Fit, already formatted as a
	// cell string.
	Fill string
}

// NewSimpleImputer creates an imputer with the given strategy.
func NewSimpleImputer(strategy string) (*SimpleImputer, error) {
	switch strategy {
	case StrategyMean, StrategyMedian, StrategyMostFrequent:
	default:
		return nil, errors.NewValidationError("strategy",
			"must be one of mean, median, most_frequent", strategy)
	}
	return &SimpleImputer{State: model.NewStateManager(), Strategy: strategy}, nil
}

// Fit learns the fill value from the non-missing cells.
func (im *SimpleImputer) Fit(cells []string) error {
	if len(cells) == 0 {
		return errors.ErrEmptyData
	}

	switch im.Strategy {
	case StrategyMostFrequent:
		counts := make(map[string]int)
		for _, c := range cells {
			if !dataset.IsMissing(c) {
				counts[c]++
			}
		}
		best, bestCount := "", -1
		for v, n := range counts {
			// Ties break lexicographically so Fit is deterministic.
			if n > bestCount || (n == bestCount && v < best) {
				best, bestCount = v, n
			}
		}
		if bestCount < 0 {
			return errors.NewValueError("SimpleImputer.Fit", "column has no non-missing cells")
		}
		im.Fill = best

	default:
		var nums []float64
		for _, c := range cells {
			if dataset.IsMissing(c) {
				continue
			}
			v, ok := dataset.ParseCell(c)
			if !ok {
				return errors.NewValueError("SimpleImputer.Fit",
					"strategy "+im.Strategy+" requires a numeric column, found cell "+strconv.Quote(c))
			}
			nums = append(nums, v)
		}
		if len(nums) == 0 {
			return errors.NewValueError("SimpleImputer.Fit", "column has no non-missing cells")
		}

		var fill float64
		if im.Strategy == StrategyMean {
			for _, v := range nums {
				fill += v
			}
			fill /= float64(len(nums))
		} else {
			sort.Float64s(nums)
			mid := len(nums) / 2
			if len(nums)%2 == 0 {
				fill = (nums[mid-1] + nums[mid]) / 2
			} else {
				fill = nums[mid]
			}
		}
		im.Fill = strconv.FormatFloat(fill, 'f', -1, 64)
	}

	im.State.SetDimensions(1, len(cells))
	im.State.SetFitted()
	return nil
}

// Transform returns a copy of cells with missing values replaced by the
// learned fill.
func (im *SimpleImputer) Transform(cells []string) ([]string, error) {
	if err := im.State.RequireFitted("SimpleImputer", "Transform"); err != nil {
		return nil, err
	}

	out := make([]string, len(cells))
	for i, c := range cells {
		if dataset.IsMissing(c) {
			out[i] = im.Fill
		} else {
			out[i] = c
		}
	}
	return out, nil
}

// FitTransform fits the imputer and transforms cells in one call.
func (im *SimpleImputer) FitTransform(cells []string) ([]string, error) {
	if err := im.Fit(cells); err != nil {
		return nil, err
	}
	return im.Transform(cells)
}

// ImputeTable fits one imputer per named column on the table and rewrites the
// missing cells in place. It returns the fitted imputers keyed by column so a
// serving path can reuse them.
func ImputeTable(t *dataset.Table, strategy string, columns ...string) (map[string]*SimpleImputer, error) {
	if len(columns) == 0 {
		columns = t.Columns
	}

	imputers := make(map[string]*SimpleImputer, len(columns))
	for _, col := range columns {
		cells, err := t.Column(col)
		if err != nil {
			return nil, err
		}

		im, err := NewSimpleImputer(strategy)
		if err != nil {
			return nil, err
		}
		filled, err := im.FitTransform(cells)
		if err != nil {
			return nil, errors.Wrapf(err, "imputing column '%s'", col)
		}
		if err := t.SetColumn(col, filled); err != nil {
			return nil, err
		}
		imputers[col] = im
	}
	return imputers, nil
}
