package preprocessing

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/edustats/dropout/core/model"
	"github.com/edustats/dropout/pkg/errors"
)

// LabelEncoder maps string categories to integer codes, assigned in sorted
// order so encodings are stable across runs. Used for the target column
// ("Dropout"/"Enrolled"/"Graduate" -> 0/1/2) and for label-encoded features.
type LabelEncoder struct {
	State *model.StateManager

	// ClassList holds the categories in code order; Codes is the reverse map.
	ClassList []string
	Codes     map[string]int
}

// NewLabelEncoder creates an unfitted LabelEncoder.
func NewLabelEncoder() *LabelEncoder {
	return &LabelEncoder{State: model.NewStateManager()}
}

// Fit learns the category set from values.
func (e *LabelEncoder) Fit(values []string) error {
	if len(values) == 0 {
		return errors.ErrEmptyData
	}

	seen := make(map[string]bool)
	for _, v := range values {
		seen[v] = true
	}

	e.ClassList = make([]string, 0, len(seen))
	for v := range seen {
		e.ClassList = append(e.ClassList, v)
	}
	sort.Strings(e.ClassList)

	e.Codes = make(map[string]int, len(e.ClassList))
	for code, v := range e.ClassList {
		e.Codes[v] = code
	}

	e.State.SetDimensions(1, len(values))
	e.State.SetFitted()
	return nil
}

// Transform maps values to their integer codes. A category not seen during
// Fit is an error rather than a silent new code.
func (e *LabelEncoder) Transform(values []string) ([]int, error) {
	if err := e.State.RequireFitted("LabelEncoder", "Transform"); err != nil {
		return nil, err
	}

	out := make([]int, len(values))
	for i, v := range values {
		code, ok := e.Codes[v]
		if !ok {
			return nil, errors.NewValueError("LabelEncoder.Transform",
				fmt.Sprintf("unseen label %q (known: %v)", v, e.ClassList))
		}
		out[i] = code
	}
	return out, nil
}

// FitTransform fits the encoder and transforms values in one call.
func (e *LabelEncoder) FitTransform(values []string) ([]int, error) {
	if err := e.Fit(values); err != nil {
		return nil, err
	}
	return e.Transform(values)
}

// InverseTransform maps codes back to their categories.
func (e *LabelEncoder) InverseTransform(codes []int) ([]string, error) {
	if err := e.State.RequireFitted("LabelEncoder", "InverseTransform"); err != nil {
		return nil, err
	}

	out := make([]string, len(codes))
	for i, code := range codes {
		if code < 0 || code >= len(e.ClassList) {
			return nil, errors.NewValueError("LabelEncoder.InverseTransform",
				fmt.Sprintf("code %d out of range [0, %d)", code, len(e.ClassList)))
		}
		out[i] = e.ClassList[code]
	}
	return out, nil
}

// Classes returns the categories in code order.
func (e *LabelEncoder) Classes() []string {
	return e.ClassList
}

// OneHotEncoder expands one categorical column into len(categories) binary
// columns, ordered like LabelEncoder's codes.
type OneHotEncoder struct {
	State *model.StateManager

	Encoder *LabelEncoder
}

// NewOneHotEncoder creates an unfitted OneHotEncoder.
func NewOneHotEncoder() *OneHotEncoder {
	return &OneHotEncoder{State: model.NewStateManager(), Encoder: NewLabelEncoder()}
}

// Fit learns the category set from values.
func (e *OneHotEncoder) Fit(values []string) error {
	if err := e.Encoder.Fit(values); err != nil {
		return err
	}
	e.State.SetDimensions(len(e.Encoder.ClassList), len(values))
	e.State.SetFitted()
	return nil
}

// Transform produces an n×nCategories indicator matrix.
func (e *OneHotEncoder) Transform(values []string) (*mat.Dense, error) {
	if err := e.State.RequireFitted("OneHotEncoder", "Transform"); err != nil {
		return nil, err
	}

	codes, err := e.Encoder.Transform(values)
	if err != nil {
		return nil, err
	}

	out := mat.NewDense(len(values), len(e.Encoder.ClassList), nil)
	for i, code := range codes {
		out.Set(i, code, 1)
	}
	return out, nil
}

// FitTransform fits the encoder and transforms values in one call.
func (e *OneHotEncoder) FitTransform(values []string) (*mat.Dense, error) {
	if err := e.Fit(values); err != nil {
		return nil, err
	}
	return e.Transform(values)
}

// Categories returns the categories in column order.
func (e *OneHotEncoder) Categories() []string {
	return e.Encoder.Classes()
}
