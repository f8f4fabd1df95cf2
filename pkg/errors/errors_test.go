package errors

import (
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewModelError(t *testing.T) {
	tests := []struct {
		name     string
		op       string
		kind     string
		err      error
		wantMsg  string
		hasStack bool
	}{
		{
			name:     "with original error",
			op:       "Load",
			kind:     "format version mismatch",
			err:      fmt.Errorf("got 7"),
			wantMsg:  "carprice: Load: format version mismatch: got 7",
			hasStack: true,
		},
		{
			name:     "without original error",
			op:       "Predict",
			kind:     "not fitted",
			err:      nil,
			wantMsg:  "carprice: Predict: not fitted",
			hasStack: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewModelError(tt.op, tt.kind, tt.err)

			if err.Error() != tt.wantMsg {
				t.Errorf("Error() = %v, want %v", err.Error(), tt.wantMsg)
			}

			// スタックトレースの存在確認
			if tt.hasStack {
				formatted := fmt.Sprintf("%+v", err)
				if !strings.Contains(formatted, "errors_test.go") {
					t.Error("Expected stack trace to contain test file name")
				}
			}

			var modelErr *ModelError
			if !As(err, &modelErr) {
				t.Error("Error should be castable to *ModelError")
			}
		})
	}
}

func TestNewDimensionError(t *testing.T) {
	err := NewDimensionError("Concatenate.Apply", 3, 5, 1)

	want := "carprice: Concatenate.Apply: dimension mismatch on axis 1 (features). Expected 3, got 5"
	assert.Equal(t, want, err.Error())

	var dimErr *DimensionError
	require.True(t, As(err, &dimErr))
	assert.Equal(t, 3, dimErr.Expected)
	assert.Equal(t, 5, dimErr.Got)
}

func TestParseError(t *testing.T) {
	cause := fmt.Errorf("invalid syntax")
	err := NewParseError(41, "Year", "int", "2014.5", cause)

	assert.Contains(t, err.Error(), "row 41")
	assert.Contains(t, err.Error(), `"2014.5"`)
	assert.Contains(t, err.Error(), "Year")

	var parseErr *ParseError
	require.True(t, As(err, &parseErr))
	assert.Equal(t, 41, parseErr.Row)
	assert.Equal(t, "2014.5", parseErr.Value)
	assert.True(t, Is(err, cause), "cause should be reachable through Unwrap")
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("test_fraction", "must be in (0, 1)", 1.5)

	assert.Equal(t, "carprice: validation failed for parameter 'test_fraction': must be in (0, 1) (got: 1.5)", err.Error())

	wrapped := Wrap(err, "split")
	var valErr *ValidationError
	require.True(t, As(wrapped, &valErr))
	assert.Equal(t, "test_fraction", valErr.ParamName)
}

func TestConvergenceError(t *testing.T) {
	err := NewConvergenceError("LBFGS", 1000, "IterationLimit")
	assert.Equal(t, "carprice: LBFGS failed to converge after 1000 iterations: IterationLimit", err.Error())

	err = NewConvergenceError("LBFGS", 10, "")
	assert.Contains(t, err.Error(), "Consider increasing max_iter")

	var convErr *ConvergenceError
	assert.True(t, As(err, &convErr))
}

func TestWrapfAndIs(t *testing.T) {
	wrapped := Wrapf(ErrEmptyData, "in %s: got %d rows", "OneHotEncode.Fit", 0)

	assert.True(t, Is(wrapped, ErrEmptyData))
	assert.Contains(t, wrapped.Error(), "in OneHotEncode.Fit: got 0 rows")
	assert.False(t, Is(wrapped, ErrArtifactMismatch))
}

func TestWarnRouting(t *testing.T) {
	var got []error
	SetZerologWarnFunc(func(w error) { got = append(got, w) })
	defer SetZerologWarnFunc(nil)

	Warn(NewUndefinedMetricWarning("r2", "zero label variance", 0))

	require.Len(t, got, 1)
	assert.Contains(t, got[0].Error(), "'r2' is ill-defined")
}

func TestWarnFallbackHandler(t *testing.T) {
	var got error
	SetWarningHandler(func(w error) { got = w })
	defer SetWarningHandler(func(w error) {})

	Warn(NewUndefinedMetricWarning("r2", "zero label variance", 1))
	require.Error(t, got)
}

func TestNumericalHelpers(t *testing.T) {
	assert.NoError(t, CheckNumericalStability("coef", []float64{1, 2, 3}, 0))
	assert.Error(t, CheckNumericalStability("coef", []float64{1, math.NaN()}, 3))
	assert.Error(t, CheckScalar("loss", math.Inf(1), 1))

	assert.Equal(t, 1.0, ClipValue(3, 0, 1))
	assert.Equal(t, math.Exp(700), StabilizeExp(800))
	assert.Equal(t, 0.0, StabilizeExp(-800))
	assert.Equal(t, 0.0, ClipValue(-0.25, 0, 1))
	assert.Equal(t, 0.5, ClipValue(0.5, 0, 1))
	assert.Equal(t, math.Exp(1.5), StabilizeExp(1.5))
	assert.False(t, math.IsInf(StabilizeExp(math.MaxFloat64), 0))
}
