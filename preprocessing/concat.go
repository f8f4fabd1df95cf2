package preprocessing

import (
	"slices"

	"github.com/YuminosukeSato/carprice/core/dataset"
	"github.com/YuminosukeSato/carprice/pkg/errors"
)

// Concatenate は数値列とベクトル列を Inputs の順に1本のベクトルへ連結するステージ
type Concatenate struct {
	Inputs []string
	Output string
}

// Name implements Stage.
func (s Concatenate) Name() string { return KindConcat.String() }

// Fit は各入力の次元数を記録する。全行で次元数が一致しない場合は DimensionError。
func (s Concatenate) Fit(ds dataset.Dataset) (Params, error) {
	if len(s.Inputs) == 0 {
		return Params{}, errors.NewValueError("Concatenate.Fit", "no input columns")
	}

	var widths []int
	for row, err := range ds.Rows() {
		if err != nil {
			return Params{}, err
		}
		if widths == nil {
			widths = make([]int, len(s.Inputs))
			for i, name := range s.Inputs {
				v, err := row.Vector(name)
				if err != nil {
					return Params{}, err
				}
				widths[i] = len(v)
			}
			continue
		}
		if err := checkWidths("Concatenate.Fit", row, s.Inputs, widths); err != nil {
			return Params{}, err
		}
	}
	if widths == nil {
		return Params{}, errors.NewModelError("Concatenate.Fit", "empty data", errors.ErrEmptyData)
	}

	return Params{
		Kind:   KindConcat,
		Inputs: slices.Clone(s.Inputs),
		Output: s.Output,
		Widths: widths,
	}, nil
}

func checkWidths(op string, row dataset.Row, inputs []string, widths []int) error {
	for i, name := range inputs {
		v, err := row.Vector(name)
		if err != nil {
			return err
		}
		if len(v) != widths[i] {
			return errors.NewDimensionError(op+"("+name+")", widths[i], len(v), 1)
		}
	}
	return nil
}

func (p Params) applyConcat(row dataset.Row) (dataset.Row, error) {
	out := make([]float64, 0, p.Width())
	for i, name := range p.Inputs {
		v, err := row.Vector(name)
		if err != nil {
			return dataset.Row{}, err
		}
		if len(v) != p.Widths[i] {
			return dataset.Row{}, errors.NewDimensionError("Concatenate.Apply("+name+")", p.Widths[i], len(v), 1)
		}
		out = append(out, v...)
	}
	return row.WithVector(p.Output, out), nil
}
