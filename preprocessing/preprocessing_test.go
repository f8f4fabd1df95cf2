package preprocessing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/carprice/core/dataset"
	"github.com/YuminosukeSato/carprice/pkg/errors"
)

func carRow(id int, year int64, mileage float64, mk, model string) dataset.Row {
	return dataset.NewRow(id, map[string]any{
		dataset.ColPrice:   10000.0,
		dataset.ColYear:    year,
		dataset.ColMileage: mileage,
		dataset.ColMake:    mk,
		dataset.ColModel:   model,
	})
}

func carData() *dataset.MemoryDataset {
	return dataset.FromRows(dataset.CarSchema(), []dataset.Row{
		carRow(0, 2014, 30000, "Toyota", "Camry"),
		carRow(1, 2016, 10000, "Honda", "Civic"),
		carRow(2, 2012, 50000, "Toyota", "Corolla"),
		carRow(3, 2015, 20000, "Audi", "A4"),
	})
}

func TestOneHotEncode(t *testing.T) {
	params, err := OneHotEncode{Input: dataset.ColMake, Output: ColMakeEncoded}.Fit(carData())
	require.NoError(t, err)
	assert.Equal(t, []string{"Audi", "Honda", "Toyota"}, params.Vocabulary)
	assert.Equal(t, 3, params.Width())

	out, err := params.Apply(carRow(9, 2014, 1, "Toyota", "Camry"))
	require.NoError(t, err)
	v, err := out.Vector(ColMakeEncoded)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 1}, v)

	// unseen category
	out, err = params.Apply(carRow(9, 2014, 1, "Ferrari", "F40"))
	require.NoError(t, err)
	v, _ = out.Vector(ColMakeEncoded)
	assert.Equal(t, []float64{0, 0, 0}, v)
}

func TestOneHotEncode_VocabularyIndependentOfOrder(t *testing.T) {
	rows, err := dataset.Collect(carData())
	require.NoError(t, err)
	reversed := make([]dataset.Row, len(rows))
	for i, r := range rows {
		reversed[len(rows)-1-i] = r
	}

	stage := OneHotEncode{Input: dataset.ColModel, Output: ColModelEncoded}
	a, err := stage.Fit(carData())
	require.NoError(t, err)
	b, err := stage.Fit(dataset.FromRows(dataset.CarSchema(), reversed))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestStages_EmptyData(t *testing.T) {
	empty := dataset.FromRows(dataset.CarSchema(), nil)
	for _, stage := range CarFeatureStages(false) {
		_, err := stage.Fit(empty)
		assert.True(t, errors.Is(err, errors.ErrEmptyData), "%s: %v", stage.Name(), err)
	}
}

func TestConcatenate(t *testing.T) {
	row := dataset.NewRow(0, map[string]any{
		"a": 2.0,
		"b": []float64{3, 4},
		"c": int64(5),
	})
	ds := dataset.FromRows(dataset.NewSchema(), []dataset.Row{row})

	params, err := Concatenate{Inputs: []string{"a", "b", "c"}, Output: "out"}.Fit(ds)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 1}, params.Widths)
	assert.Equal(t, 4, params.Width())

	out, err := params.Apply(row)
	require.NoError(t, err)
	v, _ := out.Vector("out")
	assert.Equal(t, []float64{2, 3, 4, 5}, v)

	_, err = params.Apply(row.WithVector("b", []float64{1}))
	var de *errors.DimensionError
	assert.True(t, errors.As(err, &de))
}

func TestNormalizeMinMax(t *testing.T) {
	rows := []dataset.Row{
		dataset.NewRow(0, map[string]any{"f": []float64{1, 10, 7}}),
		dataset.NewRow(1, map[string]any{"f": []float64{3, 30, 7}}),
		dataset.NewRow(2, map[string]any{"f": []float64{2, 20, 7}}),
	}
	ds := dataset.FromRows(dataset.NewSchema(), rows)

	params, err := NormalizeMinMax{Column: "f"}.Fit(ds)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 10, 7}, params.DataMin)
	assert.Equal(t, []float64{2, 20, 1}, params.Scale)

	tests := []struct {
		name string
		in   []float64
		want []float64
	}{
		{"min maps to zero", []float64{1, 10, 7}, []float64{0, 0, 0}},
		{"max maps to one", []float64{3, 30, 7}, []float64{1, 1, 0}},
		{"midpoint", []float64{2, 20, 7}, []float64{0.5, 0.5, 0}},
		{"extrapolates", []float64{5, 0, 9}, []float64{2, -0.5, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := params.Apply(dataset.NewRow(0, map[string]any{"f": tt.in}))
			require.NoError(t, err)
			v, _ := out.Vector("f")
			assert.InDeltaSlice(t, tt.want, v, 1e-12)
		})
	}

	clamped, err := NormalizeMinMax{Column: "f", Clamp: true}.Fit(ds)
	require.NoError(t, err)
	out, err := clamped.Apply(dataset.NewRow(0, map[string]any{"f": []float64{5, 0, 9}}))
	require.NoError(t, err)
	v, _ := out.Vector("f")
	assert.Equal(t, []float64{1, 0, 1}, v)
}

func TestParamsApply_IsPure(t *testing.T) {
	params, err := NormalizeMinMax{Column: "f"}.Fit(dataset.FromRows(dataset.NewSchema(), []dataset.Row{
		dataset.NewRow(0, map[string]any{"f": []float64{0, 0}}),
		dataset.NewRow(1, map[string]any{"f": []float64{4, 8}}),
	}))
	require.NoError(t, err)

	in := []float64{2, 2}
	row := dataset.NewRow(7, map[string]any{"f": in})
	a, err := params.Apply(row)
	require.NoError(t, err)
	b, err := params.Apply(row)
	require.NoError(t, err)

	va, _ := a.Vector("f")
	vb, _ := b.Vector("f")
	assert.Equal(t, va, vb)
	assert.Equal(t, []float64{2, 2}, in, "input must not be modified")
	orig, _ := row.Vector("f")
	assert.Equal(t, []float64{2, 2}, orig)
}

func TestParams_Clone(t *testing.T) {
	p := Params{
		Kind:       KindMinMax,
		Inputs:     []string{"f"},
		Output:     "f",
		Vocabulary: []string{"a", "b"},
		Widths:     []int{2},
		DataMin:    []float64{1, 2},
		Scale:      []float64{3, 4},
		Clamp:      true,
	}
	c := p.Clone()
	assert.Equal(t, p, c)

	c.Inputs[0] = "g"
	c.Vocabulary[0] = "z"
	c.Widths[0] = 9
	c.DataMin[0] = -1
	c.Scale[1] = 100

	assert.Equal(t, []string{"f"}, p.Inputs)
	assert.Equal(t, []string{"a", "b"}, p.Vocabulary)
	assert.Equal(t, []int{2}, p.Widths)
	assert.Equal(t, []float64{1, 2}, p.DataMin)
	assert.Equal(t, []float64{3, 4}, p.Scale)
}

func TestPipeline_FitTransform(t *testing.T) {
	for _, checkpoint := range []bool{false, true} {
		p := Pipeline{Stages: CarFeatureStages(false), Checkpoint: checkpoint}
		transform, train, err := p.FitTransform(context.Background(), carData())
		require.NoError(t, err)
		require.Len(t, transform.Stages, 4)

		// 2 numeric + 3 makes + 4 models
		width, err := transform.Validate(dataset.CarSchema(), ColFeatures)
		require.NoError(t, err)
		assert.Equal(t, 9, width)

		rows, err := dataset.Collect(train)
		require.NoError(t, err)
		require.Len(t, rows, 4)
		for _, r := range rows {
			v, err := r.Vector(ColFeatures)
			require.NoError(t, err)
			require.Len(t, v, 9)
			for _, x := range v {
				assert.GreaterOrEqual(t, x, 0.0)
				assert.LessOrEqual(t, x, 1.0)
			}
		}
		assert.True(t, train.Schema().Has(ColFeatures))

		// oldest car has the smallest year and the largest mileage
		v, _ := rows[2].Vector(ColFeatures)
		assert.Equal(t, 0.0, v[0])
		assert.Equal(t, 1.0, v[1])

		// unseen make and model still transform
		out, err := transform.Apply(carRow(5, 2014, 30000, "Ferrari", "F40"))
		require.NoError(t, err)
		v, _ = out.Vector(ColFeatures)
		assert.Len(t, v, 9)
		for _, x := range v[2:] {
			assert.Equal(t, 0.0, x)
		}
	}
}

func TestPipeline_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := Pipeline{Stages: CarFeatureStages(false)}.FitTransform(ctx, carData())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTransformValidate_Mismatch(t *testing.T) {
	transform, _, err := Pipeline{Stages: CarFeatureStages(false)}.FitTransform(context.Background(), carData())
	require.NoError(t, err)

	broken := Transform{Stages: append([]Params{}, transform.Stages...)}
	last := broken.Stages[3]
	last.DataMin = last.DataMin[:5]
	last.Scale = last.Scale[:5]
	broken.Stages[3] = last

	_, err = broken.Validate(dataset.CarSchema(), ColFeatures)
	var de *errors.DimensionError
	assert.True(t, errors.As(err, &de))

	_, err = transform.Validate(dataset.NewSchema(dataset.Column{Name: dataset.ColPrice, Kind: dataset.KindFloat}), ColFeatures)
	var se *errors.SchemaError
	assert.True(t, errors.As(err, &se))
}
