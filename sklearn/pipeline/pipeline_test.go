package pipeline

import (
	"context"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/carprice/core/dataset"
	"github.com/YuminosukeSato/carprice/core/model"
	"github.com/YuminosukeSato/carprice/pkg/errors"
	"github.com/YuminosukeSato/carprice/preprocessing"
)

var (
	makes  = []string{"Audi", "BMW", "Ford", "Honda"}
	models = []string{"A4", "X5", "Focus", "Civic", "Q5"}
)

// syntheticCars は price = 20000 + 1000*yearOffset - 0.05*mileage + noise のデータを返す
func syntheticCars(n int, seed uint64, price func(yearOffset, mileage float64, rng *rand.Rand) float64) *dataset.MemoryDataset {
	rng := rand.New(rand.NewPCG(seed, seed))
	rows := make([]dataset.Row, n)
	for i := range rows {
		offset := rng.IntN(15)
		mileage := float64(rng.IntN(100000))
		rows[i] = dataset.NewRow(i, map[string]any{
			dataset.ColPrice:   price(float64(offset), mileage, rng),
			dataset.ColYear:    int64(2003 + offset),
			dataset.ColMileage: mileage,
			dataset.ColMake:    makes[rng.IntN(len(makes))],
			dataset.ColModel:   models[rng.IntN(len(models))],
		})
	}
	return dataset.FromRows(dataset.CarSchema(), rows)
}

func linearPrice(yearOffset, mileage float64, rng *rand.Rand) float64 {
	return 20000 + 1000*yearOffset - 0.05*mileage + rng.NormFloat64()*300
}

func positions(from, to int) []int {
	p := make([]int, 0, to-from)
	for i := from; i < to; i++ {
		p = append(p, i)
	}
	return p
}

func TestDefinition_FitEndToEnd(t *testing.T) {
	ds := syntheticCars(100, 1, linearPrice)
	train := dataset.Select(ds, positions(0, 80))
	test := dataset.Select(ds, positions(80, 100))

	fp, err := CarDefinition(CarOptions{Checkpoint: true, RunID: "run-1"}).Fit(context.Background(), train)
	require.NoError(t, err)

	// Year, Mileage, 4 makes, 5 models
	assert.Equal(t, 2+len(makes)+len(models), fp.GLM().Width())
	assert.Equal(t, "run-1", fp.RunID())
	assert.Len(t, fp.Stages(), 4)

	trainMetrics, err := Evaluate(fp, train, dataset.ColPrice, ColScore)
	require.NoError(t, err)
	testMetrics, err := Evaluate(fp, test, dataset.ColPrice, ColScore)
	require.NoError(t, err)

	assert.Equal(t, 80, trainMetrics.Count)
	assert.Equal(t, 20, testMetrics.Count)
	assert.Greater(t, trainMetrics.RSquared, 0.5)
	assert.Greater(t, testMetrics.RSquared, 0.5)
	assert.LessOrEqual(t, testMetrics.RSquared, 1.0)
}

func TestDefinition_CheckpointMakesNoDifference(t *testing.T) {
	ds := syntheticCars(60, 2, linearPrice)

	cached, err := CarDefinition(CarOptions{Checkpoint: true}).Fit(context.Background(), ds)
	require.NoError(t, err)
	lazy, err := CarDefinition(CarOptions{Checkpoint: false}).Fit(context.Background(), ds)
	require.NoError(t, err)

	assert.Equal(t, cached.GLM(), lazy.GLM())
	assert.Equal(t, cached.Stages(), lazy.Stages())
}

func TestDefinition_ConstantPrice(t *testing.T) {
	var warnings []error
	errors.SetWarningHandler(func(w error) { warnings = append(warnings, w) })
	defer errors.SetWarningHandler(func(error) {})

	ds := syntheticCars(40, 3, func(float64, float64, *rand.Rand) float64 { return 15000 })

	fp, err := CarDefinition(CarOptions{}).Fit(context.Background(), ds)
	require.NoError(t, err)

	m, err := Evaluate(fp, ds, dataset.ColPrice, ColScore)
	require.NoError(t, err)
	assert.Contains(t, []float64{0, 1}, m.RSquared)
	assert.InDelta(t, 0, m.MeanAbsoluteError, 1e-6)
	assert.NotEmpty(t, warnings)
}

func TestDefinition_FitErrors(t *testing.T) {
	ds := syntheticCars(20, 4, linearPrice)

	t.Run("empty data", func(t *testing.T) {
		_, err := CarDefinition(CarOptions{}).Fit(context.Background(), dataset.FromRows(dataset.CarSchema(), nil))
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrEmptyData))
	})

	t.Run("missing column", func(t *testing.T) {
		schema := dataset.NewSchema(dataset.CarSchema().Columns[:3]...)
		_, err := CarDefinition(CarOptions{}).Fit(context.Background(), dataset.FromRows(schema, nil))
		var se *errors.SchemaError
		require.True(t, errors.As(err, &se), "got %v", err)
		assert.Equal(t, dataset.ColMake, se.Column)
	})

	t.Run("non-numeric label", func(t *testing.T) {
		def := CarDefinition(CarOptions{})
		def.Label = dataset.ColMake
		_, err := def.Fit(context.Background(), ds)
		var se *errors.SchemaError
		assert.True(t, errors.As(err, &se), "got %v", err)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := CarDefinition(CarOptions{}).Fit(ctx, ds)
		assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
	})

	t.Run("stage panic", func(t *testing.T) {
		def := CarDefinition(CarOptions{})
		def.Stages = append([]preprocessing.Stage{panickingStage{}}, def.Stages...)
		_, err := def.Fit(context.Background(), ds)
		var pe *errors.PanicError
		assert.True(t, errors.As(err, &pe), "got %v", err)
	})
}

type panickingStage struct{}

func (panickingStage) Name() string { return "Panic" }

func (panickingStage) Fit(dataset.Dataset) (preprocessing.Params, error) {
	panic("boom")
}

func TestFittedPipeline_UnseenCategory(t *testing.T) {
	fp, err := CarDefinition(CarOptions{}).Fit(context.Background(), syntheticCars(50, 5, linearPrice))
	require.NoError(t, err)

	row := dataset.NewRow(0, map[string]any{
		dataset.ColYear:    int64(2010),
		dataset.ColMileage: 42000.0,
		dataset.ColMake:    "Tesla",
		dataset.ColModel:   "Model S",
	})
	score, err := fp.Score(row)
	require.NoError(t, err)
	assert.False(t, math.IsNaN(score))
	assert.GreaterOrEqual(t, score, 0.0)

	scored, err := fp.Predict(row)
	require.NoError(t, err)
	got, err := scored.Float(ColScore)
	require.NoError(t, err)
	assert.Equal(t, score, got)
	assert.False(t, row.Has(ColScore), "input row is not modified")
}

func TestFittedPipeline_AccessorsDoNotAlias(t *testing.T) {
	fp, err := CarDefinition(CarOptions{}).Fit(context.Background(), syntheticCars(100, 10, linearPrice))
	require.NoError(t, err)

	row := dataset.NewRow(0, map[string]any{
		dataset.ColYear:    int64(2012),
		dataset.ColMileage: 35000.0,
		dataset.ColMake:    "BMW",
		dataset.ColModel:   "X5",
	})
	before, err := fp.Score(row)
	require.NoError(t, err)

	stages := fp.Stages()
	require.Len(t, stages, 4)
	for i := range stages {
		for j := range stages[i].DataMin {
			stages[i].DataMin[j] += 50000
		}
		for j := range stages[i].Scale {
			stages[i].Scale[j] *= 3
		}
		for j := range stages[i].Vocabulary {
			stages[i].Vocabulary[j] = "Zz"
		}
		for j := range stages[i].Widths {
			stages[i].Widths[j]++
		}
		for j := range stages[i].Inputs {
			stages[i].Inputs[j] = "nope"
		}
	}
	glm := fp.GLM()
	for j := range glm.Weights {
		glm.Weights[j] = 0
	}

	after, err := fp.Score(row)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, dataset.ColMake, fp.Stages()[0].Inputs[0])
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	ds := syntheticCars(80, 6, linearPrice)
	fp, err := CarDefinition(CarOptions{RunID: "run-42"}).Fit(context.Background(), ds)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "model.gob")
	require.NoError(t, Save(fp, dataset.CarSchema(), path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "run-42", loaded.RunID())
	assert.True(t, loaded.Schema().Equal(dataset.CarSchema()))

	want, err := dataset.Collect(fp.Transform(ds))
	require.NoError(t, err)
	got, err := dataset.Collect(loaded.Transform(ds))
	require.NoError(t, err)
	require.Len(t, got, len(want))
	for i := range want {
		w, _ := want[i].Float(ColScore)
		g, _ := got[i].Float(ColScore)
		assert.InDelta(t, w, g, 1e-6)
	}

	// no temp files are left behind
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSave_Errors(t *testing.T) {
	fp, err := CarDefinition(CarOptions{}).Fit(context.Background(), syntheticCars(30, 7, linearPrice))
	require.NoError(t, err)

	err = Save(fp, dataset.CarSchema(), filepath.Join(t.TempDir(), "missing", "model.gob"))
	assert.Error(t, err)

	// the consumer schema must provide every column the stages read
	schema := dataset.NewSchema(dataset.CarSchema().Columns[:4]...)
	err = Save(fp, schema, filepath.Join(t.TempDir(), "model.gob"))
	var se *errors.SchemaError
	assert.True(t, errors.As(err, &se), "got %v", err)

	assert.Error(t, Save(nil, dataset.CarSchema(), filepath.Join(t.TempDir(), "model.gob")))
}

func TestLoad_Rejects(t *testing.T) {
	fp, err := CarDefinition(CarOptions{}).Fit(context.Background(), syntheticCars(30, 8, linearPrice))
	require.NoError(t, err)
	valid := artifact{
		Schema:    dataset.CarSchema(),
		Stages:    fp.Stages(),
		Weights:   fp.GLM().Weights,
		Intercept: fp.GLM().Intercept,
		Checksum:  fp.GLM().Checksum(),
		Label:     dataset.ColPrice,
		Features:  preprocessing.ColFeatures,
		Score:     ColScore,
	}

	tests := []struct {
		name   string
		header model.Header
		mutate func(a *artifact)
	}{
		{
			name:   "weight width",
			header: model.NewHeader(ArtifactKind, ""),
			mutate: func(a *artifact) {
				a.Weights = append(a.Weights, 1)
			},
		},
		{
			name:   "checksum",
			header: model.NewHeader(ArtifactKind, ""),
			mutate: func(a *artifact) {
				a.Intercept += 1
			},
		},
		{
			name:   "schema missing stage input",
			header: model.NewHeader(ArtifactKind, ""),
			mutate: func(a *artifact) {
				a.Schema = dataset.NewSchema(dataset.CarSchema().Columns[:3]...)
			},
		},
		{
			name:   "unsorted vocabulary",
			header: model.NewHeader(ArtifactKind, ""),
			mutate: func(a *artifact) {
				a.Stages[0].Vocabulary = []string{"Z", "A"}
			},
		},
		{
			name:   "kind",
			header: model.NewHeader("something.Else", ""),
			mutate: func(*artifact) {},
		},
		{
			name:   "version",
			header: model.Header{Magic: model.ArtifactMagic, FormatVersion: 99, Kind: ArtifactKind},
			mutate: func(*artifact) {},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := valid
			a.Weights = append([]float64(nil), valid.Weights...)
			a.Stages = fp.Stages()
			tt.mutate(&a)

			path := filepath.Join(t.TempDir(), "model.gob")
			require.NoError(t, model.SaveArtifact(path, tt.header, a))

			loaded, err := Load(path)
			require.Error(t, err)
			assert.Nil(t, loaded)

			var me *errors.ModelError
			assert.True(t, errors.As(err, &me), "got %v", err)
			assert.True(t, errors.Is(err, errors.ErrArtifactMismatch))
		})
	}
}

func TestLoad_NotAnArtifact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.gob")
	require.NoError(t, os.WriteFile(path, []byte("Price,Year\n1,2\n"), 0o644))

	_, err := Load(path)
	assert.True(t, errors.Is(err, errors.ErrArtifactMismatch), "got %v", err)

	_, err = Load(filepath.Join(t.TempDir(), "nope.gob"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, errors.ErrArtifactMismatch), "I/O errors are not artifact mismatches")
}

func TestEvaluate_NilPipeline(t *testing.T) {
	_, err := Evaluate(nil, syntheticCars(3, 9, linearPrice), dataset.ColPrice, ColScore)
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))
}
