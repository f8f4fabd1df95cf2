// Package pipeline binds the feature stages and the Poisson trainer into a
// single fit-and-score unit.
//
// A Definition describes what to fit. Fitting it produces an immutable
// FittedPipeline that maps raw rows to scored rows and can be saved as a
// self-contained artifact.
package pipeline

import (
	"context"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/carprice/core/dataset"
	"github.com/YuminosukeSato/carprice/pkg/errors"
	"github.com/YuminosukeSato/carprice/pkg/log"
	"github.com/YuminosukeSato/carprice/preprocessing"
	"github.com/YuminosukeSato/carprice/sklearn/linear_model"
)

// ColScore is the column a FittedPipeline adds to every row.
const ColScore = "Score"

// Definition is an unfitted pipeline: input schema, feature stages and
// trainer settings. Definitions are plain values and can be fitted many
// times, e.g. once per cross-validation fold.
type Definition struct {
	Schema     dataset.Schema
	Stages     []preprocessing.Stage
	Checkpoint bool // cache the transformed training rows

	Label    string // label column, e.g. "Price"
	Features string // feature vector column produced by Stages
	Score    string // prediction column added by Transform

	TrainerOptions []linear_model.PoissonOption

	// RunID is stamped on log records and on the saved artifact.
	RunID string
}

// CarOptions are the knobs of CarDefinition.
type CarOptions struct {
	Checkpoint bool
	Clamp      bool
	RunID      string
	Trainer    []linear_model.PoissonOption
}

// CarDefinition returns the used-car price pipeline over dataset.CarSchema.
func CarDefinition(opts CarOptions) Definition {
	return Definition{
		Schema:         dataset.CarSchema(),
		Stages:         preprocessing.CarFeatureStages(opts.Clamp),
		Checkpoint:     opts.Checkpoint,
		Label:          dataset.ColPrice,
		Features:       preprocessing.ColFeatures,
		Score:          ColScore,
		TrainerOptions: opts.Trainer,
		RunID:          opts.RunID,
	}
}

// Validate checks that the definition is internally consistent and that in
// provides every column the definition reads.
func (d Definition) Validate(in dataset.Schema) error {
	if err := d.Schema.Validate(); err != nil {
		return err
	}
	if d.Features == "" {
		return errors.NewValidationError("Features", "must name the feature column", d.Features)
	}
	if d.Score == "" {
		return errors.NewValidationError("Score", "must name the score column", d.Score)
	}

	label, ok := d.Schema.Lookup(d.Label)
	if !ok {
		return errors.NewSchemaError(d.Label, "label column is not in the schema")
	}
	if label.Kind != dataset.KindFloat && label.Kind != dataset.KindInt {
		return errors.NewSchemaError(d.Label, "label column must be numeric, got "+label.Kind.String())
	}

	for _, want := range d.Schema.Columns {
		got, ok := in.Lookup(want.Name)
		if !ok {
			return errors.NewSchemaError(want.Name, "missing from input dataset")
		}
		if got.Kind != want.Kind {
			return errors.NewSchemaError(want.Name, "input kind "+got.Kind.String()+", want "+want.Kind.String())
		}
	}
	return nil
}

// Fit fits the feature stages on ds, then a fresh PoissonRegressor on the
// transformed rows.
//
// Parameters:
//   - ctx: checked between stages; cancellation aborts the fit
//   - ds: training rows conforming to d.Schema
//
// Returns an immutable FittedPipeline, or the first error raised by
// validation, a stage, or the solver. A panic anywhere inside is returned
// as an errors.PanicError.
func (d Definition) Fit(ctx context.Context, ds dataset.Dataset) (fp *FittedPipeline, err error) {
	defer errors.Recover(&err, "Definition.Fit")

	if err := d.Validate(ds.Schema()); err != nil {
		return nil, err
	}

	logger := log.GetLoggerWithName("pipeline").With(log.RunIDKey, d.RunID)
	start := time.Now()

	features := preprocessing.Pipeline{Stages: d.Stages, Checkpoint: d.Checkpoint}
	transform, train, err := features.FitTransform(ctx, ds)
	if err != nil {
		return nil, err
	}

	width, err := transform.Validate(d.Schema, d.Features)
	if err != nil {
		return nil, err
	}

	X, y, err := designMatrix(train, d.Features, d.Label, width)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.WithStack(err)
	}

	reg := linear_model.NewPoissonRegressor(d.TrainerOptions...)
	if err := reg.Fit(X, y); err != nil {
		return nil, errors.Wrap(err, "failed to fit PoissonRegressor")
	}

	fp = &FittedPipeline{
		schema:    d.Schema,
		transform: transform,
		glm:       reg.Params(),
		label:     d.Label,
		features:  d.Features,
		score:     d.Score,
		runID:     d.RunID,
	}

	logger.Info("Model trained",
		log.ModelNameKey, "PoissonRegressor",
		log.SamplesKey, y.Len(),
		log.FeaturesKey, width,
		log.IterationKey, reg.NIter(),
		log.LossKey, reg.Loss(),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return fp, nil
}

// designMatrix collects the feature vectors and labels of ds into gonum
// structures.
func designMatrix(ds dataset.Dataset, features, label string, width int) (*mat.Dense, *mat.VecDense, error) {
	var data, labels []float64
	for row, err := range ds.Rows() {
		if err != nil {
			return nil, nil, err
		}
		x, err := row.Vector(features)
		if err != nil {
			return nil, nil, err
		}
		if len(x) != width {
			return nil, nil, errors.NewDimensionError("designMatrix", width, len(x), 1)
		}
		v, err := row.Float(label)
		if err != nil {
			return nil, nil, err
		}
		data = append(data, x...)
		labels = append(labels, v)
	}
	if len(labels) == 0 {
		return nil, nil, errors.NewModelError("Definition.Fit", "empty data", errors.ErrEmptyData)
	}
	return mat.NewDense(len(labels), width, data), mat.NewVecDense(len(labels), labels), nil
}
