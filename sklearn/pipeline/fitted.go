package pipeline

import (
	"fmt"
	"slices"

	"github.com/YuminosukeSato/carprice/core/dataset"
	"github.com/YuminosukeSato/carprice/preprocessing"
	"github.com/YuminosukeSato/carprice/sklearn/linear_model"
)

// FittedPipeline is the immutable result of Definition.Fit: the input
// schema, the fitted stage parameters and the GLM coefficients.
// It is safe for concurrent use.
type FittedPipeline struct {
	schema    dataset.Schema
	transform preprocessing.Transform
	glm       linear_model.GLMParams

	label    string
	features string
	score    string
	runID    string
}

// Schema returns the input schema the pipeline was fitted on.
func (fp *FittedPipeline) Schema() dataset.Schema { return fp.schema }

// Stages returns a deep copy of the fitted stage parameters in application
// order.
func (fp *FittedPipeline) Stages() []preprocessing.Params {
	out := make([]preprocessing.Params, len(fp.transform.Stages))
	for i, p := range fp.transform.Stages {
		out[i] = p.Clone()
	}
	return out
}

// GLM returns a copy of the fitted coefficients.
func (fp *FittedPipeline) GLM() linear_model.GLMParams {
	return linear_model.GLMParams{
		Weights:   slices.Clone(fp.glm.Weights),
		Intercept: fp.glm.Intercept,
	}
}

// Label returns the label column name.
func (fp *FittedPipeline) Label() string { return fp.label }

// ScoreColumn returns the name of the column Transform adds.
func (fp *FittedPipeline) ScoreColumn() string { return fp.score }

// RunID returns the identifier of the run that produced the pipeline.
func (fp *FittedPipeline) RunID() string { return fp.runID }

// Score applies every stage to row and returns the predicted price.
func (fp *FittedPipeline) Score(row dataset.Row) (float64, error) {
	out, err := fp.transform.Apply(row)
	if err != nil {
		return 0, err
	}
	x, err := out.Vector(fp.features)
	if err != nil {
		return 0, err
	}
	return fp.glm.Predict(x)
}

// Predict returns row with every stage output and the score column added.
func (fp *FittedPipeline) Predict(row dataset.Row) (dataset.Row, error) {
	out, err := fp.transform.Apply(row)
	if err != nil {
		return dataset.Row{}, err
	}
	x, err := out.Vector(fp.features)
	if err != nil {
		return dataset.Row{}, err
	}
	s, err := fp.glm.Predict(x)
	if err != nil {
		return dataset.Row{}, err
	}
	return out.WithFloat(fp.score, s), nil
}

// Transform lazily scores ds. Rows are transformed on every traversal.
func (fp *FittedPipeline) Transform(ds dataset.Dataset) dataset.Dataset {
	schema := fp.transform.OutputSchema(ds.Schema()).With(dataset.Column{
		Name:  fp.score,
		Kind:  dataset.KindFloat,
		Index: -1,
	})
	return dataset.Map(ds, schema, fp.Predict)
}

func (fp *FittedPipeline) String() string {
	return fmt.Sprintf("FittedPipeline(stages=%d, features=%d, run=%s)",
		len(fp.transform.Stages), fp.glm.Width(), fp.runID)
}
