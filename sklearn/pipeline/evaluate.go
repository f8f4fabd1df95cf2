package pipeline

import (
	"github.com/YuminosukeSato/carprice/core/dataset"
	"github.com/YuminosukeSato/carprice/metrics"
	"github.com/YuminosukeSato/carprice/pkg/errors"
	"github.com/YuminosukeSato/carprice/pkg/log"
)

// Evaluate scores ds with fp and compares labelColumn with scoreColumn.
//
// Example:
//
//	train, _ := pipeline.Evaluate(fp, trainSet, "Price", "Score")
//	test, _ := pipeline.Evaluate(fp, testSet, "Price", "Score")
func Evaluate(fp *FittedPipeline, ds dataset.Dataset, labelColumn, scoreColumn string) (*metrics.RegressionMetrics, error) {
	if fp == nil {
		return nil, errors.NewNotFittedError("FittedPipeline", "Evaluate")
	}
	m, err := metrics.EvaluateRegression(fp.Transform(ds), labelColumn, scoreColumn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to evaluate pipeline")
	}

	log.GetLoggerWithName("pipeline").Debug("Pipeline evaluated",
		log.RunIDKey, fp.runID,
		log.SamplesKey, m.Count,
		log.R2ScoreKey, m.RSquared,
		log.MAEKey, m.MeanAbsoluteError,
		log.RMSEKey, m.RootMeanSquaredError,
	)
	return m, nil
}
