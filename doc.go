// Package carprice is a batch training pipeline that predicts used-car
// listing prices from Year, Mileage, Make and Model.
//
// The pipeline reads a listings CSV lazily, splits it into train and test
// views, fits one-hot, concatenate and min-max feature stages on the
// training rows, and fits a log-link Poisson regression with L-BFGS. It
// reports R² on both views and over k-fold cross-validation, then saves
// the fitted pipeline as a single artifact for a separate inference
// component.
//
// # Quick Start
//
//	ds, err := dataset.LoadCSV("true_car_listings.csv", dataset.CarSchema())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	train, test, err := model_selection.TrainTestSplit(ds, 0.2, 0)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	def := pipeline.CarDefinition(pipeline.CarOptions{Checkpoint: true})
//	fp, err := def.Fit(ctx, train)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	m, err := pipeline.Evaluate(fp, test, "Price", "Score")
//	fmt.Println("Test R²:", m.RSquared)
//
//	err = pipeline.Save(fp, fp.Schema(), "models/model.gob")
//
// # Packages
//
//   - core/dataset: schema, rows, lazy restartable datasets and the CSV loader
//   - core/model: estimator interfaces, fitted state and the artifact envelope
//   - core/parallel: CPU-parallel index ranges
//   - preprocessing: feature stages and the feature pipeline
//   - sklearn/linear_model: PoissonRegressor
//   - sklearn/pipeline: Definition, FittedPipeline, Evaluate, Save and Load
//   - sklearn/model_selection: TrainTestSplit, KFold and CrossValidate
//   - metrics: regression metrics
//   - report: predicted-vs-actual plots
//   - pkg/errors, pkg/log: error taxonomy and structured logging
//
// The cmd/carprice-train command wires everything together.
package carprice
