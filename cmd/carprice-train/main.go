// Command carprice-train fits the used-car price model, reports holdout and
// cross-validated R² and saves the fitted pipeline.
//
// Usage:
//
//	carprice-train [-config carprice.yaml] [-data listings.csv] [-model model.gob]
//
// Flags override CARPRICE_* environment variables, which override the
// configuration file.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/carprice/core/dataset"
	"github.com/YuminosukeSato/carprice/internal/config"
	"github.com/YuminosukeSato/carprice/pkg/errors"
	"github.com/YuminosukeSato/carprice/pkg/log"
	"github.com/YuminosukeSato/carprice/report"
	"github.com/YuminosukeSato/carprice/sklearn/model_selection"
	"github.com/YuminosukeSato/carprice/sklearn/pipeline"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		slog.Error("Training failed", log.ErrAttr(err))
		stop()
		os.Exit(1)
	}
}

// options are the command-line flags.
type options struct {
	configPath string
	dataPath   string
	modelPath  string
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("carprice-train", flag.ContinueOnError)
	fs.StringVar(&opts.configPath, "config", "", "path to a YAML configuration file")
	fs.StringVar(&opts.dataPath, "data", "", "training CSV (overrides data.path)")
	fs.StringVar(&opts.modelPath, "model", "", "output artifact (overrides model.path)")
	if err := fs.Parse(args); err != nil {
		return options{}, errors.WithStack(err)
	}
	return opts, nil
}

func loadConfig(opts options) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.dataPath != "" {
		cfg.Data.Path = opts.dataPath
	}
	if opts.modelPath != "" {
		cfg.Model.Path = opts.modelPath
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(ctx context.Context, args []string, out io.Writer) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	log.SetupLogger(cfg.Log.Level, cfg.Log.Format)
	runID := uuid.NewString()
	logger := log.GetLoggerWithName("carprice-train").With(log.RunIDKey, runID)
	start := time.Now()

	fmt.Fprintln(out, "Loading data...")
	ds, err := dataset.LoadCSV(cfg.Data.Path, dataset.CarSchema())
	if err != nil {
		return err
	}
	rows, err := dataset.Count(ds)
	if err != nil {
		return err
	}
	if cfg.CV.Folds > rows {
		return errors.NewValidationError("cv.folds",
			fmt.Sprintf("cannot exceed the number of rows (%d)", rows), cfg.CV.Folds)
	}
	logger.Info("Data loaded", "rows", rows, log.PathKey, cfg.Data.Path)
	train, test, err := model_selection.TrainTestSplit(ds, cfg.Split.TestFraction, cfg.Split.Seed)
	if err != nil {
		return err
	}

	def := pipeline.CarDefinition(pipeline.CarOptions{
		Checkpoint: cfg.Pipeline.Cache,
		Clamp:      cfg.Pipeline.Clamp,
		RunID:      runID,
		Trainer:    cfg.TrainerOptions(),
	})

	fmt.Fprintln(out, "Training model...")
	fp, err := def.Fit(ctx, train)
	if err != nil {
		return err
	}

	trainMetrics, err := pipeline.Evaluate(fp, train, def.Label, def.Score)
	if err != nil {
		return err
	}
	testMetrics, err := pipeline.Evaluate(fp, test, def.Label, def.Score)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Train Set R-Squared: %v | Test Set R-Squared %v\n", trainMetrics.RSquared, testMetrics.RSquared)
	logger.Info("Holdout evaluated", "train", trainMetrics, "test", testMetrics)

	folds, err := model_selection.CrossValidate(ctx, ds, def, cfg.CV.Folds, cfg.CV.Seed)
	if err != nil {
		return err
	}
	r2 := make([]float64, len(folds))
	for i, f := range folds {
		r2[i] = f.Metrics.RSquared
	}
	mean, std := stat.MeanStdDev(r2, nil)
	fmt.Fprintf(out, "Cross Validated R-Squared: %v\n", mean)
	logger.Info("Cross-validation summary",
		"folds", len(folds),
		log.R2ScoreKey, mean,
		"r2_std", std,
	)

	fmt.Fprintln(out, "Saving model...")
	if err := os.MkdirAll(filepath.Dir(cfg.Model.Path), 0o755); err != nil {
		return errors.Wrapf(err, "failed to create model directory for %s", cfg.Model.Path)
	}
	if err := pipeline.Save(fp, fp.Schema(), cfg.Model.Path); err != nil {
		return err
	}

	if cfg.Report.PlotPath != "" {
		if err := report.PredictedVsActual(fp.Transform(test), def.Label, def.Score, cfg.Report.PlotPath); err != nil {
			return err
		}
	}

	logger.Info("Run finished",
		log.PathKey, cfg.Model.Path,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}
