// Package config loads the training run configuration from an optional YAML
// file, CARPRICE_* environment variables and built-in defaults.
package config

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/YuminosukeSato/carprice/pkg/errors"
	"github.com/YuminosukeSato/carprice/pkg/log"
	"github.com/YuminosukeSato/carprice/sklearn/linear_model"
)

// EnvPrefix is prepended to every environment override, e.g.
// CARPRICE_SPLIT_TEST_FRACTION=0.25.
const EnvPrefix = "CARPRICE"

// Config is the full configuration of a training run.
type Config struct {
	Data     DataConfig     `mapstructure:"data"`
	Model    ModelConfig    `mapstructure:"model"`
	Split    SplitConfig    `mapstructure:"split"`
	CV       CVConfig       `mapstructure:"cv"`
	Trainer  TrainerConfig  `mapstructure:"trainer"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Log      LogConfig      `mapstructure:"log"`
	Report   ReportConfig   `mapstructure:"report"`
}

// DataConfig locates the training CSV.
type DataConfig struct {
	Path string `mapstructure:"path"`
}

// ModelConfig locates the saved artifact.
type ModelConfig struct {
	Path string `mapstructure:"path"`
}

// SplitConfig controls the holdout split.
type SplitConfig struct {
	TestFraction float64 `mapstructure:"test_fraction"`
	Seed         uint64  `mapstructure:"seed"`
}

// CVConfig controls k-fold cross-validation.
type CVConfig struct {
	Folds int    `mapstructure:"folds"`
	Seed  uint64 `mapstructure:"seed"`
}

// TrainerConfig holds the PoissonRegressor hyperparameters.
type TrainerConfig struct {
	MaxIter int     `mapstructure:"max_iter"`
	Tol     float64 `mapstructure:"tol"`
	L2      float64 `mapstructure:"l2"`
	History int     `mapstructure:"history"`
}

// PipelineConfig controls the feature stages.
type PipelineConfig struct {
	Cache bool `mapstructure:"cache"`
	Clamp bool `mapstructure:"clamp"`
}

// LogConfig selects the log level and output format.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ReportConfig enables the predicted-vs-actual plot when PlotPath is set.
type ReportConfig struct {
	PlotPath string `mapstructure:"plot_path"`
}

// Load reads the configuration. path may be empty, in which case only
// defaults and environment variables apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config %s", path)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	return &cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		// defaults always decode
		panic(err)
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data.path", "./data/true_car_listings.csv")
	v.SetDefault("model.path", "./models/model.gob")

	v.SetDefault("split.test_fraction", 0.2)
	v.SetDefault("split.seed", 0)
	v.SetDefault("cv.folds", 5)
	v.SetDefault("cv.seed", 0)

	v.SetDefault("trainer.max_iter", 1000)
	v.SetDefault("trainer.tol", 1e-7)
	v.SetDefault("trainer.l2", 0.0)
	v.SetDefault("trainer.history", 20)

	v.SetDefault("pipeline.cache", true)
	v.SetDefault("pipeline.clamp", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("report.plot_path", "")
}

// Validate checks every setting before any data is read.
func (c *Config) Validate() error {
	switch {
	case c.Data.Path == "":
		return errors.NewValidationError("data.path", "must not be empty", c.Data.Path)
	case c.Model.Path == "":
		return errors.NewValidationError("model.path", "must not be empty", c.Model.Path)
	case !(c.Split.TestFraction > 0 && c.Split.TestFraction < 1):
		return errors.NewValidationError("split.test_fraction", "must be in the open interval (0, 1)", c.Split.TestFraction)
	case c.CV.Folds < 2:
		return errors.NewValidationError("cv.folds", "must be at least 2", c.CV.Folds)
	case c.Trainer.MaxIter <= 0:
		return errors.NewValidationError("trainer.max_iter", "must be positive", c.Trainer.MaxIter)
	case !(c.Trainer.Tol > 0):
		return errors.NewValidationError("trainer.tol", "must be positive", c.Trainer.Tol)
	case !(c.Trainer.L2 >= 0):
		return errors.NewValidationError("trainer.l2", "must be non-negative", c.Trainer.L2)
	case c.Trainer.History <= 0:
		return errors.NewValidationError("trainer.history", "must be positive", c.Trainer.History)
	case !log.ValidLevel(c.Log.Level):
		return errors.NewValidationError("log.level", "must be one of debug, info, warn, error", c.Log.Level)
	case c.Log.Format != "console" && c.Log.Format != "json":
		return errors.NewValidationError("log.format", "must be console or json", c.Log.Format)
	}
	return nil
}

// TrainerOptions converts the trainer settings into PoissonRegressor options.
func (c *Config) TrainerOptions() []linear_model.PoissonOption {
	return []linear_model.PoissonOption{
		linear_model.WithMaxIter(c.Trainer.MaxIter),
		linear_model.WithTol(c.Trainer.Tol),
		linear_model.WithL2(c.Trainer.L2),
		linear_model.WithHistorySize(c.Trainer.History),
	}
}
