package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/carprice/pkg/errors"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "./data/true_car_listings.csv", cfg.Data.Path)
	assert.Equal(t, "./models/model.gob", cfg.Model.Path)
	assert.Equal(t, 0.2, cfg.Split.TestFraction)
	assert.Equal(t, uint64(0), cfg.Split.Seed)
	assert.Equal(t, 5, cfg.CV.Folds)
	assert.Equal(t, 1000, cfg.Trainer.MaxIter)
	assert.Equal(t, 1e-7, cfg.Trainer.Tol)
	assert.Equal(t, 0.0, cfg.Trainer.L2)
	assert.Equal(t, 20, cfg.Trainer.History)
	assert.True(t, cfg.Pipeline.Cache)
	assert.False(t, cfg.Pipeline.Clamp)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Empty(t, cfg.Report.PlotPath)

	require.NoError(t, cfg.Validate())
	assert.Len(t, cfg.TrainerOptions(), 4)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "carprice.yaml")
	yaml := `
data:
  path: /srv/cars.csv
split:
  test_fraction: 0.3
  seed: 42
cv:
  folds: 3
pipeline:
  clamp: true
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	t.Setenv("CARPRICE_CV_FOLDS", "10")
	t.Setenv("CARPRICE_LOG_FORMAT", "json")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/cars.csv", cfg.Data.Path)
	assert.Equal(t, 0.3, cfg.Split.TestFraction)
	assert.Equal(t, uint64(42), cfg.Split.Seed)
	assert.True(t, cfg.Pipeline.Clamp)
	// environment wins over the file
	assert.Equal(t, 10, cfg.CV.Folds)
	assert.Equal(t, "json", cfg.Log.Format)
	// untouched keys keep their defaults
	assert.Equal(t, "./models/model.gob", cfg.Model.Path)
	assert.Equal(t, 1000, cfg.Trainer.MaxIter)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		param  string
	}{
		{"empty data path", func(c *Config) { c.Data.Path = "" }, "data.path"},
		{"empty model path", func(c *Config) { c.Model.Path = "" }, "model.path"},
		{"zero fraction", func(c *Config) { c.Split.TestFraction = 0 }, "split.test_fraction"},
		{"whole fraction", func(c *Config) { c.Split.TestFraction = 1 }, "split.test_fraction"},
		{"one fold", func(c *Config) { c.CV.Folds = 1 }, "cv.folds"},
		{"no iterations", func(c *Config) { c.Trainer.MaxIter = 0 }, "trainer.max_iter"},
		{"zero tol", func(c *Config) { c.Trainer.Tol = 0 }, "trainer.tol"},
		{"negative l2", func(c *Config) { c.Trainer.L2 = -1 }, "trainer.l2"},
		{"no history", func(c *Config) { c.Trainer.History = 0 }, "trainer.history"},
		{"bad level", func(c *Config) { c.Log.Level = "verbose" }, "log.level"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			var ve *errors.ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Equal(t, tt.param, ve.ParamName)
		})
	}
}
