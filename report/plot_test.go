package report

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/carprice/core/dataset"
	"github.com/YuminosukeSato/carprice/pkg/errors"
)

func scored(pairs ...[2]float64) dataset.Dataset {
	rows := make([]dataset.Row, len(pairs))
	for i, p := range pairs {
		rows[i] = dataset.NewRow(i, map[string]any{"Price": p[0], "Score": p[1]})
	}
	return dataset.FromRows(dataset.NewSchema(
		dataset.Column{Name: "Price", Kind: dataset.KindFloat, Index: -1},
		dataset.Column{Name: "Score", Kind: dataset.KindFloat, Index: -1},
	), rows)
}

func TestPredictedVsActual(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scatter.png")
	ds := scored([2]float64{12000, 11500}, [2]float64{18000, 19000}, [2]float64{25000, 24000})

	require.NoError(t, PredictedVsActual(ds, "Price", "Score", path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	header := make([]byte, 8)
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	_, err = f.Read(header)
	require.NoError(t, err)
	assert.Equal(t, "\x89PNG\r\n\x1a\n", string(header))
}

func TestPredictedVsActual_Errors(t *testing.T) {
	dir := t.TempDir()

	err := PredictedVsActual(scored(), "Price", "Score", filepath.Join(dir, "empty.png"))
	assert.True(t, errors.Is(err, errors.ErrEmptyData))

	err = PredictedVsActual(scored([2]float64{1, 1}), "Price", "Missing", filepath.Join(dir, "missing.png"))
	var se *errors.SchemaError
	assert.True(t, errors.As(err, &se))

	err = PredictedVsActual(scored([2]float64{1, 2}), "Price", "Score", filepath.Join(dir, "no", "such", "dir.png"))
	assert.Error(t, err)
}

func TestBounds(t *testing.T) {
	ds := scored([2]float64{5, 3}, [2]float64{2, 9})
	pts, err := points(ds, "Price", "Score")
	require.NoError(t, err)

	lo, hi := bounds(pts)
	assert.Equal(t, 2.0, lo)
	assert.Equal(t, 9.0, hi)
}
