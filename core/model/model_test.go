package model

import (
	"bytes"
	"encoding/gob"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/carprice/pkg/errors"
)

type payload struct {
	Weights []float64
	Bias    float64
}

func TestStateManager(t *testing.T) {
	s := NewStateManager()
	assert.False(t, s.IsFitted())

	err := s.RequireFitted("PoissonRegressor", "Predict")
	var nf *errors.NotFittedError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "Predict", nf.Method)

	s.SetDimensions(4, 100)
	s.SetFitted()
	assert.NoError(t, s.RequireFitted("PoissonRegressor", "Predict"))
	assert.NoError(t, s.RequireFeatures("Predict", 4))

	err = s.RequireFeatures("Predict", 3)
	var de *errors.DimensionError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, 4, de.Expected)
	assert.Equal(t, 3, de.Got)

	s.Reset()
	nFeatures, nSamples := s.GetDimensions()
	assert.False(t, s.IsFitted())
	assert.Zero(t, nFeatures)
	assert.Zero(t, nSamples)
}

func TestArtifact_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.gob")
	want := payload{Weights: []float64{0.5, -1.25}, Bias: 3}

	require.NoError(t, SaveArtifact(path, NewHeader("test.payload", "run-42"), want))

	var got payload
	header, err := LoadArtifact(path, "test.payload", &got)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, "run-42", header.RunID)
	assert.Equal(t, ArtifactFormatVersion, header.FormatVersion)
	assert.False(t, header.CreatedAt.IsZero())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must not be left behind")
}

func TestArtifact_Mismatch(t *testing.T) {
	tests := []struct {
		name   string
		header Header
		kind   string
	}{
		{"magic", Header{Magic: "OTHER", FormatVersion: ArtifactFormatVersion, Kind: "k"}, "k"},
		{"version", Header{Magic: ArtifactMagic, FormatVersion: 99, Kind: "k"}, "k"},
		{"kind", Header{Magic: ArtifactMagic, FormatVersion: ArtifactFormatVersion, Kind: "k"}, "other"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, EncodeArtifact(&buf, tt.header, payload{Bias: 1}))

			var got payload
			_, err := DecodeArtifact(&buf, tt.kind, &got)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrArtifactMismatch))
			var me *errors.ModelError
			assert.True(t, errors.As(err, &me))
			assert.Zero(t, got.Bias)
		})
	}
}

func TestArtifact_Garbage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, gob.NewEncoder(&buf).Encode("not a header"))

	var got payload
	_, err := DecodeArtifact(&buf, "k", &got)
	assert.True(t, errors.Is(err, errors.ErrArtifactMismatch))
}

func TestSaveArtifact_UnwritableDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "model.gob")
	err := SaveArtifact(path, NewHeader("k", ""), payload{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLoadArtifact_MissingFile(t *testing.T) {
	var got payload
	_, err := LoadArtifact(filepath.Join(t.TempDir(), "nope.gob"), "k", &got)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
