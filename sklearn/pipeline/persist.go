package pipeline

import (
	"fmt"
	"slices"

	"github.com/YuminosukeSato/carprice/core/dataset"
	"github.com/YuminosukeSato/carprice/core/model"
	"github.com/YuminosukeSato/carprice/pkg/errors"
	"github.com/YuminosukeSato/carprice/pkg/log"
	"github.com/YuminosukeSato/carprice/preprocessing"
	"github.com/YuminosukeSato/carprice/sklearn/linear_model"
)

// ArtifactKind identifies a saved FittedPipeline in the artifact header.
const ArtifactKind = "carprice.FittedPipeline"

// artifact is the gob payload written after the header.
type artifact struct {
	Schema    dataset.Schema
	Stages    []preprocessing.Params
	Weights   []float64
	Intercept float64
	Checksum  string

	Label    string
	Features string
	Score    string
}

// Save writes fp to path together with the input schema the consumer must
// supply. The file is replaced atomically; on failure nothing is left at path.
func Save(fp *FittedPipeline, schema dataset.Schema, path string) error {
	if fp == nil {
		return errors.NewNotFittedError("FittedPipeline", "Save")
	}
	a := artifact{
		Schema:    schema,
		Stages:    fp.transform.Stages,
		Weights:   fp.glm.Weights,
		Intercept: fp.glm.Intercept,
		Checksum:  fp.glm.Checksum(),
		Label:     fp.label,
		Features:  fp.features,
		Score:     fp.score,
	}
	// a pipeline that could not be loaded back is never written
	if _, err := a.restore(fp.runID); err != nil {
		return errors.Wrap(err, "refusing to save inconsistent pipeline")
	}

	if err := model.SaveArtifact(path, model.NewHeader(ArtifactKind, fp.runID), a); err != nil {
		return err
	}

	log.GetLoggerWithName("pipeline").Info("Model saved",
		log.RunIDKey, fp.runID,
		log.PathKey, path,
		log.FeaturesKey, fp.glm.Width(),
		log.ConfigVersionKey, model.ArtifactFormatVersion,
	)
	return nil
}

// Load reads a pipeline written by Save.
//
// A header mismatch, an undecodable payload, or a payload that fails
// re-validation (schema, stage chain, weight width, checksum) is a
// ModelError wrapping errors.ErrArtifactMismatch. No partially loaded
// pipeline is ever returned.
func Load(path string) (*FittedPipeline, error) {
	var a artifact
	header, err := model.LoadArtifact(path, ArtifactKind, &a)
	if err != nil {
		return nil, err
	}

	fp, err := a.restore(header.RunID)
	if err != nil {
		return nil, errors.NewModelError("pipeline.Load", fmt.Sprintf("invalid artifact %s: %v", path, err), errors.ErrArtifactMismatch)
	}

	log.GetLoggerWithName("pipeline").Info("Model loaded",
		log.RunIDKey, header.RunID,
		log.PathKey, path,
		log.FeaturesKey, fp.glm.Width(),
	)
	return fp, nil
}

// restore re-validates the payload and builds the pipeline it describes.
func (a artifact) restore(runID string) (*FittedPipeline, error) {
	if err := a.Schema.Validate(); err != nil {
		return nil, err
	}
	if a.Label == "" || a.Features == "" || a.Score == "" {
		return nil, errors.NewValueError("artifact", "label, feature and score columns must be named")
	}
	if !a.Schema.Has(a.Label) {
		return nil, errors.NewSchemaError(a.Label, "label column is not in the schema")
	}

	transform := preprocessing.Transform{Stages: a.Stages}
	width, err := transform.Validate(a.Schema, a.Features)
	if err != nil {
		return nil, err
	}
	if width != len(a.Weights) {
		return nil, errors.NewDimensionError("artifact", width, len(a.Weights), 1)
	}

	glm := linear_model.GLMParams{Weights: a.Weights, Intercept: a.Intercept}
	if err := errors.CheckNumericalStability("artifact", append(slices.Clone(glm.Weights), glm.Intercept), 0); err != nil {
		return nil, err
	}
	if sum := glm.Checksum(); sum != a.Checksum {
		return nil, errors.NewValueError("artifact", fmt.Sprintf("weight checksum %s, recorded %s", sum, a.Checksum))
	}

	return &FittedPipeline{
		schema:    a.Schema,
		transform: transform,
		glm:       glm,
		label:     a.Label,
		features:  a.Features,
		score:     a.Score,
		runID:     runID,
	}, nil
}
