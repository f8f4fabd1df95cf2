package preprocessing

import (
	"context"
	"time"

	"github.com/YuminosukeSato/carprice/core/dataset"
	"github.com/YuminosukeSato/carprice/pkg/errors"
	"github.com/YuminosukeSato/carprice/pkg/log"
)

// 特徴量パイプラインが追加する列
const (
	ColMakeEncoded  = "MakeEncoded"
	ColModelEncoded = "ModelEncoded"
	ColFeatures     = "Features"
)

// CarFeatureStages は中古車価格モデルの特徴量ステージを順に返す
//
// Make と Model を独立した語彙でワンホット符号化し、
// [Year, Mileage, MakeEncoded..., ModelEncoded...] に連結してから min-max 正規化する。
func CarFeatureStages(clamp bool) []Stage {
	return []Stage{
		OneHotEncode{Input: dataset.ColMake, Output: ColMakeEncoded},
		OneHotEncode{Input: dataset.ColModel, Output: ColModelEncoded},
		Concatenate{
			Inputs: []string{dataset.ColYear, dataset.ColMileage, ColMakeEncoded, ColModelEncoded},
			Output: ColFeatures,
		},
		NormalizeMinMax{Column: ColFeatures, Clamp: clamp},
	}
}

// Transform は学習済みステージの順序付きの並び
type Transform struct {
	Stages []Params
}

// Apply はすべてのステージを順に適用する
func (t Transform) Apply(row dataset.Row) (dataset.Row, error) {
	var err error
	for _, p := range t.Stages {
		if row, err = p.Apply(row); err != nil {
			return dataset.Row{}, err
		}
	}
	return row, nil
}

// OutputSchema は in に各ステージの出力列を加えたスキーマを返す
func (t Transform) OutputSchema(in dataset.Schema) dataset.Schema {
	out := in
	for _, p := range t.Stages {
		out = out.With(p.OutputColumn())
	}
	return out
}

// Dataset は ds に Apply を遅延適用したビューを返す
func (t Transform) Dataset(ds dataset.Dataset) dataset.Dataset {
	return dataset.Map(ds, t.OutputSchema(ds.Schema()), t.Apply)
}

// Validate は各ステージの整合性と、ステージ間で受け渡される次元数を確認する。
// 成功した場合は column の最終的な次元数を返す。
func (t Transform) Validate(schema dataset.Schema, column string) (int, error) {
	// 0以上は既知の次元数、-1 はカテゴリ列
	widths := make(map[string]int, len(schema.Columns)+len(t.Stages))
	for _, c := range schema.Columns {
		switch c.Kind {
		case dataset.KindInt, dataset.KindFloat:
			widths[c.Name] = 1
		case dataset.KindString:
			widths[c.Name] = -1
		}
	}

	for _, p := range t.Stages {
		if err := p.Validate(); err != nil {
			return 0, err
		}
		for i, in := range p.Inputs {
			w, ok := widths[in]
			if !ok {
				return 0, errors.NewSchemaError(in, "input of "+p.Kind.String()+" is not produced upstream")
			}
			switch p.Kind {
			case KindOneHot:
				if w != -1 {
					return 0, errors.NewSchemaError(in, "one-hot input must be categorical")
				}
			case KindConcat:
				if w != p.Widths[i] {
					return 0, errors.NewDimensionError("Concatenate("+in+")", p.Widths[i], w, 1)
				}
			case KindMinMax:
				if w != p.Width() {
					return 0, errors.NewDimensionError("NormalizeMinMax("+in+")", p.Width(), w, 1)
				}
			}
		}
		widths[p.Output] = p.Width()
	}

	w, ok := widths[column]
	if !ok || w < 0 {
		return 0, errors.NewSchemaError(column, "not produced by the feature stages")
	}
	return w, nil
}

// Pipeline は学習前の特徴量ステージの並び
type Pipeline struct {
	Stages []Stage
	// Checkpoint が true なら変換済みの学習データを一度だけ計算してメモリに保持する
	Checkpoint bool
}

// FitTransform は各ステージを順に学習する
//
// 各ステージは、それまでに学習したステージを適用した学習データで学習される。
//
// 戻り値:
//   - Transform: 学習済みステージ
//   - dataset.Dataset: 変換済みの学習データ（Checkpoint ならメモリ上のキャッシュ）
//   - error: いずれかのステージの学習エラー
func (p Pipeline) FitTransform(ctx context.Context, ds dataset.Dataset) (Transform, dataset.Dataset, error) {
	logger := log.GetLoggerWithName("preprocessing")
	t := Transform{Stages: make([]Params, 0, len(p.Stages))}

	current := ds
	for _, stage := range p.Stages {
		if err := ctx.Err(); err != nil {
			return Transform{}, nil, errors.WithStack(err)
		}

		start := time.Now()
		params, err := stage.Fit(current)
		if err != nil {
			return Transform{}, nil, errors.Wrapf(err, "failed to fit stage %s", stage.Name())
		}
		t.Stages = append(t.Stages, params)
		current = dataset.Map(current, current.Schema().With(params.OutputColumn()), params.Apply)

		logger.Debug("Stage fitted",
			log.StageKey, stage.Name(),
			log.FeaturesKey, params.Width(),
			log.DurationMsKey, time.Since(start).Milliseconds(),
		)
	}

	if p.Checkpoint {
		cached, err := dataset.Materialize(current)
		if err != nil {
			return Transform{}, nil, err
		}
		logger.Debug("Features cached", log.SamplesKey, cached.Len())
		return t, cached, nil
	}
	return t, current, nil
}
