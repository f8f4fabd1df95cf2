package preprocessing

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/YuminosukeSato/carprice/core/dataset"
	"github.com/YuminosukeSato/carprice/pkg/errors"
)

// constantRange 未満の幅の次元は定数特徴量として扱う
const constantRange = 1e-8

// NormalizeMinMax はベクトル列を次元ごとに [0, 1] へ正規化するステージ
//
// 変換は (x - min) / (max - min)。定数の次元はスケール1として x - min を返す
// （学習データ上では0）。学習範囲外の値は線形に外挿され、Clamp が true の
// 場合のみ [0, 1] に切り詰められる。
type NormalizeMinMax struct {
	Column string
	Clamp  bool
}

// Name implements Stage.
func (s NormalizeMinMax) Name() string { return KindMinMax.String() }

// Fit は各次元の最小値とスケールを計算する
//
// パラメータ:
//   - ds: 学習データ（Column 列はベクトル）
//
// 戻り値:
//   - Params: DataMin と Scale を持つ KindMinMax の Params
//   - error: 0行の場合は ErrEmptyData、次元数が揃わない場合は DimensionError
func (s NormalizeMinMax) Fit(ds dataset.Dataset) (Params, error) {
	var dataMin, dataMax []float64
	for row, err := range ds.Rows() {
		if err != nil {
			return Params{}, err
		}
		v, err := row.Vector(s.Column)
		if err != nil {
			return Params{}, err
		}
		if dataMin == nil {
			dataMin = append([]float64{}, v...)
			dataMax = append([]float64{}, v...)
			continue
		}
		if len(v) != len(dataMin) {
			return Params{}, errors.NewDimensionError("NormalizeMinMax.Fit", len(dataMin), len(v), 1)
		}
		for j, x := range v {
			dataMin[j] = math.Min(dataMin[j], x)
			dataMax[j] = math.Max(dataMax[j], x)
		}
	}
	if dataMin == nil {
		return Params{}, errors.NewModelError("NormalizeMinMax.Fit", "empty data", errors.ErrEmptyData)
	}

	scale := make([]float64, len(dataMin))
	floats.SubTo(scale, dataMax, dataMin)
	for j, r := range scale {
		if math.Abs(r) < constantRange {
			// 定数特徴量の場合、スケールを1に設定
			scale[j] = 1.0
		}
	}

	return Params{
		Kind:    KindMinMax,
		Inputs:  []string{s.Column},
		Output:  s.Column,
		DataMin: dataMin,
		Scale:   scale,
		Clamp:   s.Clamp,
	}, nil
}

func (p Params) applyMinMax(row dataset.Row) (dataset.Row, error) {
	v, err := row.Vector(p.Inputs[0])
	if err != nil {
		return dataset.Row{}, err
	}
	if len(v) != len(p.DataMin) {
		return dataset.Row{}, errors.NewDimensionError("NormalizeMinMax.Apply", len(p.DataMin), len(v), 1)
	}

	out := make([]float64, len(v))
	floats.SubTo(out, v, p.DataMin)
	floats.Div(out, p.Scale)
	if p.Clamp {
		for j, x := range out {
			out[j] = errors.ClipValue(x, 0, 1)
		}
	}
	return row.WithVector(p.Output, out), nil
}
