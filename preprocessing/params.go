// Package preprocessing は特徴量パイプラインの各ステージを提供します。
//
// ステージ（Stage）は学習データから Params を学習し、Params は行を変換する
// 純粋な値です。Apply の結果は Params と入力行だけで決まり、学習済みの
// Params はそのまま保存・読み込みできます。
package preprocessing

import (
	"fmt"
	"slices"

	"github.com/YuminosukeSato/carprice/core/dataset"
	"github.com/YuminosukeSato/carprice/pkg/errors"
)

// Stage は特徴量パイプラインの学習前のステージ
type Stage interface {
	// Name はステージの種類名を返す
	Name() string
	// Fit は ds から変換パラメータを学習する。0行の場合は ErrEmptyData を返す。
	Fit(ds dataset.Dataset) (Params, error)
}

// ParamsKind は Params の種類
type ParamsKind int

const (
	// KindOneHot はカテゴリ列のワンホット符号化
	KindOneHot ParamsKind = iota + 1
	// KindConcat は数値列とベクトル列の連結
	KindConcat
	// KindMinMax はベクトル列の次元ごとの min-max 正規化
	KindMinMax
)

func (k ParamsKind) String() string {
	switch k {
	case KindOneHot:
		return "OneHotEncode"
	case KindConcat:
		return "Concatenate"
	case KindMinMax:
		return "NormalizeMinMax"
	default:
		return fmt.Sprintf("ParamsKind(%d)", int(k))
	}
}

// Params は学習済みステージのパラメータ
//
// Kind によって使われるフィールドが決まる閉じた直和型で、gob でそのまま保存できる。
//   - KindOneHot: Inputs[0], Vocabulary（ソート済み、重複なし）
//   - KindConcat: Inputs, Widths（入力ごとの次元数）
//   - KindMinMax: Inputs[0] == Output, DataMin, Scale, Clamp
type Params struct {
	Kind   ParamsKind
	Inputs []string
	Output string

	Vocabulary []string

	Widths []int

	DataMin []float64
	Scale   []float64
	Clamp   bool
}

// OutputColumn は Apply が書き込む列の定義を返す
func (p Params) OutputColumn() dataset.Column {
	return dataset.Column{Name: p.Output, Kind: dataset.KindVector, Index: -1}
}

// Width は出力ベクトルの次元数を返す
func (p Params) Width() int {
	switch p.Kind {
	case KindOneHot:
		return len(p.Vocabulary)
	case KindConcat:
		total := 0
		for _, w := range p.Widths {
			total += w
		}
		return total
	case KindMinMax:
		return len(p.DataMin)
	default:
		return 0
	}
}

// Apply は1行を変換し、Output 列を設定した新しい行を返す
//
// パラメータ:
//   - row: 変換する行（変更されない）
//
// 戻り値:
//   - dataset.Row: Output 列を持つ新しい行
//   - error: 入力列の欠落、次元の不一致
func (p Params) Apply(row dataset.Row) (dataset.Row, error) {
	switch p.Kind {
	case KindOneHot:
		return p.applyOneHot(row)
	case KindConcat:
		return p.applyConcat(row)
	case KindMinMax:
		return p.applyMinMax(row)
	default:
		return dataset.Row{}, errors.NewValueError("Params.Apply", fmt.Sprintf("unknown params kind %d", int(p.Kind)))
	}
}

// Validate は保存から復元した Params の整合性を確認する
func (p Params) Validate() error {
	op := p.Kind.String() + ".Validate"
	if p.Output == "" {
		return errors.NewValueError(op, "empty output column")
	}
	switch p.Kind {
	case KindOneHot:
		if len(p.Inputs) != 1 {
			return errors.NewValueError(op, "one-hot encoding takes exactly one input")
		}
		if !slices.IsSorted(p.Vocabulary) || len(slices.Compact(slices.Clone(p.Vocabulary))) != len(p.Vocabulary) {
			return errors.NewValueError(op, "vocabulary must be sorted and unique")
		}
	case KindConcat:
		if len(p.Inputs) == 0 || len(p.Inputs) != len(p.Widths) {
			return errors.NewValueError(op, "inputs and widths differ in length")
		}
		for _, w := range p.Widths {
			if w < 0 {
				return errors.NewValueError(op, "negative width")
			}
		}
	case KindMinMax:
		if len(p.Inputs) != 1 || p.Inputs[0] != p.Output {
			return errors.NewValueError(op, "normalization is in place on one column")
		}
		if len(p.DataMin) != len(p.Scale) {
			return errors.NewDimensionError(op, len(p.DataMin), len(p.Scale), 1)
		}
		for _, s := range p.Scale {
			if !(s > 0) {
				return errors.NewValueError(op, "scale must be positive")
			}
		}
	default:
		return errors.NewValueError("Params.Validate", fmt.Sprintf("unknown params kind %d", int(p.Kind)))
	}
	return nil
}

// Clone は全スライスを複製した Params を返す
func (p Params) Clone() Params {
	c := p
	c.Inputs = slices.Clone(p.Inputs)
	c.Vocabulary = slices.Clone(p.Vocabulary)
	c.Widths = slices.Clone(p.Widths)
	c.DataMin = slices.Clone(p.DataMin)
	c.Scale = slices.Clone(p.Scale)
	return c
}
