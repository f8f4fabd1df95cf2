package preprocessing

import (
	"slices"
	"sort"

	"github.com/YuminosukeSato/carprice/core/dataset"
	"github.com/YuminosukeSato/carprice/pkg/errors"
)

// OneHotEncode はカテゴリ列をワンホットベクトルに変換するステージ
//
// 語彙は学習データに現れた値をソートしたもので、行の順序に依存しない。
// 学習時に見なかった値は全て0のベクトルになり、エラーにはならない。
type OneHotEncode struct {
	Input  string
	Output string
}

// Name implements Stage.
func (s OneHotEncode) Name() string { return KindOneHot.String() }

// Fit は語彙を学習する
//
// パラメータ:
//   - ds: 学習データ（Input 列は文字列）
//
// 戻り値:
//   - Params: Vocabulary を持つ KindOneHot の Params
//   - error: 0行の場合は ErrEmptyData
func (s OneHotEncode) Fit(ds dataset.Dataset) (Params, error) {
	seen := make(map[string]struct{})
	n := 0
	for row, err := range ds.Rows() {
		if err != nil {
			return Params{}, err
		}
		v, err := row.String(s.Input)
		if err != nil {
			return Params{}, err
		}
		seen[v] = struct{}{}
		n++
	}
	if n == 0 {
		return Params{}, errors.NewModelError("OneHotEncode.Fit", "empty data", errors.ErrEmptyData)
	}

	vocab := make([]string, 0, len(seen))
	for v := range seen {
		vocab = append(vocab, v)
	}
	slices.Sort(vocab)

	return Params{
		Kind:       KindOneHot,
		Inputs:     []string{s.Input},
		Output:     s.Output,
		Vocabulary: vocab,
	}, nil
}

func (p Params) applyOneHot(row dataset.Row) (dataset.Row, error) {
	v, err := row.String(p.Inputs[0])
	if err != nil {
		return dataset.Row{}, err
	}
	out := make([]float64, len(p.Vocabulary))
	if i := sort.SearchStrings(p.Vocabulary, v); i < len(p.Vocabulary) && p.Vocabulary[i] == v {
		out[i] = 1
	}
	return row.WithVector(p.Output, out), nil
}
