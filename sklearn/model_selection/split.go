// Package model_selection はデータ分割と交差検証を提供します。
package model_selection

import (
	"iter"
	"math/rand/v2"

	"github.com/YuminosukeSato/carprice/core/dataset"
	"github.com/YuminosukeSato/carprice/pkg/errors"
	"github.com/YuminosukeSato/carprice/pkg/log"
)

// TrainTestSplit は ds を学習用と評価用の2つのビューに分割する
//
// 走査のたびに seed で PCG を初期化し、元の行ごとに一様乱数を1つ引く。
// 乱数が testFraction 未満の行が評価用になる。両方のビューが同じ乱数列を引くため、
// 2つは常に互いの補集合であり、同じ (ds, testFraction, seed) なら同じ分割になる。
// 各ビューの行数は近似的に (1-testFraction) と testFraction の比になる。
//
// パラメータ:
//   - ds: 分割するデータセット（走査は遅延される）
//   - testFraction: 評価用の割合。(0, 1) の範囲
//   - seed: 乱数のシード
//
// 戻り値:
//   - train, test: 分割後のビュー
//   - error: testFraction が範囲外の場合の ValidationError
//
// 使用例:
//
//	train, test, err := model_selection.TrainTestSplit(ds, 0.2, 0)
func TrainTestSplit(ds dataset.Dataset, testFraction float64, seed uint64) (train, test dataset.Dataset, err error) {
	if !(testFraction > 0 && testFraction < 1) {
		return nil, nil, errors.NewValidationError("test_fraction", "must be in the open interval (0, 1)", testFraction)
	}

	log.GetLoggerWithName("model_selection").Debug("Dataset split",
		log.FractionKey, testFraction,
		log.RandomSeedKey, seed,
	)

	train = &splitView{source: ds, fraction: testFraction, seed: seed, test: false}
	test = &splitView{source: ds, fraction: testFraction, seed: seed, test: true}
	return train, test, nil
}

// splitView は TrainTestSplit の片側
type splitView struct {
	source   dataset.Dataset
	fraction float64
	seed     uint64
	test     bool
}

func (v *splitView) Schema() dataset.Schema { return v.source.Schema() }

func (v *splitView) Rows() iter.Seq2[dataset.Row, error] {
	return func(yield func(dataset.Row, error) bool) {
		rng := rand.New(rand.NewPCG(v.seed, v.seed))
		for row, err := range v.source.Rows() {
			if err != nil {
				yield(dataset.Row{}, err)
				return
			}
			if (rng.Float64() < v.fraction) != v.test {
				continue
			}
			if !yield(row, nil) {
				return
			}
		}
	}
}
