package model_selection

import (
	"context"
	"fmt"
	"time"

	"github.com/YuminosukeSato/carprice/core/dataset"
	"github.com/YuminosukeSato/carprice/core/parallel"
	"github.com/YuminosukeSato/carprice/metrics"
	"github.com/YuminosukeSato/carprice/pkg/errors"
	"github.com/YuminosukeSato/carprice/pkg/log"
	"github.com/YuminosukeSato/carprice/sklearn/pipeline"
)

// FoldResult は1フォールドの学習と評価の結果
type FoldResult struct {
	Fold      int
	Metrics   *metrics.RegressionMetrics
	Model     *pipeline.FittedPipeline
	TrainSize int
	TestSize  int
}

// CrossValidate は def を k 分割交差検証で評価する
//
// ds は一度だけメモリに読み込まれ、各フォールドは位置によるビューで学習・評価される。
// フォールドごとに def.Fit で新しいステージと回帰器を学習するため、状態は共有されない。
// フォールドは CPU コア数を上限に並行して実行され、パニックはエラーに変換される。
//
// パラメータ:
//   - ctx: 各フォールドの開始前と def.Fit の中で確認される
//   - ds: 評価するデータセット
//   - def: 学習するパイプラインの定義
//   - k: フォールド数。2 以上かつ行数以下
//   - seed: 位置を並べ替える乱数のシード
//
// 戻り値:
//   - []FoldResult: フォールド順のちょうど k 個の結果
//   - error: k が不正な場合の ValidationError、または番号が最も小さい失敗フォールドのエラー
func CrossValidate(ctx context.Context, ds dataset.Dataset, def pipeline.Definition, k int, seed uint64) ([]FoldResult, error) {
	if k < 2 {
		return nil, errors.NewValidationError("folds", "must be at least 2", k)
	}

	cached, err := dataset.Materialize(ds)
	if err != nil {
		return nil, err
	}
	folds, err := KFold{NSplits: k, Shuffle: true, Seed: seed}.Split(cached.Len())
	if err != nil {
		return nil, err
	}

	logger := log.GetLoggerWithName("model_selection").With(log.RunIDKey, def.RunID)
	start := time.Now()

	results := make([]FoldResult, k)
	err = parallel.ForEach(k, func(i int) error {
		return errors.SafeExecute(fmt.Sprintf("fold %d", i), func() error {
			if err := ctx.Err(); err != nil {
				return errors.WithStack(err)
			}

			train := dataset.Select(cached, folds[i].TrainIndices)
			test := dataset.Select(cached, folds[i].TestIndices)

			fp, err := def.Fit(ctx, train)
			if err != nil {
				return errors.Wrapf(err, "fold %d", i)
			}
			m, err := pipeline.Evaluate(fp, test, def.Label, def.Score)
			if err != nil {
				return errors.Wrapf(err, "fold %d", i)
			}

			results[i] = FoldResult{
				Fold:      i,
				Metrics:   m,
				Model:     fp,
				TrainSize: len(folds[i].TrainIndices),
				TestSize:  len(folds[i].TestIndices),
			}
			logger.Debug("Fold evaluated",
				log.FoldKey, i,
				log.PhaseKey, log.PhaseValidation,
				log.R2ScoreKey, m.RSquared,
				log.SamplesKey, m.Count,
			)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Cross-validation finished",
		"folds", k,
		log.SamplesKey, cached.Len(),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return results, nil
}
