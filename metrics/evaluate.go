package metrics

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/carprice/core/dataset"
	"github.com/YuminosukeSato/carprice/pkg/errors"
)

// RegressionMetrics はスコア付きデータセットに対する回帰指標
type RegressionMetrics struct {
	RSquared             float64
	MeanAbsoluteError    float64
	MeanSquaredError     float64
	RootMeanSquaredError float64
	// MeanPoissonDeviance は予測が正でラベルが非負の場合のみ定義され、それ以外は NaN
	MeanPoissonDeviance float64
	Count               int
}

func (m *RegressionMetrics) String() string {
	return fmt.Sprintf("R2=%.4f MAE=%.2f RMSE=%.2f n=%d", m.RSquared, m.MeanAbsoluteError, m.RootMeanSquaredError, m.Count)
}

// MarshalZerologObject はzerologのイベントに指標を追加します。
func (m *RegressionMetrics) MarshalZerologObject(e *zerolog.Event) {
	e.Float64("r2", m.RSquared).
		Float64("mae", m.MeanAbsoluteError).
		Float64("mse", m.MeanSquaredError).
		Float64("rmse", m.RootMeanSquaredError).
		Int("count", m.Count)
	if !math.IsNaN(m.MeanPoissonDeviance) {
		e.Float64("poisson_deviance", m.MeanPoissonDeviance)
	}
}

// EvaluateRegression は ds の labelColumn（正解）と scoreColumn（予測）を比較する
//
// パラメータ:
//   - ds: 正解列と予測列を持つデータセット
//   - labelColumn: 正解の列名（例: "Price"）
//   - scoreColumn: 予測値の列名（例: "Score"）
//
// 戻り値:
//   - *RegressionMetrics: 回帰指標
//   - error: 0行の場合は ErrEmptyData、列の欠落や走査のエラー
func EvaluateRegression(ds dataset.Dataset, labelColumn, scoreColumn string) (*RegressionMetrics, error) {
	var labels, scores []float64
	for row, err := range ds.Rows() {
		if err != nil {
			return nil, err
		}
		y, err := row.Float(labelColumn)
		if err != nil {
			return nil, err
		}
		s, err := row.Float(scoreColumn)
		if err != nil {
			return nil, err
		}
		labels = append(labels, y)
		scores = append(scores, s)
	}
	if len(labels) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "EvaluateRegression: no rows to evaluate")
	}

	return Regression(mat.NewVecDense(len(labels), labels), mat.NewVecDense(len(scores), scores))
}

// Regression は正解と予測のベクトルからすべての回帰指標を計算する
func Regression(yTrue, yPred *mat.VecDense) (*RegressionMetrics, error) {
	r2, err := R2Score(yTrue, yPred)
	if err != nil {
		return nil, err
	}
	mae, err := MAE(yTrue, yPred)
	if err != nil {
		return nil, err
	}
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return nil, err
	}
	deviance, err := MeanPoissonDeviance(yTrue, yPred)
	if err != nil {
		deviance = math.NaN()
	}

	return &RegressionMetrics{
		RSquared:             r2,
		MeanAbsoluteError:    mae,
		MeanSquaredError:     mse,
		RootMeanSquaredError: math.Sqrt(mse),
		MeanPoissonDeviance:  deviance,
		Count:                yTrue.Len(),
	}, nil
}
