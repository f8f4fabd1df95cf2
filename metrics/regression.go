// Package metrics は回帰モデルの評価指標を提供します。
package metrics

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/carprice/pkg/errors"
)

func checkPair(op string, yTrue, yPred *mat.VecDense) (int, error) {
	n := yTrue.Len()
	if n == 0 {
		return 0, errors.NewValueError(op, "empty vector")
	}
	if yPred.Len() != n {
		return 0, errors.NewDimensionError(op, n, yPred.Len(), 0)
	}
	return n, nil
}

// MSE は平均二乗誤差（Mean Squared Error）を計算する
func MSE(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("MSE", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	// MSE = (1/n) * Σ(yTrue - yPred)²
	var sum float64
	for i := 0; i < n; i++ {
		diff := yTrue.AtVec(i) - yPred.AtVec(i)
		sum += diff * diff
	}
	return sum / float64(n), nil
}

// MAE は平均絶対誤差（Mean Absolute Error）を計算する
func MAE(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("MAE", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	// MAE = (1/n) * Σ|yTrue - yPred|
	var sum float64
	for i := 0; i < n; i++ {
		sum += math.Abs(yTrue.AtVec(i) - yPred.AtVec(i))
	}
	return sum / float64(n), nil
}

// R2Score は決定係数（R²）を計算する
//
// yTrue の分散が0の場合、R² は定義できない。その場合は予測が完全に一致すれば 1.0、
// そうでなければ 0.0 を返し、UndefinedMetricWarning を発生させる。
// それ以外では R² ≤ 1 で、完全な予測のときに 1 になる。
func R2Score(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("R2Score", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	yMean := mat.Sum(yTrue) / float64(n)

	// 全変動（TSS）と残差変動（RSS）を計算
	var tss, rss float64
	for i := 0; i < n; i++ {
		yTrueVal := yTrue.AtVec(i)
		yPredVal := yPred.AtVec(i)

		tss += (yTrueVal - yMean) * (yTrueVal - yMean)
		rss += (yTrueVal - yPredVal) * (yTrueVal - yPredVal)
	}

	if tss == 0 {
		result := 0.0
		if rss == 0 {
			result = 1.0
		}
		errors.Warn(errors.NewUndefinedMetricWarning("R^2", "zero variance in y_true", result))
		return result, nil
	}

	// R² = 1 - RSS/TSS
	return 1 - rss/tss, nil
}

// MeanPoissonDeviance は平均ポアソン逸脱度を計算する
//
//	D = (2/n) Σ [ y log(y/μ) - y + μ ]   （y = 0 の項は 2μ）
//
// yTrue は非負、yPred は正でなければならない。
func MeanPoissonDeviance(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("MeanPoissonDeviance", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	terms := make([]float64, n)
	for i := 0; i < n; i++ {
		y, mu := yTrue.AtVec(i), yPred.AtVec(i)
		if y < 0 {
			return 0, errors.NewValueError("MeanPoissonDeviance", "y_true must be non-negative")
		}
		if mu <= 0 {
			return 0, errors.NewValueError("MeanPoissonDeviance", "y_pred must be strictly positive")
		}
		terms[i] = mu - y
		if y > 0 {
			terms[i] += y * math.Log(y/mu)
		}
	}
	return 2 * floats.Sum(terms) / float64(n), nil
}
