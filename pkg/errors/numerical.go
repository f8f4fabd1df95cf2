package errors

import (
	"math"
)

// maxExp は exp がオーバーフローしない入力の上限（exp(709) 付近が float64 の限界）
const maxExp = 700.0

// CheckNumericalStability は係数などの値に NaN や Inf が含まれていれば
// NumericalInstabilityError を返す。iteration はソルバーの反復回数で、
// 反復の外で検査する場合は 0 を渡す。
func CheckNumericalStability(operation string, values []float64, iteration int) error {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return NewNumericalInstabilityError(operation, values, iteration)
		}
	}
	return nil
}

// CheckScalar は損失などのスカラー値を検査する
func CheckScalar(operation string, value float64, iteration int) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return NewNumericalInstabilityError(operation, []float64{value}, iteration)
	}
	return nil
}

// ClipValue は value を [lo, hi] に収める
func ClipValue(value, lo, hi float64) float64 {
	return math.Min(math.Max(value, lo), hi)
}

// StabilizeExp は log リンクの逆関数。線形予測子が大きすぎても Inf を返さない。
func StabilizeExp(eta float64) float64 {
	switch {
	case eta > maxExp:
		return math.Exp(maxExp)
	case eta < -maxExp:
		return 0
	default:
		return math.Exp(eta)
	}
}
