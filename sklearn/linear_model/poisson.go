package linear_model

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"slices"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/YuminosukeSato/carprice/core/model"
	"github.com/YuminosukeSato/carprice/core/parallel"
	"github.com/YuminosukeSato/carprice/metrics"
	"github.com/YuminosukeSato/carprice/pkg/errors"
	"github.com/YuminosukeSato/carprice/pkg/log"
)

var (
	_ model.Regressor       = (*PoissonRegressor)(nil)
	_ model.ParameterGetter = (*PoissonRegressor)(nil)
)

// parallelThreshold 行以下の目的関数評価は呼び出し元のゴルーチンで行う
const parallelThreshold = 4096

// GLMParams は学習済みの対数リンク一般化線形モデルの係数
type GLMParams struct {
	Weights   []float64
	Intercept float64
}

// Width は特徴量の次元数を返す
func (p GLMParams) Width() int { return len(p.Weights) }

// Predict は exp(w·x + b) を返す。結果は常に0以上。
func (p GLMParams) Predict(x []float64) (float64, error) {
	if len(x) != len(p.Weights) {
		return 0, errors.NewDimensionError("GLMParams.Predict", len(p.Weights), len(x), 1)
	}
	return errors.StabilizeExp(floats.Dot(p.Weights, x) + p.Intercept), nil
}

// Checksum は係数の SHA-256 を返す。保存したモデルの検証に使う。
func (p GLMParams) Checksum() string {
	h := sha256.New()
	buf := make([]byte, 8)
	for _, w := range append(slices.Clone(p.Weights), p.Intercept) {
		binary.LittleEndian.PutUint64(buf, math.Float64bits(w))
		h.Write(buf)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// PoissonRegressor は L-BFGS で学習する対数リンクのポアソン回帰
//
// 目的関数は平均ポアソン逸脱度（定数項を除く）に L2 正則化を加えたもの:
//
//	mean(μ - y log μ) + (l2/2)‖w‖²,  μ = exp(w·x + b)
//
// 切片は正則化しない。
type PoissonRegressor struct {
	state *model.StateManager

	// Hyperparameters
	maxIter     int
	tol         float64
	l2          float64
	historySize int

	// Learned parameters
	params GLMParams
	nIter  int
	loss   float64
}

// PoissonOption は設定オプション
type PoissonOption func(*PoissonRegressor)

// WithMaxIter は L-BFGS の最大反復回数を設定
func WithMaxIter(n int) PoissonOption {
	return func(r *PoissonRegressor) { r.maxIter = n }
}

// WithTol は勾配の無限大ノルムによる収束判定の閾値を設定
func WithTol(tol float64) PoissonOption {
	return func(r *PoissonRegressor) { r.tol = tol }
}

// WithL2 は重みの L2 正則化係数を設定
func WithL2(l2 float64) PoissonOption {
	return func(r *PoissonRegressor) { r.l2 = l2 }
}

// WithHistorySize は L-BFGS が保持する勾配履歴の数を設定
func WithHistorySize(n int) PoissonOption {
	return func(r *PoissonRegressor) { r.historySize = n }
}

// NewPoissonRegressor は新しい PoissonRegressor を作成
//
// 使用例:
//
//	reg := linear_model.NewPoissonRegressor(linear_model.WithMaxIter(500))
//	err := reg.Fit(X, y)
//	pred, err := reg.Predict(XTest)
func NewPoissonRegressor(options ...PoissonOption) *PoissonRegressor {
	r := &PoissonRegressor{
		state:       model.NewStateManager(),
		maxIter:     1000,
		tol:         1e-7,
		historySize: 20,
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// Fit はモデルを訓練データで学習
//
// パラメータ:
//   - X: 特徴量 (n_samples × n_features)
//   - y: 非負のラベル (n_samples × 1)
//
// 戻り値:
//   - error: 空データ、次元の不一致、不正なラベル、または収束しなかった場合の ConvergenceError
func (r *PoissonRegressor) Fit(X, y mat.Matrix) error {
	rows, cols := X.Dims()
	yRows, yCols := y.Dims()

	if rows == 0 || cols == 0 {
		return errors.NewModelError("PoissonRegressor.Fit", "empty data", errors.ErrEmptyData)
	}
	if rows != yRows {
		return errors.NewDimensionError("PoissonRegressor.Fit", rows, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError("PoissonRegressor.Fit", 1, yCols, 1)
	}
	if err := r.validateHyperparameters(); err != nil {
		return err
	}

	labels := make([]float64, rows)
	for i := range labels {
		v := y.At(i, 0)
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return errors.NewValidationError("y", "labels must be finite and non-negative", v)
		}
		labels[i] = v
	}
	yMean := floats.Sum(labels) / float64(rows)
	if yMean <= 0 {
		return errors.NewValidationError("y", "all labels are zero", yMean)
	}

	// 対数リンクではラベルの定数倍は切片の平行移動になる。
	// 平均1に揃えてから解き、最後に log(yMean) を切片に戻す。
	floats.Scale(1/yMean, labels)

	obj := newPoissonObjective(mat.DenseCopyOf(X), labels, r.l2)
	start := time.Now()
	result, err := optimize.Minimize(
		optimize.Problem{Func: obj.value, Grad: obj.gradient},
		make([]float64, cols+1),
		&optimize.Settings{
			GradientThreshold: r.tol,
			MajorIterations:   r.maxIter,
			Converger:         &optimize.FunctionConverge{Absolute: 1e-12, Relative: 1e-12, Iterations: 20},
		},
		&optimize.LBFGS{Store: r.historySize},
	)
	if result == nil {
		return errors.NewConvergenceError("L-BFGS", 0, fmt.Sprint(err))
	}
	iterations := result.Stats.MajorIterations
	if result.Status == optimize.IterationLimit {
		return errors.NewConvergenceError("L-BFGS", iterations, "iteration limit reached")
	}
	if err != nil {
		// 最適点の近傍では直線探索が進めなくなることがある。勾配が十分小さければ収束とみなす。
		grad := make([]float64, cols+1)
		obj.gradient(grad, result.X)
		if floats.Norm(grad, math.Inf(1)) > math.Max(1e3*r.tol, 1e-5) {
			return errors.NewConvergenceError("L-BFGS", iterations, err.Error())
		}
	}

	theta := result.X
	if err := errors.CheckNumericalStability("PoissonRegressor.Fit", theta, iterations); err != nil {
		return errors.NewConvergenceError("L-BFGS", iterations, err.Error())
	}
	if err := errors.CheckScalar("PoissonRegressor.Fit", result.F, iterations); err != nil {
		return errors.NewConvergenceError("L-BFGS", iterations, err.Error())
	}

	r.params = GLMParams{
		Weights:   slices.Clone(theta[:cols]),
		Intercept: theta[cols] + math.Log(yMean),
	}
	r.nIter = iterations
	r.loss = result.F
	r.state.SetDimensions(cols, rows)
	r.state.SetFitted()

	log.GetLoggerWithName("linear_model").Debug("Solver finished",
		log.ModelNameKey, "PoissonRegressor",
		log.IterationKey, iterations,
		log.LossKey, result.F,
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
		log.DurationMsKey, time.Since(start).Milliseconds(),
		"status", result.Status.String(),
	)
	return nil
}

func (r *PoissonRegressor) validateHyperparameters() error {
	switch {
	case r.maxIter <= 0:
		return errors.NewValidationError("max_iter", "must be positive", r.maxIter)
	case !(r.tol > 0):
		return errors.NewValidationError("tol", "must be positive", r.tol)
	case r.l2 < 0 || math.IsNaN(r.l2):
		return errors.NewValidationError("l2", "must be non-negative", r.l2)
	case r.historySize <= 0:
		return errors.NewValidationError("history_size", "must be positive", r.historySize)
	}
	return nil
}

// Predict は入力データに対する予測を行う
func (r *PoissonRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := r.state.RequireFitted("PoissonRegressor", "Predict"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if err := r.state.RequireFeatures("PoissonRegressor.Predict", cols); err != nil {
		return nil, err
	}

	predictions := mat.NewVecDense(rows, nil)
	x := make([]float64, cols)
	for i := 0; i < rows; i++ {
		mat.Row(x, i, X)
		p, err := r.params.Predict(x)
		if err != nil {
			return nil, err
		}
		predictions.SetVec(i, p)
	}
	return predictions, nil
}

// Score はモデルの決定係数（R²）を計算
func (r *PoissonRegressor) Score(X, y mat.Matrix) (float64, error) {
	predictions, err := r.Predict(X)
	if err != nil {
		return 0, err
	}
	rows, _ := y.Dims()
	yTrue := mat.NewVecDense(rows, nil)
	for i := 0; i < rows; i++ {
		yTrue.SetVec(i, y.At(i, 0))
	}
	return metrics.R2Score(yTrue, predictions.(*mat.VecDense))
}

// Params は学習済み係数のコピーを返す
func (r *PoissonRegressor) Params() GLMParams {
	return GLMParams{Weights: slices.Clone(r.params.Weights), Intercept: r.params.Intercept}
}

// NIter は L-BFGS の反復回数を返す
func (r *PoissonRegressor) NIter() int { return r.nIter }

// Loss は最適化終了時の目的関数値（ラベルを平均で割った尺度）を返す
func (r *PoissonRegressor) Loss() float64 { return r.loss }

// IsFitted returns whether the model has been fitted
func (r *PoissonRegressor) IsFitted() bool { return r.state.IsFitted() }

// GetParams returns the model's hyperparameters
func (r *PoissonRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"max_iter":     r.maxIter,
		"tol":          r.tol,
		"l2":           r.l2,
		"history_size": r.historySize,
	}
}

// String はモデルの文字列表現を返す
func (r *PoissonRegressor) String() string {
	if !r.state.IsFitted() {
		return fmt.Sprintf("PoissonRegressor(max_iter=%d, tol=%g, l2=%g)", r.maxIter, r.tol, r.l2)
	}
	return fmt.Sprintf("PoissonRegressor(max_iter=%d, tol=%g, l2=%g, n_features=%d, n_iter=%d)",
		r.maxIter, r.tol, r.l2, r.params.Width(), r.nIter)
}

// poissonObjective は θ = [w..., b] に対する目的関数と勾配
//
// 行ごとの項は各行が自分のスロットに書き込み、総和は固定順で取るため、
// 並列化しても結果は逐次計算と一致する。
type poissonObjective struct {
	x     *mat.Dense
	y     []float64
	l2    float64
	n     int
	d     int
	eta   *mat.VecDense
	mu    []float64
	terms []float64
}

func newPoissonObjective(x *mat.Dense, y []float64, l2 float64) *poissonObjective {
	n, d := x.Dims()
	return &poissonObjective{
		x:     x,
		y:     y,
		l2:    l2,
		n:     n,
		d:     d,
		eta:   mat.NewVecDense(n, nil),
		mu:    make([]float64, n),
		terms: make([]float64, n),
	}
}

// evaluate は η = Xw + b, μ = exp(η) と行ごとの損失項を計算する
func (o *poissonObjective) evaluate(theta []float64) {
	w := mat.NewVecDense(o.d, theta[:o.d])
	b := theta[o.d]
	o.eta.MulVec(o.x, w)

	parallel.ParallelizeWithThreshold(o.n, parallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			eta := o.eta.AtVec(i) + b
			mu := errors.StabilizeExp(eta)
			o.mu[i] = mu
			o.terms[i] = mu - o.y[i]*eta
		}
	})
}

func (o *poissonObjective) value(theta []float64) float64 {
	o.evaluate(theta)
	loss := floats.Sum(o.terms) / float64(o.n)
	if o.l2 > 0 {
		w := theta[:o.d]
		loss += 0.5 * o.l2 * floats.Dot(w, w)
	}
	return loss
}

func (o *poissonObjective) gradient(grad, theta []float64) {
	o.evaluate(theta)

	parallel.ParallelizeWithThreshold(o.n, parallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			o.terms[i] = o.mu[i] - o.y[i]
		}
	})

	residual := mat.NewVecDense(o.n, o.terms)
	gw := mat.NewVecDense(o.d, grad[:o.d])
	gw.MulVec(o.x.T(), residual)
	gw.ScaleVec(1/float64(o.n), gw)
	if o.l2 > 0 {
		floats.AddScaled(grad[:o.d], o.l2, theta[:o.d])
	}
	grad[o.d] = floats.Sum(o.terms) / float64(o.n)
}
