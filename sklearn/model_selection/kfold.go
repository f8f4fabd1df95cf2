package model_selection

import (
	"math/rand/v2"

	"github.com/YuminosukeSato/carprice/pkg/errors"
)

// Fold は交差検証の1分割の位置の集合
type Fold struct {
	TrainIndices []int
	TestIndices  []int
}

// KFold は k 分割交差検証の分割器
type KFold struct {
	NSplits int
	Shuffle bool
	Seed    uint64
}

// Split は n 行を NSplits 個のフォールドに分ける
//
// 評価用の位置はすべてのフォールドを通してちょうど1回ずつ現れる。
// n が NSplits で割り切れない場合は、先頭のフォールドから1行ずつ多くなる。
// Shuffle なら Seed で初期化した PCG で位置を並べ替えてから分ける。
func (kf KFold) Split(n int) ([]Fold, error) {
	if kf.NSplits < 2 {
		return nil, errors.NewValidationError("n_splits", "must be at least 2", kf.NSplits)
	}
	if kf.NSplits > n {
		return nil, errors.NewValidationError("n_splits", "cannot exceed the number of rows", kf.NSplits)
	}

	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	if kf.Shuffle {
		r := rand.New(rand.NewPCG(kf.Seed, kf.Seed))
		r.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
	}

	folds := make([]Fold, kf.NSplits)
	foldSize := n / kf.NSplits
	remainder := n % kf.NSplits

	current := 0
	for i := range folds {
		testSize := foldSize
		if i < remainder {
			testSize++
		}

		testIndices := make([]int, testSize)
		copy(testIndices, indices[current:current+testSize])

		trainIndices := make([]int, 0, n-testSize)
		trainIndices = append(trainIndices, indices[:current]...)
		trainIndices = append(trainIndices, indices[current+testSize:]...)

		folds[i] = Fold{TrainIndices: trainIndices, TestIndices: testIndices}
		current += testSize
	}
	return folds, nil
}
