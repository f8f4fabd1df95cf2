// Package report はスコア付きデータセットの可視化を提供します。
package report

import (
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/carprice/core/dataset"
	"github.com/YuminosukeSato/carprice/pkg/errors"
	"github.com/YuminosukeSato/carprice/pkg/log"
)

// PredictedVsActual は正解と予測の散布図を path に保存する
//
// 横軸が labelColumn、縦軸が scoreColumn で、完全な予測を表す y = x の直線を重ねる。
// 画像形式は path の拡張子（.png, .svg, .pdf など）で決まる。
//
// 使用例:
//
//	err := report.PredictedVsActual(fp.Transform(test), "Price", "Score", "report.png")
func PredictedVsActual(ds dataset.Dataset, labelColumn, scoreColumn, path string) error {
	pts, err := points(ds, labelColumn, scoreColumn)
	if err != nil {
		return err
	}

	p := plot.New()
	p.Title.Text = "Predicted vs actual " + labelColumn
	p.X.Label.Text = "Actual"
	p.Y.Label.Text = "Predicted"
	p.Add(plotter.NewGrid())

	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return errors.Wrap(err, "failed to create scatter plot")
	}
	scatter.GlyphStyle.Color = color.RGBA{R: 20, G: 80, B: 200, A: 160}
	scatter.GlyphStyle.Radius = vg.Points(1.5)
	p.Add(scatter)
	p.Legend.Add("listings", scatter)

	lo, hi := bounds(pts)
	diagonal, err := plotter.NewLine(plotter.XYs{{X: lo, Y: lo}, {X: hi, Y: hi}})
	if err != nil {
		return errors.Wrap(err, "failed to create reference line")
	}
	diagonal.Color = color.RGBA{R: 200, G: 30, B: 30, A: 255}
	diagonal.Width = vg.Points(1)
	diagonal.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
	p.Add(diagonal)
	p.Legend.Add("perfect prediction", diagonal)
	p.Legend.Top = true
	p.Legend.Left = true

	if err := p.Save(8*vg.Inch, 6*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "failed to save plot %s", path)
	}

	log.GetLoggerWithName("report").Info("Plot saved",
		log.PathKey, path,
		log.SamplesKey, len(pts),
	)
	return nil
}

func points(ds dataset.Dataset, labelColumn, scoreColumn string) (plotter.XYs, error) {
	var pts plotter.XYs
	for row, err := range ds.Rows() {
		if err != nil {
			return nil, err
		}
		x, err := row.Float(labelColumn)
		if err != nil {
			return nil, err
		}
		y, err := row.Float(scoreColumn)
		if err != nil {
			return nil, err
		}
		pts = append(pts, plotter.XY{X: x, Y: y})
	}
	if len(pts) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "PredictedVsActual: no rows to plot")
	}
	return pts, nil
}

// bounds は両軸を通した最小値と最大値を返す
func bounds(pts plotter.XYs) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, pt := range pts {
		lo = math.Min(lo, math.Min(pt.X, pt.Y))
		hi = math.Max(hi, math.Max(pt.X, pt.Y))
	}
	return lo, hi
}
