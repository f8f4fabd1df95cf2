package dataset

import (
	"iter"

	"github.com/YuminosukeSato/carprice/pkg/errors"
)

// Dataset は遅延評価で再走査可能な行の列
//
// Rows は呼ぶたびに先頭からの新しい走査を返す。読み取り専用の並行走査に対して安全。
// 走査中のエラーは (Row{}, err) として一度だけ渡され、走査はそこで終わる。
type Dataset interface {
	Schema() Schema
	Rows() iter.Seq2[Row, error]
}

// MemoryDataset はメモリ上の行を持つ Dataset
type MemoryDataset struct {
	schema Schema
	rows   []Row
}

// FromRows は rows を保持する Dataset を作成する。rows は共有される。
func FromRows(schema Schema, rows []Row) *MemoryDataset {
	return &MemoryDataset{schema: schema, rows: rows}
}

// Schema implements Dataset.
func (m *MemoryDataset) Schema() Schema { return m.schema }

// Rows implements Dataset.
func (m *MemoryDataset) Rows() iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		for _, r := range m.rows {
			if !yield(r, nil) {
				return
			}
		}
	}
}

// Len は行数を返す
func (m *MemoryDataset) Len() int { return len(m.rows) }

// At は i 番目の行を返す
func (m *MemoryDataset) At(i int) Row { return m.rows[i] }

// indexed は位置で行を引ける Dataset
type indexed interface {
	Dataset
	Len() int
	At(i int) Row
}

// Collect はすべての行を読み込んで返す
func Collect(ds Dataset) ([]Row, error) {
	if m, ok := ds.(*MemoryDataset); ok {
		return m.rows, nil
	}
	var rows []Row
	for r, err := range ds.Rows() {
		if err != nil {
			return nil, err
		}
		rows = append(rows, r)
	}
	return rows, nil
}

// Count は行数を返す。行数を知っている Dataset 以外は一度走査する。
func Count(ds Dataset) (int, error) {
	if l, ok := ds.(interface{ Len() int }); ok {
		return l.Len(), nil
	}
	n := 0
	for _, err := range ds.Rows() {
		if err != nil {
			return 0, err
		}
		n++
	}
	return n, nil
}

// Materialize は ds を一度だけ走査してメモリ上にキャッシュする。
// 以降の走査は元の Dataset を再計算しない。
func Materialize(ds Dataset) (*MemoryDataset, error) {
	if m, ok := ds.(*MemoryDataset); ok {
		return m, nil
	}
	rows, err := Collect(ds)
	if err != nil {
		return nil, err
	}
	return FromRows(ds.Schema(), rows), nil
}

// selectView は位置の列で選んだ部分集合
type selectView struct {
	source    Dataset
	positions []int
}

// Select は source の positions 番目の行をこの順に並べたビューを返す。
// 範囲外の位置は走査時に DimensionError になる。
func Select(source Dataset, positions []int) Dataset {
	return &selectView{source: source, positions: positions}
}

func (v *selectView) Schema() Schema { return v.source.Schema() }

func (v *selectView) Len() int { return len(v.positions) }

func (v *selectView) Rows() iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		src, ok := v.source.(indexed)
		if !ok {
			m, err := Materialize(v.source)
			if err != nil {
				yield(Row{}, err)
				return
			}
			src = m
		}
		n := src.Len()
		for _, p := range v.positions {
			if p < 0 || p >= n {
				yield(Row{}, errors.NewDimensionError("Select", n, p, 0))
				return
			}
			if !yield(src.At(p), nil) {
				return
			}
		}
	}
}

// mapView は行ごとの変換を遅延適用するビュー
type mapView struct {
	source Dataset
	schema Schema
	fn     func(Row) (Row, error)
}

// Map は source の各行に fn を適用するビューを返す。fn は走査のたびに呼ばれる。
func Map(source Dataset, schema Schema, fn func(Row) (Row, error)) Dataset {
	return &mapView{source: source, schema: schema, fn: fn}
}

func (v *mapView) Schema() Schema { return v.schema }

func (v *mapView) Rows() iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		for r, err := range v.source.Rows() {
			if err != nil {
				yield(Row{}, err)
				return
			}
			out, err := v.fn(r)
			if err != nil {
				yield(Row{}, err)
				return
			}
			if !yield(out, nil) {
				return
			}
		}
	}
}
