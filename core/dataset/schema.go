// Package dataset は学習パイプラインのデータモデルを提供します。
//
// Dataset は遅延評価かつ再走査可能な行の列です。Rows を range するまで
// 何も読み込まれず、Rows を呼ぶたびに同じ内容の新しい走査が始まります。
//
// 使用例:
//
//	ds, err := dataset.LoadCSV("data/true_car_listings.csv", dataset.CarSchema())
//	if err != nil {
//	    return err
//	}
//	for row, err := range ds.Rows() {
//	    if err != nil {
//	        return err
//	    }
//	    price, _ := row.Float(dataset.ColPrice)
//	    _ = price
//	}
package dataset

import (
	"fmt"
	"slices"

	"github.com/YuminosukeSato/carprice/pkg/errors"
)

// Kind は列の値の型を表す
type Kind int

const (
	// KindInt は整数の列（int64 として保持）
	KindInt Kind = iota
	// KindFloat は実数の列
	KindFloat
	// KindString はカテゴリ値などの文字列の列
	KindString
	// KindVector は密な []float64 の列（特徴量ベクトル）
	KindVector
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindVector:
		return "vector"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Column は Schema の1列
type Column struct {
	Name string
	Kind Kind
	// Source は入力ファイルのヘッダー名。空なら Name を使う。
	Source string
	// Index はヘッダー名で見つからない場合の位置。-1 なら位置による解決をしない。
	Index int
}

// SourceName は入力ファイル上で探すヘッダー名を返す
func (c Column) SourceName() string {
	if c.Source != "" {
		return c.Source
	}
	return c.Name
}

// Schema は順序付きの列定義
type Schema struct {
	Columns []Column
}

// NewSchema は列を並べた Schema を作成する
func NewSchema(cols ...Column) Schema {
	return Schema{Columns: slices.Clone(cols)}
}

// Lookup は名前で列を探す
func (s Schema) Lookup(name string) (Column, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Has は列が存在するかを返す
func (s Schema) Has(name string) bool {
	_, ok := s.Lookup(name)
	return ok
}

// Names は列名を順に返す
func (s Schema) Names() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// With は列を追加（同名なら置換）した新しい Schema を返す。元の Schema は変更しない。
func (s Schema) With(col Column) Schema {
	cols := slices.Clone(s.Columns)
	for i, c := range cols {
		if c.Name == col.Name {
			cols[i] = col
			return Schema{Columns: cols}
		}
	}
	return Schema{Columns: append(cols, col)}
}

// Equal は列の並びと定義が一致するかを返す
func (s Schema) Equal(other Schema) bool {
	return slices.Equal(s.Columns, other.Columns)
}

// Validate は列名が空でなく重複していないことを確認する
func (s Schema) Validate() error {
	if len(s.Columns) == 0 {
		return errors.NewSchemaError("", "schema has no columns")
	}
	seen := make(map[string]struct{}, len(s.Columns))
	for _, c := range s.Columns {
		if c.Name == "" {
			return errors.NewSchemaError("", "empty column name")
		}
		if _, dup := seen[c.Name]; dup {
			return errors.NewSchemaError(c.Name, "duplicate column")
		}
		seen[c.Name] = struct{}{}
	}
	return nil
}

// 学習データの列名
const (
	ColPrice   = "Price"
	ColYear    = "Year"
	ColMileage = "Mileage"
	ColMake    = "Make"
	ColModel   = "Model"
)

// CarSchema は true_car_listings.csv
// (Price,Year,Mileage,City,State,Vin,Make,Model) の学習用スキーマを返す。
// Price がラベル列。
func CarSchema() Schema {
	return NewSchema(
		Column{Name: ColPrice, Kind: KindFloat, Index: 0},
		Column{Name: ColYear, Kind: KindInt, Index: 1},
		Column{Name: ColMileage, Kind: KindFloat, Index: 2},
		Column{Name: ColMake, Kind: KindString, Index: 6},
		Column{Name: ColModel, Kind: KindString, Index: 7},
	)
}
