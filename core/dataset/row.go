package dataset

import (
	"fmt"
	"maps"

	"github.com/YuminosukeSato/carprice/pkg/errors"
)

// Row は列名をキーとする不変のレコード
//
// ID は読み込み元での0始まりの位置で、行の同一性を表す。
// With 系のメソッドは新しい Row を返し、受け手は変更しない。
// Vector が返すスライスは共有されるため、呼び出し側で書き換えてはならない。
type Row struct {
	ID     int
	values map[string]any
}

// NewRow は values をコピーして Row を作成する。
// 値は int64, float64, string, []float64 のいずれか。
func NewRow(id int, values map[string]any) Row {
	return Row{ID: id, values: maps.Clone(values)}
}

// Has は列が存在するかを返す
func (r Row) Has(name string) bool {
	_, ok := r.values[name]
	return ok
}

// Value は列の値をそのまま返す
func (r Row) Value(name string) (any, bool) {
	v, ok := r.values[name]
	return v, ok
}

// Len は列数を返す
func (r Row) Len() int {
	return len(r.values)
}

// Float は数値列（Int または Float）の値を float64 で返す
func (r Row) Float(name string) (float64, error) {
	v, ok := r.values[name]
	if !ok {
		return 0, errors.NewSchemaError(name, "column not present in row")
	}
	switch x := v.(type) {
	case float64:
		return x, nil
	case int64:
		return float64(x), nil
	default:
		return 0, errors.NewSchemaError(name, fmt.Sprintf("expected numeric value, got %T", v))
	}
}

// String は文字列列の値を返す
func (r Row) String(name string) (string, error) {
	v, ok := r.values[name]
	if !ok {
		return "", errors.NewSchemaError(name, "column not present in row")
	}
	s, ok := v.(string)
	if !ok {
		return "", errors.NewSchemaError(name, fmt.Sprintf("expected string value, got %T", v))
	}
	return s, nil
}

// Vector はベクトル列の値を返す。数値列は長さ1のベクトルとして扱う。
func (r Row) Vector(name string) ([]float64, error) {
	v, ok := r.values[name]
	if !ok {
		return nil, errors.NewSchemaError(name, "column not present in row")
	}
	switch x := v.(type) {
	case []float64:
		return x, nil
	case float64:
		return []float64{x}, nil
	case int64:
		return []float64{float64(x)}, nil
	default:
		return nil, errors.NewSchemaError(name, fmt.Sprintf("expected vector value, got %T", v))
	}
}

func (r Row) with(name string, v any) Row {
	values := make(map[string]any, len(r.values)+1)
	maps.Copy(values, r.values)
	values[name] = v
	return Row{ID: r.ID, values: values}
}

// WithFloat は列を設定した新しい Row を返す
func (r Row) WithFloat(name string, v float64) Row {
	return r.with(name, v)
}

// WithInt は列を設定した新しい Row を返す
func (r Row) WithInt(name string, v int64) Row {
	return r.with(name, v)
}

// WithString は列を設定した新しい Row を返す
func (r Row) WithString(name string, v string) Row {
	return r.with(name, v)
}

// WithVector は列を設定した新しい Row を返す。v は所有権ごと渡される。
func (r Row) WithVector(name string, v []float64) Row {
	return r.with(name, v)
}
