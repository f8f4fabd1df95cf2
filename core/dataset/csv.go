package dataset

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"iter"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/YuminosukeSato/carprice/pkg/errors"
	"github.com/YuminosukeSato/carprice/pkg/log"
)

// LoadOption は LoadCSV の設定を変更する
type LoadOption func(*csvOptions)

type csvOptions struct {
	separator rune
	header    bool
	streaming bool
}

// WithSeparator は区切り文字を設定する（デフォルトは ','）
func WithSeparator(sep rune) LoadOption {
	return func(o *csvOptions) { o.separator = sep }
}

// WithoutHeader はヘッダー行がないファイルとして読む。列は Column.Index で解決される。
func WithoutHeader() LoadOption {
	return func(o *csvOptions) { o.header = false }
}

// WithStreaming は解析済み行のメモ化を無効にし、走査のたびにファイルを読み直す
func WithStreaming() LoadOption {
	return func(o *csvOptions) { o.streaming = true }
}

// CSVDataset は区切り文字付きテキストファイルを読む Dataset
//
// 最初の完全な走査で解析済みの行をメモ化し、以降の走査（評価や交差検証）では
// ファイルを読み直さない。Reset でメモを破棄できる。
type CSVDataset struct {
	path   string
	schema Schema
	opts   csvOptions
	logger log.Logger

	mu   sync.Mutex
	memo []Row
}

// LoadCSV はファイルの存在だけを確認し、遅延評価の Dataset を返す。
// 解析は Rows を range したときに行われる。
func LoadCSV(path string, schema Schema, opts ...LoadOption) (*CSVDataset, error) {
	o := csvOptions{separator: ',', header: true}
	for _, opt := range opts {
		opt(&o)
	}
	if err := schema.Validate(); err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open dataset %s", path)
	}
	if !info.Mode().IsRegular() {
		return nil, errors.Newf("dataset %s is not a regular file", path)
	}

	return &CSVDataset{
		path:   path,
		schema: schema,
		opts:   o,
		logger: log.GetLoggerWithName("dataset").With(log.PathKey, path),
	}, nil
}

// Schema implements Dataset.
func (d *CSVDataset) Schema() Schema { return d.schema }

// Path は読み込み元のファイルパスを返す
func (d *CSVDataset) Path() string { return d.path }

// Reset はメモ化した行を破棄し、次の走査でファイルを読み直させる
func (d *CSVDataset) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.memo = nil
}

// Rows implements Dataset.
func (d *CSVDataset) Rows() iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		d.mu.Lock()
		memo := d.memo
		d.mu.Unlock()

		if memo != nil {
			for _, r := range memo {
				if !yield(r, nil) {
					return
				}
			}
			return
		}

		var collected []Row
		complete := d.scan(func(r Row, err error) bool {
			if err == nil && !d.opts.streaming {
				collected = append(collected, r)
			}
			return yield(r, err)
		})

		if complete && !d.opts.streaming {
			if collected == nil {
				collected = []Row{}
			}
			d.mu.Lock()
			d.memo = collected
			d.mu.Unlock()
			d.logger.Debug("Dataset cached", log.SamplesKey, len(collected))
		}
	}
}

// scan はファイルを先頭から解析して yield に渡す。
// 最後まで読み終え、エラーもなかった場合に true を返す。
func (d *CSVDataset) scan(yield func(Row, error) bool) bool {
	file, err := os.Open(d.path)
	if err != nil {
		yield(Row{}, errors.Wrapf(err, "failed to open dataset %s", d.path))
		return false
	}
	defer file.Close()

	reader := csv.NewReader(bufio.NewReader(file))
	reader.Comma = d.opts.separator
	reader.ReuseRecord = true

	var header []string
	if d.opts.header {
		rec, err := reader.Read()
		if err == io.EOF {
			// ヘッダーもない空ファイルは0行の Dataset
			return true
		}
		if err != nil {
			yield(Row{}, errors.Wrapf(err, "failed to read header of %s", d.path))
			return false
		}
		header = make([]string, len(rec))
		for i, h := range rec {
			header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		}
	}

	positions := make([]int, 0, len(d.schema.Columns))
	for row := 0; ; row++ {
		rec, err := reader.Read()
		if err == io.EOF {
			return true
		}
		if err != nil {
			yield(Row{}, errors.NewParseError(row, "", "record", "", err))
			return false
		}

		if len(positions) == 0 {
			width := len(rec)
			if header != nil {
				width = len(header)
			}
			positions, err = resolveColumns(d.schema, header, width)
			if err != nil {
				yield(Row{}, err)
				return false
			}
		}

		r, err := parseRecord(d.schema, positions, row, rec)
		if !yield(r, err) || err != nil {
			return false
		}
	}
}

// resolveColumns はスキーマの各列をファイル上の位置に対応付ける。
// ヘッダー名（大文字小文字を区別）を優先し、見つからなければ Column.Index を使う。
func resolveColumns(schema Schema, header []string, width int) ([]int, error) {
	positions := make([]int, len(schema.Columns))
	for i, c := range schema.Columns {
		if c.Kind == KindVector {
			return nil, errors.NewSchemaError(c.Name, "vector columns cannot be loaded from text")
		}
		pos := -1
		for j, h := range header {
			if h == c.SourceName() {
				pos = j
				break
			}
		}
		if pos < 0 && c.Index >= 0 && c.Index < width {
			pos = c.Index
		}
		if pos < 0 {
			return nil, errors.NewSchemaError(c.Name, fmt.Sprintf("no header %q and no usable position", c.SourceName()))
		}
		positions[i] = pos
	}
	return positions, nil
}

func parseRecord(schema Schema, positions []int, row int, rec []string) (Row, error) {
	values := make(map[string]any, len(schema.Columns))
	for i, c := range schema.Columns {
		token := strings.TrimSpace(rec[positions[i]])
		v, err := parseToken(c.Kind, token)
		if err != nil {
			return Row{}, errors.NewParseError(row, c.Name, c.Kind.String(), token, err)
		}
		values[c.Name] = v
	}
	return Row{ID: row, values: values}, nil
}

func parseToken(kind Kind, token string) (any, error) {
	switch kind {
	case KindInt:
		return strconv.ParseInt(token, 10, 64)
	case KindFloat:
		v, err := strconv.ParseFloat(token, 64)
		if err != nil {
			return nil, err
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, errors.New("non-finite value")
		}
		return v, nil
	case KindString:
		if token == "" {
			return nil, errors.New("missing value")
		}
		return token, nil
	default:
		return nil, errors.Newf("unsupported kind %s", kind)
	}
}
