package model

import (
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/YuminosukeSato/carprice/pkg/errors"
)

const (
	// ArtifactMagic はアーティファクトファイルの先頭に書かれる識別子
	ArtifactMagic = "CARPRICE-ARTIFACT"
	// ArtifactFormatVersion は現在のペイロード形式のバージョン
	ArtifactFormatVersion = 1
)

// Header はアーティファクトの先頭に書かれるエンベロープ
type Header struct {
	Magic         string
	FormatVersion int
	Kind          string
	RunID         string
	CreatedAt     time.Time
}

// NewHeader は現在の形式で Header を作成する
func NewHeader(kind, runID string) Header {
	return Header{
		Magic:         ArtifactMagic,
		FormatVersion: ArtifactFormatVersion,
		Kind:          kind,
		RunID:         runID,
		CreatedAt:     time.Now().UTC(),
	}
}

// EncodeArtifact はヘッダーとペイロードを順に gob で w に書き込む
func EncodeArtifact(w io.Writer, header Header, payload any) error {
	enc := gob.NewEncoder(w)
	if err := enc.Encode(header); err != nil {
		return errors.Wrap(err, "failed to encode artifact header")
	}
	if err := enc.Encode(payload); err != nil {
		return errors.Wrap(err, "failed to encode artifact payload")
	}
	return nil
}

// DecodeArtifact はヘッダーを検証してから payload にデコードする
//
// マジック、バージョン、種別のいずれかが一致しない場合は
// ErrArtifactMismatch をラップした ModelError を返し、payload には触れない。
func DecodeArtifact(r io.Reader, kind string, payload any) (Header, error) {
	dec := gob.NewDecoder(r)

	var header Header
	if err := dec.Decode(&header); err != nil {
		return Header{}, errors.NewModelError("DecodeArtifact", "unreadable header", errors.Wrap(errors.ErrArtifactMismatch, err.Error()))
	}
	if header.Magic != ArtifactMagic {
		return header, errors.NewModelError("DecodeArtifact", fmt.Sprintf("bad magic %q", header.Magic), errors.ErrArtifactMismatch)
	}
	if header.FormatVersion != ArtifactFormatVersion {
		return header, errors.NewModelError("DecodeArtifact",
			fmt.Sprintf("unsupported format version %d (want %d)", header.FormatVersion, ArtifactFormatVersion),
			errors.ErrArtifactMismatch)
	}
	if header.Kind != kind {
		return header, errors.NewModelError("DecodeArtifact", fmt.Sprintf("artifact kind %q, want %q", header.Kind, kind), errors.ErrArtifactMismatch)
	}

	if err := dec.Decode(payload); err != nil {
		return header, errors.NewModelError("DecodeArtifact", "unreadable payload", errors.Wrap(errors.ErrArtifactMismatch, err.Error()))
	}
	return header, nil
}

// SaveArtifact はアーティファクトを path に保存する
//
// 同じディレクトリの一時ファイルに書き込んでからリネームするため、
// 失敗しても path に中途半端なファイルは残らない。
//
// 使用例:
//
//	header := model.NewHeader("carprice.FittedPipeline", runID)
//	err := model.SaveArtifact("models/model.gob", header, payload)
func SaveArtifact(path string, header Header, payload any) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return errors.Wrapf(err, "failed to create artifact in %s", dir)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = EncodeArtifact(tmp, header, payload); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return errors.Wrapf(err, "failed to sync artifact %s", path)
	}
	if err = tmp.Close(); err != nil {
		return errors.Wrapf(err, "failed to close artifact %s", path)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrapf(err, "failed to move artifact into %s", path)
	}
	return nil
}

// LoadArtifact は path からアーティファクトを読み込む
func LoadArtifact(path, kind string, payload any) (Header, error) {
	file, err := os.Open(path)
	if err != nil {
		return Header{}, errors.Wrapf(err, "failed to open artifact %s", path)
	}
	defer file.Close()

	return DecodeArtifact(file, kind, payload)
}
