// Package storage はアップロードされた文書のローカル保存を提供します。
package storage

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

var (
	// ErrTooLarge はファイルサイズ上限の超過を示します。
	ErrTooLarge = errors.New("file exceeds size limit")
	// ErrUnsupportedType は対応していないファイル形式を示します。
	ErrUnsupportedType = errors.New("unsupported file type")
)

// Local はベースディレクトリ配下にアップロードを保存するストアです。
type Local struct {
	baseDir  string
	maxBytes int64
}

// NewLocal は Local を作成し、保存先ディレクトリを用意します。
func NewLocal(baseDir string, maxBytes int64) (*Local, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("baseDir is required")
	}
	if err := os.MkdirAll(baseDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &Local{baseDir: baseDir, maxBytes: maxBytes}, nil
}

// 対応する拡張子と、その内容として許可するMIMEタイプの判定です。
// テキスト系は mimetype が text/* 階層として検出することを前提にします。
func allowedContent(ext string, mime *mimetype.MIME) bool {
	switch ext {
	case ".pdf":
		return mime.Is("application/pdf")
	case ".txt", ".csv":
		for m := mime; m != nil; m = m.Parent() {
			if strings.HasPrefix(m.String(), "text/") {
				return true
			}
		}
		return false
	case ".xlsx":
		return mime.Is("application/vnd.openxmlformats-officedocument.spreadsheetml.sheet") ||
			mime.Is("application/zip")
	}
	return false
}

// SaveUpload はマルチパートファイルを検証しつつ保存し、保存先パスを返します。
func (l *Local) SaveUpload(fh *multipart.FileHeader) (string, error) {
	if fh == nil {
		return "", fmt.Errorf("file is required")
	}
	if l.maxBytes > 0 && fh.Size > l.maxBytes {
		return "", fmt.Errorf("%w: %d bytes", ErrTooLarge, fh.Size)
	}

	ext := strings.ToLower(filepath.Ext(fh.Filename))
	switch ext {
	case ".pdf", ".txt", ".csv", ".xlsx":
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, ext)
	}

	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open upload: %w", err)
	}
	defer src.Close()

	destPath := filepath.Join(l.baseDir, uuid.New().String()+ext)
	dest, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o640)
	if err != nil {
		return "", fmt.Errorf("failed to create upload file: %w", err)
	}

	_, copyErr := io.Copy(dest, src)
	closeErr := dest.Close()
	if copyErr != nil {
		_ = os.Remove(destPath)
		return "", fmt.Errorf("failed to store upload: %w", copyErr)
	}
	if closeErr != nil {
		_ = os.Remove(destPath)
		return "", fmt.Errorf("failed to store upload: %w", closeErr)
	}

	detected, err := mimetype.DetectFile(destPath)
	if err != nil {
		_ = os.Remove(destPath)
		return "", fmt.Errorf("failed to detect file type: %w", err)
	}
	if !allowedContent(ext, detected) {
		_ = os.Remove(destPath)
		return "", fmt.Errorf("%w: %s (%s)", ErrUnsupportedType, ext, detected.String())
	}

	return destPath, nil
}

// Remove は保存済みファイルを削除します。既に存在しない場合は成功扱いです（冪等）。
// ベースディレクトリ外のパスは管理対象外として何もしません。
func (l *Local) Remove(path string) error {
	if path == "" {
		return nil
	}
	cleaned := filepath.Clean(path)
	rel, err := filepath.Rel(l.baseDir, cleaned)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil
	}
	if err := os.Remove(cleaned); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// BaseDir は保存先ディレクトリを返します。
func (l *Local) BaseDir() string {
	return l.baseDir
}
