package storage

import (
	"bytes"
	"errors"
	"mime/multipart"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// buildFileHeader はテスト用の multipart.FileHeader を組み立てます。
func buildFileHeader(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	fileWriter, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := fileWriter.Write(content); err != nil {
		t.Fatalf("failed to write form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}

	req := httptest.NewRequest("POST", "/", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if err := req.ParseMultipartForm(1 << 20); err != nil {
		t.Fatalf("failed to parse multipart form: %v", err)
	}
	return req.MultipartForm.File["file"][0]
}

func TestSaveUploadText(t *testing.T) {
	store, err := NewLocal(t.TempDir(), 0)
	if err != nil {
		t.Fatalf("NewLocal returned error: %v", err)
	}

	fh := buildFileHeader(t, "statement.txt", []byte("Total Revenue 1,000.00\n"))
	path, err := store.SaveUpload(fh)
	if err != nil {
		t.Fatalf("SaveUpload returned error: %v", err)
	}
	if !strings.HasPrefix(path, store.BaseDir()) {
		t.Fatalf("saved file must live under the base dir: %s", path)
	}
	if filepath.Ext(path) != ".txt" {
		t.Fatalf("saved file must keep its extension: %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil || !bytes.Contains(data, []byte("Total Revenue")) {
		t.Fatalf("saved content mismatch: %v", err)
	}
}

func TestSaveUploadPDF(t *testing.T) {
	store, _ := NewLocal(t.TempDir(), 0)

	fh := buildFileHeader(t, "statement.pdf", []byte("%PDF-1.4\n%%EOF\n"))
	path, err := store.SaveUpload(fh)
	if err != nil {
		t.Fatalf("SaveUpload returned error: %v", err)
	}
	if filepath.Ext(path) != ".pdf" {
		t.Fatalf("unexpected extension: %s", path)
	}
}

func TestSaveUploadRejectsUnknownExtension(t *testing.T) {
	store, _ := NewLocal(t.TempDir(), 0)

	fh := buildFileHeader(t, "macro.exe", []byte("MZ"))
	if _, err := store.SaveUpload(fh); !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("expected ErrUnsupportedType, got %v", err)
	}
}

func TestSaveUploadRejectsMismatchedContent(t *testing.T) {
	store, _ := NewLocal(t.TempDir(), 0)

	// 拡張子はPDFだが中身はPDFではない
	fh := buildFileHeader(t, "statement.pdf", []byte{0x00, 0x01, 0x02, 0x03})
	if _, err := store.SaveUpload(fh); !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("expected ErrUnsupportedType, got %v", err)
	}

	// 検証に失敗したファイルは残らない
	entries, err := os.ReadDir(store.BaseDir())
	if err != nil {
		t.Fatalf("failed to read base dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("rejected upload must be removed: %d files left", len(entries))
	}
}

func TestSaveUploadRejectsOversizedFile(t *testing.T) {
	store, _ := NewLocal(t.TempDir(), 10)

	fh := buildFileHeader(t, "statement.txt", []byte("this content is larger than ten bytes"))
	if _, err := store.SaveUpload(fh); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
}

func TestRemoveIdempotent(t *testing.T) {
	store, _ := NewLocal(t.TempDir(), 0)

	fh := buildFileHeader(t, "statement.txt", []byte("Total Revenue 1,000.00\n"))
	path, err := store.SaveUpload(fh)
	if err != nil {
		t.Fatalf("SaveUpload returned error: %v", err)
	}

	if err := store.Remove(path); err != nil {
		t.Fatalf("Remove returned error: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("file must be gone after Remove")
	}
	// 二回目も成功する（冪等）
	if err := store.Remove(path); err != nil {
		t.Fatalf("second Remove returned error: %v", err)
	}
}

func TestRemoveIgnoresOutsidePaths(t *testing.T) {
	store, _ := NewLocal(t.TempDir(), 0)

	outside := filepath.Join(t.TempDir(), "keep.txt")
	if err := os.WriteFile(outside, []byte("keep me"), 0o640); err != nil {
		t.Fatalf("failed to write outside file: %v", err)
	}

	if err := store.Remove(outside); err != nil {
		t.Fatalf("Remove returned error: %v", err)
	}
	if _, err := os.Stat(outside); err != nil {
		t.Fatal("files outside the base dir must be left alone")
	}
}

func TestRemoveIgnoresBaseDirItself(t *testing.T) {
	store, _ := NewLocal(t.TempDir(), 0)

	if err := store.Remove(store.BaseDir()); err != nil {
		t.Fatalf("Remove returned error: %v", err)
	}
	if _, err := os.Stat(store.BaseDir()); err != nil {
		t.Fatal("the base dir itself must never be removed")
	}
}
