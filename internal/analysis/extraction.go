// Package analysis は業務文書の分析パイプラインを提供します。
// 文書からの抽出、指標の導出、ナラティブ生成、ジョブ実行とHTTPハンドラーを含みます。
package analysis

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Extraction は抽出戦略の実行結果です。
// 固定レイアウト戦略は LineItems を、表形式戦略は Columns と Rows を設定します。
type Extraction struct {
	LineItems  map[string]float64
	Columns    map[string][]string
	Rows       []map[string]string
	TextLength int
}

// Empty は抽出結果が空（対象データなし）かどうかを返します。
func (e *Extraction) Empty() bool {
	return len(e.LineItems) == 0 && len(e.Rows) == 0
}

// Strategy は文書カテゴリごとの抽出戦略です。
// 対象データが見つからない場合は空の Extraction を返し、
// エラーはファイル自体が読めない場合にのみ返します。
type Strategy interface {
	Extract(ctx context.Context, path string) (*Extraction, error)
}

// readDocumentText は文書ファイルからテキストを読み出します。
// PDFはページ内容を展開して連結し、それ以外はプレーンテキストとして扱います。
func readDocumentText(ctx context.Context, path string, logger *log.Logger) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("failed to access document: %w", err)
	}

	if strings.ToLower(filepath.Ext(path)) != ".pdf" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read document: %w", err)
		}
		return string(data), nil
	}

	outDir, err := os.MkdirTemp("", "ledger-lens-extract-")
	if err != nil {
		return "", fmt.Errorf("failed to create extraction dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	if err := api.ExtractContentFile(path, outDir, nil, conf); err != nil {
		// 破損PDF等で内容を展開できない場合はデータなしとして扱う
		logger.Printf("pdf content extraction failed path=%s error=%v", path, err)
		return "", nil
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		return "", fmt.Errorf("failed to read extraction dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	var builder strings.Builder
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(outDir, name))
		if err != nil {
			return "", fmt.Errorf("failed to read extracted page: %w", err)
		}
		builder.Write(data)
		builder.WriteByte('\n')
	}
	return builder.String(), nil
}
