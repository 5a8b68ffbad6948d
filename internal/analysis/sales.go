package analysis

import (
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// 売上データで参照する列名です。ヘッダー行との照合は大文字小文字を区別しません。
const (
	colItemName       = "Item Name"
	colTotalSaleValue = "Total Sale Value"
	colChannel        = "Channel"
	colSalesperson    = "Salesperson"
	colCustomerID     = "Customer ID"

	salesMarker = "sales"
)

// SalesStrategy は表形式の売上データから販売行を抽出します。
// 先頭行をヘッダーとして扱い、Item Name に "sales" を含む行のみを対象にします。
type SalesStrategy struct {
	logger *log.Logger
}

// NewSalesStrategy は SalesStrategy を作成します。
func NewSalesStrategy(logger *log.Logger) *SalesStrategy {
	return &SalesStrategy{logger: logger}
}

func (s *SalesStrategy) Extract(ctx context.Context, path string) (*Extraction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to access document: %w", err)
	}

	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		rows, err = readWorkbookRows(path, s.logger)
	case ".csv":
		rows, err = readCSVRows(path)
	default:
		// 表形式として解釈できない拡張子はデータなしとして扱う
		s.logger.Printf("unsupported tabular format path=%s", path)
		return &Extraction{Columns: map[string][]string{}}, nil
	}
	if err != nil {
		return nil, err
	}

	return buildSalesExtraction(rows), nil
}

// readWorkbookRows はワークブックの最初のシートを行列として読み出します。
// 形式が壊れていて開けない場合はデータなしとして空を返します。
func readWorkbookRows(path string, logger *log.Logger) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		logger.Printf("workbook open failed path=%s error=%v", path, err)
		return nil, nil
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		logger.Printf("workbook read failed path=%s sheet=%s error=%v", path, sheets[0], err)
		return nil, nil
	}
	return rows, nil
}

func readCSVRows(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open document: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}
	return rows, nil
}

// buildSalesExtraction はヘッダー行を基準に販売行を選別し、
// 列単位のビューと行単位のビューの両方を構築します。
func buildSalesExtraction(rows [][]string) *Extraction {
	out := &Extraction{Columns: map[string][]string{}}
	if len(rows) == 0 {
		return out
	}

	headers := make([]string, len(rows[0]))
	itemNameIdx := -1
	for i, h := range rows[0] {
		headers[i] = strings.TrimSpace(h)
		if strings.EqualFold(headers[i], colItemName) {
			itemNameIdx = i
		}
	}
	if itemNameIdx < 0 {
		return out
	}

	for _, row := range rows[1:] {
		if itemNameIdx >= len(row) {
			continue
		}
		if !strings.Contains(strings.ToLower(row[itemNameIdx]), salesMarker) {
			continue
		}

		record := make(map[string]string, len(headers))
		for i, header := range headers {
			if header == "" {
				continue
			}
			value := ""
			if i < len(row) {
				value = strings.TrimSpace(row[i])
			}
			record[header] = value
			out.Columns[header] = append(out.Columns[header], value)
		}
		out.Rows = append(out.Rows, record)
	}

	return out
}
