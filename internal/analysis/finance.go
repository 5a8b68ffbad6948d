package analysis

import (
	"context"
	"log"
	"regexp"
	"strconv"
	"strings"
)

// 損益計算書から抽出する科目と、その金額を捕捉する正規表現です。
// 金額はカンマ区切りの小数表記を前提とし、費用系科目は括弧書きで表れます。
var financePatterns = []struct {
	label   string
	pattern *regexp.Regexp
}{
	{"Total Revenue", regexp.MustCompile(`(?i)Total Revenue\s+([\d,]+\.\d+)`)},
	{"Total Cost of Sales", regexp.MustCompile(`(?i)Total Cost of sales\s+\(([\d,]+\.\d+)\)`)},
	{"Profit Before Tax", regexp.MustCompile(`(?i)Profit Before Tax\s+([\d,]+\.\d+)`)},
	{"Total Expenses", regexp.MustCompile(`(?i)Total Expenses\s+\(([\d,]+\.\d+)\)`)},
	{"Net Profit", regexp.MustCompile(`(?i)Net Profit/\(Loss\)\s+([\d,]+\.\d+)`)},
	{"Income Tax Expenses", regexp.MustCompile(`(?i)Income Tax Expenses\s+([\d,]+\.\d+)`)},
	{"Profit For the Year", regexp.MustCompile(`(?i)Profit For the Year\s+([\d,]+\.\d+)`)},
}

// FinanceStrategy は固定レイアウトの財務諸表テキストから科目金額を抽出します。
type FinanceStrategy struct {
	logger *log.Logger
}

// NewFinanceStrategy は FinanceStrategy を作成します。
func NewFinanceStrategy(logger *log.Logger) *FinanceStrategy {
	return &FinanceStrategy{logger: logger}
}

// Extract は文書テキストを科目ごとの正規表現で走査し、金額マップを返します。
// 科目が一つも見つからない場合は空の LineItems を返します。
func (s *FinanceStrategy) Extract(ctx context.Context, path string) (*Extraction, error) {
	text, err := readDocumentText(ctx, path, s.logger)
	if err != nil {
		return nil, err
	}

	items := make(map[string]float64)
	for _, entry := range financePatterns {
		match := entry.pattern.FindStringSubmatch(text)
		if match == nil {
			continue
		}
		value, err := strconv.ParseFloat(strings.ReplaceAll(match[1], ",", ""), 64)
		if err != nil {
			s.logger.Printf("skipping unparsable amount label=%q raw=%q error=%v", entry.label, match[1], err)
			continue
		}
		items[entry.label] = value
	}

	return &Extraction{LineItems: items, TextLength: len(text)}, nil
}
