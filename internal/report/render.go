// Package report は完了済み分析ジョブのPDFレポート生成を提供します。
package report

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/go-pdf/fpdf"

	"github.com/yourusername/ledger-lens/internal/jobs"
)

const (
	pageMargin   = 15.0
	contentWidth = 180.0
	barMaxWidth  = 120.0
	barHeight    = 6.0
)

// Render は完了済みジョブの結果からPDFレポートを生成します。
// 完了以外の状態のジョブは受け付けません。
func Render(record *jobs.Record) ([]byte, error) {
	if record == nil || record.Status != jobs.StatusCompleted || record.Result == nil {
		return nil, fmt.Errorf("report requires a completed job")
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)
	pdf.AddPage()

	writeHeader(pdf, record)

	result := record.Result
	switch {
	case result.Finance != nil:
		writeFinanceSection(pdf, result.Finance)
	case result.Sales != nil:
		writeSalesSection(pdf, result.Sales)
	case result.Combined != nil:
		if result.Combined.Finance != nil {
			writeFinanceSection(pdf, result.Combined.Finance)
		}
		if result.Combined.Sales != nil {
			writeSalesSection(pdf, result.Combined.Sales)
		}
		writeSectionTitle(pdf, "Combined Analysis")
		writeNarrative(pdf, result.Combined.Merged)
	default:
		return nil, fmt.Errorf("job result carries no analysis")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render report: %w", err)
	}
	return buf.Bytes(), nil
}

func writeHeader(pdf *fpdf.Fpdf, record *jobs.Record) {
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(contentWidth, 10, "Business Analysis Report", "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(100, 100, 100)
	pdf.CellFormat(contentWidth, 5, fmt.Sprintf("Job %s", record.JobID), "", 1, "L", false, 0, "")
	pdf.CellFormat(contentWidth, 5,
		fmt.Sprintf("Category: %s    Created: %s", record.Category, record.CreatedAt.Format("2006-01-02 15:04:05 MST")),
		"", 1, "L", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(4)
}

func writeSectionTitle(pdf *fpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(contentWidth, 8, title, "", 1, "L", false, 0, "")
	pdf.Ln(1)
}

func writeFinanceSection(pdf *fpdf.Fpdf, fr *jobs.FinanceResult) {
	writeSectionTitle(pdf, "Financial Statement Analysis")

	if len(fr.Metrics) > 0 {
		writeSubTitle(pdf, "Extracted Metrics")
		pdf.SetFont("Helvetica", "", 10)
		for _, key := range sortedKeys(fr.Metrics) {
			pdf.CellFormat(100, 6, key, "B", 0, "L", false, 0, "")
			pdf.CellFormat(80, 6, formatAmount(fr.Metrics[key]), "B", 1, "R", false, 0, "")
		}
		pdf.Ln(3)
	}

	if len(fr.Ratios) > 0 {
		writeSubTitle(pdf, "Calculated Ratios")
		pdf.SetFont("Helvetica", "", 10)
		for _, key := range sortedKeys(fr.Ratios) {
			pdf.CellFormat(100, 6, key, "B", 0, "L", false, 0, "")
			pdf.CellFormat(80, 6, fr.Ratios[key], "B", 1, "R", false, 0, "")
		}
		pdf.Ln(3)
	}

	writeNarrative(pdf, fr.Narrative)
}

func writeSalesSection(pdf *fpdf.Fpdf, sr *jobs.SalesResult) {
	writeSectionTitle(pdf, "Sales Analysis")

	agg := sr.Aggregates
	if agg.TotalSaleValue != nil {
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(100, 6, "Total Sale Value", "B", 0, "L", false, 0, "")
		pdf.CellFormat(80, 6, formatAmount(*agg.TotalSaleValue), "B", 1, "R", false, 0, "")
		pdf.Ln(3)
	}

	// 売上構成のバーチャートはチャネル別を優先し、なければ担当者別を描く
	if len(agg.ByChannel) > 0 {
		writeSubTitle(pdf, "Revenue by Channel")
		writeBarChart(pdf, agg.ByChannel)
	} else if len(agg.BySalesperson) > 0 {
		writeSubTitle(pdf, "Revenue by Salesperson")
		writeBarChart(pdf, agg.BySalesperson)
	}

	if len(agg.CustomerFrequency) > 0 {
		writeSubTitle(pdf, "Customer Frequency")
		pdf.SetFont("Helvetica", "", 10)
		for _, key := range sortedKeys(agg.CustomerFrequency) {
			pdf.CellFormat(100, 6, key, "B", 0, "L", false, 0, "")
			pdf.CellFormat(80, 6, fmt.Sprintf("%d", agg.CustomerFrequency[key]), "B", 1, "R", false, 0, "")
		}
		pdf.Ln(3)
	}

	writeNarrative(pdf, sr.Narrative)
}

func writeSubTitle(pdf *fpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(contentWidth, 6, title, "", 1, "L", false, 0, "")
}

func writeNarrative(pdf *fpdf.Fpdf, narrative string) {
	if narrative == "" {
		return
	}
	writeSubTitle(pdf, "Narrative")
	pdf.SetFont("Helvetica", "", 10)
	pdf.MultiCell(contentWidth, 5, narrative, "", "L", false)
	pdf.Ln(3)
}

// writeBarChart は値ごとの水平バーを描画します。最大値を基準幅にスケールします。
func writeBarChart(pdf *fpdf.Fpdf, values map[string]float64) {
	max := 0.0
	for _, v := range values {
		if v > max {
			max = v
		}
	}
	if max <= 0 {
		return
	}

	pdf.SetFont("Helvetica", "", 9)
	pdf.SetFillColor(66, 133, 244)
	for _, key := range sortedKeys(values) {
		value := values[key]
		pdf.CellFormat(40, barHeight+2, key, "", 0, "L", false, 0, "")

		width := barMaxWidth * value / max
		if width < 1 && value > 0 {
			width = 1
		}
		x, y := pdf.GetXY()
		pdf.Rect(x, y+1, width, barHeight, "F")
		pdf.SetX(x + barMaxWidth + 2)
		pdf.CellFormat(contentWidth-40-barMaxWidth-2, barHeight+2, formatAmount(value), "", 1, "R", false, 0, "")
	}
	pdf.Ln(3)
}

func formatAmount(value float64) string {
	return fmt.Sprintf("%.2f", value)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
