package analysis

import (
	"math"
	"strconv"
	"strings"

	"github.com/yourusername/ledger-lens/internal/jobs"
)

// DeriveFinanceRatios は抽出済みの科目金額から収益性指標を導出します。
// Total Revenue が存在しゼロでない場合にのみ各マージンを計算し、
// 分子となる科目が欠けている指標は出力に含めません。
func DeriveFinanceRatios(metrics map[string]float64) map[string]string {
	ratios := make(map[string]string)

	revenue, ok := metrics["Total Revenue"]
	if !ok || revenue == 0 {
		return ratios
	}

	if cost, ok := metrics["Total Cost of Sales"]; ok {
		ratios["Gross Margin"] = formatPercent((revenue - cost) / revenue * 100)
	}
	if net, ok := metrics["Net Profit"]; ok {
		ratios["Net Profit Margin"] = formatPercent(net / revenue * 100)
	}
	if pbt, ok := metrics["Profit Before Tax"]; ok {
		ratios["PBT Margin"] = formatPercent(pbt / revenue * 100)
	}
	if expenses, ok := metrics["Total Expenses"]; ok {
		ratios["Expense Ratio"] = formatPercent(expenses / revenue * 100)
	}

	return ratios
}

// formatPercent は小数第2位までに丸めたパーセント表記を返します。
// 整数値になった場合も "60.0%" のように小数点以下1桁を残します。
func formatPercent(value float64) string {
	rounded := math.Round(value*100) / 100
	s := strconv.FormatFloat(rounded, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s + "%"
}

// DeriveSalesAggregates は販売行から集計値を導出します。
// 列の有無で集計対象を判断し、金額として解釈できないセルは読み飛ばします。
func DeriveSalesAggregates(ex *Extraction) jobs.SalesAggregates {
	agg := jobs.SalesAggregates{}
	if ex == nil || len(ex.Rows) == 0 {
		return agg
	}

	if _, ok := ex.Columns[colTotalSaleValue]; ok {
		total := 0.0
		for _, row := range ex.Rows {
			if v, ok := parseAmount(row[colTotalSaleValue]); ok {
				total += v
			}
		}
		agg.TotalSaleValue = &total

		agg.ByChannel = sumByKey(ex, colChannel)
		agg.BySalesperson = sumByKey(ex, colSalesperson)
	}

	if _, ok := ex.Columns[colCustomerID]; ok {
		freq := make(map[string]int)
		for _, row := range ex.Rows {
			if id := row[colCustomerID]; id != "" {
				freq[id]++
			}
		}
		if len(freq) > 0 {
			agg.CustomerFrequency = freq
		}
	}

	return agg
}

// sumByKey は指定列の値ごとに Total Sale Value を合算します。
func sumByKey(ex *Extraction, column string) map[string]float64 {
	if _, ok := ex.Columns[column]; !ok {
		return nil
	}
	sums := make(map[string]float64)
	for _, row := range ex.Rows {
		key := row[column]
		if key == "" {
			continue
		}
		if v, ok := parseAmount(row[colTotalSaleValue]); ok {
			sums[key] += v
		}
	}
	if len(sums) == 0 {
		return nil
	}
	return sums
}

func parseAmount(raw string) (float64, bool) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if cleaned == "" {
		return 0, false
	}
	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}
