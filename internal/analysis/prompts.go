package analysis

import (
	"fmt"
	"sort"
	"strings"

	"github.com/yourusername/ledger-lens/internal/jobs"
)

// ナラティブ生成に渡すプロンプトを組み立てます。
// マップはキー昇順で描画し、同じ入力からは常に同じプロンプトが得られるようにします。

func financePrompt(metrics map[string]float64, ratios map[string]string) string {
	var b strings.Builder
	b.WriteString("You are a senior financial analyst.\n")
	b.WriteString("Using the following financial data, provide:\n")
	b.WriteString("- Summary of performance\n")
	b.WriteString("- Strengths and weaknesses\n")
	b.WriteString("- Cost efficiency analysis\n")
	b.WriteString("- Recommendations for improvement\n\n")

	b.WriteString("Extracted Metrics:\n")
	for _, key := range sortedKeys(metrics) {
		fmt.Fprintf(&b, "  %s: %g\n", key, metrics[key])
	}

	b.WriteString("\nCalculated Ratios:\n")
	for _, key := range sortedKeys(ratios) {
		fmt.Fprintf(&b, "  %s: %s\n", key, ratios[key])
	}

	b.WriteString("\nPlease provide a clear, professional analysis in 3-4 paragraphs.\n")
	return b.String()
}

func salesPrompt(columns map[string][]string, agg jobs.SalesAggregates) string {
	var b strings.Builder
	b.WriteString("You are a Senior Business Advisory analyst.\n")
	b.WriteString("Using the following business advisory data, generate an analysis report and a summary section.\n\n")

	b.WriteString("IMPORTANT FORMATTING INSTRUCTIONS for display:\n")
	b.WriteString("1. DO NOT include any title like \"Business Advisory Analysis Report\".\n")
	b.WriteString("2. Format every section header with the prefix \"//\" followed by Title Case text and the suffix \"\\\\\".\n")
	b.WriteString("3. DO NOT use asterisks, colons, markdown headings, or all-caps for headers.\n")
	b.WriteString("4. The final section, a concise wrap-up, must be titled //Summary\\\\.\n")
	b.WriteString("5. DO NOT remove prefix zeros from identifiers like Customer ID or Item Code.\n\n")

	b.WriteString("Example header format:\n//Executive Summary\\\\\n\n")

	b.WriteString("Make sure you provide the following sections:\n")
	b.WriteString("- Executive Summary (total sales, growth, standout performers)\n")
	b.WriteString("- Sales Performance Analysis (top salesperson and their customers)\n")
	b.WriteString("- Cost Efficiency Analysis (best performing channel)\n")
	b.WriteString("- Product/Service Insight\n")
	b.WriteString("- Actionable Recommendations\n")
	b.WriteString("- A final, separate paragraph titled Summary\n\n")

	b.WriteString("Extracted Sales Rows:\n")
	for _, key := range sortedKeys(columns) {
		fmt.Fprintf(&b, "  %s: %s\n", key, strings.Join(columns[key], ", "))
	}

	b.WriteString("\nCalculated Aggregates:\n")
	if agg.TotalSaleValue != nil {
		fmt.Fprintf(&b, "  Total Sale: %g\n", *agg.TotalSaleValue)
	}
	writeFloatMap(&b, "Channel Data", agg.ByChannel)
	writeFloatMap(&b, "Salesperson Data", agg.BySalesperson)
	if len(agg.CustomerFrequency) > 0 {
		b.WriteString("  Customer ID Counter:\n")
		for _, key := range sortedKeys(agg.CustomerFrequency) {
			fmt.Fprintf(&b, "    %s: %d\n", key, agg.CustomerFrequency[key])
		}
	}

	b.WriteString("\nPlease provide a clear, professional analysis in 3-4 paragraphs.\n")
	return b.String()
}

func combinePrompt(financeNarrative, salesNarrative string) string {
	var b strings.Builder
	b.WriteString("You are a Senior Business Advisory analyst who needs to generate a report containing ")
	b.WriteString("information about your company's financial status and operation, and overall business suggestion.\n\n")
	b.WriteString("You have two analysis reports generated from a financial statement and a sales statement. ")
	b.WriteString("Merge the two analysis reports into one comprehensive report.\n\n")

	b.WriteString("Financial Analysis:\n")
	b.WriteString(financeNarrative)
	b.WriteString("\n\nSales Analysis:\n")
	b.WriteString(salesNarrative)

	b.WriteString("\n\nPlease provide a clear, professional analysis with one paragraph each containing ")
	b.WriteString("information about your company's financial status, their operation details, and overall business suggestion.\n")
	return b.String()
}

func writeFloatMap(b *strings.Builder, title string, values map[string]float64) {
	if len(values) == 0 {
		return
	}
	fmt.Fprintf(b, "  %s:\n", title)
	for _, key := range sortedKeys(values) {
		fmt.Fprintf(b, "    %s: %g\n", key, values[key])
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
