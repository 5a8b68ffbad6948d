package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/yourusername/ledger-lens/internal/jobs"
)

func completedRecord(result *jobs.Result) *jobs.Record {
	now := time.Now().UTC()
	return &jobs.Record{
		JobID:       "job-123",
		Category:    jobs.CategoryFinance,
		Status:      jobs.StatusCompleted,
		CreatedAt:   now,
		CompletedAt: &now,
		Result:      result,
	}
}

func TestRenderFinanceReport(t *testing.T) {
	record := completedRecord(&jobs.Result{Finance: &jobs.FinanceResult{
		Metrics: map[string]float64{
			"Total Revenue":       1000,
			"Total Cost of Sales": 400,
		},
		Ratios:    map[string]string{"Gross Margin": "60.0%"},
		Narrative: "The company shows a healthy gross margin and stable cost base.",
	}})

	data, err := Render(record)
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Fatal("output must be a PDF document")
	}
}

func TestRenderSalesReportWithChart(t *testing.T) {
	total := 1750.0
	record := completedRecord(&jobs.Result{Sales: &jobs.SalesResult{
		Columns: map[string][]string{"Item Name": {"Product Sales"}},
		Aggregates: jobs.SalesAggregates{
			TotalSaleValue:    &total,
			ByChannel:         map[string]float64{"Online": 1250, "Retail": 500},
			CustomerFrequency: map[string]int{"C001": 2, "C002": 1},
		},
		Narrative: "Online remains the strongest channel.",
	}})
	record.Category = jobs.CategorySales

	data, err := Render(record)
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Fatal("output must be a PDF document")
	}
}

func TestRenderCombinedReport(t *testing.T) {
	record := completedRecord(&jobs.Result{Combined: &jobs.CombinedResult{
		Finance: &jobs.FinanceResult{
			Metrics: map[string]float64{"Total Revenue": 1000},
			Ratios:  map[string]string{"Gross Margin": "60.0%"},
		},
		Sales: &jobs.SalesResult{
			Columns: map[string][]string{"Item Name": {"Product Sales"}},
			Aggregates: jobs.SalesAggregates{
				BySalesperson: map[string]float64{"Alice": 1250},
			},
		},
		Merged: "Overall the business is performing well.",
	}})
	record.Category = jobs.CategoryCombined

	data, err := Render(record)
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Fatal("output must be a PDF document")
	}
}

func TestRenderRejectsNonCompletedJobs(t *testing.T) {
	record := &jobs.Record{
		JobID:    "job-123",
		Category: jobs.CategoryFinance,
		Status:   jobs.StatusProcessing,
	}
	if _, err := Render(record); err == nil {
		t.Fatal("expected error for a non-completed job")
	}

	if _, err := Render(nil); err == nil {
		t.Fatal("expected error for a nil record")
	}
}

func TestRenderRejectsEmptyResult(t *testing.T) {
	record := completedRecord(&jobs.Result{})
	if _, err := Render(record); err == nil {
		t.Fatal("expected error for a result without analysis")
	}
}
