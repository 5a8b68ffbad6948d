package jobs

// Result はカテゴリ別の分析結果を保持します。
// Category に対応するフィールドのみが設定されます。
type Result struct {
	Finance  *FinanceResult  `json:"finance,omitempty"`
	Sales    *SalesResult    `json:"sales,omitempty"`
	Combined *CombinedResult `json:"combined,omitempty"`
}

// FinanceResult は財務諸表分析の結果です。
// Metrics のキーは明細ラベル（大文字小文字を区別）、値は符号付き数値です。
// キーが存在しないことは「原文書に見つからなかった」ことを意味します。
type FinanceResult struct {
	Metrics    map[string]float64 `json:"metrics"`
	Ratios     map[string]string  `json:"ratios"`
	Narrative  string             `json:"narrative"`
	TextLength int                `json:"textLength"`
}

// SalesResult は売上データ分析の結果です。
// Columns は抽出対象行に絞り込んだ後の列名→行順の値リストです。
type SalesResult struct {
	Columns    map[string][]string `json:"columns"`
	Aggregates SalesAggregates     `json:"aggregates"`
	Narrative  string              `json:"narrative"`
}

// SalesAggregates は売上データから導出した集計値です。
// 前提となる列が欠けている場合、該当フィールドは未設定のままになります。
type SalesAggregates struct {
	TotalSaleValue    *float64           `json:"totalSaleValue,omitempty"`
	ByChannel         map[string]float64 `json:"byChannel,omitempty"`
	BySalesperson     map[string]float64 `json:"bySalesperson,omitempty"`
	CustomerFrequency map[string]int     `json:"customerFrequency,omitempty"`
}

// CombinedResult は財務・売上の両分析と統合ナラティブを保持します。
// Merged は両方のサブナラティブが揃った場合にのみ生成されます。
type CombinedResult struct {
	Finance *FinanceResult `json:"finance,omitempty"`
	Sales   *SalesResult   `json:"sales,omitempty"`
	Merged  string         `json:"merged"`
}

// Empty は集計値が一つも導出されなかったかどうかを返します。
func (a SalesAggregates) Empty() bool {
	return a.TotalSaleValue == nil &&
		len(a.ByChannel) == 0 &&
		len(a.BySalesperson) == 0 &&
		len(a.CustomerFrequency) == 0
}

func copyResult(r *Result) *Result {
	if r == nil {
		return nil
	}
	out := &Result{}
	out.Finance = copyFinanceResult(r.Finance)
	out.Sales = copySalesResult(r.Sales)
	if r.Combined != nil {
		out.Combined = &CombinedResult{
			Finance: copyFinanceResult(r.Combined.Finance),
			Sales:   copySalesResult(r.Combined.Sales),
			Merged:  r.Combined.Merged,
		}
	}
	return out
}

func copyFinanceResult(f *FinanceResult) *FinanceResult {
	if f == nil {
		return nil
	}
	out := &FinanceResult{
		Metrics:    make(map[string]float64, len(f.Metrics)),
		Ratios:     make(map[string]string, len(f.Ratios)),
		Narrative:  f.Narrative,
		TextLength: f.TextLength,
	}
	for k, v := range f.Metrics {
		out.Metrics[k] = v
	}
	for k, v := range f.Ratios {
		out.Ratios[k] = v
	}
	return out
}

func copySalesResult(s *SalesResult) *SalesResult {
	if s == nil {
		return nil
	}
	out := &SalesResult{
		Columns:   make(map[string][]string, len(s.Columns)),
		Narrative: s.Narrative,
	}
	for k, v := range s.Columns {
		out.Columns[k] = append([]string(nil), v...)
	}
	out.Aggregates = copySalesAggregates(s.Aggregates)
	return out
}

func copySalesAggregates(a SalesAggregates) SalesAggregates {
	out := SalesAggregates{}
	if a.TotalSaleValue != nil {
		v := *a.TotalSaleValue
		out.TotalSaleValue = &v
	}
	if a.ByChannel != nil {
		out.ByChannel = make(map[string]float64, len(a.ByChannel))
		for k, v := range a.ByChannel {
			out.ByChannel[k] = v
		}
	}
	if a.BySalesperson != nil {
		out.BySalesperson = make(map[string]float64, len(a.BySalesperson))
		for k, v := range a.BySalesperson {
			out.BySalesperson[k] = v
		}
	}
	if a.CustomerFrequency != nil {
		out.CustomerFrequency = make(map[string]int, len(a.CustomerFrequency))
		for k, v := range a.CustomerFrequency {
			out.CustomerFrequency[k] = v
		}
	}
	return out
}
