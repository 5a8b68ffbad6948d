// Package jobs は分析ジョブの状態管理機能を提供します。
package jobs

import "time"

// Category はジョブが扱う文書の種別を表します。
type Category string

const (
	CategoryFinance  Category = "finance"
	CategorySales    Category = "sales"
	CategoryCombined Category = "combined"
)

// Valid はカテゴリが既知の値かどうかを返します。
func (c Category) Valid() bool {
	switch c {
	case CategoryFinance, CategorySales, CategoryCombined:
		return true
	}
	return false
}

// Status はジョブの実行状態を表します。
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal は終端状態（これ以上遷移しない状態）かどうかを返します。
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ErrorInfo はジョブ失敗時のエラー情報を保持します。
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Record はジョブの現在状態を表します。
// Result と Error は排他で、どちらも終端状態でのみ設定されます。
type Record struct {
	JobID                 string     `json:"jobId"`
	Category              Category   `json:"category"`
	Status                Status     `json:"status"`
	InputRefs             []string   `json:"inputRefs"`
	CreatedAt             time.Time  `json:"createdAt"`
	CompletedAt           *time.Time `json:"completedAt,omitempty"`
	ProcessingTimeSeconds float64    `json:"processingTimeSeconds,omitempty"`
	Result                *Result    `json:"result,omitempty"`
	Error                 *ErrorInfo `json:"error,omitempty"`
}

// Summary は一覧表示用のジョブ概要です。
type Summary struct {
	JobID     string    `json:"jobId"`
	Category  Category  `json:"category"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}
