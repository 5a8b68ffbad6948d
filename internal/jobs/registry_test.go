package jobs

import (
	"errors"
	"sync"
	"testing"
)

func TestCreateStartsQueued(t *testing.T) {
	reg := NewRegistry()

	record, err := reg.Create(CategoryFinance, []string{"/tmp/in.pdf"})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if record.Status != StatusQueued {
		t.Fatalf("unexpected status: %s", record.Status)
	}
	if record.JobID == "" {
		t.Fatal("expected a job id")
	}
	if record.Result != nil || record.Error != nil {
		t.Fatal("non-terminal record must not carry result or error")
	}
	if record.CompletedAt != nil {
		t.Fatal("CompletedAt must be unset before a terminal transition")
	}
}

func TestCreateRejectsUnknownCategory(t *testing.T) {
	reg := NewRegistry()
	if _, err := reg.Create(Category("invoice"), nil); err == nil {
		t.Fatal("expected error for unknown category")
	}
}

func TestTransitionSequence(t *testing.T) {
	reg := NewRegistry()
	record, err := reg.Create(CategoryFinance, nil)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if err := reg.Transition(record.JobID, StatusProcessing, TransitionPayload{}); err != nil {
		t.Fatalf("queued→processing failed: %v", err)
	}

	result := &Result{Finance: &FinanceResult{
		Metrics: map[string]float64{"Total Revenue": 1000},
		Ratios:  map[string]string{"Gross Margin": "60.0%"},
	}}
	if err := reg.Transition(record.JobID, StatusCompleted, TransitionPayload{Result: result}); err != nil {
		t.Fatalf("processing→completed failed: %v", err)
	}

	got, err := reg.Get(record.JobID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Fatalf("unexpected status: %s", got.Status)
	}
	if got.Result == nil || got.Result.Finance == nil {
		t.Fatal("completed record must carry its result")
	}
	if got.Error != nil {
		t.Fatal("completed record must not carry an error")
	}
	if got.CompletedAt == nil {
		t.Fatal("CompletedAt must be set at the terminal transition")
	}
}

func TestTransitionRejectsSkipAndTerminalReentry(t *testing.T) {
	reg := NewRegistry()
	record, _ := reg.Create(CategorySales, nil)

	// queued から直接 completed には遷移できない
	err := reg.Transition(record.JobID, StatusCompleted, TransitionPayload{Result: &Result{Sales: &SalesResult{}}})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	if err := reg.Transition(record.JobID, StatusProcessing, TransitionPayload{}); err != nil {
		t.Fatalf("queued→processing failed: %v", err)
	}
	if err := reg.Transition(record.JobID, StatusFailed, TransitionPayload{Error: &ErrorInfo{Code: "IO_ERROR", Message: "boom"}}); err != nil {
		t.Fatalf("processing→failed failed: %v", err)
	}

	// 終端状態からの再遷移は全て拒否される
	for _, to := range []Status{StatusQueued, StatusProcessing, StatusCompleted, StatusFailed} {
		err := reg.Transition(record.JobID, to, TransitionPayload{Result: &Result{}, Error: &ErrorInfo{}})
		if !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("expected ErrInvalidTransition for failed→%s, got %v", to, err)
		}
	}

	got, _ := reg.Get(record.JobID)
	if got.Status != StatusFailed {
		t.Fatalf("terminal state changed: %s", got.Status)
	}
	if got.Error == nil || got.Error.Code != "IO_ERROR" {
		t.Fatalf("failed record must keep its error: %+v", got.Error)
	}
	if got.Result != nil {
		t.Fatal("failed record must not carry a result")
	}
}

func TestTransitionUnknownJob(t *testing.T) {
	reg := NewRegistry()
	err := reg.Transition("no-such-id", StatusProcessing, TransitionPayload{})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetUnknownJob(t *testing.T) {
	reg := NewRegistry()
	if _, err := reg.Get("no-such-id"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetReturnsSnapshot(t *testing.T) {
	reg := NewRegistry()
	record, _ := reg.Create(CategoryFinance, []string{"/tmp/a.pdf"})
	_ = reg.Transition(record.JobID, StatusProcessing, TransitionPayload{})
	_ = reg.Transition(record.JobID, StatusCompleted, TransitionPayload{Result: &Result{
		Finance: &FinanceResult{Metrics: map[string]float64{"Net Profit": 100}},
	}})

	first, _ := reg.Get(record.JobID)
	first.Result.Finance.Metrics["Net Profit"] = -1
	first.InputRefs[0] = "tampered"

	second, _ := reg.Get(record.JobID)
	if second.Result.Finance.Metrics["Net Profit"] != 100 {
		t.Fatal("snapshot mutation leaked into the registry")
	}
	if second.InputRefs[0] != "/tmp/a.pdf" {
		t.Fatal("inputRefs mutation leaked into the registry")
	}
}

func TestRemoveIdempotentAndGuarded(t *testing.T) {
	reg := NewRegistry()
	record, _ := reg.Create(CategorySales, nil)

	// 未終端のジョブは削除できない
	if err := reg.Remove(record.JobID); !errors.Is(err, ErrJobActive) {
		t.Fatalf("expected ErrJobActive, got %v", err)
	}

	_ = reg.Transition(record.JobID, StatusProcessing, TransitionPayload{})
	_ = reg.Transition(record.JobID, StatusFailed, TransitionPayload{Error: &ErrorInfo{Code: "IO_ERROR", Message: "x"}})

	if err := reg.Remove(record.JobID); err != nil {
		t.Fatalf("Remove returned error: %v", err)
	}
	// 二回目も成功する（冪等）
	if err := reg.Remove(record.JobID); err != nil {
		t.Fatalf("second Remove returned error: %v", err)
	}
	if _, err := reg.Get(record.JobID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after removal, got %v", err)
	}
}

func TestCountsAndList(t *testing.T) {
	reg := NewRegistry()
	a, _ := reg.Create(CategoryFinance, nil)
	b, _ := reg.Create(CategorySales, nil)
	_, _ = reg.Create(CategoryCombined, nil)

	_ = reg.Transition(a.JobID, StatusProcessing, TransitionPayload{})
	_ = reg.Transition(b.JobID, StatusProcessing, TransitionPayload{})
	_ = reg.Transition(b.JobID, StatusCompleted, TransitionPayload{Result: &Result{Sales: &SalesResult{}}})

	counts := reg.Counts()
	if counts[StatusQueued] != 1 || counts[StatusProcessing] != 1 || counts[StatusCompleted] != 1 || counts[StatusFailed] != 0 {
		t.Fatalf("unexpected counts: %+v", counts)
	}
	if len(reg.List()) != 3 {
		t.Fatalf("unexpected list length: %d", len(reg.List()))
	}
}

// 並行して遷移と参照を行っても、結果と状態が食い違ったレコードが
// 観測されないことを確認します。
func TestConcurrentTransitionsAndReads(t *testing.T) {
	reg := NewRegistry()

	const jobsN = 40
	ids := make([]string, 0, jobsN)
	for i := 0; i < jobsN; i++ {
		record, err := reg.Create(CategoryFinance, nil)
		if err != nil {
			t.Fatalf("Create returned error: %v", err)
		}
		ids = append(ids, record.JobID)
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(2)
		go func(jobID string) {
			defer wg.Done()
			_ = reg.Transition(jobID, StatusProcessing, TransitionPayload{})
			_ = reg.Transition(jobID, StatusCompleted, TransitionPayload{Result: &Result{
				Finance: &FinanceResult{Metrics: map[string]float64{"Total Revenue": 1}},
			}})
		}(id)
		go func(jobID string) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				got, err := reg.Get(jobID)
				if err != nil {
					t.Errorf("Get returned error: %v", err)
					return
				}
				switch got.Status {
				case StatusQueued, StatusProcessing:
					if got.Result != nil || got.Error != nil {
						t.Errorf("non-terminal record carries payload: %+v", got)
						return
					}
				case StatusCompleted:
					if got.Result == nil || got.Error != nil {
						t.Errorf("completed record torn: %+v", got)
						return
					}
				case StatusFailed:
					t.Errorf("unexpected failed status")
					return
				default:
					t.Errorf("unknown status: %s", got.Status)
					return
				}
			}
		}(id)
	}
	wg.Wait()

	for _, id := range ids {
		got, _ := reg.Get(id)
		if got.Status != StatusCompleted {
			t.Fatalf("job %s did not reach completed: %s", id, got.Status)
		}
	}
}
