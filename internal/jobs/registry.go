package jobs

import (
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound は指定されたジョブIDが存在しないことを示します。
	ErrNotFound = errors.New("job not found")
	// ErrInvalidTransition は許可されていない状態遷移を示します。
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrJobActive は未終端のジョブに対する削除要求を示します。
	ErrJobActive = errors.New("job is still active")
)

const shardCount = 32

// Registry はジョブレコードをメモリ上で管理する並行安全なストアです。
// ジョブIDでシャードに分散するため、異なるジョブへの操作は互いにブロックしません。
type Registry struct {
	shards [shardCount]registryShard
	now    func() time.Time
}

type registryShard struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// NewRegistry は Registry を作成します。
func NewRegistry() *Registry {
	r := &Registry{now: time.Now}
	for i := range r.shards {
		r.shards[i].records = make(map[string]*Record)
	}
	return r
}

func (r *Registry) shardFor(jobID string) *registryShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(jobID))
	return &r.shards[h.Sum32()%shardCount]
}

// TransitionPayload は終端遷移時に付与する結果またはエラーです。
type TransitionPayload struct {
	Result *Result
	Error  *ErrorInfo
}

// Create は新しいジョブを queued 状態で登録し、スナップショットを返します。
func (r *Registry) Create(category Category, inputRefs []string) (*Record, error) {
	if !category.Valid() {
		return nil, fmt.Errorf("unknown category: %s", category)
	}
	record := &Record{
		JobID:     uuid.New().String(),
		Category:  category,
		Status:    StatusQueued,
		InputRefs: append([]string(nil), inputRefs...),
		CreatedAt: r.now().UTC(),
	}

	shard := r.shardFor(record.JobID)
	shard.mu.Lock()
	shard.records[record.JobID] = record
	shard.mu.Unlock()

	return copyRecord(record), nil
}

// Transition はジョブの状態を遷移させます。
// 許可される遷移は queued→processing, processing→completed, processing→failed のみで、
// 終端遷移時は CompletedAt と ProcessingTimeSeconds を確定し、
// completed なら Result を、failed なら Error を付与します。
func (r *Registry) Transition(jobID string, to Status, payload TransitionPayload) error {
	shard := r.shardFor(jobID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	record, ok := shard.records[jobID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}
	if !allowedTransition(record.Status, to) {
		return fmt.Errorf("%w: %s → %s (job=%s)", ErrInvalidTransition, record.Status, to, jobID)
	}

	switch to {
	case StatusProcessing:
		record.Status = StatusProcessing
	case StatusCompleted:
		if payload.Result == nil {
			return fmt.Errorf("completed transition requires a result (job=%s)", jobID)
		}
		record.Status = StatusCompleted
		record.Result = copyResult(payload.Result)
		record.Error = nil
		r.finalize(record)
	case StatusFailed:
		if payload.Error == nil {
			return fmt.Errorf("failed transition requires an error (job=%s)", jobID)
		}
		record.Status = StatusFailed
		errInfo := *payload.Error
		record.Error = &errInfo
		record.Result = nil
		r.finalize(record)
	default:
		return fmt.Errorf("%w: %s → %s (job=%s)", ErrInvalidTransition, record.Status, to, jobID)
	}

	return nil
}

func (r *Registry) finalize(record *Record) {
	now := r.now().UTC()
	record.CompletedAt = &now
	record.ProcessingTimeSeconds = now.Sub(record.CreatedAt).Seconds()
}

// Get はジョブのスナップショットを返します。
func (r *Registry) Get(jobID string) (*Record, error) {
	shard := r.shardFor(jobID)
	shard.mu.RLock()
	defer shard.mu.RUnlock()

	record, ok := shard.records[jobID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}
	return copyRecord(record), nil
}

// List は全ジョブの概要を返します。順序は保証されません。
func (r *Registry) List() []Summary {
	var out []Summary
	for i := range r.shards {
		shard := &r.shards[i]
		shard.mu.RLock()
		for _, record := range shard.records {
			out = append(out, Summary{
				JobID:     record.JobID,
				Category:  record.Category,
				Status:    record.Status,
				CreatedAt: record.CreatedAt,
			})
		}
		shard.mu.RUnlock()
	}
	return out
}

// Counts は状態ごとのジョブ数を返します。
func (r *Registry) Counts() map[Status]int {
	counts := map[Status]int{
		StatusQueued:     0,
		StatusProcessing: 0,
		StatusCompleted:  0,
		StatusFailed:     0,
	}
	for _, s := range r.List() {
		counts[s.Status]++
	}
	return counts
}

// Remove はジョブレコードを削除します。存在しないIDへの呼び出しは成功扱いです（冪等）。
// 未終端のジョブは削除できません。
func (r *Registry) Remove(jobID string) error {
	shard := r.shardFor(jobID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	record, ok := shard.records[jobID]
	if !ok {
		return nil
	}
	if !record.Status.Terminal() {
		return fmt.Errorf("%w: %s (status=%s)", ErrJobActive, jobID, record.Status)
	}
	delete(shard.records, jobID)
	return nil
}

func allowedTransition(from, to Status) bool {
	switch from {
	case StatusQueued:
		return to == StatusProcessing
	case StatusProcessing:
		return to == StatusCompleted || to == StatusFailed
	}
	return false
}

func copyRecord(record *Record) *Record {
	out := &Record{
		JobID:                 record.JobID,
		Category:              record.Category,
		Status:                record.Status,
		InputRefs:             append([]string(nil), record.InputRefs...),
		CreatedAt:             record.CreatedAt,
		ProcessingTimeSeconds: record.ProcessingTimeSeconds,
		Result:                copyResult(record.Result),
	}
	if record.CompletedAt != nil {
		t := *record.CompletedAt
		out.CompletedAt = &t
	}
	if record.Error != nil {
		e := *record.Error
		out.Error = &e
	}
	return out
}
