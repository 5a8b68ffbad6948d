package analysis

import (
	"context"
	"errors"
	"fmt"
	"log"
	"mime/multipart"
	"sync"
	"time"

	"github.com/yourusername/ledger-lens/internal/jobs"
	"github.com/yourusername/ledger-lens/internal/storage"
)

// Depth は分析をどの段階まで実行するかを表します。
type Depth string

const (
	DepthMetrics Depth = "metrics" // 抽出のみ
	DepthRatios  Depth = "ratios"  // 抽出と指標導出
	DepthFull    Depth = "full"    // ナラティブ生成まで
)

// Valid は深度が既知の値かどうかを返します。
func (d Depth) Valid() bool {
	switch d {
	case DepthMetrics, DepthRatios, DepthFull:
		return true
	}
	return false
}

// Service は分析ジョブの受付と実行を担います。
// ジョブごとにゴルーチンを起動し、結果を registry の終端遷移で確定します。
type Service struct {
	registry   *jobs.Registry
	store      *storage.Local
	synth      Synthesizer
	finance    Strategy
	sales      Strategy
	jobTimeout time.Duration
	logger     *log.Logger
}

// NewService は Service を作成します。synth は未設定（nil）でもよく、
// その場合ナラティブは生成失敗として結果に記録されます。
// jobTimeout は1ジョブの抽出から生成までの実行全体に適用されます。
func NewService(registry *jobs.Registry, store *storage.Local, synth Synthesizer, jobTimeout time.Duration, logger *log.Logger) *Service {
	return &Service{
		registry:   registry,
		store:      store,
		synth:      synth,
		finance:    NewFinanceStrategy(logger),
		sales:      NewSalesStrategy(logger),
		jobTimeout: jobTimeout,
		logger:     logger,
	}
}

// SubmitUpload はアップロードされたファイルを保存してジョブを登録します。
// combined カテゴリは財務・売上の順に2ファイルを受け取ります。
func (s *Service) SubmitUpload(category jobs.Category, depth Depth, files []*multipart.FileHeader) (*jobs.Record, error) {
	if err := validateSubmission(category, depth, len(files)); err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(files))
	for _, fh := range files {
		path, err := s.store.SaveUpload(fh)
		if err != nil {
			for _, saved := range paths {
				_ = s.store.Remove(saved)
			}
			return nil, wrapStorageError(fh.Filename, err)
		}
		paths = append(paths, path)
	}

	record, err := s.submit(category, depth, paths)
	if err != nil {
		for _, saved := range paths {
			_ = s.store.Remove(saved)
		}
		return nil, err
	}
	return record, nil
}

// SubmitPaths はサーバー上の既存ファイルを対象にジョブを登録します。
// 指定されたパスはジョブ終了後も削除されません。
func (s *Service) SubmitPaths(category jobs.Category, depth Depth, paths []string) (*jobs.Record, error) {
	if err := validateSubmission(category, depth, len(paths)); err != nil {
		return nil, err
	}
	for _, path := range paths {
		if path == "" {
			return nil, newError(CodeInvalidInput, "ファイルパスが空です", nil)
		}
	}
	return s.submit(category, depth, paths)
}

func (s *Service) submit(category jobs.Category, depth Depth, paths []string) (*jobs.Record, error) {
	record, err := s.registry.Create(category, paths)
	if err != nil {
		return nil, newError(CodeInvalidInput, "ジョブを登録できませんでした", err)
	}

	s.logger.Printf("job submitted jobId=%s category=%s depth=%s inputs=%d",
		record.JobID, category, depth, len(paths))
	go s.run(record.JobID, category, depth, paths)

	return record, nil
}

func validateSubmission(category jobs.Category, depth Depth, inputs int) error {
	if !category.Valid() {
		return newError(CodeInvalidInput, fmt.Sprintf("未対応のカテゴリです: %s", category), nil)
	}
	if !depth.Valid() {
		return newError(CodeInvalidInput, fmt.Sprintf("未対応の分析深度です: %s", depth), nil)
	}
	want := 1
	if category == jobs.CategoryCombined {
		want = 2
	}
	if inputs != want {
		return newError(CodeInvalidInput,
			fmt.Sprintf("カテゴリ %s には %d ファイルが必要です（受信: %d）", category, want, inputs), nil)
	}
	return nil
}

func wrapStorageError(filename string, err error) *Error {
	switch {
	case errors.Is(err, storage.ErrTooLarge):
		return newError(CodeLimitExceeded, fmt.Sprintf("ファイルサイズが上限を超えています: %s", filename), err)
	case errors.Is(err, storage.ErrUnsupportedType):
		return newError(CodeInvalidInput, fmt.Sprintf("対応していないファイル形式です: %s", filename), err)
	default:
		return newError(CodeIOError, fmt.Sprintf("ファイルを保存できませんでした: %s", filename), err)
	}
}

// run はジョブ本体を実行します。ゴルーチン上で動作し、
// どのような経路でも必ず終端遷移（completed または failed）で終わります。
func (s *Service) run(jobID string, category jobs.Category, depth Depth, paths []string) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Printf("job panicked jobId=%s panic=%v", jobID, r)
			s.finish(jobID, nil, &jobs.ErrorInfo{
				Code:    CodeInternalError,
				Message: fmt.Sprintf("内部エラーが発生しました: %v", r),
			})
		}
	}()

	// 処理後、アップロード保存領域のファイルのみを削除する
	defer func() {
		for _, path := range paths {
			if err := s.store.Remove(path); err != nil {
				s.logger.Printf("upload cleanup failed jobId=%s path=%s error=%v", jobID, path, err)
			}
		}
	}()

	if err := s.registry.Transition(jobID, jobs.StatusProcessing, jobs.TransitionPayload{}); err != nil {
		s.logger.Printf("job could not start jobId=%s error=%v", jobID, err)
		return
	}
	s.logger.Printf("job started jobId=%s category=%s", jobID, category)

	// 1つの文書に処理時間を占有させないよう、ジョブ全体に期限を設ける
	ctx := context.Background()
	if s.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.jobTimeout)
		defer cancel()
	}
	var (
		result  *jobs.Result
		errInfo *jobs.ErrorInfo
	)
	switch category {
	case jobs.CategoryFinance:
		fr, err := s.runFinance(ctx, depth, paths[0])
		if err != nil {
			errInfo = &jobs.ErrorInfo{Code: CodeIOError, Message: err.Error()}
		} else {
			result = &jobs.Result{Finance: fr}
		}
	case jobs.CategorySales:
		sr, err := s.runSales(ctx, depth, paths[0])
		if err != nil {
			errInfo = &jobs.ErrorInfo{Code: CodeIOError, Message: err.Error()}
		} else {
			result = &jobs.Result{Sales: sr}
		}
	case jobs.CategoryCombined:
		cr, err := s.runCombined(ctx, paths[0], paths[1])
		if err != nil {
			errInfo = &jobs.ErrorInfo{Code: CodeIOError, Message: err.Error()}
		} else {
			result = &jobs.Result{Combined: cr}
		}
	default:
		errInfo = &jobs.ErrorInfo{Code: CodeInternalError, Message: fmt.Sprintf("未対応のカテゴリです: %s", category)}
	}

	s.finish(jobID, result, errInfo)
}

// finish は終端遷移を適用します。レコードが既に削除されている場合は何もしません。
func (s *Service) finish(jobID string, result *jobs.Result, errInfo *jobs.ErrorInfo) {
	var err error
	if errInfo != nil {
		err = s.registry.Transition(jobID, jobs.StatusFailed, jobs.TransitionPayload{Error: errInfo})
		s.logger.Printf("job failed jobId=%s code=%s message=%s", jobID, errInfo.Code, errInfo.Message)
	} else {
		err = s.registry.Transition(jobID, jobs.StatusCompleted, jobs.TransitionPayload{Result: result})
		s.logger.Printf("job completed jobId=%s", jobID)
	}
	if err != nil {
		s.logger.Printf("terminal transition rejected jobId=%s error=%v", jobID, err)
	}
}

// runFinance は財務パイプラインを指定深度まで実行します。
// I/O障害のみエラーを返し、データ不足は空の結果として成立させます。
func (s *Service) runFinance(ctx context.Context, depth Depth, path string) (*jobs.FinanceResult, error) {
	ex, err := s.finance.Extract(ctx, path)
	if err != nil {
		return nil, err
	}

	fr := &jobs.FinanceResult{
		Metrics:    ex.LineItems,
		Ratios:     map[string]string{},
		TextLength: ex.TextLength,
	}
	if depth == DepthMetrics {
		return fr, nil
	}

	if len(fr.Metrics) > 0 {
		fr.Ratios = DeriveFinanceRatios(fr.Metrics)
	}
	if depth == DepthRatios {
		return fr, nil
	}

	if len(fr.Metrics) == 0 || len(fr.Ratios) == 0 {
		fr.Narrative = "分析を生成できませんでした: 財務データが見つかりませんでした"
		return fr, nil
	}
	fr.Narrative, _ = s.generate(ctx, financePrompt(fr.Metrics, fr.Ratios))
	return fr, nil
}

func (s *Service) runSales(ctx context.Context, depth Depth, path string) (*jobs.SalesResult, error) {
	ex, err := s.sales.Extract(ctx, path)
	if err != nil {
		return nil, err
	}

	sr := &jobs.SalesResult{Columns: ex.Columns}
	if depth == DepthMetrics {
		return sr, nil
	}

	if len(ex.Rows) > 0 {
		sr.Aggregates = DeriveSalesAggregates(ex)
	}
	if depth == DepthRatios {
		return sr, nil
	}

	if len(ex.Rows) == 0 || sr.Aggregates.Empty() {
		sr.Narrative = "分析を生成できませんでした: 売上データが見つかりませんでした"
		return sr, nil
	}
	sr.Narrative, _ = s.generate(ctx, salesPrompt(sr.Columns, sr.Aggregates))
	return sr, nil
}

// runCombined は財務・売上のサブパイプラインを並行実行し、
// 両方のナラティブが生成できた場合のみ統合ナラティブを作ります。
// どちらかでI/O障害が起きた場合はジョブ全体を失敗させます。
func (s *Service) runCombined(ctx context.Context, financePath, salesPath string) (*jobs.CombinedResult, error) {
	var (
		wg         sync.WaitGroup
		fr         *jobs.FinanceResult
		sr         *jobs.SalesResult
		financeErr error
		salesErr   error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		fr, financeErr = s.runFinance(ctx, DepthFull, financePath)
	}()
	go func() {
		defer wg.Done()
		sr, salesErr = s.runSales(ctx, DepthFull, salesPath)
	}()
	wg.Wait()

	if financeErr != nil {
		return nil, fmt.Errorf("finance サブパイプラインが失敗しました: %w", financeErr)
	}
	if salesErr != nil {
		return nil, fmt.Errorf("sales サブパイプラインが失敗しました: %w", salesErr)
	}

	cr := &jobs.CombinedResult{Finance: fr, Sales: sr}
	if !synthesized(fr.Narrative) || !synthesized(sr.Narrative) {
		cr.Merged = "分析を生成できませんでした: 財務または売上の分析結果がありません"
		return cr, nil
	}
	cr.Merged, _ = s.generate(ctx, combinePrompt(fr.Narrative, sr.Narrative))
	return cr, nil
}

// generate はナラティブを生成します。失敗は結果に埋め込むメッセージへ変換し、
// ジョブ自体は成功として扱います。
func (s *Service) generate(ctx context.Context, prompt string) (string, bool) {
	if s.synth == nil {
		return "分析を生成できませんでした: APIキーが設定されていません", false
	}
	text, err := s.synth.Generate(ctx, prompt)
	if err != nil {
		s.logger.Printf("narrative generation failed error=%v", err)
		return fmt.Sprintf("分析を生成できませんでした: %v", err), false
	}
	return text, true
}

// synthesized はナラティブが実際に生成されたもの（失敗の埋め込みでない）かを返します。
func synthesized(narrative string) bool {
	return narrative != "" && !isFailureNarrative(narrative)
}

const failureNarrativePrefix = "分析を生成できませんでした"

func isFailureNarrative(narrative string) bool {
	return len(narrative) >= len(failureNarrativePrefix) &&
		narrative[:len(failureNarrativePrefix)] == failureNarrativePrefix
}

// Get はジョブのスナップショットを返します。
func (s *Service) Get(jobID string) (*jobs.Record, error) {
	record, err := s.registry.Get(jobID)
	if err != nil {
		return nil, newError(CodeJobNotFound, fmt.Sprintf("ジョブが見つかりません: %s", jobID), err)
	}
	return record, nil
}

// List は全ジョブの概要を返します。
func (s *Service) List() []jobs.Summary {
	return s.registry.List()
}

// Counts は状態ごとのジョブ数を返します。
func (s *Service) Counts() map[jobs.Status]int {
	return s.registry.Counts()
}

// Cleanup は終端状態のジョブとその保存済み入力ファイルを削除します。
// 存在しないIDは成功扱い、未終端のジョブは拒否されます。
func (s *Service) Cleanup(jobID string) error {
	record, err := s.registry.Get(jobID)
	if err != nil {
		return nil
	}
	if err := s.registry.Remove(jobID); err != nil {
		return newError(CodeJobActive, fmt.Sprintf("実行中のジョブは削除できません: %s", jobID), err)
	}
	for _, path := range record.InputRefs {
		if err := s.store.Remove(path); err != nil {
			s.logger.Printf("input cleanup failed jobId=%s path=%s error=%v", jobID, path, err)
		}
	}
	s.logger.Printf("job removed jobId=%s", jobID)
	return nil
}

// CleanupAll は終端状態の全ジョブを削除し、削除数と実行中のため残した数を返します。
func (s *Service) CleanupAll() (removed, skipped int) {
	for _, summary := range s.registry.List() {
		if !summary.Status.Terminal() {
			skipped++
			continue
		}
		if err := s.Cleanup(summary.JobID); err != nil {
			skipped++
			continue
		}
		removed++
	}
	s.logger.Printf("cleanup finished removed=%d skipped=%d", removed, skipped)
	return removed, skipped
}
