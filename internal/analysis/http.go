package analysis

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/ledger-lens/internal/jobs"
	"github.com/yourusername/ledger-lens/internal/report"
)

// JobService は各ハンドラーが利用するジョブ操作です。
type JobService interface {
	SubmitUpload(category jobs.Category, depth Depth, files []*multipart.FileHeader) (*jobs.Record, error)
	SubmitPaths(category jobs.Category, depth Depth, paths []string) (*jobs.Record, error)
	Get(jobID string) (*jobs.Record, error)
	List() []jobs.Summary
	Counts() map[jobs.Status]int
	Cleanup(jobID string) error
	CleanupAll() (removed, skipped int)
}

// UploadHandler は POST /api/analyze/upload のハンドラーを返します。
// 単一カテゴリはフィールド "file"、combined は "finance" と "sales" で受け取ります。
func UploadHandler(svc JobService) gin.HandlerFunc {
	return func(c *gin.Context) {
		form, err := c.MultipartForm()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    CodeInvalidInput,
				"message": "multipart/form-data でファイルを送信してください。",
			})
			return
		}
		defer form.RemoveAll()

		category := jobs.Category(strings.TrimSpace(c.PostForm("category")))
		depth := parseDepth(c.PostForm("depth"))

		files, err := extractUploadFiles(form, category)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    CodeInvalidInput,
				"message": err.Error(),
			})
			return
		}

		record, err := svc.SubmitUpload(category, depth, files)
		if err != nil {
			respondWithError(c, err)
			return
		}

		c.JSON(http.StatusAccepted, gin.H{
			"jobId":    record.JobID,
			"category": record.Category,
			"status":   record.Status,
		})
	}
}

// submitFileRequest は POST /api/analyze/file のリクエストボディです。
type submitFileRequest struct {
	Category string   `json:"category" binding:"required"`
	Depth    string   `json:"depth"`
	Paths    []string `json:"paths" binding:"required"`
}

// SubmitFileHandler は POST /api/analyze/file のハンドラーを返します。
// サーバー上の既存ファイルを対象にジョブを登録します。
func SubmitFileHandler(svc JobService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req submitFileRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    CodeInvalidInput,
				"message": "category と paths を含むJSONを送信してください。",
			})
			return
		}

		for _, path := range req.Paths {
			if _, err := os.Stat(path); err != nil {
				c.JSON(http.StatusNotFound, gin.H{
					"code":    CodeInvalidInput,
					"message": fmt.Sprintf("ファイルが見つかりません: %s", path),
				})
				return
			}
		}

		record, err := svc.SubmitPaths(jobs.Category(req.Category), parseDepth(req.Depth), req.Paths)
		if err != nil {
			respondWithError(c, err)
			return
		}

		c.JSON(http.StatusAccepted, gin.H{
			"jobId":    record.JobID,
			"category": record.Category,
			"status":   record.Status,
		})
	}
}

// StatusHandler は GET /api/analyze/status/:id のハンドラーを返します。
func StatusHandler(svc JobService) gin.HandlerFunc {
	return func(c *gin.Context) {
		record, err := svc.Get(c.Param("id"))
		if err != nil {
			respondWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, record)
	}
}

// ResultsHandler は GET /api/analyze/results/:id のハンドラーを返します。
// 未終端は409、失敗は500としてジョブのエラーを返します。
func ResultsHandler(svc JobService) gin.HandlerFunc {
	return func(c *gin.Context) {
		record, err := svc.Get(c.Param("id"))
		if err != nil {
			respondWithError(c, err)
			return
		}

		switch record.Status {
		case jobs.StatusFailed:
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":    CodeAnalysisFailed,
				"message": record.Error.Message,
				"jobId":   record.JobID,
			})
		case jobs.StatusCompleted:
			c.JSON(http.StatusOK, record)
		default:
			c.JSON(http.StatusConflict, gin.H{
				"code":    CodeJobNotFinished,
				"message": fmt.Sprintf("ジョブはまだ完了していません: %s", record.Status),
				"jobId":   record.JobID,
				"status":  record.Status,
			})
		}
	}
}

// QueueHandler は GET /api/analyze/queue のハンドラーを返します。
func QueueHandler(svc JobService) gin.HandlerFunc {
	return func(c *gin.Context) {
		summaries := svc.List()
		c.JSON(http.StatusOK, gin.H{
			"counts": svc.Counts(),
			"jobs":   summaries,
			"total":  len(summaries),
		})
	}
}

// ReportHandler は GET /api/analyze/report/:id のハンドラーを返します。
// 完了済みジョブの結果をPDFレポートとして返します。
func ReportHandler(svc JobService) gin.HandlerFunc {
	return func(c *gin.Context) {
		record, err := svc.Get(c.Param("id"))
		if err != nil {
			respondWithError(c, err)
			return
		}

		switch record.Status {
		case jobs.StatusFailed:
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"code":    CodeAnalysisFailed,
				"message": "失敗したジョブのレポートは生成できません。",
				"jobId":   record.JobID,
			})
			return
		case jobs.StatusCompleted:
		default:
			c.JSON(http.StatusConflict, gin.H{
				"code":    CodeJobNotFinished,
				"message": fmt.Sprintf("ジョブはまだ完了していません: %s", record.Status),
				"jobId":   record.JobID,
			})
			return
		}

		data, err := report.Render(record)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":    CodeInternalError,
				"message": "レポートの生成に失敗しました。",
			})
			return
		}

		filename := fmt.Sprintf("analysis-report-%s.pdf", record.JobID)
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
		c.Header("Cache-Control", "no-store")
		c.Header("X-Job-Id", record.JobID)
		c.Data(http.StatusOK, "application/pdf", data)
	}
}

// CleanupHandler は DELETE /api/analyze/cleanup/:id のハンドラーを返します。
func CleanupHandler(svc JobService) gin.HandlerFunc {
	return func(c *gin.Context) {
		jobID := c.Param("id")
		if err := svc.Cleanup(jobID); err != nil {
			respondWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"jobId": jobID, "removed": true})
	}
}

// CleanupAllHandler は DELETE /api/analyze/cleanup のハンドラーを返します。
// 終端状態のジョブをまとめて削除します。
func CleanupAllHandler(svc JobService) gin.HandlerFunc {
	return func(c *gin.Context) {
		removed, skipped := svc.CleanupAll()
		c.JSON(http.StatusOK, gin.H{"removed": removed, "skipped": skipped})
	}
}

func parseDepth(raw string) Depth {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return DepthFull
	}
	return Depth(trimmed)
}

// extractUploadFiles はカテゴリに応じたフィールドからファイルを取り出します。
func extractUploadFiles(form *multipart.Form, category jobs.Category) ([]*multipart.FileHeader, error) {
	if category == jobs.CategoryCombined {
		finance := form.File["finance"]
		sales := form.File["sales"]
		if len(finance) == 0 || len(sales) == 0 {
			return nil, errors.New("combined では finance と sales の両フィールドでファイルを送信してください。")
		}
		return []*multipart.FileHeader{finance[0], sales[0]}, nil
	}

	if file := form.File["file"]; len(file) > 0 {
		return []*multipart.FileHeader{file[0]}, nil
	}
	if file := form.File["file[]"]; len(file) > 0 {
		return []*multipart.FileHeader{file[0]}, nil
	}
	if files := form.File["files"]; len(files) > 0 {
		return []*multipart.FileHeader{files[0]}, nil
	}
	return nil, errors.New("アップロードされたファイルが見つかりません。")
}

func respondWithError(c *gin.Context, err error) {
	var apiErr *Error
	switch {
	case errors.As(err, &apiErr):
		status := http.StatusBadRequest
		switch apiErr.Code {
		case CodeLimitExceeded:
			status = http.StatusRequestEntityTooLarge
		case CodeJobNotFound:
			status = http.StatusNotFound
		case CodeJobNotFinished, CodeJobActive:
			status = http.StatusConflict
		case CodeIOError, CodeInternalError, CodeAnalysisFailed:
			status = http.StatusInternalServerError
		}
		c.JSON(status, gin.H{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		})
	case errors.Is(err, jobs.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"code":    CodeJobNotFound,
			"message": "ジョブが見つかりません。",
		})
	case errors.Is(err, jobs.ErrJobActive):
		c.JSON(http.StatusConflict, gin.H{
			"code":    CodeJobActive,
			"message": "実行中のジョブは削除できません。",
		})
	case errors.Is(err, context.Canceled):
		c.JSON(http.StatusRequestTimeout, gin.H{
			"code":    "REQUEST_CANCELED",
			"message": "リクエストがキャンセルされました。",
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    CodeInternalError,
			"message": "サーバー内部でエラーが発生しました。",
		})
	}
}
