package analysis

import "fmt"

// エラーコード一覧。HTTPレスポンスの code フィールドにそのまま使用します。
const (
	CodeInvalidInput   = "INVALID_INPUT"
	CodeLimitExceeded  = "LIMIT_EXCEEDED"
	CodeJobNotFound    = "JOB_NOT_FOUND"
	CodeJobNotFinished = "JOB_NOT_FINISHED"
	CodeJobActive      = "JOB_ACTIVE"
	CodeAnalysisFailed = "ANALYSIS_FAILED"
	CodeIOError        = "IO_ERROR"
	CodeInternalError  = "INTERNAL_ERROR"
)

// Error はAPIに公開する分類済みエラーです。
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}
