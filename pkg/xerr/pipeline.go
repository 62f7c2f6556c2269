package xerr

import (
	"errors"
	"fmt"
)

// ConfigError 构造期错误，致命
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "config: " + e.Msg
	}
	return fmt.Sprintf("config: %s: %s", e.Field, e.Msg)
}

func NewConfigError(field, msg string) error {
	return &ConfigError{Field: field, Msg: msg}
}

// Stage 周期中出错的阶段
type Stage string

const (
	StageFetch   Stage = "fetch"
	StageConvert Stage = "convert"
	StageWrite   Stage = "write"
	StageRecord  Stage = "record"
)

var (
	ErrEmptyFetchResult   = errors.New("empty fetch result")
	ErrFetchFailed        = errors.New("fetch failed")
	ErrEmptyConvertInput  = errors.New("empty convert input")
	ErrEmptyConvertResult = errors.New("empty convert result")
	ErrConvertFailed      = errors.New("convert failed")
	ErrEmptyWriteInput    = errors.New("empty write input")
	ErrNoPrice            = errors.New("write input has no numeric price")
	ErrWriteFailed        = errors.New("write failed")
	ErrEmptyRecordInput   = errors.New("empty record input")
)

// PipelineError 只影响当前周期，上报后吞掉，不会停止定时器
type PipelineError struct {
	Stage  Stage
	Err    error
	Detail string
}

func (e *PipelineError) Error() string {
	if e.Detail == "" {
		return e.Err.Error()
	}
	return e.Err.Error() + ": " + e.Detail
}

func (e *PipelineError) Unwrap() error { return e.Err }

// Pipeline 构造一个阶段错误；cause 非空时会被一起包装，errors.Is 对两者都成立
func Pipeline(stage Stage, kind error, cause error, detail string) *PipelineError {
	err := kind
	if cause != nil {
		err = fmt.Errorf("%w: %w", kind, cause)
	}
	return &PipelineError{Stage: stage, Err: err, Detail: detail}
}

// StageOf 返回 err 对应的阶段，不是 PipelineError 时 ok=false
func StageOf(err error) (Stage, bool) {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Stage, true
	}
	return "", false
}
