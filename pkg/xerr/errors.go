package xerr

import "fmt"

// 常用错误码定义 (HTTP 状态接口使用)
const (
	OK                 = 200
	ServerCommonError  = 500
	RequestParamsError = 400
	RecordNotFound     = 404
	TooManyRequests    = 429
	PumpNotRunning     = 503
)

type CodeError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (e *CodeError) Error() string {
	return fmt.Sprintf("ErrCode:%d, Msg:%s", e.Code, e.Msg)
}

func New(code int, msg string) error {
	return &CodeError{Code: code, Msg: msg}
}

func NewErrCode(code int) error {
	return &CodeError{Code: code, Msg: MapErrMsg(code)}
}

func MapErrMsg(code int) string {
	switch code {
	case ServerCommonError:
		return "internal error"
	case RequestParamsError:
		return "bad request"
	case RecordNotFound:
		return "not found"
	case TooManyRequests:
		return "too many requests"
	case PumpNotRunning:
		return "pump not running"
	default:
		return "unknown error"
	}
}
