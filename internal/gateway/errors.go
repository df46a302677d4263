package gateway

import (
	"errors"
	"fmt"
)

// Kind 失败类型
type Kind string

const (
	KindValidation        Kind = "validation"
	KindNotFound          Kind = "not-found"
	KindGenerationFailed  Kind = "generation-failed"
	KindBackendOverloaded Kind = "backend-overloaded"
	KindExportFailed      Kind = "export-failed"
	KindAudioFailed       Kind = "audio-failed"
	KindListLoadFailed    Kind = "list-load-failed"
)

// Error API边界上的类型化失败，Message为可展示给用户的描述。
// Detail只在后端响应体带有detail时非空
type Error struct {
	Kind    Kind
	Status  int // HTTP状态码，传输层失败时为0
	Message string
	Detail  string
	Err     error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s (http %d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf 提取失败类型，非*Error时返回空
func KindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return ""
}

// MessageOf 提取可展示的描述
func MessageOf(err error) string {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// DetailOf 后端给出的detail，传输层失败或响应没有detail时为空
func DetailOf(err error) string {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Detail
	}
	return ""
}
