package transport

import (
	"errors"
	"fmt"

	"github.com/shaiso/Remora/internal/contracts"
)

// ErrorCode — код ошибки в ответе воркера.
type ErrorCode string

const (
	ErrCodeBadRequest    ErrorCode = "BAD_REQUEST"
	ErrCodeUnknownTicket ErrorCode = "UNKNOWN_TICKET"
	ErrCodeUnavailable   ErrorCode = "UNAVAILABLE"
	ErrCodeInternalError ErrorCode = "INTERNAL_ERROR"
)

// ErrBadRequest — воркер отверг запрос как некорректный.
var ErrBadRequest = errors.New("bad request")

// RemoteError — ошибка, которую вернул воркер.
type RemoteError struct {
	Status  int
	Code    ErrorCode
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("worker error: HTTP %d %s: %s", e.Status, e.Code, e.Message)
}

// Is сопоставляет код ошибки с ошибками контрактов.
func (e *RemoteError) Is(target error) bool {
	switch e.Code {
	case ErrCodeUnknownTicket:
		return target == contracts.ErrUnknownTicket
	case ErrCodeUnavailable:
		return target == contracts.ErrServiceUnavailable
	case ErrCodeBadRequest:
		return target == ErrBadRequest
	}
	return false
}
