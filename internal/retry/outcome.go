package retry

import (
	"context"
	"errors"
)

// Outcome — классифицированный результат одной попытки.
type Outcome int

const (
	// OutcomeOK — попытка успешна.
	OutcomeOK Outcome = iota

	// OutcomeRetryable — временный сбой, можно повторить при наличии бюджета.
	OutcomeRetryable

	// OutcomeTimedOut — попытка не уложилась в остаток бюджета.
	OutcomeTimedOut

	// OutcomeAbandoned — отмена + истёк abandonAfter, действие брошено.
	OutcomeAbandoned

	// OutcomeCancelled — вызывающая сторона отменила выполнение.
	OutcomeCancelled

	// OutcomeFatal — ошибка не подлежит повтору.
	OutcomeFatal
)

// String возвращает строковое представление Outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeRetryable:
		return "retryable"
	case OutcomeTimedOut:
		return "timed_out"
	case OutcomeAbandoned:
		return "abandoned"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// attempt — результат одной попытки.
type attempt[T any] struct {
	value   T
	err     error
	outcome Outcome
}

// classify определяет Outcome попытки.
//
// parent — контекст вызывающей стороны, attemptCtx — контекст попытки
// (может совпадать с parent, если таймаут попытки не применялся).
func classify(parent, attemptCtx context.Context, err error, retryable func(error) bool) Outcome {
	if err == nil {
		return OutcomeOK
	}
	if errors.Is(err, ErrAbandoned) {
		return OutcomeAbandoned
	}
	if parent.Err() != nil {
		return OutcomeCancelled
	}
	if attemptCtx != parent && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return OutcomeTimedOut
	}
	if IsPermanent(err) {
		return OutcomeFatal
	}
	if retryable != nil && !retryable(err) {
		return OutcomeFatal
	}
	return OutcomeRetryable
}
