package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Ошибки retry-обработчика.
var (
	// ErrTimeout — бюджет повторов исчерпан, а реальной ошибки не было.
	ErrTimeout = errors.New("the delegate did not complete within the retry timeout")

	// ErrAbandoned — вызывающая сторона отменила операцию, и она не завершилась
	// за время abandonAfter. Сама операция продолжает выполняться в фоне.
	ErrAbandoned = errors.New("operation abandoned")
)

// AbandonedError — операция брошена после отмены.
type AbandonedError struct {
	AbandonAfter time.Duration
}

func (e *AbandonedError) Error() string {
	return fmt.Sprintf("the operation was abandoned after %s", e.AbandonAfter)
}

// Is позволяет сравнивать через errors.Is(err, ErrAbandoned).
func (e *AbandonedError) Is(target error) bool {
	return target == ErrAbandoned
}

// permanentError помечает ошибку как не подлежащую повтору.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent оборачивает ошибку так, что обработчик не будет её повторять.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent проверяет, помечена ли ошибка через Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// cancelled формирует ошибку отмены так, чтобы она совпадала и с ctx.Err(),
// и с исходной ошибкой действия (если она была).
func cancelled(ctx context.Context, err error) error {
	ctxErr := ctx.Err()
	if ctxErr == nil {
		ctxErr = context.Canceled
	}
	if err == nil || errors.Is(err, ctxErr) {
		if err == nil {
			return ctxErr
		}
		return err
	}
	return fmt.Errorf("%w: %w", ctxErr, err)
}

// exhausted возвращает последнюю реальную ошибку или ErrTimeout.
func exhausted(lastErr error) error {
	if lastErr != nil {
		return lastErr
	}
	return ErrTimeout
}
