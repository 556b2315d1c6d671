package retry

import (
	"context"
	"time"
)

// runAbandonable запускает action в отдельной горутине.
//
// Пока parent не отменён, ждёт результат без ограничений. После отмены
// ждёт ещё не дольше opts.AbandonAfter и возвращает *AbandonedError.
// Брошенное действие продолжает работать; его результат передаётся
// в opts.OnAbandonedComplete.
func runAbandonable[T any](parent, attemptCtx context.Context, action func(context.Context) (T, error), opts Options) (T, error) {
	type result struct {
		value T
		err   error
	}

	done := make(chan result, 1)
	go func() {
		v, err := action(attemptCtx)
		done <- result{value: v, err: err}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-parent.Done():
	}

	timer := time.NewTimer(opts.AbandonAfter)
	defer timer.Stop()

	select {
	case r := <-done:
		return r.value, r.err
	case <-timer.C:
	}

	go func() {
		r := <-done
		if opts.OnAbandonedComplete != nil {
			opts.OnAbandonedComplete(r.err)
		}
	}()

	var zero T
	return zero, &AbandonedError{AbandonAfter: opts.AbandonAfter}
}
