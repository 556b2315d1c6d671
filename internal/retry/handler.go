package retry

import (
	"context"
	"time"

	"github.com/shaiso/Remora/internal/backoff"
)

// DefaultRetryIfRemainingDurationAtLeast — минимальный остаток бюджета,
// при котором ещё имеет смысл делать повтор.
const DefaultRetryIfRemainingDurationAtLeast = time.Second

// OnRetryFunc вызывается перед паузой, за которой последует повтор.
//
// retryCount — номер уже неудавшейся попытки (1 для первой).
type OnRetryFunc func(ctx context.Context, lastErr error, sleep time.Duration, retryCount int, retryTimeout, elapsed time.Duration)

// OnTimeoutFunc вызывается, когда бюджет повторов исчерпан.
type OnTimeoutFunc func(ctx context.Context, retryTimeout, elapsed time.Duration, retryCount int)

// Options — параметры одного выполнения.
type Options struct {
	OnRetry   OnRetryFunc
	OnTimeout OnTimeoutFunc

	// AbandonOnCancellation — после отмены ждать действие не дольше AbandonAfter.
	AbandonOnCancellation bool
	AbandonAfter          time.Duration

	// OnAbandonedComplete вызывается, когда брошенное действие всё-таки завершилось.
	OnAbandonedComplete func(err error)
}

// Config — параметры Handler.
type Config struct {
	// RetryTimeout — общий бюджет времени на все попытки.
	RetryTimeout time.Duration

	// RetryIfRemainingDurationAtLeast — по умолчанию 1s.
	RetryIfRemainingDurationAtLeast time.Duration

	// Backoff — паузы между попытками. По умолчанию backoff.DefaultRPCRetry().
	Backoff backoff.Strategy

	// IsRetryable — дополнительный классификатор ошибок.
	// false означает, что ошибка фатальна. nil — повторять всё, кроме Permanent.
	IsRetryable func(error) bool

	// Now и Sleep подменяются в тестах.
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

// Handler выполняет действия с повторами в пределах общего бюджета времени.
//
// Handler не имеет изменяемого состояния и безопасен для конкурентного
// использования.
type Handler struct {
	retryTimeout time.Duration
	minRemaining time.Duration
	backoff      backoff.Strategy
	isRetryable  func(error) bool
	now          func() time.Time
	sleep        func(ctx context.Context, d time.Duration) error
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	if cfg.RetryIfRemainingDurationAtLeast <= 0 {
		cfg.RetryIfRemainingDurationAtLeast = DefaultRetryIfRemainingDurationAtLeast
	}
	if cfg.Backoff == nil {
		cfg.Backoff = backoff.DefaultRPCRetry()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Sleep == nil {
		cfg.Sleep = sleepCtx
	}

	return &Handler{
		retryTimeout: cfg.RetryTimeout,
		minRemaining: cfg.RetryIfRemainingDurationAtLeast,
		backoff:      cfg.Backoff,
		isRetryable:  cfg.IsRetryable,
		now:          cfg.Now,
		sleep:        cfg.Sleep,
	}
}

// RetryTimeout возвращает общий бюджет.
func (h *Handler) RetryTimeout() time.Duration {
	return h.retryTimeout
}

// ExecuteWithRetries выполняет action, повторяя временные сбои, пока хватает бюджета.
//
// Первая попытка выполняется без собственного таймаута. Каждая следующая
// ограничена остатком бюджета (RetryTimeout - elapsed - pendingSleep). Если
// остаток не больше минимального, вызывается OnTimeout и возвращается
// последняя реальная ошибка (или ErrTimeout, если её не было).
//
// При отмене ctx возвращается ошибка, совпадающая с context.Canceled.
// Если ctx уже отменён, action не вызывается ни разу.
func ExecuteWithRetries[T any](ctx context.Context, h *Handler, action func(context.Context) (T, error), opts Options) (T, error) {
	var zero T

	if err := ctx.Err(); err != nil {
		return zero, err
	}

	started := h.now()
	var (
		lastErr    error
		retryCount int
		nextSleep  time.Duration
	)

	for attemptNo := 1; ; attemptNo++ {
		var res attempt[T]

		if attemptNo == 1 {
			res = runAttempt(ctx, ctx, action, opts, h.isRetryable)
		} else {
			remaining := h.retryTimeout - h.since(started) - nextSleep
			if remaining <= h.minRemaining {
				h.timedOut(ctx, opts, started, retryCount)
				return zero, exhausted(lastErr)
			}

			attemptCtx, cancel := context.WithTimeout(ctx, remaining)
			res = runAttempt(ctx, attemptCtx, action, opts, h.isRetryable)
			cancel()
		}

		switch res.outcome {
		case OutcomeOK:
			return res.value, nil

		case OutcomeCancelled:
			return zero, cancelled(ctx, res.err)

		case OutcomeAbandoned, OutcomeFatal:
			return zero, res.err

		case OutcomeTimedOut:
			h.timedOut(ctx, opts, started, retryCount)
			return zero, exhausted(lastErr)

		case OutcomeRetryable:
			lastErr = res.err

			sleep := h.backoff.Backoff(attemptNo)
			elapsed := h.since(started)
			if h.retryTimeout-elapsed-sleep <= h.minRemaining {
				h.timedOut(ctx, opts, started, attemptNo)
				return zero, lastErr
			}

			retryCount = attemptNo
			nextSleep = sleep
			if opts.OnRetry != nil {
				opts.OnRetry(ctx, lastErr, sleep, retryCount, h.retryTimeout, elapsed)
			}

			if err := h.sleep(ctx, sleep); err != nil {
				return zero, cancelled(ctx, lastErr)
			}
		}
	}
}

func (h *Handler) since(t time.Time) time.Duration {
	return h.now().Sub(t)
}

func (h *Handler) timedOut(ctx context.Context, opts Options, started time.Time, retryCount int) {
	if opts.OnTimeout != nil {
		opts.OnTimeout(ctx, h.retryTimeout, h.since(started), retryCount)
	}
}

// runAttempt выполняет одну попытку и классифицирует результат.
func runAttempt[T any](parent, attemptCtx context.Context, action func(context.Context) (T, error), opts Options, retryable func(error) bool) attempt[T] {
	var (
		v   T
		err error
	)
	if opts.AbandonOnCancellation {
		v, err = runAbandonable(parent, attemptCtx, action, opts)
	} else {
		v, err = action(attemptCtx)
	}
	return attempt[T]{value: v, err: err, outcome: classify(parent, attemptCtx, err, retryable)}
}

// sleepCtx — пауза, прерываемая отменой ctx.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
