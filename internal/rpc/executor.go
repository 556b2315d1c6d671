package rpc

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/shaiso/Remora/internal/backoff"
	"github.com/shaiso/Remora/internal/contracts"
	"github.com/shaiso/Remora/internal/retry"
)

// DefaultRetryDuration — бюджет повторов по умолчанию.
const DefaultRetryDuration = 150 * time.Second

// Config — конфигурация Executor.
type Config struct {
	// RetryDuration — общий бюджет повторов одного вызова (default: 150s).
	RetryDuration time.Duration

	// RetryIfRemainingDurationAtLeast — default: 1s.
	RetryIfRemainingDurationAtLeast time.Duration

	// Backoff — паузы между повторами (default: backoff.DefaultRPCRetry()).
	Backoff backoff.Strategy

	// Observer получает метрики вызовов (default: NoopObserver).
	Observer ClientObserver

	Logger *slog.Logger
}

// Executor выполняет удалённые вызовы с повторами или без.
//
// Каждый вызов логируется при повторе и таймауте, а его метрики
// передаются в OperationMetricsBuilder вызывающей стороны и в ClientObserver.
type Executor struct {
	handler  *retry.Handler
	observer ClientObserver
	logger   *slog.Logger
	now      func() time.Time
}

// NewExecutor создаёт новый Executor.
func NewExecutor(cfg Config) *Executor {
	retryDuration := cfg.RetryDuration
	if retryDuration <= 0 {
		retryDuration = DefaultRetryDuration
	}

	observer := cfg.Observer
	if observer == nil {
		observer = NoopObserver{}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	handler := retry.NewHandler(retry.Config{
		RetryTimeout:                    retryDuration,
		RetryIfRemainingDurationAtLeast: cfg.RetryIfRemainingDurationAtLeast,
		Backoff:                         cfg.Backoff,
		IsRetryable:                     IsRetryable,
	})

	return &Executor{
		handler:  handler,
		observer: observer,
		logger:   logger,
		now:      time.Now,
	}
}

// RetryTimeout возвращает бюджет повторов.
func (e *Executor) RetryTimeout() time.Duration {
	return e.handler.RetryTimeout()
}

// Observer возвращает наблюдателя метрик.
func (e *Executor) Observer() ClientObserver {
	return e.observer
}

// IsRetryable — классификатор ошибок по умолчанию.
// Некорректные ответы и неизвестные тикеты не повторяются.
func IsRetryable(err error) bool {
	switch {
	case errors.Is(err, contracts.ErrMalformedResponse):
		return false
	case errors.Is(err, contracts.ErrUnknownTicket):
		return false
	default:
		return true
	}
}

// IsAbandoned проверяет, был ли вызов брошен после отмены.
func IsAbandoned(err error) bool {
	return errors.Is(err, retry.ErrAbandoned)
}

// Request — параметры одного логического вызова.
type Request struct {
	Call Call

	// RetriesEnabled — false означает ровно одну попытку.
	RetriesEnabled bool

	// AbandonOnCancellation — после отмены ждать вызов не дольше AbandonAfter.
	AbandonOnCancellation bool
	AbandonAfter          time.Duration

	// Metrics — накопитель метрик операции (может быть nil).
	Metrics *OperationMetricsBuilder
}

// Execute выполняет action согласно req.
func Execute[T any](ctx context.Context, e *Executor, req Request, action func(context.Context) (T, error)) (T, error) {
	start := e.now()

	var attempts atomic.Int32
	counted := func(ctx context.Context) (T, error) {
		attempts.Add(1)
		return action(ctx)
	}

	opts := retry.Options{
		AbandonOnCancellation: req.AbandonOnCancellation,
		AbandonAfter:          req.AbandonAfter,
		OnAbandonedComplete: func(err error) {
			e.logger.Debug("abandoned rpc call completed", "call", req.Call.String(), "error", err)
		},
	}

	var (
		v   T
		err error
	)
	if req.RetriesEnabled {
		opts.OnRetry = e.logRetry(req.Call)
		opts.OnTimeout = e.logTimeout(req.Call)
		v, err = retry.ExecuteWithRetries(ctx, e.handler, counted, opts)
	} else {
		v, err = retry.ExecuteWithNoRetries(ctx, counted, opts)
	}

	m := CallMetrics{
		Call:        req.Call,
		Start:       start,
		End:         e.now(),
		Attempts:    int(attempts.Load()),
		WithRetries: req.RetriesEnabled,
		Err:         err,
	}
	if req.RetriesEnabled {
		m.RetryTimeout = e.handler.RetryTimeout()
	}

	req.Metrics.Record(m)
	e.observer.RPCCallCompleted(m)

	return v, err
}

// ExecuteWithRetries выполняет action с повторами.
func ExecuteWithRetries[T any](ctx context.Context, e *Executor, call Call, action func(context.Context) (T, error), metrics *OperationMetricsBuilder) (T, error) {
	return Execute(ctx, e, Request{Call: call, RetriesEnabled: true, Metrics: metrics}, action)
}

// ExecuteWithNoRetries выполняет action ровно один раз.
func ExecuteWithNoRetries[T any](ctx context.Context, e *Executor, call Call, action func(context.Context) (T, error), metrics *OperationMetricsBuilder) (T, error) {
	return Execute(ctx, e, Request{Call: call, Metrics: metrics}, action)
}

// ExecuteVoid выполняет вызов без результата.
func ExecuteVoid(ctx context.Context, e *Executor, req Request, action func(context.Context) error) error {
	_, err := Execute(ctx, e, req, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, action(ctx)
	})
	return err
}

func (e *Executor) logRetry(call Call) retry.OnRetryFunc {
	return func(ctx context.Context, lastErr error, sleep time.Duration, retryCount int, retryTimeout, elapsed time.Duration) {
		e.logger.Info("error communicating with worker, call will be retried",
			"call", call.String(),
			"error", lastErr,
			"retry_after_seconds", sleep.Seconds(),
			"retry_attempt", retryCount,
			"retry_timeout_seconds", retryTimeout.Seconds(),
			"elapsed_seconds", elapsed.Seconds(),
		)
	}
}

func (e *Executor) logTimeout(call Call) retry.OnTimeoutFunc {
	return func(ctx context.Context, retryTimeout, elapsed time.Duration, retryCount int) {
		e.logger.Warn("could not communicate with worker, no more retries will be attempted",
			"call", call.String(),
			"elapsed_seconds", elapsed.Seconds(),
			"retry_timeout_seconds", retryTimeout.Seconds(),
			"retry_count", retryCount,
		)
	}
}
