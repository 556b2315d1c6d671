package scripts

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/shaiso/Remora/internal/rpc"
)

// binding — общие зависимости версионных привязок.
type binding struct {
	executor       *rpc.Executor
	metrics        *rpc.OperationMetricsBuilder
	retriesEnabled bool

	// abandonCompleteAfter — сколько ждать CompleteScript.
	abandonCompleteAfter time.Duration

	logger *slog.Logger
}

// request создаёт rpc.Request с политикой повторов из конфигурации.
func (b binding) request(call rpc.Call) rpc.Request {
	return rpc.Request{
		Call:           call,
		RetriesEnabled: b.retriesEnabled,
		Metrics:        b.metrics,
	}
}

// noRetries создаёт rpc.Request с одной попыткой.
func (b binding) noRetries(call rpc.Call) rpc.Request {
	return rpc.Request{
		Call:    call,
		Metrics: b.metrics,
	}
}

// executeCounted выполняет вызов и возвращает число отправленных попыток.
func executeCounted[R any](ctx context.Context, b binding, req rpc.Request, action func(context.Context) (R, error)) (R, int, error) {
	var attempts atomic.Int32
	r, err := rpc.Execute(ctx, b.executor, req, func(ctx context.Context) (R, error) {
		attempts.Add(1)
		return action(ctx)
	})
	return r, int(attempts.Load()), err
}

// completeContext — контекст очистки, не связанный с контекстом вызывающей стороны.
func (b binding) completeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), b.abandonCompleteAfter)
}
