package retry

import "context"

// ExecuteWithNoRetries выполняет action ровно один раз.
//
// Отмена и брошенные действия обрабатываются так же, как в ExecuteWithRetries.
// Если ctx уже отменён, action не вызывается.
func ExecuteWithNoRetries[T any](ctx context.Context, action func(context.Context) (T, error), opts Options) (T, error) {
	var zero T

	if err := ctx.Err(); err != nil {
		return zero, err
	}

	res := runAttempt(ctx, ctx, action, opts, nil)
	switch res.outcome {
	case OutcomeOK:
		return res.value, nil
	case OutcomeCancelled:
		return zero, cancelled(ctx, res.err)
	default:
		return zero, res.err
	}
}
