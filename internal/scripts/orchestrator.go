package scripts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/Remora/internal/backoff"
	"github.com/shaiso/Remora/internal/contracts"
	"github.com/shaiso/Remora/internal/domain"
	"github.com/shaiso/Remora/internal/telemetry"
)

// Orchestrator выполняет один скрипт на воркере от запуска до очистки.
type Orchestrator interface {
	// ExecuteScript запускает скрипт, опрашивает статус до COMPLETE,
	// при отмене ctx отменяет скрипт и всегда пытается выполнить очистку.
	//
	// Если ctx был отменён, возвращается ошибка, совпадающая с ErrScriptCancelled,
	// даже если очистка прошла успешно.
	ExecuteScript(ctx context.Context, cmd domain.StartScriptCommand) (domain.ScriptExecutionResult, error)

	// Version возвращает версию протокола.
	Version() contracts.ScriptServiceVersion
}

// Callbacks — наблюдатель выполнения.
//
// Вызываются синхронно внутри цикла опроса, строго по порядку.
type Callbacks struct {
	// OnStatusReceived получает новые записи лога после каждого ответа.
	OnStatusReceived func(status domain.ScriptExecutionStatus)

	// OnCompleted вызывается один раз, когда скрипт достиг COMPLETE, до очистки.
	OnCompleted func(ctx context.Context)
}

// versionOps — операции конкретной версии протокола.
//
// C — wire-команда запуска, R — wire-ответ статуса.
type versionOps[C, R any] struct {
	version contracts.ScriptServiceVersion

	mapCommand func(cmd domain.StartScriptCommand) C
	pending    func(cmd C) R

	state    func(r R) domain.ProcessState
	sequence func(r R) int64
	logs     func(r R) []domain.ProcessOutput
	exitCode func(r R) int
	noLogs   func(r R) R

	// start возвращает также число отправленных попыток.
	start     func(ctx context.Context, cmd C) (R, int, error)
	getStatus func(ctx context.Context, last R) (R, error)
	cancel    func(ctx context.Context, last R) (R, error)
	finish    func(last R) (R, error)

	// finishReportsStatus — ответ finish содержит финальные логи.
	finishReportsStatus bool
}

// observingOrchestrator — общий алгоритм для всех версий протокола.
type observingOrchestrator[C, R any] struct {
	ops       versionOps[C, R]
	backoff   backoff.Strategy
	callbacks Callbacks
	logger    *slog.Logger
	sleep     func(ctx context.Context, d time.Duration) error
}

func newObservingOrchestrator[C, R any](ops versionOps[C, R], strategy backoff.Strategy, callbacks Callbacks, logger *slog.Logger) *observingOrchestrator[C, R] {
	if strategy == nil {
		strategy = backoff.DefaultScriptObserver()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &observingOrchestrator[C, R]{
		ops:       ops,
		backoff:   strategy,
		callbacks: callbacks,
		logger:    logger,
		sleep:     sleepCtx,
	}
}

// Version возвращает версию протокола.
func (o *observingOrchestrator[C, R]) Version() contracts.ScriptServiceVersion {
	return o.ops.version
}

// ExecuteScript реализует Orchestrator.
func (o *observingOrchestrator[C, R]) ExecuteScript(ctx context.Context, cmd domain.StartScriptCommand) (domain.ScriptExecutionResult, error) {
	cmd = normalize(cmd)
	if err := cmd.Validate(); err != nil {
		return domain.ScriptExecutionResult{}, err
	}

	x := &execution[C, R]{
		o:      o,
		logger: telemetry.ForExecution(o.logger, cmd.Ticket, "").With("script_service", o.ops.version.String()),
	}

	resp, err := x.start(ctx, o.ops.mapCommand(cmd))
	if err != nil {
		return domain.ScriptExecutionResult{}, err
	}

	resp, err = x.observeUntilCompleteThenFinish(ctx, resp)
	if err != nil {
		return domain.ScriptExecutionResult{}, err
	}

	if ctx.Err() != nil {
		return domain.ScriptExecutionResult{}, ErrScriptCancelled
	}

	return domain.ScriptExecutionResult{
		State:    x.state,
		ExitCode: o.ops.exitCode(resp),
	}, nil
}

// execution — состояние одного выполнения. Не разделяется между выполнениями.
type execution[C, R any] struct {
	o      *observingOrchestrator[C, R]
	logger *slog.Logger

	state     domain.ProcessState
	highWater int64
}

func (x *execution[C, R]) start(ctx context.Context, cmd C) (R, error) {
	var zero R
	ops := x.o.ops

	resp, attempts, err := ops.start(ctx, cmd)
	if err == nil {
		return x.accept(resp)
	}

	if !isCancellation(ctx, err) {
		return zero, err
	}

	// Запрос гарантированно не был отправлен: очищать нечего.
	inFlight := errors.Is(err, contracts.ErrCancelledInFlight)
	if !inFlight && attempts <= 1 {
		return zero, err
	}

	x.logger.Info("start script call was cancelled in flight, assuming the script is running",
		"attempts", attempts,
		"error", err,
	)

	pending, err := x.accept(ops.pending(cmd))
	if err != nil {
		return zero, err
	}
	if _, err := x.observeUntilCompleteThenFinish(ctx, pending); err != nil {
		return zero, err
	}
	return zero, ErrScriptCancelled
}

func (x *execution[C, R]) observeUntilCompleteThenFinish(ctx context.Context, resp R) (R, error) {
	x.notify(resp)

	last, err := x.observeUntilComplete(ctx, resp)
	if err != nil {
		return last, err
	}

	if x.o.callbacks.OnCompleted != nil {
		x.o.callbacks.OnCompleted(ctx)
	}

	return x.finish(last), nil
}

func (x *execution[C, R]) observeUntilComplete(ctx context.Context, resp R) (R, error) {
	ops := x.o.ops
	last := resp

	iteration := 0
	cancelIteration := 0

	for !x.state.IsTerminal() {
		var (
			next R
			err  error
		)

		if ctx.Err() != nil {
			next, err = ops.cancel(ctx, last)
			if err != nil {
				return last, fmt.Errorf("cancel script: %w", err)
			}
		} else {
			next, err = ops.getStatus(ctx, last)
			if err != nil {
				if ctx.Err() == nil {
					return last, fmt.Errorf("get script status: %w", err)
				}
				if !isCancellation(ctx, err) {
					// Переходим в режим отмены.
					continue
				}
				next = ops.noLogs(last)
			}
		}

		last, err = x.accept(next)
		if err != nil {
			return last, err
		}
		x.notify(last)

		if x.state.IsTerminal() {
			break
		}

		if ctx.Err() != nil {
			// Отдельный счётчик: темп опроса при отмене начинается заново.
			cancelIteration++
			_ = x.o.sleep(context.Background(), x.o.backoff.Backoff(cancelIteration))
		} else {
			iteration++
			_ = x.o.sleep(ctx, x.o.backoff.Backoff(iteration))
		}
	}

	return last, nil
}

func (x *execution[C, R]) finish(last R) R {
	ops := x.o.ops

	resp, err := ops.finish(last)
	if err != nil {
		x.logger.Warn("failed to clean up the script working directory on the worker", "error", err)
		return last
	}

	if !ops.finishReportsStatus {
		return last
	}

	accepted, err := x.accept(resp)
	if err != nil {
		x.logger.Warn("ignoring complete script response", "error", err)
		return last
	}
	x.notify(accepted)
	return accepted
}

// accept проверяет монотонность номера лога и продвигает состояние.
func (x *execution[C, R]) accept(r R) (R, error) {
	ops := x.o.ops

	seq := ops.sequence(r)
	if seq < x.highWater {
		var zero R
		return zero, fmt.Errorf("%w: got %d after %d", ErrSequenceRegressed, seq, x.highWater)
	}
	x.highWater = seq

	next := x.state.AdvanceTo(ops.state(r))
	if next != ops.state(r) {
		x.logger.Debug("ignoring process state regression", "state", x.state, "reported", ops.state(r))
	}
	x.state = next

	return r, nil
}

func (x *execution[C, R]) notify(r R) {
	if x.o.callbacks.OnStatusReceived == nil {
		return
	}
	x.o.callbacks.OnStatusReceived(domain.ScriptExecutionStatus{Logs: x.o.ops.logs(r)})
}

// isCancellation — ошибка вызвана отменой ctx вызывающей стороны.
func isCancellation(ctx context.Context, err error) bool {
	if ctx.Err() == nil {
		return false
	}
	return errors.Is(err, ctx.Err()) || errors.Is(err, contracts.ErrCancelledInFlight)
}

// normalize заполняет значения по умолчанию.
func normalize(cmd domain.StartScriptCommand) domain.StartScriptCommand {
	if cmd.Ticket.IsZero() {
		cmd.Ticket = domain.NewScriptTicket()
	}
	if cmd.Isolation == "" {
		cmd.Isolation = domain.IsolationNone
	}
	if cmd.IsolationMutexName == "" {
		cmd.IsolationMutexName = domain.DefaultMutexName
	}
	return cmd
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
