package journal

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/shaiso/Remora/internal/contracts"
	"github.com/shaiso/Remora/internal/domain"
	"github.com/shaiso/Remora/internal/mq"
	"github.com/shaiso/Remora/internal/rpc"
	"github.com/shaiso/Remora/internal/scripts"
	"github.com/shaiso/Remora/internal/telemetry"
)

// Store — хранилище журнала (реализует repo.ExecutionRepo).
type Store interface {
	Create(ctx context.Context, exec *domain.ScriptExecution) error
	AppendLogs(ctx context.Context, ticket domain.ScriptTicket, logs []domain.ProcessOutput) (int64, error)
	Complete(ctx context.Context, ticket domain.ScriptTicket, outcome domain.ExecutionOutcome) error
}

// EventPublisher — публикация событий (реализует mq.Publisher).
type EventPublisher interface {
	PublishScriptStatus(ctx context.Context, payload mq.ScriptStatusPayload) error
	PublishScriptCompleted(ctx context.Context, payload mq.ScriptCompletedPayload) error
}

// Config — конфигурация Recorder.
type Config struct {
	Store     Store          // опционально
	Publisher EventPublisher // опционально
	Logger    *slog.Logger

	// Now — источник времени (для тестов).
	Now func() time.Time
}

// Recorder создаёт записи журнала.
type Recorder struct {
	store     Store
	publisher EventPublisher
	logger    *slog.Logger
	now       func() time.Time
}

// New создаёт новый Recorder.
func New(cfg Config) *Recorder {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Recorder{
		store:     cfg.Store,
		publisher: cfg.Publisher,
		logger:    logger,
		now:       now,
	}
}

// Entry — журнал одного выполнения.
type Entry struct {
	r      *Recorder
	ctx    context.Context
	ticket domain.ScriptTicket
	worker string
	logger *slog.Logger

	mu       sync.Mutex
	logCount int64
	finished bool
}

// Begin создаёт запись о выполнении. cmd.Ticket должен быть задан.
//
// Записи журнала продолжаются и после отмены ctx: отменённое выполнение
// тоже должно быть закрыто.
func (r *Recorder) Begin(ctx context.Context, worker string, cmd domain.StartScriptCommand) *Entry {
	e := &Entry{
		r:      r,
		ctx:    context.WithoutCancel(ctx),
		ticket: cmd.Ticket,
		worker: worker,
		logger: telemetry.FromContext(ctx, telemetry.ForExecution(r.logger, cmd.Ticket, worker)),
	}

	if r.store != nil {
		err := r.store.Create(e.ctx, &domain.ScriptExecution{
			Ticket:    cmd.Ticket,
			TaskID:    cmd.TaskID,
			Worker:    worker,
			State:     domain.ProcessStatePending,
			ExitCode:  domain.RunningExitCode,
			StartedAt: r.now().UTC(),
		})
		if err != nil {
			e.logger.Warn("failed to journal script execution", "error", err)
		}
	}

	return e
}

// Ticket возвращает тикет выполнения.
func (e *Entry) Ticket() domain.ScriptTicket {
	return e.ticket
}

// LogCount возвращает число полученных записей лога.
func (e *Entry) LogCount() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.logCount
}

// Callbacks возвращает наблюдателя для оркестратора.
// next (опционально) вызывается после записи в журнал.
func (e *Entry) Callbacks(next scripts.Callbacks) scripts.Callbacks {
	return scripts.Callbacks{
		OnStatusReceived: func(status domain.ScriptExecutionStatus) {
			e.record(status.Logs)
			if next.OnStatusReceived != nil {
				next.OnStatusReceived(status)
			}
		},
		OnCompleted: func(ctx context.Context) {
			e.logger.Debug("script reached complete state, cleaning up")
			if next.OnCompleted != nil {
				next.OnCompleted(ctx)
			}
		},
	}
}

func (e *Entry) record(logs []domain.ProcessOutput) {
	if len(logs) == 0 {
		return
	}

	e.mu.Lock()
	e.logCount += int64(len(logs))
	e.mu.Unlock()

	if e.r.store != nil {
		if _, err := e.r.store.AppendLogs(e.ctx, e.ticket, logs); err != nil {
			e.logger.Warn("failed to journal script logs", "count", len(logs), "error", err)
		}
	}

	if e.r.publisher != nil {
		err := e.r.publisher.PublishScriptStatus(e.ctx, mq.ScriptStatusPayload{Ticket: e.ticket, Logs: logs})
		if err != nil {
			e.logger.Warn("failed to publish script status", "error", err)
		}
	}
}

// Finish закрывает запись итогом выполнения. Повторные вызовы игнорируются.
func (e *Entry) Finish(version contracts.ScriptServiceVersion, result domain.ScriptExecutionResult, execErr error) domain.ExecutionOutcome {
	e.mu.Lock()
	if e.finished {
		e.mu.Unlock()
		return domain.ExecutionOutcome{}
	}
	e.finished = true
	e.mu.Unlock()

	outcome := Outcome(result, execErr)
	outcome.FinishedAt = e.r.now().UTC()
	if version != 0 {
		outcome.ScriptServiceVersion = version.String()
	}

	if e.r.store != nil {
		if err := e.r.store.Complete(e.ctx, e.ticket, outcome); err != nil {
			e.logger.Warn("failed to journal script completion", "error", err)
		}
	}

	if e.r.publisher != nil {
		err := e.r.publisher.PublishScriptCompleted(e.ctx, mq.ScriptCompletedPayload{
			Ticket:   e.ticket,
			Worker:   e.worker,
			State:    outcome.State,
			ExitCode: outcome.ExitCode,
			Error:    outcome.Error,
		})
		if err != nil {
			e.logger.Warn("failed to publish script completion", "error", err)
		}
	}

	return outcome
}

// Outcome строит итог для журнала.
//
// При ошибке клиента состояние скрипта на воркере неизвестно: отмена
// записывается с CanceledExitCode, прочие ошибки с FatalExitCode.
func Outcome(result domain.ScriptExecutionResult, err error) domain.ExecutionOutcome {
	switch {
	case err == nil:
		return domain.ExecutionOutcome{State: result.State, ExitCode: result.ExitCode}
	case errors.Is(err, context.Canceled), rpc.IsAbandoned(err):
		return domain.ExecutionOutcome{State: domain.ProcessStateComplete, ExitCode: domain.CanceledExitCode, Error: err.Error()}
	default:
		return domain.ExecutionOutcome{State: domain.ProcessStateComplete, ExitCode: domain.FatalExitCode, Error: err.Error()}
	}
}
