package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Remora/internal/domain"
)

// pgUniqueViolation — SQLSTATE нарушения уникальности.
const pgUniqueViolation = "23505"

// ExecutionRepo — репозиторий журнала выполнений.
type ExecutionRepo struct {
	pool *pgxpool.Pool
}

// NewExecutionRepo создаёт новый ExecutionRepo.
func NewExecutionRepo(pool *pgxpool.Pool) *ExecutionRepo {
	return &ExecutionRepo{pool: pool}
}

// Create создаёт запись о выполнении.
func (r *ExecutionRepo) Create(ctx context.Context, exec *domain.ScriptExecution) error {
	query := `
		INSERT INTO script_executions (ticket, task_id, worker, state, exit_code, next_log_seq, started_at)
		VALUES ($1, $2, $3, $4, $5, 0, $6)
	`
	_, err := r.pool.Exec(ctx, query,
		exec.Ticket,
		nullString(exec.TaskID),
		exec.Worker,
		exec.State,
		exec.ExitCode,
		exec.StartedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return fmt.Errorf("%w: execution %s", ErrAlreadyExists, exec.Ticket)
		}
		return fmt.Errorf("insert execution: %w", err)
	}
	return nil
}

// AppendLogs сохраняет записи лога, присваивая им последовательные номера,
// и сдвигает next_log_seq. Возвращает новое значение next_log_seq.
func (r *ExecutionRepo) AppendLogs(ctx context.Context, ticket domain.ScriptTicket, logs []domain.ProcessOutput) (int64, error) {
	var next int64

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			SELECT next_log_seq FROM script_executions WHERE ticket = $1 FOR UPDATE
		`, ticket).Scan(&next)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock execution: %w", err)
		}

		if len(logs) == 0 {
			return nil
		}

		first := next
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"script_logs"},
			[]string{"ticket", "seq", "source", "text", "occurred"},
			pgx.CopyFromSlice(len(logs), func(i int) ([]any, error) {
				l := logs[i]
				return []any{string(ticket), first + int64(i), string(l.Source), l.Text, l.Occurred}, nil
			}),
		)
		if err != nil {
			return fmt.Errorf("copy logs: %w", err)
		}

		next = first + int64(len(logs))
		_, err = tx.Exec(ctx, `
			UPDATE script_executions SET next_log_seq = $2 WHERE ticket = $1
		`, ticket, next)
		if err != nil {
			return fmt.Errorf("update next_log_seq: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return next, nil
}

// Complete закрывает выполнение итогом.
// Повторное закрытие возвращает ErrInvalidState.
func (r *ExecutionRepo) Complete(ctx context.Context, ticket domain.ScriptTicket, outcome domain.ExecutionOutcome) error {
	query := `
		UPDATE script_executions
		SET script_service_version = $2, state = $3, exit_code = $4, error = $5, finished_at = $6
		WHERE ticket = $1 AND finished_at IS NULL
	`
	result, err := r.pool.Exec(ctx, query,
		ticket,
		nullString(outcome.ScriptServiceVersion),
		outcome.State,
		outcome.ExitCode,
		nullString(outcome.Error),
		outcome.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("complete execution: %w", err)
	}
	if result.RowsAffected() == 0 {
		if _, err := r.GetByTicket(ctx, ticket); err != nil {
			return err
		}
		return fmt.Errorf("%w: execution %s already finished", ErrInvalidState, ticket)
	}
	return nil
}

// GetByTicket возвращает выполнение по тикету.
func (r *ExecutionRepo) GetByTicket(ctx context.Context, ticket domain.ScriptTicket) (*domain.ScriptExecution, error) {
	query := `
		SELECT ticket, task_id, worker, script_service_version, state, exit_code,
		       next_log_seq, error, started_at, finished_at
		FROM script_executions
		WHERE ticket = $1
	`
	return scanExecution(r.pool.QueryRow(ctx, query, ticket))
}

// ListRecent возвращает последние выполнения, новые первыми.
func (r *ExecutionRepo) ListRecent(ctx context.Context, limit int) ([]domain.ScriptExecution, error) {
	query := `
		SELECT ticket, task_id, worker, script_service_version, state, exit_code,
		       next_log_seq, error, started_at, finished_at
		FROM script_executions
		ORDER BY started_at DESC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	defer rows.Close()

	var execs []domain.ScriptExecution
	for rows.Next() {
		exec, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		execs = append(execs, *exec)
	}
	return execs, rows.Err()
}

// ListLogs возвращает записи лога начиная с afterSeq (не включая).
// afterSeq = -1 — с начала.
func (r *ExecutionRepo) ListLogs(ctx context.Context, ticket domain.ScriptTicket, afterSeq int64) ([]domain.LogRecord, error) {
	query := `
		SELECT ticket, seq, source, text, occurred
		FROM script_logs
		WHERE ticket = $1 AND seq > $2
		ORDER BY seq ASC
	`
	rows, err := r.pool.Query(ctx, query, ticket, afterSeq)
	if err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}

	logs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.LogRecord, error) {
		var rec domain.LogRecord
		err := row.Scan(&rec.Ticket, &rec.Seq, &rec.Source, &rec.Text, &rec.Occurred)
		return rec, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan logs: %w", err)
	}
	return logs, nil
}

// --- Helpers ---

func scanExecution(row pgx.Row) (*domain.ScriptExecution, error) {
	var exec domain.ScriptExecution
	var taskID, version, execError *string
	var state string

	err := row.Scan(
		&exec.Ticket,
		&taskID,
		&exec.Worker,
		&version,
		&state,
		&exec.ExitCode,
		&exec.NextLogSeq,
		&execError,
		&exec.StartedAt,
		&exec.FinishedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan execution: %w", err)
	}

	exec.State = domain.ParseProcessState(state)
	if !exec.State.IsValid() {
		return nil, fmt.Errorf("%w: %q for %s", ErrUnknownState, state, exec.Ticket)
	}

	if taskID != nil {
		exec.TaskID = *taskID
	}
	if version != nil {
		exec.ScriptServiceVersion = *version
	}
	if execError != nil {
		exec.Error = *execError
	}
	return &exec, nil
}

// nullString возвращает nil для пустой строки.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
