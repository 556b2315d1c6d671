package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// Job — одно плановое выполнение. iteration начинается с 1.
type Job func(ctx context.Context, iteration int, due time.Time) error

// Config — конфигурация Runner.
type Config struct {
	Schedule Schedule

	// MaxRuns — сколько раз выполнить Job (0 — без ограничения).
	MaxRuns int

	Logger *slog.Logger

	// Now и After — источник времени (для тестов).
	Now   func() time.Time
	After func(d time.Duration) <-chan time.Time
}

// Runner выполняет Job по расписанию.
//
// Выполнения не перекрываются: следующее время считается после завершения
// текущего выполнения, пропущенные моменты не догоняются.
type Runner struct {
	schedule Schedule
	maxRuns  int
	logger   *slog.Logger
	now      func() time.Time
	after    func(d time.Duration) <-chan time.Time
}

// New создаёт Runner. Расписание проверяется сразу.
func New(cfg Config) (*Runner, error) {
	if err := cfg.Schedule.Validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	after := cfg.After
	if after == nil {
		after = time.After
	}

	return &Runner{
		schedule: cfg.Schedule,
		maxRuns:  cfg.MaxRuns,
		logger:   logger,
		now:      now,
		after:    after,
	}, nil
}

// Run выполняет job до отмены ctx или исчерпания MaxRuns.
//
// Ошибки job логируются и не останавливают расписание.
// Возвращает ctx.Err() при отмене, nil после MaxRuns выполнений.
func (r *Runner) Run(ctx context.Context, job Job) error {
	var failed int

	for iteration := 1; r.maxRuns == 0 || iteration <= r.maxRuns; iteration++ {
		due, err := NextDue(r.schedule, r.now())
		if err != nil {
			return err
		}

		r.logger.Debug("waiting for next run", "iteration", iteration, "due", due)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.after(due.Sub(r.now())):
		}

		if err := job(ctx, iteration, due); err != nil {
			failed++
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.logger.Warn("scheduled run failed", "iteration", iteration, "error", err)
			continue
		}

		r.logger.Info("scheduled run completed", "iteration", iteration)
	}

	r.logger.Info("schedule finished", "runs", r.maxRuns, "failed", failed)
	return nil
}
