// Package scheduler выполняет скрипты по расписанию.
//
// Структура:
//   - cron.go      — расписание (cron-выражение или интервал), вычисление следующего времени
//   - scheduler.go — Runner, вызывающий Job в моменты расписания
//
// Использование:
//
//	r, err := scheduler.New(scheduler.Config{
//	    Schedule: scheduler.Schedule{CronExpr: "*/5 * * * *"},
//	    Logger:   logger,
//	})
//	if err != nil {
//	    return err
//	}
//
//	err = r.Run(ctx, func(ctx context.Context, iteration int, due time.Time) error {
//	    _, err := c.ExecuteScript(ctx, cmd, scripts.Callbacks{})
//	    return err
//	})
package scheduler
