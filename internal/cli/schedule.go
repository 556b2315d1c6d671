package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/Remora/internal/domain"
	"github.com/shaiso/Remora/internal/mq"
	"github.com/shaiso/Remora/internal/scheduler"
)

// NewScheduleCmd создаёт команду выполнения скрипта по расписанию.
func NewScheduleCmd(envFn func() (*Env, error), outputFn func() *Output) *cobra.Command {
	var sf scriptFlags
	var workers []string
	var schedule scheduler.Schedule
	var count int
	var enqueue bool

	cmd := &cobra.Command{
		Use:   "schedule [flags] [-- SCRIPT...]",
		Short: "Execute a script repeatedly on a cron expression or interval",
		Example: `  remora schedule --cron "*/5 * * * *" --worker http://worker-1:8080 -f health.sh
  remora schedule --interval 30s --count 10 --enqueue -- uptime`,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := envFn()
			if err != nil {
				return err
			}
			out := outputFn()

			script, err := sf.command(args)
			if err != nil {
				return err
			}

			runner, err := scheduler.New(scheduler.Config{
				Schedule: schedule,
				MaxRuns:  count,
				Logger:   env.Logger,
			})
			if err != nil {
				return err
			}

			var job scheduler.Job
			if enqueue {
				job, err = enqueueJob(cmd.Context(), env, out, workers, script)
			} else {
				job, err = executeJob(env, out, workers, script)
			}
			if err != nil {
				return err
			}

			err = runner.Run(cmd.Context(), job)
			if errors.Is(err, context.Canceled) {
				out.Success("Schedule stopped")
				return nil
			}
			return err
		},
	}

	sf.bind(cmd)
	cmd.Flags().StringArrayVarP(&workers, "worker", "w", nil, "Worker URL (repeatable, default from config)")
	cmd.Flags().StringVar(&schedule.CronExpr, "cron", "", "Cron expression (5 fields or @descriptor)")
	cmd.Flags().DurationVar(&schedule.Interval, "interval", 0, "Interval between runs")
	cmd.Flags().StringVar(&schedule.Timezone, "timezone", "UTC", "Timezone for the cron expression")
	cmd.Flags().IntVar(&count, "count", 0, "Stop after N runs (0 = run until interrupted)")
	cmd.Flags().BoolVar(&enqueue, "enqueue", false, "Publish runs to the agent queue instead of executing directly")
	cmd.MarkFlagsMutuallyExclusive("cron", "interval")

	return cmd
}

// executeJob выполняет скрипт на воркерах и печатает итоги.
func executeJob(env *Env, out *Output, workers []string, script domain.StartScriptCommand) (scheduler.Job, error) {
	targets, err := env.Workers(workers)
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context, iteration int, due time.Time) error {
		out.Success(fmt.Sprintf("Run %d (due %s)", iteration, due.Format(time.RFC3339)))

		executions := executeOnWorkers(ctx, env, out, targets, script, 0, false)
		out.Print(executionHeaders, executionRows(executions), executions)
		return failures(executions)
	}, nil
}

// enqueueJob публикует запросы выполнения агенту.
// Соединение закрывается при отмене ctx.
func enqueueJob(ctx context.Context, env *Env, out *Output, workers []string, script domain.StartScriptCommand) (scheduler.Job, error) {
	publisher, closeConn, err := env.Publisher(ctx)
	if err != nil {
		return nil, err
	}
	context.AfterFunc(ctx, closeConn)

	return func(ctx context.Context, iteration int, due time.Time) error {
		queued, err := publishRequests(ctx, publisher, workers, script)
		if err != nil {
			return err
		}
		out.Print(queuedHeaders, queuedRows(queued), queued)
		return nil
	}, nil
}

// Queued — запрос, поставленный в очередь агенту.
type Queued struct {
	Worker string              `json:"worker"`
	Ticket domain.ScriptTicket `json:"ticket"`
}

var queuedHeaders = []string{"WORKER", "TICKET"}

func queuedRows(queued []Queued) [][]string {
	rows := make([][]string, len(queued))
	for i, q := range queued {
		worker := q.Worker
		if worker == "" {
			worker = "(agent default)"
		}
		rows[i] = []string{worker, q.Ticket.String()}
	}
	return rows
}

// publishRequests публикует по запросу на каждый воркер.
// Без воркеров публикуется один запрос на воркер агента по умолчанию.
func publishRequests(ctx context.Context, publisher *mq.Publisher, workers []string, script domain.StartScriptCommand) ([]Queued, error) {
	if len(workers) == 0 {
		workers = []string{""}
	}

	queued := make([]Queued, 0, len(workers))
	for _, worker := range workers {
		cmd := script
		cmd.Ticket = domain.NewScriptTicket()

		if err := publisher.PublishScriptRequested(ctx, mq.ScriptRequestedPayload{Worker: worker, Command: cmd}); err != nil {
			return queued, fmt.Errorf("publish request for %q: %w", worker, err)
		}
		queued = append(queued, Queued{Worker: worker, Ticket: cmd.Ticket})
	}
	return queued, nil
}
