package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/shaiso/Remora/internal/domain"
	"github.com/shaiso/Remora/internal/journal"
	"github.com/shaiso/Remora/internal/scripts"
)

// Execution — итог выполнения скрипта на одном воркере.
type Execution struct {
	Worker        string              `json:"worker"`
	Ticket        domain.ScriptTicket `json:"ticket"`
	ScriptService string              `json:"script_service,omitempty"`
	State         domain.ProcessState `json:"state"`
	ExitCode      int                 `json:"exit_code"`
	Duration      string              `json:"duration"`
	Error         string              `json:"error,omitempty"`
}

// Succeeded возвращает true для завершившегося с кодом 0 скрипта.
func (e Execution) Succeeded() bool {
	return e.Error == "" && e.State == domain.ProcessStateComplete && e.ExitCode == 0
}

var executionHeaders = []string{"WORKER", "TICKET", "SERVICE", "STATE", "EXIT_CODE", "DURATION", "ERROR"}

func executionRows(executions []Execution) [][]string {
	rows := make([][]string, len(executions))
	for i, e := range executions {
		rows[i] = []string{e.Worker, e.Ticket.String(), e.ScriptService, e.State.String(), strconv.Itoa(e.ExitCode), e.Duration, e.Error}
	}
	return rows
}

// NewRunCmd создаёт команду выполнения скрипта.
func NewRunCmd(envFn func() (*Env, error), outputFn func() *Output) *cobra.Command {
	var sf scriptFlags
	var workers []string
	var parallel int
	var failFast bool

	cmd := &cobra.Command{
		Use:   "run [flags] [-- SCRIPT...]",
		Short: "Execute a script on one or more workers",
		Example: `  remora run --worker http://worker-1:8080 -- echo hello
  remora run --worker http://a:8080 --worker http://b:8080 -f deploy.sh --isolation full`,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := envFn()
			if err != nil {
				return err
			}
			out := outputFn()

			targets, err := env.Workers(workers)
			if err != nil {
				return err
			}
			script, err := sf.command(args)
			if err != nil {
				return err
			}

			executions := executeOnWorkers(cmd.Context(), env, out, targets, script, parallel, failFast)

			out.Print(executionHeaders, executionRows(executions), executions)
			return failures(executions)
		},
	}

	sf.bind(cmd)
	cmd.Flags().StringArrayVarP(&workers, "worker", "w", nil, "Worker URL (repeatable, default from config)")
	cmd.Flags().IntVar(&parallel, "parallel", 0, "Maximum concurrent executions (0 = all workers at once)")
	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "Cancel remaining executions after the first failure")

	return cmd
}

// executeOnWorkers выполняет скрипт на каждом воркере независимо.
// Результаты возвращаются в порядке workers.
func executeOnWorkers(ctx context.Context, env *Env, out *Output, workers []string, cmd domain.StartScriptCommand, parallel int, failFast bool) []Execution {
	executions := make([]Execution, len(workers))

	g, gctx := errgroup.WithContext(ctx)
	if parallel > 0 {
		g.SetLimit(parallel)
	}

	runCtx := ctx
	if failFast {
		runCtx = gctx
	}

	prefixLogs := len(workers) > 1
	for i, worker := range workers {
		g.Go(func() error {
			e := executeOnWorker(runCtx, env, out, worker, cmd, prefixLogs)
			executions[i] = e
			if failFast && !e.Succeeded() {
				return fmt.Errorf("%w on %s", ErrScriptFailed, worker)
			}
			return nil
		})
	}
	_ = g.Wait()

	return executions
}

func executeOnWorker(ctx context.Context, env *Env, out *Output, worker string, cmd domain.StartScriptCommand, prefixLogs bool) Execution {
	cmd.Ticket = domain.NewScriptTicket()
	execution := Execution{Worker: worker, Ticket: cmd.Ticket}

	c, err := env.ScriptClient(worker)
	if err != nil {
		execution.State = domain.ProcessStateComplete
		execution.ExitCode = domain.FatalExitCode
		execution.Error = err.Error()
		return execution
	}

	prefix := ""
	if prefixLogs {
		prefix = worker
	}

	result, metrics, err := c.ExecuteScriptWithMetrics(ctx, cmd, scripts.Callbacks{
		OnStatusReceived: func(status domain.ScriptExecutionStatus) {
			for _, line := range status.Logs {
				out.Log(prefix, line)
			}
		},
	})

	outcome := journal.Outcome(result, err)
	if metrics.ScriptServiceVersion != 0 {
		execution.ScriptService = metrics.ScriptServiceVersion.String()
	}
	execution.State = outcome.State
	execution.ExitCode = outcome.ExitCode
	execution.Error = outcome.Error
	execution.Duration = metrics.Duration().Round(time.Millisecond).String()

	return execution
}

// failures возвращает ErrScriptFailed, если хотя бы одно выполнение неуспешно.
func failures(executions []Execution) error {
	failed := 0
	for _, e := range executions {
		if !e.Succeeded() {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d executions", ErrScriptFailed, failed, len(executions))
	}
	return nil
}
