package cli

import (
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/Remora/internal/domain"
)

// NewHistoryCmd создаёт группу команд журнала выполнений агента.
func NewHistoryCmd(envFn func() (*Env, error), outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect executions recorded by remora-agent",
	}

	cmd.AddCommand(
		newHistoryListCmd(envFn, outputFn),
		newHistoryShowCmd(envFn, outputFn),
		newHistoryLogsCmd(envFn, outputFn),
	)

	return cmd
}

var historyHeaders = []string{"TICKET", "WORKER", "SERVICE", "STATE", "EXIT_CODE", "STARTED", "FINISHED", "ERROR"}

func historyRow(e domain.ScriptExecution) []string {
	finished := ""
	if e.FinishedAt != nil {
		finished = e.FinishedAt.Format(time.RFC3339)
	}
	return []string{
		e.Ticket.String(),
		e.Worker,
		e.ScriptServiceVersion,
		e.State.String(),
		strconv.Itoa(e.ExitCode),
		e.StartedAt.Format(time.RFC3339),
		finished,
		e.Error,
	}
}

func newHistoryListCmd(envFn func() (*Env, error), outputFn func() *Output) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent executions",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := envFn()
			if err != nil {
				return err
			}
			out := outputFn()

			executions, closePool, err := env.Executions(cmd.Context())
			if err != nil {
				return err
			}
			defer closePool()

			list, err := executions.ListRecent(cmd.Context(), limit)
			if err != nil {
				return err
			}

			rows := make([][]string, len(list))
			for i, e := range list {
				rows[i] = historyRow(e)
			}
			out.Print(historyHeaders, rows, list)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of results")

	return cmd
}

func newHistoryShowCmd(envFn func() (*Env, error), outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show TICKET",
		Short: "Show an execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := envFn()
			if err != nil {
				return err
			}
			out := outputFn()

			executions, closePool, err := env.Executions(cmd.Context())
			if err != nil {
				return err
			}
			defer closePool()

			e, err := executions.GetByTicket(cmd.Context(), domain.ScriptTicket(args[0]))
			if err != nil {
				return err
			}

			out.Print(historyHeaders, [][]string{historyRow(*e)}, e)
			return nil
		},
	}
}

func newHistoryLogsCmd(envFn func() (*Env, error), outputFn func() *Output) *cobra.Command {
	var after int64

	cmd := &cobra.Command{
		Use:   "logs TICKET",
		Short: "Print the recorded output of an execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := envFn()
			if err != nil {
				return err
			}
			out := outputFn()

			executions, closePool, err := env.Executions(cmd.Context())
			if err != nil {
				return err
			}
			defer closePool()

			records, err := executions.ListLogs(cmd.Context(), domain.ScriptTicket(args[0]), after)
			if err != nil {
				return err
			}

			if out.jsonMode {
				out.JSON(records)
				return nil
			}
			for _, r := range records {
				out.Log("", r.ProcessOutput)
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&after, "after", -1, "Only records with a sequence number greater than this")

	return cmd
}
