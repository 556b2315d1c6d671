package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewEnqueueCmd создаёт команду постановки скрипта в очередь агенту.
//
// Воркеры берутся только из флагов: без --worker агент выполнит
// скрипт на своём воркере по умолчанию.
func NewEnqueueCmd(envFn func() (*Env, error), outputFn func() *Output) *cobra.Command {
	var sf scriptFlags
	var workers []string

	cmd := &cobra.Command{
		Use:   "enqueue [flags] [-- SCRIPT...]",
		Short: "Queue a script for execution by remora-agent",
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

			publisher, closeConn, err := env.Publisher(cmd.Context())
			if err != nil {
				return err
			}
			defer closeConn()

			queued, err := publishRequests(cmd.Context(), publisher, workers, script)
			if len(queued) > 0 {
				out.Success(fmt.Sprintf("Queued %d execution(s)", len(queued)))
				out.Print(queuedHeaders, queuedRows(queued), queued)
			}
			return err
		},
	}

	sf.bind(cmd)
	cmd.Flags().StringArrayVarP(&workers, "worker", "w", nil, "Worker URL (repeatable)")

	return cmd
}
