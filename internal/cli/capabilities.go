package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// WorkerCapabilities — возможности одного воркера.
type WorkerCapabilities struct {
	Worker       string   `json:"worker"`
	Capabilities []string `json:"capabilities"`
	Error        string   `json:"error,omitempty"`
}

// NewCapabilitiesCmd создаёт команду запроса возможностей воркеров.
func NewCapabilitiesCmd(envFn func() (*Env, error), outputFn func() *Output) *cobra.Command {
	var workers []string

	cmd := &cobra.Command{
		Use:   "capabilities",
		Short: "Show the services supported by workers",
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

			results := make([]WorkerCapabilities, len(targets))
			var g errgroup.Group
			for i, worker := range targets {
				g.Go(func() error {
					results[i] = WorkerCapabilities{Worker: worker}

					c, err := env.ScriptClient(worker)
					if err == nil {
						caps, capsErr := c.GetCapabilities(cmd.Context())
						results[i].Capabilities = caps.SupportedCapabilities
						err = capsErr
					}
					if err != nil {
						results[i].Error = err.Error()
						return fmt.Errorf("%s: %w", worker, err)
					}
					return nil
				})
			}
			groupErr := g.Wait()

			rows := make([][]string, len(results))
			for i, r := range results {
				rows[i] = []string{r.Worker, strings.Join(r.Capabilities, ", "), r.Error}
			}
			out.Print([]string{"WORKER", "CAPABILITIES", "ERROR"}, rows, results)

			return groupErr
		},
	}

	cmd.Flags().StringArrayVarP(&workers, "worker", "w", nil, "Worker URL (repeatable, default from config)")

	return cmd
}
