// Remora CLI — инструмент командной строки для выполнения скриптов
// на удалённых воркерах.
//
// Использование:
//
//	remora [--config FILE] [--json] <command> [flags]
//
// Команды:
//
//	run           Выполнить скрипт на воркерах
//	capabilities  Возможности воркеров
//	schedule      Выполнять скрипт по расписанию
//	enqueue       Поставить скрипт в очередь remora-agent
//	history       Журнал выполнений remora-agent
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shaiso/Remora/internal/cli"
	"github.com/shaiso/Remora/internal/config"
	"github.com/shaiso/Remora/internal/telemetry"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var configPath string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "remora",
		Short:         "Remora CLI — remote script execution",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	envFn := func() (*cli.Env, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		return cli.NewEnv(cfg, telemetry.SetupLoggerTo(os.Stderr)), nil
	}
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewRunCmd(envFn, outputFn),
		cli.NewCapabilitiesCmd(envFn, outputFn),
		cli.NewScheduleCmd(envFn, outputFn),
		cli.NewEnqueueCmd(envFn, outputFn),
		cli.NewHistoryCmd(envFn, outputFn),
	)

	// Ctrl+C отменяет выполняющиеся скрипты на воркерах
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
