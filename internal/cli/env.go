package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shaiso/Remora/internal/client"
	"github.com/shaiso/Remora/internal/config"
	"github.com/shaiso/Remora/internal/mq"
	"github.com/shaiso/Remora/internal/repo"
	"github.com/shaiso/Remora/internal/rpc"
	"github.com/shaiso/Remora/internal/telemetry"
	"github.com/shaiso/Remora/internal/transport"
)

// Ошибки CLI.
var (
	ErrNoWorkers    = errors.New("no workers: use --worker or set REMORA_WORKERS")
	ErrScriptFailed = errors.New("script failed")
)

// Env — окружение команд.
type Env struct {
	Config   config.Config
	Logger   *slog.Logger
	Observer rpc.ClientObserver
}

// NewEnv создаёт окружение. Метрики клиента пишутся в лог на уровне DEBUG.
func NewEnv(cfg config.Config, logger *slog.Logger) *Env {
	if logger == nil {
		logger = slog.Default()
	}
	return &Env{
		Config:   cfg,
		Logger:   logger,
		Observer: telemetry.LogObserver{Logger: logger},
	}
}

// Workers возвращает адреса воркеров: из флагов, иначе из конфигурации.
func (e *Env) Workers(override []string) ([]string, error) {
	workers := override
	if len(workers) == 0 {
		workers = e.Config.Workers
	}

	var result []string
	for _, w := range workers {
		if w = strings.TrimSpace(w); w != "" {
			result = append(result, w)
		}
	}
	if len(result) == 0 {
		return nil, ErrNoWorkers
	}
	return result, nil
}

// ScriptClient создаёт клиента воркера по HTTP.
func (e *Env) ScriptClient(worker string) (*client.Client, error) {
	return transport.NewScriptClient(transport.ClientConfig{
		BaseURL:           worker,
		Timeout:           e.Config.Client.RequestTimeout,
		RequestsPerSecond: e.Config.Client.RequestsPerSecond,
	}, e.Config.ClientOptions(), e.Observer, e.Logger)
}

// Publisher подключается к RabbitMQ и объявляет топологию.
// Возвращённую функцию нужно вызвать для закрытия соединения.
func (e *Env) Publisher(ctx context.Context) (*mq.Publisher, func(), error) {
	conn, err := mq.NewConnection(mq.ConnectionConfig{
		URL:    e.Config.Agent.RabbitMQURL,
		Logger: e.Logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	if err := mq.SetupTopology(ctx, conn); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("setup topology: %w", err)
	}

	return mq.NewPublisher(conn, e.Logger), func() { conn.Close() }, nil
}

// Executions подключается к журналу выполнений в PostgreSQL.
func (e *Env) Executions(ctx context.Context) (*repo.ExecutionRepo, func(), error) {
	pool, err := repo.NewPool(ctx, e.Config.Agent.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	return repo.NewExecutionRepo(pool), pool.Close, nil
}
