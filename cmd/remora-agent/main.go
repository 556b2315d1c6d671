// Remora Agent — выполняет скрипты на воркерах по запросам из очереди.
//
// Agent:
//   - Получает запросы script.requested из RabbitMQ
//   - Выполняет скрипт через клиент воркера (выбор версии протокола, повторы, отмена)
//   - Записывает выполнение и логи в PostgreSQL
//   - Публикует script.status и script.completed
//
// Agents масштабируются горизонтально. Путь к YAML-конфигурации задаётся
// переменной REMORA_CONFIG.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Remora/internal/agent"
	"github.com/shaiso/Remora/internal/config"
	"github.com/shaiso/Remora/internal/journal"
	"github.com/shaiso/Remora/internal/mq"
	"github.com/shaiso/Remora/internal/repo"
	"github.com/shaiso/Remora/internal/rpc"
	"github.com/shaiso/Remora/internal/telemetry"
	"github.com/shaiso/Remora/internal/transport"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting remora-agent")

	cfg, err := config.Load(os.Getenv("REMORA_CONFIG"))
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := repo.NewPool(ctx, cfg.Agent.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := repo.EnsureSchema(ctx, pool); err != nil {
		logger.Error("failed to create schema", "error", err)
		os.Exit(1)
	}
	logger.Info("database connected")

	// RabbitMQ
	mqConn, err := mq.NewConnection(mq.ConnectionConfig{URL: cfg.Agent.RabbitMQURL, Logger: logger})
	if err != nil {
		logger.Error("failed to connect to rabbitmq", "error", err)
		os.Exit(1)
	}
	defer mqConn.Close()
	logger.Info("RabbitMQ connected")

	// Создаём топологию
	if err := mq.SetupTopology(ctx, mqConn); err != nil {
		logger.Error("failed to setup topology", "error", err)
		os.Exit(1)
	}

	recorder := journal.New(journal.Config{
		Store:     repo.NewExecutionRepo(pool),
		Publisher: mq.NewPublisher(mqConn, logger),
		Logger:    logger,
	})

	observer := telemetry.MultiObserver{
		telemetry.NewPrometheusObserver(prometheus.DefaultRegisterer),
		telemetry.LogObserver{Logger: logger},
	}

	var defaultWorker string
	if len(cfg.Workers) > 0 {
		defaultWorker = cfg.Workers[0]
	}

	a := agent.New(agent.Config{
		Conn:          mqConn,
		Recorder:      recorder,
		Runners:       runnerFactory(cfg, observer, logger),
		DefaultWorker: defaultWorker,
		Concurrency:   cfg.Agent.Concurrency,
		Logger:        logger,
	})

	// Запускаем agent
	if err := a.Start(ctx); err != nil {
		logger.Error("failed to start agent", "error", err)
		os.Exit(1)
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if !mqConn.IsConnected() {
			http.Error(w, "rabbitmq disconnected", http.StatusServiceUnavailable)
			return
		}
		if err := pool.Ping(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: cfg.Agent.HTTPAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		logger.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()

	// Останавливаем agent: выполняющиеся скрипты отменяются на воркерах
	a.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)

	logger.Info("remora-agent stopped")
}

// runnerFactory создаёт HTTP-клиентов воркеров с общими настройками и метриками.
func runnerFactory(cfg config.Config, observer rpc.ClientObserver, logger *slog.Logger) agent.RunnerFactory {
	return func(worker string) (agent.ScriptRunner, error) {
		c, err := transport.NewScriptClient(transport.ClientConfig{
			BaseURL:           worker,
			Timeout:           cfg.Client.RequestTimeout,
			RequestsPerSecond: cfg.Client.RequestsPerSecond,
		}, cfg.ClientOptions(), observer, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}
