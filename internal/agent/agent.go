package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shaiso/Remora/internal/domain"
	"github.com/shaiso/Remora/internal/journal"
	"github.com/shaiso/Remora/internal/mq"
	"github.com/shaiso/Remora/internal/rpc"
	"github.com/shaiso/Remora/internal/scripts"
	"github.com/shaiso/Remora/internal/telemetry"
)

const defaultConcurrency = 4

// ScriptRunner выполняет скрипт на одном воркере (реализует *client.Client).
type ScriptRunner interface {
	ExecuteScriptWithMetrics(ctx context.Context, cmd domain.StartScriptCommand, callbacks scripts.Callbacks) (domain.ScriptExecutionResult, rpc.OperationMetrics, error)
}

// RunnerFactory создаёт ScriptRunner для адреса воркера.
type RunnerFactory func(worker string) (ScriptRunner, error)

// Config — конфигурация Agent.
type Config struct {
	// Conn — соединение с RabbitMQ (нужно для Start).
	Conn *mq.Connection

	// Recorder — журнал выполнений (default: без хранилища и публикации).
	Recorder *journal.Recorder

	// Runners создаёт клиентов воркеров.
	Runners RunnerFactory

	// DefaultWorker — воркер для запросов без явного адреса.
	DefaultWorker string

	// Concurrency — сколько скриптов выполняется одновременно (default: 4).
	Concurrency int

	Logger *slog.Logger
}

// Agent выполняет скрипты по запросам из очереди.
type Agent struct {
	conn          *mq.Connection
	recorder      *journal.Recorder
	newRunner     RunnerFactory
	defaultWorker string
	concurrency   int

	runnersMu sync.Mutex
	runners   map[string]ScriptRunner

	consumer *mq.Consumer

	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopped    bool
	stoppedMu  sync.RWMutex
}

// New создаёт новый Agent.
func New(cfg Config) *Agent {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	recorder := cfg.Recorder
	if recorder == nil {
		recorder = journal.New(journal.Config{Logger: logger})
	}

	return &Agent{
		conn:          cfg.Conn,
		recorder:      recorder,
		newRunner:     cfg.Runners,
		defaultWorker: cfg.DefaultWorker,
		concurrency:   concurrency,
		runners:       make(map[string]ScriptRunner),
		logger:        logger,
	}
}

// Start запускает потребление запросов.
func (a *Agent) Start(ctx context.Context) error {
	if a.conn == nil {
		return ErrNoConnection
	}
	if a.newRunner == nil {
		return ErrNoRunners
	}

	ctx, cancel := context.WithCancel(ctx)
	a.cancelFunc = cancel

	a.logger.Info("starting agent",
		"concurrency", a.concurrency,
		"default_worker", a.defaultWorker,
	)

	a.consumer = mq.NewConsumer(a.conn, mq.ConsumerConfig{
		Queue:       mq.QueueScriptsRequested,
		Handler:     a.handleScriptRequested,
		Concurrency: a.concurrency,
		Logger:      a.logger,
	})

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error("script request consumer error", "error", err)
		}
	}()

	a.logger.Info("agent started")
	return nil
}

// Stop останавливает Agent и ждёт завершения выполняющихся скриптов.
func (a *Agent) Stop() {
	a.stoppedMu.Lock()
	a.stopped = true
	a.stoppedMu.Unlock()

	a.logger.Info("stopping agent...")

	if a.cancelFunc != nil {
		a.cancelFunc()
	}
	if a.consumer != nil {
		a.consumer.Stop()
	}

	a.wg.Wait()
	a.logger.Info("agent stopped")
}

// IsStopped проверяет, остановлен ли Agent.
func (a *Agent) IsStopped() bool {
	a.stoppedMu.RLock()
	defer a.stoppedMu.RUnlock()
	return a.stopped
}

// handleScriptRequested обрабатывает сообщение script.requested.
func (a *Agent) handleScriptRequested(ctx context.Context, msg *mq.Message) error {
	if a.IsStopped() {
		return ErrAgentStopped
	}

	payload, err := mq.ParsePayload[mq.ScriptRequestedPayload](msg)
	if err != nil {
		a.logger.Error("failed to parse script.requested payload", "message_id", msg.ID, "error", err)
		return err
	}

	_, err = a.Execute(ctx, payload)
	if errors.Is(err, ErrNoWorker) {
		return err
	}
	return nil
}

// Execute выполняет один запрос и возвращает итог, записанный в журнал.
//
// Ошибку возвращает только если выполнение не удалось начать.
func (a *Agent) Execute(ctx context.Context, req mq.ScriptRequestedPayload) (domain.ExecutionOutcome, error) {
	worker := req.Worker
	if worker == "" {
		worker = a.defaultWorker
	}
	if worker == "" {
		return domain.ExecutionOutcome{}, ErrNoWorker
	}

	runner, err := a.runner(worker)
	if err != nil {
		return domain.ExecutionOutcome{}, fmt.Errorf("create client for %s: %w", worker, err)
	}

	cmd := req.Command
	if cmd.Ticket.IsZero() {
		cmd.Ticket = domain.NewScriptTicket()
	}

	logger := telemetry.ForExecution(a.logger, cmd.Ticket, worker)
	logger.Info("script execution started", "task_id", cmd.TaskID)

	ctx = telemetry.WithLogger(ctx, logger)
	entry := a.recorder.Begin(ctx, worker, cmd)
	result, metrics, execErr := runner.ExecuteScriptWithMetrics(ctx, cmd, entry.Callbacks(scripts.Callbacks{}))
	outcome := entry.Finish(metrics.ScriptServiceVersion, result, execErr)

	if execErr != nil {
		logger.Warn("script execution failed",
			"script_service", outcome.ScriptServiceVersion,
			"duration", metrics.Duration(),
			"error", execErr,
		)
	} else {
		logger.Info("script execution finished",
			"script_service", outcome.ScriptServiceVersion,
			"exit_code", outcome.ExitCode,
			"logs", entry.LogCount(),
			"duration", metrics.Duration(),
		)
	}

	return outcome, nil
}

// runner возвращает клиента воркера, создавая его при первом обращении.
func (a *Agent) runner(worker string) (ScriptRunner, error) {
	a.runnersMu.Lock()
	defer a.runnersMu.Unlock()

	if r, ok := a.runners[worker]; ok {
		return r, nil
	}
	if a.newRunner == nil {
		return nil, ErrNoRunners
	}

	r, err := a.newRunner(worker)
	if err != nil {
		return nil, err
	}
	a.runners[worker] = r
	return r, nil
}
