package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/Remora/internal/backoff"
	"github.com/shaiso/Remora/internal/contracts"
	"github.com/shaiso/Remora/internal/domain"
	"github.com/shaiso/Remora/internal/rpc"
	"github.com/shaiso/Remora/internal/scripts"
	"github.com/shaiso/Remora/internal/telemetry"
)

// ErrMissingService — не задан обязательный клиент сервиса.
var ErrMissingService = errors.New("missing service client")

// RetrySettings — политика повторов RPC-вызовов.
type RetrySettings struct {
	RetriesEnabled bool
	RetryDuration  time.Duration
}

// Options — настройки клиента.
type Options struct {
	RetrySettings RetrySettings

	// DisableScriptServiceV3 запрещает V3, даже если воркер его поддерживает.
	DisableScriptServiceV3 bool

	// AbandonCompleteScriptAfter — сколько ждать CompleteScript.
	AbandonCompleteScriptAfter time.Duration

	// AbandonCapabilitiesAfter — сколько ждать GetCapabilities после отмены.
	AbandonCapabilitiesAfter time.Duration

	// ObserverBackoff — темп опроса статуса.
	ObserverBackoff backoff.Strategy

	// RetryBackoff — паузы между повторами RPC.
	RetryBackoff backoff.Strategy
}

// DefaultOptions возвращает настройки по умолчанию: повторы включены,
// бюджет 150s, CompleteScript бросается через 60s.
func DefaultOptions() Options {
	return Options{
		RetrySettings: RetrySettings{
			RetriesEnabled: true,
			RetryDuration:  rpc.DefaultRetryDuration,
		},
		AbandonCompleteScriptAfter: scripts.DefaultAbandonCompleteScriptAfter,
		ObserverBackoff:            backoff.DefaultScriptObserver(),
		RetryBackoff:               backoff.DefaultRPCRetry(),
	}
}

// Services — клиенты сервисов воркера.
type Services struct {
	V1           contracts.ScriptServiceV1
	V2           contracts.ScriptServiceV2
	V3           contracts.ScriptServiceV3 // опционально
	Capabilities contracts.CapabilitiesService
}

// Config — конфигурация Client.
type Config struct {
	Services Services
	Options  Options

	// Observer получает метрики (default: rpc.NoopObserver).
	Observer rpc.ClientObserver

	Logger *slog.Logger
}

// Client выполняет скрипты на одном воркере.
//
// Каждый вызов ExecuteScript — независимое выполнение со своим тикетом
// и своими метриками. Client безопасен для конкурентного использования.
type Client struct {
	factory  *scripts.Factory
	executor *rpc.Executor
	observer rpc.ClientObserver
	logger   *slog.Logger
}

// New создаёт новый Client.
func New(cfg Config) (*Client, error) {
	if cfg.Services.Capabilities == nil {
		return nil, fmt.Errorf("%w: capabilities", ErrMissingService)
	}
	if cfg.Services.V1 == nil && cfg.Services.V2 == nil && cfg.Services.V3 == nil {
		return nil, fmt.Errorf("%w: script service", ErrMissingService)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	observer := cfg.Observer
	if observer == nil {
		observer = rpc.NoopObserver{}
	}

	executor := rpc.NewExecutor(rpc.Config{
		RetryDuration: cfg.Options.RetrySettings.RetryDuration,
		Backoff:       cfg.Options.RetryBackoff,
		Observer:      observer,
		Logger:        logger,
	})

	factory := scripts.NewFactory(scripts.FactoryConfig{
		V1:                         cfg.Services.V1,
		V2:                         cfg.Services.V2,
		V3:                         cfg.Services.V3,
		Capabilities:               cfg.Services.Capabilities,
		Executor:                   executor,
		RetriesEnabled:             cfg.Options.RetrySettings.RetriesEnabled,
		DisableScriptServiceV3:     cfg.Options.DisableScriptServiceV3,
		AbandonCompleteScriptAfter: cfg.Options.AbandonCompleteScriptAfter,
		AbandonCapabilitiesAfter:   cfg.Options.AbandonCapabilitiesAfter,
		ObserverBackoff:            cfg.Options.ObserverBackoff,
		Logger:                     logger,
	})

	return &Client{
		factory:  factory,
		executor: executor,
		observer: observer,
		logger:   logger,
	}, nil
}

// ExecuteScript выполняет скрипт и возвращает результат.
//
// Если cmd.Ticket пустой, создаётся новый тикет.
func (c *Client) ExecuteScript(ctx context.Context, cmd domain.StartScriptCommand, callbacks scripts.Callbacks) (domain.ScriptExecutionResult, error) {
	result, _, err := c.ExecuteScriptWithMetrics(ctx, cmd, callbacks)
	return result, err
}

// ExecuteScriptWithMetrics — как ExecuteScript, дополнительно возвращает
// метрики выполнения (выбранную версию протокола и все RPC-вызовы).
func (c *Client) ExecuteScriptWithMetrics(ctx context.Context, cmd domain.StartScriptCommand, callbacks scripts.Callbacks) (domain.ScriptExecutionResult, rpc.OperationMetrics, error) {
	if cmd.Ticket.IsZero() {
		cmd.Ticket = domain.NewScriptTicket()
	}

	logger := telemetry.ForExecution(c.logger, cmd.Ticket, "")
	builder := rpc.StartOperation("ExecuteScript")

	result, err := c.executeScript(ctx, cmd, callbacks, builder)

	metrics := builder.Build(err)
	c.observer.ExecuteScriptCompleted(metrics)

	if err != nil {
		logger.Debug("script execution failed", "error", err)
		return domain.ScriptExecutionResult{}, metrics, err
	}

	logger.Debug("script execution completed", "state", result.State, "exit_code", result.ExitCode)
	return result, metrics, nil
}

func (c *Client) executeScript(ctx context.Context, cmd domain.StartScriptCommand, callbacks scripts.Callbacks, metrics *rpc.OperationMetricsBuilder) (domain.ScriptExecutionResult, error) {
	orchestrator, err := c.factory.CreateOrchestrator(ctx, callbacks, metrics)
	if err != nil {
		return domain.ScriptExecutionResult{}, err
	}
	return orchestrator.ExecuteScript(ctx, cmd)
}

// GetCapabilities запрашивает возможности воркера.
func (c *Client) GetCapabilities(ctx context.Context) (contracts.CapabilitiesResponse, error) {
	return c.factory.GetCapabilities(ctx, nil)
}

// RetryTimeout возвращает бюджет повторов.
func (c *Client) RetryTimeout() time.Duration {
	return c.executor.RetryTimeout()
}
