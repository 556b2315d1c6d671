package scripts

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shaiso/Remora/internal/backoff"
	"github.com/shaiso/Remora/internal/contracts"
	"github.com/shaiso/Remora/internal/rpc"
)

// DefaultAbandonCompleteScriptAfter — сколько ждать CompleteScript по умолчанию.
const DefaultAbandonCompleteScriptAfter = 60 * time.Second

var callGetCapabilities = rpc.NewCall("CapabilitiesService", "GetCapabilities")

// FactoryConfig — конфигурация Factory.
type FactoryConfig struct {
	// Клиенты версий протокола. V3 может быть nil.
	V1           contracts.ScriptServiceV1
	V2           contracts.ScriptServiceV2
	V3           contracts.ScriptServiceV3
	Capabilities contracts.CapabilitiesService

	Executor *rpc.Executor

	RetriesEnabled         bool
	DisableScriptServiceV3 bool

	// AbandonCompleteScriptAfter — default: 60s.
	AbandonCompleteScriptAfter time.Duration

	// AbandonCapabilitiesAfter — сколько ждать GetCapabilities после отмены
	// (0 — бросить сразу).
	AbandonCapabilitiesAfter time.Duration

	// ObserverBackoff — темп опроса статуса (default: backoff.DefaultScriptObserver()).
	ObserverBackoff backoff.Strategy

	Logger *slog.Logger
}

// Factory выбирает версию протокола по возможностям воркера и создаёт
// соответствующий Orchestrator.
type Factory struct {
	cfg    FactoryConfig
	logger *slog.Logger
}

// NewFactory создаёт новую Factory.
func NewFactory(cfg FactoryConfig) *Factory {
	if cfg.AbandonCompleteScriptAfter <= 0 {
		cfg.AbandonCompleteScriptAfter = DefaultAbandonCompleteScriptAfter
	}
	if cfg.AbandonCapabilitiesAfter < 0 {
		cfg.AbandonCapabilitiesAfter = 0
	}
	if cfg.ObserverBackoff == nil {
		cfg.ObserverBackoff = backoff.DefaultScriptObserver()
	}
	if cfg.Executor == nil {
		cfg.Executor = rpc.NewExecutor(rpc.Config{Logger: cfg.Logger})
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Factory{cfg: cfg, logger: logger}
}

// CreateOrchestrator запрашивает возможности воркера (один раз) и создаёт
// Orchestrator для самой новой взаимно поддерживаемой версии.
//
// metrics принадлежит вызывающей стороне и используется всеми вызовами выполнения.
func (f *Factory) CreateOrchestrator(ctx context.Context, callbacks Callbacks, metrics *rpc.OperationMetricsBuilder) (Orchestrator, error) {
	version, err := f.determineVersion(ctx, metrics)
	if err != nil {
		return nil, err
	}
	metrics.WithScriptServiceVersion(version)

	b := binding{
		executor:             f.cfg.Executor,
		metrics:              metrics,
		retriesEnabled:       f.cfg.RetriesEnabled,
		abandonCompleteAfter: f.cfg.AbandonCompleteScriptAfter,
		logger:               f.logger,
	}

	switch version {
	case contracts.Version3:
		return newObservingOrchestrator(newV3Ops(f.cfg.V3, b), f.cfg.ObserverBackoff, callbacks, f.logger), nil
	case contracts.Version2:
		if f.cfg.V2 == nil {
			return nil, fmt.Errorf("%w: %s", ErrNoCompatibleService, version)
		}
		return newObservingOrchestrator(newV2Ops(f.cfg.V2, b), f.cfg.ObserverBackoff, callbacks, f.logger), nil
	default:
		if f.cfg.V1 == nil {
			return nil, fmt.Errorf("%w: %s", ErrNoCompatibleService, version)
		}
		return newObservingOrchestrator(newV1Ops(f.cfg.V1, b), f.cfg.ObserverBackoff, callbacks, f.logger), nil
	}
}

// GetCapabilities выполняет запрос возможностей воркера.
//
// Запрос бросается при отмене: на воркере нечего отменять.
func (f *Factory) GetCapabilities(ctx context.Context, metrics *rpc.OperationMetricsBuilder) (contracts.CapabilitiesResponse, error) {
	if f.cfg.Capabilities == nil {
		return contracts.CapabilitiesResponse{}, fmt.Errorf("%w: capabilities service is not configured", ErrNoCompatibleService)
	}
	return rpc.Execute(ctx, f.cfg.Executor, rpc.Request{
		Call:                  callGetCapabilities,
		RetriesEnabled:        f.cfg.RetriesEnabled,
		AbandonOnCancellation: true,
		AbandonAfter:          f.cfg.AbandonCapabilitiesAfter,
		Metrics:               metrics,
	}, f.cfg.Capabilities.GetCapabilities)
}

func (f *Factory) determineVersion(ctx context.Context, metrics *rpc.OperationMetricsBuilder) (contracts.ScriptServiceVersion, error) {
	f.logger.Debug("determining script service version to use")

	capabilities, err := f.GetCapabilities(ctx, metrics)
	if err != nil {
		return 0, fmt.Errorf("get capabilities: %w", err)
	}

	f.logger.Debug("discovered worker capabilities",
		"capabilities", strings.Join(capabilities.SupportedCapabilities, ","),
	)

	if capabilities.HasScriptServiceV3() {
		switch {
		case f.cfg.DisableScriptServiceV3:
			f.logger.Warn("worker supports script service v3, but it is disabled by configuration, falling back to script service v2")
			return f.selectV2OrV1(capabilities), nil
		case f.cfg.V3 == nil:
			f.logger.Warn("worker supports script service v3, but no v3 client is configured, falling back to script service v2")
			return f.selectV2OrV1(capabilities), nil
		}

		f.logger.Debug("using script service v3")
		f.logRetryPolicy()
		return contracts.Version3, nil
	}

	return f.selectV2OrV1(capabilities), nil
}

func (f *Factory) selectV2OrV1(capabilities contracts.CapabilitiesResponse) contracts.ScriptServiceVersion {
	if capabilities.HasScriptServiceV2() {
		f.logger.Debug("using script service v2")
		f.logRetryPolicy()
		return contracts.Version2
	}

	if f.cfg.RetriesEnabled {
		f.logger.Debug("rpc call retries are enabled but will not be used for script execution as a compatible script service was not found, upgrade the worker to enable this feature")
	}
	f.logger.Debug("using script service v1")
	return contracts.Version1
}

func (f *Factory) logRetryPolicy() {
	if f.cfg.RetriesEnabled {
		f.logger.Debug("rpc call retries are enabled", "retry_timeout_seconds", f.cfg.Executor.RetryTimeout().Seconds())
		return
	}
	f.logger.Debug("rpc call retries are disabled")
}
