package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/shaiso/Remora/internal/retry"
	"github.com/shaiso/Remora/internal/rpc"
)

// Значения метки outcome.
const (
	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
	OutcomeCancelled = "cancelled"
	OutcomeAbandoned = "abandoned"
)

// PrometheusObserver экспортирует метрики клиента в Prometheus.
//
// Реализует rpc.ClientObserver.
type PrometheusObserver struct {
	rpcCalls          *prometheus.CounterVec
	rpcAttempts       *prometheus.CounterVec
	rpcDuration       *prometheus.HistogramVec
	executions        *prometheus.CounterVec
	executionDuration *prometheus.HistogramVec
}

// NewPrometheusObserver регистрирует метрики в reg.
// Если reg == nil, используется prometheus.DefaultRegisterer.
func NewPrometheusObserver(reg prometheus.Registerer) *PrometheusObserver {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusObserver{
		rpcCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "remora_rpc_calls_total",
			Help: "Total logical RPC calls to workers",
		}, []string{"call", "outcome", "with_retries"}),

		rpcAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "remora_rpc_attempts_total",
			Help: "Total RPC attempts sent to workers, including retries",
		}, []string{"call"}),

		rpcDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "remora_rpc_call_duration_seconds",
			Help:    "Duration of logical RPC calls including retries",
			Buckets: prometheus.DefBuckets,
		}, []string{"call"}),

		executions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "remora_script_executions_total",
			Help: "Total script executions",
		}, []string{"script_service", "outcome"}),

		executionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "remora_script_execution_duration_seconds",
			Help:    "Duration of script executions",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 14),
		}, []string{"script_service"}),
	}
}

// RPCCallCompleted реализует rpc.ClientObserver.
func (o *PrometheusObserver) RPCCallCompleted(m rpc.CallMetrics) {
	call := m.Call.String()
	o.rpcCalls.WithLabelValues(call, Outcome(m.Err), strconv.FormatBool(m.WithRetries)).Inc()
	o.rpcAttempts.WithLabelValues(call).Add(float64(m.Attempts))
	o.rpcDuration.WithLabelValues(call).Observe(m.Duration().Seconds())
}

// ExecuteScriptCompleted реализует rpc.ClientObserver.
func (o *PrometheusObserver) ExecuteScriptCompleted(m rpc.OperationMetrics) {
	version := m.ScriptServiceVersion.String()
	o.executions.WithLabelValues(version, Outcome(m.Err)).Inc()
	o.executionDuration.WithLabelValues(version).Observe(m.Duration().Seconds())
}

// Outcome классифицирует ошибку для метки outcome.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, retry.ErrAbandoned):
		return OutcomeAbandoned
	case errors.Is(err, context.Canceled):
		return OutcomeCancelled
	default:
		return OutcomeFailure
	}
}

// LogObserver пишет метрики в лог на уровне DEBUG.
type LogObserver struct {
	Logger *slog.Logger
}

// RPCCallCompleted реализует rpc.ClientObserver.
func (o LogObserver) RPCCallCompleted(m rpc.CallMetrics) {
	o.Logger.Debug("rpc call completed",
		"call", m.Call.String(),
		"attempts", m.Attempts,
		"duration", m.Duration(),
		"outcome", Outcome(m.Err),
	)
}

// ExecuteScriptCompleted реализует rpc.ClientObserver.
func (o LogObserver) ExecuteScriptCompleted(m rpc.OperationMetrics) {
	o.Logger.Debug("script execution metrics",
		"script_service", m.ScriptServiceVersion.String(),
		"calls", len(m.Calls),
		"duration", m.Duration(),
		"outcome", Outcome(m.Err),
	)
}

// MultiObserver рассылает метрики нескольким наблюдателям.
type MultiObserver []rpc.ClientObserver

// RPCCallCompleted реализует rpc.ClientObserver.
func (m MultiObserver) RPCCallCompleted(c rpc.CallMetrics) {
	for _, o := range m {
		o.RPCCallCompleted(c)
	}
}

// ExecuteScriptCompleted реализует rpc.ClientObserver.
func (m MultiObserver) ExecuteScriptCompleted(op rpc.OperationMetrics) {
	for _, o := range m {
		o.ExecuteScriptCompleted(op)
	}
}
