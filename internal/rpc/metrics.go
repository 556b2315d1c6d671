package rpc

import (
	"time"

	"github.com/shaiso/Remora/internal/contracts"
)

// CallMetrics — результат одного логического вызова (со всеми попытками).
type CallMetrics struct {
	Call         Call
	Start        time.Time
	End          time.Time
	Attempts     int
	WithRetries  bool
	RetryTimeout time.Duration
	Err          error
}

// Duration возвращает длительность вызова.
func (m CallMetrics) Duration() time.Duration {
	return m.End.Sub(m.Start)
}

// Succeeded возвращает true, если вызов завершился без ошибки.
func (m CallMetrics) Succeeded() bool {
	return m.Err == nil
}

// OperationMetrics — итог одной клиентской операции (например, выполнения скрипта).
type OperationMetrics struct {
	Operation            string
	ScriptServiceVersion contracts.ScriptServiceVersion
	Start                time.Time
	End                  time.Time
	Calls                []CallMetrics
	Err                  error
}

// Duration возвращает длительность операции.
func (m OperationMetrics) Duration() time.Duration {
	return m.End.Sub(m.Start)
}

// Succeeded возвращает true, если операция завершилась без ошибки.
func (m OperationMetrics) Succeeded() bool {
	return m.Err == nil
}

// OperationMetricsBuilder накапливает метрики одной операции.
//
// Принадлежит вызывающему коду, который его создал, и не разделяется
// между конкурентными выполнениями. Методы безопасны для nil-получателя.
type OperationMetricsBuilder struct {
	operation string
	version   contracts.ScriptServiceVersion
	start     time.Time
	calls     []CallMetrics
	now       func() time.Time
}

// StartOperation создаёт builder и фиксирует время начала.
func StartOperation(operation string) *OperationMetricsBuilder {
	return &OperationMetricsBuilder{
		operation: operation,
		start:     time.Now(),
		now:       time.Now,
	}
}

// WithScriptServiceVersion запоминает выбранную версию протокола.
func (b *OperationMetricsBuilder) WithScriptServiceVersion(v contracts.ScriptServiceVersion) *OperationMetricsBuilder {
	if b != nil {
		b.version = v
	}
	return b
}

// Record добавляет метрики вызова.
func (b *OperationMetricsBuilder) Record(m CallMetrics) {
	if b == nil {
		return
	}
	b.calls = append(b.calls, m)
}

// Build завершает операцию с результатом err.
func (b *OperationMetricsBuilder) Build(err error) OperationMetrics {
	if b == nil {
		return OperationMetrics{Err: err}
	}

	calls := make([]CallMetrics, len(b.calls))
	copy(calls, b.calls)

	return OperationMetrics{
		Operation:            b.operation,
		ScriptServiceVersion: b.version,
		Start:                b.start,
		End:                  b.now(),
		Calls:                calls,
		Err:                  err,
	}
}
