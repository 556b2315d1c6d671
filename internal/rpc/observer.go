package rpc

// ClientObserver получает метрики клиента.
//
// Вызовы чисто информационные и не влияют на ход выполнения.
type ClientObserver interface {
	RPCCallCompleted(m CallMetrics)
	ExecuteScriptCompleted(m OperationMetrics)
}

// NoopObserver ничего не делает.
type NoopObserver struct{}

// RPCCallCompleted ничего не делает.
func (NoopObserver) RPCCallCompleted(CallMetrics) {}

// ExecuteScriptCompleted ничего не делает.
func (NoopObserver) ExecuteScriptCompleted(OperationMetrics) {}
