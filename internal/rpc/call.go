package rpc

// Call описывает логическую удалённую операцию (сервис + метод).
//
// Используется только для логов и метрик, поведения не несёт.
type Call struct {
	Service string
	Method  string
}

// NewCall создаёт дескриптор вызова.
func NewCall(service, method string) Call {
	return Call{Service: service, Method: method}
}

// String возвращает "Service.Method".
func (c Call) String() string {
	return c.Service + "." + c.Method
}
