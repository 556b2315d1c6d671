package agent

import "errors"

// Ошибки агента.
var (
	// ErrNoWorker — в запросе не указан воркер и нет воркера по умолчанию.
	ErrNoWorker = errors.New("no worker specified")

	// ErrNoConnection — агент запущен без соединения с RabbitMQ.
	ErrNoConnection = errors.New("no mq connection")

	// ErrNoRunners — не задана фабрика клиентов воркеров.
	ErrNoRunners = errors.New("no runner factory")

	// ErrAgentStopped — агент остановлен.
	ErrAgentStopped = errors.New("agent stopped")
)
