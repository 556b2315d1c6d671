// Package telemetry обеспечивает наблюдаемость системы.
//
// Включает:
//   - logging.go — structured logging через slog
//   - metrics.go — Prometheus метрики RPC-вызовов и выполнений скриптов
//
// Все бинарники используют единый формат логирования,
// агент экспортирует метрики на /metrics endpoint.
package telemetry
