// Package repo — журнал выполнений скриптов в PostgreSQL (pgx/v5).
//
// Таблицы:
//   - script_executions — одна строка на тикет
//   - script_logs       — записи лога, упорядоченные по (ticket, seq)
//
// Схема создаётся EnsureSchema.
package repo
