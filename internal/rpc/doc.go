// Package rpc выполняет удалённые вызовы к воркеру через retry-обработчик.
//
// Каждый вызов описывается дескриптором Call (сервис + метод), выполняется
// с повторами или без (Request.RetriesEnabled) и, при необходимости,
// бросается после отмены (Request.AbandonOnCancellation).
//
// Метрики:
//   - CallMetrics — один логический вызов со всеми попытками
//   - OperationMetrics — одна клиентская операция (выполнение скрипта)
//   - ClientObserver — получатель метрик (Prometheus, логи, тесты)
package rpc
