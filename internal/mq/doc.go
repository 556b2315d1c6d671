// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — соединение с RabbitMQ (reconnect с backoff, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация запросов и событий выполнения скриптов
//   - consumer.go   — конкурентное потребление сообщений из очереди
//
// Типы сообщений:
//   - script.requested — запрос на выполнение скрипта (потребитель: agent)
//   - script.status    — новые логи выполнения
//   - script.completed — выполнение завершено
//
// Exchanges:
//   - remora.scripts — запросы и события
//   - remora.dlq     — dead letter queue
package mq
