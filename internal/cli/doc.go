// Package cli реализует инструмент командной строки Remora.
//
// # Обзор
//
// CLI выполняет скрипты на воркерах напрямую через internal/client
// (HTTP-транспорт internal/transport) или ставит их в очередь агенту
// через RabbitMQ.
//
// # Ключевые компоненты
//
// ## Env
//
// Окружение команд: загруженная конфигурация, логгер и наблюдатель метрик.
// Создаёт клиентов воркеров, publisher очереди и репозиторий журнала.
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (json.MarshalIndent) — с флагом --json
//
// Данные и вывод скриптов печатаются в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: remora run --json ... | jq .
//
// ## Commands
//
//   - run: выполнить скрипт на одном или нескольких воркерах
//   - capabilities: показать возможности воркеров
//   - schedule: выполнять скрипт по cron-выражению или интервалу
//   - enqueue: поставить скрипт в очередь агенту
//   - history: журнал выполнений агента
//
// Каждая команда создаётся фабричной функцией (NewRunCmd и т.д.),
// принимающей envFn и outputFn — замыкания для ленивого создания
// Env и Output после парсинга PersistentFlags.
package cli
