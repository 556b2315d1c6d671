// Package contracts описывает удалённый контракт воркера: wire-формы трёх
// поколений протокола выполнения скриптов и запрос возможностей.
//
// Поколения:
//   - V1 — StartScript, GetStatus, CompleteScript (возвращает финальный статус)
//   - V2 — добавлены CancelScript и отдельный CompleteScript без результата
//   - V3 — как V2, с расширенной командой запуска
//
// Кодирование на проводе в пакет не входит: интерфейсы реализует транспорт
// (см. internal/transport) или тестовые fake-реализации.
package contracts
