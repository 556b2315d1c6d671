// Package transport — JSON-over-HTTP привязка контрактов воркера.
//
// Клиентская сторона (Client) реализует contracts.ScriptServiceV1/V2/V3 и
// contracts.CapabilitiesService поверх net/http:
//   - темп запросов ограничивается rate.Limiter
//   - отмена после отправки запроса оборачивается в contracts.ErrCancelledInFlight
//   - неразборчивый ответ даёт contracts.ErrMalformedResponse
//
// Серверная сторона (NewHandler) публикует любую реализацию контрактов
// на gorilla/mux роутере:
//
//	POST /api/v{1,2,3}/scripts/start
//	POST /api/v{1,2,3}/scripts/status
//	POST /api/v{2,3}/scripts/cancel
//	POST /api/v{1,2,3}/scripts/complete
//	GET  /api/capabilities
//
// Формат ответа: {"data": ...} при успехе, {"error": {"code", "message"}} при ошибке.
package transport
