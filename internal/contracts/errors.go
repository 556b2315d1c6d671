package contracts

import "errors"

// Ошибки, которыми транспорт классифицирует сбои вызова.
var (
	// ErrCancelledInFlight — вызов отменён вызывающей стороной после того,
	// как запрос уже был отправлен. Воркер мог начать его обработку.
	ErrCancelledInFlight = errors.New("operation was cancelled while in flight")

	// ErrMalformedResponse — ответ воркера не удалось разобрать. Не retriable.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrUnknownTicket — воркер не знает такой тикет.
	ErrUnknownTicket = errors.New("unknown script ticket")

	// ErrServiceUnavailable — воркер временно недоступен или занят.
	ErrServiceUnavailable = errors.New("service unavailable")
)
