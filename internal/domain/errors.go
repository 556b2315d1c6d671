package domain

import "errors"

// Ошибки валидации доменных объектов.
var (
	// ErrInvalidTicket — тикет пустой.
	ErrInvalidTicket = errors.New("script ticket is empty")

	// ErrEmptyScript — не задано тело скрипта.
	ErrEmptyScript = errors.New("script body is empty")

	// ErrUnknownIsolation — неизвестный уровень изоляции.
	ErrUnknownIsolation = errors.New("unknown isolation level")
)
