package repo

import "errors"

// Общие ошибки репозиториев.
var (
	// ErrNotFound — запись не найдена в БД.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists — запись уже существует (конфликт уникальности).
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidState — выполнение уже закрыто.
	ErrInvalidState = errors.New("invalid state")

	// ErrUnknownState — в записи сохранено неизвестное состояние процесса.
	ErrUnknownState = errors.New("unknown process state")
)
