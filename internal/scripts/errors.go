package scripts

import (
	"context"
	"errors"
	"fmt"
)

// Ошибки выполнения скриптов.
var (
	// ErrScriptCancelled — выполнение отменено вызывающей стороной.
	// Совпадает с context.Canceled через errors.Is.
	ErrScriptCancelled = fmt.Errorf("script execution was cancelled: %w", context.Canceled)

	// ErrSequenceRegressed — воркер вернул номер следующей записи лога
	// меньше уже подтверждённого. Не повторяется.
	ErrSequenceRegressed = errors.New("log sequence regressed")

	// ErrNoCompatibleService — ни одна версия протокола не доступна локально.
	ErrNoCompatibleService = errors.New("no compatible script service")
)
