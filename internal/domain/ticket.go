package domain

import (
	"github.com/google/uuid"
)

// ScriptTicket — идентификатор одного выполнения скрипта на воркере.
//
// Создаётся ровно один раз на выполнение и никогда не переиспользуется.
// Все вызовы, относящиеся к выполнению (start, status, cancel, complete),
// коррелируются по тикету.
type ScriptTicket string

// NewScriptTicket создаёт новый уникальный тикет.
func NewScriptTicket() ScriptTicket {
	return ScriptTicket(uuid.NewString())
}

// IsZero возвращает true для пустого тикета.
func (t ScriptTicket) IsZero() bool {
	return t == ""
}

// String возвращает строковое представление тикета.
func (t ScriptTicket) String() string {
	return string(t)
}
