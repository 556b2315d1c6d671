package domain

import (
	"time"
)

// ScriptExecution — журнальная запись одного выполнения скрипта.
//
// Создаётся агентом перед стартом, обновляется по мере получения логов
// и закрывается итогом выполнения.
type ScriptExecution struct {
	// Ticket — тикет выполнения, первичный ключ.
	Ticket ScriptTicket `json:"ticket"`

	// TaskID — идентификатор задачи вызывающей стороны.
	TaskID string `json:"task_id,omitempty"`

	// Worker — адрес воркера.
	Worker string `json:"worker"`

	// ScriptServiceVersion — выбранная версия протокола.
	// Заполняется при завершении.
	ScriptServiceVersion string `json:"script_service_version,omitempty"`

	// State — последнее известное состояние.
	State ProcessState `json:"state"`

	// ExitCode — код выхода (RunningExitCode, пока выполнение не закрыто).
	ExitCode int `json:"exit_code"`

	// NextLogSeq — сколько записей лога сохранено.
	NextLogSeq int64 `json:"next_log_seq"`

	// Error — текст ошибки, если выполнение завершилось ошибкой клиента.
	Error string `json:"error,omitempty"`

	// StartedAt — время начала.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt — время завершения.
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// IsFinished возвращает true, если выполнение закрыто.
func (e *ScriptExecution) IsFinished() bool {
	return e.FinishedAt != nil
}

// LogRecord — сохранённая запись лога выполнения.
type LogRecord struct {
	Ticket ScriptTicket `json:"ticket"`
	Seq    int64        `json:"seq"`
	ProcessOutput
}

// ExecutionOutcome — итог выполнения для журнала.
type ExecutionOutcome struct {
	ScriptServiceVersion string
	State                ProcessState
	ExitCode             int
	Error                string
	FinishedAt           time.Time
}
