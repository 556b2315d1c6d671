package domain

import (
	"fmt"
	"time"
)

// Коды выхода, которые воркер сообщает помимо кода самого скрипта.
const (
	// RunningExitCode — скрипт ещё выполняется, код не известен.
	RunningExitCode = -45

	// CanceledExitCode — скрипт отменён.
	CanceledExitCode = -43

	// TimeoutExitCode — не удалось получить mutex изоляции за отведённое время.
	TimeoutExitCode = -44

	// FatalExitCode — воркер не смог запустить скрипт.
	FatalExitCode = -42
)

// ScriptIsolationLevel — уровень изоляции скрипта на воркере.
type ScriptIsolationLevel string

const (
	// IsolationNone — скрипты могут выполняться параллельно.
	IsolationNone ScriptIsolationLevel = "NoIsolation"

	// IsolationFull — скрипт захватывает эксклюзивный mutex воркера.
	IsolationFull ScriptIsolationLevel = "FullIsolation"
)

// ScriptType — тип дополнительного скрипта (для воркеров, выбирающих shell по платформе).
type ScriptType string

const (
	ScriptTypePowerShell ScriptType = "PowerShell"
	ScriptTypeBash       ScriptType = "Bash"
	ScriptTypePython     ScriptType = "Python"
)

// NoMutexTimeout — ждать mutex изоляции без ограничения.
const NoMutexTimeout time.Duration = -1

// DefaultMutexName — имя mutex изоляции по умолчанию.
const DefaultMutexName = "RunningScript"

// ProcessOutputSource — источник строки вывода.
type ProcessOutputSource string

const (
	OutputDebug  ProcessOutputSource = "Debug"
	OutputStdOut ProcessOutputSource = "StdOut"
	OutputStdErr ProcessOutputSource = "StdErr"
)

// ProcessOutput — одна запись лога выполнения.
type ProcessOutput struct {
	Source   ProcessOutputSource `json:"source"`
	Text     string              `json:"text"`
	Occurred time.Time           `json:"occurred"`
}

// ScriptFile — файл, передаваемый вместе со скриптом.
type ScriptFile struct {
	Name     string `json:"name"`
	Contents []byte `json:"contents"`
}

// StartScriptCommand — версия-независимая команда запуска скрипта.
//
// Оркестратор конкретной версии протокола преобразует её в свою wire-форму.
type StartScriptCommand struct {
	// Ticket — тикет выполнения. Если пустой, создаётся оркестратором.
	Ticket ScriptTicket `json:"ticket"`

	// TaskID — идентификатор задачи вызывающей стороны (для логов воркера).
	TaskID string `json:"task_id"`

	// ScriptBody — тело скрипта.
	ScriptBody string `json:"script_body"`

	// Arguments — аргументы скрипта.
	Arguments []string `json:"arguments,omitempty"`

	// Isolation — уровень изоляции.
	Isolation ScriptIsolationLevel `json:"isolation"`

	// IsolationMutexName — имя mutex изоляции.
	IsolationMutexName string `json:"isolation_mutex_name,omitempty"`

	// IsolationMutexTimeout — сколько ждать mutex. NoMutexTimeout — без ограничения.
	IsolationMutexTimeout time.Duration `json:"isolation_mutex_timeout"`

	// AdditionalScripts — альтернативные тела скрипта для других shell.
	AdditionalScripts map[ScriptType]string `json:"additional_scripts,omitempty"`

	// Files — файлы, которые нужно положить в рабочую директорию.
	Files []ScriptFile `json:"files,omitempty"`

	// DurationStartScriptCanWaitForScriptToFinish — сколько StartScript может ждать
	// завершения короткого скрипта, чтобы вернуть финальный статус сразу.
	DurationStartScriptCanWaitForScriptToFinish *time.Duration `json:"duration_start_script_can_wait,omitempty"`
}

// Validate проверяет корректность команды.
func (c *StartScriptCommand) Validate() error {
	if c.Ticket.IsZero() {
		return ErrInvalidTicket
	}
	if c.ScriptBody == "" && len(c.AdditionalScripts) == 0 {
		return ErrEmptyScript
	}
	switch c.Isolation {
	case "", IsolationNone, IsolationFull:
	default:
		return fmt.Errorf("%w: %s", ErrUnknownIsolation, c.Isolation)
	}
	return nil
}

// ScriptExecutionResult — итог выполнения скрипта.
// Формируется один раз в конце выполнения.
type ScriptExecutionResult struct {
	State    ProcessState `json:"state"`
	ExitCode int          `json:"exit_code"`
}

// Succeeded возвращает true, если скрипт завершился с кодом 0.
func (r ScriptExecutionResult) Succeeded() bool {
	return r.State == ProcessStateComplete && r.ExitCode == 0
}

// ScriptExecutionStatus — проекция ответа статуса для наблюдателя.
// Содержит только новые записи лога.
type ScriptExecutionStatus struct {
	Logs []ProcessOutput `json:"logs"`
}
