package contracts

import (
	"context"
	"time"

	"github.com/shaiso/Remora/internal/domain"
)

// ScriptServiceVersion — поколение протокола выполнения скриптов.
type ScriptServiceVersion int

const (
	// Version1 — самое старое поколение, поддерживается всеми воркерами.
	// Нет отдельного CancelScript: CompleteScript возвращает финальный статус.
	Version1 ScriptServiceVersion = iota + 1

	// Version2 — отдельные CancelScript и CompleteScript.
	Version2

	// Version3 — как Version2, плюс расширенная команда запуска.
	Version3
)

// String возвращает строковое представление версии.
func (v ScriptServiceVersion) String() string {
	switch v {
	case Version1:
		return "ScriptServiceV1"
	case Version2:
		return "ScriptServiceV2"
	case Version3:
		return "ScriptServiceV3"
	default:
		return "ScriptServiceUnknown"
	}
}

// --- Version 1 ---

// StartScriptCommandV1 — команда запуска V1.
type StartScriptCommandV1 struct {
	Ticket            domain.ScriptTicket          `json:"ticket"`
	TaskID            string                       `json:"task_id"`
	ScriptBody        string                       `json:"script_body"`
	Isolation         domain.ScriptIsolationLevel  `json:"isolation"`
	Arguments         []string                     `json:"arguments,omitempty"`
	AdditionalScripts map[domain.ScriptType]string `json:"additional_scripts,omitempty"`
	Files             []domain.ScriptFile          `json:"files,omitempty"`
}

// ScriptStatusRequestV1 — запрос статуса V1.
type ScriptStatusRequestV1 struct {
	Ticket     domain.ScriptTicket `json:"ticket"`
	LastLogSeq int64               `json:"last_log_sequence"`
}

// CompleteScriptCommandV1 — команда завершения V1.
type CompleteScriptCommandV1 struct {
	Ticket     domain.ScriptTicket `json:"ticket"`
	LastLogSeq int64               `json:"last_log_sequence"`
}

// ScriptStatusResponseV1 — ответ статуса V1.
type ScriptStatusResponseV1 struct {
	Ticket          domain.ScriptTicket    `json:"ticket"`
	State           domain.ProcessState    `json:"state"`
	ExitCode        int                    `json:"exit_code"`
	Logs            []domain.ProcessOutput `json:"logs"`
	NextLogSequence int64                  `json:"next_log_sequence"`
}

// ScriptServiceV1 — контракт V1.
type ScriptServiceV1 interface {
	StartScript(ctx context.Context, cmd StartScriptCommandV1) (ScriptStatusResponseV1, error)
	GetStatus(ctx context.Context, req ScriptStatusRequestV1) (ScriptStatusResponseV1, error)
	CompleteScript(ctx context.Context, cmd CompleteScriptCommandV1) (ScriptStatusResponseV1, error)
}

// --- Version 2 ---

// StartScriptCommandV2 — команда запуска V2.
type StartScriptCommandV2 struct {
	Ticket                domain.ScriptTicket          `json:"ticket"`
	TaskID                string                       `json:"task_id"`
	ScriptBody            string                       `json:"script_body"`
	Isolation             domain.ScriptIsolationLevel  `json:"isolation"`
	IsolationMutexName    string                       `json:"isolation_mutex_name"`
	IsolationMutexTimeout time.Duration                `json:"isolation_mutex_timeout"`
	Arguments             []string                     `json:"arguments,omitempty"`
	AdditionalScripts     map[domain.ScriptType]string `json:"additional_scripts,omitempty"`
	Files                 []domain.ScriptFile          `json:"files,omitempty"`
	DurationToWait        *time.Duration               `json:"duration_start_script_can_wait,omitempty"`
}

// ScriptStatusRequestV2 — запрос статуса V2.
type ScriptStatusRequestV2 struct {
	Ticket     domain.ScriptTicket `json:"ticket"`
	LastLogSeq int64               `json:"last_log_sequence"`
}

// CancelScriptCommandV2 — команда отмены V2.
type CancelScriptCommandV2 struct {
	Ticket     domain.ScriptTicket `json:"ticket"`
	LastLogSeq int64               `json:"last_log_sequence"`
}

// CompleteScriptCommandV2 — команда очистки V2.
type CompleteScriptCommandV2 struct {
	Ticket domain.ScriptTicket `json:"ticket"`
}

// ScriptStatusResponseV2 — ответ статуса V2.
type ScriptStatusResponseV2 struct {
	Ticket          domain.ScriptTicket    `json:"ticket"`
	State           domain.ProcessState    `json:"state"`
	ExitCode        int                    `json:"exit_code"`
	Logs            []domain.ProcessOutput `json:"logs"`
	NextLogSequence int64                  `json:"next_log_sequence"`
}

// ScriptServiceV2 — контракт V2.
type ScriptServiceV2 interface {
	StartScript(ctx context.Context, cmd StartScriptCommandV2) (ScriptStatusResponseV2, error)
	GetStatus(ctx context.Context, req ScriptStatusRequestV2) (ScriptStatusResponseV2, error)
	CancelScript(ctx context.Context, cmd CancelScriptCommandV2) (ScriptStatusResponseV2, error)
	CompleteScript(ctx context.Context, cmd CompleteScriptCommandV2) error
}

// --- Version 3 ---

// StartScriptCommandV3 — команда запуска V3.
type StartScriptCommandV3 struct {
	Ticket                domain.ScriptTicket          `json:"ticket"`
	TaskID                string                       `json:"task_id"`
	ScriptBody            string                       `json:"script_body"`
	Isolation             domain.ScriptIsolationLevel  `json:"isolation"`
	IsolationMutexName    string                       `json:"isolation_mutex_name"`
	IsolationMutexTimeout time.Duration                `json:"isolation_mutex_timeout"`
	Arguments             []string                     `json:"arguments,omitempty"`
	AdditionalScripts     map[domain.ScriptType]string `json:"additional_scripts,omitempty"`
	Files                 []domain.ScriptFile          `json:"files,omitempty"`
	DurationToWait        time.Duration                `json:"duration_start_script_can_wait"`
}

// ScriptStatusRequestV3 — запрос статуса V3.
type ScriptStatusRequestV3 struct {
	Ticket     domain.ScriptTicket `json:"ticket"`
	LastLogSeq int64               `json:"last_log_sequence"`
}

// CancelScriptCommandV3 — команда отмены V3.
type CancelScriptCommandV3 struct {
	Ticket     domain.ScriptTicket `json:"ticket"`
	LastLogSeq int64               `json:"last_log_sequence"`
}

// CompleteScriptCommandV3 — команда очистки V3.
type CompleteScriptCommandV3 struct {
	Ticket domain.ScriptTicket `json:"ticket"`
}

// ScriptStatusResponseV3 — ответ статуса V3.
type ScriptStatusResponseV3 struct {
	Ticket          domain.ScriptTicket    `json:"ticket"`
	State           domain.ProcessState    `json:"state"`
	ExitCode        int                    `json:"exit_code"`
	Logs            []domain.ProcessOutput `json:"logs"`
	NextLogSequence int64                  `json:"next_log_sequence"`
}

// ScriptServiceV3 — контракт V3.
type ScriptServiceV3 interface {
	StartScript(ctx context.Context, cmd StartScriptCommandV3) (ScriptStatusResponseV3, error)
	GetStatus(ctx context.Context, req ScriptStatusRequestV3) (ScriptStatusResponseV3, error)
	CancelScript(ctx context.Context, cmd CancelScriptCommandV3) (ScriptStatusResponseV3, error)
	CompleteScript(ctx context.Context, cmd CompleteScriptCommandV3) error
}
