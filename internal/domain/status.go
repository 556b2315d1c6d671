package domain

// ProcessState — состояние скрипта на удалённом воркере.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → COMPLETE
//	        ↘ COMPLETE
//
// Состояние монотонно: COMPLETE финальный и никогда не откатывается.
type ProcessState string

const (
	// ProcessStatePending — скрипт принят, но ещё не запущен (например, ждёт mutex изоляции).
	ProcessStatePending ProcessState = "Pending"

	// ProcessStateRunning — скрипт выполняется.
	ProcessStateRunning ProcessState = "Running"

	// ProcessStateComplete — скрипт завершён (успешно, с ошибкой или отменён).
	ProcessStateComplete ProcessState = "Complete"
)

// rank задаёт порядок состояний для проверки монотонности.
func (s ProcessState) rank() int {
	switch s {
	case ProcessStatePending:
		return 0
	case ProcessStateRunning:
		return 1
	case ProcessStateComplete:
		return 2
	default:
		return -1
	}
}

// IsValid проверяет, что состояние известно.
func (s ProcessState) IsValid() bool {
	return s.rank() >= 0
}

// IsTerminal возвращает true для COMPLETE.
func (s ProcessState) IsTerminal() bool {
	return s == ProcessStateComplete
}

// AdvanceTo возвращает следующее состояние с учётом монотонности.
// Переход назад (например, COMPLETE → RUNNING) игнорируется: остаётся текущее.
func (s ProcessState) AdvanceTo(next ProcessState) ProcessState {
	if !next.IsValid() {
		return s
	}
	if next.rank() < s.rank() {
		return s
	}
	return next
}

// String возвращает строковое представление ProcessState.
func (s ProcessState) String() string {
	return string(s)
}

// ParseProcessState парсит строку в ProcessState.
func ParseProcessState(s string) ProcessState {
	switch s {
	case "Pending":
		return ProcessStatePending
	case "Running":
		return ProcessStateRunning
	case "Complete":
		return ProcessStateComplete
	default:
		return ""
	}
}
