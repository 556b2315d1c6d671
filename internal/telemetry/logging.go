package telemetry

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/shaiso/Remora/internal/domain"
)

// Ключи атрибутов, общие для всех компонентов.
const (
	AttrTicket = "ticket"
	AttrWorker = "worker"
)

// LogLevel читает уровень из LOG_LEVEL (DEBUG, INFO, WARN, ERROR).
// Неизвестное или пустое значение даёт INFO.
func LogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(os.Getenv("LOG_LEVEL")))); err != nil {
		return slog.LevelInfo
	}
	return level
}

// NewHandler создаёт handler в формате LOG_FORMAT: "text" для разработки,
// иначе JSON.
func NewHandler(w io.Writer, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level <= slog.LevelDebug,
	}

	if strings.EqualFold(os.Getenv("LOG_FORMAT"), "text") {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

// SetupLogger инициализирует глобальный логгер, пишущий в stdout.
// Используется демонами; CLI пишет лог в stderr через SetupLoggerTo.
func SetupLogger() *slog.Logger {
	return SetupLoggerTo(os.Stdout)
}

// SetupLoggerTo — как SetupLogger, но пишет в w.
func SetupLoggerTo(w io.Writer) *slog.Logger {
	logger := slog.New(NewHandler(w, LogLevel()))
	slog.SetDefault(logger)
	return logger
}

// ForExecution возвращает логгер одного выполнения: с тикетом
// и, если задан, адресом воркера.
func ForExecution(logger *slog.Logger, ticket domain.ScriptTicket, worker string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(AttrTicket, ticket.String())
	if worker != "" {
		logger = logger.With(AttrWorker, worker)
	}
	return logger
}

// ForWorker возвращает логгер с адресом воркера.
func ForWorker(logger *slog.Logger, worker string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With(AttrWorker, worker)
}

type loggerKey struct{}

// WithLogger кладёт логгер выполнения в контекст.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext возвращает логгер из контекста, иначе fallback
// (или slog.Default(), если fallback == nil).
func FromContext(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && logger != nil {
		return logger
	}
	if fallback != nil {
		return fallback
	}
	return slog.Default()
}
