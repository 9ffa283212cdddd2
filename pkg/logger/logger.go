package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger логгер, принимаемый всеми компонентами сервиса.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(err error, format string, args ...any)
}

// SlogLogger реализует Logger поверх log/slog.
type SlogLogger struct {
	log *slog.Logger
}

// NewSlogLogger создаёт логгер по переменным окружения LOG_LEVEL и APP_ENV.
// В production пишет JSON, иначе текст.
func NewSlogLogger() *SlogLogger {
	opts := &slog.HandlerOptions{Level: parseLevel(os.Getenv("LOG_LEVEL"))}

	var handler slog.Handler
	if strings.EqualFold(os.Getenv("APP_ENV"), "production") {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return New(handler)
}

func New(handler slog.Handler) *SlogLogger {
	return &SlogLogger{log: slog.New(handler)}
}

// NewNop возвращает логгер, отбрасывающий все записи.
func NewNop() *SlogLogger {
	return New(slog.NewTextHandler(io.Discard, nil))
}

// With возвращает логгер с постоянными атрибутами.
func (s *SlogLogger) With(args ...any) *SlogLogger {
	return &SlogLogger{log: s.log.With(args...)}
}

func (s *SlogLogger) Debugf(format string, args ...any) {
	s.log.Debug(sprintf(format, args...))
}

func (s *SlogLogger) Infof(format string, args ...any) {
	s.log.Info(sprintf(format, args...))
}

func (s *SlogLogger) Warnf(format string, args ...any) {
	s.log.Warn(sprintf(format, args...))
}

func (s *SlogLogger) Errorf(err error, format string, args ...any) {
	if err == nil {
		s.log.Error(sprintf(format, args...))
		return
	}

	s.log.Error(sprintf(format, args...), slog.String("error", err.Error()))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func sprintf(format string, args ...any) string {
	if len(args) == 0 {
		return format
	}

	return fmt.Sprintf(format, args...)
}
