package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/lmittmann/tint"
)

// SlogLogger implements Logger on top of a *slog.Logger.
type SlogLogger struct {
	logger *slog.Logger
	level  LogLevel
	closer io.Closer
}

// NewConsoleLogger creates a logger that writes coloured,
// human-readable lines to w (stderr when nil).
func NewConsoleLogger(
	w io.Writer, level LogLevel, noColor bool,
) *SlogLogger {
	if w == nil {
		w = os.Stderr
	}
	handler := tint.NewHandler(w, &tint.Options{
		Level:      level.slogLevel(),
		TimeFormat: time.TimeOnly,
		NoColor:    noColor,
	})
	return &SlogLogger{logger: slog.New(handler), level: level}
}

// NewJSONLogger creates a logger that appends JSON lines to the
// file at path, creating parent directories as needed.
func NewJSONLogger(path string, level LogLevel) (*SlogLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrap(err, "create log directory")
	}
	file, err := os.OpenFile(
		path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644,
	)
	if err != nil {
		return nil, errors.Wrap(err, "open log file")
	}

	handler := slog.NewJSONHandler(file, &slog.HandlerOptions{
		Level: level.slogLevel(),
	})
	return &SlogLogger{
		logger: slog.New(handler),
		level:  level,
		closer: file,
	}, nil
}

// NewWriterJSONLogger creates a JSON logger over an arbitrary
// writer. Tests use it to inspect output.
func NewWriterJSONLogger(w io.Writer, level LogLevel) *SlogLogger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level.slogLevel(),
	})
	return &SlogLogger{logger: slog.New(handler), level: level}
}

// Slog exposes the underlying slog logger.
func (l *SlogLogger) Slog() *slog.Logger {
	return l.logger
}

// Info logs an informational message.
func (l *SlogLogger) Info(msg string, fields ...Field) {
	l.logger.Info(msg, toAttrs(fields)...)
}

// Warn logs a warning message.
func (l *SlogLogger) Warn(msg string, fields ...Field) {
	l.logger.Warn(msg, toAttrs(fields)...)
}

// Error logs an error message.
func (l *SlogLogger) Error(msg string, fields ...Field) {
	l.logger.Error(msg, toAttrs(fields)...)
}

// Debug logs a debug message.
func (l *SlogLogger) Debug(msg string, fields ...Field) {
	l.logger.Debug(msg, toAttrs(fields)...)
}

// WithFields returns a logger that attaches fields to every
// entry. The returned logger shares the parent's output and does
// not own it.
func (l *SlogLogger) WithFields(fields ...Field) Logger {
	return &SlogLogger{
		logger: l.logger.With(toAttrs(fields)...),
		level:  l.level,
	}
}

// LogAPIRequest logs an outbound request at debug level.
func (l *SlogLogger) LogAPIRequest(request APIRequestLog) {
	if !l.logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	l.logger.Debug("api request",
		"request_id", request.RequestID,
		"method", request.Method,
		"url", request.URL,
	)
}

// LogAPIResponse logs a response at debug level.
func (l *SlogLogger) LogAPIResponse(response APIResponseLog) {
	l.logger.Debug("api response",
		"request_id", response.RequestID,
		"status", response.StatusCode,
		"bytes", response.BodyLength,
		"time_ms", response.ResponseTimeMs,
	)
}

// Close closes the log file, if this logger owns one.
func (l *SlogLogger) Close() error {
	if l.closer == nil {
		return nil
	}
	err := l.closer.Close()
	l.closer = nil
	return err
}
