package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bytedance/sonic"
)

type sessionLoggerKey struct{}

// ContextWithSessionLogger returns a child context carrying a session-scoped logger.
func ContextWithSessionLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, sessionLoggerKey{}, logger)
}

// SessionLoggerFromContext retrieves the session-scoped logger from the context.
// Falls back to the global logger when the context carries none.
func SessionLoggerFromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(sessionLoggerKey{}).(*Logger); ok && logger != nil {
		return logger
	}
	return GetLogger()
}

// SessionLogWriter appends structured log records for one dialogue session
// to a JSONL file on disk.
type SessionLogWriter struct {
	mu   sync.Mutex
	file *os.File
}

type sessionLogRecord struct {
	Timestamp string                 `json:"ts"`
	Level     string                 `json:"level"`
	Message   string                 `json:"msg"`
	Attrs     map[string]interface{} `json:"attrs,omitempty"`
}

// NewSessionLogWriter opens (creating if needed) the JSONL log file for the
// given session under dir.
func NewSessionLogWriter(dir string, sessionID string) (*SessionLogWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("core: create session log dir: %w", err)
	}
	path := filepath.Join(dir, sessionID+".jsonl")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("core: open session log file: %w", err)
	}
	return &SessionLogWriter{file: file}, nil
}

// Logger returns a Logger whose records are appended to the session log file
// in addition to the wrapped logger's output.
func (w *SessionLogWriter) Logger(base *Logger) *Logger {
	return NewLogger(func(level string, msg string, attrs map[string]interface{}) {
		if base != nil && base.handlerFunc != nil {
			base.handlerFunc(level, msg, attrs)
		}
		w.write(level, msg, attrs)
	})
}

func (w *SessionLogWriter) write(level string, msg string, attrs map[string]interface{}) {
	record := sessionLogRecord{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level,
		Message:   msg,
		Attrs:     attrs,
	}
	line, err := sonic.Marshal(record)
	if err != nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.file.Write(append(line, '\n'))
}

// Close flushes and closes the underlying file.
func (w *SessionLogWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}
