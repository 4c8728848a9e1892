package logger

import (
	"sync"
)

// TestLogger 用于测试的日志记录器
type TestLogger struct {
	mu      *sync.Mutex
	entries *[]LogEntry
	name    string
	fields  []Field
}

type LogEntry struct {
	Level   string
	Logger  string
	Message string
	Fields  []Field
}

// NewTestLogger 创建一个新的测试日志记录器
func NewTestLogger() *TestLogger {
	entries := make([]LogEntry, 0)
	return &TestLogger{
		mu:      &sync.Mutex{},
		entries: &entries,
	}
}

func (l *TestLogger) Debug(msg string, fields ...Field) {
	l.log("DEBUG", msg, fields...)
}

func (l *TestLogger) Info(msg string, fields ...Field) {
	l.log("INFO", msg, fields...)
}

func (l *TestLogger) Warn(msg string, fields ...Field) {
	l.log("WARN", msg, fields...)
}

func (l *TestLogger) Error(msg string, fields ...Field) {
	l.log("ERROR", msg, fields...)
}

func (l *TestLogger) Fatal(msg string, fields ...Field) {
	l.log("FATAL", msg, fields...)
}

// With returns a child sharing the same entry buffer.
func (l *TestLogger) With(fields ...Field) Logger {
	child := *l
	child.fields = append(append([]Field{}, l.fields...), fields...)
	return &child
}

// Named returns a child sharing the same entry buffer.
func (l *TestLogger) Named(name string) Logger {
	child := *l
	if l.name != "" {
		name = l.name + "." + name
	}
	child.name = name
	return &child
}

func (l *TestLogger) Sync() error {
	return nil
}

func (l *TestLogger) log(level, msg string, fields ...Field) {
	l.mu.Lock()
	defer l.mu.Unlock()

	*l.entries = append(*l.entries, LogEntry{
		Level:   level,
		Logger:  l.name,
		Message: msg,
		Fields:  append(append([]Field{}, l.fields...), fields...),
	})
}

// GetEntries 返回所有日志条目
func (l *TestLogger) GetEntries() []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries := make([]LogEntry, len(*l.entries))
	copy(entries, *l.entries)
	return entries
}

// HasMessage reports whether any entry at level carries msg.
func (l *TestLogger) HasMessage(level, msg string) bool {
	for _, e := range l.GetEntries() {
		if e.Level == level && e.Message == msg {
			return true
		}
	}
	return false
}

// Clear 清除所有日志条目
func (l *TestLogger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.entries = (*l.entries)[:0]
}
