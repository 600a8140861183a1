// internal/utils/logger.go
package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// LogLevel represents the logging level
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARNING
	ERROR
)

var levelNames = [...]string{"DEBUG", "INFO", "WARNING", "ERROR"}

// Logger writes leveled entries to a log file and to stdout.
// The file side is one JSON object per line so generation runs can be
// inspected with standard tooling; stdout stays human readable.
type Logger struct {
	mu    sync.Mutex
	file  *os.File
	level LogLevel
}

// logEntry is the JSON line written to the log file
type logEntry struct {
	Level     string                 `json:"level"`
	Timestamp string                 `json:"ts"`
	Message   string                 `json:"msg"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

var (
	globalLogger *Logger
	loggerOnce   sync.Once
)

// GetLogger returns the global logger instance
func GetLogger() *Logger {
	loggerOnce.Do(func() {
		globalLogger = &Logger{level: INFO}
	})
	return globalLogger
}

// InitLogger attaches the global logger to a log file,
// creating parent directories as needed
func InitLogger(logFile string) error {
	logger := GetLogger()

	if err := os.MkdirAll(filepath.Dir(logFile), 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	logger.mu.Lock()
	defer logger.mu.Unlock()

	if logger.file != nil {
		logger.file.Close()
	}
	logger.file = file
	return nil
}

// SetLogLevel sets the minimum level for logging
func (l *Logger) SetLogLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

func (l *Logger) log(level LogLevel, message string, fields map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level < l.level {
		return
	}
	now := time.Now()

	if l.file != nil {
		line, err := json.Marshal(logEntry{
			Level:     levelNames[level],
			Timestamp: now.Format(time.RFC3339Nano),
			Message:   message,
			Fields:    fields,
		})
		if err == nil {
			l.file.Write(append(line, '\n'))
		}
	}

	console := fmt.Sprintf("[%s] %s %s", levelNames[level], now.Format("2006-01-02 15:04:05.000"), message)
	for key, value := range fields {
		console += fmt.Sprintf(" %s=%v", key, value)
	}
	os.Stdout.WriteString(console + "\n")
}

// Debug logs a debug message
func (l *Logger) Debug(message string, fields map[string]interface{}) {
	l.log(DEBUG, message, fields)
}

// Info logs an info message
func (l *Logger) Info(message string, fields map[string]interface{}) {
	l.log(INFO, message, fields)
}

// Warn logs a warning message
func (l *Logger) Warn(message string, fields map[string]interface{}) {
	l.log(WARNING, message, fields)
}

// Error logs an error message
func (l *Logger) Error(message string, fields map[string]interface{}) {
	l.log(ERROR, message, fields)
}
