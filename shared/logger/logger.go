// Copyright 2025 Rampart Security
// SPDX-License-Identifier: BUSL-1.1

package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// LogLevel represents the severity of a log entry
type LogLevel string

const (
	DEBUG LogLevel = "DEBUG"
	INFO  LogLevel = "INFO"
	WARN  LogLevel = "WARN"
	ERROR LogLevel = "ERROR"
)

var levelRank = map[LogLevel]int{DEBUG: 0, INFO: 1, WARN: 2, ERROR: 3}

// Logger provides structured logging for gateway components.
// Every entry carries the component name plus the API key and request
// identifiers so per-tenant log streams can be filtered downstream.
type Logger struct {
	Component  string
	InstanceID string
	Container  string

	minLevel LogLevel

	mu  sync.Mutex
	out io.Writer
}

// LogEntry represents a structured log entry
type LogEntry struct {
	Timestamp  string                 `json:"timestamp"`
	Level      LogLevel               `json:"level"`
	Component  string                 `json:"component"`
	InstanceID string                 `json:"instance_id"`
	Container  string                 `json:"container"`
	KeyID      string                 `json:"key_id"`
	RequestID  string                 `json:"request_id,omitempty"`
	Message    string                 `json:"message"`
	Fields     map[string]interface{} `json:"fields,omitempty"`
}

// New creates a new Logger for the specified component.
// The minimum level comes from LOG_LEVEL (default INFO).
func New(component string) *Logger {
	// Instance ID is set during deployment
	instanceID := os.Getenv("INSTANCE_ID")
	if instanceID == "" {
		instanceID = "unknown"
	}

	container, err := os.Hostname()
	if err != nil {
		container = "unknown"
	}

	minLevel := LogLevel(strings.ToUpper(os.Getenv("LOG_LEVEL")))
	if _, ok := levelRank[minLevel]; !ok {
		minLevel = INFO
	}

	return &Logger{
		Component:  component,
		InstanceID: instanceID,
		Container:  container,
		minLevel:   minLevel,
		out:        os.Stdout,
	}
}

// SetOutput redirects log output, primarily for tests.
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out = w
}

// Log writes one JSON object per line to the logger's output.
func (l *Logger) Log(level LogLevel, keyID, requestID, message string, fields map[string]interface{}) {
	if levelRank[level] < levelRank[l.minLevel] {
		return
	}

	entry := LogEntry{
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
		Level:      level,
		Component:  l.Component,
		InstanceID: l.InstanceID,
		Container:  l.Container,
		KeyID:      keyID,
		RequestID:  requestID,
		Message:    message,
		Fields:     fields,
	}

	jsonBytes, err := json.Marshal(entry)
	if err != nil {
		// Fields with unmarshalable values degrade to plain text
		jsonBytes = []byte(fmt.Sprintf(`{"level":"ERROR","component":%q,"message":"log entry not serializable: %v"}`, l.Component, err))
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.out, "%s\n", jsonBytes)
}

// Info logs an informational message
func (l *Logger) Info(keyID, requestID, message string, fields map[string]interface{}) {
	l.Log(INFO, keyID, requestID, message, fields)
}

// Error logs an error message
func (l *Logger) Error(keyID, requestID, message string, fields map[string]interface{}) {
	l.Log(ERROR, keyID, requestID, message, fields)
}

// Warn logs a warning message
func (l *Logger) Warn(keyID, requestID, message string, fields map[string]interface{}) {
	l.Log(WARN, keyID, requestID, message, fields)
}

// Debug logs a debug message
func (l *Logger) Debug(keyID, requestID, message string, fields map[string]interface{}) {
	l.Log(DEBUG, keyID, requestID, message, fields)
}

// InfoWithDuration logs an info message with duration field
func (l *Logger) InfoWithDuration(keyID, requestID, message string, durationMS float64, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["duration_ms"] = durationMS
	l.Info(keyID, requestID, message, fields)
}

// ErrorWithCode logs an error with status code
func (l *Logger) ErrorWithCode(keyID, requestID, message string, statusCode int, err error, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["status_code"] = statusCode
	if err != nil {
		fields["error"] = err.Error()
	}
	l.Error(keyID, requestID, message, fields)
}
