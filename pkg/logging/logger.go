// Package logging provides the structured logger the qi runtime reports
// through. Logging is advisory: nothing in the runtime changes behavior
// based on what is or is not logged.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// LogLevel represents the severity level of a log message
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

// String returns the string representation of a log level
func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// LogFormat represents the output format for logs
type LogFormat int

const (
	// TextFormat outputs human-readable text logs
	TextFormat LogFormat = iota
	// JSONFormat outputs structured JSON logs
	JSONFormat
)

// Entry is a single log record with its metadata.
type Entry struct {
	Timestamp time.Time              `json:"timestamp"`
	Level     string                 `json:"level"`
	Category  string                 `json:"category"`
	Message   string                 `json:"message"`
	SessionID string                 `json:"session_id,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// Config holds configuration for the logger
type Config struct {
	// MinLevel is the minimum level to log (zero value: DEBUG, so every level is logged)
	MinLevel LogLevel
	// Format is the output format (default: TextFormat)
	Format LogFormat
	// Output is the writer to send logs to (default: os.Stderr)
	Output io.Writer
	// BufferSize is the size of the async buffer (default: 1000)
	BufferSize int
}

// Logger is a leveled, category-tagged logger. Records are written by a
// background goroutine so logging never stalls a dispatch path; Close
// flushes and stops it.
type Logger struct {
	config    Config
	sessionID string
	buffer    chan Entry
	wg        sync.WaitGroup
	mu        sync.Mutex
	closed    bool
}

// New creates a logger. Every record carries a session id so interleaved
// node logs can be told apart.
func New(config Config) *Logger {
	if config.BufferSize <= 0 {
		config.BufferSize = 1000
	}
	if config.Output == nil {
		config.Output = os.Stderr
	}
	l := &Logger{
		config:    config,
		sessionID: uuid.NewString(),
		buffer:    make(chan Entry, config.BufferSize),
	}
	l.wg.Add(1)
	go l.drain()
	return l
}

var (
	defaultOnce   sync.Once
	defaultLogger *Logger
)

// Default returns the process-wide logger.
func Default() *Logger {
	defaultOnce.Do(func() {
		defaultLogger = New(Config{})
	})
	return defaultLogger
}

// SessionID returns the correlation id stamped on every record.
func (l *Logger) SessionID() string { return l.sessionID }

// Debug logs at DEBUG level under a category.
func (l *Logger) Debug(category, msg string, fields map[string]interface{}) {
	l.log(DEBUG, category, msg, fields)
}

// Info logs at INFO level under a category.
func (l *Logger) Info(category, msg string, fields map[string]interface{}) {
	l.log(INFO, category, msg, fields)
}

// Warn logs at WARN level under a category.
func (l *Logger) Warn(category, msg string, fields map[string]interface{}) {
	l.log(WARN, category, msg, fields)
}

// Error logs at ERROR level under a category.
func (l *Logger) Error(category, msg string, fields map[string]interface{}) {
	l.log(ERROR, category, msg, fields)
}

func (l *Logger) log(level LogLevel, category, msg string, fields map[string]interface{}) {
	if level < l.config.MinLevel {
		return
	}
	entry := Entry{
		Timestamp: time.Now(),
		Level:     level.String(),
		Category:  category,
		Message:   msg,
		SessionID: l.sessionID,
		Fields:    fields,
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	select {
	case l.buffer <- entry:
	default:
		// Full buffer: drop rather than stall the caller.
	}
}

// Close flushes buffered records and stops the writer goroutine.
func (l *Logger) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.mu.Unlock()
	close(l.buffer)
	l.wg.Wait()
}

func (l *Logger) drain() {
	defer l.wg.Done()
	for entry := range l.buffer {
		l.write(entry)
	}
}

func (l *Logger) write(entry Entry) {
	switch l.config.Format {
	case JSONFormat:
		data, err := json.Marshal(entry)
		if err != nil {
			return
		}
		fmt.Fprintln(l.config.Output, string(data))
	default:
		line := fmt.Sprintf("%s [%s] %s: %s",
			entry.Timestamp.Format(time.RFC3339), entry.Level, entry.Category, entry.Message)
		for k, v := range entry.Fields {
			line += fmt.Sprintf(" %s=%v", k, v)
		}
		fmt.Fprintln(l.config.Output, line)
	}
}
