package server

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"time"
)

// LogLevel represents the severity level of a log message
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

// String returns the string representation of the log level
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
	case FATAL:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLogLevel maps a LOG_LEVEL value to a LogLevel, defaulting to INFO.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DEBUG
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	case "FATAL":
		return FATAL
	default:
		return INFO
	}
}

// LogContext provides context for log messages
type LogContext struct {
	JobID     string `json:"jobId,omitempty"`
	RequestID string `json:"requestId,omitempty"`
	Model     string `json:"model,omitempty"`
	Operation string `json:"operation,omitempty"`
}

// Logger writes levelled logs, human-readable or as JSON lines.
// INFO and below go to stdout, ERROR and above to stderr.
type Logger struct {
	loggers  map[LogLevel]*log.Logger
	stdout   io.Writer
	stderr   io.Writer
	minLevel LogLevel
	json     bool
}

// JSONLogEntry represents a structured log entry
type JSONLogEntry struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Context   *LogContext            `json:"context,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// Global logger instance
var AppLogger = NewLogger()

// NewLogger creates a logger configured from LOG_LEVEL and LOG_FORMAT.
// A Cloud Foundry VCAP_APPLICATION also switches output to JSON.
func NewLogger() *Logger {
	jsonOutput := strings.EqualFold(os.Getenv("LOG_FORMAT"), "json") || os.Getenv("VCAP_APPLICATION") != ""
	return NewLoggerWithOutput(os.Stdout, os.Stderr, ParseLogLevel(os.Getenv("LOG_LEVEL")), jsonOutput)
}

// NewLoggerWithOutput creates a logger writing to the given streams.
func NewLoggerWithOutput(stdout, stderr io.Writer, minLevel LogLevel, jsonOutput bool) *Logger {
	flags := log.LstdFlags | log.Lmsgprefix
	return &Logger{
		loggers: map[LogLevel]*log.Logger{
			DEBUG: log.New(stdout, "[DEBUG] ", flags),
			INFO:  log.New(stdout, "[INFO]  ", flags),
			WARN:  log.New(stdout, "[WARN]  ", flags),
			ERROR: log.New(stderr, "[ERROR] ", flags),
			FATAL: log.New(stderr, "[FATAL] ", flags),
		},
		stdout:   stdout,
		stderr:   stderr,
		minLevel: minLevel,
		json:     jsonOutput,
	}
}

func (l *Logger) output(level LogLevel, ctx *LogContext, fields map[string]interface{}, format string, v ...interface{}) {
	if level < l.minLevel {
		return
	}

	message := format
	if len(v) > 0 {
		message = fmt.Sprintf(format, v...)
	}

	if l.json {
		l.logJSON(level, message, ctx, fields)
		return
	}
	l.loggers[level].Print(formatContext(ctx) + message + formatFields(fields))
}

// Debug logs a debug message
func (l *Logger) Debug(format string, v ...interface{}) {
	l.output(DEBUG, nil, nil, format, v...)
}

// Info logs an info message
func (l *Logger) Info(format string, v ...interface{}) {
	l.output(INFO, nil, nil, format, v...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, v ...interface{}) {
	l.output(WARN, nil, nil, format, v...)
}

// Error logs an error message
func (l *Logger) Error(format string, v ...interface{}) {
	l.output(ERROR, nil, nil, format, v...)
}

// Fatal logs a fatal message and exits
func (l *Logger) Fatal(format string, v ...interface{}) {
	l.output(FATAL, nil, nil, format, v...)
	os.Exit(1)
}

func (l *Logger) DebugWithFields(format string, fields map[string]interface{}, v ...interface{}) {
	l.output(DEBUG, nil, fields, format, v...)
}

func (l *Logger) InfoWithContext(ctx *LogContext, format string, v ...interface{}) {
	l.output(INFO, ctx, nil, format, v...)
}

func (l *Logger) InfoWithFields(format string, fields map[string]interface{}, v ...interface{}) {
	l.output(INFO, nil, fields, format, v...)
}

func (l *Logger) WarnWithContext(ctx *LogContext, format string, v ...interface{}) {
	l.output(WARN, ctx, nil, format, v...)
}

func (l *Logger) WarnWithFields(format string, fields map[string]interface{}, v ...interface{}) {
	l.output(WARN, nil, fields, format, v...)
}

func (l *Logger) ErrorWithContext(ctx *LogContext, format string, v ...interface{}) {
	l.output(ERROR, ctx, nil, format, v...)
}

func (l *Logger) ErrorWithFields(format string, fields map[string]interface{}, v ...interface{}) {
	l.output(ERROR, nil, fields, format, v...)
}

// logJSON writes one JSON line to the stream matching the level
func (l *Logger) logJSON(level LogLevel, message string, ctx *LogContext, fields map[string]interface{}) {
	entry := JSONLogEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Level:     level.String(),
		Message:   message,
		Context:   ctx,
		Fields:    fields,
	}

	output := l.stdout
	if level >= ERROR {
		output = l.stderr
	}

	encoder := json.NewEncoder(output)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(entry); err != nil {
		log.Printf("failed to encode log entry: %v", err)
	}
}

// formatContext formats context for human-readable logs
func formatContext(ctx *LogContext) string {
	if ctx == nil {
		return ""
	}

	var parts []string
	if ctx.JobID != "" {
		parts = append(parts, fmt.Sprintf("[Job:%s]", ctx.JobID))
	}
	if ctx.RequestID != "" {
		parts = append(parts, fmt.Sprintf("[Req:%s]", ctx.RequestID))
	}
	if ctx.Model != "" {
		parts = append(parts, fmt.Sprintf("[Model:%s]", ctx.Model))
	}
	if ctx.Operation != "" {
		parts = append(parts, fmt.Sprintf("[Op:%s]", ctx.Operation))
	}

	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, "") + " "
}

// formatFields renders fields sorted by key so lines are stable
func formatFields(fields map[string]interface{}) string {
	if len(fields) == 0 {
		return ""
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(" |")
	for _, k := range keys {
		fmt.Fprintf(&sb, " %s=%v", k, fields[k])
	}
	return sb.String()
}

// WithContext returns a context logger for chaining
func (l *Logger) WithContext(ctx *LogContext) *ContextLogger {
	return &ContextLogger{
		logger: l,
		ctx:    ctx,
	}
}

// ContextLogger provides context-aware logging
type ContextLogger struct {
	logger *Logger
	ctx    *LogContext
}

func (cl *ContextLogger) Debug(format string, v ...interface{}) {
	cl.logger.output(DEBUG, cl.ctx, nil, format, v...)
}

func (cl *ContextLogger) Info(format string, v ...interface{}) {
	cl.logger.output(INFO, cl.ctx, nil, format, v...)
}

func (cl *ContextLogger) Warn(format string, v ...interface{}) {
	cl.logger.output(WARN, cl.ctx, nil, format, v...)
}

func (cl *ContextLogger) Error(format string, v ...interface{}) {
	cl.logger.output(ERROR, cl.ctx, nil, format, v...)
}

func (cl *ContextLogger) InfoWithFields(format string, fields map[string]interface{}, v ...interface{}) {
	cl.logger.output(INFO, cl.ctx, fields, format, v...)
}

func (cl *ContextLogger) WarnWithFields(format string, fields map[string]interface{}, v ...interface{}) {
	cl.logger.output(WARN, cl.ctx, fields, format, v...)
}

func (cl *ContextLogger) ErrorWithFields(format string, fields map[string]interface{}, v ...interface{}) {
	cl.logger.output(ERROR, cl.ctx, fields, format, v...)
}
