package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"
)

// Level represents log level
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

// Config holds logger configuration. Format selects the line encoding:
// "json" for machine-parseable log aggregation, anything else (including
// the default "") for the human-readable "[component] [LEVEL] msg k=v"
// text form.
type Config struct {
	Level  string
	Format string
	Output io.Writer
}

// Logger represents a structured logger. component accumulates across
// WithComponent calls ("session.maintenance") rather than being replaced,
// so a callback wired several layers deep (adapter -> session -> status)
// carries its full path in every line.
type Logger struct {
	level     Level
	format    string
	component string
	writer    io.Writer
	textLog   *log.Logger
}

// Field represents a structured logging field
type Field struct {
	Key   string
	Value interface{}
}

// New creates a new logger
func New(cfg Config) *Logger {
	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	return &Logger{
		level:   parseLevel(cfg.Level),
		format:  strings.ToLower(cfg.Format),
		writer:  output,
		textLog: log.New(output, "", log.LstdFlags),
	}
}

// WithComponent returns a child logger whose component path is this
// logger's own component (if any) joined with the new segment, so nested
// wiring (e.g. a session handing a sub-logger to its maintenance loop)
// preserves the full call path instead of only the most recent name.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		level:     l.level,
		format:    l.format,
		component: joinComponent(l.component, component),
		writer:    l.writer,
		textLog:   l.textLog,
	}
}

func joinComponent(parent, child string) string {
	if parent == "" {
		return child
	}
	return parent + "." + child
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, fields ...Field) {
	if l.level <= DebugLevel {
		l.log("DEBUG", msg, fields...)
	}
}

// Info logs an info message
func (l *Logger) Info(msg string, fields ...Field) {
	if l.level <= InfoLevel {
		l.log("INFO", msg, fields...)
	}
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, fields ...Field) {
	if l.level <= WarnLevel {
		l.log("WARN", msg, fields...)
	}
}

// Error logs an error message
func (l *Logger) Error(msg string, fields ...Field) {
	if l.level <= ErrorLevel {
		l.log("ERROR", msg, fields...)
	}
}

func (l *Logger) log(level, msg string, fields ...Field) {
	if l.format == "json" {
		l.logJSON(level, msg, fields)
		return
	}
	l.logText(level, msg, fields)
}

func (l *Logger) logText(level, msg string, fields []Field) {
	var b strings.Builder
	if l.component != "" {
		fmt.Fprintf(&b, "[%s] ", l.component)
	}
	fmt.Fprintf(&b, "[%s] %s", level, msg)
	for _, f := range fields {
		fmt.Fprintf(&b, " %s=%v", f.Key, f.Value)
	}
	l.textLog.Print(b.String())
}

// logJSON writes one JSON object per line directly to the configured
// writer. It deliberately bypasses textLog's log.Logger (and its
// log.LstdFlags timestamp prefix, which would otherwise precede and break
// each JSON line) in favor of an explicit "time" field.
func (l *Logger) logJSON(level, msg string, fields []Field) {
	entry := make(map[string]interface{}, len(fields)+4)
	entry["time"] = time.Now().UTC().Format(time.RFC3339Nano)
	entry["level"] = strings.ToLower(level)
	entry["msg"] = msg
	if l.component != "" {
		entry["component"] = l.component
	}
	for _, f := range fields {
		entry[f.Key] = f.Value
	}
	data, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(l.writer, "{\"level\":%q,\"msg\":%q,\"log_marshal_error\":%q}\n", strings.ToLower(level), msg, err.Error())
		return
	}
	fmt.Fprintln(l.writer, string(data))
}

func parseLevel(level string) Level {
	switch strings.ToLower(level) {
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// Field constructors

// String creates a string field
func String(key, val string) Field {
	return Field{Key: key, Value: val}
}

// Int creates an int field
func Int(key string, val int) Field {
	return Field{Key: key, Value: val}
}

// Int64 creates an int64 field
func Int64(key string, val int64) Field {
	return Field{Key: key, Value: val}
}

// Uint64 creates a uint64 field
func Uint64(key string, val uint64) Field {
	return Field{Key: key, Value: val}
}

// Bool creates a bool field
func Bool(key string, val bool) Field {
	return Field{Key: key, Value: val}
}

// Uint creates a uint field
func Uint(key string, val uint) Field {
	return Field{Key: key, Value: val}
}

// Uint32 creates a uint32 field
func Uint32(key string, val uint32) Field {
	return Field{Key: key, Value: val}
}

// Float64 creates a float64 field
func Float64(key string, val float64) Field {
	return Field{Key: key, Value: val}
}

// Error creates an error field
func Error(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: "nil"}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Any creates a field with any value
func Any(key string, val interface{}) Field {
	return Field{Key: key, Value: val}
}
