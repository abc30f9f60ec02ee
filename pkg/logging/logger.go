// Package logging provides the structured logger used by both binaries.
// Logs always go to stderr by default: the provider's stdout carries
// protocol traffic.
package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"

	mcperrors "github.com/ajitpratap0/mcp-userhub/pkg/errors"
)

// Level is an entry's severity. Higher is more severe.
type Level int

const (
	DebugLevel Level = iota - 1
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

var levelNames = map[Level]string{
	DebugLevel: "DEBUG",
	InfoLevel:  "INFO",
	WarnLevel:  "WARN",
	ErrorLevel: "ERROR",
	FatalLevel: "FATAL",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParseLevel maps a case-insensitive level name to a Level. An empty name
// is InfoLevel.
func ParseLevel(name string) (Level, error) {
	key := strings.ToUpper(strings.TrimSpace(name))
	switch key {
	case "":
		return InfoLevel, nil
	case "WARNING":
		return WarnLevel, nil
	}
	for level, n := range levelNames {
		if n == key {
			return level, nil
		}
	}
	return InfoLevel, fmt.Errorf("unknown log level %q", name)
}

// Field is one key/value attached to an entry.
type Field struct {
	Key   string
	Value interface{}
}

func String(key, value string) Field                 { return Field{key, value} }
func Int(key string, value int) Field                { return Field{key, value} }
func Bool(key string, value bool) Field              { return Field{key, value} }
func Duration(key string, value time.Duration) Field { return Field{key, value} }
func Time(key string, value time.Time) Field         { return Field{key, value} }
func Any(key string, value interface{}) Field        { return Field{key, value} }

// ErrorField stores err under "error".
func ErrorField(err error) Field { return Field{keyError, err} }

// Component names the subsystem emitting the entry. The text format shows
// it in the header.
func Component(name string) Field { return Field{keyComponent, name} }

// Operation names the step in progress within a component.
func Operation(name string) Field { return Field{keyOperation, name} }

const (
	keyError     = "error"
	keyRequestID = "request_id"
	keyComponent = "component"
	keyOperation = "operation"
	keyTraceID   = "trace_id"
	keySpanID    = "span_id"
)

// Logger writes leveled, structured entries.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	// Fatal logs and exits the process with status 1.
	Fatal(msg string, fields ...Field)

	// WithFields returns a logger that adds fields to every entry.
	WithFields(fields ...Field) Logger
	// WithContext picks up the request id and the active span from ctx.
	WithContext(ctx context.Context) Logger
	// WithError attaches err and, for MCP errors, its code, category,
	// severity and context.
	WithError(err error) Logger

	// SetLevel changes the threshold for this logger and every logger
	// derived from the same root.
	SetLevel(level Level)
	GetLevel() Level
}

// Entry is what a Formatter renders.
type Entry struct {
	Level     Level
	Message   string
	Fields    map[string]interface{}
	Timestamp time.Time
	RequestID string
	Component string
	Operation string
}

// Formatter renders one entry, including its trailing newline.
type Formatter interface {
	Format(entry *Entry) ([]byte, error)
}

// sink is shared by a root logger and everything derived from it.
type sink struct {
	mu        sync.Mutex
	out       io.Writer
	formatter Formatter
	level     atomic.Int64
}

func (s *sink) write(entry *Entry) {
	data, err := s.formatter.Format(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: format: %v\n", err)
		return
	}

	s.mu.Lock()
	_, err = s.out.Write(data)
	s.mu.Unlock()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: write: %v\n", err)
	}
}

type logger struct {
	sink *sink
	// bound holds inherited fields oldest first; later keys win.
	bound []Field
}

// New returns a logger at InfoLevel. A nil output means stderr and a nil
// formatter means colored text.
func New(output io.Writer, formatter Formatter) Logger {
	if output == nil {
		output = os.Stderr
	}
	if formatter == nil {
		formatter = NewTextFormatter()
	}
	s := &sink{out: output, formatter: formatter}
	s.level.Store(int64(InfoLevel))
	return &logger{sink: s}
}

func (l *logger) Debug(msg string, fields ...Field) { l.emit(DebugLevel, msg, fields) }
func (l *logger) Info(msg string, fields ...Field)  { l.emit(InfoLevel, msg, fields) }
func (l *logger) Warn(msg string, fields ...Field)  { l.emit(WarnLevel, msg, fields) }
func (l *logger) Error(msg string, fields ...Field) { l.emit(ErrorLevel, msg, fields) }

func (l *logger) Fatal(msg string, fields ...Field) {
	l.emit(FatalLevel, msg, fields)
	os.Exit(1)
}

func (l *logger) WithFields(fields ...Field) Logger {
	if len(fields) == 0 {
		return l
	}
	bound := make([]Field, 0, len(l.bound)+len(fields))
	bound = append(bound, l.bound...)
	bound = append(bound, fields...)
	return &logger{sink: l.sink, bound: bound}
}

func (l *logger) WithContext(ctx context.Context) Logger {
	var fields []Field
	if id := RequestIDFromContext(ctx); id != "" {
		fields = append(fields, String(keyRequestID, id))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			String(keyTraceID, sc.TraceID().String()),
			String(keySpanID, sc.SpanID().String()))
	}
	return l.WithFields(fields...)
}

func (l *logger) WithError(err error) Logger {
	return l.WithFields(errorFields(err)...)
}

func errorFields(err error) []Field {
	fields := []Field{ErrorField(err)}

	mcpErr, ok := mcperrors.AsMCPError(err)
	if !ok {
		return fields
	}
	fields = append(fields,
		String("error_code", strconv.Itoa(mcpErr.Code())),
		String("error_category", string(mcpErr.Category())),
		String("error_severity", string(mcpErr.Severity())))

	ec := mcpErr.Context()
	if ec == nil {
		return fields
	}
	for _, f := range []Field{
		String("method", ec.Method),
		String(keyRequestID, ec.RequestID),
		String(keyComponent, ec.Component),
		String(keyOperation, ec.Operation),
	} {
		if f.Value != "" {
			fields = append(fields, f)
		}
	}
	return fields
}

func (l *logger) SetLevel(level Level) { l.sink.level.Store(int64(level)) }
func (l *logger) GetLevel() Level      { return Level(l.sink.level.Load()) }

func (l *logger) emit(level Level, msg string, fields []Field) {
	if level < l.GetLevel() {
		return
	}

	entry := &Entry{
		Level:     level,
		Message:   msg,
		Timestamp: time.Now(),
		Fields:    make(map[string]interface{}, len(l.bound)+len(fields)),
	}
	for _, f := range l.bound {
		entry.Fields[f.Key] = f.Value
	}
	for _, f := range fields {
		entry.Fields[f.Key] = f.Value
	}
	entry.RequestID, _ = entry.Fields[keyRequestID].(string)
	entry.Component, _ = entry.Fields[keyComponent].(string)
	entry.Operation, _ = entry.Fields[keyOperation].(string)

	l.sink.write(entry)
}

type ctxKey struct{}

// ContextWithRequestID returns ctx carrying id for WithContext to pick up.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// RequestIDFromContext returns the id stored by ContextWithRequestID, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// Config selects level, format and destination.
type Config struct {
	Level  string
	Format string
	Output io.Writer
}

// NewFromConfig builds a logger from textual settings. Format is "text" or
// "json".
func NewFromConfig(cfg Config) (Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var formatter Formatter
	switch strings.ToLower(cfg.Format) {
	case "", "text":
		text := NewTextFormatter()
		text.DisableColors = true
		formatter = text
	case "json":
		formatter = NewJSONFormatter()
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	l := New(cfg.Output, formatter)
	l.SetLevel(level)
	return l, nil
}

// NewNop returns a logger that discards everything.
func NewNop() Logger {
	l := New(io.Discard, NewTextFormatter())
	l.SetLevel(FatalLevel + 1)
	return l
}
