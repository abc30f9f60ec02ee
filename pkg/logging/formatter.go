package logging

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// TextFormatter renders
//
//	<time> [LEVEL] [request] component/operation: message | k=v ...
//
// with the remaining fields sorted by key.
type TextFormatter struct {
	TimestampFormat  string
	DisableColors    bool
	DisableTimestamp bool
}

func NewTextFormatter() *TextFormatter {
	return &TextFormatter{TimestampFormat: "2006-01-02 15:04:05.000"}
}

func (f *TextFormatter) Format(entry *Entry) ([]byte, error) {
	var sb strings.Builder

	if !f.DisableTimestamp {
		sb.WriteString(entry.Timestamp.Format(f.TimestampFormat))
		sb.WriteByte(' ')
	}

	tag := "[" + entry.Level.String() + "]"
	if color, ok := levelColors[entry.Level]; ok && !f.DisableColors {
		tag = color + tag + "\033[0m"
	}
	sb.WriteString(tag)
	sb.WriteByte(' ')

	if entry.RequestID != "" {
		sb.WriteString("[" + entry.RequestID + "] ")
	}
	if entry.Component != "" {
		sb.WriteString(entry.Component)
		if entry.Operation != "" {
			sb.WriteString("/" + entry.Operation)
		}
		sb.WriteString(": ")
	}
	sb.WriteString(entry.Message)

	keys := trailingKeys(entry)
	for i, k := range keys {
		if i == 0 {
			sb.WriteString(" |")
		}
		sb.WriteString(" " + k + "=" + textValue(entry.Fields[k]))
	}

	sb.WriteByte('\n')
	return []byte(sb.String()), nil
}

var levelColors = map[Level]string{
	DebugLevel: "\033[90m",
	InfoLevel:  "\033[34m",
	WarnLevel:  "\033[33m",
	ErrorLevel: "\033[31m",
	FatalLevel: "\033[31m",
}

// trailingKeys lists the fields the header did not already show.
func trailingKeys(entry *Entry) []string {
	inHeader := func(k string) bool {
		switch k {
		case keyRequestID:
			return entry.RequestID != ""
		case keyComponent:
			return entry.Component != ""
		case keyOperation:
			return entry.Component != "" && entry.Operation != ""
		}
		return false
	}

	keys := make([]string, 0, len(entry.Fields))
	for k := range entry.Fields {
		if !inHeader(k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func textValue(v interface{}) string {
	var s string
	switch val := v.(type) {
	case error:
		s = val.Error()
	case string:
		s = val
	default:
		return fmt.Sprint(v)
	}
	if strings.ContainsAny(s, " \t\n") {
		return strconv.Quote(s)
	}
	return s
}

// JSONFormatter renders one object per line. level, timestamp and message
// come first and win over fields of the same name. Plain errors are
// rendered as their message.
type JSONFormatter struct {
	TimestampFormat  string
	DisableTimestamp bool
}

func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"}
}

func (f *JSONFormatter) Format(entry *Entry) ([]byte, error) {
	obj := orderedmap.New[string, interface{}]()
	obj.Set("level", entry.Level.String())
	if !f.DisableTimestamp {
		obj.Set("timestamp", entry.Timestamp.Format(f.TimestampFormat))
	}
	obj.Set("message", entry.Message)

	keys := make([]string, 0, len(entry.Fields))
	for k := range entry.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, taken := obj.Get(k); taken {
			continue
		}
		v := entry.Fields[k]
		if err, ok := v.(error); ok {
			// Errors that know their JSON form, such as MCP errors, stay
			// structured.
			if _, structured := err.(json.Marshaler); !structured {
				v = err.Error()
			}
		}
		obj.Set(k, v)
	}

	out, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("marshal log entry: %w", err)
	}
	return append(out, '\n'), nil
}
