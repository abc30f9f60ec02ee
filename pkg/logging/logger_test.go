package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.opentelemetry.io/otel/trace"

	mcperrors "github.com/ajitpratap0/mcp-userhub/pkg/errors"
)

func newTextLogger(buf *bytes.Buffer) Logger {
	f := NewTextFormatter()
	f.DisableColors = true
	f.DisableTimestamp = true
	return New(buf, f)
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newTextLogger(&buf)
	logger.SetLevel(DebugLevel)

	logger.Debug("Debug message", String("key", "value"))
	logger.Info("Info message", Int("count", 42))
	logger.Warn("Warning message", Bool("flag", true))
	logger.Error("Error message", ErrorField(errors.New("test error")))

	output := buf.String()
	assert.Contains(t, output, "[DEBUG] Debug message | key=value")
	assert.Contains(t, output, "[INFO] Info message | count=42")
	assert.Contains(t, output, "flag=true")
	assert.Contains(t, output, `error="test error"`)
}

func TestLogLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := newTextLogger(&buf)
	logger.SetLevel(WarnLevel)

	logger.Debug("hidden debug")
	logger.Info("hidden info")
	logger.Warn("shown warn")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown warn")
	assert.Equal(t, WarnLevel, logger.GetLevel())
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug": DebugLevel, "INFO": InfoLevel, "": InfoLevel,
		"warning": WarnLevel, " error ": ErrorLevel, "fatal": FatalLevel,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestWithFields_ComponentHeader(t *testing.T) {
	var buf bytes.Buffer
	logger := newTextLogger(&buf).WithFields(Component("conn"), Operation("issue"))

	logger.Info("request sent", String("method", "call-tool"))

	assert.Equal(t, "[INFO] conn/issue: request sent | method=call-tool\n", buf.String())
}

func TestWithContext(t *testing.T) {
	var buf bytes.Buffer
	ctx := ContextWithRequestID(context.Background(), "req-9")
	newTextLogger(&buf).WithContext(ctx).Info("handled")

	assert.Contains(t, buf.String(), "[req-9] handled")
	assert.Equal(t, "", RequestIDFromContext(context.Background()))
}

func TestWithContext_SpanIDs(t *testing.T) {
	var buf bytes.Buffer
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: trace.TraceID{0x01, 0x02},
		SpanID:  trace.SpanID{0x03},
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	newTextLogger(&buf).WithContext(ctx).Info("traced")

	assert.Contains(t, buf.String(), "trace_id="+sc.TraceID().String())
	assert.Contains(t, buf.String(), "span_id="+sc.SpanID().String())
}

func TestDerivedLoggerSharesLevel(t *testing.T) {
	var buf bytes.Buffer
	root := newTextLogger(&buf)
	child := root.WithFields(String("k", "v"))

	root.SetLevel(ErrorLevel)
	child.Warn("dropped")

	assert.Empty(t, buf.String())
	assert.Equal(t, ErrorLevel, child.GetLevel())
}

func TestWithError_ExtractsTaxonomy(t *testing.T) {
	var buf bytes.Buffer
	err := mcperrors.ConnectionClosed("call-tool", nil)
	newTextLogger(&buf).WithError(err).Warn("request abandoned")

	out := buf.String()
	assert.Contains(t, out, "error_category=transport")
	assert.Contains(t, out, "method=call-tool")
	assert.Contains(t, out, "error_code=-32502")
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, NewJSONFormatter())

	logger.Info("stored", Int("id", 3), ErrorField(errors.New("warned")), Duration("took", time.Millisecond))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "stored", entry["message"])
	assert.Equal(t, float64(3), entry["id"])
	assert.Equal(t, "warned", entry["error"])
	assert.NotEmpty(t, entry["timestamp"])
}

func TestJSONFormatter_StructuredError(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, NewJSONFormatter())

	logger.Warn("lookup failed", ErrorField(mcperrors.RecordNotFound(7)))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	errObj, ok := entry["error"].(map[string]interface{})
	require.True(t, ok, "got %v", entry["error"])
	assert.Equal(t, float64(mcperrors.CodeRecordNotFound), errObj["code"])
	assert.Equal(t, "not_found", errObj["category"])
}

func TestNewFromConfig(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewFromConfig(Config{Level: "debug", Format: "json", Output: &buf})
	require.NoError(t, err)
	logger.Debug("visible")
	assert.True(t, json.Valid(bytes.TrimSpace(buf.Bytes())))

	_, err = NewFromConfig(Config{Format: "xml"})
	assert.Error(t, err)
	_, err = NewFromConfig(Config{Level: "chatty"})
	assert.Error(t, err)
}

func TestNewNop(t *testing.T) {
	logger := NewNop()
	logger.Error("nothing happens")
	assert.Greater(t, int(logger.GetLevel()), int(FatalLevel))
}

func TestConcurrentDerivedLoggersDoNotInterleave(t *testing.T) {
	var buf bytes.Buffer
	root := newTextLogger(&buf)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			root.WithFields(Int("worker", i)).Info("tick")
		}(i)
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 20)
	for _, line := range lines {
		assert.True(t, strings.HasPrefix(line, "[INFO] tick | worker="), line)
	}
}
