package observability

import (
	"context"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	mcperrors "github.com/ajitpratap0/mcp-userhub/pkg/errors"
)

func TestStatus(t *testing.T) {
	assert.Equal(t, StatusSuccess, Status(nil))
	assert.Equal(t, StatusError, Status(fmt.Errorf("plain")))
	assert.Equal(t, "timeout", Status(mcperrors.RequestTimeout("ping", "1", time.Second)))
	assert.Equal(t, "not_found", Status(mcperrors.CapabilityNotFound("tool", "x")))
}

func TestMetrics_Record(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{Subsystem: "test"})
	require.NoError(t, err)

	m.RecordOutgoing("ping", nil, 10*time.Millisecond)
	m.RecordOutgoing("ping", nil, 20*time.Millisecond)
	m.RecordOutgoing("call-tool", mcperrors.ConnectionClosed("call-tool", nil), time.Millisecond)
	m.RecordIncoming("generate-completion", nil, time.Millisecond)
	m.AddPending(2)
	m.AddPending(-1)
	m.RecordDropped("unknown_response")
	m.RecordToolCall("create-user", false, time.Millisecond)
	m.RecordStoreOperation("append", nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.outgoingTotal.WithLabelValues("ping", StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.outgoingTotal.WithLabelValues("call-tool", "transport")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.incomingTotal.WithLabelValues("generate-completion", StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.pendingRequests))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.droppedMessages.WithLabelValues("unknown_response")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.storeOperations.WithLabelValues("append", StatusSuccess)))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordOutgoing("ping", nil, time.Millisecond)
		m.RecordIncoming("ping", nil, time.Millisecond)
		m.AddPending(1)
		m.RecordDropped("x")
		m.RecordToolCall("t", true, time.Millisecond)
		m.RecordStoreOperation("list", nil)
		m.RecordModelCall("generate", nil, time.Millisecond)
	})
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	_, err := NewMetrics(MetricsConfig{})
	require.NoError(t, err)
	_, err = NewMetrics(MetricsConfig{})
	require.NoError(t, err, "each Metrics owns its registry")
}

func TestMetrics_Handler(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{Subsystem: "provider"})
	require.NoError(t, err)
	m.RecordOutgoing("generate-completion", nil, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `userhub_provider_outgoing_requests_total{method="generate-completion",status="success"} 1`)
}

func TestMetrics_ServeStopsOnCancel(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Serve(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestTracing_RecordsMethodSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp, err := NewTracingProvider(TracingConfig{ServiceName: "test", Exporter: exporter})
	require.NoError(t, err)

	_, span := tp.StartMethodSpan(context.Background(), "call-tool", "req-1", trace.SpanKindClient)
	EndSpan(span, mcperrors.CapabilityNotFound("tool", "missing"))

	require.NoError(t, tp.ForceFlush(context.Background()))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "rpc call-tool", spans[0].Name)
	assert.Equal(t, trace.SpanKindClient, spans[0].SpanKind)
	assert.Len(t, spans[0].Events, 1, "error recorded as an event")

	// The in-memory exporter drops what it holds on shutdown.
	require.NoError(t, tp.Shutdown(context.Background()))
	assert.Empty(t, exporter.GetSpans())
}

func TestTracing_NilProvider(t *testing.T) {
	var tp *TracingProvider
	ctx, span := tp.StartMethodSpan(context.Background(), "ping", "1", trace.SpanKindServer)
	assert.NotNil(t, ctx)
	assert.False(t, span.IsRecording())
	EndSpan(span, fmt.Errorf("ignored"))
	assert.NoError(t, tp.ForceFlush(context.Background()))
	assert.NoError(t, tp.Shutdown(context.Background()))
}

func TestTracing_UnknownExporter(t *testing.T) {
	_, err := NewTracingProvider(TracingConfig{ExporterType: "zipkin"})
	assert.Error(t, err)
}
