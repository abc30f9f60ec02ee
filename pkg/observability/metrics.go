package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	mcperrors "github.com/ajitpratap0/mcp-userhub/pkg/errors"
)

// Status label values
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// MetricsConfig configures the metrics provider
type MetricsConfig struct {
	Namespace string // default: userhub
	Subsystem string // host or provider

	// HistogramBuckets in seconds
	HistogramBuckets []float64

	ConstLabels prometheus.Labels
}

// Metrics holds every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	outgoingDuration *prometheus.HistogramVec
	outgoingTotal    *prometheus.CounterVec
	incomingDuration *prometheus.HistogramVec
	incomingTotal    *prometheus.CounterVec
	pendingRequests  prometheus.Gauge
	droppedMessages  *prometheus.CounterVec
	messagesTotal    *prometheus.CounterVec
	messageBytes     *prometheus.CounterVec

	toolCallDuration *prometheus.HistogramVec
	storeOperations  *prometheus.CounterVec
	modelCalls       *prometheus.HistogramVec
}

// NewMetrics creates the collectors on a private registry, so several
// connections in one process (or test binary) never collide.
func NewMetrics(config MetricsConfig) (*Metrics, error) {
	if config.Namespace == "" {
		config.Namespace = "userhub"
	}
	if config.HistogramBuckets == nil {
		config.HistogramBuckets = prometheus.DefBuckets
	}

	histogram := func(name, help string, labels ...string) *prometheus.HistogramVec {
		return prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        name,
			Help:        help,
			Buckets:     config.HistogramBuckets,
			ConstLabels: config.ConstLabels,
		}, labels)
	}
	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: config.ConstLabels,
		}, labels)
	}

	m := &Metrics{
		registry:         prometheus.NewRegistry(),
		outgoingDuration: histogram("outgoing_request_duration_seconds", "Round trip time of issued requests", "method", "status"),
		outgoingTotal:    counter("outgoing_requests_total", "Requests issued to the peer", "method", "status"),
		incomingDuration: histogram("incoming_request_duration_seconds", "Time spent serving peer requests", "method", "status"),
		incomingTotal:    counter("incoming_requests_total", "Requests served for the peer", "method", "status"),
		pendingRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "pending_requests",
			Help:        "Issued requests awaiting a response",
			ConstLabels: config.ConstLabels,
		}),
		droppedMessages:  counter("dropped_messages_total", "Inbound messages that could not be processed", "reason"),
		messagesTotal:    counter("channel_messages_total", "Framed messages crossing the channel", "direction"),
		messageBytes:     counter("channel_message_bytes_total", "Payload bytes crossing the channel", "direction"),
		toolCallDuration: histogram("tool_call_duration_seconds", "Tool handler execution time", "tool", "status"),
		storeOperations:  counter("store_operations_total", "Record store operations", "operation", "status"),
		modelCalls:       histogram("model_call_duration_seconds", "Language model call latency", "operation", "status"),
	}

	for _, c := range []prometheus.Collector{
		m.outgoingDuration, m.outgoingTotal,
		m.incomingDuration, m.incomingTotal,
		m.pendingRequests, m.droppedMessages,
		m.messagesTotal, m.messageBytes,
		m.toolCallDuration, m.storeOperations, m.modelCalls,
		collectors.NewGoCollector(),
	} {
		if err := m.registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
	}

	return m, nil
}

// Status maps an error to a status label. Taxonomy errors report their
// category so dashboards can split timeouts from handler failures.
func Status(err error) string {
	if err == nil {
		return StatusSuccess
	}
	if mcpErr, ok := mcperrors.AsMCPError(err); ok {
		return string(mcpErr.Category())
	}
	return StatusError
}

// RecordOutgoing records an issued request.
func (m *Metrics) RecordOutgoing(method string, err error, d time.Duration) {
	if m == nil {
		return
	}
	status := Status(err)
	m.outgoingDuration.WithLabelValues(method, status).Observe(d.Seconds())
	m.outgoingTotal.WithLabelValues(method, status).Inc()
}

// RecordIncoming records a served request.
func (m *Metrics) RecordIncoming(method string, err error, d time.Duration) {
	if m == nil {
		return
	}
	status := Status(err)
	m.incomingDuration.WithLabelValues(method, status).Observe(d.Seconds())
	m.incomingTotal.WithLabelValues(method, status).Inc()
}

// AddPending moves the pending-request gauge by delta.
func (m *Metrics) AddPending(delta int) {
	if m == nil {
		return
	}
	m.pendingRequests.Add(float64(delta))
}

// RecordDropped counts an inbound message that was discarded.
func (m *Metrics) RecordDropped(reason string) {
	if m == nil {
		return
	}
	m.droppedMessages.WithLabelValues(reason).Inc()
}

// RecordToolCall records one tool handler execution. isError is the
// handler-reported outcome, which is distinct from a dispatch failure.
func (m *Metrics) RecordToolCall(tool string, isError bool, d time.Duration) {
	if m == nil {
		return
	}
	status := StatusSuccess
	if isError {
		status = StatusError
	}
	m.toolCallDuration.WithLabelValues(tool, status).Observe(d.Seconds())
}

// RecordStoreOperation counts a record store call.
func (m *Metrics) RecordStoreOperation(operation string, err error) {
	if m == nil {
		return
	}
	m.storeOperations.WithLabelValues(operation, Status(err)).Inc()
}

// RecordModelCall records a language model round trip.
func (m *Metrics) RecordModelCall(operation string, err error, d time.Duration) {
	if m == nil {
		return
	}
	m.modelCalls.WithLabelValues(operation, Status(err)).Observe(d.Seconds())
}

// RecordMessage counts one framed message. direction is "in" or "out".
func (m *Metrics) RecordMessage(direction string, size int) {
	if m == nil {
		return
	}
	m.messagesTotal.WithLabelValues(direction).Inc()
	m.messageBytes.WithLabelValues(direction).Add(float64(size))
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
