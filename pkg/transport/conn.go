package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	mcperrors "github.com/ajitpratap0/mcp-userhub/pkg/errors"
	"github.com/ajitpratap0/mcp-userhub/pkg/logging"
	"github.com/ajitpratap0/mcp-userhub/pkg/observability"
	"github.com/ajitpratap0/mcp-userhub/pkg/protocol"
)

// DefaultRequestTimeout bounds how long Issue waits for a response.
const DefaultRequestTimeout = 60 * time.Second

// RequestHandler serves one inbound request. The returned value is marshalled
// as the result; a returned error becomes a JSON-RPC error response.
type RequestHandler func(ctx context.Context, params json.RawMessage) (interface{}, error)

// NotificationHandler receives one inbound notification.
type NotificationHandler func(ctx context.Context, params json.RawMessage)

// ConnOption configures a Conn.
type ConnOption func(*Conn)

// WithLogger sets the connection logger.
func WithLogger(logger logging.Logger) ConnOption {
	return func(c *Conn) {
		c.logger = logger
	}
}

// WithMetrics records request counts and latencies.
func WithMetrics(metrics *observability.Metrics) ConnOption {
	return func(c *Conn) {
		c.metrics = metrics
	}
}

// WithTracing opens a span per issued and served request.
func WithTracing(tracer *observability.TracingProvider) ConnOption {
	return func(c *Conn) {
		c.tracer = tracer
	}
}

// WithRequestTimeout overrides DefaultRequestTimeout. Zero or less waits
// forever.
func WithRequestTimeout(timeout time.Duration) ConnOption {
	return func(c *Conn) {
		c.requestTimeout = timeout
	}
}

// WithName labels the connection in logs.
func WithName(name string) ConnOption {
	return func(c *Conn) {
		c.name = name
	}
}

type pendingRequest struct {
	method string
	ch     chan *protocol.Response
}

// Conn is one end of a JSON-RPC session. It is symmetric: both sides can
// issue requests and serve them, and requests in both directions may be in
// flight at once.
type Conn struct {
	ch             Channel
	name           string
	logger         logging.Logger
	metrics        *observability.Metrics
	tracer         *observability.TracingProvider
	requestTimeout time.Duration

	mu                   sync.RWMutex
	requestHandlers      map[string]RequestHandler
	notificationHandlers map[string]NotificationHandler
	pending              map[string]*pendingRequest
	closed               bool
	closeErr             error

	done      chan struct{}
	closeOnce sync.Once
	inflight  sync.WaitGroup
	baseCtx   context.Context
	cancel    context.CancelFunc
}

// NewConn wraps ch. Register handlers before calling Run.
func NewConn(ch Channel, opts ...ConnOption) *Conn {
	baseCtx, cancel := context.WithCancel(context.Background())
	c := &Conn{
		ch:                   ch,
		name:                 "conn",
		requestTimeout:       DefaultRequestTimeout,
		requestHandlers:      make(map[string]RequestHandler),
		notificationHandlers: make(map[string]NotificationHandler),
		pending:              make(map[string]*pendingRequest),
		done:                 make(chan struct{}),
		baseCtx:              baseCtx,
		cancel:               cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logging.NewNop()
	}
	c.logger = c.logger.WithFields(logging.Component(c.name))
	return c
}

// Handle registers the handler for method, replacing any earlier one.
func (c *Conn) Handle(method string, handler RequestHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requestHandlers[method] = handler
}

// HandleNotification registers the handler for a notification method.
func (c *Conn) HandleNotification(method string, handler NotificationHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notificationHandlers[method] = handler
}

// Run reads from the channel until it ends, then resolves every pending
// request and waits for in-flight handlers to return.
func (c *Conn) Run(ctx context.Context) error {
	err := c.ch.Run(ctx, c.dispatch)

	var cause error
	if mcperrors.IsFatal(err) {
		cause = err
	}
	c.shutdown(cause)
	c.inflight.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		c.logger.WithError(err).Error("connection ended")
	} else {
		c.logger.Debug("connection ended")
	}
	return err
}

// Issue sends a request and waits for its response, decoding the result into
// result when it is non-nil. It is safe to call from inside a handler.
func (c *Conn) Issue(ctx context.Context, method string, params, result interface{}) (err error) {
	id := uuid.NewString()
	req, err := protocol.NewRequest(id, method, params)
	if err != nil {
		return mcperrors.InvalidParams(method, err)
	}
	data, err := json.Marshal(req)
	if err != nil {
		return mcperrors.InvalidParams(method, err)
	}

	p := &pendingRequest{method: method, ch: make(chan *protocol.Response, 1)}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return c.closedError(method)
	}
	c.pending[id] = p
	c.mu.Unlock()
	c.metrics.AddPending(1)

	ctx, span := c.tracer.StartMethodSpan(ctx, method, id, trace.SpanKindClient)
	start := time.Now()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		c.metrics.AddPending(-1)
		c.metrics.RecordOutgoing(method, err, time.Since(start))
		observability.EndSpan(span, err)
	}()

	c.logger.Debug("request sent", logging.String("method", method), logging.String("request_id", id))
	if err = c.ch.Send(data); err != nil {
		return err
	}

	var timeout <-chan time.Time
	if c.requestTimeout > 0 {
		timer := time.NewTimer(c.requestTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case resp := <-p.ch:
		return decodeResponse(method, resp, result)
	case <-timeout:
		return mcperrors.RequestTimeout(method, id, c.requestTimeout)
	case <-ctx.Done():
		return mcperrors.OperationCancelled(method, ctx.Err())
	case <-c.done:
		// A response that raced with teardown still wins.
		select {
		case resp := <-p.ch:
			return decodeResponse(method, resp, result)
		default:
		}
		return c.closedError(method)
	}
}

// Notify sends a notification. No response is expected.
func (c *Conn) Notify(method string, params interface{}) error {
	n, err := protocol.NewNotification(method, params)
	if err != nil {
		return mcperrors.InvalidParams(method, err)
	}
	data, err := json.Marshal(n)
	if err != nil {
		return mcperrors.InvalidParams(method, err)
	}
	return c.ch.Send(data)
}

// Close ends the session. Pending requests return a connection-closed error.
func (c *Conn) Close() error {
	c.shutdown(nil)
	return c.ch.Close()
}

// Done is closed when the connection has ended.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Err returns the transport error that ended the connection, if any.
func (c *Conn) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closeErr
}

// Pending returns the number of issued requests awaiting a response.
func (c *Conn) Pending() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.pending)
}

func (c *Conn) shutdown(cause error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.closeErr = cause
		c.mu.Unlock()

		close(c.done)
		c.cancel()
	})
}

func (c *Conn) closedError(method string) error {
	c.mu.RLock()
	cause := c.closeErr
	c.mu.RUnlock()
	if cause != nil {
		return cause
	}
	return mcperrors.ConnectionClosed(method, nil)
}

func decodeResponse(method string, resp *protocol.Response, result interface{}) error {
	if resp.Error != nil {
		return mcperrors.FromJSONRPCError(resp.Error)
	}
	if result == nil || len(resp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Result, result); err != nil {
		return mcperrors.ProtocolError("malformed %s result: %v", method, err)
	}
	return nil
}

func (c *Conn) dispatch(data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		c.logger.Warn("unparseable message", logging.ErrorField(err))
		c.metrics.RecordDropped("parse_error")
		c.reply(protocol.NewErrorResponse(nil, protocol.ParseError, "Parse error", nil))
		return
	}

	switch msg.Kind() {
	case protocol.KindRequest:
		c.serve(msg.Request())
	case protocol.KindNotification:
		c.notification(msg.Method, msg.Params)
	case protocol.KindResponse:
		c.deliver(msg.Response())
	default:
		c.logger.Warn("invalid message", logging.Any("id", msg.ID))
		c.metrics.RecordDropped("invalid")
		if msg.ID != nil {
			c.reply(protocol.NewErrorResponse(msg.ID, protocol.InvalidRequest, "Invalid Request", nil))
		}
	}
}

func (c *Conn) serve(req *protocol.Request) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	handler := c.requestHandlers[req.Method]
	c.inflight.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.inflight.Done()
		c.reply(c.handle(req, handler))
	}()
}

func (c *Conn) handle(req *protocol.Request, handler RequestHandler) (resp *protocol.Response) {
	id := protocol.IDKey(req.ID)
	ctx := logging.ContextWithRequestID(c.baseCtx, id)
	ctx, span := c.tracer.StartMethodSpan(ctx, req.Method, id, trace.SpanKindServer)
	start := time.Now()

	var err error
	defer func() {
		if r := recover(); r != nil {
			err = mcperrors.NewErrorf(mcperrors.CodeInternalError, mcperrors.CategoryInternal, mcperrors.SeverityCritical,
				"internal error processing %s", req.Method)
			c.logger.Error("handler panicked",
				logging.String("method", req.Method),
				logging.String("request_id", id),
				logging.String("panic", fmt.Sprint(r)))
			resp = mcperrors.ToJSONRPCResponse(err, req.ID)
		}
		c.metrics.RecordIncoming(req.Method, err, time.Since(start))
		observability.EndSpan(span, err)
	}()

	if handler == nil {
		err = mcperrors.MethodNotFound(req.Method)
		return mcperrors.ToJSONRPCResponse(err, req.ID)
	}

	result, err := handler(ctx, req.Params)
	if err != nil {
		c.logger.WithError(err).Debug("request failed", logging.String("method", req.Method))
		return mcperrors.ToJSONRPCResponse(err, req.ID)
	}

	resp, err = protocol.NewResponse(req.ID, result)
	if err != nil {
		err = mcperrors.WrapError(err, mcperrors.CodeInternalError, "failed to marshal result",
			mcperrors.CategoryInternal, mcperrors.SeverityError)
		return mcperrors.ToJSONRPCResponse(err, req.ID)
	}
	return resp
}

func (c *Conn) notification(method string, params json.RawMessage) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	handler, ok := c.notificationHandlers[method]
	if !ok {
		c.mu.Unlock()
		c.logger.Debug("unhandled notification", logging.String("method", method))
		return
	}
	c.inflight.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.inflight.Done()
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("notification handler panicked",
					logging.String("method", method),
					logging.String("panic", fmt.Sprint(r)))
			}
		}()
		handler(c.baseCtx, params)
	}()
}

func (c *Conn) deliver(resp *protocol.Response) {
	key := protocol.IDKey(resp.ID)

	c.mu.Lock()
	p, ok := c.pending[key]
	if ok {
		delete(c.pending, key)
	}
	c.mu.Unlock()

	if !ok {
		c.logger.WithError(mcperrors.UnknownResponse(key)).Warn("dropping response")
		c.metrics.RecordDropped("unknown_response")
		return
	}
	c.logger.Debug("response received", logging.String("method", p.method), logging.String("request_id", key))
	p.ch <- resp
}

func (c *Conn) reply(resp *protocol.Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		c.logger.Error("failed to marshal response", logging.ErrorField(err))
		return
	}
	if err := c.ch.Send(data); err != nil {
		c.logger.WithError(err).Warn("failed to send response")
	}
}
