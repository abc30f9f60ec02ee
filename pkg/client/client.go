package client

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	mcperrors "github.com/ajitpratap0/mcp-userhub/pkg/errors"
	"github.com/ajitpratap0/mcp-userhub/pkg/logging"
	"github.com/ajitpratap0/mcp-userhub/pkg/observability"
	"github.com/ajitpratap0/mcp-userhub/pkg/protocol"
	"github.com/ajitpratap0/mcp-userhub/pkg/transport"
)

// Client is what the host needs from a provider session.
type Client interface {
	// Discover lists every capability kind concurrently.
	Discover(ctx context.Context) (*Snapshot, error)

	// CallTool invokes a tool. Tool failures come back as a result with
	// IsError set, not as an error.
	CallTool(ctx context.Context, name string, arguments map[string]interface{}) (*protocol.CallToolResult, error)

	// ReadResource reads a static or fully resolved templated URI.
	ReadResource(ctx context.Context, uri string) (*protocol.ReadResourceResult, error)

	// GetPrompt renders a prompt with its named arguments.
	GetPrompt(ctx context.Context, name string, arguments map[string]string) (*protocol.GetPromptResult, error)

	// Ping checks that the provider is responding.
	Ping(ctx context.Context) error

	// Close ends the session. Outstanding calls return a connection-closed
	// error.
	Close() error
}

// CompletionHandler serves generate-completion requests from the provider.
type CompletionHandler func(ctx context.Context, params *protocol.GenerateCompletionParams) (*protocol.GenerateCompletionResult, error)

// Session is a Client bound to one connection.
type Session struct {
	conn *transport.Conn

	name       string
	version    string
	logger     logging.Logger
	metrics    *observability.Metrics
	tracer     *observability.TracingProvider
	timeout    time.Duration
	completion CompletionHandler

	startOnce sync.Once
	runDone   chan struct{}

	infoLock   sync.RWMutex
	initResult *protocol.InitializeResult
}

var _ Client = (*Session)(nil)

// Option configures a Session.
type Option func(*Session)

// WithName sets the name the host reports during initialize
func WithName(name string) Option {
	return func(s *Session) {
		s.name = name
	}
}

// WithVersion sets the version the host reports during initialize
func WithVersion(version string) Option {
	return func(s *Session) {
		s.version = version
	}
}

// WithLogger sets a structured logger
func WithLogger(logger logging.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithMetrics records request metrics
func WithMetrics(metrics *observability.Metrics) Option {
	return func(s *Session) {
		s.metrics = metrics
	}
}

// WithTracing traces issued and served requests
func WithTracing(tracer *observability.TracingProvider) Option {
	return func(s *Session) {
		s.tracer = tracer
	}
}

// WithRequestTimeout bounds every request the session issues
func WithRequestTimeout(timeout time.Duration) Option {
	return func(s *Session) {
		s.timeout = timeout
	}
}

// WithCompletionHandler answers the provider's generate-completion requests
// and declares the sampling capability.
func WithCompletionHandler(handler CompletionHandler) Option {
	return func(s *Session) {
		s.completion = handler
	}
}

// New creates a session over ch. Call Start, then Initialize, or use
// Connect to do both.
func New(ch transport.Channel, options ...Option) *Session {
	s := &Session{
		name:    "userhub-host",
		version: "1.0.0",
		timeout: transport.DefaultRequestTimeout,
		runDone: make(chan struct{}),
	}
	for _, option := range options {
		option(s)
	}
	if s.logger == nil {
		s.logger = logging.NewNop()
	}
	s.logger = s.logger.WithFields(logging.Component("client"))

	ch = transport.ChainMiddleware(
		transport.MessageLogging(s.logger),
		transport.MessageMetrics(s.metrics),
	).Wrap(ch)
	s.conn = transport.NewConn(ch,
		transport.WithName("host"),
		transport.WithLogger(s.logger),
		transport.WithMetrics(s.metrics),
		transport.WithTracing(s.tracer),
		transport.WithRequestTimeout(s.timeout),
	)
	s.conn.Handle(protocol.MethodPing, func(context.Context, json.RawMessage) (interface{}, error) {
		return struct{}{}, nil
	})
	if s.completion != nil {
		s.conn.Handle(protocol.MethodGenerateCompletion, s.handleGenerateCompletion)
	}
	return s
}

// Connect starts a session over ch and performs the handshake.
func Connect(ctx context.Context, ch transport.Channel, options ...Option) (*Session, error) {
	s := New(ch, options...)
	s.Start(context.Background())
	if err := s.Initialize(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// ConnectProcess launches a provider binary and connects to it over its
// stdin and stdout. Closing the session stops the process.
func ConnectProcess(ctx context.Context, name string, args []string, options ...Option) (*Session, error) {
	proc, err := transport.StartProcess(ctx, name, args)
	if err != nil {
		return nil, err
	}
	return Connect(ctx, proc, options...)
}

// Start runs the read loop in the background. Later calls do nothing.
func (s *Session) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		go func() {
			defer close(s.runDone)
			// The cause stays available through Err.
			_ = s.conn.Run(ctx)
		}()
	})
}

// Initialize exchanges names, versions and capabilities, then tells the
// provider the host is ready.
func (s *Session) Initialize(ctx context.Context) error {
	params := &protocol.InitializeParams{
		ProtocolVersion: protocol.ProtocolVersion,
		ClientInfo:      protocol.Implementation{Name: s.name, Version: s.version},
	}
	if s.completion != nil {
		params.Capabilities.Sampling = &struct{}{}
	}

	var result protocol.InitializeResult
	if err := s.conn.Issue(ctx, protocol.MethodInitialize, params, &result); err != nil {
		return err
	}

	s.infoLock.Lock()
	s.initResult = &result
	s.infoLock.Unlock()

	s.logger.Info("connected to provider",
		logging.String("server", result.ServerInfo.Name),
		logging.String("server_version", result.ServerInfo.Version),
		logging.String("protocol_version", result.ProtocolVersion))

	return s.conn.Notify(protocol.MethodInitialized, nil)
}

// ServerInfo returns the provider's initialize result, or nil before the
// handshake.
func (s *Session) ServerInfo() *protocol.InitializeResult {
	s.infoLock.RLock()
	defer s.infoLock.RUnlock()
	return s.initResult
}

// Discover issues the four list requests concurrently. Any failure fails
// the whole snapshot.
func (s *Session) Discover(ctx context.Context) (*Snapshot, error) {
	var (
		tools     protocol.ListToolsResult
		resources protocol.ListResourcesResult
		templates protocol.ListResourceTemplatesResult
		prompts   protocol.ListPromptsResult
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.conn.Issue(gctx, protocol.MethodListTools, nil, &tools) })
	g.Go(func() error { return s.conn.Issue(gctx, protocol.MethodListResources, nil, &resources) })
	g.Go(func() error { return s.conn.Issue(gctx, protocol.MethodListResourceTemplates, nil, &templates) })
	g.Go(func() error { return s.conn.Issue(gctx, protocol.MethodListPrompts, nil, &prompts) })
	if err := g.Wait(); err != nil {
		return nil, err
	}

	snapshot := &Snapshot{
		Tools:             tools.Tools,
		Resources:         resources.Resources,
		ResourceTemplates: templates.ResourceTemplates,
		Prompts:           prompts.Prompts,
	}
	s.logger.Debug("discovered capabilities",
		logging.Int("tools", len(snapshot.Tools)),
		logging.Int("resources", len(snapshot.Resources)),
		logging.Int("templates", len(snapshot.ResourceTemplates)),
		logging.Int("prompts", len(snapshot.Prompts)))
	return snapshot, nil
}

func (s *Session) CallTool(ctx context.Context, name string, arguments map[string]interface{}) (*protocol.CallToolResult, error) {
	var result protocol.CallToolResult
	err := s.conn.Issue(ctx, protocol.MethodCallTool, &protocol.CallToolParams{Name: name, Arguments: arguments}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *Session) ReadResource(ctx context.Context, uri string) (*protocol.ReadResourceResult, error) {
	var result protocol.ReadResourceResult
	if err := s.conn.Issue(ctx, protocol.MethodReadResource, &protocol.ReadResourceParams{URI: uri}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *Session) GetPrompt(ctx context.Context, name string, arguments map[string]string) (*protocol.GetPromptResult, error) {
	var result protocol.GetPromptResult
	err := s.conn.Issue(ctx, protocol.MethodGetPrompt, &protocol.GetPromptParams{Name: name, Arguments: arguments}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *Session) Ping(ctx context.Context) error {
	return s.conn.Issue(ctx, protocol.MethodPing, nil, nil)
}

// Done is closed when the connection has ended.
func (s *Session) Done() <-chan struct{} {
	return s.conn.Done()
}

// Err returns the transport error that ended the session, if any.
func (s *Session) Err() error {
	return s.conn.Err()
}

// Close ends the connection and waits for the read loop when it was
// started.
func (s *Session) Close() error {
	err := s.conn.Close()
	// A session that never started has no read loop to wait for.
	s.startOnce.Do(func() { close(s.runDone) })
	<-s.runDone
	return err
}

func (s *Session) handleGenerateCompletion(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var req protocol.GenerateCompletionParams
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, mcperrors.InvalidParams(protocol.MethodGenerateCompletion, err)
	}
	s.logger.WithContext(ctx).Debug("provider requested a completion",
		logging.Int("messages", len(req.Messages)),
		logging.Int("max_output_tokens", req.MaxOutputTokens))
	return s.completion(ctx, &req)
}
