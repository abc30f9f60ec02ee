package server

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mcperrors "github.com/ajitpratap0/mcp-userhub/pkg/errors"
	"github.com/ajitpratap0/mcp-userhub/pkg/logging"
	"github.com/ajitpratap0/mcp-userhub/pkg/observability"
	"github.com/ajitpratap0/mcp-userhub/pkg/protocol"
	"github.com/ajitpratap0/mcp-userhub/pkg/transport"
	"github.com/ajitpratap0/mcp-userhub/pkg/uritemplate"
)

// Server exposes a Registry to one host over a channel.
type Server struct {
	*Registry

	name           string
	version        string
	instructions   string
	logger         logging.Logger
	metrics        *observability.Metrics
	tracer         *observability.TracingProvider
	requestTimeout time.Duration

	initializedLock sync.RWMutex
	clientInfo      *protocol.Implementation
	clientCaps      protocol.ClientCapabilities
}

// ServerOption defines options for creating a server
type ServerOption func(*Server)

// WithName sets the server name
func WithName(name string) ServerOption {
	return func(s *Server) {
		s.name = name
	}
}

// WithVersion sets the server version
func WithVersion(version string) ServerOption {
	return func(s *Server) {
		s.version = version
	}
}

// WithInstructions sets the text returned to the host on initialize
func WithInstructions(instructions string) ServerOption {
	return func(s *Server) {
		s.instructions = instructions
	}
}

// WithLogger sets a structured logger
func WithLogger(logger logging.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics records request and tool metrics
func WithMetrics(metrics *observability.Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = metrics
	}
}

// WithTracing traces served and issued requests
func WithTracing(tracer *observability.TracingProvider) ServerOption {
	return func(s *Server) {
		s.tracer = tracer
	}
}

// WithRequestTimeout bounds nested generate-completion requests
func WithRequestTimeout(timeout time.Duration) ServerOption {
	return func(s *Server) {
		s.requestTimeout = timeout
	}
}

// New creates a server with an empty registry.
func New(options ...ServerOption) *Server {
	s := &Server{
		Registry:       NewRegistry(),
		name:           "userhub-provider",
		version:        "1.0.0",
		requestTimeout: transport.DefaultRequestTimeout,
	}
	for _, option := range options {
		option(s)
	}
	if s.logger == nil {
		s.logger = logging.NewNop()
	}
	s.logger = s.logger.WithFields(logging.Component("server"))
	return s
}

// Serve answers requests arriving on ch until the host disconnects or ctx
// is cancelled.
func (s *Server) Serve(ctx context.Context, ch transport.Channel) error {
	ch = transport.ChainMiddleware(
		transport.MessageLogging(s.logger),
		transport.MessageMetrics(s.metrics),
	).Wrap(ch)
	conn := transport.NewConn(ch,
		transport.WithName("provider"),
		transport.WithLogger(s.logger),
		transport.WithMetrics(s.metrics),
		transport.WithTracing(s.tracer),
		transport.WithRequestTimeout(s.requestTimeout),
	)
	s.Register(conn)

	s.logger.Info("serving",
		logging.Int("tools", len(s.Tools())),
		logging.Int("resources", len(s.Resources())),
		logging.Int("templates", len(s.ResourceTemplates())),
		logging.Int("prompts", len(s.Prompts())))

	return conn.Run(ctx)
}

// Register installs the provider's request handlers on conn.
func (s *Server) Register(conn *transport.Conn) {
	sampler := &connSampler{conn: conn, enabled: s.samplingEnabled}

	conn.Handle(protocol.MethodInitialize, s.handleInitialize)
	conn.Handle(protocol.MethodPing, s.handlePing)
	conn.HandleNotification(protocol.MethodInitialized, func(context.Context, json.RawMessage) {
		s.logger.Debug("host ready")
	})
	conn.Handle(protocol.MethodListTools, s.handleListTools)
	conn.Handle(protocol.MethodListResources, s.handleListResources)
	conn.Handle(protocol.MethodListResourceTemplates, s.handleListResourceTemplates)
	conn.Handle(protocol.MethodListPrompts, s.handleListPrompts)
	conn.Handle(protocol.MethodCallTool, func(ctx context.Context, params json.RawMessage) (interface{}, error) {
		return s.handleCallTool(ctx, params, sampler)
	})
	conn.Handle(protocol.MethodReadResource, s.handleReadResource)
	conn.Handle(protocol.MethodGetPrompt, s.handleGetPrompt)
}

// ClientInfo returns the host's name and version once initialize arrived.
func (s *Server) ClientInfo() *protocol.Implementation {
	s.initializedLock.RLock()
	defer s.initializedLock.RUnlock()
	return s.clientInfo
}

func (s *Server) samplingEnabled() bool {
	s.initializedLock.RLock()
	defer s.initializedLock.RUnlock()
	// Hosts that skip initialize are assumed to answer generate-completion.
	return s.clientInfo == nil || s.clientCaps.Sampling != nil
}

func decodeParams(method string, params json.RawMessage, target interface{}) error {
	if len(params) == 0 {
		return nil
	}
	if err := json.Unmarshal(params, target); err != nil {
		return mcperrors.InvalidParams(method, err)
	}
	return nil
}

func (s *Server) handleInitialize(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var initParams protocol.InitializeParams
	if err := decodeParams(protocol.MethodInitialize, params, &initParams); err != nil {
		return nil, err
	}

	s.initializedLock.Lock()
	info := initParams.ClientInfo
	s.clientInfo = &info
	s.clientCaps = initParams.Capabilities
	s.initializedLock.Unlock()

	s.logger.Info("host connected",
		logging.String("client", initParams.ClientInfo.Name),
		logging.String("client_version", initParams.ClientInfo.Version),
		logging.Bool("sampling", initParams.Capabilities.Sampling != nil))

	result := &protocol.InitializeResult{
		ProtocolVersion: protocol.ProtocolVersion,
		ServerInfo:      protocol.Implementation{Name: s.name, Version: s.version},
		Instructions:    s.instructions,
	}
	if len(s.Tools()) > 0 {
		result.Capabilities.Tools = &struct{}{}
	}
	if len(s.Resources()) > 0 || len(s.ResourceTemplates()) > 0 {
		result.Capabilities.Resources = &struct{}{}
	}
	if len(s.Prompts()) > 0 {
		result.Capabilities.Prompts = &struct{}{}
	}
	return result, nil
}

func (s *Server) handlePing(ctx context.Context, params json.RawMessage) (interface{}, error) {
	return struct{}{}, nil
}

func (s *Server) handleListTools(ctx context.Context, params json.RawMessage) (interface{}, error) {
	return &protocol.ListToolsResult{Tools: s.Tools()}, nil
}

func (s *Server) handleListResources(ctx context.Context, params json.RawMessage) (interface{}, error) {
	return &protocol.ListResourcesResult{Resources: s.Resources()}, nil
}

func (s *Server) handleListResourceTemplates(ctx context.Context, params json.RawMessage) (interface{}, error) {
	return &protocol.ListResourceTemplatesResult{ResourceTemplates: s.ResourceTemplates()}, nil
}

func (s *Server) handleListPrompts(ctx context.Context, params json.RawMessage) (interface{}, error) {
	return &protocol.ListPromptsResult{Prompts: s.Prompts()}, nil
}

func (s *Server) handleCallTool(ctx context.Context, params json.RawMessage, sampler Sampler) (interface{}, error) {
	var callParams protocol.CallToolParams
	if err := decodeParams(protocol.MethodCallTool, params, &callParams); err != nil {
		return nil, err
	}

	entry, ok := s.tool(callParams.Name)
	if !ok {
		return nil, mcperrors.CapabilityNotFound("tool", callParams.Name)
	}
	if missing := entry.tool.InputSchema.MissingRequired(callParams.Arguments); len(missing) > 0 {
		return nil, mcperrors.MissingParameters(callParams.Name, missing)
	}
	if callParams.Arguments == nil {
		callParams.Arguments = map[string]interface{}{}
	}

	start := time.Now()
	result := s.runTool(ctx, entry, ToolRequest{
		Name:      callParams.Name,
		Arguments: callParams.Arguments,
		Sampler:   sampler,
	})
	s.metrics.RecordToolCall(callParams.Name, result.IsError, time.Since(start))
	return result, nil
}

// runTool never fails: handler errors and panics become error results so
// the host can show them like any other tool output.
func (s *Server) runTool(ctx context.Context, entry *toolEntry, req ToolRequest) (result *protocol.CallToolResult) {
	logger := s.logger.WithContext(ctx).WithFields(logging.String("tool", req.Name))

	defer func() {
		if r := recover(); r != nil {
			logger.Error("tool panicked", logging.String("panic", fmt.Sprint(r)))
			result = protocol.NewToolErrorResult("Tool %s failed: %v", req.Name, r)
		}
	}()

	result, err := entry.handler(ctx, req)
	if err != nil {
		logger.WithError(err).Warn("tool failed")
		return protocol.NewToolErrorResult("%s", err.Error())
	}
	if result == nil {
		result = &protocol.CallToolResult{Content: []protocol.Content{}}
	}
	return result
}

func (s *Server) handleReadResource(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var readParams protocol.ReadResourceParams
	if err := decodeParams(protocol.MethodReadResource, params, &readParams); err != nil {
		return nil, err
	}
	uri := readParams.URI

	if entry, ok := s.resource(uri); ok {
		result, err := entry.handler(ctx, uri)
		if err != nil {
			return nil, mcperrors.HandlerFailed("resource", uri, err)
		}
		return result, nil
	}

	// A URI still carrying {placeholders} was never resolved by the caller.
	spans, err := uritemplate.Placeholders(uri)
	if err != nil {
		return nil, err
	}
	if len(spans) > 0 {
		names := make([]string, 0, len(spans))
		for _, span := range spans {
			names = append(names, span.Name)
		}
		return nil, mcperrors.TemplateUnresolved(uri, names)
	}

	entry, vars, ok := s.matchTemplate(uri)
	if !ok {
		return nil, mcperrors.ResourceNotFound(uri)
	}
	result, err := entry.handler(ctx, uri, vars)
	if err != nil {
		return nil, mcperrors.HandlerFailed("resource", uri, err)
	}
	return result, nil
}

func (s *Server) handleGetPrompt(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var promptParams protocol.GetPromptParams
	if err := decodeParams(protocol.MethodGetPrompt, params, &promptParams); err != nil {
		return nil, err
	}

	entry, ok := s.prompt(promptParams.Name)
	if !ok {
		return nil, mcperrors.CapabilityNotFound("prompt", promptParams.Name)
	}

	var missing []string
	for _, arg := range entry.prompt.Arguments {
		if arg.Required && promptParams.Arguments[arg.Name] == "" {
			missing = append(missing, arg.Name)
		}
	}
	if len(missing) > 0 {
		return nil, mcperrors.MissingParameters(promptParams.Name, missing)
	}
	if promptParams.Arguments == nil {
		promptParams.Arguments = map[string]string{}
	}

	result, err := entry.handler(ctx, promptParams.Arguments)
	if err != nil {
		return nil, mcperrors.HandlerFailed("prompt", promptParams.Name, err)
	}
	return result, nil
}
