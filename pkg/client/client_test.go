package client

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mcperrors "github.com/ajitpratap0/mcp-userhub/pkg/errors"
	"github.com/ajitpratap0/mcp-userhub/pkg/llm/llmtest"
	"github.com/ajitpratap0/mcp-userhub/pkg/protocol"
	"github.com/ajitpratap0/mcp-userhub/pkg/server"
	"github.com/ajitpratap0/mcp-userhub/pkg/transport"
	"github.com/ajitpratap0/mcp-userhub/pkg/utils"
)

func newProvider(t *testing.T) *server.Server {
	t.Helper()
	srv := server.New(server.WithName("users"), server.WithVersion("2.0.0"))

	schema := protocol.NewInputSchema()
	schema.Add("name", protocol.Property{Type: "string"}, true)
	require.NoError(t, srv.AddTool(protocol.Tool{Name: "echo", Title: "Echo", InputSchema: schema},
		func(ctx context.Context, req server.ToolRequest) (*protocol.CallToolResult, error) {
			return protocol.NewToolResult("hi " + req.StringArg("name")), nil
		}))
	require.NoError(t, srv.AddTool(protocol.Tool{Name: "summarize"},
		func(ctx context.Context, req server.ToolRequest) (*protocol.CallToolResult, error) {
			text, err := server.CompleteText(ctx, req.Sampler, "summarize please", 1024)
			if err != nil {
				return nil, err
			}
			return protocol.NewToolResult("model said: " + text), nil
		}))
	require.NoError(t, srv.AddResource(protocol.Resource{URI: "users://all", Name: "all"},
		func(ctx context.Context, uri string) (*protocol.ReadResourceResult, error) {
			return protocol.NewTextResource(uri, "application/json", `[]`), nil
		}))
	require.NoError(t, srv.AddResourceTemplate(protocol.ResourceTemplate{URITemplate: "users://{userId}/profile", Name: "profile"},
		func(ctx context.Context, uri string, vars map[string]string) (*protocol.ReadResourceResult, error) {
			return protocol.NewTextResource(uri, "application/json", `{"id":`+vars["userId"]+`}`), nil
		}))
	require.NoError(t, srv.AddPrompt(protocol.Prompt{
		Name:      "greet",
		Arguments: []protocol.PromptArgument{{Name: "name", Required: true}},
	}, func(ctx context.Context, args map[string]string) (*protocol.GetPromptResult, error) {
		return &protocol.GetPromptResult{Messages: []protocol.PromptMessage{{
			Role:    protocol.RoleUser,
			Content: protocol.TextContent("Say hello to " + args["name"]),
		}}}, nil
	}))
	return srv
}

// connect serves srv over an in-memory pipe and returns a connected session.
func connect(t *testing.T, srv *server.Server, opts ...Option) *Session {
	t.Helper()
	hostCh, providerCh := transport.Pipe()

	served := make(chan struct{})
	go func() {
		defer close(served)
		_ = srv.Serve(context.Background(), providerCh)
	}()

	session, err := Connect(context.Background(), hostCh, opts...)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = session.Close()
		_ = providerCh.Close()
		<-served
	})
	return session
}

func TestConnect_Handshake(t *testing.T) {
	srv := newProvider(t)
	session := connect(t, srv, WithName("test-host"))

	info := session.ServerInfo()
	require.NotNil(t, info)
	assert.Equal(t, "users", info.ServerInfo.Name)
	assert.Equal(t, "2.0.0", info.ServerInfo.Version)
	assert.NotNil(t, info.Capabilities.Tools)
	assert.NotNil(t, info.Capabilities.Resources)
	assert.NotNil(t, info.Capabilities.Prompts)

	require.NotNil(t, srv.ClientInfo())
	assert.Equal(t, "test-host", srv.ClientInfo().Name)
	assert.NoError(t, session.Ping(context.Background()))
}

func TestSession_Discover(t *testing.T) {
	session := connect(t, newProvider(t))

	snapshot, err := session.Discover(context.Background())
	require.NoError(t, err)

	require.Len(t, snapshot.Tools, 2)
	assert.Equal(t, "echo", snapshot.Tools[0].Name)
	assert.Equal(t, []string{"users://all", "users://{userId}/profile"}, snapshot.ResourceURIs())

	tool, ok := snapshot.Tool("echo")
	require.True(t, ok)
	assert.Equal(t, "Echo", tool.DisplayName())
	assert.Equal(t, []string{"name"}, tool.InputSchema.Required)

	prompt, ok := snapshot.Prompt("greet")
	require.True(t, ok)
	assert.Len(t, prompt.Arguments, 1)

	_, ok = snapshot.Tool("missing")
	assert.False(t, ok)
}

func TestSession_DiscoverFailsAfterClose(t *testing.T) {
	session := connect(t, newProvider(t))
	require.NoError(t, session.Close())

	_, err := session.Discover(context.Background())

	assert.ErrorIs(t, err, mcperrors.ErrConnectionClosed)
}

func TestSession_DiscoverFailsWhenOneListFails(t *testing.T) {
	hostCh, providerCh := transport.Pipe()
	provider := transport.NewConn(providerCh)
	newProvider(t).Register(provider)
	provider.Handle(protocol.MethodListPrompts, func(context.Context, json.RawMessage) (interface{}, error) {
		return nil, mcperrors.HandlerFailed("list", "prompts", errors.New("registry unavailable"))
	})

	served := make(chan struct{})
	go func() {
		defer close(served)
		_ = provider.Run(context.Background())
	}()

	session, err := Connect(context.Background(), hostCh)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = session.Close()
		_ = provider.Close()
		<-served
	})

	snapshot, err := session.Discover(context.Background())

	assert.Nil(t, snapshot)
	assert.True(t, mcperrors.IsCode(err, mcperrors.CodeHandlerFailed), "got %v", err)
	assert.Contains(t, err.Error(), "prompts")

	assert.NoError(t, session.Ping(context.Background()), "a failed discovery leaves the session usable")
}

func TestSession_Invocations(t *testing.T) {
	session := connect(t, newProvider(t))
	ctx := context.Background()

	result, err := session.CallTool(ctx, "echo", map[string]interface{}{"name": "Ann"})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, "hi Ann", result.Text())

	_, err = session.CallTool(ctx, "nope", nil)
	assert.ErrorIs(t, err, mcperrors.ErrCapabilityNotFound)

	resource, err := session.ReadResource(ctx, "users://3/profile")
	require.NoError(t, err)
	require.Len(t, resource.Contents, 1)
	assert.Equal(t, `{"id":3}`, resource.Contents[0].Text)

	_, err = session.ReadResource(ctx, "files://nowhere")
	assert.True(t, mcperrors.IsCategory(err, mcperrors.CategoryNotFound))

	prompt, err := session.GetPrompt(ctx, "greet", map[string]string{"name": "Bo"})
	require.NoError(t, err)
	require.Len(t, prompt.Messages, 1)
	assert.Equal(t, "Say hello to Bo", prompt.Messages[0].Content.Text)
}

func TestSession_NestedSampling(t *testing.T) {
	model := llmtest.New(llmtest.Reply("a short summary"))
	session := connect(t, newProvider(t), WithCompletionHandler(SamplingFromModel(model)))

	result, err := session.CallTool(context.Background(), "summarize", nil)

	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, "model said: a short summary", result.Text())

	requests := model.Requests()
	require.Len(t, requests, 1)
	assert.Equal(t, 1024, requests[0].MaxOutputTokens)
	require.Len(t, requests[0].History, 1)
	assert.Equal(t, "summarize please", requests[0].History[0].Text)
}

func TestSession_SamplingModelFailureIsToolError(t *testing.T) {
	model := llmtest.New(llmtest.Fail(errors.New("quota exceeded")))
	session := connect(t, newProvider(t), WithCompletionHandler(SamplingFromModel(model)))

	result, err := session.CallTool(context.Background(), "summarize", nil)

	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Text(), "quota exceeded")
}

func TestSession_SamplingWithoutHandler(t *testing.T) {
	session := connect(t, newProvider(t))

	result, err := session.CallTool(context.Background(), "summarize", nil)

	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Text(), "sampling")
}

func TestSamplingFromModel_RejectsNonText(t *testing.T) {
	handler := SamplingFromModel(llmtest.New(llmtest.Reply("unused")))

	_, err := handler(context.Background(), &protocol.GenerateCompletionParams{
		Messages: []protocol.SamplingMessage{{Role: protocol.RoleUser, Content: protocol.Content{Type: protocol.ContentTypeImage}}},
	})

	assert.True(t, mcperrors.IsCode(err, mcperrors.CodeContentMismatch))
}

func TestSession_CloseWithoutStart(t *testing.T) {
	hostCh, providerCh := transport.Pipe()
	defer providerCh.Close()

	session := New(hostCh)

	assert.NoError(t, session.Close())
}

func TestSession_CloseReleasesGoroutines(t *testing.T) {
	detector := utils.NewGoroutineLeakDetector(t).SetAllowedGrowth(2)
	detector.Start()

	srv := newProvider(t)
	hostCh, providerCh := transport.Pipe()
	served := make(chan struct{})
	go func() {
		defer close(served)
		_ = srv.Serve(context.Background(), providerCh)
	}()

	session, err := Connect(context.Background(), hostCh)
	require.NoError(t, err)
	_, err = session.Discover(context.Background())
	require.NoError(t, err)

	require.NoError(t, session.Close())
	<-served

	detector.Check()
}
