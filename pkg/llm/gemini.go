package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/avast/retry-go"
	"google.golang.org/genai"

	mcperrors "github.com/ajitpratap0/mcp-userhub/pkg/errors"
	"github.com/ajitpratap0/mcp-userhub/pkg/logging"
	"github.com/ajitpratap0/mcp-userhub/pkg/observability"
	"github.com/ajitpratap0/mcp-userhub/pkg/protocol"
)

// DefaultGeminiModel is used when GeminiConfig.Model is empty.
const DefaultGeminiModel = "gemini-2.0-flash"

// GeminiConfig configures the Gemini binding.
type GeminiConfig struct {
	APIKey string
	Model  string

	// Attempts bounds retries of a failed call. Zero means 3.
	Attempts uint
	// RetryDelay is the base backoff between attempts.
	RetryDelay time.Duration

	Logger  logging.Logger
	Metrics *observability.Metrics
}

// Gemini calls the Gemini API.
type Gemini struct {
	client  *genai.Client
	config  GeminiConfig
	logger  logging.Logger
	metrics *observability.Metrics
}

// NewGemini creates a client. It fails without an API key.
func NewGemini(ctx context.Context, config GeminiConfig) (*Gemini, error) {
	if config.APIKey == "" {
		return nil, mcperrors.UpstreamModelError("connect", errors.New("GEMINI_API_KEY is not set"))
	}
	if config.Model == "" {
		config.Model = DefaultGeminiModel
	}
	if config.Attempts == 0 {
		config.Attempts = 3
	}
	if config.RetryDelay == 0 {
		config.RetryDelay = 500 * time.Millisecond
	}
	if config.Logger == nil {
		config.Logger = logging.NewNop()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, mcperrors.UpstreamModelError("connect", err)
	}

	return &Gemini{
		client:  client,
		config:  config,
		logger:  config.Logger.WithFields(logging.Component("gemini")),
		metrics: config.Metrics,
	}, nil
}

// Generate sends req, retrying transient failures.
func (g *Gemini) Generate(ctx context.Context, req *Request) (*Response, error) {
	contents, err := buildContents(req.History)
	if err != nil {
		return nil, err
	}
	genConfig := buildConfig(req)

	var resp *genai.GenerateContentResponse
	start := time.Now()
	err = retry.Do(
		func() error {
			var callErr error
			resp, callErr = g.client.Models.GenerateContent(ctx, g.config.Model, contents, genConfig)
			return callErr
		},
		retry.Context(ctx),
		retry.Attempts(g.config.Attempts),
		retry.Delay(g.config.RetryDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(retryable),
		retry.OnRetry(func(n uint, err error) {
			g.logger.WithError(err).Warn("model call failed, retrying", logging.Int("attempt", int(n)+1))
		}),
	)
	if err != nil {
		err = mcperrors.UpstreamModelError("generate", err)
	}
	g.metrics.RecordModelCall("generate", err, time.Since(start))
	if err != nil {
		return nil, err
	}

	return parseResponse(resp, g.config.Model), nil
}

// retryable reports whether a failed call may succeed when repeated: rate
// limits, timeouts, server errors and network failures. Other API errors,
// such as a bad key or an invalid request, fail at once.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusTooManyRequests, apiErr.Code == http.StatusRequestTimeout:
			return true
		case apiErr.Code >= http.StatusInternalServerError:
			return true
		default:
			return false
		}
	}
	// Network failures and anything else unclassified get another attempt.
	return true
}

func buildConfig(req *Request) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.MaxOutputTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxOutputTokens)
	}
	if len(req.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
		for _, t := range req.Tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  toSchema(t.Schema),
			})
		}
		config.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}
	return config
}

// toSchema converts an input schema. Gemini rejects an object schema with
// no properties, so parameterless tools send no schema at all.
func toSchema(s protocol.InputSchema) *genai.Schema {
	params := s.Params()
	if len(params) == 0 {
		return nil
	}
	schema := &genai.Schema{
		Type:       genai.TypeObject,
		Properties: make(map[string]*genai.Schema, len(params)),
		Required:   s.Required,
	}
	for _, p := range params {
		schema.Properties[p.Name] = &genai.Schema{
			Type:        schemaType(p.Type),
			Description: p.Description,
		}
		schema.PropertyOrdering = append(schema.PropertyOrdering, p.Name)
	}
	return schema
}

func schemaType(t string) genai.Type {
	switch t {
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeString
	}
}

func buildContents(history []Entry) ([]*genai.Content, error) {
	contents := make([]*genai.Content, 0, len(history))
	for _, e := range history {
		switch e.Role {
		case RoleUser:
			contents = append(contents, genai.NewContentFromText(e.Text, genai.RoleUser))
		case RoleAssistant:
			var parts []*genai.Part
			if e.Text != "" {
				parts = append(parts, genai.NewPartFromText(e.Text))
			}
			for _, call := range e.ToolCalls {
				part := genai.NewPartFromFunctionCall(call.Name, call.Arguments)
				part.FunctionCall.ID = call.ID
				parts = append(parts, part)
			}
			contents = append(contents, genai.NewContentFromParts(parts, genai.RoleModel))
		case RoleTool:
			parts := make([]*genai.Part, 0, len(e.ToolResults))
			for _, r := range e.ToolResults {
				response := map[string]any{"output": r.Content}
				if r.IsError {
					response = map[string]any{"error": r.Content}
				}
				part := genai.NewPartFromFunctionResponse(r.Name, response)
				part.FunctionResponse.ID = r.CallID
				parts = append(parts, part)
			}
			contents = append(contents, genai.NewContentFromParts(parts, genai.RoleUser))
		default:
			return nil, fmt.Errorf("unknown conversation role %q", e.Role)
		}
	}
	return contents, nil
}

func parseResponse(resp *genai.GenerateContentResponse, model string) *Response {
	out := &Response{Text: resp.Text(), Model: model}
	if resp.ModelVersion != "" {
		out.Model = resp.ModelVersion
	}
	if len(resp.Candidates) > 0 {
		out.FinishReason = string(resp.Candidates[0].FinishReason)
	}
	for i, call := range resp.FunctionCalls() {
		id := call.ID
		if id == "" {
			id = fmt.Sprintf("call_%d", i)
		}
		out.ToolCalls = append(out.ToolCalls, ToolCall{ID: id, Name: call.Name, Arguments: call.Args})
	}
	return out
}
