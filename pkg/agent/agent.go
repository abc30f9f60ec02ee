// Package agent answers free-text queries with a language model that may
// call the provider's tools.
//
// A run moves through AwaitingQuery, Generating, Invoking and Done. Each
// Generating step sends the conversation so far with every tool declaration; when
// the model asks for tools they are invoked concurrently through the
// session and their results folded back before the next step.
package agent

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	mcperrors "github.com/ajitpratap0/mcp-userhub/pkg/errors"
	"github.com/ajitpratap0/mcp-userhub/pkg/llm"
	"github.com/ajitpratap0/mcp-userhub/pkg/logging"
	"github.com/ajitpratap0/mcp-userhub/pkg/observability"
	"github.com/ajitpratap0/mcp-userhub/pkg/protocol"
)

// DefaultMaxIterations bounds the tool rounds of one run.
const DefaultMaxIterations = 8

// State is a step of a run.
type State int

const (
	AwaitingQuery State = iota
	Generating
	Invoking
	Done
)

func (s State) String() string {
	switch s {
	case AwaitingQuery:
		return "awaiting_query"
	case Generating:
		return "generating"
	case Invoking:
		return "invoking"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Invoker calls a tool on the provider.
type Invoker interface {
	CallTool(ctx context.Context, name string, arguments map[string]interface{}) (*protocol.CallToolResult, error)
}

// Result is what a run produced. On error it still carries the tool results
// gathered before the failure.
type Result struct {
	Answer      string
	ToolResults []llm.ToolResult
	Iterations  int
}

// Agent runs queries against one model and one provider session.
type Agent struct {
	model   llm.Model
	invoker Invoker
	tools   []protocol.Tool
	specs   []llm.ToolSpec

	maxIterations   int
	maxOutputTokens int
	system          string
	onTransition    func(from, to State)
	logger          logging.Logger
	tracer          *observability.TracingProvider
}

// Option configures an Agent.
type Option func(*Agent)

// WithMaxIterations overrides DefaultMaxIterations.
func WithMaxIterations(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxIterations = n
		}
	}
}

// WithMaxOutputTokens caps each model reply.
func WithMaxOutputTokens(n int) Option {
	return func(a *Agent) {
		a.maxOutputTokens = n
	}
}

// WithSystemPrompt sets the system instruction sent with every step.
func WithSystemPrompt(system string) Option {
	return func(a *Agent) {
		a.system = system
	}
}

// OnTransition is called on every state change, on the run's goroutine.
func OnTransition(fn func(from, to State)) Option {
	return func(a *Agent) {
		a.onTransition = fn
	}
}

// WithLogger sets a structured logger.
func WithLogger(logger logging.Logger) Option {
	return func(a *Agent) {
		a.logger = logger
	}
}

// WithTracing opens a span per run.
func WithTracing(tracer *observability.TracingProvider) Option {
	return func(a *Agent) {
		a.tracer = tracer
	}
}

// New builds an agent that offers every tool in tools to model and invokes
// them through invoker.
func New(model llm.Model, invoker Invoker, tools []protocol.Tool, opts ...Option) *Agent {
	a := &Agent{
		model:         model,
		invoker:       invoker,
		tools:         tools,
		maxIterations: DefaultMaxIterations,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = logging.NewNop()
	}
	a.logger = a.logger.WithFields(logging.Component("agent"))

	a.specs = make([]llm.ToolSpec, 0, len(tools))
	for _, t := range tools {
		a.specs = append(a.specs, llm.ToolSpec{
			Name:        t.Name,
			Description: t.Description,
			Schema:      t.InputSchema,
		})
	}
	return a
}

// Run answers query. When the model still wants tools after the iteration
// limit, Run returns the partial result with a max-iterations error.
func (a *Agent) Run(ctx context.Context, query string) (result *Result, err error) {
	ctx, span := a.tracer.StartSpan(ctx, "agent.run", attribute.Int("agent.tools", len(a.specs)))
	defer func() { observability.EndSpan(span, err) }()

	logger := a.logger.WithContext(ctx)
	result = &Result{}
	history := llm.UserText(query)
	state := AwaitingQuery
	moveTo := func(next State) {
		if a.onTransition != nil {
			a.onTransition(state, next)
		}
		state = next
	}
	defer func() { moveTo(Done) }()

	for round := 0; ; round++ {
		moveTo(Generating)
		result.Iterations++

		resp, err := a.model.Generate(ctx, &llm.Request{
			System:          a.system,
			History:         history,
			Tools:           a.specs,
			MaxOutputTokens: a.maxOutputTokens,
		})
		if err != nil {
			if _, ok := mcperrors.AsMCPError(err); !ok {
				err = mcperrors.UpstreamModelError("generate", err)
			}
			return result, err
		}

		if len(resp.ToolCalls) == 0 {
			result.Answer = resp.Text
			logger.Debug("agent finished",
				logging.Int("iterations", result.Iterations),
				logging.Int("tool_results", len(result.ToolResults)))
			return result, nil
		}
		if round >= a.maxIterations {
			logger.Warn("agent hit the iteration limit", logging.Int("limit", a.maxIterations))
			result.Answer = resp.Text
			return result, mcperrors.MaxIterations(a.maxIterations)
		}

		moveTo(Invoking)
		history = append(history, llm.Entry{Role: llm.RoleAssistant, Text: resp.Text, ToolCalls: resp.ToolCalls})
		results, err := a.invokeAll(ctx, resp.ToolCalls)
		result.ToolResults = append(result.ToolResults, results...)
		if err != nil {
			return result, err
		}
		history = append(history, llm.Entry{Role: llm.RoleTool, ToolResults: results})
	}
}

// invokeAll runs one turn's tool calls concurrently. Tool failures become
// error results the model can read; only cancellation or a dead connection
// stops the run.
func (a *Agent) invokeAll(ctx context.Context, calls []llm.ToolCall) ([]llm.ToolResult, error) {
	results := make([]llm.ToolResult, len(calls))
	var mu sync.Mutex
	var fatal error

	var g errgroup.Group
	for i, call := range calls {
		i, call := i, call
		g.Go(func() error {
			res, err := a.invoke(ctx, call)
			results[i] = res
			if err != nil {
				mu.Lock()
				if fatal == nil {
					fatal = err
				}
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return results, fatal
}

func (a *Agent) invoke(ctx context.Context, call llm.ToolCall) (llm.ToolResult, error) {
	res := llm.ToolResult{CallID: call.ID, Name: call.Name}
	if !a.known(call.Name) {
		res.IsError = true
		res.Content = fmt.Sprintf("unknown tool %q", call.Name)
		return res, nil
	}

	out, err := a.invoker.CallTool(ctx, call.Name, call.Arguments)
	if err != nil {
		res.IsError = true
		res.Content = err.Error()
		if mcperrors.IsFatal(err) || ctx.Err() != nil ||
			mcperrors.IsCode(err, mcperrors.CodeConnectionClosed) {
			return res, err
		}
		a.logger.WithError(err).Warn("tool call failed", logging.String("tool", call.Name))
		return res, nil
	}
	res.Content = out.Text()
	res.IsError = out.IsError
	return res, nil
}

func (a *Agent) known(name string) bool {
	for _, t := range a.tools {
		if t.Name == name {
			return true
		}
	}
	return false
}
