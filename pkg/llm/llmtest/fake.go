// Package llmtest provides a scripted llm.Model for tests.
package llmtest

import (
	"context"
	"errors"
	"sync"

	"github.com/ajitpratap0/mcp-userhub/pkg/llm"
)

// ErrScriptExhausted is returned once every scripted step has been used.
var ErrScriptExhausted = errors.New("llmtest: no scripted response left")

// Step produces one response. It sees the request so a test can assert on
// what the caller sent.
type Step func(req *llm.Request) (*llm.Response, error)

// Reply returns a fixed text answer.
func Reply(text string) Step {
	return func(*llm.Request) (*llm.Response, error) {
		return &llm.Response{Text: text, Model: "fake", FinishReason: "STOP"}, nil
	}
}

// CallTools asks for the given tool calls.
func CallTools(calls ...llm.ToolCall) Step {
	return func(*llm.Request) (*llm.Response, error) {
		return &llm.Response{ToolCalls: calls, Model: "fake"}, nil
	}
}

// Fail returns err.
func Fail(err error) Step {
	return func(*llm.Request) (*llm.Response, error) {
		return nil, err
	}
}

// Model plays back steps in order and records every request.
type Model struct {
	mu       sync.Mutex
	steps    []Step
	requests []*llm.Request
	// Repeat, when set, answers every call once the steps run out.
	Repeat Step
}

// New creates a model that answers with steps in order.
func New(steps ...Step) *Model {
	return &Model{steps: steps}
}

func (m *Model) Generate(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	snapshot := *req
	snapshot.History = append([]llm.Entry(nil), req.History...)
	m.requests = append(m.requests, &snapshot)
	var step Step
	if len(m.steps) > 0 {
		step, m.steps = m.steps[0], m.steps[1:]
	} else {
		step = m.Repeat
	}
	m.mu.Unlock()

	if step == nil {
		return nil, ErrScriptExhausted
	}
	return step(&snapshot)
}

// Requests returns what the model has been asked so far.
func (m *Model) Requests() []*llm.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*llm.Request(nil), m.requests...)
}
