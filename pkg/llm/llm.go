// Package llm is the host's binding to a generative language model.
//
// The agent loop and the sampling bridge talk to a Model; Gemini is the
// production implementation and llmtest provides a scripted fake.
package llm

import (
	"context"

	"github.com/ajitpratap0/mcp-userhub/pkg/protocol"
)

// Role tags a conversation entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	// RoleTool entries carry tool results back to the model.
	RoleTool Role = "tool"
)

// ToolSpec is a tool the model may call.
type ToolSpec struct {
	Name        string
	Description string
	Schema      protocol.InputSchema
}

// ToolCall is the model asking for one tool invocation.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]interface{}
}

// ToolResult answers one ToolCall.
type ToolResult struct {
	CallID  string
	Name    string
	Content string
	IsError bool
}

// Entry is one turn of the conversation.
type Entry struct {
	Role        Role
	Text        string
	ToolCalls   []ToolCall
	ToolResults []ToolResult
}

// Request is one generation call.
type Request struct {
	System          string
	History         []Entry
	Tools           []ToolSpec
	MaxOutputTokens int
}

// Response is the model's reply. When ToolCalls is non-empty the model
// expects their results before it answers.
type Response struct {
	Text         string
	ToolCalls    []ToolCall
	Model        string
	FinishReason string
}

// Model generates replies.
type Model interface {
	Generate(ctx context.Context, req *Request) (*Response, error)
}

// UserText is a convenience for a single-turn history.
func UserText(text string) []Entry {
	return []Entry{{Role: RoleUser, Text: text}}
}
