package client

import (
	"context"

	mcperrors "github.com/ajitpratap0/mcp-userhub/pkg/errors"
	"github.com/ajitpratap0/mcp-userhub/pkg/llm"
	"github.com/ajitpratap0/mcp-userhub/pkg/protocol"
)

// SamplingFromModel serves generate-completion with model. Model failures
// become error responses, which the provider reports as upstream errors.
func SamplingFromModel(model llm.Model) CompletionHandler {
	return func(ctx context.Context, params *protocol.GenerateCompletionParams) (*protocol.GenerateCompletionResult, error) {
		req := &llm.Request{
			System:          params.SystemPrompt,
			MaxOutputTokens: params.MaxOutputTokens,
		}
		for _, msg := range params.Messages {
			if msg.Content.Type != protocol.ContentTypeText {
				return nil, mcperrors.ContentMismatch(protocol.ContentTypeText, msg.Content.Type)
			}
			role := llm.RoleUser
			if msg.Role == protocol.RoleAssistant {
				role = llm.RoleAssistant
			}
			req.History = append(req.History, llm.Entry{Role: role, Text: msg.Content.Text})
		}

		resp, err := model.Generate(ctx, req)
		if err != nil {
			if _, ok := mcperrors.AsMCPError(err); ok {
				return nil, err
			}
			return nil, mcperrors.UpstreamModelError("generate", err)
		}
		return &protocol.GenerateCompletionResult{
			Role:       protocol.RoleAssistant,
			Content:    protocol.TextContent(resp.Text),
			Model:      resp.Model,
			StopReason: resp.FinishReason,
		}, nil
	}
}
