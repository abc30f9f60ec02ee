package server

import (
	"context"
	"errors"

	mcperrors "github.com/ajitpratap0/mcp-userhub/pkg/errors"
	"github.com/ajitpratap0/mcp-userhub/pkg/protocol"
	"github.com/ajitpratap0/mcp-userhub/pkg/transport"
)

// Sampler asks the host to run a model completion on the provider's behalf.
type Sampler interface {
	RequestCompletion(ctx context.Context, messages []protocol.SamplingMessage, maxOutputTokens int) (*protocol.GenerateCompletionResult, error)
}

// connSampler issues generate-completion back over the connection the tool
// call arrived on.
type connSampler struct {
	conn    *transport.Conn
	enabled func() bool
}

func (s *connSampler) RequestCompletion(ctx context.Context, messages []protocol.SamplingMessage, maxOutputTokens int) (*protocol.GenerateCompletionResult, error) {
	if s.enabled != nil && !s.enabled() {
		return nil, mcperrors.UpstreamModelError(protocol.MethodGenerateCompletion,
			errors.New("host did not declare the sampling capability"))
	}

	params := &protocol.GenerateCompletionParams{
		Messages:        messages,
		MaxOutputTokens: maxOutputTokens,
	}
	var result protocol.GenerateCompletionResult
	if err := s.conn.Issue(ctx, protocol.MethodGenerateCompletion, params, &result); err != nil {
		return nil, mcperrors.UpstreamModelError(protocol.MethodGenerateCompletion, err)
	}
	if result.Content.Type != protocol.ContentTypeText {
		return nil, mcperrors.ContentMismatch(protocol.ContentTypeText, result.Content.Type)
	}
	return &result, nil
}

// CompleteText sends a single user message and returns the model's text.
func CompleteText(ctx context.Context, sampler Sampler, prompt string, maxOutputTokens int) (string, error) {
	if sampler == nil {
		return "", mcperrors.UpstreamModelError(protocol.MethodGenerateCompletion, errors.New("no sampler available"))
	}
	result, err := sampler.RequestCompletion(ctx, []protocol.SamplingMessage{{
		Role:    protocol.RoleUser,
		Content: protocol.TextContent(prompt),
	}}, maxOutputTokens)
	if err != nil {
		return "", err
	}
	return result.Content.Text, nil
}
