package protocol

// SamplingMessage is one message sent to the host's model.
type SamplingMessage struct {
	Role    Role    `json:"role"`
	Content Content `json:"content"`
}

// GenerateCompletionParams asks the host to run a model completion.
type GenerateCompletionParams struct {
	Messages        []SamplingMessage `json:"messages"`
	SystemPrompt    string            `json:"systemPrompt,omitempty"`
	MaxOutputTokens int               `json:"maxOutputTokens"`
}

// GenerateCompletionResult is the host's model output.
type GenerateCompletionResult struct {
	Role       Role    `json:"role"`
	Content    Content `json:"content"`
	Model      string  `json:"model,omitempty"`
	StopReason string  `json:"stopReason,omitempty"`
}
