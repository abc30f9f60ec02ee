package protocol

// ProtocolVersion is exchanged during initialize.
const ProtocolVersion = "2025-03-26"

// Method names
const (
	MethodInitialize = "initialize"
	MethodPing       = "ping"
	// MethodInitialized is the host's notification that the handshake is done.
	MethodInitialized = "initialized"

	MethodListTools             = "list-tools"
	MethodListResources         = "list-resources"
	MethodListResourceTemplates = "list-resource-templates"
	MethodListPrompts           = "list-prompts"

	MethodCallTool     = "call-tool"
	MethodReadResource = "read-resource"
	MethodGetPrompt    = "get-prompt"

	// MethodGenerateCompletion travels provider to host.
	MethodGenerateCompletion = "generate-completion"
)

// Implementation names one end of a connection.
type Implementation struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ClientCapabilities describes what the host offers to the provider.
type ClientCapabilities struct {
	Sampling *struct{} `json:"sampling,omitempty"`
}

// ServerCapabilities describes which capability kinds the provider serves.
type ServerCapabilities struct {
	Tools     *struct{} `json:"tools,omitempty"`
	Resources *struct{} `json:"resources,omitempty"`
	Prompts   *struct{} `json:"prompts,omitempty"`
}

// InitializeParams is sent by the host when a connection opens.
type InitializeParams struct {
	ProtocolVersion string             `json:"protocolVersion"`
	ClientInfo      Implementation     `json:"clientInfo"`
	Capabilities    ClientCapabilities `json:"capabilities"`
}

// InitializeResult is the provider's answer to initialize.
type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	ServerInfo      Implementation     `json:"serverInfo"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	Instructions    string             `json:"instructions,omitempty"`
}

// Role tags a message with its author.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Content types
const (
	ContentTypeText  = "text"
	ContentTypeImage = "image"
)

// Content is a single piece of message or result content.
type Content struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Data     string `json:"data,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

// TextContent builds a text content item.
func TextContent(text string) Content {
	return Content{Type: ContentTypeText, Text: text}
}
