package client

import "github.com/ajitpratap0/mcp-userhub/pkg/protocol"

// Snapshot is a point-in-time copy of a provider's capabilities. It does
// not change when the provider does.
type Snapshot struct {
	Tools             []protocol.Tool
	Resources         []protocol.Resource
	ResourceTemplates []protocol.ResourceTemplate
	Prompts           []protocol.Prompt
}

// Tool finds a tool by name.
func (s *Snapshot) Tool(name string) (protocol.Tool, bool) {
	for _, t := range s.Tools {
		if t.Name == name {
			return t, true
		}
	}
	return protocol.Tool{}, false
}

// Prompt finds a prompt by name.
func (s *Snapshot) Prompt(name string) (protocol.Prompt, bool) {
	for _, p := range s.Prompts {
		if p.Name == name {
			return p, true
		}
	}
	return protocol.Prompt{}, false
}

// ResourceURIs lists static URIs followed by templates, in provider order.
func (s *Snapshot) ResourceURIs() []string {
	uris := make([]string, 0, len(s.Resources)+len(s.ResourceTemplates))
	for _, r := range s.Resources {
		uris = append(uris, r.URI)
	}
	for _, t := range s.ResourceTemplates {
		uris = append(uris, t.URITemplate)
	}
	return uris
}
