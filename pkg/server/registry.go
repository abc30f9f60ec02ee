package server

import (
	"context"
	"errors"
	"regexp"
	"sync"

	rfc6570 "github.com/yosida95/uritemplate/v3"

	mcperrors "github.com/ajitpratap0/mcp-userhub/pkg/errors"
	"github.com/ajitpratap0/mcp-userhub/pkg/protocol"
	"github.com/ajitpratap0/mcp-userhub/pkg/uritemplate"
)

// ToolRequest is what a tool handler receives.
type ToolRequest struct {
	Name      string
	Arguments map[string]interface{}
	// Sampler reaches the host's language model over the same connection.
	Sampler Sampler
}

// StringArg returns a text argument, or "" when absent or not text.
func (r ToolRequest) StringArg(name string) string {
	s, _ := r.Arguments[name].(string)
	return s
}

// ToolHandler runs a tool. A returned error is reported to the caller as a
// tool result with IsError set.
type ToolHandler func(ctx context.Context, req ToolRequest) (*protocol.CallToolResult, error)

// ResourceHandler reads a static resource.
type ResourceHandler func(ctx context.Context, uri string) (*protocol.ReadResourceResult, error)

// TemplateHandler reads a resource addressed through a template. vars holds
// the placeholder values extracted from uri.
type TemplateHandler func(ctx context.Context, uri string, vars map[string]string) (*protocol.ReadResourceResult, error)

// PromptHandler renders a prompt.
type PromptHandler func(ctx context.Context, args map[string]string) (*protocol.GetPromptResult, error)

type toolEntry struct {
	tool    protocol.Tool
	handler ToolHandler
}

type resourceEntry struct {
	resource protocol.Resource
	handler  ResourceHandler
}

type templateEntry struct {
	template protocol.ResourceTemplate
	matcher  *rfc6570.Template
	// segments matches each simple {name} against one raw path segment. It
	// catches values rfc6570 rejects, such as spaces or non-ASCII text. Nil
	// when the template uses operators.
	segments *regexp.Regexp
	names    []string
	handler  TemplateHandler
}

var simpleName = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

func segmentMatcher(tmpl string, spans []uritemplate.Placeholder) (*regexp.Regexp, []string) {
	var (
		b     = []byte{'^'}
		names = make([]string, 0, len(spans))
		last  int
	)
	for _, span := range spans {
		if !simpleName.MatchString(span.Name) {
			return nil, nil
		}
		b = append(b, regexp.QuoteMeta(tmpl[last:span.Start])...)
		b = append(b, "([^/]+)"...)
		names = append(names, span.Name)
		last = span.End
	}
	b = append(b, regexp.QuoteMeta(tmpl[last:])...)
	b = append(b, '$')
	re, err := regexp.Compile(string(b))
	if err != nil {
		return nil, nil
	}
	return re, names
}

type promptEntry struct {
	prompt  protocol.Prompt
	handler PromptHandler
}

// Registry holds the provider's capabilities keyed by name. Listing returns
// them in registration order.
type Registry struct {
	mu        sync.RWMutex
	tools     map[string]*toolEntry
	toolOrder []string
	resources map[string]*resourceEntry
	resOrder  []string
	templates []*templateEntry
	prompts   map[string]*promptEntry
	prOrder   []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:     make(map[string]*toolEntry),
		resources: make(map[string]*resourceEntry),
		prompts:   make(map[string]*promptEntry),
	}
}

// AddTool registers a tool. Names are unique.
func (r *Registry) AddTool(tool protocol.Tool, handler ToolHandler) error {
	if tool.Name == "" || handler == nil {
		return mcperrors.InvalidParams("add tool", errors.New("name and handler are required"))
	}
	if tool.InputSchema.Type == "" {
		tool.InputSchema = protocol.NewInputSchema()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tools[tool.Name]; ok {
		return mcperrors.DuplicateName("tool", tool.Name)
	}
	r.tools[tool.Name] = &toolEntry{tool: tool, handler: handler}
	r.toolOrder = append(r.toolOrder, tool.Name)
	return nil
}

// AddResource registers a resource under its static URI.
func (r *Registry) AddResource(resource protocol.Resource, handler ResourceHandler) error {
	if resource.URI == "" || handler == nil {
		return mcperrors.InvalidParams("add resource", errors.New("uri and handler are required"))
	}
	if !uritemplate.IsResolved(resource.URI) {
		return mcperrors.InvalidParams("add resource", errors.New("static resource URI has placeholders; register a template"))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.resources[resource.URI]; ok {
		return mcperrors.DuplicateName("resource", resource.URI)
	}
	r.resources[resource.URI] = &resourceEntry{resource: resource, handler: handler}
	r.resOrder = append(r.resOrder, resource.URI)
	return nil
}

// AddResourceTemplate registers a URI template such as users://{userId}/profile.
func (r *Registry) AddResourceTemplate(template protocol.ResourceTemplate, handler TemplateHandler) error {
	if handler == nil {
		return mcperrors.InvalidParams("add resource template", errors.New("handler is required"))
	}
	spans, err := uritemplate.Placeholders(template.URITemplate)
	if err != nil {
		return err
	}
	matcher, err := rfc6570.New(template.URITemplate)
	if err != nil {
		return mcperrors.TemplateMalformed(template.URITemplate, 0, err.Error())
	}
	segments, names := segmentMatcher(template.URITemplate, spans)

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.templates {
		if t.template.URITemplate == template.URITemplate {
			return mcperrors.DuplicateName("resource template", template.URITemplate)
		}
	}
	r.templates = append(r.templates, &templateEntry{
		template: template,
		matcher:  matcher,
		segments: segments,
		names:    names,
		handler:  handler,
	})
	return nil
}

// AddPrompt registers a prompt.
func (r *Registry) AddPrompt(prompt protocol.Prompt, handler PromptHandler) error {
	if prompt.Name == "" || handler == nil {
		return mcperrors.InvalidParams("add prompt", errors.New("name and handler are required"))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.prompts[prompt.Name]; ok {
		return mcperrors.DuplicateName("prompt", prompt.Name)
	}
	r.prompts[prompt.Name] = &promptEntry{prompt: prompt, handler: handler}
	r.prOrder = append(r.prOrder, prompt.Name)
	return nil
}

// Tools lists tool descriptors.
func (r *Registry) Tools() []protocol.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]protocol.Tool, 0, len(r.toolOrder))
	for _, name := range r.toolOrder {
		out = append(out, r.tools[name].tool)
	}
	return out
}

// Resources lists static resource descriptors.
func (r *Registry) Resources() []protocol.Resource {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]protocol.Resource, 0, len(r.resOrder))
	for _, uri := range r.resOrder {
		out = append(out, r.resources[uri].resource)
	}
	return out
}

// ResourceTemplates lists template descriptors.
func (r *Registry) ResourceTemplates() []protocol.ResourceTemplate {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]protocol.ResourceTemplate, 0, len(r.templates))
	for _, t := range r.templates {
		out = append(out, t.template)
	}
	return out
}

// Prompts lists prompt descriptors.
func (r *Registry) Prompts() []protocol.Prompt {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]protocol.Prompt, 0, len(r.prOrder))
	for _, name := range r.prOrder {
		out = append(out, r.prompts[name].prompt)
	}
	return out
}

func (r *Registry) tool(name string) (*toolEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.tools[name]
	return e, ok
}

func (r *Registry) prompt(name string) (*promptEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.prompts[name]
	return e, ok
}

func (r *Registry) resource(uri string) (*resourceEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.resources[uri]
	return e, ok
}

// matchTemplate returns the first registered template matching uri and the
// values it binds.
func (r *Registry) matchTemplate(uri string) (*templateEntry, map[string]string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.templates {
		if vars, ok := t.match(uri); ok {
			return t, vars, true
		}
	}
	return nil, nil, false
}

func (t *templateEntry) match(uri string) (map[string]string, bool) {
	if values := t.matcher.Match(uri); values != nil {
		vars := make(map[string]string, len(t.matcher.Varnames()))
		for _, name := range t.matcher.Varnames() {
			vars[name] = values.Get(name).String()
		}
		return vars, true
	}

	if t.segments == nil {
		return nil, false
	}
	groups := t.segments.FindStringSubmatch(uri)
	if groups == nil {
		return nil, false
	}
	vars := make(map[string]string, len(t.names))
	for i, name := range t.names {
		if prev, seen := vars[name]; seen && prev != groups[i+1] {
			return nil, false
		}
		vars[name] = groups[i+1]
	}
	return vars, true
}
