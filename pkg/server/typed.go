package server

import (
	"context"
	"encoding/json"

	"github.com/invopop/jsonschema"

	mcperrors "github.com/ajitpratap0/mcp-userhub/pkg/errors"
	"github.com/ajitpratap0/mcp-userhub/pkg/protocol"
)

// TypedToolHandler receives arguments decoded into A.
type TypedToolHandler[A any] func(ctx context.Context, req ToolRequest, args A) (*protocol.CallToolResult, error)

// SchemaFor reflects A into an input schema. Properties keep the struct's
// field order; fields without omitempty are required.
func SchemaFor[A any]() protocol.InputSchema {
	reflector := jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	reflected := reflector.Reflect(new(A))

	schema := protocol.NewInputSchema()
	if reflected.Properties == nil {
		return schema
	}
	required := make(map[string]bool, len(reflected.Required))
	for _, name := range reflected.Required {
		required[name] = true
	}
	for pair := reflected.Properties.Oldest(); pair != nil; pair = pair.Next() {
		schema.Add(pair.Key, protocol.Property{
			Type:        pair.Value.Type,
			Description: pair.Value.Description,
		}, required[pair.Key])
	}
	return schema
}

// AddTypedTool registers a tool whose schema is derived from A and whose
// handler receives decoded arguments.
func AddTypedTool[A any](s *Server, tool protocol.Tool, handler TypedToolHandler[A]) error {
	tool.InputSchema = SchemaFor[A]()
	return s.AddTool(tool, func(ctx context.Context, req ToolRequest) (*protocol.CallToolResult, error) {
		var args A
		data, err := json.Marshal(req.Arguments)
		if err != nil {
			return nil, mcperrors.InvalidParams(req.Name, err)
		}
		if err := json.Unmarshal(data, &args); err != nil {
			return nil, mcperrors.InvalidParams(req.Name, err)
		}
		return handler(ctx, req, args)
	})
}
