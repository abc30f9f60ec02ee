// Package server implements the provider side of a session.
//
// A Server owns a Registry of tools, static resources, resource templates
// and prompts, each bound to a handler, and answers the host's discovery and
// invocation requests over a transport.Channel:
//
//	srv := server.New(server.WithName("userhub"), server.WithLogger(logger))
//	_ = srv.AddTool(protocol.Tool{Name: "hello"}, func(ctx context.Context, req server.ToolRequest) (*protocol.CallToolResult, error) {
//		return protocol.NewToolResult("hi " + req.StringArg("name")), nil
//	})
//	err := srv.Serve(ctx, transport.NewStdio())
//
// Tool handler failures never surface as protocol errors: they come back as
// a successful call-tool result with IsError set and the failure as text.
// Unknown names, missing required arguments and unresolved template URIs are
// caller errors and do produce error responses.
//
// Tool handlers may call back into the host through ToolRequest.Sampler,
// which issues generate-completion on the same connection while the
// call-tool request is still open.
package server
