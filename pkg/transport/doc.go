// Package transport carries JSON-RPC messages between the host and the
// provider and correlates requests with their responses.
//
// A Channel moves whole newline-framed messages in both directions. The
// stdio channel is the production framing; Pipe builds a connected pair for
// in-process use and tests, and StartProcess wires a channel to a child
// process's stdin and stdout.
//
// Conn sits on top of a Channel and owns the correlation table for one
// connection. Either side may issue requests at any time, including from
// inside a handler that is still serving a request from the peer:
//
//	conn := transport.NewConn(ch, transport.WithRequestTimeout(30*time.Second))
//	conn.Handle("ping", func(ctx context.Context, _ json.RawMessage) (interface{}, error) {
//		return struct{}{}, nil
//	})
//	go conn.Run(ctx)
//	var out protocol.ListToolsResult
//	err := conn.Issue(ctx, protocol.MethodListTools, nil, &out)
//
// Inbound requests are served on their own goroutines, so the read loop is
// never blocked by a handler waiting for a nested response.
package transport
